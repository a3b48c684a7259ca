// Package logging builds the process logger.
package logging

import (
	"strings"

	"go.uber.org/zap"
)

// New returns a JSON production logger when env is "prod" and a
// human-readable development logger otherwise.
func New(env string) (*zap.Logger, error) {
	if strings.EqualFold(env, "prod") || strings.EqualFold(env, "production") {
		return zap.NewProduction()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
