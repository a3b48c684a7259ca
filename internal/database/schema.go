package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the DDL for every table in creation order.  The statements
// stay within the subset understood by both MySQL and SQLite so the same
// migration serves production and the package tests.
//
// program_plots carries the uniqueness guard over (plot_id, season_id,
// period_id).  Rows with a NULL period_id are legacy and do not collide
// with each other or with period-specific rows.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS producers (
		code            VARCHAR(32)  NOT NULL PRIMARY KEY,
		name            VARCHAR(255) NOT NULL,
		consultant_code VARCHAR(32)  NULL
	)`,
	`CREATE TABLE IF NOT EXISTS farms (
		id              VARCHAR(64)  NOT NULL PRIMARY KEY,
		producer_code   VARCHAR(32)  NOT NULL,
		farm_code       VARCHAR(32)  NOT NULL,
		name            VARCHAR(255) NOT NULL,
		consultant_code VARCHAR(32)  NULL,
		CONSTRAINT uq_farms_producer_farm UNIQUE (producer_code, farm_code)
	)`,
	`CREATE TABLE IF NOT EXISTS seasons (
		id        VARCHAR(64)  NOT NULL PRIMARY KEY,
		name      VARCHAR(255) NOT NULL,
		starts_on DATETIME     NULL,
		ends_on   DATETIME     NULL
	)`,
	`CREATE TABLE IF NOT EXISTS periods (
		id     VARCHAR(64)  NOT NULL PRIMARY KEY,
		name   VARCHAR(255) NOT NULL,
		active BOOLEAN      NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS plots (
		id          VARCHAR(64)  NOT NULL PRIMARY KEY,
		farm_id     VARCHAR(64)  NOT NULL,
		name        VARCHAR(255) NOT NULL,
		area_ha     DOUBLE       NOT NULL DEFAULT 0,
		all_seasons BOOLEAN      NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS plot_seasons (
		plot_id   VARCHAR(64) NOT NULL,
		season_id VARCHAR(64) NOT NULL,
		PRIMARY KEY (plot_id, season_id)
	)`,
	`CREATE TABLE IF NOT EXISTS programs (
		id              VARCHAR(64) NOT NULL PRIMARY KEY,
		user_id         VARCHAR(64) NULL,
		producer_code   VARCHAR(32) NOT NULL,
		farm_code       VARCHAR(32) NOT NULL,
		consultant_code VARCHAR(32) NULL,
		area_ha         DOUBLE      NOT NULL,
		season_id       VARCHAR(64) NULL,
		period_id       VARCHAR(64) NULL,
		type            VARCHAR(16) NOT NULL DEFAULT 'PROGRAMACAO',
		reviewed        BOOLEAN     NOT NULL DEFAULT FALSE,
		created_at      DATETIME    NOT NULL,
		updated_at      DATETIME    NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS program_plots (
		id         VARCHAR(64) NOT NULL PRIMARY KEY,
		program_id VARCHAR(64) NOT NULL,
		plot_id    VARCHAR(64) NOT NULL,
		season_id  VARCHAR(64) NOT NULL,
		period_id  VARCHAR(64) NULL,
		farm_code  VARCHAR(32) NOT NULL,
		CONSTRAINT uq_program_plots_plot_season_period UNIQUE (plot_id, season_id, period_id),
		CONSTRAINT fk_program_plots_program FOREIGN KEY (program_id) REFERENCES programs (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS program_cultivars (
		id             VARCHAR(64)  NOT NULL PRIMARY KEY,
		program_id     VARCHAR(64)  NOT NULL,
		cultivar       VARCHAR(255) NOT NULL,
		cultivar_code  VARCHAR(64)  NULL,
		coverage_pct   DOUBLE       NOT NULL DEFAULT 0,
		packaging_type VARCHAR(64)  NULL,
		treatment_type VARCHAR(32)  NOT NULL,
		treatment_id   VARCHAR(64)  NULL,
		planting_date  DATETIME     NULL,
		population     DOUBLE       NOT NULL DEFAULT 0,
		own_seed       BOOLEAN      NOT NULL DEFAULT FALSE,
		rnc_reference  VARCHAR(64)  NULL,
		seeds_per_bag  DOUBLE       NOT NULL DEFAULT 0,
		period_id      VARCHAR(64)  NULL,
		CONSTRAINT fk_program_cultivars_program FOREIGN KEY (program_id) REFERENCES programs (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS program_cultivar_treatments (
		cultivar_line_id VARCHAR(64) NOT NULL,
		treatment_id     VARCHAR(64) NOT NULL,
		position         INTEGER     NOT NULL,
		PRIMARY KEY (cultivar_line_id, treatment_id),
		CONSTRAINT fk_cultivar_treatments_line FOREIGN KEY (cultivar_line_id) REFERENCES program_cultivars (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS program_cultivar_defensives (
		id               VARCHAR(64)  NOT NULL PRIMARY KEY,
		cultivar_line_id VARCHAR(64)  NOT NULL,
		class            VARCHAR(64)  NULL,
		application      VARCHAR(64)  NULL,
		defensive        VARCHAR(255) NOT NULL,
		dose             DOUBLE       NULL,
		coverage         DOUBLE       NULL,
		total            DOUBLE       NULL,
		saved_product    BOOLEAN      NOT NULL DEFAULT FALSE,
		CONSTRAINT fk_cultivar_defensives_line FOREIGN KEY (cultivar_line_id) REFERENCES program_cultivars (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS program_fertilizations (
		id                          VARCHAR(64)  NOT NULL PRIMARY KEY,
		program_id                  VARCHAR(64)  NOT NULL,
		formulation                 VARCHAR(255) NOT NULL,
		fertilizer_code             VARCHAR(64)  NULL,
		dose                        DOUBLE       NULL,
		coverage_pct                DOUBLE       NULL,
		application_date            DATETIME     NULL,
		packaging                   VARCHAR(64)  NULL,
		no_fertilization_reason_id  VARCHAR(64)  NULL,
		saved_fertilizer            BOOLEAN      NOT NULL DEFAULT FALSE,
		billable                    BOOLEAN      NOT NULL DEFAULT TRUE,
		saved_pct                   DOUBLE       NOT NULL DEFAULT 0,
		CONSTRAINT fk_program_fertilizations_program FOREIGN KEY (program_id) REFERENCES programs (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS treatment_applications (
		id            VARCHAR(64) NOT NULL PRIMARY KEY,
		producer_code VARCHAR(32) NOT NULL,
		farm_code     VARCHAR(32) NOT NULL,
		season_id     VARCHAR(64) NOT NULL,
		plot_id       VARCHAR(64) NULL,
		applied_at    DATETIME    NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cultivars (
		code VARCHAR(64)  NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fertilizers (
		code VARCHAR(64)  NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_producers (
		user_id       VARCHAR(64) NOT NULL,
		producer_code VARCHAR(32) NOT NULL,
		PRIMARY KEY (user_id, producer_code)
	)`,
	`CREATE TABLE IF NOT EXISTS user_farms (
		user_id VARCHAR(64) NOT NULL,
		farm_id VARCHAR(64) NOT NULL,
		PRIMARY KEY (user_id, farm_id)
	)`,
	`CREATE TABLE IF NOT EXISTS manager_consultants (
		manager_id      VARCHAR(64) NOT NULL,
		consultant_code VARCHAR(32) NOT NULL,
		PRIMARY KEY (manager_id, consultant_code)
	)`,
}

// Migrate creates every table that does not exist yet.  It is safe to run
// repeatedly.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
