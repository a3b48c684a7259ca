package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agroplan/planner/internal/handler"
	"github.com/agroplan/planner/internal/repository"
	"github.com/agroplan/planner/internal/router"
	"github.com/agroplan/planner/internal/service"
	"github.com/agroplan/planner/internal/testutil"
	"github.com/agroplan/planner/internal/utils"
)

const secret = "handler-secret"

type api struct {
	t *testing.T
	e *echo.Echo
}

func newAPI(t *testing.T) *api {
	t.Helper()
	db := testutil.OpenDB(t)
	testutil.SeedFixture(t, db)
	log := zap.NewNop()

	svc := service.NewProgramService(db, repository.NewCatalogRepo(db), nil, log)
	grants := repository.NewGrantRepo(db)
	e := echo.New()
	router.RegisterRoutes(e, db)
	router.RegisterPrograms(e, handler.NewProgramHandler(svc, repository.NewProgramQuery(db), log), secret, grants, passThrough)
	router.RegisterBrowse(e, handler.NewBrowseHandler(repository.NewProducerRepo(db), repository.NewPlotRepo(db), repository.NewReferenceRepo(db), log), secret, grants, passThrough)
	return &api{t: t, e: e}
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func bearer(t *testing.T, role, consultant string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, "user-"+role, role, consultant, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func (a *api) do(method, path, auth, body string) (*httptest.ResponseRecorder, map[string]any) {
	a.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

const programBody = `{"producer_code":"P1","farm_code":"01","area":40,"season_id":"S1","period_id":"E1","plots":["T1"]}`

func TestCreateThenConflict(t *testing.T) {
	a := newAPI(t)
	admin := bearer(t, "admin", "")

	rec, body := a.do(http.MethodPost, "/v1/programs", admin, programBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, body["id"])

	rec, body = a.do(http.MethodPost, "/v1/programs", admin, programBody)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []any{"T1"}, body["plots"])
	assert.Equal(t, []any{"Talhao 01"}, body["plot_names"])
	assert.NotEmpty(t, body["error"])
}

func TestValidationErrorIs400(t *testing.T) {
	a := newAPI(t)
	rec, body := a.do(http.MethodPost, "/v1/programs", bearer(t, "admin", ""), `{"producer_code":"P1","farm_code":"01","area":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "area", body["field"])

	rec, body = a.do(http.MethodPost, "/v1/programs", bearer(t, "admin", ""),
		`{"producer_code":"P1","farm_code":"01","area":5,"season_id":"S1","plots":["NOPE"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "plots", body["field"])

	rec, _ = a.do(http.MethodPost, "/v1/programs", bearer(t, "admin", ""), `{"producer_code":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWritesRequireAuthenticationAndPolicy(t *testing.T) {
	a := newAPI(t)

	rec, _ := a.do(http.MethodPost, "/v1/programs", "", programBody)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = a.do(http.MethodPost, "/v1/programs", bearer(t, "consultor", "C9"), programBody)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = a.do(http.MethodPost, "/v1/programs", bearer(t, "consultor", "C2"), programBody)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestUpdateReviewedAndList(t *testing.T) {
	a := newAPI(t)
	admin := bearer(t, "admin", "")
	_, created := a.do(http.MethodPost, "/v1/programs", admin, programBody)
	id := created["id"].(string)

	rec, body := a.do(http.MethodPut, "/v1/programs/"+id, admin, `{"reviewed":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["ok"])

	rec, body = a.do(http.MethodGet, "/v1/programs?season_id=S1", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])
	items := body["items"].([]any)
	assert.Equal(t, true, items[0].(map[string]any)["reviewed"])

	rec, body = a.do(http.MethodGet, "/v1/programs", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["count"], "anonymous callers see nothing")

	rec, _ = a.do(http.MethodPut, "/v1/programs/missing", admin, `{"reviewed":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChildren(t *testing.T) {
	a := newAPI(t)
	admin := bearer(t, "admin", "")
	_, created := a.do(http.MethodPost, "/v1/programs", admin, programBody)

	rec, body := a.do(http.MethodGet, "/v1/programs/"+created["id"].(string)+"/children", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	allocs := body["allocations"].([]any)
	require.Len(t, allocs, 1)
	assert.Equal(t, "T1", allocs[0].(map[string]any)["plot_id"])
}

func TestDeleteThenNotFound(t *testing.T) {
	a := newAPI(t)
	admin := bearer(t, "admin", "")
	_, created := a.do(http.MethodPost, "/v1/programs", admin, programBody)
	id := created["id"].(string)

	rec, body := a.do(http.MethodDelete, "/v1/programs/"+id, admin, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["ok"])

	rec, _ = a.do(http.MethodDelete, "/v1/programs/"+id, admin, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteBlockedByTreatmentApplication(t *testing.T) {
	db := testutil.OpenDB(t)
	testutil.SeedFixture(t, db)
	testutil.SeedTreatmentApplication(t, db, "A1", "P1", "01", "S1", "T1")
	log := zap.NewNop()
	svc := service.NewProgramService(db, nil, nil, log)
	e := echo.New()
	router.RegisterPrograms(e, handler.NewProgramHandler(svc, repository.NewProgramQuery(db), log), secret, repository.NewGrantRepo(db), passThrough)
	a := &api{t: t, e: e}
	admin := bearer(t, "admin", "")

	_, created := a.do(http.MethodPost, "/v1/programs", admin, programBody)
	rec, body := a.do(http.MethodDelete, "/v1/programs/"+created["id"].(string), admin, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.EqualValues(t, 1, body["count"])
	assert.Equal(t, []any{"Talhao 01"}, body["plots"])
}

func TestBrowseEndpoints(t *testing.T) {
	a := newAPI(t)
	admin := bearer(t, "admin", "")

	_, body := a.do(http.MethodGet, "/v1/producers", admin, "")
	assert.EqualValues(t, 1, body["count"])

	_, body = a.do(http.MethodGet, "/v1/farms?producer_code=P1", bearer(t, "consultor", "C1"), "")
	assert.EqualValues(t, 1, body["count"], "producer consultant sees the farm")

	_, body = a.do(http.MethodGet, "/v1/plots?farm_id=F1&season_id=S1", admin, "")
	assert.EqualValues(t, 3, body["count"], "T4 is not eligible for S1")

	_, body = a.do(http.MethodGet, "/v1/seasons", "", "")
	assert.EqualValues(t, 2, body["count"])

	_, body = a.do(http.MethodGet, "/v1/periods", "", "")
	assert.EqualValues(t, 2, body["count"])
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	rec, _ := a.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, body := a.do(http.MethodGet, "/healthz/db", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "up", body["status"])
}
