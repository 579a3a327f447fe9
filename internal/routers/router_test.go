package routers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haierkeys/db-backup-service/internal/app"
	"github.com/haierkeys/db-backup-service/internal/dao"
	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/pkg/code"
	"github.com/haierkeys/db-backup-service/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "router-test-token"

type envelope struct {
	Code    int             `json:"code"`
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details string          `json:"details"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := app.ParseConfig(nil)
	require.NoError(t, err)
	cfg.Security.AuthToken = testToken
	cfg.Database.Path = filepath.Join(t.TempDir(), "backup.db")
	cfg.Backup.DefaultPath = t.TempDir()

	db, err := dao.NewDBEngineWithConfig(cfg.GetDatabaseConfig(), zap.NewNop())
	require.NoError(t, err)

	refused := func(context.Context, *domain.Target, string) error { return errors.New("connection refused") }
	a, err := app.NewApp(cfg, zap.NewNop(), db,
		app.WithVaultKey(make([]byte, 32)),
		app.WithConnectionTester(refused),
	)
	require.NoError(t, err)
	require.NoError(t, a.Bootstrap(context.Background()))
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	_, uni, err := validator.Setup(ValidationRules()...)
	require.NoError(t, err)
	return NewRouter(a, uni)
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", "en")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") && w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func targetBody(name string) map[string]any {
	return map[string]any{
		"name":         name,
		"host":         "127.0.0.1",
		"port":         3306,
		"username":     "backup",
		"password":     "s3cret",
		"databaseName": "shop",
	}
}

func TestRouter_HealthIsPublic(t *testing.T) {
	r := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodGet, "/api/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.Status)

	var health struct {
		Status   string `json:"status"`
		Database string `json:"database"`
		Disk     *struct {
			Total uint64 `json:"total"`
		} `json:"disk"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Database)
	require.NotNil(t, health.Disk)
	assert.NotZero(t, health.Disk.Total)

	w, _ = doJSON(t, r, http.MethodGet, "/api/version", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AuthRequired(t *testing.T) {
	r := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodGet, "/api/targets", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, code.ErrorInvalidAuthToken.Code(), env.Code)

	w, _ = doJSON(t, r, http.MethodGet, "/api/targets", nil, "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = doJSON(t, r, http.MethodGet, "/api/targets", nil, testToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", string(env.Data))
}

func TestRouter_TargetLifecycle(t *testing.T) {
	r := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodPost, "/api/targets", targetBody("shop"), testToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, code.SuccessCreate.Code(), env.Code)
	assert.NotContains(t, w.Body.String(), "s3cret")

	var created struct {
		ID          int64 `json:"id"`
		HasPassword bool  `json:"hasPassword"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotZero(t, created.ID)
	assert.True(t, created.HasPassword)

	path := fmt.Sprintf("/api/targets/%d", created.ID)
	w, _ = doJSON(t, r, http.MethodGet, path, nil, testToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = doJSON(t, r, http.MethodPost, "/api/targets", targetBody("shop"), testToken)
	assert.Equal(t, code.ErrorTargetNameExists.Code(), env.Code, w.Body.String())

	w, env = doJSON(t, r, http.MethodPost, path+"/test", nil, testToken)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, code.ErrorConnectionFailed.Code(), env.Code)

	w, _ = doJSON(t, r, http.MethodDelete, path, nil, testToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = doJSON(t, r, http.MethodGet, path, nil, testToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, code.ErrorTargetNotFound.Code(), env.Code)
}

func TestRouter_ValidationErrors(t *testing.T) {
	r := newTestRouter(t)

	body := targetBody("shop")
	body["host"] = "not a host!"
	w, env := doJSON(t, r, http.MethodPost, "/api/targets", body, testToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, code.ErrorInvalidParams.Code(), env.Code)
	assert.Contains(t, env.Details, "host")

	w, env = doJSON(t, r, http.MethodPost, "/api/schedules", map[string]any{
		"targetId": 1, "type": "daily", "time": "25:99",
	}, testToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Details, "HH:MM")

	w, _ = doJSON(t, r, http.MethodPost, "/api/scheduler/reboot", nil, testToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_RunsAndScheduler(t *testing.T) {
	r := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodGet, "/api/runs?page=1&pageSize=5", nil, testToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page struct {
		Pager struct {
			Page      int `json:"page"`
			PageSize  int `json:"pageSize"`
			TotalRows int `json:"totalRows"`
		} `json:"pager"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 5, page.Pager.PageSize)
	assert.Zero(t, page.Pager.TotalRows)

	w, _ = doJSON(t, r, http.MethodGet, "/api/runs/stats", nil, testToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = doJSON(t, r, http.MethodGet, "/api/scheduler", nil, testToken)
	require.Equal(t, http.StatusOK, w.Code)
	var st struct {
		Running bool `json:"running"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.True(t, st.Running)

	w, env = doJSON(t, r, http.MethodPost, "/api/scheduler/stop", nil, testToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.False(t, st.Running)
}

func TestRouter_ExportImportRoundTrip(t *testing.T) {
	r := newTestRouter(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/targets", targetBody("shop"), testToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = doJSON(t, r, http.MethodGet, "/api/export", nil, testToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.NotContains(t, w.Body.String(), "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewReader(w.Body.Bytes()))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_NotFoundAndMetrics(t *testing.T) {
	r := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodGet, "/api/nothing-here", nil, testToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, code.ErrorNotFound.Code(), env.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestActionLimiter(t *testing.T) {
	l := actionLimiter(2)
	b, ok := l.GetBucket("/api/targets/:id/run")
	require.True(t, ok)
	assert.Equal(t, int64(2), b.TakeAvailable(5))
	assert.Equal(t, int64(0), b.TakeAvailable(1))

	_, ok = l.GetBucket("/api/targets")
	assert.False(t, ok)

	_, ok = actionLimiter(0).GetBucket("/api/targets/:id/test")
	assert.False(t, ok)
}
