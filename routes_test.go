package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"editorial-desk/config"
	"editorial-desk/models"
	"editorial-desk/providers/logmail"
	"editorial-desk/services"
	"editorial-desk/storage"
)

type routeEnv struct {
	router *gin.Engine
	store  *storage.MemoryStore
	author *models.User
	sub    *models.Submission
}

func newRouteEnv(t *testing.T, apiKey string) *routeEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		APISecretKey:           apiKey,
		AppBaseURL:             "https://desk.example.org",
		ReminderCap:            2,
		DeadlineReminderWindow: 72 * time.Hour,
		SLAUnderReview:         720 * time.Hour,
		ReviewerReminderAfter:  168 * time.Hour,
		AuditRetention:         8760 * time.Hour,
		CronOverdue:            "@hourly",
	}
	store := storage.NewMemoryStore()
	reg := prometheus.NewRegistry()
	engine := services.NewEngine(services.Options{
		Config:  cfg,
		Store:   store,
		Mailer:  logmail.NewMailer(zap.NewNop()),
		Logger:  zap.NewNop(),
		Metrics: services.NewMetrics(reg),
	})

	ctx := context.Background()
	author := &models.User{Name: "Ada", Email: "ada@example.org"}
	require.NoError(t, store.CreateUser(ctx, author))
	sub := &models.Submission{Code: "SUB-1", Title: "Deadlines", AuthorID: author.ID}
	require.NoError(t, store.CreateSubmission(ctx, sub))

	router := newRouter(cfg, store, engine, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), zap.NewNop())
	return &routeEnv{router: router, store: store, author: author, sub: sub}
}

func (e *routeEnv) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	env := newRouteEnv(t, "secret")

	w := env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	env := newRouteEnv(t, "secret")

	w := env.do(http.MethodGet, "/jobs", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/jobs", nil, "X-API-KEY", "secret")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTransitionRoute(t *testing.T) {
	env := newRouteEnv(t, "")

	w := env.do(http.MethodPost, "/submissions/"+env.sub.ID+"/status", gin.H{"status": "under_review"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "NEW", body["from"])
	assert.Equal(t, "UNDER_REVIEW", body["to"])
	deadline, ok := body["deadline"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "INITIAL_REVIEW", deadline["type"])

	w = env.do(http.MethodGet, "/submissions/"+env.sub.ID+"/deadlines", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Deadline
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestTransitionRoute_Errors(t *testing.T) {
	env := newRouteEnv(t, "")

	w := env.do(http.MethodPost, "/submissions/"+env.sub.ID+"/status", gin.H{"status": "PUBLISHED"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(http.MethodPost, "/submissions/"+env.sub.ID+"/status", gin.H{"status": "LOST"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/submissions/missing/status", gin.H{"status": "UNDER_REVIEW"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/submissions/"+env.sub.ID+"/status", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeadlineRoutes(t *testing.T) {
	env := newRouteEnv(t, "")

	w := env.do(http.MethodPost, "/submissions/"+env.sub.ID+"/deadlines", gin.H{
		"type":        "EDITOR_DECISION",
		"due_date":    time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		"assigned_to": env.author.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	w = env.do(http.MethodPost, "/submissions/"+env.sub.ID+"/deadlines", gin.H{
		"type":     "LUNCH",
		"due_date": time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/deadlines/"+id+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode(t, w)["completed_at"]
	require.NotNil(t, first)

	w = env.do(http.MethodPost, "/deadlines/"+id+"/complete", gin.H{"actor_id": env.author.ID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first, decode(t, w)["completed_at"])

	w = env.do(http.MethodPost, "/deadlines/missing/complete", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/users/"+env.author.ID+"/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var notes []models.Notification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationDeadlineApproaching, notes[0].Type)

	w = env.do(http.MethodGet, "/users/"+env.author.ID+"/notifications?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkflowEventRoute(t *testing.T) {
	env := newRouteEnv(t, "")

	w := env.do(http.MethodPost, "/workflow-events", gin.H{
		"event":   "REVIEWER_INVITED",
		"context": gin.H{"recipient_id": env.author.ID, "submission_code": "SUB-1"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["email_sent"])
	assert.NotEmpty(t, body["notification_id"])

	w = env.do(http.MethodPost, "/workflow-events", gin.H{"event": "NOPE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobRoutes(t *testing.T) {
	env := newRouteEnv(t, "")

	w := env.do(http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var jobs []services.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	assert.Len(t, jobs, 5)

	w = env.do(http.MethodPost, "/jobs/checkOverdueDeadlines/run", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res services.JobResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "checkOverdueDeadlines", res.Job)

	w = env.do(http.MethodPost, "/jobs/reindex/run", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
