package webapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHealthRoute(t *testing.T) {
	s := newTestServer(t, "")
	handler := s.routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(t, "")
	handler := s.routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "otterdog_tasks_in_flight")
}

func TestTasksRoute(t *testing.T) {
	s := newTestServer(t, "")
	handler := s.routes()

	base := time.Now()
	for i, id := range []string{"t1", "t2"} {
		task := &Task{
			ID:        id,
			Type:      TaskDriftDetection,
			Org:       "testorg",
			Status:    TaskStatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Result:    "live state matches the configuration",
		}
		require.NoError(t, s.journal.Record(context.Background(), task))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var tasks []Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 2)
	require.Equal(t, "t2", tasks[0].ID)
	require.Equal(t, "t1", tasks[1].ID)
	require.Equal(t, TaskDriftDetection, tasks[0].Type)
}

func TestTasksRouteRateLimit(t *testing.T) {
	s := newTestServer(t, "")
	handler := s.routes()

	limited := false
	for range 130 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil))
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	require.True(t, limited, "expected the task listing to be rate limited")
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, "")
	handler := s.routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
