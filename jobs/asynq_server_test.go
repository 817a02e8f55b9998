package jobs

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func healthStatus(t *testing.T, inspector QueueInspector) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(inspector, "mail", quietLogger()).MountRoutes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	return rec
}

func TestJobsHealth(t *testing.T) {
	rec := healthStatus(t, stubInspector{info: &asynq.QueueInfo{Queue: "mail", Pending: 3, Retry: 1}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"mail","pending":3,"active":0,"retry":1,"archived":0,"processed_today":0,"failed_today":0}`, rec.Body.String())

	rec = healthStatus(t, stubInspector{err: asynq.ErrQueueNotFound})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = healthStatus(t, stubInspector{err: errors.New("redis down")})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"}})
	require.Error(t, err)
}
