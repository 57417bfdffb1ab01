package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grant-insight/internal/domain/entity"
	"grant-insight/internal/resilience/circuitbreaker"
	"grant-insight/internal/usecase/queue"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, healthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHealthServer_Liveness(t *testing.T) {
	server := NewHealthServer(":0", discardLogger(), nil)

	rec, resp := get(t, server.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", resp.Status)
}

func TestHealthServer_Readiness(t *testing.T) {
	snapshot := func() map[string]any { return map[string]any{"queue": map[string]any{"pending": 3}} }
	server := NewHealthServer(":0", discardLogger(), snapshot)

	rec, resp := get(t, server.Handler(), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", resp.Status)
	assert.Contains(t, resp.Components, "queue")

	server.SetReady(true)
	rec, resp = get(t, server.Handler(), "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp.Status)

	server.SetReady(false)
	rec, _ = get(t, server.Handler(), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type nopDocs struct{}

func (nopDocs) Get(context.Context, int64) (*entity.Document, error)       { return nil, nil }
func (nopDocs) ListPendingAnalysis(context.Context, int) ([]int64, error) { return nil, nil }

type nopStore struct{}

func (nopStore) Get(context.Context, int64) (*entity.AnalysisRecord, error) { return nil, nil }
func (nopStore) Upsert(context.Context, *entity.AnalysisRecord) error      { return nil }

type nopAnalyzer struct{}

func (nopAnalyzer) AnalyzeDocument(context.Context, *entity.Document) (entity.AnalysisResult, error) {
	return entity.AnalysisResult{}, nil
}

func TestQueueSnapshot(t *testing.T) {
	p := queue.NewProcessor(nopAnalyzer{}, nopDocs{}, nopStore{}, queue.DefaultConfig())
	p.Enqueue(1)
	p.Enqueue(2)
	cb := circuitbreaker.New(circuitbreaker.DefaultConfig("claude-api"))

	server := NewHealthServer(":0", discardLogger(), QueueSnapshot(p, cb))
	server.SetReady(true)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var body struct {
		Components struct {
			Queue struct {
				Pending  int  `json:"pending"`
				Draining bool `json:"draining"`
			} `json:"queue"`
			Breaker circuitbreaker.Snapshot `json:"breaker"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Components.Queue.Pending)
	assert.False(t, body.Components.Queue.Draining)
	assert.Equal(t, "claude-api", body.Components.Breaker.Name)
	assert.Equal(t, "closed", body.Components.Breaker.State)
}

func TestHealthServer_StartAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	server := NewHealthServer(addr, discardLogger(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, http.ErrServerClosed))
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestHealthServer_StartFailsOnBusyPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	server := NewHealthServer("127.0.0.1:"+strconv.Itoa(port), discardLogger(), nil)
	err = server.Start(context.Background())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, http.ErrServerClosed))
}
