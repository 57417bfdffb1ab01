package analysis_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grant-insight/internal/domain/entity"
	"grant-insight/internal/handler/http/analysis"
	"grant-insight/internal/handler/http/respond"
	analysisUC "grant-insight/internal/usecase/analysis"
	"grant-insight/internal/usecase/queue"
)

/* ───────── stubs ───────── */

type stubQueue struct {
	enqueued  []int64
	enqueue   queue.EnqueueResult
	status    queue.StatusResult
	statusErr error
	statusIDs []int64
}

func (q *stubQueue) Enqueue(id int64) queue.EnqueueResult {
	q.enqueued = append(q.enqueued, id)
	return q.enqueue
}

func (q *stubQueue) StatusOf(_ context.Context, id int64) (queue.StatusResult, error) {
	q.statusIDs = append(q.statusIDs, id)
	return q.status, q.statusErr
}

type stubService struct {
	recommendFn func(org entity.Organization, limit int) (entity.RecommendationSet, error)
	askFn       func(question string) (entity.Answer, error)
}

func (s *stubService) Recommend(_ context.Context, org entity.Organization, limit int) (entity.RecommendationSet, error) {
	return s.recommendFn(org, limit)
}

func (s *stubService) Ask(_ context.Context, question string) (entity.Answer, error) {
	return s.askFn(question)
}

func newMux(q analysis.Queue, svc analysis.Service) *http.ServeMux {
	mux := http.NewServeMux()
	analysis.Register(mux, q, svc, nil)
	return mux
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body respond.ErrorBody
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body.Error
}

var generatedAt = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

/* ───────── analyses ───────── */

func TestEnqueueHandler(t *testing.T) {
	tests := []struct {
		name     string
		result   queue.EnqueueResult
		wantCode int
	}{
		{name: "newly queued", result: queue.EnqueueResult{Queued: true, Status: queue.StatusQueued}, wantCode: http.StatusAccepted},
		{name: "already processing", result: queue.EnqueueResult{Queued: false, Status: queue.StatusProcessing}, wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &stubQueue{enqueue: tt.result}
			rr := serve(t, newMux(q, nil), http.MethodPost, "/analyses/42", "")

			require.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, []int64{42}, q.enqueued)

			var got analysis.EnqueueDTO
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
			assert.Equal(t, analysis.EnqueueDTO{SubjectID: 42, Queued: tt.result.Queued, Status: tt.result.Status}, got)
		})
	}
}

func TestEnqueueHandler_InvalidID(t *testing.T) {
	for _, path := range []string{"/analyses/abc", "/analyses/0", "/analyses/-3"} {
		t.Run(path, func(t *testing.T) {
			q := &stubQueue{}
			rr := serve(t, newMux(q, nil), http.MethodPost, path, "")

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "invalid id", errorBody(t, rr))
			assert.Empty(t, q.enqueued)
		})
	}
}

func TestStatusHandler(t *testing.T) {
	result := &entity.AnalysisResult{Summary: "Clean water program", Topics: []string{"water"}, Score: 0.8, Source: entity.SourceStore, GeneratedAt: generatedAt}
	q := &stubQueue{status: queue.StatusResult{Processed: true, Status: queue.StatusCompleted, Result: result}}

	rr := serve(t, newMux(q, nil), http.MethodGet, "/analyses/7", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, q.enqueued, "status lookups must not enqueue")
	assert.Equal(t, []int64{7}, q.statusIDs)

	var got analysis.StatusDTO
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	want := analysis.StatusDTO{SubjectID: 7, Processed: true, Status: queue.StatusCompleted, Result: result}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
}

func TestStatusHandler_StoreFailureIsHidden(t *testing.T) {
	q := &stubQueue{statusErr: fmt.Errorf("lookup analysis 7: %w", errors.New("pq: connection refused to 10.1.2.3"))}

	rr := serve(t, newMux(q, nil), http.MethodGet, "/analyses/7", "")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal server error", errorBody(t, rr))
}

func TestStatusHandler_WrongMethod(t *testing.T) {
	rr := serve(t, newMux(&stubQueue{}, nil), http.MethodDelete, "/analyses/7", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

/* ───────── recommendations ───────── */

func TestRecommendHandler(t *testing.T) {
	set := entity.RecommendationSet{
		Items:       []entity.Recommendation{{GrantID: 3, Title: "Rural Water Fund", Score: 0.9, Reason: "focus area match"}},
		Degraded:    true,
		Source:      entity.SourceFallback,
		GeneratedAt: generatedAt,
	}
	var gotOrg entity.Organization
	var gotLimit int
	svc := &stubService{recommendFn: func(org entity.Organization, limit int) (entity.RecommendationSet, error) {
		gotOrg, gotLimit = org, limit
		return set, nil
	}}

	rr := serve(t, newMux(nil, svc), http.MethodPost, "/recommendations",
		`{"organization":{"name":"Acme","mission":"clean water","focus_areas":["water"]},"limit":3}`)

	require.Equal(t, http.StatusOK, rr.Code, "degraded results are still served")
	assert.Equal(t, entity.Organization{Name: "Acme", Mission: "clean water", FocusAreas: []string{"water"}}, gotOrg)
	assert.Equal(t, 3, gotLimit)

	var got entity.RecommendationSet
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	if diff := cmp.Diff(set, got); diff != "" {
		t.Errorf("recommendations mismatch (-want +got):\n%s", diff)
	}
}

func TestRecommendHandler_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "empty body",
			body:     "",
			wantCode: http.StatusBadRequest,
			wantMsg:  "request body is required",
		},
		{
			name:     "malformed JSON",
			body:     `{"organization":`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "invalid JSON body",
		},
		{
			name:     "unknown field",
			body:     `{"organisation":{}}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "invalid JSON body",
		},
		{
			name:     "trailing data",
			body:     `{"limit":1}{"limit":2}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "invalid JSON body",
		},
		{
			name: "invalid profile",
			body: `{"organization":{"name":"Acme"}}`,
			err: fmt.Errorf("recommend: %w: %v", analysisUC.ErrInvalidRequest,
				&entity.ValidationError{Field: "organization", Message: "mission or focus_areas is required"}),
			wantCode: http.StatusBadRequest,
			wantMsg:  "recommend: invalid analysis request: organization: mission or focus_areas is required",
		},
		{
			name: "provider and fallback both failed",
			body: `{"organization":{"mission":"clean water"}}`,
			err: fmt.Errorf("recommend: %w", &analysisUC.CallError{
				Kind:        analysisUC.ProviderUnavailable,
				Operation:   "recommendation",
				Cause:       errors.New("anthropic: 529 overloaded, key sk-ant-abc"),
				FallbackErr: errors.New("no candidates"),
			}),
			wantCode: http.StatusServiceUnavailable,
			wantMsg:  "analysis is temporarily unavailable, please retry later",
		},
		{
			name:     "grant listing failed",
			body:     `{"organization":{"mission":"clean water"}}`,
			err:      fmt.Errorf("recommend: list open grants: %w", errors.New("db down")),
			wantCode: http.StatusInternalServerError,
			wantMsg:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &stubService{recommendFn: func(entity.Organization, int) (entity.RecommendationSet, error) {
				called = true
				return entity.RecommendationSet{}, tt.err
			}}

			rr := serve(t, newMux(nil, svc), http.MethodPost, "/recommendations", tt.body)

			assert.Equal(t, tt.wantCode, rr.Code)
			msg := errorBody(t, rr)
			assert.Equal(t, tt.wantMsg, msg)
			assert.NotContains(t, msg, "sk-ant")
			assert.Equal(t, tt.err != nil, called)
		})
	}
}

/* ───────── questions ───────── */

func TestAskHandler(t *testing.T) {
	answer := entity.Answer{Text: "Grant 3 funds wells.", GrantIDs: []int64{3}, Source: entity.SourceProvider, GeneratedAt: generatedAt}
	var gotQuestion string
	svc := &stubService{askFn: func(q string) (entity.Answer, error) {
		gotQuestion = q
		return answer, nil
	}}

	rr := serve(t, newMux(nil, svc), http.MethodPost, "/questions", `{"question":"Who funds wells?"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Who funds wells?", gotQuestion)

	var got entity.Answer
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	if diff := cmp.Diff(answer, got); diff != "" {
		t.Errorf("answer mismatch (-want +got):\n%s", diff)
	}
}

func TestAskHandler_EmptyQuestion(t *testing.T) {
	svc := &stubService{askFn: func(string) (entity.Answer, error) {
		return entity.Answer{}, fmt.Errorf("ask: %w: question is empty", analysisUC.ErrInvalidRequest)
	}}

	rr := serve(t, newMux(nil, svc), http.MethodPost, "/questions", `{"question":"  "}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, errorBody(t, rr), "question is empty")
}

func TestAskHandler_BodyTooLarge(t *testing.T) {
	svc := &stubService{askFn: func(string) (entity.Answer, error) {
		t.Fatal("service must not be called")
		return entity.Answer{}, nil
	}}
	mux := newMux(nil, svc)
	limited := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 16)
		mux.ServeHTTP(w, r)
	})

	rr := serve(t, limited, http.MethodPost, "/questions", `{"question":"`+strings.Repeat("x", 64)+`"}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, "request body must not exceed 16 bytes", errorBody(t, rr))
}
