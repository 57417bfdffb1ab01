package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"grant-insight/internal/domain/entity"
	"grant-insight/internal/infra/adapter/persistence/postgres"
	"grant-insight/internal/resilience/circuitbreaker"
)

var analysisColumns = []string{
	"document_id", "status", "result", "error_message", "degraded", "updated_at",
}

/* ──────────────────────────────── ヘルパ ──────────────────────────────── */

func newAnalysisRepo(t *testing.T) (*postgres.AnalysisRepo, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	cfg := circuitbreaker.StoreConfig()
	cfg.Name = t.Name()
	repo := postgres.NewAnalysisRepo(circuitbreaker.NewStoreBreaker(db, cfg)).(*postgres.AnalysisRepo)
	return repo, mock, func() { _ = db.Close() }
}

/* ──────────────────────────────── 1. Get ──────────────────────────────── */

func TestAnalysisRepo_Get_Completed(t *testing.T) {
	repo, mock, done := newAnalysisRepo(t)
	defer done()

	generated := time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)
	updated := generated.Add(time.Minute)
	want := &entity.AnalysisRecord{
		SubjectID: 5,
		Status:    entity.AnalysisCompleted,
		Result: &entity.AnalysisResult{
			Summary: "Well construction plan", Topics: []string{"water"}, Score: 0.8,
			Source: entity.SourceProvider, GeneratedAt: generated,
		},
		UpdatedAt: updated,
	}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM document_analyses`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(analysisColumns).AddRow(
			int64(5), "completed",
			[]byte(`{"summary":"Well construction plan","topics":["water"],"score":0.8,"degraded":false,"source":"provider","generated_at":"2026-02-02T08:00:00Z"}`),
			nil, false, updated,
		))

	got, err := repo.Get(context.Background(), 5)
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAnalysisRepo_Get_ErrorRecord(t *testing.T) {
	repo, mock, done := newAnalysisRepo(t)
	defer done()

	updated := time.Now().UTC()
	mock.ExpectQuery(`FROM document_analyses`).
		WithArgs(int64(6)).
		WillReturnRows(sqlmock.NewRows(analysisColumns).AddRow(
			int64(6), "error", nil, "provider unavailable", false, updated,
		))

	got, err := repo.Get(context.Background(), 6)
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if got.Status != entity.AnalysisError || got.Result != nil || got.ErrorMessage != "provider unavailable" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestAnalysisRepo_Get_NotFound(t *testing.T) {
	repo, mock, done := newAnalysisRepo(t)
	defer done()

	mock.ExpectQuery(`FROM document_analyses`).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows(analysisColumns))

	got, err := repo.Get(context.Background(), 8)
	if err != nil || got != nil {
		t.Fatalf("Get got=%v err=%v, want nil, nil", got, err)
	}
}

/* ──────────────────────────────── 2. Upsert ──────────────────────────────── */

func TestAnalysisRepo_Upsert(t *testing.T) {
	repo, mock, done := newAnalysisRepo(t)
	defer done()

	updated := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (document_id) DO UPDATE`)).
		WithArgs(int64(5), "completed", sqlmock.AnyArg(), sqlmock.AnyArg(), true, updated).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &entity.AnalysisRecord{
		SubjectID: 5,
		Status:    entity.AnalysisCompleted,
		Result:    &entity.AnalysisResult{Summary: "s", Degraded: true, Source: entity.SourceFallback},
		Degraded:  true,
		UpdatedAt: updated,
	})
	if err != nil {
		t.Fatalf("Upsert err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAnalysisRepo_CircuitOpensOnDatabaseOutage(t *testing.T) {
	repo, mock, done := newAnalysisRepo(t)
	defer done()

	dbErr := errors.New("connection refused")
	for i := 0; i < 5; i++ {
		mock.ExpectExec(`INSERT INTO document_analyses`).WillReturnError(dbErr)
	}

	rec := &entity.AnalysisRecord{SubjectID: 1, Status: entity.AnalysisError, ErrorMessage: "x", UpdatedAt: time.Now()}
	for i := 0; i < 5; i++ {
		if err := repo.Upsert(context.Background(), rec); !errors.Is(err, dbErr) {
			t.Fatalf("attempt %d: err=%v, want wrapped %v", i+1, err, dbErr)
		}
	}

	err := repo.Upsert(context.Background(), rec)
	if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Fatalf("err=%v, want ErrCircuitOpen", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
