package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"grant-insight/internal/domain/entity"
	"grant-insight/internal/repository"
	"grant-insight/internal/resilience/circuitbreaker"
)

// AnalysisRepo stores document analyses. Every statement goes through a
// StoreBreaker so an unavailable database fails fast.
type AnalysisRepo struct{ store *circuitbreaker.StoreBreaker }

func NewAnalysisRepo(store *circuitbreaker.StoreBreaker) repository.AnalysisRepository {
	return &AnalysisRepo{store: store}
}

func (repo *AnalysisRepo) Get(ctx context.Context, subjectID int64) (*entity.AnalysisRecord, error) {
	const query = `
SELECT document_id, status, result, error_message, degraded, updated_at
FROM document_analyses
WHERE document_id = $1
LIMIT 1`
	var rec *entity.AnalysisRecord
	err := repo.store.Query(ctx, query, func(rows *sql.Rows) error {
		var r entity.AnalysisRecord
		var status string
		var resultJSON []byte
		var errMsg sql.NullString
		if err := rows.Scan(&r.SubjectID, &status, &resultJSON, &errMsg, &r.Degraded, &r.UpdatedAt); err != nil {
			return err
		}
		r.Status = entity.AnalysisStatus(status)
		r.ErrorMessage = errMsg.String
		if len(resultJSON) > 0 {
			var result entity.AnalysisResult
			if err := json.Unmarshal(resultJSON, &result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
			r.Result = &result
		}
		rec = &r
		return nil
	}, subjectID)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return rec, nil
}

// Upsert writes the record, replacing any previous one for the same document.
func (repo *AnalysisRepo) Upsert(ctx context.Context, record *entity.AnalysisRecord) error {
	var resultJSON []byte
	if record.Result != nil {
		var err error
		resultJSON, err = json.Marshal(record.Result)
		if err != nil {
			return fmt.Errorf("Upsert: marshal result: %w", err)
		}
	}

	const query = `
INSERT INTO document_analyses (document_id, status, result, error_message, degraded, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (document_id) DO UPDATE SET
       status        = EXCLUDED.status,
       result        = EXCLUDED.result,
       error_message = EXCLUDED.error_message,
       degraded      = EXCLUDED.degraded,
       updated_at    = EXCLUDED.updated_at`
	_, err := repo.store.Exec(ctx, query,
		record.SubjectID, string(record.Status), resultJSON,
		nullString(record.ErrorMessage), record.Degraded, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
