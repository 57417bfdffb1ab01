package circuitbreaker

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Conn is the part of *sql.DB (or *sql.Tx) a StoreBreaker guards.
type Conn interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// StoreConfig is the breaker policy for the durable analysis store.
func StoreConfig() Config {
	return Config{
		Name:              "analysis-store",
		FailureThreshold:  5,
		ResetTimeout:      30 * time.Second,
		CallTimeout:       10 * time.Second,
		HalfOpenSuccesses: 2,
	}
}

// StoreBreaker runs SQL statements through a CircuitBreaker. While the circuit
// is open, statements fail with an *OpenError without reaching the database.
type StoreBreaker struct {
	cb   *CircuitBreaker
	conn Conn
}

// NewStoreBreaker guards conn with a breaker built from cfg.
func NewStoreBreaker(conn Conn, cfg Config, opts ...Option) *StoreBreaker {
	return &StoreBreaker{cb: New(cfg, opts...), conn: conn}
}

type scanFailure struct{ err error }

// Query runs query and hands every row to scan, all within one guarded call.
// The rows are closed before Query returns. An error from scan aborts the
// iteration and is returned as is; it does not count against the breaker.
// Once the call times out the rows' context is cancelled, so a late scan stops
// at the next row.
func (s *StoreBreaker) Query(ctx context.Context, query string, scan func(*sql.Rows) error, args ...any) error {
	res, err := s.cb.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		rows, err := s.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			if err := scan(rows); err != nil {
				return scanFailure{err}, nil
			}
		}
		return nil, rows.Err()
	})
	if err != nil {
		return err
	}
	if f, ok := res.(scanFailure); ok {
		return f.err
	}
	return nil
}

// Exec runs a statement and returns the number of affected rows.
func (s *StoreBreaker) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.cb.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		r, err := s.conn.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		return r.RowsAffected()
	})
	if err != nil {
		return 0, err
	}
	n, ok := res.(int64)
	if !ok {
		return 0, errors.New("store breaker: unexpected exec result")
	}
	return n, nil
}

// IsOpen reports whether statements are currently rejected.
func (s *StoreBreaker) IsOpen() bool { return s.cb.IsOpen() }

// Breaker exposes the underlying breaker for health reporting.
func (s *StoreBreaker) Breaker() *CircuitBreaker { return s.cb }
