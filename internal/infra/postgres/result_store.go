package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dus-exam-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ResultStore appends results to Postgres. Rows are never updated.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// SaveResult inserts result; re-saving an existing id leaves the stored row untouched.
func (s *ResultStore) SaveResult(ctx context.Context, result domain.Result) (string, error) {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO results (id, exam_id, student_name, total_net, completed_at, data)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		result.ID, result.ExamID, result.StudentName, result.TotalNet, result.CompletedAt, data)
	if err != nil {
		return "", fmt.Errorf("insert result: %w", err)
	}
	return result.ID, nil
}

func (s *ResultStore) LoadResult(ctx context.Context, resultID string) (domain.Result, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM results WHERE id=$1`, resultID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Result{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("load result: %w", err)
	}
	return decodeResult(raw)
}

func (s *ResultStore) LoadResultsForExam(ctx context.Context, examID string) ([]domain.Result, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM results WHERE exam_id=$1`, examID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	return collect(rows)
}

// ListRecent returns up to limit results, newest first. A non-positive limit returns all.
func (s *ResultStore) ListRecent(ctx context.Context, limit int) ([]domain.Result, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.pool.Query(ctx, `SELECT data FROM results ORDER BY completed_at DESC LIMIT $1`, limit)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT data FROM results ORDER BY completed_at DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("query recent results: %w", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]domain.Result, error) {
	defer rows.Close()
	var out []domain.Result
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		result, err := decodeResult(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}

func decodeResult(raw []byte) (domain.Result, error) {
	var result domain.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.Result{}, fmt.Errorf("unmarshal result: %w", err)
	}
	return result, nil
}
