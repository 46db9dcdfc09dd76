package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type CreateImportRunParams struct {
	CreatedByUserID *uuid.UUID
	Kind            string
	Mode            string
	Filename        string
	FileSHA256      string
}

func (s *Store) CreateImportRun(ctx context.Context, params CreateImportRunParams) (ImportRun, error) {
	var run ImportRun
	err := s.db.QueryRow(ctx, `
		INSERT INTO import_runs (created_by_user_id, kind, mode, filename, file_sha256)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_by_user_id, kind, mode, filename, file_sha256, status, summary, created_at, completed_at`,
		params.CreatedByUserID, params.Kind, params.Mode, params.Filename, params.FileSHA256).
		Scan(&run.ID, &run.CreatedByUserID, &run.Kind, &run.Mode, &run.Filename, &run.FileSHA256, &run.Status, &run.Summary, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		return ImportRun{}, fmt.Errorf("insert import run: %w", err)
	}
	return run, nil
}

func (s *Store) CompleteImportRun(ctx context.Context, id uuid.UUID, status string, summary []byte) (ImportRun, error) {
	var run ImportRun
	err := s.db.QueryRow(ctx, `
		UPDATE import_runs
		SET status = $2, summary = $3, completed_at = now()
		WHERE id = $1
		RETURNING id, created_by_user_id, kind, mode, filename, file_sha256, status, summary, created_at, completed_at`,
		id, status, summary).
		Scan(&run.ID, &run.CreatedByUserID, &run.Kind, &run.Mode, &run.Filename, &run.FileSHA256, &run.Status, &run.Summary, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		return ImportRun{}, fmt.Errorf("complete import run: %w", err)
	}
	return run, nil
}

func (s *Store) GetImportRunByID(ctx context.Context, id uuid.UUID) (ImportRun, error) {
	var run ImportRun
	err := s.db.QueryRow(ctx, `
		SELECT id, created_by_user_id, kind, mode, filename, file_sha256, status, summary, created_at, completed_at
		FROM import_runs
		WHERE id = $1`,
		id).
		Scan(&run.ID, &run.CreatedByUserID, &run.Kind, &run.Mode, &run.Filename, &run.FileSHA256, &run.Status, &run.Summary, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		return ImportRun{}, err
	}
	return run, nil
}

type InsertImportRowResultParams struct {
	ImportRunID uuid.UUID
	RowNumber   int
	Severity    string
	EntityType  string
	Result      string
	Message     string
}

func (s *Store) InsertImportRowResult(ctx context.Context, params InsertImportRowResultParams) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO import_row_results (import_run_id, row_number, severity, entity_type, result, message)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		params.ImportRunID, params.RowNumber, params.Severity, params.EntityType, params.Result, params.Message)
	if err != nil {
		return fmt.Errorf("insert import row result: %w", err)
	}
	return nil
}

func (s *Store) ListImportRowResults(ctx context.Context, importRunID uuid.UUID) ([]ImportRowResult, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, import_run_id, row_number, severity, entity_type, result, message, created_at
		FROM import_row_results
		WHERE import_run_id = $1
		ORDER BY row_number, created_at`,
		importRunID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]ImportRowResult, 0, 64)
	for rows.Next() {
		var r ImportRowResult
		if err := rows.Scan(&r.ID, &r.ImportRunID, &r.RowNumber, &r.Severity, &r.EntityType, &r.Result, &r.Message, &r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
