package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/takshit12/headycoasaas/internal/model"
)

// ErrNotFound is returned when no lab result matches the requested id.
var ErrNotFound = errors.New("lab result not found")

// LabResultRepository wraps all SQL used throughout the API and worker.
type LabResultRepository struct {
	pool *pgxpool.Pool
}

// NewLabResultRepository constructs a repository.
func NewLabResultRepository(pool *pgxpool.Pool) *LabResultRepository {
	return &LabResultRepository{pool: pool}
}

// Create inserts a pending record and fills in the generated id and creation
// time. The storage path must already be durably written before this runs.
func (r *LabResultRepository) Create(ctx context.Context, rec *model.LabResult) error {
	rec.Status = model.StatusPending
	rec.CreatedAt = time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO lab_results (created_at, user_id, file_name, storage_path, page_count, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, rec.CreatedAt, rec.UserID, rec.FileName, rec.StoragePath, rec.PageCount, rec.Status)
	if err := row.Scan(&rec.ID); err != nil {
		return fmt.Errorf("insert lab result: %w", err)
	}
	return nil
}

// Get returns a lab result by id.
func (r *LabResultRepository) Get(ctx context.Context, id int64) (*model.LabResult, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, created_at, user_id, file_name, storage_path, page_count, status, description, error_details
		FROM lab_results WHERE id=$1
	`, id)
	rec, err := scanLabResult(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select lab result: %w", err)
	}
	return rec, nil
}

// ListByUser returns the newest records owned by userID, newest first.
func (r *LabResultRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.LabResult, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, created_at, user_id, file_name, storage_path, page_count, status, description, error_details
		FROM lab_results WHERE user_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list lab results: %w", err)
	}
	defer rows.Close()
	out := make([]model.LabResult, 0, limit)
	for rows.Next() {
		rec, err := scanLabResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lab result: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list lab results: %w", err)
	}
	return out, nil
}

// MarkProcessing sets the status to processing.
func (r *LabResultRepository) MarkProcessing(ctx context.Context, id int64) (*model.LabResult, error) {
	return r.updateStatus(ctx, id, model.StatusProcessing, nil, nil)
}

// MarkCompleted stores the generated description and flips the record to its
// completed terminal state.
func (r *LabResultRepository) MarkCompleted(ctx context.Context, id int64, description string) (*model.LabResult, error) {
	return r.updateStatus(ctx, id, model.StatusCompleted, &description, nil)
}

// MarkError flips the record to its error terminal state with a diagnostic.
func (r *LabResultRepository) MarkError(ctx context.Context, id int64, details string) (*model.LabResult, error) {
	return r.updateStatus(ctx, id, model.StatusError, nil, &details)
}

func (r *LabResultRepository) updateStatus(ctx context.Context, id int64, status model.Status, description, details *string) (*model.LabResult, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE lab_results
		SET status=$1,
			description = COALESCE($2, description),
			error_details = COALESCE($3, error_details)
		WHERE id=$4
		RETURNING id, created_at, user_id, file_name, storage_path, page_count, status, description, error_details
	`, status, description, details, id)
	rec, err := scanLabResult(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update lab result: %w", err)
	}
	return rec, nil
}

func scanLabResult(row pgx.Row) (*model.LabResult, error) {
	var (
		rec         model.LabResult
		description sql.NullString
		details     sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.UserID, &rec.FileName, &rec.StoragePath,
		&rec.PageCount, &rec.Status, &description, &details); err != nil {
		return nil, err
	}
	if description.Valid {
		v := description.String
		rec.Description = &v
	}
	if details.Valid {
		v := details.String
		rec.ErrorDetails = &v
	}
	return &rec, nil
}
