// Package repository persists load verification audit records.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadVerification is one audit record for a photo verification attempt.
type LoadVerification struct {
	ID              uuid.UUID  `db:"id"`
	TenantID        uuid.UUID  `db:"tenant_id"`
	JobID           uuid.UUID  `db:"job_id"`
	ChecklistItemID *uuid.UUID `db:"checklist_item_id"`
	PhotoID         uuid.UUID  `db:"photo_id"`
	PhotoKey        string     `db:"photo_key"`
	Verified        bool       `db:"verified"`
	Confidence      float64    `db:"confidence"`
	FallbackUsed    bool       `db:"fallback_used"`
	MatchedLabels   []string   `db:"matched_labels"`
	MissingLabels   []string   `db:"missing_labels"`
	CapturedAt      *time.Time `db:"captured_at"`
	VerifiedBy      uuid.UUID  `db:"verified_by"`
	CreatedAt       time.Time  `db:"created_at"`
}

// Repository provides database operations for load verifications.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new verification repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts one audit row.
func (r *Repository) Record(ctx context.Context, rec *LoadVerification) error {
	query := `INSERT INTO load_verifications (id, tenant_id, job_id, checklist_item_id, photo_id,
		photo_key, verified, confidence, fallback_used, matched_labels, missing_labels,
		captured_at, verified_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query, rec.ID, rec.TenantID, rec.JobID, rec.ChecklistItemID,
		rec.PhotoID, rec.PhotoKey, rec.Verified, rec.Confidence, rec.FallbackUsed,
		rec.MatchedLabels, rec.MissingLabels, rec.CapturedAt, rec.VerifiedBy, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record load verification: %w", err)
	}
	return nil
}

// ListByJob returns the audit trail for a job, newest first.
func (r *Repository) ListByJob(ctx context.Context, jobID, tenantID uuid.UUID) ([]LoadVerification, error) {
	query := `SELECT id, tenant_id, job_id, checklist_item_id, photo_id, photo_key, verified,
		confidence, fallback_used, matched_labels, missing_labels, captured_at, verified_by, created_at
		FROM load_verifications
		WHERE job_id = $1 AND tenant_id = $2
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, jobID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list load verifications: %w", err)
	}
	defer rows.Close()

	records := make([]LoadVerification, 0)
	for rows.Next() {
		var rec LoadVerification
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.JobID, &rec.ChecklistItemID, &rec.PhotoID,
			&rec.PhotoKey, &rec.Verified, &rec.Confidence, &rec.FallbackUsed, &rec.MatchedLabels,
			&rec.MissingLabels, &rec.CapturedAt, &rec.VerifiedBy, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan load verification: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
