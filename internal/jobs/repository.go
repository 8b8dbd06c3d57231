// Package jobs provides tenant-scoped access to service jobs.
// Other modules (day plans, kits, verification) depend on it for job
// lookup and geocoded locations, never on each other's tables.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldservice_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Job represents the job database model.
type Job struct {
	ID           uuid.UUID  `db:"id"`
	TenantID     uuid.UUID  `db:"tenant_id"`
	CustomerName string     `db:"customer_name"`
	Address      string     `db:"address"`
	Latitude     *float64   `db:"latitude"`
	Longitude    *float64   `db:"longitude"`
	Status       string     `db:"status"`
	DurationMin  int        `db:"duration_minutes"`
	ScheduledAt  *time.Time `db:"scheduled_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// Location is a job's geocoded position.
type Location struct {
	JobID     uuid.UUID
	Address   string
	Latitude  float64
	Longitude float64
}

// HasCoordinates reports whether the job has been geocoded.
func (j *Job) HasCoordinates() bool {
	return j.Latitude != nil && j.Longitude != nil
}

const jobNotFoundMsg = "job not found"

// Repository provides database operations for jobs.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new jobs repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID retrieves a job by its ID, scoped to the tenant.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*Job, error) {
	var job Job
	query := `SELECT id, tenant_id, customer_name, address, latitude, longitude, status,
		duration_minutes, scheduled_at, created_at, updated_at
		FROM jobs WHERE id = $1 AND tenant_id = $2`

	err := r.pool.QueryRow(ctx, query, id, tenantID).Scan(
		&job.ID, &job.TenantID, &job.CustomerName, &job.Address, &job.Latitude, &job.Longitude,
		&job.Status, &job.DurationMin, &job.ScheduledAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(jobNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// GetLocations returns geocoded locations for the given jobs.
// Jobs without coordinates are omitted from the result.
func (r *Repository) GetLocations(ctx context.Context, ids []uuid.UUID, tenantID uuid.UUID) (map[uuid.UUID]Location, error) {
	locations := make(map[uuid.UUID]Location, len(ids))
	if len(ids) == 0 {
		return locations, nil
	}

	query := `SELECT id, address, latitude, longitude
		FROM jobs
		WHERE id = ANY($1) AND tenant_id = $2 AND latitude IS NOT NULL AND longitude IS NOT NULL`

	rows, err := r.pool.Query(ctx, query, ids, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job locations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.JobID, &loc.Address, &loc.Latitude, &loc.Longitude); err != nil {
			return nil, fmt.Errorf("failed to scan job location: %w", err)
		}
		locations[loc.JobID] = loc
	}

	return locations, rows.Err()
}

// UpdateStatus updates a job's status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, status string) error {
	query := `UPDATE jobs SET status = $3, updated_at = $4 WHERE id = $1 AND tenant_id = $2`

	result, err := r.pool.Exec(ctx, query, id, tenantID, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(jobNotFoundMsg)
	}

	return nil
}
