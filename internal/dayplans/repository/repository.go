package repository

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

// DayPlan represents the day plan database model.
type DayPlan struct {
	ID                       uuid.UUID `db:"id"`
	TenantID                 uuid.UUID `db:"tenant_id"`
	TechnicianID             uuid.UUID `db:"technician_id"`
	PlanDate                 time.Time `db:"plan_date"`
	Status                   string    `db:"status"`
	RouteData                []byte    `db:"route_data"`
	TotalDistanceMiles       *float64  `db:"total_distance_miles"`
	EstimatedDurationMinutes *int      `db:"estimated_duration_minutes"`
	CreatedAt                time.Time `db:"created_at"`
	UpdatedAt                time.Time `db:"updated_at"`
}

// ScheduleEvent represents a scheduled stop, break, or travel block.
type ScheduleEvent struct {
	ID             uuid.UUID  `db:"id"`
	DayPlanID      uuid.UUID  `db:"day_plan_id"`
	TenantID       uuid.UUID  `db:"tenant_id"`
	JobID          *uuid.UUID `db:"job_id"`
	EventType      string     `db:"event_type"`
	SequenceOrder  int        `db:"sequence_order"`
	Status         string     `db:"status"`
	ScheduledStart *time.Time `db:"scheduled_start"`
	ScheduledEnd   *time.Time `db:"scheduled_end"`
	DurationMin    int        `db:"duration_minutes"`
	Address        *string    `db:"address"`
	LocationLat    *float64   `db:"location_lat"`
	LocationLng    *float64   `db:"location_lng"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// SequenceUpdate pairs an event with its new position.
type SequenceUpdate struct {
	EventID       uuid.UUID
	SequenceOrder int
}

const (
	dayPlanNotFoundMsg = "day plan not found"
	eventNotFoundMsg   = "schedule event not found"
)

// Repository provides database operations for day plans.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new day plans repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const dayPlanColumns = `id, tenant_id, technician_id, plan_date, status, route_data,
	total_distance_miles, estimated_duration_minutes, created_at, updated_at`

const eventColumns = `id, day_plan_id, tenant_id, job_id, event_type, sequence_order, status,
	scheduled_start, scheduled_end, duration_minutes, address, location_lat, location_lng,
	created_at, updated_at`

// Create inserts a day plan and its initial events in one transaction.
func (r *Repository) Create(ctx context.Context, plan *DayPlan, events []ScheduleEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	query := `
		INSERT INTO day_plans (
			id, tenant_id, technician_id, plan_date, status, route_data,
			total_distance_miles, estimated_duration_minutes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = tx.Exec(ctx, query,
		plan.ID, plan.TenantID, plan.TechnicianID, plan.PlanDate, plan.Status, plan.RouteData,
		plan.TotalDistanceMiles, plan.EstimatedDurationMinutes, plan.CreatedAt, plan.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("a day plan already exists for this technician and date")
		}
		return fmt.Errorf("failed to create day plan: %w", err)
	}

	for i := range events {
		if err := insertEvent(ctx, tx, &events[i]); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a day plan by its ID, scoped to the tenant.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*DayPlan, error) {
	query := `SELECT ` + dayPlanColumns + ` FROM day_plans WHERE id = $1 AND tenant_id = $2`

	plan, err := scanDayPlan(r.pool.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(dayPlanNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get day plan: %w", err)
	}

	return plan, nil
}

// ListByDate returns all plans for a date, optionally filtered by technician.
func (r *Repository) ListByDate(ctx context.Context, tenantID uuid.UUID, date time.Time, technicianID *uuid.UUID) ([]DayPlan, error) {
	query := `SELECT ` + dayPlanColumns + ` FROM day_plans
		WHERE tenant_id = $1 AND plan_date = $2
		AND ($3::uuid IS NULL OR technician_id = $3)
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, tenantID, date, technicianID)
	if err != nil {
		return nil, fmt.Errorf("failed to list day plans: %w", err)
	}
	defer rows.Close()

	plans := make([]DayPlan, 0)
	for rows.Next() {
		plan, err := scanDayPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan day plan: %w", err)
		}
		plans = append(plans, *plan)
	}

	return plans, rows.Err()
}

// ListEvents returns all events for a plan ordered by sequence, with
// creation time breaking ties.
func (r *Repository) ListEvents(ctx context.Context, dayPlanID uuid.UUID, tenantID uuid.UUID) ([]ScheduleEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM schedule_events
		WHERE day_plan_id = $1 AND tenant_id = $2
		ORDER BY sequence_order ASC, created_at ASC`

	rows, err := r.pool.Query(ctx, query, dayPlanID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule events: %w", err)
	}
	defer rows.Close()

	events := make([]ScheduleEvent, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule event: %w", err)
		}
		events = append(events, *event)
	}

	return events, rows.Err()
}

// GetEvent retrieves a single schedule event within a plan.
func (r *Repository) GetEvent(ctx context.Context, dayPlanID, eventID uuid.UUID, tenantID uuid.UUID) (*ScheduleEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM schedule_events
		WHERE id = $1 AND day_plan_id = $2 AND tenant_id = $3`

	event, err := scanEvent(r.pool.QueryRow(ctx, query, eventID, dayPlanID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(eventNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get schedule event: %w", err)
	}

	return event, nil
}

// AddJobEventCapped inserts a job event while holding a row lock on the plan.
// The plan row is locked FOR UPDATE, active job events are counted, and the
// insert is rejected when the count has reached maxJobs. Concurrent inserts
// serialize on the lock so the cap cannot be raced past.
func (r *Repository) AddJobEventCapped(ctx context.Context, event *ScheduleEvent, maxJobs int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var planID uuid.UUID
	lockQuery := `SELECT id FROM day_plans WHERE id = $1 AND tenant_id = $2 FOR UPDATE`
	if err := tx.QueryRow(ctx, lockQuery, event.DayPlanID, event.TenantID).Scan(&planID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound(dayPlanNotFoundMsg)
		}
		return fmt.Errorf("failed to lock day plan: %w", err)
	}

	var activeJobs int
	countQuery := `SELECT COUNT(*) FROM schedule_events
		WHERE day_plan_id = $1 AND event_type = 'job' AND status != 'cancelled'`
	if err := tx.QueryRow(ctx, countQuery, event.DayPlanID).Scan(&activeJobs); err != nil {
		return fmt.Errorf("failed to count job events: %w", err)
	}

	if activeJobs >= maxJobs {
		return apperr.CapacityExceeded(fmt.Sprintf("maximum of %d jobs per technician per day", maxJobs))
	}

	if err := insertEvent(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// AddEvent inserts a non-job event (break or travel). No cap applies.
func (r *Repository) AddEvent(ctx context.Context, event *ScheduleEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := insertEvent(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// UpdateStatus sets the plan status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, status string) error {
	query := `UPDATE day_plans SET status = $3, updated_at = $4 WHERE id = $1 AND tenant_id = $2`

	result, err := r.pool.Exec(ctx, query, id, tenantID, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update day plan status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(dayPlanNotFoundMsg)
	}

	return nil
}

// UpdateRouteData persists the optimization outcome on the plan.
func (r *Repository) UpdateRouteData(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, routeData []byte, totalDistanceMiles float64, estimatedDurationMinutes int) error {
	query := `UPDATE day_plans SET route_data = $3, total_distance_miles = $4,
		estimated_duration_minutes = $5, updated_at = $6
		WHERE id = $1 AND tenant_id = $2`

	result, err := r.pool.Exec(ctx, query, id, tenantID, routeData, totalDistanceMiles, estimatedDurationMinutes, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update route data: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(dayPlanNotFoundMsg)
	}

	return nil
}

// ApplySequences persists new sequence positions and inserts break events
// produced by an optimization run, all in one transaction. Each run owns
// break placement: pending breaks from earlier runs are removed first so
// repeated optimization cannot accumulate breaks or collide sequences.
func (r *Repository) ApplySequences(ctx context.Context, dayPlanID uuid.UUID, tenantID uuid.UUID, updates []SequenceUpdate, newEvents []ScheduleEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	clearQuery := `DELETE FROM schedule_events
		WHERE day_plan_id = $1 AND tenant_id = $2 AND event_type = 'break' AND status = 'pending'`
	if _, err := tx.Exec(ctx, clearQuery, dayPlanID, tenantID); err != nil {
		return fmt.Errorf("failed to clear pending break events: %w", err)
	}

	query := `UPDATE schedule_events SET sequence_order = $4, updated_at = $5
		WHERE id = $1 AND day_plan_id = $2 AND tenant_id = $3`

	now := time.Now()
	for _, update := range updates {
		result, err := tx.Exec(ctx, query, update.EventID, dayPlanID, tenantID, update.SequenceOrder, now)
		if err != nil {
			return fmt.Errorf("failed to update event sequence: %w", err)
		}
		if result.RowsAffected() == 0 {
			return apperr.NotFound(eventNotFoundMsg)
		}
	}

	for i := range newEvents {
		if err := insertEvent(ctx, tx, &newEvents[i]); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// CompleteEvent marks a pending event completed.
func (r *Repository) CompleteEvent(ctx context.Context, dayPlanID, eventID uuid.UUID, tenantID uuid.UUID) (*ScheduleEvent, error) {
	query := `UPDATE schedule_events SET status = 'completed', updated_at = $4
		WHERE id = $1 AND day_plan_id = $2 AND tenant_id = $3 AND status = 'pending'
		RETURNING ` + eventColumns

	event, err := scanEvent(r.pool.QueryRow(ctx, query, eventID, dayPlanID, tenantID, time.Now()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("pending schedule event not found")
		}
		return nil, fmt.Errorf("failed to complete schedule event: %w", err)
	}

	return event, nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, event *ScheduleEvent) error {
	query := `
		INSERT INTO schedule_events (
			id, day_plan_id, tenant_id, job_id, event_type, sequence_order, status,
			scheduled_start, scheduled_end, duration_minutes, address,
			location_lat, location_lng, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := tx.Exec(ctx, query,
		event.ID, event.DayPlanID, event.TenantID, event.JobID, event.EventType,
		event.SequenceOrder, event.Status, event.ScheduledStart, event.ScheduledEnd,
		event.DurationMin, event.Address, event.LocationLat, event.LocationLng,
		event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert schedule event: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDayPlan(row rowScanner) (*DayPlan, error) {
	var plan DayPlan
	err := row.Scan(
		&plan.ID, &plan.TenantID, &plan.TechnicianID, &plan.PlanDate, &plan.Status,
		&plan.RouteData, &plan.TotalDistanceMiles, &plan.EstimatedDurationMinutes,
		&plan.CreatedAt, &plan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func scanEvent(row rowScanner) (*ScheduleEvent, error) {
	var event ScheduleEvent
	err := row.Scan(
		&event.ID, &event.DayPlanID, &event.TenantID, &event.JobID, &event.EventType,
		&event.SequenceOrder, &event.Status, &event.ScheduledStart, &event.ScheduledEnd,
		&event.DurationMin, &event.Address, &event.LocationLat, &event.LocationLng,
		&event.CreatedAt, &event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
