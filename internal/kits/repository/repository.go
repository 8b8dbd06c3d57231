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

// Kit represents the kit database model.
type Kit struct {
	ID        uuid.UUID `db:"id"`
	TenantID  uuid.UUID `db:"tenant_id"`
	KitCode   string    `db:"kit_code"`
	Name      string    `db:"name"`
	Category  string    `db:"category"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// KitItem is a line in a kit's base item list.
type KitItem struct {
	ID         uuid.UUID `db:"id"`
	KitID      uuid.UUID `db:"kit_id"`
	ItemType   string    `db:"item_type"`
	ItemRefID  uuid.UUID `db:"item_ref_id"`
	Name       string    `db:"name"`
	Quantity   int       `db:"quantity"`
	Unit       string    `db:"unit"`
	IsRequired bool      `db:"is_required"`
}

// KitVariant is a conditional variation of a kit. Conditions, Additions and
// Removals are stored as JSON; Position preserves declaration order, which
// decides matching priority.
type KitVariant struct {
	ID          uuid.UUID `db:"id"`
	KitID       uuid.UUID `db:"kit_id"`
	VariantCode string    `db:"variant_code"`
	Conditions  []byte    `db:"conditions"`
	Additions   []byte    `db:"additions"`
	Removals    []byte    `db:"removals"`
	Position    int       `db:"position"`
}

// JobKit links a kit to a job.
type JobKit struct {
	ID                 uuid.UUID  `db:"id"`
	TenantID           uuid.UUID  `db:"tenant_id"`
	JobID              uuid.UUID  `db:"job_id"`
	KitID              uuid.UUID  `db:"kit_id"`
	VariantID          *uuid.UUID `db:"variant_id"`
	ContainerID        *uuid.UUID `db:"container_id"`
	AssignedBy         uuid.UUID  `db:"assigned_by"`
	AssignedAt         time.Time  `db:"assigned_at"`
	VerificationStatus string     `db:"verification_status"`
	VerifiedBy         *uuid.UUID `db:"verified_by"`
	VerifiedAt         *time.Time `db:"verified_at"`
	Notes              *string    `db:"notes"`
}

// ChecklistItem is a snapshotted kit item for one job.
type ChecklistItem struct {
	ID               uuid.UUID `db:"id"`
	TenantID         uuid.UUID `db:"tenant_id"`
	JobID            uuid.UUID `db:"job_id"`
	KitID            uuid.UUID `db:"kit_id"`
	ItemType         string    `db:"item_type"`
	ItemRefID        uuid.UUID `db:"item_ref_id"`
	Name             string    `db:"name"`
	QuantityRequired int       `db:"quantity_required"`
	QuantityVerified int       `db:"quantity_verified"`
	Unit             string    `db:"unit"`
	IsRequired       bool      `db:"is_required"`
	CheckStatus      string    `db:"check_status"`
	PhotoIDs         []byte    `db:"photo_ids"`
	Notes            *string   `db:"notes"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// ChecklistItemUpdate carries verification results for one checklist row.
type ChecklistItemUpdate struct {
	ID               uuid.UUID
	QuantityVerified int
	CheckStatus      string
	PhotoIDs         []byte
	Notes            *string
}

// MissFrequency is an aggregate of missing checklist items.
type MissFrequency struct {
	ItemRefID uuid.UUID
	Name      string
	Count     int
}

// AnalyticsRow is the raw aggregate behind kit analytics.
type AnalyticsRow struct {
	UsageCount        int
	VerifiedCount     int
	CompleteCount     int
	AvgVerifyDuration *time.Duration
}

const (
	kitNotFoundMsg    = "kit not found"
	jobKitNotFoundMsg = "kit is not assigned to this job"
)

// Repository provides database operations for kits.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new kits repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateKit inserts a kit with its items and variants in one transaction.
func (r *Repository) CreateKit(ctx context.Context, kit *Kit, items []KitItem, variants []KitVariant) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	kitQuery := `INSERT INTO kits (id, tenant_id, kit_code, name, category, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = tx.Exec(ctx, kitQuery, kit.ID, kit.TenantID, kit.KitCode, kit.Name, kit.Category, kit.CreatedAt, kit.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("a kit with this code already exists")
		}
		return fmt.Errorf("failed to create kit: %w", err)
	}

	itemQuery := `INSERT INTO kit_items (id, kit_id, item_type, item_ref_id, name, quantity, unit, is_required)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, item := range items {
		if _, err := tx.Exec(ctx, itemQuery, item.ID, item.KitID, item.ItemType, item.ItemRefID,
			item.Name, item.Quantity, item.Unit, item.IsRequired); err != nil {
			return fmt.Errorf("failed to create kit item: %w", err)
		}
	}

	variantQuery := `INSERT INTO kit_variants (id, kit_id, variant_code, conditions, additions, removals, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, variant := range variants {
		if _, err := tx.Exec(ctx, variantQuery, variant.ID, variant.KitID, variant.VariantCode,
			variant.Conditions, variant.Additions, variant.Removals, variant.Position); err != nil {
			return fmt.Errorf("failed to create kit variant: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetKit retrieves a kit with its items and variants.
func (r *Repository) GetKit(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*Kit, []KitItem, []KitVariant, error) {
	var kit Kit
	kitQuery := `SELECT id, tenant_id, kit_code, name, category, created_at, updated_at
		FROM kits WHERE id = $1 AND tenant_id = $2`
	err := r.pool.QueryRow(ctx, kitQuery, id, tenantID).Scan(
		&kit.ID, &kit.TenantID, &kit.KitCode, &kit.Name, &kit.Category, &kit.CreatedAt, &kit.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil, apperr.NotFound(kitNotFoundMsg)
		}
		return nil, nil, nil, fmt.Errorf("failed to get kit: %w", err)
	}

	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	variants, err := r.listVariants(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}

	return &kit, items, variants, nil
}

func (r *Repository) listItems(ctx context.Context, kitID uuid.UUID) ([]KitItem, error) {
	query := `SELECT id, kit_id, item_type, item_ref_id, name, quantity, unit, is_required
		FROM kit_items WHERE kit_id = $1 ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query, kitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list kit items: %w", err)
	}
	defer rows.Close()

	items := make([]KitItem, 0)
	for rows.Next() {
		var item KitItem
		if err := rows.Scan(&item.ID, &item.KitID, &item.ItemType, &item.ItemRefID,
			&item.Name, &item.Quantity, &item.Unit, &item.IsRequired); err != nil {
			return nil, fmt.Errorf("failed to scan kit item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *Repository) listVariants(ctx context.Context, kitID uuid.UUID) ([]KitVariant, error) {
	query := `SELECT id, kit_id, variant_code, conditions, additions, removals, position
		FROM kit_variants WHERE kit_id = $1 ORDER BY position ASC`

	rows, err := r.pool.Query(ctx, query, kitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list kit variants: %w", err)
	}
	defer rows.Close()

	variants := make([]KitVariant, 0)
	for rows.Next() {
		var variant KitVariant
		if err := rows.Scan(&variant.ID, &variant.KitID, &variant.VariantCode,
			&variant.Conditions, &variant.Additions, &variant.Removals, &variant.Position); err != nil {
			return nil, fmt.Errorf("failed to scan kit variant: %w", err)
		}
		variants = append(variants, variant)
	}

	return variants, rows.Err()
}

// AssignKit inserts the job_kits row and the checklist snapshot together.
func (r *Repository) AssignKit(ctx context.Context, jobKit *JobKit, checklist []ChecklistItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	jobKitQuery := `INSERT INTO job_kits (id, tenant_id, job_id, kit_id, variant_id, container_id,
		assigned_by, assigned_at, verification_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = tx.Exec(ctx, jobKitQuery, jobKit.ID, jobKit.TenantID, jobKit.JobID, jobKit.KitID,
		jobKit.VariantID, jobKit.ContainerID, jobKit.AssignedBy, jobKit.AssignedAt, jobKit.VerificationStatus)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("kit is already assigned to this job")
		}
		return fmt.Errorf("failed to assign kit: %w", err)
	}

	itemQuery := `INSERT INTO job_checklist_items (id, tenant_id, job_id, kit_id, item_type, item_ref_id,
		name, quantity_required, quantity_verified, unit, is_required, check_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	for _, item := range checklist {
		if _, err := tx.Exec(ctx, itemQuery, item.ID, item.TenantID, item.JobID, item.KitID,
			item.ItemType, item.ItemRefID, item.Name, item.QuantityRequired, item.QuantityVerified,
			item.Unit, item.IsRequired, item.CheckStatus, item.CreatedAt, item.UpdatedAt); err != nil {
			return fmt.Errorf("failed to snapshot checklist item: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetJobKit retrieves the assignment row for a job/kit pair.
func (r *Repository) GetJobKit(ctx context.Context, jobID, kitID uuid.UUID, tenantID uuid.UUID) (*JobKit, error) {
	var jobKit JobKit
	query := `SELECT id, tenant_id, job_id, kit_id, variant_id, container_id, assigned_by, assigned_at,
		verification_status, verified_by, verified_at, notes
		FROM job_kits WHERE job_id = $1 AND kit_id = $2 AND tenant_id = $3`

	err := r.pool.QueryRow(ctx, query, jobID, kitID, tenantID).Scan(
		&jobKit.ID, &jobKit.TenantID, &jobKit.JobID, &jobKit.KitID, &jobKit.VariantID,
		&jobKit.ContainerID, &jobKit.AssignedBy, &jobKit.AssignedAt, &jobKit.VerificationStatus,
		&jobKit.VerifiedBy, &jobKit.VerifiedAt, &jobKit.Notes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(jobKitNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get job kit: %w", err)
	}

	return &jobKit, nil
}

// ListChecklist returns the checklist snapshot for a job/kit pair.
func (r *Repository) ListChecklist(ctx context.Context, jobID, kitID uuid.UUID, tenantID uuid.UUID) ([]ChecklistItem, error) {
	query := `SELECT id, tenant_id, job_id, kit_id, item_type, item_ref_id, name, quantity_required,
		quantity_verified, unit, is_required, check_status, photo_ids, notes, created_at, updated_at
		FROM job_checklist_items
		WHERE job_id = $1 AND kit_id = $2 AND tenant_id = $3
		ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query, jobID, kitID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checklist items: %w", err)
	}
	defer rows.Close()

	items := make([]ChecklistItem, 0)
	for rows.Next() {
		var item ChecklistItem
		if err := rows.Scan(&item.ID, &item.TenantID, &item.JobID, &item.KitID, &item.ItemType,
			&item.ItemRefID, &item.Name, &item.QuantityRequired, &item.QuantityVerified, &item.Unit,
			&item.IsRequired, &item.CheckStatus, &item.PhotoIDs, &item.Notes,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checklist item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// UpdateChecklistItemStatus sets the status for a single checklist row.
func (r *Repository) UpdateChecklistItemStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, checkStatus string, photoIDs []byte) error {
	query := `UPDATE job_checklist_items SET check_status = $3, photo_ids = COALESCE($4, photo_ids), updated_at = $5
		WHERE id = $1 AND tenant_id = $2`

	result, err := r.pool.Exec(ctx, query, id, tenantID, checkStatus, photoIDs, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update checklist item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("checklist item not found")
	}

	return nil
}

// RecordVerification applies item updates and stamps the job_kits row in
// one transaction.
func (r *Repository) RecordVerification(ctx context.Context, jobKitID uuid.UUID, tenantID uuid.UUID, status string, verifiedBy uuid.UUID, verifiedAt time.Time, notes *string, updates []ChecklistItemUpdate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	itemQuery := `UPDATE job_checklist_items SET quantity_verified = $3, check_status = $4,
		photo_ids = $5, notes = $6, updated_at = $7
		WHERE id = $1 AND tenant_id = $2`
	now := time.Now()
	for _, update := range updates {
		result, err := tx.Exec(ctx, itemQuery, update.ID, tenantID, update.QuantityVerified,
			update.CheckStatus, update.PhotoIDs, update.Notes, now)
		if err != nil {
			return fmt.Errorf("failed to update checklist item: %w", err)
		}
		if result.RowsAffected() == 0 {
			return apperr.NotFound("checklist item not found")
		}
	}

	jobKitQuery := `UPDATE job_kits SET verification_status = $3, verified_by = $4, verified_at = $5,
		notes = $6 WHERE id = $1 AND tenant_id = $2`
	result, err := tx.Exec(ctx, jobKitQuery, jobKitID, tenantID, status, verifiedBy, verifiedAt, notes)
	if err != nil {
		return fmt.Errorf("failed to record kit verification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(jobKitNotFoundMsg)
	}

	return tx.Commit(ctx)
}

// ContainerPath resolves the storage location of a container as the chain
// of names from root to leaf, joined with " > ".
func (r *Repository) ContainerPath(ctx context.Context, containerID uuid.UUID, tenantID uuid.UUID) (string, error) {
	query := `
		WITH RECURSIVE chain AS (
			SELECT id, parent_id, name, 0 AS depth
			FROM containers WHERE id = $1 AND tenant_id = $2
			UNION ALL
			SELECT c.id, c.parent_id, c.name, chain.depth + 1
			FROM containers c
			JOIN chain ON c.id = chain.parent_id
		)
		SELECT string_agg(name, ' > ' ORDER BY depth DESC) FROM chain`

	var path *string
	if err := r.pool.QueryRow(ctx, query, containerID, tenantID).Scan(&path); err != nil {
		return "", fmt.Errorf("failed to resolve container path: %w", err)
	}
	if path == nil {
		return "", apperr.NotFound("container not found")
	}

	return *path, nil
}

// Analytics aggregates kit usage for a date range.
func (r *Repository) Analytics(ctx context.Context, kitID uuid.UUID, tenantID uuid.UUID, from, to time.Time) (*AnalyticsRow, []MissFrequency, error) {
	var row AnalyticsRow
	var avgSeconds *float64

	summaryQuery := `SELECT COUNT(*),
		COUNT(*) FILTER (WHERE verified_at IS NOT NULL),
		COUNT(*) FILTER (WHERE verification_status = 'complete'),
		AVG(EXTRACT(EPOCH FROM (verified_at - assigned_at))) FILTER (WHERE verified_at IS NOT NULL)
		FROM job_kits
		WHERE kit_id = $1 AND tenant_id = $2 AND assigned_at >= $3 AND assigned_at < $4`

	err := r.pool.QueryRow(ctx, summaryQuery, kitID, tenantID, from, to).Scan(
		&row.UsageCount, &row.VerifiedCount, &row.CompleteCount, &avgSeconds,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to aggregate kit usage: %w", err)
	}
	if avgSeconds != nil {
		d := time.Duration(*avgSeconds * float64(time.Second))
		row.AvgVerifyDuration = &d
	}

	missQuery := `SELECT ci.item_ref_id, ci.name, COUNT(*)
		FROM job_checklist_items ci
		JOIN job_kits jk ON jk.job_id = ci.job_id AND jk.kit_id = ci.kit_id AND jk.tenant_id = ci.tenant_id
		WHERE ci.kit_id = $1 AND ci.tenant_id = $2 AND ci.check_status = 'missing'
		AND jk.assigned_at >= $3 AND jk.assigned_at < $4
		GROUP BY ci.item_ref_id, ci.name
		ORDER BY COUNT(*) DESC`

	rows, err := r.pool.Query(ctx, missQuery, kitID, tenantID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to aggregate missing items: %w", err)
	}
	defer rows.Close()

	misses := make([]MissFrequency, 0)
	for rows.Next() {
		var miss MissFrequency
		if err := rows.Scan(&miss.ItemRefID, &miss.Name, &miss.Count); err != nil {
			return nil, nil, fmt.Errorf("failed to scan missing item row: %w", err)
		}
		misses = append(misses, miss)
	}

	return &row, misses, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
