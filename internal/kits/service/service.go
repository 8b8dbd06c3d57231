package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fieldservice_backend/internal/events"
	"fieldservice_backend/internal/jobs"
	"fieldservice_backend/internal/kits/repository"
	"fieldservice_backend/internal/kits/transport"
	"fieldservice_backend/platform/apperr"
	"fieldservice_backend/platform/sanitize"

	"github.com/google/uuid"
)

const analyticsDateFormat = "2006-01-02"

// KitRepository is the persistence surface the service depends on.
type KitRepository interface {
	CreateKit(ctx context.Context, kit *repository.Kit, items []repository.KitItem, variants []repository.KitVariant) error
	GetKit(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*repository.Kit, []repository.KitItem, []repository.KitVariant, error)
	AssignKit(ctx context.Context, jobKit *repository.JobKit, checklist []repository.ChecklistItem) error
	GetJobKit(ctx context.Context, jobID, kitID uuid.UUID, tenantID uuid.UUID) (*repository.JobKit, error)
	ListChecklist(ctx context.Context, jobID, kitID uuid.UUID, tenantID uuid.UUID) ([]repository.ChecklistItem, error)
	RecordVerification(ctx context.Context, jobKitID uuid.UUID, tenantID uuid.UUID, status string, verifiedBy uuid.UUID, verifiedAt time.Time, notes *string, updates []repository.ChecklistItemUpdate) error
	ContainerPath(ctx context.Context, containerID uuid.UUID, tenantID uuid.UUID) (string, error)
	Analytics(ctx context.Context, kitID uuid.UUID, tenantID uuid.UUID, from, to time.Time) (*repository.AnalyticsRow, []repository.MissFrequency, error)
}

// JobChecker verifies jobs exist before assignment.
type JobChecker interface {
	GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*jobs.Job, error)
}

// Service provides business logic for kits.
type Service struct {
	repo     KitRepository
	jobs     JobChecker
	eventBus events.Bus
}

// New creates a new kits service.
func New(repo KitRepository, jobChecker JobChecker, eventBus events.Bus) *Service {
	return &Service{repo: repo, jobs: jobChecker, eventBus: eventBus}
}

// CreateKit creates a kit with its base items and variants.
func (s *Service) CreateKit(ctx context.Context, tenantID uuid.UUID, req transport.CreateKitRequest) (*transport.KitResponse, error) {
	now := time.Now()
	kit := &repository.Kit{
		ID:        uuid.New(),
		TenantID:  tenantID,
		KitCode:   sanitize.Text(req.KitCode),
		Name:      sanitize.Text(req.Name),
		Category:  sanitize.Text(req.Category),
		CreatedAt: now,
		UpdatedAt: now,
	}

	items := make([]repository.KitItem, 0, len(req.Items))
	for _, input := range req.Items {
		items = append(items, repository.KitItem{
			ID:         uuid.New(),
			KitID:      kit.ID,
			ItemType:   input.ItemType,
			ItemRefID:  input.ItemRefID,
			Name:       sanitize.Text(input.Name),
			Quantity:   input.Quantity,
			Unit:       input.Unit,
			IsRequired: input.IsRequired,
		})
	}

	variants := make([]repository.KitVariant, 0, len(req.Variants))
	for position, input := range req.Variants {
		conditions, err := json.Marshal(input.Conditions)
		if err != nil {
			return nil, fmt.Errorf("failed to encode variant conditions: %w", err)
		}
		additions, err := json.Marshal(input.ItemModifications.Additions)
		if err != nil {
			return nil, fmt.Errorf("failed to encode variant additions: %w", err)
		}
		removals, err := json.Marshal(input.ItemModifications.Removals)
		if err != nil {
			return nil, fmt.Errorf("failed to encode variant removals: %w", err)
		}

		variants = append(variants, repository.KitVariant{
			ID:          uuid.New(),
			KitID:       kit.ID,
			VariantCode: sanitize.Text(input.VariantCode),
			Conditions:  conditions,
			Additions:   additions,
			Removals:    removals,
			Position:    position,
		})
	}

	if err := s.repo.CreateKit(ctx, kit, items, variants); err != nil {
		return nil, err
	}

	return buildKitResponse(kit, items, variants)
}

// GetKit returns a kit with its items and variants.
func (s *Service) GetKit(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*transport.KitResponse, error) {
	kit, items, variants, err := s.repo.GetKit(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}
	return buildKitResponse(kit, items, variants)
}

// AssignKitToJob selects the matching variant for the supplied conditions,
// resolves the effective item list, and snapshots it as the job checklist.
func (s *Service) AssignKitToJob(ctx context.Context, kitID uuid.UUID, tenantID uuid.UUID, assignedBy uuid.UUID, req transport.AssignKitRequest) (*transport.AssignKitResponse, error) {
	kit, items, rawVariants, err := s.repo.GetKit(ctx, kitID, tenantID)
	if err != nil {
		return nil, err
	}
	if _, err := s.jobs.GetByID(ctx, req.JobID, tenantID); err != nil {
		return nil, err
	}

	variants, err := decodeVariants(rawVariants)
	if err != nil {
		return nil, err
	}

	base := make([]ChecklistLine, 0, len(items))
	for _, item := range items {
		base = append(base, ChecklistLine{
			ItemType:   item.ItemType,
			ItemRefID:  item.ItemRefID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			Unit:       item.Unit,
			IsRequired: item.IsRequired,
		})
	}

	lines := base
	var variantID *uuid.UUID
	var variantCode *string
	if matched := MatchVariant(variants, req.Conditions); matched != nil {
		lines = ApplyModifications(base, matched.Modifications)
		variantID = &matched.ID
		variantCode = &matched.VariantCode
	}

	now := time.Now()
	jobKit := &repository.JobKit{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		JobID:              req.JobID,
		KitID:              kit.ID,
		VariantID:          variantID,
		ContainerID:        req.ContainerID,
		AssignedBy:         assignedBy,
		AssignedAt:         now,
		VerificationStatus: transport.VerificationPending,
	}

	checklist := make([]repository.ChecklistItem, 0, len(lines))
	for _, line := range lines {
		checklist = append(checklist, repository.ChecklistItem{
			ID:               uuid.New(),
			TenantID:         tenantID,
			JobID:            req.JobID,
			KitID:            kit.ID,
			ItemType:         line.ItemType,
			ItemRefID:        line.ItemRefID,
			Name:             line.Name,
			QuantityRequired: line.Quantity,
			Unit:             line.Unit,
			IsRequired:       line.IsRequired,
			CheckStatus:      transport.CheckStatusPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}

	if err := s.repo.AssignKit(ctx, jobKit, checklist); err != nil {
		return nil, err
	}

	s.eventBus.Publish(ctx, events.KitAssigned{
		BaseEvent: events.NewBaseEvent(),
		KitID:     kit.ID,
		JobID:     req.JobID,
		TenantID:  tenantID,
		VariantID: variantID,
	})

	resp := &transport.AssignKitResponse{
		JobKitID:        jobKit.ID,
		KitID:           kit.ID,
		JobID:           req.JobID,
		SelectedVariant: variantCode,
		Checklist:       make([]transport.ChecklistItemView, 0, len(checklist)),
	}
	for _, item := range checklist {
		resp.Checklist = append(resp.Checklist, checklistView(item))
	}

	return resp, nil
}

// GetChecklist returns the job's checklist for a kit, including the
// container location path when the kit was assigned from a container.
func (s *Service) GetChecklist(ctx context.Context, kitID uuid.UUID, jobID uuid.UUID, tenantID uuid.UUID) (*transport.ChecklistResponse, error) {
	jobKit, err := s.repo.GetJobKit(ctx, jobID, kitID, tenantID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListChecklist(ctx, jobID, kitID, tenantID)
	if err != nil {
		return nil, err
	}

	resp := &transport.ChecklistResponse{
		JobID: jobID,
		KitID: kitID,
		Items: make([]transport.ChecklistItemView, 0, len(items)),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, checklistView(item))
	}

	if jobKit.ContainerID != nil {
		path, err := s.repo.ContainerPath(ctx, *jobKit.ContainerID, tenantID)
		if err == nil {
			resp.ContainerLocation = path
		} else if !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
	}

	return resp, nil
}

// VerifyKit records a physical check of the loaded kit. The kit passes only
// when every required item is present with at least the required quantity.
func (s *Service) VerifyKit(ctx context.Context, kitID uuid.UUID, tenantID uuid.UUID, verifiedBy uuid.UUID, req transport.VerifyKitRequest) (*transport.VerifyKitResponse, error) {
	jobKit, err := s.repo.GetJobKit(ctx, req.JobID, kitID, tenantID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListChecklist(ctx, req.JobID, kitID, tenantID)
	if err != nil {
		return nil, err
	}

	verified := make(map[uuid.UUID]transport.VerifiedItem, len(req.Items))
	for _, input := range req.Items {
		verified[input.ChecklistItemID] = input
	}

	updates := make([]repository.ChecklistItemUpdate, 0, len(items))
	views := make([]transport.ChecklistItemView, 0, len(items))
	allRequiredPresent := true

	for _, item := range items {
		input, reported := verified[item.ID]
		if reported {
			item.QuantityVerified = input.QuantityVerified
			if input.QuantityVerified >= item.QuantityRequired {
				item.CheckStatus = transport.CheckStatusPresent
			} else {
				item.CheckStatus = transport.CheckStatusMissing
			}

			photoIDs, err := json.Marshal(input.PhotoIDs)
			if err != nil {
				return nil, fmt.Errorf("failed to encode photo ids: %w", err)
			}
			var notes *string
			if input.Notes != "" {
				clean := sanitize.Text(input.Notes)
				notes = &clean
			}
			updates = append(updates, repository.ChecklistItemUpdate{
				ID:               item.ID,
				QuantityVerified: input.QuantityVerified,
				CheckStatus:      item.CheckStatus,
				PhotoIDs:         photoIDs,
				Notes:            notes,
			})
		}

		if item.IsRequired && item.CheckStatus != transport.CheckStatusPresent {
			allRequiredPresent = false
		}
		views = append(views, checklistView(item))
	}

	status := transport.VerificationIncomplete
	if allRequiredPresent {
		status = transport.VerificationComplete
	}

	now := time.Now()
	var notes *string
	if req.Notes != "" {
		clean := sanitize.Text(req.Notes)
		notes = &clean
	}
	if err := s.repo.RecordVerification(ctx, jobKit.ID, tenantID, status, verifiedBy, now, notes, updates); err != nil {
		return nil, err
	}

	missingCount := 0
	for _, view := range views {
		if view.CheckStatus == transport.CheckStatusMissing {
			missingCount++
		}
	}
	s.eventBus.Publish(ctx, events.KitVerified{
		BaseEvent:    events.NewBaseEvent(),
		KitID:        kitID,
		JobID:        req.JobID,
		TenantID:     tenantID,
		Passed:       allRequiredPresent,
		MissingCount: missingCount,
	})

	return &transport.VerifyKitResponse{
		JobID:              req.JobID,
		KitID:              kitID,
		VerificationStatus: status,
		AllRequiredPresent: allRequiredPresent,
		VerifiedBy:         verifiedBy,
		VerifiedAt:         now,
		Items:              views,
	}, nil
}

// GetKitAnalytics aggregates usage for a date range. The range defaults to
// the trailing 30 days.
func (s *Service) GetKitAnalytics(ctx context.Context, kitID uuid.UUID, tenantID uuid.UUID, req transport.KitAnalyticsRequest) (*transport.KitAnalyticsResponse, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -30)

	var err error
	if req.From != "" {
		from, err = time.Parse(analyticsDateFormat, req.From)
		if err != nil {
			return nil, apperr.BadRequest("from must be formatted as YYYY-MM-DD")
		}
	}
	if req.To != "" {
		to, err = time.Parse(analyticsDateFormat, req.To)
		if err != nil {
			return nil, apperr.BadRequest("to must be formatted as YYYY-MM-DD")
		}
		to = to.AddDate(0, 0, 1) // inclusive end date
	}
	if !from.Before(to) {
		return nil, apperr.BadRequest("from must be before to")
	}

	row, misses, err := s.repo.Analytics(ctx, kitID, tenantID, from, to)
	if err != nil {
		return nil, err
	}

	resp := &transport.KitAnalyticsResponse{
		KitID:                kitID,
		From:                 from.Format(analyticsDateFormat),
		To:                   to.Format(analyticsDateFormat),
		UsageCount:           row.UsageCount,
		MissingItemFrequency: make([]transport.ItemMissFrequency, 0, len(misses)),
	}
	if row.VerifiedCount > 0 {
		resp.VerificationRate = float64(row.CompleteCount) / float64(row.VerifiedCount)
	}
	if row.AvgVerifyDuration != nil {
		resp.AverageVerificationTimeMinutes = row.AvgVerifyDuration.Minutes()
	}
	for _, miss := range misses {
		resp.MissingItemFrequency = append(resp.MissingItemFrequency, transport.ItemMissFrequency{
			ItemRefID: miss.ItemRefID,
			Name:      miss.Name,
			Count:     miss.Count,
		})
	}

	return resp, nil
}

func decodeVariants(raw []repository.KitVariant) ([]Variant, error) {
	variants := make([]Variant, 0, len(raw))
	for _, stored := range raw {
		variant := Variant{ID: stored.ID, VariantCode: stored.VariantCode}
		if err := json.Unmarshal(stored.Conditions, &variant.Conditions); err != nil {
			return nil, fmt.Errorf("failed to decode variant conditions: %w", err)
		}
		if len(stored.Additions) > 0 {
			if err := json.Unmarshal(stored.Additions, &variant.Modifications.Additions); err != nil {
				return nil, fmt.Errorf("failed to decode variant additions: %w", err)
			}
		}
		if len(stored.Removals) > 0 {
			if err := json.Unmarshal(stored.Removals, &variant.Modifications.Removals); err != nil {
				return nil, fmt.Errorf("failed to decode variant removals: %w", err)
			}
		}
		variants = append(variants, variant)
	}
	return variants, nil
}

func buildKitResponse(kit *repository.Kit, items []repository.KitItem, rawVariants []repository.KitVariant) (*transport.KitResponse, error) {
	variants, err := decodeVariants(rawVariants)
	if err != nil {
		return nil, err
	}

	resp := &transport.KitResponse{
		ID:        kit.ID,
		KitCode:   kit.KitCode,
		Name:      kit.Name,
		Category:  kit.Category,
		Items:     make([]transport.KitItemResponse, 0, len(items)),
		Variants:  make([]transport.KitVariantResponse, 0, len(variants)),
		CreatedAt: kit.CreatedAt,
		UpdatedAt: kit.UpdatedAt,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, transport.KitItemResponse{
			ID:         item.ID,
			ItemType:   item.ItemType,
			ItemRefID:  item.ItemRefID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			Unit:       item.Unit,
			IsRequired: item.IsRequired,
		})
	}
	for _, variant := range variants {
		resp.Variants = append(resp.Variants, transport.KitVariantResponse{
			ID:                variant.ID,
			VariantCode:       variant.VariantCode,
			Conditions:        variant.Conditions,
			ItemModifications: variant.Modifications,
		})
	}

	return resp, nil
}

func checklistView(item repository.ChecklistItem) transport.ChecklistItemView {
	view := transport.ChecklistItemView{
		ID:               item.ID,
		ItemType:         item.ItemType,
		ItemRefID:        item.ItemRefID,
		Name:             item.Name,
		QuantityRequired: item.QuantityRequired,
		QuantityVerified: item.QuantityVerified,
		Unit:             item.Unit,
		IsRequired:       item.IsRequired,
		CheckStatus:      item.CheckStatus,
	}
	if len(item.PhotoIDs) > 0 {
		_ = json.Unmarshal(item.PhotoIDs, &view.PhotoIDs)
	}
	if item.Notes != nil {
		view.Notes = *item.Notes
	}
	return view
}
