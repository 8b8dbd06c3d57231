package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fieldservice_backend/internal/events"
	"fieldservice_backend/internal/jobs"
	"fieldservice_backend/internal/kits/repository"
	"fieldservice_backend/internal/kits/transport"
	"fieldservice_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeKitRepo struct {
	kits      map[uuid.UUID]*repository.Kit
	items     map[uuid.UUID][]repository.KitItem
	variants  map[uuid.UUID][]repository.KitVariant
	jobKits   map[uuid.UUID]*repository.JobKit
	checklist map[uuid.UUID][]repository.ChecklistItem // keyed by job id
}

func newFakeKitRepo() *fakeKitRepo {
	return &fakeKitRepo{
		kits:      make(map[uuid.UUID]*repository.Kit),
		items:     make(map[uuid.UUID][]repository.KitItem),
		variants:  make(map[uuid.UUID][]repository.KitVariant),
		jobKits:   make(map[uuid.UUID]*repository.JobKit),
		checklist: make(map[uuid.UUID][]repository.ChecklistItem),
	}
}

func (f *fakeKitRepo) CreateKit(_ context.Context, kit *repository.Kit, items []repository.KitItem, variants []repository.KitVariant) error {
	f.kits[kit.ID] = kit
	f.items[kit.ID] = items
	f.variants[kit.ID] = variants
	return nil
}

func (f *fakeKitRepo) GetKit(_ context.Context, id uuid.UUID, _ uuid.UUID) (*repository.Kit, []repository.KitItem, []repository.KitVariant, error) {
	kit, ok := f.kits[id]
	if !ok {
		return nil, nil, nil, apperr.NotFound("kit not found")
	}
	return kit, f.items[id], f.variants[id], nil
}

func (f *fakeKitRepo) AssignKit(_ context.Context, jobKit *repository.JobKit, checklist []repository.ChecklistItem) error {
	f.jobKits[jobKit.ID] = jobKit
	f.checklist[jobKit.JobID] = checklist
	return nil
}

func (f *fakeKitRepo) GetJobKit(_ context.Context, jobID, kitID uuid.UUID, _ uuid.UUID) (*repository.JobKit, error) {
	for _, jobKit := range f.jobKits {
		if jobKit.JobID == jobID && jobKit.KitID == kitID {
			return jobKit, nil
		}
	}
	return nil, apperr.NotFound("kit is not assigned to this job")
}

func (f *fakeKitRepo) ListChecklist(_ context.Context, jobID, _ uuid.UUID, _ uuid.UUID) ([]repository.ChecklistItem, error) {
	return append([]repository.ChecklistItem{}, f.checklist[jobID]...), nil
}

func (f *fakeKitRepo) RecordVerification(_ context.Context, jobKitID uuid.UUID, _ uuid.UUID, status string, verifiedBy uuid.UUID, verifiedAt time.Time, notes *string, updates []repository.ChecklistItemUpdate) error {
	jobKit, ok := f.jobKits[jobKitID]
	if !ok {
		return apperr.NotFound("kit is not assigned to this job")
	}
	jobKit.VerificationStatus = status
	jobKit.VerifiedBy = &verifiedBy
	jobKit.VerifiedAt = &verifiedAt
	jobKit.Notes = notes

	items := f.checklist[jobKit.JobID]
	for _, update := range updates {
		for i := range items {
			if items[i].ID == update.ID {
				items[i].QuantityVerified = update.QuantityVerified
				items[i].CheckStatus = update.CheckStatus
			}
		}
	}
	return nil
}

func (f *fakeKitRepo) ContainerPath(context.Context, uuid.UUID, uuid.UUID) (string, error) {
	return "Truck 7 > Shelf B", nil
}

func (f *fakeKitRepo) Analytics(context.Context, uuid.UUID, uuid.UUID, time.Time, time.Time) (*repository.AnalyticsRow, []repository.MissFrequency, error) {
	return &repository.AnalyticsRow{}, nil, nil
}

type fakeJobChecker struct{}

func (fakeJobChecker) GetByID(_ context.Context, id uuid.UUID, _ uuid.UUID) (*jobs.Job, error) {
	return &jobs.Job{ID: id}, nil
}

type nopBus struct{}

func (nopBus) Publish(context.Context, events.Event)           {}
func (nopBus) PublishSync(context.Context, events.Event) error { return nil }
func (nopBus) Subscribe(string, events.Handler)                {}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func seedKit(t *testing.T, repo *fakeKitRepo, tenantID uuid.UUID) (kitID uuid.UUID, glovesRef, heaterRef uuid.UUID) {
	t.Helper()
	kitID = uuid.New()
	glovesRef = uuid.New()
	heaterRef = uuid.New()

	repo.kits[kitID] = &repository.Kit{ID: kitID, TenantID: tenantID, KitCode: "PLUMB-01", Name: "Plumbing kit", Category: "plumbing"}
	repo.items[kitID] = []repository.KitItem{
		{ID: uuid.New(), KitID: kitID, ItemType: "consumable", ItemRefID: glovesRef, Name: "Work gloves", Quantity: 2, Unit: "pair", IsRequired: true},
		{ID: uuid.New(), KitID: kitID, ItemType: "tool", ItemRefID: uuid.New(), Name: "Drop cloth", Quantity: 1, Unit: "each", IsRequired: false},
	}
	repo.variants[kitID] = []repository.KitVariant{
		{
			ID:          uuid.New(),
			KitID:       kitID,
			VariantCode: "WINTER",
			Conditions: mustJSON(t, []transport.VariantCondition{
				{Type: transport.ConditionTemperature, Op: transport.OpLessThan, ValueF: 40},
			}),
			Additions: mustJSON(t, []transport.KitItemInput{
				{ItemType: "tool", ItemRefID: heaterRef, Name: "Pipe heater", Quantity: 1, Unit: "each", IsRequired: true},
			}),
			Removals: mustJSON(t, []uuid.UUID{}),
			Position: 0,
		},
	}
	return kitID, glovesRef, heaterRef
}

func TestAssignKitSelectsVariantAndSnapshotsChecklist(t *testing.T) {
	repo := newFakeKitRepo()
	tenantID := uuid.New()
	kitID, _, heaterRef := seedKit(t, repo, tenantID)
	svc := New(repo, fakeJobChecker{}, nopBus{})

	cold := 30.0
	resp, err := svc.AssignKitToJob(context.Background(), kitID, tenantID, uuid.New(), transport.AssignKitRequest{
		JobID:      uuid.New(),
		Conditions: transport.EnvironmentalConditions{TemperatureF: &cold},
	})
	if err != nil {
		t.Fatalf("AssignKitToJob returned error: %v", err)
	}

	if resp.SelectedVariant == nil || *resp.SelectedVariant != "WINTER" {
		t.Fatalf("expected WINTER variant, got %v", resp.SelectedVariant)
	}
	if len(resp.Checklist) != 3 {
		t.Fatalf("expected 3 checklist items (2 base + heater), got %d", len(resp.Checklist))
	}

	foundHeater := false
	for _, item := range resp.Checklist {
		if item.CheckStatus != transport.CheckStatusPending {
			t.Fatalf("expected pending snapshot, got %s", item.CheckStatus)
		}
		if item.ItemRefID == heaterRef {
			foundHeater = true
		}
	}
	if !foundHeater {
		t.Fatal("variant addition missing from checklist")
	}
}

func TestAssignKitWarmWeatherUsesBaseKit(t *testing.T) {
	repo := newFakeKitRepo()
	tenantID := uuid.New()
	kitID, _, _ := seedKit(t, repo, tenantID)
	svc := New(repo, fakeJobChecker{}, nopBus{})

	warm := 75.0
	resp, err := svc.AssignKitToJob(context.Background(), kitID, tenantID, uuid.New(), transport.AssignKitRequest{
		JobID:      uuid.New(),
		Conditions: transport.EnvironmentalConditions{TemperatureF: &warm},
	})
	if err != nil {
		t.Fatalf("AssignKitToJob returned error: %v", err)
	}
	if resp.SelectedVariant != nil {
		t.Fatalf("expected base kit, got variant %v", *resp.SelectedVariant)
	}
	if len(resp.Checklist) != 2 {
		t.Fatalf("expected 2 base items, got %d", len(resp.Checklist))
	}
}

func TestVerifyKitAllRequiredPresentRule(t *testing.T) {
	repo := newFakeKitRepo()
	tenantID := uuid.New()
	kitID, _, _ := seedKit(t, repo, tenantID)
	svc := New(repo, fakeJobChecker{}, nopBus{})

	cold := 30.0
	jobID := uuid.New()
	assigned, err := svc.AssignKitToJob(context.Background(), kitID, tenantID, uuid.New(), transport.AssignKitRequest{
		JobID:      jobID,
		Conditions: transport.EnvironmentalConditions{TemperatureF: &cold},
	})
	if err != nil {
		t.Fatalf("AssignKitToJob returned error: %v", err)
	}

	// Report every item at full quantity: verification completes.
	fullReport := make([]transport.VerifiedItem, 0, len(assigned.Checklist))
	for _, item := range assigned.Checklist {
		fullReport = append(fullReport, transport.VerifiedItem{
			ChecklistItemID:  item.ID,
			QuantityVerified: item.QuantityRequired,
		})
	}

	result, err := svc.VerifyKit(context.Background(), kitID, tenantID, uuid.New(), transport.VerifyKitRequest{
		JobID: jobID,
		Items: fullReport,
	})
	if err != nil {
		t.Fatalf("VerifyKit returned error: %v", err)
	}
	if !result.AllRequiredPresent || result.VerificationStatus != transport.VerificationComplete {
		t.Fatalf("expected complete verification, got %+v", result)
	}
}

func TestVerifyKitShortQuantityIsIncomplete(t *testing.T) {
	repo := newFakeKitRepo()
	tenantID := uuid.New()
	kitID, glovesRef, _ := seedKit(t, repo, tenantID)
	svc := New(repo, fakeJobChecker{}, nopBus{})

	jobID := uuid.New()
	assigned, err := svc.AssignKitToJob(context.Background(), kitID, tenantID, uuid.New(), transport.AssignKitRequest{
		JobID: jobID,
	})
	if err != nil {
		t.Fatalf("AssignKitToJob returned error: %v", err)
	}

	// Gloves require 2; report only 1. Everything else at full quantity.
	report := make([]transport.VerifiedItem, 0, len(assigned.Checklist))
	for _, item := range assigned.Checklist {
		quantity := item.QuantityRequired
		if item.ItemRefID == glovesRef {
			quantity = 1
		}
		report = append(report, transport.VerifiedItem{ChecklistItemID: item.ID, QuantityVerified: quantity})
	}

	result, err := svc.VerifyKit(context.Background(), kitID, tenantID, uuid.New(), transport.VerifyKitRequest{
		JobID: jobID,
		Items: report,
	})
	if err != nil {
		t.Fatalf("VerifyKit returned error: %v", err)
	}
	if result.AllRequiredPresent {
		t.Fatal("expected allRequiredPresent=false with short required quantity")
	}
	if result.VerificationStatus != transport.VerificationIncomplete {
		t.Fatalf("expected incomplete, got %s", result.VerificationStatus)
	}

	for _, item := range result.Items {
		if item.ItemRefID == glovesRef && item.CheckStatus != transport.CheckStatusMissing {
			t.Fatalf("expected gloves missing, got %s", item.CheckStatus)
		}
	}
}

func TestVerifyKitUnreportedRequiredItemIsIncomplete(t *testing.T) {
	repo := newFakeKitRepo()
	tenantID := uuid.New()
	kitID, glovesRef, _ := seedKit(t, repo, tenantID)
	svc := New(repo, fakeJobChecker{}, nopBus{})

	jobID := uuid.New()
	assigned, err := svc.AssignKitToJob(context.Background(), kitID, tenantID, uuid.New(), transport.AssignKitRequest{JobID: jobID})
	if err != nil {
		t.Fatalf("AssignKitToJob returned error: %v", err)
	}

	// Only report the optional item; the required gloves stay pending.
	report := make([]transport.VerifiedItem, 0, 1)
	for _, item := range assigned.Checklist {
		if item.ItemRefID != glovesRef {
			report = append(report, transport.VerifiedItem{ChecklistItemID: item.ID, QuantityVerified: item.QuantityRequired})
		}
	}

	result, err := svc.VerifyKit(context.Background(), kitID, tenantID, uuid.New(), transport.VerifyKitRequest{
		JobID: jobID,
		Items: report,
	})
	if err != nil {
		t.Fatalf("VerifyKit returned error: %v", err)
	}
	if result.AllRequiredPresent || result.VerificationStatus != transport.VerificationIncomplete {
		t.Fatalf("expected incomplete when a required item was never reported, got %+v", result)
	}
}
