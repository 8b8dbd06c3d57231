package service

import (
	"context"
	"testing"
	"time"

	"fieldservice_backend/internal/events"
	"fieldservice_backend/internal/verification/repository"
	"fieldservice_backend/platform/apperr"
	"fieldservice_backend/platform/logger"

	"github.com/google/uuid"
)

type stubDetector struct {
	detection Detection
	err       error
	calls     int
}

func (d *stubDetector) Detect(_ context.Context, _ Photo, _ []string) (*Detection, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	detection := d.detection
	return &detection, nil
}

type recordingAudit struct {
	records []*repository.LoadVerification
}

func (a *recordingAudit) Record(_ context.Context, rec *repository.LoadVerification) error {
	a.records = append(a.records, rec)
	return nil
}

type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

type visionCfg struct{}

func (visionCfg) GetDetectorURL() string                  { return "http://detector.local" }
func (visionCfg) GetDetectorAPIKey() string               { return "" }
func (visionCfg) GetDetectorTimeout() time.Duration       { return 20 * time.Second }
func (visionCfg) GetGeminiAPIKey() string                 { return "test-key" }
func (visionCfg) GetVisionModel() string                  { return "gemini-2.0-flash" }
func (visionCfg) GetConfidenceThreshold() float64         { return 0.6 }
func (visionCfg) GetFallbackConfidenceThreshold() float64 { return 0.75 }
func (visionCfg) IsVisionFallbackEnabled() bool           { return true }

func testInput() VerifyPhotoInput {
	itemID := uuid.New()
	return VerifyPhotoInput{
		TenantID:        uuid.New(),
		JobID:           uuid.New(),
		ChecklistItemID: &itemID,
		PhotoID:         uuid.New(),
		PhotoKey:        "tenant/job/load.jpg",
		Photo:           Photo{Data: []byte("not-a-real-jpeg"), MIMEType: "image/jpeg"},
		ExpectedLabels:  []string{"ladder", "pipe wrench"},
		VerifiedBy:      uuid.New(),
	}
}

func TestVerifyPhotoPrimaryPassSkipsFallback(t *testing.T) {
	primary := &stubDetector{detection: Detection{
		MatchedLabels: []string{"ladder", "pipe wrench"},
		Confidence:    0.82,
	}}
	fallback := &stubDetector{detection: Detection{Confidence: 0.99}}
	audit := &recordingAudit{}
	bus := &recordingBus{}
	svc := New(primary, fallback, audit, bus, logger.New("development"), visionCfg{})

	result, err := svc.VerifyPhoto(context.Background(), testInput())
	if err != nil {
		t.Fatalf("VerifyPhoto returned error: %v", err)
	}

	if !result.Verified || result.FallbackUsed {
		t.Fatalf("expected verified without fallback, got %+v", result)
	}
	if result.Confidence != 0.82 {
		t.Fatalf("expected primary confidence, got %v", result.Confidence)
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback should not be invoked, got %d calls", fallback.calls)
	}
	if len(audit.records) != 1 {
		t.Fatalf("expected exactly one audit record, got %d", len(audit.records))
	}
}

func TestVerifyPhotoEscalatesToFallback(t *testing.T) {
	primary := &stubDetector{detection: Detection{
		MissingLabels: []string{"pipe wrench"},
		MatchedLabels: []string{"ladder"},
		Confidence:    0.4,
	}}
	fallback := &stubDetector{detection: Detection{
		MatchedLabels: []string{"ladder", "pipe wrench"},
		Confidence:    0.82,
	}}
	svc := New(primary, fallback, &recordingAudit{}, &recordingBus{}, logger.New("development"), visionCfg{})

	result, err := svc.VerifyPhoto(context.Background(), testInput())
	if err != nil {
		t.Fatalf("VerifyPhoto returned error: %v", err)
	}

	if !result.Verified || !result.FallbackUsed {
		t.Fatalf("expected verified via fallback, got %+v", result)
	}
	if result.Confidence != 0.82 {
		t.Fatalf("expected fallback confidence, got %v", result.Confidence)
	}
	if fallback.calls != 1 {
		t.Fatalf("expected one fallback call, got %d", fallback.calls)
	}
}

func TestVerifyPhotoBothStagesFail(t *testing.T) {
	primary := &stubDetector{detection: Detection{
		MissingLabels: []string{"ladder", "pipe wrench"},
		Confidence:    0.1,
	}}
	fallback := &stubDetector{detection: Detection{
		MatchedLabels: []string{"ladder"},
		MissingLabels: []string{"pipe wrench"},
		Confidence:    0.5,
	}}
	audit := &recordingAudit{}
	bus := &recordingBus{}
	svc := New(primary, fallback, audit, bus, logger.New("development"), visionCfg{})

	result, err := svc.VerifyPhoto(context.Background(), testInput())
	if err != nil {
		t.Fatalf("VerifyPhoto returned error: %v", err)
	}

	if result.Verified {
		t.Fatal("expected verified=false when both stages fail")
	}
	if !result.FallbackUsed {
		t.Fatal("expected fallbackUsed=true")
	}
	if len(result.MissingLabels) != 1 || result.MissingLabels[0] != "pipe wrench" {
		t.Fatalf("expected missing pipe wrench, got %v", result.MissingLabels)
	}
	if len(audit.records) != 1 {
		t.Fatalf("expected exactly one audit record, got %d", len(audit.records))
	}
	if audit.records[0].Verified {
		t.Fatal("audit record should reflect the failed verification")
	}

	if len(bus.published) != 1 {
		t.Fatalf("expected one published event, got %d", len(bus.published))
	}
	recorded, ok := bus.published[0].(events.LoadVerificationRecorded)
	if !ok {
		t.Fatalf("expected LoadVerificationRecorded, got %T", bus.published[0])
	}
	if recorded.Verified || !recorded.FallbackUsed {
		t.Fatalf("event should carry the failed outcome, got %+v", recorded)
	}
}

func TestVerifyPhotoFallbackRequiresNoMissingLabels(t *testing.T) {
	// High confidence but a missing required label still fails.
	primary := &stubDetector{detection: Detection{Confidence: 0.2}}
	fallback := &stubDetector{detection: Detection{
		MatchedLabels: []string{"ladder"},
		MissingLabels: []string{"pipe wrench"},
		Confidence:    0.9,
	}}
	svc := New(primary, fallback, nil, &recordingBus{}, logger.New("development"), visionCfg{})

	result, err := svc.VerifyPhoto(context.Background(), testInput())
	if err != nil {
		t.Fatalf("VerifyPhoto returned error: %v", err)
	}
	if result.Verified {
		t.Fatal("expected verified=false with a missing label despite high confidence")
	}
}

func TestVerifyPhotoProviderErrorPropagates(t *testing.T) {
	primary := &stubDetector{err: apperr.DetectionProvider("object detector unreachable", nil)}
	audit := &recordingAudit{}
	svc := New(primary, nil, audit, &recordingBus{}, logger.New("development"), visionCfg{})

	_, err := svc.VerifyPhoto(context.Background(), testInput())
	if !apperr.Is(err, apperr.KindDetectionProvider) {
		t.Fatalf("expected detection provider error, got %v", err)
	}
	if len(audit.records) != 0 {
		t.Fatalf("no audit record should be written on provider error, got %d", len(audit.records))
	}
}

func TestVerifyPhotosKeepsInputOrder(t *testing.T) {
	primary := &stubDetector{detection: Detection{
		MatchedLabels: []string{"ladder", "pipe wrench"},
		Confidence:    0.9,
	}}
	svc := New(primary, nil, nil, &recordingBus{}, logger.New("development"), visionCfg{})

	inputs := make([]VerifyPhotoInput, 3)
	for i := range inputs {
		inputs[i] = testInput()
	}

	results, err := svc.VerifyPhotos(context.Background(), inputs)
	if err != nil {
		t.Fatalf("VerifyPhotos returned error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, result := range results {
		if result.PhotoID != inputs[i].PhotoID {
			t.Fatalf("result %d out of order", i)
		}
	}
}
