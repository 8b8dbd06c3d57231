// Package service implements the two-stage photo load verification chain.
package service

import (
	"context"
	"time"

	"fieldservice_backend/internal/events"
	"fieldservice_backend/internal/verification/repository"
	"fieldservice_backend/internal/verification/transport"
	"fieldservice_backend/platform/config"
	"fieldservice_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// maxParallelVerifications bounds concurrent provider calls per request.
const maxParallelVerifications = 4

// AuditWriter persists one audit record per verification attempt.
type AuditWriter interface {
	Record(ctx context.Context, rec *repository.LoadVerification) error
}

// VerifyPhotoInput carries everything needed to verify one photo against one
// checklist item.
type VerifyPhotoInput struct {
	TenantID        uuid.UUID
	JobID           uuid.UUID
	ChecklistItemID *uuid.UUID
	PhotoID         uuid.UUID
	PhotoKey        string
	Photo           Photo
	ExpectedLabels  []string
	VerifiedBy      uuid.UUID
}

// Service runs the detection chain: primary detector first, vision fallback
// when the primary is not confident enough.
type Service struct {
	primary           Detector
	fallback          Detector
	audit             AuditWriter
	eventBus          events.Bus
	log               *logger.Logger
	threshold         float64
	fallbackThreshold float64
}

// New creates a verification service. fallback and audit may be nil; the
// chain then stops at the primary stage and skips audit persistence.
func New(primary, fallback Detector, audit AuditWriter, eventBus events.Bus, log *logger.Logger, cfg config.VisionConfig) *Service {
	return &Service{
		primary:           primary,
		fallback:          fallback,
		audit:             audit,
		eventBus:          eventBus,
		log:               log,
		threshold:         cfg.GetConfidenceThreshold(),
		fallbackThreshold: cfg.GetFallbackConfidenceThreshold(),
	}
}

// VerifyPhoto runs the chain for one photo. Provider errors propagate typed;
// a completed chain always writes exactly one audit record when a writer is
// configured, verified or not.
func (s *Service) VerifyPhoto(ctx context.Context, in VerifyPhotoInput) (*transport.VerificationResult, error) {
	detection, err := s.primary.Detect(ctx, in.Photo, in.ExpectedLabels)
	if err != nil {
		return nil, err
	}

	result := &transport.VerificationResult{
		ChecklistItemID: checklistItemOrNil(in.ChecklistItemID),
		PhotoID:         in.PhotoID,
		Confidence:      detection.Confidence,
		MatchedLabels:   detection.MatchedLabels,
		MissingLabels:   detection.MissingLabels,
	}

	if detection.Confidence >= s.threshold {
		result.Verified = true
	} else if s.fallback != nil {
		fallbackDetection, err := s.fallback.Detect(ctx, in.Photo, in.ExpectedLabels)
		if err != nil {
			return nil, err
		}
		result.FallbackUsed = true
		result.Confidence = fallbackDetection.Confidence
		result.MatchedLabels = fallbackDetection.MatchedLabels
		result.MissingLabels = fallbackDetection.MissingLabels
		result.Verified = fallbackDetection.Confidence >= s.fallbackThreshold && len(fallbackDetection.MissingLabels) == 0
	}

	result.CapturedAt = captureTime(in.Photo.Data)

	verificationID := uuid.New()
	if s.audit != nil {
		record := &repository.LoadVerification{
			ID:              verificationID,
			TenantID:        in.TenantID,
			JobID:           in.JobID,
			ChecklistItemID: in.ChecklistItemID,
			PhotoID:         in.PhotoID,
			PhotoKey:        in.PhotoKey,
			Verified:        result.Verified,
			Confidence:      result.Confidence,
			FallbackUsed:    result.FallbackUsed,
			MatchedLabels:   result.MatchedLabels,
			MissingLabels:   result.MissingLabels,
			CapturedAt:      result.CapturedAt,
			VerifiedBy:      in.VerifiedBy,
			CreatedAt:       time.Now(),
		}
		if err := s.audit.Record(ctx, record); err != nil {
			return nil, err
		}
	}

	s.eventBus.Publish(ctx, events.LoadVerificationRecorded{
		BaseEvent:      events.NewBaseEvent(),
		VerificationID: verificationID,
		JobID:          in.JobID,
		TenantID:       in.TenantID,
		Verified:       result.Verified,
		FallbackUsed:   result.FallbackUsed,
		Confidence:     result.Confidence,
		MissingLabels:  result.MissingLabels,
	})

	return result, nil
}

// VerifyPhotos verifies a batch in parallel, bounded so a single request
// cannot flood the providers. Results keep the input order.
func (s *Service) VerifyPhotos(ctx context.Context, inputs []VerifyPhotoInput) ([]*transport.VerificationResult, error) {
	results := make([]*transport.VerificationResult, len(inputs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallelVerifications)
	for i, input := range inputs {
		group.Go(func() error {
			result, err := s.VerifyPhoto(groupCtx, input)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func checklistItemOrNil(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.UUID{}
	}
	return *id
}
