// Package verification provides the photo load verification module.
package verification

import (
	"context"

	"fieldservice_backend/internal/adapters/storage"
	"fieldservice_backend/internal/events"
	apphttp "fieldservice_backend/internal/http"
	kitsrepo "fieldservice_backend/internal/kits/repository"
	"fieldservice_backend/internal/verification/handler"
	"fieldservice_backend/internal/verification/repository"
	"fieldservice_backend/internal/verification/service"
	"fieldservice_backend/platform/config"
	"fieldservice_backend/platform/logger"
	"fieldservice_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the load verification domain module
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates a new verification module with all dependencies wired.
// The vision fallback is optional; without a Gemini key the chain stops at
// the primary detector.
func NewModule(ctx context.Context, pool *pgxpool.Pool, val *validator.Validator, cfg config.VisionConfig,
	store storage.EvidenceStore, bucket string, kitsRepo *kitsrepo.Repository,
	bus events.Bus, log *logger.Logger) *Module {

	primary := service.NewPrimaryDetector(cfg, log)

	var fallback service.Detector
	if cfg.IsVisionFallbackEnabled() {
		evaluator, err := service.NewVisionEvaluator(ctx, cfg, log)
		if err != nil {
			log.Warn("vision fallback unavailable", "error", err)
		} else {
			fallback = evaluator
		}
	}

	repo := repository.New(pool)
	svc := service.New(primary, fallback, repo, bus, log, cfg)
	h := handler.New(svc, val, store, bucket, kitsRepo, repo)

	return &Module{
		handler: h,
		Service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "verification"
}

// RegisterRoutes registers the module's routes under /api/v1/jobs
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	jobsGroup := ctx.Protected.Group("/jobs")
	m.handler.RegisterRoutes(jobsGroup, ctx.UploadRateLimiter.RateLimit())
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
