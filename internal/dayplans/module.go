// Package dayplans provides the day planning domain module.
package dayplans

import (
	"fieldservice_backend/internal/dayplans/handler"
	"fieldservice_backend/internal/dayplans/repository"
	"fieldservice_backend/internal/dayplans/service"
	"fieldservice_backend/internal/events"
	apphttp "fieldservice_backend/internal/http"
	"fieldservice_backend/internal/jobs"
	"fieldservice_backend/internal/routing"
	"fieldservice_backend/platform/logger"
	"fieldservice_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the day plans domain module
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates a new day plans module with all dependencies wired
func NewModule(pool *pgxpool.Pool, val *validator.Validator, jobsRepo *jobs.Repository, optimizer *routing.Service, bus events.Bus, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, jobsRepo, optimizer, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		Service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "dayplans"
}

// RegisterRoutes registers the module's routes under /api/v1/day-plans
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	dayPlans := ctx.Protected.Group("/day-plans")
	m.handler.RegisterRoutes(dayPlans)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
