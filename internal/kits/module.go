// Package kits provides the equipment kit domain module.
package kits

import (
	"fieldservice_backend/internal/events"
	apphttp "fieldservice_backend/internal/http"
	"fieldservice_backend/internal/jobs"
	"fieldservice_backend/internal/kits/handler"
	"fieldservice_backend/internal/kits/repository"
	"fieldservice_backend/internal/kits/service"
	"fieldservice_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the kits domain module
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates a new kits module with all dependencies wired
func NewModule(pool *pgxpool.Pool, val *validator.Validator, jobsRepo *jobs.Repository, bus events.Bus) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, jobsRepo, bus)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		Service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "kits"
}

// RegisterRoutes registers the module's routes under /api/v1/kits
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	kitsGroup := ctx.Protected.Group("/kits")
	m.handler.RegisterRoutes(kitsGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
