// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"fieldservice_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Day Plan Domain Events
// =============================================================================

// DayPlanCreated is published when a technician day plan is created.
type DayPlanCreated struct {
	BaseEvent
	DayPlanID    uuid.UUID `json:"dayPlanId"`
	TenantID     uuid.UUID `json:"tenantId"`
	TechnicianID uuid.UUID `json:"technicianId"`
	PlanDate     time.Time `json:"planDate"`
	StopCount    int       `json:"stopCount"`
}

func (e DayPlanCreated) EventName() string { return "dayplans.created" }

// DayPlanStatusChanged is published when a day plan advances through its lifecycle.
type DayPlanStatusChanged struct {
	BaseEvent
	DayPlanID uuid.UUID `json:"dayPlanId"`
	TenantID  uuid.UUID `json:"tenantId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
	ActorID   uuid.UUID `json:"actorId"`
}

func (e DayPlanStatusChanged) EventName() string { return "dayplans.status.changed" }

// RouteOptimized is published when a day plan's stop sequence is recomputed.
type RouteOptimized struct {
	BaseEvent
	DayPlanID          uuid.UUID `json:"dayPlanId"`
	TenantID           uuid.UUID `json:"tenantId"`
	Source             string    `json:"source"` // "remote" or "heuristic"
	TotalDistanceMiles float64   `json:"totalDistanceMiles"`
	TotalDriveMinutes  float64   `json:"totalDriveMinutes"`
	StopCount          int       `json:"stopCount"`
}

func (e RouteOptimized) EventName() string { return "dayplans.route.optimized" }

// JobStopCompleted is published when a technician marks a scheduled stop done.
// Subscribers use it to trigger re-optimization of the remaining route.
type JobStopCompleted struct {
	BaseEvent
	DayPlanID uuid.UUID `json:"dayPlanId"`
	EventID   uuid.UUID `json:"eventId"`
	JobID     uuid.UUID `json:"jobId"`
	TenantID  uuid.UUID `json:"tenantId"`
}

func (e JobStopCompleted) EventName() string { return "dayplans.stop.completed" }

// =============================================================================
// Kit Domain Events
// =============================================================================

// KitAssigned is published when a kit is attached to a job.
type KitAssigned struct {
	BaseEvent
	KitID     uuid.UUID  `json:"kitId"`
	JobID     uuid.UUID  `json:"jobId"`
	TenantID  uuid.UUID  `json:"tenantId"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
}

func (e KitAssigned) EventName() string { return "kits.assigned" }

// KitVerified is published when a loaded kit passes or fails verification.
type KitVerified struct {
	BaseEvent
	KitID        uuid.UUID `json:"kitId"`
	JobID        uuid.UUID `json:"jobId"`
	TenantID     uuid.UUID `json:"tenantId"`
	Passed       bool      `json:"passed"`
	MissingCount int       `json:"missingCount"`
}

func (e KitVerified) EventName() string { return "kits.verified" }

// =============================================================================
// Load Verification Domain Events
// =============================================================================

// LoadVerificationRecorded is published after a photo verification attempt,
// regardless of outcome.
type LoadVerificationRecorded struct {
	BaseEvent
	VerificationID uuid.UUID `json:"verificationId"`
	JobID          uuid.UUID `json:"jobId"`
	TenantID       uuid.UUID `json:"tenantId"`
	Verified       bool      `json:"verified"`
	FallbackUsed   bool      `json:"fallbackUsed"`
	Confidence     float64   `json:"confidence"`
	MissingLabels  []string  `json:"missingLabels,omitempty"`
}

func (e LoadVerificationRecorded) EventName() string { return "verification.load.recorded" }
