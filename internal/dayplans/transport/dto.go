// Package transport defines request and response DTOs for the day plans API.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// DayPlanStatus is the lifecycle state of a day plan.
type DayPlanStatus string

const (
	StatusDraft      DayPlanStatus = "draft"
	StatusPublished  DayPlanStatus = "published"
	StatusInProgress DayPlanStatus = "in_progress"
	StatusCompleted  DayPlanStatus = "completed"
)

// EventType classifies a schedule event.
type EventType string

const (
	EventTypeJob    EventType = "job"
	EventTypeBreak  EventType = "break"
	EventTypeTravel EventType = "travel"
)

// EventStatus is the state of a schedule event.
type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

// Optimization triggers.
const (
	TriggerManual       = "manual"
	TriggerJobCompleted = "job_completed"
)

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Latitude  float64 `json:"lat" validate:"min=-90,max=90"`
	Longitude float64 `json:"lng" validate:"min=-180,max=180"`
}

// InitialStop describes a job stop supplied at plan creation.
type InitialStop struct {
	JobID          uuid.UUID  `json:"jobId" validate:"required"`
	ScheduledStart *time.Time `json:"scheduledStart,omitempty"`
	DurationMin    int        `json:"durationMinutes" validate:"omitempty,min=1"`
}

// CreateDayPlanRequest creates a draft day plan for a technician.
type CreateDayPlanRequest struct {
	TechnicianID uuid.UUID     `json:"technicianId" validate:"required"`
	PlanDate     string        `json:"planDate" validate:"required,datetime=2006-01-02"`
	InitialStops []InitialStop `json:"initialStops" validate:"omitempty,dive"`
}

// AddEventRequest appends a schedule event to an existing plan.
type AddEventRequest struct {
	JobID          *uuid.UUID `json:"jobId,omitempty"`
	EventType      EventType  `json:"eventType" validate:"required,oneof=job break travel"`
	ScheduledStart *time.Time `json:"scheduledStart,omitempty"`
	ScheduledEnd   *time.Time `json:"scheduledEnd,omitempty"`
	DurationMin    int        `json:"durationMinutes" validate:"omitempty,min=1"`
	Address        string     `json:"address,omitempty"`
	Location       *GeoPoint  `json:"location,omitempty"`
}

// OptimizeRouteRequest recomputes the stop ordering for a plan.
type OptimizeRouteRequest struct {
	OptimizationMode string     `json:"optimizationMode" validate:"omitempty,oneof=time distance"`
	IncludeBreaks    bool       `json:"includeBreaks"`
	OfflineMode      bool       `json:"offlineMode"`
	Trigger          string     `json:"trigger" validate:"omitempty,oneof=manual job_completed"`
	CompletedEventID *uuid.UUID `json:"completedEventId,omitempty"`
	CurrentLocation  *GeoPoint  `json:"currentLocation,omitempty"`
}

// UpdateStatusRequest advances the day plan lifecycle.
type UpdateStatusRequest struct {
	Status DayPlanStatus `json:"status" validate:"required,oneof=draft published in_progress completed"`
}

// ListDayPlansRequest filters plans by date and technician.
type ListDayPlansRequest struct {
	Date         string     `form:"date"`
	TechnicianID *uuid.UUID `form:"technicianId"`
}

// RouteStop is one optimized stop inside routeData.
type RouteStop struct {
	JobID             uuid.UUID `json:"jobId"`
	Sequence          int       `json:"sequence"`
	ArrivalTime       time.Time `json:"arrivalTime"`
	TravelTimeMinutes float64   `json:"travelTimeMinutes"`
}

// RouteData is the persisted optimization outcome.
type RouteData struct {
	Optimized          bool        `json:"optimized"`
	OptimizationMode   string      `json:"optimizationMode"`
	OptimizationMethod string      `json:"optimizationMethod"`
	Algorithm          string      `json:"algorithm,omitempty"`
	Stops              []RouteStop `json:"stops"`
	OptimizedAt        time.Time   `json:"optimizedAt"`
	ReOptimizedAt      *time.Time  `json:"reOptimizedAt,omitempty"`
	Trigger            string      `json:"trigger,omitempty"`
}

// ScheduleEventResponse is the API shape of a schedule event.
type ScheduleEventResponse struct {
	ID             uuid.UUID   `json:"id"`
	DayPlanID      uuid.UUID   `json:"dayPlanId"`
	JobID          *uuid.UUID  `json:"jobId,omitempty"`
	EventType      EventType   `json:"eventType"`
	SequenceOrder  int         `json:"sequenceOrder"`
	Status         EventStatus `json:"status"`
	ScheduledStart *time.Time  `json:"scheduledStart,omitempty"`
	ScheduledEnd   *time.Time  `json:"scheduledEnd,omitempty"`
	DurationMin    int         `json:"durationMinutes"`
	Address        string      `json:"address,omitempty"`
	Location       *GeoPoint   `json:"location,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// DayPlanResponse is the API shape of a day plan.
type DayPlanResponse struct {
	ID                       uuid.UUID               `json:"id"`
	TechnicianID             uuid.UUID               `json:"technicianId"`
	PlanDate                 string                  `json:"planDate"`
	Status                   DayPlanStatus           `json:"status"`
	RouteData                *RouteData              `json:"routeData,omitempty"`
	TotalDistanceMiles       *float64                `json:"totalDistanceMiles,omitempty"`
	EstimatedDurationMinutes *int                    `json:"estimatedDurationMinutes,omitempty"`
	Events                   []ScheduleEventResponse `json:"events"`
	CreatedAt                time.Time               `json:"createdAt"`
	UpdatedAt                time.Time               `json:"updatedAt"`
}
