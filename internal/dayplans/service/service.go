package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fieldservice_backend/internal/dayplans/repository"
	"fieldservice_backend/internal/dayplans/transport"
	"fieldservice_backend/internal/events"
	"fieldservice_backend/internal/jobs"
	"fieldservice_backend/internal/routing"
	"fieldservice_backend/platform/apperr"
	"fieldservice_backend/platform/logger"

	"github.com/google/uuid"
)

// MaxJobsPerDay is the hard cap on job stops per technician per day.
const MaxJobsPerDay = 6

const dateFormat = "2006-01-02"

// PlanRepository is the persistence surface the service depends on.
type PlanRepository interface {
	Create(ctx context.Context, plan *repository.DayPlan, events []repository.ScheduleEvent) error
	GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*repository.DayPlan, error)
	ListByDate(ctx context.Context, tenantID uuid.UUID, date time.Time, technicianID *uuid.UUID) ([]repository.DayPlan, error)
	ListEvents(ctx context.Context, dayPlanID uuid.UUID, tenantID uuid.UUID) ([]repository.ScheduleEvent, error)
	GetEvent(ctx context.Context, dayPlanID, eventID uuid.UUID, tenantID uuid.UUID) (*repository.ScheduleEvent, error)
	AddJobEventCapped(ctx context.Context, event *repository.ScheduleEvent, maxJobs int) error
	AddEvent(ctx context.Context, event *repository.ScheduleEvent) error
	UpdateStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, status string) error
	UpdateRouteData(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, routeData []byte, totalDistanceMiles float64, estimatedDurationMinutes int) error
	ApplySequences(ctx context.Context, dayPlanID uuid.UUID, tenantID uuid.UUID, updates []repository.SequenceUpdate, newEvents []repository.ScheduleEvent) error
	CompleteEvent(ctx context.Context, dayPlanID, eventID uuid.UUID, tenantID uuid.UUID) (*repository.ScheduleEvent, error)
}

// JobLocator provides job lookup for building stops.
type JobLocator interface {
	GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*jobs.Job, error)
	GetLocations(ctx context.Context, ids []uuid.UUID, tenantID uuid.UUID) (map[uuid.UUID]jobs.Location, error)
}

// RouteOptimizer abstracts the routing module.
type RouteOptimizer interface {
	Enabled() bool
	AverageSpeedMph() float64
	Optimize(ctx context.Context, req routing.Request) (*routing.Result, error)
}

// Reoptimizer enqueues background re-optimization after a stop completes.
type Reoptimizer interface {
	EnqueueReoptimize(ctx context.Context, tenantID, dayPlanID uuid.UUID) error
}

// Service provides business logic for day plans.
type Service struct {
	repo        PlanRepository
	jobs        JobLocator
	optimizer   RouteOptimizer
	eventBus    events.Bus
	reoptimizer Reoptimizer
	log         *logger.Logger
}

// New creates a new day plans service.
func New(repo PlanRepository, jobLocator JobLocator, optimizer RouteOptimizer, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		jobs:      jobLocator,
		optimizer: optimizer,
		eventBus:  eventBus,
		log:       log,
	}
}

// SetReoptimizer wires the background task client. Optional; without it,
// completing a stop still works but no re-optimization task is enqueued.
func (s *Service) SetReoptimizer(r Reoptimizer) {
	s.reoptimizer = r
}

// Create creates a draft day plan with optional initial job stops.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, tenantID uuid.UUID, req transport.CreateDayPlanRequest) (*transport.DayPlanResponse, error) {
	planDate, err := time.Parse(dateFormat, req.PlanDate)
	if err != nil {
		return nil, apperr.BadRequest("planDate must be formatted as YYYY-MM-DD")
	}

	jobCount := len(req.InitialStops)
	if jobCount > MaxJobsPerDay {
		return nil, apperr.Validation(fmt.Sprintf("initialStops cannot exceed %d jobs per technician per day", MaxJobsPerDay))
	}

	jobIDs := make([]uuid.UUID, 0, jobCount)
	for _, stop := range req.InitialStops {
		jobIDs = append(jobIDs, stop.JobID)
	}
	locations, err := s.jobs.GetLocations(ctx, jobIDs, tenantID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	plan := &repository.DayPlan{
		ID:           uuid.New(),
		TenantID:     tenantID,
		TechnicianID: req.TechnicianID,
		PlanDate:     planDate,
		Status:       string(transport.StatusDraft),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	planEvents := make([]repository.ScheduleEvent, 0, jobCount)
	for i, stop := range req.InitialStops {
		event := repository.ScheduleEvent{
			ID:             uuid.New(),
			DayPlanID:      plan.ID,
			TenantID:       tenantID,
			JobID:          &req.InitialStops[i].JobID,
			EventType:      string(transport.EventTypeJob),
			SequenceOrder:  i + 1,
			Status:         string(transport.EventStatusPending),
			ScheduledStart: stop.ScheduledStart,
			DurationMin:    stop.DurationMin,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if loc, ok := locations[stop.JobID]; ok {
			event.Address = &loc.Address
			lat, lng := loc.Latitude, loc.Longitude
			event.LocationLat = &lat
			event.LocationLng = &lng
		}
		planEvents = append(planEvents, event)
	}

	if err := s.repo.Create(ctx, plan, planEvents); err != nil {
		return nil, err
	}

	s.eventBus.Publish(ctx, events.DayPlanCreated{
		BaseEvent:    events.NewBaseEvent(),
		DayPlanID:    plan.ID,
		TenantID:     tenantID,
		TechnicianID: plan.TechnicianID,
		PlanDate:     planDate,
		StopCount:    jobCount,
	})

	return buildResponse(plan, planEvents), nil
}

// GetByID returns a plan with its ordered events.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*transport.DayPlanResponse, error) {
	plan, err := s.repo.GetByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	planEvents, err := s.repo.ListEvents(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	return buildResponse(plan, planEvents), nil
}

// List returns plans for a date, optionally scoped to a technician.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, req transport.ListDayPlansRequest) ([]transport.DayPlanResponse, error) {
	if req.Date == "" {
		return nil, apperr.BadRequest("date query parameter is required")
	}
	date, err := time.Parse(dateFormat, req.Date)
	if err != nil {
		return nil, apperr.BadRequest("date must be formatted as YYYY-MM-DD")
	}

	plans, err := s.repo.ListByDate(ctx, tenantID, date, req.TechnicianID)
	if err != nil {
		return nil, err
	}

	responses := make([]transport.DayPlanResponse, 0, len(plans))
	for i := range plans {
		planEvents, err := s.repo.ListEvents(ctx, plans[i].ID, tenantID)
		if err != nil {
			return nil, err
		}
		responses = append(responses, *buildResponse(&plans[i], planEvents))
	}

	return responses, nil
}

// AddEvent appends an event to a plan. Job events go through the capped
// insert; breaks and travel blocks are uncapped.
func (s *Service) AddEvent(ctx context.Context, dayPlanID uuid.UUID, tenantID uuid.UUID, req transport.AddEventRequest) (*transport.ScheduleEventResponse, error) {
	existing, err := s.repo.ListEvents(ctx, dayPlanID, tenantID)
	if err != nil {
		return nil, err
	}

	nextSequence := 1
	for _, event := range existing {
		if event.SequenceOrder >= nextSequence {
			nextSequence = event.SequenceOrder + 1
		}
	}

	now := time.Now()
	event := &repository.ScheduleEvent{
		ID:             uuid.New(),
		DayPlanID:      dayPlanID,
		TenantID:       tenantID,
		EventType:      string(req.EventType),
		SequenceOrder:  nextSequence,
		Status:         string(transport.EventStatusPending),
		ScheduledStart: req.ScheduledStart,
		ScheduledEnd:   req.ScheduledEnd,
		DurationMin:    req.DurationMin,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Address != "" {
		event.Address = &req.Address
	}
	if req.Location != nil {
		lat, lng := req.Location.Latitude, req.Location.Longitude
		event.LocationLat = &lat
		event.LocationLng = &lng
	}

	if req.EventType == transport.EventTypeJob {
		if req.JobID == nil {
			return nil, apperr.BadRequest("jobId is required for job events")
		}
		job, err := s.jobs.GetByID(ctx, *req.JobID, tenantID)
		if err != nil {
			return nil, err
		}
		event.JobID = &job.ID
		if event.Address == nil {
			event.Address = &job.Address
		}
		if event.LocationLat == nil && job.HasCoordinates() {
			event.LocationLat = job.Latitude
			event.LocationLng = job.Longitude
		}
		if event.DurationMin <= 0 {
			event.DurationMin = job.DurationMin
		}

		if err := s.repo.AddJobEventCapped(ctx, event, MaxJobsPerDay); err != nil {
			return nil, err
		}
	} else {
		if err := s.repo.AddEvent(ctx, event); err != nil {
			return nil, err
		}
	}

	resp := eventResponse(*event)
	return &resp, nil
}

// UpdateStatus advances the plan lifecycle. Only the single forward step is
// allowed; everything else is rejected.
func (s *Service) UpdateStatus(ctx context.Context, dayPlanID uuid.UUID, tenantID uuid.UUID, actorID uuid.UUID, req transport.UpdateStatusRequest) (*transport.DayPlanResponse, error) {
	plan, err := s.repo.GetByID(ctx, dayPlanID, tenantID)
	if err != nil {
		return nil, err
	}

	from := transport.DayPlanStatus(plan.Status)
	if !CanTransition(from, req.Status) {
		return nil, apperr.InvalidTransition(fmt.Sprintf("cannot transition day plan from %s to %s", from, req.Status))
	}

	if err := s.repo.UpdateStatus(ctx, dayPlanID, tenantID, string(req.Status)); err != nil {
		return nil, err
	}

	s.eventBus.Publish(ctx, events.DayPlanStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		DayPlanID: dayPlanID,
		TenantID:  tenantID,
		OldStatus: string(from),
		NewStatus: string(req.Status),
		ActorID:   actorID,
	})

	plan.Status = string(req.Status)
	planEvents, err := s.repo.ListEvents(ctx, dayPlanID, tenantID)
	if err != nil {
		return nil, err
	}

	return buildResponse(plan, planEvents), nil
}

// CompleteEvent marks a job stop done, announces it, and queues the
// remaining route for re-optimization when a task client is wired.
func (s *Service) CompleteEvent(ctx context.Context, dayPlanID, eventID uuid.UUID, tenantID uuid.UUID) (*transport.ScheduleEventResponse, error) {
	event, err := s.repo.CompleteEvent(ctx, dayPlanID, eventID, tenantID)
	if err != nil {
		return nil, err
	}

	if event.JobID != nil {
		s.eventBus.Publish(ctx, events.JobStopCompleted{
			BaseEvent: events.NewBaseEvent(),
			DayPlanID: dayPlanID,
			EventID:   event.ID,
			JobID:     *event.JobID,
			TenantID:  tenantID,
		})

		if s.reoptimizer != nil {
			if err := s.reoptimizer.EnqueueReoptimize(ctx, tenantID, dayPlanID); err != nil {
				s.log.Error("failed to enqueue reoptimization", "dayPlanId", dayPlanID, "error", err)
			}
		}
	}

	resp := eventResponse(*event)
	return &resp, nil
}

func buildResponse(plan *repository.DayPlan, planEvents []repository.ScheduleEvent) *transport.DayPlanResponse {
	resp := &transport.DayPlanResponse{
		ID:                       plan.ID,
		TechnicianID:             plan.TechnicianID,
		PlanDate:                 plan.PlanDate.Format(dateFormat),
		Status:                   transport.DayPlanStatus(plan.Status),
		TotalDistanceMiles:       plan.TotalDistanceMiles,
		EstimatedDurationMinutes: plan.EstimatedDurationMinutes,
		Events:                   make([]transport.ScheduleEventResponse, 0, len(planEvents)),
		CreatedAt:                plan.CreatedAt,
		UpdatedAt:                plan.UpdatedAt,
	}

	if len(plan.RouteData) > 0 {
		var routeData transport.RouteData
		if err := json.Unmarshal(plan.RouteData, &routeData); err == nil {
			resp.RouteData = &routeData
		}
	}

	for _, event := range planEvents {
		resp.Events = append(resp.Events, eventResponse(event))
	}

	return resp
}

func eventResponse(event repository.ScheduleEvent) transport.ScheduleEventResponse {
	resp := transport.ScheduleEventResponse{
		ID:             event.ID,
		DayPlanID:      event.DayPlanID,
		JobID:          event.JobID,
		EventType:      transport.EventType(event.EventType),
		SequenceOrder:  event.SequenceOrder,
		Status:         transport.EventStatus(event.Status),
		ScheduledStart: event.ScheduledStart,
		ScheduledEnd:   event.ScheduledEnd,
		DurationMin:    event.DurationMin,
		CreatedAt:      event.CreatedAt,
	}
	if event.Address != nil {
		resp.Address = *event.Address
	}
	if event.LocationLat != nil && event.LocationLng != nil {
		resp.Location = &transport.GeoPoint{Latitude: *event.LocationLat, Longitude: *event.LocationLng}
	}
	return resp
}
