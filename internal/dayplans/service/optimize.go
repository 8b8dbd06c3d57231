package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fieldservice_backend/internal/dayplans/repository"
	"fieldservice_backend/internal/dayplans/transport"
	"fieldservice_backend/internal/events"
	"fieldservice_backend/internal/routing"
	"fieldservice_backend/platform/apperr"

	"github.com/google/uuid"
)

const defaultWorkdayStartHour = 8

// OptimizeRoute recomputes the stop ordering for a plan. Completed and
// cancelled stops never move; pending stops are reordered and their new
// sequence numbers persisted together with any inserted break events.
func (s *Service) OptimizeRoute(ctx context.Context, dayPlanID uuid.UUID, tenantID uuid.UUID, req transport.OptimizeRouteRequest) (*transport.DayPlanResponse, error) {
	plan, err := s.repo.GetByID(ctx, dayPlanID, tenantID)
	if err != nil {
		return nil, err
	}
	planEvents, err := s.repo.ListEvents(ctx, dayPlanID, tenantID)
	if err != nil {
		return nil, err
	}

	pending := pendingJobEvents(planEvents)
	if len(pending) == 0 {
		return nil, apperr.BadRequest("day plan has no pending job stops to optimize")
	}

	stops, byJob, unlocatable := splitByCoordinates(pending)
	if len(stops) == 0 {
		return nil, apperr.BadRequest("day plan has no geocoded job stops to optimize")
	}

	mode := req.OptimizationMode
	if mode == "" {
		mode = routing.ModeTime
	}
	trigger := req.Trigger
	if trigger == "" {
		trigger = transport.TriggerManual
	}

	routingReq := routing.Request{
		StartTime: s.routeStartTime(plan, trigger),
		Mode:      mode,
		Stops:     stops,
	}
	if req.CurrentLocation != nil {
		routingReq.Anchor = &routing.Point{
			Latitude:  req.CurrentLocation.Latitude,
			Longitude: req.CurrentLocation.Longitude,
		}
	}

	result := s.runOptimizer(ctx, routingReq, req.OfflineMode)

	// Sequences restart after the highest locked (completed/cancelled) position.
	nextSeq := maxLockedSequence(planEvents) + 1
	updates := make([]repository.SequenceUpdate, 0, len(pending))
	breaks := make([]repository.ScheduleEvent, 0)

	durations := make([]int, len(result.Stops))
	for i, stop := range result.Stops {
		event := byJob[stop.JobID.String()]
		duration := event.DurationMin
		if duration <= 0 {
			duration = defaultJobDurationMinutes
		}
		durations[i] = duration
	}

	breakAfter := make(map[int]bool)
	if req.IncludeBreaks {
		for _, pos := range breakPositions(durations, breakThresholdMinutes) {
			breakAfter[pos] = true
		}
	}

	now := time.Now()
	workMinutes := 0
	for i, stop := range result.Stops {
		event := byJob[stop.JobID.String()]
		updates = append(updates, repository.SequenceUpdate{EventID: event.ID, SequenceOrder: nextSeq})
		nextSeq++
		workMinutes += durations[i]

		if breakAfter[i] {
			breaks = append(breaks, repository.ScheduleEvent{
				ID:            uuid.New(),
				DayPlanID:     dayPlanID,
				TenantID:      tenantID,
				EventType:     string(transport.EventTypeBreak),
				SequenceOrder: nextSeq,
				Status:        string(transport.EventStatusPending),
				DurationMin:   breakDurationMinutes,
				CreatedAt:     now,
				UpdatedAt:     now,
			})
			nextSeq++
		}
	}
	for _, event := range unlocatable {
		updates = append(updates, repository.SequenceUpdate{EventID: event.ID, SequenceOrder: nextSeq})
		nextSeq++
	}

	routeData := transport.RouteData{
		Optimized:          true,
		OptimizationMode:   mode,
		OptimizationMethod: result.Method,
		Algorithm:          result.Algorithm,
		Stops:              make([]transport.RouteStop, 0, len(result.Stops)),
		OptimizedAt:        now,
	}
	for _, stop := range result.Stops {
		routeData.Stops = append(routeData.Stops, transport.RouteStop{
			JobID:             stop.JobID,
			Sequence:          stop.Sequence,
			ArrivalTime:       stop.ArrivalTime,
			TravelTimeMinutes: stop.TravelTimeMinutes,
		})
	}
	if trigger == transport.TriggerJobCompleted {
		routeData.Trigger = trigger
		routeData.ReOptimizedAt = &now
		if prior := priorOptimizedAt(plan.RouteData); prior != nil {
			routeData.OptimizedAt = *prior
		}
	}

	encoded, err := json.Marshal(routeData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode route data: %w", err)
	}

	estimatedMinutes := int(result.TotalDriveMinutes) + workMinutes + len(breaks)*breakDurationMinutes

	if err := s.repo.ApplySequences(ctx, dayPlanID, tenantID, updates, breaks); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateRouteData(ctx, dayPlanID, tenantID, encoded, result.TotalDistanceMiles, estimatedMinutes); err != nil {
		return nil, err
	}

	s.eventBus.Publish(ctx, events.RouteOptimized{
		BaseEvent:          events.NewBaseEvent(),
		DayPlanID:          dayPlanID,
		TenantID:           tenantID,
		Source:             result.Method,
		TotalDistanceMiles: result.TotalDistanceMiles,
		TotalDriveMinutes:  result.TotalDriveMinutes,
		StopCount:          len(result.Stops),
	})

	plan.RouteData = encoded
	plan.TotalDistanceMiles = &result.TotalDistanceMiles
	plan.EstimatedDurationMinutes = &estimatedMinutes
	updatedEvents, err := s.repo.ListEvents(ctx, dayPlanID, tenantID)
	if err != nil {
		return nil, err
	}

	return buildResponse(plan, updatedEvents), nil
}

// runOptimizer prefers the remote provider and degrades to the local
// heuristic when the provider is disabled, skipped, or failing.
func (s *Service) runOptimizer(ctx context.Context, req routing.Request, offlineMode bool) *routing.Result {
	if offlineMode || !s.optimizer.Enabled() {
		return routing.OptimizeOffline(req, s.optimizer.AverageSpeedMph())
	}

	result, err := s.optimizer.Optimize(ctx, req)
	if err != nil {
		s.log.Warn("remote optimization failed, falling back to heuristic", "error", err.Error())
		return routing.OptimizeOffline(req, s.optimizer.AverageSpeedMph())
	}
	return result
}

func (s *Service) routeStartTime(plan *repository.DayPlan, trigger string) time.Time {
	if trigger == transport.TriggerJobCompleted {
		return time.Now()
	}
	return time.Date(plan.PlanDate.Year(), plan.PlanDate.Month(), plan.PlanDate.Day(),
		defaultWorkdayStartHour, 0, 0, 0, time.UTC)
}

func priorOptimizedAt(raw []byte) *time.Time {
	if len(raw) == 0 {
		return nil
	}
	var prior transport.RouteData
	if err := json.Unmarshal(raw, &prior); err != nil || prior.OptimizedAt.IsZero() {
		return nil
	}
	return &prior.OptimizedAt
}
