package service

import (
	"fieldservice_backend/internal/dayplans/repository"
	"fieldservice_backend/internal/routing"
)

const (
	// breakThresholdMinutes is the longest stretch of continuous work
	// allowed before a break is scheduled.
	breakThresholdMinutes = 240
	// breakDurationMinutes is the length of an inserted break.
	breakDurationMinutes = 30
	// defaultJobDurationMinutes is assumed when an event has no duration.
	defaultJobDurationMinutes = 60
)

// pendingJobEvents returns job events still open for reordering.
// Completed and cancelled stops keep their positions.
func pendingJobEvents(events []repository.ScheduleEvent) []repository.ScheduleEvent {
	pending := make([]repository.ScheduleEvent, 0, len(events))
	for _, event := range events {
		if event.EventType == "job" && event.Status == "pending" {
			pending = append(pending, event)
		}
	}
	return pending
}

// maxLockedSequence returns the highest sequence among events that must not
// move (completed or cancelled). Reordered stops are numbered after it.
func maxLockedSequence(events []repository.ScheduleEvent) int {
	max := 0
	for _, event := range events {
		if event.Status == "pending" {
			continue
		}
		if event.SequenceOrder > max {
			max = event.SequenceOrder
		}
	}
	return max
}

// splitByCoordinates partitions pending events into optimizable stops and
// events without coordinates, which keep their relative order at the tail.
func splitByCoordinates(pending []repository.ScheduleEvent) (stops []routing.Stop, byJob map[string]repository.ScheduleEvent, unlocatable []repository.ScheduleEvent) {
	byJob = make(map[string]repository.ScheduleEvent)
	for _, event := range pending {
		if event.JobID == nil || event.LocationLat == nil || event.LocationLng == nil {
			unlocatable = append(unlocatable, event)
			continue
		}

		duration := event.DurationMin
		if duration <= 0 {
			duration = defaultJobDurationMinutes
		}

		address := ""
		if event.Address != nil {
			address = *event.Address
		}

		stops = append(stops, routing.Stop{
			JobID:           *event.JobID,
			Location:        routing.Point{Latitude: *event.LocationLat, Longitude: *event.LocationLng},
			Address:         address,
			DurationMinutes: duration,
		})
		byJob[event.JobID.String()] = event
	}
	return stops, byJob, unlocatable
}

// breakPositions returns the indices of stops after which a break is due.
// Work time accumulates across consecutive stops and resets at each break.
func breakPositions(durations []int, thresholdMinutes int) []int {
	positions := make([]int, 0)
	accumulated := 0
	for i, duration := range durations {
		accumulated += duration
		if accumulated > thresholdMinutes && i < len(durations)-1 {
			positions = append(positions, i)
			accumulated = 0
		}
	}
	return positions
}
