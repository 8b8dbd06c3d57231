package service

import "fieldservice_backend/internal/dayplans/transport"

// validTransitions is the forward-only lifecycle. A plan never moves
// backwards and never skips a state.
var validTransitions = map[transport.DayPlanStatus]transport.DayPlanStatus{
	transport.StatusDraft:      transport.StatusPublished,
	transport.StatusPublished:  transport.StatusInProgress,
	transport.StatusInProgress: transport.StatusCompleted,
}

// CanTransition reports whether a day plan may move from one status to another.
func CanTransition(from, to transport.DayPlanStatus) bool {
	next, ok := validTransitions[from]
	return ok && next == to
}
