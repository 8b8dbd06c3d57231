// Package routing computes stop orderings for technician day plans.
// It wraps a remote optimization provider and carries an offline
// nearest-neighbor/2-opt fallback for when no provider is reachable.
package routing

import (
	"time"

	"github.com/google/uuid"
)

// Optimization methods recorded on route results.
const (
	MethodRemote  = "remote"
	MethodOffline = "offline"

	// AlgorithmNearestNeighbor2Opt names the offline heuristic.
	AlgorithmNearestNeighbor2Opt = "nearest_neighbor_2opt"
)

// Optimization modes.
const (
	ModeTime     = "time"
	ModeDistance = "distance"
)

// Point is a geographic coordinate.
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Stop is an input waypoint to optimize.
type Stop struct {
	JobID           uuid.UUID
	Location        Point
	Address         string
	DurationMinutes int
}

// OptimizedStop is a stop with its computed position in the route.
type OptimizedStop struct {
	JobID             uuid.UUID `json:"jobId"`
	Sequence          int       `json:"sequence"`
	ArrivalTime       time.Time `json:"arrivalTime"`
	TravelTimeMinutes float64   `json:"travelTimeMinutes"`
	DistanceMiles     float64   `json:"distanceMiles"`
}

// Result is a computed route.
type Result struct {
	Stops              []OptimizedStop `json:"stops"`
	TotalDistanceMiles float64         `json:"totalDistanceMiles"`
	TotalDriveMinutes  float64         `json:"totalDriveMinutes"`
	Method             string          `json:"method"`
	Algorithm          string          `json:"algorithm,omitempty"`
}

// Request describes one optimization run.
type Request struct {
	// Anchor is where the route starts (depot or technician position).
	// Nil means start from the first stop.
	Anchor *Point
	// StartTime is when the technician departs the anchor.
	StartTime time.Time
	// Mode is time or distance.
	Mode string
	// Stops are the waypoints to order.
	Stops []Stop
}
