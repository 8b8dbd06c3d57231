package routing

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

func mkStop(lat, lng float64, durationMin int) Stop {
	return Stop{
		JobID:           uuid.New(),
		Location:        Point{Latitude: lat, Longitude: lng},
		DurationMinutes: durationMin,
	}
}

func routeLength(anchor Point, stops []Stop, order []int) float64 {
	total := 0.0
	current := anchor
	for _, idx := range order {
		total += haversineMiles(current, stops[idx].Location)
		current = stops[idx].Location
	}
	return total
}

func TestHaversineKnownDistance(t *testing.T) {
	// New York to Los Angeles is roughly 2,445 miles.
	nyc := Point{Latitude: 40.7128, Longitude: -74.0060}
	la := Point{Latitude: 34.0522, Longitude: -118.2437}

	got := haversineMiles(nyc, la)
	if math.Abs(got-2445) > 20 {
		t.Fatalf("expected ~2445 miles, got %.1f", got)
	}
}

func TestNearestNeighborVisitsClosestFirst(t *testing.T) {
	anchor := Point{Latitude: 40.0, Longitude: -75.0}
	stops := []Stop{
		mkStop(40.5, -75.0, 30), // far
		mkStop(40.01, -75.0, 30), // closest
		mkStop(40.2, -75.0, 30),  // middle
	}

	order := NearestNeighborOrder(anchor, stops)
	if len(order) != 3 {
		t.Fatalf("expected 3 stops in order, got %d", len(order))
	}
	if order[0] != 1 || order[1] != 2 || order[2] != 0 {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestImprove2OptNeverWorsensRoute(t *testing.T) {
	anchor := Point{Latitude: 39.95, Longitude: -75.16}
	stops := []Stop{
		mkStop(39.96, -75.20, 30),
		mkStop(40.05, -75.10, 30),
		mkStop(39.90, -75.30, 30),
		mkStop(40.10, -75.25, 30),
		mkStop(39.98, -75.05, 30),
	}

	initial := []int{0, 1, 2, 3, 4}
	improved := Improve2Opt(anchor, stops, initial)

	if len(improved) != len(initial) {
		t.Fatalf("2-opt changed stop count: %d != %d", len(improved), len(initial))
	}

	before := routeLength(anchor, stops, initial)
	after := routeLength(anchor, stops, improved)
	if after > before+1e-9 {
		t.Fatalf("2-opt worsened route: %.3f -> %.3f", before, after)
	}

	seen := make(map[int]bool)
	for _, idx := range improved {
		if seen[idx] {
			t.Fatalf("2-opt duplicated stop %d", idx)
		}
		seen[idx] = true
	}
}

func TestOptimizeOfflineAccumulatesArrivalTimes(t *testing.T) {
	anchor := Point{Latitude: 40.0, Longitude: -75.0}
	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	stops := []Stop{
		mkStop(40.1, -75.0, 60),
		mkStop(40.2, -75.0, 45),
	}

	result := OptimizeOffline(Request{
		Anchor:    &anchor,
		StartTime: start,
		Mode:      ModeTime,
		Stops:     stops,
	}, 30)

	if result.Method != MethodOffline {
		t.Fatalf("expected offline method, got %q", result.Method)
	}
	if result.Algorithm != AlgorithmNearestNeighbor2Opt {
		t.Fatalf("expected heuristic algorithm recorded, got %q", result.Algorithm)
	}
	if len(result.Stops) != 2 {
		t.Fatalf("expected 2 optimized stops, got %d", len(result.Stops))
	}

	first, second := result.Stops[0], result.Stops[1]
	if first.Sequence != 1 || second.Sequence != 2 {
		t.Fatalf("expected sequences 1,2 got %d,%d", first.Sequence, second.Sequence)
	}
	if !first.ArrivalTime.After(start) {
		t.Fatalf("first arrival %v should be after start %v", first.ArrivalTime, start)
	}

	// Second arrival must include the first stop's 60 minute service time.
	minSecondArrival := first.ArrivalTime.Add(60 * time.Minute)
	if second.ArrivalTime.Before(minSecondArrival) {
		t.Fatalf("second arrival %v ignores service time at first stop", second.ArrivalTime)
	}

	if result.TotalDistanceMiles <= 0 || result.TotalDriveMinutes <= 0 {
		t.Fatalf("expected positive totals, got %.2f miles / %.1f min", result.TotalDistanceMiles, result.TotalDriveMinutes)
	}
}

func TestOptimizeOfflineEmptyStops(t *testing.T) {
	result := OptimizeOffline(Request{StartTime: time.Now()}, 30)
	if len(result.Stops) != 0 {
		t.Fatalf("expected empty result, got %d stops", len(result.Stops))
	}
	if result.TotalDistanceMiles != 0 {
		t.Fatalf("expected zero distance, got %.2f", result.TotalDistanceMiles)
	}
}
