package routing

import (
	"math"
	"time"
)

const earthRadiusMiles = 3958.8

// haversineMiles returns the great-circle distance between two points.
func haversineMiles(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(h))
}

// NearestNeighborOrder greedily orders stops starting from the anchor.
// Returns indices into stops.
func NearestNeighborOrder(anchor Point, stops []Stop) []int {
	order := make([]int, 0, len(stops))
	visited := make([]bool, len(stops))
	current := anchor

	for len(order) < len(stops) {
		best := -1
		bestDist := math.MaxFloat64
		for i, stop := range stops {
			if visited[i] {
				continue
			}
			d := haversineMiles(current, stop.Location)
			if d < bestDist {
				bestDist = d
				best = i
			}
		}
		visited[best] = true
		order = append(order, best)
		current = stops[best].Location
	}

	return order
}

// Improve2Opt refines an ordering by reversing segments while the total
// route length keeps shrinking. The anchor stays fixed at the front.
func Improve2Opt(anchor Point, stops []Stop, order []int) []int {
	if len(order) < 3 {
		return order
	}

	result := make([]int, len(order))
	copy(result, order)

	pointAt := func(i int) Point {
		if i < 0 {
			return anchor
		}
		return stops[result[i]].Location
	}

	improved := true
	for improved {
		improved = false
		for i := 0; i < len(result)-1; i++ {
			for j := i + 1; j < len(result); j++ {
				// Length delta of reversing result[i..j].
				before := haversineMiles(pointAt(i-1), pointAt(i))
				after := haversineMiles(pointAt(i-1), pointAt(j))
				if j < len(result)-1 {
					before += haversineMiles(pointAt(j), pointAt(j+1))
					after += haversineMiles(pointAt(i), pointAt(j+1))
				}
				if after < before-1e-9 {
					reverse(result, i, j)
					improved = true
				}
			}
		}
	}

	return result
}

func reverse(order []int, i, j int) {
	for i < j {
		order[i], order[j] = order[j], order[i]
		i++
		j--
	}
}

// OptimizeOffline runs the nearest-neighbor/2-opt heuristic and builds a
// full result with travel times derived from the configured average speed.
func OptimizeOffline(req Request, averageSpeedMph float64) *Result {
	if averageSpeedMph <= 0 {
		averageSpeedMph = 30
	}

	anchor := req.Anchor
	if anchor == nil && len(req.Stops) > 0 {
		anchor = &req.Stops[0].Location
	}

	result := &Result{
		Stops:     make([]OptimizedStop, 0, len(req.Stops)),
		Method:    MethodOffline,
		Algorithm: AlgorithmNearestNeighbor2Opt,
	}
	if len(req.Stops) == 0 {
		return result
	}

	order := NearestNeighborOrder(*anchor, req.Stops)
	order = Improve2Opt(*anchor, req.Stops, order)

	current := *anchor
	arrival := req.StartTime
	for seq, idx := range order {
		stop := req.Stops[idx]
		dist := haversineMiles(current, stop.Location)
		driveMinutes := dist / averageSpeedMph * 60

		arrival = arrival.Add(time.Duration(driveMinutes * float64(time.Minute)))
		result.Stops = append(result.Stops, OptimizedStop{
			JobID:             stop.JobID,
			Sequence:          seq + 1,
			ArrivalTime:       arrival,
			TravelTimeMinutes: roundMinutes(driveMinutes),
			DistanceMiles:     roundMiles(dist),
		})

		result.TotalDistanceMiles += dist
		result.TotalDriveMinutes += driveMinutes
		arrival = arrival.Add(time.Duration(stop.DurationMinutes) * time.Minute)
		current = stop.Location
	}

	result.TotalDistanceMiles = roundMiles(result.TotalDistanceMiles)
	result.TotalDriveMinutes = roundMinutes(result.TotalDriveMinutes)

	return result
}

func roundMiles(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundMinutes(v float64) float64 {
	return math.Round(v*10) / 10
}
