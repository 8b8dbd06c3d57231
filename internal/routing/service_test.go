package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fieldservice_backend/platform/apperr"
	"fieldservice_backend/platform/logger"

	"github.com/google/uuid"
)

type optimizerCfg struct {
	url     string
	apiKey  string
	timeout time.Duration
}

func (c optimizerCfg) GetRouteOptimizerURL() string            { return c.url }
func (c optimizerCfg) GetRouteOptimizerAPIKey() string         { return c.apiKey }
func (c optimizerCfg) GetRouteOptimizerTimeout() time.Duration { return c.timeout }
func (c optimizerCfg) GetAverageSpeedMph() float64             { return 30 }
func (c optimizerCfg) IsRouteOptimizerEnabled() bool           { return c.url != "" }

func TestOptimizeMapsProviderResponse(t *testing.T) {
	jobA := uuid.New()
	jobB := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req providerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode provider request: %v", err)
		}
		if len(req.Waypoints) != 2 {
			t.Fatalf("expected 2 waypoints, got %d", len(req.Waypoints))
		}

		// Provider reverses the submitted order.
		resp := providerResponse{
			Stops: []providerStop{
				{JobID: jobB.String(), Sequence: 1, ArrivalOffsetMin: 15, TravelTimeMinutes: 15, DistanceMiles: 7.5},
				{JobID: jobA.String(), Sequence: 2, ArrivalOffsetMin: 75, TravelTimeMinutes: 20, DistanceMiles: 10},
			},
			TotalDistanceMiles: 17.5,
			TotalDriveMinutes:  35,
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	svc := NewService(optimizerCfg{url: server.URL, timeout: 2 * time.Second}, logger.New("development"))

	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	result, err := svc.Optimize(context.Background(), Request{
		StartTime: start,
		Mode:      ModeTime,
		Stops: []Stop{
			{JobID: jobA, Location: Point{Latitude: 40.0, Longitude: -75.0}},
			{JobID: jobB, Location: Point{Latitude: 40.1, Longitude: -75.1}},
		},
	})
	if err != nil {
		t.Fatalf("Optimize returned error: %v", err)
	}

	if result.Method != MethodRemote {
		t.Fatalf("expected remote method, got %q", result.Method)
	}
	if result.Stops[0].JobID != jobB {
		t.Fatalf("expected provider ordering preserved, got %v first", result.Stops[0].JobID)
	}
	wantArrival := start.Add(15 * time.Minute)
	if !result.Stops[0].ArrivalTime.Equal(wantArrival) {
		t.Fatalf("expected arrival %v, got %v", wantArrival, result.Stops[0].ArrivalTime)
	}
	if result.TotalDistanceMiles != 17.5 {
		t.Fatalf("expected total distance 17.5, got %.2f", result.TotalDistanceMiles)
	}
}

func TestOptimizeUpstreamErrorIsTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewService(optimizerCfg{url: server.URL, timeout: 2 * time.Second}, logger.New("development"))

	_, err := svc.Optimize(context.Background(), Request{
		StartTime: time.Now(),
		Mode:      ModeDistance,
		Stops:     []Stop{{JobID: uuid.New(), Location: Point{Latitude: 40, Longitude: -75}}},
	})
	if err == nil {
		t.Fatal("expected error from failing provider")
	}
	if !apperr.Is(err, apperr.KindRouteOptimization) {
		t.Fatalf("expected route optimization error kind, got %v", err)
	}
}

func TestOptimizeNotConfigured(t *testing.T) {
	svc := NewService(optimizerCfg{}, logger.New("development"))

	_, err := svc.Optimize(context.Background(), Request{StartTime: time.Now()})
	if !apperr.Is(err, apperr.KindRouteOptimization) {
		t.Fatalf("expected route optimization error when not configured, got %v", err)
	}
}

func TestOptimizeRejectsDroppedStops(t *testing.T) {
	job := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(providerResponse{Stops: []providerStop{}})
	}))
	defer server.Close()

	svc := NewService(optimizerCfg{url: server.URL, timeout: 2 * time.Second}, logger.New("development"))

	_, err := svc.Optimize(context.Background(), Request{
		StartTime: time.Now(),
		Mode:      ModeTime,
		Stops:     []Stop{{JobID: job, Location: Point{Latitude: 40, Longitude: -75}}},
	})
	if !apperr.Is(err, apperr.KindRouteOptimization) {
		t.Fatalf("expected typed error when provider drops stops, got %v", err)
	}
}
