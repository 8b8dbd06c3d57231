package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"fieldservice_backend/platform/apperr"
	"fieldservice_backend/platform/config"
	"fieldservice_backend/platform/logger"
)

// Service talks to the remote route optimization provider.
// When the provider is not configured or unreachable, callers fall back
// to OptimizeOffline.
type Service struct {
	client *http.Client
	cfg    config.RouteOptimizerConfig
	log    *logger.Logger
}

// NewService creates a routing service bound to the configured provider.
func NewService(cfg config.RouteOptimizerConfig, log *logger.Logger) *Service {
	return &Service{
		client: &http.Client{Timeout: cfg.GetRouteOptimizerTimeout()},
		cfg:    cfg,
		log:    log,
	}
}

// Enabled reports whether a remote provider is configured.
func (s *Service) Enabled() bool {
	return s.cfg.IsRouteOptimizerEnabled()
}

// AverageSpeedMph exposes the configured speed for offline estimation.
func (s *Service) AverageSpeedMph() float64 {
	return s.cfg.GetAverageSpeedMph()
}

type providerWaypoint struct {
	JobID string  `json:"jobId"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

type providerRequest struct {
	Start     *Point             `json:"start,omitempty"`
	Mode      string             `json:"mode"`
	Waypoints []providerWaypoint `json:"waypoints"`
}

type providerStop struct {
	JobID             string  `json:"jobId"`
	Sequence          int     `json:"sequence"`
	ArrivalOffsetMin  float64 `json:"arrivalOffsetMinutes"`
	TravelTimeMinutes float64 `json:"travelTimeMinutes"`
	DistanceMiles     float64 `json:"distanceMiles"`
}

type providerResponse struct {
	Stops              []providerStop `json:"stops"`
	TotalDistanceMiles float64        `json:"totalDistanceMiles"`
	TotalDriveMinutes  float64        `json:"totalDriveMinutes"`
}

// Optimize sends the stops to the remote provider and maps the response.
// One attempt only; the provider timeout bounds the call. Provider failures
// return a typed error so the HTTP layer reports 502.
func (s *Service) Optimize(ctx context.Context, req Request) (*Result, error) {
	if !s.Enabled() {
		return nil, apperr.RouteOptimization("route optimizer not configured", nil)
	}

	payload := providerRequest{
		Start:     req.Anchor,
		Mode:      req.Mode,
		Waypoints: make([]providerWaypoint, 0, len(req.Stops)),
	}
	for _, stop := range req.Stops {
		payload.Waypoints = append(payload.Waypoints, providerWaypoint{
			JobID: stop.JobID.String(),
			Lat:   stop.Location.Latitude,
			Lng:   stop.Location.Longitude,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode optimizer request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.GetRouteOptimizerURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build optimizer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if key := s.cfg.GetRouteOptimizerAPIKey(); key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		s.log.ProviderCall("route_optimizer", "optimize", latency, err)
		return nil, apperr.RouteOptimization("route optimizer unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		upstreamErr := fmt.Errorf("upstream status %d", resp.StatusCode)
		s.log.ProviderCall("route_optimizer", "optimize", latency, upstreamErr)
		return nil, apperr.RouteOptimization("route optimizer returned an error", upstreamErr)
	}

	var decoded providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		s.log.ProviderCall("route_optimizer", "optimize", latency, err)
		return nil, apperr.RouteOptimization("route optimizer returned invalid payload", err)
	}
	s.log.ProviderCall("route_optimizer", "optimize", latency, nil)

	return s.mapResponse(req, decoded)
}

func (s *Service) mapResponse(req Request, decoded providerResponse) (*Result, error) {
	byID := make(map[string]Stop, len(req.Stops))
	for _, stop := range req.Stops {
		byID[stop.JobID.String()] = stop
	}

	result := &Result{
		Stops:              make([]OptimizedStop, 0, len(decoded.Stops)),
		TotalDistanceMiles: decoded.TotalDistanceMiles,
		TotalDriveMinutes:  decoded.TotalDriveMinutes,
		Method:             MethodRemote,
	}

	for _, stop := range decoded.Stops {
		source, ok := byID[stop.JobID]
		if !ok {
			return nil, apperr.RouteOptimization("route optimizer returned unknown stop", fmt.Errorf("jobId %s", stop.JobID))
		}

		arrival := req.StartTime.Add(time.Duration(stop.ArrivalOffsetMin * float64(time.Minute)))
		result.Stops = append(result.Stops, OptimizedStop{
			JobID:             source.JobID,
			Sequence:          stop.Sequence,
			ArrivalTime:       arrival,
			TravelTimeMinutes: stop.TravelTimeMinutes,
			DistanceMiles:     stop.DistanceMiles,
		})
	}

	if len(result.Stops) != len(req.Stops) {
		return nil, apperr.RouteOptimization("route optimizer dropped stops", fmt.Errorf("sent %d, got %d", len(req.Stops), len(result.Stops)))
	}

	return result, nil
}
