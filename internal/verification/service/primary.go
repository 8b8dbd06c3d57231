package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fieldservice_backend/platform/apperr"
	"fieldservice_backend/platform/config"
	"fieldservice_backend/platform/logger"
)

// PrimaryDetector calls the remote object-detection service. It is the fast
// first stage of the verification chain.
type PrimaryDetector struct {
	client *http.Client
	cfg    config.VisionConfig
	log    *logger.Logger
}

// NewPrimaryDetector creates a detector bound to the configured provider.
func NewPrimaryDetector(cfg config.VisionConfig, log *logger.Logger) *PrimaryDetector {
	return &PrimaryDetector{
		client: &http.Client{Timeout: cfg.GetDetectorTimeout()},
		cfg:    cfg,
		log:    log,
	}
}

// Enabled reports whether a detector endpoint is configured.
func (d *PrimaryDetector) Enabled() bool {
	return d.cfg.GetDetectorURL() != ""
}

type detectorRequest struct {
	Image  string   `json:"image"` // base64
	Labels []string `json:"labels"`
}

type detectorHit struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type detectorResponse struct {
	Detections []detectorHit `json:"detections"`
}

// Detect sends the photo to the detection provider and reconciles its hits
// against the expected labels. The overall confidence is the weakest expected
// label; a label the provider never reports scores zero.
func (d *PrimaryDetector) Detect(ctx context.Context, photo Photo, expectedLabels []string) (*Detection, error) {
	if !d.Enabled() {
		return nil, apperr.DetectionProvider("object detector not configured", nil)
	}

	payload := detectorRequest{
		Image:  base64.StdEncoding.EncodeToString(photo.Data),
		Labels: expectedLabels,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode detector request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.GetDetectorURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build detector request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if key := d.cfg.GetDetectorAPIKey(); key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}

	start := time.Now()
	resp, err := d.client.Do(httpReq)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		d.log.ProviderCall("detector", "detect", latency, err)
		return nil, apperr.DetectionProvider("object detector unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		upstreamErr := fmt.Errorf("upstream status %d", resp.StatusCode)
		d.log.ProviderCall("detector", "detect", latency, upstreamErr)
		return nil, apperr.DetectionProvider("object detector returned an error", upstreamErr)
	}

	var decoded detectorResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		d.log.ProviderCall("detector", "detect", latency, err)
		return nil, apperr.DetectionProvider("object detector returned invalid payload", err)
	}
	d.log.ProviderCall("detector", "detect", latency, nil)

	return reconcile(decoded.Detections, expectedLabels), nil
}

func reconcile(hits []detectorHit, expectedLabels []string) *Detection {
	best := make(map[string]float64, len(hits))
	for _, hit := range hits {
		label := strings.ToLower(strings.TrimSpace(hit.Label))
		if hit.Confidence > best[label] {
			best[label] = hit.Confidence
		}
	}

	result := &Detection{
		MatchedLabels: make([]string, 0, len(expectedLabels)),
		MissingLabels: make([]string, 0),
		Confidence:    1,
	}
	for _, expected := range expectedLabels {
		confidence, found := best[strings.ToLower(strings.TrimSpace(expected))]
		if found && confidence > 0 {
			result.MatchedLabels = append(result.MatchedLabels, expected)
		} else {
			result.MissingLabels = append(result.MissingLabels, expected)
		}
		if confidence < result.Confidence {
			result.Confidence = confidence
		}
	}
	if len(expectedLabels) == 0 {
		result.Confidence = 0
	}

	return result
}
