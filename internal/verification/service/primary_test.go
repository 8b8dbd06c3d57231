package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fieldservice_backend/platform/apperr"
	"fieldservice_backend/platform/logger"
)

type detectorCfg struct {
	url string
}

func (c detectorCfg) GetDetectorURL() string                  { return c.url }
func (c detectorCfg) GetDetectorAPIKey() string               { return "secret" }
func (c detectorCfg) GetDetectorTimeout() time.Duration       { return 2 * time.Second }
func (c detectorCfg) GetGeminiAPIKey() string                 { return "" }
func (c detectorCfg) GetVisionModel() string                  { return "" }
func (c detectorCfg) GetConfidenceThreshold() float64         { return 0.6 }
func (c detectorCfg) GetFallbackConfidenceThreshold() float64 { return 0.75 }
func (c detectorCfg) IsVisionFallbackEnabled() bool           { return false }

func TestPrimaryDetectorReconcilesLabels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req detectorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(detectorResponse{
			Detections: []detectorHit{
				{Label: "Ladder", Confidence: 0.91},
				{Label: "ladder", Confidence: 0.85}, // duplicate, lower score
				{Label: "tarp", Confidence: 0.7},    // not expected
			},
		})
	}))
	defer server.Close()

	detector := NewPrimaryDetector(detectorCfg{url: server.URL}, logger.New("development"))
	detection, err := detector.Detect(context.Background(), Photo{Data: []byte("img"), MIMEType: "image/jpeg"},
		[]string{"ladder", "pipe wrench"})
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}

	if len(detection.MatchedLabels) != 1 || detection.MatchedLabels[0] != "ladder" {
		t.Fatalf("expected ladder matched, got %v", detection.MatchedLabels)
	}
	if len(detection.MissingLabels) != 1 || detection.MissingLabels[0] != "pipe wrench" {
		t.Fatalf("expected pipe wrench missing, got %v", detection.MissingLabels)
	}
	// Overall confidence is the weakest expected label: pipe wrench scored 0.
	if detection.Confidence != 0 {
		t.Fatalf("expected zero confidence with a missing label, got %v", detection.Confidence)
	}
}

func TestPrimaryDetectorAllLabelsPresent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(detectorResponse{
			Detections: []detectorHit{
				{Label: "ladder", Confidence: 0.91},
				{Label: "pipe wrench", Confidence: 0.78},
			},
		})
	}))
	defer server.Close()

	detector := NewPrimaryDetector(detectorCfg{url: server.URL}, logger.New("development"))
	detection, err := detector.Detect(context.Background(), Photo{Data: []byte("img")}, []string{"ladder", "pipe wrench"})
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}

	if len(detection.MissingLabels) != 0 {
		t.Fatalf("expected no missing labels, got %v", detection.MissingLabels)
	}
	if detection.Confidence != 0.78 {
		t.Fatalf("expected weakest-label confidence 0.78, got %v", detection.Confidence)
	}
}

func TestPrimaryDetectorUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	detector := NewPrimaryDetector(detectorCfg{url: server.URL}, logger.New("development"))
	_, err := detector.Detect(context.Background(), Photo{Data: []byte("img")}, []string{"ladder"})
	if !apperr.Is(err, apperr.KindDetectionProvider) {
		t.Fatalf("expected detection provider error, got %v", err)
	}
}

func TestPrimaryDetectorNotConfigured(t *testing.T) {
	detector := NewPrimaryDetector(detectorCfg{}, logger.New("development"))
	_, err := detector.Detect(context.Background(), Photo{}, []string{"ladder"})
	if !apperr.Is(err, apperr.KindDetectionProvider) {
		t.Fatalf("expected detection provider error, got %v", err)
	}
}
