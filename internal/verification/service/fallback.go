package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fieldservice_backend/platform/apperr"
	"fieldservice_backend/platform/config"
	"fieldservice_backend/platform/logger"

	"google.golang.org/genai"
)

// VisionEvaluator is the slower second stage of the verification chain. It
// sends the photo inline to a Gemini model and asks for a structured
// judgement on the expected labels.
type VisionEvaluator struct {
	client *genai.Client
	model  string
	log    *logger.Logger
}

// NewVisionEvaluator creates the genai-backed fallback evaluator.
func NewVisionEvaluator(ctx context.Context, cfg config.VisionConfig, log *logger.Logger) (*VisionEvaluator, error) {
	if !cfg.IsVisionFallbackEnabled() {
		return nil, fmt.Errorf("vision fallback is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.GetGeminiAPIKey(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &VisionEvaluator{
		client: client,
		model:  cfg.GetVisionModel(),
		log:    log,
	}, nil
}

type visionVerdict struct {
	MatchedLabels []string `json:"matchedLabels"`
	MissingLabels []string `json:"missingLabels"`
	Confidence    float64  `json:"confidence"`
}

// Detect asks the vision model whether the expected items are visible in the
// photo. The model answers in JSON; anything else is a provider error.
func (v *VisionEvaluator) Detect(ctx context.Context, photo Photo, expectedLabels []string) (*Detection, error) {
	content := &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			{
				InlineData: &genai.Blob{
					MIMEType: photo.MIMEType,
					Data:     photo.Data,
				},
			},
			genai.NewPartFromText(buildVisionPrompt(expectedLabels)),
		},
	}

	start := time.Now()
	resp, err := v.client.Models.GenerateContent(ctx, v.model, []*genai.Content{content}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		v.log.ProviderCall("vision_fallback", "generate_content", latency, err)
		return nil, apperr.DetectionProvider("vision evaluator call failed", err)
	}

	text := strings.TrimSpace(resp.Text())
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var verdict visionVerdict
	if err := json.Unmarshal([]byte(text), &verdict); err != nil {
		v.log.ProviderCall("vision_fallback", "generate_content", latency, err)
		return nil, apperr.DetectionProvider("vision evaluator returned invalid payload", err)
	}
	v.log.ProviderCall("vision_fallback", "generate_content", latency, nil)

	return &Detection{
		MatchedLabels: verdict.MatchedLabels,
		MissingLabels: verdict.MissingLabels,
		Confidence:    verdict.Confidence,
	}, nil
}

func buildVisionPrompt(expectedLabels []string) string {
	var b strings.Builder
	b.WriteString("You are verifying a field technician's truck load photo.\n")
	b.WriteString("Expected items:\n")
	for _, label := range expectedLabels {
		b.WriteString("- ")
		b.WriteString(label)
		b.WriteString("\n")
	}
	b.WriteString("\nReport which expected items are clearly visible in the photo.\n")
	b.WriteString(`Respond with JSON only: {"matchedLabels": [...], "missingLabels": [...], "confidence": 0.0}` + "\n")
	b.WriteString("confidence is your overall certainty in [0,1] that every matched item is really present.")
	return b.String()
}
