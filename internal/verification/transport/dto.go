// Package transport defines request and response DTOs for load verification.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// ManifestItem maps one checklist item onto one of the uploaded photos.
type ManifestItem struct {
	ChecklistItemID uuid.UUID `json:"checklistItemId" validate:"required"`
	PhotoIndex      int       `json:"photoIndex" validate:"min=0"`
	ExpectedLabels  []string  `json:"expectedLabels" validate:"required,min=1"`
}

// VerifyLoadManifest is the JSON part of the multipart verify-load request.
type VerifyLoadManifest struct {
	KitID uuid.UUID      `json:"kitId" validate:"required"`
	Items []ManifestItem `json:"items" validate:"required,min=1,dive"`
}

// VerificationResult is the outcome of verifying one checklist item.
type VerificationResult struct {
	ChecklistItemID uuid.UUID  `json:"checklistItemId"`
	PhotoID         uuid.UUID  `json:"photoId"`
	Verified        bool       `json:"verified"`
	Confidence      float64    `json:"confidence"`
	MatchedLabels   []string   `json:"matchedLabels"`
	MissingLabels   []string   `json:"missingLabels"`
	FallbackUsed    bool       `json:"fallbackUsed"`
	CapturedAt      *time.Time `json:"capturedAt,omitempty"`
}

// VerifyLoadResponse reports the verification outcome for all items.
type VerifyLoadResponse struct {
	JobID       uuid.UUID            `json:"jobId"`
	KitID       uuid.UUID            `json:"kitId"`
	AllVerified bool                 `json:"allVerified"`
	Results     []VerificationResult `json:"results"`
}

// PhotoEvidence is a stored verification photo.
type PhotoEvidence struct {
	PhotoID uuid.UUID `json:"photoId"`
	FileKey string    `json:"fileKey"`
	URL     string    `json:"url,omitempty"`
}
