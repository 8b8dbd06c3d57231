package service

import "context"

// Photo is raw image data handed to a detector.
type Photo struct {
	Data     []byte
	MIMEType string
	FileName string
}

// Detection is the outcome of one detector pass over a photo.
type Detection struct {
	MatchedLabels []string
	MissingLabels []string
	Confidence    float64
}

// Detector evaluates a photo against a set of expected labels. Both the
// primary object detector and the vision fallback satisfy it, so tests can
// substitute either stage.
type Detector interface {
	Detect(ctx context.Context, photo Photo, expectedLabels []string) (*Detection, error)
}
