package service

import (
	"bytes"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// captureTime extracts the EXIF capture timestamp from a photo. Photos
// without EXIF (screenshots, stripped uploads) return nil.
func captureTime(data []byte) *time.Time {
	meta, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	taken, err := meta.DateTime()
	if err != nil {
		return nil
	}
	return &taken
}
