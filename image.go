package livewall

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Image is an uploaded photo. The bytes live in the blob gateway; the entity
// only keeps a pointer to them.
type Image struct {
	ID          string `json:"id"`
	WallID      string `json:"wall_id"`
	BlobURL     string `json:"blob_url,omitempty"`
	ContentType string `json:"content_type"`

	// OwnerKey grants deletion rights for this image only.
	OwnerKey string `json:"-"`

	// Timestamp is the upload time in fractional unix seconds.
	Timestamp float64 `json:"timestamp"`

	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// NewImage returns an image for wallID with a fresh id and owner key.
func NewImage(wallID, contentType string) *Image {
	now := time.Now().UTC()
	return &Image{
		ID:          uuid.NewString(),
		WallID:      wallID,
		ContentType: contentType,
		OwnerKey:    uuid.NewString(),
		Timestamp:   float64(now.UnixNano()) / float64(time.Second),
		Created:     now,
		Modified:    now,
	}
}

// IsImageContentType reports whether ct names an image media type.
func IsImageContentType(ct string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "image/")
}
