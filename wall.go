package livewall

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WallStatus is the ownership state of a wall.
type WallStatus string

const (
	WallNew     WallStatus = "new"
	WallOwned   WallStatus = "owned"
	WallPremium WallStatus = "premium"
)

func (s WallStatus) rank() int {
	switch s {
	case WallNew:
		return 0
	case WallOwned:
		return 1
	case WallPremium:
		return 2
	}
	return -1
}

// Valid reports whether s is a known status.
func (s WallStatus) Valid() bool { return s.rank() >= 0 }

// AtLeast reports whether s is at or past other in the lifecycle.
func (s WallStatus) AtLeast(other WallStatus) bool { return s.rank() >= other.rank() }

// ParseWallStatus converts a stored value into a WallStatus.
func ParseWallStatus(v string) (WallStatus, error) {
	s := WallStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown wall status %q", ErrInvalidInput, v)
	}
	return s, nil
}

// Wall is one event display collecting images.
type Wall struct {
	ID string `json:"id"`

	// OwnerKey is the bearer secret issued at creation. It is never reissued.
	OwnerKey string `json:"-"`

	// OwnerEmail is empty until the wall is claimed.
	OwnerEmail string     `json:"owner_email,omitempty"`
	Status     WallStatus `json:"status"`

	// ImageIDs is derived from image records and never persisted on the wall.
	ImageIDs []string `json:"image_ids,omitempty"`

	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// NewWall returns an unclaimed wall with a fresh id and owner key.
func NewWall() *Wall {
	now := time.Now().UTC()
	return &Wall{
		ID:       uuid.NewString(),
		OwnerKey: uuid.NewString(),
		Status:   WallNew,
		Created:  now,
		Modified: now,
	}
}

// Touch bumps the modification time.
func (w *Wall) Touch() { w.Modified = time.Now().UTC() }
