package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jacentio/livewall"
)

// AddImage stores an uploaded image on a wall and publishes an add event.
// The returned image carries its own owner key, needed to delete it later.
func (s *Service) AddImage(ctx context.Context, wallID, ownerKey string, data []byte, contentType string) (*livewall.Image, error) {
	if !livewall.IsImageContentType(contentType) {
		return nil, fmt.Errorf("%w: content type %q is not an image", livewall.ErrInvalidInput, contentType)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", livewall.ErrInvalidInput)
	}
	if s.config.MaxImageBytes > 0 && len(data) > s.config.MaxImageBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", livewall.ErrInvalidInput, s.config.MaxImageBytes)
	}
	if _, err := s.authorizedWall(ctx, wallID, ownerKey); err != nil {
		return nil, err
	}

	ok, err := s.moderator.Check(ctx, data)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.log.Infow("image rejected by moderation", "wall_id", wallID)
		return nil, fmt.Errorf("%w: image rejected by moderation", livewall.ErrInvalidInput)
	}

	img := livewall.NewImage(wallID, contentType)
	url, err := s.blobs.Store(ctx, img.ID, data, contentType)
	if err != nil {
		return nil, err
	}
	img.BlobURL = url

	if err := s.images.Create(ctx, img); err != nil {
		s.logWriteError("add_image", err)
		if !errors.Is(err, livewall.ErrPartialWrite) {
			s.deleteBlob(ctx, img.ID)
		}
		return nil, err
	}
	s.log.Infow("image added", "wall_id", wallID, "image_id", img.ID, "bytes", len(data))
	s.publish(livewall.EventAdd, wallID, img)
	return img, nil
}

// GetImage returns an image and its bytes.
func (s *Service) GetImage(ctx context.Context, id string) (*livewall.Image, []byte, error) {
	img, err := s.images.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Fetch(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return img, data, nil
}

// LookupImage returns an image without fetching its bytes.
func (s *Service) LookupImage(ctx context.Context, id string) (*livewall.Image, error) {
	return s.images.Get(ctx, id)
}

// DeleteImage removes an image. requesterKey may be the image's own owner
// key or the owner key of its wall.
func (s *Service) DeleteImage(ctx context.Context, id, requesterKey string) error {
	img, err := s.images.Get(ctx, id)
	if err != nil {
		return err
	}
	if !keyMatches(requesterKey, img.OwnerKey) {
		wall, err := s.walls.Get(ctx, img.WallID)
		if err != nil && !errors.Is(err, livewall.ErrNotFound) {
			return err
		}
		if wall == nil || !keyMatches(requesterKey, wall.OwnerKey) {
			return fmt.Errorf("image %s: %w", id, livewall.ErrForbidden)
		}
	}

	if err := s.images.Delete(ctx, img); err != nil {
		s.logWriteError("delete_image", err)
		return err
	}
	s.deleteBlob(ctx, id)
	s.log.Infow("image deleted", "wall_id", img.WallID, "image_id", id)
	s.publish(livewall.EventDelete, img.WallID, img)
	return nil
}

// deleteBlob removes image bytes. Failures are left to the blob sweeper.
func (s *Service) deleteBlob(ctx context.Context, id string) {
	if err := s.blobs.Delete(ctx, id); err != nil {
		s.log.Warnw("blob delete failed", "image_id", id, "error", err)
	}
}

// ListImages returns a wall's images, oldest first.
func (s *Service) ListImages(ctx context.Context, wallID string) ([]*livewall.Image, error) {
	if _, err := s.walls.Get(ctx, wallID); err != nil {
		return nil, err
	}
	return s.images.ListForWall(ctx, wallID)
}

// ModerationView is what a wall owner sees when reviewing uploads.
type ModerationView struct {
	Wall *livewall.Wall `json:"wall"`

	// Owner is nil until the wall has an owner email.
	Owner *livewall.User `json:"owner,omitempty"`

	// Images are the latest uploads, newest first.
	Images []*livewall.Image `json:"images"`
}

// Moderation returns the moderation view of a wall.
func (s *Service) Moderation(ctx context.Context, wallID, ownerKey string) (*ModerationView, error) {
	wall, err := s.authorizedWall(ctx, wallID, ownerKey)
	if err != nil {
		return nil, err
	}
	images, err := s.images.ListForWall(ctx, wallID)
	if err != nil {
		return nil, err
	}
	wall.ImageIDs = imageIDs(images)

	sort.SliceStable(images, func(i, j int) bool {
		return images[i].Timestamp > images[j].Timestamp
	})
	if len(images) > s.config.ModerationPageSize {
		images = images[:s.config.ModerationPageSize]
	}

	view := &ModerationView{Wall: wall, Images: images}
	if wall.OwnerEmail != "" {
		owner, err := s.users.GetByEmail(ctx, wall.OwnerEmail)
		switch {
		case err == nil:
			view.Owner = owner
		case !errors.Is(err, livewall.ErrNotFound):
			return nil, err
		}
	}
	return view, nil
}
