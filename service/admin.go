package service

import (
	"context"
	"errors"

	"github.com/jacentio/livewall"
)

// ResetSummary counts what Reset removed.
type ResetSummary struct {
	Walls  int `json:"walls"`
	Images int `json:"images"`
	Users  int `json:"users"`
}

// Reset deletes every wall with its images and blobs, then every user.
// Records that vanish concurrently are skipped. On error the summary holds
// what was removed so far.
func (s *Service) Reset(ctx context.Context) (*ResetSummary, error) {
	sum := &ResetSummary{}

	walls, err := s.walls.List(ctx)
	if err != nil {
		return sum, err
	}
	for _, wall := range walls {
		images, err := s.images.ListForWall(ctx, wall.ID)
		if err != nil {
			return sum, err
		}
		for _, img := range images {
			if err := s.images.Delete(ctx, img); err != nil && !errors.Is(err, livewall.ErrNotFound) {
				s.logWriteError("reset_image", err)
				return sum, err
			}
			s.deleteBlob(ctx, img.ID)
			sum.Images++
		}
		if err := s.walls.Delete(ctx, wall); err != nil && !errors.Is(err, livewall.ErrNotFound) {
			s.logWriteError("reset_wall", err)
			return sum, err
		}
		sum.Walls++
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return sum, err
	}
	for _, user := range users {
		if err := s.users.Delete(ctx, user); err != nil && !errors.Is(err, livewall.ErrNotFound) {
			s.logWriteError("reset_user", err)
			return sum, err
		}
		sum.Users++
	}

	s.log.Warnw("all data reset", "walls", sum.Walls, "images", sum.Images, "users", sum.Users)
	return sum, nil
}
