package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jacentio/livewall"
)

// ensureUser returns the user for email, creating it if needed.
func (s *Service) ensureUser(ctx context.Context, email string) (*livewall.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, livewall.ErrNotFound) {
		return nil, err
	}

	user, err = livewall.NewUser(email)
	if err != nil {
		return nil, err
	}
	err = s.users.Create(ctx, user)
	switch {
	case err == nil:
		s.log.Infow("user created", "user_id", user.ID)
		return user, nil
	case errors.Is(err, livewall.ErrConflict):
		// Lost a race with another claim for the same email.
		return s.users.GetByEmail(ctx, email)
	default:
		s.logWriteError("create_user", err)
		return nil, err
	}
}

func (s *Service) markValidated(ctx context.Context, user *livewall.User) error {
	if user.Validated {
		return nil
	}
	user.Validated = true
	if err := s.users.Update(ctx, user); err != nil {
		s.logWriteError("validate_user", err)
		return err
	}
	s.log.Infow("user validated", "user_id", user.ID)
	return nil
}

// WallSummary is one wall on a user's dashboard.
type WallSummary struct {
	Wall       *livewall.Wall `json:"wall"`
	ImageCount int            `json:"image_count"`
}

// Dashboard is a user's view of their walls.
type Dashboard struct {
	User  *livewall.User `json:"user"`
	Walls []WallSummary  `json:"walls"`
}

// UserDashboard lists the walls owned by a user with their image counts.
// token is the user's validation code.
func (s *Service) UserDashboard(ctx context.Context, userID, token string) (*Dashboard, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !keyMatches(token, user.ValidationCode) {
		return nil, fmt.Errorf("user %s: %w", userID, livewall.ErrForbidden)
	}
	walls, err := s.walls.ListForOwner(ctx, user.Email)
	if err != nil {
		return nil, err
	}

	summaries := make([]WallSummary, len(walls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, w := range walls {
		i, w := i, w
		g.Go(func() error {
			images, err := s.images.ListForWall(gctx, w.ID)
			if err != nil {
				return err
			}
			summaries[i] = WallSummary{Wall: w, ImageCount: len(images)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Dashboard{User: user, Walls: summaries}, nil
}

// ListUsers returns every user.
func (s *Service) ListUsers(ctx context.Context) ([]*livewall.User, error) {
	return s.users.List(ctx)
}
