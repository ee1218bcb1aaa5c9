package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/jacentio/livewall"
	"github.com/jacentio/livewall/repo"
)

// parseEmail validates and normalizes an address.
func parseEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return "", fmt.Errorf("%w: invalid email %q", livewall.ErrInvalidInput, email)
	}
	return repo.NormalizeEmail(addr.Address), nil
}

// CreateWall creates an unclaimed wall. The returned wall carries its owner
// key, which is never issued again.
func (s *Service) CreateWall(ctx context.Context) (*livewall.Wall, error) {
	wall := livewall.NewWall()
	if err := s.walls.Create(ctx, wall); err != nil {
		s.logWriteError("create_wall", err)
		return nil, err
	}
	s.log.Infow("wall created", "wall_id", wall.ID)
	return wall, nil
}

// CreateOwnedWall creates a wall that is owned from the start by a user who
// proves their email with its validation code.
func (s *Service) CreateOwnedWall(ctx context.Context, email, code string) (*livewall.Wall, error) {
	email, err := parseEmail(email)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !keyMatches(code, user.ValidationCode) {
		return nil, fmt.Errorf("user %s: %w", user.ID, livewall.ErrForbidden)
	}
	if err := s.markValidated(ctx, user); err != nil {
		return nil, err
	}

	wall := livewall.NewWall()
	wall.OwnerEmail = email
	wall.Status = livewall.WallOwned
	if err := s.walls.Create(ctx, wall); err != nil {
		s.logWriteError("create_owned_wall", err)
		return nil, err
	}
	s.log.Infow("owned wall created", "wall_id", wall.ID, "user_id", user.ID)
	s.notify(ctx, email, ownerWelcome(s.config.BaseURL, wall))
	return wall, nil
}

// GetWall returns a wall with its image ids, oldest first.
func (s *Service) GetWall(ctx context.Context, id string) (*livewall.Wall, error) {
	wall, err := s.walls.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	images, err := s.images.ListForWall(ctx, id)
	if err != nil {
		return nil, err
	}
	wall.ImageIDs = imageIDs(images)
	return wall, nil
}

// OpenWall returns a wall and its images for a caller holding the owner key.
func (s *Service) OpenWall(ctx context.Context, id, ownerKey string) (*livewall.Wall, []*livewall.Image, error) {
	wall, err := s.authorizedWall(ctx, id, ownerKey)
	if err != nil {
		return nil, nil, err
	}
	images, err := s.images.ListForWall(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	wall.ImageIDs = imageIDs(images)
	return wall, images, nil
}

// ClaimWall attaches email to a wall and sends the validation link. The wall
// stays NEW until ConfirmOwnership. While NEW the pending email may be
// replaced; once owned, only the current owner email is accepted.
func (s *Service) ClaimWall(ctx context.Context, id, ownerKey, email string) (*livewall.Wall, error) {
	email, err := parseEmail(email)
	if err != nil {
		return nil, err
	}
	wall, err := s.authorizedWall(ctx, id, ownerKey)
	if err != nil {
		return nil, err
	}
	if wall.Status.AtLeast(livewall.WallOwned) {
		if wall.OwnerEmail != email {
			return nil, fmt.Errorf("wall %s is already owned: %w", id, livewall.ErrConflict)
		}
		return wall, nil
	}

	user, err := s.ensureUser(ctx, email)
	if err != nil {
		return nil, err
	}

	wall.OwnerEmail = email
	if err := s.walls.Update(ctx, wall); err != nil {
		s.logWriteError("claim_wall", err)
		return nil, err
	}
	s.log.Infow("wall claimed", "wall_id", id, "user_id", user.ID)
	s.notify(ctx, email, claimMessage(s.config.BaseURL, wall, user))
	return wall, nil
}

// ConfirmOwnership completes a claim. The token must equal the validation
// code of the pending owner. The first confirmation moves the wall to OWNED,
// publishes an update and notifies the owner; later ones change nothing.
func (s *Service) ConfirmOwnership(ctx context.Context, id, token string) (*livewall.Wall, error) {
	wall, err := s.walls.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if wall.OwnerEmail == "" {
		return nil, fmt.Errorf("wall %s has no pending owner: %w", id, livewall.ErrNotFound)
	}
	user, err := s.users.GetByEmail(ctx, wall.OwnerEmail)
	if err != nil {
		return nil, err
	}
	if !keyMatches(token, user.ValidationCode) {
		return nil, fmt.Errorf("wall %s: %w", id, livewall.ErrForbidden)
	}
	if err := s.markValidated(ctx, user); err != nil {
		return nil, err
	}

	if wall.Status != livewall.WallNew {
		return wall, nil
	}
	wall.Status = livewall.WallOwned
	if err := s.walls.Update(ctx, wall); err != nil {
		s.logWriteError("confirm_ownership", err)
		return nil, err
	}
	s.log.Infow("wall owned", "wall_id", id, "user_id", user.ID)
	s.publish(livewall.EventUpdate, id, nil)
	s.notify(ctx, wall.OwnerEmail, ownerWelcome(s.config.BaseURL, wall))
	return wall, nil
}

// PaymentConfirmation is a payment provider's report for one wall.
type PaymentConfirmation struct {
	WallID     string
	OwnerKey   string
	PayerEmail string
	Paid       bool

	// PaymentID identifies the payment across webhook retries.
	PaymentID string
}

// UpgradeWall moves a paid wall to PREMIUM. Unpaid confirmations, repeated
// payment ids and walls already PREMIUM leave the wall unchanged and send
// nothing.
func (s *Service) UpgradeWall(ctx context.Context, p PaymentConfirmation) (*livewall.Wall, error) {
	wall, err := s.authorizedWall(ctx, p.WallID, p.OwnerKey)
	if err != nil {
		return nil, err
	}
	if !p.Paid {
		s.log.Infow("unpaid confirmation ignored", "wall_id", wall.ID, "payment_id", p.PaymentID)
		return wall, nil
	}
	if wall.Status == livewall.WallPremium {
		return wall, nil
	}
	if p.PaymentID != "" && s.payments.CheckAndMark(p.PaymentID) {
		s.log.Warnw("duplicate payment delivery", "wall_id", wall.ID, "payment_id", p.PaymentID)
		return wall, nil
	}

	if wall.OwnerEmail == "" && p.PayerEmail != "" {
		email, err := parseEmail(p.PayerEmail)
		if err != nil {
			s.payments.Forget(p.PaymentID)
			return nil, err
		}
		if _, err := s.ensureUser(ctx, email); err != nil {
			s.payments.Forget(p.PaymentID)
			return nil, err
		}
		wall.OwnerEmail = email
	}

	wall.Status = livewall.WallPremium
	if err := s.walls.Update(ctx, wall); err != nil {
		s.payments.Forget(p.PaymentID)
		s.logWriteError("upgrade_wall", err)
		return nil, err
	}
	s.log.Infow("wall upgraded", "wall_id", wall.ID, "payment_id", p.PaymentID)
	s.publish(livewall.EventUpdate, wall.ID, nil)
	if wall.OwnerEmail != "" {
		s.notify(ctx, wall.OwnerEmail, premiumMessage(s.config.BaseURL, wall))
	}
	return wall, nil
}

// ListWalls returns every wall.
func (s *Service) ListWalls(ctx context.Context) ([]*livewall.Wall, error) {
	return s.walls.List(ctx)
}

// Subscribe streams events of an existing wall until ctx is done.
func (s *Service) Subscribe(ctx context.Context, wallID string) (<-chan livewall.Event, error) {
	if _, err := s.walls.Get(ctx, wallID); err != nil {
		return nil, err
	}
	ch, subID := s.events.Subscribe(ctx, wallID)
	s.log.Debugw("viewer subscribed", "wall_id", wallID, "sub_id", subID)
	return ch, nil
}

func imageIDs(images []*livewall.Image) []string {
	ids := make([]string, 0, len(images))
	for _, img := range images {
		ids = append(ids, img.ID)
	}
	return ids
}
