// Package service implements the wall lifecycle: creating and claiming
// walls, confirming ownership, premium upgrades, image uploads and the
// live event stream.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jacentio/livewall"
	"github.com/jacentio/livewall/broadcast"
	"github.com/jacentio/livewall/gateway"
	"github.com/jacentio/livewall/internal/dedupe"
	"github.com/jacentio/livewall/repo"
	"github.com/jacentio/livewall/store"
)

// Events publishes and subscribes to wall events.
type Events interface {
	Publish(event livewall.Event)
	Subscribe(ctx context.Context, wallID string) (<-chan livewall.Event, string)
}

// Config holds service settings.
type Config struct {
	// BaseURL prefixes links in outgoing notifications.
	BaseURL string

	// PaymentDedupeTTL is how long a payment id is remembered.
	// Default: 24h
	PaymentDedupeTTL time.Duration

	// ModerationPageSize is the number of latest images on the moderation view.
	// Default: 10
	ModerationPageSize int

	// MaxImageBytes bounds uploads. Zero means unbounded.
	MaxImageBytes int
}

func (c *Config) validate() {
	if c.PaymentDedupeTTL <= 0 {
		c.PaymentDedupeTTL = 24 * time.Hour
	}
	if c.ModerationPageSize <= 0 {
		c.ModerationPageSize = 10
	}
}

// Deps are the collaborators of the service. Nil fields get in-process
// defaults.
type Deps struct {
	Blobs     gateway.BlobStore
	Notifier  gateway.Notifier
	Moderator gateway.Moderator
	Events    Events
}

// Service is the wall service.
type Service struct {
	users  *repo.Users
	walls  *repo.Walls
	images *repo.Images

	blobs     gateway.BlobStore
	notifier  gateway.Notifier
	moderator gateway.Moderator
	events    Events

	payments *dedupe.Set
	config   Config
	log      *zap.SugaredLogger
}

// New creates a Service over backend.
func New(backend store.Backend, deps Deps, config Config, log *zap.SugaredLogger) *Service {
	config.validate()
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if deps.Blobs == nil {
		deps.Blobs = gateway.NewMemoryBlobs()
	}
	if deps.Notifier == nil {
		deps.Notifier = gateway.NewLogNotifier(log)
	}
	if deps.Moderator == nil {
		deps.Moderator = gateway.AllowAll{}
	}
	if deps.Events == nil {
		deps.Events = broadcast.New(0, log)
	}
	return &Service{
		users:     repo.NewUsers(backend),
		walls:     repo.NewWalls(backend),
		images:    repo.NewImages(backend),
		blobs:     deps.Blobs,
		notifier:  deps.Notifier,
		moderator: deps.Moderator,
		events:    deps.Events,
		payments:  dedupe.New(config.PaymentDedupeTTL, 0),
		config:    config,
		log:       log.With("component", "wall_service"),
	}
}

// keyMatches compares bearer secrets in constant time. An empty stored key
// never matches.
func keyMatches(presented, stored string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}

// authorizedWall loads the wall and checks the owner key.
func (s *Service) authorizedWall(ctx context.Context, id, ownerKey string) (*livewall.Wall, error) {
	wall, err := s.walls.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !keyMatches(ownerKey, wall.OwnerKey) {
		return nil, fmt.Errorf("wall %s: %w", id, livewall.ErrForbidden)
	}
	return wall, nil
}

// publish sends an event for wallID.
func (s *Service) publish(t livewall.EventType, wallID string, img *livewall.Image) {
	s.events.Publish(livewall.NewEvent(t, wallID, img))
}

// logWriteError notes partial writes, which leave indexes inconsistent.
func (s *Service) logWriteError(op string, err error) {
	var pw *livewall.PartialWriteError
	if errors.As(err, &pw) {
		s.log.Warnw("partial write",
			"op", op,
			"entity", pw.Entity,
			"written", pw.Written,
			"failed", pw.Failed,
			"error", pw.Cause)
	}
}
