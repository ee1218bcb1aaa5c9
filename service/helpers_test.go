package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jacentio/livewall"
	"github.com/jacentio/livewall/broadcast"
	"github.com/jacentio/livewall/gateway"
	"github.com/jacentio/livewall/service"
	"github.com/jacentio/livewall/store"
)

type sentMessage struct {
	to, subject, body string
}

// recordingNotifier keeps every message it is asked to send.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *recordingNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{to, subject, body})
	return n.err
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

func (n *recordingNotifier) count(subject string) int {
	c := 0
	for _, m := range n.messages() {
		if m.subject == subject {
			c++
		}
	}
	return c
}

type rejectingModerator struct{ err error }

func (m rejectingModerator) Check(ctx context.Context, data []byte) (bool, error) {
	return false, m.err
}

var errModeration = errors.New("moderation down")

type fixture struct {
	svc      *service.Service
	backend  *store.Memory
	blobs    *gateway.MemoryBlobs
	notifier *recordingNotifier
	events   *broadcast.Broadcaster
}

func newFixture(t *testing.T, mod gateway.Moderator) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	f := &fixture{
		backend:  store.NewMemory(),
		blobs:    gateway.NewMemoryBlobs(),
		notifier: &recordingNotifier{},
		events:   broadcast.New(16, log),
	}
	t.Cleanup(f.events.Close)
	f.svc = service.New(f.backend, service.Deps{
		Blobs:     f.blobs,
		Notifier:  f.notifier,
		Moderator: mod,
		Events:    f.events,
	}, service.Config{BaseURL: "https://walls.example/"}, log)
	return f
}

func nextEvent(t *testing.T, ch <-chan livewall.Event) livewall.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return livewall.Event{}
}

func noEvent(t *testing.T, ch <-chan livewall.Event) {
	t.Helper()
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

// validationCode reads the code mailed in the claim message.
func (f *fixture) validationCode(t *testing.T, email string) string {
	t.Helper()
	ctx := context.Background()
	u, err := f.userByEmail(ctx, email)
	require.NoError(t, err)
	return u.ValidationCode
}

func (f *fixture) userByEmail(ctx context.Context, email string) (*livewall.User, error) {
	users, err := f.svc.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, livewall.ErrNotFound
}
