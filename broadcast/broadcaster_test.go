package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jacentio/livewall"
)

func makeEvent(wallID string) livewall.Event {
	return livewall.NewEvent(livewall.EventAdd, wallID, livewall.NewImage(wallID, "image/jpeg"))
}

func receive(t *testing.T, ch <-chan livewall.Event) livewall.Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "channel closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return livewall.Event{}
}

func assertNothing(t *testing.T, ch <-chan livewall.Event) {
	t.Helper()
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcaster_SingleSubscriberReceivesEvent(t *testing.T) {
	b := New(0, zaptest.NewLogger(t).Sugar())
	defer b.Close()

	ch, _ := b.Subscribe(context.Background(), "wall-1")
	event := makeEvent("wall-1")
	b.Publish(event)

	got := receive(t, ch)
	assert.Equal(t, event.Image.ID, got.Image.ID)
	assert.Equal(t, livewall.EventAdd, got.Type)
}

func TestBroadcaster_AllSubscribersOfWallReceive(t *testing.T) {
	b := New(0, nil)
	defer b.Close()

	ctx := context.Background()
	chans := []<-chan livewall.Event{}
	for i := 0; i < 3; i++ {
		ch, _ := b.Subscribe(ctx, "wall-1")
		chans = append(chans, ch)
	}
	assert.Equal(t, 3, b.Subscribers("wall-1"))

	b.Publish(makeEvent("wall-1"))
	for _, ch := range chans {
		assert.Equal(t, "wall-1", receive(t, ch).WallID)
	}
}

func TestBroadcaster_WallsAreIsolated(t *testing.T) {
	b := New(0, nil)
	defer b.Close()

	ctx := context.Background()
	ch1, _ := b.Subscribe(ctx, "wall-1")
	ch2, _ := b.Subscribe(ctx, "wall-2")

	b.Publish(makeEvent("wall-1"))

	assert.Equal(t, "wall-1", receive(t, ch1).WallID)
	assertNothing(t, ch2)
}

func TestBroadcaster_PublishWithoutSubscribers(t *testing.T) {
	b := New(0, nil)
	defer b.Close()

	assert.NotPanics(t, func() { b.Publish(makeEvent("nobody")) })
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := New(0, nil)
	defer b.Close()

	ch, subID := b.Subscribe(context.Background(), "wall-1")
	b.Unsubscribe("wall-1", subID)
	b.Unsubscribe("wall-1", subID)

	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, b.Subscribers("wall-1"))
}

func TestBroadcaster_ContextCancelUnsubscribes(t *testing.T) {
	b := New(0, nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx, "wall-1")
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	assert.Eventually(t, func() bool { return b.Subscribers("wall-1") == 0 }, time.Second, 10*time.Millisecond)
}

func TestBroadcaster_FullBufferDropsForThatSubscriberOnly(t *testing.T) {
	b := New(1, nil)
	defer b.Close()

	ctx := context.Background()
	slow, _ := b.Subscribe(ctx, "wall-1")
	fast, _ := b.Subscribe(ctx, "wall-1")

	first := makeEvent("wall-1")
	second := makeEvent("wall-1")

	b.Publish(first)
	assert.Equal(t, first.Image.ID, receive(t, fast).Image.ID)
	b.Publish(second)
	assert.Equal(t, second.Image.ID, receive(t, fast).Image.ID)

	// slow kept only the first event.
	assert.Equal(t, first.Image.ID, receive(t, slow).Image.ID)
	assertNothing(t, slow)
}

func TestBroadcaster_PerSubscriberOrder(t *testing.T) {
	b := New(16, nil)
	defer b.Close()

	ch, _ := b.Subscribe(context.Background(), "wall-1")
	var sent []string
	for i := 0; i < 10; i++ {
		e := makeEvent("wall-1")
		sent = append(sent, e.Image.ID)
		b.Publish(e)
	}
	for _, id := range sent {
		assert.Equal(t, id, receive(t, ch).Image.ID)
	}
}

func TestBroadcaster_ConcurrentSubscribeUnsubscribeDuringPublish(t *testing.T) {
	b := New(4, nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	other, _ := b.Subscribe(ctx, "wall-2")

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				b.Publish(makeEvent("wall-1"))
			}
		}
	}()

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ch, subID := b.Subscribe(ctx, "wall-1")
				// Drain whatever arrived, then leave.
				select {
				case e, ok := <-ch:
					if ok {
						assert.Equal(t, "wall-1", e.WallID)
					}
				default:
				}
				b.Unsubscribe("wall-1", subID)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()

	assert.Zero(t, b.Subscribers("wall-1"))
	assertNothing(t, other)
}

func TestBroadcaster_CloseClosesAll(t *testing.T) {
	b := New(0, nil)

	ch1, _ := b.Subscribe(context.Background(), "wall-1")
	ch2, _ := b.Subscribe(context.Background(), "wall-2")
	b.Close()

	_, ok := <-ch1
	assert.False(t, ok)
	_, ok = <-ch2
	assert.False(t, ok)

	late, _ := b.Subscribe(context.Background(), "wall-1")
	_, ok = <-late
	assert.False(t, ok)
}
