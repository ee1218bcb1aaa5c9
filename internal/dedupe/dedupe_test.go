package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSet(ttl time.Duration, max int) (*Set, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(ttl, max)
	s.now = c.now
	return s, c
}

func TestSet_CheckAndMark(t *testing.T) {
	s, _ := newTestSet(time.Hour, 10)

	assert.False(t, s.CheckAndMark("pay_1"))
	assert.True(t, s.CheckAndMark("pay_1"))
	assert.True(t, s.Seen("pay_1"))
	assert.False(t, s.Seen("pay_2"))
}

func TestSet_Expiry(t *testing.T) {
	s, c := newTestSet(time.Minute, 10)

	s.CheckAndMark("pay_1")
	c.advance(59 * time.Second)
	assert.True(t, s.Seen("pay_1"))

	c.advance(time.Second)
	assert.False(t, s.Seen("pay_1"))
	assert.False(t, s.CheckAndMark("pay_1"), "expired key counts as new")
}

func TestSet_Forget(t *testing.T) {
	s, _ := newTestSet(time.Hour, 10)

	s.CheckAndMark("pay_1")
	s.Forget("pay_1")
	assert.False(t, s.CheckAndMark("pay_1"))
}

func TestSet_CapacityEvictsOldest(t *testing.T) {
	s, c := newTestSet(time.Hour, 3)

	for i := 0; i < 3; i++ {
		s.CheckAndMark(fmt.Sprintf("k%d", i))
		c.advance(time.Second)
	}
	s.CheckAndMark("k3")

	assert.Equal(t, 3, s.Len())
	assert.False(t, s.Seen("k0"))
	assert.True(t, s.Seen("k1"))
	assert.True(t, s.Seen("k3"))
}

func TestSet_CapacityPrunesExpiredFirst(t *testing.T) {
	s, c := newTestSet(time.Minute, 2)

	s.CheckAndMark("old")
	c.advance(2 * time.Minute)
	s.CheckAndMark("fresh")
	s.CheckAndMark("newest")

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Seen("fresh"))
	assert.True(t, s.Seen("newest"))
}

func TestSet_ConcurrentSingleWinner(t *testing.T) {
	s := New(time.Hour, 100)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !s.CheckAndMark("pay_1") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
