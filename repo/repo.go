// Package repo maps livewall entities onto store records. Each entity is
// written under every key it must be reachable by; the writes are not atomic.
package repo

import (
	"errors"
	"fmt"
	"time"

	"github.com/jacentio/livewall"
	"github.com/jacentio/livewall/store"
)

// key is one (partition, row) pair an entity is stored under.
type key struct {
	partition string
	row       string
}

func (k key) String() string {
	return k.partition + "/" + k.row
}

// translate maps store errors onto the livewall taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", livewall.ErrNotFound, err)
	case errors.Is(err, store.ErrAlreadyExists):
		return fmt.Errorf("%w: %w", livewall.ErrConflict, err)
	case errors.Is(err, store.ErrInvalidKey),
		errors.Is(err, store.ErrReservedAttribute),
		errors.Is(err, store.ErrUnsupportedValue):
		return fmt.Errorf("%w: %w", livewall.ErrInvalidInput, err)
	}
	return err
}

// writeAll applies write to each key in order. A failure on the first key is
// returned as is; a later failure becomes a PartialWriteError. Nothing is
// rolled back.
func writeAll(entity string, keys []key, write func(key) error) error {
	written := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := write(k); err != nil {
			err = translate(err)
			if len(written) == 0 {
				return err
			}
			return &livewall.PartialWriteError{
				Entity:  entity,
				Written: written,
				Failed:  k.String(),
				Cause:   err,
			}
		}
		written = append(written, k.String())
	}
	return nil
}

// deleteAll removes every key in order. The first key must exist; later keys
// that are already gone are skipped.
func deleteAll(entity string, keys []key, del func(key) error) error {
	first := true
	return writeAll(entity, keys, func(k key) error {
		err := del(k)
		if !first && errors.Is(err, store.ErrNotFound) {
			err = nil
		}
		first = false
		return err
	})
}

func timeAttr(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
