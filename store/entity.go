package store

import (
	"context"
	"fmt"
	"time"
)

// Reserved attribute names. Backends manage these themselves.
const (
	AttrPartitionKey = "PartitionKey"
	AttrRowKey       = "RowKey"
	AttrTimestamp    = "Timestamp"
)

// Collection names used by the livewall repositories.
const (
	CollectionUsers  = "users"
	CollectionWalls  = "walls"
	CollectionImages = "images"
)

// Collections lists every collection the repositories use.
func Collections() []string {
	return []string{CollectionUsers, CollectionWalls, CollectionImages}
}

// Record is one stored entity.
type Record struct {
	PartitionKey string
	RowKey       string

	// Attributes holds the payload. Values are string, bool, float64 or nil.
	Attributes map[string]any

	// Timestamp is the time of the last write, managed by the backend.
	Timestamp time.Time
}

// Table is one collection of records.
type Table interface {
	// Create stores a new record and fails with ErrAlreadyExists if the key is taken.
	Create(ctx context.Context, partition, row string, attrs map[string]any) error

	// Merge creates the record or overwrites only the attributes given,
	// keeping any attribute not present in attrs.
	Merge(ctx context.Context, partition, row string, attrs map[string]any) error

	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, partition, row string) (*Record, error)

	// Delete removes the record or returns ErrNotFound if it is absent.
	Delete(ctx context.Context, partition, row string) error

	// Scan returns every record in the partition in no particular order.
	Scan(ctx context.Context, partition string) ([]*Record, error)
}

// Backend hands out named collections.
type Backend interface {
	Table(name string) Table
}

// Normalize validates keys and converts attrs into the supported value set.
// It returns a new map; attrs is not modified.
func Normalize(partition, row string, attrs map[string]any) (map[string]any, error) {
	if partition == "" || row == "" {
		return nil, ErrInvalidKey
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if k == AttrPartitionKey || k == AttrRowKey || k == AttrTimestamp {
			return nil, fmt.Errorf("%w: %q", ErrReservedAttribute, k)
		}
		switch val := v.(type) {
		case nil, string, bool, float64:
			out[k] = val
		case float32:
			out[k] = float64(val)
		case int:
			out[k] = float64(val)
		case int64:
			out[k] = float64(val)
		case time.Time:
			out[k] = val.UTC().Format(time.RFC3339Nano)
		default:
			return nil, fmt.Errorf("%w: %q is %T", ErrUnsupportedValue, k, v)
		}
	}
	return out, nil
}

// String returns the string attribute key, or "" if absent or not a string.
func (r *Record) String(key string) string {
	s, _ := r.Attributes[key].(string)
	return s
}

// Bool returns the bool attribute key, or false.
func (r *Record) Bool(key string) bool {
	b, _ := r.Attributes[key].(bool)
	return b
}

// Float returns the numeric attribute key, or 0.
func (r *Record) Float(key string) float64 {
	f, _ := r.Attributes[key].(float64)
	return f
}

// Time parses the RFC 3339 attribute key. Missing or malformed values yield
// the zero time.
func (r *Record) Time(key string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.String(key))
	if err != nil {
		return time.Time{}
	}
	return t
}
