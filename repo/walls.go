package repo

import (
	"context"
	"fmt"

	"github.com/jacentio/livewall"
	"github.com/jacentio/livewall/store"
)

const wallPartition = "wall"

// Walls stores each wall under ("wall", id). Once owned, the wall is also
// indexed under (owner_email, id) so it can be listed per owner.
type Walls struct {
	table store.Table
}

// NewWalls returns the wall repository backed by b.
func NewWalls(b store.Backend) *Walls {
	return &Walls{table: b.Table(store.CollectionWalls)}
}

func wallKeys(w *livewall.Wall) []key {
	keys := []key{{partition: wallPartition, row: w.ID}}
	if w.OwnerEmail != "" && w.Status.AtLeast(livewall.WallOwned) {
		keys = append(keys, key{partition: w.OwnerEmail, row: w.ID})
	}
	return keys
}

// wallAttrs never includes ImageIDs; membership lives on the image records.
func wallAttrs(w *livewall.Wall) map[string]any {
	var email any
	if w.OwnerEmail != "" {
		email = w.OwnerEmail
	}
	return map[string]any{
		"id":          w.ID,
		"owner_key":   w.OwnerKey,
		"owner_email": email,
		"status":      string(w.Status),
		"created":     timeAttr(w.Created),
		"modified":    timeAttr(w.Modified),
	}
}

func decodeWall(rec *store.Record) (*livewall.Wall, error) {
	status, err := livewall.ParseWallStatus(rec.String("status"))
	if err != nil {
		return nil, fmt.Errorf("wall %s: %w", rec.RowKey, err)
	}
	return &livewall.Wall{
		ID:         rec.String("id"),
		OwnerKey:   rec.String("owner_key"),
		OwnerEmail: rec.String("owner_email"),
		Status:     status,
		Created:    rec.Time("created"),
		Modified:   rec.Time("modified"),
	}, nil
}

func decodeWalls(recs []*store.Record) ([]*livewall.Wall, error) {
	walls := make([]*livewall.Wall, 0, len(recs))
	for _, rec := range recs {
		w, err := decodeWall(rec)
		if err != nil {
			return nil, err
		}
		walls = append(walls, w)
	}
	return walls, nil
}

// Create writes a new wall and, if it is already owned, its owner index.
func (r *Walls) Create(ctx context.Context, w *livewall.Wall) error {
	if w.ID == "" {
		return fmt.Errorf("%w: wall needs an id", livewall.ErrInvalidInput)
	}
	w.OwnerEmail = NormalizeEmail(w.OwnerEmail)
	attrs := wallAttrs(w)
	return writeAll("wall", wallKeys(w), func(k key) error {
		return r.table.Create(ctx, k.partition, k.row, attrs)
	})
}

// Update merges the wall's attributes into the primary record, then into the
// owner index when the wall is owned.
func (r *Walls) Update(ctx context.Context, w *livewall.Wall) error {
	w.OwnerEmail = NormalizeEmail(w.OwnerEmail)
	w.Modified = nowUTC()
	attrs := wallAttrs(w)
	return writeAll("wall", wallKeys(w), func(k key) error {
		return r.table.Merge(ctx, k.partition, k.row, attrs)
	})
}

// Get returns the wall with id. ImageIDs is left empty.
func (r *Walls) Get(ctx context.Context, id string) (*livewall.Wall, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: wall", livewall.ErrNotFound)
	}
	rec, err := r.table.Get(ctx, wallPartition, id)
	if err != nil {
		return nil, translate(err)
	}
	return decodeWall(rec)
}

// Delete removes the primary record and the owner index entry.
func (r *Walls) Delete(ctx context.Context, w *livewall.Wall) error {
	return deleteAll("wall", wallKeys(w), func(k key) error {
		return r.table.Delete(ctx, k.partition, k.row)
	})
}

// List returns every wall.
func (r *Walls) List(ctx context.Context) ([]*livewall.Wall, error) {
	recs, err := r.table.Scan(ctx, wallPartition)
	if err != nil {
		return nil, translate(err)
	}
	return decodeWalls(recs)
}

// ListForOwner returns the walls indexed under email.
func (r *Walls) ListForOwner(ctx context.Context, email string) ([]*livewall.Wall, error) {
	email = NormalizeEmail(email)
	if email == "" || email == wallPartition {
		return nil, nil
	}
	recs, err := r.table.Scan(ctx, email)
	if err != nil {
		return nil, translate(err)
	}
	return decodeWalls(recs)
}
