package repo

import (
	"context"
	"fmt"
	"sort"

	"github.com/jacentio/livewall"
	"github.com/jacentio/livewall/internal/shard"
	"github.com/jacentio/livewall/store"
)

// Images stores each image under (wall_id, id) for listing and under the
// split of its id for point lookups.
type Images struct {
	table store.Table
}

// NewImages returns the image repository backed by b.
func NewImages(b store.Backend) *Images {
	return &Images{table: b.Table(store.CollectionImages)}
}

// imageKeys lists the by-id key first and the by-wall key last. The by-wall
// record is the one the blob sweeper watches, so it goes last on delete.
func imageKeys(img *livewall.Image) []key {
	p, r := shard.SplitID(img.ID)
	return []key{
		{partition: p, row: r},
		{partition: img.WallID, row: img.ID},
	}
}

func imageAttrs(img *livewall.Image) map[string]any {
	return map[string]any{
		"id":           img.ID,
		"wall_id":      img.WallID,
		"blob_url":     img.BlobURL,
		"content_type": img.ContentType,
		"owner_key":    img.OwnerKey,
		"timestamp":    img.Timestamp,
		"created":      timeAttr(img.Created),
		"modified":     timeAttr(img.Modified),
	}
}

func decodeImage(rec *store.Record) *livewall.Image {
	return &livewall.Image{
		ID:          rec.String("id"),
		WallID:      rec.String("wall_id"),
		BlobURL:     rec.String("blob_url"),
		ContentType: rec.String("content_type"),
		OwnerKey:    rec.String("owner_key"),
		Timestamp:   rec.Float("timestamp"),
		Created:     rec.Time("created"),
		Modified:    rec.Time("modified"),
	}
}

func checkImageID(id string) error {
	if !shard.Splittable(id) {
		return fmt.Errorf("%w: image id %q is too short", livewall.ErrInvalidInput, id)
	}
	return nil
}

// Create writes both records of a new image.
func (r *Images) Create(ctx context.Context, img *livewall.Image) error {
	if err := checkImageID(img.ID); err != nil {
		return err
	}
	if img.WallID == "" {
		return fmt.Errorf("%w: image needs a wall id", livewall.ErrInvalidInput)
	}
	attrs := imageAttrs(img)
	return writeAll("image", imageKeys(img), func(k key) error {
		return r.table.Create(ctx, k.partition, k.row, attrs)
	})
}

// Update merges the image's attributes into both records.
func (r *Images) Update(ctx context.Context, img *livewall.Image) error {
	if err := checkImageID(img.ID); err != nil {
		return err
	}
	img.Modified = nowUTC()
	attrs := imageAttrs(img)
	return writeAll("image", imageKeys(img), func(k key) error {
		return r.table.Merge(ctx, k.partition, k.row, attrs)
	})
}

// Get looks an image up by id alone.
func (r *Images) Get(ctx context.Context, id string) (*livewall.Image, error) {
	if err := checkImageID(id); err != nil {
		return nil, err
	}
	p, row := shard.SplitID(id)
	rec, err := r.table.Get(ctx, p, row)
	if err != nil {
		return nil, translate(err)
	}
	return decodeImage(rec), nil
}

// Delete removes both records of img.
func (r *Images) Delete(ctx context.Context, img *livewall.Image) error {
	if err := checkImageID(img.ID); err != nil {
		return err
	}
	return deleteAll("image", imageKeys(img), func(k key) error {
		return r.table.Delete(ctx, k.partition, k.row)
	})
}

// ListForWall returns the wall's images, oldest first.
func (r *Images) ListForWall(ctx context.Context, wallID string) ([]*livewall.Image, error) {
	if wallID == "" {
		return nil, fmt.Errorf("%w: wall", livewall.ErrNotFound)
	}
	recs, err := r.table.Scan(ctx, wallID)
	if err != nil {
		return nil, translate(err)
	}
	images := make([]*livewall.Image, 0, len(recs))
	for _, rec := range recs {
		images = append(images, decodeImage(rec))
	}
	sort.SliceStable(images, func(i, j int) bool {
		return images[i].Timestamp < images[j].Timestamp
	})
	return images, nil
}
