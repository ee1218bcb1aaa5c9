// Package sqlstore is a store.Backend on top of a relational database via gorm.
// All collections share one table keyed by (collection, partition_key, row_key).
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jacentio/livewall/store"
)

type record struct {
	Collection   string         `gorm:"primaryKey;size:64"`
	PartitionKey string         `gorm:"primaryKey;size:191"`
	RowKey       string         `gorm:"primaryKey;size:191"`
	Attributes   map[string]any `gorm:"serializer:json"`
	Timestamp    time.Time
}

func (record) TableName() string {
	return "entity_records"
}

func (r *record) toRecord() *store.Record {
	attrs := make(map[string]any, len(r.Attributes))
	for k, v := range r.Attributes {
		attrs[k] = v
	}
	return &store.Record{
		PartitionKey: r.PartitionKey,
		RowKey:       r.RowKey,
		Attributes:   attrs,
		Timestamp:    r.Timestamp,
	}
}

// Store is a gorm-backed store.Backend.
type Store struct {
	db *gorm.DB
}

// New migrates the schema and returns a Store using db.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("migrate entity_records: %w", err)
	}
	return &Store{db: db}, nil
}

// Table returns the named collection.
func (s *Store) Table(name string) store.Table {
	return &table{db: s.db, collection: name}
}

type table struct {
	db         *gorm.DB
	collection string
}

func (t *table) where(tx *gorm.DB, partition, row string) *gorm.DB {
	return tx.Where("collection = ? AND partition_key = ? AND row_key = ?", t.collection, partition, row)
}

func (t *table) Create(ctx context.Context, partition, row string, attrs map[string]any) error {
	norm, err := store.Normalize(partition, row, attrs)
	if err != nil {
		return err
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := t.where(tx.Model(&record{}), partition, row).Count(&n).Error; err != nil {
			return fmt.Errorf("count %s: %w", t.collection, err)
		}
		if n > 0 {
			return store.ErrAlreadyExists
		}
		rec := &record{
			Collection:   t.collection,
			PartitionKey: partition,
			RowKey:       row,
			Attributes:   norm,
			Timestamp:    time.Now().UTC(),
		}
		if err := tx.Create(rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return store.ErrAlreadyExists
			}
			return fmt.Errorf("insert %s: %w", t.collection, err)
		}
		return nil
	})
}

func (t *table) Merge(ctx context.Context, partition, row string, attrs map[string]any) error {
	norm, err := store.Normalize(partition, row, attrs)
	if err != nil {
		return err
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing record
		err := t.where(tx, partition, row).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec := &record{
				Collection:   t.collection,
				PartitionKey: partition,
				RowKey:       row,
				Attributes:   norm,
				Timestamp:    time.Now().UTC(),
			}
			if err := tx.Create(rec).Error; err != nil {
				return fmt.Errorf("insert %s: %w", t.collection, err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("select %s: %w", t.collection, err)
		}

		if existing.Attributes == nil {
			existing.Attributes = map[string]any{}
		}
		for k, v := range norm {
			existing.Attributes[k] = v
		}
		existing.Timestamp = time.Now().UTC()
		if err := tx.Save(&existing).Error; err != nil {
			return fmt.Errorf("save %s: %w", t.collection, err)
		}
		return nil
	})
}

func (t *table) Get(ctx context.Context, partition, row string) (*store.Record, error) {
	if partition == "" || row == "" {
		return nil, store.ErrInvalidKey
	}
	var rec record
	err := t.where(t.db.WithContext(ctx), partition, row).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", t.collection, err)
	}
	return rec.toRecord(), nil
}

func (t *table) Delete(ctx context.Context, partition, row string) error {
	if partition == "" || row == "" {
		return store.ErrInvalidKey
	}
	res := t.where(t.db.WithContext(ctx), partition, row).Delete(&record{})
	if res.Error != nil {
		return fmt.Errorf("delete %s: %w", t.collection, res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *table) Scan(ctx context.Context, partition string) ([]*store.Record, error) {
	if partition == "" {
		return nil, store.ErrInvalidKey
	}
	var rows []record
	err := t.db.WithContext(ctx).
		Where("collection = ? AND partition_key = ?", t.collection, partition).
		Order("row_key").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", t.collection, err)
	}
	out := make([]*store.Record, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toRecord())
	}
	return out, nil
}
