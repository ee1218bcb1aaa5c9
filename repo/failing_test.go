package repo_test

import (
	"context"
	"errors"

	"github.com/jacentio/livewall/store"
)

var errInjected = errors.New("injected store failure")

// failingBackend wraps a backend and fails writes to one partition.
type failingBackend struct {
	store.Backend
	partition string
}

func (b *failingBackend) Table(name string) store.Table {
	return &failingTable{Table: b.Backend.Table(name), partition: b.partition}
}

type failingTable struct {
	store.Table
	partition string
}

func (t *failingTable) Create(ctx context.Context, partition, row string, attrs map[string]any) error {
	if partition == t.partition {
		return errInjected
	}
	return t.Table.Create(ctx, partition, row, attrs)
}

func (t *failingTable) Merge(ctx context.Context, partition, row string, attrs map[string]any) error {
	if partition == t.partition {
		return errInjected
	}
	return t.Table.Merge(ctx, partition, row, attrs)
}

func (t *failingTable) Delete(ctx context.Context, partition, row string) error {
	if partition == t.partition {
		return errInjected
	}
	return t.Table.Delete(ctx, partition, row)
}
