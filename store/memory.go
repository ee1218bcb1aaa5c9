package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Backend. Records are copied on the way in and out,
// so callers never share maps with the store.
type Memory struct {
	mu     sync.Mutex
	tables map[string]*memoryTable
}

// NewMemory creates an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*memoryTable)}
}

// Table returns the named collection, creating it on first use.
func (m *Memory) Table(name string) Table {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[name]
	if !ok {
		t = &memoryTable{partitions: make(map[string]map[string]*Record)}
		m.tables[name] = t
	}
	return t
}

type memoryTable struct {
	mu         sync.RWMutex
	partitions map[string]map[string]*Record
}

func (t *memoryTable) Create(ctx context.Context, partition, row string, attrs map[string]any) error {
	norm, err := Normalize(partition, row, attrs)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rows := t.partitions[partition]
	if rows == nil {
		rows = make(map[string]*Record)
		t.partitions[partition] = rows
	}
	if _, exists := rows[row]; exists {
		return ErrAlreadyExists
	}
	rows[row] = &Record{
		PartitionKey: partition,
		RowKey:       row,
		Attributes:   norm,
		Timestamp:    time.Now().UTC(),
	}
	return nil
}

func (t *memoryTable) Merge(ctx context.Context, partition, row string, attrs map[string]any) error {
	norm, err := Normalize(partition, row, attrs)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rows := t.partitions[partition]
	if rows == nil {
		rows = make(map[string]*Record)
		t.partitions[partition] = rows
	}
	rec, exists := rows[row]
	if !exists {
		rec = &Record{PartitionKey: partition, RowKey: row, Attributes: map[string]any{}}
		rows[row] = rec
	}
	for k, v := range norm {
		rec.Attributes[k] = v
	}
	rec.Timestamp = time.Now().UTC()
	return nil
}

func (t *memoryTable) Get(ctx context.Context, partition, row string) (*Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.partitions[partition][row]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.clone(), nil
}

func (t *memoryTable) Delete(ctx context.Context, partition, row string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows := t.partitions[partition]
	if _, ok := rows[row]; !ok {
		return ErrNotFound
	}
	delete(rows, row)
	if len(rows) == 0 {
		delete(t.partitions, partition)
	}
	return nil
}

func (t *memoryTable) Scan(ctx context.Context, partition string) ([]*Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows := t.partitions[partition]
	out := make([]*Record, 0, len(rows))
	for _, rec := range rows {
		out = append(out, rec.clone())
	}
	return out, nil
}

func (r *Record) clone() *Record {
	c := *r
	c.Attributes = make(map[string]any, len(r.Attributes))
	for k, v := range r.Attributes {
		c.Attributes[k] = v
	}
	return &c
}
