// Package storetest holds behaviour tests shared by every store.Backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jacentio/livewall/store"
)

// Run exercises the store.Table contract against backends produced by open.
// open is called once per subtest and must return an empty backend.
func Run(t *testing.T, open func(t *testing.T) store.Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("CreateThenGet", func(t *testing.T) {
		tbl := open(t).Table("things")
		err := tbl.Create(ctx, "p1", "r1", map[string]any{"name": "one", "n": 3, "ok": true})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		rec, err := tbl.Get(ctx, "p1", "r1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if rec.PartitionKey != "p1" || rec.RowKey != "r1" {
			t.Errorf("expected key (p1, r1), got (%s, %s)", rec.PartitionKey, rec.RowKey)
		}
		if rec.String("name") != "one" {
			t.Errorf("expected name 'one', got %q", rec.String("name"))
		}
		if rec.Float("n") != 3 {
			t.Errorf("expected n 3, got %v", rec.Float("n"))
		}
		if !rec.Bool("ok") {
			t.Error("expected ok true")
		}
		if rec.Timestamp.IsZero() {
			t.Error("expected Timestamp to be set")
		}
	})

	t.Run("CreateExistingKey", func(t *testing.T) {
		tbl := open(t).Table("things")
		if err := tbl.Create(ctx, "p1", "r1", map[string]any{"v": "a"}); err != nil {
			t.Fatalf("Create: %v", err)
		}
		err := tbl.Create(ctx, "p1", "r1", map[string]any{"v": "b"})
		if !errors.Is(err, store.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
		rec, _ := tbl.Get(ctx, "p1", "r1")
		if rec.String("v") != "a" {
			t.Errorf("create must not overwrite, got v=%q", rec.String("v"))
		}
	})

	t.Run("SameRowDifferentPartition", func(t *testing.T) {
		tbl := open(t).Table("things")
		if err := tbl.Create(ctx, "p1", "r", nil); err != nil {
			t.Fatalf("Create p1: %v", err)
		}
		if err := tbl.Create(ctx, "p2", "r", nil); err != nil {
			t.Fatalf("Create p2: %v", err)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		tbl := open(t).Table("things")
		_, err := tbl.Get(ctx, "nope", "nope")
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("MergePreservesOtherAttributes", func(t *testing.T) {
		tbl := open(t).Table("things")
		if err := tbl.Create(ctx, "p", "r", map[string]any{"a": "1", "b": "2"}); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := tbl.Merge(ctx, "p", "r", map[string]any{"b": "3", "c": "4"}); err != nil {
			t.Fatalf("Merge: %v", err)
		}
		rec, err := tbl.Get(ctx, "p", "r")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		want := map[string]string{"a": "1", "b": "3", "c": "4"}
		for k, v := range want {
			if rec.String(k) != v {
				t.Errorf("attribute %s: expected %q, got %q", k, v, rec.String(k))
			}
		}
	})

	t.Run("MergeCreatesMissing", func(t *testing.T) {
		tbl := open(t).Table("things")
		if err := tbl.Merge(ctx, "p", "r", map[string]any{"a": "1"}); err != nil {
			t.Fatalf("Merge: %v", err)
		}
		rec, err := tbl.Get(ctx, "p", "r")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if rec.String("a") != "1" {
			t.Errorf("expected a '1', got %q", rec.String("a"))
		}
	})

	t.Run("DeleteThenGet", func(t *testing.T) {
		tbl := open(t).Table("things")
		if err := tbl.Create(ctx, "p", "r", nil); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := tbl.Delete(ctx, "p", "r"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := tbl.Get(ctx, "p", "r"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		if err := tbl.Delete(ctx, "p", "r"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
		}
	})

	t.Run("ScanPartition", func(t *testing.T) {
		tbl := open(t).Table("things")
		for _, row := range []string{"c", "a", "b"} {
			if err := tbl.Create(ctx, "wall", row, map[string]any{"row": row}); err != nil {
				t.Fatalf("Create %s: %v", row, err)
			}
		}
		if err := tbl.Create(ctx, "other", "x", nil); err != nil {
			t.Fatalf("Create other: %v", err)
		}
		recs, err := tbl.Scan(ctx, "wall")
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		var rows []string
		for _, r := range recs {
			if r.PartitionKey != "wall" {
				t.Errorf("scan leaked partition %q", r.PartitionKey)
			}
			rows = append(rows, r.RowKey)
		}
		sort.Strings(rows)
		if fmt.Sprint(rows) != "[a b c]" {
			t.Errorf("expected rows [a b c], got %v", rows)
		}

		empty, err := tbl.Scan(ctx, "missing")
		if err != nil {
			t.Fatalf("Scan missing: %v", err)
		}
		if len(empty) != 0 {
			t.Errorf("expected empty scan, got %d records", len(empty))
		}
	})

	t.Run("TablesAreIsolated", func(t *testing.T) {
		b := open(t)
		if err := b.Table("one").Create(ctx, "p", "r", nil); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := b.Table("two").Get(ctx, "p", "r"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound in other table, got %v", err)
		}
	})

	t.Run("ReservedAttribute", func(t *testing.T) {
		tbl := open(t).Table("things")
		err := tbl.Create(ctx, "p", "r", map[string]any{store.AttrRowKey: "x"})
		if !errors.Is(err, store.ErrReservedAttribute) {
			t.Fatalf("expected ErrReservedAttribute, got %v", err)
		}
	})

	t.Run("TimeAttributes", func(t *testing.T) {
		tbl := open(t).Table("things")
		when := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
		if err := tbl.Create(ctx, "p", "r", map[string]any{"created": when}); err != nil {
			t.Fatalf("Create: %v", err)
		}
		rec, _ := tbl.Get(ctx, "p", "r")
		if !rec.Time("created").Equal(when) {
			t.Errorf("expected %v, got %v", when, rec.Time("created"))
		}
	})

	t.Run("ConcurrentCreateSingleWinner", func(t *testing.T) {
		tbl := open(t).Table("things")
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := tbl.Create(ctx, "p", "r", map[string]any{"i": i}); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		if wins != 1 {
			t.Errorf("expected exactly one successful create, got %d", wins)
		}
	})
}
