// Package ownership keeps the set of record ids created through this service.
//
// The set lives in a single shared document that is rewritten whole on every
// change. It is a convenience view: it may hold ids whose records are gone
// and may miss ids whose add failed. Nothing here repairs that drift.
package ownership

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fairyhunter13/sneaker-customizer-service/internal/model"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/obs"
)

// Document is the backing medium for the id set.
//
// Update runs a read-modify-write: fn receives the current ids and returns the
// next ids and whether anything changed. Unchanged results must not be written.
type Document interface {
	Load(ctx context.Context) ([]int64, error)
	Update(ctx context.Context, fn func(ids []int64) ([]int64, bool)) error
}

// Index serializes every access to its Document within the process.
type Index struct {
	mu  sync.Mutex
	doc Document
	log *obs.Log
}

func NewIndex(doc Document) *Index {
	return &Index{doc: doc, log: obs.Logger.With("component", "OwnershipIndex")}
}

// ReadAll returns the owned ids in ascending order.
func (x *Index) ReadAll(ctx context.Context) ([]int64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	ids, err := x.doc.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("ownership: read: %w", err)
	}
	out := dedupe(ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Add records id. Adding an id that is already present is a no-op.
func (x *Index) Add(ctx context.Context, id int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	err := x.doc.Update(ctx, func(ids []int64) ([]int64, bool) {
		ids = dedupe(ids)
		for _, v := range ids {
			if v == id {
				return ids, false
			}
		}
		return append(ids, id), true
	})
	if err != nil {
		return fmt.Errorf("ownership: add %d: %w", id, err)
	}
	return nil
}

// Remove forgets id. Removing an absent id is a no-op.
func (x *Index) Remove(ctx context.Context, id int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	err := x.doc.Update(ctx, func(ids []int64) ([]int64, bool) {
		ids = dedupe(ids)
		next := ids[:0:0]
		for _, v := range ids {
			if v != id {
				next = append(next, v)
			}
		}
		return next, len(next) != len(ids)
	})
	if err != nil {
		return fmt.Errorf("ownership: remove %d: %w", id, err)
	}
	return nil
}

// Clear empties the set.
func (x *Index) Clear(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	err := x.doc.Update(ctx, func(ids []int64) ([]int64, bool) {
		return []int64{}, len(ids) > 0
	})
	if err != nil {
		return fmt.Errorf("ownership: clear: %w", err)
	}
	x.log.Info("ownership_index_cleared")
	return nil
}

// Apply runs a queued operation.
func (x *Index) Apply(ctx context.Context, op model.IndexOp) error {
	switch op.Kind {
	case model.IndexAdd:
		return x.Add(ctx, op.ID)
	case model.IndexRemove:
		return x.Remove(ctx, op.ID)
	}
	return fmt.Errorf("ownership: unknown op %q", op.Kind)
}

// dedupe drops repeated ids, keeping first-seen order.
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, v := range ids {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
