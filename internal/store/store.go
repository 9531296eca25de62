// Package store owns the canonical collection of sneaker records.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/fairyhunter13/sneaker-customizer-service/internal/model"
)

// ErrNotFound is returned for operations on an id that does not exist.
var ErrNotFound = errors.New("store: record not found")

// Records is the record store contract. Each operation is atomic with respect
// to other operations on the same id.
type Records interface {
	List(ctx context.Context) ([]model.Product, error)
	Get(ctx context.Context, id int64) (model.Product, error)
	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, id int64, patch Patch, total TotalFunc) (model.Product, error)
	Delete(ctx context.Context, id int64) (model.Product, error)
	Ping(ctx context.Context) error
}

// TotalFunc derives the total price from a merged base price and features.
type TotalFunc func(basePrice float64, features datatypes.JSON) (float64, error)

// Patch is a partial update. Nil fields keep their stored value.
type Patch struct {
	Name      *string
	BasePrice *float64
	Features  datatypes.JSON
}

// Repricing reports whether the patch touches an input of the total.
func (p Patch) Repricing() bool { return p.BasePrice != nil || p.Features != nil }

func (p Patch) apply(cur model.Product, total TotalFunc) (model.Product, error) {
	if p.Name != nil {
		cur.Name = *p.Name
	}
	if p.BasePrice != nil {
		cur.BasePrice = *p.BasePrice
	}
	if p.Features != nil {
		cur.Features = p.Features
	}
	if p.Repricing() && total != nil {
		t, err := total(cur.BasePrice, cur.Features)
		if err != nil {
			return cur, err
		}
		cur.TotalPrice = t
	}
	return cur, nil
}

func emptyIfNil(f datatypes.JSON) datatypes.JSON {
	if len(f) == 0 {
		return datatypes.JSON("{}")
	}
	return f
}

// Memory is an in-process Records implementation guarded by a single lock.
type Memory struct {
	mu     sync.RWMutex
	m      map[int64]model.Product
	nextID int64
	now    func() time.Time
}

// New returns an empty in-memory store.
func New() *Memory {
	return &Memory{m: make(map[int64]model.Product), now: time.Now}
}

func clone(p model.Product) model.Product {
	p.Features = append(datatypes.JSON(nil), p.Features...)
	return p
}

func (s *Memory) List(_ context.Context) ([]model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Product, 0, len(s.m))
	for _, p := range s.m {
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Memory) Get(_ context.Context, id int64) (model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.m[id]
	if !ok {
		return model.Product{}, ErrNotFound
	}
	return clone(p), nil
}

func (s *Memory) Create(_ context.Context, p model.Product) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := s.now()
	p.ID = s.nextID
	p.Features = emptyIfNil(p.Features)
	p.CreatedAt, p.UpdatedAt = now, now
	s.m[p.ID] = clone(p)
	return p, nil
}

func (s *Memory) Update(_ context.Context, id int64, patch Patch, total TotalFunc) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.m[id]
	if !ok {
		return model.Product{}, ErrNotFound
	}
	next, err := patch.apply(clone(cur), total)
	if err != nil {
		return model.Product{}, err
	}
	next.UpdatedAt = s.now()
	s.m[id] = clone(next)
	return next, nil
}

func (s *Memory) Delete(_ context.Context, id int64) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.m[id]
	if !ok {
		return model.Product{}, ErrNotFound
	}
	delete(s.m, id)
	return p, nil
}

func (s *Memory) Ping(context.Context) error { return nil }
