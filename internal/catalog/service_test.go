package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/fairyhunter13/sneaker-customizer-service/internal/apierr"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/config"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/model"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/ownership"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/pricing"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/queue"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/store"
)

type opLog struct {
	mu     sync.Mutex
	ops    []model.IndexOp
	refuse bool
}

func (l *opLog) Enqueue(op model.IndexOp) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.refuse {
		return false
	}
	l.ops = append(l.ops, op)
	return true
}

func (l *opLog) ReadAll(context.Context) ([]int64, error) { return nil, errors.New("not wired") }

func (l *opLog) recorded() []model.IndexOp {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.IndexOp(nil), l.ops...)
}

func newService(t *testing.T) (*Service, *store.Memory, *opLog) {
	t.Helper()
	st := store.New()
	ops := &opLog{}
	return NewService(st, pricing.NewEngine(pricing.DefaultRules()), ops, ops), st, ops
}

// wired returns a service whose index ops flow through a real queue into a
// file-backed ownership index.
func wired(t *testing.T) (*Service, *ownership.Index, *queue.Manager) {
	t.Helper()
	idx := ownership.NewIndex(ownership.NewFileDocument(filepath.Join(t.TempDir(), "created.json")))
	mgr := queue.NewManager(config.Config{}, queue.New(16), idx)
	mgr.Start(context.Background())
	t.Cleanup(mgr.Stop)
	return NewService(store.New(), pricing.NewEngine(pricing.DefaultRules()), mgr, idx), idx, mgr
}

func drain(t *testing.T, mgr *queue.Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if !mgr.DrainUntil(ctx) {
		t.Fatalf("index queue did not drain: %+v", mgr.Metrics())
	}
}

func body(t *testing.T, s string) Input {
	t.Helper()
	var in Input
	if err := json.Unmarshal([]byte(s), &in); err != nil {
		t.Fatalf("bad test body %s: %v", s, err)
	}
	return in
}

func wantAPIError(t *testing.T, err error, status int, msg string) {
	t.Helper()
	var e *apierr.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *apierr.Error, got %v", err)
	}
	if e.Status != status || e.Message != msg {
		t.Fatalf("expected %d %q, got %d %q", status, msg, e.Status, e.Message)
	}
}

func TestCreateComputesTotal(t *testing.T) {
	svc, _, ops := newService(t)
	p, err := svc.Create(context.Background(), body(t, `{
		"name": "B", "base_price": 80,
		"features": {"color": {"price": 0}, "material": {"price": 12}, "sole": {"price": 10}}
	}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.TotalPrice != 102 || p.BasePrice != 80 || p.Name != "B" {
		t.Fatalf("unexpected record: %+v", p)
	}
	got := ops.recorded()
	if len(got) != 1 || got[0].Kind != model.IndexAdd || got[0].ID != p.ID {
		t.Fatalf("expected one add op for %d, got %+v", p.ID, got)
	}
}

func TestCreateRoundsTotalToCents(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, body(t, `{"name":"r","base_price":1,"features":{"pin":{"price":0.005}}}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.TotalPrice != 1.01 {
		t.Fatalf("expected 1.005 to round half up to 1.01, got %v", p.TotalPrice)
	}
	// Options are summed before rounding; rounding each would give 1.00.
	p, err = svc.Create(ctx, body(t, `{"name":"r","base_price":1,"features":{"lace":{"price":0.004},"pin":{"price":0.004}}}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.TotalPrice != 1.01 {
		t.Fatalf("expected 1.008 to round to 1.01, got %v", p.TotalPrice)
	}
}

func TestCreateRejectsDisallowedCombination(t *testing.T) {
	svc, st, ops := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, body(t, `{
		"name": "clash",
		"features": {"color": {"id": "neon", "price": 15}, "material": {"id": "leather", "price": 22}}
	}`))
	wantAPIError(t, err, http.StatusBadRequest, MsgDisallowed)
	rows, _ := st.List(ctx)
	if len(rows) != 0 {
		t.Fatalf("rejected create persisted %d records", len(rows))
	}
	if len(ops.recorded()) != 0 {
		t.Fatalf("rejected create touched the index: %+v", ops.recorded())
	}
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		msg  string
	}{
		{"missing name", `{"base_price": 10}`, MsgNameRequired},
		{"null name", `{"name": null}`, MsgNameRequired},
		{"empty name", `{"name": ""}`, MsgNameRequired},
		{"numeric name", `{"name": 5}`, MsgNameRequired},
		{"features array", `{"name": "a", "features": [1, 2]}`, MsgMalformedFeatures},
		{"features number", `{"name": "a", "features": 5}`, MsgMalformedFeatures},
		{"features bad string", `{"name": "a", "features": "{not json"}`, MsgMalformedFeatures},
		{"negative base", `{"name": "a", "base_price": -1}`, MsgNegativeBasePrice},
		{"disallowed in string", `{"name": "a", "features": "{\"color\":\"neon\",\"material\":\"leather\"}"}`, MsgDisallowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _ := newService(t)
			_, err := svc.Create(context.Background(), body(t, tc.body))
			wantAPIError(t, err, http.StatusBadRequest, tc.msg)
		})
	}
}

func TestCreateCoercions(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, body(t, `{"name": "s", "base_price": "49.50", "features": "{\"lace\": \"2.25\"}"}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.BasePrice != 49.5 || p.TotalPrice != 51.75 {
		t.Fatalf("numeric strings not coerced: %+v", p)
	}
	if string(p.Features) != `{"lace":"2.25"}` {
		t.Fatalf("string features should persist as an object: %s", p.Features)
	}

	q, err := svc.Create(ctx, body(t, `{"name": "t", "base_price": "abc"}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if q.BasePrice != 0 || q.TotalPrice != 0 || string(q.Features) != "{}" {
		t.Fatalf("non-numeric base should be 0 with empty features: %+v", q)
	}
}

func TestUpdateNameOnlyPreservesPricing(t *testing.T) {
	svc, _, ops := newService(t)
	ctx := context.Background()
	p, _ := svc.Create(ctx, body(t, `{"name": "B", "base_price": 80, "features": {"sole": {"id": "vintage", "price": 10}}}`))

	u, err := svc.Update(ctx, p.ID, body(t, `{"name": "X"}`))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.Name != "X" || u.BasePrice != p.BasePrice || u.TotalPrice != p.TotalPrice {
		t.Fatalf("pricing changed on rename: before %+v after %+v", p, u)
	}
	if string(u.Features) != string(p.Features) {
		t.Fatalf("features changed on rename: %s -> %s", p.Features, u.Features)
	}
	if n := len(ops.recorded()); n != 1 {
		t.Fatalf("update must not touch the index, ops=%d", n)
	}
}

func TestUpdateReprices(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	p, _ := svc.Create(ctx, body(t, `{"name": "B", "base_price": 80, "features": {"sole": {"price": 10}}}`))

	u, err := svc.Update(ctx, p.ID, body(t, `{"base_price": 100}`))
	if err != nil {
		t.Fatalf("update base: %v", err)
	}
	if u.TotalPrice != 110 {
		t.Fatalf("expected total 110, got %+v", u)
	}

	u, err = svc.Update(ctx, p.ID, body(t, `{"features": null}`))
	if err != nil {
		t.Fatalf("update features: %v", err)
	}
	if string(u.Features) != "{}" || u.TotalPrice != 100 {
		t.Fatalf("null features should clear options: %+v", u)
	}

	_, err = svc.Update(ctx, p.ID, body(t, `{"features": {"color": "neon", "material": "leather"}}`))
	wantAPIError(t, err, http.StatusBadRequest, MsgDisallowed)
	_, err = svc.Update(ctx, p.ID, body(t, `{"name": ""}`))
	wantAPIError(t, err, http.StatusBadRequest, MsgNameRequired)
}

func TestUpdateAndGetNotFound(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Update(ctx, 404, body(t, `{"name": "x"}`))
	wantAPIError(t, err, http.StatusNotFound, MsgNotFound)
	_, err = svc.Get(ctx, 404)
	wantAPIError(t, err, http.StatusNotFound, MsgNotFound)
}

func TestDeleteNotFoundLeavesIndex(t *testing.T) {
	svc, _, ops := newService(t)
	_, err := svc.Delete(context.Background(), 7)
	wantAPIError(t, err, http.StatusNotFound, MsgNotFound)
	if len(ops.recorded()) != 0 {
		t.Fatalf("failed delete touched the index: %+v", ops.recorded())
	}
}

func TestDeleteRemovesFromIndex(t *testing.T) {
	svc, idx, mgr := wired(t)
	ctx := context.Background()
	a, _ := svc.Create(ctx, body(t, `{"name": "a"}`))
	b, _ := svc.Create(ctx, body(t, `{"name": "b"}`))
	drain(t, mgr)
	if err := idx.Remove(ctx, b.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	for _, id := range []int64{a.ID, b.ID} {
		del, err := svc.Delete(ctx, id)
		if err != nil {
			t.Fatalf("delete %d: %v", id, err)
		}
		if del.ID != id {
			t.Fatalf("delete returned %+v", del)
		}
	}
	drain(t, mgr)
	ids, err := idx.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty index, got %v", ids)
	}
}

func TestConcurrentCreatesAllOwned(t *testing.T) {
	svc, idx, mgr := wired(t)
	ctx := context.Background()
	const n = 50
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids []int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := svc.Create(ctx, body(t, `{"name": "c", "base_price": 1}`))
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			mu.Lock()
			ids = append(ids, p.ID)
			mu.Unlock()
		}()
	}
	wg.Wait()
	drain(t, mgr)
	owned, err := svc.Owned(ctx)
	if err != nil {
		t.Fatalf("owned: %v", err)
	}
	if len(owned) != n {
		t.Fatalf("expected %d owned ids, got %d", n, len(owned))
	}
	direct, _ := idx.ReadAll(ctx)
	if !reflect.DeepEqual(owned, direct) {
		t.Fatalf("owned %v differs from index %v", owned, direct)
	}
}

func TestIndexFailureDoesNotFailCreate(t *testing.T) {
	svc, st, ops := newService(t)
	ops.refuse = true
	p, err := svc.Create(context.Background(), body(t, `{"name": "kept"}`))
	if err != nil {
		t.Fatalf("create must succeed when the index refuses: %v", err)
	}
	if _, err := st.Get(context.Background(), p.ID); err != nil {
		t.Fatalf("record missing: %v", err)
	}
}

type brokenStore struct {
	store.Records
	err error
}

func (b brokenStore) List(context.Context) ([]model.Product, error) { return nil, b.err }
func (b brokenStore) Create(context.Context, model.Product) (model.Product, error) {
	return model.Product{}, b.err
}
func (b brokenStore) Delete(context.Context, int64) (model.Product, error) {
	return model.Product{}, b.err
}

func TestStoreFailureIsInternal(t *testing.T) {
	cause := errors.New("connection refused")
	ops := &opLog{}
	svc := NewService(brokenStore{Records: store.New(), err: cause}, pricing.NewEngine(nil), ops, ops)
	ctx := context.Background()

	_, err := svc.Create(ctx, body(t, `{"name": "x"}`))
	wantAPIError(t, err, http.StatusInternalServerError, MsgCreateFailed)
	if !errors.Is(err, cause) {
		t.Fatalf("cause not kept: %v", err)
	}
	_, err = svc.List(ctx)
	wantAPIError(t, err, http.StatusInternalServerError, MsgListFailed)
	_, err = svc.Delete(ctx, 1)
	wantAPIError(t, err, http.StatusInternalServerError, MsgDeleteFailed)
	_, err = svc.Owned(ctx)
	wantAPIError(t, err, http.StatusInternalServerError, MsgOwnedFailed)
	if len(ops.recorded()) != 0 {
		t.Fatalf("failed writes must not reach the index: %+v", ops.recorded())
	}
}

func TestAuditReportsOrphans(t *testing.T) {
	svc, idx, mgr := wired(t)
	ctx := context.Background()
	a, _ := svc.Create(ctx, body(t, `{"name": "a"}`))
	drain(t, mgr)
	if err := idx.Add(ctx, 999); err != nil {
		t.Fatalf("add: %v", err)
	}
	rep, err := svc.Audit(ctx)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !reflect.DeepEqual(rep.Owned, []int64{a.ID, 999}) || !reflect.DeepEqual(rep.Orphaned, []int64{999}) {
		t.Fatalf("unexpected audit: %+v", rep)
	}
	if ids, _ := idx.ReadAll(ctx); len(ids) != 2 {
		t.Fatalf("audit must not repair the index: %v", ids)
	}
}

func TestParseID(t *testing.T) {
	if id, err := ParseID("42"); err != nil || id != 42 {
		t.Fatalf("ParseID(42) = %d, %v", id, err)
	}
	for _, s := range []string{"abc", "1.5", ""} {
		_, err := ParseID(s)
		wantAPIError(t, err, http.StatusNotFound, MsgNotFound)
	}
}

func TestSeed(t *testing.T) {
	svc, _, ops := newService(t)
	rows, err := svc.Seed(context.Background())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(rows) != 2 || rows[0].TotalPrice != 85 || rows[1].TotalPrice != 147 {
		t.Fatalf("unexpected seed rows: %+v", rows)
	}
	if len(ops.recorded()) != 0 {
		t.Fatalf("seeding must not mark records as owned")
	}
}
