// Package catalog coordinates sneaker mutations across the record store and
// the ownership index.
//
// The record store write is required: its failure fails the request. The
// ownership index write that follows a create or delete is best-effort and
// happens off the request path through a Tracker.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/fairyhunter13/sneaker-customizer-service/internal/apierr"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/model"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/obs"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/pricing"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/store"
)

// Client-facing messages.
const (
	MsgNameRequired      = "name is required"
	MsgNegativeBasePrice = "base_price must be >= 0"
	MsgMalformedFeatures = "features must be a valid JSON object"
	MsgDisallowed        = "Selected feature combination is not allowed"
	MsgNotFound          = "Sneaker not found"

	MsgListFailed   = "Server error fetching sneakers"
	MsgGetFailed    = "Server error fetching sneaker"
	MsgCreateFailed = "Server error creating sneaker"
	MsgUpdateFailed = "Server error updating sneaker"
	MsgDeleteFailed = "Server error deleting sneaker"
	MsgOwnedFailed  = "Server error reading created ids"
)

// Tracker accepts ownership index ops for background application.
// Enqueue reports false when the op was refused.
type Tracker interface {
	Enqueue(op model.IndexOp) bool
}

// OwnedReader reads the ownership index.
type OwnedReader interface {
	ReadAll(ctx context.Context) ([]int64, error)
}

// Input is a create or update body. A nil field was absent from the request;
// a field holding the JSON literal null was sent as null.
type Input struct {
	Name      json.RawMessage `json:"name"`
	BasePrice json.RawMessage `json:"base_price"`
	Features  json.RawMessage `json:"features"`
}

// Audit compares the ownership index with the record store.
type Audit struct {
	Owned    []int64 `json:"owned"`
	Orphaned []int64 `json:"orphaned"`
}

// Service owns the sneaker record operations and their pricing.
type Service struct {
	records store.Records
	engine  *pricing.Engine
	tracker Tracker
	owned   OwnedReader
	log     *obs.Log
}

// NewService wires a Service. tracker and owned may be nil.
func NewService(records store.Records, engine *pricing.Engine, tracker Tracker, owned OwnedReader) *Service {
	return &Service{
		records: records,
		engine:  engine,
		tracker: tracker,
		owned:   owned,
		log:     obs.Logger.With("component", "catalog"),
	}
}

// ParseID parses a path id. Anything that is not an integer cannot name a
// record, so it is reported as not found.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, apierr.NotFound(MsgNotFound)
	}
	return id, nil
}

func (s *Service) List(ctx context.Context) ([]model.Product, error) {
	rows, err := s.records.List(ctx)
	if err != nil {
		s.log.Error("sneaker_list_failed", "request_id", obs.RequestID(ctx), "error", err.Error())
		return nil, apierr.Internal(MsgListFailed, err)
	}
	return rows, nil
}

func (s *Service) Get(ctx context.Context, id int64) (model.Product, error) {
	p, err := s.records.Get(ctx, id)
	if err != nil {
		return model.Product{}, s.storeError(ctx, "get", id, MsgGetFailed, err)
	}
	return p, nil
}

// Create validates in, prices it, persists it and then records its id in the
// ownership index.
func (s *Service) Create(ctx context.Context, in Input) (model.Product, error) {
	p, err := s.build(in)
	if err != nil {
		return model.Product{}, err
	}
	created, err := s.records.Create(ctx, p)
	if err != nil {
		s.log.Error("sneaker_create_failed", "request_id", obs.RequestID(ctx), "error", err.Error())
		return model.Product{}, apierr.Internal(MsgCreateFailed, err)
	}
	s.log.Info("sneaker_created", "id", created.ID, "total_price", created.TotalPrice, "request_id", obs.RequestID(ctx))
	s.track(ctx, model.IndexAdd, created.ID)
	return created, nil
}

// Update merges the fields present in in over the stored record. Features are
// validated only when supplied. The ownership index is not touched.
func (s *Service) Update(ctx context.Context, id int64, in Input) (model.Product, error) {
	var patch store.Patch
	if present(in.Name) {
		name, err := parseName(in.Name)
		if err != nil {
			return model.Product{}, err
		}
		patch.Name = &name
	}
	if present(in.BasePrice) {
		base, err := parseBasePrice(in.BasePrice)
		if err != nil {
			return model.Product{}, err
		}
		f := base.InexactFloat64()
		patch.BasePrice = &f
	}
	if in.Features != nil {
		_, doc, err := s.parseFeatures(in.Features)
		if err != nil {
			return model.Product{}, err
		}
		patch.Features = doc
	}
	p, err := s.records.Update(ctx, id, patch, s.total)
	if err != nil {
		return model.Product{}, s.storeError(ctx, "update", id, MsgUpdateFailed, err)
	}
	s.log.Info("sneaker_updated", "id", p.ID, "total_price", p.TotalPrice, "request_id", obs.RequestID(ctx))
	return p, nil
}

// Delete removes the record and then drops its id from the ownership index,
// whether or not the index held it.
func (s *Service) Delete(ctx context.Context, id int64) (model.Product, error) {
	p, err := s.records.Delete(ctx, id)
	if err != nil {
		return model.Product{}, s.storeError(ctx, "delete", id, MsgDeleteFailed, err)
	}
	s.log.Info("sneaker_deleted", "id", p.ID, "request_id", obs.RequestID(ctx))
	s.track(ctx, model.IndexRemove, p.ID)
	return p, nil
}

// Ready checks that the record store is reachable.
func (s *Service) Ready(ctx context.Context) error { return s.records.Ping(ctx) }

// Owned lists the ids recorded in the ownership index in ascending order.
func (s *Service) Owned(ctx context.Context) ([]int64, error) {
	ids, err := s.owned.ReadAll(ctx)
	if err != nil {
		s.log.Error("ownership_index_read_failed", "request_id", obs.RequestID(ctx), "error", err.Error())
		return nil, apierr.Internal(MsgOwnedFailed, err)
	}
	return ids, nil
}

// Audit reports owned ids whose records no longer exist. It never repairs
// the index.
func (s *Service) Audit(ctx context.Context) (Audit, error) {
	var (
		owned []int64
		rows  []model.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		owned, err = s.Owned(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = s.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Audit{}, err
	}
	live := make(map[int64]struct{}, len(rows))
	for _, p := range rows {
		live[p.ID] = struct{}{}
	}
	out := Audit{Owned: owned, Orphaned: []int64{}}
	for _, id := range owned {
		if _, ok := live[id]; !ok {
			out.Orphaned = append(out.Orphaned, id)
		}
	}
	if len(out.Orphaned) > 0 {
		s.log.Warn("ownership_index_drift", "orphaned", len(out.Orphaned), "request_id", obs.RequestID(ctx))
	}
	return out, nil
}

// build turns a create body into a priced record.
func (s *Service) build(in Input) (model.Product, error) {
	if !present(in.Name) {
		return model.Product{}, apierr.Validation(MsgNameRequired)
	}
	name, err := parseName(in.Name)
	if err != nil {
		return model.Product{}, err
	}
	base := decimal.Zero
	if present(in.BasePrice) {
		if base, err = parseBasePrice(in.BasePrice); err != nil {
			return model.Product{}, err
		}
	}
	sel, doc, err := s.parseFeatures(in.Features)
	if err != nil {
		return model.Product{}, err
	}
	return model.Product{
		Name:       name,
		BasePrice:  base.InexactFloat64(),
		Features:   doc,
		// Summed at full precision, then rounded to cents once.
		TotalPrice: s.engine.Total(base, sel).Round(2).InexactFloat64(),
	}, nil
}

func (s *Service) parseFeatures(raw json.RawMessage) (pricing.Selection, datatypes.JSON, error) {
	sel, err := pricing.ParseSelection(raw)
	if err != nil {
		return nil, nil, apierr.Validation(MsgMalformedFeatures)
	}
	if err := s.engine.Validate(sel); err != nil {
		return nil, nil, apierr.New(http.StatusBadRequest, MsgDisallowed, err)
	}
	doc, err := json.Marshal(sel)
	if err != nil {
		return nil, nil, apierr.Validation(MsgMalformedFeatures)
	}
	return sel, datatypes.JSON(doc), nil
}

// total reprices a merged record.
func (s *Service) total(base float64, features datatypes.JSON) (float64, error) {
	sel, err := pricing.ParseSelection(features)
	if err != nil {
		return 0, fmt.Errorf("stored features: %w", err)
	}
	return s.engine.Total(decimal.NewFromFloat(base), sel).Round(2).InexactFloat64(), nil
}

func (s *Service) track(ctx context.Context, kind model.IndexOpKind, id int64) {
	if s.tracker == nil {
		return
	}
	op := model.IndexOp{Kind: kind, ID: id, RequestID: obs.RequestID(ctx)}
	if !s.tracker.Enqueue(op) {
		s.log.Warn("ownership_index_op_dropped", "op", string(kind), "id", id, "request_id", op.RequestID)
	}
}

func (s *Service) storeError(ctx context.Context, op string, id int64, msg string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierr.NotFound(MsgNotFound)
	}
	s.log.Error("sneaker_"+op+"_failed", "id", id, "request_id", obs.RequestID(ctx), "error", err.Error())
	return apierr.Internal(msg, err)
}

// present reports whether a field was sent with a non-null value.
func present(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && !bytes.Equal(t, []byte("null"))
}

func parseName(raw json.RawMessage) (string, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err != nil || name == "" {
		return "", apierr.Validation(MsgNameRequired)
	}
	return name, nil
}

// parseBasePrice coerces numbers and numeric strings; anything else is zero.
func parseBasePrice(raw json.RawMessage) (decimal.Decimal, error) {
	d := pricing.Amount(raw)
	if d.IsNegative() {
		return decimal.Zero, apierr.Validation(MsgNegativeBasePrice)
	}
	return d.Round(2), nil
}
