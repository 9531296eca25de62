package pricing

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedFeatures is returned when a features document is present but is
// not a JSON object (or a JSON string holding one).
var ErrMalformedFeatures = errors.New("pricing: malformed features document")

// Kind tags how an option value contributes to a total.
type Kind uint8

const (
	// Other contributes nothing.
	Other Kind = iota
	// Number is a bare number or a numeric-looking string.
	Number
	// Priced is an object exposing a numeric price.
	Priced
)

func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case Priced:
		return "priced"
	}
	return "other"
}

// OptionValue is one slot of a feature selection after normalization.
type OptionValue struct {
	Kind   Kind
	Amount decimal.Decimal
	// ID is the identifier compatibility rules match on: the option's "id"
	// for objects, the string itself for scalar strings.
	ID  string
	raw json.RawMessage
}

// Contribution is the amount this value adds to a total.
func (v OptionValue) Contribution() decimal.Decimal {
	if v.Kind == Other {
		return decimal.Zero
	}
	return v.Amount
}

// Selection maps slot names ("color", "material", "sole", ...) to values.
// The slot set is open.
type Selection map[string]OptionValue

// Slots returns slot names in sorted order.
func (s Selection) Slots() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON writes the selection back in the shape it was supplied in.
func (s Selection) MarshalJSON() ([]byte, error) {
	m := make(map[string]json.RawMessage, len(s))
	for k, v := range s {
		if len(v.raw) == 0 {
			m[k] = json.RawMessage("null")
			continue
		}
		m[k] = v.raw
	}
	return json.Marshal(m)
}

// ParseSelection parses a features document. Absent or null input yields an
// empty selection. A JSON string is accepted when it holds an object document.
func ParseSelection(raw []byte) (Selection, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Selection{}, nil
	}
	if raw[0] == '"' {
		var doc string
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, ErrMalformedFeatures
		}
		raw = bytes.TrimSpace([]byte(doc))
	}
	if len(raw) == 0 || raw[0] != '{' {
		return nil, ErrMalformedFeatures
	}
	var slots map[string]json.RawMessage
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, ErrMalformedFeatures
	}
	sel := make(Selection, len(slots))
	for slot, v := range slots {
		sel[slot] = ParseOption(v)
	}
	return sel, nil
}

// ParseOption normalizes one slot value.
func ParseOption(raw json.RawMessage) OptionValue {
	v := OptionValue{raw: raw}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return v
	}
	switch t := x.(type) {
	case json.Number:
		if d, err := decimal.NewFromString(t.String()); err == nil {
			v.Kind, v.Amount = Number, d
		}
	case string:
		v.ID = t
		if d, ok := numeric(t); ok {
			v.Kind, v.Amount = Number, d
		}
	case map[string]any:
		if id, ok := t["id"].(string); ok {
			v.ID = id
		}
		if p, ok := t["price"].(json.Number); ok {
			if d, err := decimal.NewFromString(p.String()); err == nil {
				v.Kind, v.Amount = Priced, d
			}
		}
	}
	return v
}

// Amount coerces a JSON scalar to a price: numbers and numeric strings keep
// their value, anything else is zero.
func Amount(raw []byte) decimal.Decimal {
	v := ParseOption(raw)
	if v.Kind != Number {
		return decimal.Zero
	}
	return v.Amount
}

func numeric(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
