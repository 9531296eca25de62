// Package pricing validates feature selections and derives total prices.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrDisallowedCombination is returned when a selection matches a rule.
var ErrDisallowedCombination = errors.New("pricing: disallowed feature combination")

// Engine is stateless apart from its rule table.
type Engine struct {
	rules []Rule
}

// NewEngine copies rules into a new Engine.
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: append([]Rule(nil), rules...)}
}

// Rules returns a copy of the rule table.
func (e *Engine) Rules() []Rule { return append([]Rule(nil), e.rules...) }

// Validate rejects selections matching any rule. Empty selections pass.
func (e *Engine) Validate(sel Selection) error {
	for _, r := range e.rules {
		if r.matches(sel) {
			return fmt.Errorf("%w: %s", ErrDisallowedCombination, r.Name)
		}
	}
	return nil
}

// Total is base plus every slot's contribution, summed in slot order so the
// result is identical for identical input.
func (e *Engine) Total(base decimal.Decimal, sel Selection) decimal.Decimal {
	total := base
	for _, slot := range sel.Slots() {
		total = total.Add(sel[slot].Contribution())
	}
	return total
}
