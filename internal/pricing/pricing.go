// Package pricing holds the fixed price of every ticket category and which
// categories are closed for sale.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"ticket-gate/internal/config"
)

var (
	ErrUnknownCategory  = errors.New("unknown ticket category")
	ErrCategoryDisabled = errors.New("ticket category disabled")
)

// DisabledError carries the message shown to the guest for a closed category.
type DisabledError struct {
	Category string
	Reason   string
}

func (e *DisabledError) Error() string { return e.Reason }

func (e *DisabledError) Is(target error) bool { return target == ErrCategoryDisabled }

type Category struct {
	Key      string
	Amount   int64
	Disabled bool
	Reason   string
}

type Table struct {
	categories map[string]Category
	order      []string
}

func NewTable(categories ...Category) *Table {
	t := &Table{categories: make(map[string]Category, len(categories))}
	for _, c := range categories {
		if _, dup := t.categories[c.Key]; !dup {
			t.order = append(t.order, c.Key)
		}
		t.categories[c.Key] = c
	}
	return t
}

// FromConfig builds the table from the loaded pricing configuration.
func FromConfig(cfg config.PricingConfig) *Table {
	soldOut := make(map[string]bool, len(cfg.SoldOut))
	for _, key := range cfg.SoldOut {
		soldOut[key] = true
	}

	keys := cfg.Ordering
	if len(keys) == 0 {
		for key := range cfg.Prices {
			keys = append(keys, key)
		}
	}

	categories := make([]Category, 0, len(keys))
	for _, key := range keys {
		amount, ok := cfg.Prices[key]
		if !ok {
			continue
		}
		c := Category{Key: key, Amount: amount, Disabled: soldOut[key], Reason: cfg.Reasons[key]}
		if c.Disabled && c.Reason == "" {
			c.Reason = fmt.Sprintf("%s tickets are sold out.", strings.ToUpper(key))
		}
		categories = append(categories, c)
	}
	return NewTable(categories...)
}

// RequiredAmount returns the exact amount a category must be paid with.
// Lookup ignores availability; see Validate.
func (t *Table) RequiredAmount(category string) (int64, error) {
	c, ok := t.categories[category]
	if !ok {
		return 0, ErrUnknownCategory
	}
	return c.Amount, nil
}

// Validate returns the required amount of a category that is open for sale.
func (t *Table) Validate(category string) (int64, error) {
	c, ok := t.categories[category]
	if !ok {
		return 0, ErrUnknownCategory
	}
	if c.Disabled {
		return 0, &DisabledError{Category: c.Key, Reason: c.Reason}
	}
	return c.Amount, nil
}

func (t *Table) Categories() []Category {
	out := make([]Category, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.categories[key])
	}
	return out
}
