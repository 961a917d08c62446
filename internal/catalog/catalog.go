// Package catalog holds the static menu: canonical item names and unit
// prices. It is loaded once at startup and read-only afterwards.
package catalog

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("item not in catalog")

type Item struct {
	Name      string
	UnitPrice decimal.Decimal
}

type Catalog struct {
	byName map[string]Item
}

func New(items []Item) *Catalog {
	c := &Catalog{byName: make(map[string]Item, len(items))}
	for _, it := range items {
		c.byName[normalize(it.Name)] = it
	}
	return c
}

// Resolve maps a free-text item name to its catalog entry. Matching is
// case-insensitive exact match; misses return ErrNotFound so the caller can
// ask the user to rephrase instead of failing the turn.
func (c *Catalog) Resolve(rawName string) (Item, error) {
	it, ok := c.byName[normalize(rawName)]
	if !ok {
		return Item{}, ErrNotFound
	}
	return it, nil
}

func (c *Catalog) Len() int { return len(c.byName) }

func normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
