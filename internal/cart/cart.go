package cart

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultInstance names the cart used when no instance is given.
const DefaultInstance = "default"

// Cart holds line items of one cart instance, at most one per unique key,
// in insertion order. A Cart is not safe for concurrent use.
type Cart struct {
	instance string
	items    []LineItem
	index    map[string]int
}

// NewCart returns an empty cart. An empty instance name selects DefaultInstance.
func NewCart(instance string) *Cart {
	instance = strings.TrimSpace(instance)
	if instance == "" {
		instance = DefaultInstance
	}
	return &Cart{instance: instance, index: make(map[string]int)}
}

// Instance returns the cart instance name.
func (c *Cart) Instance() string {
	if c.instance == "" {
		return DefaultInstance
	}
	return c.instance
}

// Add builds a line item and stores it. See Put for the merge rule.
func (c *Cart) Add(id ID, name string, price, quantity decimal.Decimal, options Options) LineItem {
	return c.Put(New(id, name, price, quantity, options))
}

// Put stores item. When an item with the same unique key is already in the
// cart its quantity grows by item's quantity and its name and price are
// kept. The stored item is returned.
func (c *Cart) Put(item LineItem) LineItem {
	c.ensureIndex()
	key := item.UniqueKey()
	if i, ok := c.index[key]; ok {
		existing := c.items[i]
		merged := existing.WithQuantity(existing.Quantity().Add(item.Quantity()))
		c.items[i] = merged
		return merged
	}
	c.index[key] = len(c.items)
	c.items = append(c.items, item)
	return item
}

// SetQuantity replaces the quantity of the item stored under key.
func (c *Cart) SetQuantity(key string, quantity decimal.Decimal) (LineItem, error) {
	i, ok := c.index[key]
	if !ok {
		return LineItem{}, fmt.Errorf("set quantity %s: %w", key, ErrItemNotFound)
	}
	updated := c.items[i].WithQuantity(quantity)
	c.items[i] = updated
	return updated, nil
}

// Remove deletes the item stored under key.
func (c *Cart) Remove(key string) error {
	i, ok := c.index[key]
	if !ok {
		return fmt.Errorf("remove %s: %w", key, ErrItemNotFound)
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	delete(c.index, key)
	for j := i; j < len(c.items); j++ {
		c.index[c.items[j].UniqueKey()] = j
	}
	return nil
}

// Has reports whether an item is stored under key.
func (c *Cart) Has(key string) bool {
	_, ok := c.index[key]
	return ok
}

// Get returns the item stored under key.
func (c *Cart) Get(key string) (LineItem, bool) {
	i, ok := c.index[key]
	if !ok {
		return LineItem{}, false
	}
	return c.items[i], true
}

// Items returns the items in insertion order.
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

// Clear removes every item.
func (c *Cart) Clear() {
	c.items = nil
	c.index = make(map[string]int)
}

// Len returns the number of distinct line items.
func (c *Cart) Len() int {
	return len(c.items)
}

// Count returns the sum of all quantities.
func (c *Cart) Count() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.Quantity())
	}
	return total
}

// Total returns the sum of price times quantity over all items.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Records returns the plain form of every item in insertion order.
func (c *Cart) Records() []Record {
	out := make([]Record, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it.ToRecord())
	}
	return out
}

// CartFromRecords rebuilds a cart from plain records. Records sharing a
// unique key are merged as by Put.
func CartFromRecords(instance string, records []Record) (*Cart, error) {
	c := NewCart(instance)
	for i, rec := range records {
		item, err := FromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		c.Put(item)
	}
	return c, nil
}

func (c *Cart) ensureIndex() {
	if c.index == nil {
		c.index = make(map[string]int, len(c.items))
	}
}
