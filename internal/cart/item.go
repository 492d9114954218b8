package cart

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/shopping-cart/internal/common"
)

// Record field names used by FromRecord and ToRecord. Collaborators that
// persist or render line items key off these exact names.
const (
	FieldUniqueKey = "uniqueKey"
	FieldID        = "id"
	FieldName      = "name"
	FieldPrice     = "price"
	FieldQuantity  = "quantity"
	FieldOptions   = "options"
)

var requiredFields = []string{FieldID, FieldName, FieldPrice, FieldQuantity}

// Record is the plain key/value form of a line item.
type Record map[string]any

// LineItem is one entry of a cart: a quantity of a product configuration.
//
// A LineItem is immutable. The options are copied on the way in and on the
// way out, so the unique key computed by New always matches the content.
// Use WithQuantity to derive an item with a different quantity.
type LineItem struct {
	uniqueKey string
	id        ID
	name      string
	price     decimal.Decimal
	quantity  decimal.Decimal
	options   Options
}

// New builds a line item and derives its unique key. A nil options map is
// the same as an empty one. No range checks are applied: negative prices
// and quantities are stored as given.
func New(id ID, name string, price, quantity decimal.Decimal, options Options) LineItem {
	opts := options.Clone()
	return LineItem{
		uniqueKey: DeriveKey(id, opts),
		id:        id,
		name:      name,
		price:     price,
		quantity:  quantity,
		options:   opts,
	}
}

// DeriveKey returns the 32 character hex digest identifying the pair
// (id, options). Option order does not affect the result.
func DeriveKey(id ID, options Options) string {
	return common.Md5Hex(id.String() + options.Canonical())
}

// FromRecord builds a line item from its plain form. id, name, price and
// quantity are required; options defaults to empty. A uniqueKey entry in r
// is ignored and recomputed.
func FromRecord(r Record) (LineItem, error) {
	for _, field := range requiredFields {
		if _, ok := r[field]; !ok {
			return LineItem{}, &MissingFieldError{Field: field}
		}
	}
	id, ok := ParseID(r[FieldID])
	if !ok {
		return LineItem{}, &InvalidFieldError{Field: FieldID, Value: r[FieldID]}
	}
	name, ok := r[FieldName].(string)
	if !ok {
		return LineItem{}, &InvalidFieldError{Field: FieldName, Value: r[FieldName]}
	}
	price, ok := parseDecimal(r[FieldPrice])
	if !ok {
		return LineItem{}, &InvalidFieldError{Field: FieldPrice, Value: r[FieldPrice]}
	}
	quantity, ok := parseDecimal(r[FieldQuantity])
	if !ok {
		return LineItem{}, &InvalidFieldError{Field: FieldQuantity, Value: r[FieldQuantity]}
	}
	options, ok := parseOptions(r[FieldOptions])
	if !ok {
		return LineItem{}, &InvalidFieldError{Field: FieldOptions, Value: r[FieldOptions]}
	}
	return New(id, name, price, quantity, options), nil
}

// ToRecord returns the six-entry plain form of the item.
func (it LineItem) ToRecord() Record {
	return Record{
		FieldUniqueKey: it.uniqueKey,
		FieldID:        it.id.Value(),
		FieldName:      it.name,
		FieldPrice:     it.price,
		FieldQuantity:  it.quantity,
		FieldOptions:   it.options.Clone(),
	}
}

// UniqueKey returns the identity used to merge items of the same product configuration.
func (it LineItem) UniqueKey() string { return it.uniqueKey }

// ID returns the base product identifier.
func (it LineItem) ID() ID { return it.id }

// Name returns the display name.
func (it LineItem) Name() string { return it.name }

// Price returns the unit price.
func (it LineItem) Price() decimal.Decimal { return it.price }

// Quantity returns the quantity.
func (it LineItem) Quantity() decimal.Decimal { return it.quantity }

// Options returns a copy of the options.
func (it LineItem) Options() Options { return it.options.Clone() }

// Option returns a single option value.
func (it LineItem) Option(name string) (any, bool) {
	v, ok := it.options[name]
	return v, ok
}

// Subtotal returns price multiplied by quantity.
func (it LineItem) Subtotal() decimal.Decimal {
	return it.price.Mul(it.quantity)
}

// WithQuantity returns a copy of the item holding quantity. The unique key
// is unchanged because it does not depend on the quantity.
func (it LineItem) WithQuantity(quantity decimal.Decimal) LineItem {
	it.quantity = quantity
	it.options = it.options.Clone()
	return it
}

// MarshalJSON encodes the item in its record form.
func (it LineItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(it.ToRecord())
}

// UnmarshalJSON decodes a record and rebuilds the item through FromRecord.
// Numbers, option values included, are kept as json.Number so the rebuilt
// item carries the same unique key it was encoded with.
func (it *LineItem) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return err
	}
	parsed, err := FromRecord(rec)
	if err != nil {
		return err
	}
	*it = parsed
	return nil
}

func parseDecimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case nil:
		return decimal.Decimal{}, false
	case decimal.Decimal:
		return val, true
	case *decimal.Decimal:
		if val == nil {
			return decimal.Decimal{}, false
		}
		return *val, true
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(val), true
	case float32:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat32(val), true
	case json.Number:
		d, err := decimal.NewFromString(string(val))
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		return d, err == nil
	}
	if n, ok := asInt64(v); ok {
		return decimal.NewFromInt(n), true
	}
	return decimal.Decimal{}, false
}
