package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strconv"
)

// ID is a product identifier holding either an integer or a string.
// The zero value is the integer 0.
type ID struct {
	str   string
	num   int64
	isStr bool
}

// IntID returns an integer identifier.
func IntID(n int64) ID {
	return ID{num: n}
}

// StringID returns a string identifier.
func StringID(s string) ID {
	return ID{str: s, isStr: true}
}

// String returns the textual form of the identifier. Integers are rendered
// in base 10, so IntID(7) and StringID("7") have the same text.
func (id ID) String() string {
	if id.isStr {
		return id.str
	}
	return strconv.FormatInt(id.num, 10)
}

// Value returns the identifier as an int64 or a string.
func (id ID) Value() any {
	if id.isStr {
		return id.str
	}
	return id.num
}

// MarshalJSON encodes integers as JSON numbers and strings as JSON strings.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Value())
}

// UnmarshalJSON accepts a JSON number or string.
func (id *ID) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	parsed, ok := ParseID(v)
	if !ok {
		return errors.New("cart: id must be an integer or a string")
	}
	*id = parsed
	return nil
}

// ParseID converts an untyped value into an ID. Integer kinds, integral
// floats, json.Number and strings are accepted.
func ParseID(v any) (ID, bool) {
	switch val := v.(type) {
	case nil:
		return ID{}, false
	case ID:
		return val, true
	case string:
		return StringID(val), true
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return ID{}, false
		}
		return IntID(n), true
	case float64:
		return idFromFloat(val)
	case float32:
		return idFromFloat(float64(val))
	}
	if n, ok := asInt64(v); ok {
		return IntID(n), true
	}
	return ID{}, false
}

func idFromFloat(f float64) (ID, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return ID{}, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return ID{}, false
	}
	return IntID(int64(f)), true
}

// asInt64 converts any signed or unsigned integer kind to int64.
func asInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	default:
		return 0, false
	}
}
