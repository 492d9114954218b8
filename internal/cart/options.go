package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Options distinguishes variants of the same product, e.g. size or color.
// Values must be JSON-encodable to take part in the unique key exactly.
type Options map[string]any

// Clone returns a one-level copy. A nil receiver yields an empty map.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Keys returns the option names in ascending order.
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Canonical serialises the options as a JSON object whose members are
// ordered by name. Equal content always yields equal output regardless of
// the order the options were inserted in.
func (o Options) Canonical() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range o.Keys() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(canonicalValue(k))
		b.WriteByte(':')
		b.WriteString(canonicalValue(o[k]))
	}
	b.WriteByte('}')
	return b.String()
}

// canonicalValue JSON-encodes v in generic form: the encoding is decoded
// with UseNumber and encoded again, so a struct and the map it decodes to
// share one text and integers keep every digit. Values JSON cannot encode
// fall back to their Go syntax form.
func canonicalValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return string(data)
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return string(data)
	}
	return string(out)
}

func parseOptions(v any) (Options, bool) {
	switch val := v.(type) {
	case nil:
		return Options{}, true
	case Options:
		return val.Clone(), true
	case map[string]any:
		return Options(val).Clone(), true
	case map[string]string:
		out := make(Options, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}
