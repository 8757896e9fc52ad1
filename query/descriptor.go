package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Entry is one key/value pair of a Descriptor.
type Entry struct {
	Key   string
	Value any
}

// Descriptor is an ordered set of predicate entries joined with AND. A key
// is a column name with an optional JSON path and a trailing operator, for
// example "price >", "specs->>weight" or "tags @>".
type Descriptor []Entry

// D builds a descriptor from alternating keys and values.
func D(pairs ...any) Descriptor {
	if len(pairs)%2 != 0 {
		panic("query: D requires key/value pairs")
	}
	d := make(Descriptor, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("query: descriptor key %v is not a string", pairs[i]))
		}
		d = append(d, Entry{Key: key, Value: pairs[i+1]})
	}
	return d
}

// FromMap builds a descriptor from a map. Go maps are unordered so the
// entries are sorted by key to keep placeholder numbering stable.
func FromMap(m map[string]any) Descriptor {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := make(Descriptor, 0, len(keys))
	for _, k := range keys {
		d = append(d, Entry{Key: k, Value: m[k]})
	}
	return d
}

// Len returns the number of entries.
func (d Descriptor) Len() int {
	return len(d)
}

// Keys returns the entry keys in order.
func (d Descriptor) Keys() []string {
	keys := make([]string, len(d))
	for i, e := range d {
		keys[i] = e.Key
	}
	return keys
}

// MarshalJSON writes the descriptor as a JSON object in entry order.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %q: %w", e.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping the key order of the document.
// Integral numbers decode as int64, other numbers as float64.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return &ValidationError{Field: "descriptor", Reason: "must be a JSON object"}
	}

	out := Descriptor{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to decode %q: %w", key, err)
		}
		out = append(out, Entry{Key: key, Value: normalizeJSON(raw)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*d = out
	return nil
}

func normalizeJSON(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case []any:
		for i := range val {
			val[i] = normalizeJSON(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = normalizeJSON(val[k])
		}
		return val
	}
	return v
}
