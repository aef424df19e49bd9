// Package ordered implements a JSON object DOM that preserves key
// insertion order. encoding/json's map[string]any loses order on unmarshal,
// but the resolver's "exports"/"imports" field matcher (and conditional
// package fields generally) must walk condition keys in the order the
// author wrote them — the first matching condition wins. This package is
// the DOM every JSON-object-shaped package.json/tsconfig.json field goes
// through.
package ordered

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Object is a read-only JSON object that remembers key insertion order.
type Object struct {
	keys   []string
	values map[string]any
}

// New builds an Object from explicit keys/values. The caller must keep keys
// and the map's key set in agreement.
func New(keys []string, values map[string]any) Object {
	return Object{keys: keys, values: values}
}

// Len returns the number of keys in the object.
func (o Object) Len() int { return len(o.keys) }

// Keys returns the object's keys in insertion order. The slice is shared
// with the receiver and must not be mutated.
func (o Object) Keys() []string { return o.keys }

// Get returns the value stored at key, and whether it was present.
func (o Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// GetString returns the value at key as a string, or "" if absent or not a
// string.
func (o Object) GetString(key string) string {
	v, ok := o.values[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetObject returns the value at key as a nested Object, or the zero Object
// if absent or not an object.
func (o Object) GetObject(key string) (Object, bool) {
	v, ok := o.values[key]
	if !ok {
		return Object{}, false
	}
	obj, ok := v.(Object)
	return obj, ok
}

// IsZero reports whether o is the zero Object, as GetObject returns for an
// absent key. An empty object decoded as a nested value is not zero, so
// "absent field" and "empty object" stay distinguishable there.
func (o Object) IsZero() bool { return o.keys == nil && o.values == nil }

// UnmarshalJSON implements json.Unmarshaler, parsing data as a single JSON
// object while recording key order. Nested objects become nested Objects,
// nested arrays become []any with their own elements recursively decoded
// the same way.
func (o *Object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	t, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := t.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("ordered: expected JSON object open with '{', got %v", t)
	}

	if err := o.parse(dec); err != nil {
		return err
	}

	if t, err = dec.Token(); err != io.EOF {
		return fmt.Errorf("ordered: unexpected trailing token %T: %v (err: %v)", t, t, err)
	}
	return nil
}

func (o *Object) parse(dec *json.Decoder) error {
	for dec.More() {
		t, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := t.(string)
		if !ok {
			return fmt.Errorf("ordered: expected object key to be a string, got %T: %v", t, t)
		}

		t, err = dec.Token()
		if err != nil {
			return err
		}
		value, err := handleDelim(t, dec)
		if err != nil {
			return err
		}

		o.keys = append(o.keys, key)
		if o.values == nil {
			o.values = make(map[string]any)
		}
		o.values[key] = value
	}

	t, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := t.(json.Delim); !ok || delim != '}' {
		return fmt.Errorf("ordered: expected JSON object close with '}', got %v", t)
	}
	return nil
}

func parseArray(dec *json.Decoder) ([]any, error) {
	arr := make([]any, 0)
	for dec.More() {
		t, err := dec.Token()
		if err != nil {
			return nil, err
		}
		value, err := handleDelim(t, dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, value)
	}
	t, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := t.(json.Delim); !ok || delim != ']' {
		return nil, fmt.Errorf("ordered: expected JSON array close with ']', got %v", t)
	}
	return arr, nil
}

func handleDelim(t json.Token, dec *json.Decoder) (any, error) {
	delim, ok := t.(json.Delim)
	if !ok {
		return t, nil
	}
	switch delim {
	case '{':
		obj := Object{values: make(map[string]any)}
		if err := obj.parse(dec); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		return parseArray(dec)
	default:
		return nil, fmt.Errorf("ordered: unexpected delimiter: %q", delim)
	}
}
