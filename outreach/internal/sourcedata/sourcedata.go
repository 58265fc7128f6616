// Package sourcedata wraps the free-form metadata a discovery source
// attached to a target. Nothing about its shape is assumed: every accessor
// is total and reports absence with ok=false instead of failing.
package sourcedata

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Value is an immutable JSON document. The zero Value is an empty object.
type Value struct {
	raw string
}

// Parse wraps b. Invalid JSON yields the empty Value.
func Parse(b []byte) Value {
	if len(b) == 0 || !gjson.ValidBytes(b) {
		return Value{}
	}
	return Value{raw: string(b)}
}

// From marshals v (typically a decoded API object) into a Value.
func From(v any) Value {
	b, err := json.Marshal(v)
	if err != nil {
		return Value{}
	}
	return Parse(b)
}

func (v Value) get(path string) gjson.Result {
	if v.raw == "" {
		return gjson.Result{}
	}
	return gjson.Get(v.raw, path)
}

// Has reports whether path resolves to a non-null value.
func (v Value) Has(path string) bool {
	r := v.get(path)
	return r.Exists() && r.Type != gjson.Null
}

// String returns the string at path.
func (v Value) String(path string) (string, bool) {
	r := v.get(path)
	if r.Type != gjson.String {
		return "", false
	}
	return r.Str, true
}

// FirstString returns the first non-blank string among paths.
func (v Value) FirstString(paths ...string) (string, bool) {
	for _, p := range paths {
		if s, ok := v.String(p); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// Number returns the number at path.
func (v Value) Number(path string) (float64, bool) {
	r := v.get(path)
	if r.Type != gjson.Number {
		return 0, false
	}
	return r.Num, true
}

// FirstNumber returns the first number found among paths.
func (v Value) FirstNumber(paths ...string) (float64, bool) {
	for _, p := range paths {
		if n, ok := v.Number(p); ok {
			return n, true
		}
	}
	return 0, false
}

// Strings returns the string elements of the array at path. Non-string
// elements are ignored.
func (v Value) Strings(path string) ([]string, bool) {
	r := v.get(path)
	if !r.IsArray() {
		return nil, false
	}
	var out []string
	for _, el := range r.Array() {
		if el.Type == gjson.String {
			out = append(out, el.Str)
		}
	}
	return out, true
}

// Time parses the RFC 3339 string at path.
func (v Value) Time(path string) (time.Time, bool) {
	s, ok := v.String(path)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Object returns the sub-document at path if it is a JSON object.
func (v Value) Object(path string) (Value, bool) {
	r := v.get(path)
	if !r.IsObject() {
		return Value{}, false
	}
	return Value{raw: r.Raw}, true
}

// Bytes returns the document as JSON ("{}" for the empty Value).
func (v Value) Bytes() []byte {
	if v.raw == "" {
		return []byte("{}")
	}
	return []byte(v.raw)
}

func (v Value) MarshalJSON() ([]byte, error) { return v.Bytes(), nil }

func (v *Value) UnmarshalJSON(b []byte) error {
	*v = Parse(b)
	return nil
}

// Value implements driver.Valuer; the document is stored as TEXT.
func (v Value) Value() (driver.Value, error) { return string(v.Bytes()), nil }

// Scan implements sql.Scanner.
func (v *Value) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		*v = Value{}
	case string:
		*v = Parse([]byte(s))
	case []byte:
		*v = Parse(s)
	default:
		return fmt.Errorf("sourcedata: cannot scan %T", src)
	}
	return nil
}
