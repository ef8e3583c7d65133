// Package report merges per-job detail records into one run report and
// renders it.
package report

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
)

// Kind of a detail value.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is an integer, float or string detail. The zero value is Int(0).
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// Int returns an integer value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float returns a float value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Str returns a string value.
func Str(v string) Value { return Value{kind: KindString, s: v} }

// Kind returns which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// AsInt returns the integer held by v.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the number held by v. Integers convert.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// String formats v for display. Floats use two decimals.
func (v Value) String() string {
	switch v.kind {
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', 2, 64)
	case KindString:
		return v.s
	default:
		return strconv.FormatInt(v.i, 10)
	}
}

// MarshalJSON writes numbers as JSON numbers and strings as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindInt:
		return json.Marshal(v.i)
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.kind)
	}
}

// Record is one job's details keyed by detail name.
type Record map[string]Value

// Merge copies src into dst; keys present in both take the value from src.
// dst is allocated when nil and returned.
func Merge(dst, src Record) Record {
	if dst == nil {
		dst = make(Record, len(src))
	}
	maps.Copy(dst, src)
	return dst
}
