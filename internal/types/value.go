// Package types defines the core data model shared across corehub's
// subsystems: the tagged-union event payload value, the Event itself, and
// the sentinel errors each subsystem returns.
package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Kind discriminates the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

// Value is the closed sum type that backs every Event's data tree and every
// shared-state snapshot. It is a tagged union, not a reflective object:
// callers switch on Kind() and use the typed accessor for that kind.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    Map
}

// Map is a string-keyed collection of Values. Ranging over it follows Go's
// unspecified map order; JSON encoding and Value.String emit keys sorted.
type Map map[string]Value

func Null() Value             { return Value{kind: KindNull} }
func Bool(b bool) Value       { return Value{kind: KindBool, b: b} }
func Int(i int64) Value       { return Value{kind: KindInt, i: i} }
func Float(f float64) Value   { return Value{kind: KindFloat, f: f} }
func String(s string) Value   { return Value{kind: KindString, s: s} }
func List(vs []Value) Value   { return Value{kind: KindList, list: vs} }
func FromMap(m Map) Value     { return Value{kind: KindMap, m: m} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		return int64(v.f), true
	}
	return 0, false
}

func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

func (v Value) AsMap() (Map, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

// String renders the value the way the template renderer needs it: the
// plain textual form with no quoting, "" for null/miss.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindList:
		out := make([]string, len(v.list))
		for i, e := range v.list {
			out[i] = e.String()
		}
		b, _ := json.Marshal(out)
		return string(b)
	case KindMap:
		b, _ := json.Marshal(v.toJSONAny())
		return string(b)
	}
	return ""
}

// Lookup resolves a dot-separated path against a map value, returning
// (Null(), false) on any missing segment.
func (v Value) Lookup(path []string) (Value, bool) {
	cur := v
	for _, seg := range path {
		m, ok := cur.AsMap()
		if !ok {
			return Null(), false
		}
		next, ok := m[seg]
		if !ok {
			return Null(), false
		}
		cur = next
	}
	return cur, true
}

func (v Value) toJSONAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.toJSONAny()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = e.toJSONAny()
		}
		return out
	}
	return nil
}

// MarshalJSON implements json.Marshaler with deterministic map key order.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind != KindMap {
		return json.Marshal(v.toJSONAny())
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, _ := json.Marshal(k)
		buf = append(buf, kb...)
		buf = append(buf, ':')
		vb, err := json.Marshal(v.m[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// UnmarshalJSON implements json.Unmarshaler via type-directed dispatch, no
// reflection into a destination struct.
func (v *Value) UnmarshalJSON(data []byte) error {
	var any any
	if err := json.Unmarshal(data, &any); err != nil {
		return err
	}
	*v = FromAny(any)
	return nil
}

// FromAny converts a decoded interface{} (as produced by encoding/json) into
// a Value, recursively.
func FromAny(a any) Value {
	switch x := a.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case float64:
		if x == float64(int64(x)) {
			return Int(int64(x))
		}
		return Float(x)
	case int:
		return Int(int64(x))
	case int64:
		return Int(x)
	case string:
		return String(x)
	case []any:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = FromAny(e)
		}
		return List(out)
	case map[string]any:
		out := make(Map, len(x))
		for k, e := range x {
			out[k] = FromAny(e)
		}
		return FromMap(out)
	default:
		return String(fmt.Sprintf("%v", x))
	}
}

// Clone performs a deep copy, preventing external mutation of stored
// snapshots (shared-state entries, queued hit payloads).
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		out := make([]Value, len(v.list))
		for i, e := range v.list {
			out[i] = e.Clone()
		}
		return List(out)
	case KindMap:
		out := make(Map, len(v.m))
		for k, e := range v.m {
			out[k] = e.Clone()
		}
		return FromMap(out)
	default:
		return v
	}
}

func (m Map) Clone() Map {
	return FromMap(m).Clone().m
}
