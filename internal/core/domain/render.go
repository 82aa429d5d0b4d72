package domain

import (
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// NamedParam is one name/value pair of a Named parameter list.
type NamedParam struct {
	Name  string
	Value any
}

// Named is an ordered, name-keyed parameter list. Unlike a map it keeps the
// caller's binding order, which is the order values are rendered in.
type Named []NamedParam

// Map returns the parameters as a plain map for drivers that bind by name.
func (n Named) Map() map[string]any {
	m := make(map[string]any, len(n))
	for _, p := range n {
		m[p.Name] = p.Value
	}
	return m
}

// SortedNamed builds a Named list from a map in ascending key order, for
// drivers whose named-argument type is an unordered map.
func SortedNamed(m map[string]any) Named {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(Named, len(keys))
	for i, k := range keys {
		out[i] = NamedParam{Name: k, Value: m[k]}
	}
	return out
}

// BoundValues returns the parameter values actually bound by a call, in
// binding order. A single Named argument yields its values in caller
// order. Any other argument, maps included, is one bound value.
func BoundValues(args []any) []any {
	if len(args) == 1 {
		if n, ok := args[0].(Named); ok {
			out := make([]any, len(n))
			for i, p := range n {
				out[i] = p.Value
			}
			return out
		}
	}
	if len(args) == 0 {
		return []any{}
	}
	return args
}

// RenderParams renders each value with RenderParam. Never returns nil.
func RenderParams(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = RenderParam(v)
	}
	return out
}

// RenderParam renders a bound value as SQL-like literal text:
// NULL, bare numbers, quoted text and times, ARRAY[...] for collections.
func RenderParam(v any) string {
	if v == nil {
		return "NULL"
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return "NULL"
	}

	switch t := v.(type) {
	case string:
		return "'" + t + "'"
	case time.Time:
		return "'" + t.Format(time.RFC3339Nano) + "'"
	case []byte:
		return `'\x` + hex.EncodeToString(t) + "'"
	case int:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case driver.Valuer:
		inner, err := t.Value()
		if err != nil {
			return fmt.Sprint(v)
		}
		// Valuers returning themselves would recurse forever.
		if _, same := inner.(driver.Valuer); same {
			return fmt.Sprint(inner)
		}
		return RenderParam(inner)
	}

	switch rv.Kind() {
	case reflect.Pointer:
		return RenderParam(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.String:
		return "'" + rv.String() + "'"
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "NULL"
		}
		elems := make([]string, rv.Len())
		for i := range elems {
			elems[i] = RenderParam(rv.Index(i).Interface())
		}
		return "ARRAY[" + strings.Join(elems, ", ") + "]"
	case reflect.Map:
		if rv.IsNil() {
			return "NULL"
		}
		// Drivers bind maps as one json (or hstore) value.
		if b, err := json.Marshal(v); err == nil {
			return "'" + string(b) + "'"
		}
	}
	return fmt.Sprint(v)
}
