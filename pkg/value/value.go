// Package value implements the JSON-like grammar that every record parsed
// from a forensic source (Windows Event Log, NTFS Master File Table) is
// reduced to before it reaches the type-inference engine: null, bool,
// number (integer or fractional), string, array, and object.
//
// Values are decoded from raw JSON with encoding/json in number-preserving
// mode (json.Decoder.UseNumber) so that the distinction between an integral
// and a fractional number survives the trip from bytes to Value; the type
// lattice in pkg/typelattice depends on that distinction.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Kind tags the variant of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the tagged sum described in spec §3. Only the field matching Kind
// is meaningful.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Arr   []Value
	Obj   map[string]Value
	// ObjOrder fixes the key order used for deterministic iteration and
	// marshaling; Object and Parse fill it in alphabetical order, not
	// first-seen order. Key order is irrelevant to equality per spec §3 but
	// tests and NDJSON round-trips read easier when it is stable.
	ObjOrder []string
}

func Null() Value               { return Value{Kind: KindNull} }
func Bool(b bool) Value         { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value         { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value     { return Value{Kind: KindFloat, Float: f} }
func String(s string) Value     { return Value{Kind: KindString, Str: s} }
func Array(vs ...Value) Value   { return Value{Kind: KindArray, Arr: vs} }

// Object builds an object Value from a map, ordering keys alphabetically
// since map iteration order is not stable.
func Object(m map[string]Value) Value {
	order := make([]string, 0, len(m))
	for k := range m {
		order = append(order, k)
	}
	sort.Strings(order)
	return Value{Kind: KindObject, Obj: m, ObjOrder: order}
}

// Parse decodes a single JSON document into a Value, preserving the
// integer/float distinction via json.Number.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("value: parse: %w", err)
	}
	return fromInterface(raw), nil
}

func fromInterface(raw interface{}) Value {
	switch v := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return Int(i)
		}
		f, _ := v.Float64()
		return Float(f)
	case string:
		return String(v)
	case []interface{}:
		arr := make([]Value, len(v))
		for i, e := range v {
			arr[i] = fromInterface(e)
		}
		return Value{Kind: KindArray, Arr: arr}
	case map[string]interface{}:
		obj := make(map[string]Value, len(v))
		order := make([]string, 0, len(v))
		for k := range v {
			order = append(order, k)
		}
		sort.Strings(order)
		for _, k := range order {
			obj[k] = fromInterface(v[k])
		}
		return Value{Kind: KindObject, Obj: obj, ObjOrder: order}
	default:
		return Null()
	}
}

// MarshalJSON renders the Value back to plain JSON, losing the Kind tag
// (Int/Float both become JSON numbers) as required for shipping documents
// downstream.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.Bool)
	case KindInt:
		return json.Marshal(v.Int)
	case KindFloat:
		return json.Marshal(v.Float)
	case KindString:
		return json.Marshal(v.Str)
	case KindArray:
		return json.Marshal(v.Arr)
	case KindObject:
		buf := bytes.NewBufferString("{")
		for i, k := range v.ObjOrder {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := json.Marshal(v.Obj[k])
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("value: unknown kind %v", v.Kind)
	}
}

// Get resolves a dotted path against the value, indexing arrays by decimal
// position and objects by key. It returns ok=false when any segment is
// missing.
func (v Value) Get(path []string) (Value, bool) {
	cur := v
	for _, seg := range path {
		switch cur.Kind {
		case KindObject:
			next, ok := cur.Obj[seg]
			if !ok {
				return Value{}, false
			}
			cur = next
		case KindArray:
			idx, err := parseIndex(seg)
			if err != nil || idx < 0 || idx >= len(cur.Arr) {
				return Value{}, false
			}
			cur = cur.Arr[idx]
		default:
			return Value{}, false
		}
	}
	return cur, true
}

func parseIndex(s string) (int, error) {
	var n int
	if s == "" {
		return 0, fmt.Errorf("empty segment")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not numeric: %q", s)
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}
