// Package typelattice implements the widening structural-type lattice (C1
// in the design): inference of a Type from a single Value, monotone merging
// of two Types into a wider one, and casting a Value to a previously
// inferred Type.
//
// The lattice, its merge table, and its cast rules are the most
// safety-critical part of the pipeline: every record that ever reaches a
// downstream index has gone through infer+merge (while building the
// MappingStore) and cast (while shipping). Silent narrowing or panics here
// corrupt or crash the whole pipeline, so every partial function in this
// package returns a *TypeError instead of panicking on an unreachable case.
package typelattice

import (
	"fmt"

	"ulp/pkg/value"
)

// Kind tags the variant of a Type.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindIPv4
	KindIPv6
	KindDate
	KindStr
	KindList
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindIPv4:
		return "IPv4"
	case KindIPv6:
		return "IPv6"
	case KindDate:
		return "Date"
	case KindStr:
		return "Str"
	case KindList:
		return "List"
	case KindObject:
		return "Object"
	default:
		return "Unknown"
	}
}

// Type is the recursive structural type described in spec §3/§4.1. List
// children are keyed by the decimal position they were first observed at;
// Object children by string key.
type Type struct {
	Kind Kind
	List map[int]Type
	Obj  map[string]Type
}

func Null() Type   { return Type{Kind: KindNull} }
func Bool() Type   { return Type{Kind: KindBool} }
func Int() Type    { return Type{Kind: KindInt} }
func Float() Type  { return Type{Kind: KindFloat} }
func IPv4() Type   { return Type{Kind: KindIPv4} }
func IPv6() Type   { return Type{Kind: KindIPv6} }
func Date() Type   { return Type{Kind: KindDate} }
func Str() Type    { return Type{Kind: KindStr} }

func List(children map[int]Type) Type {
	return Type{Kind: KindList, List: children}
}

func Object(children map[string]Type) Type {
	return Type{Kind: KindObject, Obj: children}
}

func (t Type) IsLeaf() bool {
	return t.Kind != KindList && t.Kind != KindObject
}

// Equal reports structural equality, recursing through List/Object
// children.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindList:
		if len(t.List) != len(o.List) {
			return false
		}
		for k, v := range t.List {
			ov, ok := o.List[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	case KindObject:
		if len(t.Obj) != len(o.Obj) {
			return false
		}
		for k, v := range t.Obj {
			ov, ok := o.Obj[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (t Type) String() string {
	switch t.Kind {
	case KindList:
		return fmt.Sprintf("List%v", t.List)
	case KindObject:
		return fmt.Sprintf("Object%v", t.Obj)
	default:
		return t.Kind.String()
	}
}

// TypeError is the single error kind spec §4.1 mandates for both merge and
// cast failures: an incompatible compound<->primitive merge, or a cast that
// cannot produce a value of the requested type.
type TypeError struct {
	Path          string
	Value         value.Value
	AttemptedType Type
	Reason        string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("typelattice: %s: cannot reconcile %s with %s at %q", e.Reason, e.Value.Kind, e.AttemptedType, e.Path)
}

func newTypeError(path string, v value.Value, t Type, reason string) *TypeError {
	return &TypeError{Path: path, Value: v, AttemptedType: t, Reason: reason}
}
