package typelattice

import (
	"strconv"

	"ulp/pkg/value"
)

// Merge widens a and b into the smallest Type that both instances of the
// data could have produced, per spec §4.1. It is commutative and
// idempotent: Merge(a, a) == a, Merge(a, b) == Merge(b, a).
//
// The only failure mode is merging an Object (or Null-is-handled-separately)
// against an incompatible primitive, which spec §4.1 declares "undefined"
// and requires to surface as a *TypeError rather than panic (spec §9, REDESIGN
// FLAGS: the source panics on this branch; here it returns an error).
func Merge(a, b Type) (Type, error) {
	if a.Equal(b) {
		return a, nil
	}
	if a.Kind == KindNull {
		return b, nil
	}
	if b.Kind == KindNull {
		return a, nil
	}

	aCompound, bCompound := a.Kind == KindList || a.Kind == KindObject, b.Kind == KindList || b.Kind == KindObject

	switch {
	case !aCompound && !bCompound:
		return Type{Kind: mergeLeafKind(a.Kind, b.Kind)}, nil
	case a.Kind == KindList && b.Kind == KindList:
		return mergeListList(a, b), nil
	case a.Kind == KindObject && b.Kind == KindObject:
		return mergeObjObj(a, b), nil
	case a.Kind == KindList && b.Kind == KindObject:
		return mergeListObj(a, b), nil
	case a.Kind == KindObject && b.Kind == KindList:
		return mergeListObj(b, a), nil
	case a.Kind == KindList && !bCompound:
		return mergeListPrimitive(a, b), nil
	case b.Kind == KindList && !aCompound:
		return mergeListPrimitive(b, a), nil
	case a.Kind == KindObject && !bCompound:
		return Type{}, newTypeError("", value.Value{}, b, "incompatible compound/primitive merge")
	case b.Kind == KindObject && !aCompound:
		return Type{}, newTypeError("", value.Value{}, a, "incompatible compound/primitive merge")
	default:
		return Type{}, newTypeError("", value.Value{}, b, "unreachable merge branch")
	}
}

// mergeLeafKind implements the numeric widening chain Bool<Int<Float and
// the Str-absorbs-everything / cross-address-family collapse rules.
func mergeLeafKind(ak, bk Kind) Kind {
	if ak == bk {
		return ak
	}
	if isNumeric(ak) && isNumeric(bk) {
		if numericRank(ak) > numericRank(bk) {
			return ak
		}
		return bk
	}
	return KindStr
}

func isNumeric(k Kind) bool {
	return k == KindBool || k == KindInt || k == KindFloat
}

func numericRank(k Kind) int {
	switch k {
	case KindBool:
		return 0
	case KindInt:
		return 1
	case KindFloat:
		return 2
	default:
		return -1
	}
}

func mergeListList(a, b Type) Type {
	out := make(map[int]Type, len(a.List)+len(b.List))
	for k, v := range a.List {
		out[k] = v
	}
	for k, bv := range b.List {
		if av, ok := out[k]; ok {
			merged, err := Merge(av, bv)
			if err != nil {
				// A position-level merge error degrades to Str rather than
				// aborting the whole container merge; callers that need the
				// error should merge leaves directly.
				merged = Str()
			}
			out[k] = merged
		} else {
			out[k] = bv
		}
	}
	return List(out)
}

func mergeObjObj(a, b Type) Type {
	out := make(map[string]Type, len(a.Obj)+len(b.Obj))
	for k, v := range a.Obj {
		out[k] = v
	}
	for k, bv := range b.Obj {
		if av, ok := out[k]; ok {
			merged, err := Merge(av, bv)
			if err != nil {
				merged = Str()
			}
			out[k] = merged
		} else {
			out[k] = bv
		}
	}
	return Object(out)
}

// mergeListObj folds the List's position-keyed children into the Object's
// string-keyed children, stringifying each position, per spec §4.1.
func mergeListObj(l, o Type) Type {
	out := make(map[string]Type, len(o.Obj)+len(l.List))
	for k, v := range o.Obj {
		out[k] = v
	}
	for pos, v := range l.List {
		key := strconv.Itoa(pos)
		if ov, ok := out[key]; ok {
			merged, err := Merge(ov, v)
			if err != nil {
				merged = Str()
			}
			out[key] = merged
		} else {
			out[key] = v
		}
	}
	return Object(out)
}

// mergeListPrimitive treats the primitive as if observed at position 0 of
// the list, per spec §4.1.
func mergeListPrimitive(l, prim Type) Type {
	out := make(map[int]Type, len(l.List))
	for k, v := range l.List {
		out[k] = v
	}
	if existing, ok := out[0]; ok {
		merged, err := Merge(existing, prim)
		if err != nil {
			merged = Str()
		}
		out[0] = merged
	} else {
		out[0] = prim
	}
	return List(out)
}
