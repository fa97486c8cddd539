package typelattice

import (
	"strconv"
	"strings"

	"ulp/pkg/value"
)

// Change records one widening of the stored type at a field path, per
// spec §3's change_log / §4.1's "change detection" rule.
type Change struct {
	Path            string
	OldType         Type
	NewType         Type
	TriggeringValue value.Value
}

// MergeObserve widens existing by a freshly-observed value, recursing
// field-by-field so each individual leaf widening can be recorded. A
// widening is logged only when the field already held a type (existing !=
// Null at that path) and the merge actually changed it — the very first
// time a field is seen, existing is Null and nothing is logged, matching
// spec §8 scenario S1 (the first observe populates the global type with no
// change_log entries; only the second, conflicting observe produces them).
func MergeObserve(existing Type, v value.Value, path string) (Type, []Change, error) {
	var changes []Change
	merged, err := mergeObserveRec(existing, v, path, &changes)
	if err != nil {
		return Type{}, nil, err
	}
	return merged, changes, nil
}

func mergeObserveRec(old Type, v value.Value, path string, changes *[]Change) (Type, error) {
	switch v.Kind {
	case value.KindArray:
		if old.Kind != KindNull && old.Kind != KindList {
			return mergeObserveLeaf(old, v, path, changes)
		}
		children := make(map[int]Type, len(v.Arr))
		for i, elem := range v.Arr {
			oldChild := Null()
			if old.Kind == KindList {
				if c, ok := old.List[i]; ok {
					oldChild = c
				}
			}
			childType, err := mergeObserveRec(oldChild, elem, joinPath(path, strconv.Itoa(i)), changes)
			if err != nil {
				return Type{}, err
			}
			children[i] = childType
		}
		if old.Kind == KindList {
			for k, v2 := range old.List {
				if _, ok := children[k]; !ok {
					children[k] = v2
				}
			}
		}
		return List(children), nil

	case value.KindObject:
		if old.Kind != KindNull && old.Kind != KindObject {
			return mergeObserveLeaf(old, v, path, changes)
		}
		children := make(map[string]Type, len(v.Obj))
		for k, elem := range v.Obj {
			oldChild := Null()
			if old.Kind == KindObject {
				if c, ok := old.Obj[k]; ok {
					oldChild = c
				}
			}
			childType, err := mergeObserveRec(oldChild, elem, joinPath(path, k), changes)
			if err != nil {
				return Type{}, err
			}
			children[k] = childType
		}
		if old.Kind == KindObject {
			for k, v2 := range old.Obj {
				if _, ok := children[k]; !ok {
					children[k] = v2
				}
			}
		}
		return Object(children), nil

	default:
		return mergeObserveLeaf(old, v, path, changes)
	}
}

func mergeObserveLeaf(old Type, v value.Value, path string, changes *[]Change) (Type, error) {
	merged, err := Merge(old, Infer(v))
	if err != nil {
		return Type{}, err
	}
	if old.Kind != KindNull && !merged.Equal(old) {
		*changes = append(*changes, Change{
			Path:            strings.TrimPrefix(path, "."),
			OldType:         old,
			NewType:         merged,
			TriggeringValue: v,
		})
	}
	return merged, nil
}
