package typelattice

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// MarshalJSON renders Type as the single-key tagged union described in
// spec §6, e.g. {"Int":null} or {"List":{"0":{"Str":null}}}.
func (t Type) MarshalJSON() ([]byte, error) {
	switch t.Kind {
	case KindList:
		keys := make([]int, 0, len(t.List))
		for k := range t.List {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		m := make(map[string]Type, len(t.List))
		for _, k := range keys {
			m[strconv.Itoa(k)] = t.List[k]
		}
		return json.Marshal(map[string]interface{}{"List": m})
	case KindObject:
		return json.Marshal(map[string]interface{}{"Object": t.Obj})
	default:
		return json.Marshal(map[string]interface{}{t.Kind.String(): nil})
	}
}

// UnmarshalJSON parses Type back from the tagged-union encoding.
func (t *Type) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("typelattice: expected single-key tagged union, got %d keys", len(raw))
	}
	for tag, body := range raw {
		switch tag {
		case "Null":
			*t = Null()
		case "Bool":
			*t = Bool()
		case "Int":
			*t = Int()
		case "Float":
			*t = Float()
		case "IPv4":
			*t = IPv4()
		case "IPv6":
			*t = IPv6()
		case "Date":
			*t = Date()
		case "Str":
			*t = Str()
		case "List":
			var m map[string]Type
			if err := json.Unmarshal(body, &m); err != nil {
				return err
			}
			children := make(map[int]Type, len(m))
			for k, v := range m {
				pos, err := strconv.Atoi(k)
				if err != nil {
					return fmt.Errorf("typelattice: non-numeric List key %q: %w", k, err)
				}
				children[pos] = v
			}
			*t = List(children)
		case "Object":
			var m map[string]Type
			if err := json.Unmarshal(body, &m); err != nil {
				return err
			}
			*t = Object(m)
		default:
			return fmt.Errorf("typelattice: unknown Type tag %q", tag)
		}
	}
	return nil
}
