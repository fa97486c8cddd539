package typelattice

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"ulp/pkg/value"
)

const (
	int32Min = -2147483648
	int32Max = 2147483647
)

// Cast converts v to a shape matching t per spec §4.1. path is the dotted
// field path, used only to annotate a returned *TypeError.
func Cast(t Type, v value.Value, path string) (value.Value, error) {
	// Null<->container yields Null (checked before the primitive Null rule
	// so a null value under a compound type never tries the zero-value
	// fallback below).
	if v.Kind == value.KindNull && (t.Kind == KindList || t.Kind == KindObject) {
		return value.Null(), nil
	}

	switch t.Kind {
	case KindNull:
		if v.Kind == value.KindNull {
			return v, nil
		}
		return value.Null(), nil
	case KindBool:
		return castToBool(t, v, path)
	case KindInt:
		return castToInt(t, v, path)
	case KindFloat:
		return castToFloat(t, v, path)
	case KindIPv4:
		return castToIP(t, v, path, false)
	case KindIPv6:
		return castToIP(t, v, path, true)
	case KindDate:
		return castToDate(t, v, path)
	case KindStr:
		return castToStr(t, v, path)
	case KindList:
		return castList(t, v, path)
	case KindObject:
		return castObject(t, v, path)
	default:
		return value.Value{}, newTypeError(path, v, t, "unreachable cast kind")
	}
}

func castToBool(t Type, v value.Value, path string) (value.Value, error) {
	switch v.Kind {
	case value.KindNull:
		return value.Bool(false), nil
	case value.KindBool:
		return v, nil
	case value.KindInt:
		switch v.Int {
		case 0:
			return value.Bool(false), nil
		case 1:
			return value.Bool(true), nil
		default:
			return value.Value{}, newTypeError(path, v, t, "int->bool narrows only 0/1")
		}
	case value.KindFloat:
		switch v.Float {
		case 0.0:
			return value.Bool(false), nil
		case 1.0:
			return value.Bool(true), nil
		default:
			return value.Value{}, newTypeError(path, v, t, "float->bool narrows only 0.0/1.0")
		}
	case value.KindString:
		low := strings.ToLower(v.Str)
		if low == "true" {
			return value.Bool(true), nil
		}
		if low == "false" {
			return value.Bool(false), nil
		}
		return value.Value{}, newTypeError(path, v, t, "string does not parse as bool")
	default:
		return value.Value{}, newTypeError(path, v, t, "incompatible primitive<->compound cast")
	}
}

func castToInt(t Type, v value.Value, path string) (value.Value, error) {
	switch v.Kind {
	case value.KindNull:
		return value.Int(0), nil
	case value.KindInt:
		return v, nil
	case value.KindBool:
		if v.Bool {
			return value.Int(1), nil
		}
		return value.Int(0), nil
	case value.KindFloat:
		// round-to-nearest, half-away-from-zero
		return value.Int(int64(math.Round(v.Float))), nil
	case value.KindString:
		if i, err := strconv.ParseInt(v.Str, 10, 64); err == nil {
			return value.Int(i), nil
		}
		if strings.HasPrefix(v.Str, "0x") || strings.HasPrefix(v.Str, "0X") {
			if i, err := strconv.ParseInt(v.Str[2:], 16, 64); err == nil {
				return value.Int(i), nil
			}
		}
		return value.Value{}, newTypeError(path, v, t, "string does not parse as int")
	default:
		return value.Value{}, newTypeError(path, v, t, "incompatible primitive<->compound cast")
	}
}

func castToFloat(t Type, v value.Value, path string) (value.Value, error) {
	switch v.Kind {
	case value.KindNull:
		return value.Float(0.0), nil
	case value.KindFloat:
		return v, nil
	case value.KindBool:
		if v.Bool {
			return value.Float(1.0), nil
		}
		return value.Float(0.0), nil
	case value.KindInt:
		// Deliberately narrow: clamp through the range representable as a
		// 32-bit signed integer before widening to float64. This is a bug
		// inherited from the source system; spec §9 requires preserving it
		// exactly rather than silently fixing it.
		clamped := v.Int
		if clamped > int32Max {
			clamped = int32Max
		} else if clamped < int32Min {
			clamped = int32Min
		}
		return value.Float(float64(clamped)), nil
	case value.KindString:
		if f, err := strconv.ParseFloat(v.Str, 64); err == nil {
			return value.Float(f), nil
		}
		return value.Value{}, newTypeError(path, v, t, "string does not parse as float")
	default:
		return value.Value{}, newTypeError(path, v, t, "incompatible primitive<->compound cast")
	}
}

func castToIP(t Type, v value.Value, path string, v6 bool) (value.Value, error) {
	switch v.Kind {
	case value.KindNull:
		return value.String("null"), nil
	case value.KindString:
		ip := net.ParseIP(v.Str)
		if ip == nil {
			return value.Value{}, newTypeError(path, v, t, "string does not parse as IP")
		}
		if v6 {
			return value.String(ip.String()), nil
		}
		if ip4 := ip.To4(); ip4 != nil {
			return value.String(ip4.String()), nil
		}
		return value.Value{}, newTypeError(path, v, t, "string is not an IPv4 address")
	default:
		return value.Value{}, newTypeError(path, v, t, "incompatible primitive<->compound cast")
	}
}

func castToDate(t Type, v value.Value, path string) (value.Value, error) {
	switch v.Kind {
	case value.KindNull:
		return value.String("null"), nil
	case value.KindString:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, v.Str); err == nil {
				return value.String(ts.UTC().Format(time.RFC3339Nano)), nil
			}
		}
		return value.Value{}, newTypeError(path, v, t, "string does not parse as date")
	default:
		return value.Value{}, newTypeError(path, v, t, "incompatible primitive<->compound cast")
	}
}

func castToStr(t Type, v value.Value, path string) (value.Value, error) {
	switch v.Kind {
	case value.KindNull:
		return value.String("null"), nil
	case value.KindString:
		return v, nil
	case value.KindBool:
		if v.Bool {
			return value.String("true"), nil
		}
		return value.String("false"), nil
	case value.KindInt:
		return value.String(strconv.FormatInt(v.Int, 10)), nil
	case value.KindFloat:
		return value.String(strconv.FormatFloat(v.Float, 'g', -1, 64)), nil
	default:
		return value.Value{}, newTypeError(path, v, t, "incompatible primitive<->compound cast")
	}
}

func castList(t Type, v value.Value, path string) (value.Value, error) {
	if v.Kind != value.KindArray {
		return value.Value{}, newTypeError(path, v, t, "incompatible primitive<->compound cast")
	}
	out := make([]value.Value, len(v.Arr))
	for i, elem := range v.Arr {
		childType, ok := t.List[i]
		if !ok {
			return value.Value{}, newTypeError(joinPath(path, strconv.Itoa(i)), elem, t, "missing type entry for present array index")
		}
		cast, err := Cast(childType, elem, joinPath(path, strconv.Itoa(i)))
		if err != nil {
			return value.Value{}, err
		}
		out[i] = cast
	}
	return value.Value{Kind: value.KindArray, Arr: out}, nil
}

func castObject(t Type, v value.Value, path string) (value.Value, error) {
	if v.Kind != value.KindObject {
		return value.Value{}, newTypeError(path, v, t, "incompatible primitive<->compound cast")
	}
	out := make(map[string]value.Value, len(v.Obj))
	order := make([]string, 0, len(v.Obj))
	for _, k := range v.ObjOrder {
		childType, ok := t.Obj[k]
		if !ok {
			return value.Value{}, newTypeError(joinPath(path, k), v.Obj[k], t, "missing type entry for present object key")
		}
		cast, err := Cast(childType, v.Obj[k], joinPath(path, k))
		if err != nil {
			return value.Value{}, err
		}
		out[k] = cast
		order = append(order, k)
	}
	return value.Value{Kind: value.KindObject, Obj: out, ObjOrder: order}, nil
}

func joinPath(base, seg string) string {
	if base == "" {
		return seg
	}
	return fmt.Sprintf("%s.%s", base, seg)
}
