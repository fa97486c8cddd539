package typelattice

import (
	"net"
	"strconv"
	"strings"
	"time"

	"ulp/pkg/value"
)

// dateLayouts lists the formats Infer and the String->Date cast probe
// recognize, in the order spec §4.1(g) fixes: RFC3339, RFC2822, then the
// two explicit microsecond/millisecond "Z" layouts the source format uses.
var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	time.RFC1123Z,
	"2006-01-02T15:04:05.000000Z",
	"2006-01-02T15:04:05.000Z",
}

// Infer computes the Type of a single Value per spec §4.1, including the
// fixed-priority string probes (a)-(h).
func Infer(v value.Value) Type {
	switch v.Kind {
	case value.KindNull:
		return Null()
	case value.KindBool:
		return Bool()
	case value.KindInt:
		return Int()
	case value.KindFloat:
		return Float()
	case value.KindString:
		return inferString(v.Str)
	case value.KindArray:
		children := make(map[int]Type, len(v.Arr))
		for i, e := range v.Arr {
			children[i] = Infer(e)
		}
		return List(children)
	case value.KindObject:
		children := make(map[string]Type, len(v.Obj))
		for k, e := range v.Obj {
			children[k] = Infer(e)
		}
		return Object(children)
	default:
		return Null()
	}
}

func inferString(s string) Type {
	// (a) literal null markers
	if s == "null" || s == "0" {
		return Null()
	}
	// (b) literal bool, case-insensitive
	if low := strings.ToLower(s); low == "true" || low == "false" {
		return Bool()
	}
	// (c) signed 64-bit integer, or 0x-prefixed hex into 64-bit
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int()
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if _, err := strconv.ParseInt(s[2:], 16, 64); err == nil {
			return Int()
		}
	}
	// (d) 64-bit float
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return Float()
	}
	// (e) IPv4
	if ip := net.ParseIP(s); ip != nil && ip.To4() != nil && !strings.Contains(s, ":") {
		return IPv4()
	}
	// (f) IPv6
	if ip := net.ParseIP(s); ip != nil && strings.Contains(s, ":") {
		return IPv6()
	}
	// (g) date
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return Date()
		}
	}
	// (h) fallback
	return Str()
}
