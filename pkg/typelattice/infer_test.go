package typelattice

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ulp/pkg/value"
)

func TestInferStringProbes(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
	}{
		{"0", KindNull},
		{"null", KindNull},
		{"true", KindBool},
		{"TRUE", KindBool},
		{"false", KindBool},
		{"0x1f", KindInt},
		{"42", KindInt},
		{"-7", KindInt},
		{"1e10", KindFloat},
		{"3.14", KindFloat},
		{"255.255.255.255", KindIPv4},
		{"::1", KindIPv6},
		{"2024-01-02T03:04:05.678Z", KindDate},
		{"hello world", KindStr},
	}
	for _, c := range cases {
		got := Infer(value.String(c.in))
		assert.Equalf(t, c.want, got.Kind, "infer(%q)", c.in)
	}
}

func TestInferContainers(t *testing.T) {
	v := value.Object(map[string]value.Value{
		"a": value.Int(1),
		"b": value.Array(value.String("x"), value.Bool(true)),
	})
	got := Infer(v)
	assert.Equal(t, KindObject, got.Kind)
	assert.Equal(t, KindInt, got.Obj["a"].Kind)
	assert.Equal(t, KindList, got.Obj["b"].Kind)
	assert.Equal(t, KindStr, got.Obj["b"].List[0].Kind)
	assert.Equal(t, KindBool, got.Obj["b"].List[1].Kind)
}
