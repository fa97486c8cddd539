package typelattice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ulp/pkg/value"
)

func TestCastRoundTripLaw(t *testing.T) {
	// Law 3: cast(infer(v), v) == v, for representative leaf and
	// container values.
	samples := []value.Value{
		value.Null(),
		value.Bool(true),
		value.Int(42),
		value.Float(3.14),
		value.String("plain text"),
		value.Array(value.Int(1), value.Int(2)),
		value.Object(map[string]value.Value{"a": value.Int(1), "b": value.String("x")}),
	}
	for _, v := range samples {
		ty := Infer(v)
		got, err := Cast(ty, v, "")
		require.NoError(t, err)
		assert.Truef(t, valuesEqual(v, got), "cast(infer(%v), %v) = %v", ty, v, got)
	}
}

func valuesEqual(a, b value.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case value.KindArray:
		if len(a.Arr) != len(b.Arr) {
			return false
		}
		for i := range a.Arr {
			if !valuesEqual(a.Arr[i], b.Arr[i]) {
				return false
			}
		}
		return true
	case value.KindObject:
		if len(a.Obj) != len(b.Obj) {
			return false
		}
		for k, av := range a.Obj {
			bv, ok := b.Obj[k]
			if !ok || !valuesEqual(av, bv) {
				return false
			}
		}
		return true
	default:
		return a.Bool == b.Bool && a.Int == b.Int && a.Float == b.Float && a.Str == b.Str
	}
}

func TestCastNullToPrimitiveZero(t *testing.T) {
	got, err := Cast(Bool(), value.Null(), "")
	require.NoError(t, err)
	assert.Equal(t, false, got.Bool)

	got, err = Cast(Int(), value.Null(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Int)

	got, err = Cast(Float(), value.Null(), "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Float)

	got, err = Cast(Str(), value.Null(), "")
	require.NoError(t, err)
	assert.Equal(t, "null", got.Str)
}

func TestCastBoolToNumericAndStr(t *testing.T) {
	got, _ := Cast(Int(), value.Bool(true), "")
	assert.Equal(t, int64(1), got.Int)
	got, _ = Cast(Float(), value.Bool(false), "")
	assert.Equal(t, 0.0, got.Float)
	got, _ = Cast(Str(), value.Bool(true), "")
	assert.Equal(t, "true", got.Str)
}

func TestCastIntToBoolNarrow(t *testing.T) {
	got, err := Cast(Bool(), value.Int(0), "")
	require.NoError(t, err)
	assert.Equal(t, false, got.Bool)

	got, err = Cast(Bool(), value.Int(1), "")
	require.NoError(t, err)
	assert.Equal(t, true, got.Bool)

	_, err = Cast(Bool(), value.Int(2), "")
	require.Error(t, err)
}

func TestCastIntToFloatSaturatesAtInt32Boundary(t *testing.T) {
	got, err := Cast(Float(), value.Int(int32Max+1000), "")
	require.NoError(t, err)
	assert.Equal(t, float64(int32Max), got.Float)

	got, err = Cast(Float(), value.Int(int32Min-1000), "")
	require.NoError(t, err)
	assert.Equal(t, float64(int32Min), got.Float)

	got, err = Cast(Float(), value.Int(100), "")
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Float)
}

func TestCastFloatToIntRoundsHalfAwayFromZero(t *testing.T) {
	got, err := Cast(Int(), value.Float(2.5), "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Int)

	got, err = Cast(Int(), value.Float(-2.5), "")
	require.NoError(t, err)
	assert.Equal(t, int64(-3), got.Int)
}

func TestCastFloatToBoolNarrow(t *testing.T) {
	got, err := Cast(Bool(), value.Float(0.0), "")
	require.NoError(t, err)
	assert.False(t, got.Bool)

	_, err = Cast(Bool(), value.Float(0.5), "")
	require.Error(t, err)
}

func TestCastStringToIPv4Canonical(t *testing.T) {
	got, err := Cast(IPv4(), value.String("127.0.0.1"), "")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", got.Str)
}

func TestCastStringToIPv6Canonical(t *testing.T) {
	got, err := Cast(IPv6(), value.String("0:0:0:0:0:0:0:1"), "")
	require.NoError(t, err)
	assert.Equal(t, "::1", got.Str)
}

func TestCastStringToDateCanonical(t *testing.T) {
	got, err := Cast(Date(), value.String("2024-01-02T03:04:05.678Z"), "")
	require.NoError(t, err)
	assert.Contains(t, got.Str, "2024-01-02T03:04:05.678")
}

func TestCastContainerMissingKeyIsFatal(t *testing.T) {
	ty := Object(map[string]Type{"a": Int()})
	v := value.Object(map[string]value.Value{"a": value.Int(1), "b": value.Int(2)})
	_, err := Cast(ty, v, "")
	require.Error(t, err)
	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)
}

func TestCastNullUnderContainerYieldsNull(t *testing.T) {
	ty := Object(map[string]Type{"a": Int()})
	got, err := Cast(ty, value.Null(), "")
	require.NoError(t, err)
	assert.Equal(t, value.KindNull, got.Kind)
}

func TestCastIncompatiblePrimitiveCompoundIsError(t *testing.T) {
	_, err := Cast(Object(map[string]Type{"a": Int()}), value.Int(5), "")
	require.Error(t, err)
}
