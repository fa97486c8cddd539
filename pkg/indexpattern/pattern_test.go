package indexpattern

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ulp/pkg/value"
)

func TestRenderBasic(t *testing.T) {
	p := Parse("{{x.y}}_aaa_{{a.b}}_bbb")
	rec := value.Object(map[string]value.Value{
		"x": value.Object(map[string]value.Value{"y": value.String("apple")}),
		"a": value.Object(map[string]value.Value{"b": value.String("pear")}),
	})
	assert.Equal(t, "apple_aaa_pear_bbb", p.Render(rec))
}

func TestRenderMissingArrayObjectOther(t *testing.T) {
	p := Parse("idx-{{missing}}-{{arr}}-{{obj}}-{{num}}-end")
	rec := value.Object(map[string]value.Value{
		"arr": value.Array(value.Int(1)),
		"obj": value.Object(map[string]value.Value{"k": value.Int(1)}),
		"num": value.Int(42),
	})
	assert.Equal(t, "idx-NONE-ARRAY-OBJECT--end", p.Render(rec))
}

func TestRenderIdempotent(t *testing.T) {
	// Law 4: rendering the same pattern against the same record twice
	// yields the same string.
	p := Parse("{{a}}-{{b.0}}")
	rec := value.Object(map[string]value.Value{
		"a": value.String("x"),
		"b": value.Array(value.String("y")),
	})
	first := p.Render(rec)
	second := p.Render(rec)
	assert.Equal(t, first, second)
}

func TestRenderArrayIndexPath(t *testing.T) {
	p := Parse("{{items.1}}")
	rec := value.Object(map[string]value.Value{
		"items": value.Array(value.String("zero"), value.String("one")),
	})
	assert.Equal(t, "one", p.Render(rec))
}

func TestRenderNoSubstitutions(t *testing.T) {
	p := Parse("plain-literal")
	assert.Equal(t, "plain-literal", p.Render(value.Null()))
}
