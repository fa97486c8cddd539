// Package indexpattern implements the template (C2) that derives a
// downstream index name from a record's field values: a literal string
// interleaved with {{dotted.path}} substitutions, parsed once and rendered
// against every observed record.
package indexpattern

import (
	"strings"

	"ulp/pkg/value"
)

// part is one literal or substitution segment of a parsed Pattern.
type part struct {
	text     string
	isSub    bool
	pathSegs []string
}

// Pattern is a template string parsed into an ordered sequence of parts.
// Parsing happens once, at construction; Render is cheap and allocation-
// light to run for every record.
type Pattern struct {
	raw   string
	parts []part
}

// Parse scans a template for doubled-brace substitutions. Each "{{...}}"
// pair consumes exactly one dotted path; everything else is literal text.
func Parse(template string) Pattern {
	p := Pattern{raw: template}
	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			if rest != "" {
				p.parts = append(p.parts, part{text: rest})
			}
			break
		}
		if start > 0 {
			p.parts = append(p.parts, part{text: rest[:start]})
		}
		rest = rest[start+2:]
		end := strings.Index(rest, "}}")
		if end < 0 {
			// Unterminated substitution: treat the remaining text as a
			// literal rather than silently dropping it.
			p.parts = append(p.parts, part{text: "{{" + rest})
			break
		}
		path := rest[:end]
		p.parts = append(p.parts, part{isSub: true, pathSegs: strings.Split(path, ".")})
		rest = rest[end+2:]
	}
	return p
}

func (p Pattern) String() string { return p.raw }

// Render resolves every substitution against rec and concatenates the
// result, per spec §4.2's missing/array/object/string/other rules. The
// result is the raw index name; sanitization happens downstream in the
// sink adapter, never here.
func (p Pattern) Render(rec value.Value) string {
	var b strings.Builder
	for _, pt := range p.parts {
		if !pt.isSub {
			b.WriteString(pt.text)
			continue
		}
		resolved, ok := rec.Get(pt.pathSegs)
		if !ok {
			b.WriteString("NONE")
			continue
		}
		switch resolved.Kind {
		case value.KindArray:
			b.WriteString("ARRAY")
		case value.KindObject:
			b.WriteString("OBJECT")
		case value.KindString:
			b.WriteString(resolved.Str)
		default:
			// any other primitive (null, bool, number) contributes nothing
		}
	}
	return b.String()
}
