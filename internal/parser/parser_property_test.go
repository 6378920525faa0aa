//go:build property

package parser

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/weftware/weft/internal/types"
)

// TestParserProperties validates invariants that must hold for every input,
// not just the hand-picked table cases.
func TestParserProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	p := New(nil)

	// Property: concatenating Raw over a successful parse reproduces the
	// input byte-for-byte.
	properties.Property("token stream round-trips to the input", prop.ForAll(
		func(text string) bool {
			tokens, err := p.Parse(text, "prop")
			if err != nil {
				// Structural errors are fine; round-trip only applies
				// to successful parses.
				return true
			}
			var b strings.Builder
			for _, tok := range tokens {
				b.WriteString(tok.Raw)
			}
			return b.String() == text
		},
		genTemplateText(),
	))

	// Property: positions are strictly increasing and in-bounds.
	properties.Property("token positions are monotonic", prop.ForAll(
		func(text string) bool {
			tokens, err := p.Parse(text, "prop")
			if err != nil {
				return true
			}
			last := -1
			for _, tok := range tokens {
				if tok.Pos <= last || tok.Pos+len(tok.Raw) > len(text) {
					return false
				}
				last = tok.Pos
			}
			return true
		},
		genTemplateText(),
	))

	// Property: a successful parse never contains two adjacent text tokens
	// (gaps are merged into a single token).
	properties.Property("no adjacent text tokens", prop.ForAll(
		func(text string) bool {
			tokens, err := p.Parse(text, "prop")
			if err != nil {
				return true
			}
			for i := 1; i < len(tokens); i++ {
				if tokens[i].Type == types.TokenText && tokens[i-1].Type == types.TokenText {
					return false
				}
			}
			return true
		},
		genTemplateText(),
	))

	// Property: balanced generated templates always parse, and their open
	// and close counts agree.
	properties.Property("generated balanced templates parse", prop.ForAll(
		func(depth int) bool {
			if depth < 0 || depth > 8 {
				return true
			}
			var b strings.Builder
			for i := 0; i < depth; i++ {
				b.WriteString("<if $x then>a")
			}
			b.WriteString("{= $y }")
			for i := 0; i < depth; i++ {
				b.WriteString("<else>b</if>")
			}
			tokens, err := p.Parse(b.String(), "prop")
			if err != nil {
				return false
			}
			opens, closes := 0, 0
			for _, tok := range tokens {
				switch tok.Type {
				case types.TokenIfOpen:
					opens++
				case types.TokenIfClose:
					closes++
				}
			}
			return opens == depth && closes == depth
		},
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}

// genTemplateText mixes construct fragments with plain filler so generated
// inputs exercise both the fast path and the tokenizer.
func genTemplateText() gopter.Gen {
	fragment := gen.OneConstOf(
		"plain text ",
		"<p>html</p>",
		"<if $x then>",
		"<else>",
		"<else if $y then>",
		"</if>",
		"<func trim>",
		"</func>",
		"{= $v }",
		"<template part>",
		`<setvar k>1</setvar>`,
		"\n",
	)
	return gen.SliceOf(fragment).Map(func(parts []string) string {
		return strings.Join(parts, "")
	})
}
