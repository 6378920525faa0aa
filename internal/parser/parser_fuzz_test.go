package parser

import (
	"strings"
	"testing"
)

// FuzzParse checks that arbitrary input never panics the parser and that
// every successful parse round-trips.
func FuzzParse(f *testing.F) {
	f.Add("plain text")
	f.Add("<if $x > 0 then>A<else>B</if>")
	f.Add("<if $a then><if $b then>x</if>")
	f.Add("<func trim>y</func>")
	f.Add("{= $v } and {= strtoupper($n) }")
	f.Add("<setvar k>{= $v }</setvar>")
	f.Add("<template part /><TEMPLATE other>")
	f.Add("<else></if></func>")
	f.Add("<if then><if  then>")
	f.Add(strings.Repeat("<if $x then>", 12))
	f.Add("\x00<if $x\x00then>\xff</if>")

	p := New(nil)

	f.Fuzz(func(t *testing.T, input string) {
		if len(input) > 1<<16 {
			t.Skip("input too large")
		}

		tokens, err := p.Parse(input, "fuzz")
		if err != nil {
			return
		}

		var b strings.Builder
		for _, tok := range tokens {
			b.WriteString(tok.Raw)
		}
		if b.String() != input {
			t.Errorf("round trip mismatch for %q", input)
		}
	})
}
