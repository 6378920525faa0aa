// Package security implements the sandbox policy applied to template
// expressions before they are embedded in compiled output.
//
// The policy is a pure predicate over identifier names plus two limits
// (conditional nesting depth, expression length). It is implemented as plain
// set membership over string identifiers rather than any form of runtime
// reflection, which keeps it portable and exhaustively unit-testable. A
// policy is immutable and stateless after construction and is safe to share
// across any number of parse/compile sessions.
package security

import (
	"fmt"
	"regexp"
	"strings"

	wefterrors "github.com/weftware/weft/internal/errors"
)

const (
	// DefaultMaxNestingDepth bounds conditional nesting.
	DefaultMaxNestingDepth = 10
	// DefaultMaxExpressionLength bounds one expression or condition body.
	DefaultMaxExpressionLength = 1000
)

// Options configures a Policy. Zero values fall back to defaults.
type Options struct {
	ExtraAllowedFunctions []string
	DeniedFunctions       []string
	MaxNestingDepth       int
	MaxExpressionLength   int
}

// Policy is the immutable security predicate. Deny always wins over allow,
// including over the fixed base set, so an operator can revoke a normally
// safe function. Hard-excluded families can never be allowed at all.
type Policy struct {
	baseAllow           map[string]struct{}
	extraAllow          map[string]struct{}
	deny                map[string]struct{}
	maxNestingDepth     int
	maxExpressionLength int
}

// NewPolicy constructs a policy from configuration. Extra allow entries that
// fall into a hard-excluded family are dropped; the returned warnings name
// each dropped entry so operators can see the rejection.
func NewPolicy(opts Options) (*Policy, []string) {
	p := &Policy{
		baseAllow:           baseAllowSet(),
		extraAllow:          make(map[string]struct{}),
		deny:                make(map[string]struct{}),
		maxNestingDepth:     opts.MaxNestingDepth,
		maxExpressionLength: opts.MaxExpressionLength,
	}
	if p.maxNestingDepth <= 0 {
		p.maxNestingDepth = DefaultMaxNestingDepth
	}
	if p.maxExpressionLength <= 0 {
		p.maxExpressionLength = DefaultMaxExpressionLength
	}

	var warnings []string
	for _, name := range opts.ExtraAllowedFunctions {
		lower := strings.ToLower(strings.TrimSpace(name))
		if lower == "" {
			continue
		}
		if isHardExcluded(lower) {
			warnings = append(warnings,
				fmt.Sprintf("extra_allowed_functions entry %q is hard-excluded and was ignored", name))
			continue
		}
		p.extraAllow[lower] = struct{}{}
	}
	for _, name := range opts.DeniedFunctions {
		lower := strings.ToLower(strings.TrimSpace(name))
		if lower != "" {
			p.deny[lower] = struct{}{}
		}
	}
	return p, warnings
}

// DefaultPolicy returns a policy with the base allow-list and default limits.
func DefaultPolicy() *Policy {
	p, _ := NewPolicy(Options{})
	return p
}

// IsAllowed reports whether a function identifier may appear in compiled
// output. Matching is case-insensitive.
func (p *Policy) IsAllowed(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return false
	}
	if isHardExcluded(lower) {
		return false
	}
	if _, denied := p.deny[lower]; denied {
		return false
	}
	if _, ok := p.baseAllow[lower]; ok {
		return true
	}
	_, ok := p.extraAllow[lower]
	return ok
}

// MaxNestingDepth returns the conditional nesting limit.
func (p *Policy) MaxNestingDepth() int {
	return p.maxNestingDepth
}

// MaxExpressionLength returns the per-expression length limit.
func (p *Policy) MaxExpressionLength() int {
	return p.maxExpressionLength
}

var (
	stringLiteralPattern = regexp.MustCompile(`'(?:\\.|[^'\\])*'|"(?:\\.|[^"\\])*"`)
	newObjectPattern     = regexp.MustCompile(`(?i)\bnew\s+[a-z_\\]`)
	closurePattern       = regexp.MustCompile(`(?i)\bfunction\b|\bfn\s*\(`)
	superglobalPattern   = regexp.MustCompile(`\$_[A-Za-z]+|\$GLOBALS\b`)
	dynamicCallPattern   = regexp.MustCompile(`\$[A-Za-z_][A-Za-z0-9_]*\s*\(`)
	identifierCall       = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
)

// Validate checks one expression or condition body against the policy. The
// text is scanned with string literal contents blanked out so words inside
// literals cannot trip (or hide from) the identifier check. Every called
// identifier, including names after -> and ::, must pass IsAllowed.
func (p *Policy) Validate(expr string) error {
	if len(expr) > p.maxExpressionLength {
		return &wefterrors.SecurityViolation{
			Code:    wefterrors.ErrExpressionLength,
			Message: fmt.Sprintf("expression length %d exceeds maximum %d", len(expr), p.maxExpressionLength),
		}
	}

	scanned := blankStringLiterals(expr)

	if idx := strings.IndexByte(scanned, '`'); idx >= 0 {
		return blockedConstruct("backtick execution operator", idx)
	}
	if loc := newObjectPattern.FindStringIndex(scanned); loc != nil {
		return blockedConstruct("object construction", loc[0])
	}
	if loc := closurePattern.FindStringIndex(scanned); loc != nil {
		return blockedConstruct("function definition", loc[0])
	}
	if loc := superglobalPattern.FindStringIndex(scanned); loc != nil {
		return blockedConstruct("ambient request/environment state", loc[0])
	}
	if loc := dynamicCallPattern.FindStringIndex(scanned); loc != nil {
		return blockedConstruct("dynamic call through a variable", loc[0])
	}

	for _, match := range identifierCall.FindAllStringSubmatchIndex(scanned, -1) {
		name := scanned[match[2]:match[3]]
		if !p.IsAllowed(name) {
			return &wefterrors.SecurityViolation{
				Code:       wefterrors.ErrDeniedIdentifier,
				Message:    "function is not allowed by the security policy",
				Identifier: name,
				Pos:        match[2],
			}
		}
	}
	return nil
}

func blockedConstruct(what string, pos int) error {
	return &wefterrors.SecurityViolation{
		Code:    wefterrors.ErrBlockedConstruct,
		Message: what + " is not permitted in template expressions",
		Pos:     pos,
	}
}

// blankStringLiterals replaces the contents of quoted literals with spaces,
// preserving byte offsets for violation positions.
func blankStringLiterals(s string) string {
	return stringLiteralPattern.ReplaceAllStringFunc(s, func(lit string) string {
		if len(lit) <= 2 {
			return lit
		}
		return lit[:1] + strings.Repeat(" ", len(lit)-2) + lit[len(lit)-1:]
	})
}
