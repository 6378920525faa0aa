// Package compiler lowers a validated token stream into a fragment of the
// host's string-concatenation dialect. The host evaluates stored template
// text inside an implicit double-quoted string context, so every construct
// compiles to a `".(...)."`-style splice while literal text passes through
// byte-for-byte.
//
// The compiler never executes anything; it only produces output compatible
// with the host's own trusted-fragment evaluation mechanism.
package compiler

import (
	"strings"

	wefterrors "github.com/weftware/weft/internal/errors"
	"github.com/weftware/weft/internal/security"
	"github.com/weftware/weft/internal/types"
)

// ContextVar is the well-known key-value context object assignments from
// <setvar> land in, and from which later expressions in the same render read
// the value back. The host passes a fresh instance into each render.
const ContextVar = "$tplvars"

// IncludeReceiver is the host object that resolves <template> include
// directives at render time.
const IncludeReceiver = "$templates"

// Compiler lowers tokens into compiled output under a security policy.
type Compiler struct {
	policy *security.Policy
}

// New creates a compiler bound to a security policy.
func New(policy *security.Policy) *Compiler {
	if policy == nil {
		policy = security.DefaultPolicy()
	}
	return &Compiler{policy: policy}
}

// blockState tracks one open <if> block during emission.
type blockState struct {
	elseifCount int
	elseSeen    bool
}

// Compile walks the token stream and emits the compiled fragment. Every
// condition, expression, and setvar value is validated against the policy
// before being embedded; every function name must be allowed. Structural
// balance is re-checked so a malformed token stream fails instead of
// emitting a broken fragment.
func (c *Compiler) Compile(tokens []types.Token) (string, error) {
	var out strings.Builder
	var blocks []blockState

	for i := range tokens {
		tok := &tokens[i]
		switch tok.Type {
		case types.TokenText:
			out.WriteString(tok.Raw)

		case types.TokenIfOpen:
			if err := c.policy.Validate(tok.Value); err != nil {
				return "", wrapViolation(err, tok)
			}
			blocks = append(blocks, blockState{})
			out.WriteString(`".((` + tok.Value + `)?"`)

		case types.TokenElseIf:
			if len(blocks) == 0 {
				return "", wefterrors.NewCompileError(wefterrors.ErrUnexpectedElseIf,
					"<else if> without an enclosing <if>", tok)
			}
			block := &blocks[len(blocks)-1]
			if block.elseSeen {
				return "", wefterrors.NewCompileError(wefterrors.ErrElseIfAfterElse,
					"<else if> after <else> in the same block", tok)
			}
			if err := c.policy.Validate(tok.Value); err != nil {
				return "", wrapViolation(err, tok)
			}
			block.elseifCount++
			out.WriteString(`":((` + tok.Value + `)?"`)

		case types.TokenElse:
			if len(blocks) == 0 {
				return "", wefterrors.NewCompileError(wefterrors.ErrUnexpectedElse,
					"<else> without an enclosing <if>", tok)
			}
			block := &blocks[len(blocks)-1]
			if block.elseSeen {
				return "", wefterrors.NewCompileError(wefterrors.ErrDuplicateElse,
					"duplicate <else> in the same block", tok)
			}
			block.elseSeen = true
			out.WriteString(`":"`)

		case types.TokenIfClose:
			if len(blocks) == 0 {
				return "", wefterrors.NewCompileError(wefterrors.ErrUnexpectedClose,
					"</if> without an open <if>", tok)
			}
			block := blocks[len(blocks)-1]
			blocks = blocks[:len(blocks)-1]
			out.WriteString(`"`)
			if !block.elseSeen {
				out.WriteString(`:""`)
			}
			// One close paren per open ternary level in the block.
			out.WriteString(strings.Repeat(")", block.elseifCount+1))
			out.WriteString(`."`)

		case types.TokenFuncOpen:
			if !c.policy.IsAllowed(tok.Value) {
				violation := wefterrors.NewSecurityViolation(wefterrors.ErrDeniedIdentifier,
					"function is not allowed by the security policy", tok.Value)
				return "", wefterrors.WrapSecurityViolation(violation, tok)
			}
			out.WriteString(`".` + strings.ToLower(tok.Value) + `("`)

		case types.TokenFuncClose:
			out.WriteString(`")."`)

		case types.TokenTemplateRef:
			// Include directive resolved by the host at render time,
			// never expanded here.
			out.WriteString(`".` + IncludeReceiver + `->render("` + tok.Value + `")."`)

		case types.TokenExpression:
			if err := c.policy.Validate(tok.Value); err != nil {
				return "", wrapViolation(err, tok)
			}
			out.WriteString(`".(` + tok.Value + `)."`)

		case types.TokenSetVar:
			// The value is embedded in code context, so it is validated
			// exactly like an expression.
			value := strings.TrimSpace(tok.Detail)
			if err := c.policy.Validate(value); err != nil {
				return "", wrapViolation(err, tok)
			}
			out.WriteString(`".((` + ContextVar + `["` + tok.Value + `"] = (` + value + `)) ? "" : "")."`)
		}
	}

	if len(blocks) > 0 {
		return "", wefterrors.NewCompileError(wefterrors.ErrUnclosedIf,
			"unclosed <if> block reached end of compilation", nil)
	}
	return out.String(), nil
}

func wrapViolation(err error, tok *types.Token) error {
	if sv, ok := wefterrors.AsSecurityViolation(err); ok {
		return wefterrors.WrapSecurityViolation(sv, tok)
	}
	return err
}
