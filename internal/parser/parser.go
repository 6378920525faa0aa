// Package parser tokenizes enhanced template source into a positioned token
// stream and performs the single authoritative structural validation pass
// (balance, else ordering, nesting depth).
//
// Parsing is a pure function: no side effects, and the same input always
// yields the same token list or the same error.
package parser

import (
	"fmt"
	"sort"
	"strings"

	wefterrors "github.com/weftware/weft/internal/errors"
	"github.com/weftware/weft/internal/security"
	"github.com/weftware/weft/internal/types"
)

// Parser turns template source text into tokens. It reads only the nesting
// limit from the policy; identifier validation belongs to the compiler.
type Parser struct {
	policy *security.Policy
}

// New creates a parser bound to a security policy.
func New(policy *security.Policy) *Parser {
	if policy == nil {
		policy = security.DefaultPolicy()
	}
	return &Parser{policy: policy}
}

// HasSyntax reports whether the text contains any construct-opening marker.
// Ordinary templates take this fast path and skip tokenization entirely.
func HasSyntax(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range syntaxMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// rawMatch is one pattern match before merging.
type rawMatch struct {
	start    int
	end      int
	tokType  types.TokenType
	value    string
	detail   string
	priority int
}

// Parse tokenizes text. The returned stream is structurally valid: balanced
// if/func blocks, no stray or duplicate else branches, and conditional
// nesting within the policy limit. templateName is carried into errors only.
func (p *Parser) Parse(text, templateName string) ([]types.Token, error) {
	if text == "" {
		return nil, nil
	}
	if !HasSyntax(text) {
		return []types.Token{{Type: types.TokenText, Raw: text, Pos: 0}}, nil
	}

	matches := collectMatches(text)
	tokens := mergeMatches(text, matches)

	if err := p.validateStructure(tokens, templateName); err != nil {
		return nil, err
	}
	return tokens, nil
}

func collectMatches(text string) []rawMatch {
	var matches []rawMatch
	for prio, c := range constructs {
		for _, loc := range c.pattern.FindAllStringSubmatchIndex(text, -1) {
			m := rawMatch{
				start:    loc[0],
				end:      loc[1],
				tokType:  c.tokType,
				priority: prio,
			}
			if c.captures >= 1 && loc[2] >= 0 {
				m.value = strings.TrimSpace(text[loc[2]:loc[3]])
			}
			if c.captures >= 2 && loc[4] >= 0 {
				m.detail = text[loc[4]:loc[5]]
			}
			matches = append(matches, m)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].start != matches[j].start {
			return matches[i].start < matches[j].start
		}
		return matches[i].priority < matches[j].priority
	})
	return matches
}

// mergeMatches linearizes sorted matches into a token stream, emitting a
// text token for every gap. Matches that begin inside an already consumed
// span (a construct nested in a setvar body, or a lower-priority pattern at
// the same offset) are dropped.
func mergeMatches(text string, matches []rawMatch) []types.Token {
	var tokens []types.Token
	cursor := 0
	for _, m := range matches {
		if m.start < cursor {
			continue
		}
		if m.start > cursor {
			tokens = append(tokens, types.Token{
				Type: types.TokenText,
				Raw:  text[cursor:m.start],
				Pos:  cursor,
			})
		}
		tokens = append(tokens, types.Token{
			Type:   m.tokType,
			Raw:    text[m.start:m.end],
			Pos:    m.start,
			Value:  m.value,
			Detail: m.detail,
		})
		cursor = m.end
	}
	if cursor < len(text) {
		tokens = append(tokens, types.Token{
			Type: types.TokenText,
			Raw:  text[cursor:],
			Pos:  cursor,
		})
	}
	return tokens
}

// frame is one open construct on the validation stack.
type frame struct {
	tokType  types.TokenType
	pos      int
	elseSeen bool
}

// validateStructure is the single stack-based pass that enforces block
// balance, else ordering, and conditional nesting depth.
func (p *Parser) validateStructure(tokens []types.Token, templateName string) error {
	var stack []frame
	ifDepth := 0
	maxDepth := p.policy.MaxNestingDepth()

	topIf := func() *frame {
		if len(stack) == 0 {
			return nil
		}
		top := &stack[len(stack)-1]
		if top.tokType != types.TokenIfOpen {
			return nil
		}
		return top
	}

	for _, tok := range tokens {
		switch tok.Type {
		case types.TokenIfOpen:
			ifDepth++
			if ifDepth > maxDepth {
				return wefterrors.NewParseError(
					wefterrors.ErrNestingDepth,
					fmt.Sprintf("conditional nesting depth %d exceeds maximum %d", ifDepth, maxDepth),
					tok.Pos, templateName)
			}
			stack = append(stack, frame{tokType: types.TokenIfOpen, pos: tok.Pos})

		case types.TokenElseIf:
			top := topIf()
			if top == nil {
				return wefterrors.NewParseError(
					wefterrors.ErrUnexpectedElseIf,
					"unexpected <else if> outside an open <if> block",
					tok.Pos, templateName)
			}
			if top.elseSeen {
				return wefterrors.NewParseError(
					wefterrors.ErrElseIfAfterElse,
					"<else if> after <else> in the same block",
					tok.Pos, templateName)
			}

		case types.TokenElse:
			top := topIf()
			if top == nil {
				return wefterrors.NewParseError(
					wefterrors.ErrUnexpectedElse,
					"unexpected <else> outside an open <if> block",
					tok.Pos, templateName)
			}
			if top.elseSeen {
				return wefterrors.NewParseError(
					wefterrors.ErrDuplicateElse,
					"duplicate <else> in the same block",
					tok.Pos, templateName)
			}
			top.elseSeen = true

		case types.TokenIfClose:
			if topIf() == nil {
				return wefterrors.NewParseError(
					wefterrors.ErrUnexpectedClose,
					"unexpected </if> without an open <if>",
					tok.Pos, templateName)
			}
			stack = stack[:len(stack)-1]
			ifDepth--

		case types.TokenFuncOpen:
			stack = append(stack, frame{tokType: types.TokenFuncOpen, pos: tok.Pos})

		case types.TokenFuncClose:
			if len(stack) == 0 || stack[len(stack)-1].tokType != types.TokenFuncOpen {
				return wefterrors.NewParseError(
					wefterrors.ErrUnexpectedClose,
					"unexpected </func> without an open <func>",
					tok.Pos, templateName)
			}
			stack = stack[:len(stack)-1]
		}
	}

	if len(stack) > 0 {
		// Report the innermost still-open block at its opening position.
		open := stack[len(stack)-1]
		if open.tokType == types.TokenFuncOpen {
			return wefterrors.NewParseError(
				wefterrors.ErrUnclosedFunc,
				"unclosed <func> block",
				open.pos, templateName)
		}
		return wefterrors.NewParseError(
			wefterrors.ErrUnclosedIf,
			"unclosed <if> block",
			open.pos, templateName)
	}
	return nil
}
