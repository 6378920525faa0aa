// Package types defines the shared value objects of the enhancement
// pipeline: lexical tokens, template metadata, and cache statistics.
package types

// TokenType identifies one kind of lexical unit produced by the parser.
type TokenType int

const (
	TokenText TokenType = iota
	TokenIfOpen
	TokenElseIf
	TokenElse
	TokenIfClose
	TokenFuncOpen
	TokenFuncClose
	TokenTemplateRef
	TokenExpression
	TokenSetVar
)

// String returns the string representation of the token type
func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "text"
	case TokenIfOpen:
		return "if-open"
	case TokenElseIf:
		return "elseif"
	case TokenElse:
		return "else"
	case TokenIfClose:
		return "if-close"
	case TokenFuncOpen:
		return "func-open"
	case TokenFuncClose:
		return "func-close"
	case TokenTemplateRef:
		return "template-ref"
	case TokenExpression:
		return "expression"
	case TokenSetVar:
		return "setvar"
	default:
		return "unknown"
	}
}

// Token is one immutable lexical unit of a template.
//
// Raw is the exact substring matched in the source, so concatenating Raw
// across a token stream reproduces the input byte-for-byte. Value carries the
// first capture of the construct (condition, function name, template name,
// expression body, variable name) and Detail the second (setvar value).
type Token struct {
	Type   TokenType
	Raw    string
	Pos    int
	Value  string
	Detail string
}

// IsConstruct reports whether the token is an enhancement construct
// rather than plain text.
func (t Token) IsConstruct() bool {
	return t.Type != TokenText
}
