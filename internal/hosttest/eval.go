// Package hosttest is test infrastructure: a micro-evaluator of the host's
// string-concatenation dialect, enough to execute compiled fragments against
// variable bindings and a small function map. It lets tests assert rendered
// behavior ("A", "HI") instead of only compiled string shape.
//
// The product itself never executes fragments; only _test.go files import
// this package.
package hosttest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Func is one host function callable from an expression.
type Func func(args ...interface{}) (interface{}, error)

// Env holds the bindings one render sees.
type Env struct {
	// Vars backs $name reads.
	Vars map[string]interface{}
	// TplVars is the key-value context object behind $tplvars.
	TplVars map[string]interface{}
	// Funcs maps callable identifiers.
	Funcs map[string]Func
	// Include resolves $templates->render("name").
	Include func(name string) (string, error)
}

// NewEnv returns an Env with fresh maps and the default function set.
func NewEnv() *Env {
	return &Env{
		Vars:    make(map[string]interface{}),
		TplVars: make(map[string]interface{}),
		Funcs:   DefaultFuncs(),
	}
}

// DefaultFuncs covers the handful of host functions scenario tests use.
func DefaultFuncs() map[string]Func {
	return map[string]Func{
		"strtoupper": stringFunc(strings.ToUpper),
		"strtolower": stringFunc(strings.ToLower),
		"trim":       stringFunc(strings.TrimSpace),
		"strlen": func(args ...interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("strlen expects 1 argument")
			}
			return int64(len(toString(args[0]))), nil
		},
		"ucfirst": stringFunc(func(s string) string {
			if s == "" {
				return s
			}
			return strings.ToUpper(s[:1]) + s[1:]
		}),
	}
}

func stringFunc(fn func(string) string) Func {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		return fn(toString(args[0])), nil
	}
}

// Render evaluates a compiled fragment as the host would: as the body of a
// double-quoted string expression.
func Render(fragment string, env *Env) (string, error) {
	if env == nil {
		env = NewEnv()
	}
	tokens, err := lex(`"` + fragment + `"`)
	if err != nil {
		return "", err
	}
	p := &evalParser{tokens: tokens, env: env}
	value, err := p.parseExpr()
	if err != nil {
		return "", err
	}
	if !p.atEnd() {
		return "", fmt.Errorf("unexpected trailing token %q", p.peek().text)
	}
	return toString(value), nil
}

// --- lexer ---

type tokenKind int

const (
	tokString tokenKind = iota
	tokNumber
	tokVariable
	tokIdent
	tokPunct
	tokEOF
)

type evalToken struct {
	kind tokenKind
	text string
	pos  int
}

var punctuators = []string{
	"==", "!=", ">=", "<=", "&&", "||", "->",
	".", "?", ":", "(", ")", "[", "]", ",", "=", ">", "<", "!", "+", "-", "*", "/", "%",
}

func lex(src string) ([]evalToken, error) {
	var tokens []evalToken
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '"' || c == '\'':
			start := i
			quote := c
			i++
			var b strings.Builder
			for i < len(src) && src[i] != quote {
				if src[i] == '\\' && i+1 < len(src) {
					i++
				}
				b.WriteByte(src[i])
				i++
			}
			if i >= len(src) {
				return nil, fmt.Errorf("unterminated string at offset %d", start)
			}
			i++
			tokens = append(tokens, evalToken{kind: tokString, text: b.String(), pos: start})
		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
				i++
			}
			tokens = append(tokens, evalToken{kind: tokNumber, text: src[start:i], pos: start})
		case c == '$':
			start := i
			i++
			for i < len(src) && isIdentByte(src[i]) {
				i++
			}
			tokens = append(tokens, evalToken{kind: tokVariable, text: src[start+1 : i], pos: start})
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentByte(src[i]) {
				i++
			}
			tokens = append(tokens, evalToken{kind: tokIdent, text: src[start:i], pos: start})
		default:
			matched := false
			for _, p := range punctuators {
				if strings.HasPrefix(src[i:], p) {
					tokens = append(tokens, evalToken{kind: tokPunct, text: p, pos: i})
					i += len(p)
					matched = true
					break
				}
			}
			if !matched {
				return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
			}
		}
	}
	return append(tokens, evalToken{kind: tokEOF, pos: len(src)}), nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// --- parser/evaluator ---

type evalParser struct {
	tokens []evalToken
	pos    int
	env    *Env
}

func (p *evalParser) peek() evalToken { return p.tokens[p.pos] }

func (p *evalParser) atEnd() bool { return p.peek().kind == tokEOF }

func (p *evalParser) next() evalToken {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *evalParser) acceptPunct(text string) bool {
	if tok := p.peek(); tok.kind == tokPunct && tok.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *evalParser) expectPunct(text string) error {
	if !p.acceptPunct(text) {
		return fmt.Errorf("expected %q at offset %d, got %q", text, p.peek().pos, p.peek().text)
	}
	return nil
}

func (p *evalParser) parseExpr() (interface{}, error) {
	return p.parseTernary()
}

func (p *evalParser) parseTernary() (interface{}, error) {
	cond, err := p.parseLogicOr()
	if err != nil {
		return nil, err
	}
	if !p.acceptPunct("?") {
		return cond, nil
	}
	thenVal, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	elseVal, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if truthy(cond) {
		return thenVal, nil
	}
	return elseVal, nil
}

func (p *evalParser) parseLogicOr() (interface{}, error) {
	left, err := p.parseLogicAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptPunct("||") {
		right, err := p.parseLogicAnd()
		if err != nil {
			return nil, err
		}
		left = truthy(left) || truthy(right)
	}
	return left, nil
}

func (p *evalParser) parseLogicAnd() (interface{}, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.acceptPunct("&&") {
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = truthy(left) && truthy(right)
	}
	return left, nil
}

var comparisonOps = map[string]bool{"==": true, "!=": true, ">=": true, "<=": true, ">": true, "<": true}

func (p *evalParser) parseComparison() (interface{}, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokPunct || !comparisonOps[tok.text] {
			return left, nil
		}
		p.next()
		right, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		left = compare(tok.text, left, right)
	}
}

func (p *evalParser) parseConcat() (interface{}, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.acceptPunct(".") {
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = toString(left) + toString(right)
	}
	return left, nil
}

func (p *evalParser) parseAdditive() (interface{}, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.acceptPunct("+"):
			op = "+"
		case p.acceptPunct("-"):
			op = "-"
		default:
			return left, nil
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = arith(op, left, right)
	}
}

func (p *evalParser) parseMultiplicative() (interface{}, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.acceptPunct("*"):
			op = "*"
		case p.acceptPunct("/"):
			op = "/"
		case p.acceptPunct("%"):
			op = "%"
		default:
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = arith(op, left, right)
	}
}

func (p *evalParser) parseUnary() (interface{}, error) {
	if p.acceptPunct("!") {
		v, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	}
	if p.acceptPunct("-") {
		v, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return arith("-", int64(0), v), nil
	}
	return p.parsePrimary()
}

var interpolationPattern = regexp.MustCompile(`\$[A-Za-z_][A-Za-z0-9_]*`)

func (p *evalParser) parsePrimary() (interface{}, error) {
	tok := p.next()
	switch tok.kind {
	case tokString:
		// Host-style interpolation of $name inside double-quoted text.
		return interpolationPattern.ReplaceAllStringFunc(tok.text, func(ref string) string {
			if v, ok := p.env.Vars[ref[1:]]; ok {
				return toString(v)
			}
			return ref
		}), nil

	case tokNumber:
		if strings.Contains(tok.text, ".") {
			f, err := strconv.ParseFloat(tok.text, 64)
			return f, err
		}
		n, err := strconv.ParseInt(tok.text, 10, 64)
		return n, err

	case tokVariable:
		return p.parseVariable(tok.text)

	case tokIdent:
		switch tok.text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		}
		if p.acceptPunct("(") {
			return p.parseCall(tok.text)
		}
		return tok.text, nil

	case tokPunct:
		if tok.text == "(" {
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return v, p.expectPunct(")")
		}
	}
	return nil, fmt.Errorf("unexpected token %q at offset %d", tok.text, tok.pos)
}

func (p *evalParser) parseVariable(name string) (interface{}, error) {
	// Method call: only the include receiver is modeled.
	if p.acceptPunct("->") {
		method := p.next()
		if method.kind != tokIdent {
			return nil, fmt.Errorf("expected method name at offset %d", method.pos)
		}
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if name == "templates" && method.text == "render" {
			if p.env.Include == nil {
				return "", fmt.Errorf("no include resolver configured")
			}
			if len(args) != 1 {
				return nil, fmt.Errorf("render expects 1 argument")
			}
			return p.env.Include(toString(args[0]))
		}
		return nil, fmt.Errorf("unsupported method call $%s->%s", name, method.text)
	}

	// Index into the context object or an array variable.
	if p.acceptPunct("[") {
		key, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("]"); err != nil {
			return nil, err
		}
		target := p.env.TplVars
		if name != "tplvars" {
			m, ok := p.env.Vars[name].(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("$%s is not indexable", name)
			}
			target = m
		}
		// Assignment, as emitted for <setvar>.
		if p.peek().kind == tokPunct && p.peek().text == "=" {
			p.next()
			value, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			target[toString(key)] = value
			return value, nil
		}
		return target[toString(key)], nil
	}

	if name == "tplvars" {
		return p.env.TplVars, nil
	}
	return p.env.Vars[name], nil
}

func (p *evalParser) parseCall(name string) (interface{}, error) {
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	fn, ok := p.env.Funcs[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("undefined function %q", name)
	}
	return fn(args...)
}

// parseArgs consumes arguments up to and including the closing paren.
func (p *evalParser) parseArgs() ([]interface{}, error) {
	var args []interface{}
	if p.acceptPunct(")") {
		return args, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.acceptPunct(")") {
			return args, nil
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
	}
}

// --- value model ---

func toString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "1"
		}
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != "" && x != "0"
	case int64:
		return x != 0
	case int:
		return x != 0
	case float64:
		return x != 0
	default:
		return true
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func compare(op string, left, right interface{}) bool {
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if lok && rok {
		switch op {
		case "==":
			return lf == rf
		case "!=":
			return lf != rf
		case ">":
			return lf > rf
		case "<":
			return lf < rf
		case ">=":
			return lf >= rf
		case "<=":
			return lf <= rf
		}
	}
	ls, rs := toString(left), toString(right)
	switch op {
	case "==":
		return ls == rs
	case "!=":
		return ls != rs
	case ">":
		return ls > rs
	case "<":
		return ls < rs
	case ">=":
		return ls >= rs
	case "<=":
		return ls <= rs
	}
	return false
}

func arith(op string, left, right interface{}) interface{} {
	lf, _ := toFloat(left)
	rf, _ := toFloat(right)
	var out float64
	switch op {
	case "+":
		out = lf + rf
	case "-":
		out = lf - rf
	case "*":
		out = lf * rf
	case "/":
		if rf == 0 {
			return float64(0)
		}
		out = lf / rf
	case "%":
		if int64(rf) == 0 {
			return int64(0)
		}
		return int64(lf) % int64(rf)
	}
	if out == float64(int64(out)) {
		return int64(out)
	}
	return out
}
