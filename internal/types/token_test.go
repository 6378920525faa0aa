package types

import "testing"

func TestTokenTypeString(t *testing.T) {
	tests := []struct {
		tokType TokenType
		want    string
	}{
		{TokenText, "text"},
		{TokenIfOpen, "if-open"},
		{TokenElseIf, "elseif"},
		{TokenElse, "else"},
		{TokenIfClose, "if-close"},
		{TokenFuncOpen, "func-open"},
		{TokenFuncClose, "func-close"},
		{TokenTemplateRef, "template-ref"},
		{TokenExpression, "expression"},
		{TokenSetVar, "setvar"},
		{TokenType(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.tokType.String(); got != tt.want {
			t.Errorf("TokenType(%d).String() = %q, want %q", tt.tokType, got, tt.want)
		}
	}
}

func TestTokenIsConstruct(t *testing.T) {
	if (Token{Type: TokenText}).IsConstruct() {
		t.Error("text token is not a construct")
	}
	for _, tokType := range []TokenType{TokenIfOpen, TokenExpression, TokenSetVar, TokenTemplateRef} {
		if !(Token{Type: tokType}).IsConstruct() {
			t.Errorf("%v should be a construct", tokType)
		}
	}
}
