package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/weftware/weft/internal/types"
)

func TestParseErrorMessage(t *testing.T) {
	err := NewParseError(ErrUnclosedIf, "unclosed <if> block", 42, "page")
	msg := err.Error()

	for _, want := range []string{"page", "42", "unclosed <if> block"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}

	anon := NewParseError(ErrUnclosedIf, "unclosed <if> block", 42, "")
	if strings.HasPrefix(anon.Error(), ":") {
		t.Errorf("empty template name should not leave a dangling prefix: %q", anon.Error())
	}
}

func TestSecurityViolationMessage(t *testing.T) {
	v := NewSecurityViolation(ErrDeniedIdentifier, "function is not allowed", "system")
	if !strings.Contains(v.Error(), `"system"`) {
		t.Errorf("message should quote the identifier: %q", v.Error())
	}
}

func TestCompileErrorCarriesToken(t *testing.T) {
	tok := &types.Token{Type: types.TokenIfOpen, Raw: "<if $x then>", Pos: 7}
	err := NewCompileError(ErrUnexpectedClose, "imbalance", tok)

	if err.Pos != 7 {
		t.Errorf("Pos = %d, want the token position", err.Pos)
	}
	if err.Token != tok {
		t.Error("token not carried")
	}
}

func TestWrapSecurityViolationUnwraps(t *testing.T) {
	v := NewSecurityViolation(ErrDeniedIdentifier, "denied", "exec")
	tok := &types.Token{Type: types.TokenExpression, Pos: 3}
	wrapped := WrapSecurityViolation(v, tok)

	if wrapped.Code != ErrDeniedIdentifier {
		t.Errorf("wrapper keeps the violation code, got %q", wrapped.Code)
	}
	if !errors.Is(wrapped, v) {
		t.Error("errors.Is should see the wrapped violation")
	}

	sv, ok := AsSecurityViolation(wrapped)
	if !ok || sv != v {
		t.Error("AsSecurityViolation should find the cause through the wrapper")
	}
	if !IsSecurityViolation(wrapped) {
		t.Error("IsSecurityViolation should report true")
	}

	// Deeper wrapping still resolves.
	deep := fmt.Errorf("outer: %w", wrapped)
	if _, ok := AsCompileError(deep); !ok {
		t.Error("AsCompileError should look through fmt wrapping")
	}
	if !IsSecurityViolation(deep) {
		t.Error("IsSecurityViolation should look through fmt wrapping")
	}
}

func TestAsHelpersRejectUnrelated(t *testing.T) {
	plain := errors.New("boring")

	if _, ok := AsParseError(plain); ok {
		t.Error("plain error is not a ParseError")
	}
	if _, ok := AsCompileError(plain); ok {
		t.Error("plain error is not a CompileError")
	}
	if IsSecurityViolation(plain) {
		t.Error("plain error is not a SecurityViolation")
	}
}
