package security

import (
	"strings"
	"testing"

	wefterrors "github.com/weftware/weft/internal/errors"
)

func TestDefaultPolicyAllowsBaseFunctions(t *testing.T) {
	p := DefaultPolicy()

	for _, name := range []string{"strtoupper", "trim", "count", "implode", "abs", "date", "is_array", "isset"} {
		if !p.IsAllowed(name) {
			t.Errorf("base function %q should be allowed", name)
		}
	}
}

func TestIsAllowedCaseInsensitive(t *testing.T) {
	p := DefaultPolicy()

	if !p.IsAllowed("StrToUpper") {
		t.Error("matching should be case-insensitive")
	}
	if !p.IsAllowed("  trim  ") {
		t.Error("matching should ignore surrounding whitespace")
	}
	if p.IsAllowed("SYSTEM") {
		t.Error("case must not bypass hard exclusion")
	}
}

func TestIsAllowedRejectsUnknown(t *testing.T) {
	p := DefaultPolicy()

	for _, name := range []string{"", "frobnicate", "my_custom_helper"} {
		if p.IsAllowed(name) {
			t.Errorf("%q should not be allowed by default", name)
		}
	}
}

func TestDenyWinsOverAllow(t *testing.T) {
	p, _ := NewPolicy(Options{
		ExtraAllowedFunctions: []string{"custom_fn"},
		DeniedFunctions:       []string{"trim", "custom_fn"},
	})

	if p.IsAllowed("trim") {
		t.Error("deny must override the base allow-list")
	}
	if p.IsAllowed("custom_fn") {
		t.Error("deny must override an extra allow entry")
	}
	if !p.IsAllowed("ltrim") {
		t.Error("unrelated base functions stay allowed")
	}
}

func TestExtraAllowCannotReachHardExcluded(t *testing.T) {
	p, warnings := NewPolicy(Options{
		ExtraAllowedFunctions: []string{"eval", "exec", "curl_exec", "pcntl_fork", "my_helper"},
	})

	for _, name := range []string{"eval", "exec", "curl_exec", "pcntl_fork"} {
		if p.IsAllowed(name) {
			t.Errorf("hard-excluded %q must stay blocked despite extra allow", name)
		}
	}
	if !p.IsAllowed("my_helper") {
		t.Error("ordinary extra allow entry should survive")
	}
	if len(warnings) != 4 {
		t.Errorf("expected 4 warnings for dropped entries, got %d: %v", len(warnings), warnings)
	}
	for _, w := range warnings {
		if !strings.Contains(w, "hard-excluded") {
			t.Errorf("warning should say why the entry was dropped: %q", w)
		}
	}
}

func TestHardExcludedFamilies(t *testing.T) {
	p := DefaultPolicy()

	blocked := []string{
		"eval", "system", "shell_exec", "passthru",
		"fopen", "file_get_contents", "unlink",
		"unserialize", "extract", "getenv",
		"array_map", "usort", "call_user_func",
		"curl_init", "curl_exec", "socket_create", "stream_get_contents",
		"mysqli_query", "pg_connect", "pdo_thing",
		"reflectionclass", "proc_open", "posix_kill",
	}
	for _, name := range blocked {
		if p.IsAllowed(name) {
			t.Errorf("%q should be hard-excluded", name)
		}
	}
}

func TestValidateAllowsSafeExpressions(t *testing.T) {
	p := DefaultPolicy()

	exprs := []string{
		`$x > 0`,
		`strtoupper($name)`,
		`count($items) > 0 && $enabled`,
		`implode(", ", array_keys($m))`,
		`$a . " - " . $b`,
		`round($price * 1.19, 2)`,
		`isset($user) ? $user : "guest"`,
	}
	for _, expr := range exprs {
		if err := p.Validate(expr); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", expr, err)
		}
	}
}

func TestValidateRejectsDeniedIdentifier(t *testing.T) {
	p := DefaultPolicy()

	err := p.Validate(`system("ls")`)
	if err == nil {
		t.Fatal("expected a violation")
	}
	sv, ok := wefterrors.AsSecurityViolation(err)
	if !ok {
		t.Fatalf("expected SecurityViolation, got %T", err)
	}
	if sv.Code != wefterrors.ErrDeniedIdentifier {
		t.Errorf("code = %q, want %q", sv.Code, wefterrors.ErrDeniedIdentifier)
	}
	if sv.Identifier != "system" {
		t.Errorf("identifier = %q, want %q", sv.Identifier, "system")
	}
}

func TestValidateBlockedConstructs(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name string
		expr string
	}{
		{"backtick execution", "`id`"},
		{"object construction", `new DateTime("now")`},
		{"closure keyword", `function () { return 1; }`},
		{"arrow closure", `fn($x) => $x + 1`},
		{"request superglobal", `$_GET["q"]`},
		{"server superglobal", `$_SERVER["HTTP_HOST"]`},
		{"globals array", `$GLOBALS["db"]`},
		{"dynamic call", `$fn($arg)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(tt.expr)
			if err == nil {
				t.Fatalf("expected violation for %q", tt.expr)
			}
			sv, ok := wefterrors.AsSecurityViolation(err)
			if !ok {
				t.Fatalf("expected SecurityViolation, got %T", err)
			}
			if sv.Code != wefterrors.ErrBlockedConstruct {
				t.Errorf("code = %q, want %q", sv.Code, wefterrors.ErrBlockedConstruct)
			}
		})
	}
}

// Words inside string literals must neither trip the scan nor hide from it.
func TestValidateStringLiteralBlanking(t *testing.T) {
	p := DefaultPolicy()

	// "system" only appears inside a literal, never as a call.
	if err := p.Validate(`$label . " system status "`); err != nil {
		t.Errorf("word in literal should not trip the scan: %v", err)
	}

	// The call is outside the literal even though the argument mentions
	// an allowed name.
	if err := p.Validate(`exec("trim")`); err == nil {
		t.Error("call outside a literal must still be caught")
	}

	// A literal containing a quote escape does not desynchronize the scan.
	if err := p.Validate(`strtoupper("he said \"hi\"") . system("x")`); err == nil {
		t.Error("escaped quotes must not hide a later call")
	}
}

func TestValidateExpressionLength(t *testing.T) {
	p, _ := NewPolicy(Options{MaxExpressionLength: 20})

	if err := p.Validate(`$a + $b`); err != nil {
		t.Fatalf("short expression should pass: %v", err)
	}

	err := p.Validate(`$a + $b + $c + $d + $e + $f`)
	if err == nil {
		t.Fatal("expected length violation")
	}
	sv, ok := wefterrors.AsSecurityViolation(err)
	if !ok || sv.Code != wefterrors.ErrExpressionLength {
		t.Errorf("expected expression length violation, got %v", err)
	}
}

func TestNewPolicyDefaults(t *testing.T) {
	p, warnings := NewPolicy(Options{})

	if len(warnings) != 0 {
		t.Errorf("empty options should produce no warnings: %v", warnings)
	}
	if p.MaxNestingDepth() != DefaultMaxNestingDepth {
		t.Errorf("MaxNestingDepth = %d, want %d", p.MaxNestingDepth(), DefaultMaxNestingDepth)
	}
	if p.MaxExpressionLength() != DefaultMaxExpressionLength {
		t.Errorf("MaxExpressionLength = %d, want %d", p.MaxExpressionLength(), DefaultMaxExpressionLength)
	}
}

func TestCategoriesCoverBaseAllowList(t *testing.T) {
	p := DefaultPolicy()

	seen := make(map[string]bool)
	for _, c := range Categories() {
		for _, name := range AllowedByCategory(c) {
			if seen[name] {
				t.Errorf("%q listed in more than one category", name)
			}
			seen[name] = true
			if !p.IsAllowed(name) {
				t.Errorf("listed base function %q should be allowed", name)
			}
			if isHardExcluded(name) {
				t.Errorf("base allow-list entry %q collides with hard exclusion", name)
			}
		}
	}
	if len(seen) == 0 {
		t.Fatal("base allow-list is empty")
	}
}
