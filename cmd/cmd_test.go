package cmd

import "testing"

func TestRootCommandRegistration(t *testing.T) {
	want := []string{"cache", "check", "compile", "doctor", "policy", "version", "watch"}
	for _, name := range want {
		found := false
		for _, sub := range rootCmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("rootCmd missing subcommand %q", name)
		}
	}
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"table", false},
		{"json", false},
		{"yaml", false},
		{"JSON", false},
		{"xml", true},
		{"", true},
	}

	for _, tt := range tests {
		err := validateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
	}
}

func TestHasExtension(t *testing.T) {
	exts := []string{".tpl", ".html"}

	tests := []struct {
		path string
		want bool
	}{
		{"page.tpl", true},
		{"page.TPL", true},
		{"dir/page.html", true},
		{"page.txt", false},
		{"page", false},
	}

	for _, tt := range tests {
		if got := hasExtension(tt.path, exts); got != tt.want {
			t.Errorf("hasExtension(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestTemplateNameFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"templates/page.tpl", "page"},
		{"a/b/index.html", "index"},
		{"dots.in.name.tpl", "dots.in.name"},
		{"noext", "noext"},
	}

	for _, tt := range tests {
		if got := templateNameFromPath(tt.path); got != tt.want {
			t.Errorf("templateNameFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestPluralY(t *testing.T) {
	if got := pluralY(1); got != "y" {
		t.Errorf("pluralY(1) = %q", got)
	}
	if got := pluralY(0); got != "ies" {
		t.Errorf("pluralY(0) = %q", got)
	}
	if got := pluralY(3); got != "ies" {
		t.Errorf("pluralY(3) = %q", got)
	}
}
