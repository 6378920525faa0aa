package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Output formats shared by the reporting commands.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// addFormatFlag registers the standard -f/--format flag and returns the
// flag set for further registration.
func addFormatFlag(cmd *cobra.Command, target *string) *pflag.FlagSet {
	flags := cmd.Flags()
	flags.StringVarP(target, "format", "f", formatTable, "Output format (table|json|yaml)")
	return flags
}

// validateFormat checks a format value against the supported set.
func validateFormat(format string) error {
	switch strings.ToLower(format) {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported format %q (supported: table, json, yaml)", format)
	}
}
