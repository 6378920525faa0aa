package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/weftware/weft/internal/config"
	"github.com/weftware/weft/internal/security"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect the expression security policy",
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the base allow-list by category",
	Long: `Show the base function allow-list grouped by category, the configured
extra allow entries, and the configured deny entries.

Examples:
  weft policy list                 # Table output
  weft policy list -f yaml         # YAML output`,
	RunE: runPolicyList,
}

var policyTestCmd = &cobra.Command{
	Use:   "test NAME",
	Short: "Test whether a function identifier is allowed",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyTest,
}

var policyFormat string

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd)
	policyCmd.AddCommand(policyTestCmd)

	addFormatFlag(policyListCmd, &policyFormat)
}

func loadPolicy() (*security.Policy, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	policy, warnings := security.NewPolicy(security.Options{
		ExtraAllowedFunctions: cfg.Security.ExtraAllowedFunctions,
		DeniedFunctions:       cfg.Security.DeniedFunctions,
		MaxNestingDepth:       cfg.Security.MaxNestingDepth,
		MaxExpressionLength:   cfg.Security.MaxExpressionLength,
	})
	for _, warning := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
	}
	return policy, cfg, nil
}

func runPolicyList(cmd *cobra.Command, args []string) error {
	if err := validateFormat(policyFormat); err != nil {
		return err
	}
	_, cfg, err := loadPolicy()
	if err != nil {
		return err
	}

	categories := make(map[string][]string)
	for _, c := range security.Categories() {
		categories[string(c)] = security.AllowedByCategory(c)
	}
	listing := map[string]interface{}{
		"categories": categories,
		"extra":      cfg.Security.ExtraAllowedFunctions,
		"denied":     cfg.Security.DeniedFunctions,
	}

	switch strings.ToLower(policyFormat) {
	case formatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(listing)
	case formatYAML:
		encoder := yaml.NewEncoder(os.Stdout)
		defer encoder.Close()
		return encoder.Encode(listing)
	default:
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		defer w.Flush()

		title := cases.Title(language.English)
		for _, c := range security.Categories() {
			fmt.Fprintf(w, "%s\t%s\n", title.String(string(c)),
				strings.Join(security.AllowedByCategory(c), ", "))
		}
		if len(cfg.Security.ExtraAllowedFunctions) > 0 {
			fmt.Fprintf(w, "Extra\t%s\n", strings.Join(cfg.Security.ExtraAllowedFunctions, ", "))
		}
		if len(cfg.Security.DeniedFunctions) > 0 {
			fmt.Fprintf(w, "Denied\t%s\n", strings.Join(cfg.Security.DeniedFunctions, ", "))
		}
		return nil
	}
}

func runPolicyTest(cmd *cobra.Command, args []string) error {
	policy, _, err := loadPolicy()
	if err != nil {
		return err
	}

	name := args[0]
	if policy.IsAllowed(name) {
		fmt.Printf("%s: allowed\n", name)
		return nil
	}
	fmt.Printf("%s: denied\n", name)
	return fmt.Errorf("function %q is not allowed by the security policy", name)
}
