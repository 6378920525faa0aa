package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftware/weft/internal/compiler"
	"github.com/weftware/weft/internal/config"
	wefterrors "github.com/weftware/weft/internal/errors"
	"github.com/weftware/weft/internal/lint"
	"github.com/weftware/weft/internal/parser"
	"github.com/weftware/weft/internal/security"
)

var checkCmd = &cobra.Command{
	Use:   "check [path...]",
	Short: "Report syntax and policy findings without compiling to cache",
	Long: `Parse and validate every template file under the given paths (or the
configured template paths), reporting structural errors and security policy
violations with their positions. Nothing is written to the cache.

Examples:
  weft check ./templates           # Structural + policy report
  weft check --lint ./templates    # Also flag expressions in script contexts`,
	RunE: runCheck,
}

var checkLint bool

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkLint, "lint", false, "Also lint for expressions in script-code contexts")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	paths := args
	if len(paths) == 0 {
		paths = cfg.Templates.Paths
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

	p := parser.New(policy)
	c := compiler.New(policy)
	collector := wefterrors.NewErrorCollector()
	lintFindings := 0
	checked := 0

	for _, root := range paths {
		err := filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if info.IsDir() || !hasExtension(path, cfg.Templates.Extensions) {
				return nil
			}
			source, err := os.ReadFile(path)
			if err != nil {
				collector.AddError(fmt.Errorf("%s: %w", path, err))
				return nil
			}
			checked++
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

			tokens, err := p.Parse(string(source), name)
			if err != nil {
				collector.Record(name, path, err)
				return nil
			}
			if _, err := c.Compile(tokens); err != nil {
				collector.Record(name, path, err)
			}

			if checkLint {
				for _, finding := range lint.Check(string(source)) {
					lintFindings++
					fmt.Fprintf(os.Stderr, "%s:%d: lint: %s\n", path, finding.Pos, finding.Message)
				}
			}
			return nil
		})
		if err != nil {
			collector.AddError(fmt.Errorf("%s: %w", root, err))
		}
	}

	for _, err := range collector.GetAllErrors() {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}

	total := collector.Count() + lintFindings
	fmt.Printf("checked %d template(s), %d finding(s)\n", checked, total)
	if total > 0 {
		return fmt.Errorf("check found %d problem(s)", total)
	}
	return nil
}

func hasExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
