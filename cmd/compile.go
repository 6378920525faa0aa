package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/weftware/weft/internal/config"
	"github.com/weftware/weft/internal/engine"
	wefterrors "github.com/weftware/weft/internal/errors"
)

var compileCmd = &cobra.Command{
	Use:     "compile [path...]",
	Aliases: []string{"c"},
	Short:   "Compile templates in batch",
	Long: `Compile every template file under the given paths (or the configured
template paths) through the enhancement pipeline.

Files that fail to compile fall back to their original content; failures are
reported but do not stop the batch.

Examples:
  weft compile                     # Compile configured template paths
  weft compile ./templates         # Compile one directory
  weft compile --out ./build       # Write compiled output to a directory
  weft compile --force             # Recompile even on cache hits
  weft compile --strict            # Exit non-zero if any file failed`,
	RunE: runCompile,
}

var (
	compileOut    string
	compileForce  bool
	compileStrict bool
)

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringVarP(&compileOut, "out", "o", "", "Directory to write compiled output into")
	compileCmd.Flags().BoolVar(&compileForce, "force", false, "Bypass the cache and recompile everything")
	compileCmd.Flags().BoolVar(&compileStrict, "strict", false, "Exit with an error if any template failed")
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	paths := args
	if len(paths) == 0 {
		paths = cfg.Templates.Paths
	}

	eng, err := engine.New(cfg, newCLILogger())
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer eng.Close()

	if compileForce {
		eng.ClearCache()
	}

	collector := wefterrors.NewErrorCollector()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	compiled, fallbacks := 0, 0
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			collector.AddError(fmt.Errorf("%s: %w", path, err))
			continue
		}

		var results []engine.FileResult
		if info.IsDir() {
			results, err = eng.ProcessDir(ctx, path, collector)
			if err != nil {
				collector.AddError(fmt.Errorf("%s: %w", path, err))
				continue
			}
		} else {
			fr := eng.ProcessFile(ctx, path)
			if fr.Err != nil {
				collector.Record(fr.Name, fr.Path, fr.Err)
			}
			results = []engine.FileResult{fr}
		}

		for _, fr := range results {
			if fr.Err != nil || fr.Result.Fallback {
				fallbacks++
				continue
			}
			compiled++
			if compileOut != "" {
				if err := writeCompiled(compileOut, fr); err != nil {
					collector.AddError(err)
				}
			}
		}
	}

	for _, err := range collector.GetAllErrors() {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	fmt.Printf("compiled %d template(s), %d fallback(s)\n", compiled, fallbacks)

	if compileStrict && collector.HasErrors() {
		return fmt.Errorf("%d template(s) failed to compile", collector.Count())
	}
	return nil
}

func writeCompiled(outDir string, fr engine.FileResult) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	outPath := filepath.Join(outDir, filepath.Base(fr.Path))
	if err := os.WriteFile(outPath, []byte(fr.Result.Output), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	return nil
}
