package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/weftware/weft/internal/config"
	"github.com/weftware/weft/internal/engine"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the compile cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache tier statistics",
	Long: `Show entry counts and writability for both cache tiers.

Examples:
  weft cache stats                 # Table output
  weft cache stats -f json         # JSON output
  weft cache stats -f yaml         # YAML output`,
	RunE: runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached entry",
	RunE:  runCacheClear,
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate NAME",
	Short: "Remove cached entries for one template name",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheInvalidate,
}

var cacheFormat string

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)

	addFormatFlag(cacheStatsCmd, &cacheFormat)
}

func newCacheEngine() (*engine.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	eng, err := engine.New(cfg, newCLILogger())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	return eng, nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	if err := validateFormat(cacheFormat); err != nil {
		return err
	}
	eng, err := newCacheEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	stats := eng.CacheStats()

	switch strings.ToLower(cacheFormat) {
	case formatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(stats)
	case formatYAML:
		encoder := yaml.NewEncoder(os.Stdout)
		defer encoder.Close()
		return encoder.Encode(stats)
	default:
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintln(w, "TIER\tENTRIES\tDETAIL")
		fmt.Fprintf(w, "memory\t%d\t%d bytes, %d hits, %d misses\n",
			stats.MemoryCount, stats.MemoryBytes, stats.Hits, stats.Misses)
		fmt.Fprintf(w, "durable\t%d\twritable=%t\n", stats.DiskCount, stats.DiskWritable)
		return nil
	}
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	eng, err := newCacheEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	removed := eng.ClearCache()
	fmt.Printf("removed %d cache entr%s\n", removed, pluralY(removed))
	return nil
}

func runCacheInvalidate(cmd *cobra.Command, args []string) error {
	eng, err := newCacheEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	removed := eng.InvalidateCache(args[0])
	fmt.Printf("removed %d cache entr%s for %q\n", removed, pluralY(removed), args[0])
	return nil
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
