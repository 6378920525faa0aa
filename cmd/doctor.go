package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/weftware/weft/internal/cache"
	"github.com/weftware/weft/internal/config"
	"github.com/weftware/weft/internal/security"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose configuration and environment problems",
	Long: `Run environment checks: configuration validity, cache directory
writability, cache backend openability, and policy sanity. The report is
printed as YAML so it can be attached to an issue verbatim.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// doctorCheck is one diagnostic result in the report.
type doctorCheck struct {
	Name    string `yaml:"name"`
	Status  string `yaml:"status"`
	Detail  string `yaml:"detail,omitempty"`
	Advice  string `yaml:"advice,omitempty"`
}

type doctorReport struct {
	GeneratedAt time.Time     `yaml:"generated_at"`
	Checks      []doctorCheck `yaml:"checks"`
	Failures    int           `yaml:"failures"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	report := doctorReport{GeneratedAt: time.Now()}

	cfg, err := config.Load()
	if err != nil {
		report.Checks = append(report.Checks, doctorCheck{
			Name:   "configuration",
			Status: "fail",
			Detail: err.Error(),
			Advice: "fix .weft.yml or the WEFT_* environment overrides",
		})
		cfg = config.Default()
	} else {
		report.Checks = append(report.Checks, doctorCheck{Name: "configuration", Status: "ok"})
	}

	report.Checks = append(report.Checks, checkCacheDir(cfg))
	report.Checks = append(report.Checks, checkCacheBackend(cfg))
	report.Checks = append(report.Checks, checkPolicy(cfg))

	for _, check := range report.Checks {
		if check.Status == "fail" {
			report.Failures++
		}
	}

	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	if err := encoder.Encode(report); err != nil {
		return err
	}
	if report.Failures > 0 {
		return fmt.Errorf("doctor found %d problem(s)", report.Failures)
	}
	return nil
}

func checkCacheDir(cfg *config.Config) doctorCheck {
	check := doctorCheck{Name: "cache directory"}
	if !cfg.Cache.Enabled {
		check.Status = "ok"
		check.Detail = "caching disabled"
		return check
	}
	if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
		check.Status = "fail"
		check.Detail = err.Error()
		check.Advice = "make cache.dir creatable or disable caching"
		return check
	}
	probe, err := os.CreateTemp(cfg.Cache.Dir, "weft-doctor-*")
	if err != nil {
		check.Status = "fail"
		check.Detail = err.Error()
		check.Advice = "make cache.dir writable; weft degrades to memory-only caching otherwise"
		return check
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	check.Status = "ok"
	return check
}

func checkCacheBackend(cfg *config.Config) doctorCheck {
	check := doctorCheck{Name: "cache backend"}
	if !cfg.Cache.Enabled {
		check.Status = "ok"
		check.Detail = "caching disabled"
		return check
	}
	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second

	var store cache.Store
	var err error
	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		store, err = cache.NewSQLite(filepath.Join(cfg.Cache.Dir, "weft.db"), ttl)
	default:
		store, err = cache.NewDisk(cfg.Cache.Dir, ttl)
	}
	if err != nil {
		check.Status = "fail"
		check.Detail = err.Error()
		check.Advice = "weft degrades to memory-only caching when the backend cannot open"
		return check
	}
	defer store.Close()

	check.Status = "ok"
	check.Detail = fmt.Sprintf("%s backend, %d entries, writable=%t",
		cfg.Cache.Backend, store.Count(), store.IsWritable())
	return check
}

// checkPolicy reports deny entries that shadow base allow-list functions,
// which is legal (deny wins) but worth surfacing.
func checkPolicy(cfg *config.Config) doctorCheck {
	check := doctorCheck{Name: "security policy"}

	policy, warnings := security.NewPolicy(security.Options{
		ExtraAllowedFunctions: cfg.Security.ExtraAllowedFunctions,
		DeniedFunctions:       cfg.Security.DeniedFunctions,
		MaxNestingDepth:       cfg.Security.MaxNestingDepth,
		MaxExpressionLength:   cfg.Security.MaxExpressionLength,
	})

	var shadowed []string
	for _, c := range security.Categories() {
		for _, name := range security.AllowedByCategory(c) {
			if !policy.IsAllowed(name) {
				shadowed = append(shadowed, name)
			}
		}
	}

	check.Status = "ok"
	if len(warnings) > 0 {
		check.Detail = fmt.Sprintf("%d extra_allowed_functions entr%s rejected as hard-excluded",
			len(warnings), pluralY(len(warnings)))
	}
	if len(shadowed) > 0 {
		if check.Detail != "" {
			check.Detail += "; "
		}
		check.Detail += fmt.Sprintf("denied base functions: %v", shadowed)
	}
	return check
}
