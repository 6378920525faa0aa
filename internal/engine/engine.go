// Package engine orchestrates the enhancement pipeline: fast syntax check,
// two-tier cache lookup, parse, compile, and cache write, with a single
// fallback boundary.
//
// Process never returns an error. A malformed or disallowed template
// degrades to "no enhancement applied": the caller always gets renderable
// content, worst case the original text unchanged, and diagnostics stay in
// debug logs instead of leaking into output.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/weftware/weft/internal/cache"
	"github.com/weftware/weft/internal/compiler"
	"github.com/weftware/weft/internal/config"
	wefterrors "github.com/weftware/weft/internal/errors"
	"github.com/weftware/weft/internal/logging"
	"github.com/weftware/weft/internal/parser"
	"github.com/weftware/weft/internal/registry"
	"github.com/weftware/weft/internal/security"
	"github.com/weftware/weft/internal/types"
)

// Request is one render's worth of input.
type Request struct {
	// Name identifies the template in cache keys and diagnostics.
	Name string
	// Source is the raw template text from the host's content storage.
	Source string
	// Executable marks content destined for the host's execution
	// mechanism. Non-executable content (an export, say) passes through
	// untouched.
	Executable bool
}

// Result describes what happened to one request.
type Result struct {
	// Output is always renderable: compiled content on success, the
	// original source otherwise.
	Output string
	// Compiled is true when Output differs semantically from Source
	// (enhancement was applied, freshly or from cache).
	Compiled bool
	// CacheHit is true when Output was served from either tier.
	CacheHit bool
	// Tier names the serving cache tier on a hit.
	Tier cache.Tier
	// Fallback is true when a pipeline error forced the original content.
	Fallback bool
	// Hash is the content hash of Source, empty on the fast paths.
	Hash string
}

// Engine wires parser, compiler, policy, and cache behind the runtime state
// machine. A single engine is safe for concurrent use; each Process call is
// synchronous and holds no lock across a render.
type Engine struct {
	cfg      *config.Config
	policy   *security.Policy
	parser   *parser.Parser
	compiler *compiler.Compiler
	cache    *cache.TemplateCache
	registry *registry.TemplateRegistry
	logger   logging.Logger
	enabled  atomic.Bool
}

// New builds an engine from configuration. Policy warnings (rejected
// extra-allow entries) are logged, not fatal. A durable cache tier that
// fails to open degrades to memory-only caching.
func New(cfg *config.Config, logger logging.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NewLogger(logging.DefaultConfig())
	}
	logger = logger.WithComponent("engine")

	policy, warnings := security.NewPolicy(security.Options{
		ExtraAllowedFunctions: cfg.Security.ExtraAllowedFunctions,
		DeniedFunctions:       cfg.Security.DeniedFunctions,
		MaxNestingDepth:       cfg.Security.MaxNestingDepth,
		MaxExpressionLength:   cfg.Security.MaxExpressionLength,
	})
	for _, warning := range warnings {
		logging.LogSecurityEvent(context.Background(), logger, "policy_entry_rejected",
			map[string]interface{}{"detail": warning})
	}

	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	memory := cache.NewMemory(cfg.Cache.MaxMemoryBytes, ttl)

	var store cache.Store
	if cfg.Cache.Enabled {
		var err error
		store, err = openStore(cfg, ttl)
		if err != nil {
			// Caching is an optimization: fall back to memory-only.
			logger.Warn(context.Background(), err, "durable cache unavailable, using memory tier only")
			store = nil
		}
	}

	e := &Engine{
		cfg:      cfg,
		policy:   policy,
		parser:   parser.New(policy),
		compiler: compiler.New(policy),
		cache:    cache.New(memory, store, logger),
		registry: registry.NewTemplateRegistry(),
		logger:   logger,
	}
	e.enabled.Store(cfg.Enabled)
	return e, nil
}

func openStore(cfg *config.Config, ttl time.Duration) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		return cache.NewSQLite(filepath.Join(cfg.Cache.Dir, "weft.db"), ttl)
	default:
		return cache.NewDisk(cfg.Cache.Dir, ttl)
	}
}

// Process runs the per-render state machine. It never returns an error; any
// pipeline failure degrades to the original content.
func (e *Engine) Process(ctx context.Context, req Request) Result {
	if !e.enabled.Load() || !req.Executable {
		return Result{Output: req.Source}
	}
	if !parser.HasSyntax(req.Source) {
		return Result{Output: req.Source}
	}

	hash := cache.Hash(req.Source)
	if content, tier, ok := e.cache.Get(req.Name, hash); ok {
		return Result{Output: content, Compiled: true, CacheHit: true, Tier: tier, Hash: hash}
	}

	output, err := e.compile(req.Source, req.Name)
	if err != nil {
		e.recordFailure(ctx, req, err)
		return Result{Output: req.Source, Fallback: true, Hash: hash}
	}

	e.cache.Set(ctx, req.Name, hash, output)
	e.registry.Register(&types.TemplateInfo{
		Name:       req.Name,
		Hash:       hash,
		Size:       int64(len(req.Source)),
		CompiledAt: time.Now(),
		Status:     types.StatusCompiled,
	}, registry.EventCompiled)

	return Result{Output: output, Compiled: true, Hash: hash}
}

// compile runs parse then compile, converting any internal panic into an
// error so the fallback boundary stays airtight.
func (e *Engine) compile(source, name string) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal failure while compiling %s: %v", name, r)
		}
	}()

	tokens, err := e.parser.Parse(source, name)
	if err != nil {
		return "", err
	}
	return e.compiler.Compile(tokens)
}

// recordFailure emits debug diagnostics for a failed render and records the
// fallback in the registry. This is the only place an error outcome is
// decided.
func (e *Engine) recordFailure(ctx context.Context, req Request, err error) {
	e.registry.Register(&types.TemplateInfo{
		Name:   req.Name,
		Size:   int64(len(req.Source)),
		Status: types.StatusFallback,
		Error:  err.Error(),
	}, registry.EventFallback)

	if !e.cfg.Debug.Enabled {
		return
	}

	renderID := uuid.NewString()
	if sv, ok := wefterrors.AsSecurityViolation(err); ok {
		logging.LogSecurityEvent(ctx, e.logger, "expression_rejected", map[string]interface{}{
			"render_id":  renderID,
			"template":   req.Name,
			"identifier": sv.Identifier,
			"code":       sv.Code,
			"detail":     sv.Message,
		})
		return
	}

	fields := []interface{}{"render_id", renderID, "template", req.Name, "error", err.Error()}
	if pe, ok := wefterrors.AsParseError(err); ok {
		fields = append(fields, "pos", pe.Pos, "code", pe.Code)
	} else if ce, ok := wefterrors.AsCompileError(err); ok {
		fields = append(fields, "pos", ce.Pos, "code", ce.Code)
		if ce.Token != nil {
			fields = append(fields, "construct", ce.Token.Type.String())
		}
	}
	e.logger.Debug(ctx, "enhancement failed, returning original content", fields...)
}

// InvalidateCache removes all cached entries for one template name and
// returns the number of durable entries removed.
func (e *Engine) InvalidateCache(name string) int {
	removed := e.cache.Invalidate(name)
	if info, ok := e.registry.Get(name); ok {
		e.registry.Register(info, registry.EventInvalidated)
	}
	return removed
}

// ClearCache empties both cache tiers and returns the number of entries
// removed.
func (e *Engine) ClearCache() int {
	return e.cache.Clear()
}

// SweepCache removes expired durable cache entries.
func (e *Engine) SweepCache() int {
	return e.cache.SweepExpired()
}

// CacheStats returns a snapshot of both cache tiers.
func (e *Engine) CacheStats() types.CacheStats {
	return e.cache.Stats()
}

// IsEnabled reports whether processing is globally enabled.
func (e *Engine) IsEnabled() bool {
	return e.enabled.Load()
}

// SetEnabled toggles processing globally.
func (e *Engine) SetEnabled(enabled bool) {
	e.enabled.Store(enabled)
}

// Registry exposes the template registry for event subscribers.
func (e *Engine) Registry() *registry.TemplateRegistry {
	return e.registry
}

// Policy exposes the engine's security policy.
func (e *Engine) Policy() *security.Policy {
	return e.policy
}

// Close releases the durable cache tier.
func (e *Engine) Close() error {
	return e.cache.Close()
}
