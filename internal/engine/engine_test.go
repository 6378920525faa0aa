package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftware/weft/internal/cache"
	"github.com/weftware/weft/internal/config"
	"github.com/weftware/weft/internal/hosttest"
	"github.com/weftware/weft/internal/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Cache.Dir = filepath.Join(t.TempDir(), "cache")
	return cfg
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestProcessPlainTextPassthrough(t *testing.T) {
	e := newTestEngine(t)

	source := "<p>just markup, no constructs</p>"
	result := e.Process(context.Background(), Request{Name: "page", Source: source, Executable: true})

	assert.Equal(t, source, result.Output)
	assert.False(t, result.Compiled)
	assert.False(t, result.Fallback)
	assert.Empty(t, result.Hash, "fast path skips hashing")
}

func TestProcessNonExecutablePassthrough(t *testing.T) {
	e := newTestEngine(t)

	source := `<if $x then>A</if>`
	result := e.Process(context.Background(), Request{Name: "export", Source: source, Executable: false})

	assert.Equal(t, source, result.Output, "non-executable content is never enhanced")
	assert.False(t, result.Compiled)
}

func TestProcessDisabledPassthrough(t *testing.T) {
	e := newTestEngine(t)
	e.SetEnabled(false)

	source := `<if $x then>A</if>`
	result := e.Process(context.Background(), Request{Name: "page", Source: source, Executable: true})

	assert.Equal(t, source, result.Output)
	assert.False(t, result.Compiled)

	e.SetEnabled(true)
	result = e.Process(context.Background(), Request{Name: "page", Source: source, Executable: true})
	assert.True(t, result.Compiled)
}

func TestProcessCompilesConditional(t *testing.T) {
	e := newTestEngine(t)

	result := e.Process(context.Background(), Request{
		Name:       "greeting",
		Source:     `<if $x > 0 then>A<else>B</if>`,
		Executable: true,
	})

	require.True(t, result.Compiled)
	assert.False(t, result.Fallback)
	assert.Equal(t, `".(($x > 0)?"A":"B")."`, result.Output)
	assert.Equal(t, cache.Hash(`<if $x > 0 then>A<else>B</if>`), result.Hash)

	// The compiled output renders the way the host would render it.
	env := hosttest.NewEnv()
	env.Vars["x"] = int64(5)
	rendered, err := hosttest.Render(result.Output, env)
	require.NoError(t, err)
	assert.Equal(t, "A", rendered)

	env.Vars["x"] = int64(-1)
	rendered, err = hosttest.Render(result.Output, env)
	require.NoError(t, err)
	assert.Equal(t, "B", rendered)
}

func TestProcessFuncBlockRendersUppercase(t *testing.T) {
	e := newTestEngine(t)

	result := e.Process(context.Background(), Request{
		Name:       "shout",
		Source:     `<func strtoupper>hi</func>`,
		Executable: true,
	})

	require.True(t, result.Compiled)
	rendered, err := hosttest.Render(result.Output, hosttest.NewEnv())
	require.NoError(t, err)
	assert.Equal(t, "HI", rendered)
}

func TestProcessFallbackOnParseError(t *testing.T) {
	e := newTestEngine(t)

	source := `<if $x then>never closed`
	result := e.Process(context.Background(), Request{Name: "broken", Source: source, Executable: true})

	assert.Equal(t, source, result.Output, "fallback returns the original content")
	assert.True(t, result.Fallback)
	assert.False(t, result.Compiled)

	info, ok := e.Registry().Get("broken")
	require.True(t, ok)
	assert.Equal(t, types.StatusFallback, info.Status)
	assert.NotEmpty(t, info.Error)
}

func TestProcessFallbackOnSecurityViolation(t *testing.T) {
	e := newTestEngine(t)

	source := `{= system("ls") }`
	result := e.Process(context.Background(), Request{Name: "hostile", Source: source, Executable: true})

	assert.Equal(t, source, result.Output)
	assert.True(t, result.Fallback)
}

func TestProcessMissThenHit(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	req := Request{Name: "page", Source: `{= $v }`, Executable: true}

	first := e.Process(ctx, req)
	require.True(t, first.Compiled)
	assert.False(t, first.CacheHit, "first render compiles fresh")

	second := e.Process(ctx, req)
	require.True(t, second.Compiled)
	assert.True(t, second.CacheHit, "second render is served from cache")
	assert.Equal(t, cache.TierMemory, second.Tier)
	assert.Equal(t, first.Output, second.Output)
}

func TestProcessContentChangeMissesCache(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first := e.Process(ctx, Request{Name: "page", Source: `{= $a }`, Executable: true})
	second := e.Process(ctx, Request{Name: "page", Source: `{= $b }`, Executable: true})

	assert.False(t, second.CacheHit, "changed content gets a new hash and recompiles")
	assert.NotEqual(t, first.Hash, second.Hash)
	assert.NotEqual(t, first.Output, second.Output)
}

func TestProcessSurvivesEngineRestart(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	req := Request{Name: "page", Source: `{= $v }`, Executable: true}

	e, err := New(cfg, nil)
	require.NoError(t, err)
	first := e.Process(ctx, req)
	require.True(t, first.Compiled)
	require.NoError(t, e.Close())

	// A fresh engine over the same cache directory hits the durable tier.
	e, err = New(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	second := e.Process(ctx, req)
	require.True(t, second.CacheHit)
	assert.Equal(t, cache.TierStore, second.Tier)
	assert.Equal(t, first.Output, second.Output)
}

func TestInvalidateCache(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	req := Request{Name: "page", Source: `{= $v }`, Executable: true}

	e.Process(ctx, req)
	removed := e.InvalidateCache("page")
	assert.Equal(t, 1, removed)

	result := e.Process(ctx, req)
	assert.False(t, result.CacheHit, "invalidated template recompiles")
}

func TestClearCache(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	e.Process(ctx, Request{Name: "a", Source: `{= $x }`, Executable: true})
	e.Process(ctx, Request{Name: "b", Source: `{= $y }`, Executable: true})

	removed := e.ClearCache()
	assert.Equal(t, 4, removed, "both tiers drop both templates")

	stats := e.CacheStats()
	assert.Equal(t, 0, stats.MemoryCount)
	assert.Equal(t, 0, stats.DiskCount)
}

func TestEngineDegradesWhenStoreUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Backend = config.BackendSQLite
	// Point the sqlite file at a path that cannot be created.
	cfg.Cache.Dir = filepath.Join(t.TempDir(), "not-a-dir", "nested")

	e, err := New(cfg, nil)
	require.NoError(t, err, "store failure degrades, never aborts")
	defer e.Close()

	result := e.Process(context.Background(), Request{Name: "page", Source: `{= $v }`, Executable: true})
	assert.True(t, result.Compiled, "memory-only engine still compiles")
	assert.False(t, e.CacheStats().DiskWritable)
}

func TestEngineSetVarScenario(t *testing.T) {
	e := newTestEngine(t)

	result := e.Process(context.Background(), Request{
		Name:       "vars",
		Source:     `<setvar greeting>"hello"</setvar>{= $tplvars["greeting"] } world`,
		Executable: true,
	})
	require.True(t, result.Compiled)

	rendered, err := hosttest.Render(result.Output, hosttest.NewEnv())
	require.NoError(t, err)
	assert.Equal(t, "hello world", rendered)
}

func TestEngineIncludeScenario(t *testing.T) {
	e := newTestEngine(t)

	result := e.Process(context.Background(), Request{
		Name:       "page",
		Source:     `<template header>body`,
		Executable: true,
	})
	require.True(t, result.Compiled)

	env := hosttest.NewEnv()
	env.Include = func(name string) (string, error) { return "[" + name + "]", nil }
	rendered, err := hosttest.Render(result.Output, env)
	require.NoError(t, err)
	assert.Equal(t, "[header]body", rendered)
}

func TestEnginePolicyConfiguration(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.DeniedFunctions = []string{"trim"}
	cfg.Security.ExtraAllowedFunctions = []string{"my_helper", "eval"}

	e, err := New(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	assert.False(t, e.Policy().IsAllowed("trim"))
	assert.True(t, e.Policy().IsAllowed("my_helper"))
	assert.False(t, e.Policy().IsAllowed("eval"), "hard-excluded despite extra allow")
}
