package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	wefterrors "github.com/weftware/weft/internal/errors"
)

// batchWorkers bounds concurrent file compilation in ProcessDir.
const batchWorkers = 8

// FileResult is the outcome of processing one template file.
type FileResult struct {
	Path   string
	Name   string
	Result Result
	Err    error
}

// ProcessFile reads one template file and runs it through the pipeline.
// Unlike Process, the parse/compile error is surfaced alongside the fallback
// result so batch tooling can report it; render-time callers should use
// Process directly.
func (e *Engine) ProcessFile(ctx context.Context, path string) FileResult {
	name := templateName(path)
	source, err := os.ReadFile(path)
	if err != nil {
		return FileResult{Path: path, Name: name, Err: err}
	}

	req := Request{Name: name, Source: string(source), Executable: true}
	result := e.Process(ctx, req)

	fr := FileResult{Path: path, Name: name, Result: result}
	if result.Fallback {
		// Re-derive the error for reporting; Process already logged it.
		if _, err := e.compile(req.Source, req.Name); err != nil {
			fr.Err = err
		}
	}
	return fr
}

// ProcessDir walks root for template files matching the configured
// extensions and compiles them over a bounded worker pool, feeding failures
// into the collector. Per-render semantics are unchanged: each file is one
// synchronous Process call.
func (e *Engine) ProcessDir(ctx context.Context, root string, collector *wefterrors.ErrorCollector) ([]FileResult, error) {
	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if e.matchesExtension(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	results := make([]FileResult, len(paths))
	sem := make(chan struct{}, batchWorkers)
	var wg sync.WaitGroup

	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fr := e.ProcessFile(ctx, path)
			if fr.Err != nil && collector != nil {
				collector.Record(fr.Name, fr.Path, fr.Err)
			}
			results[i] = fr
		}(i, path)
	}
	wg.Wait()

	return results, nil
}

func (e *Engine) matchesExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range e.cfg.Templates.Extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// templateName derives the registry/cache name from a file path: the base
// name without extension.
func templateName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
