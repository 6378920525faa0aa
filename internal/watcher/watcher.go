// Package watcher provides debounced filesystem watching for template
// files, driving cache invalidation and recompilation in watch mode.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/weftware/weft/internal/logging"
)

// TemplateWatcher watches for template file changes with debouncing so a
// burst of editor writes becomes one recompile.
type TemplateWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	handlers  []ChangeHandler
	logger    logging.Logger
	mutex     sync.RWMutex
}

// ChangeEvent represents one file change.
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter determines if a file should be watched
type FileFilter func(path string) bool

// ChangeHandler handles debounced file change events
type ChangeHandler func(events []ChangeEvent) error

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
}

// New creates a template watcher with the given debounce delay.
func New(debounceDelay time.Duration, logger logging.Logger) (*TemplateWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewLogger(logging.DefaultConfig())
	}

	return &TemplateWatcher{
		watcher: watcher,
		debouncer: &Debouncer{
			delay:   debounceDelay,
			events:  make(chan ChangeEvent, 100),
			output:  make(chan []ChangeEvent, 10),
			pending: make([]ChangeEvent, 0),
		},
		filters:  make([]FileFilter, 0),
		handlers: make([]ChangeHandler, 0),
		logger:   logger.WithComponent("watcher"),
	}, nil
}

// AddFilter adds a file filter
func (tw *TemplateWatcher) AddFilter(filter FileFilter) {
	tw.mutex.Lock()
	defer tw.mutex.Unlock()
	tw.filters = append(tw.filters, filter)
}

// AddHandler adds a change handler
func (tw *TemplateWatcher) AddHandler(handler ChangeHandler) {
	tw.mutex.Lock()
	defer tw.mutex.Unlock()
	tw.handlers = append(tw.handlers, handler)
}

// AddRecursive adds a directory and all subdirectories to watch
func (tw *TemplateWatcher) AddRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return tw.watcher.Add(path)
		}
		return nil
	})
}

// Start starts the watch, debounce, and dispatch loops.
func (tw *TemplateWatcher) Start(ctx context.Context) {
	go tw.debouncer.start(ctx)
	go tw.dispatchLoop(ctx)
	go tw.watchLoop(ctx)
}

// Stop stops the watcher and cleans up resources.
func (tw *TemplateWatcher) Stop() error {
	if tw.debouncer.timer != nil {
		tw.debouncer.timer.Stop()
	}
	return tw.watcher.Close()
}

func (tw *TemplateWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-tw.watcher.Events:
			tw.handleFsnotifyEvent(event)
		case err := <-tw.watcher.Errors:
			tw.logger.Warn(ctx, err, "file watcher error")
		}
	}
}

func (tw *TemplateWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	tw.mutex.RLock()
	filters := tw.filters
	tw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(event.Name) {
			return
		}
	}

	var modTime time.Time
	var size int64
	if info, err := os.Stat(event.Name); err == nil {
		modTime = info.ModTime()
		size = info.Size()
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventTypeCreated
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventTypeModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventTypeDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventTypeRenamed
	default:
		eventType = EventTypeModified
	}

	select {
	case tw.debouncer.events <- ChangeEvent{Type: eventType, Path: event.Name, ModTime: modTime, Size: size}:
	default:
		// Channel full, skip this event
	}
}

func (tw *TemplateWatcher) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-tw.debouncer.output:
			tw.mutex.RLock()
			handlers := tw.handlers
			tw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(events); err != nil {
					tw.logger.Warn(ctx, err, "change handler error")
				}
			}
		}
	}
}

// Debouncer implementation
func (d *Debouncer) start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			d.addEvent(event)
		}
	}
}

func (d *Debouncer) addEvent(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = append(d.pending, event)

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	// Deduplicate events by path, keeping the latest
	eventMap := make(map[string]ChangeEvent)
	for _, event := range d.pending {
		eventMap[event.Path] = event
	}
	events := make([]ChangeEvent, 0, len(eventMap))
	for _, event := range eventMap {
		events = append(events, event)
	}

	select {
	case d.output <- events:
	default:
		// Channel full, skip
	}

	d.pending = d.pending[:0]
}

// ExtensionFilter accepts files whose extension is in the configured list.
func ExtensionFilter(extensions []string) FileFilter {
	return func(path string) bool {
		ext := strings.ToLower(filepath.Ext(path))
		for _, allowed := range extensions {
			if ext == strings.ToLower(allowed) {
				return true
			}
		}
		return false
	}
}

// NoHiddenFilter rejects dotfiles and dot-directories.
func NoHiddenFilter(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return false
		}
	}
	return true
}
