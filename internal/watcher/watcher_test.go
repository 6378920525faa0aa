package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestExtensionFilter(t *testing.T) {
	filter := ExtensionFilter([]string{".tpl", ".Html"})

	tests := []struct {
		path string
		want bool
	}{
		{"templates/page.tpl", true},
		{"templates/page.TPL", true},
		{"index.html", true},
		{"notes.txt", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := filter(tt.path); got != tt.want {
			t.Errorf("filter(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestNoHiddenFilter(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"templates/page.tpl", true},
		{".git/config", false},
		{"a/.cache/x.tpl", false},
		{"./relative/page.tpl", true},
		{"../up/page.tpl", true},
	}
	for _, tt := range tests {
		if got := NoHiddenFilter(tt.path); got != tt.want {
			t.Errorf("NoHiddenFilter(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.eventType.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestDebouncerGroupsBurst(t *testing.T) {
	d := &Debouncer{
		delay:  30 * time.Millisecond,
		events: make(chan ChangeEvent, 100),
		output: make(chan []ChangeEvent, 10),
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.start(ctx)

	// A burst of writes to two files.
	for i := 0; i < 5; i++ {
		d.events <- ChangeEvent{Type: EventTypeModified, Path: "a.tpl"}
	}
	d.events <- ChangeEvent{Type: EventTypeModified, Path: "b.tpl"}

	select {
	case events := <-d.output:
		if len(events) != 2 {
			t.Errorf("expected 2 deduplicated events, got %d: %v", len(events), events)
		}
	case <-time.After(time.Second):
		t.Fatal("debouncer never flushed")
	}

	// Nothing further pending.
	select {
	case events := <-d.output:
		t.Errorf("unexpected second flush: %v", events)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncerKeepsLatestEventPerPath(t *testing.T) {
	d := &Debouncer{
		delay:  20 * time.Millisecond,
		events: make(chan ChangeEvent, 100),
		output: make(chan []ChangeEvent, 10),
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.start(ctx)

	d.events <- ChangeEvent{Type: EventTypeCreated, Path: "a.tpl"}
	d.events <- ChangeEvent{Type: EventTypeDeleted, Path: "a.tpl"}

	select {
	case events := <-d.output:
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		if events[0].Type != EventTypeDeleted {
			t.Errorf("expected the latest event to win, got %v", events[0].Type)
		}
	case <-time.After(time.Second):
		t.Fatal("debouncer never flushed")
	}
}

func TestWatcherDeliversFileChange(t *testing.T) {
	dir := t.TempDir()

	tw, err := New(30*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tw.Stop()

	tw.AddFilter(ExtensionFilter([]string{".tpl"}))
	tw.AddFilter(NoHiddenFilter)

	var mu sync.Mutex
	var received []ChangeEvent
	tw.AddHandler(func(events []ChangeEvent) error {
		mu.Lock()
		received = append(received, events...)
		mu.Unlock()
		return nil
	})

	if err := tw.AddRecursive(dir); err != nil {
		t.Fatalf("AddRecursive: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tw.Start(ctx)
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "page.tpl"), []byte("{= $x }"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	// The filtered extension must never come through.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(received)
		var sawTpl, sawTxt bool
		for _, ev := range received {
			switch filepath.Base(ev.Path) {
			case "page.tpl":
				sawTpl = true
			case "notes.txt":
				sawTxt = true
			}
		}
		mu.Unlock()

		if sawTxt {
			t.Fatal("filtered file leaked through")
		}
		if sawTpl {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("no event for page.tpl after %d events", n)
		case <-time.After(20 * time.Millisecond):
		}
	}
}
