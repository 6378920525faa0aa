// Package registry tracks known templates and broadcasts compile events to
// subscribers such as the watch loop and the dev server.
package registry

import (
	"sync"
	"time"

	"github.com/weftware/weft/internal/types"
)

// TemplateRegistry manages metadata for all known templates.
type TemplateRegistry struct {
	templates map[string]*types.TemplateInfo
	mutex     sync.RWMutex
	watchers  []chan TemplateEvent
}

// TemplateEvent represents a change in the template registry.
type TemplateEvent struct {
	Type      EventType           `json:"type"`
	Template  *types.TemplateInfo `json:"template"`
	Timestamp time.Time           `json:"timestamp"`
}

// EventType represents the type of template event.
type EventType string

const (
	EventCompiled    EventType = "compiled"
	EventFallback    EventType = "fallback"
	EventInvalidated EventType = "invalidated"
	EventRemoved     EventType = "removed"
)

// NewTemplateRegistry creates a new template registry
func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{
		templates: make(map[string]*types.TemplateInfo),
		watchers:  make([]chan TemplateEvent, 0),
	}
}

// Register adds or updates a template and notifies watchers with the given
// event type.
func (r *TemplateRegistry) Register(info *types.TemplateInfo, eventType EventType) {
	r.mutex.Lock()
	r.templates[info.Name] = info
	watchers := r.watchers
	r.mutex.Unlock()

	notify(watchers, TemplateEvent{Type: eventType, Template: info, Timestamp: time.Now()})
}

// Get retrieves a template by name
func (r *TemplateRegistry) Get(name string) (*types.TemplateInfo, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	info, exists := r.templates[name]
	return info, exists
}

// GetAll returns all registered templates
func (r *TemplateRegistry) GetAll() []*types.TemplateInfo {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	result := make([]*types.TemplateInfo, 0, len(r.templates))
	for _, info := range r.templates {
		result = append(result, info)
	}
	return result
}

// Remove removes a template from the registry
func (r *TemplateRegistry) Remove(name string) {
	r.mutex.Lock()
	info, exists := r.templates[name]
	if !exists {
		r.mutex.Unlock()
		return
	}
	delete(r.templates, name)
	watchers := r.watchers
	r.mutex.Unlock()

	notify(watchers, TemplateEvent{Type: EventRemoved, Template: info, Timestamp: time.Now()})
}

// Watch returns a channel that receives template events
func (r *TemplateRegistry) Watch() <-chan TemplateEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	ch := make(chan TemplateEvent, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *TemplateRegistry) UnWatch(ch <-chan TemplateEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// Count returns the number of registered templates
func (r *TemplateRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.templates)
}

func notify(watchers []chan TemplateEvent, event TemplateEvent) {
	for _, watcher := range watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}
