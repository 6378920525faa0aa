package errors

import (
	"fmt"
	"sync"
	"time"
)

// TemplateError is one positioned error recorded for a template during a
// batch run.
type TemplateError struct {
	Template  string
	Path      string
	Pos       int
	Code      string
	Message   string
	Timestamp time.Time
}

// Error implements the error interface
func (te *TemplateError) Error() string {
	if te.Path != "" {
		return fmt.Sprintf("%s:%d: %s: %s", te.Path, te.Pos, te.Code, te.Message)
	}
	return fmt.Sprintf("%s:%d: %s: %s", te.Template, te.Pos, te.Code, te.Message)
}

// ErrorCollector collects template errors across a batch run
type ErrorCollector struct {
	templateErrors []TemplateError
	errors         []error
	mutex          sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		templateErrors: make([]TemplateError, 0),
		errors:         make([]error, 0),
	}
}

// Add records a template error with the current timestamp.
func (ec *ErrorCollector) Add(err TemplateError) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	err.Timestamp = time.Now()
	ec.templateErrors = append(ec.templateErrors, err)
}

// AddError records a general error.
func (ec *ErrorCollector) AddError(err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, err)
}

// Record classifies a pipeline error and records it for the named template.
func (ec *ErrorCollector) Record(template, path string, err error) {
	if err == nil {
		return
	}
	if pe, ok := AsParseError(err); ok {
		ec.Add(TemplateError{Template: template, Path: path, Pos: pe.Pos, Code: pe.Code, Message: pe.Message})
		return
	}
	if ce, ok := AsCompileError(err); ok {
		msg := ce.Message
		if sv, ok := AsSecurityViolation(ce); ok {
			msg = sv.Error()
		}
		ec.Add(TemplateError{Template: template, Path: path, Pos: ce.Pos, Code: ce.Code, Message: msg})
		return
	}
	ec.AddError(fmt.Errorf("%s: %w", template, err))
}

// GetErrors returns a copy of all collected template errors.
func (ec *ErrorCollector) GetErrors() []TemplateError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]TemplateError, len(ec.templateErrors))
	copy(result, ec.templateErrors)
	return result
}

// GetErrorsByTemplate returns errors recorded for a specific template.
func (ec *ErrorCollector) GetErrorsByTemplate(template string) []TemplateError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var out []TemplateError
	for _, err := range ec.templateErrors {
		if err.Template == template {
			out = append(out, err)
		}
	}
	return out
}

// GetAllErrors returns all collected errors (template and general).
func (ec *ErrorCollector) GetAllErrors() []error {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	all := make([]error, 0, len(ec.templateErrors)+len(ec.errors))
	for i := range ec.templateErrors {
		all = append(all, &ec.templateErrors[i])
	}
	all = append(all, ec.errors...)
	return all
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.templateErrors) > 0 || len(ec.errors) > 0
}

// Count returns the total number of collected errors.
func (ec *ErrorCollector) Count() int {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.templateErrors) + len(ec.errors)
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.templateErrors = ec.templateErrors[:0]
	ec.errors = ec.errors[:0]
}
