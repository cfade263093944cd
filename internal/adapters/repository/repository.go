// Package repository stores built templates for reuse across sessions.
// Templates are immutable, so the store hands out shared references;
// only the registry map itself needs locking.
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ozkurt/formsense/internal/domain/template"
	"github.com/ozkurt/formsense/pkg/logger"
	"github.com/ozkurt/formsense/pkg/metrics"
)

// TemplateStore is a concurrency-safe registry of reference templates
// keyed by exercise id.
type TemplateStore struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
	log       logger.Logger
}

// Option applies a configuration option to the TemplateStore.
type Option func(*TemplateStore)

// WithLogger sets the logger used by the store.
func WithLogger(log logger.Logger) Option {
	return func(s *TemplateStore) {
		if log != nil {
			s.log = log
		}
	}
}

// NewTemplateStore creates an empty template store.
func NewTemplateStore(opts ...Option) *TemplateStore {
	s := &TemplateStore{
		templates: make(map[string]*template.Template),
		log:       logger.Named("templates"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put registers a template under its exercise id, replacing any
// previous version.
func (s *TemplateStore) Put(ctx context.Context, tpl *template.Template) error {
	if tpl == nil {
		return ErrNilTemplate
	}

	s.mu.Lock()
	s.templates[tpl.ExerciseID()] = tpl
	count := len(s.templates)
	s.mu.Unlock()

	metrics.UpdateTemplatesLoaded(count)
	s.log.Info(ctx, "template registered",
		logger.String("exercise_id", tpl.ExerciseID()),
		logger.Int("frames", tpl.Len()),
		logger.Uint64("duration_ms", tpl.DurationMS()),
	)
	return nil
}

// Get returns the template for an exercise id.
func (s *TemplateStore) Get(_ context.Context, exerciseID string) (*template.Template, error) {
	s.mu.RLock()
	tpl, ok := s.templates[exerciseID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, exerciseID)
	}
	return tpl, nil
}

// Delete removes a template. Sessions already holding the reference
// are unaffected.
func (s *TemplateStore) Delete(_ context.Context, exerciseID string) bool {
	s.mu.Lock()
	_, ok := s.templates[exerciseID]
	delete(s.templates, exerciseID)
	count := len(s.templates)
	s.mu.Unlock()

	if ok {
		metrics.UpdateTemplatesLoaded(count)
	}
	return ok
}

// List returns the registered exercise ids in sorted order.
func (s *TemplateStore) List(_ context.Context) []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.templates))
	for id := range s.templates {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len is the number of registered templates.
func (s *TemplateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.templates)
}
