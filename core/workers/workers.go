// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package workers provides process wide pools of goroutines, one per
// category of work, each bounded to its own concurrency.
package workers

import (
	"context"
	"runtime"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
)

// Category classifies work so that unrelated kinds of work
// do not compete for the same slots.
type Category int

// Work categories.
const (
	Rendering Category = iota
	Compute
	IO
	General
)

// Categories lists every category.
var Categories = []Category{Rendering, Compute, IO, General}

func (c Category) String() string {
	switch c {
	case Rendering:
		return "rendering"
	case Compute:
		return "compute"
	case IO:
		return "io"
	case General:
		return "general"
	}
	return "unknown"
}

// ParseCategory is the inverse of Category.String, ignoring case.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(c.String(), s) {
			return c, nil
		}
	}
	return 0, errors.Newf("workers: unknown category %q", s)
}

// ErrClosed is returned for work submitted after Shutdown.
var ErrClosed = errors.New("workers: manager closed")

// Configuration sets the concurrency of each category.
// Missing or non-positive entries fall back to the defaults.
type Configuration struct {
	Concurrency map[Category]int
}

// DefaultConfiguration sizes compute and general work to the
// number of CPUs, rendering to 2 and IO to 4.
func DefaultConfiguration() Configuration {
	return Configuration{
		Concurrency: map[Category]int{
			Rendering: 2,
			Compute:   runtime.NumCPU(),
			IO:        4,
			General:   runtime.NumCPU(),
		},
	}
}

func (c Configuration) concurrency(category Category) int {
	if n := c.Concurrency[category]; n > 0 {
		return n
	}
	if n := DefaultConfiguration().Concurrency[category]; n > 0 {
		return n
	}
	return 1
}

var (
	defaultOnce    sync.Once
	defaultManager *Manager
)

// Default returns the process wide manager, built on first use
// with the default configuration.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultManager = NewManager(DefaultConfiguration())
	})
	return defaultManager
}

// Manager owns one lazily created Pool per category.
type Manager struct {
	config Configuration
	logger *log.Entry

	mu      sync.Mutex
	pools   map[Category]*Pool
	closed  bool
	running sync.WaitGroup
}

// NewManager returns a manager with no pools created yet.
func NewManager(cfg Configuration) *Manager {
	return &Manager{
		config: cfg,
		logger: log.WithField("component", "workers"),
		pools:  make(map[Category]*Pool),
	}
}

// Pool returns the pool of a category, creating it on first use.
func (m *Manager) Pool(category Category) (*Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if p, ok := m.pools[category]; ok {
		return p, nil
	}
	p := newPool(m, category, m.config.concurrency(category))
	m.pools[category] = p
	m.logger.WithFields(log.Fields{
		"category":    category,
		"concurrency": p.Concurrency(),
	}).Debug("worker pool created")
	return p, nil
}

// Submit runs fn on the pool of category.
func (m *Manager) Submit(ctx context.Context, category Category, fn func(context.Context) error) (*Task, error) {
	p, err := m.Pool(category)
	if err != nil {
		return nil, err
	}
	return p.Submit(ctx, fn)
}

// Shutdown rejects further work with ErrClosed and waits until the
// running tasks finish or ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Debug("workers shut down")
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "workers: shutdown")
	}
}

// begin registers a task about to start, failing once closed.
func (m *Manager) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.running.Add(1)
	return nil
}
