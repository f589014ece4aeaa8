// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package workers

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool runs tasks of one category, at most Concurrency at a time.
type Pool struct {
	manager  *Manager
	category Category
	limit    int
	slots    *semaphore.Weighted
}

func newPool(m *Manager, category Category, limit int) *Pool {
	return &Pool{
		manager:  m,
		category: category,
		limit:    limit,
		slots:    semaphore.NewWeighted(int64(limit)),
	}
}

// Category of work run by the pool.
func (p *Pool) Category() Category {
	return p.category
}

// Concurrency is the maximum number of tasks running at once.
func (p *Pool) Concurrency() int {
	return p.limit
}

// Submit waits for a free slot, then runs fn in its own goroutine.
// Waiting is abandoned when ctx is done. A panic in fn is
// reported as the task error.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context) error) (*Task, error) {
	if err := p.manager.begin(); err != nil {
		return nil, err
	}
	if err := p.slots.Acquire(ctx, 1); err != nil {
		p.manager.running.Done()
		return nil, errors.Wrapf(err, "workers: waiting for a %s slot", p.category)
	}

	t := &Task{
		ID:       uuid.New(),
		Category: p.category,
		done:     make(chan struct{}),
	}
	logger := p.manager.logger.WithFields(log.Fields{
		"task":     t.ID,
		"category": p.category,
	})

	go func() {
		defer p.manager.running.Done()
		defer p.slots.Release(1)
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = errors.Newf("workers: task panicked: %v", r)
				logger.WithError(t.err).Error("task failed")
			}
		}()

		logger.Trace("task started")
		t.err = fn(ctx)
		if t.err != nil {
			logger.WithError(t.err).Debug("task failed")
		}
	}()
	return t, nil
}

// Group returns an errgroup running at most Concurrency goroutines,
// and the context cancelled when one of them fails.
func (p *Pool) Group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)
	return g, ctx
}

// Task is one submitted unit of work.
type Task struct {
	// ID correlates log lines of the task.
	ID       uuid.UUID
	Category Category

	done chan struct{}
	err  error
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task has finished and returns its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}
