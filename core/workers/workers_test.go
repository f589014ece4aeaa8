// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package workers_test

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"

	"github.com/koru3d/engine/core/workers"
)

func newManager(c *qt.C, concurrency map[workers.Category]int) *workers.Manager {
	m := workers.NewManager(workers.Configuration{Concurrency: concurrency})
	c.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		c.Check(m.Shutdown(ctx), qt.IsNil)
	})
	return m
}

func TestPoolsAreCreatedOnce(t *testing.T) {
	c := qt.New(t)
	m := newManager(c, map[workers.Category]int{workers.IO: 3})

	p, err := m.Pool(workers.IO)
	c.Assert(err, qt.IsNil)
	again, err := m.Pool(workers.IO)
	c.Assert(err, qt.IsNil)
	c.Assert(again, qt.Equals, p)
	c.Assert(p.Category(), qt.Equals, workers.IO)
	c.Assert(p.Concurrency(), qt.Equals, 3)

	p, err = m.Pool(workers.Compute)
	c.Assert(err, qt.IsNil)
	c.Assert(p.Concurrency(), qt.Equals, runtime.NumCPU())
}

func TestSubmit(t *testing.T) {
	c := qt.New(t)
	m := newManager(c, nil)

	boom := errors.New("boom")
	task, err := m.Submit(context.Background(), workers.General, func(context.Context) error {
		return boom
	})
	c.Assert(err, qt.IsNil)
	c.Assert(task.ID, qt.Not(qt.Equals), uuid.Nil)
	c.Assert(task.Category, qt.Equals, workers.General)
	c.Assert(task.Wait(), qt.Equals, boom)

	ok, err := m.Submit(context.Background(), workers.General, func(context.Context) error {
		return nil
	})
	c.Assert(err, qt.IsNil)
	<-ok.Done()
	c.Assert(ok.Wait(), qt.IsNil)
	c.Assert(ok.ID, qt.Not(qt.Equals), task.ID)
}

func TestSubmitRecoversPanics(t *testing.T) {
	c := qt.New(t)
	m := newManager(c, nil)

	task, err := m.Submit(context.Background(), workers.Compute, func(context.Context) error {
		panic("out of cheese")
	})
	c.Assert(err, qt.IsNil)
	c.Assert(task.Wait(), qt.ErrorMatches, "workers: task panicked: out of cheese")
}

func TestConcurrencyLimit(t *testing.T) {
	c := qt.New(t)
	m := newManager(c, map[workers.Category]int{workers.Compute: 2})
	pool, err := m.Pool(workers.Compute)
	c.Assert(err, qt.IsNil)

	var running, peak atomic.Int32
	var tasks []*workers.Task
	for i := 0; i < 8; i++ {
		task, err := pool.Submit(context.Background(), func(context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		})
		c.Assert(err, qt.IsNil)
		tasks = append(tasks, task)
	}
	for _, task := range tasks {
		c.Assert(task.Wait(), qt.IsNil)
	}
	c.Assert(peak.Load() <= 2, qt.IsTrue, qt.Commentf("peak %d", peak.Load()))
}

func TestSubmitCancelledWhileWaiting(t *testing.T) {
	c := qt.New(t)
	m := newManager(c, map[workers.Category]int{workers.Rendering: 1})

	release := make(chan struct{})
	blocker, err := m.Submit(context.Background(), workers.Rendering, func(context.Context) error {
		<-release
		return nil
	})
	c.Assert(err, qt.IsNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Submit(ctx, workers.Rendering, func(context.Context) error { return nil })
	c.Assert(err, qt.ErrorIs, context.Canceled)

	close(release)
	c.Assert(blocker.Wait(), qt.IsNil)
}

func TestShutdown(t *testing.T) {
	c := qt.New(t)
	m := workers.NewManager(workers.DefaultConfiguration())

	release := make(chan struct{})
	task, err := m.Submit(context.Background(), workers.IO, func(context.Context) error {
		<-release
		return nil
	})
	c.Assert(err, qt.IsNil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	c.Assert(m.Shutdown(ctx), qt.ErrorIs, context.DeadlineExceeded)

	_, err = m.Submit(context.Background(), workers.IO, func(context.Context) error { return nil })
	c.Assert(err, qt.ErrorIs, workers.ErrClosed)
	_, err = m.Pool(workers.General)
	c.Assert(err, qt.ErrorIs, workers.ErrClosed)

	close(release)
	c.Assert(task.Wait(), qt.IsNil)
	c.Assert(m.Shutdown(context.Background()), qt.IsNil)
}

func TestGroup(t *testing.T) {
	c := qt.New(t)
	m := newManager(c, map[workers.Category]int{workers.Compute: 3})
	pool, err := m.Pool(workers.Compute)
	c.Assert(err, qt.IsNil)

	g, ctx := pool.Group(context.Background())
	var sum atomic.Int64
	for i := 1; i <= 10; i++ {
		i := i
		g.Go(func() error {
			sum.Add(int64(i))
			return nil
		})
	}
	c.Assert(g.Wait(), qt.IsNil)
	c.Assert(sum.Load(), qt.Equals, int64(55))
	c.Assert(ctx.Err(), qt.IsNotNil)

	boom := errors.New("boom")
	g, _ = pool.Group(context.Background())
	g.Go(func() error { return boom })
	c.Assert(g.Wait(), qt.Equals, boom)
}

func TestDefault(t *testing.T) {
	c := qt.New(t)
	c.Assert(workers.Default(), qt.Equals, workers.Default())
}

func TestCategory(t *testing.T) {
	c := qt.New(t)
	for _, category := range workers.Categories {
		parsed, err := workers.ParseCategory(category.String())
		c.Assert(err, qt.IsNil)
		c.Assert(parsed, qt.Equals, category)
	}
	parsed, err := workers.ParseCategory("IO")
	c.Assert(err, qt.IsNil)
	c.Assert(parsed, qt.Equals, workers.IO)

	_, err = workers.ParseCategory("gpu")
	c.Assert(err, qt.ErrorMatches, `workers: unknown category "gpu"`)
}
