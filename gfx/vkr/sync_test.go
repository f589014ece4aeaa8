// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr_test

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/koru3d/engine/gfx/vkr"
	"github.com/koru3d/engine/gfx/vkr/vkrtest"
)

func TestFenceLock(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())

	fence, err := vkr.NewFence(f.device, true)
	c.Assert(err, qt.IsNil)
	defer fence.Destroy()

	c.Assert(vkr.Lock(fence, time.Second), qt.IsNil)
	signaled, err := fence.Signaled()
	c.Assert(err, qt.IsNil)
	c.Assert(signaled, qt.IsFalse)

	// Reset by the first lock, so the second one times out.
	err = vkr.Lock(fence, time.Millisecond)
	c.Assert(err, qt.ErrorIs, vkr.ErrTimeout)
	c.Assert(vkr.ResultOf(err), qt.Equals, vkr.Timeout)

	f.driver.Signal(fence.Handle())
	c.Assert(vkr.Lock(fence, time.Second), qt.IsNil)
}

func TestFenceWaitAndReset(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())

	fence, err := vkr.NewFence(f.device, false)
	c.Assert(err, qt.IsNil)

	c.Assert(fence.Wait(0), qt.ErrorIs, vkr.ErrTimeout)
	f.driver.Signal(fence.Handle())
	c.Assert(fence.Wait(0), qt.IsNil)
	c.Assert(fence.Wait(0), qt.IsNil)
	c.Assert(fence.Reset(), qt.IsNil)
	c.Assert(fence.Wait(0), qt.ErrorIs, vkr.ErrTimeout)

	fence.Destroy()
	fence.Destroy()
	c.Assert(fence.Wait(0), qt.ErrorIs, vkr.ErrDestroyed)
	c.Assert(fence.Reset(), qt.ErrorIs, vkr.ErrDestroyed)
	_, err = fence.Signaled()
	c.Assert(err, qt.ErrorIs, vkr.ErrDestroyed)
}

func TestLockNilFence(t *testing.T) {
	c := qt.New(t)

	var fence *vkr.Fence
	c.Assert(vkr.Lock(fence, time.Millisecond), qt.ErrorIs, vkr.ErrDestroyed)
	c.Assert(fence.Reset(), qt.ErrorIs, vkr.ErrDestroyed)
	_, err := fence.Signaled()
	c.Assert(err, qt.ErrorIs, vkr.ErrDestroyed)
}

func TestSemaphoreLockIsNoop(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())

	sem, err := vkr.NewSemaphore(f.device)
	c.Assert(err, qt.IsNil)
	defer sem.Destroy()

	before := len(f.driver.Calls())
	c.Assert(vkr.Lock(sem, 0), qt.IsNil)
	c.Assert(f.driver.Calls(), qt.HasLen, before)
}

func TestSyncCreationFailure(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())

	f.driver.Script("CreateFence", vkr.ErrorOutOfDeviceMemory)
	_, err := vkr.NewFence(f.device, false)
	c.Assert(err, qt.ErrorIs, vkr.ErrOutOfDeviceMemory)

	f.driver.Script("CreateSemaphore", vkr.ErrorOutOfHostMemory)
	_, err = vkr.NewSemaphore(f.device)
	c.Assert(err, qt.ErrorIs, vkr.ErrOutOfHostMemory)
}
