// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultTimeout waits practically forever.
const DefaultTimeout time.Duration = math.MaxInt64

// Fence is a GPU to CPU signal.
type Fence struct {
	device *Device
	handle Handle
}

// NewFence creates a fence, already signaled if signaled is set.
func NewFence(device *Device, signaled bool) (*Fence, error) {
	handle, err := device.driver.CreateFence(device.handle, signaled)
	if err != nil {
		return nil, errors.Wrap(err, "vkr: create fence")
	}
	return &Fence{device: device, handle: handle}, nil
}

// Handle returns the native fence.
func (f *Fence) Handle() Handle {
	return f.handle
}

// Wait blocks until the fence is signaled or timeout elapses,
// in which case the error matches ErrTimeout.
func (f *Fence) Wait(timeout time.Duration) error {
	if f == nil || f.handle == NullHandle {
		return ErrDestroyed
	}
	return f.device.driver.WaitForFences(f.device.handle, []Handle{f.handle}, true, timeout)
}

// Reset clears the signal.
func (f *Fence) Reset() error {
	if f == nil || f.handle == NullHandle {
		return ErrDestroyed
	}
	return f.device.driver.ResetFences(f.device.handle, []Handle{f.handle})
}

// Signaled reports the signal state without blocking.
func (f *Fence) Signaled() (bool, error) {
	if f == nil || f.handle == NullHandle {
		return false, ErrDestroyed
	}
	return f.device.driver.FenceStatus(f.device.handle, f.handle)
}

// Destroy releases the fence.
func (f *Fence) Destroy() {
	if f.handle == NullHandle {
		return
	}
	f.device.driver.DestroyFence(f.device.handle, f.handle)
	f.handle = NullHandle
}

// Semaphore orders work between queue operations on the GPU.
type Semaphore struct {
	device *Device
	handle Handle
}

// NewSemaphore creates a semaphore.
func NewSemaphore(device *Device) (*Semaphore, error) {
	handle, err := device.driver.CreateSemaphore(device.handle)
	if err != nil {
		return nil, errors.Wrap(err, "vkr: create semaphore")
	}
	return &Semaphore{device: device, handle: handle}, nil
}

// Handle returns the native semaphore.
func (s *Semaphore) Handle() Handle {
	return s.handle
}

// Destroy releases the semaphore.
func (s *Semaphore) Destroy() {
	if s.handle == NullHandle {
		return
	}
	s.device.driver.DestroySemaphore(s.device.handle, s.handle)
	s.handle = NullHandle
}

// Lock waits for a fence to signal and resets it, leaving it ready
// for the next submission. For a semaphore it does nothing, as there
// is no CPU side wait for one. A nil fence is ErrDestroyed.
func Lock[T *Fence | *Semaphore](v T, timeout time.Duration) error {
	fence, ok := any(v).(*Fence)
	if !ok {
		return nil
	}
	if err := fence.Wait(timeout); err != nil {
		return errors.Wrap(err, "vkr: lock fence")
	}
	if err := fence.Reset(); err != nil {
		return errors.Wrap(err, "vkr: lock fence")
	}
	return nil
}
