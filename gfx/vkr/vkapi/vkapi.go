// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkapi is the production vkr.Driver, calling into the
// native API through github.com/vulkan-go/vulkan.
package vkapi

import (
	"math"
	"sync"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/koru3d/engine/gfx/vkr"
)

// Driver implements vkr.Driver. Native objects are kept in a registry
// and handed to the core as opaque handles.
type Driver struct {
	objects *registry

	mu sync.Mutex

	// physical device each logical device was created from
	physical map[vkr.Handle]vk.PhysicalDevice

	// images owned by each swapchain, released with it
	swapchainImages map[vkr.Handle][]vkr.Handle
}

var _ vkr.Driver = (*Driver)(nil)

// New loads the API entry points. getInstanceProcAddr is the loader
// exposed by the windowing library; nil falls back to the system loader.
func New(getInstanceProcAddr unsafe.Pointer) (*Driver, error) {
	if getInstanceProcAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.Wrap(err, "vk.SetDefaultGetInstanceProcAddr()")
		}
	} else {
		vk.SetGetInstanceProcAddr(getInstanceProcAddr)
	}

	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "vk.Init()")
	}

	return &Driver{
		objects:         newRegistry(),
		physical:        make(map[vkr.Handle]vk.PhysicalDevice),
		swapchainImages: make(map[vkr.Handle][]vkr.Handle),
	}, nil
}

// Register hands a native object created outside the driver, such as a
// pipeline, to the core. The same object always maps to the same handle.
func (d *Driver) Register(object interface{}) vkr.Handle {
	return d.objects.put(object)
}

// Native returns the object behind h, nil for unknown handles.
func (d *Driver) Native(h vkr.Handle) interface{} {
	return d.objects.get(h)
}

func check(op string, r vk.Result) error {
	return vkr.CheckResult("vk."+op+"()", vkr.Result(r))
}

// nanos converts a timeout, treating negative and maximal
// durations as an unbounded wait.
func nanos(d time.Duration) uint64 {
	if d < 0 || d == math.MaxInt64 {
		return math.MaxUint64
	}
	return uint64(d.Nanoseconds())
}

// cstrings null terminates every name for the native API.
func cstrings(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = safeString(name)
	}
	return out
}

func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

func bool32(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

type registry struct {
	mu      sync.RWMutex
	next    vkr.Handle
	objects map[vkr.Handle]interface{}
	handles map[interface{}]vkr.Handle
}

func newRegistry() *registry {
	return &registry{
		objects: make(map[vkr.Handle]interface{}),
		handles: make(map[interface{}]vkr.Handle),
	}
}

func (r *registry) put(object interface{}) vkr.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[object]; ok {
		return h
	}
	r.next++
	r.objects[r.next] = object
	r.handles[object] = r.next
	return r.next
}

func (r *registry) get(h vkr.Handle) interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.objects[h]
}

func (r *registry) drop(h vkr.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if object, ok := r.objects[h]; ok {
		delete(r.handles, object)
		delete(r.objects, h)
	}
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// lookup resolves h to its native object. NullHandle and unknown
// handles yield the zero value, the native null handle.
func lookup[T any](r *registry, h vkr.Handle) T {
	object, _ := r.get(h).(T)
	return object
}

func lookupAll[T any](r *registry, hs []vkr.Handle) []T {
	out := make([]T, len(hs))
	for i, h := range hs {
		out[i] = lookup[T](r, h)
	}
	return out
}
