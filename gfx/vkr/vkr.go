// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr implements the vulkan renderer core: instance and debug
// layer setup, physical device selection, logical devices and queues,
// surfaces, swapchains, synchronization primitives and command recording.
//
// All native calls go through a Driver, so the core can run against
// the real API (package vkapi) or an in-memory one (package vkrtest).
package vkr

import (
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Handle is an opaque reference to a native object created by a Driver.
type Handle uint64

// NullHandle references no object.
const NullHandle Handle = 0

// Version is a packed API version number.
type Version uint32

// MakeVersion packs a version the same way the native API does.
func MakeVersion(major, minor, patch uint32) Version {
	return Version(major<<22 | minor<<12 | patch)
}

// Major version component.
func (v Version) Major() uint32 { return uint32(v) >> 22 }

// Minor version component.
func (v Version) Minor() uint32 { return (uint32(v) >> 12) & 0x3ff }

// Patch version component.
func (v Version) Patch() uint32 { return uint32(v) & 0xfff }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}

var logger atomic.Pointer[log.Entry]

// SetLogger replaces the logger used by the package.
// Passing nil restores the default.
func SetLogger(entry *log.Entry) {
	logger.Store(entry)
}

// Logger returns the logger used by the package.
func Logger() *log.Entry {
	if l := logger.Load(); l != nil {
		return l
	}
	return log.WithField("component", "vkr")
}
