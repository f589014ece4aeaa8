// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/koru3d/engine/gfx"
)

// SurfaceWindow is a window that can back a presentable surface.
// Only windows implementing it can be paired with the renderer.
type SurfaceWindow interface {
	gfx.Window
	SurfaceSource
}

var nextSurfaceID atomic.Uint64

// Surface is a presentable surface bound to a window.
type Surface struct {
	id       uint64
	instance *Instance
	window   SurfaceWindow
	handle   Handle
}

// NewSurface creates a surface for window. A failure carries the
// native result code when the driver reported one.
func NewSurface(instance *Instance, window SurfaceWindow) (*Surface, error) {
	handle, err := instance.driver.CreateSurface(instance.handle, window)
	if err != nil {
		return nil, errors.Wrap(err, "vkr: create surface")
	}
	return &Surface{
		id:       nextSurfaceID.Add(1),
		instance: instance,
		window:   window,
		handle:   handle,
	}, nil
}

// ID is a process unique identifier, for diagnostics.
func (s *Surface) ID() uint64 {
	return s.id
}

// Handle returns the native surface.
func (s *Surface) Handle() Handle {
	return s.handle
}

// Window returns the window the surface presents to.
func (s *Surface) Window() SurfaceWindow {
	return s.window
}

// Capabilities queries what the surface allows on pd.
func (s *Surface) Capabilities(pd *PhysicalDevice) (SurfaceCapabilities, error) {
	caps, err := s.instance.driver.SurfaceCapabilities(pd.handle, s.handle)
	if err != nil {
		return SurfaceCapabilities{}, errors.Wrap(err, "vkr: surface capabilities")
	}
	return caps, nil
}

// Formats queries the formats the surface supports on pd.
func (s *Surface) Formats(pd *PhysicalDevice) ([]SurfaceFormat, error) {
	formats, err := s.instance.driver.SurfaceFormats(pd.handle, s.handle)
	if err != nil {
		return nil, errors.Wrap(err, "vkr: surface formats")
	}
	return formats, nil
}

// PresentModes queries the presentation modes the surface supports on pd.
func (s *Surface) PresentModes(pd *PhysicalDevice) ([]PresentMode, error) {
	modes, err := s.instance.driver.SurfacePresentModes(pd.handle, s.handle)
	if err != nil {
		return nil, errors.Wrap(err, "vkr: surface present modes")
	}
	return modes, nil
}

// Destroy releases the surface. The instance must still be alive.
func (s *Surface) Destroy() {
	if s.handle == NullHandle {
		return
	}
	s.instance.driver.DestroySurface(s.instance.handle, s.handle)
	s.handle = NullHandle
}
