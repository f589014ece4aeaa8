// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines rendering related features that renderers must implement.
package gfx

// Destroyable defines any item holding native resources that
// must be released explicitly, as they are not visible to the GC.
type Destroyable interface {

	// Destroy releases the native resources held by the implementing structure.
	// Calling it more than once has no effect.
	Destroy()
}

// Extent2D is a two dimensional size in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// Empty reports whether either of the dimensions is zero,
// as is the case for a minimized window.
func (e Extent2D) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

// Clamp constrains the extent into [min, max] on both axes.
func (e Extent2D) Clamp(min, max Extent2D) Extent2D {
	return Extent2D{
		Width:  clamp(e.Width, min.Width, max.Width),
		Height: clamp(e.Height, min.Height, max.Height),
	}
}

// Extent3D is a three dimensional size.
type Extent3D struct {
	Width  uint32
	Height uint32
	Depth  uint32
}

// Window is the windowing collaborator of a renderer. It is not owned
// by the renderer, which only queries it for the drawable size.
type Window interface {

	// FramebufferSize returns the current drawable size in pixels.
	FramebufferSize() Extent2D

	// Resized reports whether the framebuffer was resized since
	// the previous call, clearing the flag.
	Resized() bool
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
