// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package sdlwindow provides an SDL2 window able to back a vulkan surface.
package sdlwindow

import (
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/koru3d/engine/gfx"
)

var logger = log.WithField("component", "sdlwindow")

// Window is a resizable SDL2 window created with vulkan support.
// All methods must be called from the thread that created it.
type Window struct {
	window  *sdl.Window
	resized atomic.Bool
	closed  bool
}

// New initialises SDL video, loads the vulkan library and opens a window.
func New(title string, size gfx.Extent2D) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, errors.Wrap(err, "sdl.Init()")
	}
	if err := sdl.VulkanLoadLibrary(""); err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "sdl.VulkanLoadLibrary()")
	}

	window, err := sdl.CreateWindow(title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(size.Width),
		int32(size.Height),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.VulkanUnloadLibrary()
		sdl.Quit()
		return nil, errors.Wrap(err, "sdl.CreateWindow()")
	}
	return &Window{window: window}, nil
}

// FramebufferSize implements gfx.Window.
func (w *Window) FramebufferSize() gfx.Extent2D {
	width, height := w.window.VulkanGetDrawableSize()
	if width < 0 || height < 0 {
		return gfx.Extent2D{}
	}
	return gfx.Extent2D{Width: uint32(width), Height: uint32(height)}
}

// Resized implements gfx.Window.
func (w *Window) Resized() bool {
	return w.resized.Swap(false)
}

// VulkanSurface implements vkr.SurfaceSource.
func (w *Window) VulkanSurface(instance interface{}) (uintptr, error) {
	surface, err := w.window.VulkanCreateSurface(instance)
	if err != nil {
		return 0, errors.Wrap(err, "sdl.VulkanCreateSurface()")
	}
	return uintptr(surface), nil
}

// Extensions lists the instance extensions surfaces of this window need.
func (w *Window) Extensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

// ProcAddr is the instance entry point loader of the loaded library.
func (w *Window) ProcAddr() unsafe.Pointer {
	return sdl.VulkanGetVkGetInstanceProcAddr()
}

// PollEvents drains the event queue, recording resizes. It reports
// whether the user asked to quit, by closing the window or pressing escape.
func (w *Window) PollEvents() bool {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch et := event.(type) {
		case *sdl.WindowEvent:
			switch et.Event {
			case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
				logger.WithFields(log.Fields{"width": et.Data1, "height": et.Data2}).Debug("window resized")
				w.resized.Store(true)
			case sdl.WINDOWEVENT_CLOSE:
				w.closed = true
			}
		case *sdl.KeyboardEvent:
			if et.Keysym.Sym == sdl.K_ESCAPE {
				w.closed = true
			}
		case *sdl.QuitEvent:
			w.closed = true
		}
	}
	return w.closed
}

// Destroy closes the window and shuts SDL down.
func (w *Window) Destroy() {
	if w.window == nil {
		return
	}
	if err := w.window.Destroy(); err != nil {
		logger.WithError(err).Warn("destroying window")
	}
	w.window = nil
	sdl.VulkanUnloadLibrary()
	sdl.Quit()
}
