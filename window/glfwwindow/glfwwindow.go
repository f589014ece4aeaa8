// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package glfwwindow provides a GLFW window able to back a vulkan surface.
package glfwwindow

import (
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	log "github.com/sirupsen/logrus"

	"github.com/koru3d/engine/gfx"
)

var logger = log.WithField("component", "glfwwindow")

// ErrVulkanUnsupported is returned when GLFW finds no vulkan loader.
var ErrVulkanUnsupported = errors.New("glfw: vulkan is not supported")

// Window is a resizable GLFW window without a client API context.
// All methods must be called from the main thread.
type Window struct {
	window  *glfw.Window
	resized atomic.Bool
}

// New initialises GLFW and opens a window.
func New(title string, size gfx.Extent2D) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "glfw.Init()")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return nil, ErrVulkanUnsupported
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	window, err := glfw.CreateWindow(int(size.Width), int(size.Height), title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "glfw.CreateWindow()")
	}

	w := &Window{window: window}
	window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		logger.WithFields(log.Fields{"width": width, "height": height}).Debug("framebuffer resized")
		w.resized.Store(true)
	})
	window.SetKeyCallback(func(win *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			win.SetShouldClose(true)
		}
	})
	return w, nil
}

// FramebufferSize implements gfx.Window.
func (w *Window) FramebufferSize() gfx.Extent2D {
	width, height := w.window.GetFramebufferSize()
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
	surface, err := w.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return 0, errors.Wrap(err, "glfw.CreateWindowSurface()")
	}
	return surface, nil
}

// Extensions lists the instance extensions surfaces of this window need.
func (w *Window) Extensions() []string {
	return w.window.GetRequiredInstanceExtensions()
}

// ProcAddr is the instance entry point loader GLFW found.
func (w *Window) ProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

// PollEvents processes pending events and reports whether
// the window should close.
func (w *Window) PollEvents() bool {
	glfw.PollEvents()
	return w.window.ShouldClose()
}

// Destroy closes the window and terminates GLFW.
func (w *Window) Destroy() {
	if w.window == nil {
		return
	}
	w.window.Destroy()
	w.window = nil
	glfw.Terminate()
}
