// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/cockroachdb/errors"
	"github.com/koru3d/engine/gfx"
)

// RenderPass is a single subpass render pass. Color attachments are
// cleared, stored and left ready for presentation, a depth attachment
// is cleared and left as a depth attachment.
type RenderPass struct {
	device      *Device
	handle      Handle
	attachments []AttachmentDescription
}

// NewRenderPass creates a render pass with the given attachments.
func NewRenderPass(device *Device, attachments ...AttachmentDescription) (*RenderPass, error) {
	if len(attachments) == 0 {
		return nil, errors.New("vkr: render pass without attachments")
	}
	depth := 0
	for _, a := range attachments {
		if a.DepthStencil {
			depth++
		}
	}
	if depth > 1 {
		return nil, errors.Newf("vkr: render pass with %d depth attachments", depth)
	}

	declared := make([]AttachmentDescription, len(attachments))
	copy(declared, attachments)

	handle, err := device.driver.CreateRenderPass(device.handle, RenderPassCreateInfo{
		Attachments: declared,
	})
	if err != nil {
		return nil, errors.Wrap(err, "vkr: create render pass")
	}
	return &RenderPass{
		device:      device,
		handle:      handle,
		attachments: declared,
	}, nil
}

// Handle returns the native render pass.
func (r *RenderPass) Handle() Handle {
	return r.handle
}

// Attachments returns the declared attachment layout.
func (r *RenderPass) Attachments() []AttachmentDescription {
	return r.attachments
}

// Destroy releases the render pass.
func (r *RenderPass) Destroy() {
	if r.handle == NullHandle {
		return
	}
	r.device.driver.DestroyRenderPass(r.device.handle, r.handle)
	r.handle = NullHandle
}

// Framebuffer binds image views to the attachments of a render pass.
type Framebuffer struct {
	device      *Device
	handle      Handle
	attachments []Handle
	extent      gfx.Extent2D
}

// NewFramebuffer creates a framebuffer. The number of views must match
// the attachments declared by the render pass.
func NewFramebuffer(device *Device, renderPass *RenderPass, views []Handle, extent gfx.Extent2D) (*Framebuffer, error) {
	if len(views) != len(renderPass.attachments) {
		return nil, errors.Wrapf(ErrAttachmentMismatch, "vkr: framebuffer has %d attachments, render pass declares %d",
			len(views), len(renderPass.attachments))
	}
	attachments := make([]Handle, len(views))
	copy(attachments, views)

	handle, err := device.driver.CreateFramebuffer(device.handle, FramebufferCreateInfo{
		RenderPass:  renderPass.handle,
		Attachments: attachments,
		Extent:      extent,
		Layers:      1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "vkr: create framebuffer")
	}
	return &Framebuffer{
		device:      device,
		handle:      handle,
		attachments: attachments,
		extent:      extent,
	}, nil
}

// Handle returns the native framebuffer.
func (f *Framebuffer) Handle() Handle {
	return f.handle
}

// Attachments returns the views bound to the framebuffer.
func (f *Framebuffer) Attachments() []Handle {
	return f.attachments
}

// AttachmentCount returns the number of bound views.
func (f *Framebuffer) AttachmentCount() int {
	return len(f.attachments)
}

// Extent returns the framebuffer size.
func (f *Framebuffer) Extent() gfx.Extent2D {
	return f.extent
}

// Destroy releases the framebuffer.
func (f *Framebuffer) Destroy() {
	if f.handle == NullHandle {
		return
	}
	f.device.driver.DestroyFramebuffer(f.device.handle, f.handle)
	f.handle = NullHandle
}
