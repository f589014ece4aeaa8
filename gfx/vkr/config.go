// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"time"

	glm "github.com/go-gl/mathgl/mgl32"
)

// SwapchainOptions configures the presentable image chain.
type SwapchainOptions struct {
	// ImageCount is the desired minimum number of images, clamped to
	// what the surface allows. Zero asks for one more than the minimum.
	ImageCount uint32

	// Format and ColorSpace select the image format. An undefined
	// format picks the best one the surface offers.
	Format     Format
	ColorSpace ColorSpace

	// PresentMode is used when supported, FIFO otherwise.
	PresentMode PresentMode

	Usage       ImageUsage
	ArrayLayers uint32

	// QueueFamilies that access the images. More than one distinct
	// family makes the images shared concurrently between them.
	QueueFamilies []uint32

	Clipped bool
}

// AttachmentConfiguration describes one framebuffer attachment.
type AttachmentConfiguration struct {
	// Format of the attachment. Undefined means the swapchain format
	// for color attachments and DefaultDepthFormat for depth.
	Format       Format
	DepthStencil bool
}

// DefaultDepthFormat is used by depth attachments with no format set.
const DefaultDepthFormat = FormatD32Sfloat

// GraphicsConfiguration configures presentation and the frame loop.
type GraphicsConfiguration struct {
	Swapchain   SwapchainOptions
	Attachments []AttachmentConfiguration

	// MaxFramesInFlight is the number of frames the CPU may record
	// ahead of the GPU.
	MaxFramesInFlight int

	ClearColor   glm.Vec4
	ClearDepth   float32
	FenceTimeout time.Duration
}

// DefaultGraphicsConfiguration is triple buffered mailbox presentation
// into a color and a depth attachment, two frames in flight.
func DefaultGraphicsConfiguration() GraphicsConfiguration {
	return GraphicsConfiguration{
		Swapchain: SwapchainOptions{
			ImageCount:  3,
			PresentMode: PresentModeMailbox,
			Usage:       ImageUsageColorAttachment,
			ArrayLayers: 1,
			Clipped:     true,
		},
		Attachments: []AttachmentConfiguration{
			{},
			{DepthStencil: true},
		},
		MaxFramesInFlight: 2,
		ClearColor:        glm.Vec4{0, 0, 0, 1},
		ClearDepth:        1,
		FenceTimeout:      DefaultTimeout,
	}
}

// AttachmentDescriptions resolves the attachments against the color
// format chosen for the swapchain, giving a layout to create a
// matching RenderPass with.
func (c GraphicsConfiguration) AttachmentDescriptions(colorFormat Format) []AttachmentDescription {
	out := make([]AttachmentDescription, len(c.Attachments))
	for i, a := range c.Attachments {
		out[i] = AttachmentDescription{
			Format:       a.resolve(colorFormat),
			DepthStencil: a.DepthStencil,
		}
	}
	return out
}

// ClearValues returns one clear value per attachment.
func (c GraphicsConfiguration) ClearValues() []ClearValue {
	out := make([]ClearValue, len(c.Attachments))
	for i, a := range c.Attachments {
		if a.DepthStencil {
			out[i] = ClearValue{Depth: c.ClearDepth, DepthStencil: true}
		} else {
			out[i] = ClearValue{Color: c.ClearColor}
		}
	}
	return out
}

func (a AttachmentConfiguration) resolve(colorFormat Format) Format {
	switch {
	case a.Format != FormatUndefined:
		return a.Format
	case a.DepthStencil:
		return DefaultDepthFormat
	}
	return colorFormat
}
