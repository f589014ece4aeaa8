// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/koru3d/engine/gfx"
	log "github.com/sirupsen/logrus"
)

// Swapchain is the chain of presentable images of a surface together
// with a view per image, a shared depth image and a framebuffer per
// image. It is rebuilt, never resized.
type Swapchain struct {
	device     *Device
	surface    *Surface
	renderPass *RenderPass
	config     GraphicsConfiguration

	handle      Handle
	format      SurfaceFormat
	presentMode PresentMode
	extent      gfx.Extent2D
	minImages   uint32

	images       []Handle
	colors       [][]*DeferredImage
	depth        *OwnedImage
	framebuffers []*Framebuffer
}

// ResolveImageCount clamps the desired image count into what the
// surface allows. A desired count of zero asks for one above the minimum.
func ResolveImageCount(caps SurfaceCapabilities, desired uint32) uint32 {
	if desired == 0 {
		desired = caps.MinImageCount + 1
	}
	if desired < caps.MinImageCount {
		desired = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && desired > caps.MaxImageCount {
		desired = caps.MaxImageCount
	}
	return desired
}

// ResolveExtent returns the surface's current extent, or the framebuffer
// size clamped into the allowed range when the surface leaves it open.
func ResolveExtent(caps SurfaceCapabilities, framebuffer gfx.Extent2D) gfx.Extent2D {
	if caps.CurrentExtent != UndefinedExtent {
		return caps.CurrentExtent
	}
	return framebuffer.Clamp(caps.MinImageExtent, caps.MaxImageExtent)
}

// ChooseSurfaceFormat picks the configured format, or with an undefined
// one, B8G8R8A8 sRGB, then B8G8R8A8 UNORM, then whatever comes first.
func ChooseSurfaceFormat(available []SurfaceFormat, want Format, colorSpace ColorSpace) (SurfaceFormat, error) {
	if len(available) == 0 {
		return SurfaceFormat{}, errors.Wrap(ErrFormatUnsupported, "vkr: surface reports no formats")
	}
	// A single undefined entry means any format may be used.
	if len(available) == 1 && available[0].Format == FormatUndefined {
		if want == FormatUndefined {
			want = FormatB8G8R8A8Srgb
		}
		return SurfaceFormat{Format: want, ColorSpace: colorSpace}, nil
	}

	if want != FormatUndefined {
		for _, f := range available {
			if f.Format == want && f.ColorSpace == colorSpace {
				return f, nil
			}
		}
		return SurfaceFormat{}, errors.Wrapf(ErrFormatUnsupported, "vkr: format %d color space %d", want, colorSpace)
	}

	for _, preferred := range []Format{FormatB8G8R8A8Srgb, FormatB8G8R8A8Unorm} {
		for _, f := range available {
			if f.Format == preferred && f.ColorSpace == ColorSpaceSRGBNonlinear {
				return f, nil
			}
		}
	}
	return available[0], nil
}

// ChoosePresentMode returns want when supported, FIFO otherwise.
func ChoosePresentMode(available []PresentMode, want PresentMode) PresentMode {
	for _, m := range available {
		if m == want {
			return m
		}
	}
	if want != PresentModeFIFO {
		Logger().WithFields(log.Fields{
			"wanted":   want,
			"fallback": PresentModeFIFO,
		}).Warn("present mode not supported")
	}
	return PresentModeFIFO
}

// NewSwapchain builds the image chain of surface on device, the views of
// its images, a depth image if one is configured and one framebuffer per
// image compatible with renderPass. Any failure releases everything
// created so far.
func NewSwapchain(device *Device, surface *Surface, renderPass *RenderPass, cfg GraphicsConfiguration, framebufferSize gfx.Extent2D) (*Swapchain, error) {
	s := &Swapchain{
		device:     device,
		surface:    surface,
		renderPass: renderPass,
		config:     cfg,
	}
	if err := s.build(framebufferSize); err != nil {
		s.Destroy()
		return nil, err
	}

	Logger().WithFields(log.Fields{
		"extent":      s.extent,
		"images":      len(s.images),
		"format":      s.format.Format,
		"presentMode": s.presentMode,
	}).Info("swapchain created")
	return s, nil
}

// Recreate waits for the device to go idle, destroys old and builds
// a replacement with the same configuration at the new size. When the
// wait fails old is left as it was.
func Recreate(old *Swapchain, framebufferSize gfx.Extent2D) (*Swapchain, error) {
	if err := old.device.WaitIdle(); err != nil {
		return nil, err
	}
	device, surface, renderPass, cfg := old.device, old.surface, old.renderPass, old.config
	old.Destroy()
	return NewSwapchain(device, surface, renderPass, cfg, framebufferSize)
}

func (s *Swapchain) build(framebufferSize gfx.Extent2D) error {
	pd := s.device.physical
	opts := s.config.Swapchain

	caps, err := s.surface.Capabilities(pd)
	if err != nil {
		return err
	}
	formats, err := s.surface.Formats(pd)
	if err != nil {
		return err
	}
	modes, err := s.surface.PresentModes(pd)
	if err != nil {
		return err
	}

	s.minImages = ResolveImageCount(caps, opts.ImageCount)
	s.extent = ResolveExtent(caps, framebufferSize)
	if s.extent.Empty() {
		return errors.Newf("vkr: cannot build a swapchain of size %dx%d", s.extent.Width, s.extent.Height)
	}
	if s.format, err = ChooseSurfaceFormat(formats, opts.Format, opts.ColorSpace); err != nil {
		return err
	}
	s.presentMode = ChoosePresentMode(modes, opts.PresentMode)

	usage := opts.Usage
	if usage == 0 {
		usage = ImageUsageColorAttachment
	}
	if caps.SupportedUsage&usage != usage {
		return errors.Newf("vkr: surface does not support image usage %#x", uint32(usage))
	}
	layers := opts.ArrayLayers
	if layers == 0 {
		layers = 1
	}
	if caps.MaxImageArrayLayers > 0 && layers > caps.MaxImageArrayLayers {
		layers = caps.MaxImageArrayLayers
	}

	families := uniqueFamilies(opts.QueueFamilies)
	info := SwapchainCreateInfo{
		Surface:       s.surface.handle,
		MinImageCount: s.minImages,
		Format:        s.format.Format,
		ColorSpace:    s.format.ColorSpace,
		Extent:        s.extent,
		ArrayLayers:   layers,
		Usage:         usage,
		PreTransform:  caps.CurrentTransform,
		PresentMode:   s.presentMode,
		Clipped:       opts.Clipped,
	}
	if len(families) > 1 {
		info.Concurrent = true
		info.QueueFamilies = families
	}

	driver := s.device.driver
	if s.handle, err = driver.CreateSwapchain(s.device.handle, info); err != nil {
		return errors.Wrap(err, "vkr: create swapchain")
	}
	if s.images, err = driver.SwapchainImages(s.device.handle, s.handle); err != nil {
		return errors.Wrap(err, "vkr: swapchain images")
	}

	attachments := s.config.AttachmentDescriptions(s.format.Format)
	if err := s.checkRenderPass(attachments); err != nil {
		return err
	}

	for _, a := range attachments {
		if !a.DepthStencil || s.depth != nil {
			continue
		}
		if s.depth, err = NewOwnedImage(s.device, a.Format, s.extent, ImageUsageDepthStencilAttachment); err != nil {
			return err
		}
	}

	s.colors = make([][]*DeferredImage, 0, len(s.images))
	for _, image := range s.images {
		var colors []*DeferredImage
		for _, a := range attachments {
			if a.DepthStencil {
				continue
			}
			color, err := NewDeferredImage(s.device, image, a.Format)
			if err != nil {
				return err
			}
			colors = append(colors, color)
		}
		s.colors = append(s.colors, colors)
	}

	s.framebuffers = make([]*Framebuffer, 0, len(s.images))
	for i := range s.images {
		views := make([]Handle, 0, len(attachments))
		color := 0
		for _, a := range attachments {
			if a.DepthStencil {
				views = append(views, s.depth.view)
				continue
			}
			views = append(views, s.colors[i][color].view)
			color++
		}
		fb, err := NewFramebuffer(s.device, s.renderPass, views, s.extent)
		if err != nil {
			return err
		}
		s.framebuffers = append(s.framebuffers, fb)
	}
	return nil
}

// checkRenderPass makes sure every configured attachment lines up with
// the one the render pass declares at the same index.
func (s *Swapchain) checkRenderPass(attachments []AttachmentDescription) error {
	declared := s.renderPass.attachments
	if len(declared) != len(attachments) {
		return errors.Wrapf(ErrAttachmentMismatch, "vkr: configuration has %d attachments, render pass declares %d",
			len(attachments), len(declared))
	}
	for i, a := range attachments {
		d := declared[i]
		if d.DepthStencil != a.DepthStencil {
			return errors.Wrapf(ErrAttachmentMismatch, "vkr: attachment %d depth/stencil usage differs", i)
		}
		if d.Format != FormatUndefined && d.Format != a.Format {
			return errors.Wrapf(ErrAttachmentMismatch, "vkr: attachment %d format %d, render pass declares %d", i, a.Format, d.Format)
		}
	}
	return nil
}

func uniqueFamilies(families []uint32) []uint32 {
	var out []uint32
	for _, f := range families {
		dup := false
		for _, o := range out {
			if o == f {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, f)
		}
	}
	return out
}

// Handle returns the native swapchain.
func (s *Swapchain) Handle() Handle {
	return s.handle
}

// Device returns the device the swapchain was built on.
func (s *Swapchain) Device() *Device {
	return s.device
}

// Surface returns the surface the swapchain presents to.
func (s *Swapchain) Surface() *Surface {
	return s.surface
}

// RenderPass returns the render pass the framebuffers are compatible with.
func (s *Swapchain) RenderPass() *RenderPass {
	return s.renderPass
}

// Configuration returns the configuration the swapchain was built with.
func (s *Swapchain) Configuration() GraphicsConfiguration {
	return s.config
}

// Extent returns the resolved image size.
func (s *Swapchain) Extent() gfx.Extent2D {
	return s.extent
}

// Format returns the negotiated surface format.
func (s *Swapchain) Format() SurfaceFormat {
	return s.format
}

// PresentMode returns the negotiated presentation mode.
func (s *Swapchain) PresentMode() PresentMode {
	return s.presentMode
}

// MinImageCount returns the image count requested from the surface.
func (s *Swapchain) MinImageCount() uint32 {
	return s.minImages
}

// ImageCount returns the number of images in the chain.
func (s *Swapchain) ImageCount() int {
	return len(s.images)
}

// Images returns the first color image of every swapchain image.
func (s *Swapchain) Images() []Image {
	out := make([]Image, len(s.colors))
	for i, colors := range s.colors {
		if len(colors) > 0 {
			out[i] = colors[0]
		}
	}
	return out
}

// ColorImages returns every color image wrapping swapchain image i.
func (s *Swapchain) ColorImages(i int) []*DeferredImage {
	return s.colors[i]
}

// DepthImage returns the shared depth image, nil when not configured.
func (s *Swapchain) DepthImage() *OwnedImage {
	return s.depth
}

// Framebuffers returns one framebuffer per image.
func (s *Swapchain) Framebuffers() []*Framebuffer {
	return s.framebuffers
}

// AcquireNextImage returns the index of the next image to render into.
// The error matches ErrOutOfDate when the swapchain must be rebuilt
// before use; ErrSuboptimal comes with a valid index.
func (s *Swapchain) AcquireNextImage(timeout time.Duration, semaphore *Semaphore, fence *Fence) (uint32, error) {
	sem, f := NullHandle, NullHandle
	if semaphore != nil {
		sem = semaphore.handle
	}
	if fence != nil {
		f = fence.handle
	}
	return s.device.driver.AcquireNextImage(s.device.handle, s.handle, timeout, sem, f)
}

// Present queues image for presentation on queue once wait signals.
func (s *Swapchain) Present(queue *Queue, image uint32, wait ...*Semaphore) error {
	info := PresentInfo{
		Swapchain:  s.handle,
		ImageIndex: image,
	}
	for _, w := range wait {
		info.WaitSemaphores = append(info.WaitSemaphores, w.handle)
	}
	return queue.Present(info)
}

// Destroy releases the framebuffers, views, depth image and the chain.
// The images themselves belong to the chain.
func (s *Swapchain) Destroy() {
	for _, fb := range s.framebuffers {
		fb.Destroy()
	}
	s.framebuffers = nil
	for _, colors := range s.colors {
		for _, c := range colors {
			c.Destroy()
		}
	}
	s.colors = nil
	if s.depth != nil {
		s.depth.Destroy()
		s.depth = nil
	}
	s.images = nil
	if s.handle != NullHandle {
		s.device.driver.DestroySwapchain(s.device.handle, s.handle)
		s.handle = NullHandle
	}
}
