// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/koru3d/engine/gfx"
	"github.com/loov/hrtime"
	log "github.com/sirupsen/logrus"
)

// FrameTarget is what a frame records into.
type FrameTarget struct {
	Frame       int
	ImageIndex  uint32
	RenderPass  *RenderPass
	Framebuffer *Framebuffer
	Extent      gfx.Extent2D
	ClearValues []ClearValue
}

// RecordFunc records the commands of one frame into a recording
// command buffer.
type RecordFunc func(cmd *CommandBuffer, target FrameTarget) error

// ClearPass records an empty render pass, which only clears.
func ClearPass(cmd *CommandBuffer, target FrameTarget) error {
	if err := cmd.BeginRenderPass(target.RenderPass, target.Framebuffer, target.ClearValues); err != nil {
		return err
	}
	if err := cmd.SetViewport(FullViewport(target.Extent)); err != nil {
		return err
	}
	if err := cmd.SetScissor(FullScissor(target.Extent)); err != nil {
		return err
	}
	return cmd.EndRenderPass()
}

// FrameStats counts frames and measures how long they take on the CPU.
type FrameStats struct {
	Frames      uint64
	Skipped     uint64
	Recreations uint64
	Last        time.Duration
	Average     time.Duration
}

type frameSlot struct {
	cmd            *CommandBuffer
	imageAvailable *Semaphore
	renderFinished *Semaphore
	inFlight       *Fence
}

// Renderer drives the frame loop: it owns the swapchain and the per
// frame command buffers and synchronization, and rebuilds the swapchain
// whenever it goes stale or the window is resized.
type Renderer struct {
	device     *Device
	surface    *Surface
	window     gfx.Window
	renderPass *RenderPass
	config     GraphicsConfiguration

	graphics *Queue
	present  *Queue

	swapchain      *Swapchain
	pool           *CommandPool
	frames         []frameSlot
	imagesInFlight []*Fence
	current        int
	stale          bool

	stats FrameStats
	total time.Duration
}

// NewRenderer builds the swapchain and the per frame resources.
func NewRenderer(device *Device, surface *Surface, window gfx.Window, renderPass *RenderPass, cfg GraphicsConfiguration) (*Renderer, error) {
	graphics, ok := device.Queue(RoleGraphics)
	if !ok {
		return nil, errors.Wrap(ErrQueueFamilyAbsent, "vkr: renderer needs a graphics queue")
	}
	present, ok := device.Queue(RolePresent)
	if !ok {
		present = graphics
	}

	if cfg.MaxFramesInFlight <= 0 {
		cfg.MaxFramesInFlight = 2
	}
	if cfg.FenceTimeout <= 0 {
		cfg.FenceTimeout = DefaultTimeout
	}
	if len(cfg.Swapchain.QueueFamilies) == 0 {
		cfg.Swapchain.QueueFamilies = device.Configuration().UniqueFamilies(RoleGraphics, RolePresent)
	}

	r := &Renderer{
		device:     device,
		surface:    surface,
		window:     window,
		renderPass: renderPass,
		config:     cfg,
		graphics:   graphics,
		present:    present,
	}
	if err := r.init(); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) init() error {
	var err error
	if r.swapchain, err = NewSwapchain(r.device, r.surface, r.renderPass, r.config, r.window.FramebufferSize()); err != nil {
		return err
	}
	r.imagesInFlight = make([]*Fence, r.swapchain.ImageCount())

	if r.pool, err = NewCommandPool(r.device, r.graphics.family); err != nil {
		return err
	}
	buffers, err := r.pool.Allocate(r.config.MaxFramesInFlight)
	if err != nil {
		return err
	}

	r.frames = make([]frameSlot, 0, len(buffers))
	for i, cmd := range buffers {
		slot := frameSlot{cmd: cmd}
		// Append first so that Destroy sees partially built slots.
		r.frames = append(r.frames, slot)
		s := &r.frames[i]
		if s.imageAvailable, err = NewSemaphore(r.device); err != nil {
			return err
		}
		if s.renderFinished, err = NewSemaphore(r.device); err != nil {
			return err
		}
		if s.inFlight, err = NewFence(r.device, true); err != nil {
			return err
		}
		r.device.SetObjectName(ObjectTypeCommandBuffer, cmd.handle, "frame command buffer")
	}
	return nil
}

// Swapchain returns the current swapchain. It changes on recreation.
func (r *Renderer) Swapchain() *Swapchain {
	return r.swapchain
}

// CurrentFrame returns the index of the frame slot recorded next.
func (r *Renderer) CurrentFrame() int {
	return r.current
}

// FramesInFlight returns the number of frame slots.
func (r *Renderer) FramesInFlight() int {
	return len(r.frames)
}

// Stats returns the frame statistics so far.
func (r *Renderer) Stats() FrameStats {
	return r.stats
}

func stale(err error) bool {
	switch ResultOf(err) {
	case ErrorOutOfDate, Suboptimal:
		return true
	}
	return false
}

// DrawFrame renders one frame with record. Stale swapchains are rebuilt
// rather than reported; a minimized window skips the frame.
func (r *Renderer) DrawFrame(record RecordFunc) error {
	if r.window.FramebufferSize().Empty() {
		r.stale = true
		r.stats.Skipped++
		return nil
	}
	if r.stale || r.swapchain == nil {
		return r.recreate()
	}

	start := hrtime.Now()
	timeout := r.config.FenceTimeout
	f := &r.frames[r.current]

	if err := f.inFlight.Wait(timeout); err != nil {
		return errors.Wrap(err, "vkr: wait for frame")
	}

	image, err := r.swapchain.AcquireNextImage(timeout, f.imageAvailable, nil)
	switch {
	case err == nil:
	case ResultOf(err) == ErrorOutOfDate:
		return r.recreate()
	case ResultOf(err) == Suboptimal:
		r.stale = true
	default:
		return errors.Wrap(err, "vkr: acquire image")
	}

	if prev := r.imagesInFlight[image]; prev != nil && prev != f.inFlight {
		if err := prev.Wait(timeout); err != nil {
			return errors.Wrap(err, "vkr: wait for image")
		}
	}

	if f.cmd.State() == CommandBufferExecutable {
		if err := f.cmd.Reset(); err != nil {
			return err
		}
	}
	if err := f.cmd.Begin(true); err != nil {
		return err
	}
	target := FrameTarget{
		Frame:       r.current,
		ImageIndex:  image,
		RenderPass:  r.renderPass,
		Framebuffer: r.swapchain.framebuffers[image],
		Extent:      r.swapchain.extent,
		ClearValues: r.config.ClearValues(),
	}
	if err := record(f.cmd, target); err != nil {
		_ = f.cmd.End()
		if rerr := r.release(f, image); rerr != nil {
			Logger().WithError(rerr).Warn("release image after failed recording")
		}
		return errors.Wrap(err, "vkr: record frame")
	}
	if err := f.cmd.End(); err != nil {
		return err
	}

	if err := r.submit(f, image, f.cmd.handle); err != nil {
		return err
	}

	err = r.swapchain.Present(r.present, image, f.renderFinished)
	r.current = (r.current + 1) % len(r.frames)
	r.account(hrtime.Since(start))

	if err != nil && !stale(err) {
		return errors.Wrap(err, "vkr: present")
	}
	if stale(err) || r.window.Resized() || r.stale {
		return r.recreate()
	}
	return nil
}

// submit resets the slot fence and submits cmds waiting on the acquired
// image. A failed submission leaves no signal pending on the slot, so
// its fence and acquire semaphore are replaced and the swapchain is
// rebuilt to get the image back.
func (r *Renderer) submit(f *frameSlot, image uint32, cmds ...Handle) error {
	if err := f.inFlight.Reset(); err != nil {
		return errors.Wrap(err, "vkr: reset frame fence")
	}
	r.imagesInFlight[image] = f.inFlight

	err := r.graphics.Submit(SubmitInfo{
		WaitSemaphores:   []Handle{f.imageAvailable.handle},
		WaitStages:       []PipelineStage{PipelineStageColorAttachmentOutput},
		CommandBuffers:   cmds,
		SignalSemaphores: []Handle{f.renderFinished.handle},
	}, f.inFlight)
	if err == nil {
		return nil
	}

	r.stale = true
	if rerr := r.renew(f); rerr != nil {
		Logger().WithError(rerr).Error("renew frame sync after failed submission")
	}
	return errors.Wrap(err, "vkr: submit frame")
}

// renew replaces the fence and the acquire semaphore of a slot.
func (r *Renderer) renew(f *frameSlot) error {
	for i, fence := range r.imagesInFlight {
		if fence == f.inFlight {
			r.imagesInFlight[i] = nil
		}
	}
	fence, err := NewFence(r.device, true)
	if err != nil {
		return err
	}
	sem, err := NewSemaphore(r.device)
	if err != nil {
		fence.Destroy()
		return err
	}
	f.inFlight.Destroy()
	f.imageAvailable.Destroy()
	f.inFlight, f.imageAvailable = fence, sem
	return nil
}

// release hands an acquired image back without rendering to it: an
// empty batch consumes the acquire semaphore and the image is presented
// unchanged.
func (r *Renderer) release(f *frameSlot, image uint32) error {
	if err := r.submit(f, image); err != nil {
		return err
	}
	r.current = (r.current + 1) % len(r.frames)
	err := r.swapchain.Present(r.present, image, f.renderFinished)
	if stale(err) {
		r.stale = true
		return nil
	}
	return err
}

func (r *Renderer) account(d time.Duration) {
	r.stats.Frames++
	r.stats.Last = d
	r.total += d
	r.stats.Average = r.total / time.Duration(r.stats.Frames)
}

func (r *Renderer) recreate() error {
	size := r.window.FramebufferSize()
	if size.Empty() {
		r.stale = true
		return nil
	}

	var (
		sc  *Swapchain
		err error
	)
	if r.swapchain != nil {
		sc, err = Recreate(r.swapchain, size)
	} else if err = r.device.WaitIdle(); err == nil {
		sc, err = NewSwapchain(r.device, r.surface, r.renderPass, r.config, size)
	}
	if err != nil {
		// A failed idle wait leaves the old chain alive, keep it
		// so that it is destroyed with the renderer.
		if r.swapchain != nil && r.swapchain.handle == NullHandle {
			r.swapchain = nil
		}
		r.stale = true
		return errors.Wrap(err, "vkr: recreate swapchain")
	}

	r.swapchain = sc
	r.imagesInFlight = make([]*Fence, sc.ImageCount())
	r.stale = false
	r.stats.Recreations++

	Logger().WithFields(log.Fields{
		"extent": sc.Extent(),
		"images": sc.ImageCount(),
	}).Info("swapchain recreated")
	return nil
}

// Destroy waits for the device to go idle and releases the frame
// resources and the swapchain.
func (r *Renderer) Destroy() {
	if err := r.device.WaitIdle(); err != nil {
		Logger().WithError(err).Error("wait idle before renderer teardown")
	}
	for _, f := range r.frames {
		if f.imageAvailable != nil {
			f.imageAvailable.Destroy()
		}
		if f.renderFinished != nil {
			f.renderFinished.Destroy()
		}
		if f.inFlight != nil {
			f.inFlight.Destroy()
		}
	}
	r.frames = nil
	if r.pool != nil {
		r.pool.Destroy()
		r.pool = nil
	}
	if r.swapchain != nil {
		r.swapchain.Destroy()
		r.swapchain = nil
	}
}
