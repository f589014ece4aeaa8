// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"

	"github.com/koru3d/engine/gfx"
	"github.com/koru3d/engine/gfx/vkr"
	"github.com/koru3d/engine/gfx/vkr/vkrtest"
)

func (f *fixture) renderer(c *qt.C) *vkr.Renderer {
	r, err := vkr.NewRenderer(f.device, f.surface, f.window, f.renderPass, f.config)
	c.Assert(err, qt.IsNil)
	c.Cleanup(r.Destroy)
	return r
}

func TestRendererFrames(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())
	r := f.renderer(c)

	c.Assert(r.FramesInFlight(), qt.Equals, 2)
	c.Assert(f.driver.Live(vkrtest.KindFence), qt.Equals, 2)
	c.Assert(f.driver.Live(vkrtest.KindSemaphore), qt.Equals, 4)

	var frames []int
	var images []uint32
	record := func(cmd *vkr.CommandBuffer, target vkr.FrameTarget) error {
		c.Assert(cmd.State(), qt.Equals, vkr.CommandBufferRecording)
		c.Assert(target.Framebuffer, qt.Equals, r.Swapchain().Framebuffers()[target.ImageIndex])
		c.Assert(target.Extent, qt.Equals, gfx.Extent2D{Width: 800, Height: 600})
		c.Assert(target.ClearValues, qt.HasLen, 2)
		frames = append(frames, target.Frame)
		images = append(images, target.ImageIndex)
		return vkr.ClearPass(cmd, target)
	}
	for i := 0; i < 5; i++ {
		c.Assert(r.DrawFrame(record), qt.IsNil)
	}

	c.Assert(frames, qt.DeepEquals, []int{0, 1, 0, 1, 0})
	c.Assert(images, qt.DeepEquals, []uint32{0, 1, 2, 0, 1})
	c.Assert(r.CurrentFrame(), qt.Equals, 1)

	stats := r.Stats()
	c.Assert(stats.Frames, qt.Equals, uint64(5))
	c.Assert(stats.Skipped, qt.Equals, uint64(0))
	c.Assert(stats.Recreations, qt.Equals, uint64(0))

	submits := f.driver.Submits()
	c.Assert(submits, qt.HasLen, 5)
	c.Assert(submits[0].WaitStages, qt.DeepEquals, []vkr.PipelineStage{vkr.PipelineStageColorAttachmentOutput})
	c.Assert(submits[0].WaitSemaphores, qt.HasLen, 1)
	c.Assert(submits[0].SignalSemaphores, qt.HasLen, 1)

	presents := f.driver.Presents()
	c.Assert(presents, qt.HasLen, 5)
	c.Assert(presents[0].WaitSemaphores, qt.DeepEquals, submits[0].SignalSemaphores)

	c.Assert(f.driver.Commands(submits[4].CommandBuffers[0]), qt.DeepEquals, []string{
		"CmdBeginRenderPass",
		"CmdSetViewport",
		"CmdSetScissor",
		"CmdEndRenderPass",
	})
}

func TestRendererOutOfDateOnAcquire(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())
	r := f.renderer(c)
	old := r.Swapchain()

	f.driver.Script("AcquireNextImage", vkr.ErrorOutOfDate)
	c.Assert(r.DrawFrame(vkr.ClearPass), qt.IsNil)
	c.Assert(r.Stats().Frames, qt.Equals, uint64(0))
	c.Assert(r.Stats().Recreations, qt.Equals, uint64(1))
	c.Assert(r.Swapchain(), qt.Not(qt.Equals), old)
	c.Assert(f.driver.Submits(), qt.HasLen, 0)

	c.Assert(r.DrawFrame(vkr.ClearPass), qt.IsNil)
	c.Assert(r.Stats().Frames, qt.Equals, uint64(1))
	c.Assert(f.driver.Live(vkrtest.KindSwapchain), qt.Equals, 1)
}

func TestRendererSuboptimal(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())
	r := f.renderer(c)

	f.driver.Script("AcquireNextImage", vkr.Suboptimal)
	c.Assert(r.DrawFrame(vkr.ClearPass), qt.IsNil)
	c.Assert(r.Stats().Frames, qt.Equals, uint64(1))
	c.Assert(r.Stats().Recreations, qt.Equals, uint64(1))

	f.driver.Script("QueuePresent", vkr.ErrorOutOfDate)
	c.Assert(r.DrawFrame(vkr.ClearPass), qt.IsNil)
	c.Assert(r.Stats().Frames, qt.Equals, uint64(2))
	c.Assert(r.Stats().Recreations, qt.Equals, uint64(2))

	f.driver.Script("QueuePresent", vkr.ErrorDeviceLost)
	c.Assert(r.DrawFrame(vkr.ClearPass), qt.ErrorIs, vkr.ErrDeviceLost)
}

func TestRendererResize(t *testing.T) {
	c := qt.New(t)
	d := vkrtest.New()
	d.Capabilities.CurrentExtent = vkr.UndefinedExtent
	f := newFixture(c, d)
	r := f.renderer(c)

	f.window.Resize(1024, 768)
	c.Assert(r.DrawFrame(vkr.ClearPass), qt.IsNil)
	c.Assert(r.Stats().Recreations, qt.Equals, uint64(1))
	c.Assert(r.Swapchain().Extent(), qt.Equals, gfx.Extent2D{Width: 1024, Height: 768})

	c.Assert(r.DrawFrame(vkr.ClearPass), qt.IsNil)
	c.Assert(r.Stats().Recreations, qt.Equals, uint64(1))
	c.Assert(r.Stats().Frames, qt.Equals, uint64(2))
}

func TestRendererMinimized(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())
	r := f.renderer(c)

	f.window.Resize(0, 0)
	c.Assert(r.DrawFrame(vkr.ClearPass), qt.IsNil)
	c.Assert(r.DrawFrame(vkr.ClearPass), qt.IsNil)
	c.Assert(r.Stats().Skipped, qt.Equals, uint64(2))
	c.Assert(f.driver.Count("AcquireNextImage"), qt.Equals, 0)

	// Restored: the first call rebuilds, the next ones render.
	f.window.Resize(800, 600)
	c.Assert(r.DrawFrame(vkr.ClearPass), qt.IsNil)
	c.Assert(r.Stats().Frames, qt.Equals, uint64(0))
	c.Assert(r.DrawFrame(vkr.ClearPass), qt.IsNil)
	c.Assert(r.DrawFrame(vkr.ClearPass), qt.IsNil)

	stats := r.Stats()
	c.Assert(stats.Frames, qt.Equals, uint64(2))
	c.Assert(stats.Skipped, qt.Equals, uint64(2))
	c.Assert(stats.Recreations, qt.Equals, uint64(2))
}

func TestRendererRecordError(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())
	r := f.renderer(c)

	boom := errors.New("boom")
	err := r.DrawFrame(func(*vkr.CommandBuffer, vkr.FrameTarget) error { return boom })
	c.Assert(err, qt.ErrorIs, boom)
	c.Assert(err, qt.ErrorMatches, "vkr: record frame: boom")

	// The acquired image goes back through an empty batch that
	// consumes the acquire semaphore.
	submits := f.driver.Submits()
	c.Assert(submits, qt.HasLen, 1)
	c.Assert(submits[0].CommandBuffers, qt.HasLen, 0)
	c.Assert(submits[0].WaitSemaphores, qt.HasLen, 1)
	presents := f.driver.Presents()
	c.Assert(presents, qt.HasLen, 1)
	c.Assert(presents[0].ImageIndex, qt.Equals, uint32(0))
	c.Assert(presents[0].WaitSemaphores, qt.DeepEquals, submits[0].SignalSemaphores)
	c.Assert(r.CurrentFrame(), qt.Equals, 1)

	for i := 0; i < 3; i++ {
		c.Assert(r.DrawFrame(vkr.ClearPass), qt.IsNil)
	}
	c.Assert(r.Stats().Frames, qt.Equals, uint64(3))
	c.Assert(f.driver.Presents(), qt.HasLen, f.driver.Count("AcquireNextImage"))
	c.Assert(f.driver.Presents()[1].ImageIndex, qt.Equals, uint32(1))
}

func TestRendererSubmitError(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())
	r := f.renderer(c)

	f.driver.Script("QueueSubmit", vkr.ErrorOutOfHostMemory)
	err := r.DrawFrame(vkr.ClearPass)
	c.Assert(err, qt.ErrorIs, vkr.ErrOutOfHostMemory)
	c.Assert(f.driver.Live(vkrtest.KindFence), qt.Equals, 2)
	c.Assert(f.driver.Live(vkrtest.KindSemaphore), qt.Equals, 4)

	// The swapchain is rebuilt once, then every slot renders again.
	c.Assert(r.DrawFrame(vkr.ClearPass), qt.IsNil)
	c.Assert(r.Stats().Recreations, qt.Equals, uint64(1))
	for i := 0; i < 6; i++ {
		c.Assert(r.DrawFrame(vkr.ClearPass), qt.IsNil)
	}
	c.Assert(r.Stats().Frames, qt.Equals, uint64(6))
	c.Assert(f.driver.Submits(), qt.HasLen, 6)
}

func TestRendererFenceTimeout(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())
	r := f.renderer(c)

	f.driver.Script("WaitForFences", vkr.Timeout)
	err := r.DrawFrame(vkr.ClearPass)
	c.Assert(err, qt.ErrorIs, vkr.ErrTimeout)
	c.Assert(vkr.ResultOf(err), qt.Equals, vkr.Timeout)
	c.Assert(r.DrawFrame(vkr.ClearPass), qt.IsNil)
}

func TestRendererRecreateFailure(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())
	r := f.renderer(c)

	f.driver.Script("AcquireNextImage", vkr.ErrorOutOfDate)
	f.driver.Script("CreateSwapchain", vkr.ErrorSurfaceLost)
	err := r.DrawFrame(vkr.ClearPass)
	c.Assert(err, qt.ErrorIs, vkr.ErrSurfaceLost)
	c.Assert(r.Swapchain(), qt.IsNil)

	c.Assert(r.DrawFrame(vkr.ClearPass), qt.IsNil)
	c.Assert(r.Swapchain(), qt.IsNotNil)
	c.Assert(r.DrawFrame(vkr.ClearPass), qt.IsNil)
	c.Assert(r.Stats().Frames, qt.Equals, uint64(1))
}

func TestRendererRecreateWaitFailure(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())
	r := f.renderer(c)
	old := r.Swapchain()

	f.driver.Script("AcquireNextImage", vkr.ErrorOutOfDate)
	f.driver.Script("DeviceWaitIdle", vkr.ErrorDeviceLost)
	err := r.DrawFrame(vkr.ClearPass)
	c.Assert(err, qt.ErrorIs, vkr.ErrDeviceLost)
	c.Assert(r.Swapchain(), qt.Equals, old)
	c.Assert(f.driver.Live(vkrtest.KindSwapchain), qt.Equals, 1)

	c.Assert(r.DrawFrame(vkr.ClearPass), qt.IsNil)
	c.Assert(r.Swapchain(), qt.Not(qt.Equals), old)
	c.Assert(f.driver.Live(vkrtest.KindSwapchain), qt.Equals, 1)
}

func TestRendererNeedsGraphicsQueue(t *testing.T) {
	c := qt.New(t)
	d := vkrtest.New()
	f := newFixture(c, d)

	compute, err := vkr.NewDevice(f.device.PhysicalDevice(), vkr.DeviceConfiguration{
		Queues: map[uint32]*vkr.QueueConfiguration{0: {Family: 0, Priorities: []float32{1}}},
		Roles:  map[vkr.QueueRole]uint32{vkr.RoleCompute: 0},
	})
	c.Assert(err, qt.IsNil)
	defer compute.Destroy()

	_, err = vkr.NewRenderer(compute, f.surface, f.window, f.renderPass, f.config)
	c.Assert(err, qt.ErrorIs, vkr.ErrQueueFamilyAbsent)
}

func TestRendererInitFailure(t *testing.T) {
	c := qt.New(t)
	d := vkrtest.New()
	f := newFixture(c, d)

	d.Script("CreateFence", vkr.Success, vkr.ErrorOutOfHostMemory)
	_, err := vkr.NewRenderer(f.device, f.surface, f.window, f.renderPass, f.config)
	c.Assert(err, qt.ErrorIs, vkr.ErrOutOfHostMemory)
	c.Assert(d.Live(vkrtest.KindFence, vkrtest.KindSemaphore, vkrtest.KindCommandPool, vkrtest.KindSwapchain), qt.Equals, 0)
}
