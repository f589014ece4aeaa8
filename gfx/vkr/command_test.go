// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/koru3d/engine/gfx"
	"github.com/koru3d/engine/gfx/vkr"
	"github.com/koru3d/engine/gfx/vkr/vkrtest"
)

func TestCommandBufferLifecycle(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())
	cmd := f.commandBuffers(c, 1)[0]

	c.Assert(cmd.State(), qt.Equals, vkr.CommandBufferReady)
	c.Assert(cmd.End(), qt.ErrorIs, vkr.ErrNotRecording)
	c.Assert(cmd.Reset(), qt.ErrorIs, vkr.ErrNotExecutable)

	c.Assert(cmd.Begin(true), qt.IsNil)
	c.Assert(cmd.State(), qt.Equals, vkr.CommandBufferRecording)
	c.Assert(cmd.Begin(true), qt.ErrorIs, vkr.ErrNotReady)
	c.Assert(cmd.Reset(), qt.ErrorIs, vkr.ErrNotExecutable)
	c.Assert(cmd.State(), qt.Equals, vkr.CommandBufferRecording)

	c.Assert(cmd.End(), qt.IsNil)
	c.Assert(cmd.State(), qt.Equals, vkr.CommandBufferExecutable)
	c.Assert(cmd.Begin(false), qt.ErrorIs, vkr.ErrNotReady)

	c.Assert(cmd.Reset(), qt.IsNil)
	c.Assert(cmd.State(), qt.Equals, vkr.CommandBufferReady)
	c.Assert(cmd.Begin(false), qt.IsNil)
}

func TestRecordingOutsideRecordingState(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())
	cmd := f.commandBuffers(c, 1)[0]
	vertices, err := vkr.NewBuffer(f.device, 64, vkr.BufferUsageVertex)
	c.Assert(err, qt.IsNil)
	defer vertices.Destroy()

	ops := map[string]func() error{
		"SetViewport":       func() error { return cmd.SetViewport(vkr.FullViewport(gfx.Extent2D{Width: 8, Height: 8})) },
		"SetScissor":        func() error { return cmd.SetScissor(vkr.FullScissor(gfx.Extent2D{Width: 8, Height: 8})) },
		"BindPipeline":      func() error { return cmd.BindPipeline(42) },
		"BindVertexBuffers": func() error { return cmd.BindVertexBuffers(vertices) },
		"BindIndexBuffer":   func() error { return cmd.BindIndexBuffer(vertices, 0, vkr.IndexTypeUint16) },
		"Draw":              func() error { return cmd.Draw(3, 1, 0, 0) },
		"DrawIndexed":       func() error { return cmd.DrawIndexed(3, 1, 0, 0, 0) },
		"EndRenderPass":     cmd.EndRenderPass,
	}
	for name, op := range ops {
		c.Run(name, func(c *qt.C) {
			err := op()
			c.Assert(err, qt.ErrorIs, vkr.ErrNotRecording)
			c.Assert(err, qt.ErrorMatches, "vkr: "+name+" in state ready: .*")
			c.Assert(cmd.State(), qt.Equals, vkr.CommandBufferReady)
		})
	}
	c.Assert(f.driver.Commands(cmd.Handle()), qt.HasLen, 0)
}

func TestRecordDraw(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())
	cmd := f.commandBuffers(c, 1)[0]
	extent := gfx.Extent2D{Width: 800, Height: 600}

	color, err := vkr.NewOwnedImage(f.device, vkr.FormatB8G8R8A8Srgb, extent, vkr.ImageUsageColorAttachment)
	c.Assert(err, qt.IsNil)
	defer color.Destroy()
	depth, err := vkr.NewOwnedImage(f.device, vkr.DefaultDepthFormat, extent, vkr.ImageUsageDepthStencilAttachment)
	c.Assert(err, qt.IsNil)
	defer depth.Destroy()
	fb, err := vkr.NewFramebuffer(f.device, f.renderPass, []vkr.Handle{color.View(), depth.View()}, extent)
	c.Assert(err, qt.IsNil)
	defer fb.Destroy()

	vertices, err := vkr.NewBufferFromSlice(f.device, vkr.BufferUsageVertex, []float32{0, 0, 1, 0, 0, 1})
	c.Assert(err, qt.IsNil)
	defer vertices.Destroy()

	c.Assert(cmd.Begin(true), qt.IsNil)
	c.Assert(cmd.BeginRenderPass(f.renderPass, fb, f.config.ClearValues()), qt.IsNil)
	c.Assert(cmd.BindPipeline(42), qt.IsNil)
	c.Assert(cmd.SetViewport(vkr.FullViewport(extent)), qt.IsNil)
	c.Assert(cmd.SetScissor(vkr.FullScissor(extent)), qt.IsNil)
	c.Assert(cmd.BindVertexBuffers(vertices), qt.IsNil)
	c.Assert(cmd.Draw(3, 1, 0, 0), qt.IsNil)
	c.Assert(cmd.EndRenderPass(), qt.IsNil)
	c.Assert(cmd.End(), qt.IsNil)

	c.Assert(f.driver.Commands(cmd.Handle()), qt.DeepEquals, []string{
		"CmdBeginRenderPass",
		"CmdBindPipeline",
		"CmdSetViewport",
		"CmdSetScissor",
		"CmdBindVertexBuffers",
		"CmdDraw",
		"CmdEndRenderPass",
	})

	// A reset buffer records from scratch.
	c.Assert(cmd.Reset(), qt.IsNil)
	c.Assert(f.driver.Commands(cmd.Handle()), qt.HasLen, 0)
}

func TestCommandPool(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())

	pool, err := vkr.NewCommandPool(f.device, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(pool.Family(), qt.Equals, uint32(0))

	buffers, err := pool.Allocate(3)
	c.Assert(err, qt.IsNil)
	c.Assert(buffers, qt.HasLen, 3)
	c.Assert(f.driver.Live(vkrtest.KindCommandBuffer), qt.Equals, 3)

	pool.Free(buffers[0])
	pool.Free(buffers[0])
	c.Assert(buffers[0].Handle(), qt.Equals, vkr.NullHandle)
	c.Assert(f.driver.Live(vkrtest.KindCommandBuffer), qt.Equals, 2)
	c.Assert(f.driver.Count("FreeCommandBuffers"), qt.Equals, 1)

	pool.Destroy()
	pool.Destroy()
	c.Assert(f.driver.Live(vkrtest.KindCommandBuffer, vkrtest.KindCommandPool), qt.Equals, 0)
}

func TestCommandBufferStateString(t *testing.T) {
	c := qt.New(t)
	c.Assert(vkr.CommandBufferReady.String(), qt.Equals, "ready")
	c.Assert(vkr.CommandBufferRecording.String(), qt.Equals, "recording")
	c.Assert(vkr.CommandBufferExecutable.String(), qt.Equals, "executable")
}
