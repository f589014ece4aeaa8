// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/cockroachdb/errors"
)

// CommandPool allocates command buffers for one queue family.
type CommandPool struct {
	device *Device
	handle Handle
	family uint32
}

// NewCommandPool creates a pool whose buffers can be reset one by one.
func NewCommandPool(device *Device, family uint32) (*CommandPool, error) {
	handle, err := device.driver.CreateCommandPool(device.handle, family)
	if err != nil {
		return nil, errors.Wrap(err, "vkr: create command pool")
	}
	return &CommandPool{
		device: device,
		handle: handle,
		family: family,
	}, nil
}

// Handle returns the native pool.
func (p *CommandPool) Handle() Handle {
	return p.handle
}

// Family returns the queue family the pool serves.
func (p *CommandPool) Family() uint32 {
	return p.family
}

// Allocate allocates count primary command buffers in the Ready state.
func (p *CommandPool) Allocate(count int) ([]*CommandBuffer, error) {
	handles, err := p.device.driver.AllocateCommandBuffers(p.device.handle, p.handle, count)
	if err != nil {
		return nil, errors.Wrap(err, "vkr: allocate command buffers")
	}
	buffers := make([]*CommandBuffer, len(handles))
	for i, h := range handles {
		buffers[i] = &CommandBuffer{
			pool:   p,
			handle: h,
		}
	}
	return buffers, nil
}

// Free returns buffers to the pool.
func (p *CommandPool) Free(buffers ...*CommandBuffer) {
	handles := make([]Handle, 0, len(buffers))
	for _, b := range buffers {
		if b.handle != NullHandle {
			handles = append(handles, b.handle)
			b.handle = NullHandle
		}
	}
	if len(handles) > 0 {
		p.device.driver.FreeCommandBuffers(p.device.handle, p.handle, handles)
	}
}

// Destroy releases the pool and every buffer allocated from it.
func (p *CommandPool) Destroy() {
	if p.handle == NullHandle {
		return
	}
	p.device.driver.DestroyCommandPool(p.device.handle, p.handle)
	p.handle = NullHandle
}

// CommandBufferState is the recording state of a CommandBuffer.
type CommandBufferState int

// Command buffer states.
const (
	CommandBufferReady CommandBufferState = iota
	CommandBufferRecording
	CommandBufferExecutable
)

func (s CommandBufferState) String() string {
	switch s {
	case CommandBufferReady:
		return "ready"
	case CommandBufferRecording:
		return "recording"
	case CommandBufferExecutable:
		return "executable"
	}
	return "unknown"
}

// CommandBuffer records commands. It moves from Ready to Recording on
// Begin, to Executable on End and back to Ready on Reset. Recording
// commands fail with ErrNotRecording outside Recording and leave the
// state as it was.
type CommandBuffer struct {
	pool   *CommandPool
	handle Handle
	state  CommandBufferState
}

// Handle returns the native command buffer.
func (c *CommandBuffer) Handle() Handle {
	return c.handle
}

// State returns the current state.
func (c *CommandBuffer) State() CommandBufferState {
	return c.state
}

func (c *CommandBuffer) driver() Driver {
	return c.pool.device.driver
}

func (c *CommandBuffer) recording(op string) error {
	if c.state != CommandBufferRecording {
		return errors.Wrapf(ErrNotRecording, "vkr: %s in state %s", op, c.state)
	}
	return nil
}

// Begin starts recording.
func (c *CommandBuffer) Begin(oneTimeSubmit bool) error {
	if c.state != CommandBufferReady {
		return errors.Wrapf(ErrNotReady, "vkr: Begin in state %s", c.state)
	}
	if err := c.driver().BeginCommandBuffer(c.handle, oneTimeSubmit); err != nil {
		return errors.Wrap(err, "vkr: begin command buffer")
	}
	c.state = CommandBufferRecording
	return nil
}

// End finishes recording.
func (c *CommandBuffer) End() error {
	if err := c.recording("End"); err != nil {
		return err
	}
	if err := c.driver().EndCommandBuffer(c.handle); err != nil {
		return errors.Wrap(err, "vkr: end command buffer")
	}
	c.state = CommandBufferExecutable
	return nil
}

// Reset discards the recorded commands.
func (c *CommandBuffer) Reset() error {
	if c.state != CommandBufferExecutable {
		return errors.Wrapf(ErrNotExecutable, "vkr: Reset in state %s", c.state)
	}
	if err := c.driver().ResetCommandBuffer(c.handle); err != nil {
		return errors.Wrap(err, "vkr: reset command buffer")
	}
	c.state = CommandBufferReady
	return nil
}

// BeginRenderPass starts renderPass on framebuffer over its whole extent.
func (c *CommandBuffer) BeginRenderPass(renderPass *RenderPass, framebuffer *Framebuffer, clear []ClearValue) error {
	if err := c.recording("BeginRenderPass"); err != nil {
		return err
	}
	c.driver().CmdBeginRenderPass(c.handle, RenderPassBeginInfo{
		RenderPass:  renderPass.handle,
		Framebuffer: framebuffer.handle,
		Area:        FullScissor(framebuffer.extent),
		ClearValues: clear,
	})
	return nil
}

// EndRenderPass ends the current render pass.
func (c *CommandBuffer) EndRenderPass() error {
	if err := c.recording("EndRenderPass"); err != nil {
		return err
	}
	c.driver().CmdEndRenderPass(c.handle)
	return nil
}

// BindPipeline binds a graphics pipeline.
func (c *CommandBuffer) BindPipeline(pipeline Handle) error {
	if err := c.recording("BindPipeline"); err != nil {
		return err
	}
	c.driver().CmdBindPipeline(c.handle, pipeline)
	return nil
}

// SetViewport sets the dynamic viewport.
func (c *CommandBuffer) SetViewport(viewport Viewport) error {
	if err := c.recording("SetViewport"); err != nil {
		return err
	}
	c.driver().CmdSetViewport(c.handle, viewport)
	return nil
}

// SetScissor sets the dynamic scissor.
func (c *CommandBuffer) SetScissor(scissor Rect2D) error {
	if err := c.recording("SetScissor"); err != nil {
		return err
	}
	c.driver().CmdSetScissor(c.handle, scissor)
	return nil
}

// BindVertexBuffers binds buffers to consecutive bindings from zero,
// each from its beginning.
func (c *CommandBuffer) BindVertexBuffers(buffers ...*Buffer) error {
	if err := c.recording("BindVertexBuffers"); err != nil {
		return err
	}
	handles := make([]Handle, len(buffers))
	offsets := make([]uint64, len(buffers))
	for i, b := range buffers {
		handles[i] = b.handle
	}
	c.driver().CmdBindVertexBuffers(c.handle, handles, offsets)
	return nil
}

// BindIndexBuffer binds an index buffer.
func (c *CommandBuffer) BindIndexBuffer(buffer *Buffer, offset uint64, indexType IndexType) error {
	if err := c.recording("BindIndexBuffer"); err != nil {
		return err
	}
	c.driver().CmdBindIndexBuffer(c.handle, buffer.handle, offset, indexType)
	return nil
}

// Draw records a non indexed draw.
func (c *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	if err := c.recording("Draw"); err != nil {
		return err
	}
	c.driver().CmdDraw(c.handle, vertexCount, instanceCount, firstVertex, firstInstance)
	return nil
}

// DrawIndexed records an indexed draw.
func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) error {
	if err := c.recording("DrawIndexed"); err != nil {
		return err
	}
	c.driver().CmdDrawIndexed(c.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
	return nil
}
