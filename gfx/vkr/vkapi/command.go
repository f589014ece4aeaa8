// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkapi

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/koru3d/engine/gfx/vkr"
)

// CreateCommandPool implements vkr.Driver. Buffers of the pool can be
// reset individually.
func (d *Driver) CreateCommandPool(device vkr.Handle, family uint32) (vkr.Handle, error) {
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: family,
	}

	var pool vk.CommandPool
	if err := check("CreateCommandPool", vk.CreateCommandPool(lookup[vk.Device](d.objects, device), &cpci, nil, &pool)); err != nil {
		return vkr.NullHandle, err
	}
	return d.objects.put(pool), nil
}

// DestroyCommandPool implements vkr.Driver.
func (d *Driver) DestroyCommandPool(device, pool vkr.Handle) {
	vk.DestroyCommandPool(lookup[vk.Device](d.objects, device), lookup[vk.CommandPool](d.objects, pool), nil)
	d.objects.drop(pool)
}

// AllocateCommandBuffers implements vkr.Driver.
func (d *Driver) AllocateCommandBuffers(device, pool vkr.Handle, count int) ([]vkr.Handle, error) {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        lookup[vk.CommandPool](d.objects, pool),
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}

	buffers := make([]vk.CommandBuffer, count)
	if err := check("AllocateCommandBuffers", vk.AllocateCommandBuffers(lookup[vk.Device](d.objects, device), &cbai, buffers)); err != nil {
		return nil, err
	}
	handles := make([]vkr.Handle, count)
	for i, b := range buffers {
		handles[i] = d.objects.put(b)
	}
	return handles, nil
}

// FreeCommandBuffers implements vkr.Driver.
func (d *Driver) FreeCommandBuffers(device, pool vkr.Handle, buffers []vkr.Handle) {
	vb := lookupAll[vk.CommandBuffer](d.objects, buffers)
	vk.FreeCommandBuffers(lookup[vk.Device](d.objects, device), lookup[vk.CommandPool](d.objects, pool), uint32(len(vb)), vb)
	for _, h := range buffers {
		d.objects.drop(h)
	}
}

// BeginCommandBuffer implements vkr.Driver.
func (d *Driver) BeginCommandBuffer(buffer vkr.Handle, oneTimeSubmit bool) error {
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneTimeSubmit {
		cbbi.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return check("BeginCommandBuffer", vk.BeginCommandBuffer(lookup[vk.CommandBuffer](d.objects, buffer), &cbbi))
}

// EndCommandBuffer implements vkr.Driver.
func (d *Driver) EndCommandBuffer(buffer vkr.Handle) error {
	return check("EndCommandBuffer", vk.EndCommandBuffer(lookup[vk.CommandBuffer](d.objects, buffer)))
}

// ResetCommandBuffer implements vkr.Driver.
func (d *Driver) ResetCommandBuffer(buffer vkr.Handle) error {
	return check("ResetCommandBuffer", vk.ResetCommandBuffer(lookup[vk.CommandBuffer](d.objects, buffer), 0))
}

// CmdBeginRenderPass implements vkr.Driver.
func (d *Driver) CmdBeginRenderPass(buffer vkr.Handle, info vkr.RenderPassBeginInfo) {
	clearValues := clearValuesTo(info.ClearValues)
	rpbi := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      lookup[vk.RenderPass](d.objects, info.RenderPass),
		Framebuffer:     lookup[vk.Framebuffer](d.objects, info.Framebuffer),
		RenderArea:      rectTo(info.Area),
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(lookup[vk.CommandBuffer](d.objects, buffer), &rpbi, vk.SubpassContentsInline)
}

// CmdEndRenderPass implements vkr.Driver.
func (d *Driver) CmdEndRenderPass(buffer vkr.Handle) {
	vk.CmdEndRenderPass(lookup[vk.CommandBuffer](d.objects, buffer))
}

// CmdBindPipeline implements vkr.Driver. Pipelines are created outside
// the driver and must be registered first.
func (d *Driver) CmdBindPipeline(buffer, pipeline vkr.Handle) {
	vp, ok := d.objects.get(pipeline).(vk.Pipeline)
	if !ok {
		vkr.Logger().WithField("pipeline", pipeline).Error("binding an unregistered pipeline")
		return
	}
	vk.CmdBindPipeline(lookup[vk.CommandBuffer](d.objects, buffer), vk.PipelineBindPointGraphics, vp)
}

// CmdSetViewport implements vkr.Driver.
func (d *Driver) CmdSetViewport(buffer vkr.Handle, viewport vkr.Viewport) {
	vk.CmdSetViewport(lookup[vk.CommandBuffer](d.objects, buffer), 0, 1, []vk.Viewport{{
		X:        viewport.X,
		Y:        viewport.Y,
		Width:    viewport.Width,
		Height:   viewport.Height,
		MinDepth: viewport.MinDepth,
		MaxDepth: viewport.MaxDepth,
	}})
}

// CmdSetScissor implements vkr.Driver.
func (d *Driver) CmdSetScissor(buffer vkr.Handle, scissor vkr.Rect2D) {
	vk.CmdSetScissor(lookup[vk.CommandBuffer](d.objects, buffer), 0, 1, []vk.Rect2D{rectTo(scissor)})
}

// CmdBindVertexBuffers implements vkr.Driver.
func (d *Driver) CmdBindVertexBuffers(buffer vkr.Handle, buffers []vkr.Handle, offsets []uint64) {
	vb := lookupAll[vk.Buffer](d.objects, buffers)
	vo := make([]vk.DeviceSize, len(offsets))
	for i, o := range offsets {
		vo[i] = vk.DeviceSize(o)
	}
	vk.CmdBindVertexBuffers(lookup[vk.CommandBuffer](d.objects, buffer), 0, uint32(len(vb)), vb, vo)
}

// CmdBindIndexBuffer implements vkr.Driver.
func (d *Driver) CmdBindIndexBuffer(buffer, index vkr.Handle, offset uint64, indexType vkr.IndexType) {
	vk.CmdBindIndexBuffer(lookup[vk.CommandBuffer](d.objects, buffer), lookup[vk.Buffer](d.objects, index),
		vk.DeviceSize(offset), vk.IndexType(indexType))
}

// CmdDraw implements vkr.Driver.
func (d *Driver) CmdDraw(buffer vkr.Handle, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(lookup[vk.CommandBuffer](d.objects, buffer), vertexCount, instanceCount, firstVertex, firstInstance)
}

// CmdDrawIndexed implements vkr.Driver.
func (d *Driver) CmdDrawIndexed(buffer vkr.Handle, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(lookup[vk.CommandBuffer](d.objects, buffer), indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

// QueueSubmit implements vkr.Driver.
func (d *Driver) QueueSubmit(queue vkr.Handle, info vkr.SubmitInfo, fence vkr.Handle) error {
	stages := make([]vk.PipelineStageFlags, len(info.WaitStages))
	for i, s := range info.WaitStages {
		stages[i] = vk.PipelineStageFlags(s)
	}
	wait := lookupAll[vk.Semaphore](d.objects, info.WaitSemaphores)
	signal := lookupAll[vk.Semaphore](d.objects, info.SignalSemaphores)
	buffers := lookupAll[vk.CommandBuffer](d.objects, info.CommandBuffers)

	submit := []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(wait)),
		PWaitSemaphores:      wait,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(buffers)),
		PCommandBuffers:      buffers,
		SignalSemaphoreCount: uint32(len(signal)),
		PSignalSemaphores:    signal,
	}}
	return check("QueueSubmit", vk.QueueSubmit(lookup[vk.Queue](d.objects, queue), 1, submit, lookup[vk.Fence](d.objects, fence)))
}

// QueuePresent implements vkr.Driver.
func (d *Driver) QueuePresent(queue vkr.Handle, info vkr.PresentInfo) error {
	wait := lookupAll[vk.Semaphore](d.objects, info.WaitSemaphores)
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(wait)),
		PWaitSemaphores:    wait,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{lookup[vk.Swapchain](d.objects, info.Swapchain)},
		PImageIndices:      []uint32{info.ImageIndex},
	}
	return check("QueuePresent", vk.QueuePresent(lookup[vk.Queue](d.objects, queue), &presentInfo))
}

// QueueWaitIdle implements vkr.Driver.
func (d *Driver) QueueWaitIdle(queue vkr.Handle) error {
	return check("QueueWaitIdle", vk.QueueWaitIdle(lookup[vk.Queue](d.objects, queue)))
}

func rectTo(r vkr.Rect2D) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: extentTo(r.Extent),
	}
}

func clearValuesTo(values []vkr.ClearValue) []vk.ClearValue {
	out := make([]vk.ClearValue, len(values))
	for i, v := range values {
		if v.DepthStencil {
			out[i].SetDepthStencil(v.Depth, v.Stencil)
			continue
		}
		out[i].SetColor(v.Color[:])
	}
	return out
}
