// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"time"

	"github.com/koru3d/engine/gfx"
)

// Driver is the native API as seen by the core.
type Driver interface {
	InstanceDriver
	DeviceDriver
	CommandDriver
}

// InstanceDriver covers the instance level entry points.
type InstanceDriver interface {
	EnumerateInstanceLayers() ([]string, error)
	EnumerateInstanceExtensions() ([]string, error)

	// DebugMessengerExtensions lists the instance extensions the driver
	// can drive a debug messenger with, in order of preference.
	DebugMessengerExtensions() []string

	CreateInstance(info InstanceCreateInfo) (Handle, error)
	DestroyInstance(instance Handle)

	CreateDebugMessenger(instance Handle, info DebugMessengerCreateInfo) (Handle, error)
	DestroyDebugMessenger(instance, messenger Handle)

	// ResolveDebugUtils returns nil when object naming and
	// labeling entry points are not available.
	ResolveDebugUtils(instance Handle) DebugUtils

	EnumeratePhysicalDevices(instance Handle) ([]Handle, error)
	PhysicalDeviceProperties(physical Handle) (PhysicalDeviceProperties, error)

	CreateSurface(instance Handle, source SurfaceSource) (Handle, error)
	DestroySurface(instance, surface Handle)
	SurfaceSupport(physical Handle, family uint32, surface Handle) (bool, error)
	SurfaceCapabilities(physical, surface Handle) (SurfaceCapabilities, error)
	SurfaceFormats(physical, surface Handle) ([]SurfaceFormat, error)
	SurfacePresentModes(physical, surface Handle) ([]PresentMode, error)
}

// DeviceDriver covers device level object management.
type DeviceDriver interface {
	CreateDevice(physical Handle, info DeviceCreateInfo) (Handle, error)
	DestroyDevice(device Handle)
	DeviceQueue(device Handle, family, index uint32) Handle
	DeviceWaitIdle(device Handle) error

	CreateSwapchain(device Handle, info SwapchainCreateInfo) (Handle, error)
	DestroySwapchain(device, swapchain Handle)
	SwapchainImages(device, swapchain Handle) ([]Handle, error)
	AcquireNextImage(device, swapchain Handle, timeout time.Duration, semaphore, fence Handle) (uint32, error)

	// CreateImage creates an image backed by freshly allocated and
	// bound device local memory, returning both.
	CreateImage(device Handle, info ImageCreateInfo) (image, memory Handle, err error)
	DestroyImage(device, image Handle)
	CreateImageView(device Handle, info ImageViewCreateInfo) (Handle, error)
	DestroyImageView(device, view Handle)
	FreeMemory(device, memory Handle)

	CreateRenderPass(device Handle, info RenderPassCreateInfo) (Handle, error)
	DestroyRenderPass(device, renderPass Handle)
	CreateFramebuffer(device Handle, info FramebufferCreateInfo) (Handle, error)
	DestroyFramebuffer(device, framebuffer Handle)

	CreateFence(device Handle, signaled bool) (Handle, error)
	DestroyFence(device, fence Handle)
	WaitForFences(device Handle, fences []Handle, waitAll bool, timeout time.Duration) error
	ResetFences(device Handle, fences []Handle) error
	FenceStatus(device, fence Handle) (bool, error)

	CreateSemaphore(device Handle) (Handle, error)
	DestroySemaphore(device, semaphore Handle)

	// CreateBuffer creates a host visible, coherent buffer
	// with its memory allocated and bound.
	CreateBuffer(device Handle, size uint64, usage BufferUsage) (buffer, memory Handle, err error)
	DestroyBuffer(device, buffer Handle)
	MapMemory(device, memory Handle, offset, size uint64) ([]byte, error)
	UnmapMemory(device, memory Handle)
}

// CommandDriver covers command pools, recording and submission.
type CommandDriver interface {
	CreateCommandPool(device Handle, family uint32) (Handle, error)
	DestroyCommandPool(device, pool Handle)
	AllocateCommandBuffers(device, pool Handle, count int) ([]Handle, error)
	FreeCommandBuffers(device, pool Handle, buffers []Handle)

	BeginCommandBuffer(buffer Handle, oneTimeSubmit bool) error
	EndCommandBuffer(buffer Handle) error
	ResetCommandBuffer(buffer Handle) error

	CmdBeginRenderPass(buffer Handle, info RenderPassBeginInfo)
	CmdEndRenderPass(buffer Handle)
	CmdBindPipeline(buffer, pipeline Handle)
	CmdSetViewport(buffer Handle, viewport Viewport)
	CmdSetScissor(buffer Handle, scissor Rect2D)
	CmdBindVertexBuffers(buffer Handle, buffers []Handle, offsets []uint64)
	CmdBindIndexBuffer(buffer, index Handle, offset uint64, indexType IndexType)
	CmdDraw(buffer Handle, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdDrawIndexed(buffer Handle, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)

	QueueSubmit(queue Handle, info SubmitInfo, fence Handle) error
	QueuePresent(queue Handle, info PresentInfo) error
	QueueWaitIdle(queue Handle) error
}

// DebugUtils holds the resolved object naming and labeling entry points.
type DebugUtils interface {
	SetObjectName(device Handle, kind ObjectType, object Handle, name string) error
	CmdBeginLabel(buffer Handle, label string, color [4]float32)
	CmdEndLabel(buffer Handle)
	CmdInsertLabel(buffer Handle, label string, color [4]float32)
	QueueBeginLabel(queue Handle, label string, color [4]float32)
	QueueEndLabel(queue Handle)
}

// SurfaceSource is implemented by windows able to create a presentable
// surface for a native instance. The instance is passed as the native
// handle value the windowing library expects.
type SurfaceSource interface {
	VulkanSurface(instance interface{}) (uintptr, error)
}

// InstanceCreateInfo describes a new instance.
type InstanceCreateInfo struct {
	ApplicationName    string
	ApplicationVersion Version
	EngineName         string
	EngineVersion      Version
	APIVersion         Version
	Extensions         []string
	Layers             []string

	// Debug is chained into instance creation so that messages
	// emitted while creating and destroying the instance are captured.
	Debug *DebugCreateInfoChain
}

// DebugCreateInfoChain is the messenger descriptor plus the optional
// extended validation descriptor chained behind it.
type DebugCreateInfoChain struct {
	Messenger  DebugMessengerCreateInfo
	Validation *ValidationFeatures
}

// DebugMessengerCreateInfo describes a debug messenger.
type DebugMessengerCreateInfo struct {
	Extension string
	Severity  DebugSeverity
	Types     DebugMessageType
	Callback  DebugCallback
}

// ValidationFeatures toggles extended validation.
type ValidationFeatures struct {
	GPUAssisted     bool
	BestPractices   bool
	Synchronization bool
	Disabled        []ValidationCheck
}

// DeviceCreateInfo describes a new logical device.
type DeviceCreateInfo struct {
	Queues     []QueueCreateInfo
	Extensions []string
	Features   *Features
}

// QueueCreateInfo requests len(Priorities) queues from Family.
type QueueCreateInfo struct {
	Family     uint32
	Priorities []float32
}

// SwapchainCreateInfo describes a new swapchain.
type SwapchainCreateInfo struct {
	Surface       Handle
	MinImageCount uint32
	Format        Format
	ColorSpace    ColorSpace
	Extent        gfx.Extent2D
	ArrayLayers   uint32
	Usage         ImageUsage

	// Concurrent sharing across QueueFamilies when set,
	// exclusive ownership otherwise.
	Concurrent    bool
	QueueFamilies []uint32

	PreTransform uint32
	PresentMode  PresentMode
	Clipped      bool
	OldSwapchain Handle
}

// ImageCreateInfo describes a new two dimensional image.
type ImageCreateInfo struct {
	Format Format
	Extent gfx.Extent2D
	Usage  ImageUsage
}

// ImageViewCreateInfo describes a view over a whole image.
type ImageViewCreateInfo struct {
	Image  Handle
	Format Format
	Depth  bool
}

// AttachmentDescription declares one render pass attachment.
type AttachmentDescription struct {
	Format       Format
	DepthStencil bool
}

// RenderPassCreateInfo describes a single subpass render pass.
type RenderPassCreateInfo struct {
	Attachments []AttachmentDescription
}

// FramebufferCreateInfo describes a new framebuffer.
type FramebufferCreateInfo struct {
	RenderPass  Handle
	Attachments []Handle
	Extent      gfx.Extent2D
	Layers      uint32
}

// ClearValue is either a color or a depth/stencil clear value.
type ClearValue struct {
	Color        [4]float32
	Depth        float32
	Stencil      uint32
	DepthStencil bool
}

// RenderPassBeginInfo describes a render pass instance.
type RenderPassBeginInfo struct {
	RenderPass  Handle
	Framebuffer Handle
	Area        Rect2D
	ClearValues []ClearValue
}

// PipelineStage is a set of native pipeline stage flags.
type PipelineStage uint32

// Pipeline stages used for semaphore waits.
const (
	PipelineStageTopOfPipe             PipelineStage = 0x00000001
	PipelineStageFragmentShader        PipelineStage = 0x00000080
	PipelineStageColorAttachmentOutput PipelineStage = 0x00000400
	PipelineStageTransfer              PipelineStage = 0x00001000
	PipelineStageBottomOfPipe          PipelineStage = 0x00002000
)

// SubmitInfo describes one batch of command buffers.
type SubmitInfo struct {
	WaitSemaphores   []Handle
	WaitStages       []PipelineStage
	CommandBuffers   []Handle
	SignalSemaphores []Handle
}

// PresentInfo describes the presentation of one swapchain image.
type PresentInfo struct {
	WaitSemaphores []Handle
	Swapchain      Handle
	ImageIndex     uint32
}
