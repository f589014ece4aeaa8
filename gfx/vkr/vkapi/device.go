// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkapi

import (
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/koru3d/engine/gfx/vkr"
)

// CreateDevice implements vkr.Driver.
func (d *Driver) CreateDevice(physical vkr.Handle, info vkr.DeviceCreateInfo) (vkr.Handle, error) {
	pd := lookup[vk.PhysicalDevice](d.objects, physical)

	queueInfos := make([]vk.DeviceQueueCreateInfo, 0, len(info.Queues))
	for _, q := range info.Queues {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: q.Family,
			QueueCount:       uint32(len(q.Priorities)),
			PQueuePriorities: q.Priorities,
		})
	}

	extensions := cstrings(info.Extensions)
	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}
	if info.Features != nil {
		dci.PEnabledFeatures = []vk.PhysicalDeviceFeatures{featuresTo(*info.Features)}
	}

	var device vk.Device
	if err := check("CreateDevice", vk.CreateDevice(pd, &dci, nil, &device)); err != nil {
		return vkr.NullHandle, err
	}
	h := d.objects.put(device)

	d.mu.Lock()
	d.physical[h] = pd
	d.mu.Unlock()
	return h, nil
}

// DestroyDevice implements vkr.Driver.
func (d *Driver) DestroyDevice(device vkr.Handle) {
	vk.DestroyDevice(lookup[vk.Device](d.objects, device), nil)
	d.objects.drop(device)

	d.mu.Lock()
	delete(d.physical, device)
	d.mu.Unlock()
}

// DeviceQueue implements vkr.Driver.
func (d *Driver) DeviceQueue(device vkr.Handle, family, index uint32) vkr.Handle {
	var queue vk.Queue
	vk.GetDeviceQueue(lookup[vk.Device](d.objects, device), family, index, &queue)
	return d.objects.put(queue)
}

// DeviceWaitIdle implements vkr.Driver.
func (d *Driver) DeviceWaitIdle(device vkr.Handle) error {
	return check("DeviceWaitIdle", vk.DeviceWaitIdle(lookup[vk.Device](d.objects, device)))
}

// CreateSwapchain implements vkr.Driver.
func (d *Driver) CreateSwapchain(device vkr.Handle, info vkr.SwapchainCreateInfo) (vkr.Handle, error) {
	scci := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          lookup[vk.Surface](d.objects, info.Surface),
		MinImageCount:    info.MinImageCount,
		ImageFormat:      vk.Format(info.Format),
		ImageColorSpace:  vk.ColorSpace(info.ColorSpace),
		ImageExtent:      extentTo(info.Extent),
		ImageArrayLayers: info.ArrayLayers,
		ImageUsage:       vk.ImageUsageFlags(info.Usage),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     vk.SurfaceTransformFlagBits(info.PreTransform),
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentMode(info.PresentMode),
		Clipped:          bool32(info.Clipped),
		OldSwapchain:     lookup[vk.Swapchain](d.objects, info.OldSwapchain),
	}
	if info.Concurrent {
		scci.ImageSharingMode = vk.SharingModeConcurrent
		scci.QueueFamilyIndexCount = uint32(len(info.QueueFamilies))
		scci.PQueueFamilyIndices = info.QueueFamilies
	}

	var swapchain vk.Swapchain
	if err := check("CreateSwapchain", vk.CreateSwapchain(lookup[vk.Device](d.objects, device), &scci, nil, &swapchain)); err != nil {
		return vkr.NullHandle, err
	}
	return d.objects.put(swapchain), nil
}

// DestroySwapchain implements vkr.Driver.
func (d *Driver) DestroySwapchain(device, swapchain vkr.Handle) {
	vk.DestroySwapchain(lookup[vk.Device](d.objects, device), lookup[vk.Swapchain](d.objects, swapchain), nil)
	d.objects.drop(swapchain)

	d.mu.Lock()
	images := d.swapchainImages[swapchain]
	delete(d.swapchainImages, swapchain)
	d.mu.Unlock()
	for _, image := range images {
		d.objects.drop(image)
	}
}

// SwapchainImages implements vkr.Driver.
func (d *Driver) SwapchainImages(device, swapchain vkr.Handle) ([]vkr.Handle, error) {
	vd := lookup[vk.Device](d.objects, device)
	vs := lookup[vk.Swapchain](d.objects, swapchain)

	var count uint32
	if err := check("GetSwapchainImages", vk.GetSwapchainImages(vd, vs, &count, nil)); err != nil {
		return nil, err
	}
	images := make([]vk.Image, count)
	if err := check("GetSwapchainImages", vk.GetSwapchainImages(vd, vs, &count, images)); err != nil {
		return nil, err
	}
	handles := make([]vkr.Handle, 0, count)
	for _, image := range images[:count] {
		handles = append(handles, d.objects.put(image))
	}

	d.mu.Lock()
	d.swapchainImages[swapchain] = handles
	d.mu.Unlock()
	return handles, nil
}

// AcquireNextImage implements vkr.Driver. A suboptimal swapchain still
// yields a usable index alongside the error.
func (d *Driver) AcquireNextImage(device, swapchain vkr.Handle, timeout time.Duration, semaphore, fence vkr.Handle) (uint32, error) {
	var index uint32
	r := vk.AcquireNextImage(
		lookup[vk.Device](d.objects, device),
		lookup[vk.Swapchain](d.objects, swapchain),
		nanos(timeout),
		lookup[vk.Semaphore](d.objects, semaphore),
		lookup[vk.Fence](d.objects, fence),
		&index)
	return index, check("AcquireNextImage", r)
}

// CreateImage implements vkr.Driver.
func (d *Driver) CreateImage(device vkr.Handle, info vkr.ImageCreateInfo) (vkr.Handle, vkr.Handle, error) {
	vd := lookup[vk.Device](d.objects, device)
	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.Format(info.Format),
		Extent: vk.Extent3D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(info.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var image vk.Image
	if err := check("CreateImage", vk.CreateImage(vd, &ici, nil, &image)); err != nil {
		return vkr.NullHandle, vkr.NullHandle, err
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(vd, image, &req)
	req.Deref()

	memory, err := d.allocate(device, req, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(vd, image, nil)
		return vkr.NullHandle, vkr.NullHandle, err
	}
	if err := check("BindImageMemory", vk.BindImageMemory(vd, image, memory, 0)); err != nil {
		vk.FreeMemory(vd, memory, nil)
		vk.DestroyImage(vd, image, nil)
		return vkr.NullHandle, vkr.NullHandle, err
	}
	return d.objects.put(image), d.objects.put(memory), nil
}

// DestroyImage implements vkr.Driver.
func (d *Driver) DestroyImage(device, image vkr.Handle) {
	vk.DestroyImage(lookup[vk.Device](d.objects, device), lookup[vk.Image](d.objects, image), nil)
	d.objects.drop(image)
}

// CreateImageView implements vkr.Driver.
func (d *Driver) CreateImageView(device vkr.Handle, info vkr.ImageViewCreateInfo) (vkr.Handle, error) {
	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	if info.Depth {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    lookup[vk.Image](d.objects, info.Image),
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(info.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var view vk.ImageView
	if err := check("CreateImageView", vk.CreateImageView(lookup[vk.Device](d.objects, device), &ivci, nil, &view)); err != nil {
		return vkr.NullHandle, err
	}
	return d.objects.put(view), nil
}

// DestroyImageView implements vkr.Driver.
func (d *Driver) DestroyImageView(device, view vkr.Handle) {
	vk.DestroyImageView(lookup[vk.Device](d.objects, device), lookup[vk.ImageView](d.objects, view), nil)
	d.objects.drop(view)
}

// FreeMemory implements vkr.Driver.
func (d *Driver) FreeMemory(device, memory vkr.Handle) {
	vk.FreeMemory(lookup[vk.Device](d.objects, device), lookup[vk.DeviceMemory](d.objects, memory), nil)
	d.objects.drop(memory)
}

// CreateRenderPass implements vkr.Driver.
func (d *Driver) CreateRenderPass(device vkr.Handle, info vkr.RenderPassCreateInfo) (vkr.Handle, error) {
	var (
		attachments []vk.AttachmentDescription
		colorRefs   []vk.AttachmentReference
		depthRef    *vk.AttachmentReference
	)
	for i, a := range info.Attachments {
		if a.DepthStencil {
			attachments = append(attachments, vk.AttachmentDescription{
				Format:         vk.Format(a.Format),
				Samples:        vk.SampleCount1Bit,
				LoadOp:         vk.AttachmentLoadOpClear,
				StoreOp:        vk.AttachmentStoreOpDontCare,
				StencilLoadOp:  vk.AttachmentLoadOpDontCare,
				StencilStoreOp: vk.AttachmentStoreOpDontCare,
				InitialLayout:  vk.ImageLayoutUndefined,
				FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
			})
			depthRef = &vk.AttachmentReference{
				Attachment: uint32(i),
				Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
			}
			continue
		}
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         vk.Format(a.Format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutPresentSrc,
		})
		colorRefs = append(colorRefs, vk.AttachmentReference{
			Attachment: uint32(i),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
	}

	stages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	access := vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit)
	if depthRef != nil {
		stages |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
		access |= vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorRefs)),
		PColorAttachments:       colorRefs,
		PDepthStencilAttachment: depthRef,
	}
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  stages,
		DstStageMask:  stages,
		DstAccessMask: access,
	}
	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var renderPass vk.RenderPass
	if err := check("CreateRenderPass", vk.CreateRenderPass(lookup[vk.Device](d.objects, device), &rpci, nil, &renderPass)); err != nil {
		return vkr.NullHandle, err
	}
	return d.objects.put(renderPass), nil
}

// DestroyRenderPass implements vkr.Driver.
func (d *Driver) DestroyRenderPass(device, renderPass vkr.Handle) {
	vk.DestroyRenderPass(lookup[vk.Device](d.objects, device), lookup[vk.RenderPass](d.objects, renderPass), nil)
	d.objects.drop(renderPass)
}

// CreateFramebuffer implements vkr.Driver.
func (d *Driver) CreateFramebuffer(device vkr.Handle, info vkr.FramebufferCreateInfo) (vkr.Handle, error) {
	layers := info.Layers
	if layers == 0 {
		layers = 1
	}
	attachments := lookupAll[vk.ImageView](d.objects, info.Attachments)
	fci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      lookup[vk.RenderPass](d.objects, info.RenderPass),
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           info.Extent.Width,
		Height:          info.Extent.Height,
		Layers:          layers,
	}

	var framebuffer vk.Framebuffer
	if err := check("CreateFramebuffer", vk.CreateFramebuffer(lookup[vk.Device](d.objects, device), &fci, nil, &framebuffer)); err != nil {
		return vkr.NullHandle, err
	}
	return d.objects.put(framebuffer), nil
}

// DestroyFramebuffer implements vkr.Driver.
func (d *Driver) DestroyFramebuffer(device, framebuffer vkr.Handle) {
	vk.DestroyFramebuffer(lookup[vk.Device](d.objects, device), lookup[vk.Framebuffer](d.objects, framebuffer), nil)
	d.objects.drop(framebuffer)
}

// CreateFence implements vkr.Driver.
func (d *Driver) CreateFence(device vkr.Handle, signaled bool) (vkr.Handle, error) {
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	if err := check("CreateFence", vk.CreateFence(lookup[vk.Device](d.objects, device), &fci, nil, &fence)); err != nil {
		return vkr.NullHandle, err
	}
	return d.objects.put(fence), nil
}

// DestroyFence implements vkr.Driver.
func (d *Driver) DestroyFence(device, fence vkr.Handle) {
	vk.DestroyFence(lookup[vk.Device](d.objects, device), lookup[vk.Fence](d.objects, fence), nil)
	d.objects.drop(fence)
}

// WaitForFences implements vkr.Driver.
func (d *Driver) WaitForFences(device vkr.Handle, fences []vkr.Handle, waitAll bool, timeout time.Duration) error {
	vf := lookupAll[vk.Fence](d.objects, fences)
	r := vk.WaitForFences(lookup[vk.Device](d.objects, device), uint32(len(vf)), vf, bool32(waitAll), nanos(timeout))
	return check("WaitForFences", r)
}

// ResetFences implements vkr.Driver.
func (d *Driver) ResetFences(device vkr.Handle, fences []vkr.Handle) error {
	vf := lookupAll[vk.Fence](d.objects, fences)
	return check("ResetFences", vk.ResetFences(lookup[vk.Device](d.objects, device), uint32(len(vf)), vf))
}

// FenceStatus implements vkr.Driver.
func (d *Driver) FenceStatus(device, fence vkr.Handle) (bool, error) {
	r := vk.GetFenceStatus(lookup[vk.Device](d.objects, device), lookup[vk.Fence](d.objects, fence))
	switch r {
	case vk.Success:
		return true, nil
	case vk.NotReady:
		return false, nil
	}
	return false, check("GetFenceStatus", r)
}

// CreateSemaphore implements vkr.Driver.
func (d *Driver) CreateSemaphore(device vkr.Handle) (vkr.Handle, error) {
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	var semaphore vk.Semaphore
	if err := check("CreateSemaphore", vk.CreateSemaphore(lookup[vk.Device](d.objects, device), &sci, nil, &semaphore)); err != nil {
		return vkr.NullHandle, err
	}
	return d.objects.put(semaphore), nil
}

// DestroySemaphore implements vkr.Driver.
func (d *Driver) DestroySemaphore(device, semaphore vkr.Handle) {
	vk.DestroySemaphore(lookup[vk.Device](d.objects, device), lookup[vk.Semaphore](d.objects, semaphore), nil)
	d.objects.drop(semaphore)
}

// CreateBuffer implements vkr.Driver.
func (d *Driver) CreateBuffer(device vkr.Handle, size uint64, usage vkr.BufferUsage) (vkr.Handle, vkr.Handle, error) {
	vd := lookup[vk.Device](d.objects, device)
	bci := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}

	var buffer vk.Buffer
	if err := check("CreateBuffer", vk.CreateBuffer(vd, &bci, nil, &buffer)); err != nil {
		return vkr.NullHandle, vkr.NullHandle, err
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(vd, buffer, &req)
	req.Deref()

	memory, err := d.allocate(device, req,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		vk.DestroyBuffer(vd, buffer, nil)
		return vkr.NullHandle, vkr.NullHandle, err
	}
	if err := check("BindBufferMemory", vk.BindBufferMemory(vd, buffer, memory, 0)); err != nil {
		vk.FreeMemory(vd, memory, nil)
		vk.DestroyBuffer(vd, buffer, nil)
		return vkr.NullHandle, vkr.NullHandle, err
	}
	return d.objects.put(buffer), d.objects.put(memory), nil
}

// DestroyBuffer implements vkr.Driver.
func (d *Driver) DestroyBuffer(device, buffer vkr.Handle) {
	vk.DestroyBuffer(lookup[vk.Device](d.objects, device), lookup[vk.Buffer](d.objects, buffer), nil)
	d.objects.drop(buffer)
}

// MapMemory implements vkr.Driver. The returned slice aliases the
// mapping and is only valid until UnmapMemory.
func (d *Driver) MapMemory(device, memory vkr.Handle, offset, size uint64) ([]byte, error) {
	var data unsafe.Pointer
	r := vk.MapMemory(lookup[vk.Device](d.objects, device), lookup[vk.DeviceMemory](d.objects, memory),
		vk.DeviceSize(offset), vk.DeviceSize(size), 0, &data)
	if err := check("MapMemory", r); err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(data), size), nil
}

// UnmapMemory implements vkr.Driver.
func (d *Driver) UnmapMemory(device, memory vkr.Handle) {
	vk.UnmapMemory(lookup[vk.Device](d.objects, device), lookup[vk.DeviceMemory](d.objects, memory))
}

// allocate allocates memory of a type allowed by req having props.
func (d *Driver) allocate(device vkr.Handle, req vk.MemoryRequirements, props vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	d.mu.Lock()
	pd := d.physical[device]
	d.mu.Unlock()

	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &memProperties)
	memProperties.Deref()

	var memory vk.DeviceMemory
	memoryType, err := findMemoryType(memProperties, req.MemoryTypeBits, props)
	if err != nil {
		return memory, err
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memoryType,
	}
	if err := check("AllocateMemory", vk.AllocateMemory(lookup[vk.Device](d.objects, device), &mai, nil, &memory)); err != nil {
		return memory, err
	}
	return memory, nil
}

func findMemoryType(memProperties vk.PhysicalDeviceMemoryProperties, filter uint32, props vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < memProperties.MemoryTypeCount; i++ {
		memProperties.MemoryTypes[i].Deref()
		if filter&(1<<i) != 0 && memProperties.MemoryTypes[i].PropertyFlags&props == props {
			return i, nil
		}
	}
	return 0, &vkr.ResultError{
		Op:     "vk.AllocateMemory()",
		Result: vkr.ErrorOutOfDeviceMemory,
		Cause:  errors.Newf("no memory type in %#b with properties %#x", filter, uint32(props)),
	}
}
