// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkapi

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/koru3d/engine/gfx"
	"github.com/koru3d/engine/gfx/vkr"
)

// EnumerateInstanceLayers implements vkr.Driver.
func (d *Driver) EnumerateInstanceLayers() ([]string, error) {
	var count uint32
	if err := check("EnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return nil, err
	}
	layers := make([]vk.LayerProperties, count)
	if err := check("EnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, layers)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, layer := range layers[:count] {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}

// EnumerateInstanceExtensions implements vkr.Driver.
func (d *Driver) EnumerateInstanceExtensions() ([]string, error) {
	var count uint32
	if err := check("EnumerateInstanceExtensionProperties", vk.EnumerateInstanceExtensionProperties("", &count, nil)); err != nil {
		return nil, err
	}
	extensions := make([]vk.ExtensionProperties, count)
	if err := check("EnumerateInstanceExtensionProperties", vk.EnumerateInstanceExtensionProperties("", &count, extensions)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range extensions[:count] {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// CreateInstance implements vkr.Driver. The binding cannot chain a
// messenger into instance creation, so the debug chain only serves the
// messenger created right after.
func (d *Driver) CreateInstance(info vkr.InstanceCreateInfo) (vkr.Handle, error) {
	if info.Debug != nil && info.Debug.Validation != nil {
		vkr.Logger().Debug("extended validation is not supported by the vulkan-go binding")
	}

	extensions := cstrings(info.Extensions)
	layers := cstrings(info.Layers)
	ici := vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(info.APIVersion),
			ApplicationVersion: uint32(info.ApplicationVersion),
			EngineVersion:      uint32(info.EngineVersion),
			PApplicationName:   safeString(info.ApplicationName),
			PEngineName:        safeString(info.EngineName),
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}

	var instance vk.Instance
	if err := check("CreateInstance", vk.CreateInstance(&ici, nil, &instance)); err != nil {
		return vkr.NullHandle, err
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return vkr.NullHandle, errors.Wrap(err, "vk.InitInstance()")
	}
	return d.objects.put(instance), nil
}

// DestroyInstance implements vkr.Driver.
func (d *Driver) DestroyInstance(instance vkr.Handle) {
	vk.DestroyInstance(lookup[vk.Instance](d.objects, instance), nil)
	d.objects.drop(instance)
}

// EnumeratePhysicalDevices implements vkr.Driver.
func (d *Driver) EnumeratePhysicalDevices(instance vkr.Handle) ([]vkr.Handle, error) {
	vi := lookup[vk.Instance](d.objects, instance)

	var count uint32
	if err := check("EnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(vi, &count, nil)); err != nil {
		return nil, err
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := check("EnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(vi, &count, devices)); err != nil {
		return nil, err
	}
	handles := make([]vkr.Handle, 0, count)
	for _, pd := range devices[:count] {
		handles = append(handles, d.objects.put(pd))
	}
	return handles, nil
}

// PhysicalDeviceProperties implements vkr.Driver.
func (d *Driver) PhysicalDeviceProperties(physical vkr.Handle) (vkr.PhysicalDeviceProperties, error) {
	pd := lookup[vk.PhysicalDevice](d.objects, physical)

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &props)
	props.Deref()
	props.Limits.Deref()

	out := vkr.PhysicalDeviceProperties{
		Name:          vk.ToString(props.DeviceName[:]),
		Type:          vkr.DeviceType(props.DeviceType),
		APIVersion:    vkr.Version(props.ApiVersion),
		DriverVersion: props.DriverVersion,
		VendorID:      props.VendorID,
		DeviceID:      props.DeviceID,
		Limits: vkr.Limits{
			MaxImageDimension2D:            props.Limits.MaxImageDimension2D,
			MaxComputeWorkGroupInvocations: props.Limits.MaxComputeWorkGroupInvocations,
			MaxPushConstantsSize:           props.Limits.MaxPushConstantsSize,
			MaxBoundDescriptorSets:         props.Limits.MaxBoundDescriptorSets,
			MaxFramebufferWidth:            props.Limits.MaxFramebufferWidth,
			MaxFramebufferHeight:           props.Limits.MaxFramebufferHeight,
		},
	}

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(pd, &features)
	features.Deref()
	out.Features = featuresFrom(features)

	var memory vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &memory)
	memory.Deref()
	for i := uint32(0); i < memory.MemoryHeapCount; i++ {
		memory.MemoryHeaps[i].Deref()
		heap := memory.MemoryHeaps[i]
		out.MemoryHeaps = append(out.MemoryHeaps, vkr.MemoryHeap{
			Size:        uint64(heap.Size),
			DeviceLocal: heap.Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0,
		})
	}

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, families)
	for _, family := range families[:familyCount] {
		family.Deref()
		out.QueueFamilies = append(out.QueueFamilies, vkr.QueueFamilyProperties{
			Flags:      vkr.QueueFlags(family.QueueFlags),
			QueueCount: family.QueueCount,
		})
	}

	var extCount uint32
	if err := check("EnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(pd, "", &extCount, nil)); err != nil {
		return out, err
	}
	extensions := make([]vk.ExtensionProperties, extCount)
	if err := check("EnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(pd, "", &extCount, extensions)); err != nil {
		return out, err
	}
	for _, ext := range extensions[:extCount] {
		ext.Deref()
		out.Extensions = append(out.Extensions, vk.ToString(ext.ExtensionName[:]))
	}
	return out, nil
}

// CreateSurface implements vkr.Driver.
func (d *Driver) CreateSurface(instance vkr.Handle, source vkr.SurfaceSource) (vkr.Handle, error) {
	ptr, err := source.VulkanSurface(lookup[vk.Instance](d.objects, instance))
	if err != nil {
		return vkr.NullHandle, &vkr.ResultError{Op: "vk.CreateSurface()", Result: vkr.ErrorInitializationFailed, Cause: err}
	}
	return d.objects.put(vk.SurfaceFromPointer(ptr)), nil
}

// DestroySurface implements vkr.Driver.
func (d *Driver) DestroySurface(instance, surface vkr.Handle) {
	vk.DestroySurface(lookup[vk.Instance](d.objects, instance), lookup[vk.Surface](d.objects, surface), nil)
	d.objects.drop(surface)
}

// SurfaceSupport implements vkr.Driver.
func (d *Driver) SurfaceSupport(physical vkr.Handle, family uint32, surface vkr.Handle) (bool, error) {
	var supported vk.Bool32
	r := vk.GetPhysicalDeviceSurfaceSupport(lookup[vk.PhysicalDevice](d.objects, physical), family,
		lookup[vk.Surface](d.objects, surface), &supported)
	if err := check("GetPhysicalDeviceSurfaceSupport", r); err != nil {
		return false, err
	}
	return supported.B(), nil
}

// SurfaceCapabilities implements vkr.Driver.
func (d *Driver) SurfaceCapabilities(physical, surface vkr.Handle) (vkr.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	r := vk.GetPhysicalDeviceSurfaceCapabilities(lookup[vk.PhysicalDevice](d.objects, physical),
		lookup[vk.Surface](d.objects, surface), &caps)
	if err := check("GetPhysicalDeviceSurfaceCapabilities", r); err != nil {
		return vkr.SurfaceCapabilities{}, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	return vkr.SurfaceCapabilities{
		MinImageCount:       caps.MinImageCount,
		MaxImageCount:       caps.MaxImageCount,
		CurrentExtent:       extentFrom(caps.CurrentExtent),
		MinImageExtent:      extentFrom(caps.MinImageExtent),
		MaxImageExtent:      extentFrom(caps.MaxImageExtent),
		MaxImageArrayLayers: caps.MaxImageArrayLayers,
		CurrentTransform:    uint32(caps.CurrentTransform),
		SupportedUsage:      vkr.ImageUsage(caps.SupportedUsageFlags),
	}, nil
}

// SurfaceFormats implements vkr.Driver.
func (d *Driver) SurfaceFormats(physical, surface vkr.Handle) ([]vkr.SurfaceFormat, error) {
	pd := lookup[vk.PhysicalDevice](d.objects, physical)
	vs := lookup[vk.Surface](d.objects, surface)

	var count uint32
	if err := check("GetPhysicalDeviceSurfaceFormats", vk.GetPhysicalDeviceSurfaceFormats(pd, vs, &count, nil)); err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, count)
	if err := check("GetPhysicalDeviceSurfaceFormats", vk.GetPhysicalDeviceSurfaceFormats(pd, vs, &count, formats)); err != nil {
		return nil, err
	}
	out := make([]vkr.SurfaceFormat, 0, count)
	for _, f := range formats[:count] {
		f.Deref()
		out = append(out, vkr.SurfaceFormat{Format: vkr.Format(f.Format), ColorSpace: vkr.ColorSpace(f.ColorSpace)})
	}
	return out, nil
}

// SurfacePresentModes implements vkr.Driver.
func (d *Driver) SurfacePresentModes(physical, surface vkr.Handle) ([]vkr.PresentMode, error) {
	pd := lookup[vk.PhysicalDevice](d.objects, physical)
	vs := lookup[vk.Surface](d.objects, surface)

	var count uint32
	if err := check("GetPhysicalDeviceSurfacePresentModes", vk.GetPhysicalDeviceSurfacePresentModes(pd, vs, &count, nil)); err != nil {
		return nil, err
	}
	modes := make([]vk.PresentMode, count)
	if err := check("GetPhysicalDeviceSurfacePresentModes", vk.GetPhysicalDeviceSurfacePresentModes(pd, vs, &count, modes)); err != nil {
		return nil, err
	}
	out := make([]vkr.PresentMode, 0, count)
	for _, m := range modes[:count] {
		out = append(out, vkr.PresentMode(m))
	}
	return out, nil
}

func extentFrom(e vk.Extent2D) gfx.Extent2D {
	return gfx.Extent2D{Width: e.Width, Height: e.Height}
}

func extentTo(e gfx.Extent2D) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}

func featuresFrom(f vk.PhysicalDeviceFeatures) vkr.Features {
	return vkr.Features{
		GeometryShader:     f.GeometryShader.B(),
		TessellationShader: f.TessellationShader.B(),
		SamplerAnisotropy:  f.SamplerAnisotropy.B(),
		MultiDrawIndirect:  f.MultiDrawIndirect.B(),
		FillModeNonSolid:   f.FillModeNonSolid.B(),
		WideLines:          f.WideLines.B(),
		LargePoints:        f.LargePoints.B(),
		DepthClamp:         f.DepthClamp.B(),
		MultiViewport:      f.MultiViewport.B(),
		ShaderFloat64:      f.ShaderFloat64.B(),
		ShaderInt64:        f.ShaderInt64.B(),
		TextureCompression: f.TextureCompressionBC.B(),
	}
}

func featuresTo(f vkr.Features) vk.PhysicalDeviceFeatures {
	return vk.PhysicalDeviceFeatures{
		GeometryShader:       bool32(f.GeometryShader),
		TessellationShader:   bool32(f.TessellationShader),
		SamplerAnisotropy:    bool32(f.SamplerAnisotropy),
		MultiDrawIndirect:    bool32(f.MultiDrawIndirect),
		FillModeNonSolid:     bool32(f.FillModeNonSolid),
		WideLines:            bool32(f.WideLines),
		LargePoints:          bool32(f.LargePoints),
		DepthClamp:           bool32(f.DepthClamp),
		MultiViewport:        bool32(f.MultiViewport),
		ShaderFloat64:        bool32(f.ShaderFloat64),
		ShaderInt64:          bool32(f.ShaderInt64),
		TextureCompressionBC: bool32(f.TextureCompression),
	}
}
