// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"reflect"
	"strings"

	"github.com/koru3d/engine/gfx"
)

// QueueFlags is a set of queue capabilities.
type QueueFlags uint32

// Queue capabilities, numerically equal to the native ones.
const (
	QueueGraphics      QueueFlags = 1 << 0
	QueueCompute       QueueFlags = 1 << 1
	QueueTransfer      QueueFlags = 1 << 2
	QueueSparseBinding QueueFlags = 1 << 3
)

// Has reports whether all of other's bits are set in f.
func (f QueueFlags) Has(other QueueFlags) bool {
	return f&other == other
}

// Bits splits the set into single capability flags, lowest first.
func (f QueueFlags) Bits() []QueueFlags {
	var bits []QueueFlags
	for bit := QueueGraphics; bit <= QueueSparseBinding; bit <<= 1 {
		if f&bit != 0 {
			bits = append(bits, bit)
		}
	}
	return bits
}

func (f QueueFlags) String() string {
	var names []string
	if f&QueueGraphics != 0 {
		names = append(names, "graphics")
	}
	if f&QueueCompute != 0 {
		names = append(names, "compute")
	}
	if f&QueueTransfer != 0 {
		names = append(names, "transfer")
	}
	if f&QueueSparseBinding != 0 {
		names = append(names, "sparse")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// DeviceType classifies a physical device.
type DeviceType int32

// Device types, numerically equal to the native ones.
const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeIntegratedGPU
	DeviceTypeDiscreteGPU
	DeviceTypeVirtualGPU
	DeviceTypeCPU
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeIntegratedGPU:
		return "integrated"
	case DeviceTypeDiscreteGPU:
		return "discrete"
	case DeviceTypeVirtualGPU:
		return "virtual"
	case DeviceTypeCPU:
		return "cpu"
	}
	return "other"
}

// Features is the subset of device features the engine negotiates.
type Features struct {
	GeometryShader     bool
	TessellationShader bool
	SamplerAnisotropy  bool
	MultiDrawIndirect  bool
	FillModeNonSolid   bool
	WideLines          bool
	LargePoints        bool
	DepthClamp         bool
	MultiViewport      bool
	ShaderFloat64      bool
	ShaderInt64        bool
	TextureCompression bool
}

// Missing compares every requested feature against available and
// returns the names of those requested but not available.
func (f Features) Missing(available Features) []string {
	var missing []string
	requested := reflect.ValueOf(f)
	have := reflect.ValueOf(available)
	for i := 0; i < requested.NumField(); i++ {
		if requested.Field(i).Bool() && !have.Field(i).Bool() {
			missing = append(missing, requested.Type().Field(i).Name)
		}
	}
	return missing
}

// Intersect returns the features requested in f that are also available.
func (f Features) Intersect(available Features) Features {
	out := f
	v := reflect.ValueOf(&out).Elem()
	have := reflect.ValueOf(available)
	for i := 0; i < v.NumField(); i++ {
		v.Field(i).SetBool(v.Field(i).Bool() && have.Field(i).Bool())
	}
	return out
}

// Limits is the subset of device limits the engine reads.
type Limits struct {
	MaxImageDimension2D            uint32
	MaxComputeWorkGroupInvocations uint32
	MaxPushConstantsSize           uint32
	MaxBoundDescriptorSets         uint32
	MaxFramebufferWidth            uint32
	MaxFramebufferHeight           uint32
}

// MemoryHeap describes one memory heap of a device.
type MemoryHeap struct {
	Size        uint64
	DeviceLocal bool
}

// QueueFamilyProperties describes one queue family of a device.
type QueueFamilyProperties struct {
	Flags      QueueFlags
	QueueCount uint32
}

// PhysicalDeviceProperties aggregates everything queried
// from a physical device at construction.
type PhysicalDeviceProperties struct {
	Name          string
	Type          DeviceType
	APIVersion    Version
	DriverVersion uint32
	VendorID      uint32
	DeviceID      uint32
	Limits        Limits
	Features      Features
	MemoryHeaps   []MemoryHeap
	QueueFamilies []QueueFamilyProperties
	Extensions    []string
}

// Format is a native image format.
type Format int32

// Formats used by the engine, numerically equal to the native ones.
const (
	FormatUndefined          Format = 0
	FormatR8G8B8A8Unorm      Format = 37
	FormatR8G8B8A8Srgb       Format = 43
	FormatB8G8R8A8Unorm      Format = 44
	FormatB8G8R8A8Srgb       Format = 50
	FormatR32G32Sfloat       Format = 103
	FormatR32G32B32Sfloat    Format = 106
	FormatR32G32B32A32Sfloat Format = 109
	FormatD16Unorm           Format = 124
	FormatD32Sfloat          Format = 126
	FormatD24UnormS8Uint     Format = 129
)

// IsDepth reports whether the format has a depth component.
func (f Format) IsDepth() bool {
	switch f {
	case FormatD16Unorm, FormatD32Sfloat, FormatD24UnormS8Uint:
		return true
	}
	return false
}

// ColorSpace is a native presentation color space.
type ColorSpace int32

// ColorSpaceSRGBNonlinear is the only color space every surface supports.
const ColorSpaceSRGBNonlinear ColorSpace = 0

// SurfaceFormat pairs a format with a color space.
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// PresentMode is a native presentation mode.
type PresentMode int32

// Presentation modes, numerically equal to the native ones.
const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFIFO        PresentMode = 2
	PresentModeFIFORelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFIFO:
		return "fifo"
	case PresentModeFIFORelaxed:
		return "fifo-relaxed"
	}
	return "unknown"
}

// ParsePresentMode is the inverse of PresentMode.String.
func ParsePresentMode(s string) (PresentMode, bool) {
	for _, m := range []PresentMode{PresentModeImmediate, PresentModeMailbox, PresentModeFIFO, PresentModeFIFORelaxed} {
		if m.String() == s {
			return m, true
		}
	}
	return PresentModeFIFO, false
}

// ImageUsage is a set of native image usage flags.
type ImageUsage uint32

// Image usages, numerically equal to the native ones.
const (
	ImageUsageTransferSrc            ImageUsage = 0x01
	ImageUsageTransferDst            ImageUsage = 0x02
	ImageUsageSampled                ImageUsage = 0x04
	ImageUsageStorage                ImageUsage = 0x08
	ImageUsageColorAttachment        ImageUsage = 0x10
	ImageUsageDepthStencilAttachment ImageUsage = 0x20
)

// BufferUsage is a set of native buffer usage flags.
type BufferUsage uint32

// Buffer usages, numerically equal to the native ones.
const (
	BufferUsageTransferSrc BufferUsage = 0x01
	BufferUsageTransferDst BufferUsage = 0x02
	BufferUsageUniform     BufferUsage = 0x10
	BufferUsageStorage     BufferUsage = 0x20
	BufferUsageIndex       BufferUsage = 0x40
	BufferUsageVertex      BufferUsage = 0x80
)

// IndexType selects the width of index buffer entries.
type IndexType int32

// Index widths.
const (
	IndexTypeUint16 IndexType = 0
	IndexTypeUint32 IndexType = 1
)

// SurfaceCapabilities describes what a surface allows on a given device.
type SurfaceCapabilities struct {
	MinImageCount uint32

	// MaxImageCount of zero means there is no upper bound.
	MaxImageCount uint32

	// CurrentExtent is UndefinedExtent when the surface size
	// is determined by the swapchain.
	CurrentExtent       gfx.Extent2D
	MinImageExtent      gfx.Extent2D
	MaxImageExtent      gfx.Extent2D
	MaxImageArrayLayers uint32
	CurrentTransform    uint32
	SupportedUsage      ImageUsage
}

// UndefinedExtent is the currentExtent sentinel.
var UndefinedExtent = gfx.Extent2D{Width: 0xFFFFFFFF, Height: 0xFFFFFFFF}

// Viewport is a native viewport.
type Viewport struct {
	X, Y, Width, Height, MinDepth, MaxDepth float32
}

// Rect2D is a native integer rectangle.
type Rect2D struct {
	X, Y   int32
	Extent gfx.Extent2D
}

// FullViewport covers the whole extent with the [0, 1] depth range.
func FullViewport(extent gfx.Extent2D) Viewport {
	return Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
}

// FullScissor covers the whole extent.
func FullScissor(extent gfx.Extent2D) Rect2D {
	return Rect2D{Extent: extent}
}

// ObjectType identifies the kind of a named object for debug naming.
type ObjectType int32

// Object kinds that can be named.
const (
	ObjectTypeUnknown        ObjectType = 0
	ObjectTypeInstance       ObjectType = 1
	ObjectTypePhysicalDevice ObjectType = 2
	ObjectTypeDevice         ObjectType = 3
	ObjectTypeQueue          ObjectType = 4
	ObjectTypeSemaphore      ObjectType = 5
	ObjectTypeCommandBuffer  ObjectType = 6
	ObjectTypeFence          ObjectType = 7
	ObjectTypeBuffer         ObjectType = 9
	ObjectTypeImage          ObjectType = 10
	ObjectTypeImageView      ObjectType = 14
	ObjectTypeRenderPass     ObjectType = 18
	ObjectTypeFramebuffer    ObjectType = 24
	ObjectTypeCommandPool    ObjectType = 25
	ObjectTypeSwapchain      ObjectType = 1000001000
)
