// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkrtest provides an in-memory vkr.Driver for tests. It keeps
// track of every object it hands out, runs no GPU work and never blocks:
// waiting on an unsignaled fence times out immediately.
package vkrtest

import (
	"fmt"
	"sync"
	"time"

	"github.com/koru3d/engine/gfx"
	"github.com/koru3d/engine/gfx/vkr"
)

// Object kinds reported by Live.
const (
	KindInstance      = "instance"
	KindMessenger     = "messenger"
	KindSurface       = "surface"
	KindDevice        = "device"
	KindSwapchain     = "swapchain"
	KindImage         = "image"
	KindImageView     = "image-view"
	KindMemory        = "memory"
	KindRenderPass    = "render-pass"
	KindFramebuffer   = "framebuffer"
	KindFence         = "fence"
	KindSemaphore     = "semaphore"
	KindBuffer        = "buffer"
	KindCommandPool   = "command-pool"
	KindCommandBuffer = "command-buffer"
)

// PhysicalDevice is a canned GPU.
type PhysicalDevice struct {
	Properties vkr.PhysicalDeviceProperties

	// PresentFamilies can present to any surface. Nil means every family.
	PresentFamilies []uint32
}

func (pd PhysicalDevice) canPresent(family uint32) bool {
	if pd.PresentFamilies == nil {
		return true
	}
	for _, f := range pd.PresentFamilies {
		if f == family {
			return true
		}
	}
	return false
}

// GPU returns a device of the given type with one family serving
// graphics, compute and transfer, the swapchain extension and the
// common optional features.
func GPU(name string, typ vkr.DeviceType, memory uint64) PhysicalDevice {
	return PhysicalDevice{
		Properties: vkr.PhysicalDeviceProperties{
			Name:       name,
			Type:       typ,
			APIVersion: vkr.MakeVersion(1, 2, 0),
			VendorID:   0x10de,
			DeviceID:   0x1000,
			Limits: vkr.Limits{
				MaxImageDimension2D:  16384,
				MaxFramebufferWidth:  16384,
				MaxFramebufferHeight: 16384,
			},
			Features: vkr.Features{
				GeometryShader:     true,
				TessellationShader: true,
				SamplerAnisotropy:  true,
			},
			MemoryHeaps: []vkr.MemoryHeap{
				{Size: memory, DeviceLocal: true},
				{Size: 4 * vkr.GiB},
			},
			QueueFamilies: []vkr.QueueFamilyProperties{
				{Flags: vkr.QueueGraphics | vkr.QueueCompute | vkr.QueueTransfer, QueueCount: 4},
			},
			Extensions: []string{vkr.SwapchainExtensionName},
		},
	}
}

// DiscreteGPU is a discrete GPU with 8GiB of device local memory.
func DiscreteGPU(name string) PhysicalDevice {
	return GPU(name, vkr.DeviceTypeDiscreteGPU, 8*vkr.GiB)
}

// IntegratedGPU is an integrated GPU with 2GiB of device local memory.
func IntegratedGPU(name string) PhysicalDevice {
	return GPU(name, vkr.DeviceTypeIntegratedGPU, 2*vkr.GiB)
}

// Window is a fake window. It is safe for concurrent use.
type Window struct {
	mu      sync.Mutex
	size    gfx.Extent2D
	resized bool

	// Err is returned by VulkanSurface when set.
	Err error
}

// NewWindow returns a window of the given size.
func NewWindow(width, height uint32) *Window {
	return &Window{size: gfx.Extent2D{Width: width, Height: height}}
}

// Resize changes the framebuffer size and raises the resized flag.
func (w *Window) Resize(width, height uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.size = gfx.Extent2D{Width: width, Height: height}
	w.resized = true
}

// FramebufferSize implements gfx.Window.
func (w *Window) FramebufferSize() gfx.Extent2D {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Resized implements gfx.Window.
func (w *Window) Resized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.resized
	w.resized = false
	return r
}

// VulkanSurface implements vkr.SurfaceSource.
func (w *Window) VulkanSurface(instance interface{}) (uintptr, error) {
	if w.Err != nil {
		return 0, w.Err
	}
	return 1, nil
}

// Driver is an in-memory vkr.Driver. The exported fields describe the
// simulated system and may be changed between calls.
type Driver struct {
	Layers              []string
	InstanceExtensions  []string
	MessengerExtensions []string
	Devices             []PhysicalDevice

	Capabilities vkr.SurfaceCapabilities
	Formats      []vkr.SurfaceFormat
	PresentModes []vkr.PresentMode

	// ImageCountOverride sets the number of images a swapchain gets,
	// which is otherwise its minimum image count.
	ImageCountOverride uint32

	// DebugUtils makes ResolveDebugUtils succeed.
	DebugUtils bool

	mu       sync.Mutex
	next     vkr.Handle
	calls    []string
	fail     map[string]vkr.Result
	script   map[string][]vkr.Result
	live     map[vkr.Handle]string
	physical map[vkr.Handle]int
	queues   map[string]vkr.Handle

	fences      map[vkr.Handle]bool
	messengers  map[vkr.Handle]vkr.DebugCallback
	swapchains  map[vkr.Handle][]vkr.Handle
	acquired    map[vkr.Handle]uint32
	renderPass  map[vkr.Handle]vkr.RenderPassCreateInfo
	framebuffer map[vkr.Handle]vkr.FramebufferCreateInfo
	memory      map[vkr.Handle][]byte
	commands    map[vkr.Handle][]string
	pools       map[vkr.Handle]vkr.Handle
	labels      []string

	lastInstance  vkr.InstanceCreateInfo
	lastDevice    vkr.DeviceCreateInfo
	lastSwapchain vkr.SwapchainCreateInfo
	submits       []vkr.SubmitInfo
	presents      []vkr.PresentInfo
}

var _ vkr.Driver = (*Driver)(nil)

// New returns a driver with the validation layer, the debug and
// surface extensions, one discrete GPU and an 800x600 surface.
func New() *Driver {
	return &Driver{
		Layers:              []string{vkr.DefaultValidationLayer},
		InstanceExtensions:  []string{"VK_KHR_surface", "VK_EXT_debug_utils", vkr.ValidationFeaturesExtensionName},
		MessengerExtensions: []string{"VK_EXT_debug_utils"},
		Devices:             []PhysicalDevice{DiscreteGPU("gpu0")},
		Capabilities: vkr.SurfaceCapabilities{
			MinImageCount:       2,
			MaxImageCount:       8,
			CurrentExtent:       gfx.Extent2D{Width: 800, Height: 600},
			MinImageExtent:      gfx.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:      gfx.Extent2D{Width: 4096, Height: 4096},
			MaxImageArrayLayers: 1,
			SupportedUsage:      vkr.ImageUsageColorAttachment | vkr.ImageUsageTransferDst,
		},
		Formats: []vkr.SurfaceFormat{
			{Format: vkr.FormatB8G8R8A8Unorm, ColorSpace: vkr.ColorSpaceSRGBNonlinear},
			{Format: vkr.FormatB8G8R8A8Srgb, ColorSpace: vkr.ColorSpaceSRGBNonlinear},
		},
		PresentModes: []vkr.PresentMode{vkr.PresentModeFIFO, vkr.PresentModeMailbox},

		fail:        make(map[string]vkr.Result),
		script:      make(map[string][]vkr.Result),
		live:        make(map[vkr.Handle]string),
		physical:    make(map[vkr.Handle]int),
		queues:      make(map[string]vkr.Handle),
		fences:      make(map[vkr.Handle]bool),
		messengers:  make(map[vkr.Handle]vkr.DebugCallback),
		swapchains:  make(map[vkr.Handle][]vkr.Handle),
		acquired:    make(map[vkr.Handle]uint32),
		renderPass:  make(map[vkr.Handle]vkr.RenderPassCreateInfo),
		framebuffer: make(map[vkr.Handle]vkr.FramebufferCreateInfo),
		memory:      make(map[vkr.Handle][]byte),
		commands:    make(map[vkr.Handle][]string),
		pools:       make(map[vkr.Handle]vkr.Handle),
	}
}

// Fail makes every following call of op fail with r until Clear.
// Op is the driver method name, e.g. "CreateSwapchain".
func (d *Driver) Fail(op string, r vkr.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[op] = r
}

// Clear removes the failure set for op.
func (d *Driver) Clear(op string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.fail, op)
}

// Script queues results returned by the following calls of op, one
// per call. Supported for AcquireNextImage, QueuePresent and every
// call that can fail.
func (d *Driver) Script(op string, results ...vkr.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.script[op] = append(d.script[op], results...)
}

// Calls returns the names of all driver calls made so far.
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Count returns how many times op was called.
func (d *Driver) Count(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == op {
			n++
		}
	}
	return n
}

// Live returns the number of live objects of the given kinds,
// or of any kind when none are given.
func (d *Driver) Live(kinds ...string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(kinds) == 0 {
		return len(d.live)
	}
	n := 0
	for _, kind := range d.live {
		for _, k := range kinds {
			if kind == k {
				n++
			}
		}
	}
	return n
}

// Signal signals a fence as if the GPU finished the work it guards.
func (d *Driver) Signal(fence vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fences[fence] = true
}

// Emit delivers msg to every live messenger and returns whether
// any callback asked to abort.
func (d *Driver) Emit(msg vkr.DebugMessage) bool {
	d.mu.Lock()
	callbacks := make([]vkr.DebugCallback, 0, len(d.messengers))
	for _, cb := range d.messengers {
		callbacks = append(callbacks, cb)
	}
	d.mu.Unlock()

	abort := false
	for _, cb := range callbacks {
		abort = cb(msg) || abort
	}
	return abort
}

// Commands returns the commands recorded into buffer since it last began.
func (d *Driver) Commands(buffer vkr.Handle) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.commands[buffer]...)
}

// Labels returns every debug naming and labeling call.
func (d *Driver) Labels() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.labels...)
}

// Memory returns a copy of the contents of a memory allocation.
func (d *Driver) Memory(memory vkr.Handle) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.memory[memory]...)
}

// Framebuffers returns the create infos of the live framebuffers.
func (d *Driver) Framebuffers() []vkr.FramebufferCreateInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]vkr.FramebufferCreateInfo, 0, len(d.framebuffer))
	for _, info := range d.framebuffer {
		out = append(out, info)
	}
	return out
}

// LastInstance returns the create info of the latest instance.
func (d *Driver) LastInstance() vkr.InstanceCreateInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastInstance
}

// LastDevice returns the create info of the latest device.
func (d *Driver) LastDevice() vkr.DeviceCreateInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastDevice
}

// LastSwapchain returns the create info of the latest swapchain.
func (d *Driver) LastSwapchain() vkr.SwapchainCreateInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSwapchain
}

// Submits returns every queue submission.
func (d *Driver) Submits() []vkr.SubmitInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]vkr.SubmitInfo(nil), d.submits...)
}

// Presents returns every presentation request.
func (d *Driver) Presents() []vkr.PresentInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]vkr.PresentInfo(nil), d.presents...)
}

// call records op and returns the scripted or injected result.
// It must be called with d.mu held.
func (d *Driver) call(op string) vkr.Result {
	d.calls = append(d.calls, op)
	if queued := d.script[op]; len(queued) > 0 {
		d.script[op] = queued[1:]
		return queued[0]
	}
	if r, ok := d.fail[op]; ok {
		return r
	}
	return vkr.Success
}

func (d *Driver) check(op string) error {
	return vkr.CheckResult("vk."+op+"()", d.call(op))
}

func (d *Driver) create(kind string) vkr.Handle {
	d.next++
	d.live[d.next] = kind
	return d.next
}

func (d *Driver) destroy(h vkr.Handle, kind string) {
	if d.live[h] != kind {
		panic(fmt.Sprintf("vkrtest: destroying %s %d which is not a live %s", d.live[h], h, kind))
	}
	delete(d.live, h)
}

// EnumerateInstanceLayers implements vkr.Driver.
func (d *Driver) EnumerateInstanceLayers() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("EnumerateInstanceLayers"); err != nil {
		return nil, err
	}
	return append([]string(nil), d.Layers...), nil
}

// EnumerateInstanceExtensions implements vkr.Driver.
func (d *Driver) EnumerateInstanceExtensions() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("EnumerateInstanceExtensions"); err != nil {
		return nil, err
	}
	return append([]string(nil), d.InstanceExtensions...), nil
}

// DebugMessengerExtensions implements vkr.Driver.
func (d *Driver) DebugMessengerExtensions() []string {
	return d.MessengerExtensions
}

// CreateInstance implements vkr.Driver.
func (d *Driver) CreateInstance(info vkr.InstanceCreateInfo) (vkr.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateInstance"); err != nil {
		return vkr.NullHandle, err
	}
	for _, layer := range info.Layers {
		if !contains(d.Layers, layer) {
			return vkr.NullHandle, &vkr.ResultError{Op: "vk.CreateInstance()", Result: vkr.ErrorLayerNotPresent}
		}
	}
	for _, ext := range info.Extensions {
		if !contains(d.InstanceExtensions, ext) {
			return vkr.NullHandle, &vkr.ResultError{Op: "vk.CreateInstance()", Result: vkr.ErrorExtensionNotPresent}
		}
	}
	d.lastInstance = info
	return d.create(KindInstance), nil
}

// DestroyInstance implements vkr.Driver.
func (d *Driver) DestroyInstance(instance vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyInstance")
	for h := range d.physical {
		delete(d.physical, h)
	}
	d.destroy(instance, KindInstance)
}

// CreateDebugMessenger implements vkr.Driver.
func (d *Driver) CreateDebugMessenger(instance vkr.Handle, info vkr.DebugMessengerCreateInfo) (vkr.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateDebugMessenger"); err != nil {
		return vkr.NullHandle, err
	}
	h := d.create(KindMessenger)
	d.messengers[h] = info.Callback
	return h, nil
}

// DestroyDebugMessenger implements vkr.Driver.
func (d *Driver) DestroyDebugMessenger(instance, messenger vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyDebugMessenger")
	delete(d.messengers, messenger)
	d.destroy(messenger, KindMessenger)
}

// ResolveDebugUtils implements vkr.Driver.
func (d *Driver) ResolveDebugUtils(instance vkr.Handle) vkr.DebugUtils {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("ResolveDebugUtils")
	if !d.DebugUtils {
		return nil
	}
	return labeler{d}
}

// EnumeratePhysicalDevices implements vkr.Driver.
func (d *Driver) EnumeratePhysicalDevices(instance vkr.Handle) ([]vkr.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("EnumeratePhysicalDevices"); err != nil {
		return nil, err
	}
	handles := make([]vkr.Handle, len(d.Devices))
	for i := range d.Devices {
		d.next++
		d.physical[d.next] = i
		handles[i] = d.next
	}
	return handles, nil
}

func (d *Driver) device(physical vkr.Handle) PhysicalDevice {
	i, ok := d.physical[physical]
	if !ok {
		panic(fmt.Sprintf("vkrtest: unknown physical device %d", physical))
	}
	return d.Devices[i]
}

// PhysicalDeviceProperties implements vkr.Driver.
func (d *Driver) PhysicalDeviceProperties(physical vkr.Handle) (vkr.PhysicalDeviceProperties, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("PhysicalDeviceProperties"); err != nil {
		return vkr.PhysicalDeviceProperties{}, err
	}
	return d.device(physical).Properties, nil
}

// CreateSurface implements vkr.Driver.
func (d *Driver) CreateSurface(instance vkr.Handle, source vkr.SurfaceSource) (vkr.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateSurface"); err != nil {
		return vkr.NullHandle, err
	}
	if _, err := source.VulkanSurface(instance); err != nil {
		return vkr.NullHandle, &vkr.ResultError{Op: "vk.CreateSurface()", Result: vkr.ErrorInitializationFailed, Cause: err}
	}
	return d.create(KindSurface), nil
}

// DestroySurface implements vkr.Driver.
func (d *Driver) DestroySurface(instance, surface vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroySurface")
	d.destroy(surface, KindSurface)
}

// SurfaceSupport implements vkr.Driver.
func (d *Driver) SurfaceSupport(physical vkr.Handle, family uint32, surface vkr.Handle) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("SurfaceSupport"); err != nil {
		return false, err
	}
	return d.device(physical).canPresent(family), nil
}

// SurfaceCapabilities implements vkr.Driver.
func (d *Driver) SurfaceCapabilities(physical, surface vkr.Handle) (vkr.SurfaceCapabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("SurfaceCapabilities"); err != nil {
		return vkr.SurfaceCapabilities{}, err
	}
	return d.Capabilities, nil
}

// SurfaceFormats implements vkr.Driver.
func (d *Driver) SurfaceFormats(physical, surface vkr.Handle) ([]vkr.SurfaceFormat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("SurfaceFormats"); err != nil {
		return nil, err
	}
	return append([]vkr.SurfaceFormat(nil), d.Formats...), nil
}

// SurfacePresentModes implements vkr.Driver.
func (d *Driver) SurfacePresentModes(physical, surface vkr.Handle) ([]vkr.PresentMode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("SurfacePresentModes"); err != nil {
		return nil, err
	}
	return append([]vkr.PresentMode(nil), d.PresentModes...), nil
}

// CreateDevice implements vkr.Driver.
func (d *Driver) CreateDevice(physical vkr.Handle, info vkr.DeviceCreateInfo) (vkr.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateDevice"); err != nil {
		return vkr.NullHandle, err
	}
	props := d.device(physical).Properties
	for _, q := range info.Queues {
		if int(q.Family) >= len(props.QueueFamilies) || uint32(len(q.Priorities)) > props.QueueFamilies[q.Family].QueueCount {
			return vkr.NullHandle, &vkr.ResultError{Op: "vk.CreateDevice()", Result: vkr.ErrorInitializationFailed}
		}
	}
	for _, ext := range info.Extensions {
		if !contains(props.Extensions, ext) {
			return vkr.NullHandle, &vkr.ResultError{Op: "vk.CreateDevice()", Result: vkr.ErrorExtensionNotPresent}
		}
	}
	if info.Features != nil && len(info.Features.Missing(props.Features)) > 0 {
		return vkr.NullHandle, &vkr.ResultError{Op: "vk.CreateDevice()", Result: vkr.ErrorFeatureNotPresent}
	}
	d.lastDevice = info
	return d.create(KindDevice), nil
}

// DestroyDevice implements vkr.Driver.
func (d *Driver) DestroyDevice(device vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyDevice")
	d.destroy(device, KindDevice)
}

// DeviceQueue implements vkr.Driver.
func (d *Driver) DeviceQueue(device vkr.Handle, family, index uint32) vkr.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DeviceQueue")
	key := fmt.Sprintf("%d/%d/%d", device, family, index)
	if h, ok := d.queues[key]; ok {
		return h
	}
	d.next++
	d.queues[key] = d.next
	return d.next
}

// DeviceWaitIdle implements vkr.Driver.
func (d *Driver) DeviceWaitIdle(device vkr.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.check("DeviceWaitIdle")
}

// CreateSwapchain implements vkr.Driver.
func (d *Driver) CreateSwapchain(device vkr.Handle, info vkr.SwapchainCreateInfo) (vkr.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateSwapchain"); err != nil {
		return vkr.NullHandle, err
	}
	if d.live[info.Surface] != KindSurface {
		return vkr.NullHandle, &vkr.ResultError{Op: "vk.CreateSwapchain()", Result: vkr.ErrorSurfaceLost}
	}
	count := info.MinImageCount
	if d.ImageCountOverride > 0 {
		count = d.ImageCountOverride
	}
	h := d.create(KindSwapchain)
	images := make([]vkr.Handle, count)
	for i := range images {
		d.next++
		images[i] = d.next
	}
	d.swapchains[h] = images
	d.lastSwapchain = info
	return h, nil
}

// DestroySwapchain implements vkr.Driver.
func (d *Driver) DestroySwapchain(device, swapchain vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroySwapchain")
	delete(d.swapchains, swapchain)
	delete(d.acquired, swapchain)
	d.destroy(swapchain, KindSwapchain)
}

// SwapchainImages implements vkr.Driver.
func (d *Driver) SwapchainImages(device, swapchain vkr.Handle) ([]vkr.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("SwapchainImages"); err != nil {
		return nil, err
	}
	return append([]vkr.Handle(nil), d.swapchains[swapchain]...), nil
}

// AcquireNextImage implements vkr.Driver. Images are handed out in
// rotation; a scripted Suboptimal result still returns an image.
func (d *Driver) AcquireNextImage(device, swapchain vkr.Handle, timeout time.Duration, semaphore, fence vkr.Handle) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.call("AcquireNextImage")
	if r != vkr.Success && r != vkr.Suboptimal {
		return 0, vkr.CheckResult("vk.AcquireNextImage()", r)
	}
	images := d.swapchains[swapchain]
	if len(images) == 0 {
		return 0, &vkr.ResultError{Op: "vk.AcquireNextImage()", Result: vkr.ErrorOutOfDate}
	}
	index := d.acquired[swapchain]
	d.acquired[swapchain] = (index + 1) % uint32(len(images))
	if fence != vkr.NullHandle {
		d.fences[fence] = true
	}
	return index, vkr.CheckResult("vk.AcquireNextImage()", r)
}

// CreateImage implements vkr.Driver.
func (d *Driver) CreateImage(device vkr.Handle, info vkr.ImageCreateInfo) (vkr.Handle, vkr.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateImage"); err != nil {
		return vkr.NullHandle, vkr.NullHandle, err
	}
	image := d.create(KindImage)
	memory := d.create(KindMemory)
	return image, memory, nil
}

// DestroyImage implements vkr.Driver.
func (d *Driver) DestroyImage(device, image vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyImage")
	d.destroy(image, KindImage)
}

// CreateImageView implements vkr.Driver.
func (d *Driver) CreateImageView(device vkr.Handle, info vkr.ImageViewCreateInfo) (vkr.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateImageView"); err != nil {
		return vkr.NullHandle, err
	}
	return d.create(KindImageView), nil
}

// DestroyImageView implements vkr.Driver.
func (d *Driver) DestroyImageView(device, view vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyImageView")
	d.destroy(view, KindImageView)
}

// FreeMemory implements vkr.Driver.
func (d *Driver) FreeMemory(device, memory vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("FreeMemory")
	delete(d.memory, memory)
	d.destroy(memory, KindMemory)
}

// CreateRenderPass implements vkr.Driver.
func (d *Driver) CreateRenderPass(device vkr.Handle, info vkr.RenderPassCreateInfo) (vkr.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateRenderPass"); err != nil {
		return vkr.NullHandle, err
	}
	h := d.create(KindRenderPass)
	d.renderPass[h] = info
	return h, nil
}

// DestroyRenderPass implements vkr.Driver.
func (d *Driver) DestroyRenderPass(device, renderPass vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyRenderPass")
	delete(d.renderPass, renderPass)
	d.destroy(renderPass, KindRenderPass)
}

// CreateFramebuffer implements vkr.Driver. It fails when the number of
// attachments differs from what the render pass declares.
func (d *Driver) CreateFramebuffer(device vkr.Handle, info vkr.FramebufferCreateInfo) (vkr.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateFramebuffer"); err != nil {
		return vkr.NullHandle, err
	}
	rp, ok := d.renderPass[info.RenderPass]
	if !ok || len(rp.Attachments) != len(info.Attachments) {
		return vkr.NullHandle, &vkr.ResultError{Op: "vk.CreateFramebuffer()", Result: vkr.ErrorInitializationFailed}
	}
	h := d.create(KindFramebuffer)
	d.framebuffer[h] = info
	return h, nil
}

// DestroyFramebuffer implements vkr.Driver.
func (d *Driver) DestroyFramebuffer(device, framebuffer vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyFramebuffer")
	delete(d.framebuffer, framebuffer)
	d.destroy(framebuffer, KindFramebuffer)
}

// CreateFence implements vkr.Driver.
func (d *Driver) CreateFence(device vkr.Handle, signaled bool) (vkr.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateFence"); err != nil {
		return vkr.NullHandle, err
	}
	h := d.create(KindFence)
	d.fences[h] = signaled
	return h, nil
}

// DestroyFence implements vkr.Driver.
func (d *Driver) DestroyFence(device, fence vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyFence")
	delete(d.fences, fence)
	d.destroy(fence, KindFence)
}

// WaitForFences implements vkr.Driver without blocking: unsignaled
// fences time out at once.
func (d *Driver) WaitForFences(device vkr.Handle, fences []vkr.Handle, waitAll bool, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("WaitForFences"); err != nil {
		return err
	}
	signaled := 0
	for _, f := range fences {
		if d.fences[f] {
			signaled++
		}
	}
	if (waitAll && signaled == len(fences)) || (!waitAll && signaled > 0) {
		return nil
	}
	return &vkr.ResultError{Op: "vk.WaitForFences()", Result: vkr.Timeout}
}

// ResetFences implements vkr.Driver.
func (d *Driver) ResetFences(device vkr.Handle, fences []vkr.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("ResetFences"); err != nil {
		return err
	}
	for _, f := range fences {
		d.fences[f] = false
	}
	return nil
}

// FenceStatus implements vkr.Driver.
func (d *Driver) FenceStatus(device, fence vkr.Handle) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("FenceStatus"); err != nil {
		return false, err
	}
	return d.fences[fence], nil
}

// CreateSemaphore implements vkr.Driver.
func (d *Driver) CreateSemaphore(device vkr.Handle) (vkr.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateSemaphore"); err != nil {
		return vkr.NullHandle, err
	}
	return d.create(KindSemaphore), nil
}

// DestroySemaphore implements vkr.Driver.
func (d *Driver) DestroySemaphore(device, semaphore vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroySemaphore")
	d.destroy(semaphore, KindSemaphore)
}

// CreateBuffer implements vkr.Driver.
func (d *Driver) CreateBuffer(device vkr.Handle, size uint64, usage vkr.BufferUsage) (vkr.Handle, vkr.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateBuffer"); err != nil {
		return vkr.NullHandle, vkr.NullHandle, err
	}
	buffer := d.create(KindBuffer)
	memory := d.create(KindMemory)
	d.memory[memory] = make([]byte, size)
	return buffer, memory, nil
}

// DestroyBuffer implements vkr.Driver.
func (d *Driver) DestroyBuffer(device, buffer vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyBuffer")
	d.destroy(buffer, KindBuffer)
}

// MapMemory implements vkr.Driver.
func (d *Driver) MapMemory(device, memory vkr.Handle, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("MapMemory"); err != nil {
		return nil, err
	}
	mem := d.memory[memory]
	if offset+size > uint64(len(mem)) {
		return nil, &vkr.ResultError{Op: "vk.MapMemory()", Result: vkr.ErrorMemoryMapFailed}
	}
	return mem[offset : offset+size], nil
}

// UnmapMemory implements vkr.Driver.
func (d *Driver) UnmapMemory(device, memory vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("UnmapMemory")
}

// CreateCommandPool implements vkr.Driver.
func (d *Driver) CreateCommandPool(device vkr.Handle, family uint32) (vkr.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateCommandPool"); err != nil {
		return vkr.NullHandle, err
	}
	return d.create(KindCommandPool), nil
}

// DestroyCommandPool implements vkr.Driver. Buffers allocated from the
// pool are released with it.
func (d *Driver) DestroyCommandPool(device, pool vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyCommandPool")
	d.destroy(pool, KindCommandPool)
	for buffer, owner := range d.pools {
		if owner == pool {
			delete(d.pools, buffer)
			delete(d.commands, buffer)
			delete(d.live, buffer)
		}
	}
}

// AllocateCommandBuffers implements vkr.Driver.
func (d *Driver) AllocateCommandBuffers(device, pool vkr.Handle, count int) ([]vkr.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	out := make([]vkr.Handle, count)
	for i := range out {
		out[i] = d.create(KindCommandBuffer)
		d.pools[out[i]] = pool
	}
	return out, nil
}

// FreeCommandBuffers implements vkr.Driver.
func (d *Driver) FreeCommandBuffers(device, pool vkr.Handle, buffers []vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("FreeCommandBuffers")
	for _, b := range buffers {
		delete(d.commands, b)
		delete(d.pools, b)
		d.destroy(b, KindCommandBuffer)
	}
}

func (d *Driver) record(buffer vkr.Handle, cmd string) {
	d.calls = append(d.calls, cmd)
	d.commands[buffer] = append(d.commands[buffer], cmd)
}

// BeginCommandBuffer implements vkr.Driver.
func (d *Driver) BeginCommandBuffer(buffer vkr.Handle, oneTimeSubmit bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("BeginCommandBuffer"); err != nil {
		return err
	}
	d.commands[buffer] = nil
	return nil
}

// EndCommandBuffer implements vkr.Driver.
func (d *Driver) EndCommandBuffer(buffer vkr.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.check("EndCommandBuffer")
}

// ResetCommandBuffer implements vkr.Driver.
func (d *Driver) ResetCommandBuffer(buffer vkr.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("ResetCommandBuffer"); err != nil {
		return err
	}
	d.commands[buffer] = nil
	return nil
}

// CmdBeginRenderPass implements vkr.Driver.
func (d *Driver) CmdBeginRenderPass(buffer vkr.Handle, info vkr.RenderPassBeginInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(buffer, "CmdBeginRenderPass")
}

// CmdEndRenderPass implements vkr.Driver.
func (d *Driver) CmdEndRenderPass(buffer vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(buffer, "CmdEndRenderPass")
}

// CmdBindPipeline implements vkr.Driver.
func (d *Driver) CmdBindPipeline(buffer, pipeline vkr.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(buffer, "CmdBindPipeline")
}

// CmdSetViewport implements vkr.Driver.
func (d *Driver) CmdSetViewport(buffer vkr.Handle, viewport vkr.Viewport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(buffer, "CmdSetViewport")
}

// CmdSetScissor implements vkr.Driver.
func (d *Driver) CmdSetScissor(buffer vkr.Handle, scissor vkr.Rect2D) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(buffer, "CmdSetScissor")
}

// CmdBindVertexBuffers implements vkr.Driver.
func (d *Driver) CmdBindVertexBuffers(buffer vkr.Handle, buffers []vkr.Handle, offsets []uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(buffer, "CmdBindVertexBuffers")
}

// CmdBindIndexBuffer implements vkr.Driver.
func (d *Driver) CmdBindIndexBuffer(buffer, index vkr.Handle, offset uint64, indexType vkr.IndexType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(buffer, "CmdBindIndexBuffer")
}

// CmdDraw implements vkr.Driver.
func (d *Driver) CmdDraw(buffer vkr.Handle, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(buffer, "CmdDraw")
}

// CmdDrawIndexed implements vkr.Driver.
func (d *Driver) CmdDrawIndexed(buffer vkr.Handle, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(buffer, "CmdDrawIndexed")
}

// QueueSubmit implements vkr.Driver. The work completes at once,
// signaling fence.
func (d *Driver) QueueSubmit(queue vkr.Handle, info vkr.SubmitInfo, fence vkr.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("QueueSubmit"); err != nil {
		return err
	}
	d.submits = append(d.submits, info)
	if fence != vkr.NullHandle {
		d.fences[fence] = true
	}
	return nil
}

// QueuePresent implements vkr.Driver.
func (d *Driver) QueuePresent(queue vkr.Handle, info vkr.PresentInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presents = append(d.presents, info)
	return d.check("QueuePresent")
}

// QueueWaitIdle implements vkr.Driver.
func (d *Driver) QueueWaitIdle(queue vkr.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.check("QueueWaitIdle")
}

// labeler records naming and labeling calls.
type labeler struct {
	d *Driver
}

func (l labeler) add(s string) {
	l.d.mu.Lock()
	defer l.d.mu.Unlock()
	l.d.labels = append(l.d.labels, s)
}

func (l labeler) SetObjectName(device vkr.Handle, kind vkr.ObjectType, object vkr.Handle, name string) error {
	l.add(fmt.Sprintf("name %d %s", kind, name))
	return nil
}

func (l labeler) CmdBeginLabel(buffer vkr.Handle, label string, color [4]float32) {
	l.add("begin " + label)
}

func (l labeler) CmdEndLabel(buffer vkr.Handle) {
	l.add("end")
}

func (l labeler) CmdInsertLabel(buffer vkr.Handle, label string, color [4]float32) {
	l.add("insert " + label)
}

func (l labeler) QueueBeginLabel(queue vkr.Handle, label string, color [4]float32) {
	l.add("queue begin " + label)
}

func (l labeler) QueueEndLabel(queue vkr.Handle) {
	l.add("queue end")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
