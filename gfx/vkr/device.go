// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
)

// Device is a logical device and the queues created with it.
type Device struct {
	physical *PhysicalDevice
	driver   Driver
	handle   Handle
	config   DeviceConfiguration
	queues   []*Queue
}

// NewDevice creates a logical device on pd. Queues are created for
// every configured family and returned by Queues in family, then
// index order.
func NewDevice(pd *PhysicalDevice, cfg DeviceConfiguration) (*Device, error) {
	for _, ext := range cfg.Extensions {
		if !pd.SupportsExtension(ext) {
			return nil, errors.Wrapf(ErrExtensionAbsent, "vkr: device extension %s on %s", ext, pd.Name())
		}
	}
	if cfg.Features != nil {
		if missing := cfg.Features.Missing(pd.Features()); len(missing) > 0 {
			return nil, errors.Wrapf(ErrFeatureAbsent, "vkr: %s on %s", strings.Join(missing, ", "), pd.Name())
		}
	}
	if len(cfg.Queues) == 0 {
		return nil, errors.Wrap(ErrQueueFamilyAbsent, "vkr: no queues configured")
	}

	families := cfg.Families()
	infos := make([]QueueCreateInfo, 0, len(families))
	for _, family := range families {
		qc := cfg.Queues[family]
		if len(qc.Priorities) == 0 {
			return nil, errors.Newf("vkr: family %d configured with no queues", family)
		}
		infos = append(infos, QueueCreateInfo{
			Family:     family,
			Priorities: qc.Priorities,
		})
	}

	driver := pd.instance.driver
	handle, err := driver.CreateDevice(pd.handle, DeviceCreateInfo{
		Queues:     infos,
		Extensions: cfg.Extensions,
		Features:   cfg.Features,
	})
	if err != nil {
		return nil, errors.Wrap(err, "vkr: create device")
	}

	d := &Device{
		physical: pd,
		driver:   driver,
		handle:   handle,
		config:   cfg,
	}
	for _, info := range infos {
		for i := range info.Priorities {
			d.queues = append(d.queues, &Queue{
				device: d,
				handle: driver.DeviceQueue(handle, info.Family, uint32(i)),
				family: info.Family,
				index:  uint32(i),
			})
		}
	}

	Logger().WithFields(log.Fields{
		"device":     pd.Name(),
		"families":   families,
		"queues":     len(d.queues),
		"extensions": cfg.Extensions,
	}).Debug("logical device created")
	return d, nil
}

// Handle returns the native device.
func (d *Device) Handle() Handle {
	return d.handle
}

// PhysicalDevice returns the GPU the device was created on.
func (d *Device) PhysicalDevice() *PhysicalDevice {
	return d.physical
}

// Configuration returns the configuration the device was created with.
func (d *Device) Configuration() DeviceConfiguration {
	return d.config
}

// Driver returns the driver of the owning instance.
func (d *Device) Driver() Driver {
	return d.driver
}

// Debugger returns the debugger of the owning instance, possibly nil.
func (d *Device) Debugger() *Debugger {
	return d.physical.instance.debugger
}

// Queues returns every queue in family, then index order.
func (d *Device) Queues() []*Queue {
	return d.queues
}

// Queue returns the first queue of the family resolved for role.
func (d *Device) Queue(role QueueRole) (*Queue, bool) {
	family, ok := d.config.Roles[role]
	if !ok {
		return nil, false
	}
	for _, q := range d.queues {
		if q.family == family {
			return q, true
		}
	}
	return nil, false
}

// WaitIdle blocks until all work submitted to the device completes.
func (d *Device) WaitIdle() error {
	if err := d.driver.DeviceWaitIdle(d.handle); err != nil {
		return errors.Wrap(err, "vkr: device wait idle")
	}
	return nil
}

// SetObjectName names a native object owned by the device when debug
// markers are enabled.
func (d *Device) SetObjectName(kind ObjectType, object Handle, name string) {
	d.Debugger().SetObjectName(d.handle, kind, object, name)
}

// Destroy releases the device. Its queues become invalid.
func (d *Device) Destroy() {
	if d.handle == NullHandle {
		return
	}
	d.queues = nil
	d.driver.DestroyDevice(d.handle)
	d.handle = NullHandle
}

// Queue is a device queue. It is valid while its Device lives and is
// not safe for concurrent submission.
type Queue struct {
	device *Device
	handle Handle
	family uint32
	index  uint32
}

// Handle returns the native queue.
func (q *Queue) Handle() Handle {
	return q.handle
}

// Family returns the queue family index.
func (q *Queue) Family() uint32 {
	return q.family
}

// Index returns the index of the queue inside its family.
func (q *Queue) Index() uint32 {
	return q.index
}

// Submit submits one batch, signaling fence on completion if not nil.
func (q *Queue) Submit(info SubmitInfo, fence *Fence) error {
	f := NullHandle
	if fence != nil {
		f = fence.handle
	}
	if err := q.device.driver.QueueSubmit(q.handle, info, f); err != nil {
		return errors.Wrap(err, "vkr: queue submit")
	}
	return nil
}

// SubmitWait submits an executable command buffer and blocks until
// the GPU has finished with it.
func (q *Queue) SubmitWait(cmd *CommandBuffer, timeout time.Duration) error {
	if cmd.State() != CommandBufferExecutable {
		return errors.Wrapf(ErrNotExecutable, "vkr: SubmitWait in state %s", cmd.State())
	}
	fence, err := NewFence(q.device, false)
	if err != nil {
		return err
	}
	defer fence.Destroy()

	if err := q.Submit(SubmitInfo{CommandBuffers: []Handle{cmd.handle}}, fence); err != nil {
		return err
	}
	return Lock(fence, timeout)
}

// Present queues the presentation of a swapchain image.
func (q *Queue) Present(info PresentInfo) error {
	return q.device.driver.QueuePresent(q.handle, info)
}

// WaitIdle blocks until all work submitted to the queue completes.
func (q *Queue) WaitIdle() error {
	if err := q.device.driver.QueueWaitIdle(q.handle); err != nil {
		return errors.Wrap(err, "vkr: queue wait idle")
	}
	return nil
}
