// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
)

// PhysicalDevice is a GPU as enumerated by an Instance, with its
// properties cached. It must not outlive the Instance.
type PhysicalDevice struct {
	instance *Instance
	handle   Handle
	props    PhysicalDeviceProperties
}

func newPhysicalDevice(instance *Instance, handle Handle) (*PhysicalDevice, error) {
	props, err := instance.driver.PhysicalDeviceProperties(handle)
	if err != nil {
		return nil, errors.Wrap(err, "vkr: query physical device")
	}
	return &PhysicalDevice{
		instance: instance,
		handle:   handle,
		props:    props,
	}, nil
}

// Handle returns the native physical device.
func (pd *PhysicalDevice) Handle() Handle {
	return pd.handle
}

// Instance returns the instance the device was enumerated from.
func (pd *PhysicalDevice) Instance() *Instance {
	return pd.instance
}

// Properties returns everything cached at enumeration.
func (pd *PhysicalDevice) Properties() PhysicalDeviceProperties {
	return pd.props
}

// Name returns the device name.
func (pd *PhysicalDevice) Name() string {
	return pd.props.Name
}

// Type returns the device type.
func (pd *PhysicalDevice) Type() DeviceType {
	return pd.props.Type
}

// Features returns the supported features.
func (pd *PhysicalDevice) Features() Features {
	return pd.props.Features
}

// Limits returns the device limits.
func (pd *PhysicalDevice) Limits() Limits {
	return pd.props.Limits
}

// QueueFamilies returns the queue families in driver order.
func (pd *PhysicalDevice) QueueFamilies() []QueueFamilyProperties {
	return pd.props.QueueFamilies
}

// SupportsExtension reports whether the device extension is available.
func (pd *PhysicalDevice) SupportsExtension(name string) bool {
	return contains(pd.props.Extensions, name)
}

// DeviceLocalMemory sums the sizes of all device local heaps.
func (pd *PhysicalDevice) DeviceLocalMemory() uint64 {
	var total uint64
	for _, heap := range pd.props.MemoryHeaps {
		if heap.DeviceLocal {
			total += heap.Size
		}
	}
	return total
}

// QueueFamily returns the first family whose capabilities are a
// superset of flags. Other matching families are not considered.
func (pd *PhysicalDevice) QueueFamily(flags QueueFlags) (uint32, bool) {
	for i, family := range pd.props.QueueFamilies {
		if family.QueueCount > 0 && family.Flags.Has(flags) {
			return uint32(i), true
		}
	}
	return 0, false
}

// PresentFamily returns the first family able to present to surface.
// The answer is queried every time since it depends on the surface.
func (pd *PhysicalDevice) PresentFamily(surface *Surface) (uint32, bool) {
	if surface == nil {
		return 0, false
	}
	for i := range pd.props.QueueFamilies {
		ok, err := pd.instance.driver.SurfaceSupport(pd.handle, uint32(i), surface.handle)
		if err != nil {
			Logger().WithError(err).WithField("device", pd.props.Name).Debug("surface support query failed")
			continue
		}
		if ok {
			return uint32(i), true
		}
	}
	return 0, false
}

// Check returns a description of every requirement the device does not
// meet. All checks run even when an earlier one fails.
func (pd *PhysicalDevice) Check(reqs PhysicalDeviceRequirements, surface *Surface) []string {
	var unmet []string

	if pd.props.APIVersion < reqs.MinAPIVersion {
		unmet = append(unmet, fmt.Sprintf("api version %s below %s", pd.props.APIVersion, reqs.MinAPIVersion))
	}
	for _, ext := range reqs.RequiredExtensions {
		if !pd.SupportsExtension(ext) {
			unmet = append(unmet, "missing extension "+ext)
		}
	}
	for _, bit := range reqs.RequiredQueues.Bits() {
		if _, ok := pd.QueueFamily(bit); !ok {
			unmet = append(unmet, "no "+bit.String()+" queue family")
		}
	}
	if reqs.RequirePresent {
		if surface == nil {
			unmet = append(unmet, "presentation required without a surface")
		} else if _, ok := pd.PresentFamily(surface); !ok {
			unmet = append(unmet, "no queue family can present")
		}
	}
	if memory := pd.DeviceLocalMemory(); memory < reqs.MinDeviceLocalMemory {
		unmet = append(unmet, fmt.Sprintf("device local memory %d below %d", memory, reqs.MinDeviceLocalMemory))
	}
	if reqs.RequiredFeatures != nil {
		for _, name := range reqs.RequiredFeatures.Missing(pd.props.Features) {
			unmet = append(unmet, "missing feature "+name)
		}
	}
	return unmet
}

// MeetsRequirements reports whether every requirement is met.
func (pd *PhysicalDevice) MeetsRequirements(reqs PhysicalDeviceRequirements, surface *Surface) bool {
	unmet := pd.Check(reqs, surface)
	for _, reason := range unmet {
		Logger().WithFields(log.Fields{
			"device": pd.props.Name,
			"reason": reason,
		}).Debug("requirement not met")
	}
	return len(unmet) == 0
}

// Score ranks the device against reqs. Devices not meeting them score
// math.MinInt32, which excludes them from selection.
func (pd *PhysicalDevice) Score(reqs PhysicalDeviceRequirements, surface *Surface) int32 {
	if !pd.MeetsRequirements(reqs, surface) {
		return math.MinInt32
	}
	return pd.rank(reqs)
}

func (pd *PhysicalDevice) rank(reqs PhysicalDeviceRequirements) int32 {
	if reqs.Scorer != nil {
		return reqs.Scorer.Score(pd, reqs)
	}
	return DefaultScore(pd, reqs)
}
