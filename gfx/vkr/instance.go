// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
)

// InstanceConfiguration describes the application to the API.
type InstanceConfiguration struct {
	ApplicationName    string
	ApplicationVersion Version
	EngineName         string
	EngineVersion      Version
	APIVersion         Version

	// Extensions usually come from the window, which knows
	// the platform surface extensions it needs.
	Extensions []string
	Layers     []string
}

// DefaultInstanceConfiguration describes the engine itself.
func DefaultInstanceConfiguration() InstanceConfiguration {
	return InstanceConfiguration{
		ApplicationName:    "Koru3D",
		ApplicationVersion: MakeVersion(1, 0, 0),
		EngineName:         "Koru3D",
		EngineVersion:      MakeVersion(1, 0, 0),
		APIVersion:         MakeVersion(1, 0, 0),
	}
}

// Instance is the connection to the API and the owner
// of the physical device list and the optional Debugger.
type Instance struct {
	driver   Driver
	handle   Handle
	config   InstanceConfiguration
	debugger *Debugger
	devices  []*PhysicalDevice
}

// NewInstance creates an instance. When debug is not nil a Debugger
// is set up first and its layers and extensions are enabled as well.
func NewInstance(driver Driver, cfg InstanceConfiguration, debug *DebugConfiguration) (*Instance, error) {
	var (
		debugger *Debugger
		chain    *DebugCreateInfoChain
		err      error
	)
	extensions := dedup(cfg.Extensions)
	layers := dedup(cfg.Layers)

	if debug != nil {
		if debugger, err = NewDebugger(driver, *debug); err != nil {
			return nil, err
		}
		extensions = dedup(append(extensions, debugger.Extensions()...))
		layers = dedup(append(layers, debugger.Layers()...))
		c := debugger.CreateInfoChain()
		chain = &c
	}

	available, err := driver.EnumerateInstanceExtensions()
	if err != nil {
		return nil, errors.Wrap(err, "vkr: enumerate instance extensions")
	}
	for _, ext := range extensions {
		if !contains(available, ext) {
			return nil, errors.Wrapf(ErrExtensionAbsent, "vkr: instance extension %s", ext)
		}
	}

	handle, err := driver.CreateInstance(InstanceCreateInfo{
		ApplicationName:    cfg.ApplicationName,
		ApplicationVersion: cfg.ApplicationVersion,
		EngineName:         cfg.EngineName,
		EngineVersion:      cfg.EngineVersion,
		APIVersion:         cfg.APIVersion,
		Extensions:         extensions,
		Layers:             layers,
		Debug:              chain,
	})
	if err != nil {
		return nil, errors.Wrap(err, "vkr: create instance")
	}

	inst := &Instance{
		driver: driver,
		handle: handle,
		config: cfg,
	}
	inst.config.Extensions = extensions
	inst.config.Layers = layers

	if debugger != nil {
		if err := debugger.Init(handle, *chain); err != nil {
			driver.DestroyInstance(handle)
			return nil, err
		}
		inst.debugger = debugger
	}

	physical, err := driver.EnumeratePhysicalDevices(handle)
	if err != nil {
		inst.Destroy()
		return nil, errors.Wrap(err, "vkr: enumerate physical devices")
	}
	if len(physical) == 0 {
		inst.Destroy()
		return nil, ErrNoPhysicalDevices
	}
	for _, h := range physical {
		pd, err := newPhysicalDevice(inst, h)
		if err != nil {
			inst.Destroy()
			return nil, err
		}
		inst.devices = append(inst.devices, pd)
	}

	Logger().WithFields(log.Fields{
		"devices":    len(inst.devices),
		"extensions": extensions,
		"layers":     layers,
	}).Debug("instance created")
	return inst, nil
}

// Handle returns the native instance.
func (i *Instance) Handle() Handle {
	return i.handle
}

// Driver returns the driver the instance was created with.
func (i *Instance) Driver() Driver {
	return i.driver
}

// Configuration returns the configuration with the
// debugger's layers and extensions folded in.
func (i *Instance) Configuration() InstanceConfiguration {
	return i.config
}

// Debugger returns nil when the instance was created without debugging.
func (i *Instance) Debugger() *Debugger {
	return i.debugger
}

// PhysicalDevices returns the devices enumerated at creation.
func (i *Instance) PhysicalDevices() []*PhysicalDevice {
	return i.devices
}

// Destroy releases the instance. Everything created from it must be
// destroyed first.
func (i *Instance) Destroy() {
	if i.handle == NullHandle {
		return
	}
	i.devices = nil
	if i.debugger != nil {
		i.debugger.Destroy()
		i.debugger = nil
	}
	i.driver.DestroyInstance(i.handle)
	i.handle = NullHandle
}

func dedup(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if !contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
