// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkapi

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/koru3d/engine/gfx/vkr"
)

// DebugReportExtensionName is the only messenger extension the binding drives.
const DebugReportExtensionName = "VK_EXT_debug_report"

// DebugMessengerExtensions implements vkr.Driver.
func (d *Driver) DebugMessengerExtensions() []string {
	return []string{DebugReportExtensionName}
}

// CreateDebugMessenger implements vkr.Driver.
func (d *Driver) CreateDebugMessenger(instance vkr.Handle, info vkr.DebugMessengerCreateInfo) (vkr.Handle, error) {
	if info.Extension != DebugReportExtensionName {
		return vkr.NullHandle, &vkr.ResultError{
			Op:     "vk.CreateDebugReportCallback()",
			Result: vkr.ErrorExtensionNotPresent,
			Cause:  errors.Newf("unsupported messenger extension %q", info.Extension),
		}
	}

	callback := info.Callback
	drcci := vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: reportFlags(info.Severity, info.Types),
		PfnCallback: func(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
			object uint64, location uint, messageCode int32, pLayerPrefix string,
			pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
			severity, kind := severityOf(flags)
			abort := callback(vkr.DebugMessage{
				Severity: severity,
				Type:     kind,
				ID:       messageCode,
				Layer:    pLayerPrefix,
				Message:  pMessage,
			})
			return bool32(abort)
		},
	}

	var messenger vk.DebugReportCallback
	r := vk.CreateDebugReportCallback(lookup[vk.Instance](d.objects, instance), &drcci, nil, &messenger)
	if err := check("CreateDebugReportCallback", r); err != nil {
		return vkr.NullHandle, err
	}
	return d.objects.put(messenger), nil
}

// DestroyDebugMessenger implements vkr.Driver.
func (d *Driver) DestroyDebugMessenger(instance, messenger vkr.Handle) {
	vk.DestroyDebugReportCallback(lookup[vk.Instance](d.objects, instance),
		lookup[vk.DebugReportCallback](d.objects, messenger), nil)
	d.objects.drop(messenger)
}

// ResolveDebugUtils implements vkr.Driver. The binding does not expose
// object naming and labels, so markers are always unavailable.
func (d *Driver) ResolveDebugUtils(instance vkr.Handle) vkr.DebugUtils {
	return nil
}

// reportFlags translates messenger severities and categories
// into debug report flags.
func reportFlags(severity vkr.DebugSeverity, types vkr.DebugMessageType) vk.DebugReportFlags {
	var flags vk.DebugReportFlagBits
	if severity&vkr.DebugSeverityError != 0 {
		flags |= vk.DebugReportErrorBit
	}
	if severity&vkr.DebugSeverityWarning != 0 {
		flags |= vk.DebugReportWarningBit
		if types&vkr.DebugMessagePerformance != 0 {
			flags |= vk.DebugReportPerformanceWarningBit
		}
	}
	if severity&vkr.DebugSeverityInfo != 0 {
		flags |= vk.DebugReportInformationBit
	}
	if severity&vkr.DebugSeverityVerbose != 0 {
		flags |= vk.DebugReportDebugBit
	}
	return vk.DebugReportFlags(flags)
}

func severityOf(flags vk.DebugReportFlags) (vkr.DebugSeverity, vkr.DebugMessageType) {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		return vkr.DebugSeverityError, vkr.DebugMessageValidation
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		return vkr.DebugSeverityWarning, vkr.DebugMessagePerformance
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		return vkr.DebugSeverityWarning, vkr.DebugMessageValidation
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		return vkr.DebugSeverityVerbose, vkr.DebugMessageGeneral
	}
	return vkr.DebugSeverityInfo, vkr.DebugMessageGeneral
}
