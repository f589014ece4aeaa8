// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Capability mismatch and protocol errors.
var (
	ErrNoPhysicalDevices = errors.New("no physical devices available")
	ErrNoSuitableDevice  = errors.New("no suitable physical device")
	ErrQueueFamilyAbsent = errors.New("required queue family absent")
	ErrNoSurface         = errors.New("presentation required but no surface given")

	ErrNotReady      = errors.New("command buffer is not ready")
	ErrNotRecording  = errors.New("command buffer is not recording")
	ErrNotExecutable = errors.New("command buffer is not executable")

	ErrAttachmentMismatch = errors.New("attachment count mismatch")
	ErrFormatUnsupported  = errors.New("surface format not supported")
	ErrOutOfRange         = errors.New("write out of buffer range")
	ErrDestroyed          = errors.New("object already destroyed")
)

// Native result categories. A *ResultError matches the category of its code.
var (
	ErrOutOfHostMemory      = errors.New("out of host memory")
	ErrOutOfDeviceMemory    = errors.New("out of device memory")
	ErrInitializationFailed = errors.New("initialization failed")
	ErrDeviceLost           = errors.New("device lost")
	ErrLayerAbsent          = errors.New("layer not present")
	ErrExtensionAbsent      = errors.New("extension not present")
	ErrFeatureAbsent        = errors.New("feature not present")
	ErrIncompatibleDriver   = errors.New("incompatible driver")
	ErrSurfaceLost          = errors.New("surface lost")
	ErrOutOfDate            = errors.New("swapchain out of date")
	ErrSuboptimal           = errors.New("swapchain suboptimal")
	ErrTimeout              = errors.New("timeout")
)

// Result is a native API result code.
type Result int32

// Result codes used by the core, numerically equal to the native ones.
const (
	Success                   Result = 0
	NotReady                  Result = 1
	Timeout                   Result = 2
	Suboptimal                Result = 1000001003
	ErrorOutOfHostMemory      Result = -1
	ErrorOutOfDeviceMemory    Result = -2
	ErrorInitializationFailed Result = -3
	ErrorDeviceLost           Result = -4
	ErrorMemoryMapFailed      Result = -5
	ErrorLayerNotPresent      Result = -6
	ErrorExtensionNotPresent  Result = -7
	ErrorFeatureNotPresent    Result = -8
	ErrorIncompatibleDriver   Result = -9
	ErrorSurfaceLost          Result = -1000000000
	ErrorOutOfDate            Result = -1000001004
)

var resultNames = map[Result]string{
	Success:                   "SUCCESS",
	NotReady:                  "NOT_READY",
	Timeout:                   "TIMEOUT",
	Suboptimal:                "SUBOPTIMAL_KHR",
	ErrorOutOfHostMemory:      "ERROR_OUT_OF_HOST_MEMORY",
	ErrorOutOfDeviceMemory:    "ERROR_OUT_OF_DEVICE_MEMORY",
	ErrorInitializationFailed: "ERROR_INITIALIZATION_FAILED",
	ErrorDeviceLost:           "ERROR_DEVICE_LOST",
	ErrorMemoryMapFailed:      "ERROR_MEMORY_MAP_FAILED",
	ErrorLayerNotPresent:      "ERROR_LAYER_NOT_PRESENT",
	ErrorExtensionNotPresent:  "ERROR_EXTENSION_NOT_PRESENT",
	ErrorFeatureNotPresent:    "ERROR_FEATURE_NOT_PRESENT",
	ErrorIncompatibleDriver:   "ERROR_INCOMPATIBLE_DRIVER",
	ErrorSurfaceLost:          "ERROR_SURFACE_LOST_KHR",
	ErrorOutOfDate:            "ERROR_OUT_OF_DATE_KHR",
}

var resultCategories = map[Result]error{
	Timeout:                   ErrTimeout,
	Suboptimal:                ErrSuboptimal,
	ErrorOutOfHostMemory:      ErrOutOfHostMemory,
	ErrorOutOfDeviceMemory:    ErrOutOfDeviceMemory,
	ErrorInitializationFailed: ErrInitializationFailed,
	ErrorDeviceLost:           ErrDeviceLost,
	ErrorLayerNotPresent:      ErrLayerAbsent,
	ErrorExtensionNotPresent:  ErrExtensionAbsent,
	ErrorFeatureNotPresent:    ErrFeatureAbsent,
	ErrorIncompatibleDriver:   ErrIncompatibleDriver,
	ErrorSurfaceLost:          ErrSurfaceLost,
	ErrorOutOfDate:            ErrOutOfDate,
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("RESULT(%d)", int32(r))
}

// ResultError is a failed native call.
type ResultError struct {
	Op     string
	Result Result
	Cause  error
}

func (e *ResultError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Result, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Result)
}

// Is matches the category sentinel of the result code.
func (e *ResultError) Is(target error) bool {
	category, ok := resultCategories[e.Result]
	return ok && category == target
}

// Unwrap returns the cause reported alongside the code, if any.
func (e *ResultError) Unwrap() error {
	return e.Cause
}

// CheckResult turns a native result into an error. Success and
// NotReady are not errors; everything else, including the
// non-fatal Suboptimal and Timeout codes, is reported.
func CheckResult(op string, r Result) error {
	switch r {
	case Success, NotReady:
		return nil
	}
	return &ResultError{Op: op, Result: r}
}

// ResultOf extracts the native result carried by err, or Success.
func ResultOf(err error) Result {
	var re *ResultError
	if errors.As(err, &re) {
		return re.Result
	}
	return Success
}
