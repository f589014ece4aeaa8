// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkapi

import (
	"math"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	vk "github.com/vulkan-go/vulkan"

	"github.com/koru3d/engine/gfx/vkr"
)

type object struct{ Name string }

func TestRegistry(t *testing.T) {
	c := qt.New(t)
	r := newRegistry()

	a, b := &object{"a"}, &object{"b"}
	ha := r.put(a)
	hb := r.put(b)
	c.Assert(ha, qt.Not(qt.Equals), vkr.NullHandle)
	c.Assert(hb, qt.Not(qt.Equals), ha)
	c.Assert(r.put(a), qt.Equals, ha)
	c.Assert(r.len(), qt.Equals, 2)

	c.Assert(lookup[*object](r, ha), qt.Equals, a)
	all := lookupAll[*object](r, []vkr.Handle{hb, ha})
	c.Assert(all, qt.HasLen, 2)
	c.Assert(all[0], qt.Equals, b)
	c.Assert(all[1], qt.Equals, a)

	// Null, unknown and mistyped handles resolve to the zero value.
	c.Assert(lookup[*object](r, vkr.NullHandle), qt.IsNil)
	c.Assert(lookup[*object](r, 99), qt.IsNil)
	c.Assert(lookup[string](r, ha), qt.Equals, "")

	r.drop(ha)
	r.drop(ha)
	c.Assert(r.len(), qt.Equals, 1)
	c.Assert(lookup[*object](r, ha), qt.IsNil)
	c.Assert(r.put(a), qt.Not(qt.Equals), ha)
}

func TestNanos(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		in   time.Duration
		want uint64
	}{
		{0, 0},
		{time.Millisecond, 1000000},
		{-1, math.MaxUint64},
		{math.MaxInt64, math.MaxUint64},
	}
	for _, test := range tests {
		c.Assert(nanos(test.in), qt.Equals, test.want, qt.Commentf("%v", test.in))
	}
}

func TestCStrings(t *testing.T) {
	c := qt.New(t)
	c.Assert(cstrings([]string{"VK_KHR_surface", "VK_KHR_swapchain\x00", ""}), qt.DeepEquals,
		[]string{"VK_KHR_surface\x00", "VK_KHR_swapchain\x00", "\x00"})
	c.Assert(cstrings(nil), qt.HasLen, 0)
}

func TestReportFlags(t *testing.T) {
	c := qt.New(t)

	flags := reportFlags(vkr.DebugSeverityWarning|vkr.DebugSeverityError, vkr.DebugMessageValidation)
	c.Assert(flags, qt.Equals, vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportErrorBit))

	flags = reportFlags(vkr.DebugSeverityWarning, vkr.DebugMessagePerformance)
	c.Assert(flags, qt.Equals, vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit))

	c.Assert(reportFlags(0, vkr.DebugMessageGeneral), qt.Equals, vk.DebugReportFlags(0))
}

func TestSeverityOf(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		flags    vk.DebugReportFlagBits
		severity vkr.DebugSeverity
		kind     vkr.DebugMessageType
	}{
		{vk.DebugReportErrorBit | vk.DebugReportWarningBit, vkr.DebugSeverityError, vkr.DebugMessageValidation},
		{vk.DebugReportPerformanceWarningBit, vkr.DebugSeverityWarning, vkr.DebugMessagePerformance},
		{vk.DebugReportWarningBit, vkr.DebugSeverityWarning, vkr.DebugMessageValidation},
		{vk.DebugReportInformationBit, vkr.DebugSeverityInfo, vkr.DebugMessageGeneral},
		{vk.DebugReportDebugBit, vkr.DebugSeverityVerbose, vkr.DebugMessageGeneral},
	}
	for _, test := range tests {
		severity, kind := severityOf(vk.DebugReportFlags(test.flags))
		c.Assert(severity, qt.Equals, test.severity, qt.Commentf("%#x", test.flags))
		c.Assert(kind, qt.Equals, test.kind, qt.Commentf("%#x", test.flags))
	}
}

func TestFeaturesRoundTrip(t *testing.T) {
	c := qt.New(t)
	want := vkr.Features{
		GeometryShader:     true,
		SamplerAnisotropy:  true,
		ShaderInt64:        true,
		TextureCompression: true,
	}
	c.Assert(featuresFrom(featuresTo(want)), qt.Equals, want)
}

func TestFindMemoryType(t *testing.T) {
	c := qt.New(t)

	var props vk.PhysicalDeviceMemoryProperties
	props.MemoryTypeCount = 3
	props.MemoryTypes[0].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	props.MemoryTypes[1].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)
	props.MemoryTypes[2].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)

	host := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	idx, err := findMemoryType(props, 0b111, host)
	c.Assert(err, qt.IsNil)
	c.Assert(idx, qt.Equals, uint32(2))

	idx, err = findMemoryType(props, 0b111, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit))
	c.Assert(err, qt.IsNil)
	c.Assert(idx, qt.Equals, uint32(1))

	_, err = findMemoryType(props, 0b011, host)
	c.Assert(err, qt.ErrorIs, vkr.ErrOutOfDeviceMemory)
}
