// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/koru3d/engine/gfx/vkr"
	"github.com/koru3d/engine/gfx/vkr/vkrtest"
)

func TestDebuggerSkipsMissingLayers(t *testing.T) {
	c := qt.New(t)
	d := vkrtest.New()
	d.Layers = []string{"VK_LAYER_LUNARG_monitor"}

	debugger, err := vkr.NewDebugger(d, vkr.DebugConfiguration{
		Layers: []string{vkr.DefaultValidationLayer, "VK_LAYER_LUNARG_monitor"},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(debugger.AvailableLayers(), qt.DeepEquals, []string{"VK_LAYER_LUNARG_monitor"})
	c.Assert(debugger.Layers(), qt.DeepEquals, []string{"VK_LAYER_LUNARG_monitor"})
	c.Assert(debugger.Extensions(), qt.DeepEquals, []string{"VK_EXT_debug_utils"})
}

func TestDebuggerWithoutLayers(t *testing.T) {
	c := qt.New(t)
	d := vkrtest.New()
	d.Layers = nil
	leakCheck(c, d)

	debug := vkr.DefaultDebugConfiguration()
	inst := newInstance(c, d, &debug)
	c.Assert(inst.Debugger().Layers(), qt.HasLen, 0)
	c.Assert(d.LastInstance().Layers, qt.HasLen, 0)
}

func TestDebuggerPicksFirstMessengerExtension(t *testing.T) {
	c := qt.New(t)
	d := vkrtest.New()
	d.MessengerExtensions = []string{"VK_EXT_debug_report", "VK_EXT_debug_utils"}

	debugger, err := vkr.NewDebugger(d, vkr.DefaultDebugConfiguration())
	c.Assert(err, qt.IsNil)
	c.Assert(debugger.CreateInfoChain().Messenger.Extension, qt.Equals, "VK_EXT_debug_utils")

	d.InstanceExtensions = append(d.InstanceExtensions, "VK_EXT_debug_report")
	debugger, err = vkr.NewDebugger(d, vkr.DefaultDebugConfiguration())
	c.Assert(err, qt.IsNil)
	c.Assert(debugger.CreateInfoChain().Messenger.Extension, qt.Equals, "VK_EXT_debug_report")
}

func TestDebuggerNoMessengerExtension(t *testing.T) {
	c := qt.New(t)
	d := vkrtest.New()
	d.InstanceExtensions = []string{"VK_KHR_surface"}

	_, err := vkr.NewDebugger(d, vkr.DefaultDebugConfiguration())
	c.Assert(err, qt.ErrorIs, vkr.ErrExtensionAbsent)
}

func TestDebuggerExtendedValidation(t *testing.T) {
	c := qt.New(t)
	d := vkrtest.New()

	cfg := vkr.DefaultDebugConfiguration()
	cfg.GPUAssisted = true
	cfg.Disabled = []vkr.ValidationCheck{vkr.ValidationCheckShaders}
	debugger, err := vkr.NewDebugger(d, cfg)
	c.Assert(err, qt.IsNil)
	c.Assert(debugger.Extensions(), qt.Contains, vkr.ValidationFeaturesExtensionName)

	chain := debugger.CreateInfoChain()
	c.Assert(chain.Validation, qt.IsNotNil)
	c.Assert(chain.Validation.GPUAssisted, qt.IsTrue)
	c.Assert(chain.Validation.Disabled, qt.DeepEquals, []vkr.ValidationCheck{vkr.ValidationCheckShaders})
	c.Assert(chain.Messenger.Severity, qt.Equals, vkr.DebugSeverityWarning|vkr.DebugSeverityError)

	d.InstanceExtensions = []string{"VK_KHR_surface", "VK_EXT_debug_utils"}
	debugger, err = vkr.NewDebugger(d, cfg)
	c.Assert(err, qt.IsNil)
	c.Assert(debugger.Extensions(), qt.DeepEquals, []string{"VK_EXT_debug_utils"})
	c.Assert(debugger.CreateInfoChain().Validation, qt.IsNil)
}

func TestDebuggerCountsMessages(t *testing.T) {
	c := qt.New(t)
	d := vkrtest.New()
	leakCheck(c, d)

	debug := vkr.DefaultDebugConfiguration()
	inst := newInstance(c, d, &debug)

	messages := []vkr.DebugSeverity{
		vkr.DebugSeverityError,
		vkr.DebugSeverityWarning,
		vkr.DebugSeverityWarning,
		vkr.DebugSeverityInfo,
		vkr.DebugSeverityVerbose,
		vkr.DebugSeverityError | vkr.DebugSeverityWarning,
	}
	for _, severity := range messages {
		abort := d.Emit(vkr.DebugMessage{
			Severity: severity,
			Type:     vkr.DebugMessageValidation,
			Layer:    vkr.DefaultValidationLayer,
			Message:  "message",
		})
		c.Assert(abort, qt.IsFalse)
	}
	c.Assert(inst.Debugger().Counts(), qt.Equals, vkr.DebugCounts{
		Verbose: 1,
		Info:    1,
		Warning: 2,
		Error:   2,
	})
}

func TestDebugMarkers(t *testing.T) {
	c := qt.New(t)
	d := vkrtest.New()
	d.DebugUtils = true

	debug := vkr.DefaultDebugConfiguration()
	debug.Markers = true
	f := newDebugFixture(c, d, &debug)
	debugger := f.device.Debugger()
	c.Assert(debugger.MarkersEnabled(), qt.IsTrue)

	cmd := f.commandBuffers(c, 1)[0]
	red := glm.Vec4{1, 0, 0, 1}

	// Not recording yet: ignored.
	debugger.BeginRegion(cmd, "early", red)

	c.Assert(cmd.Begin(true), qt.IsNil)
	debugger.BeginRegion(cmd, "frame", red)
	debugger.InsertLabel(cmd, "draw", red)
	debugger.EndRegion(cmd)
	c.Assert(cmd.End(), qt.IsNil)

	// Executable: ignored too.
	debugger.EndRegion(cmd)

	q, _ := f.device.Queue(vkr.RoleGraphics)
	debugger.BeginQueueRegion(q, "upload", red)
	debugger.EndQueueRegion(q)

	f.device.SetObjectName(vkr.ObjectTypeCommandBuffer, cmd.Handle(), "main")

	c.Assert(d.Labels(), qt.DeepEquals, []string{
		"begin frame",
		"insert draw",
		"end",
		"queue begin upload",
		"queue end",
		"name 6 main",
	})
}

func TestDebugMarkersUnsupported(t *testing.T) {
	c := qt.New(t)
	d := vkrtest.New()

	debug := vkr.DefaultDebugConfiguration()
	debug.Markers = true
	f := newDebugFixture(c, d, &debug)
	c.Assert(f.device.Debugger().MarkersEnabled(), qt.IsFalse)

	cmd := f.commandBuffers(c, 1)[0]
	c.Assert(cmd.Begin(true), qt.IsNil)
	f.device.Debugger().BeginRegion(cmd, "frame", glm.Vec4{})
	f.device.SetObjectName(vkr.ObjectTypeCommandBuffer, cmd.Handle(), "main")
	c.Assert(d.Labels(), qt.HasLen, 0)
}

func TestNilDebugger(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())

	var debugger *vkr.Debugger
	c.Assert(debugger.MarkersEnabled(), qt.IsFalse)
	c.Assert(f.device.Debugger(), qt.IsNil)

	cmd := f.commandBuffers(c, 1)[0]
	debugger.BeginRegion(cmd, "frame", glm.Vec4{})
	debugger.EndRegion(cmd)
	f.device.SetObjectName(vkr.ObjectTypeDevice, f.device.Handle(), "device")
	c.Assert(f.driver.Labels(), qt.HasLen, 0)
}
