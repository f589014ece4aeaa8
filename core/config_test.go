// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	log "github.com/sirupsen/logrus"

	"github.com/koru3d/engine/core"
	"github.com/koru3d/engine/core/workers"
	"github.com/koru3d/engine/gfx"
	"github.com/koru3d/engine/gfx/vkr"
)

var keys = []string{
	core.EnvWidth,
	core.EnvHeight,
	core.EnvValidation,
	core.EnvDebugMarkers,
	core.EnvFramesInFlight,
	core.EnvImageCount,
	core.EnvPresentMode,
	core.EnvStrategy,
	core.EnvFPS,
	core.EnvEventPollMs,
	core.EnvLogLevel,
	core.EnvWorkersPrefix + "RENDERING",
	core.EnvWorkersPrefix + "COMPUTE",
	core.EnvWorkersPrefix + "IO",
	core.EnvWorkersPrefix + "GENERAL",
}

// clearEnv unsets every configuration key for the test,
// restoring them afterwards.
func clearEnv(c *qt.C) {
	for _, key := range keys {
		c.Setenv(key, "")
		key := key
		os.Unsetenv(key)
		c.Cleanup(func() { os.Unsetenv(key) })
	}
}

func TestDefaultConfiguration(t *testing.T) {
	c := qt.New(t)
	clearEnv(c)

	cfg, err := core.LoadConfiguration()
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Window.Size, qt.Equals, gfx.Extent2D{Width: 800, Height: 600})
	c.Assert(cfg.Validation, qt.IsFalse)
	c.Assert(cfg.Strategy, qt.Equals, vkr.StrategyHighPerformance)
	c.Assert(cfg.Graphics.MaxFramesInFlight, qt.Equals, 2)
	c.Assert(cfg.Graphics.ClearColor[3], qt.Equals, float32(1))
	c.Assert(cfg.Time.FramesPerSecond, qt.Equals, 60)
	c.Assert(cfg.LogLevel, qt.Equals, log.InfoLevel)
	c.Assert(cfg.Workers.Concurrency[workers.IO], qt.Equals, 4)
}

func TestLoadConfigurationFromEnvironment(t *testing.T) {
	c := qt.New(t)
	clearEnv(c)

	c.Setenv(core.EnvWidth, "1280")
	c.Setenv(core.EnvHeight, " 720 ")
	c.Setenv(core.EnvValidation, "true")
	c.Setenv(core.EnvDebugMarkers, "1")
	c.Setenv(core.EnvFramesInFlight, "3")
	c.Setenv(core.EnvImageCount, "4")
	c.Setenv(core.EnvPresentMode, "fifo-relaxed")
	c.Setenv(core.EnvStrategy, "power-efficient")
	c.Setenv(core.EnvFPS, "0")
	c.Setenv(core.EnvEventPollMs, "16")
	c.Setenv(core.EnvLogLevel, "debug")
	c.Setenv(core.EnvWorkersPrefix+"COMPUTE", "6")

	cfg, err := core.LoadConfiguration()
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Window.Size, qt.Equals, gfx.Extent2D{Width: 1280, Height: 720})
	c.Assert(cfg.Validation, qt.IsTrue)
	c.Assert(cfg.Debug.Markers, qt.IsTrue)
	c.Assert(cfg.Graphics.MaxFramesInFlight, qt.Equals, 3)
	c.Assert(cfg.Graphics.Swapchain.ImageCount, qt.Equals, uint32(4))
	c.Assert(cfg.Graphics.Swapchain.PresentMode, qt.Equals, vkr.PresentModeFIFORelaxed)
	c.Assert(cfg.Strategy, qt.Equals, vkr.StrategyPowerEfficient)
	c.Assert(cfg.Time.FramesPerSecond, qt.Equals, 0)
	c.Assert(cfg.Time.EventPollDelay, qt.Equals, 16)
	c.Assert(cfg.LogLevel, qt.Equals, log.DebugLevel)
	c.Assert(cfg.Workers.Concurrency[workers.Compute], qt.Equals, 6)
}

func TestLoadConfigurationFromFile(t *testing.T) {
	c := qt.New(t)
	clearEnv(c)

	file := filepath.Join(c.TempDir(), "koru.env")
	err := os.WriteFile(file, []byte("KORU_WIDTH=1024\nKORU_STRATEGY=compute\n"), 0o600)
	c.Assert(err, qt.IsNil)

	cfg, err := core.LoadConfiguration(file)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Window.Size.Width, qt.Equals, uint32(1024))
	c.Assert(cfg.Strategy, qt.Equals, vkr.StrategyComputeFocused)

	_, err = core.LoadConfiguration(filepath.Join(c.TempDir(), "missing.env"))
	c.Assert(err, qt.ErrorMatches, "core: load environment files: .*")
}

func TestLoadConfigurationMalformed(t *testing.T) {
	tests := []struct {
		key, value, err string
	}{
		{core.EnvWidth, "wide", `core: KORU_WIDTH="wide": .*invalid syntax`},
		{core.EnvHeight, "-1", `core: KORU_HEIGHT="-1": .*`},
		{core.EnvValidation, "maybe", `core: KORU_VALIDATION="maybe": .*`},
		{core.EnvPresentMode, "vsync", `core: KORU_PRESENT_MODE="vsync": unknown present mode "vsync"`},
		{core.EnvStrategy, "fastest", `core: KORU_STRATEGY="fastest": vkr: unknown strategy "fastest"`},
		{core.EnvLogLevel, "loud", `core: KORU_LOG_LEVEL="loud": .*`},
		{core.EnvWorkersPrefix + "IO", "0", `core: KORU_WORKERS_IO="0": concurrency 0 is not positive`},
	}
	for _, test := range tests {
		test := test
		t.Run(test.key, func(t *testing.T) {
			c := qt.New(t)
			clearEnv(c)
			c.Setenv(test.key, test.value)

			_, err := core.LoadConfiguration()
			c.Assert(err, qt.ErrorMatches, test.err)
		})
	}
}

func TestTime(t *testing.T) {
	c := qt.New(t)

	tm := core.NewTime(core.TimeConfiguration{FramesPerSecond: 50, EventPollDelay: 2})
	defer tm.Stop()
	c.Assert(tm.Fps(), qt.Equals, 50)
	c.Assert(tm.EventPollDelay(), qt.Equals, 2*time.Millisecond)

	select {
	case <-tm.EventTicker().C:
	case <-time.After(time.Second):
		c.Fatal("event ticker did not tick")
	}
	select {
	case <-tm.FpsTicker().C:
	case <-time.After(time.Second):
		c.Fatal("frame ticker did not tick")
	}

	c.Assert(core.TimeConfiguration{FramesPerSecond: 50}.FrameInterval(), qt.Equals, 20*time.Millisecond)
	c.Assert(core.TimeConfiguration{}.FrameInterval(), qt.Equals, time.Duration(0))

	uncapped := core.NewTime(core.TimeConfiguration{})
	uncapped.Stop()
	c.Assert(uncapped.Fps(), qt.Equals, 0)
	c.Assert(uncapped.EventPollDelay(), qt.Equals, time.Millisecond)
}
