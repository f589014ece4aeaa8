// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/koru3d/engine/core/workers"
	"github.com/koru3d/engine/gfx"
	"github.com/koru3d/engine/gfx/vkr"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Window   WindowConfiguration
	Time     TimeConfiguration
	Instance vkr.InstanceConfiguration

	// Validation enables the validation layers and the debug messenger.
	Validation bool
	Debug      vkr.DebugConfiguration

	Strategy vkr.Strategy
	Graphics vkr.GraphicsConfiguration
	Workers  workers.Configuration
	LogLevel log.Level
}

// WindowConfiguration is used to configure the main window
type WindowConfiguration struct {
	Title string
	Size  gfx.Extent2D
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the interval between event polls in milliseconds
	EventPollDelay int
}

// Environment keys read by LoadConfiguration.
const (
	EnvWidth          = "KORU_WIDTH"
	EnvHeight         = "KORU_HEIGHT"
	EnvValidation     = "KORU_VALIDATION"
	EnvDebugMarkers   = "KORU_DEBUG_MARKERS"
	EnvFramesInFlight = "KORU_FRAMES_IN_FLIGHT"
	EnvImageCount     = "KORU_IMAGE_COUNT"
	EnvPresentMode    = "KORU_PRESENT_MODE"
	EnvStrategy       = "KORU_STRATEGY"
	EnvFPS            = "KORU_FPS"
	EnvEventPollMs    = "KORU_EVENT_POLL_MS"
	EnvLogLevel       = "KORU_LOG_LEVEL"

	// EnvWorkersPrefix is followed by an upper case category name,
	// as in KORU_WORKERS_IO.
	EnvWorkersPrefix = "KORU_WORKERS_"
)

// DefaultConfiguration returns the engine defaults
func DefaultConfiguration() Configuration {
	graphics := vkr.DefaultGraphicsConfiguration()
	graphics.ClearColor = glm.Vec4{0.05, 0.05, 0.05, 1}

	return Configuration{
		Window: WindowConfiguration{
			Title: "Koru3D",
			Size:  gfx.Extent2D{Width: 800, Height: 600},
		},
		Time: TimeConfiguration{
			FramesPerSecond: 60,
			EventPollDelay:  5,
		},
		Instance: vkr.DefaultInstanceConfiguration(),
		Debug:    vkr.DefaultDebugConfiguration(),
		Strategy: vkr.StrategyHighPerformance,
		Graphics: graphics,
		Workers:  workers.DefaultConfiguration(),
		LogLevel: log.InfoLevel,
	}
}

// LoadConfiguration loads the given .env files, then overrides the
// defaults with the KORU_* environment. Variables already set in the
// environment take precedence over the files. A malformed value is an
// error naming its key.
func LoadConfiguration(files ...string) (Configuration, error) {
	cfg := DefaultConfiguration()
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return cfg, errors.Wrap(err, "core: load environment files")
		}
	}
	envy.Reload()

	var p parser
	p.uint32(EnvWidth, &cfg.Window.Size.Width)
	p.uint32(EnvHeight, &cfg.Window.Size.Height)
	p.bool(EnvValidation, &cfg.Validation)
	p.bool(EnvDebugMarkers, &cfg.Debug.Markers)
	p.int(EnvFramesInFlight, &cfg.Graphics.MaxFramesInFlight)
	p.uint32(EnvImageCount, &cfg.Graphics.Swapchain.ImageCount)
	p.int(EnvFPS, &cfg.Time.FramesPerSecond)
	p.int(EnvEventPollMs, &cfg.Time.EventPollDelay)

	p.parse(EnvPresentMode, func(s string) error {
		mode, ok := vkr.ParsePresentMode(s)
		if !ok {
			return errors.Newf("unknown present mode %q", s)
		}
		cfg.Graphics.Swapchain.PresentMode = mode
		return nil
	})
	p.parse(EnvStrategy, func(s string) (err error) {
		cfg.Strategy, err = vkr.ParseStrategy(s)
		return err
	})
	p.parse(EnvLogLevel, func(s string) (err error) {
		cfg.LogLevel, err = log.ParseLevel(s)
		return err
	})

	for _, category := range workers.Categories {
		key := EnvWorkersPrefix + strings.ToUpper(category.String())
		p.parse(key, func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil {
				return err
			}
			if n <= 0 {
				return errors.Newf("concurrency %d is not positive", n)
			}
			if cfg.Workers.Concurrency == nil {
				cfg.Workers.Concurrency = make(map[workers.Category]int)
			}
			cfg.Workers.Concurrency[category] = n
			return nil
		})
	}
	return cfg, p.err
}

// FrameInterval is the time between two frames, zero when uncapped.
func (c TimeConfiguration) FrameInterval() time.Duration {
	if c.FramesPerSecond <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.FramesPerSecond)
}

// parser keeps the first error of a series of environment lookups.
type parser struct {
	err error
}

func (p *parser) parse(key string, set func(string) error) {
	if p.err != nil {
		return
	}
	value := strings.TrimSpace(envy.Get(key, ""))
	if value == "" {
		return
	}
	if err := set(value); err != nil {
		p.err = errors.Wrapf(err, "core: %s=%q", key, value)
	}
}

func (p *parser) int(key string, dst *int) {
	p.parse(key, func(s string) (err error) {
		*dst, err = strconv.Atoi(s)
		return err
	})
}

func (p *parser) uint32(key string, dst *uint32) {
	p.parse(key, func(s string) error {
		n, err := strconv.ParseUint(s, 10, 32)
		*dst = uint32(n)
		return err
	})
}

func (p *parser) bool(key string, dst *bool) {
	p.parse(key, func(s string) (err error) {
		*dst, err = strconv.ParseBool(s)
		return err
	})
}
