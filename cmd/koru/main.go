// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strings"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	log "github.com/sirupsen/logrus"

	"github.com/koru3d/engine/core"
	"github.com/koru3d/engine/core/workers"
	"github.com/koru3d/engine/gfx/vkr"
	"github.com/koru3d/engine/gfx/vkr/vkapi"
	"github.com/koru3d/engine/window/glfwwindow"
	"github.com/koru3d/engine/window/sdlwindow"
)

func init() {
	runtime.LockOSThread()
}

// Profiling
var (
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile   = flag.String("memprof", "", "Profile memory usage into a file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
)

var (
	debug    = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	markers  = flag.Bool("markers", false, "Enable debug markers, implies -vkdbg")
	strategy = flag.String("strategy", "", "Device selection strategy: high-performance, power-efficient or compute")
	envFiles = flag.String("env", "", "Comma separated .env files to load the configuration from")
	logLevel = flag.String("loglevel", "", "Log level, overrides KORU_LOG_LEVEL")
	useGLFW  = flag.Bool("glfw", false, "Use GLFW instead of SDL for the window")
)

// window is what the engine needs from either window backend.
type window interface {
	vkr.SurfaceWindow
	Extensions() []string
	ProcAddr() unsafe.Pointer
	PollEvents() bool
	Destroy()
}

var frameCounter atomic.Int64

func main() {
	flag.Parse()

	cfg, err := configure()
	if err != nil {
		log.Fatalf("%+v", err)
	}
	log.SetLevel(cfg.LogLevel)

	os.Exit(profiled(func() error {
		return run(cfg)
	}))
}

// profiled runs fn with the requested profiles and returns the exit
// code, non-zero when fn fails. Profiles are written either way.
func profiled(fn func() error) int {
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := trace.Start(f); err != nil {
			log.Fatal(err)
		}
		defer trace.Stop()
	}

	code := 0
	if err := fn(); err != nil {
		log.Errorf("%+v", err)
		code = 1
	}

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
	}
	return code
}

// configure loads the environment configuration and applies the flags on top.
func configure() (core.Configuration, error) {
	var files []string
	if *envFiles != "" {
		files = strings.Split(*envFiles, ",")
	}
	cfg, err := core.LoadConfiguration(files...)
	if err != nil {
		return cfg, err
	}

	if *debug || *markers {
		cfg.Validation = true
	}
	if *markers {
		cfg.Debug.Markers = true
	}
	if *strategy != "" {
		if cfg.Strategy, err = vkr.ParseStrategy(*strategy); err != nil {
			return cfg, err
		}
	}
	if *logLevel != "" {
		if cfg.LogLevel, err = log.ParseLevel(*logLevel); err != nil {
			return cfg, errors.Wrap(err, "-loglevel")
		}
	}
	return cfg, nil
}

func newWindow(cfg core.WindowConfiguration) (window, error) {
	if *useGLFW {
		return glfwwindow.New(cfg.Title, cfg.Size)
	}
	return sdlwindow.New(cfg.Title, cfg.Size)
}

func run(cfg core.Configuration) error {
	w, err := newWindow(cfg.Window)
	if err != nil {
		return err
	}
	defer w.Destroy()

	driver, err := vkapi.New(w.ProcAddr())
	if err != nil {
		return err
	}

	instanceConfig := cfg.Instance
	instanceConfig.Extensions = append(instanceConfig.Extensions, w.Extensions()...)
	var debugConfig *vkr.DebugConfiguration
	if cfg.Validation {
		debugConfig = &cfg.Debug
	}
	instance, err := vkr.NewInstance(driver, instanceConfig, debugConfig)
	if err != nil {
		return err
	}
	defer instance.Destroy()

	surface, err := vkr.NewSurface(instance, w)
	if err != nil {
		return err
	}
	defer surface.Destroy()

	selection, err := vkr.NewDevicePicker(instance.PhysicalDevices(), surface).PickBest(cfg.Strategy, true)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"device":     selection.Device.Name(),
		"type":       selection.Device.Type(),
		"score":      selection.Score,
		"bestEffort": selection.BestEffort,
		"strategy":   cfg.Strategy,
	}).Info("physical device selected")

	device, err := vkr.NewDevice(selection.Device, selection.Configuration)
	if err != nil {
		return err
	}
	defer device.Destroy()

	formats, err := surface.Formats(selection.Device)
	if err != nil {
		return err
	}
	swapchainConfig := cfg.Graphics.Swapchain
	format, err := vkr.ChooseSurfaceFormat(formats, swapchainConfig.Format, swapchainConfig.ColorSpace)
	if err != nil {
		return err
	}
	cfg.Graphics.Swapchain.Format = format.Format
	cfg.Graphics.Swapchain.ColorSpace = format.ColorSpace

	renderPass, err := vkr.NewRenderPass(device, cfg.Graphics.AttachmentDescriptions(format.Format)...)
	if err != nil {
		return err
	}
	defer renderPass.Destroy()

	renderer, err := vkr.NewRenderer(device, surface, w, renderPass, cfg.Graphics)
	if err != nil {
		return err
	}
	defer renderer.Destroy()

	manager := workers.NewManager(cfg.Workers)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := manager.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("workers did not stop in time")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	counter, err := manager.Submit(ctx, workers.General, countFrames)
	if err != nil {
		return err
	}

	// Both loops stay on the locked main thread, window
	// events and the swapchain surface are bound to it.
	timeService := core.NewTime(cfg.Time)
	defer timeService.Stop()

EventLoop:
	for {
		select {
		case <-timeService.EventTicker().C:
			if w.PollEvents() {
				break EventLoop
			}
		case <-timeService.FpsTicker().C:
			if err := renderer.DrawFrame(vkr.ClearPass); err != nil {
				log.WithError(err).Error("draw frame")
				if errors.Is(err, vkr.ErrDeviceLost) {
					break EventLoop
				}
				continue
			}
			frameCounter.Add(1)
		}
	}
	log.Info("event loop exited")

	cancel()
	if err := counter.Wait(); err != nil {
		log.WithError(err).Warn("frame counter")
	}

	stats := renderer.Stats()
	log.WithFields(log.Fields{
		"frames":      stats.Frames,
		"skipped":     stats.Skipped,
		"recreations": stats.Recreations,
		"average":     stats.Average,
	}).Info("renderer stopped")
	return nil
}

// countFrames prints the frame rate until ctx is done.
func countFrames(ctx context.Context) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	last := hrtime.Now()
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case <-ticker.C:
			now := hrtime.Now()
			count := frameCounter.Swap(0)
			fps := float64(count) / (now - last).Seconds()
			last = now
			fmt.Printf("\r\033[2KFrames per second: %.0f\tCGO calls: %d", fps, runtime.NumCgoCall())
		}
	}
}
