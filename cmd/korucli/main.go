// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"flag"
	"math"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/koru3d/engine/core"
	"github.com/koru3d/engine/gfx/vkr"
	"github.com/koru3d/engine/gfx/vkr/vkapi"
)

var (
	envFiles = flag.String("env", "", "Comma separated .env files to load the configuration from")
	indent   = flag.Bool("indent", true, "Indent the JSON output")
)

// deviceReport is printed for every physical device.
type deviceReport struct {
	Name          string                    `json:"name"`
	Type          string                    `json:"type"`
	APIVersion    string                    `json:"apiVersion"`
	DriverVersion uint32                    `json:"driverVersion"`
	VendorID      uint32                    `json:"vendorID"`
	DeviceID      uint32                    `json:"deviceID"`
	LocalMemory   uint64                    `json:"deviceLocalMemory"`
	Features      vkr.Features              `json:"features"`
	Limits        vkr.Limits                `json:"limits"`
	QueueFamilies []queueFamilyReport       `json:"queueFamilies"`
	Extensions    []string                  `json:"extensions"`
	Strategies    map[string]strategyReport `json:"strategies"`
}

type queueFamilyReport struct {
	Flags string `json:"flags"`
	Count uint32 `json:"count"`
}

// strategyReport holds the score of a device under one strategy,
// nil when the device does not qualify, along with the reasons.
type strategyReport struct {
	Score *int32   `json:"score"`
	Unmet []string `json:"unmet,omitempty"`
}

func main() {
	flag.Parse()

	var files []string
	if *envFiles != "" {
		files = strings.Split(*envFiles, ",")
	}
	cfg, err := core.LoadConfiguration(files...)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	log.SetLevel(cfg.LogLevel)

	driver, err := vkapi.New(nil)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	instance, err := vkr.NewInstance(driver, cfg.Instance, nil)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	defer instance.Destroy()

	devices := instance.PhysicalDevices()
	picker := vkr.NewDevicePicker(devices, nil)
	reports := make([]deviceReport, len(devices))
	for i, pd := range devices {
		reports[i] = report(pd)
	}

	// Headless, so presentation requirements can never be met.
	for _, s := range vkr.Strategies {
		reqs := vkr.StrategyRequirements(s)
		for i, score := range picker.Scores(reqs) {
			var r strategyReport
			if score != math.MinInt32 {
				score := score
				r.Score = &score
			} else {
				r.Unmet = devices[i].Check(reqs, nil)
			}
			reports[i].Strategies[s.String()] = r
		}
	}

	enc := json.NewEncoder(os.Stdout)
	if *indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(reports); err != nil {
		log.Fatalf("%+v", err)
	}
}

func report(pd *vkr.PhysicalDevice) deviceReport {
	props := pd.Properties()
	r := deviceReport{
		Name:          props.Name,
		Type:          props.Type.String(),
		APIVersion:    props.APIVersion.String(),
		DriverVersion: props.DriverVersion,
		VendorID:      props.VendorID,
		DeviceID:      props.DeviceID,
		LocalMemory:   pd.DeviceLocalMemory(),
		Features:      props.Features,
		Limits:        props.Limits,
		Extensions:    props.Extensions,
		Strategies:    make(map[string]strategyReport, len(vkr.Strategies)),
	}
	for _, family := range props.QueueFamilies {
		r.QueueFamilies = append(r.QueueFamilies, queueFamilyReport{
			Flags: family.Flags.String(),
			Count: family.QueueCount,
		})
	}
	return r
}
