// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import "math"

// SwapchainExtensionName is the device extension needed for presentation.
const SwapchainExtensionName = "VK_KHR_swapchain"

// GiB is a gibibyte.
const GiB = 1 << 30

const (
	typeRankWeight   = 1000
	memoryBaseBonus  = 100
	memoryRatioBonus = 50
	memoryGiBBonus   = 10
	memoryBonusMax   = 999

	geometryShaderBonus    = 10
	tessellationBonus      = 10
	samplerAnisotropyBonus = 5
)

// PhysicalDeviceRequirements is what a device must offer to be picked,
// plus the preferences used to rank devices that qualify.
type PhysicalDeviceRequirements struct {
	MinAPIVersion      Version
	RequiredExtensions []string

	// RequiredQueues must each be served by some queue family,
	// not necessarily the same one.
	RequiredQueues QueueFlags
	RequirePresent bool

	// MinDeviceLocalMemory in bytes, zero for no minimum.
	MinDeviceLocalMemory uint64

	// RequiredFeatures is compared field by field when set.
	RequiredFeatures *Features

	// PreferredTypes ranks device types, best first.
	PreferredTypes []DeviceType

	// Scorer replaces the default ranking formula when set.
	Scorer Scorer
}

// relaxed drops the feature requirements, keeping queues,
// extensions, presentation and the ranking preferences.
func (r PhysicalDeviceRequirements) relaxed() PhysicalDeviceRequirements {
	r.RequiredFeatures = nil
	return r
}

// Scorer ranks a physical device that met the requirements.
type Scorer interface {
	Score(pd *PhysicalDevice, reqs PhysicalDeviceRequirements) int32
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(pd *PhysicalDevice, reqs PhysicalDeviceRequirements) int32

// Score calls f.
func (f ScorerFunc) Score(pd *PhysicalDevice, reqs PhysicalDeviceRequirements) int32 {
	return f(pd, reqs)
}

// DefaultScore is the ranking used when no Scorer is set: the device
// type preference rank, a device local memory bonus and small bonuses
// for optional features.
func DefaultScore(pd *PhysicalDevice, reqs PhysicalDeviceRequirements) int32 {
	var score int64

	for i, t := range reqs.PreferredTypes {
		if t == pd.Type() {
			score += int64(len(reqs.PreferredTypes)-i) * typeRankWeight
			break
		}
	}

	var bonus int64
	memory := pd.DeviceLocalMemory()
	if reqs.MinDeviceLocalMemory > 0 {
		ratio := float64(memory) / float64(reqs.MinDeviceLocalMemory)
		bonus = memoryBaseBonus + int64(ratio*memoryRatioBonus)
	} else {
		bonus = int64(memory/GiB) * memoryGiBBonus
	}
	if bonus > memoryBonusMax {
		bonus = memoryBonusMax
	}
	score += bonus

	features := pd.Features()
	if features.GeometryShader {
		score += geometryShaderBonus
	}
	if features.TessellationShader {
		score += tessellationBonus
	}
	if features.SamplerAnisotropy {
		score += samplerAnisotropyBonus
	}

	if score > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(score)
}
