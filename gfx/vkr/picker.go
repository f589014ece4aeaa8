// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
)

// Strategy selects a canned set of device requirements.
type Strategy int

// Selection strategies.
const (
	StrategyHighPerformance Strategy = iota
	StrategyPowerEfficient
	StrategyComputeFocused
)

// Strategies lists every strategy.
var Strategies = []Strategy{StrategyHighPerformance, StrategyPowerEfficient, StrategyComputeFocused}

func (s Strategy) String() string {
	switch s {
	case StrategyHighPerformance:
		return "high-performance"
	case StrategyPowerEfficient:
		return "power-efficient"
	case StrategyComputeFocused:
		return "compute"
	}
	return "unknown"
}

// ParseStrategy is the inverse of Strategy.String.
func ParseStrategy(s string) (Strategy, error) {
	for _, strategy := range Strategies {
		if strategy.String() == s {
			return strategy, nil
		}
	}
	return 0, errors.Newf("vkr: unknown strategy %q", s)
}

// StrategyRequirements returns the requirement preset of a strategy.
func StrategyRequirements(s Strategy) PhysicalDeviceRequirements {
	switch s {
	case StrategyPowerEfficient:
		return PhysicalDeviceRequirements{
			RequiredExtensions: []string{SwapchainExtensionName},
			RequiredQueues:     QueueGraphics,
			RequirePresent:     true,
			PreferredTypes:     []DeviceType{DeviceTypeIntegratedGPU, DeviceTypeDiscreteGPU, DeviceTypeVirtualGPU},
		}
	case StrategyComputeFocused:
		return PhysicalDeviceRequirements{
			RequiredQueues:       QueueCompute | QueueTransfer,
			MinDeviceLocalMemory: 1 * GiB,
			PreferredTypes:       []DeviceType{DeviceTypeDiscreteGPU, DeviceTypeIntegratedGPU, DeviceTypeVirtualGPU},
		}
	default:
		return PhysicalDeviceRequirements{
			RequiredExtensions: []string{SwapchainExtensionName},
			RequiredQueues:     QueueGraphics,
			RequirePresent:     true,
			RequiredFeatures: &Features{
				SamplerAnisotropy: true,
				GeometryShader:    true,
			},
			PreferredTypes: []DeviceType{DeviceTypeDiscreteGPU, DeviceTypeIntegratedGPU, DeviceTypeVirtualGPU},
		}
	}
}

// Selection is the outcome of a successful pick.
type Selection struct {
	Device        *PhysicalDevice
	Score         int32
	BestEffort    bool
	Requirements  PhysicalDeviceRequirements
	Configuration DeviceConfiguration
}

// DevicePicker chooses among physical devices.
type DevicePicker struct {
	devices []*PhysicalDevice
	surface *Surface
}

// NewDevicePicker picks among devices. Surface may be nil when
// no requirement asks for presentation.
func NewDevicePicker(devices []*PhysicalDevice, surface *Surface) *DevicePicker {
	return &DevicePicker{
		devices: devices,
		surface: surface,
	}
}

// PickBest picks with the requirement preset of strategy.
func (p *DevicePicker) PickBest(strategy Strategy, allowBestEffort bool) (Selection, error) {
	return p.PickCustom(StrategyRequirements(strategy), allowBestEffort)
}

// PickCustom returns the highest scoring device meeting reqs, the
// first one enumerated on ties. With allowBestEffort, when no device
// qualifies, the feature requirements are dropped and the qualifying
// devices are ranked with the original requirements' weights.
func (p *DevicePicker) PickCustom(reqs PhysicalDeviceRequirements, allowBestEffort bool) (Selection, error) {
	var (
		best       *PhysicalDevice
		bestScore  int32
		bestEffort bool
	)

	for _, pd := range p.devices {
		score := pd.Score(reqs, p.surface)
		if score == math.MinInt32 {
			continue
		}
		if best == nil || score > bestScore {
			best, bestScore = pd, score
		}
	}

	if best == nil && allowBestEffort {
		relaxed := reqs.relaxed()
		for _, pd := range p.devices {
			if !pd.MeetsRequirements(relaxed, p.surface) {
				continue
			}
			score := pd.rank(reqs)
			if best == nil || score > bestScore {
				best, bestScore = pd, score
			}
		}
		if best != nil {
			bestEffort = true
			Logger().WithFields(log.Fields{
				"device":  best.Name(),
				"missing": best.Check(reqs, p.surface),
			}).Warn("no device meets every requirement, falling back to best effort")
		}
	}

	if best == nil {
		return Selection{}, ErrNoSuitableDevice
	}

	cfg, err := NewDeviceConfiguration(best, reqs, p.surface)
	if err != nil {
		return Selection{}, err
	}

	Logger().WithFields(log.Fields{
		"device":     best.Name(),
		"type":       best.Type(),
		"score":      bestScore,
		"bestEffort": bestEffort,
	}).Info("physical device selected")

	return Selection{
		Device:        best,
		Score:         bestScore,
		BestEffort:    bestEffort,
		Requirements:  reqs,
		Configuration: cfg,
	}, nil
}

// Scores returns the score of every device, in enumeration order.
func (p *DevicePicker) Scores(reqs PhysicalDeviceRequirements) []int32 {
	scores := make([]int32, len(p.devices))
	for i, pd := range p.devices {
		scores[i] = pd.Score(reqs, p.surface)
	}
	return scores
}

// QueueRole is the purpose a queue family was resolved for.
type QueueRole int

// Queue roles.
const (
	RoleGraphics QueueRole = iota
	RoleCompute
	RoleTransfer
	RolePresent
)

func (r QueueRole) String() string {
	switch r {
	case RoleGraphics:
		return "graphics"
	case RoleCompute:
		return "compute"
	case RoleTransfer:
		return "transfer"
	case RolePresent:
		return "present"
	}
	return "unknown"
}

var roleFlags = map[QueueFlags]QueueRole{
	QueueGraphics: RoleGraphics,
	QueueCompute:  RoleCompute,
	QueueTransfer: RoleTransfer,
}

// QueueConfiguration requests len(Priorities) queues from one family.
type QueueConfiguration struct {
	Family     uint32
	Priorities []float32
}

// DeviceConfiguration is what a Device is built from.
type DeviceConfiguration struct {
	// Queues is keyed by family. Families serving several roles
	// appear once.
	Queues map[uint32]*QueueConfiguration

	// Roles maps every resolved role to its family.
	Roles map[QueueRole]uint32

	Extensions []string
	Features   *Features
}

// Families returns the configured families in ascending order.
func (c DeviceConfiguration) Families() []uint32 {
	families := make([]uint32, 0, len(c.Queues))
	for family := range c.Queues {
		families = append(families, family)
	}
	sort.Slice(families, func(i, j int) bool { return families[i] < families[j] })
	return families
}

// UniqueFamilies returns the distinct families of the given roles,
// in role order.
func (c DeviceConfiguration) UniqueFamilies(roles ...QueueRole) []uint32 {
	var families []uint32
	for _, role := range roles {
		family, ok := c.Roles[role]
		if !ok {
			continue
		}
		dup := false
		for _, f := range families {
			if f == family {
				dup = true
				break
			}
		}
		if !dup {
			families = append(families, family)
		}
	}
	return families
}

// NewDeviceConfiguration resolves one queue family per required role
// on pd, sharing a family between roles whenever it serves both.
// Requested features are limited to those pd supports.
func NewDeviceConfiguration(pd *PhysicalDevice, reqs PhysicalDeviceRequirements, surface *Surface) (DeviceConfiguration, error) {
	cfg := DeviceConfiguration{
		Queues:     make(map[uint32]*QueueConfiguration),
		Roles:      make(map[QueueRole]uint32),
		Extensions: dedup(reqs.RequiredExtensions),
	}

	// Families required without a role still get a queue.
	var unnamed []uint32
	for _, bit := range reqs.RequiredQueues.Bits() {
		family, ok := pd.QueueFamily(bit)
		if !ok {
			return DeviceConfiguration{}, errors.Wrapf(ErrQueueFamilyAbsent, "vkr: %s on %s", bit, pd.Name())
		}
		if role, ok := roleFlags[bit]; ok {
			cfg.Roles[role] = family
		} else {
			unnamed = append(unnamed, family)
		}
	}

	if reqs.RequirePresent {
		if surface == nil {
			return DeviceConfiguration{}, ErrNoSurface
		}
		family, ok := pd.PresentFamily(surface)
		if !ok {
			return DeviceConfiguration{}, errors.Wrapf(ErrQueueFamilyAbsent, "vkr: present on %s", pd.Name())
		}
		if graphics, ok := cfg.Roles[RoleGraphics]; ok && graphics != family {
			// Prefer presenting from the graphics family when it can.
			if supported, err := pd.instance.driver.SurfaceSupport(pd.handle, graphics, surface.handle); err == nil && supported {
				family = graphics
			}
		}
		cfg.Roles[RolePresent] = family
	}

	families := unnamed
	for _, family := range cfg.Roles {
		families = append(families, family)
	}
	for _, family := range families {
		if _, ok := cfg.Queues[family]; !ok {
			cfg.Queues[family] = &QueueConfiguration{
				Family:     family,
				Priorities: []float32{1},
			}
		}
	}

	if reqs.RequiredFeatures != nil {
		features := reqs.RequiredFeatures.Intersect(pd.Features())
		cfg.Features = &features
	}
	return cfg, nil
}
