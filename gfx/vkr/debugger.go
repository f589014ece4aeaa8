// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
)

// DefaultValidationLayer is requested when no layers are configured.
const DefaultValidationLayer = "VK_LAYER_KHRONOS_validation"

// ValidationFeaturesExtensionName enables extended validation.
const ValidationFeaturesExtensionName = "VK_EXT_validation_features"

// DebugSeverity is a set of message severities.
type DebugSeverity uint32

// Message severities, numerically equal to the native ones.
const (
	DebugSeverityVerbose DebugSeverity = 0x0001
	DebugSeverityInfo    DebugSeverity = 0x0010
	DebugSeverityWarning DebugSeverity = 0x0100
	DebugSeverityError   DebugSeverity = 0x1000
)

// DebugMessageType is a set of message categories.
type DebugMessageType uint32

// Message categories, numerically equal to the native ones.
const (
	DebugMessageGeneral     DebugMessageType = 0x1
	DebugMessageValidation  DebugMessageType = 0x2
	DebugMessagePerformance DebugMessageType = 0x4
)

// ValidationCheck names a group of validation checks that can be disabled.
type ValidationCheck int32

// Validation check groups, numerically equal to the native ones.
const (
	ValidationCheckAll ValidationCheck = iota
	ValidationCheckShaders
	ValidationCheckThreadSafety
	ValidationCheckAPIParameters
	ValidationCheckObjectLifetimes
	ValidationCheckCoreChecks
	ValidationCheckUniqueHandles
)

// DebugMessage is one message delivered by the debug messenger.
type DebugMessage struct {
	Severity DebugSeverity
	Type     DebugMessageType
	ID       int32
	Layer    string
	Message  string
}

// DebugCallback receives messenger output. Returning true asks
// the layer to abort the call that triggered the message.
type DebugCallback func(DebugMessage) bool

// DebugConfiguration configures validation and debug markers.
type DebugConfiguration struct {
	// Layers to enable, DefaultValidationLayer if empty.
	// Layers that are not installed are skipped with a warning.
	Layers []string

	Severity DebugSeverity
	Types    DebugMessageType

	// Markers enables object naming and region labels.
	Markers bool

	GPUAssisted     bool
	BestPractices   bool
	Synchronization bool
	Disabled        []ValidationCheck
}

// DefaultDebugConfiguration reports warnings and errors of every category.
func DefaultDebugConfiguration() DebugConfiguration {
	return DebugConfiguration{
		Layers:   []string{DefaultValidationLayer},
		Severity: DebugSeverityWarning | DebugSeverityError,
		Types:    DebugMessageGeneral | DebugMessageValidation | DebugMessagePerformance,
	}
}

func (c DebugConfiguration) extendedValidation() bool {
	return c.GPUAssisted || c.BestPractices || c.Synchronization || len(c.Disabled) > 0
}

// DebugCounts is the number of messages received per severity.
type DebugCounts struct {
	Verbose uint64
	Info    uint64
	Warning uint64
	Error   uint64
}

// Debugger owns the validation layer selection, the debug messenger
// and the resolved debug marker entry points of one instance.
type Debugger struct {
	driver Driver
	config DebugConfiguration

	availableLayers []string
	layers          []string
	extensions      []string
	messengerExt    string
	validation      bool

	instance  Handle
	messenger Handle
	utils     DebugUtils

	verbose, info, warning, errs atomic.Uint64
}

// NewDebugger discovers the installed validation layers and the
// extensions needed to attach a messenger. It must be created
// before the instance so both can be folded into instance creation.
func NewDebugger(driver Driver, cfg DebugConfiguration) (*Debugger, error) {
	if len(cfg.Layers) == 0 {
		cfg.Layers = []string{DefaultValidationLayer}
	}
	if cfg.Severity == 0 {
		cfg.Severity = DebugSeverityWarning | DebugSeverityError
	}
	if cfg.Types == 0 {
		cfg.Types = DebugMessageGeneral | DebugMessageValidation | DebugMessagePerformance
	}

	available, err := driver.EnumerateInstanceLayers()
	if err != nil {
		return nil, errors.Wrap(err, "vkr: enumerate instance layers")
	}
	instanceExtensions, err := driver.EnumerateInstanceExtensions()
	if err != nil {
		return nil, errors.Wrap(err, "vkr: enumerate instance extensions")
	}

	d := &Debugger{
		driver:          driver,
		config:          cfg,
		availableLayers: available,
	}

	for _, layer := range cfg.Layers {
		if contains(available, layer) {
			d.layers = append(d.layers, layer)
		} else {
			Logger().WithField("layer", layer).Warn("validation layer not installed, skipping")
		}
	}

	for _, ext := range driver.DebugMessengerExtensions() {
		if contains(instanceExtensions, ext) {
			d.messengerExt = ext
			break
		}
	}
	if d.messengerExt == "" {
		return nil, errors.Wrapf(ErrExtensionAbsent, "vkr: no debug messenger extension among %v", driver.DebugMessengerExtensions())
	}
	d.extensions = append(d.extensions, d.messengerExt)

	if cfg.extendedValidation() {
		if contains(instanceExtensions, ValidationFeaturesExtensionName) {
			d.validation = true
			d.extensions = append(d.extensions, ValidationFeaturesExtensionName)
		} else {
			Logger().Warn("extended validation requested but " + ValidationFeaturesExtensionName + " is not available")
		}
	}
	return d, nil
}

// AvailableLayers returns every installed instance layer.
func (d *Debugger) AvailableLayers() []string {
	return d.availableLayers
}

// Layers returns the layers to enable at instance creation.
func (d *Debugger) Layers() []string {
	return d.layers
}

// Extensions returns the instance extensions the debugger needs.
func (d *Debugger) Extensions() []string {
	return d.extensions
}

// CreateInfoChain builds the messenger descriptor and, when extended
// validation is configured and supported, the validation descriptor.
func (d *Debugger) CreateInfoChain() DebugCreateInfoChain {
	chain := DebugCreateInfoChain{
		Messenger: DebugMessengerCreateInfo{
			Extension: d.messengerExt,
			Severity:  d.config.Severity,
			Types:     d.config.Types,
			Callback:  d.handleMessage,
		},
	}
	if d.validation {
		disabled := make([]ValidationCheck, len(d.config.Disabled))
		copy(disabled, d.config.Disabled)
		chain.Validation = &ValidationFeatures{
			GPUAssisted:     d.config.GPUAssisted,
			BestPractices:   d.config.BestPractices,
			Synchronization: d.config.Synchronization,
			Disabled:        disabled,
		}
	}
	return chain
}

// Init attaches the messenger to a created instance and, if markers
// are enabled, resolves the naming and labeling entry points.
func (d *Debugger) Init(instance Handle, chain DebugCreateInfoChain) error {
	messenger, err := d.driver.CreateDebugMessenger(instance, chain.Messenger)
	if err != nil {
		return errors.Wrap(err, "vkr: create debug messenger")
	}
	d.instance = instance
	d.messenger = messenger

	if d.config.Markers {
		d.utils = d.driver.ResolveDebugUtils(instance)
		if d.utils == nil {
			Logger().Warn("debug markers requested but not supported by the driver")
		}
	}
	return nil
}

func (d *Debugger) handleMessage(msg DebugMessage) bool {
	entry := Logger().WithFields(log.Fields{
		"type":  msg.Type,
		"id":    msg.ID,
		"layer": msg.Layer,
	})
	switch {
	case msg.Severity&DebugSeverityError != 0:
		d.errs.Add(1)
		entry.Error(msg.Message)
	case msg.Severity&DebugSeverityWarning != 0:
		d.warning.Add(1)
		entry.Warn(msg.Message)
	case msg.Severity&DebugSeverityInfo != 0:
		d.info.Add(1)
		entry.Info(msg.Message)
	default:
		d.verbose.Add(1)
		entry.Trace(msg.Message)
	}
	return false
}

// Counts returns the number of messages received so far.
func (d *Debugger) Counts() DebugCounts {
	return DebugCounts{
		Verbose: d.verbose.Load(),
		Info:    d.info.Load(),
		Warning: d.warning.Load(),
		Error:   d.errs.Load(),
	}
}

// MarkersEnabled reports whether naming and labels do anything.
func (d *Debugger) MarkersEnabled() bool {
	return d != nil && d.utils != nil
}

// SetObjectName attaches a name to a native object of a device.
func (d *Debugger) SetObjectName(device Handle, kind ObjectType, object Handle, name string) {
	if !d.MarkersEnabled() {
		return
	}
	if err := d.utils.SetObjectName(device, kind, object, name); err != nil {
		Logger().WithError(err).WithField("name", name).Warn("failed to name object")
	}
}

func (d *Debugger) recording(cmd *CommandBuffer, op string) bool {
	if !d.MarkersEnabled() {
		return false
	}
	if cmd.State() != CommandBufferRecording {
		Logger().WithFields(log.Fields{
			"op":    op,
			"state": cmd.State(),
		}).Error("debug label on a command buffer that is not recording")
		return false
	}
	return true
}

// BeginRegion opens a labeled region in a recording command buffer.
func (d *Debugger) BeginRegion(cmd *CommandBuffer, name string, color glm.Vec4) {
	if d.recording(cmd, "BeginRegion") {
		d.utils.CmdBeginLabel(cmd.handle, name, color)
	}
}

// EndRegion closes the innermost labeled region.
func (d *Debugger) EndRegion(cmd *CommandBuffer) {
	if d.recording(cmd, "EndRegion") {
		d.utils.CmdEndLabel(cmd.handle)
	}
}

// InsertLabel inserts a single label into a recording command buffer.
func (d *Debugger) InsertLabel(cmd *CommandBuffer, name string, color glm.Vec4) {
	if d.recording(cmd, "InsertLabel") {
		d.utils.CmdInsertLabel(cmd.handle, name, color)
	}
}

// BeginQueueRegion opens a labeled region on a queue.
func (d *Debugger) BeginQueueRegion(queue *Queue, name string, color glm.Vec4) {
	if d.MarkersEnabled() {
		d.utils.QueueBeginLabel(queue.handle, name, color)
	}
}

// EndQueueRegion closes the innermost labeled region on a queue.
func (d *Debugger) EndQueueRegion(queue *Queue) {
	if d.MarkersEnabled() {
		d.utils.QueueEndLabel(queue.handle)
	}
}

// Destroy detaches the messenger. The instance must still be alive.
func (d *Debugger) Destroy() {
	if d.messenger != NullHandle {
		d.driver.DestroyDebugMessenger(d.instance, d.messenger)
		d.messenger = NullHandle
	}
	d.utils = nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
