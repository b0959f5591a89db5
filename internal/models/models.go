// Package models defines the data structures for the car audio service.
// Zones, configurations, and volume groups are assembled from the HAL
// topology at load time; the runtime fields on them (gain, mute, active
// config) are owned by the controller.
package models

import (
	"slices"

	"github.com/opencabin/caraudio-go/internal/audio"
)

// PrimaryZoneID is the zone every system must declare. It hosts the driver
// and is the fallback for anything not routed elsewhere.
const PrimaryZoneID = 0

// DeviceType classifies an output device on the platform side.
type DeviceType string

const (
	DeviceTypeBus             DeviceType = "bus"
	DeviceTypeBuiltinSpeaker  DeviceType = "speaker"
	DeviceTypeBluetoothA2DP   DeviceType = "bt_a2dp"
	DeviceTypeBluetoothSCO    DeviceType = "bt_sco"
	DeviceTypeBLESpeaker      DeviceType = "ble_speaker"
	DeviceTypeBLEHeadset      DeviceType = "ble_headset"
	DeviceTypeBLEBroadcast    DeviceType = "ble_broadcast"
	DeviceTypeWiredHeadphones DeviceType = "wired_headphones"
	DeviceTypeWiredHeadset    DeviceType = "wired_headset"
	DeviceTypeUSBHeadset      DeviceType = "usb_headset"
	DeviceTypeUSBDevice       DeviceType = "usb_device"
	DeviceTypeUSBAccessory    DeviceType = "usb_accessory"
	DeviceTypeAuxLine         DeviceType = "aux_line"
	DeviceTypeHearingAid      DeviceType = "hearing_aid"
	DeviceTypeIP              DeviceType = "ip"
	DeviceTypeHDMI            DeviceType = "hdmi"
	DeviceTypeHDMIARC         DeviceType = "hdmi_arc"
	DeviceTypeHDMIEARC        DeviceType = "hdmi_earc"
	DeviceTypeLineAnalog      DeviceType = "line_analog"
	DeviceTypeLineDigital     DeviceType = "line_digital"
	DeviceTypeMicrophone      DeviceType = "microphone"

	// DeviceTypeUnsupported marks a HAL type/connection pair the platform
	// has no mapping for. It is routable in name only and fails validation.
	DeviceTypeUnsupported DeviceType = "unsupported"
)

// DeviceInfo is one routeable audio device. Bus devices are fixed amp
// channels and always available; dynamic devices (Bluetooth, USB) appear
// and disappear at runtime.
type DeviceInfo struct {
	Address     string     `json:"address,omitempty"`
	Type        DeviceType `json:"type"`
	Dynamic     bool       `json:"dynamic,omitempty"`
	Available   bool       `json:"available"`
	MinGain     int        `json:"min_gain"`     // millibels
	MaxGain     int        `json:"max_gain"`     // millibels
	DefaultGain int        `json:"default_gain"` // millibels
	StepSize    int        `json:"step_size"`    // millibels per index step
}

// InvocationType says when an activation volume window is enforced.
type InvocationType string

const (
	ActivationOnBoot            InvocationType = "on_boot"
	ActivationOnSourceChanged   InvocationType = "on_source_changed"
	ActivationOnPlaybackChanged InvocationType = "on_playback_changed"
)

// ActivationConfig bounds the volume a group may hold when playback starts,
// as percentages of the group's index range.
type ActivationConfig struct {
	Invocation InvocationType `json:"invocation"`
	MinPercent int            `json:"min_activation_percent"`
	MaxPercent int            `json:"max_activation_percent"`
}

// DefaultActivationConfig is the window used when the HAL supplies none:
// the full range, checked on every playback change.
func DefaultActivationConfig() ActivationConfig {
	return ActivationConfig{
		Invocation: ActivationOnPlaybackChanged,
		MinPercent: 0,
		MaxPercent: 100,
	}
}

// VolumeGroup is a set of contexts that share one volume. All devices in a
// group step their gain together.
type VolumeGroup struct {
	ID             int                             `json:"id"`
	Name           string                          `json:"name"`
	ZoneID         int                             `json:"zone_id"`
	ConfigID       int                             `json:"config_id"`
	Contexts       []audio.ContextID               `json:"contexts"`
	ContextDevices map[audio.ContextID]*DeviceInfo `json:"context_devices"`
	Devices        []*DeviceInfo                   `json:"devices"`
	Activation     ActivationConfig                `json:"activation"`
	MinGain        int                             `json:"min_gain"`
	MaxGain        int                             `json:"max_gain"`
	DefaultGain    int                             `json:"default_gain"`
	StepSize       int                             `json:"step_size"`

	// Runtime volume state, owned by the controller.
	GainIndex int  `json:"gain_index"`
	Muted     bool `json:"muted"`
}

// MaxGainIndex is the highest settable index; index 0 is MinGain.
func (g *VolumeGroup) MaxGainIndex() int {
	if g.StepSize <= 0 {
		return 0
	}
	return (g.MaxGain - g.MinGain) / g.StepSize
}

// DefaultGainIndex is the index corresponding to the folded default gain.
func (g *VolumeGroup) DefaultGainIndex() int {
	if g.StepSize <= 0 {
		return 0
	}
	idx := (g.DefaultGain - g.MinGain) / g.StepSize
	if idx < 0 {
		return 0
	}
	if max := g.MaxGainIndex(); idx > max {
		return max
	}
	return idx
}

// DeviceForContext returns the device routing a context, or nil.
func (g *VolumeGroup) DeviceForContext(id audio.ContextID) *DeviceInfo {
	return g.ContextDevices[id]
}

// AddressForContext returns the routed device address for a context, "" if
// the context is not in this group.
func (g *VolumeGroup) AddressForContext(id audio.ContextID) string {
	if d := g.ContextDevices[id]; d != nil {
		return d.Address
	}
	return ""
}

// HasContext reports whether the group routes the given context.
func (g *VolumeGroup) HasContext(id audio.ContextID) bool {
	_, ok := g.ContextDevices[id]
	return ok
}

// HasAddress reports whether any device in the group has the address.
func (g *VolumeGroup) HasAddress(addr string) bool {
	for _, d := range g.Devices {
		if d.Address == addr {
			return true
		}
	}
	return false
}

// Addresses returns the distinct device addresses in device order.
func (g *VolumeGroup) Addresses() []string {
	addrs := make([]string, 0, len(g.Devices))
	for _, d := range g.Devices {
		if d.Address != "" && !slices.Contains(addrs, d.Address) {
			addrs = append(addrs, d.Address)
		}
	}
	return addrs
}

// DeepCopy clones the group. Device sharing inside the group is preserved
// so a context map entry still points at the same copied device.
func (g *VolumeGroup) DeepCopy() *VolumeGroup {
	ng := *g
	ng.Contexts = slices.Clone(g.Contexts)
	devMap := make(map[*DeviceInfo]*DeviceInfo, len(g.Devices))
	ng.Devices = make([]*DeviceInfo, len(g.Devices))
	for i, d := range g.Devices {
		nd := *d
		ng.Devices[i] = &nd
		devMap[d] = &nd
	}
	ng.ContextDevices = make(map[audio.ContextID]*DeviceInfo, len(g.ContextDevices))
	for c, d := range g.ContextDevices {
		if nd, ok := devMap[d]; ok {
			ng.ContextDevices[c] = nd
		} else {
			nd := *d
			ng.ContextDevices[c] = &nd
		}
	}
	return &ng
}

// FadeState enables or disables fading for a zone configuration.
type FadeState string

const (
	FadeStateEnabled  FadeState = "enabled"
	FadeStateDisabled FadeState = "disabled"
)

// TransientFade overrides fade durations while one of its usages holds focus.
type TransientFade struct {
	Usages        []audio.Usage `json:"usages"`
	FadeInMillis  int64         `json:"fade_in_ms"`
	FadeOutMillis int64         `json:"fade_out_ms"`
}

// FadeConfig carries the fade behavior of one zone configuration.
type FadeConfig struct {
	Name           string          `json:"name,omitempty"`
	State          FadeState       `json:"state"`
	FadeInMillis   int64           `json:"fade_in_ms"`
	FadeOutMillis  int64           `json:"fade_out_ms"`
	FadeableUsages []audio.Usage   `json:"fadeable_usages,omitempty"`
	Transients     []TransientFade `json:"transients,omitempty"`
}

// DeepCopy clones the fade configuration.
func (f *FadeConfig) DeepCopy() *FadeConfig {
	if f == nil {
		return nil
	}
	nf := *f
	nf.FadeableUsages = slices.Clone(f.FadeableUsages)
	nf.Transients = make([]TransientFade, len(f.Transients))
	for i, tr := range f.Transients {
		ntr := tr
		ntr.Usages = slices.Clone(tr.Usages)
		nf.Transients[i] = ntr
	}
	return &nf
}

// ZoneConfig is one routing layout for a zone. Exactly one config per zone
// is active at a time.
type ZoneConfig struct {
	ZoneID    int            `json:"zone_id"`
	ID        int            `json:"id"`
	Name      string         `json:"name"`
	IsDefault bool           `json:"is_default"`
	Active    bool           `json:"active"`
	Groups    []*VolumeGroup `json:"groups"`
	Fade      *FadeConfig    `json:"fade,omitempty"`
}

// Selectable reports whether every dynamic device in the config is
// currently available. Default configs are always selectable.
func (c *ZoneConfig) Selectable() bool {
	if c.IsDefault {
		return true
	}
	for _, g := range c.Groups {
		for _, d := range g.Devices {
			if d.Dynamic && !d.Available {
				return false
			}
		}
	}
	return true
}

// Group returns the volume group with the given id, or nil.
func (c *ZoneConfig) Group(id int) *VolumeGroup {
	for _, g := range c.Groups {
		if g.ID == id {
			return g
		}
	}
	return nil
}

// AddressForContext returns the address routing a context in this config.
func (c *ZoneConfig) AddressForContext(id audio.ContextID) string {
	for _, g := range c.Groups {
		if addr := g.AddressForContext(id); addr != "" {
			return addr
		}
	}
	return ""
}

// DeepCopy clones the config and its groups.
func (c *ZoneConfig) DeepCopy() *ZoneConfig {
	nc := *c
	nc.Groups = make([]*VolumeGroup, len(c.Groups))
	for i, g := range c.Groups {
		nc.Groups[i] = g.DeepCopy()
	}
	nc.Fade = c.Fade.DeepCopy()
	return &nc
}

// Zone is one independent audio space of the car.
type Zone struct {
	ID             int           `json:"id"`
	Name           string        `json:"name"`
	OccupantZoneID int           `json:"occupant_zone_id,omitempty"`
	Configs        []*ZoneConfig `json:"configs"`
	InputDevices   []*DeviceInfo `json:"input_devices,omitempty"`
}

// IsPrimary reports whether this is the primary zone.
func (z *Zone) IsPrimary() bool { return z.ID == PrimaryZoneID }

// DefaultConfig returns the config flagged as default, or the first one.
func (z *Zone) DefaultConfig() *ZoneConfig {
	for _, c := range z.Configs {
		if c.IsDefault {
			return c
		}
	}
	if len(z.Configs) > 0 {
		return z.Configs[0]
	}
	return nil
}

// ActiveConfig returns the currently active config, falling back to the
// default when none is marked active.
func (z *Zone) ActiveConfig() *ZoneConfig {
	for _, c := range z.Configs {
		if c.Active {
			return c
		}
	}
	return z.DefaultConfig()
}

// Config returns the named config, or nil.
func (z *Zone) Config(name string) *ZoneConfig {
	for _, c := range z.Configs {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// AddressForContext resolves a context to a device address through the
// active config. Returns "" for unrouted contexts.
func (z *Zone) AddressForContext(id audio.ContextID) string {
	if c := z.ActiveConfig(); c != nil {
		return c.AddressForContext(id)
	}
	return ""
}

// Groups returns the active config's volume groups.
func (z *Zone) Groups() []*VolumeGroup {
	if c := z.ActiveConfig(); c != nil {
		return c.Groups
	}
	return nil
}

// DeepCopy clones the zone, its configs, and its input devices.
func (z *Zone) DeepCopy() *Zone {
	nz := *z
	nz.Configs = make([]*ZoneConfig, len(z.Configs))
	for i, c := range z.Configs {
		nz.Configs[i] = c.DeepCopy()
	}
	nz.InputDevices = make([]*DeviceInfo, len(z.InputDevices))
	for i, d := range z.InputDevices {
		nd := *d
		nz.InputDevices[i] = &nd
	}
	return &nz
}

// DeviceConfig mirrors the HAL's global audio configuration.
type DeviceConfig struct {
	RoutingConfig           string `json:"routing_config"`
	UseCoreAudioVolume      bool   `json:"use_core_audio_volume"`
	UseCarVolumeGroupMuting bool   `json:"use_volume_group_muting"`
	UseHalDuckingSignals    bool   `json:"use_hal_ducking_signals"`
	UseFadeManager          bool   `json:"use_fade_manager,omitempty"`
}

// DuckingInfo is one zone's ducking decision: which addresses to attenuate,
// which to restore, and the metadata of the streams holding focus.
type DuckingInfo struct {
	ZoneID            int                `json:"zone_id"`
	AddressesToDuck   []string           `json:"addresses_to_duck"`
	AddressesToUnduck []string           `json:"addresses_to_unduck"`
	PlaybackMetadata  []audio.Attributes `json:"playback_metadata"`
}

// DeepCopy clones the ducking info.
func (d *DuckingInfo) DeepCopy() *DuckingInfo {
	if d == nil {
		return nil
	}
	nd := *d
	nd.AddressesToDuck = slices.Clone(d.AddressesToDuck)
	nd.AddressesToUnduck = slices.Clone(d.AddressesToUnduck)
	nd.PlaybackMetadata = make([]audio.Attributes, len(d.PlaybackMetadata))
	for i, a := range d.PlaybackMetadata {
		na := a
		na.Tags = slices.Clone(a.Tags)
		nd.PlaybackMetadata[i] = na
	}
	return &nd
}

// Info is the system information response.
type Info struct {
	Version  string `json:"version"`
	Hostname string `json:"hostname,omitempty"`
	Serial   string `json:"serial,omitempty"`
	Firmware string `json:"firmware,omitempty"`
	Offline  bool   `json:"offline"`
	Mock     bool   `json:"mock"`
	Loaded   bool   `json:"loaded"`
	Zones    int    `json:"zones"`
}

// State is the complete system state returned by GET /api.
type State struct {
	Info          Info                       `json:"info"`
	Config        DeviceConfig               `json:"config"`
	Zones         []*Zone                    `json:"zones"`
	MirrorDevices []*DeviceInfo              `json:"mirror_devices,omitempty"`
	Ducking       map[int]*DuckingInfo       `json:"ducking"`
	Focus         map[int][]audio.Attributes `json:"focus"`
}

// EmptyState returns a state with no zones loaded. Maps and slices are
// allocated so the JSON encoding carries them as empty rather than null.
func EmptyState() State {
	return State{
		Zones:   []*Zone{},
		Ducking: map[int]*DuckingInfo{},
		Focus:   map[int][]audio.Attributes{},
	}
}

// DeepCopy returns a deep copy of the state.
func (s State) DeepCopy() State {
	next := State{
		Info:   s.Info,
		Config: s.Config,
	}

	next.Zones = make([]*Zone, len(s.Zones))
	for i, z := range s.Zones {
		next.Zones[i] = z.DeepCopy()
	}

	next.MirrorDevices = make([]*DeviceInfo, len(s.MirrorDevices))
	for i, d := range s.MirrorDevices {
		nd := *d
		next.MirrorDevices[i] = &nd
	}

	next.Ducking = make(map[int]*DuckingInfo, len(s.Ducking))
	for id, d := range s.Ducking {
		next.Ducking[id] = d.DeepCopy()
	}

	next.Focus = make(map[int][]audio.Attributes, len(s.Focus))
	for id, holders := range s.Focus {
		hs := make([]audio.Attributes, len(holders))
		for i, h := range holders {
			nh := h
			nh.Tags = slices.Clone(h.Tags)
			hs[i] = nh
		}
		next.Focus[id] = hs
	}

	return next
}

// Zone returns the zone with the given id, or nil.
func (s State) Zone(id int) *Zone {
	for _, z := range s.Zones {
		if z.ID == id {
			return z
		}
	}
	return nil
}
