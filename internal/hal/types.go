// Package hal is the hardware abstraction layer for the car audio DSP.
// It defines the topology data model the HAL reports (zones, configs,
// volume groups, device ports), the AudioControl interface, and the real
// and mock implementations behind it.
package hal

import (
	"encoding/json"

	"github.com/opencabin/caraudio-go/internal/audio"
)

// RoutingConfig selects how the platform routes audio to devices.
type RoutingConfig string

const (
	// RoutingDefault leaves routing to the platform defaults; the HAL
	// topology is not used and no zones are assembled.
	RoutingDefault RoutingConfig = "default"
	// RoutingDynamic routes by context over the HAL-declared devices.
	RoutingDynamic RoutingConfig = "dynamic"
	// RoutingConfigurableEngine delegates routing to an external audio
	// engine with HAL-defined contexts. Required for core audio volume.
	RoutingConfigurableEngine RoutingConfig = "configurable_engine"
)

// Feature is an optional HAL capability.
type Feature string

const (
	FeatureAudioConfiguration Feature = "audio_configuration"
	FeatureAudioDucking       Feature = "audio_ducking"
	FeatureGroupMuting        Feature = "group_muting"
)

// AudioDeviceConfiguration is the HAL's global audio strategy.
type AudioDeviceConfiguration struct {
	RoutingConfig               RoutingConfig `json:"routing_config"`
	UseCoreAudioVolume          bool          `json:"use_core_audio_volume"`
	UseCarVolumeGroupMuting     bool          `json:"use_car_volume_group_muting"`
	UseHalDuckingSignals        bool          `json:"use_hal_ducking_signals"`
	UseFadeManagerConfiguration bool          `json:"use_fade_manager_configuration"`
}

// DeviceType is the HAL-side device class of a port.
type DeviceType string

const (
	DeviceOutSpeaker    DeviceType = "OUT_SPEAKER"
	DeviceOutHeadphone  DeviceType = "OUT_HEADPHONE"
	DeviceOutHeadset    DeviceType = "OUT_HEADSET"
	DeviceOutAccessory  DeviceType = "OUT_ACCESSORY"
	DeviceOutLineAux    DeviceType = "OUT_LINE_AUX"
	DeviceOutBroadcast  DeviceType = "OUT_BROADCAST"
	DeviceOutHearingAid DeviceType = "OUT_HEARING_AID"
	DeviceOutBus        DeviceType = "OUT_BUS"
	DeviceOutDevice     DeviceType = "OUT_DEVICE"
	DeviceInMicrophone  DeviceType = "IN_MICROPHONE"
	DeviceInBus         DeviceType = "IN_BUS"
)

// Connection qualifiers refining a device type.
const (
	ConnectionAnalog   = "analog"
	ConnectionBTA2DP   = "bt-a2dp"
	ConnectionBTLE     = "bt-le"
	ConnectionBTSCO    = "bt-sco"
	ConnectionBus      = "bus"
	ConnectionHDMI     = "hdmi"
	ConnectionHDMIARC  = "hdmi-arc"
	ConnectionHDMIEARC = "hdmi-earc"
	ConnectionIPV4     = "ip-v4"
	ConnectionSPDIF    = "spdif"
	ConnectionUSB      = "usb"
	ConnectionVirtual  = "virtual"
)

// GainConfig is one gain stage of a port, in millibels.
type GainConfig struct {
	Min     int `json:"min"`
	Max     int `json:"max"`
	Default int `json:"default"`
	Step    int `json:"step"`
}

// PortDevice is the external-device extension of an audio port.
type PortDevice struct {
	Type       DeviceType `json:"type"`
	Connection string     `json:"connection,omitempty"`
	Address    string     `json:"address,omitempty"`
}

// AudioPort is one device the HAL can route audio to or from.
type AudioPort struct {
	ID     int          `json:"id"`
	Name   string       `json:"name"`
	Gains  []GainConfig `json:"gains,omitempty"`
	Device *PortDevice  `json:"device,omitempty"`
}

// DeviceToContextEntry routes a list of context names to one device.
type DeviceToContextEntry struct {
	Device       *AudioPort `json:"device"`
	ContextNames []string   `json:"context_names"`
}

// Invocation names accepted in activation entries.
const (
	InvocationOnBoot            = "on_boot"
	InvocationOnSourceChanged   = "on_source_changed"
	InvocationOnPlaybackChanged = "on_playback_changed"
)

// VolumeActivationEntry is one activation window with its trigger.
type VolumeActivationEntry struct {
	Invocation                 string `json:"invocation"`
	MinActivationVolumePercent int    `json:"min_activation_volume_percent"`
	MaxActivationVolumePercent int    `json:"max_activation_volume_percent"`
}

// VolumeActivationConfig bounds a group's volume on activation events.
// Only the first entry is honored.
type VolumeActivationConfig struct {
	Name    string                  `json:"name,omitempty"`
	Entries []VolumeActivationEntry `json:"entries"`
}

// UnassignedGroupID marks a volume group whose id should be assigned
// positionally. Group id 0 is valid, so the sentinel is negative.
const UnassignedGroupID = -1

// VolumeGroupConfig declares one volume group of a zone config.
type VolumeGroupConfig struct {
	ID         int                     `json:"id"`
	Name       string                  `json:"name,omitempty"`
	Activation *VolumeActivationConfig `json:"activation,omitempty"`
	Routes     []DeviceToContextEntry  `json:"routes"`
}

// UnmarshalJSON defaults a missing id to UnassignedGroupID so a topology
// file can omit ids and get positional assignment.
func (v *VolumeGroupConfig) UnmarshalJSON(data []byte) error {
	type alias VolumeGroupConfig
	aux := struct {
		ID *int `json:"id"`
		*alias
	}{alias: (*alias)(v)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.ID == nil {
		v.ID = UnassignedGroupID
	} else {
		v.ID = *aux.ID
	}
	return nil
}

// FadeConfiguration describes fade behavior for a set of usages.
type FadeConfiguration struct {
	Name              string        `json:"name,omitempty"`
	State             string        `json:"state"` // "enabled" | "disabled"
	FadeInDurationMs  int64         `json:"fade_in_duration_ms"`
	FadeOutDurationMs int64         `json:"fade_out_duration_ms"`
	FadeableUsages    []audio.Usage `json:"fadeable_usages,omitempty"`
}

// TransientFadeEntry overrides fading while one of its usages holds focus.
type TransientFadeEntry struct {
	Usages []audio.Usage     `json:"usages"`
	Config FadeConfiguration `json:"config"`
}

// AudioZoneFadeConfiguration is a zone config's fade setup.
type AudioZoneFadeConfiguration struct {
	Default    FadeConfiguration    `json:"default"`
	Transients []TransientFadeEntry `json:"transients,omitempty"`
}

// AudioZoneConfig is one routing layout for a zone.
type AudioZoneConfig struct {
	Name         string                      `json:"name"`
	IsDefault    bool                        `json:"is_default"`
	VolumeGroups []*VolumeGroupConfig        `json:"volume_groups"`
	Fade         *AudioZoneFadeConfiguration `json:"fade,omitempty"`
}

// AudioZoneContextInfo names one HAL-defined context.
type AudioZoneContextInfo struct {
	Name       string             `json:"name"`
	ID         int                `json:"id"`
	Attributes []audio.Attributes `json:"attributes"`
}

// AudioZoneContext is the full context list for a zone.
type AudioZoneContext struct {
	Infos []*AudioZoneContextInfo `json:"infos"`
}

// UnassignedOccupant marks a zone not tied to any occupant position.
// Occupant ids are 1-based.
const UnassignedOccupant = 0

// AudioZone is one zone as declared by the HAL.
type AudioZone struct {
	ID             int                `json:"id"`
	Name           string             `json:"name,omitempty"`
	OccupantZoneID int                `json:"occupant_zone_id,omitempty"`
	Context        *AudioZoneContext  `json:"context,omitempty"`
	Configs        []*AudioZoneConfig `json:"configs"`
	InputDevices   []*AudioPort       `json:"input_devices,omitempty"`
}

// DuckingInfo is one zone's ducking command on the HAL wire.
type DuckingInfo struct {
	ZoneID                  int      `json:"zone_id"`
	DeviceAddressesToDuck   []string `json:"device_addresses_to_duck"`
	DeviceAddressesToUnduck []string `json:"device_addresses_to_unduck"`
	UsagesHoldingFocus      []string `json:"usages_holding_focus"`
}

// MutingInfo is one zone's mute command on the HAL wire.
type MutingInfo struct {
	ZoneID                  int      `json:"zone_id"`
	DeviceAddressesToMute   []string `json:"device_addresses_to_mute"`
	DeviceAddressesToUnmute []string `json:"device_addresses_to_unmute"`
}
