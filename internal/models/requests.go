package models

import "github.com/opencabin/caraudio-go/internal/audio"

// GroupUpdate is the PATCH body for updating a volume group.
type GroupUpdate struct {
	GainIndex *int  `json:"gain_index,omitempty"`
	Mute      *bool `json:"mute,omitempty"`
}

// FocusUpdate is the PUT body replacing a zone's focus holders. Holders are
// ordered most recent last, matching how a focus stack unwinds.
type FocusUpdate struct {
	Holders []audio.Attributes `json:"holders"`
}

// ConfigSelect is the PUT body activating a zone configuration by name.
type ConfigSelect struct {
	Name string `json:"name"`
}

// DeviceAvailability is the PUT body reporting a dynamic device coming or
// going, used by the Bluetooth watcher and by tests driving mock hardware.
type DeviceAvailability struct {
	Type      DeviceType `json:"type"`
	Address   string     `json:"address,omitempty"`
	Available bool       `json:"available"`
}
