// Package volume owns the per-group volume runtime: HAL-backed groups that
// push gains to output devices, and core groups whose levels live in an
// external audio engine and have to be kept in sync with it.
package volume

import "github.com/opencabin/caraudio-go/internal/audio"

// EventFlags describes what changed on a volume group.
type EventFlags int

const (
	EventVolumeChange EventFlags = 1 << iota
	EventMute
)

// Adjustment is a mute-state operation on an engine-side volume group.
type Adjustment int

const (
	AdjustMute Adjustment = iota
	AdjustUnmute
)

// Authority is the external audio engine that owns volume levels under core
// audio volume. Index queries are keyed by a group's representative
// attributes; mute state and last audible level are per engine group id. An
// authority resolves every query for attributes it reported a group id for,
// so the query methods carry no errors.
type Authority interface {
	VolumeGroupIDForAttributes(attr audio.Attributes) (int, bool)
	VolumeIndexForAttributes(attr audio.Attributes) int
	SetVolumeIndexForAttributes(attr audio.Attributes, index int)
	MinVolumeIndexForAttributes(attr audio.Attributes) int
	MaxVolumeIndexForAttributes(attr audio.Attributes) int
	IsVolumeGroupMuted(groupID int) bool
	LastAudibleVolumeForGroup(groupID int) int
	AdjustVolumeGroupVolume(groupID int, adj Adjustment)
}
