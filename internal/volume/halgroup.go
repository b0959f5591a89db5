package volume

import (
	"context"
	"errors"
	"fmt"

	"github.com/opencabin/caraudio-go/internal/hal"
	"github.com/opencabin/caraudio-go/internal/models"
)

// HalGroup operates one topology volume group whose gain this daemon owns,
// pushing per-device gain indices and mute commands to the audio control
// HAL. It mutates the wrapped models group in place; callers serialize
// access the same way they do for the rest of the zone tree.
type HalGroup struct {
	control   hal.AudioControl
	group     *models.VolumeGroup
	useMuting bool
}

// NewHalGroup wires a group to the HAL. useMuting mirrors the topology's
// group muting flag; without it, mute is tracked locally only.
func NewHalGroup(control hal.AudioControl, group *models.VolumeGroup, useMuting bool) (*HalGroup, error) {
	if control == nil {
		return nil, errors.New("volume: audio control HAL required")
	}
	if group == nil {
		return nil, errors.New("volume: volume group required")
	}
	return &HalGroup{control: control, group: group, useMuting: useMuting}, nil
}

// Group returns the wrapped group.
func (h *HalGroup) Group() *models.VolumeGroup { return h.group }

// GainIndex returns the group's index, zero while muted.
func (h *HalGroup) GainIndex() int {
	if h.group.Muted {
		return 0
	}
	return h.group.GainIndex
}

// SetGainIndex moves every device in the group to the gain the index
// selects. Devices may span different gain ranges; each gets the index
// matching the group gain within its own range.
func (h *HalGroup) SetGainIndex(ctx context.Context, index int) error {
	g := h.group
	if index < 0 || index > g.MaxGainIndex() {
		return fmt.Errorf("volume: index %d out of range [0, %d] for group %s",
			index, g.MaxGainIndex(), g.Name)
	}
	gain := g.MinGain + index*g.StepSize
	for _, d := range g.Devices {
		if err := h.control.SetDeviceGain(ctx, g.ZoneID, d.Address, (gain-d.MinGain)/d.StepSize); err != nil {
			return err
		}
	}
	g.GainIndex = index
	return nil
}

// SetMute mutes or unmutes the group's devices through the HAL when group
// muting is in use, and tracks the flag either way.
func (h *HalGroup) SetMute(ctx context.Context, mute bool) error {
	g := h.group
	if h.useMuting {
		info := hal.MutingInfo{ZoneID: g.ZoneID}
		if mute {
			info.DeviceAddressesToMute = g.Addresses()
		} else {
			info.DeviceAddressesToUnmute = g.Addresses()
		}
		if err := h.control.MuteChange(ctx, []hal.MutingInfo{info}); err != nil {
			return err
		}
	}
	g.Muted = mute
	return nil
}

// invocationRank orders activation invocations from narrowest to widest.
var invocationRank = map[models.InvocationType]int{
	models.ActivationOnBoot:            0,
	models.ActivationOnSourceChanged:   1,
	models.ActivationOnPlaybackChanged: 2,
}

// ActivationCovers reports whether a group configured for cfg reacts to an
// event of the given kind: on_playback_changed also covers source changes
// and boot, on_source_changed also covers boot.
func ActivationCovers(cfg, event models.InvocationType) bool {
	return invocationRank[cfg] >= invocationRank[event]
}

// ApplyActivation clamps the group's volume into its activation window when
// the event kind is covered. Muted groups are left alone.
func (h *HalGroup) ApplyActivation(ctx context.Context, event models.InvocationType) error {
	g := h.group
	if g.Muted || !ActivationCovers(g.Activation.Invocation, event) {
		return nil
	}
	maxIdx := g.MaxGainIndex()
	lo := maxIdx * g.Activation.MinPercent / 100
	hi := maxIdx * g.Activation.MaxPercent / 100
	switch {
	case g.GainIndex < lo:
		return h.SetGainIndex(ctx, lo)
	case g.GainIndex > hi:
		return h.SetGainIndex(ctx, hi)
	}
	return nil
}
