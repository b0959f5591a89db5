package controller

import (
	"context"
	"log/slog"
	"slices"

	"github.com/opencabin/caraudio-go/internal/audio"
	"github.com/opencabin/caraudio-go/internal/models"
	"github.com/opencabin/caraudio-go/internal/volume"
)

// SetFocus replaces the set of streams holding audio focus in a zone and
// reruns the zone's ducking decision. The stored decision advances even
// when the HAL push fails: every push carries complete duck and unduck
// lists, so the next successful push converges the hardware. Groups whose
// contexts just gained focus get their playback activation window enforced.
func (c *Controller) SetFocus(ctx context.Context, zoneID int, holders []audio.Attributes) (models.State, *models.AppError) {
	state, err := c.apply(func(s *models.State) error {
		z := s.Zone(zoneID)
		if z == nil {
			return models.ErrNotFound("zone not found")
		}
		if c.duckMgr == nil {
			return models.ErrNotLoaded("no zone topology loaded")
		}

		info, pushErr := c.duckMgr.OnFocusChanged(ctx, z, holders)
		if pushErr != nil {
			slog.Warn("controller: ducking push failed", "zone", zoneID, "error", pushErr)
		}
		s.Ducking[zoneID] = info
		s.Focus[zoneID] = slices.Clone(info.PlaybackMetadata)

		if s.Config.UseCoreAudioVolume {
			return nil
		}
		cfg := z.ActiveConfig()
		if cfg == nil {
			return nil
		}
		for _, g := range cfg.Groups {
			if !groupHoldsFocus(c, g, info.PlaybackMetadata) {
				continue
			}
			hg, err := volume.NewHalGroup(c.control, g, s.Config.UseCarVolumeGroupMuting)
			if err != nil {
				return err
			}
			if err := hg.ApplyActivation(ctx, models.ActivationOnPlaybackChanged); err != nil {
				return err
			}
			mirrorGroup(z, g.ID, g.GainIndex, g.Muted)
		}
		return nil
	})
	if err != nil {
		return models.State{}, asAppError(err)
	}
	return state, nil
}

// groupHoldsFocus reports whether any focus holder resolves to a context
// the group routes. Holders that resolve to no context are skipped.
func groupHoldsFocus(c *Controller, g *models.VolumeGroup, holders []audio.Attributes) bool {
	reg := c.assembler.CarAudioContext()
	if reg == nil {
		return false
	}
	for _, h := range holders {
		id := reg.ContextForAttributes(h)
		if id == audio.ContextInvalid {
			continue
		}
		if g.HasContext(id) {
			return true
		}
	}
	return false
}

// GetFocus returns the attributes holding focus in a zone, de-duplicated in
// first-seen order. Empty until the first focus change.
func (c *Controller) GetFocus(zoneID int) ([]audio.Attributes, *models.AppError) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.Zone(zoneID) == nil {
		return nil, models.ErrNotFound("zone not found")
	}
	return slices.Clone(c.state.Focus[zoneID]), nil
}

// GetDucking returns the current ducking decision for a zone, nil when
// focus has not changed there yet.
func (c *Controller) GetDucking(zoneID int) (*models.DuckingInfo, *models.AppError) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.Zone(zoneID) == nil {
		return nil, models.ErrNotFound("zone not found")
	}
	return c.state.Ducking[zoneID].DeepCopy(), nil
}
