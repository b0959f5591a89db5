package controller

import (
	"context"
	"fmt"

	"github.com/opencabin/caraudio-go/internal/models"
	"github.com/opencabin/caraudio-go/internal/volume"
)

// GetGroups returns the volume groups of a zone's active configuration.
func (c *Controller) GetGroups(zoneID int) ([]*models.VolumeGroup, *models.AppError) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	z := c.state.Zone(zoneID)
	if z == nil {
		return nil, models.ErrNotFound("zone not found")
	}
	groups := z.Groups()
	result := make([]*models.VolumeGroup, len(groups))
	for i, g := range groups {
		result[i] = g.DeepCopy()
	}
	return result, nil
}

// GetGroup returns one volume group of a zone's active configuration.
func (c *Controller) GetGroup(zoneID, groupID int) (*models.VolumeGroup, *models.AppError) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	z := c.state.Zone(zoneID)
	if z == nil {
		return nil, models.ErrNotFound("zone not found")
	}
	if cfg := z.ActiveConfig(); cfg != nil {
		if g := cfg.Group(groupID); g != nil {
			return g.DeepCopy(), nil
		}
	}
	return nil, models.ErrNotFound("volume group not found")
}

// SetGroup updates a volume group's gain index and mute state. Under core
// audio volume the change goes to the external engine and the local state
// shadows it; otherwise gains are pushed per device through the HAL. The
// new volume is mirrored to the same group id in the zone's other configs
// so it survives config switches.
func (c *Controller) SetGroup(ctx context.Context, zoneID, groupID int, upd models.GroupUpdate) (models.State, *models.AppError) {
	state, err := c.apply(func(s *models.State) error {
		z := s.Zone(zoneID)
		if z == nil {
			return models.ErrNotFound("zone not found")
		}
		cfg := z.ActiveConfig()
		if cfg == nil {
			return models.ErrNotLoaded("zone has no active configuration")
		}
		g := cfg.Group(groupID)
		if g == nil {
			return models.ErrNotFound("volume group not found")
		}

		if s.Config.UseCoreAudioVolume {
			return c.setCoreGroup(z, g, upd)
		}

		hg, err := volume.NewHalGroup(c.control, g, s.Config.UseCarVolumeGroupMuting)
		if err != nil {
			return err
		}
		if upd.GainIndex != nil {
			if *upd.GainIndex < 0 || *upd.GainIndex > g.MaxGainIndex() {
				return models.ErrBadRequest(fmt.Sprintf("gain index must be 0-%d", g.MaxGainIndex()))
			}
			if err := hg.SetGainIndex(ctx, *upd.GainIndex); err != nil {
				return err
			}
		}
		if upd.Mute != nil {
			if err := hg.SetMute(ctx, *upd.Mute); err != nil {
				return err
			}
		}
		mirrorGroup(z, groupID, g.GainIndex, g.Muted)
		return nil
	})
	if err != nil {
		return models.State{}, asAppError(err)
	}
	return state, nil
}

// setCoreGroup forwards a group update to the core audio engine. Callers
// hold the write lock.
func (c *Controller) setCoreGroup(z *models.Zone, g *models.VolumeGroup, upd models.GroupUpdate) error {
	cg := c.coreGroups[z.ID][g.ID]
	if cg == nil {
		return models.ErrConflict(fmt.Sprintf("group %q is not bound to the core audio engine", g.Name))
	}
	gainIndex := g.GainIndex
	if upd.GainIndex != nil {
		if err := cg.SetGainIndex(*upd.GainIndex); err != nil {
			return models.ErrBadRequest(err.Error())
		}
		gainIndex = *upd.GainIndex
	}
	muted := g.Muted
	if upd.Mute != nil {
		cg.SetMute(*upd.Mute)
		muted = *upd.Mute
	}
	mirrorGroup(z, g.ID, gainIndex, muted)
	return nil
}

// OnCoreVolumeGroupChanged reconciles one group with the core audio engine
// after the engine reported a change there, returning which of volume and
// mute actually moved. An unchanged engine reports no flags and publishes
// nothing; the reconciliation is idempotent.
func (c *Controller) OnCoreVolumeGroupChanged(ctx context.Context, zoneID, groupID int) (volume.EventFlags, *models.AppError) {
	c.mu.RLock()
	cg := c.coreGroups[zoneID][groupID]
	c.mu.RUnlock()
	if cg == nil {
		return 0, models.ErrNotFound(fmt.Sprintf("no core volume group for zone %d group %d", zoneID, groupID))
	}

	flags := cg.OnAudioVolumeGroupChanged()
	if flags == 0 {
		return 0, nil
	}
	_, err := c.apply(func(s *models.State) error {
		z := s.Zone(zoneID)
		if z == nil {
			return models.ErrNotFound("zone not found")
		}
		mirrorGroup(z, groupID, cg.GainIndex(), cg.Muted())
		return nil
	})
	if err != nil {
		return flags, asAppError(err)
	}
	return flags, nil
}
