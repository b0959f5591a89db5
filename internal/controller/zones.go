package controller

import (
	"context"
	"fmt"

	"github.com/opencabin/caraudio-go/internal/audio"
	"github.com/opencabin/caraudio-go/internal/models"
)

// GetZones returns deep copies of all loaded zones.
func (c *Controller) GetZones() []*models.Zone {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]*models.Zone, len(c.state.Zones))
	for i, z := range c.state.Zones {
		result[i] = z.DeepCopy()
	}
	return result
}

// GetZone returns a single zone by ID.
func (c *Controller) GetZone(id int) (*models.Zone, *models.AppError) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if z := c.state.Zone(id); z != nil {
		return z.DeepCopy(), nil
	}
	return nil, models.ErrNotFound("zone not found")
}

// ZoneIDToOccupantID maps zone ids to the occupant positions they serve.
// Empty before a successful load.
func (c *Controller) ZoneIDToOccupantID() map[int]int {
	return c.assembler.ZoneIDToOccupantID()
}

// GetConfigs returns a zone's configurations.
func (c *Controller) GetConfigs(zoneID int) ([]*models.ZoneConfig, *models.AppError) {
	z, appErr := c.GetZone(zoneID)
	if appErr != nil {
		return nil, appErr
	}
	return z.Configs, nil
}

// GetContexts returns the primary zone's audio context table, ordered by id.
func (c *Controller) GetContexts() ([]audio.ContextInfo, *models.AppError) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.state.Info.Loaded {
		return nil, models.ErrNotLoaded("no zone topology loaded")
	}
	return c.assembler.CarAudioContext().Contexts(), nil
}

// GetMirrorDevices returns the audio devices reserved for zone mirroring.
func (c *Controller) GetMirrorDevices() []*models.DeviceInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]*models.DeviceInfo, len(c.state.MirrorDevices))
	for i, d := range c.state.MirrorDevices {
		nd := *d
		result[i] = &nd
	}
	return result
}

// SelectConfig activates a zone configuration by name. The new config's
// groups are pushed to hardware with their remembered volumes, activation
// windows for source changes are enforced, and the zone's ducking decision
// is recomputed against the new routing.
func (c *Controller) SelectConfig(ctx context.Context, zoneID int, name string) (models.State, *models.AppError) {
	if name == "" {
		return models.State{}, models.ErrBadRequest("configuration name required")
	}
	state, err := c.apply(func(s *models.State) error {
		z := s.Zone(zoneID)
		if z == nil {
			return models.ErrNotFound("zone not found")
		}
		cfg := z.Config(name)
		if cfg == nil {
			return models.ErrNotFound(fmt.Sprintf("zone %d has no configuration %q", zoneID, name))
		}
		if cfg.Active {
			return nil
		}
		if !cfg.Selectable() {
			return models.ErrConflict(fmt.Sprintf("configuration %q has unavailable devices", name))
		}
		for _, other := range z.Configs {
			other.Active = other == cfg
		}
		return c.pushActiveConfig(ctx, s, z, models.ActivationOnSourceChanged)
	})
	if err != nil {
		return models.State{}, asAppError(err)
	}
	return state, nil
}

// SetDeviceAvailability records a dynamic device (Bluetooth, USB) coming or
// going. Zones whose active configuration lost a device fall back to their
// default configuration.
func (c *Controller) SetDeviceAvailability(ctx context.Context, upd models.DeviceAvailability) (models.State, *models.AppError) {
	if upd.Type == "" {
		return models.State{}, models.ErrBadRequest("device type required")
	}
	state, err := c.apply(func(s *models.State) error {
		matched := 0
		for _, z := range s.Zones {
			for _, cfg := range z.Configs {
				for _, g := range cfg.Groups {
					for _, d := range g.Devices {
						if !d.Dynamic || d.Type != upd.Type {
							continue
						}
						if upd.Address != "" && d.Address != upd.Address {
							continue
						}
						d.Available = upd.Available
						matched++
					}
				}
			}

			active := z.ActiveConfig()
			if active == nil || active.Selectable() {
				continue
			}
			def := z.DefaultConfig()
			for _, cfg := range z.Configs {
				cfg.Active = cfg == def
			}
			if err := c.pushActiveConfig(ctx, s, z, models.ActivationOnSourceChanged); err != nil {
				return err
			}
		}
		if matched == 0 {
			return models.ErrNotFound(fmt.Sprintf("no dynamic %s device in the loaded topology", upd.Type))
		}
		return nil
	})
	if err != nil {
		return models.State{}, asAppError(err)
	}
	return state, nil
}

// Reload re-runs the topology load. On failure the daemon keeps running
// with no zones; the previous model is not kept, half-stale routing being
// worse than none.
func (c *Controller) Reload(ctx context.Context) (models.State, *models.AppError) {
	if err := c.LoadZones(ctx); err != nil {
		return c.State(), models.ErrNotLoaded(err.Error())
	}
	return c.State(), nil
}
