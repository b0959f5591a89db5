package zones

import (
	"fmt"

	"github.com/opencabin/caraudio-go/internal/audio"
	"github.com/opencabin/caraudio-go/internal/convert"
	"github.com/opencabin/caraudio-go/internal/hal"
	"github.com/opencabin/caraudio-go/internal/models"
)

// ZoneConverter turns HAL zone declarations into platform zones, resolving
// routes against the fixed output devices the amp owns.
type ZoneConverter struct {
	deviceCfg hal.AudioDeviceConfiguration
	byAddress map[string]*models.DeviceInfo
}

// NewZoneConverter indexes the known outputs by address for route lookups.
func NewZoneConverter(deviceCfg hal.AudioDeviceConfiguration, outputs []*models.DeviceInfo) *ZoneConverter {
	byAddress := make(map[string]*models.DeviceInfo, len(outputs))
	for _, d := range outputs {
		if d != nil && d.Address != "" {
			byAddress[d.Address] = d
		}
	}
	return &ZoneConverter{deviceCfg: deviceCfg, byAddress: byAddress}
}

// Convert builds one zone and its context registry. Any malformed piece
// fails the whole zone; the assembler escalates a zone failure to a load
// failure. Config ids are positional, group ids are the declared ones with
// positional fallback.
func (zc *ZoneConverter) Convert(halZone *hal.AudioZone) (*models.Zone, *audio.Registry, error) {
	if halZone == nil {
		return nil, nil, fmt.Errorf("zones: zone missing")
	}
	reg := convert.AudioContext(halZone.Context, &zc.deviceCfg)
	if reg == nil {
		return nil, nil, fmt.Errorf("zones: zone %d has no usable audio context", halZone.ID)
	}
	nameToID := reg.NamesToIDs()

	if len(halZone.Configs) == 0 {
		return nil, nil, fmt.Errorf("zones: zone %d declares no configs", halZone.ID)
	}

	zone := &models.Zone{
		ID:             halZone.ID,
		Name:           halZone.Name,
		OccupantZoneID: halZone.OccupantZoneID,
	}

	defaults := 0
	names := make(map[string]bool, len(halZone.Configs))
	for ci, halCfg := range halZone.Configs {
		if halCfg == nil {
			return nil, nil, fmt.Errorf("zones: zone %d config %d missing", halZone.ID, ci)
		}
		if halCfg.Name == "" {
			return nil, nil, fmt.Errorf("zones: zone %d config %d has no name", halZone.ID, ci)
		}
		if names[halCfg.Name] {
			return nil, nil, fmt.Errorf("zones: zone %d repeats config name %q", halZone.ID, halCfg.Name)
		}
		names[halCfg.Name] = true
		if halCfg.IsDefault {
			defaults++
		}

		cfg := &models.ZoneConfig{
			ZoneID:    halZone.ID,
			ID:        ci,
			Name:      halCfg.Name,
			IsDefault: halCfg.IsDefault,
		}

		groupIDs := make(map[int]bool, len(halCfg.VolumeGroups))
		for gi, vg := range halCfg.VolumeGroups {
			if vg == nil {
				return nil, nil, fmt.Errorf("zones: zone %d config %q group %d missing", halZone.ID, halCfg.Name, gi)
			}
			if !convert.GroupNameValid(vg.Name, zc.deviceCfg) {
				return nil, nil, fmt.Errorf("zones: zone %d config %q group %d needs a name for core audio volume",
					halZone.ID, halCfg.Name, gi)
			}
			groupID := vg.ID
			if groupID == hal.UnassignedGroupID {
				groupID = gi
			}
			if groupIDs[groupID] {
				return nil, nil, fmt.Errorf("zones: zone %d config %q repeats group id %d", halZone.ID, halCfg.Name, groupID)
			}
			groupIDs[groupID] = true

			builder := NewGroupBuilder(halZone.ID, ci, groupID, vg.Name, convert.ActivationConfig(vg.Activation))
			if msg := convert.VolumeGroup(builder, vg, zc.byAddress, nameToID); msg != "" {
				return nil, nil, fmt.Errorf("zones: zone %d config %q: %s", halZone.ID, halCfg.Name, msg)
			}
			group, err := builder.Build()
			if err != nil {
				return nil, nil, err
			}
			cfg.Groups = append(cfg.Groups, group)
		}

		if err := validateConfig(cfg, reg); err != nil {
			return nil, nil, err
		}
		cfg.Fade = convert.FadeConfig(halCfg.Fade, zc.deviceCfg)
		zone.Configs = append(zone.Configs, cfg)
	}

	if defaults != 1 {
		return nil, nil, fmt.Errorf("zones: zone %d declares %d default configs, want exactly one", halZone.ID, defaults)
	}

	zone.InputDevices = convertInputs(halZone.InputDevices)
	return zone, reg, nil
}

// convertInputs keeps the addressable input ports. Inputs take no part in
// routing validation; ports without an address are dropped.
func convertInputs(ports []*hal.AudioPort) []*models.DeviceInfo {
	var out []*models.DeviceInfo
	for _, p := range ports {
		if p == nil || p.Device == nil || p.Device.Address == "" {
			continue
		}
		t := models.DeviceTypeBus
		if p.Device.Type == hal.DeviceInMicrophone {
			t = models.DeviceTypeMicrophone
		}
		out = append(out, &models.DeviceInfo{
			Address:   p.Device.Address,
			Type:      t,
			Available: true,
		})
	}
	return out
}
