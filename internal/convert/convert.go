// Package convert translates HAL topology descriptors into the platform
// model. Malformed hardware data never raises: each function returns a
// sentinel (nil, false, or a diagnostic string) and logs what it rejected.
// Nil required collaborators are wiring bugs and fail fast instead.
package convert

import (
	"fmt"
	"log/slog"

	"github.com/opencabin/caraudio-go/internal/audio"
	"github.com/opencabin/caraudio-go/internal/hal"
	"github.com/opencabin/caraudio-go/internal/models"
)

// AudioContext builds a context registry from a HAL zone context block.
// Returns nil when the block, its info list, any single info, or the device
// configuration is missing or empty. Infos without an id get the next free
// one, except under core routing where ids must match the external engine's
// strategy ids and may not be omitted.
func AudioContext(halCtx *hal.AudioZoneContext, cfg *hal.AudioDeviceConfiguration) *audio.Registry {
	if halCtx == nil {
		slog.Error("convert: audio zone context missing")
		return nil
	}
	if len(halCtx.Infos) == 0 {
		slog.Error("convert: audio zone context has no context infos")
		return nil
	}
	if cfg == nil {
		slog.Error("convert: audio device configuration missing")
		return nil
	}
	coreRouting := cfg.RoutingConfig == hal.RoutingConfigurableEngine

	// Ids assigned to omitted entries must not collide with ids declared
	// anywhere in the list, including entries that come later.
	declared := make(map[audio.ContextID]bool, len(halCtx.Infos))
	for _, info := range halCtx.Infos {
		if info != nil && audio.ContextID(info.ID) > audio.ContextInvalid {
			declared[audio.ContextID(info.ID)] = true
		}
	}

	infos := make([]audio.ContextInfo, 0, len(halCtx.Infos))
	nextID := audio.ContextInvalid + 1
	for _, info := range halCtx.Infos {
		if info == nil {
			slog.Error("convert: audio zone context info missing")
			return nil
		}
		if len(info.Attributes) == 0 {
			slog.Error("convert: context info has no attributes", "name", info.Name)
			return nil
		}
		id := audio.ContextID(info.ID)
		if id <= audio.ContextInvalid {
			if coreRouting {
				slog.Error("convert: context needs an explicit id under core routing", "name", info.Name)
				return nil
			}
			for declared[nextID] {
				nextID++
			}
			id = nextID
			nextID++
		}
		name := info.Name
		if name == "" {
			name = fmt.Sprintf("Context %d", id)
		}
		infos = append(infos, audio.ContextInfo{
			Name:       name,
			ID:         id,
			Attributes: info.Attributes,
		})
	}

	reg, err := audio.NewRegistry(infos, coreRouting)
	if err != nil {
		slog.Error("convert: rejected context list", "error", err)
		return nil
	}
	return reg
}

// AudioDevicePort resolves a HAL port to a routeable device. Fixed bus
// ports must already exist in byAddress; anything else synthesizes a
// dynamic device from the port's type, connection, and gain stage. Returns
// nil for ports without a device extension or bus addresses nobody owns.
func AudioDevicePort(port *hal.AudioPort, byAddress map[string]*models.DeviceInfo) *models.DeviceInfo {
	if port == nil || port.Device == nil || port.Device.Type == "" {
		return nil
	}
	dev := port.Device
	if requiresAddress(dev) {
		return byAddress[dev.Address]
	}
	g := hal.PortGain(port)
	return &models.DeviceInfo{
		Address:     dev.Address,
		Type:        DeviceInfoType(dev.Type, dev.Connection),
		Dynamic:     true,
		MinGain:     g.Min,
		MaxGain:     g.Max,
		DefaultGain: g.Default,
		StepSize:    g.Step,
	}
}

// requiresAddress reports whether the device is a fixed bus output that
// must resolve against the known-device map.
func requiresAddress(dev *hal.PortDevice) bool {
	return dev.Type == hal.DeviceOutBus &&
		(dev.Connection == "" || dev.Connection == hal.ConnectionBus)
}

// GroupNameValid checks a volume group name against the device
// configuration. Core audio volume needs OEM-supplied names; otherwise an
// empty name is fine and gets assigned later.
func GroupNameValid(name string, cfg hal.AudioDeviceConfiguration) bool {
	return !cfg.UseCoreAudioVolume || name != ""
}

// Builder receives the context-to-device assignments of one volume group.
type Builder interface {
	SetDeviceInfoForContext(id audio.ContextID, device *models.DeviceInfo) error
}

// ContextEntry applies one route entry to the builder. The entry is atomic:
// every context name must resolve before anything is applied, and a single
// bad name fails the whole entry with nothing assigned. Returns false for
// nil arguments, an empty name list, unresolvable names, or a builder
// rejection.
func ContextEntry(b Builder, entry *hal.DeviceToContextEntry, device *models.DeviceInfo, nameToID map[string]audio.ContextID) bool {
	if b == nil || entry == nil || device == nil || nameToID == nil {
		return false
	}
	if len(entry.ContextNames) == 0 {
		return false
	}
	ids := make([]audio.ContextID, 0, len(entry.ContextNames))
	for _, name := range entry.ContextNames {
		if name == "" {
			return false
		}
		id, ok := nameToID[name]
		if !ok {
			slog.Error("convert: unknown context name in route", "name", name)
			return false
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		if err := b.SetDeviceInfoForContext(id, device); err != nil {
			slog.Error("convert: context assignment rejected", "context", id, "error", err)
			return false
		}
	}
	return true
}

// VolumeGroup applies a HAL volume group config to the builder, resolving
// every route's device and contexts. Returns "" on success or a diagnostic
// naming what was skipped. Panics when b, cfg, byAddress, or nameToID is
// nil: those come from the assembler, not the HAL.
func VolumeGroup(b Builder, cfg *hal.VolumeGroupConfig, byAddress map[string]*models.DeviceInfo, nameToID map[string]audio.ContextID) string {
	if b == nil {
		panic("convert: volume group builder required")
	}
	if cfg == nil {
		panic("convert: volume group config required")
	}
	if byAddress == nil {
		panic("convert: address to device map required")
	}
	if nameToID == nil {
		panic("convert: context name to id map required")
	}
	if len(cfg.Routes) == 0 {
		return fmt.Sprintf("skipped volume group %s with id %d: empty car audio routes", cfg.Name, cfg.ID)
	}
	for _, route := range cfg.Routes {
		device := AudioDevicePort(route.Device, byAddress)
		if device == nil {
			return fmt.Sprintf("skipped volume group %s with id %d: could not find device info for device %s",
				cfg.Name, cfg.ID, describePort(route.Device))
		}
		if !ContextEntry(b, &route, device, nameToID) {
			return fmt.Sprintf("skipped volume group %s with id %d: could not parse audio context entry",
				cfg.Name, cfg.ID)
		}
	}
	return ""
}

func describePort(p *hal.AudioPort) string {
	switch {
	case p == nil:
		return "<none>"
	case p.Name != "":
		return p.Name
	case p.Device != nil && p.Device.Address != "":
		return p.Device.Address
	default:
		return fmt.Sprintf("port %d", p.ID)
	}
}
