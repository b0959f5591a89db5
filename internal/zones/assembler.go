package zones

import (
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/opencabin/caraudio-go/internal/audio"
	"github.com/opencabin/caraudio-go/internal/config"
	"github.com/opencabin/caraudio-go/internal/convert"
	"github.com/opencabin/caraudio-go/internal/hal"
	"github.com/opencabin/caraudio-go/internal/models"
)

// OutputProvider supplies the fixed output devices the amp owns.
type OutputProvider interface {
	OutputDevices() []*models.DeviceInfo
}

// Assembler loads the zone model from the audio control HAL and answers
// topology queries once a load has succeeded. Queries before the first
// successful load, or after a failed one, return sentinels rather than
// stale data.
type Assembler struct {
	control  hal.AudioControl
	outputs  OutputProvider
	settings config.Store

	mu         sync.Mutex
	loaded     bool
	deviceCfg  hal.AudioDeviceConfiguration
	primaryReg *audio.Registry
	occupants  map[int]int
	mirrors    []*models.DeviceInfo
}

// New wires an assembler. All three collaborators are required.
func New(control hal.AudioControl, outputs OutputProvider, settings config.Store) (*Assembler, error) {
	if control == nil {
		return nil, errors.New("zones: audio control HAL required")
	}
	if outputs == nil {
		return nil, errors.New("zones: output device provider required")
	}
	if settings == nil {
		return nil, errors.New("zones: settings store required")
	}
	return &Assembler{control: control, outputs: outputs, settings: settings}, nil
}

// LoadAudioZones builds the zone map from the HAL topology. Malformed
// topology never raises: every rejection is logged, parsing continues so
// the log names all of them, and the result is empty. Half a routing table
// is worse than none. A successful load re-arms the query methods.
func (a *Assembler) LoadAudioZones() map[int]*models.Zone {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.loaded = false
	a.primaryReg = nil
	a.occupants = nil
	a.mirrors = nil

	zones := make(map[int]*models.Zone)

	if !a.control.SupportsFeature(hal.FeatureAudioConfiguration) {
		slog.Error("zones: HAL does not support audio configuration")
		return zones
	}
	devCfg, err := a.control.DeviceConfiguration()
	if err != nil {
		slog.Error("zones: device configuration unavailable", "error", err)
		return zones
	}
	if devCfg.RoutingConfig == hal.RoutingDefault {
		slog.Error("zones: default routing leaves the topology to the platform")
		return zones
	}
	if devCfg.UseCoreAudioVolume && devCfg.RoutingConfig != hal.RoutingConfigurableEngine {
		slog.Error("zones: core audio volume requires configurable engine routing",
			"routing", devCfg.RoutingConfig)
		return zones
	}

	halZones, err := a.control.AudioZones()
	if err != nil {
		slog.Error("zones: audio zones unavailable", "error", err)
		return zones
	}
	if len(halZones) == 0 {
		slog.Error("zones: HAL declared no audio zones")
		return zones
	}

	converter := NewZoneConverter(devCfg, a.outputs.OutputDevices())
	registries := make(map[int]*audio.Registry, len(halZones))
	foundErrors := false
	for _, hz := range halZones {
		if hz == nil {
			slog.Error("zones: null zone in HAL zone list")
			foundErrors = true
			continue
		}
		if _, dup := zones[hz.ID]; dup {
			slog.Error("zones: duplicate zone id", "zone", hz.ID)
			foundErrors = true
			continue
		}
		zone, reg, err := converter.Convert(hz)
		if err != nil {
			slog.Error("zones: zone rejected", "zone", hz.ID, "error", err)
			foundErrors = true
			continue
		}
		zones[hz.ID] = zone
		registries[hz.ID] = reg
	}
	if foundErrors {
		clear(zones)
		return zones
	}
	if zones[models.PrimaryZoneID] == nil {
		slog.Error("zones: no primary zone declared")
		clear(zones)
		return zones
	}

	occupants := make(map[int]int)
	for id, z := range zones {
		if z.OccupantZoneID != hal.UnassignedOccupant {
			occupants[id] = z.OccupantZoneID
		}
	}

	a.applySettings(zones)

	a.loaded = true
	a.deviceCfg = devCfg
	a.primaryReg = registries[models.PrimaryZoneID]
	a.occupants = occupants
	a.mirrors = a.loadMirrors(converter)
	return zones
}

// applySettings activates each zone's remembered config when it is
// currently selectable, the default otherwise, and restores persisted
// group volume and mute. Restored indices are clamped to the group range
// the topology just defined.
func (a *Assembler) applySettings(zones map[int]*models.Zone) {
	settings, err := a.settings.Load()
	if err != nil {
		slog.Warn("zones: settings unavailable, using defaults", "error", err)
		def := models.DefaultSettings()
		settings = &def
	}
	for _, zone := range zones {
		zs := settings.Zone(zone.ID)

		active := zone.DefaultConfig()
		if zs != nil && zs.SelectedConfig != "" {
			if c := zone.Config(zs.SelectedConfig); c != nil && c.Selectable() {
				active = c
			}
		}
		for _, cfg := range zone.Configs {
			cfg.Active = cfg == active
		}

		if zs == nil {
			continue
		}
		for _, cfg := range zone.Configs {
			for _, g := range cfg.Groups {
				gs := zs.Group(g.ID)
				if gs == nil {
					continue
				}
				idx := gs.GainIndex
				if maxIdx := g.MaxGainIndex(); idx > maxIdx {
					idx = maxIdx
				}
				if idx < 0 {
					idx = 0
				}
				g.GainIndex = idx
				g.Muted = gs.Muted
			}
		}
	}
}

// loadMirrors converts the zone mirroring ports. The list is all or
// nothing: one unresolvable port empties it, mirroring must not run on
// half its declared legs.
func (a *Assembler) loadMirrors(converter *ZoneConverter) []*models.DeviceInfo {
	ports, err := a.control.MirrorDevices()
	if err != nil {
		slog.Warn("zones: mirror devices unavailable", "error", err)
		return nil
	}
	out := make([]*models.DeviceInfo, 0, len(ports))
	for i, p := range ports {
		dev := convert.AudioDevicePort(p, converter.byAddress)
		if dev == nil {
			slog.Error("zones: mirror port did not resolve", "index", i)
			return nil
		}
		out = append(out, dev)
	}
	return out
}

// CarAudioContext returns the primary zone's context registry, nil before
// a successful load.
func (a *Assembler) CarAudioContext() *audio.Registry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.primaryReg
}

// UseCoreAudioRouting reports whether routing belongs to the external
// audio engine. False before a successful load.
func (a *Assembler) UseCoreAudioRouting() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loaded && a.deviceCfg.RoutingConfig == hal.RoutingConfigurableEngine
}

// UseCoreAudioVolume reports whether group volume belongs to the external
// volume authority. False before a successful load.
func (a *Assembler) UseCoreAudioVolume() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loaded && a.deviceCfg.UseCoreAudioVolume
}

// UseVolumeGroupMuting reports whether mute is applied per volume group.
// False before a successful load.
func (a *Assembler) UseVolumeGroupMuting() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loaded && a.deviceCfg.UseCarVolumeGroupMuting
}

// UseHalDuckingSignalOrDefault reports whether ducking decisions should be
// pushed to the HAL. It reports false until a topology loads; after that
// the topology decides and def is not consulted.
func (a *Assembler) UseHalDuckingSignalOrDefault(def bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded {
		return false
	}
	return a.deviceCfg.UseHalDuckingSignals
}

// DeviceConfiguration returns the configuration behind the last successful
// load. ok is false before one.
func (a *Assembler) DeviceConfiguration() (hal.AudioDeviceConfiguration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded {
		return hal.AudioDeviceConfiguration{}, false
	}
	return a.deviceCfg, true
}

// ZoneIDToOccupantID maps zone ids to the occupant positions they serve.
// Zones without an occupant binding are absent; empty before a successful
// load.
func (a *Assembler) ZoneIDToOccupantID() map[int]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	m := make(map[int]int, len(a.occupants))
	for id, occ := range a.occupants {
		m[id] = occ
	}
	return m
}

// MirrorDeviceInfos returns the devices reserved for zone mirroring, empty
// before a successful load or when any mirror port failed to resolve.
func (a *Assembler) MirrorDeviceInfos() []*models.DeviceInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.mirrors)
}
