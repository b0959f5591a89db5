package hal

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/opencabin/caraudio-go/internal/audio"
	"github.com/opencabin/caraudio-go/internal/models"
)

// TopologyFile is the default file name under the config directory.
const TopologyFile = "car_audio_topology.json"

// Topology is the complete HAL declaration loaded from disk: global
// strategy, advertised features, zones, and mirroring ports.
type Topology struct {
	Configuration AudioDeviceConfiguration `json:"configuration"`
	Features      []Feature                `json:"features,omitempty"`
	Zones         []*AudioZone             `json:"zones"`
	MirrorDevices []*AudioPort             `json:"mirror_devices,omitempty"`
}

// LoadTopology reads and decodes a topology file. Zones that do not declare
// a context block get the standard context table, so a hand-written file
// only has to spell out contexts when it deviates from the platform set.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hal: read topology: %w", err)
	}
	var t Topology
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("hal: parse topology %s: %w", path, err)
	}
	for _, z := range t.Zones {
		if z != nil && z.Context == nil {
			z.Context = StandardZoneContext()
		}
	}
	return &t, nil
}

// defaultGain is applied to ports that declare no gain stage, so dynamic
// devices like Bluetooth sinks still get a usable volume range.
var defaultGain = GainConfig{Min: 0, Max: 4000, Default: 2000, Step: 100}

// PortGain returns the port's first gain stage, or the default for ports
// that declare none.
func PortGain(p *AudioPort) GainConfig {
	if p != nil && len(p.Gains) > 0 {
		return p.Gains[0]
	}
	return defaultGain
}

// StandardZoneContext builds a HAL context block from the fixed context
// table, for topologies that do not define their own.
func StandardZoneContext() *AudioZoneContext {
	reg := audio.StandardRegistry()
	ctx := &AudioZoneContext{}
	for _, info := range reg.Contexts() {
		ctx.Infos = append(ctx.Infos, &AudioZoneContextInfo{
			Name:       info.Name,
			ID:         int(info.ID),
			Attributes: info.Attributes,
		})
	}
	return ctx
}

// OutputDevicesFromTopology collects the fixed bus outputs a topology
// routes to, one DeviceInfo per distinct address. These are the amp's own
// channels, always available, with the port's gain range folded in.
func OutputDevicesFromTopology(t *Topology) []*models.DeviceInfo {
	var out []*models.DeviceInfo
	seen := make(map[string]bool)
	addPort := func(p *AudioPort) {
		if p == nil || p.Device == nil || p.Device.Type != DeviceOutBus || p.Device.Address == "" {
			return
		}
		if seen[p.Device.Address] {
			return
		}
		seen[p.Device.Address] = true
		g := PortGain(p)
		out = append(out, &models.DeviceInfo{
			Address:     p.Device.Address,
			Type:        models.DeviceTypeBus,
			Available:   true,
			MinGain:     g.Min,
			MaxGain:     g.Max,
			DefaultGain: g.Default,
			StepSize:    g.Step,
		})
	}
	if t == nil {
		return out
	}
	for _, z := range t.Zones {
		if z == nil {
			continue
		}
		for _, cfg := range z.Configs {
			if cfg == nil {
				continue
			}
			for _, vg := range cfg.VolumeGroups {
				if vg == nil {
					continue
				}
				for _, route := range vg.Routes {
					addPort(route.Device)
				}
			}
		}
	}
	for _, p := range t.MirrorDevices {
		addPort(p)
	}
	return out
}

// DefaultTopology is the built-in demo layout used when no topology file
// exists in mock mode: a primary cabin zone with a Bluetooth alternative
// config, and a rear zone on a single group.
func DefaultTopology() *Topology {
	gains := []GainConfig{{Min: 0, Max: 4000, Default: 2000, Step: 100}}
	busPort := func(id int, addr string) *AudioPort {
		return &AudioPort{
			ID:    id,
			Name:  addr,
			Gains: gains,
			Device: &PortDevice{
				Type:       DeviceOutBus,
				Connection: ConnectionBus,
				Address:    addr,
			},
		}
	}
	btPort := &AudioPort{
		ID:    20,
		Name:  "bt_stream_out",
		Gains: gains,
		Device: &PortDevice{
			Type:       DeviceOutDevice,
			Connection: ConnectionBTA2DP,
		},
	}
	micPort := &AudioPort{
		ID:   30,
		Name: "cabin_mic",
		Device: &PortDevice{
			Type:       DeviceInMicrophone,
			Connection: ConnectionAnalog,
			Address:    "mic0_cabin",
		},
	}

	group := func(id int, name string, routes ...DeviceToContextEntry) *VolumeGroupConfig {
		return &VolumeGroupConfig{ID: id, Name: name, Routes: routes}
	}
	route := func(p *AudioPort, contexts ...string) DeviceToContextEntry {
		return DeviceToContextEntry{Device: p, ContextNames: contexts}
	}

	media := busPort(0, "bus0_media_out")
	guidance := busPort(1, "bus1_navigation_out")
	voice := busPort(2, "bus2_voice_out")
	system := busPort(3, "bus3_system_out")
	rear := busPort(4, "bus4_rear_out")

	standardGroups := func(mediaEntry DeviceToContextEntry) []*VolumeGroupConfig {
		return []*VolumeGroupConfig{
			group(0, "media", mediaEntry),
			{
				ID:   1,
				Name: "guidance",
				Activation: &VolumeActivationConfig{
					Name: "guidance activation",
					Entries: []VolumeActivationEntry{{
						Invocation:                 InvocationOnPlaybackChanged,
						MinActivationVolumePercent: 10,
						MaxActivationVolumePercent: 90,
					}},
				},
				Routes: []DeviceToContextEntry{route(guidance, "NAVIGATION", "VOICE_COMMAND")},
			},
			group(2, "telephony", route(voice, "CALL", "CALL_RING")),
			group(3, "system", route(system,
				"ALARM", "NOTIFICATION", "SYSTEM_SOUND",
				"EMERGENCY", "SAFETY", "VEHICLE_STATUS")),
		}
	}

	return &Topology{
		Configuration: AudioDeviceConfiguration{
			RoutingConfig:           RoutingDynamic,
			UseCarVolumeGroupMuting: true,
			UseHalDuckingSignals:    true,
		},
		Features: []Feature{FeatureAudioConfiguration, FeatureAudioDucking, FeatureGroupMuting},
		Zones: []*AudioZone{
			{
				ID:             0,
				Name:           "cabin",
				OccupantZoneID: 1,
				Context:        StandardZoneContext(),
				Configs: []*AudioZoneConfig{
					{
						Name:         "standard",
						IsDefault:    true,
						VolumeGroups: standardGroups(route(media, "MUSIC", "ANNOUNCEMENT")),
					},
					{
						Name:         "bluetooth media",
						VolumeGroups: standardGroups(route(btPort, "MUSIC", "ANNOUNCEMENT")),
					},
				},
				InputDevices: []*AudioPort{micPort},
			},
			{
				ID:             1,
				Name:           "rear seat",
				OccupantZoneID: 2,
				Context:        StandardZoneContext(),
				Configs: []*AudioZoneConfig{
					{
						Name:      "rear",
						IsDefault: true,
						VolumeGroups: []*VolumeGroupConfig{
							group(0, "rear", route(rear,
								"MUSIC", "NAVIGATION", "VOICE_COMMAND", "CALL_RING",
								"CALL", "ALARM", "NOTIFICATION", "SYSTEM_SOUND",
								"EMERGENCY", "SAFETY", "VEHICLE_STATUS", "ANNOUNCEMENT")),
						},
					},
				},
			},
		},
		MirrorDevices: []*AudioPort{
			busPort(10, "bus8_mirror_out"),
			busPort(11, "bus9_mirror_out"),
		},
	}
}
