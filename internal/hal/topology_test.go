package hal_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/opencabin/caraudio-go/internal/hal"
)

const topologyJSON = `{
  "configuration": {
    "routing_config": "configurable_engine",
    "use_core_audio_volume": true
  },
  "features": ["audio_configuration", "audio_ducking"],
  "zones": [
    {
      "id": 0,
      "name": "cabin",
      "occupant_zone_id": 1,
      "configs": [
        {
          "name": "standard",
          "is_default": true,
          "volume_groups": [
            {
              "id": 0,
              "name": "media",
              "routes": [
                {
                  "device": {
                    "id": 1,
                    "name": "bus0_media_out",
                    "gains": [{"min": 0, "max": 4000, "default": 2000, "step": 100}],
                    "device": {"type": "OUT_BUS", "connection": "bus", "address": "bus0_media_out"}
                  },
                  "context_names": ["MUSIC"]
                }
              ]
            },
            {
              "name": "unnumbered",
              "routes": [
                {
                  "device": {
                    "id": 2,
                    "name": "bus1_navigation_out",
                    "device": {"type": "OUT_BUS", "connection": "bus", "address": "bus1_navigation_out"}
                  },
                  "context_names": ["NAVIGATION"]
                }
              ]
            }
          ]
        }
      ]
    }
  ]
}`

func TestLoadTopology(t *testing.T) {
	path := filepath.Join(t.TempDir(), hal.TopologyFile)
	if err := os.WriteFile(path, []byte(topologyJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	topo, err := hal.LoadTopology(path)
	if err != nil {
		t.Fatalf("LoadTopology() error = %v", err)
	}
	if topo.Configuration.RoutingConfig != hal.RoutingConfigurableEngine {
		t.Errorf("RoutingConfig = %q, want configurable_engine", topo.Configuration.RoutingConfig)
	}
	if !topo.Configuration.UseCoreAudioVolume {
		t.Error("UseCoreAudioVolume = false, want true")
	}
	if len(topo.Features) != 2 || topo.Features[0] != hal.FeatureAudioConfiguration {
		t.Errorf("Features = %v", topo.Features)
	}
	if len(topo.Zones) != 1 || len(topo.Zones[0].Configs) != 1 {
		t.Fatalf("parsed %d zones, want 1 with 1 config", len(topo.Zones))
	}
	groups := topo.Zones[0].Configs[0].VolumeGroups
	if len(groups) != 2 {
		t.Fatalf("parsed %d groups, want 2", len(groups))
	}
	if groups[0].ID != 0 {
		t.Errorf("declared group id = %d, want 0", groups[0].ID)
	}
	if groups[1].ID != hal.UnassignedGroupID {
		t.Errorf("omitted group id = %d, want UnassignedGroupID", groups[1].ID)
	}
	ctx := topo.Zones[0].Context
	if ctx == nil || len(ctx.Infos) == 0 {
		t.Fatal("omitted context block not defaulted to the standard table")
	}
	if ctx.Infos[0].Name != "MUSIC" {
		t.Errorf("defaulted context starts with %q, want MUSIC", ctx.Infos[0].Name)
	}
}

func TestLoadTopology_Errors(t *testing.T) {
	if _, err := hal.LoadTopology(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadTopology(missing) error = nil, want error")
	}
	path := filepath.Join(t.TempDir(), "corrupt.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := hal.LoadTopology(path); err == nil {
		t.Error("LoadTopology(corrupt) error = nil, want error")
	}
}

func TestPortGain(t *testing.T) {
	p := &hal.AudioPort{Gains: []hal.GainConfig{{Min: 500, Max: 3500, Default: 1500, Step: 50}}}
	if g := hal.PortGain(p); g.Min != 500 || g.Step != 50 {
		t.Errorf("PortGain() = %+v, want declared stage", g)
	}
	if g := hal.PortGain(&hal.AudioPort{}); g != (hal.GainConfig{Min: 0, Max: 4000, Default: 2000, Step: 100}) {
		t.Errorf("PortGain(no stages) = %+v, want default range", g)
	}
	if g := hal.PortGain(nil); g.Max != 4000 {
		t.Errorf("PortGain(nil) = %+v, want default range", g)
	}
}

func TestOutputDevicesFromTopology(t *testing.T) {
	devs := hal.OutputDevicesFromTopology(hal.DefaultTopology())
	var addrs []string
	for _, d := range devs {
		addrs = append(addrs, d.Address)
		if !d.Available {
			t.Errorf("%s Available = false, want true (fixed bus output)", d.Address)
		}
		if d.MaxGain != 4000 {
			t.Errorf("%s MaxGain = %d, want 4000", d.Address, d.MaxGain)
		}
	}
	want := []string{
		"bus0_media_out", "bus1_navigation_out", "bus2_voice_out",
		"bus3_system_out", "bus4_rear_out", "bus8_mirror_out", "bus9_mirror_out",
	}
	slices.Sort(addrs)
	if !slices.Equal(addrs, want) {
		t.Errorf("addresses = %v, want %v", addrs, want)
	}
	// The dynamic Bluetooth port has no bus channel behind it.
	if slices.Contains(addrs, "bt_stream_out") {
		t.Error("output devices include the dynamic Bluetooth port")
	}
}

func TestOutputDevicesFromTopology_Nil(t *testing.T) {
	if devs := hal.OutputDevicesFromTopology(nil); len(devs) != 0 {
		t.Errorf("OutputDevicesFromTopology(nil) = %v, want empty", devs)
	}
}
