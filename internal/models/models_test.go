package models_test

import (
	"testing"

	"github.com/opencabin/caraudio-go/internal/audio"
	"github.com/opencabin/caraudio-go/internal/models"
)

func mediaGroup() *models.VolumeGroup {
	dev := &models.DeviceInfo{
		Address:     "bus0_media_out",
		Type:        models.DeviceTypeBus,
		Available:   true,
		MinGain:     0,
		MaxGain:     4000,
		DefaultGain: 2000,
		StepSize:    100,
	}
	return &models.VolumeGroup{
		ID:       0,
		Name:     "media",
		Contexts: []audio.ContextID{audio.ContextMusic},
		ContextDevices: map[audio.ContextID]*models.DeviceInfo{
			audio.ContextMusic: dev,
		},
		Devices:     []*models.DeviceInfo{dev},
		Activation:  models.DefaultActivationConfig(),
		MinGain:     0,
		MaxGain:     4000,
		DefaultGain: 2000,
		StepSize:    100,
	}
}

func TestVolumeGroup_GainIndexMath(t *testing.T) {
	g := mediaGroup()
	if got := g.MaxGainIndex(); got != 40 {
		t.Errorf("MaxGainIndex() = %d, want 40", got)
	}
	if got := g.DefaultGainIndex(); got != 20 {
		t.Errorf("DefaultGainIndex() = %d, want 20", got)
	}
	g.StepSize = 0
	if got := g.MaxGainIndex(); got != 0 {
		t.Errorf("MaxGainIndex() with zero step = %d, want 0", got)
	}
}

func TestVolumeGroup_AddressForContext(t *testing.T) {
	g := mediaGroup()
	if got := g.AddressForContext(audio.ContextMusic); got != "bus0_media_out" {
		t.Errorf("AddressForContext(music) = %q, want bus0_media_out", got)
	}
	if got := g.AddressForContext(audio.ContextSafety); got != "" {
		t.Errorf("AddressForContext(safety) = %q, want empty", got)
	}
	if !g.HasAddress("bus0_media_out") {
		t.Error("HasAddress(bus0_media_out) = false, want true")
	}
}

func TestVolumeGroup_DeepCopy_PreservesDeviceSharing(t *testing.T) {
	g := mediaGroup()
	cp := g.DeepCopy()
	if cp.Devices[0] == g.Devices[0] {
		t.Fatal("DeepCopy shares device pointer with original")
	}
	if cp.ContextDevices[audio.ContextMusic] != cp.Devices[0] {
		t.Error("DeepCopy broke sharing between Devices and ContextDevices")
	}
	cp.Devices[0].Address = "changed"
	if g.Devices[0].Address != "bus0_media_out" {
		t.Error("mutating copy changed original device")
	}
}

func TestZone_ActiveConfigFallsBackToDefault(t *testing.T) {
	z := &models.Zone{
		ID: models.PrimaryZoneID,
		Configs: []*models.ZoneConfig{
			{ID: 0, Name: "default", IsDefault: true, Groups: []*models.VolumeGroup{mediaGroup()}},
			{ID: 1, Name: "bt", Groups: []*models.VolumeGroup{}},
		},
	}
	if got := z.ActiveConfig(); got == nil || got.Name != "default" {
		t.Fatalf("ActiveConfig() = %v, want default config", got)
	}
	z.Configs[1].Active = true
	if got := z.ActiveConfig(); got.Name != "bt" {
		t.Errorf("ActiveConfig() = %q, want bt", got.Name)
	}
	if got := z.Config("missing"); got != nil {
		t.Errorf("Config(missing) = %v, want nil", got)
	}
	if !z.IsPrimary() {
		t.Error("IsPrimary() = false, want true")
	}
}

func TestZoneConfig_Selectable(t *testing.T) {
	bt := &models.DeviceInfo{Type: models.DeviceTypeBluetoothA2DP, Dynamic: true}
	cfg := &models.ZoneConfig{
		Name: "bt",
		Groups: []*models.VolumeGroup{{
			Devices: []*models.DeviceInfo{bt},
		}},
	}
	if cfg.Selectable() {
		t.Error("Selectable() = true with unavailable dynamic device")
	}
	bt.Available = true
	if !cfg.Selectable() {
		t.Error("Selectable() = false with available dynamic device")
	}
	def := &models.ZoneConfig{Name: "default", IsDefault: true}
	if !def.Selectable() {
		t.Error("default config must always be selectable")
	}
}

func TestState_DeepCopy_Isolated(t *testing.T) {
	s := models.State{
		Zones: []*models.Zone{{
			ID:      0,
			Configs: []*models.ZoneConfig{{ID: 0, IsDefault: true, Groups: []*models.VolumeGroup{mediaGroup()}}},
		}},
		Ducking: map[int]*models.DuckingInfo{
			0: {ZoneID: 0, AddressesToDuck: []string{"bus0_media_out"}},
		},
		Focus: map[int][]audio.Attributes{
			0: {audio.UsageAttributes(audio.UsageMedia)},
		},
	}
	cp := s.DeepCopy()
	cp.Zones[0].Configs[0].Groups[0].GainIndex = 7
	cp.Ducking[0].AddressesToDuck[0] = "changed"
	cp.Focus[0][0].Usage = audio.UsageSafety

	if s.Zones[0].Configs[0].Groups[0].GainIndex == 7 {
		t.Error("DeepCopy shares group state")
	}
	if s.Ducking[0].AddressesToDuck[0] != "bus0_media_out" {
		t.Error("DeepCopy shares ducking slices")
	}
	if s.Focus[0][0].Usage != audio.UsageMedia {
		t.Error("DeepCopy shares focus holders")
	}
	if got := cp.Zone(0); got == nil {
		t.Error("Zone(0) = nil after copy")
	}
	if got := cp.Zone(9); got != nil {
		t.Error("Zone(9) != nil")
	}
}

func TestSettings_EnsureZoneAndGroup(t *testing.T) {
	s := models.DefaultSettings()
	if s.Version != models.SettingsVersion {
		t.Fatalf("Version = %d, want %d", s.Version, models.SettingsVersion)
	}
	z := s.EnsureZone(2)
	z.SelectedConfig = "bt"
	g := z.EnsureGroup(1)
	g.GainIndex = 12

	if got := s.Zone(2); got == nil || got.SelectedConfig != "bt" {
		t.Fatalf("Zone(2) = %+v, want selected config bt", got)
	}
	if got := s.Zone(2).Group(1); got == nil || got.GainIndex != 12 {
		t.Errorf("Group(1) = %+v, want gain 12", got)
	}
	// Ensure is idempotent.
	if again := s.EnsureZone(2); again.SelectedConfig != "bt" {
		t.Error("EnsureZone created duplicate entry")
	}

	cp := s.DeepCopy()
	cp.Zones[0].Groups[0].GainIndex = 99
	if s.Zones[0].Groups[0].GainIndex != 12 {
		t.Error("DeepCopy shares group settings")
	}
}
