package controller_test

import (
	"context"
	"slices"
	"testing"

	"github.com/opencabin/caraudio-go/internal/audio"
	"github.com/opencabin/caraudio-go/internal/config"
	"github.com/opencabin/caraudio-go/internal/controller"
	"github.com/opencabin/caraudio-go/internal/events"
	"github.com/opencabin/caraudio-go/internal/hal"
	"github.com/opencabin/caraudio-go/internal/models"
	"github.com/opencabin/caraudio-go/internal/volume"
)

var (
	mediaAttr  = audio.UsageAttributes(audio.UsageMedia)
	navAttr    = audio.UsageAttributes(audio.UsageAssistanceNavigationGuidance)
	safetyAttr = audio.UsageAttributes(audio.UsageSafety)
)

func newController(t *testing.T) (*controller.Controller, *hal.Mock, *config.MemStore) {
	t.Helper()
	mock := hal.NewMockWithTopology(hal.DefaultTopology())
	store := config.NewMemStore()
	ctrl, err := controller.New(mock, mock, nil, store, events.NewBus())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return ctrl, mock, store
}

// coreTopology flips the default layout to engine-owned routing and volume.
func coreTopology() *hal.Topology {
	topo := hal.DefaultTopology()
	topo.Configuration.RoutingConfig = hal.RoutingConfigurableEngine
	topo.Configuration.UseCoreAudioVolume = true
	return topo
}

// coreAuthority serves every first-routed context of the default layout.
func coreAuthority() *volume.MockAuthority {
	auth := volume.NewMockAuthority()
	auth.AddGroup(10, 0, 40, 20, audio.UsageAttributes(audio.UsageUnknown))
	auth.AddGroup(11, 0, 40, 20, navAttr)
	auth.AddGroup(12, 0, 40, 20, audio.UsageAttributes(audio.UsageVoiceCommunication))
	auth.AddGroup(13, 0, 40, 20, audio.UsageAttributes(audio.UsageAlarm))
	return auth
}

func newCoreController(t *testing.T) (*controller.Controller, *volume.MockAuthority) {
	t.Helper()
	mock := hal.NewMockWithTopology(coreTopology())
	auth := coreAuthority()
	ctrl, err := controller.New(mock, mock, auth, config.NewMemStore(), events.NewBus())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return ctrl, auth
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestNew_LoadsTopology(t *testing.T) {
	ctrl, _, _ := newController(t)

	state := ctrl.State()
	if !state.Info.Loaded {
		t.Fatal("Info.Loaded = false after a good topology load")
	}
	if len(state.Zones) != 2 {
		t.Fatalf("loaded %d zones, want 2", len(state.Zones))
	}
	if !state.Info.Mock {
		t.Error("Info.Mock = false with the mock HAL")
	}

	cabin := state.Zone(0)
	if cabin == nil || cabin.Name != "cabin" {
		t.Fatalf("zone 0 = %+v, want the cabin zone", cabin)
	}
	if ac := cabin.ActiveConfig(); ac == nil || ac.Name != "standard" {
		t.Errorf("cabin active config = %+v, want the default", ac)
	}
	if len(cabin.Configs) != 2 {
		t.Errorf("cabin has %d configs, want 2", len(cabin.Configs))
	}

	occupants := ctrl.ZoneIDToOccupantID()
	if occupants[0] != 1 || occupants[1] != 2 {
		t.Errorf("occupant map = %v, want zone 0 -> 1, zone 1 -> 2", occupants)
	}
	if len(state.MirrorDevices) != 2 {
		t.Errorf("mirror devices = %d, want 2", len(state.MirrorDevices))
	}
}

func TestNew_NoTopology(t *testing.T) {
	ctrl, err := controller.New(hal.NewMock(), hal.NewMock(), nil, config.NewMemStore(), events.NewBus())
	if err != nil {
		t.Fatalf("New() error = %v, want a running controller with no zones", err)
	}
	state := ctrl.State()
	if state.Info.Loaded {
		t.Error("Info.Loaded = true with no topology seeded")
	}
	if len(state.Zones) != 0 {
		t.Errorf("zones = %d, want 0", len(state.Zones))
	}
	if _, appErr := ctrl.Reload(context.Background()); appErr == nil {
		t.Error("Reload() with no topology error = nil, want NOT_LOADED")
	}
	if _, appErr := ctrl.SetFocus(context.Background(), 0, nil); appErr == nil {
		t.Error("SetFocus() with no topology error = nil, want error")
	}
}

func TestNew_MissingCollaborators(t *testing.T) {
	mock := hal.NewMock()
	if _, err := controller.New(nil, mock, nil, config.NewMemStore(), events.NewBus()); err == nil {
		t.Error("New(nil control) error = nil, want error")
	}
	if _, err := controller.New(mock, mock, nil, nil, events.NewBus()); err == nil {
		t.Error("New(nil store) error = nil, want error")
	}
	if _, err := controller.New(mock, mock, nil, config.NewMemStore(), nil); err == nil {
		t.Error("New(nil bus) error = nil, want error")
	}
}

func TestSetGroup_Gain(t *testing.T) {
	ctrl, mock, store := newController(t)

	state, appErr := ctrl.SetGroup(context.Background(), 0, 0, models.GroupUpdate{GainIndex: intPtr(30)})
	if appErr != nil {
		t.Fatalf("SetGroup() error = %v", appErr)
	}

	cabin := state.Zone(0)
	if got := cabin.ActiveConfig().Group(0).GainIndex; got != 30 {
		t.Errorf("group gain = %d, want 30", got)
	}
	// The volume follows the group into the alternative config.
	if got := cabin.Config("bluetooth media").Group(0).GainIndex; got != 30 {
		t.Errorf("mirrored gain = %d, want 30", got)
	}

	calls := mock.GainCalls()
	if len(calls) == 0 {
		t.Fatal("no gain pushed to the HAL")
	}
	last := calls[len(calls)-1]
	if last.ZoneID != 0 || last.Address != "bus0_media_out" || last.GainIndex != 30 {
		t.Errorf("pushed gain = %+v, want zone 0 bus0_media_out index 30", last)
	}

	settings, err := store.Load()
	if err != nil {
		t.Fatalf("settings load: %v", err)
	}
	zs := settings.Zone(0)
	if zs == nil || zs.Group(0) == nil || zs.Group(0).GainIndex != 30 {
		t.Errorf("persisted settings = %+v, want zone 0 group 0 gain 30", zs)
	}
}

func TestSetGroup_GainOutOfRange(t *testing.T) {
	ctrl, _, _ := newController(t)
	_, appErr := ctrl.SetGroup(context.Background(), 0, 0, models.GroupUpdate{GainIndex: intPtr(99)})
	if appErr == nil || appErr.Status != 400 {
		t.Errorf("SetGroup(99) error = %v, want a 400", appErr)
	}
}

func TestSetGroup_Mute(t *testing.T) {
	ctrl, mock, _ := newController(t)

	if _, appErr := ctrl.SetGroup(context.Background(), 0, 0, models.GroupUpdate{Mute: boolPtr(true)}); appErr != nil {
		t.Fatalf("SetGroup(mute) error = %v", appErr)
	}
	muting := mock.LastMuting()
	if len(muting) != 1 || !slices.Contains(muting[0].DeviceAddressesToMute, "bus0_media_out") {
		t.Errorf("pushed muting = %+v, want bus0_media_out muted", muting)
	}

	state, appErr := ctrl.SetGroup(context.Background(), 0, 0, models.GroupUpdate{Mute: boolPtr(false)})
	if appErr != nil {
		t.Fatalf("SetGroup(unmute) error = %v", appErr)
	}
	muting = mock.LastMuting()
	if len(muting) != 1 || !slices.Contains(muting[0].DeviceAddressesToUnmute, "bus0_media_out") {
		t.Errorf("pushed muting = %+v, want bus0_media_out unmuted", muting)
	}
	if state.Zone(0).ActiveConfig().Group(0).Muted {
		t.Error("group still muted after unmute")
	}
}

func TestSetGroup_NotFound(t *testing.T) {
	ctrl, _, _ := newController(t)
	if _, appErr := ctrl.SetGroup(context.Background(), 9, 0, models.GroupUpdate{}); appErr == nil || appErr.Status != 404 {
		t.Errorf("SetGroup(bad zone) error = %v, want 404", appErr)
	}
	if _, appErr := ctrl.SetGroup(context.Background(), 0, 9, models.GroupUpdate{}); appErr == nil || appErr.Status != 404 {
		t.Errorf("SetGroup(bad group) error = %v, want 404", appErr)
	}
}

func TestSetFocus_DuckingSequence(t *testing.T) {
	ctrl, mock, _ := newController(t)
	ctx := context.Background()

	// Media, a safety warning, and a navigation prompt: safety ducks both.
	state, appErr := ctrl.SetFocus(ctx, 0, []audio.Attributes{mediaAttr, safetyAttr, navAttr})
	if appErr != nil {
		t.Fatalf("SetFocus() error = %v", appErr)
	}
	d := state.Ducking[0]
	if want := []string{"bus0_media_out", "bus1_navigation_out"}; !slices.Equal(d.AddressesToDuck, want) {
		t.Errorf("step 1 duck = %v, want %v", d.AddressesToDuck, want)
	}
	if len(state.Focus[0]) != 3 {
		t.Errorf("step 1 focus holders = %d, want 3", len(state.Focus[0]))
	}
	if pushed := mock.LastDucking(); len(pushed) != 1 || pushed[0].ZoneID != 0 {
		t.Errorf("HAL push = %+v, want one info for zone 0", pushed)
	}

	// Safety released: navigation recovers, still ducking media.
	state, _ = ctrl.SetFocus(ctx, 0, []audio.Attributes{mediaAttr, navAttr})
	d = state.Ducking[0]
	if want := []string{"bus0_media_out"}; !slices.Equal(d.AddressesToDuck, want) {
		t.Errorf("step 2 duck = %v, want %v", d.AddressesToDuck, want)
	}
	if want := []string{"bus1_navigation_out"}; !slices.Equal(d.AddressesToUnduck, want) {
		t.Errorf("step 2 unduck = %v, want %v", d.AddressesToUnduck, want)
	}

	// Prompt over: media recovers.
	state, _ = ctrl.SetFocus(ctx, 0, []audio.Attributes{mediaAttr})
	d = state.Ducking[0]
	if len(d.AddressesToDuck) != 0 {
		t.Errorf("step 3 duck = %v, want none", d.AddressesToDuck)
	}
	if want := []string{"bus0_media_out"}; !slices.Equal(d.AddressesToUnduck, want) {
		t.Errorf("step 3 unduck = %v, want %v", d.AddressesToUnduck, want)
	}

	// Silence twice: the second decision is empty both ways.
	state, _ = ctrl.SetFocus(ctx, 0, nil)
	state, _ = ctrl.SetFocus(ctx, 0, nil)
	d = state.Ducking[0]
	if len(d.AddressesToDuck) != 0 || len(d.AddressesToUnduck) != 0 {
		t.Errorf("idle decision = duck %v unduck %v, want empty", d.AddressesToDuck, d.AddressesToUnduck)
	}
}

func TestSetFocus_AppliesActivationWindow(t *testing.T) {
	ctrl, _, _ := newController(t)
	ctx := context.Background()

	// The guidance group's activation window is 10-90% on playback changes.
	// Park its volume below the window, then start a navigation prompt.
	if _, appErr := ctrl.SetGroup(ctx, 0, 1, models.GroupUpdate{GainIndex: intPtr(2)}); appErr != nil {
		t.Fatalf("SetGroup() error = %v", appErr)
	}
	state, appErr := ctrl.SetFocus(ctx, 0, []audio.Attributes{navAttr})
	if appErr != nil {
		t.Fatalf("SetFocus() error = %v", appErr)
	}
	if got := state.Zone(0).ActiveConfig().Group(1).GainIndex; got != 4 {
		t.Errorf("guidance gain after prompt = %d, want clamped to 4", got)
	}

	// A media-only focus change leaves the guidance group alone.
	if _, appErr := ctrl.SetGroup(ctx, 0, 1, models.GroupUpdate{GainIndex: intPtr(2)}); appErr != nil {
		t.Fatal(appErr)
	}
	state, _ = ctrl.SetFocus(ctx, 0, []audio.Attributes{mediaAttr})
	if got := state.Zone(0).ActiveConfig().Group(1).GainIndex; got != 2 {
		t.Errorf("guidance gain after unrelated focus = %d, want 2", got)
	}
}

func TestSelectConfig_RequiresAvailableDevices(t *testing.T) {
	ctrl, _, _ := newController(t)
	ctx := context.Background()

	// The Bluetooth config depends on a dynamic device that is not there yet.
	if _, appErr := ctrl.SelectConfig(ctx, 0, "bluetooth media"); appErr == nil || appErr.Status != 409 {
		t.Fatalf("SelectConfig(unavailable) error = %v, want 409", appErr)
	}

	if _, appErr := ctrl.SetDeviceAvailability(ctx, models.DeviceAvailability{
		Type: models.DeviceTypeBluetoothA2DP, Available: true,
	}); appErr != nil {
		t.Fatalf("SetDeviceAvailability() error = %v", appErr)
	}

	state, appErr := ctrl.SelectConfig(ctx, 0, "bluetooth media")
	if appErr != nil {
		t.Fatalf("SelectConfig() error = %v", appErr)
	}
	if ac := state.Zone(0).ActiveConfig(); ac.Name != "bluetooth media" {
		t.Errorf("active config = %q, want bluetooth media", ac.Name)
	}

	if _, appErr := ctrl.SelectConfig(ctx, 0, "no such config"); appErr == nil || appErr.Status != 404 {
		t.Errorf("SelectConfig(unknown) error = %v, want 404", appErr)
	}
}

func TestDeviceAvailability_FallsBackToDefault(t *testing.T) {
	ctrl, _, _ := newController(t)
	ctx := context.Background()

	if _, appErr := ctrl.SetDeviceAvailability(ctx, models.DeviceAvailability{
		Type: models.DeviceTypeBluetoothA2DP, Available: true,
	}); appErr != nil {
		t.Fatal(appErr)
	}
	if _, appErr := ctrl.SelectConfig(ctx, 0, "bluetooth media"); appErr != nil {
		t.Fatal(appErr)
	}

	// The phone walks away: the zone must not stay on a dead routing.
	state, appErr := ctrl.SetDeviceAvailability(ctx, models.DeviceAvailability{
		Type: models.DeviceTypeBluetoothA2DP, Available: false,
	})
	if appErr != nil {
		t.Fatalf("SetDeviceAvailability() error = %v", appErr)
	}
	if ac := state.Zone(0).ActiveConfig(); ac.Name != "standard" {
		t.Errorf("active config after device loss = %q, want standard", ac.Name)
	}

	if _, appErr := ctrl.SetDeviceAvailability(ctx, models.DeviceAvailability{
		Type: models.DeviceTypeUSBHeadset, Available: true,
	}); appErr == nil || appErr.Status != 404 {
		t.Errorf("SetDeviceAvailability(unknown type) error = %v, want 404", appErr)
	}
}

func TestReload_RestoresSettings(t *testing.T) {
	ctrl, _, _ := newController(t)
	ctx := context.Background()

	if _, appErr := ctrl.SetGroup(ctx, 0, 0, models.GroupUpdate{GainIndex: intPtr(35), Mute: boolPtr(true)}); appErr != nil {
		t.Fatal(appErr)
	}

	state, appErr := ctrl.Reload(ctx)
	if appErr != nil {
		t.Fatalf("Reload() error = %v", appErr)
	}
	g := state.Zone(0).ActiveConfig().Group(0)
	if g.GainIndex != 35 || !g.Muted {
		t.Errorf("restored group = gain %d muted %v, want 35/true", g.GainIndex, g.Muted)
	}
	// Focus and ducking do not survive a reload.
	if len(state.Focus[0]) != 0 || state.Ducking[0] != nil {
		t.Error("focus or ducking state survived the reload")
	}
}

func TestCoreVolume_SetGroupGoesToEngine(t *testing.T) {
	ctrl, auth := newCoreController(t)
	ctx := context.Background()

	state, appErr := ctrl.SetGroup(ctx, 0, 0, models.GroupUpdate{GainIndex: intPtr(25)})
	if appErr != nil {
		t.Fatalf("SetGroup() error = %v", appErr)
	}
	if got := auth.VolumeIndexForAttributes(audio.UsageAttributes(audio.UsageUnknown)); got != 25 {
		t.Errorf("engine index = %d, want 25", got)
	}
	if got := state.Zone(0).ActiveConfig().Group(0).GainIndex; got != 25 {
		t.Errorf("shadowed gain = %d, want 25", got)
	}

	if _, appErr := ctrl.SetGroup(ctx, 0, 0, models.GroupUpdate{Mute: boolPtr(true)}); appErr != nil {
		t.Fatal(appErr)
	}
	adjustments := auth.Adjustments()
	if len(adjustments) == 0 || adjustments[len(adjustments)-1].Adjustment != volume.AdjustMute {
		t.Errorf("engine adjustments = %+v, want a trailing mute", adjustments)
	}
}

func TestCoreVolume_ReconciliationIdempotent(t *testing.T) {
	ctrl, auth := newCoreController(t)
	ctx := context.Background()

	// The engine moves the media group behind the daemon's back.
	auth.SetGroupState(10, 31, false, 31)

	flags, appErr := ctrl.OnCoreVolumeGroupChanged(ctx, 0, 0)
	if appErr != nil {
		t.Fatalf("OnCoreVolumeGroupChanged() error = %v", appErr)
	}
	if flags&volume.EventVolumeChange == 0 {
		t.Errorf("flags = %v, want a volume change", flags)
	}
	if got := ctrl.State().Zone(0).ActiveConfig().Group(0).GainIndex; got != 31 {
		t.Errorf("shadowed gain = %d, want 31", got)
	}

	// Nothing changed since: the second reconciliation is silent.
	flags, appErr = ctrl.OnCoreVolumeGroupChanged(ctx, 0, 0)
	if appErr != nil {
		t.Fatal(appErr)
	}
	if flags != 0 {
		t.Errorf("repeat flags = %v, want 0", flags)
	}

	if _, appErr := ctrl.OnCoreVolumeGroupChanged(ctx, 7, 7); appErr == nil {
		t.Error("OnCoreVolumeGroupChanged(unknown group) error = nil, want 404")
	}
}

func TestCoreVolume_MissingAuthorityFailsLoad(t *testing.T) {
	mock := hal.NewMockWithTopology(coreTopology())
	ctrl, err := controller.New(mock, mock, nil, config.NewMemStore(), events.NewBus())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if state := ctrl.State(); state.Info.Loaded || len(state.Zones) != 0 {
		t.Errorf("core topology without an authority loaded %d zones, want 0", len(state.Zones))
	}
}

func TestSetIdentityAndOnline(t *testing.T) {
	ctrl, _, _ := newController(t)
	ctrl.SetIdentity("0.3.0", "car-head-unit", "CA-86", "1.0")
	ctrl.SetOnline(false)

	info := ctrl.GetInfo()
	if info.Version != "0.3.0" || info.Hostname != "car-head-unit" || info.Serial != "CA-86" {
		t.Errorf("info = %+v, want the identity fields set", info)
	}
	if !info.Offline {
		t.Error("info.Offline = false after SetOnline(false)")
	}
}
