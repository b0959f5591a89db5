package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencabin/caraudio-go/internal/config"
	"github.com/opencabin/caraudio-go/internal/models"
)

// --- JSONStore tests ---

func newTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "caraudio-config-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func writeSettingsFile(t *testing.T, dir string, raw map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	path := filepath.Join(dir, "car_audio_settings.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestJSONStore_LoadMissingFile_ReturnsDefault(t *testing.T) {
	dir := newTempDir(t)
	store := config.NewJSONStore(dir)

	settings, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if settings == nil {
		t.Fatal("Load() returned nil settings")
	}
	if settings.Version != models.SettingsVersion {
		t.Errorf("Load() version = %d, want %d", settings.Version, models.SettingsVersion)
	}
	if settings.Zones == nil {
		t.Error("Load() zones = nil, want empty slice")
	}
}

func TestJSONStore_SaveLoadRoundTrip(t *testing.T) {
	dir := newTempDir(t)
	store := config.NewJSONStore(dir)

	st := models.DefaultSettings()
	z := st.EnsureZone(0)
	z.SelectedConfig = "bluetooth media"
	g := z.EnsureGroup(2)
	g.GainIndex = 17
	g.Muted = true

	if err := store.Save(&st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	// Flush to ensure the file is written
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	lz := loaded.Zone(0)
	if lz == nil {
		t.Fatal("loaded settings missing zone 0")
	}
	if lz.SelectedConfig != "bluetooth media" {
		t.Errorf("SelectedConfig = %q, want %q", lz.SelectedConfig, "bluetooth media")
	}
	lg := lz.Group(2)
	if lg == nil {
		t.Fatal("loaded settings missing group 2")
	}
	if lg.GainIndex != 17 {
		t.Errorf("GainIndex = %d, want 17", lg.GainIndex)
	}
	if !lg.Muted {
		t.Error("Muted = false, want true")
	}
}

func TestJSONStore_CorruptJSON_ReturnsDefault(t *testing.T) {
	dir := newTempDir(t)
	store := config.NewJSONStore(dir)

	// Write corrupt JSON
	path := filepath.Join(dir, "car_audio_settings.json")
	if err := os.WriteFile(path, []byte("{invalid json!!!"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Should not panic or error — returns DefaultSettings
	settings, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if settings == nil {
		t.Fatal("Load() returned nil settings for corrupt JSON")
	}
	if len(settings.Zones) != 0 {
		t.Errorf("corrupt JSON: zones = %d, want 0 (default)", len(settings.Zones))
	}
}

func TestJSONStore_FlushAfterSave_FileExists(t *testing.T) {
	dir := newTempDir(t)
	store := config.NewJSONStore(dir)

	st := models.DefaultSettings()
	if err := store.Save(&st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	path := store.Path()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to exist at %q after Flush, got: %v", path, err)
	}
}

func TestJSONStore_FlushWithoutSave_NoError(t *testing.T) {
	dir := newTempDir(t)
	store := config.NewJSONStore(dir)

	// Flush with nothing pending — should be a no-op, no error
	if err := store.Flush(); err != nil {
		t.Errorf("Flush() with no pending save: error = %v, want nil", err)
	}
}

func TestJSONStore_Path(t *testing.T) {
	dir := newTempDir(t)
	store := config.NewJSONStore(dir)
	p := store.Path()
	if p == "" {
		t.Error("Path() returned empty string")
	}
	if filepath.Base(p) != "car_audio_settings.json" {
		t.Errorf("Path() base = %q, want car_audio_settings.json", filepath.Base(p))
	}
}

func TestJSONStore_SaveTwice_StopsOldTimer(t *testing.T) {
	dir := newTempDir(t)
	store := config.NewJSONStore(dir)

	st1 := models.DefaultSettings()
	st1.EnsureZone(0).SelectedConfig = "first save"

	st2 := models.DefaultSettings()
	st2.EnsureZone(0).SelectedConfig = "second save"

	// Call Save twice — second Save should stop the first timer and set a new one
	if err := store.Save(&st1); err != nil {
		t.Fatalf("First Save() error = %v", err)
	}
	if err := store.Save(&st2); err != nil {
		t.Fatalf("Second Save() error = %v", err)
	}
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	// The loaded settings should reflect the second save
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	z := loaded.Zone(0)
	if z == nil || z.SelectedConfig != "second save" {
		t.Errorf("SelectedConfig = %v, want %q", z, "second save")
	}
}

func TestJSONStore_SaveIsolatedFromCaller(t *testing.T) {
	dir := newTempDir(t)
	store := config.NewJSONStore(dir)

	st := models.DefaultSettings()
	st.EnsureZone(0).EnsureGroup(0).GainIndex = 10

	if err := store.Save(&st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Mutate the caller's copy before the debounced write fires
	st.Zone(0).Group(0).GainIndex = 99

	if err := store.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := loaded.Zone(0).Group(0).GainIndex; got != 10 {
		t.Errorf("GainIndex = %d, want 10 (Save did not copy)", got)
	}
}

// --- migration tests ---

func TestJSONStore_MigratesUnversionedFile(t *testing.T) {
	dir := newTempDir(t)
	store := config.NewJSONStore(dir)

	// No version field at all
	writeSettingsFile(t, dir, map[string]interface{}{
		"zones": []map[string]interface{}{
			{"zone_id": 0, "groups": []map[string]interface{}{
				{"group_id": 0, "gain_index": 5, "muted": false},
			}},
		},
	})

	settings, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.Version != models.SettingsVersion {
		t.Errorf("version = %d, want %d after migration", settings.Version, models.SettingsVersion)
	}
	if len(settings.Zones) != 1 {
		t.Errorf("zones = %d, want 1", len(settings.Zones))
	}
}

func TestJSONStore_MigratesNilSlices(t *testing.T) {
	dir := newTempDir(t)
	store := config.NewJSONStore(dir)

	// No zones field, and a zone with no groups field
	writeSettingsFile(t, dir, map[string]interface{}{
		"version": models.SettingsVersion,
	})

	settings, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.Zones == nil {
		t.Error("Zones should not be nil after migration")
	}

	writeSettingsFile(t, dir, map[string]interface{}{
		"version": models.SettingsVersion,
		"zones": []map[string]interface{}{
			{"zone_id": 0},
		},
	})
	settings, err = store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(settings.Zones) != 1 || settings.Zones[0].Groups == nil {
		t.Error("zone Groups should not be nil after migration")
	}
}

func TestJSONStore_MigratesInvalidZoneID(t *testing.T) {
	dir := newTempDir(t)
	store := config.NewJSONStore(dir)

	// Zone ids are routing identities, a negative one cannot be repaired
	writeSettingsFile(t, dir, map[string]interface{}{
		"version": models.SettingsVersion,
		"zones": []map[string]interface{}{
			{"zone_id": -1, "groups": []interface{}{}},
			{"zone_id": 0, "groups": []interface{}{}},
		},
	})

	settings, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(settings.Zones) != 1 {
		t.Fatalf("zones = %d, want 1 after dropping invalid id", len(settings.Zones))
	}
	if settings.Zones[0].ZoneID != 0 {
		t.Errorf("kept zone id = %d, want 0", settings.Zones[0].ZoneID)
	}
}

func TestJSONStore_MigratesDuplicateZones(t *testing.T) {
	dir := newTempDir(t)
	store := config.NewJSONStore(dir)

	writeSettingsFile(t, dir, map[string]interface{}{
		"version": models.SettingsVersion,
		"zones": []map[string]interface{}{
			{"zone_id": 0, "selected_config": "kept", "groups": []interface{}{}},
			{"zone_id": 0, "selected_config": "dropped", "groups": []interface{}{}},
		},
	})

	settings, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(settings.Zones) != 1 {
		t.Fatalf("zones = %d, want 1 after de-dup", len(settings.Zones))
	}
	if settings.Zones[0].SelectedConfig != "kept" {
		t.Errorf("SelectedConfig = %q, want first entry kept", settings.Zones[0].SelectedConfig)
	}
}

func TestJSONStore_MigratesNegativeGainIndex(t *testing.T) {
	dir := newTempDir(t)
	store := config.NewJSONStore(dir)

	writeSettingsFile(t, dir, map[string]interface{}{
		"version": models.SettingsVersion,
		"zones": []map[string]interface{}{
			{"zone_id": 0, "groups": []map[string]interface{}{
				{"group_id": 0, "gain_index": -5, "muted": false},
			}},
		},
	})

	settings, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	g := settings.Zone(0).Group(0)
	if g == nil {
		t.Fatal("group 0 missing after migration")
	}
	if g.GainIndex != 0 {
		t.Errorf("GainIndex = %d, want 0 after clamp", g.GainIndex)
	}
}

func TestJSONStore_MigratesDuplicateGroups(t *testing.T) {
	dir := newTempDir(t)
	store := config.NewJSONStore(dir)

	writeSettingsFile(t, dir, map[string]interface{}{
		"version": models.SettingsVersion,
		"zones": []map[string]interface{}{
			{"zone_id": 0, "groups": []map[string]interface{}{
				{"group_id": 1, "gain_index": 9, "muted": false},
				{"group_id": 1, "gain_index": 30, "muted": true},
				{"group_id": -2, "gain_index": 4, "muted": false},
			}},
		},
	})

	settings, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	z := settings.Zone(0)
	if z == nil {
		t.Fatal("zone 0 missing after migration")
	}
	if len(z.Groups) != 1 {
		t.Fatalf("groups = %d, want 1 after de-dup and invalid-id drop", len(z.Groups))
	}
	if z.Groups[0].GainIndex != 9 {
		t.Errorf("GainIndex = %d, want 9 (first entry kept)", z.Groups[0].GainIndex)
	}
}

// --- MemStore tests ---

func TestMemStore_SaveLoadRoundTrip(t *testing.T) {
	store := config.NewMemStore()

	st := models.DefaultSettings()
	st.EnsureZone(2).SelectedConfig = "rear entertainment"
	st.EnsureZone(2).EnsureGroup(1).GainIndex = 7

	if err := store.Save(&st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	z := loaded.Zone(2)
	if z == nil {
		t.Fatal("loaded settings missing zone 2")
	}
	if z.SelectedConfig != "rear entertainment" {
		t.Errorf("SelectedConfig = %q, want %q", z.SelectedConfig, "rear entertainment")
	}
	if g := z.Group(1); g == nil || g.GainIndex != 7 {
		t.Errorf("Group(1) = %v, want gain index 7", g)
	}
}

func TestMemStore_LoadBeforeSave_ReturnsDefault(t *testing.T) {
	store := config.NewMemStore()

	settings, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if settings.Version != models.SettingsVersion {
		t.Errorf("Load() version = %d, want %d", settings.Version, models.SettingsVersion)
	}
	if len(settings.Zones) != 0 {
		t.Errorf("Load() zones = %d, want 0", len(settings.Zones))
	}
}

func TestMemStore_MutationIsolation(t *testing.T) {
	store := config.NewMemStore()

	st := models.DefaultSettings()
	st.EnsureZone(0).EnsureGroup(0).GainIndex = 12

	if err := store.Save(&st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Mutate the returned value
	loaded.Zone(0).Group(0).GainIndex = 99
	loaded.Zone(0).SelectedConfig = "mutated"

	// Load again — should still have original values
	loaded2, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := loaded2.Zone(0).Group(0).GainIndex; got != 12 {
		t.Errorf("isolation broken: GainIndex = %d, want 12", got)
	}
	if loaded2.Zone(0).SelectedConfig == "mutated" {
		t.Error("isolation broken: SelectedConfig was mutated through returned pointer")
	}
}

func TestMemStore_SaveMutationIsolation(t *testing.T) {
	store := config.NewMemStore()

	st := models.DefaultSettings()
	st.EnsureZone(0).EnsureGroup(0).GainIndex = 12
	if err := store.Save(&st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Mutate the original after saving
	st.Zone(0).Group(0).GainIndex = 99

	// Store should still have the original value
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Zone(0).Group(0).GainIndex == 99 {
		t.Error("Save did not deep copy: mutation of original affected stored settings")
	}
}

func TestMemStore_Path(t *testing.T) {
	store := config.NewMemStore()
	if store.Path() != ":memory:" {
		t.Errorf("Path() = %q, want \":memory:\"", store.Path())
	}
}

func TestMemStore_Flush_NoOp(t *testing.T) {
	store := config.NewMemStore()
	if err := store.Flush(); err != nil {
		t.Errorf("Flush() error = %v, want nil", err)
	}
}
