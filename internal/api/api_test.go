package api_test

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opencabin/caraudio-go/internal/api"
	"github.com/opencabin/caraudio-go/internal/auth"
	"github.com/opencabin/caraudio-go/internal/config"
	"github.com/opencabin/caraudio-go/internal/controller"
	"github.com/opencabin/caraudio-go/internal/events"
	"github.com/opencabin/caraudio-go/internal/hal"
	"github.com/opencabin/caraudio-go/internal/models"
)

// newTestServer spins up a full router over a mock HAL with the default
// two-zone topology.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mock := hal.NewMockWithTopology(hal.DefaultTopology())
	store := config.NewMemStore()
	bus := events.NewBus()

	ctrl, err := controller.New(mock, mock, nil, store, bus)
	if err != nil {
		t.Fatalf("controller.New: %v", err)
	}

	authSvc, err := auth.NewService(t.TempDir()) // open mode — no users.json
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}

	router := api.NewRouter(ctrl, authSvc, bus)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		authSvc.Close()
	})
	return srv
}

// do is a convenience helper for making requests to the test server.
func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("NewRequest %s %s: %v", method, path, err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do %s %s: %v", method, path, err)
	}
	return resp
}

// decodeJSON reads and decodes a JSON response body into v.
func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
}

// requireStatus fails the test if the response status doesn't match.
func requireStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, expected, body)
	}
}

// --- Tests ---

func TestGetState(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "GET", "/api", "")
	requireStatus(t, resp, http.StatusOK)

	var state models.State
	decodeJSON(t, resp, &state)

	if !state.Info.Loaded {
		t.Error("GET /api: info.loaded = false")
	}
	if len(state.Zones) != 2 {
		t.Errorf("GET /api: %d zones, want 2", len(state.Zones))
	}
	if state.Ducking == nil || state.Focus == nil {
		t.Error("GET /api: ducking or focus map is null")
	}
}

func TestGetStateTrailingSlash(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "GET", "/api/", "")
	requireStatus(t, resp, http.StatusOK)
}

func TestGetZones(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "GET", "/api/zones", "")
	requireStatus(t, resp, http.StatusOK)

	var body struct {
		Zones []*models.Zone `json:"zones"`
	}
	decodeJSON(t, resp, &body)
	if len(body.Zones) != 2 {
		t.Fatalf("zones = %d, want 2", len(body.Zones))
	}
	if body.Zones[0].Name != "cabin" {
		t.Errorf("zone 0 name = %q, want cabin", body.Zones[0].Name)
	}
}

func TestGetZone_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "GET", "/api/zones/99", "")
	requireStatus(t, resp, http.StatusNotFound)
}

func TestGetZone_BadID(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "GET", "/api/zones/abc", "")
	requireStatus(t, resp, http.StatusBadRequest)
}

func TestGetOccupants(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "GET", "/api/occupants", "")
	requireStatus(t, resp, http.StatusOK)

	var body struct {
		Occupants map[string]int `json:"occupants"`
	}
	decodeJSON(t, resp, &body)
	if body.Occupants["0"] != 1 || body.Occupants["1"] != 2 {
		t.Errorf("occupants = %v, want zone 0 -> 1, zone 1 -> 2", body.Occupants)
	}
}

func TestSetGroup_Gain(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "PATCH", "/api/zones/0/groups/0", `{"gain_index": 30}`)
	requireStatus(t, resp, http.StatusOK)

	var state models.State
	decodeJSON(t, resp, &state)
	if got := state.Zone(0).ActiveConfig().Group(0).GainIndex; got != 30 {
		t.Errorf("gain after PATCH = %d, want 30", got)
	}
}

func TestSetGroup_GainOutOfRange(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "PATCH", "/api/zones/0/groups/0", `{"gain_index": 9999}`)
	requireStatus(t, resp, http.StatusBadRequest)
}

func TestSetGroup_Mute(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "PATCH", "/api/zones/0/groups/0", `{"mute": true}`)
	requireStatus(t, resp, http.StatusOK)

	var state models.State
	decodeJSON(t, resp, &state)
	if !state.Zone(0).ActiveConfig().Group(0).Muted {
		t.Error("group not muted after PATCH")
	}
}

func TestSetGroup_InvalidJSON(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "PATCH", "/api/zones/0/groups/0", `{"gain_index": `)
	requireStatus(t, resp, http.StatusBadRequest)
}

func TestGetGroups(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "GET", "/api/zones/0/groups", "")
	requireStatus(t, resp, http.StatusOK)

	var body struct {
		Groups []*models.VolumeGroup `json:"groups"`
	}
	decodeJSON(t, resp, &body)
	if len(body.Groups) != 4 {
		t.Errorf("groups = %d, want 4", len(body.Groups))
	}
}

func TestGetGroup_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "GET", "/api/zones/0/groups/99", "")
	requireStatus(t, resp, http.StatusNotFound)
}

func TestSyncGroup_NoCoreVolume(t *testing.T) {
	srv := newTestServer(t)

	// The default topology does not use core audio volume: no bound group.
	resp := do(t, srv, "POST", "/api/zones/0/groups/0/sync", "")
	requireStatus(t, resp, http.StatusNotFound)
}

func TestSetFocus_Ducking(t *testing.T) {
	srv := newTestServer(t)

	// Media plus a navigation prompt: the prompt ducks media.
	body := `{"holders": [{"usage": 1}, {"usage": 12}]}`
	resp := do(t, srv, "PUT", "/api/zones/0/focus", body)
	requireStatus(t, resp, http.StatusOK)

	var state models.State
	decodeJSON(t, resp, &state)
	d := state.Ducking[0]
	if d == nil || len(d.AddressesToDuck) != 1 || d.AddressesToDuck[0] != "bus0_media_out" {
		t.Fatalf("ducking decision = %+v, want media ducked", d)
	}

	resp = do(t, srv, "GET", "/api/zones/0/ducking", "")
	requireStatus(t, resp, http.StatusOK)
	var info models.DuckingInfo
	decodeJSON(t, resp, &info)
	if len(info.AddressesToDuck) != 1 {
		t.Errorf("GET ducking = %+v, want one ducked address", info)
	}

	resp = do(t, srv, "GET", "/api/zones/0/focus", "")
	requireStatus(t, resp, http.StatusOK)
	var focus struct {
		Holders []json.RawMessage `json:"holders"`
	}
	decodeJSON(t, resp, &focus)
	if len(focus.Holders) != 2 {
		t.Errorf("focus holders = %d, want 2", len(focus.Holders))
	}
}

func TestSetFocus_UnknownZone(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "PUT", "/api/zones/42/focus", `{"holders": []}`)
	requireStatus(t, resp, http.StatusNotFound)
}

func TestSelectConfig_Flow(t *testing.T) {
	srv := newTestServer(t)

	// Bluetooth config depends on a device that is not available yet.
	resp := do(t, srv, "PUT", "/api/zones/0/config", `{"name": "bluetooth media"}`)
	requireStatus(t, resp, http.StatusConflict)

	resp = do(t, srv, "PUT", "/api/devices/availability",
		`{"type": "bt_a2dp", "available": true}`)
	requireStatus(t, resp, http.StatusOK)

	resp = do(t, srv, "PUT", "/api/zones/0/config", `{"name": "bluetooth media"}`)
	requireStatus(t, resp, http.StatusOK)

	var state models.State
	decodeJSON(t, resp, &state)
	if ac := state.Zone(0).ActiveConfig(); ac == nil || ac.Name != "bluetooth media" {
		t.Errorf("active config = %+v, want bluetooth media", ac)
	}
}

func TestSelectConfig_UnknownName(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "PUT", "/api/zones/0/config", `{"name": "concert hall"}`)
	requireStatus(t, resp, http.StatusNotFound)
}

func TestGetConfigs(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "GET", "/api/zones/0/configs", "")
	requireStatus(t, resp, http.StatusOK)

	var body struct {
		Configs []*models.ZoneConfig `json:"configs"`
	}
	decodeJSON(t, resp, &body)
	if len(body.Configs) != 2 {
		t.Fatalf("configs = %d, want 2", len(body.Configs))
	}
	if !body.Configs[0].IsDefault || !body.Configs[0].Active {
		t.Errorf("config 0 = %+v, want default and active", body.Configs[0])
	}
}

func TestActivateConfig_ByPath(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "PUT", "/api/devices/availability",
		`{"type": "bt_a2dp", "available": true}`)
	requireStatus(t, resp, http.StatusOK)

	resp = do(t, srv, "POST", "/api/zones/0/configs/bluetooth media/activate", "")
	requireStatus(t, resp, http.StatusOK)

	var state models.State
	decodeJSON(t, resp, &state)
	if ac := state.Zone(0).ActiveConfig(); ac == nil || ac.Name != "bluetooth media" {
		t.Errorf("active config = %+v, want bluetooth media", ac)
	}
}

func TestGetContexts(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "GET", "/api/contexts", "")
	requireStatus(t, resp, http.StatusOK)

	var body struct {
		Contexts []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"contexts"`
	}
	decodeJSON(t, resp, &body)
	if len(body.Contexts) != 12 {
		t.Fatalf("contexts = %d, want the 12 standard contexts", len(body.Contexts))
	}
	if body.Contexts[0].Name != "MUSIC" {
		t.Errorf("first context = %q, want MUSIC", body.Contexts[0].Name)
	}
}

func TestGetDevices(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "GET", "/api/devices", "")
	requireStatus(t, resp, http.StatusOK)

	var body struct {
		MirrorDevices []*models.DeviceInfo `json:"mirror_devices"`
	}
	decodeJSON(t, resp, &body)
	if len(body.MirrorDevices) != 2 {
		t.Errorf("mirror devices = %d, want 2", len(body.MirrorDevices))
	}
}

func TestDeviceAvailability_UnknownType(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "PUT", "/api/devices/availability",
		`{"type": "usb_headset", "available": true}`)
	requireStatus(t, resp, http.StatusNotFound)
}

func TestGetInfo(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "GET", "/api/info", "")
	requireStatus(t, resp, http.StatusOK)

	var info models.Info
	decodeJSON(t, resp, &info)
	if !info.Mock {
		t.Error("info.mock = false for mock HAL")
	}
	if info.Zones != 2 {
		t.Errorf("info.zones = %d, want 2", info.Zones)
	}
}

func TestReload(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "POST", "/api/reload", "")
	requireStatus(t, resp, http.StatusOK)

	var state models.State
	decodeJSON(t, resp, &state)
	if len(state.Zones) != 2 {
		t.Errorf("zones after reload = %d, want 2", len(state.Zones))
	}
}

func TestGetTemps(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "GET", "/api/temps", "")
	requireStatus(t, resp, http.StatusOK)

	var body struct {
		Available bool `json:"available"`
	}
	decodeJSON(t, resp, &body)
}

func TestSSE_InitialState(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "GET", "/api/subscribe", "")
	defer resp.Body.Close()
	requireStatus(t, resp, http.StatusOK)

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	// The first event carries the full current state.
	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read SSE line: %v", err)
	}
	if !strings.HasPrefix(line, "data: ") {
		t.Fatalf("SSE line = %q, want data: prefix", line)
	}
	var state models.State
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &state); err != nil {
		t.Fatalf("unmarshal SSE payload: %v", err)
	}
	if len(state.Zones) != 2 {
		t.Errorf("SSE state zones = %d, want 2", len(state.Zones))
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "OPTIONS", "/api/zones", "")
	requireStatus(t, resp, http.StatusNoContent)
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS allow-origin header")
	}
}

func TestLoginPage(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "GET", "/auth/login", "")
	requireStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "<form") {
		t.Error("login page missing form")
	}
}
