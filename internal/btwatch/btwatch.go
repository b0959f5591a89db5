// Package btwatch tracks Bluetooth A2DP transport availability through BlueZ
// and reports it to the controller so dynamic device configs become
// selectable when a phone connects.
package btwatch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/opencabin/caraudio-go/internal/models"
)

// Transport is one observed A2DP media transport.
type Transport struct {
	Address string
	Active  bool
}

// Probe queries the current set of A2DP transports. The default probe walks
// the BlueZ object tree on the system bus; tests inject their own.
type Probe func(ctx context.Context) ([]Transport, error)

// Watcher polls BlueZ for A2DP transports and pushes availability changes.
type Watcher struct {
	probe    Probe
	interval time.Duration
	onChange func(ctx context.Context, upd models.DeviceAvailability)

	known map[string]bool
}

// New creates a watcher. onChange receives one update per transport whose
// availability flipped. A nil probe uses the BlueZ system bus.
func New(probe Probe, onChange func(ctx context.Context, upd models.DeviceAvailability)) *Watcher {
	if probe == nil {
		probe = bluezProbe
	}
	return &Watcher{
		probe:    probe,
		interval: 3 * time.Second,
		onChange: onChange,
		known:    make(map[string]bool),
	}
}

// SetInterval overrides the poll interval, mainly for tests.
func (w *Watcher) SetInterval(d time.Duration) { w.interval = d }

// Start polls until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll runs one probe cycle and fires onChange for every transport whose
// availability changed since the last cycle. A transport that disappeared
// from the probe result is reported unavailable once.
func (w *Watcher) Poll(ctx context.Context) {
	transports, err := w.probe(ctx)
	if err != nil {
		slog.Debug("btwatch: probe failed", "err", err)
		return
	}

	seen := make(map[string]bool, len(transports))
	for _, tr := range transports {
		seen[tr.Address] = true
		if prev, ok := w.known[tr.Address]; ok && prev == tr.Active {
			continue
		}
		w.known[tr.Address] = tr.Active
		w.report(ctx, tr.Address, tr.Active)
	}
	for addr, active := range w.known {
		if seen[addr] || !active {
			continue
		}
		w.known[addr] = false
		w.report(ctx, addr, false)
	}
}

func (w *Watcher) report(ctx context.Context, address string, available bool) {
	slog.Info("btwatch: transport availability changed",
		"address", address, "available", available)
	if w.onChange == nil {
		return
	}
	w.onChange(ctx, models.DeviceAvailability{
		Type:      models.DeviceTypeBluetoothA2DP,
		Available: available,
	})
}

// bluezProbe walks the BlueZ object tree for org.bluez.MediaTransport1
// instances. A transport counts as active while its state is not idle,
// meaning the remote end has an A2DP stream configured.
func bluezProbe(ctx context.Context) ([]Transport, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	obj := conn.Object("org.bluez", "/")
	call := obj.CallWithContext(ctx, "org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0)
	if call.Err != nil {
		return nil, call.Err
	}

	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if err := call.Store(&objects); err != nil {
		return nil, err
	}

	var transports []Transport
	for path, interfaces := range objects {
		props, ok := interfaces["org.bluez.MediaTransport1"]
		if !ok {
			continue
		}
		tr := Transport{Address: deviceAddressFromPath(string(path))}
		if state, ok := props["State"]; ok {
			if s, ok := state.Value().(string); ok {
				tr.Active = s != "idle"
			}
		}
		transports = append(transports, tr)
	}
	return transports, nil
}

// deviceAddressFromPath extracts the device MAC from a BlueZ object path,
// e.g. /org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF/fd0 -> AA:BB:CC:DD:EE:FF.
func deviceAddressFromPath(path string) string {
	for _, part := range strings.Split(path, "/") {
		if strings.HasPrefix(part, "dev_") {
			return strings.ReplaceAll(strings.TrimPrefix(part, "dev_"), "_", ":")
		}
	}
	return ""
}
