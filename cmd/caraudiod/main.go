// Command caraudiod is the car audio service daemon. It assembles the HAL
// topology into audio zones, owns group volumes and ducking, and exposes the
// local HTTP API. Run with --mock to use simulated hardware (no I2C device
// required).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/opencabin/caraudio-go/internal/api"
	"github.com/opencabin/caraudio-go/internal/auth"
	"github.com/opencabin/caraudio-go/internal/btwatch"
	"github.com/opencabin/caraudio-go/internal/config"
	"github.com/opencabin/caraudio-go/internal/controller"
	"github.com/opencabin/caraudio-go/internal/events"
	"github.com/opencabin/caraudio-go/internal/hal"
	"github.com/opencabin/caraudio-go/internal/identity"
	"github.com/opencabin/caraudio-go/internal/maintenance"
	"github.com/opencabin/caraudio-go/internal/models"
	"github.com/opencabin/caraudio-go/internal/volume"
	"github.com/opencabin/caraudio-go/internal/zeroconf"
	"github.com/opencabin/caraudio-go/internal/zones"
)

func main() {
	var (
		mock     = flag.Bool("mock", false, "use mock hardware driver (no I2C device required)")
		addr     = flag.String("addr", ":8080", "HTTP listen address")
		cfgDir   = flag.String("config-dir", "", "config directory (default: ~/.config/caraudio)")
		topoPath = flag.String("topology", "", "topology file (default: <config-dir>/"+hal.TopologyFile+")")
		debug    = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	// Configure logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Resolve config directory
	if *cfgDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			slog.Error("cannot determine home directory", "err", err)
			os.Exit(1)
		}
		*cfgDir = filepath.Join(home, ".config", "caraudio")
	}
	if err := os.MkdirAll(*cfgDir, 0755); err != nil {
		slog.Error("cannot create config directory", "path", *cfgDir, "err", err)
		os.Exit(1)
	}
	if *topoPath == "" {
		*topoPath = filepath.Join(*cfgDir, hal.TopologyFile)
	}

	// Graceful shutdown context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Topology. A real amp cannot run without one; the mock falls back to
	// the built-in two-zone layout for development.
	topo, err := hal.LoadTopology(*topoPath)
	if err != nil {
		if !*mock {
			slog.Error("topology load failed", "path", *topoPath, "err", err)
			os.Exit(1)
		}
		slog.Warn("topology load failed, using built-in mock topology", "path", *topoPath, "err", err)
		topo = hal.DefaultTopology()
	}

	// HAL driver
	var (
		control hal.AudioControl
		outputs zones.OutputProvider
		temps   hal.TempWriter
		ampHW   *hal.Amp
	)
	if *mock {
		slog.Info("using mock HAL driver")
		m := hal.NewMockWithTopology(topo)
		control, outputs, temps = m, m, m
	} else {
		slog.Info("using real I2C HAL driver")
		ampHW = hal.NewAmp(topo)
		control, outputs, temps = ampHW, ampHW, ampHW
	}
	if err := control.Init(ctx); err != nil {
		slog.Error("HAL initialization failed", "err", err)
		os.Exit(1)
	}

	// Core audio volume authority. Without an engine endpoint the daemon
	// serves core-volume topologies from an in-process authority so the
	// zone model still binds.
	var authority volume.Authority
	if topo.Configuration.UseCoreAudioVolume {
		ma := volume.NewMockAuthority()
		ma.SetAutoProvision(0, 40, 20)
		authority = ma
		slog.Info("core audio volume in use, serving groups from the in-process authority")
	}

	// Config store and event bus
	store := config.NewJSONStore(*cfgDir)
	bus := events.NewBus()

	// Controller
	ctrl, err := controller.New(control, outputs, authority, store, bus)
	if err != nil {
		slog.Error("controller initialization failed", "err", err)
		os.Exit(1)
	}

	// System identity
	firmware := ""
	if ampHW != nil {
		if v, err := ampHW.ReadVersion(ctx); err == nil {
			firmware = fmt.Sprintf("%d.%d", v.Major, v.Minor)
		}
	}
	ctrl.SetIdentity(
		identity.GetVersionFromDir(*cfgDir),
		identity.GetHostname(),
		identity.GetSerial(ctx, control),
		firmware,
	)

	// Auth service
	authSvc, err := auth.NewService(*cfgDir)
	if err != nil {
		slog.Error("auth service initialization failed", "err", err)
		os.Exit(1)
	}
	defer authSvc.Close()

	// Maintenance goroutines (online check, release check, config backups)
	maint := maintenance.New(*cfgDir,
		ctrl.SetOnline,
		func(release string) {
			slog.Info("new release available", "version", release)
		},
	)
	go maint.Start(ctx)

	// Zeroconf mDNS registration
	hostname, _ := os.Hostname()
	port := 8080
	if parts := strings.SplitN(*addr, ":", 2); len(parts) == 2 && parts[1] != "" {
		if p, err := strconv.Atoi(parts[1]); err == nil {
			port = p
		}
	}
	zc := zeroconf.New(hostname, port)
	go func() {
		if err := zc.Start(ctx); err != nil {
			slog.Warn("zeroconf failed", "err", err)
		}
	}()

	// Bluetooth transport watcher feeds dynamic device availability.
	bt := btwatch.New(nil, func(ctx context.Context, upd models.DeviceAvailability) {
		if _, appErr := ctrl.SetDeviceAvailability(ctx, upd); appErr != nil {
			slog.Debug("bluetooth availability not applied", "err", appErr)
		}
	})
	go bt.Start(ctx)

	// Reload the zone model when the topology file is rewritten.
	go watchTopology(ctx, *topoPath, control, ctrl)

	// Feed host CPU temperature into the DSP fan model.
	go hal.RunThermalReporter(ctx, temps)

	// HTTP server
	router := api.NewRouter(ctrl, authSvc, bus)
	srv := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE)
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("caraudiod listening", "addr", *addr, "mock", *mock, "config", *cfgDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()

	// Flush pending settings writes
	if err := store.Flush(); err != nil {
		slog.Warn("failed to flush settings", "err", err)
	}

	// Graceful HTTP shutdown
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}

	if ampHW != nil {
		ampHW.Close()
	}
	slog.Info("shutdown complete")
}

// topologyUpdater is the slice of the HAL that picks up a rewritten
// topology file. Both the real amp and the mock implement it.
type topologyUpdater interface {
	UpdateTopology(*hal.Topology)
}

// watchTopology reloads the zone model when the topology file changes.
func watchTopology(ctx context.Context, path string, control hal.AudioControl, ctrl *controller.Controller) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("topology watcher unavailable", "err", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		slog.Warn("cannot watch topology directory", "path", path, "err", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			topo, err := hal.LoadTopology(path)
			if err != nil {
				slog.Warn("rewritten topology is unreadable, keeping the loaded model",
					"path", path, "err", err)
				continue
			}
			if up, ok := control.(topologyUpdater); ok {
				up.UpdateTopology(topo)
			}
			if _, appErr := ctrl.Reload(ctx); appErr != nil {
				slog.Warn("topology reload failed", "err", appErr)
			} else {
				slog.Info("topology reloaded", "path", path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("topology watcher error", "err", err)
		}
	}
}
