// Command caraudio-panel is the cabin status panel driver. It polls the car
// audio daemon's API and renders zone, volume-group, and ducking status on
// the TFT display, or to the log when no panel hardware is present.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Config holds the panel driver configuration.
type Config struct {
	APIURL     string // URL of the car audio daemon API
	UpdateRate int    // Update rate in seconds
	LogLevel   string // Log level (debug, info, warn, error)
}

// Status is the snapshot the renderers draw from.
type Status struct {
	Hostname    string
	IP          string
	Version     string
	Offline     bool
	Mock        bool
	Loaded      bool
	DiskUsedGB  float64
	DiskTotalGB float64
	DiskPercent float64
	Zones       []ZoneInfo
}

// ZoneInfo holds one audio zone's display information.
type ZoneInfo struct {
	ID     int
	Name   string
	Config string // active zone config name
	Groups []GroupInfo
}

// GroupInfo holds one volume group's display information.
type GroupInfo struct {
	Name      string
	GainIndex int
	MaxIndex  int
	Muted     bool
	Ducked    bool
}

func main() {
	var (
		addr       = flag.String("addr", "localhost:8080", "car audio daemon API address")
		updateRate = flag.Int("update-rate", 1, "Panel update rate in seconds")
		logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	level := slog.LevelInfo
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := Config{
		APIURL:     fmt.Sprintf("http://%s/api", *addr),
		UpdateRate: *updateRate,
		LogLevel:   *logLevel,
	}

	slog.Info("caraudio-panel starting", "api", cfg.APIURL, "rate", cfg.UpdateRate)

	displayType := detectDisplay()
	if displayType == "none" {
		slog.Warn("no panel hardware detected, running in log-only mode")
	} else {
		slog.Info("panel hardware detected", "type", displayType)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, displayType); err != nil {
		slog.Error("panel driver failed", "err", err)
		os.Exit(1)
	}

	slog.Info("caraudio-panel stopped")
}

// detectDisplay checks for TFT panel hardware.
// Returns "tft" or "none".
func detectDisplay() string {
	if _, err := os.Stat("/dev/spidev1.0"); err != nil {
		return "none"
	}
	return "tft"
}

// run executes the main panel update loop.
func run(ctx context.Context, cfg Config, displayType string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	ticker := time.NewTicker(time.Duration(cfg.UpdateRate) * time.Second)
	defer ticker.Stop()

	consecutiveErrors := 0
	const maxConsecutiveErrors = 10

	slog.Info("panel update loop started")

	if err := updateDisplay(ctx, client, cfg, displayType); err != nil {
		slog.Warn("initial panel update failed", "err", err)
		consecutiveErrors++
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := updateDisplay(ctx, client, cfg, displayType); err != nil {
				consecutiveErrors++
				if consecutiveErrors >= maxConsecutiveErrors {
					return fmt.Errorf("too many consecutive errors (%d): %w", consecutiveErrors, err)
				}
				slog.Warn("panel update failed", "err", err, "consecutive_errors", consecutiveErrors)
			} else {
				consecutiveErrors = 0
			}
		}
	}
}

// updateDisplay fetches state from the daemon and updates the panel.
func updateDisplay(ctx context.Context, client *http.Client, cfg Config, displayType string) error {
	status, err := fetchStatus(ctx, client, cfg.APIURL)
	if err != nil {
		return fmt.Errorf("fetch status: %w", err)
	}
	if err := render(status, displayType); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

// fetchStatus retrieves the daemon's full state and flattens it into the
// panel's Status snapshot.
func fetchStatus(ctx context.Context, client *http.Client, apiURL string) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var apiResp struct {
		Info struct {
			Version string `json:"version"`
			Offline bool   `json:"offline"`
			Mock    bool   `json:"mock"`
			Loaded  bool   `json:"loaded"`
		} `json:"info"`
		Zones []struct {
			ID      int    `json:"id"`
			Name    string `json:"name"`
			Configs []struct {
				Name   string `json:"name"`
				Active bool   `json:"active"`
				Groups []struct {
					Name      string `json:"name"`
					GainIndex int    `json:"gain_index"`
					Muted     bool   `json:"muted"`
					MinGain   int    `json:"min_gain"`
					MaxGain   int    `json:"max_gain"`
					StepSize  int    `json:"step_size"`
					Devices   []struct {
						Address string `json:"address"`
					} `json:"devices"`
				} `json:"groups"`
			} `json:"configs"`
		} `json:"zones"`
		Ducking map[string]struct {
			AddressesToDuck []string `json:"addresses_to_duck"`
		} `json:"ducking"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	hostname, _ := os.Hostname()
	ip := getLocalIP()
	diskUsedGB, diskTotalGB, diskPercent := getDiskUsage()

	zones := make([]ZoneInfo, 0, len(apiResp.Zones))
	for _, z := range apiResp.Zones {
		zi := ZoneInfo{ID: z.ID, Name: z.Name}

		ducked := make(map[string]bool)
		if d, ok := apiResp.Ducking[fmt.Sprintf("%d", z.ID)]; ok {
			for _, addr := range d.AddressesToDuck {
				ducked[addr] = true
			}
		}

		for _, c := range z.Configs {
			if !c.Active {
				continue
			}
			zi.Config = c.Name
			for _, g := range c.Groups {
				gi := GroupInfo{
					Name:      g.Name,
					GainIndex: g.GainIndex,
					Muted:     g.Muted,
				}
				if g.StepSize > 0 {
					gi.MaxIndex = (g.MaxGain - g.MinGain) / g.StepSize
				}
				for _, dev := range g.Devices {
					if ducked[dev.Address] {
						gi.Ducked = true
						break
					}
				}
				zi.Groups = append(zi.Groups, gi)
			}
		}
		zones = append(zones, zi)
	}

	return &Status{
		Hostname:    hostname,
		IP:          ip,
		Version:     apiResp.Info.Version,
		Offline:     apiResp.Info.Offline,
		Mock:        apiResp.Info.Mock,
		Loaded:      apiResp.Info.Loaded,
		DiskUsedGB:  diskUsedGB,
		DiskTotalGB: diskTotalGB,
		DiskPercent: diskPercent,
		Zones:       zones,
	}, nil
}

// getDiskUsage returns root filesystem usage.
func getDiskUsage() (usedGB, totalGB, percent float64) {
	var st unix.Statfs_t
	if err := unix.Statfs("/", &st); err != nil {
		return 0, 0, 0
	}
	total := float64(st.Blocks) * float64(st.Bsize)
	free := float64(st.Bavail) * float64(st.Bsize)
	used := total - free
	if total <= 0 {
		return 0, 0, 0
	}
	const gb = 1 << 30
	return used / gb, total / gb, used / total * 100
}

// render displays the status on the appropriate hardware.
func render(status *Status, displayType string) error {
	switch displayType {
	case "tft":
		return renderTFT(status)
	case "none":
		return renderLog(status)
	default:
		return fmt.Errorf("unknown display type: %s", displayType)
	}
}

// Global TFT instance
var tftDisplay *TFT

// renderTFT renders status to the TFT panel.
func renderTFT(status *Status) error {
	if tftDisplay == nil {
		var err error
		tftDisplay, err = NewTFT()
		if err != nil {
			// If TFT init fails, log and continue (fall back to log-only mode)
			slog.Warn("TFT init failed, falling back to log-only mode", "err", err)
			return renderLog(status)
		}
	}

	if err := tftDisplay.RenderStatus(status); err != nil {
		return fmt.Errorf("render to TFT: %w", err)
	}

	slog.Debug("TFT panel updated successfully")
	return nil
}

// renderLog logs the status (for when no hardware is present).
func renderLog(status *Status) error {
	muted := 0
	ducked := 0
	groups := 0
	for _, z := range status.Zones {
		for _, g := range z.Groups {
			groups++
			if g.Muted {
				muted++
			}
			if g.Ducked {
				ducked++
			}
		}
	}

	slog.Info("panel status",
		"hostname", status.Hostname,
		"ip", status.IP,
		"version", status.Version,
		"offline", status.Offline,
		"loaded", status.Loaded,
		"disk", fmt.Sprintf("%.1f/%.1f GB (%.1f%%)", status.DiskUsedGB, status.DiskTotalGB, status.DiskPercent),
		"zones", len(status.Zones),
		"groups", fmt.Sprintf("%d (muted %d, ducked %d)", groups, muted, ducked),
	)
	return nil
}

// getLocalIP returns the local IP address (best effort).
func getLocalIP() string {
	// Dialing out resolves the routing without sending anything.
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "unknown"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
