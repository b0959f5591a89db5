// Package identity provides system identity information for the head unit.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencabin/caraudio-go/internal/hal"
)

// DefaultVersion is the fallback version string when metadata.json is not found.
const DefaultVersion = "0.3.0"

// OnlineStatusFile is written by the maintenance loop.
const OnlineStatusFile = "/tmp/caraudio-online"

// Info holds system identity information.
type Info struct {
	Hostname string
	Serial   string // from EEPROM BoardInfo.Serial, or "None" if unreadable
	Version  string // software version string e.g. "0.3.0"
	Offline  bool   // populated by maintenance package
}

// GetHostname returns the system hostname.
func GetHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "caraudio"
	}
	return h
}

// GetVersion reads the version from ~/.config/caraudio/metadata.json.
// Falls back to DefaultVersion if the file is missing or unreadable.
func GetVersion() string {
	return GetVersionFromDir("")
}

// GetVersionFromDir reads the version from a specific config directory.
// If dir is empty, uses the default ~/.config/caraudio path.
// This variant is exported for testing.
func GetVersionFromDir(dir string) string {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return DefaultVersion
		}
		dir = filepath.Join(home, ".config", "caraudio")
	}

	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return DefaultVersion
	}

	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return DefaultVersion
	}

	if v, ok := meta["version"].(string); ok && v != "" {
		return v
	}
	return DefaultVersion
}

// GetSerial reads the board serial from the amp EEPROM through the HAL.
// Returns "None" when the board has no EEPROM or the read fails.
func GetSerial(ctx context.Context, control hal.AudioControl) string {
	info, ok, err := hal.ReadBoardInfo(ctx, control)
	if err != nil || !ok || info.Serial == 0 {
		return "None"
	}
	return fmt.Sprintf("%s-%d", info.Model, info.Serial)
}

// GetOnlineStatus returns true if the system is online, per the status file
// the maintenance loop keeps current. Missing file means offline.
func GetOnlineStatus() bool {
	data, err := os.ReadFile(OnlineStatusFile)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "online"
}
