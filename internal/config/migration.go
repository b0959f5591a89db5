package config

import (
	"log/slog"

	"github.com/opencabin/caraudio-go/internal/models"
)

// migrateSettings fills in default values for fields that may be missing
// in older settings files and drops entries broken by manual edits.
// Gain indices are only clamped at the bottom here; the per-group upper
// bound depends on the loaded topology and is enforced on restore.
func migrateSettings(settings *models.Settings) {
	if settings.Version <= 0 {
		slog.Info("config: unversioned settings file, upgrading", "version", models.SettingsVersion)
		settings.Version = models.SettingsVersion
	}

	if settings.Zones == nil {
		settings.Zones = []models.ZoneSettings{}
	}

	seenZone := make(map[int]bool)
	kept := settings.Zones[:0]
	for i := range settings.Zones {
		z := settings.Zones[i]
		if z.ZoneID < 0 {
			slog.Warn("config: dropping zone settings with invalid id", "zone", z.ZoneID)
			continue
		}
		if seenZone[z.ZoneID] {
			slog.Warn("config: dropping duplicate zone settings", "zone", z.ZoneID)
			continue
		}
		seenZone[z.ZoneID] = true

		if z.Groups == nil {
			z.Groups = []models.GroupSettings{}
		}
		seenGroup := make(map[int]bool)
		groups := z.Groups[:0]
		for _, g := range z.Groups {
			if g.GroupID < 0 {
				slog.Warn("config: dropping group settings with invalid id", "zone", z.ZoneID, "group", g.GroupID)
				continue
			}
			if seenGroup[g.GroupID] {
				slog.Warn("config: dropping duplicate group settings", "zone", z.ZoneID, "group", g.GroupID)
				continue
			}
			seenGroup[g.GroupID] = true
			if g.GainIndex < 0 {
				slog.Warn("config: clamping negative gain index", "zone", z.ZoneID, "group", g.GroupID, "gain_index", g.GainIndex)
				g.GainIndex = 0
			}
			groups = append(groups, g)
		}
		z.Groups = groups
		kept = append(kept, z)
	}
	settings.Zones = kept
}
