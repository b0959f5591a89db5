package convert

import (
	"log/slog"

	"github.com/opencabin/caraudio-go/internal/hal"
	"github.com/opencabin/caraudio-go/internal/models"
)

// invocationTypes maps HAL invocation names to the platform enum.
var invocationTypes = map[string]models.InvocationType{
	hal.InvocationOnBoot:            models.ActivationOnBoot,
	hal.InvocationOnSourceChanged:   models.ActivationOnSourceChanged,
	hal.InvocationOnPlaybackChanged: models.ActivationOnPlaybackChanged,
}

// ActivationConfig converts a HAL activation configuration. Activation
// thresholds are tuning parameters, so anything missing or out of range
// falls back to the full-range default instead of failing the group: nil
// config, no entries, percentages outside [0,100], min above max, or an
// unrecognized invocation type.
func ActivationConfig(c *hal.VolumeActivationConfig) models.ActivationConfig {
	def := models.DefaultActivationConfig()
	if c == nil {
		return def
	}
	if len(c.Entries) == 0 {
		slog.Error("convert: activation config has no entries", "name", c.Name)
		return def
	}
	// Only the first entry is honored.
	entry := c.Entries[0]
	if entry.MaxActivationVolumePercent < 0 || entry.MaxActivationVolumePercent > 100 {
		slog.Error("convert: max activation volume out of range",
			"name", c.Name, "max", entry.MaxActivationVolumePercent)
		return def
	}
	if entry.MinActivationVolumePercent < 0 || entry.MinActivationVolumePercent > 100 {
		slog.Error("convert: min activation volume out of range",
			"name", c.Name, "min", entry.MinActivationVolumePercent)
		return def
	}
	if entry.MinActivationVolumePercent > entry.MaxActivationVolumePercent {
		slog.Error("convert: min activation volume above max",
			"name", c.Name, "min", entry.MinActivationVolumePercent,
			"max", entry.MaxActivationVolumePercent)
		return def
	}
	invocation, ok := invocationTypes[entry.Invocation]
	if !ok {
		slog.Error("convert: unknown activation invocation type",
			"name", c.Name, "invocation", entry.Invocation)
		return def
	}
	return models.ActivationConfig{
		Invocation: invocation,
		MinPercent: entry.MinActivationVolumePercent,
		MaxPercent: entry.MaxActivationVolumePercent,
	}
}
