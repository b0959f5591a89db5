package convert

import (
	"slices"

	"github.com/opencabin/caraudio-go/internal/hal"
	"github.com/opencabin/caraudio-go/internal/models"
)

// FadeConfig converts a zone config's fade setup. Fading only takes effect
// when the device configuration opts into fade management; otherwise, and
// when the HAL declares none, the config carries no fade block.
func FadeConfig(f *hal.AudioZoneFadeConfiguration, cfg hal.AudioDeviceConfiguration) *models.FadeConfig {
	if f == nil || !cfg.UseFadeManagerConfiguration {
		return nil
	}
	out := &models.FadeConfig{
		Name:           f.Default.Name,
		State:          fadeState(f.Default.State),
		FadeInMillis:   f.Default.FadeInDurationMs,
		FadeOutMillis:  f.Default.FadeOutDurationMs,
		FadeableUsages: slices.Clone(f.Default.FadeableUsages),
	}
	for _, tr := range f.Transients {
		out.Transients = append(out.Transients, models.TransientFade{
			Usages:        slices.Clone(tr.Usages),
			FadeInMillis:  tr.Config.FadeInDurationMs,
			FadeOutMillis: tr.Config.FadeOutDurationMs,
		})
	}
	return out
}

// fadeState treats anything but an explicit "disabled" as enabled.
func fadeState(s string) models.FadeState {
	if s == string(models.FadeStateDisabled) {
		return models.FadeStateDisabled
	}
	return models.FadeStateEnabled
}
