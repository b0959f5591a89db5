package zones

import (
	"fmt"

	"github.com/opencabin/caraudio-go/internal/audio"
	"github.com/opencabin/caraudio-go/internal/models"
)

// validateConfig checks the routing invariants of one assembled config:
// every registry context routed by exactly one group, no output device
// claimed by two groups unless an external engine owns routing, and no
// unsupported device types on any route.
func validateConfig(cfg *models.ZoneConfig, reg *audio.Registry) error {
	assigned := make(map[audio.ContextID]int)
	addrOwner := make(map[string]int)
	for _, g := range cfg.Groups {
		for _, c := range g.Contexts {
			if prev, dup := assigned[c]; dup {
				return fmt.Errorf("zones: config %q routes context %d in both group %d and group %d",
					cfg.Name, c, prev, g.ID)
			}
			assigned[c] = g.ID
		}
		for _, d := range g.Devices {
			if d.Type == models.DeviceTypeUnsupported {
				return fmt.Errorf("zones: config %q group %d routes an unsupported device %q",
					cfg.Name, g.ID, d.Address)
			}
			if d.Address == "" {
				continue
			}
			if prev, shared := addrOwner[d.Address]; shared && prev != g.ID && !reg.UsesCoreRouting() {
				return fmt.Errorf("zones: config %q shares device %s between group %d and group %d",
					cfg.Name, d.Address, prev, g.ID)
			}
			addrOwner[d.Address] = g.ID
		}
	}
	for _, id := range reg.IDs() {
		if _, ok := assigned[id]; !ok {
			info, _ := reg.Info(id)
			return fmt.Errorf("zones: config %q leaves context %s unrouted", cfg.Name, info.Name)
		}
	}
	return nil
}
