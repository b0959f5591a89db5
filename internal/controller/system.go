package controller

import (
	"context"

	"github.com/opencabin/caraudio-go/internal/hal"
	"github.com/opencabin/caraudio-go/internal/models"
)

// GetInfo returns the system information snapshot.
func (c *Controller) GetInfo() models.Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Info
}

// SetIdentity fills in the identity fields gathered at startup.
func (c *Controller) SetIdentity(version, hostname, serial, firmware string) {
	_, _ = c.apply(func(s *models.State) error {
		s.Info.Version = version
		s.Info.Hostname = hostname
		s.Info.Serial = serial
		s.Info.Firmware = firmware
		return nil
	})
}

// SetOnline records the connectivity status the maintenance loop reports.
func (c *Controller) SetOnline(online bool) {
	_, _ = c.apply(func(s *models.State) error {
		s.Info.Offline = !online
		return nil
	})
}

// Temps reads the amp board temperatures through the HAL register file.
// ok is false when the hardware exposes none.
func (c *Controller) Temps(ctx context.Context) (hal.Temps, bool, error) {
	return hal.ReadTemps(ctx, c.control)
}
