// Package controller owns the live car audio state — the assembled zone
// model, per-group volume and mute, per-zone focus holders and ducking
// decisions. All state mutations go through the apply() method which
// ensures atomicity, persistence, and event publishing.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/opencabin/caraudio-go/internal/config"
	"github.com/opencabin/caraudio-go/internal/ducking"
	"github.com/opencabin/caraudio-go/internal/events"
	"github.com/opencabin/caraudio-go/internal/hal"
	"github.com/opencabin/caraudio-go/internal/models"
	"github.com/opencabin/caraudio-go/internal/volume"
	"github.com/opencabin/caraudio-go/internal/zones"
)

// Controller is the central state machine of the daemon. The HAL topology
// is assembled into zones at load time; everything after that is volume,
// mute, focus, and ducking over the loaded model.
type Controller struct {
	mu        sync.RWMutex
	state     models.State
	control   hal.AudioControl
	assembler *zones.Assembler
	store     config.Store
	bus       *events.Bus
	authority volume.Authority

	// Rebuilt on every successful load; nil while no topology is loaded.
	duckMgr *ducking.Manager
	// zone id -> group id -> engine-side binding, core audio volume only.
	coreGroups map[int]map[int]*volume.CoreGroup
}

// New creates and initializes a Controller, running the first topology load.
// A failed load is not fatal: the daemon comes up with no zones and answers
// sentinels until a reload succeeds. authority may be nil when the topology
// does not use core audio volume.
func New(control hal.AudioControl, outputs zones.OutputProvider, authority volume.Authority, store config.Store, bus *events.Bus) (*Controller, error) {
	if control == nil {
		return nil, errors.New("controller: audio control HAL required")
	}
	if store == nil {
		return nil, errors.New("controller: settings store required")
	}
	if bus == nil {
		return nil, errors.New("controller: event bus required")
	}
	asm, err := zones.New(control, outputs, store)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		state:     models.EmptyState(),
		control:   control,
		assembler: asm,
		store:     store,
		bus:       bus,
		authority: authority,
	}
	c.state.Info.Mock = !control.IsReal()

	if err := c.LoadZones(context.Background()); err != nil {
		slog.Warn("controller: initial zone load failed", "error", err)
	}
	return c, nil
}

// State returns a deep copy of the current system state.
func (c *Controller) State() models.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.DeepCopy()
}

// LoadZones (re)assembles the zone model from the HAL topology and replaces
// the runtime state. Focus and ducking decisions do not survive a reload;
// group volume and config selection come back from the settings store.
func (c *Controller) LoadZones(ctx context.Context) error {
	zoneMap := c.assembler.LoadAudioZones()

	c.mu.Lock()
	defer c.mu.Unlock()

	next := models.EmptyState()
	next.Info = c.state.Info
	next.Info.Loaded = len(zoneMap) > 0
	next.Info.Zones = len(zoneMap)

	if len(zoneMap) == 0 {
		c.state = next
		c.duckMgr = nil
		c.coreGroups = nil
		c.bus.Publish(next.DeepCopy())
		return errors.New("controller: no usable zone topology")
	}

	ids := make([]int, 0, len(zoneMap))
	for id := range zoneMap {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		next.Zones = append(next.Zones, zoneMap[id])
	}

	devCfg, _ := c.assembler.DeviceConfiguration()
	next.Config = models.DeviceConfig{
		RoutingConfig:           string(devCfg.RoutingConfig),
		UseCoreAudioVolume:      devCfg.UseCoreAudioVolume,
		UseCarVolumeGroupMuting: devCfg.UseCarVolumeGroupMuting,
		UseHalDuckingSignals:    devCfg.UseHalDuckingSignals,
		UseFadeManager:          devCfg.UseFadeManagerConfiguration,
	}
	next.MirrorDevices = c.assembler.MirrorDeviceInfos()

	reg := c.assembler.CarAudioContext()
	engine, err := ducking.NewEngine(reg, nil)
	if err != nil {
		// The default duck table only names standard contexts; a HAL
		// registry that dropped one of them cannot drive ducking.
		return c.failLoadLocked(next, err)
	}
	mgr, err := ducking.NewManager(c.control, engine, c.assembler.UseHalDuckingSignalOrDefault(false))
	if err != nil {
		return c.failLoadLocked(next, err)
	}

	var cores map[int]map[int]*volume.CoreGroup
	if c.assembler.UseCoreAudioVolume() {
		cores, err = c.bindCoreGroups(next.Zones)
		if err != nil {
			return c.failLoadLocked(next, err)
		}
	}

	c.duckMgr = mgr
	c.coreGroups = cores
	c.state = next

	// Push the restored state to hardware. Not fatal — the daemon can run
	// with unreachable hardware (mock or bring-up), the next mutation
	// retries.
	for _, z := range c.state.Zones {
		if err := c.pushActiveConfig(ctx, &c.state, z, models.ActivationOnBoot); err != nil {
			slog.Warn("controller: applying restored state to hardware failed",
				"zone", z.ID, "error", err)
		}
	}

	c.bus.Publish(c.state.DeepCopy())
	return nil
}

// failLoadLocked degrades a structurally valid zone set that cannot be
// operated (no ducking engine, unbindable core groups) to an empty load.
func (c *Controller) failLoadLocked(next models.State, err error) error {
	next.Zones = []*models.Zone{}
	next.MirrorDevices = nil
	next.Info.Loaded = false
	next.Info.Zones = 0
	c.state = next
	c.duckMgr = nil
	c.coreGroups = nil
	c.bus.Publish(next.DeepCopy())
	return err
}

// bindCoreGroups binds every volume group to its engine-side group, keyed
// by the group's first routed context. Binding is all or nothing: a group
// the engine does not serve fails the load, matching the zone assembly
// policy.
func (c *Controller) bindCoreGroups(zoneList []*models.Zone) (map[int]map[int]*volume.CoreGroup, error) {
	if c.authority == nil {
		return nil, errors.New("controller: topology uses core audio volume but no volume authority is wired")
	}
	reg := c.assembler.CarAudioContext()
	cores := make(map[int]map[int]*volume.CoreGroup, len(zoneList))
	for _, z := range zoneList {
		byGroup := make(map[int]*volume.CoreGroup)
		for _, cfg := range z.Configs {
			for _, g := range cfg.Groups {
				if _, bound := byGroup[g.ID]; bound {
					continue
				}
				info, ok := reg.Info(g.Contexts[0])
				if !ok || len(info.Attributes) == 0 {
					return nil, errors.New("controller: group " + g.Name + " routes a context outside the primary registry")
				}
				cg, err := volume.NewCoreGroup(c.authority, z.ID, g.Name, info.Attributes[0])
				if err != nil {
					return nil, err
				}
				byGroup[g.ID] = cg
			}
		}
		cores[z.ID] = byGroup
	}
	return cores, nil
}

// apply is the core mutation primitive. It:
//  1. Acquires the write lock
//  2. Makes a deep copy of the current state
//  3. Calls fn to modify the copy (fn may return an error to abort)
//  4. If fn succeeds: commits the copy, schedules a settings save,
//     publishes a snapshot
func (c *Controller) apply(fn func(*models.State) error) (models.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.state.DeepCopy()
	if err := fn(&next); err != nil {
		return models.State{}, err
	}

	c.state = next
	c.saveSettingsLocked()
	c.bus.Publish(c.state.DeepCopy())
	return c.state.DeepCopy(), nil
}

// saveSettingsLocked derives the persistent settings from the committed
// state and hands them to the store. Saves are debounced by the store.
func (c *Controller) saveSettingsLocked() {
	settings := models.DefaultSettings()
	for _, z := range c.state.Zones {
		zs := settings.EnsureZone(z.ID)
		if ac := z.ActiveConfig(); ac != nil {
			zs.SelectedConfig = ac.Name
		}
		for _, cfg := range z.Configs {
			for _, g := range cfg.Groups {
				gs := zs.EnsureGroup(g.ID)
				gs.GainIndex = g.GainIndex
				gs.Muted = g.Muted
			}
		}
	}
	if err := c.store.Save(&settings); err != nil {
		slog.Warn("controller: settings save failed", "error", err)
	}
}

// pushActiveConfig writes a zone's active config to hardware and reruns the
// zone's ducking decision against the new routing. Under core audio volume
// the engine owns the gains; the state shadows them instead of pushing.
// Callers hold the write lock.
func (c *Controller) pushActiveConfig(ctx context.Context, s *models.State, z *models.Zone, event models.InvocationType) error {
	cfg := z.ActiveConfig()
	if cfg == nil {
		return models.ErrConflict("zone has no active configuration")
	}
	for _, g := range cfg.Groups {
		if s.Config.UseCoreAudioVolume {
			if cg := c.coreGroups[z.ID][g.ID]; cg != nil {
				g.GainIndex = cg.GainIndex()
				g.Muted = cg.Muted()
			}
			continue
		}
		hg, err := volume.NewHalGroup(c.control, g, s.Config.UseCarVolumeGroupMuting)
		if err != nil {
			return err
		}
		if err := hg.SetGainIndex(ctx, g.GainIndex); err != nil {
			return err
		}
		if err := hg.SetMute(ctx, g.Muted); err != nil {
			return err
		}
		if err := hg.ApplyActivation(ctx, event); err != nil {
			return err
		}
	}

	if c.duckMgr != nil {
		info, err := c.duckMgr.OnFocusChanged(ctx, z, s.Focus[z.ID])
		if err != nil {
			slog.Warn("controller: ducking push failed", "zone", z.ID, "error", err)
		}
		if info != nil {
			s.Ducking[z.ID] = info
		}
	}
	return nil
}

// asAppError wraps a plain error for the API layer, passing AppErrors through.
func asAppError(err error) *models.AppError {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return models.ErrInternal(err.Error())
}

// mirrorGroup copies one group's volume state to the same group id in every
// config of the zone, clamped to each config's own range. Volume follows
// the group when configs switch.
func mirrorGroup(z *models.Zone, groupID, gainIndex int, muted bool) {
	for _, cfg := range z.Configs {
		g := cfg.Group(groupID)
		if g == nil {
			continue
		}
		idx := gainIndex
		if maxIdx := g.MaxGainIndex(); idx > maxIdx {
			idx = maxIdx
		}
		if idx < 0 {
			idx = 0
		}
		g.GainIndex = idx
		g.Muted = muted
	}
}
