package ducking

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/opencabin/caraudio-go/internal/audio"
	"github.com/opencabin/caraudio-go/internal/hal"
	"github.com/opencabin/caraudio-go/internal/models"
)

// Manager tracks the live ducking decision per zone and forwards changes to
// the audio control HAL when the loaded topology asked for ducking signals.
type Manager struct {
	control hal.AudioControl
	engine  *Engine
	useHAL  bool

	mu      sync.Mutex
	current map[int]*models.DuckingInfo
}

// NewManager wires a manager to the HAL. When useHALSignals is false,
// decisions are computed and tracked but never sent to hardware.
func NewManager(control hal.AudioControl, engine *Engine, useHALSignals bool) (*Manager, error) {
	if control == nil {
		return nil, errors.New("ducking: audio control HAL required")
	}
	if engine == nil {
		return nil, errors.New("ducking: engine required")
	}
	return &Manager{
		control: control,
		engine:  engine,
		useHAL:  useHALSignals,
		current: make(map[int]*models.DuckingInfo),
	}, nil
}

// OnFocusChanged recomputes the zone's decision from the streams now holding
// focus and pushes the delta to the HAL. The stored decision advances even
// when the HAL push fails.
func (m *Manager) OnFocusChanged(ctx context.Context, zone *models.Zone, holders []audio.Attributes) (*models.DuckingInfo, error) {
	if zone == nil {
		return nil, errors.New("ducking: zone required")
	}
	m.mu.Lock()
	info := m.engine.Generate(m.current[zone.ID], holders, zone)
	m.current[zone.ID] = info
	m.mu.Unlock()

	if !m.useHAL {
		return info.DeepCopy(), nil
	}
	err := m.control.DuckChange(ctx, []hal.DuckingInfo{halInfo(info)})
	return info.DeepCopy(), err
}

func halInfo(info *models.DuckingInfo) hal.DuckingInfo {
	usages := make([]string, 0, len(info.PlaybackMetadata))
	for _, a := range info.PlaybackMetadata {
		usages = append(usages, a.Usage.String())
	}
	return hal.DuckingInfo{
		ZoneID:                  info.ZoneID,
		DeviceAddressesToDuck:   slices.Clone(info.AddressesToDuck),
		DeviceAddressesToUnduck: slices.Clone(info.AddressesToUnduck),
		UsagesHoldingFocus:      usages,
	}
}

// CurrentDecision returns the last decision for a zone, nil when focus has
// not changed there yet.
func (m *Manager) CurrentDecision(zoneID int) *models.DuckingInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current[zoneID].DeepCopy()
}

// Decisions returns the live decisions keyed by zone id.
func (m *Manager) Decisions() map[int]*models.DuckingInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]*models.DuckingInfo, len(m.current))
	for id, info := range m.current {
		out[id] = info.DeepCopy()
	}
	return out
}

// Reset drops every tracked decision.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = make(map[int]*models.DuckingInfo)
}
