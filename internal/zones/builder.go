// Package zones assembles the queryable zone model from the topology the
// audio control HAL declares. The load is all or nothing: one malformed
// zone, config, or group degrades the whole load to an empty result, never
// to a partially routed car.
package zones

import (
	"fmt"
	"slices"

	"github.com/opencabin/caraudio-go/internal/audio"
	"github.com/opencabin/caraudio-go/internal/models"
)

// GroupBuilder accumulates the context-to-device assignments of one volume
// group and folds them into a models.VolumeGroup.
type GroupBuilder struct {
	zoneID     int
	configID   int
	groupID    int
	name       string
	activation models.ActivationConfig

	contexts  []audio.ContextID
	byContext map[audio.ContextID]*models.DeviceInfo
	devices   []*models.DeviceInfo
}

// NewGroupBuilder starts an empty group for the given zone and config.
func NewGroupBuilder(zoneID, configID, groupID int, name string, activation models.ActivationConfig) *GroupBuilder {
	return &GroupBuilder{
		zoneID:     zoneID,
		configID:   configID,
		groupID:    groupID,
		name:       name,
		activation: activation,
		byContext:  make(map[audio.ContextID]*models.DeviceInfo),
	}
}

// SetDeviceInfoForContext routes one context through a device. A context can
// be assigned only once per group, and every device in a group must share
// one gain step size so the group can step all of them together.
func (b *GroupBuilder) SetDeviceInfoForContext(id audio.ContextID, device *models.DeviceInfo) error {
	if device == nil {
		return fmt.Errorf("zones: no device for context %d in group %d", id, b.groupID)
	}
	if _, dup := b.byContext[id]; dup {
		return fmt.Errorf("zones: context %d assigned twice in group %d", id, b.groupID)
	}
	if device.StepSize <= 0 {
		return fmt.Errorf("zones: device %s has unusable gain step %d", device.Address, device.StepSize)
	}
	if len(b.devices) > 0 && device.StepSize != b.devices[0].StepSize {
		return fmt.Errorf("zones: device %s gain step %d does not match group step %d",
			device.Address, device.StepSize, b.devices[0].StepSize)
	}
	b.byContext[id] = device
	b.contexts = append(b.contexts, id)
	if !slices.Contains(b.devices, device) {
		b.devices = append(b.devices, device)
	}
	return nil
}

// Build folds the assignments into a volume group. The gain range is the
// intersection of the member devices' ranges, so every index the group
// accepts lands inside every device's range. Unnamed groups get a name
// derived from their position.
func (b *GroupBuilder) Build() (*models.VolumeGroup, error) {
	if len(b.contexts) == 0 {
		return nil, fmt.Errorf("zones: group %d has no context assignments", b.groupID)
	}

	minGain := b.devices[0].MinGain
	maxGain := b.devices[0].MaxGain
	defGain := b.devices[0].DefaultGain
	for _, d := range b.devices[1:] {
		minGain = max(minGain, d.MinGain)
		maxGain = min(maxGain, d.MaxGain)
		defGain = max(defGain, d.DefaultGain)
	}
	if minGain > maxGain {
		return nil, fmt.Errorf("zones: group %d devices have disjoint gain ranges", b.groupID)
	}
	defGain = min(max(defGain, minGain), maxGain)

	name := b.name
	if name == "" {
		name = fmt.Sprintf("config %d group %d", b.configID, b.groupID)
	}

	g := &models.VolumeGroup{
		ID:             b.groupID,
		Name:           name,
		ZoneID:         b.zoneID,
		ConfigID:       b.configID,
		Contexts:       slices.Clone(b.contexts),
		ContextDevices: make(map[audio.ContextID]*models.DeviceInfo, len(b.byContext)),
		Devices:        slices.Clone(b.devices),
		Activation:     b.activation,
		MinGain:        minGain,
		MaxGain:        maxGain,
		DefaultGain:    defGain,
		StepSize:       b.devices[0].StepSize,
	}
	for c, d := range b.byContext {
		g.ContextDevices[c] = d
	}
	g.GainIndex = g.DefaultGainIndex()
	return g, nil
}
