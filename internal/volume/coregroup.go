package volume

import (
	"errors"
	"fmt"
	"sync"

	"github.com/opencabin/caraudio-go/internal/audio"
)

// CoreGroup mirrors one volume group whose gain the core audio engine owns.
// The daemon keeps a shadow of the engine's index and mute flag and
// reconciles it whenever the engine reports a group change.
type CoreGroup struct {
	authority Authority
	attr      audio.Attributes
	coreID    int
	zoneID    int
	name      string
	minIndex  int
	maxIndex  int

	mu        sync.Mutex
	gainIndex int
	muted     bool
}

// NewCoreGroup binds the named group to the engine-side volume group serving
// the representative attributes.
func NewCoreGroup(authority Authority, zoneID int, name string, attr audio.Attributes) (*CoreGroup, error) {
	if authority == nil {
		return nil, errors.New("volume: authority required")
	}
	id, ok := authority.VolumeGroupIDForAttributes(attr)
	if !ok {
		return nil, fmt.Errorf("volume: no engine volume group serves %s", attr)
	}
	return &CoreGroup{
		authority: authority,
		attr:      attr,
		coreID:    id,
		zoneID:    zoneID,
		name:      name,
		minIndex:  authority.MinVolumeIndexForAttributes(attr),
		maxIndex:  authority.MaxVolumeIndexForAttributes(attr),
		gainIndex: authority.VolumeIndexForAttributes(attr),
		muted:     authority.IsVolumeGroupMuted(id),
	}, nil
}

// CoreGroupID returns the engine-side group id.
func (g *CoreGroup) CoreGroupID() int { return g.coreID }

// Name returns the group name shared with the HAL topology.
func (g *CoreGroup) Name() string { return g.name }

func (g *CoreGroup) ZoneID() int       { return g.zoneID }
func (g *CoreGroup) MinGainIndex() int { return g.minIndex }
func (g *CoreGroup) MaxGainIndex() int { return g.maxIndex }

// GainIndex returns the current index, the minimum while muted.
func (g *CoreGroup) GainIndex() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.muted {
		return g.minIndex
	}
	return g.gainIndex
}

// SetGainIndex pushes a new index to the engine and shadows it.
func (g *CoreGroup) SetGainIndex(index int) error {
	if index < g.minIndex || index > g.maxIndex {
		return fmt.Errorf("volume: index %d out of range [%d, %d] for group %s",
			index, g.minIndex, g.maxIndex, g.name)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.authority.SetVolumeIndexForAttributes(g.attr, index)
	g.gainIndex = index
	return nil
}

// Muted reports the local mute flag.
func (g *CoreGroup) Muted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.muted
}

// SetMute asks the engine to mute or unmute the group and shadows the flag.
func (g *CoreGroup) SetMute(mute bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	adj := AdjustUnmute
	if mute {
		adj = AdjustMute
	}
	g.authority.AdjustVolumeGroupVolume(g.coreID, adj)
	g.muted = mute
}

// OnAudioVolumeGroupChanged pulls the engine's state and reconciles the
// shadow, reporting which of volume and mute actually changed. The engine
// reporting mute with a last audible level of zero is a volume drop to zero
// rather than a semantic mute: the index follows, the local mute flag is
// left alone, and when the group is already locally muted the sync is
// silent.
func (g *CoreGroup) OnAudioVolumeGroupChanged() EventFlags {
	amIndex := g.authority.VolumeIndexForAttributes(g.attr)
	amMuted := g.authority.IsVolumeGroupMuted(g.coreID)
	amLastAudible := g.authority.LastAudibleVolumeForGroup(g.coreID)

	g.mu.Lock()
	defer g.mu.Unlock()
	var flags EventFlags
	mutedByZero := amMuted && amLastAudible == 0
	switch {
	case mutedByZero && g.muted:
		g.gainIndex = amIndex
	case mutedByZero:
		if g.gainIndex != amIndex {
			g.gainIndex = amIndex
			flags |= EventVolumeChange
		}
	default:
		if g.muted != amMuted {
			g.muted = amMuted
			flags |= EventMute
		}
		newIndex := amIndex
		if amMuted {
			newIndex = amLastAudible
		}
		if g.gainIndex != newIndex {
			g.gainIndex = newIndex
			flags |= EventVolumeChange
		}
	}
	return flags
}
