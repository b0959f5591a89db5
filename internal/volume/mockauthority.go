package volume

import (
	"slices"
	"sync"

	"github.com/opencabin/caraudio-go/internal/audio"
)

// AdjustmentCall records one AdjustVolumeGroupVolume invocation.
type AdjustmentCall struct {
	GroupID    int
	Adjustment Adjustment
}

type mockGroup struct {
	id          int
	attrs       []audio.Attributes
	min, max    int
	index       int
	muted       bool
	lastAudible int
}

// MockAuthority is a thread-safe in-memory stand-in for the core audio
// engine, used in tests and when the daemon runs without one.
type MockAuthority struct {
	mu          sync.Mutex
	groups      []*mockGroup
	adjustments []AdjustmentCall

	autoProvision bool
	autoMin       int
	autoMax       int
	autoIndex     int
	nextID        int
}

var _ Authority = (*MockAuthority)(nil)

func NewMockAuthority() *MockAuthority {
	return &MockAuthority{}
}

// AddGroup registers an engine-side group serving the given attributes.
func (m *MockAuthority) AddGroup(id, min, max, index int, attrs ...audio.Attributes) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = append(m.groups, &mockGroup{
		id: id, attrs: slices.Clone(attrs),
		min: min, max: max, index: index, lastAudible: index,
	})
}

// SetAutoProvision makes the authority create a group on demand for any
// attributes it does not serve yet, with the given range and starting index.
// The mock daemon uses this so arbitrary topologies bind without an engine.
func (m *MockAuthority) SetAutoProvision(min, max, index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoProvision = true
	m.autoMin, m.autoMax, m.autoIndex = min, max, index
	m.nextID = 1000
}

// SetGroupState overwrites one group's engine-side state, simulating changes
// made behind the daemon's back.
func (m *MockAuthority) SetGroupState(groupID, index int, muted bool, lastAudible int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g := m.groupByID(groupID); g != nil {
		g.index, g.muted, g.lastAudible = index, muted, lastAudible
	}
}

// Adjustments returns every adjust call in order.
func (m *MockAuthority) Adjustments() []AdjustmentCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.adjustments)
}

func (m *MockAuthority) groupForAttr(attr audio.Attributes) *mockGroup {
	for _, g := range m.groups {
		if slices.ContainsFunc(g.attrs, attr.Equal) {
			return g
		}
	}
	for _, g := range m.groups {
		for _, a := range g.attrs {
			if a.Usage == attr.Usage {
				return g
			}
		}
	}
	if m.autoProvision {
		g := &mockGroup{
			id: m.nextID, attrs: []audio.Attributes{attr},
			min: m.autoMin, max: m.autoMax,
			index: m.autoIndex, lastAudible: m.autoIndex,
		}
		m.nextID++
		m.groups = append(m.groups, g)
		return g
	}
	return nil
}

func (m *MockAuthority) groupByID(id int) *mockGroup {
	for _, g := range m.groups {
		if g.id == id {
			return g
		}
	}
	return nil
}

func (m *MockAuthority) VolumeGroupIDForAttributes(attr audio.Attributes) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g := m.groupForAttr(attr); g != nil {
		return g.id, true
	}
	return 0, false
}

func (m *MockAuthority) VolumeIndexForAttributes(attr audio.Attributes) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g := m.groupForAttr(attr); g != nil {
		return g.index
	}
	return 0
}

func (m *MockAuthority) SetVolumeIndexForAttributes(attr audio.Attributes, index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.groupForAttr(attr)
	if g == nil {
		return
	}
	g.index = index
	if index > 0 {
		g.lastAudible = index
	}
}

func (m *MockAuthority) MinVolumeIndexForAttributes(attr audio.Attributes) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g := m.groupForAttr(attr); g != nil {
		return g.min
	}
	return 0
}

func (m *MockAuthority) MaxVolumeIndexForAttributes(attr audio.Attributes) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g := m.groupForAttr(attr); g != nil {
		return g.max
	}
	return 0
}

func (m *MockAuthority) IsVolumeGroupMuted(groupID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g := m.groupByID(groupID); g != nil {
		return g.muted
	}
	return false
}

func (m *MockAuthority) LastAudibleVolumeForGroup(groupID int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g := m.groupByID(groupID); g != nil {
		return g.lastAudible
	}
	return 0
}

func (m *MockAuthority) AdjustVolumeGroupVolume(groupID int, adj Adjustment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adjustments = append(m.adjustments, AdjustmentCall{GroupID: groupID, Adjustment: adj})
	g := m.groupByID(groupID)
	if g == nil {
		return
	}
	switch adj {
	case AdjustMute:
		g.muted = true
	case AdjustUnmute:
		g.muted = false
		g.index = g.lastAudible
	}
}
