package hal

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/opencabin/caraudio-go/internal/models"
)

// GainCall records one SetDeviceGain invocation for test assertions.
type GainCall struct {
	ZoneID    int
	Address   string
	GainIndex int
}

// Mock is a thread-safe in-memory HAL for testing and development. It keeps
// a register map mirroring what the real DSP would hold, so tests can assert
// on channel masks and attenuation the same way they would probe hardware.
type Mock struct {
	mu       sync.Mutex
	topo     *Topology
	features []Feature
	outputs  []*models.DeviceInfo
	regs     map[Register]byte

	failConfig bool
	failZones  bool
	failMirror bool
	failDuck   bool
	failMute   bool
	failGain   bool

	lastDucking []DuckingInfo
	lastMuting  []MutingInfo
	gainCalls   []GainCall
}

var _ AudioControl = (*Mock)(nil)

// NewMock creates a mock HAL with no topology. Seed must be called before
// the configuration queries return anything useful.
func NewMock() *Mock {
	m := &Mock{regs: make(map[Register]byte)}
	m.initRegs()
	return m
}

// NewMockWithTopology creates a mock HAL pre-seeded with a topology.
func NewMockWithTopology(t *Topology) *Mock {
	m := NewMock()
	m.Seed(t)
	return m
}

func (m *Mock) initRegs() {
	m.regs[RegDeviceID] = DeviceIDValue
	m.regs[RegVersionMaj] = 1
	m.regs[RegVersionMin] = 0
	m.regs[RegGitHash65] = 0xde
	m.regs[RegGitHash43] = 0xad
	m.regs[RegGitHash21] = 0xbe
	m.regs[RegGitHash0D] = 0xef
	m.regs[RegDuckAtten] = 48 // -24dB duck depth
	for ch := 0; ch < MaxChannels; ch++ {
		m.regs[ChAttenReg(ch)] = AttenMuteReg
	}
	// EEPROM window preloaded with page 0: format, serial, model, board rev.
	page := [16]byte{0x00, 0x00, 0x01, 0x86, 0xCA, 0x02, 0x00, 0x02, 'B'}
	for i, b := range page {
		m.regs[RegEEPROMData+Register(i)] = b
	}
}

// Seed installs a topology, replacing any previous one. The advertised
// features come from the topology, defaulting to all when it names none.
func (m *Mock) Seed(t *Topology) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topo = t
	m.outputs = OutputDevicesFromTopology(t)
	if t != nil && t.Features != nil {
		m.features = slices.Clone(t.Features)
	} else {
		m.features = []Feature{FeatureAudioConfiguration, FeatureAudioDucking, FeatureGroupMuting}
	}
	m.regs[RegDuckLo], m.regs[RegDuckHi] = 0, 0
	m.regs[RegMuteLo], m.regs[RegMuteHi] = 0, 0
}

// UpdateTopology replaces the seeded topology, mirroring how the real amp
// picks up a rewritten topology file.
func (m *Mock) UpdateTopology(t *Topology) {
	m.Seed(t)
}

// SetFeatures overrides the advertised feature set.
func (m *Mock) SetFeatures(features []Feature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.features = slices.Clone(features)
}

// SetFailConfiguration configures DeviceConfiguration to fail.
func (m *Mock) SetFailConfiguration(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failConfig = fail
}

// SetFailZones configures AudioZones to fail.
func (m *Mock) SetFailZones(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failZones = fail
}

// SetFailMirror configures MirrorDevices to fail.
func (m *Mock) SetFailMirror(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failMirror = fail
}

// SetFailDuck configures DuckChange to fail.
func (m *Mock) SetFailDuck(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failDuck = fail
}

// SetFailMute configures MuteChange to fail.
func (m *Mock) SetFailMute(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failMute = fail
}

// SetFailGain configures SetDeviceGain to fail.
func (m *Mock) SetFailGain(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGain = fail
}

func (m *Mock) Init(ctx context.Context) error {
	return nil
}

func (m *Mock) SupportsFeature(f Feature) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.features, f)
}

func (m *Mock) DeviceConfiguration() (AudioDeviceConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failConfig {
		return AudioDeviceConfiguration{}, ErrHardware("mock: configuration failure configured")
	}
	if m.topo == nil {
		return AudioDeviceConfiguration{}, ErrHardware("mock: no topology seeded")
	}
	return m.topo.Configuration, nil
}

func (m *Mock) AudioZones() ([]*AudioZone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failZones {
		return nil, ErrHardware("mock: zones failure configured")
	}
	if m.topo == nil {
		return nil, ErrHardware("mock: no topology seeded")
	}
	return m.topo.Zones, nil
}

func (m *Mock) MirrorDevices() ([]*AudioPort, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMirror {
		return nil, ErrHardware("mock: mirror failure configured")
	}
	if m.topo == nil {
		return nil, nil
	}
	return m.topo.MirrorDevices, nil
}

// OutputDevices returns the fixed bus outputs of the seeded topology.
func (m *Mock) OutputDevices() []*models.DeviceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.outputs)
}

func (m *Mock) DuckChange(ctx context.Context, infos []DuckingInfo) error {
	// Simulate I2C timing
	time.Sleep(time.Millisecond)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDuck {
		return ErrHardware("mock: duck failure configured")
	}
	m.lastDucking = slices.Clone(infos)
	ducked := UnpackChannelMask(m.regs[RegDuckLo], m.regs[RegDuckHi])
	for _, info := range infos {
		for _, addr := range info.DeviceAddressesToUnduck {
			if ch, err := ParseBusAddress(addr); err == nil {
				ducked = slices.DeleteFunc(ducked, func(c int) bool { return c == ch })
			}
		}
		for _, addr := range info.DeviceAddressesToDuck {
			if ch, err := ParseBusAddress(addr); err == nil && !slices.Contains(ducked, ch) {
				ducked = append(ducked, ch)
			}
		}
	}
	m.regs[RegDuckLo], m.regs[RegDuckHi] = PackChannelMask(ducked)
	return nil
}

func (m *Mock) MuteChange(ctx context.Context, infos []MutingInfo) error {
	time.Sleep(time.Millisecond)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMute {
		return ErrHardware("mock: mute failure configured")
	}
	m.lastMuting = slices.Clone(infos)
	muted := UnpackChannelMask(m.regs[RegMuteLo], m.regs[RegMuteHi])
	for _, info := range infos {
		for _, addr := range info.DeviceAddressesToUnmute {
			if ch, err := ParseBusAddress(addr); err == nil {
				muted = slices.DeleteFunc(muted, func(c int) bool { return c == ch })
			}
		}
		for _, addr := range info.DeviceAddressesToMute {
			if ch, err := ParseBusAddress(addr); err == nil && !slices.Contains(muted, ch) {
				muted = append(muted, ch)
			}
		}
	}
	m.regs[RegMuteLo], m.regs[RegMuteHi] = PackChannelMask(muted)
	return nil
}

func (m *Mock) SetDeviceGain(ctx context.Context, zoneID int, address string, gainIndex int) error {
	time.Sleep(time.Millisecond)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGain {
		return ErrHardware("mock: gain failure configured")
	}
	m.gainCalls = append(m.gainCalls, GainCall{ZoneID: zoneID, Address: address, GainIndex: gainIndex})
	ch, err := ParseBusAddress(address)
	if err != nil {
		// Non-bus devices (Bluetooth, USB) have no DSP channel.
		return nil
	}
	g := m.gainRange(address)
	gain := g.Min + gainIndex*g.Step
	m.regs[ChAttenReg(ch)] = AttenFromGain(gain, g.Max)
	return nil
}

func (m *Mock) gainRange(address string) GainConfig {
	for _, d := range m.outputs {
		if d.Address == address {
			return GainConfig{Min: d.MinGain, Max: d.MaxGain, Default: d.DefaultGain, Step: d.StepSize}
		}
	}
	return defaultGain
}

// WriteCPUTemp writes the host CPU temperature register.
func (m *Mock) WriteCPUTemp(ctx context.Context, tempC float32) error {
	return m.WriteReg(ctx, RegCPUTemp, TempToReg(tempC))
}

// ReadReg reads a raw register, mirroring the real DSP's register file.
func (m *Mock) ReadReg(ctx context.Context, reg Register) (byte, error) {
	time.Sleep(time.Millisecond)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[reg], nil
}

// WriteReg writes a raw register.
func (m *Mock) WriteReg(ctx context.Context, reg Register, val byte) error {
	time.Sleep(time.Millisecond)
	m.mu.Lock()
	defer m.mu.Unlock()
	if reg == RegEEPROMReq {
		// The relay services requests instantly, the window is preloaded.
		val &^= 0x01
	}
	m.regs[reg] = val
	return nil
}

func (m *Mock) IsReal() bool { return false }

// GetReg returns a register value for testing purposes.
func (m *Mock) GetReg(reg Register) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[reg]
}

// LastDucking returns the infos from the most recent DuckChange call.
func (m *Mock) LastDucking() []DuckingInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.lastDucking)
}

// LastMuting returns the infos from the most recent MuteChange call.
func (m *Mock) LastMuting() []MutingInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.lastMuting)
}

// GainCalls returns every SetDeviceGain call in order.
func (m *Mock) GainCalls() []GainCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.gainCalls)
}
