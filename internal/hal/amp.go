//go:build linux

package hal

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
	"unsafe"

	"go.bug.st/serial"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/opencabin/caraudio-go/internal/models"
)

const (
	// devAddr is the DSP's 7-bit I2C address once assigned via UART.
	devAddr uint16 = 0x1A

	i2cDevPath   = "/dev/i2c-1"
	i2cRdwrIOCTL = 0x0707 // I2C_RDWR ioctl — combined write+read with REPEATED START
	i2cMsgRD     = 0x0001 // i2c_msg flag: read direction
	maxOpsPerSec = 500
)

// i2cMsg mirrors struct i2c_msg from linux/i2c.h
type i2cMsg struct {
	addr   uint16
	flags  uint16
	length uint16
	_pad   uint16 // struct alignment
	buf    uintptr
}

// i2cRdwr mirrors struct i2c_rdwr_ioctl_data from linux/i2c-dev.h
type i2cRdwr struct {
	msgs  uintptr
	nmsgs uint32
}

// Amp is the real HAL driver for the amp board DSP, communicating via
// Linux I2C ioctl using I2C_RDWR for all transactions. The topology comes
// from the on-disk file; the DSP only sees channel-level commands.
type Amp struct {
	mu      sync.Mutex
	fd      int // single shared fd for /dev/i2c-1
	limiter *rate.Limiter

	topo    *Topology
	outputs []*models.DeviceInfo
	gains   map[string]GainConfig

	duckLo, duckHi byte
	muteLo, muteHi byte
}

var _ AudioControl = (*Amp)(nil)

// NewAmp creates the real amp driver for a topology.
func NewAmp(topo *Topology) *Amp {
	a := &Amp{
		fd:      -1,
		limiter: rate.NewLimiter(rate.Limit(maxOpsPerSec), 10),
	}
	a.setTopology(topo)
	return a
}

func (a *Amp) setTopology(topo *Topology) {
	a.topo = topo
	a.outputs = OutputDevicesFromTopology(topo)
	a.gains = make(map[string]GainConfig, len(a.outputs))
	for _, d := range a.outputs {
		a.gains[d.Address] = GainConfig{Min: d.MinGain, Max: d.MaxGain, Default: d.DefaultGain, Step: d.StepSize}
	}
}

// UpdateTopology swaps in a reloaded topology file.
func (a *Amp) UpdateTopology(topo *Topology) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setTopology(topo)
}

func (a *Amp) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Hard-reset the DSP so it comes up in a known state before the
	// address handshake.
	if err := resetDSP(false); err != nil {
		slog.Warn("hal: DSP reset failed, continuing", "err", err)
	}

	// Assign the I2C address via UART. The DSP firmware starts with no
	// I2C address and waits for this three-byte sequence.
	if err := a.assignAddress(); err != nil {
		slog.Warn("hal: UART address assignment failed (DSP may already be addressed)", "err", err)
	}
	time.Sleep(100 * time.Millisecond)

	fd, err := unix.Open(i2cDevPath, unix.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("hal: open %s: %w", i2cDevPath, err)
	}

	// Probe: a live DSP identifies itself on RegDeviceID.
	id, err := readByteData(fd, devAddr, RegDeviceID)
	if err != nil || id != DeviceIDValue {
		unix.Close(fd)
		return fmt.Errorf("hal: no amp DSP at 0x%02x on %s (id=0x%02x, err=%v)", devAddr, i2cDevPath, id, err)
	}
	a.fd = fd
	slog.Info("hal: amp DSP detected", "addr", fmt.Sprintf("0x%02x", devAddr))

	// Known initial state: out of standby, nothing ducked or muted, all
	// channels at the attenuation floor until groups restore volumes.
	init := []struct {
		reg Register
		val byte
	}{
		{RegStandby, 0},
		{RegDuckLo, 0}, {RegDuckHi, 0},
		{RegMuteLo, 0}, {RegMuteHi, 0},
		{RegDuckAtten, 48},
	}
	for _, w := range init {
		if err := writeByteData(fd, devAddr, w.reg, w.val); err != nil {
			return fmt.Errorf("hal: init write reg 0x%02x: %w", w.reg, err)
		}
	}
	for ch := 0; ch < MaxChannels; ch++ {
		if err := writeByteData(fd, devAddr, ChAttenReg(ch), AttenMuteReg); err != nil {
			return fmt.Errorf("hal: init channel %d: %w", ch, err)
		}
	}
	a.duckLo, a.duckHi, a.muteLo, a.muteHi = 0, 0, 0, 0
	return nil
}

func (a *Amp) SupportsFeature(f Feature) bool {
	switch f {
	case FeatureAudioConfiguration, FeatureAudioDucking, FeatureGroupMuting:
		return true
	}
	return false
}

func (a *Amp) DeviceConfiguration() (AudioDeviceConfiguration, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.topo == nil {
		return AudioDeviceConfiguration{}, ErrHardware("hal: no topology loaded")
	}
	return a.topo.Configuration, nil
}

func (a *Amp) AudioZones() ([]*AudioZone, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.topo == nil {
		return nil, ErrHardware("hal: no topology loaded")
	}
	return a.topo.Zones, nil
}

func (a *Amp) MirrorDevices() ([]*AudioPort, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.topo == nil {
		return nil, nil
	}
	return a.topo.MirrorDevices, nil
}

// OutputDevices returns the fixed bus outputs of the loaded topology.
func (a *Amp) OutputDevices() []*models.DeviceInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.outputs)
}

func (a *Amp) DuckChange(ctx context.Context, infos []DuckingInfo) error {
	a.mu.Lock()
	ducked := UnpackChannelMask(a.duckLo, a.duckHi)
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
	lo, hi := PackChannelMask(ducked)
	a.duckLo, a.duckHi = lo, hi
	a.mu.Unlock()

	if err := a.write(ctx, RegDuckLo, lo); err != nil {
		return err
	}
	return a.write(ctx, RegDuckHi, hi)
}

func (a *Amp) MuteChange(ctx context.Context, infos []MutingInfo) error {
	a.mu.Lock()
	muted := UnpackChannelMask(a.muteLo, a.muteHi)
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
	lo, hi := PackChannelMask(muted)
	a.muteLo, a.muteHi = lo, hi
	a.mu.Unlock()

	if err := a.write(ctx, RegMuteLo, lo); err != nil {
		return err
	}
	return a.write(ctx, RegMuteHi, hi)
}

func (a *Amp) SetDeviceGain(ctx context.Context, zoneID int, address string, gainIndex int) error {
	ch, err := ParseBusAddress(address)
	if err != nil {
		// Non-bus devices have no DSP channel; their volume is applied
		// by the device itself.
		return nil
	}
	a.mu.Lock()
	g, ok := a.gains[address]
	a.mu.Unlock()
	if !ok {
		g = defaultGain
	}
	gain := g.Min + gainIndex*g.Step
	return a.write(ctx, ChAttenReg(ch), AttenFromGain(gain, g.Max))
}

// WriteCPUTemp writes the host CPU temperature to the DSP so the fan
// control loop can use it.
func (a *Amp) WriteCPUTemp(ctx context.Context, tempC float32) error {
	return a.write(ctx, RegCPUTemp, TempToReg(tempC))
}

// ReadVersion reads the DSP firmware version.
func (a *Amp) ReadVersion(ctx context.Context) (Version, error) {
	maj, err := a.read(ctx, RegVersionMaj)
	if err != nil {
		return Version{}, err
	}
	min, err := a.read(ctx, RegVersionMin)
	if err != nil {
		return Version{}, err
	}
	h65, _ := a.read(ctx, RegGitHash65)
	h43, _ := a.read(ctx, RegGitHash43)
	h21, _ := a.read(ctx, RegGitHash21)
	h0d, _ := a.read(ctx, RegGitHash0D)
	return Version{
		Major:   int(maj),
		Minor:   int(min),
		GitHash: [4]byte{h65, h43, h21, h0d},
	}, nil
}

// ReadReg reads a raw DSP register.
func (a *Amp) ReadReg(ctx context.Context, reg Register) (byte, error) {
	return a.read(ctx, reg)
}

// WriteReg writes a raw DSP register.
func (a *Amp) WriteReg(ctx context.Context, reg Register, val byte) error {
	return a.write(ctx, reg, val)
}

func (a *Amp) IsReal() bool { return true }

// Close releases the I2C file descriptor.
func (a *Amp) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fd >= 0 {
		unix.Close(a.fd)
		a.fd = -1
	}
}

func (a *Amp) write(ctx context.Context, reg Register, val byte) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fd < 0 {
		return fmt.Errorf("hal: driver not initialized")
	}
	return writeByteData(a.fd, devAddr, reg, val)
}

func (a *Amp) read(ctx context.Context, reg Register) (byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fd < 0 {
		return 0, fmt.Errorf("hal: driver not initialized")
	}
	return readByteData(a.fd, devAddr, reg)
}

// readByteData performs a combined write+read with REPEATED START (SMBus
// read_byte_data), which is what the DSP firmware expects:
// START→addr|W→reg→RS→addr|R→data→NACK→STOP
func readByteData(fd int, addr uint16, reg Register) (byte, error) {
	wbuf := [1]byte{reg}
	rbuf := [1]byte{}

	msgs := [2]i2cMsg{
		{addr: addr, flags: 0, length: 1, buf: uintptr(unsafe.Pointer(&wbuf[0]))},
		{addr: addr, flags: i2cMsgRD, length: 1, buf: uintptr(unsafe.Pointer(&rbuf[0]))},
	}
	rdwr := i2cRdwr{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: 2}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), i2cRdwrIOCTL, uintptr(unsafe.Pointer(&rdwr))); errno != 0 {
		return 0, fmt.Errorf("hal: I2C_RDWR read: %w", errno)
	}
	return rbuf[0], nil
}

// writeByteData performs a combined write of [reg, val] using I2C_RDWR.
func writeByteData(fd int, addr uint16, reg Register, val byte) error {
	wbuf := [2]byte{reg, val}
	msgs := [1]i2cMsg{
		{addr: addr, flags: 0, length: 2, buf: uintptr(unsafe.Pointer(&wbuf[0]))},
	}
	rdwr := i2cRdwr{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: 1}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), i2cRdwrIOCTL, uintptr(unsafe.Pointer(&rdwr))); errno != 0 {
		return fmt.Errorf("hal: I2C_RDWR write 0x%02x reg=0x%02x: %w", addr, reg, errno)
	}
	return nil
}

const uartDev = "/dev/serial0"

// assignAddress sends the I2C address assignment to the DSP via UART. The
// firmware starts with i2c_addr=0 (slave not initialised) and blocks until
// it receives this three-byte sequence.
func (a *Amp) assignAddress() error {
	port, err := serial.Open(uartDev, &serial.Mode{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", uartDev, err)
	}
	defer port.Close()

	// {0x41='A', address<<1, 0x0A='\n'}
	_, err = port.Write([]byte{0x41, byte(devAddr << 1), 0x0A})
	if err != nil {
		return fmt.Errorf("write UART: %w", err)
	}
	slog.Debug("hal: sent address assignment via UART", "addr", fmt.Sprintf("0x%02x", devAddr), "device", uartDev)
	return nil
}
