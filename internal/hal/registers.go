package hal

import (
	"fmt"
	"strings"
)

// Register is an I2C register address.
type Register = byte

// Register addresses matching the amp DSP firmware's command register map.
const (
	RegDeviceID  Register = 0x00 // Reads DeviceIDValue on a live DSP
	RegStandby   Register = 0x01 // 1 = outputs in standby
	RegMuteLo    Register = 0x02 // Channel mute bits 0-7 (1=muted)
	RegMuteHi    Register = 0x03 // Channel mute bits 8-15
	RegDuckLo    Register = 0x04 // Channel duck bits 0-7 (1=ducked)
	RegDuckHi    Register = 0x05 // Channel duck bits 8-15
	RegDuckAtten Register = 0x06 // Attenuation applied to ducked channels, half-dB steps
	RegFanDuty   Register = 0x07 // Fan PWM duty UQ1.7 [0.0, 1.0]
	RegCPUTemp   Register = 0x08 // Host CPU temp, UQ7.1+20°C (written by software)
	RegAmpTemp   Register = 0x09 // Output stage heatsink temp
	RegPSUTemp   Register = 0x0A // Power supply temp
	RegRailVolts Register = 0x0B // Supply rail voltage UQ6.2 (0.25V resolution)

	// Per-channel attenuation, half-dB steps: 0 = 0dB, AttenMuteReg = floor.
	RegChAttenBase Register = 0x20 // 0x20-0x2F, one per channel
	RegChAttenEnd  Register = 0x2F

	RegEEPROMReq     Register = 0x30 // EEPROM control: [7:4]=page, [3:1]=addr, [0]=request, DSP clears when serviced
	RegEEPROMData    Register = 0x31 // EEPROM data window (0x31-0x40, 16 bytes)
	RegEEPROMDataEnd Register = 0x40

	RegVersionMaj Register = 0xFA
	RegVersionMin Register = 0xFB
	RegGitHash65  Register = 0xFC
	RegGitHash43  Register = 0xFD
	RegGitHash21  Register = 0xFE
	RegGitHash0D  Register = 0xFF
)

// DeviceIDValue is what RegDeviceID reads back on a responsive DSP.
const DeviceIDValue byte = 0xCA

// MaxChannels is the number of output channels the DSP drives.
const MaxChannels = 16

// AttenMuteReg is the attenuation register value for a silenced channel
// (-80dB in half-dB steps).
const AttenMuteReg byte = 160

// Version holds DSP firmware version information.
type Version struct {
	Major   int
	Minor   int
	GitHash [4]byte
}

// ChAttenReg returns the attenuation register for a channel.
func ChAttenReg(channel int) Register {
	if channel < 0 || channel >= MaxChannels {
		return RegChAttenBase
	}
	return Register(RegChAttenBase + byte(channel))
}

// AttenFromGain converts a device gain in millibels to the attenuation
// register encoding. maxGain is the gain at full volume; lower gains are
// attenuation below it, clamped to the mute floor.
func AttenFromGain(gainMB, maxGainMB int) byte {
	atten := (maxGainMB - gainMB) / 50 // half-dB steps
	if atten < 0 {
		atten = 0
	}
	if atten > int(AttenMuteReg) {
		atten = int(AttenMuteReg)
	}
	return byte(atten)
}

// GainFromAtten is the inverse of AttenFromGain.
func GainFromAtten(reg byte, maxGainMB int) int {
	if reg > AttenMuteReg {
		reg = AttenMuteReg
	}
	return maxGainMB - int(reg)*50
}

// PackChannelMask packs channel indices into the lo/hi mask register pair.
// Out-of-range channels are ignored.
func PackChannelMask(channels []int) (lo, hi byte) {
	for _, ch := range channels {
		switch {
		case ch >= 0 && ch < 8:
			lo |= 1 << uint(ch)
		case ch >= 8 && ch < MaxChannels:
			hi |= 1 << uint(ch-8)
		}
	}
	return lo, hi
}

// UnpackChannelMask expands a lo/hi mask register pair to channel indices.
func UnpackChannelMask(lo, hi byte) []int {
	var channels []int
	for ch := 0; ch < 8; ch++ {
		if lo&(1<<uint(ch)) != 0 {
			channels = append(channels, ch)
		}
	}
	for ch := 0; ch < 8; ch++ {
		if hi&(1<<uint(ch)) != 0 {
			channels = append(channels, ch+8)
		}
	}
	return channels
}

// TempFromReg decodes a temperature register value (UQ7.1 + 20°C format).
// Special: 0x00 = disconnected (returns -999), 0xFF = shorted (returns 999).
func TempFromReg(reg byte) float32 {
	if reg == 0x00 {
		return -999
	}
	if reg == 0xFF {
		return 999
	}
	return float32(reg)/2.0 + 20.0
}

// TempToReg encodes a temperature in Celsius to the UQ7.1+20 register format.
func TempToReg(tempC float32) byte {
	v := (tempC - 20.0) * 2.0
	if v < 0 {
		return 0
	}
	if v > 254 {
		return 254
	}
	return byte(v)
}

// VoltageFromReg decodes a voltage register value (UQ6.2 format).
func VoltageFromReg(reg byte) float32 {
	return float32(reg) / 4.0
}

// ParseBusAddress extracts the DSP channel from a bus device address of the
// form "bus<channel>_<label>", e.g. "bus0_media_out".
func ParseBusAddress(addr string) (int, error) {
	rest, ok := strings.CutPrefix(addr, "bus")
	if !ok {
		return 0, fmt.Errorf("hal: address %q is not a bus address", addr)
	}
	digits, _, _ := strings.Cut(rest, "_")
	if digits == "" {
		return 0, fmt.Errorf("hal: address %q has no channel number", addr)
	}
	ch := 0
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("hal: address %q has a malformed channel", addr)
		}
		ch = ch*10 + int(r-'0')
	}
	if ch >= MaxChannels {
		return 0, fmt.Errorf("hal: address %q channel %d out of range", addr, ch)
	}
	return ch, nil
}

// HardwareError is returned when a hardware operation fails.
type HardwareError struct {
	msg string
}

func (e HardwareError) Error() string { return e.msg }

// ErrHardware creates a new hardware error.
func ErrHardware(msg string) error { return HardwareError{msg: msg} }
