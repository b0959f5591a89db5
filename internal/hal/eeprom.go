package hal

import (
	"context"
	"fmt"
	"time"
)

// BoardInfo identifies the amp board, read from its EEPROM.
type BoardInfo struct {
	Serial   uint32
	Model    BoardModel
	BoardRev string
}

// BoardModel identifies the amp hardware variant from EEPROM.
type BoardModel uint8

const (
	BoardModelUnknown BoardModel = 0x00
	BoardModelCA8     BoardModel = 0x01 // 8-channel cabin amp
	BoardModelCA16    BoardModel = 0x02 // 16-channel amp with rear zone outputs
)

func (m BoardModel) String() string {
	switch m {
	case BoardModelCA8:
		return "CA8"
	case BoardModelCA16:
		return "CA16"
	default:
		return "unknown"
	}
}

// regIO is the raw register access eeprom reads need. Both the real amp
// driver and the mock implement it.
type regIO interface {
	ReadReg(ctx context.Context, reg Register) (byte, error)
	WriteReg(ctx context.Context, reg Register, val byte) error
}

// ReadEEPROMPage reads one 16-byte page from the amp board's EEPROM via the
// DSP register relay.
//
// The EEPROM is not directly accessible from the host. Access is proxied
// through the DSP using the following protocol:
//
//  1. Write RegEEPROMReq with: bits[7:4]=page, bits[3:1]=i2cAddr, bit[0]=1 (read)
//  2. Poll RegEEPROMReq until the DSP clears bit[0] (transfer done), timeout 200ms
//  3. Read 16 bytes from the RegEEPROMData window
func ReadEEPROMPage(ctx context.Context, io regIO, page, i2cAddr int) ([16]byte, error) {
	ctrl := byte((page<<4)|(i2cAddr<<1)) | 1
	if err := io.WriteReg(ctx, RegEEPROMReq, ctrl); err != nil {
		return [16]byte{}, fmt.Errorf("EEPROM request write: %w", err)
	}

	// The DSP services the EEPROM read in its slow control loop, so the
	// data may take a few milliseconds to land in the window.
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		val, err := io.ReadReg(ctx, RegEEPROMReq)
		if err != nil {
			return [16]byte{}, fmt.Errorf("EEPROM poll: %w", err)
		}
		if val&0x01 == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	var data [16]byte
	for i := 0; i < 16; i++ {
		b, err := io.ReadReg(ctx, RegEEPROMData+Register(i))
		if err != nil {
			return [16]byte{}, fmt.Errorf("EEPROM data[%d]: %w", i, err)
		}
		data[i] = b
	}
	return data, nil
}

// ParseBoardInfo parses EEPROM page 0 bytes into a BoardInfo.
//
// EEPROM byte layout (big-endian):
//
//	Offset 0x00: format     (uint8)  must be 0x00
//	Offset 0x01: serial     (uint32) big-endian
//	Offset 0x05: model      (uint8)  BoardModel enum
//	Offset 0x06: board_type (uint8)  used by factory tools, ignored here
//	Offset 0x07: board_rev  (uint16) packed as (number << 8 | ord(letter))
func ParseBoardInfo(data [16]byte) (BoardInfo, error) {
	if data[0] != 0x00 {
		return BoardInfo{}, fmt.Errorf("unsupported EEPROM format: 0x%02x (expected 0x00)", data[0])
	}
	serial := uint32(data[1])<<24 | uint32(data[2])<<16 | uint32(data[3])<<8 | uint32(data[4])
	model := BoardModel(data[5])
	revNum := data[7]
	revLetter := data[8]
	rev := fmt.Sprintf("Rev%d.%c", revNum, revLetter)
	return BoardInfo{
		Serial:   serial,
		Model:    model,
		BoardRev: rev,
	}, nil
}

// ReadBoardInfo reads and parses the board identity page. Implementations
// without a register file (pure software HALs) return ok=false.
func ReadBoardInfo(ctx context.Context, control AudioControl) (BoardInfo, bool, error) {
	io, ok := control.(regIO)
	if !ok {
		return BoardInfo{}, false, nil
	}
	page, err := ReadEEPROMPage(ctx, io, 0, 0)
	if err != nil {
		return BoardInfo{}, true, err
	}
	info, err := ParseBoardInfo(page)
	if err != nil {
		return BoardInfo{}, true, err
	}
	return info, true, nil
}
