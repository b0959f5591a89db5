//go:build linux

package hal

import (
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

const (
	// GPIO pins for DSP control (BCM numbering). The carrier board wires
	// the DSP's reset and boot-select lines to these pins.
	pinNRST  = "GPIO4" // Active-low reset signal
	pinBOOT0 = "GPIO5" // Bootloader mode selection (0=firmware, 1=bootloader)
)

// resetDSP performs the hardware reset sequence for the amp board DSP.
// This must be called before any I2C communication attempts.
//
// Reset sequence:
//  1. Initialize GPIO host driver
//  2. Set NRST low to assert reset
//  3. Set BOOT0 to determine boot mode
//  4. Hold reset for 1ms (hardware requires >300ns)
//  5. Release NRST to exit reset
//  6. Wait 10ms for the DSP to complete startup
//
// bootloader: if true, the DSP enters its bootloader for firmware updates;
// if false it boots normally from flash.
func resetDSP(bootloader bool) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("gpio: host init failed: %w", err)
	}

	nrstPin := gpioreg.ByName(pinNRST)
	if nrstPin == nil {
		return fmt.Errorf("gpio: failed to open %s (NRST)", pinNRST)
	}
	boot0Pin := gpioreg.ByName(pinBOOT0)
	if boot0Pin == nil {
		return fmt.Errorf("gpio: failed to open %s (BOOT0)", pinBOOT0)
	}

	if err := nrstPin.Out(gpio.Low); err != nil {
		return fmt.Errorf("gpio: failed to assert NRST: %w", err)
	}

	// The DSP samples BOOT0 when reset releases: low boots flash, high
	// boots the bootloader ROM.
	boot0Level := gpio.Low
	if bootloader {
		boot0Level = gpio.High
	}
	if err := boot0Pin.Out(boot0Level); err != nil {
		return fmt.Errorf("gpio: failed to set BOOT0: %w", err)
	}

	time.Sleep(1 * time.Millisecond)

	if err := nrstPin.Out(gpio.High); err != nil {
		return fmt.Errorf("gpio: failed to release NRST: %w", err)
	}

	// Firmware init (pins, clocks, I2C slave, UART) takes a few ms.
	time.Sleep(10 * time.Millisecond)

	slog.Debug("gpio: DSP reset complete",
		"nrst_pin", pinNRST,
		"boot0_pin", pinBOOT0,
		"bootloader", bootloader)

	return nil
}
