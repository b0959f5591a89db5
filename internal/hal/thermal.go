package hal

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const cpuTempPath = "/sys/class/thermal/thermal_zone0/temp"

// readCPUTemp reads the host CPU temperature from the thermal zone file.
// Returns temperature in Celsius.
func readCPUTemp() (float32, error) {
	data, err := os.ReadFile(cpuTempPath)
	if err != nil {
		return 0, fmt.Errorf("thermal: read %s: %w", cpuTempPath, err)
	}
	millideg, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("thermal: parse: %w", err)
	}
	return float32(millideg) / 1000.0, nil
}

// TempWriter pushes a host temperature reading into the DSP's thermal
// model. Both the real amp and the mock implement it.
type TempWriter interface {
	WriteCPUTemp(ctx context.Context, tempC float32) error
}

// RunThermalReporter periodically feeds the host CPU temperature to the
// DSP so its fan control can account for the whole enclosure. Runs until
// the context is cancelled.
func RunThermalReporter(ctx context.Context, w TempWriter) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tempC, err := readCPUTemp()
			if err != nil {
				// Not fatal: thermal zone file may not exist off-target.
				continue
			}
			_ = w.WriteCPUTemp(ctx, tempC)
		}
	}
}

// Temps holds the amp board temperature readings.
type Temps struct {
	AmpC float32 // output stage heatsink, °C
	PSUC float32 // power supply, °C
	CPUC float32 // last host CPU temp written, °C
}

// ReadTemps reads the amp board temperatures through the register file.
// ok is false when the HAL has no register file to read.
func ReadTemps(ctx context.Context, control AudioControl) (Temps, bool, error) {
	io, ok := control.(regIO)
	if !ok {
		return Temps{}, false, nil
	}
	amp, err := io.ReadReg(ctx, RegAmpTemp)
	if err != nil {
		return Temps{}, true, err
	}
	psu, err := io.ReadReg(ctx, RegPSUTemp)
	if err != nil {
		return Temps{}, true, err
	}
	cpu, err := io.ReadReg(ctx, RegCPUTemp)
	if err != nil {
		return Temps{}, true, err
	}
	return Temps{
		AmpC: TempFromReg(amp),
		PSUC: TempFromReg(psu),
		CPUC: TempFromReg(cpu),
	}, true, nil
}
