package hal

import "context"

// AudioControl is the control surface of the car audio HAL. It reports the
// device topology at load time and accepts ducking, muting, and gain
// commands at runtime. Implementations are safe for concurrent use.
type AudioControl interface {
	// Init brings up the hardware. Must be called before any other method.
	Init(ctx context.Context) error

	// SupportsFeature reports whether the HAL implements a capability.
	SupportsFeature(f Feature) bool

	// DeviceConfiguration returns the HAL's global audio strategy.
	DeviceConfiguration() (AudioDeviceConfiguration, error)

	// AudioZones returns the declared zone topology. Callers treat the
	// returned structures as read-only.
	AudioZones() ([]*AudioZone, error)

	// MirrorDevices returns the ports reserved for zone-to-zone mirroring.
	MirrorDevices() ([]*AudioPort, error)

	// DuckChange applies ducking decisions, one entry per zone.
	DuckChange(ctx context.Context, infos []DuckingInfo) error

	// MuteChange applies mute changes, one entry per zone.
	MuteChange(ctx context.Context, infos []MutingInfo) error

	// SetDeviceGain sets the gain of one routed device, as an index into
	// the device's gain range.
	SetDeviceGain(ctx context.Context, zoneID int, address string, gainIndex int) error

	// IsReal returns true for a real hardware driver, false for a mock.
	IsReal() bool
}
