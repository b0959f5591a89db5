// Package ducking decides which output devices to attenuate while several
// streams hold audio focus at once, and forwards those decisions to the
// audio control HAL.
package ducking

import "github.com/opencabin/caraudio-go/internal/audio"

// DefaultTable returns the standard interaction matrix: for each context,
// the contexts it attenuates while both hold focus. Safety ducks every
// context except emergency. Callers get a fresh map with fresh slices on
// every call.
func DefaultTable() map[audio.ContextID][]audio.ContextID {
	return map[audio.ContextID][]audio.ContextID{
		audio.ContextMusic: {},
		audio.ContextNavigation: {
			audio.ContextMusic, audio.ContextCallRing, audio.ContextNotification,
			audio.ContextSystemSound, audio.ContextVehicleStatus, audio.ContextAnnouncement,
		},
		audio.ContextVoiceCommand: {audio.ContextCallRing},
		audio.ContextCallRing:     {},
		audio.ContextCall: {
			audio.ContextCallRing, audio.ContextNotification, audio.ContextSystemSound,
			audio.ContextVehicleStatus, audio.ContextAnnouncement,
		},
		audio.ContextAlarm:        {audio.ContextMusic},
		audio.ContextNotification: {},
		audio.ContextSystemSound:  {},
		audio.ContextEmergency:    {audio.ContextCall},
		audio.ContextSafety: {
			audio.ContextMusic, audio.ContextNavigation, audio.ContextVoiceCommand,
			audio.ContextCallRing, audio.ContextCall, audio.ContextAlarm,
			audio.ContextNotification, audio.ContextSystemSound,
			audio.ContextVehicleStatus, audio.ContextAnnouncement,
		},
		audio.ContextVehicleStatus: {},
		audio.ContextAnnouncement:  {},
	}
}
