package audio

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Usage identifies what a stream of audio is being played for. The codes
// mirror the automotive HAL usage space: ordinary usages are small ints,
// system usages start at SystemUsageBase.
type Usage int

const (
	UsageUnknown                      Usage = 0
	UsageMedia                        Usage = 1
	UsageVoiceCommunication           Usage = 2
	UsageVoiceCommunicationSignalling Usage = 3
	UsageAlarm                        Usage = 4
	UsageNotification                 Usage = 5
	UsageNotificationRingtone         Usage = 6
	UsageNotificationEvent            Usage = 10
	UsageAssistanceAccessibility      Usage = 11
	UsageAssistanceNavigationGuidance Usage = 12
	UsageAssistanceSonification       Usage = 13
	UsageGame                         Usage = 14
	UsageVirtualSource                Usage = 15
	UsageAssistant                    Usage = 16
	UsageCallAssistant                Usage = 17

	// SystemUsageBase is the first system usage code. System usages are
	// reserved for the platform itself and never granted to ordinary apps.
	SystemUsageBase Usage = 1000

	UsageEmergency     Usage = 1000
	UsageSafety        Usage = 1001
	UsageVehicleStatus Usage = 1002
	UsageAnnouncement  Usage = 1003
)

// IsSystemUsage reports whether u is in the platform-reserved usage range.
func IsSystemUsage(u Usage) bool {
	return u >= SystemUsageBase
}

var usageNames = map[Usage]string{
	UsageUnknown:                      "UNKNOWN",
	UsageMedia:                        "MEDIA",
	UsageVoiceCommunication:           "VOICE_COMMUNICATION",
	UsageVoiceCommunicationSignalling: "VOICE_COMMUNICATION_SIGNALLING",
	UsageAlarm:                        "ALARM",
	UsageNotification:                 "NOTIFICATION",
	UsageNotificationRingtone:         "NOTIFICATION_RINGTONE",
	UsageNotificationEvent:            "NOTIFICATION_EVENT",
	UsageAssistanceAccessibility:      "ASSISTANCE_ACCESSIBILITY",
	UsageAssistanceNavigationGuidance: "ASSISTANCE_NAVIGATION_GUIDANCE",
	UsageAssistanceSonification:       "ASSISTANCE_SONIFICATION",
	UsageGame:                         "GAME",
	UsageVirtualSource:                "VIRTUAL_SOURCE",
	UsageAssistant:                    "ASSISTANT",
	UsageCallAssistant:                "CALL_ASSISTANT",
	UsageEmergency:                    "EMERGENCY",
	UsageSafety:                       "SAFETY",
	UsageVehicleStatus:                "VEHICLE_STATUS",
	UsageAnnouncement:                 "ANNOUNCEMENT",
}

var usagesByName = func() map[string]Usage {
	m := make(map[string]Usage, len(usageNames))
	for u, name := range usageNames {
		m[name] = u
	}
	return m
}()

// knownUsage reports whether u is one of the defined usage codes.
// VirtualSource is deliberately excluded: it marks platform-internal
// injection points, not real playback, and never routes anywhere.
func knownUsage(u Usage) bool {
	if u == UsageVirtualSource {
		return false
	}
	_, ok := usageNames[u]
	return ok
}

func (u Usage) String() string {
	if name, ok := usageNames[u]; ok {
		return name
	}
	return fmt.Sprintf("USAGE_%d", int(u))
}

// UsageFromName resolves a canonical usage name such as "MEDIA". The second
// return is false for names that are not part of the usage vocabulary.
func UsageFromName(name string) (Usage, bool) {
	u, ok := usagesByName[name]
	return u, ok
}

// MarshalJSON emits the canonical name so that topology files and API
// payloads stay readable. Unrecognized codes fall back to the raw number.
func (u Usage) MarshalJSON() ([]byte, error) {
	if name, ok := usageNames[u]; ok {
		return json.Marshal(name)
	}
	return json.Marshal(int(u))
}

// UnmarshalJSON accepts either a usage name or a raw usage code.
func (u *Usage) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		if v, ok := usagesByName[name]; ok {
			*u = v
			return nil
		}
		// Allow numeric strings for hand-edited files.
		if n, err := strconv.Atoi(name); err == nil {
			*u = Usage(n)
			return nil
		}
		return fmt.Errorf("audio: unknown usage %q", name)
	}
	var code int
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("audio: usage must be a name or code: %w", err)
	}
	*u = Usage(code)
	return nil
}
