// Package audio defines the usage and attribute vocabulary shared by every
// layer of the daemon, and the context registry that groups attributes into
// routeable car audio contexts.
package audio

import (
	"fmt"
	"slices"
)

// ContextID identifies one car audio context. Zero is reserved for the
// invalid context; the standard contexts use 1..12, HAL-defined registries
// may use any positive ids.
type ContextID int

const (
	ContextInvalid       ContextID = 0
	ContextMusic         ContextID = 1
	ContextNavigation    ContextID = 2
	ContextVoiceCommand  ContextID = 3
	ContextCallRing      ContextID = 4
	ContextCall          ContextID = 5
	ContextAlarm         ContextID = 6
	ContextNotification  ContextID = 7
	ContextSystemSound   ContextID = 8
	ContextEmergency     ContextID = 9
	ContextSafety        ContextID = 10
	ContextVehicleStatus ContextID = 11
	ContextAnnouncement  ContextID = 12
)

// ContextInfo names one context and lists the attributes it captures.
type ContextInfo struct {
	Name       string       `json:"name"`
	ID         ContextID    `json:"id"`
	Attributes []Attributes `json:"attributes"`
}

// Registry maps stream attributes to contexts. It is immutable after
// construction and safe for concurrent readers.
type Registry struct {
	infos       []ContextInfo
	byID        map[ContextID]int
	nameToID    map[string]ContextID
	defaultID   ContextID
	coreRouting bool
}

// NewRegistry validates and indexes a context list. Every context needs a
// unique positive id, a unique non-empty name, and at least one attribute.
func NewRegistry(infos []ContextInfo, coreRouting bool) (*Registry, error) {
	if len(infos) == 0 {
		return nil, fmt.Errorf("audio: registry needs at least one context")
	}
	r := &Registry{
		infos:       make([]ContextInfo, 0, len(infos)),
		byID:        make(map[ContextID]int, len(infos)),
		nameToID:    make(map[string]ContextID, len(infos)),
		coreRouting: coreRouting,
	}
	for _, info := range infos {
		if info.Name == "" {
			return nil, fmt.Errorf("audio: context %d has no name", info.ID)
		}
		if info.ID <= ContextInvalid {
			return nil, fmt.Errorf("audio: context %q has invalid id %d", info.Name, info.ID)
		}
		if len(info.Attributes) == 0 {
			return nil, fmt.Errorf("audio: context %q has no attributes", info.Name)
		}
		if _, dup := r.byID[info.ID]; dup {
			return nil, fmt.Errorf("audio: duplicate context id %d", info.ID)
		}
		if _, dup := r.nameToID[info.Name]; dup {
			return nil, fmt.Errorf("audio: duplicate context name %q", info.Name)
		}
		info.Attributes = slices.Clone(info.Attributes)
		r.byID[info.ID] = len(r.infos)
		r.nameToID[info.Name] = info.ID
		r.infos = append(r.infos, info)
	}
	r.defaultID = r.infos[0].ID
	for _, info := range r.infos {
		if slices.ContainsFunc(info.Attributes, func(a Attributes) bool { return a.Usage == UsageUnknown }) {
			r.defaultID = info.ID
			break
		}
	}
	return r, nil
}

// standardContexts is the fixed context table used when the HAL does not
// supply its own. Lookup order matters: contexts are matched top to bottom.
var standardContexts = []ContextInfo{
	{Name: "MUSIC", ID: ContextMusic, Attributes: usageList(UsageUnknown, UsageGame, UsageMedia)},
	{Name: "NAVIGATION", ID: ContextNavigation, Attributes: usageList(UsageAssistanceNavigationGuidance)},
	{Name: "VOICE_COMMAND", ID: ContextVoiceCommand, Attributes: usageList(UsageAssistanceAccessibility, UsageAssistant)},
	{Name: "CALL_RING", ID: ContextCallRing, Attributes: usageList(UsageNotificationRingtone)},
	{Name: "CALL", ID: ContextCall, Attributes: usageList(UsageVoiceCommunication, UsageCallAssistant, UsageVoiceCommunicationSignalling)},
	{Name: "ALARM", ID: ContextAlarm, Attributes: usageList(UsageAlarm)},
	{Name: "NOTIFICATION", ID: ContextNotification, Attributes: usageList(UsageNotification, UsageNotificationEvent)},
	{Name: "SYSTEM_SOUND", ID: ContextSystemSound, Attributes: usageList(UsageAssistanceSonification)},
	{Name: "EMERGENCY", ID: ContextEmergency, Attributes: usageList(UsageEmergency)},
	{Name: "SAFETY", ID: ContextSafety, Attributes: usageList(UsageSafety)},
	{Name: "VEHICLE_STATUS", ID: ContextVehicleStatus, Attributes: usageList(UsageVehicleStatus)},
	{Name: "ANNOUNCEMENT", ID: ContextAnnouncement, Attributes: usageList(UsageAnnouncement)},
}

func usageList(usages ...Usage) []Attributes {
	attrs := make([]Attributes, len(usages))
	for i, u := range usages {
		attrs[i] = UsageAttributes(u)
	}
	return attrs
}

// StandardRegistry returns the fixed registry covering every defined usage.
// Construction cannot fail; the table is validated by tests.
func StandardRegistry() *Registry {
	r, err := NewRegistry(standardContexts, false)
	if err != nil {
		panic(err)
	}
	return r
}

// ContextForAttributes resolves attributes to a context id. A full attribute
// match wins, then a usage-only match. Attributes that match nothing resolve
// to the default context when their usage is an ordinary known usage, and to
// ContextInvalid for system usages and unrecognized codes.
func (r *Registry) ContextForAttributes(attr Attributes) ContextID {
	for _, info := range r.infos {
		for _, a := range info.Attributes {
			if a.Equal(attr) {
				return info.ID
			}
		}
	}
	if id := r.usageMatch(attr.Usage); id != ContextInvalid {
		return id
	}
	return r.fallback(attr.Usage)
}

// ContextForUsage resolves a bare usage, with the same fallback rules as
// ContextForAttributes.
func (r *Registry) ContextForUsage(u Usage) ContextID {
	if id := r.usageMatch(u); id != ContextInvalid {
		return id
	}
	return r.fallback(u)
}

func (r *Registry) usageMatch(u Usage) ContextID {
	for _, info := range r.infos {
		for _, a := range info.Attributes {
			if a.Usage == u {
				return info.ID
			}
		}
	}
	return ContextInvalid
}

func (r *Registry) fallback(u Usage) ContextID {
	if IsSystemUsage(u) || !knownUsage(u) {
		return ContextInvalid
	}
	return r.defaultID
}

// Info returns the context info for an id.
func (r *Registry) Info(id ContextID) (ContextInfo, bool) {
	i, ok := r.byID[id]
	if !ok {
		return ContextInfo{}, false
	}
	return r.infos[i], true
}

// Contains reports whether id names a context in this registry.
func (r *Registry) Contains(id ContextID) bool {
	_, ok := r.byID[id]
	return ok
}

// Contexts returns the registered contexts in registration order.
func (r *Registry) Contexts() []ContextInfo {
	return slices.Clone(r.infos)
}

// IDs returns every context id in registration order.
func (r *Registry) IDs() []ContextID {
	ids := make([]ContextID, len(r.infos))
	for i, info := range r.infos {
		ids[i] = info.ID
	}
	return ids
}

// NamesToIDs returns a fresh name-to-id map, safe for the caller to keep.
func (r *Registry) NamesToIDs() map[string]ContextID {
	m := make(map[string]ContextID, len(r.nameToID))
	for name, id := range r.nameToID {
		m[name] = id
	}
	return m
}

// DefaultContext is where unmatched ordinary usages land, the context
// carrying UsageUnknown when one exists.
func (r *Registry) DefaultContext() ContextID {
	return r.defaultID
}

// UsesCoreRouting reports whether this registry came from a HAL running
// configurable engine routing.
func (r *Registry) UsesCoreRouting() bool {
	return r.coreRouting
}
