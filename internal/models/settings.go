package models

// SettingsVersion is bumped whenever the persisted layout changes.
const SettingsVersion = 1

// Settings is the state persisted across restarts: per-zone selected
// configuration and per-group volume and mute.
type Settings struct {
	Version int            `json:"version"`
	Zones   []ZoneSettings `json:"zones"`
}

// ZoneSettings remembers one zone's selection and volumes.
type ZoneSettings struct {
	ZoneID         int             `json:"zone_id"`
	SelectedConfig string          `json:"selected_config,omitempty"`
	Groups         []GroupSettings `json:"groups"`
}

// GroupSettings remembers one volume group's state.
type GroupSettings struct {
	GroupID   int  `json:"group_id"`
	GainIndex int  `json:"gain_index"`
	Muted     bool `json:"muted"`
}

// DefaultSettings is what a fresh install starts with.
func DefaultSettings() Settings {
	return Settings{Version: SettingsVersion, Zones: []ZoneSettings{}}
}

// DeepCopy returns a deep copy of the settings.
func (s Settings) DeepCopy() Settings {
	next := Settings{Version: s.Version}
	next.Zones = make([]ZoneSettings, len(s.Zones))
	for i, z := range s.Zones {
		nz := z
		nz.Groups = make([]GroupSettings, len(z.Groups))
		copy(nz.Groups, z.Groups)
		next.Zones[i] = nz
	}
	return next
}

// Zone returns the settings entry for a zone, or nil.
func (s *Settings) Zone(id int) *ZoneSettings {
	for i := range s.Zones {
		if s.Zones[i].ZoneID == id {
			return &s.Zones[i]
		}
	}
	return nil
}

// EnsureZone returns the settings entry for a zone, creating it if needed.
func (s *Settings) EnsureZone(id int) *ZoneSettings {
	if z := s.Zone(id); z != nil {
		return z
	}
	s.Zones = append(s.Zones, ZoneSettings{ZoneID: id, Groups: []GroupSettings{}})
	return &s.Zones[len(s.Zones)-1]
}

// Group returns the settings entry for a group, or nil.
func (z *ZoneSettings) Group(id int) *GroupSettings {
	for i := range z.Groups {
		if z.Groups[i].GroupID == id {
			return &z.Groups[i]
		}
	}
	return nil
}

// EnsureGroup returns the settings entry for a group, creating it if needed.
func (z *ZoneSettings) EnsureGroup(id int) *GroupSettings {
	if g := z.Group(id); g != nil {
		return g
	}
	z.Groups = append(z.Groups, GroupSettings{GroupID: id})
	return &z.Groups[len(z.Groups)-1]
}
