package ducking

import (
	"errors"
	"fmt"
	"slices"

	"github.com/opencabin/caraudio-go/internal/audio"
	"github.com/opencabin/caraudio-go/internal/models"
)

// Engine computes per-zone ducking decisions from the streams holding audio
// focus. It is immutable after construction and safe for concurrent use.
type Engine struct {
	reg   *audio.Registry
	table map[audio.ContextID][]audio.ContextID
}

// NewEngine builds an engine over a context registry. A nil table selects
// DefaultTable. Table keys and targets must name registry contexts, no
// context may duck itself, and the duck relation must be acyclic. A context
// missing from the table ducks nothing.
func NewEngine(reg *audio.Registry, table map[audio.ContextID][]audio.ContextID) (*Engine, error) {
	if reg == nil {
		return nil, errors.New("ducking: context registry required")
	}
	if table == nil {
		table = DefaultTable()
	}
	for from, targets := range table {
		if !reg.Contains(from) {
			return nil, fmt.Errorf("ducking: table context %d not in registry", from)
		}
		for _, to := range targets {
			if to == from {
				return nil, fmt.Errorf("ducking: context %d ducks itself", from)
			}
			if !reg.Contains(to) {
				return nil, fmt.Errorf("ducking: context %d ducks unknown context %d", from, to)
			}
		}
	}
	if c := findCycle(table); c != audio.ContextInvalid {
		return nil, fmt.Errorf("ducking: duck relation cycles through context %d", c)
	}
	copied := make(map[audio.ContextID][]audio.ContextID, len(table))
	for from, targets := range table {
		copied[from] = slices.Clone(targets)
	}
	return &Engine{reg: reg, table: copied}, nil
}

// findCycle walks the duck relation from every context and reports one
// context on a cycle, or ContextInvalid when the relation is acyclic.
func findCycle(table map[audio.ContextID][]audio.ContextID) audio.ContextID {
	for start := range table {
		queue := slices.Clone(table[start])
		seen := make(map[audio.ContextID]bool)
		for len(queue) > 0 {
			c := queue[0]
			queue = queue[1:]
			if c == start {
				return start
			}
			if seen[c] {
				continue
			}
			seen[c] = true
			queue = append(queue, table[c]...)
		}
	}
	return audio.ContextInvalid
}

// AttributesHoldingFocus returns the distinct attributes among the focus
// holders, first occurrence order preserved.
func AttributesHoldingFocus(holders []audio.Attributes) []audio.Attributes {
	out := make([]audio.Attributes, 0, len(holders))
	for _, h := range holders {
		if !slices.ContainsFunc(out, h.Equal) {
			out = append(out, h)
		}
	}
	return out
}

// AddressesToDuck returns the output device addresses to attenuate for the
// given focus holders in a zone. A holder's context is ducked when another
// holding context lists it in the table; an address that also serves an
// unducked holder is left alone. Attributes resolving to no context are
// skipped.
func (e *Engine) AddressesToDuck(attrs []audio.Attributes, zone *models.Zone) []string {
	if zone == nil {
		return []string{}
	}
	holding := make([]audio.ContextID, 0, len(attrs))
	for _, a := range attrs {
		id := e.reg.ContextForAttributes(a)
		if id == audio.ContextInvalid {
			continue
		}
		if !slices.Contains(holding, id) {
			holding = append(holding, id)
		}
	}

	ducked := make([]audio.ContextID, 0, len(holding))
	for _, c := range holding {
		for _, holder := range holding {
			if holder != c && slices.Contains(e.table[holder], c) {
				ducked = append(ducked, c)
				break
			}
		}
	}

	keep := make(map[string]bool)
	for _, c := range holding {
		if slices.Contains(ducked, c) {
			continue
		}
		if addr := zone.AddressForContext(c); addr != "" {
			keep[addr] = true
		}
	}

	out := make([]string, 0, len(ducked))
	for _, c := range ducked {
		addr := zone.AddressForContext(c)
		if addr == "" || keep[addr] || slices.Contains(out, addr) {
			continue
		}
		out = append(out, addr)
	}
	return out
}

// AddressesToUnduck returns the previously ducked addresses absent from the
// new decision, in their previous order.
func AddressesToUnduck(newDuck, oldDuck []string) []string {
	out := make([]string, 0, len(oldDuck))
	for _, addr := range oldDuck {
		if !slices.Contains(newDuck, addr) {
			out = append(out, addr)
		}
	}
	return out
}

// Generate produces the next ducking decision for a zone from the streams
// holding focus, diffing against the previous decision for the unduck list.
// A nil previous decision means nothing is ducked yet.
func (e *Engine) Generate(prev *models.DuckingInfo, holders []audio.Attributes, zone *models.Zone) *models.DuckingInfo {
	attrs := AttributesHoldingFocus(holders)
	duck := e.AddressesToDuck(attrs, zone)
	var oldDuck []string
	if prev != nil {
		oldDuck = prev.AddressesToDuck
	}
	var zoneID int
	if zone != nil {
		zoneID = zone.ID
	}
	return &models.DuckingInfo{
		ZoneID:            zoneID,
		AddressesToDuck:   duck,
		AddressesToUnduck: AddressesToUnduck(duck, oldDuck),
		PlaybackMetadata:  attrs,
	}
}
