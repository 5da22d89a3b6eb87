package entity

import (
	"sort"
	"strings"
)

// ComponentSpec describes one ordered piece of a composite line identifier.
type ComponentSpec struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
	Order   int    `json:"order"`
	Pattern string `json:"pattern"`
	Example string `json:"example"`
}

// FormatProfile is the operator-defined identifier grammar: which components
// exist, their ranking, and the separator policy. Values are immutable once
// handed to the grammar engine; edits produce a new profile.
type FormatProfile struct {
	Name                    string          `json:"name"`
	Components              []ComponentSpec `json:"components"`
	Separator               string          `json:"separator"`
	AllowVariableSeparators bool            `json:"allow_variable_separators"`
	IncludeAreaComponent    bool            `json:"include_area_component"`
	// Preset is the preset name this profile was derived from, empty for a
	// fully custom profile. When set, IncludeAreaComponent is fixed by the
	// preset and not independently editable.
	Preset string `json:"preset,omitempty"`
}

// EnabledComponents returns the enabled components ranked by (order, id).
func (p FormatProfile) EnabledComponents() []ComponentSpec {
	out := make([]ComponentSpec, 0, len(p.Components))
	for _, c := range p.Components {
		if c.Enabled {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Template is the canonical identifier template: enabled component ids in
// rank order joined by the separator.
func (p FormatProfile) Template() string {
	enabled := p.EnabledComponents()
	ids := make([]string, len(enabled))
	for i, c := range enabled {
		ids[i] = c.ID
	}
	return strings.Join(ids, p.Separator)
}

// Clone returns a deep copy, so session snapshots are immune to later edits.
func (p FormatProfile) Clone() FormatProfile {
	cp := p
	cp.Components = make([]ComponentSpec, len(p.Components))
	copy(cp.Components, p.Components)
	return cp
}
