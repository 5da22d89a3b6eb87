package profiles

import (
	"github.com/linetrace/linelist-tracker/internal/entity"
	"github.com/linetrace/linelist-tracker/internal/grammar"
)

// Preset names. Selecting a preset replaces the active profile wholesale;
// presets themselves are never edited in place.
const (
	PresetStandard  = "standard"
	PresetCompact   = "compact"
	PresetAreaFirst = "area-first"
)

func presetComponent(id string, order int, example string) entity.ComponentSpec {
	pattern, _ := grammar.CanonicalPattern(id)
	return entity.ComponentSpec{
		ID:      id,
		Enabled: true,
		Order:   order,
		Pattern: pattern,
		Example: example,
	}
}

// Preset returns the named preset profile, or false for an unknown name.
// IncludeAreaComponent is fixed per preset and follows from whether the
// layout carries an area component.
func Preset(name string) (entity.FormatProfile, bool) {
	switch name {
	case PresetStandard:
		return entity.FormatProfile{
			Name: "Standard",
			Components: []entity.ComponentSpec{
				presetComponent("size", 1, "2"),
				presetComponent("fluid_code", 2, "D"),
				presetComponent("area", 3, "31"),
				presetComponent("sequence", 4, "5777"),
			},
			Separator:               "-",
			AllowVariableSeparators: true,
			IncludeAreaComponent:    true,
			Preset:                  PresetStandard,
		}, true
	case PresetCompact:
		return entity.FormatProfile{
			Name: "Compact",
			Components: []entity.ComponentSpec{
				presetComponent("size", 1, "2"),
				presetComponent("fluid_code", 2, "D"),
				presetComponent("sequence", 3, "5777"),
			},
			Separator:               "-",
			AllowVariableSeparators: true,
			IncludeAreaComponent:    false,
			Preset:                  PresetCompact,
		}, true
	case PresetAreaFirst:
		return entity.FormatProfile{
			Name: "Area First",
			Components: []entity.ComponentSpec{
				presetComponent("area", 1, "31"),
				presetComponent("size", 2, "2"),
				presetComponent("fluid_code", 3, "D"),
				presetComponent("sequence", 4, "5777"),
			},
			Separator:               "-",
			AllowVariableSeparators: true,
			IncludeAreaComponent:    true,
			Preset:                  PresetAreaFirst,
		}, true
	default:
		return entity.FormatProfile{}, false
	}
}

// PresetNames returns all preset names in display order.
func PresetNames() []string {
	return []string{PresetStandard, PresetCompact, PresetAreaFirst}
}
