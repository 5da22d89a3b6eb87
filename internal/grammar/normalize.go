package grammar

import (
	"github.com/linetrace/linelist-tracker/internal/entity"
)

// Canonical component patterns. A persisted profile whose component id
// matches one of these is forced back to the canonical pattern on load, so
// corrupted persisted state cannot override a known-good regex.
var canonicalPatterns = map[string]string{
	"size":       `\d{1,2}(?:/\d{1,2})?`,
	"fluid_code": `[A-Z]{1,3}`,
	"area":       `\d{2,3}`,
	"sequence":   `\d{3,5}`,
	"class":      `[A-Z]\d[A-Z]\d?`,
	"insulation": `[A-Z]{1,2}`,
}

// CanonicalPattern returns the known-good pattern for a component id, if any.
func CanonicalPattern(id string) (string, bool) {
	p, ok := canonicalPatterns[id]
	return p, ok
}

// NormalizeProfile returns a copy of the profile with every component whose
// id matches a canonical component reset to the canonical pattern. Unknown
// component ids keep their operator-supplied pattern.
func NormalizeProfile(profile entity.FormatProfile) entity.FormatProfile {
	out := profile.Clone()
	for i, c := range out.Components {
		if p, ok := canonicalPatterns[c.ID]; ok {
			out.Components[i].Pattern = p
		}
	}
	return out
}
