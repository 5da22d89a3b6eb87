package backend

import (
	"encoding/json"
	"fmt"

	"github.com/linetrace/linelist-tracker/constants"
	"github.com/linetrace/linelist-tracker/internal/entity"
)

type resultEnvelope struct {
	Base struct {
		Rows []map[string]string `json:"rows"`
	} `json:"base"`
	Enrichments map[string]struct {
		Status string              `json:"status"`
		Rows   []map[string]string `json:"rows"`
		Error  string              `json:"error"`
	} `json:"enrichments"`
}

// ParseResult validates and decodes a SUCCESS payload into merge inputs.
// Roles missing from the payload come back as SourceAbsent, so the merger
// always sees all three roles.
func ParseResult(payload []byte) ([]entity.BaseRow, map[constants.Role]entity.SourceResult, error) {
	if err := ValidateResult(payload); err != nil {
		return nil, nil, err
	}

	var envelope resultEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, nil, fmt.Errorf("decode result payload: %w", err)
	}

	base := make([]entity.BaseRow, 0, len(envelope.Base.Rows))
	for _, row := range envelope.Base.Rows {
		base = append(base, entity.BaseRow(row))
	}

	sources := make(map[constants.Role]entity.SourceResult, 3)
	for _, role := range constants.EnrichmentRoles() {
		raw, ok := envelope.Enrichments[string(role)]
		if !ok {
			sources[role] = entity.SourceResult{State: entity.SourceAbsent}
			continue
		}
		switch raw.Status {
		case "ok":
			rows := make([]entity.EnrichmentRow, 0, len(raw.Rows))
			for _, row := range raw.Rows {
				rows = append(rows, entity.EnrichmentRow(row))
			}
			sources[role] = entity.SourceResult{State: entity.SourceSucceeded, Rows: rows}
		case "failed":
			sources[role] = entity.SourceResult{State: entity.SourceFailed, Err: raw.Error}
		default:
			return nil, nil, fmt.Errorf("enrichment %s reported unknown status %q", role, raw.Status)
		}
	}
	return base, sources, nil
}
