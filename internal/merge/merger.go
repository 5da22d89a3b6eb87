package merge

import (
	"fmt"
	"log/slog"

	"github.com/linetrace/linelist-tracker/constants"
	"github.com/linetrace/linelist-tracker/internal/entity"
)

// Merger combines the base extraction with up to three enrichment sources
// into one column-consistent record set.
type Merger struct {
	logger *slog.Logger
}

// NewMerger creates a merger.
func NewMerger(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{logger: logger}
}

// Merge joins enrichment rows onto base rows by exact line identifier.
//
// Every output record carries the full base and enrichment column sets; a
// source that is absent or failed only leaves its fields empty, it never
// shrinks the columns. A failure in one source does not abort the others.
// Duplicate base identifiers are last-write-wins in submission order.
func (m *Merger) Merge(base []entity.BaseRow, sources map[constants.Role]entity.SourceResult) ([]entity.ExtractedRecord, entity.MergeReport) {
	report := entity.MergeReport{
		FailureReasons: make(map[constants.Role]string),
	}

	// Index each successful source by identifier. Roles the caller did not
	// supply at all count as absent.
	indexed := make(map[constants.Role]map[string]entity.EnrichmentRow, 3)
	for _, role := range constants.EnrichmentRoles() {
		src, ok := sources[role]
		if !ok {
			src = entity.SourceResult{State: entity.SourceAbsent}
		}
		switch src.State {
		case entity.SourceSucceeded:
			report.Succeeded = append(report.Succeeded, role)
			byID := make(map[string]entity.EnrichmentRow, len(src.Rows))
			for _, row := range src.Rows {
				if id := row[constants.FieldLineNumber]; id != "" {
					byID[id] = row
				}
			}
			indexed[role] = byID
		case entity.SourceFailed:
			report.Failed = append(report.Failed, role)
			report.FailureReasons[role] = src.Err
			m.logger.Warn("merge.source_failed", "role", string(role), "reason", src.Err)
		default:
			report.Absent = append(report.Absent, role)
		}
	}

	var records []entity.ExtractedRecord
	position := make(map[string]int)

	for _, row := range base {
		record := buildRecord(row, indexed)
		id := record.Identifier()
		if id == "" {
			// No identifier to collide on; keep the row as-is.
			records = append(records, record)
			continue
		}
		if at, dup := position[id]; dup {
			// Later rows overwrite earlier ones, keeping the first position.
			records[at] = record
			report.DuplicatesDropped++
			continue
		}
		position[id] = len(records)
		records = append(records, record)
	}

	report.Records = len(records)
	m.logger.Info("merge.done",
		"records", report.Records,
		"sources_ok", len(report.Succeeded),
		"sources_failed", len(report.Failed),
		"duplicates_dropped", report.DuplicatesDropped,
	)
	return records, report
}

func buildRecord(row entity.BaseRow, indexed map[constants.Role]map[string]entity.EnrichmentRow) entity.ExtractedRecord {
	record := entity.ExtractedRecord{
		BaseFields:       make(map[string]string, len(constants.BaseFields)),
		EnrichmentFields: make(map[string]string),
		Provenance:       make(map[constants.Role]bool, 3),
		FromPrimary:      true,
	}
	for _, key := range constants.BaseFields {
		record.BaseFields[key] = row[key]
	}
	for _, key := range constants.EnrichmentFields() {
		record.EnrichmentFields[key] = ""
	}

	id := record.Identifier()
	for role, byID := range indexed {
		src, ok := byID[id]
		if !ok {
			continue
		}
		for _, key := range constants.FieldsForRole(role) {
			if v, present := src[key]; present {
				record.EnrichmentFields[key] = v
			}
		}
		record.Provenance[role] = true
	}
	return record
}

// Summary renders the operator-facing enrichment summary, for example
// "enriched with 2 of 3 sources".
func Summary(report entity.MergeReport) string {
	return fmt.Sprintf("enriched with %d of %d sources", len(report.Succeeded), len(constants.EnrichmentRoles()))
}
