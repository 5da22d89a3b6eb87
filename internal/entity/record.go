package entity

import (
	"github.com/linetrace/linelist-tracker/constants"
)

// BaseRow is one raw row from the primary extraction, keyed by base field
// names. Keys may be sparse before normalization.
type BaseRow map[string]string

// EnrichmentRow is one raw row from an enrichment source, keyed by that
// source's field names plus the joining line_number.
type EnrichmentRow map[string]string

// SourceState describes what happened to one enrichment source in a run.
type SourceState string

const (
	SourceAbsent    SourceState = "ABSENT"
	SourceSucceeded SourceState = "SUCCEEDED"
	SourceFailed    SourceState = "FAILED"
)

// SourceResult carries one enrichment source's rows or its failure.
type SourceResult struct {
	State SourceState
	Rows  []EnrichmentRow
	Err   string
}

// ExtractedRecord is one merged, column-consistent line record.
// BaseFields always carries every base key and EnrichmentFields every
// enrichment key; absent values are empty strings, never missing keys.
type ExtractedRecord struct {
	BaseFields       map[string]string       `json:"base_fields"`
	EnrichmentFields map[string]string       `json:"enrichment_fields"`
	Provenance       map[constants.Role]bool `json:"provenance"`
	FromPrimary      bool                    `json:"from_primary"`
}

// Identifier returns the composite line identifier joining key.
func (r ExtractedRecord) Identifier() string {
	return r.BaseFields[constants.FieldLineNumber]
}

// MergeReport summarizes how a merge went without failing it.
type MergeReport struct {
	Records           int
	DuplicatesDropped int
	Succeeded         []constants.Role
	Failed            []constants.Role
	Absent            []constants.Role
	FailureReasons    map[constants.Role]string
}

// AttemptedSources is how many enrichment sources were supplied, whether or
// not they succeeded.
func (m MergeReport) AttemptedSources() int {
	return len(m.Succeeded) + len(m.Failed)
}
