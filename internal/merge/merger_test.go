package merge

import (
	"testing"

	"github.com/linetrace/linelist-tracker/constants"
	"github.com/linetrace/linelist-tracker/internal/entity"
)

func baseRow(id string) entity.BaseRow {
	return entity.BaseRow{
		constants.FieldLineNumber: id,
		constants.FieldSize:       "2",
		constants.FieldFluidCode:  "D",
		constants.FieldSequence:   "5777",
	}
}

func TestMergeJoinsOnExactIdentifier(t *testing.T) {
	m := NewMerger(nil)

	base := []entity.BaseRow{baseRow("2-D-31-5777"), baseRow("3-P-31-5800")}
	sources := map[constants.Role]entity.SourceResult{
		constants.RoleSecondaryProcess: {
			State: entity.SourceSucceeded,
			Rows: []entity.EnrichmentRow{
				{constants.FieldLineNumber: "2-D-31-5777", "operating_temperature": "120", "fluid_phase": "liquid"},
			},
		},
		constants.RoleMaterial: {
			State: entity.SourceSucceeded,
			Rows: []entity.EnrichmentRow{
				{constants.FieldLineNumber: "3-P-31-5800", "material_grade": "A106-B"},
			},
		},
	}

	records, report := m.Merge(base, sources)
	if report.Records != 2 || len(records) != 2 {
		t.Fatalf("records = %d", len(records))
	}

	first := records[0]
	if first.EnrichmentFields["operating_temperature"] != "120" {
		t.Errorf("operating_temperature = %q", first.EnrichmentFields["operating_temperature"])
	}
	if !first.Provenance[constants.RoleSecondaryProcess] {
		t.Error("provenance missing for joined source")
	}
	if first.Provenance[constants.RoleMaterial] {
		t.Error("provenance set for non-matching source")
	}
	if first.EnrichmentFields["material_grade"] != "" {
		t.Errorf("material_grade leaked onto wrong row: %q", first.EnrichmentFields["material_grade"])
	}

	second := records[1]
	if second.EnrichmentFields["material_grade"] != "A106-B" {
		t.Errorf("material_grade = %q", second.EnrichmentFields["material_grade"])
	}
}

func TestMergeColumnsStableAcrossSourceSubsets(t *testing.T) {
	m := NewMerger(nil)
	base := []entity.BaseRow{baseRow("2-D-31-5777")}

	subsets := []map[constants.Role]entity.SourceResult{
		nil,
		{constants.RoleMaterial: {State: entity.SourceSucceeded}},
		{
			constants.RoleSecondaryProcess: {State: entity.SourceSucceeded},
			constants.RoleMaterial:         {State: entity.SourceFailed, Err: "x"},
			constants.RoleCorrosion:        {State: entity.SourceSucceeded},
		},
	}

	for i, sources := range subsets {
		records, _ := m.Merge(base, sources)
		if len(records) != 1 {
			t.Fatalf("subset %d: records = %d", i, len(records))
		}
		rec := records[0]
		if got := len(rec.BaseFields); got != len(constants.BaseFields) {
			t.Errorf("subset %d: base keys = %d, want %d", i, got, len(constants.BaseFields))
		}
		if got := len(rec.EnrichmentFields); got != len(constants.EnrichmentFields()) {
			t.Errorf("subset %d: enrichment keys = %d, want %d", i, got, len(constants.EnrichmentFields()))
		}
		for _, key := range constants.EnrichmentFields() {
			if _, ok := rec.EnrichmentFields[key]; !ok {
				t.Errorf("subset %d: key %q missing", i, key)
			}
		}
	}
}

func TestMergeFailureIsolation(t *testing.T) {
	m := NewMerger(nil)
	base := []entity.BaseRow{baseRow("2-D-31-5777")}
	sources := map[constants.Role]entity.SourceResult{
		constants.RoleSecondaryProcess: {
			State: entity.SourceSucceeded,
			Rows: []entity.EnrichmentRow{
				{constants.FieldLineNumber: "2-D-31-5777", "flow_rate": "44.2"},
			},
		},
		constants.RoleMaterial: {State: entity.SourceFailed, Err: "unreadable workbook"},
	}

	records, report := m.Merge(base, sources)
	if records[0].EnrichmentFields["flow_rate"] != "44.2" {
		t.Error("surviving source did not contribute")
	}
	if len(report.Succeeded) != 1 || len(report.Failed) != 1 || len(report.Absent) != 1 {
		t.Errorf("report = %+v", report)
	}
	if report.FailureReasons[constants.RoleMaterial] != "unreadable workbook" {
		t.Errorf("failure reason = %q", report.FailureReasons[constants.RoleMaterial])
	}
	if report.AttemptedSources() != 2 {
		t.Errorf("attempted = %d", report.AttemptedSources())
	}
}

func TestMergeDuplicateIdentifiersLastWriteWins(t *testing.T) {
	m := NewMerger(nil)

	first := baseRow("2-D-31-5777")
	first[constants.FieldFromPoint] = "V-3101"
	second := baseRow("2-D-31-5777")
	second[constants.FieldFromPoint] = "V-3102"
	other := baseRow("3-P-31-5800")

	records, report := m.Merge([]entity.BaseRow{first, other, second}, nil)
	if report.DuplicatesDropped != 1 {
		t.Errorf("duplicates dropped = %d", report.DuplicatesDropped)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d", len(records))
	}
	// The later row wins but keeps the first row's position.
	if records[0].Identifier() != "2-D-31-5777" || records[0].BaseFields[constants.FieldFromPoint] != "V-3102" {
		t.Errorf("record[0] = %+v", records[0].BaseFields)
	}
	if records[1].Identifier() != "3-P-31-5800" {
		t.Errorf("record[1] id = %q", records[1].Identifier())
	}
}

func TestMergeKeepsRowsWithoutIdentifier(t *testing.T) {
	m := NewMerger(nil)
	blank := entity.BaseRow{constants.FieldSize: "2"}

	records, report := m.Merge([]entity.BaseRow{blank, blank}, nil)
	if len(records) != 2 {
		t.Fatalf("records = %d, want identifier-less rows kept verbatim", len(records))
	}
	if report.DuplicatesDropped != 0 {
		t.Error("identifier-less rows must not count as duplicates")
	}
}

func TestMergeIgnoresUnmatchedEnrichmentRows(t *testing.T) {
	m := NewMerger(nil)
	base := []entity.BaseRow{baseRow("2-D-31-5777")}
	sources := map[constants.Role]entity.SourceResult{
		constants.RoleCorrosion: {
			State: entity.SourceSucceeded,
			Rows: []entity.EnrichmentRow{
				{constants.FieldLineNumber: "9-Z-99-9999", "corrosion_rate": "0.4"},
			},
		},
	}

	records, _ := m.Merge(base, sources)
	if records[0].EnrichmentFields["corrosion_rate"] != "" {
		t.Error("unmatched enrichment row contaminated a record")
	}
	if records[0].Provenance[constants.RoleCorrosion] {
		t.Error("provenance set without a join hit")
	}
}

func TestMergeCompactIdentifierNoEnrichment(t *testing.T) {
	m := NewMerger(nil)
	base := []entity.BaseRow{{
		constants.FieldLineNumber: "2-D-5777",
		constants.FieldSize:       "2",
		constants.FieldFluidCode:  "D",
		constants.FieldSequence:   "5777",
		constants.FieldFromPoint:  "V-100",
		constants.FieldToPoint:    "V-200",
	}}

	records, report := m.Merge(base, nil)
	if len(records) != 1 {
		t.Fatalf("records = %d", len(records))
	}
	rec := records[0]
	if rec.BaseFields[constants.FieldFromPoint] != "V-100" || rec.BaseFields[constants.FieldToPoint] != "V-200" {
		t.Errorf("endpoints = %q -> %q", rec.BaseFields[constants.FieldFromPoint], rec.BaseFields[constants.FieldToPoint])
	}
	// The area key exists but is empty for a compact-format identifier.
	if v, ok := rec.BaseFields[constants.FieldArea]; !ok || v != "" {
		t.Errorf("area = %q (present=%v)", v, ok)
	}
	for _, key := range constants.EnrichmentFields() {
		if rec.EnrichmentFields[key] != "" {
			t.Errorf("enrichment %q = %q, want empty", key, rec.EnrichmentFields[key])
		}
	}
	if len(report.Absent) != 3 || report.AttemptedSources() != 0 {
		t.Errorf("report = %+v", report)
	}
	if !rec.FromPrimary {
		t.Error("record must be flagged as primary-sourced")
	}
}

func TestSummary(t *testing.T) {
	report := entity.MergeReport{
		Succeeded: []constants.Role{constants.RoleMaterial, constants.RoleCorrosion},
		Failed:    []constants.Role{constants.RoleSecondaryProcess},
	}
	if got := Summary(report); got != "enriched with 2 of 3 sources" {
		t.Errorf("summary = %q", got)
	}
}
