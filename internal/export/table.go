package export

import (
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/linetrace/linelist-tracker/constants"
	"github.com/linetrace/linelist-tracker/internal/entity"
)

// RenderPreview renders the base columns of up to limit records as a text
// table, with a trailing column showing how many sources populated each
// record. Used for terminal-side previews and logs, not for export.
func RenderPreview(records []entity.ExtractedRecord, limit int) string {
	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}

	w := table.NewWriter()
	header := table.Row{}
	for _, key := range constants.BaseFields {
		header = append(header, displayTitle(key))
	}
	header = append(header, "Sources")
	w.AppendHeader(header)

	for _, rec := range records[:limit] {
		row := table.Row{}
		for _, key := range constants.BaseFields {
			row = append(row, rec.BaseFields[key])
		}
		sources := 0
		for _, populated := range rec.Provenance {
			if populated {
				sources++
			}
		}
		row = append(row, sources)
		w.AppendRow(row)
	}
	return w.Render()
}
