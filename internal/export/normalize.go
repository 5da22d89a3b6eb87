package export

import (
	"fmt"
	"strings"

	"github.com/linetrace/linelist-tracker/constants"
	"github.com/linetrace/linelist-tracker/internal/entity"
)

// OrderedRecord is one record's values laid out in the total column order:
// base columns first, then enrichment columns.
type OrderedRecord []string

// Columns returns the fixed total column order.
func Columns() []string {
	return constants.AllColumns()
}

// HeaderTitles returns display titles parallel to Columns.
func HeaderTitles() []string {
	cols := Columns()
	out := make([]string, len(cols))
	for i, key := range cols {
		out[i] = displayTitle(key)
	}
	return out
}

// ColumnWidths returns spreadsheet width hints parallel to Columns.
func ColumnWidths() []float64 {
	cols := Columns()
	out := make([]float64, len(cols))
	for i, key := range cols {
		switch key {
		case constants.FieldLineNumber:
			out[i] = 24
		case constants.FieldFromPoint, constants.FieldToPoint:
			out[i] = 16
		default:
			out[i] = 14
		}
	}
	return out
}

// Normalize lays records out in the fixed column order. A record whose field
// maps are missing a known key is a shape violation and fails loudly rather
// than silently truncating columns.
func Normalize(records []entity.ExtractedRecord) ([]OrderedRecord, error) {
	cols := Columns()
	out := make([]OrderedRecord, 0, len(records))
	for i, rec := range records {
		if rec.BaseFields == nil || rec.EnrichmentFields == nil {
			return nil, fmt.Errorf("record %d is not normalized: missing field maps", i)
		}
		row := make(OrderedRecord, 0, len(cols))
		for _, key := range constants.BaseFields {
			v, ok := rec.BaseFields[key]
			if !ok {
				return nil, fmt.Errorf("record %d is missing base field %q", i, key)
			}
			row = append(row, v)
		}
		for _, key := range constants.EnrichmentFields() {
			v, ok := rec.EnrichmentFields[key]
			if !ok {
				return nil, fmt.Errorf("record %d is missing enrichment field %q", i, key)
			}
			row = append(row, v)
		}
		out = append(out, row)
	}
	return out, nil
}

// ToFlatRows produces a 2D string table for spreadsheet serialization: a
// header row in the fixed column order followed by one row per record.
func ToFlatRows(records []entity.ExtractedRecord) ([][]string, error) {
	ordered, err := Normalize(records)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(ordered)+1)
	rows = append(rows, HeaderTitles())
	for _, rec := range ordered {
		rows = append(rows, rec)
	}
	return rows, nil
}

func displayTitle(key string) string {
	if key == "pwht" {
		return "PWHT"
	}
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
