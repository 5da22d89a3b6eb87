package constants

// Base field keys extracted from the primary drawing. Order here is the
// canonical column order for display and export.
const (
	FieldLineNumber = "line_number"
	FieldSize       = "size"
	FieldFluidCode  = "fluid_code"
	FieldArea       = "area"
	FieldSequence   = "sequence"
	FieldClass      = "class"
	FieldInsulation = "insulation"
	FieldFromPoint  = "from_point"
	FieldToPoint    = "to_point"
)

// BaseFields is the full keyed set for a normalized record. A record missing
// a value still carries the key with an empty string.
var BaseFields = []string{
	FieldLineNumber,
	FieldSize,
	FieldFluidCode,
	FieldArea,
	FieldSequence,
	FieldClass,
	FieldInsulation,
	FieldFromPoint,
	FieldToPoint,
}

// Enrichment field keys, grouped by the source document that supplies them.
// The concatenation of the three groups is the canonical enrichment column
// order.
var (
	SecondaryProcessFields = []string{
		"operating_temperature",
		"operating_pressure",
		"design_temperature",
		"design_pressure",
		"test_pressure",
		"fluid_phase",
		"flow_rate",
		"operating_density",
		"line_velocity",
	}

	MaterialFields = []string{
		"material_grade",
		"pipe_schedule",
		"wall_thickness",
		"flange_rating",
		"gasket_type",
		"bolt_material",
		"corrosion_allowance",
		"pipe_standard",
		"pwht",
	}

	CorrosionFields = []string{
		"corrosion_rate",
		"corrosion_mechanism",
		"inspection_priority",
		"remaining_life",
		"monitoring_method",
		"inhibitor_type",
		"coating_system",
		"cladding_material",
	}
)

// EnrichmentFields returns every enrichment key in canonical order.
func EnrichmentFields() []string {
	out := make([]string, 0, len(SecondaryProcessFields)+len(MaterialFields)+len(CorrosionFields))
	out = append(out, SecondaryProcessFields...)
	out = append(out, MaterialFields...)
	out = append(out, CorrosionFields...)
	return out
}

// AllColumns returns the total column order: base columns first, then
// enrichment columns.
func AllColumns() []string {
	enr := EnrichmentFields()
	out := make([]string, 0, len(BaseFields)+len(enr))
	out = append(out, BaseFields...)
	out = append(out, enr...)
	return out
}

// FieldsForRole maps an enrichment role to the fields it supplies.
func FieldsForRole(role Role) []string {
	switch role {
	case RoleSecondaryProcess:
		return SecondaryProcessFields
	case RoleMaterial:
		return MaterialFields
	case RoleCorrosion:
		return CorrosionFields
	default:
		return nil
	}
}
