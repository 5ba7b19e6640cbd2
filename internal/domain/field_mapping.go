package domain

// AggregationMethod describes how mapped observation fields roll up into a
// team contribution.
type AggregationMethod string

const (
	// AggregationSum adds the numeric values found at every mapped path.
	AggregationSum AggregationMethod = "sum"

	// AggregationCountTrue counts mapped paths holding a true boolean.
	AggregationCountTrue AggregationMethod = "count_true"
)

// String returns the string representation of the aggregation method.
func (m AggregationMethod) String() string { return string(m) }

// FieldMapping links one official-record metric to the observation fields
// that should add up to it. Mappings are static per season.
type FieldMapping struct {
	// OfficialMetric is the breakdown key, e.g. "teleopCoralCount". Nested
	// breakdown objects are addressed with dot paths ("teleopReef.trough").
	OfficialMetric string `yaml:"official_metric" json:"official_metric" validate:"required"`

	// OfficialSources, when set, derives the official value by counting how
	// many of these breakdown entries are truthy instead of reading
	// OfficialMetric directly. Used for per-robot flags such as
	// autoLineRobot1..3.
	OfficialSources []string `yaml:"official_sources,omitempty" json:"official_sources,omitempty" validate:"omitempty,dive,required"`

	// FieldPaths are dot paths into the observation document.
	FieldPaths []string `yaml:"field_paths" json:"field_paths" validate:"required,min=1,dive,required"`

	// Aggregation selects sum or count_true.
	Aggregation AggregationMethod `yaml:"aggregation" json:"aggregation" validate:"required,oneof=sum count_true"`

	// ResultPath overrides the field path recorded on emitted results.
	ResultPath string `yaml:"result_path,omitempty" json:"result_path,omitempty"`
}

// FieldPath returns the path recorded on results produced by this mapping.
func (m FieldMapping) FieldPath() string {
	if m.ResultPath != "" {
		return m.ResultPath
	}
	if len(m.FieldPaths) == 1 {
		return m.FieldPaths[0]
	}
	return JoinPath("tba", m.OfficialMetric)
}

// OfficialValue reads the mapping's official value from one alliance's
// breakdown. It returns false when the metric is absent or not numeric.
func (m FieldMapping) OfficialValue(breakdown map[string]any) (float64, bool) {
	if len(m.OfficialSources) > 0 {
		found := false
		count := 0.0
		for _, key := range m.OfficialSources {
			v, ok := GetValueAtPath(breakdown, key)
			if !ok {
				continue
			}
			found = true
			if IsTruthy(v) {
				count++
			}
		}
		return count, found
	}

	v, ok := GetValueAtPath(breakdown, m.OfficialMetric)
	if !ok || v == nil {
		return 0, false
	}
	return ToFloat(v)
}

// Contribution totals one observation's mapped fields.
func (m FieldMapping) Contribution(doc map[string]any) float64 {
	total := 0.0
	for _, path := range m.FieldPaths {
		v, ok := GetValueAtPath(doc, path)
		if !ok {
			continue
		}
		switch m.Aggregation {
		case AggregationCountTrue:
			if b, ok := v.(bool); ok && b {
				total++
			}
		default:
			if f, ok := ToFloat(v); ok && isFinite(f) {
				total += f
			}
		}
	}
	return total
}
