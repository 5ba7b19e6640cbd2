package application

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/scoutval/internal/domain"
	"github.com/ahrav/scoutval/internal/ports"
)

// FieldMappingFile is the YAML document that defines one season's
// official-record field mappings.
//
//	season: 2025
//	field_mappings:
//	  - official_metric: teleopCoralCount
//	    field_paths: [teleop_performance.coral_scored_L1]
//	    aggregation: sum
type FieldMappingFile struct {
	Season        int                   `yaml:"season" validate:"required,min=1992"`
	FieldMappings []domain.FieldMapping `yaml:"field_mappings" validate:"required,min=1,dive"`
}

var supportedAggregations = []string{
	string(domain.AggregationSum),
	string(domain.AggregationCountTrue),
}

// LoadFieldMappingsFile reads and validates a field mapping file.
func LoadFieldMappingsFile(path string) (*FieldMappingFile, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ports.NewConfigError("field_mappings_path", fmt.Errorf("%w: %s", ports.ErrConfigNotFound, path))
	}
	if err != nil {
		return nil, ports.NewConfigError("field_mappings_path", err)
	}
	defer f.Close()

	return ParseFieldMappings(f)
}

// ParseFieldMappings decodes a field mapping document and checks it for
// unknown aggregations, paths outside the period payloads and duplicate
// result paths. Unknown YAML keys are rejected.
func ParseFieldMappings(r io.Reader) (*FieldMappingFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc FieldMappingFile
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty field mapping document", domain.ErrInvalidConfiguration)
		}
		return nil, fmt.Errorf("failed to parse field mappings: %w", err)
	}

	verr := domain.NewConfigValidationError("field_mappings")
	checkFieldMappings(doc.FieldMappings, verr)
	if verr.HasErrors() {
		return nil, verr
	}

	if err := configValidator.Struct(doc); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				verr.AddError(fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return nil, verr
		}
		return nil, fmt.Errorf("field mapping validation failed: %w", err)
	}
	return &doc, nil
}

// checkFieldMappings adds semantic problems that struct tags cannot express.
func checkFieldMappings(mappings []domain.FieldMapping, verr *domain.ConfigValidationError) {
	seen := make(map[string]int, len(mappings))
	for i, m := range mappings {
		agg := string(m.Aggregation)
		if agg != "" && !isSupportedAggregation(agg) {
			verr.AddError(fmt.Sprintf("mapping %d (%s): %v", i, m.OfficialMetric,
				unknownNameError("aggregation", agg, supportedAggregations)))
		}

		for _, path := range m.FieldPaths {
			if !hasPeriodPrefix(path) {
				verr.AddError(fmt.Sprintf("mapping %d (%s): field path %q must start with a period name",
					i, m.OfficialMetric, path))
			}
		}

		if m.OfficialMetric == "" {
			continue
		}
		if prev, dup := seen[m.FieldPath()]; dup {
			verr.AddError(fmt.Sprintf("mapping %d (%s): result path %q already used by mapping %d",
				i, m.OfficialMetric, m.FieldPath(), prev))
			continue
		}
		seen[m.FieldPath()] = i
	}
}

func isSupportedAggregation(agg string) bool {
	for _, s := range supportedAggregations {
		if agg == s {
			return true
		}
	}
	return false
}

func hasPeriodPrefix(path string) bool {
	for _, p := range domain.Periods {
		if strings.HasPrefix(path, string(p)+".") {
			return true
		}
	}
	return false
}
