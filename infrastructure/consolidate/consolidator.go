// Package consolidate merges several scouts' period payloads into a single
// consensus payload.
package consolidate

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/montanaflynn/stats"

	"github.com/ahrav/scoutval/internal/domain"
	"github.com/ahrav/scoutval/internal/ports"
)

var _ ports.Consolidator = (*Consolidator)(nil)

var validate = validator.New()

// Config controls how sparse a field may be before it drops out of the
// consensus.
type Config struct {
	// MinObservedFraction is the share of payloads that must carry a non-nil
	// value for a key before a consensus is formed. The required count is
	// rounded up. Default: 0.5.
	MinObservedFraction float64 `yaml:"min_observed_fraction" json:"min_observed_fraction" validate:"gt=0,lte=1"`

	// ExcludedKeys are metadata keys never consolidated.
	ExcludedKeys []string `yaml:"excluded_keys" json:"excluded_keys"`
}

// DefaultConfig returns the consolidation defaults: a field needs values from
// at least half of the scouts, and schema/notes metadata is ignored.
func DefaultConfig() Config {
	return Config{
		MinObservedFraction: 0.5,
		ExcludedKeys:        []string{domain.KeySchemaVersion, domain.KeyNotes},
	}
}

// Consolidator merges payloads field by field: majority vote for booleans,
// median for numbers and mode for categories.
//
// Concurrency: Consolidator is immutable after construction and safe for
// concurrent use.
type Consolidator struct {
	config   Config
	excluded map[string]struct{}
}

// New creates a Consolidator with validated configuration.
func New(config Config) (*Consolidator, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	excluded := make(map[string]struct{}, len(config.ExcludedKeys))
	for _, k := range config.ExcludedKeys {
		excluded[k] = struct{}{}
	}
	return &Consolidator{config: config, excluded: excluded}, nil
}

// Consolidate returns the consensus payload for the given payloads. Keys
// observed by fewer than the required number of payloads are omitted.
func (c *Consolidator) Consolidate(payloads []domain.Payload) domain.Payload {
	consensus := make(domain.Payload)
	if len(payloads) == 0 {
		return consensus
	}

	required := c.requiredObservations(len(payloads))

	values := make(map[string][]any)
	for _, p := range payloads {
		for k, v := range p {
			if v == nil {
				continue
			}
			if _, skip := c.excluded[k]; skip {
				continue
			}
			values[k] = append(values[k], v)
		}
	}

	for key, vals := range values {
		if len(vals) < required {
			continue
		}
		if merged, ok := mergeValues(vals); ok {
			consensus[key] = merged
		}
	}
	return consensus
}

// requiredObservations rounds the configured fraction of n up, with a floor
// of one.
func (c *Consolidator) requiredObservations(n int) int {
	required := int(math.Ceil(float64(n) * c.config.MinObservedFraction))
	if required < 1 {
		return 1
	}
	return required
}

// mergeValues picks a merge rule from the kind of the first value. Values of
// a different kind are ignored.
func mergeValues(vals []any) (any, bool) {
	switch vals[0].(type) {
	case bool:
		return majorityVote(vals)
	case string:
		return mode(vals)
	}
	if _, ok := domain.ToFloat(vals[0]); ok {
		return median(vals)
	}
	return nil, false
}

// majorityVote returns true only when strictly more scouts recorded true.
func majorityVote(vals []any) (any, bool) {
	yes, no := 0, 0
	for _, v := range vals {
		b, ok := v.(bool)
		if !ok {
			continue
		}
		if b {
			yes++
		} else {
			no++
		}
	}
	if yes+no == 0 {
		return nil, false
	}
	return yes > no, true
}

func median(vals []any) (any, bool) {
	data := make(stats.Float64Data, 0, len(vals))
	for _, v := range vals {
		if _, isBool := v.(bool); isBool {
			continue
		}
		if f, ok := domain.ToFloat(v); ok {
			data = append(data, f)
		}
	}
	m, err := stats.Median(data)
	if err != nil {
		return nil, false
	}
	return m, true
}

// mode returns the most frequent string, breaking ties with the
// lexicographically smallest value so the result is deterministic.
func mode(vals []any) (any, bool) {
	counts := make(map[string]int)
	for _, v := range vals {
		if s, ok := v.(string); ok {
			counts[s]++
		}
	}
	if len(counts) == 0 {
		return nil, false
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best, true
}
