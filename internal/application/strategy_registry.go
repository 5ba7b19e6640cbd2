package application

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ahrav/scoutval/infrastructure/consolidate"
	"github.com/ahrav/scoutval/infrastructure/middleware"
	"github.com/ahrav/scoutval/infrastructure/strategies"
	"github.com/ahrav/scoutval/internal/domain"
	"github.com/ahrav/scoutval/internal/ports"
)

// Built-in strategy type names.
const (
	StrategyConsensus = "consensus"
	StrategyOfficial  = "tba"
)

// StrategyDeps carries the collaborators a strategy factory may use.
type StrategyDeps struct {
	Config        Config
	Observations  ports.ObservationRepository
	Matches       ports.MatchRepository
	FieldMappings []domain.FieldMapping
	Logger        *slog.Logger
	Metrics       ports.MetricsCollector
}

// StrategyFactory creates a strategy from its dependencies.
type StrategyFactory func(deps StrategyDeps) (ports.Strategy, error)

// StrategyRegistry maps strategy type names to factories. It comes with the
// consensus and official-record strategies registered.
type StrategyRegistry struct {
	// mu protects concurrent access to the factories map.
	mu        sync.RWMutex
	factories map[string]StrategyFactory
}

// NewStrategyRegistry creates a registry with the built-in strategy types.
func NewStrategyRegistry() *StrategyRegistry {
	r := &StrategyRegistry{factories: make(map[string]StrategyFactory)}
	r.factories[StrategyConsensus] = newConsensusStrategy
	r.factories[StrategyOfficial] = newOfficialStrategy
	return r
}

func newConsensusStrategy(deps StrategyDeps) (ports.Strategy, error) {
	consolidatorConfig := consolidate.DefaultConfig()
	consolidatorConfig.MinObservedFraction = deps.Config.MinObservedFraction
	consolidator, err := consolidate.New(consolidatorConfig)
	if err != nil {
		return nil, err
	}

	config := strategies.DefaultConsensusConfig()
	config.MinScoutsRequired = deps.Config.MinScoutsRequired
	return strategies.NewConsensusValidationStrategy(config, deps.Observations, consolidator,
		strategies.WithLogger(deps.Logger),
		strategies.WithMetrics(deps.Metrics),
	)
}

func newOfficialStrategy(deps StrategyDeps) (ports.Strategy, error) {
	mappings := deps.FieldMappings
	if len(mappings) == 0 {
		mappings = strategies.Reefscape2025FieldMappings()
	}

	config := strategies.DefaultOfficialRecordConfig(mappings)
	config.MinTeamsWithData = deps.Config.MinTeamsWithData
	config.ConfidenceLevel = deps.Config.OfficialConfidence
	return strategies.NewOfficialRecordValidationStrategy(config, deps.Observations, deps.Matches,
		strategies.WithLogger(deps.Logger),
		strategies.WithMetrics(deps.Metrics),
	)
}

// CreateStrategy creates a traced strategy of the given type.
func (r *StrategyRegistry) CreateStrategy(name string, deps StrategyDeps) (ports.Strategy, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, unknownNameError("strategy", name, r.SupportedTypes())
	}

	strategy, err := factory(deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create strategy %s: %w", name, err)
	}
	return middleware.NewTracedStrategy(strategy, deps.Metrics), nil
}

// CreateStrategies creates one strategy per name, preserving order.
func (r *StrategyRegistry) CreateStrategies(names []string, deps StrategyDeps) ([]ports.Strategy, error) {
	out := make([]ports.Strategy, 0, len(names))
	for _, name := range names {
		s, err := r.CreateStrategy(name, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// RegisterStrategyFactory registers or replaces the factory for a type.
func (r *StrategyRegistry) RegisterStrategyFactory(name string, factory StrategyFactory) error {
	if name == "" {
		return fmt.Errorf("strategy type cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory function cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	return nil
}

// Has reports whether a strategy type is registered.
func (r *StrategyRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// SupportedTypes returns the registered strategy types in sorted order.
func (r *StrategyRegistry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for name := range r.factories {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}
