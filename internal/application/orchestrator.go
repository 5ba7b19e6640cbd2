package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ahrav/scoutval/infrastructure/middleware"
	"github.com/ahrav/scoutval/infrastructure/strategies"
	"github.com/ahrav/scoutval/internal/domain"
	"github.com/ahrav/scoutval/internal/ports"
)

// ErrExecutionClosed is returned when a closed execution is reused.
var ErrExecutionClosed = errors.New("execution is closed")

// OrchestratorConfig controls fan-out and throttling.
type OrchestratorConfig struct {
	// MaxConcurrency bounds parallel team validations within one match.
	MaxConcurrency int `validate:"min=1,max=64"`

	// ReadsPerSecond throttles strategy calls, each of which reads the
	// record store. Zero disables throttling.
	ReadsPerSecond float64 `validate:"min=0"`

	// ReadBurst is the limiter burst size.
	ReadBurst int `validate:"min=1"`

	// MinScoutsRequired overrides the consensus minimum when > 0.
	MinScoutsRequired int `validate:"min=0"`
}

// OrchestratorConfigFrom extracts the orchestrator settings of cfg.
func OrchestratorConfigFrom(cfg Config) OrchestratorConfig {
	return OrchestratorConfig{
		MaxConcurrency:    cfg.MaxConcurrency,
		ReadsPerSecond:    cfg.ReadsPerSecond,
		ReadBurst:         cfg.ReadBurst,
		MinScoutsRequired: cfg.MinScoutsRequired,
	}
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOrchestratorMetrics sets the metrics collector.
func WithOrchestratorMetrics(metrics ports.MetricsCollector) OrchestratorOption {
	return func(o *Orchestrator) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// Orchestrator runs the configured strategies over every team of a match
// and hands the results to the result sinks.
//
// Concurrency: Orchestrator is safe for concurrent use. Per-run state lives
// in an Execution.
type Orchestrator struct {
	config     OrchestratorConfig
	strategies []ports.Strategy
	matches    ports.MatchRepository
	sinks      []ports.ResultSink
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    ports.MetricsCollector
}

// NewOrchestrator creates an orchestrator. Sinks may be empty.
func NewOrchestrator(
	config OrchestratorConfig,
	strats []ports.Strategy,
	matches ports.MatchRepository,
	sinks []ports.ResultSink,
	opts ...OrchestratorOption,
) (*Orchestrator, error) {
	if err := configValidator.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if len(strats) == 0 {
		return nil, fmt.Errorf("%w: at least one strategy is required", domain.ErrInvalidConfiguration)
	}
	if matches == nil {
		return nil, fmt.Errorf("%w: match repository cannot be nil", domain.ErrInvalidConfiguration)
	}

	limit := rate.Inf
	if config.ReadsPerSecond > 0 {
		limit = rate.Limit(config.ReadsPerSecond)
	}

	o := &Orchestrator{
		config:     config,
		strategies: strats,
		matches:    matches,
		sinks:      sinks,
		limiter:    rate.NewLimiter(limit, config.ReadBurst),
		logger:     slog.Default(),
		metrics:    ports.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// NewExecution starts a validation run. An empty id gets a generated one.
// The execution owns a fresh match result cache; call Close when done.
func (o *Orchestrator) NewExecution(executionID string) *Execution {
	if executionID == "" {
		executionID = uuid.NewString()
	}
	return &Execution{
		id:        executionID,
		o:         o,
		cache:     strategies.NewMatchResultCache(),
		byOutcome: make(map[domain.Outcome]int),
		byType:    make(map[domain.ValidationType]int),
		scores:    make(map[string][]float64),
	}
}

// MatchRequest selects one match to validate.
type MatchRequest struct {
	MatchKey   string
	EventKey   string
	SeasonYear int
}

// ExecutionSummary aggregates the results of an execution.
type ExecutionSummary struct {
	ExecutionID  string
	Matches      int
	Results      int
	SkippedTeams int
	ByOutcome    map[domain.Outcome]int
	ByType       map[domain.ValidationType]int

	// ScoutAccuracy is each scout's mean accuracy score.
	ScoutAccuracy map[string]float64
}

// Execution is one validation run. Match result caching is scoped to it.
type Execution struct {
	id    string
	o     *Orchestrator
	cache *strategies.MatchResultCache

	mu           sync.Mutex
	closed       bool
	matches      int
	results      int
	skippedTeams int
	byOutcome    map[domain.Outcome]int
	byType       map[domain.ValidationType]int
	scores       map[string][]float64
}

// ID returns the execution id stamped on every result.
func (e *Execution) ID() string { return e.id }

// Close drops the execution's cached match results. Matches still running
// drop theirs when they finish.
func (e *Execution) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cache.Clear(e.id)
}

func (e *Execution) clearIfClosed() {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		e.cache.Clear(e.id)
	}
}

// CachedMatches returns the number of match result sets currently cached.
func (e *Execution) CachedMatches() int { return e.cache.Len() }

// ValidateMatch validates every team of a match with every strategy that
// can validate it and delivers the results to the sinks. Results are
// ordered red teams first, then by strategy order.
//
// Unmet preconditions skip the team. Any other strategy error fails the
// match. Sink failures are returned together with the results.
func (e *Execution) ValidateMatch(ctx context.Context, req MatchRequest) ([]domain.ValidationResult, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, ErrExecutionClosed
	}
	// A Close that lands mid-match must not leave results behind in the cache.
	defer e.clearIfClosed()

	if req.MatchKey == "" {
		return nil, domain.NewMissingFieldError(domain.CodeMissingMatchKey, "match_key")
	}

	o := e.o
	start := time.Now()

	composition, err := o.matches.GetAllianceComposition(ctx, req.MatchKey)
	if err != nil {
		return nil, fmt.Errorf("fetch alliance composition for %s: %w", req.MatchKey, err)
	}
	teams := composition.AllTeams()

	perTeam := make([][]domain.ValidationResult, len(teams))
	var skipped sync.Map

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.MaxConcurrency)
	for i, team := range teams {
		g.Go(func() error {
			results, skips, err := e.validateTeam(gctx, req, team)
			if err != nil {
				return err
			}
			perTeam[i] = results
			if skips > 0 {
				skipped.Store(team, skips)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("validate match %s: %w", req.MatchKey, err)
	}

	results := make([]domain.ValidationResult, 0)
	for _, r := range perTeam {
		results = append(results, r...)
	}
	skippedTeams := 0
	skipped.Range(func(_, _ any) bool {
		skippedTeams++
		return true
	})

	e.record(results, skippedTeams)
	o.metrics.RecordLatency("validate_match", time.Since(start), map[string]string{"strategy": "all"})

	o.logger.InfoContext(ctx, "match validated",
		slog.String("execution_id", e.id),
		slog.String("match_key", req.MatchKey),
		slog.Int("teams", len(teams)),
		slog.Int("results", len(results)),
		slog.Int("skipped_teams", skippedTeams),
		slog.Duration("elapsed", time.Since(start)),
	)

	return results, e.deliver(ctx, results)
}

// validateTeam runs every strategy for one team. It returns how many
// strategies skipped the team on an unmet precondition.
func (e *Execution) validateTeam(
	ctx context.Context,
	req MatchRequest,
	team int,
) ([]domain.ValidationResult, int, error) {
	o := e.o
	vctx := ports.ValidationContext{
		MatchKey:          req.MatchKey,
		TeamNumber:        team,
		EventKey:          req.EventKey,
		SeasonYear:        req.SeasonYear,
		MinScoutsRequired: o.config.MinScoutsRequired,
		ExecutionID:       e.id,
		Cache:             e.cache,
	}

	results := make([]domain.ValidationResult, 0)
	skips := 0
	for _, strategy := range o.strategies {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}
		if !strategy.CanValidate(ctx, vctx) {
			continue
		}

		if err := o.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}
		out, err := strategy.Validate(ctx, vctx)
		if err != nil {
			var pe *domain.PreconditionError
			if errors.As(err, &pe) {
				skips++
				o.logger.WarnContext(ctx, "team skipped: precondition not met",
					slog.String("strategy", strategy.Name()),
					slog.String("match_key", req.MatchKey),
					slog.Int("team_number", team),
					slog.String("code", string(pe.Code)),
				)
				o.metrics.RecordCounter(middleware.MetricPreconditionSkips, 1, map[string]string{
					"strategy": string(strategy.Type()),
					"code":     string(pe.Code),
				})
				continue
			}
			return nil, 0, fmt.Errorf("strategy %s team %d: %w", strategy.Name(), team, err)
		}
		results = append(results, out...)
	}
	return results, skips, nil
}

// deliver stores results in every sink. All sinks are attempted.
func (e *Execution) deliver(ctx context.Context, results []domain.ValidationResult) error {
	if len(results) == 0 {
		return nil
	}

	var errs []error
	for _, sink := range e.o.sinks {
		if err := sink.Store(ctx, results); err != nil {
			e.o.logger.ErrorContext(ctx, "result delivery failed",
				slog.String("execution_id", e.id),
				slog.Int("results", len(results)),
				slog.Any("error", err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Execution) record(results []domain.ValidationResult, skippedTeams int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.matches++
	e.results += len(results)
	e.skippedTeams += skippedTeams
	for _, r := range results {
		e.byOutcome[r.Outcome]++
		e.byType[r.ValidationType]++
		if r.ScouterID != "" {
			e.scores[r.ScouterID] = append(e.scores[r.ScouterID], r.AccuracyScore)
		}
	}
}

// ValidateEvent validates every scheduled match of an event in order.
// A failing match is logged and does not stop the remaining matches; the
// failures are returned joined.
func (e *Execution) ValidateEvent(ctx context.Context, eventKey string, seasonYear int) error {
	if eventKey == "" {
		return domain.NewMissingFieldError(domain.CodeMissingEventKey, "event_key")
	}

	keys, err := e.o.matches.ListMatchKeys(ctx, eventKey)
	if err != nil {
		return fmt.Errorf("list matches for %s: %w", eventKey, err)
	}

	var errs []error
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		_, err := e.ValidateMatch(ctx, MatchRequest{MatchKey: key, EventKey: eventKey, SeasonYear: seasonYear})
		if err != nil {
			e.o.logger.ErrorContext(ctx, "match validation failed",
				slog.String("execution_id", e.id),
				slog.String("match_key", key),
				slog.Any("error", err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Summary returns the aggregate of everything validated so far.
func (e *Execution) Summary() ExecutionSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	summary := ExecutionSummary{
		ExecutionID:   e.id,
		Matches:       e.matches,
		Results:       e.results,
		SkippedTeams:  e.skippedTeams,
		ByOutcome:     make(map[domain.Outcome]int, len(e.byOutcome)),
		ByType:        make(map[domain.ValidationType]int, len(e.byType)),
		ScoutAccuracy: make(map[string]float64, len(e.scores)),
	}
	for k, v := range e.byOutcome {
		summary.ByOutcome[k] = v
	}
	for k, v := range e.byType {
		summary.ByType[k] = v
	}
	for scout, scores := range e.scores {
		if mean, err := stats.Mean(scores); err == nil {
			summary.ScoutAccuracy[scout] = mean
		}
	}
	return summary
}

// Scouts returns the scouts in the summary ordered by mean accuracy,
// lowest first, ties by scout id.
func (s ExecutionSummary) Scouts() []string {
	scouts := make([]string, 0, len(s.ScoutAccuracy))
	for id := range s.ScoutAccuracy {
		scouts = append(scouts, id)
	}
	sort.Slice(scouts, func(i, j int) bool {
		ai, aj := s.ScoutAccuracy[scouts[i]], s.ScoutAccuracy[scouts[j]]
		if ai != aj {
			return ai < aj
		}
		return scouts[i] < scouts[j]
	})
	return scouts
}
