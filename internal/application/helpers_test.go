package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ahrav/scoutval/internal/domain"
	"github.com/ahrav/scoutval/internal/ports"
)

const (
	testEventKey = "2025txhou"
	testSeason   = 2025
)

var testNow = time.Date(2025, 3, 8, 14, 30, 0, 0, time.UTC)

// memoryStore serves observations, schedules and official results from
// memory and counts reads.
type memoryStore struct {
	mu           sync.Mutex
	observations map[string][]domain.Observation
	compositions map[string]domain.AllianceComposition
	official     map[string]*domain.OfficialResult
	matchOrder   []string

	observationReads atomic.Int32
	officialReads    atomic.Int32
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		observations: make(map[string][]domain.Observation),
		compositions: make(map[string]domain.AllianceComposition),
		official:     make(map[string]*domain.OfficialResult),
	}
}

func (s *memoryStore) addMatch(matchKey string, composition domain.AllianceComposition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compositions[matchKey] = composition
	s.matchOrder = append(s.matchOrder, matchKey)
}

func (s *memoryStore) addObservation(obs domain.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observations[obs.MatchKey] = append(s.observations[obs.MatchKey], obs)
}

func (s *memoryStore) GetObservationsForMatch(_ context.Context, matchKey string) ([]domain.Observation, error) {
	s.observationReads.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Observation(nil), s.observations[matchKey]...), nil
}

func (s *memoryStore) GetAllianceComposition(_ context.Context, matchKey string) (domain.AllianceComposition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.compositions[matchKey]
	if !ok {
		return domain.AllianceComposition{}, ports.NewRepositoryError("get_alliance_composition", matchKey, ports.ErrNotFound)
	}
	return c, nil
}

func (s *memoryStore) GetOfficialResult(_ context.Context, matchKey string) (*domain.OfficialResult, error) {
	s.officialReads.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.official[matchKey], nil
}

func (s *memoryStore) ListMatchKeys(context.Context, string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.matchOrder...), nil
}

// stubStrategy returns canned results per team.
type stubStrategy struct {
	name      string
	vtype     domain.ValidationType
	results   map[int][]domain.ValidationResult
	errs      map[int]error
	cannot    map[int]bool
	calls     atomic.Int32
	inFlight  atomic.Int32
	maxFlight atomic.Int32
	delay     time.Duration

	mu   sync.Mutex
	seen []ports.ValidationContext
}

func (s *stubStrategy) Name() string                { return s.name }
func (s *stubStrategy) Type() domain.ValidationType { return s.vtype }

func (s *stubStrategy) CanValidate(_ context.Context, vctx ports.ValidationContext) bool {
	return !s.cannot[vctx.TeamNumber]
}

func (s *stubStrategy) Validate(_ context.Context, vctx ports.ValidationContext) ([]domain.ValidationResult, error) {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		current := s.maxFlight.Load()
		if n <= current || s.maxFlight.CompareAndSwap(current, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.seen = append(s.seen, vctx)
	s.mu.Unlock()

	if err := s.errs[vctx.TeamNumber]; err != nil {
		return nil, err
	}
	return s.results[vctx.TeamNumber], nil
}

// recordingSink keeps every batch it receives.
type recordingSink struct {
	mu      sync.Mutex
	batches [][]domain.ValidationResult
	err     error
}

func (s *recordingSink) Store(_ context.Context, results []domain.ValidationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, results)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

var errStoreDown = errors.New("store down")

func result(scout string, team int, score float64, outcome domain.Outcome, vtype domain.ValidationType) domain.ValidationResult {
	return domain.ValidationResult{
		ScouterID:      scout,
		TeamNumber:     team,
		AccuracyScore:  score,
		Outcome:        outcome,
		ValidationType: vtype,
	}
}
