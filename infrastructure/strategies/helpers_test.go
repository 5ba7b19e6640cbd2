package strategies

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ahrav/scoutval/internal/domain"
)

// fakeObservationRepo serves observations from memory and counts calls.
type fakeObservationRepo struct {
	observations []domain.Observation
	err          error
	calls        atomic.Int32
}

func (f *fakeObservationRepo) GetObservationsForMatch(_ context.Context, matchKey string) ([]domain.Observation, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Observation, 0, len(f.observations))
	for _, obs := range f.observations {
		if obs.MatchKey == matchKey {
			out = append(out, obs)
		}
	}
	return out, nil
}

// fakeMatchRepo serves one match's composition and official result.
type fakeMatchRepo struct {
	composition domain.AllianceComposition
	official    *domain.OfficialResult
	officialErr error

	officialCalls    atomic.Int32
	compositionCalls atomic.Int32
}

func (f *fakeMatchRepo) GetAllianceComposition(context.Context, string) (domain.AllianceComposition, error) {
	f.compositionCalls.Add(1)
	return f.composition, nil
}

func (f *fakeMatchRepo) GetOfficialResult(context.Context, string) (*domain.OfficialResult, error) {
	f.officialCalls.Add(1)
	return f.official, f.officialErr
}

func (f *fakeMatchRepo) ListMatchKeys(context.Context, string) ([]string, error) {
	return []string{testMatchKey}, nil
}

// sequentialIDs returns deterministic ids: id-1, id-2, ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

var fixedNow = time.Date(2025, 3, 8, 14, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

const (
	testMatchKey = "2025txhou_qm12"
	testEventKey = "2025txhou"
	testSeason   = 2025
)
