package consolidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/scoutval/internal/domain"
)

func newTestConsolidator(t *testing.T) *Consolidator {
	t.Helper()
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	return c
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{MinObservedFraction: 0})
	assert.Error(t, err)

	_, err = New(Config{MinObservedFraction: 1.5})
	assert.Error(t, err)
}

func TestConsolidate(t *testing.T) {
	tests := []struct {
		name     string
		payloads []domain.Payload
		want     domain.Payload
	}{
		{
			name:     "empty input",
			payloads: nil,
			want:     domain.Payload{},
		},
		{
			name: "boolean majority",
			payloads: []domain.Payload{
				{"left_starting_zone": true},
				{"left_starting_zone": true},
				{"left_starting_zone": false},
			},
			want: domain.Payload{"left_starting_zone": true},
		},
		{
			name: "boolean tie resolves false",
			payloads: []domain.Payload{
				{"parked": true},
				{"parked": false},
			},
			want: domain.Payload{"parked": false},
		},
		{
			name: "numeric median",
			payloads: []domain.Payload{
				{"coral_scored_L1": 3},
				{"coral_scored_L1": 9.0},
				{"coral_scored_L1": 4},
			},
			want: domain.Payload{"coral_scored_L1": 4.0},
		},
		{
			name: "even count median averages",
			payloads: []domain.Payload{
				{"coral_scored_L2": 2},
				{"coral_scored_L2": 3},
				{"coral_scored_L2": 5},
				{"coral_scored_L2": 7},
			},
			want: domain.Payload{"coral_scored_L2": 4.0},
		},
		{
			name: "category mode with deterministic tie",
			payloads: []domain.Payload{
				{"cage_level": "shallow", "climb": "deep"},
				{"cage_level": "shallow", "climb": "none"},
				{"cage_level": "deep"},
			},
			want: domain.Payload{"cage_level": "shallow", "climb": "deep"},
		},
		{
			name: "sparse field dropped",
			payloads: []domain.Payload{
				{"coral_scored_L1": 1, "defense_rating": 4},
				{"coral_scored_L1": 1},
				{"coral_scored_L1": 2},
			},
			want: domain.Payload{"coral_scored_L1": 1.0},
		},
		{
			name: "metadata and nil values skipped",
			payloads: []domain.Payload{
				{"schema_version": 3, "notes": "fast", "algae": nil},
				{"schema_version": 3, "notes": "slow", "algae": nil},
			},
			want: domain.Payload{},
		},
	}

	c := newTestConsolidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Consolidate(tt.payloads))
		})
	}
}
