package streams

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/scoutval/internal/domain"
	"github.com/ahrav/scoutval/internal/ports"
)

func sampleResult() domain.ValidationResult {
	return domain.ValidationResult{
		ID:               "id-1",
		ExecutionID:      "exec-1",
		ScouterID:        "scout-a",
		MatchKey:         "2025txhou_qm12",
		TeamNumber:       254,
		EventKey:         "2025txhou",
		SeasonYear:       2025,
		FieldPath:        "tba.teleopCoralCount",
		ExpectedValue:    10.0,
		ActualValue:      4.0,
		AccuracyScore:    0.9,
		Outcome:          domain.OutcomeCloseMatch,
		ConfidenceLevel:  0.6,
		ValidationType:   domain.ValidationTypeTBA,
		ValidationMethod: "TBAValidationStrategy",
		CreatedAt:        time.Date(2025, 3, 8, 14, 30, 0, 0, time.UTC),
	}
}

func TestResultPublisher_StreamKey(t *testing.T) {
	assert.Equal(t, "scoutval.results.2025txhou", NewResultPublisher(nil, "", 0).StreamKey("2025txhou"))
	assert.Equal(t, "frc.2025txhou", NewResultPublisher(nil, "frc", 0).StreamKey("2025txhou"))
}

func TestResultPublisher_XAddArgs(t *testing.T) {
	p := NewResultPublisher(nil, "", 10000)
	args, err := p.xaddArgs(sampleResult())
	require.NoError(t, err)

	assert.Equal(t, "scoutval.results.2025txhou", args.Stream)
	assert.Equal(t, int64(10000), args.MaxLen)
	assert.True(t, args.Approx)

	values, ok := args.Values.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "close_match", values["outcome"])
	assert.Equal(t, "scout-a", values["scouter_id"])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &decoded))
	assert.Equal(t, "id-1", decoded["validation_id"])
	assert.Equal(t, 0.9, decoded["accuracy_score"])

	unbounded, err := NewResultPublisher(nil, "", 0).xaddArgs(sampleResult())
	require.NoError(t, err)
	assert.Zero(t, unbounded.MaxLen)
}

func TestResultPublisher_XAddArgs_NonFinite(t *testing.T) {
	res := sampleResult()
	res.ExpectedValue = math.Inf(1)
	res.ActualValue = math.NaN()

	args, err := NewResultPublisher(nil, "", 0).xaddArgs(res)
	require.NoError(t, err)

	values, ok := args.Values.(map[string]any)
	require.True(t, ok)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &decoded))
	assert.Equal(t, "+Inf", decoded["expected_value"])
	assert.Equal(t, "NaN", decoded["actual_value"])
}

func TestResultPublisher_Store(t *testing.T) {
	// Nothing listens on port 1, so the pipeline fails fast.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	p := NewResultPublisher(client, "", 0)

	require.NoError(t, p.Store(context.Background(), nil), "empty batch never touches redis")

	err := p.Store(context.Background(), []domain.ValidationResult{sampleResult(), sampleResult()})
	require.Error(t, err)
	var sinkErr *ports.SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, SinkName, sinkErr.Sink)
	assert.Equal(t, 2, sinkErr.Count)
}
