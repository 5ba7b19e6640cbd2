// Package streams publishes validation results to Redis Streams for
// downstream reliability scoring.
package streams

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/scoutval/internal/domain"
	"github.com/ahrav/scoutval/internal/ports"
)

var _ ports.ResultSink = (*ResultPublisher)(nil)

// SinkName identifies the stream sink in errors and logs.
const SinkName = "redis_stream"

// DefaultStreamPrefix is prepended to the event key to form the stream name.
const DefaultStreamPrefix = "scoutval.results"

// ResultPublisher publishes validation results to one Redis stream per
// event. Stream key format: {prefix}.{event_key}.
type ResultPublisher struct {
	redis  redis.Cmdable
	prefix string
	maxLen int64
}

// NewResultPublisher creates a publisher. maxLen caps each stream with
// approximate trimming; zero leaves streams unbounded.
func NewResultPublisher(client redis.Cmdable, prefix string, maxLen int64) *ResultPublisher {
	if prefix == "" {
		prefix = DefaultStreamPrefix
	}
	return &ResultPublisher{redis: client, prefix: prefix, maxLen: maxLen}
}

// StreamKey returns the stream a result for eventKey is published to.
func (p *ResultPublisher) StreamKey(eventKey string) string {
	return fmt.Sprintf("%s.%s", p.prefix, eventKey)
}

// Store implements ports.ResultSink. Results are published in a single
// pipeline.
func (p *ResultPublisher) Store(ctx context.Context, results []domain.ValidationResult) error {
	if len(results) == 0 {
		return nil
	}

	pipe := p.redis.Pipeline()
	for _, res := range results {
		args, err := p.xaddArgs(res)
		if err != nil {
			return &ports.SinkError{Sink: SinkName, Count: len(results), Err: err}
		}
		pipe.XAdd(ctx, args)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return &ports.SinkError{
			Sink:  SinkName,
			Count: len(results),
			Err:   fmt.Errorf("error executing publish pipeline: %w", err),
		}
	}
	return nil
}

func (p *ResultPublisher) xaddArgs(res domain.ValidationResult) (*redis.XAddArgs, error) {
	data, err := json.Marshal(res.Encodable())
	if err != nil {
		return nil, fmt.Errorf("error marshaling validation result %s: %w", res.ID, err)
	}

	args := &redis.XAddArgs{
		Stream: p.StreamKey(res.EventKey),
		Values: map[string]any{
			"validation_id": res.ID,
			"scouter_id":    res.ScouterID,
			"outcome":       string(res.Outcome),
			"data":          string(data),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	return args, nil
}
