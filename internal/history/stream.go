package history

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamSink publishes each record to a Redis stream for downstream consumers.
type StreamSink struct {
	client *redis.Client
	stream string
}

// NewStreamSink connects to redisURL (redis://host:port/db).
func NewStreamSink(ctx context.Context, redisURL, stream string) (*StreamSink, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewStreamSinkWithClient(client, stream), nil
}

func NewStreamSinkWithClient(client *redis.Client, stream string) *StreamSink {
	return &StreamSink{client: client, stream: stream}
}

func (s *StreamSink) Name() string { return "stream" }

// StreamValues flattens a record into stream field values.
func StreamValues(r Record) map[string]interface{} {
	return map[string]interface{}{
		"id":                r.ID.String(),
		"dispatched_at":     r.DispatchedAt.UTC().Format(time.RFC3339),
		"event_date":        r.EventDate,
		"venue_id":          r.VenueID,
		"venue_name":        r.VenueName,
		"race_number":       strconv.Itoa(r.Number),
		"deadline_time":     r.DeadlineTime,
		"minutes_remaining": strconv.FormatFloat(r.MinutesRemaining, 'f', 2, 64),
		"mode":              r.Mode,
	}
}

func (s *StreamSink) Record(ctx context.Context, r Record) error {
	_, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: StreamValues(r),
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd to stream: %w", err)
	}
	return nil
}

func (s *StreamSink) Close() error {
	return s.client.Close()
}
