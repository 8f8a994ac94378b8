package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
	apperrors "github.com/GriffinCanCode/attention-guard/internal/errors"
	"github.com/GriffinCanCode/attention-guard/internal/metrics"
	"github.com/GriffinCanCode/attention-guard/internal/orchestrator/events"
)

// RedisOptions configures RedisStore.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	Retention time.Duration // 0 keeps everything
	KeyPrefix string
}

// RedisStore keeps frames and events as JSON members of two sorted sets
// scored by timestamp.
type RedisStore struct {
	client    *redis.Client
	framesKey string
	eventsKey string
	retention time.Duration
}

// NewRedisStore connects and pings Redis.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.Wrapf(err, apperrors.CodeUnavailable, "connect to redis %s", opts.Addr)
	}

	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{
		client:    client,
		framesKey: prefix + ":frames",
		eventsKey: prefix + ":events",
		retention: opts.Retention,
	}, nil
}

// AppendFrames adds frames in one pipeline and trims entries past retention.
func (r *RedisStore) AppendFrames(ctx context.Context, frames []attention.FrameMetrics) error {
	if len(frames) == 0 {
		return nil
	}
	members := make([]redis.Z, 0, len(frames))
	for _, f := range frames {
		data, err := json.Marshal(f)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeStorageWriteFailed, "marshal frame")
		}
		members = append(members, redis.Z{Score: f.Timestamp, Member: data})
	}
	err := r.append(ctx, r.framesKey, members, frames[len(frames)-1].Timestamp)
	metrics.ObserveStorage("append_frames", err)
	return err
}

// AppendEvents adds events in one pipeline.
func (r *RedisStore) AppendEvents(ctx context.Context, evs []events.Event) error {
	if len(evs) == 0 {
		return nil
	}
	members := make([]redis.Z, 0, len(evs))
	for _, ev := range evs {
		data, err := json.Marshal(ev)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeStorageWriteFailed, "marshal event")
		}
		members = append(members, redis.Z{Score: ev.Timestamp, Member: data})
	}
	err := r.append(ctx, r.eventsKey, members, evs[len(evs)-1].Timestamp)
	metrics.ObserveStorage("append_events", err)
	return err
}

func (r *RedisStore) append(ctx context.Context, key string, members []redis.Z, newest float64) error {
	pipe := r.client.Pipeline()
	pipe.ZAdd(ctx, key, members...)
	if r.retention > 0 {
		cutoff := newest - r.retention.Seconds()
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+formatScore(cutoff))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrapf(err, apperrors.CodeStorageWriteFailed, "append to %s", key).
			WithMetadata("count", strconv.Itoa(len(members)))
	}
	return nil
}

// Frames returns frames with start <= timestamp <= end, oldest first.
func (r *RedisStore) Frames(ctx context.Context, start, end float64) ([]attention.FrameMetrics, error) {
	raw, err := r.rangeByScore(ctx, r.framesKey, start, end)
	metrics.ObserveStorage("query_frames", err)
	if err != nil {
		return nil, err
	}
	return decodeAll[attention.FrameMetrics](raw), nil
}

// Events returns events with start <= timestamp <= end, oldest first.
func (r *RedisStore) Events(ctx context.Context, start, end float64) ([]events.Event, error) {
	raw, err := r.rangeByScore(ctx, r.eventsKey, start, end)
	metrics.ObserveStorage("query_events", err)
	if err != nil {
		return nil, err
	}
	return decodeAll[events.Event](raw), nil
}

func (r *RedisStore) rangeByScore(ctx context.Context, key string, start, end float64) ([]string, error) {
	raw, err := r.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: formatScore(start),
		Max: formatScore(end),
	}).Result()
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeStorageQueryFailed, "range %s", key)
	}
	return raw, nil
}

// Close closes the connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// decodeAll skips members that fail to decode rather than failing the whole query.
func decodeAll[T any](raw []string) []T {
	out := make([]T, 0, len(raw))
	for _, s := range raw {
		var v T
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			slog.Warn("skipping undecodable history entry", "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}
