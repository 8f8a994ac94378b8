package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
	apperrors "github.com/GriffinCanCode/attention-guard/internal/errors"
	"github.com/GriffinCanCode/attention-guard/internal/orchestrator/events"
)

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "1700000000.125", formatScore(1700000000.125))
	assert.Equal(t, "-5", formatScore(-5))
}

func TestDecodeAllSkipsGarbage(t *testing.T) {
	raw := []string{
		`{"timestamp":1,"status":"AT_SCREEN","attention_percent":100}`,
		`not json`,
		`{"timestamp":2,"status":"LOOKING_AWAY"}`,
	}
	got := decodeAll[attention.FrameMetrics](raw)
	if assert.Len(t, got, 2) {
		assert.Equal(t, attention.AtScreen, got[0].Status)
		assert.Equal(t, attention.LookingAway, got[1].Status)
	}
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisStore(ctx, RedisOptions{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnavailable))
}

// Set REDIS_TEST_ADDR to run against a live server.
func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	store, err := NewRedisStore(ctx, RedisOptions{
		Addr:      addr,
		Retention: time.Minute,
		KeyPrefix: fmt.Sprintf("attention-test-%d", time.Now().UnixNano()),
	})
	require.NoError(t, err)
	defer func() {
		_ = store.client.Del(ctx, store.framesKey, store.eventsKey).Err()
		_ = store.Close()
	}()

	require.NoError(t, store.AppendFrames(ctx, []attention.FrameMetrics{
		{Timestamp: 1000, Status: attention.AtScreen},
		{Timestamp: 1030, Status: attention.LookingAway},
	}))
	// Retention is measured from the newest frame, so 1000 falls out.
	require.NoError(t, store.AppendFrames(ctx, []attention.FrameMetrics{
		{Timestamp: 1070, Status: attention.NoFace},
	}))
	require.NoError(t, store.AppendEvents(ctx, []events.Event{{Timestamp: 1030, Type: events.AwayStart}}))

	frames, err := store.Frames(ctx, 0, 2000)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, 1030.0, frames[0].Timestamp)
	assert.Equal(t, attention.NoFace, frames[1].Status)

	evs, err := store.Events(ctx, 1030, 1030)
	require.NoError(t, err)
	assert.Len(t, evs, 1)
}
