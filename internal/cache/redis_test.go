// internal/cache/redis_test.go
package cache

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/typerace/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a reachable Redis; set REDIS_ADDR to point somewhere other than localhost.
func TestPublishResult(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx := context.Background()
	rdb, err := ConnectRedis(ctx, addr, 0)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer rdb.Close()

	queue := "typerace_results_test_" + uuid.NewString()
	defer rdb.Del(ctx, queue)

	pub := NewResultPublisher(rdb, queue)
	want := models.RaceResult{
		SessionID: uuid.New(),
		LobbyCode: "ABC123",
		Reason:    models.EndDeadline,
		StartTime: time.Now().UTC().Truncate(time.Second),
		EndTime:   time.Now().UTC().Truncate(time.Second).Add(30 * time.Second),
		Results: []models.Result{
			{Username: "alice", WPM: 40, Score: 20},
			{Username: "bob"},
		},
	}
	require.NoError(t, pub.PublishResult(ctx, want))

	raw, err := rdb.LPop(ctx, queue).Bytes()
	require.NoError(t, err)
	var got models.RaceResult
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, want.SessionID, got.SessionID)
	assert.Equal(t, want.Results, got.Results)
	assert.True(t, want.EndTime.Equal(got.EndTime))
}

func TestNewResultPublisherDefaultsQueue(t *testing.T) {
	assert.Equal(t, DefaultQueueName, NewResultPublisher(nil, "").queue)
}
