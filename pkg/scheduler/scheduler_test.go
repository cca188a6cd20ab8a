package scheduler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/roshni/pkg/gateway"
)

func TestLoadConfigDisabledRegistersNothing(t *testing.T) {
	var mu sync.Mutex
	var submitted []*gateway.Event

	s, err := New(func(e *gateway.Event) {
		mu.Lock()
		defer mu.Unlock()
		submitted = append(submitted, e)
	}, "UTC", nil)
	require.NoError(t, err)

	s.LoadConfig(Config{Enabled: false, Heartbeat: HeartbeatConfig{Enabled: true, Cron: "* * * * *"}})
	require.NoError(t, s.Start())
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, submitted)
	assert.Empty(t, s.heartbeats)
	assert.Empty(t, s.jobs)
}

func TestFireHeartbeatSubmitsEvent(t *testing.T) {
	var mu sync.Mutex
	var submitted []*gateway.Event

	s, err := New(func(e *gateway.Event) {
		mu.Lock()
		defer mu.Unlock()
		submitted = append(submitted, e)
	}, "UTC", nil)
	require.NoError(t, err)

	s.AddHeartbeat(Heartbeat{Cron: "* * * * * *", Prompt: "[HEARTBEAT]"})
	s.fireHeartbeat(s.heartbeats[0])

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, submitted, 1)
	assert.Equal(t, gateway.SourceHeartbeat, submitted[0].Source)
	assert.Equal(t, "[HEARTBEAT]", submitted[0].Message)
}

func TestFireHeartbeatUsesPromptFuncOverride(t *testing.T) {
	var mu sync.Mutex
	var submitted []*gateway.Event

	s, err := New(func(e *gateway.Event) {
		mu.Lock()
		defer mu.Unlock()
		submitted = append(submitted, e)
	}, "UTC", nil)
	require.NoError(t, err)

	s.AddHeartbeat(Heartbeat{Cron: "@every 1m", PromptFunc: func() string { return "dynamic" }})
	s.fireHeartbeat(s.heartbeats[0])

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, submitted, 1)
	assert.Equal(t, "dynamic", submitted[0].Message)
}
