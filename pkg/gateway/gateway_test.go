package gateway

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAgent struct {
	mu    sync.Mutex
	order []string

	fail func(message string) error
}

func (a *recordingAgent) Chat(ctx context.Context, message string, opts ChatOptions) (string, error) {
	a.mu.Lock()
	a.order = append(a.order, message)
	a.mu.Unlock()
	if a.fail != nil {
		if err := a.fail(message); err != nil {
			return "", err
		}
	}
	return "ok: " + message, nil
}

func TestPriorityPreemptsFIFO(t *testing.T) {
	agent := &recordingAgent{}
	gw := New(agent, Config{})

	heartbeat := NewHeartbeatEvent("heartbeat-msg", "daily", "")
	heartbeat.Timestamp = time.Unix(1, 0)
	scheduled := NewScheduledEvent("scheduled-msg", "job-1", "", "")
	scheduled.Timestamp = time.Unix(1, 500000000)
	message := NewMessageEvent("message-msg", "user-1", "chat")
	message.Timestamp = time.Unix(2, 0)

	gw.Submit(heartbeat)
	gw.Submit(scheduled)
	gw.Submit(message)

	gw.Start()
	_, err := message.Response.Wait(context.Background())
	require.NoError(t, err)
	gw.Stop()

	agent.mu.Lock()
	defer agent.mu.Unlock()
	assert.Equal(t, []string{"message-msg", "scheduled-msg", "heartbeat-msg"}, agent.order)
}

func TestDeadLetterAfterOneRetry(t *testing.T) {
	attempt := 0
	agent := &recordingAgent{
		fail: func(message string) error {
			attempt++
			return errors.New("boom-" + strconv.Itoa(attempt))
		},
	}
	gw := New(agent, Config{})

	gw.SetResponseHandler(func(event *Event, response string) error {
		return nil
	}, SourceScheduled)

	ev := NewScheduledEvent("do-the-thing", "job-1", "", "")
	gw.Submit(ev)
	gw.Start()
	gw.Stop()

	require.Equal(t, 1, gw.DeadLetterCount())
	dl := gw.GetDeadLetters()[0]
	assert.Equal(t, ev.ID, dl.Event.ID)
	assert.Equal(t, "boom-2", dl.Error)
}

func TestQueueFullRejectsMessageEvent(t *testing.T) {
	agent := &recordingAgent{}
	gw := New(agent, Config{Capacity: 1})

	// Fill the queue without starting the consumer so nothing drains.
	gw.Submit(NewHeartbeatEvent("first", "daily", ""))

	msg := NewMessageEvent("second", "user-1", "chat")
	gw.Submit(msg)

	_, err := msg.Response.Wait(context.Background())
	assert.ErrorIs(t, err, ErrQueueFull)
}
