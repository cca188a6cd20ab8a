// Package gateway serializes events from chat, scheduler, and webhook
// sources through a single bounded priority queue ahead of one consumer,
// so only one agent invocation ever runs at a time.
package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Source is the origin of an Event.
type Source string

const (
	SourceMessage   Source = "message"
	SourceHeartbeat Source = "heartbeat"
	SourceScheduled Source = "scheduled"
	SourceWebhook   Source = "webhook"
	SourceBoot      Source = "boot"
)

// Priority orders consumption: lower value is consumed first.
type Priority int

const (
	PriorityHigh   Priority = 0
	PriorityNormal Priority = 10
	PriorityLow    Priority = 20
)

// sentinelPriority is lower-ranked than any real event, so Stop's sentinel
// only drains after everything already queued.
const sentinelPriority Priority = 1 << 30

// Event is one transit unit through the gateway's priority queue.
type Event struct {
	ID        string
	Source    Source
	Priority  Priority
	Timestamp time.Time

	Message  string
	CallType string
	Channel  string
	Mode     string
	UserID   string
	Metadata map[string]any

	// Response is non-nil only for request/response events; fire-and-forget
	// events route through a registered Handler instead.
	Response *Future

	sentinel bool
}

// NewMessageEvent builds a HIGH-priority, request/response event with a
// Future the caller awaits for the agent's reply.
func NewMessageEvent(text, userID, channel string) *Event {
	return &Event{
		ID:        uuid.NewString()[:12],
		Source:    SourceMessage,
		Priority:  PriorityHigh,
		Timestamp: time.Now(),
		Message:   text,
		Channel:   channel,
		UserID:    userID,
		Metadata:  map[string]any{},
		Response:  NewFuture(),
	}
}

// NewHeartbeatEvent builds a LOW-priority, fire-and-forget event.
func NewHeartbeatEvent(prompt, heartbeatType, channel string) *Event {
	if channel == "" {
		channel = "heartbeat"
	}
	return &Event{
		ID:        uuid.NewString()[:12],
		Source:    SourceHeartbeat,
		Priority:  PriorityLow,
		Timestamp: time.Now(),
		Message:   prompt,
		CallType:  "heartbeat",
		Channel:   channel,
		Metadata:  map[string]any{"heartbeat_type": heartbeatType},
	}
}

// NewScheduledEvent builds a NORMAL-priority, fire-and-forget event for a
// named cron job.
func NewScheduledEvent(prompt, jobID, callType, channel string) *Event {
	if callType == "" {
		callType = "scheduled"
	}
	if channel == "" {
		channel = "scheduled"
	}
	return &Event{
		ID:        uuid.NewString()[:12],
		Source:    SourceScheduled,
		Priority:  PriorityNormal,
		Timestamp: time.Now(),
		Message:   prompt,
		CallType:  callType,
		Channel:   channel,
		Metadata:  map[string]any{"job_id": jobID},
	}
}

// NewWebhookEvent builds a NORMAL-priority, fire-and-forget event for an
// inbound webhook delivery.
func NewWebhookEvent(prompt, channel string, metadata map[string]any) *Event {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Event{
		ID:        uuid.NewString()[:12],
		Source:    SourceWebhook,
		Priority:  PriorityNormal,
		Timestamp: time.Now(),
		Message:   prompt,
		CallType:  "webhook",
		Channel:   channel,
		Metadata:  metadata,
	}
}

// retryable reports whether the gateway retries this event once inline on
// agent failure — scheduled and heartbeat call types only. Checked against
// CallType rather than Source, since a webhook can carry
// call_type=scheduled.
func (e *Event) retryable() bool {
	return e.CallType == "scheduled" || e.CallType == "heartbeat"
}

// Future is a single-resolution request/response slot, the Go analogue of
// the Python implementation's asyncio.Future.
type Future struct {
	ch chan futureResult
}

type futureResult struct {
	text string
	err  error
}

// NewFuture returns an unresolved Future.
func NewFuture() *Future {
	return &Future{ch: make(chan futureResult, 1)}
}

// Resolve completes the future exactly once; later calls are no-ops.
func (f *Future) Resolve(text string, err error) {
	select {
	case f.ch <- futureResult{text: text, err: err}:
	default:
	}
}

// Wait blocks until the future resolves or ctx is cancelled.
func (f *Future) Wait(ctx context.Context) (string, error) {
	select {
	case r := <-f.ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
