package gateway

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Agent is the collaborator the gateway invokes for every event. One
// Gateway serializes all calls to one Agent: priority queue dispatch is
// always single-consumer.
type Agent interface {
	Chat(ctx context.Context, message string, opts ChatOptions) (string, error)
}

// ChatOptions mirrors the subset of pkg/agent.ChatOptions the gateway needs
// to pass through from an Event, kept separate so this package does not
// import pkg/agent for a handful of field names.
type ChatOptions struct {
	Mode     string
	CallType string
	Channel  string
}

// Handler processes a fire-and-forget event's response. Returning an error
// only gets logged — it never affects the consumer loop.
type Handler func(event *Event, response string) error

// DeadLetter records one event whose agent invocation failed on every
// attempt.
type DeadLetter struct {
	Event     *Event
	Error     string
	Timestamp time.Time
}

// Config controls one Gateway's behavior.
type Config struct {
	// Capacity bounds the queue; 0 uses DefaultCapacity.
	Capacity int
	// DeadLetterLimit bounds the dead-letter list; 0 uses
	// DefaultDeadLetterLimit. Oldest entries are dropped once the cap is
	// reached.
	DeadLetterLimit int
	Log             *slog.Logger
}

// DefaultCapacity is the queue bound used when Config.Capacity is unset.
const DefaultCapacity = 100

// DefaultDeadLetterLimit bounds the dead-letter list when Config.DeadLetterLimit is unset.
const DefaultDeadLetterLimit = 50

// ErrQueueFull is the error a rejected request/response event's Future
// resolves with.
var ErrQueueFull = errors.New("event queue is full — try again later")

// Gateway is a bounded priority queue with exactly one consumer, so agent
// invocations never run concurrently with each other.
type Gateway struct {
	agent           Agent
	capacity        int
	deadLetterLimit int
	log             *slog.Logger

	mu   sync.Mutex
	cond *sync.Cond
	heap eventHeap

	handlers       map[Source]Handler
	defaultHandler Handler

	deadLettersMu sync.Mutex
	deadLetters   []DeadLetter

	done chan struct{}
}

// New returns a Gateway that invokes agent for every dispatched event.
func New(agent Agent, cfg Config) *Gateway {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.DeadLetterLimit <= 0 {
		cfg.DeadLetterLimit = DefaultDeadLetterLimit
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	g := &Gateway{
		agent:           agent,
		capacity:        cfg.Capacity,
		deadLetterLimit: cfg.DeadLetterLimit,
		log:             cfg.Log,
		handlers:        make(map[Source]Handler),
	}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Submit enqueues event without blocking on consumer progress. If the
// queue is already at capacity: a request/response event's Future is
// rejected with ErrQueueFull; a fire-and-forget event is dropped silently
// with a logged warning.
func (g *Gateway) Submit(event *Event) {
	g.mu.Lock()
	if len(g.heap) >= g.capacity {
		g.mu.Unlock()
		if event.Response != nil {
			event.Response.Resolve("", ErrQueueFull)
			g.log.Warn("queue full, rejected message event", "event_id", event.ID)
		} else {
			g.log.Warn("queue full, dropped event", "event_id", event.ID, "source", string(event.Source))
		}
		return
	}
	heap.Push(&g.heap, event)
	g.mu.Unlock()
	g.cond.Signal()
}

// SetResponseHandler registers handler for fire-and-forget events from
// source. A zero-value source registers the default/fallback handler.
func (g *Gateway) SetResponseHandler(handler Handler, source Source) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if source == "" {
		g.defaultHandler = handler
		return
	}
	g.handlers[source] = handler
}

// Start spawns the single consumer goroutine.
func (g *Gateway) Start() {
	g.mu.Lock()
	if g.done != nil {
		g.mu.Unlock()
		g.log.Warn("gateway consumer already running")
		return
	}
	g.done = make(chan struct{})
	g.mu.Unlock()

	go g.consume()
	g.log.Info("gateway consumer started")
}

// Stop enqueues a sentinel at the lowest possible priority so all
// already-queued work completes first, then blocks until the consumer
// exits.
func (g *Gateway) Stop() {
	g.mu.Lock()
	if g.done == nil {
		g.mu.Unlock()
		return
	}
	heap.Push(&g.heap, &Event{Priority: sentinelPriority, Timestamp: time.Now(), sentinel: true})
	g.mu.Unlock()
	g.cond.Signal()

	<-g.done
	g.mu.Lock()
	g.done = nil
	g.mu.Unlock()
	g.log.Info("gateway consumer stopped")
}

func (g *Gateway) consume() {
	defer close(g.done)
	for {
		event := g.next()
		if event.sentinel {
			return
		}
		g.process(context.Background(), event, false)
	}
}

func (g *Gateway) next() *Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	for len(g.heap) == 0 {
		g.cond.Wait()
	}
	return heap.Pop(&g.heap).(*Event)
}

// process invokes the agent for one event and routes the result: a
// response Future is resolved directly; otherwise a registered Handler
// runs. On agent failure, scheduled/heartbeat events retry exactly once
// inline before moving to the dead-letter list; message events never
// retry, their Future simply receives the error.
func (g *Gateway) process(ctx context.Context, event *Event, isRetry bool) {
	g.log.Info("processing event", "event_id", event.ID, "source", string(event.Source))

	resp, err := g.agent.Chat(ctx, event.Message, ChatOptions{
		Mode:     event.Mode,
		CallType: event.CallType,
		Channel:  event.Channel,
	})
	if err != nil {
		g.log.Error("agent error", "event_id", event.ID, "error", err)
		switch {
		case event.Response != nil:
			event.Response.Resolve("", err)
		case !isRetry && event.retryable():
			g.log.Info("retrying event", "event_id", event.ID)
			g.process(ctx, event, true)
		default:
			g.recordDeadLetter(event, err)
		}
		return
	}

	if event.Response != nil {
		event.Response.Resolve(resp, nil)
		return
	}
	g.dispatchResponse(event, resp)
}

func (g *Gateway) recordDeadLetter(event *Event, err error) {
	g.deadLettersMu.Lock()
	g.deadLetters = append(g.deadLetters, DeadLetter{Event: event, Error: err.Error(), Timestamp: time.Now()})
	if over := len(g.deadLetters) - g.deadLetterLimit; over > 0 {
		g.deadLetters = g.deadLetters[over:]
	}
	count := len(g.deadLetters)
	g.deadLettersMu.Unlock()
	g.log.Warn("event moved to dead letter queue", "event_id", event.ID, "dead_letter_count", count)
}

func (g *Gateway) dispatchResponse(event *Event, response string) {
	g.mu.Lock()
	handler := g.handlers[event.Source]
	if handler == nil {
		handler = g.defaultHandler
	}
	g.mu.Unlock()

	if handler == nil {
		g.log.Debug("no handler for event response, discarding", "event_id", event.ID, "source", string(event.Source))
		return
	}
	if err := handler(event, response); err != nil {
		g.log.Error("response handler error", "event_id", event.ID, "error", err)
	}
}

// DeadLetterCount returns the number of events currently dead-lettered.
func (g *Gateway) DeadLetterCount() int {
	g.deadLettersMu.Lock()
	defer g.deadLettersMu.Unlock()
	return len(g.deadLetters)
}

// GetDeadLetters returns a snapshot of all dead-lettered events.
func (g *Gateway) GetDeadLetters() []DeadLetter {
	g.deadLettersMu.Lock()
	defer g.deadLettersMu.Unlock()
	out := make([]DeadLetter, len(g.deadLetters))
	copy(out, g.deadLetters)
	return out
}

// ClearDeadLetters empties the dead-letter list.
func (g *Gateway) ClearDeadLetters() {
	g.deadLettersMu.Lock()
	defer g.deadLettersMu.Unlock()
	g.deadLetters = nil
}
