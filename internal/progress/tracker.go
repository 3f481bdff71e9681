// Package progress tracks long-running tool operations by token and fans
// out notifications/progress JSON-RPC notifications to whatever transport
// is driving the session, over a bounded watermill pub/sub topic.
package progress

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/amem-mcp/amem-mcp/internal/mcptypes"
)

// notificationTopic is the single watermill topic progress notifications
// are published to; transports subscribe to it and forward messages out
// over the wire.
const notificationTopic = "progress"

// outputBuffer bounds how many pending notifications a slow subscriber can
// accumulate before Update starts dropping, per spec.md's "if full, drop
// the notification" requirement.
const outputBuffer = 64

type state struct {
	total     *float64
	current   float64
	cancelled bool
}

// Tracker holds the state of every in-flight tokened operation and
// publishes progress notifications over a bounded watermill GoChannel,
// dropping rather than blocking when a subscriber falls behind.
type Tracker struct {
	mu     sync.RWMutex
	states map[string]*state

	pubsub   *gochannel.GoChannel
	staging  chan *message.Message
	stopOnce sync.Once
	stop     chan struct{}
}

// NewTracker creates an empty tracker with its own bounded pub/sub and
// starts the background forwarder that drains staged notifications into
// it.
func NewTracker() *Tracker {
	t := &Tracker{
		states: make(map[string]*state),
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: outputBuffer},
			watermill.NopLogger{},
		),
		staging: make(chan *message.Message, outputBuffer),
		stop:    make(chan struct{}),
	}
	go t.forward()
	return t
}

// forward drains staged notifications into the watermill topic one at a
// time, so a slow publish never blocks Update. Update only ever touches
// the bounded staging channel, which drops new updates instead of
// blocking when this loop falls behind.
func (t *Tracker) forward() {
	for {
		select {
		case msg := <-t.staging:
			_ = t.pubsub.Publish(notificationTopic, msg)
		case <-t.stop:
			return
		}
	}
}

// Start allocates a new UUID v4 progress token for an operation, optionally
// with a known total.
func (t *Tracker) Start(total *float64) string {
	token := uuid.NewString()

	t.mu.Lock()
	t.states[token] = &state{total: total}
	t.mu.Unlock()

	return token
}

// Update advances the current progress for token and publishes a
// notifications/progress notification. If the notification topic's buffer
// is full, the notification is silently dropped. progress updates are
// best-effort, never a delivery guarantee.
func (t *Tracker) Update(ctx context.Context, token string, current float64) {
	t.mu.Lock()
	s, ok := t.states[token]
	if ok {
		s.current = current
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	params := mcptypes.ProgressParams{ProgressToken: token, Progress: current, Total: s.total}
	payload, err := json.Marshal(mcptypes.NewNotification("notifications/progress", params))
	if err != nil {
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)

	select {
	case t.staging <- msg:
	default:
		// Staging buffer full: the forwarder is behind, drop this update.
	}
}

// Cancel marks token's operation as cancelled. Cancelling an unknown token
// is a no-op, matching IsCancelled's "unknown token is cancelled" default.
func (t *Tracker) Cancel(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.states[token]; ok {
		s.cancelled = true
	}
}

// Complete removes token's tracked state once its operation finishes.
func (t *Tracker) Complete(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, token)
}

// IsCancelled reports whether token's operation has been cancelled. An
// unknown token (never started, or already completed/cancelled and
// cleaned up) is treated as cancelled, so a handler that raced past
// Complete never keeps working on stale progress.
func (t *Tracker) IsCancelled(token string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.states[token]
	if !ok {
		return true
	}
	return s.cancelled
}

// Subscribe returns the channel of outgoing notification payloads a
// transport should forward to its client.
func (t *Tracker) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return t.pubsub.Subscribe(ctx, notificationTopic)
}

// Close stops the forwarder goroutine and releases the underlying pub/sub
// resources.
func (t *Tracker) Close() error {
	t.stopOnce.Do(func() { close(t.stop) })
	return t.pubsub.Close()
}
