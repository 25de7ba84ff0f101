// Package events broadcasts loop progress to subscribers. A bounded ring
// buffer keeps recent history so observers attached mid-session can catch
// up.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Type classifies an event.
type Type string

const (
	TypeSessionStarted  Type = "session.started"
	TypeSessionFinished Type = "session.finished"
	TypeIteration       Type = "iteration.started"
	TypeReflection      Type = "reflection.parsed"
	TypeToolStarted     Type = "tool.started"
	TypeToolFinished    Type = "tool.finished"
	TypeCheckpoint      Type = "loop.checkpoint"
	TypeStopRequested   Type = "loop.stop_requested"
)

// Event is one observation of loop progress.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Iteration int       `json:"iteration,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Populated per type. Assessment and Progress carry reflection
	// results; ToolName and ElapsedMs carry tool execution results.
	Assessment string  `json:"assessment,omitempty"`
	Progress   int     `json:"progress,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	ToolName   string  `json:"tool_name,omitempty"`
	ElapsedMs  int64   `json:"elapsed_ms,omitempty"`
	Detail     string  `json:"detail,omitempty"`
}

// Handler processes a single event.
type Handler func(Event)

// Filter decides whether a subscription receives an event.
type Filter func(Event) bool

type subscription struct {
	handler Handler
	filter  Filter
	types   map[Type]bool
}

// Emitter fans events out to subscribers and buffers recent history.
// Safe for concurrent use.
type Emitter struct {
	mu        sync.RWMutex
	subs      map[string]*subscription
	buffer    []Event
	bufferCap int
	sessionID string
	logger    *zap.Logger
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithBufferSize bounds the history ring. Default 256.
func WithBufferSize(n int) Option {
	return func(e *Emitter) {
		if n > 0 {
			e.bufferCap = n
		}
	}
}

// WithSessionID stamps every event with the session.
func WithSessionID(id string) Option {
	return func(e *Emitter) { e.sessionID = id }
}

// WithLogger sets the logger used for handler panic reports.
func WithLogger(l *zap.Logger) Option {
	return func(e *Emitter) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEmitter creates an Emitter.
func NewEmitter(opts ...Option) *Emitter {
	e := &Emitter{
		subs:      make(map[string]*subscription),
		bufferCap: 256,
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	e.buffer = make([]Event, 0, e.bufferCap)
	return e
}

// Subscribe registers a handler. With no types it receives everything.
// Returns the subscription id for Unsubscribe.
func (e *Emitter) Subscribe(h Handler, types ...Type) string {
	return e.SubscribeWithFilter(h, nil, types...)
}

// SubscribeWithFilter registers a handler gated by a custom filter.
func (e *Emitter) SubscribeWithFilter(h Handler, f Filter, types ...Type) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	sub := &subscription{handler: h, filter: f}
	if len(types) > 0 {
		sub.types = make(map[Type]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}
	id := uuid.NewString()
	e.subs[id] = sub
	return id
}

// Unsubscribe removes a subscription. Reports whether it existed.
func (e *Emitter) Unsubscribe(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.subs[id]; !ok {
		return false
	}
	delete(e.subs, id)
	return true
}

// Emit stamps, buffers, and delivers the event. Handler panics are
// recovered so one bad observer cannot take down the loop.
func (e *Emitter) Emit(ev Event) {
	ev.ID = uuid.NewString()
	ev.Timestamp = time.Now().UTC()

	e.mu.Lock()
	if ev.SessionID == "" {
		ev.SessionID = e.sessionID
	}
	if len(e.buffer) >= e.bufferCap {
		e.buffer = e.buffer[1:]
	}
	e.buffer = append(e.buffer, ev)
	subs := make([]*subscription, 0, len(e.subs))
	for _, s := range e.subs {
		subs = append(subs, s)
	}
	e.mu.Unlock()

	for _, s := range subs {
		if s.types != nil && !s.types[ev.Type] {
			continue
		}
		if s.filter != nil && !s.filter(ev) {
			continue
		}
		e.invoke(s.handler, ev)
	}
}

func (e *Emitter) invoke(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event handler panicked",
				zap.String("event_type", string(ev.Type)),
				zap.Any("panic", r))
		}
	}()
	h(ev)
}

// Buffer returns a copy of the buffered events, oldest first.
func (e *Emitter) Buffer() []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Event, len(e.buffer))
	copy(out, e.buffer)
	return out
}

// BufferByType returns buffered events of one type, oldest first.
func (e *Emitter) BufferByType(t Type) []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Event
	for _, ev := range e.buffer {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
