package logging

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Level is the severity of a Sink event.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Fields carries event context.
type Fields map[string]any

// Sink receives structured events from the rate limiter, retrier and fetcher.
// Implementations must be safe for concurrent use.
type Sink interface {
	Log(level Level, msg string, fields Fields)
}

// NewSink adapts a zerolog.Logger to a Sink.
func NewSink(logger zerolog.Logger) Sink {
	return zerologSink{logger: logger}
}

type zerologSink struct {
	logger zerolog.Logger
}

func (s zerologSink) Log(level Level, msg string, fields Fields) {
	var event *zerolog.Event
	switch level {
	case Debug:
		event = s.logger.Debug()
	case Info:
		event = s.logger.Info()
	case Warn:
		event = s.logger.Warn()
	default:
		event = s.logger.Error()
	}

	// Sorted so output is stable across runs.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := fields[k].(type) {
		case error:
			event = event.AnErr(k, v)
		default:
			event = event.Interface(k, v)
		}
	}
	event.Msg(msg)
}

// Nop returns a Sink that discards every event.
func Nop() Sink {
	return nopSink{}
}

type nopSink struct{}

func (nopSink) Log(Level, string, Fields) {}

// OrNop returns s, or a no-op sink when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop()
	}
	return s
}

// Event is one record captured by a Recorder.
type Event struct {
	Level   Level
	Message string
	Fields  Fields
}

// Recorder is an in-memory Sink, mostly useful in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Log implements Sink.
func (r *Recorder) Log(level Level, msg string, fields Fields) {
	copied := make(Fields, len(fields))
	for k, v := range fields {
		copied[k] = v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Level: level, Message: msg, Fields: copied})
}

// Events returns a snapshot of all recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Messages returns the messages of all events at the given level.
func (r *Recorder) Messages(level Level) []string {
	var out []string
	for _, e := range r.Events() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// Count returns how many events carry msg.
func (r *Recorder) Count(msg string) int {
	n := 0
	for _, e := range r.Events() {
		if e.Message == msg {
			n++
		}
	}
	return n
}
