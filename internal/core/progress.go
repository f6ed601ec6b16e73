package core

import (
	"errors"
	"sync"

	"docchat.dev/pdf-rag/internal/store"
)

// ErrStreamClosed is returned by the pipeline once its progress consumer is gone.
var ErrStreamClosed = errors.New("progress stream is no longer open")

// ProgressEvent is one frame of an ingestion progress stream. Success is nil on
// intermediate events and set on the terminal one.
type ProgressEvent struct {
	Message  string            `json:"message"`
	Progress int               `json:"progress"`
	Success  *bool             `json:"success,omitempty"`
	Chat     *store.ChatDetail `json:"chat,omitempty"`
	Error    string            `json:"error,omitempty"`
	Code     string            `json:"code,omitempty"`
	Detail   string            `json:"detail,omitempty"`
}

func (e ProgressEvent) Terminal() bool { return e.Success != nil }

// ProgressSink receives intermediate progress. Progress reports whether the
// consumer still wants events; false means the pipeline should stop.
type ProgressSink interface {
	Progress(message string, percent int) bool
}

type noopSink struct{}

func (noopSink) Progress(string, int) bool { return true }

// NoopProgress discards every event and never asks the pipeline to stop.
var NoopProgress ProgressSink = noopSink{}

type StreamState int

const (
	StreamOpen StreamState = iota
	StreamFinalized
	StreamAbandoned
)

func (s StreamState) String() string {
	switch s {
	case StreamOpen:
		return "open"
	case StreamFinalized:
		return "finalized"
	case StreamAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// ProgressStream carries the events of one ingestion to one consumer. All state
// changes happen under mu. Percentages never decrease, at most one terminal
// event is sent and the events channel is closed exactly once, either after the
// terminal event or on Abandon.
type ProgressStream struct {
	mu        sync.Mutex
	state     StreamState
	last      int
	events    chan ProgressEvent
	abandoned chan struct{}
	once      sync.Once
}

func NewProgressStream(buffer int) *ProgressStream {
	if buffer < 0 {
		buffer = 0
	}
	return &ProgressStream{
		events:    make(chan ProgressEvent, buffer),
		abandoned: make(chan struct{}),
	}
}

// Events is read by the transport until it is closed.
func (s *ProgressStream) Events() <-chan ProgressEvent { return s.events }

// Abandoned is closed once the consumer has gone away.
func (s *ProgressStream) Abandoned() <-chan struct{} { return s.abandoned }

func (s *ProgressStream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress sends an intermediate event. The percentage is clamped so it never
// goes below the last one sent, nor above 100.
func (s *ProgressStream) Progress(message string, percent int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StreamOpen {
		return false
	}
	s.last = clampPercent(percent, s.last)
	return s.send(ProgressEvent{Message: message, Progress: s.last})
}

// Succeed sends the terminal success event and closes the stream. Only the first
// call to Succeed or Fail has any effect.
func (s *ProgressStream) Succeed(message string, chat *store.ChatDetail) bool {
	ok := true
	return s.finalize(ProgressEvent{Message: message, Progress: 100, Success: &ok, Chat: chat})
}

// Fail sends the terminal failure event, keeping the last percentage.
func (s *ProgressStream) Fail(reason, code, detail string) bool {
	ok := false
	return s.finalize(ProgressEvent{Message: reason, Success: &ok, Error: reason, Code: code, Detail: detail})
}

func (s *ProgressStream) finalize(ev ProgressEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StreamOpen {
		return false
	}
	if ev.Progress == 0 {
		ev.Progress = s.last
	}
	s.last = clampPercent(ev.Progress, s.last)
	ev.Progress = s.last

	sent := s.send(ev)
	if !sent {
		// the consumer left while we were waiting; Abandon closes the channel
		return false
	}
	s.state = StreamFinalized
	close(s.events)
	return true
}

// Abandon marks the consumer as gone. No further events are sent, no terminal
// event is produced and the channel is closed if it is still open.
func (s *ProgressStream) Abandon() {
	s.once.Do(func() { close(s.abandoned) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StreamOpen {
		s.state = StreamAbandoned
		close(s.events)
	}
}

// send must be called with mu held. A blocked send is released by Abandon.
func (s *ProgressStream) send(ev ProgressEvent) bool {
	select {
	case <-s.abandoned:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-s.abandoned:
		return false
	}
}

func clampPercent(percent, floor int) int {
	if percent > 100 {
		percent = 100
	}
	if percent < floor {
		percent = floor
	}
	return percent
}
