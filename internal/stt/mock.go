package stt

import (
	"context"
	"sync"
)

// MockRecognizer is a scripted recognizer for tests and for running the
// assistant without a realtime speech backend. Each Start hands out a
// session whose events are fed manually.
type MockRecognizer struct {
	mu       sync.Mutex
	sessions []*MockSession
}

func NewMockRecognizer() *MockRecognizer { return &MockRecognizer{} }

func (r *MockRecognizer) Start(_ context.Context) (Session, <-chan Event, error) {
	events := make(chan Event, 64)
	s := &MockSession{events: events}
	r.mu.Lock()
	r.sessions = append(r.sessions, s)
	r.mu.Unlock()
	return s, events, nil
}

// Sessions returns every session started so far, in order.
func (r *MockRecognizer) Sessions() []*MockSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*MockSession, len(r.sessions))
	copy(out, r.sessions)
	return out
}

// Current returns the most recently started session, or nil.
func (r *MockRecognizer) Current() *MockSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) == 0 {
		return nil
	}
	return r.sessions[len(r.sessions)-1]
}

type MockSession struct {
	mu      sync.Mutex
	events  chan Event
	closed  bool
	stopped bool
	aborted bool
}

func (s *MockSession) Stop() {
	s.mu.Lock()
	already := s.stopped
	s.stopped = true
	s.mu.Unlock()
	if already {
		return
	}
	s.Emit(Event{Type: EventEnd})
	s.CloseEvents()
}

func (s *MockSession) Abort() {
	s.mu.Lock()
	already := s.aborted
	s.aborted = true
	s.mu.Unlock()
	if already {
		return
	}
	s.Emit(Event{Type: EventError, Code: CodeAborted})
	s.CloseEvents()
}

func (s *MockSession) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped || s.aborted
}

// Emit feeds one event to the session consumer.
func (s *MockSession) Emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- ev
}

// FeedFinal emits a finalized recognition segment.
func (s *MockSession) FeedFinal(text string) {
	s.Emit(Event{Type: EventFinal, Text: text})
}

// FeedError emits an engine error with the given code.
func (s *MockSession) FeedError(code string) {
	s.Emit(Event{Type: EventError, Code: code})
}

// End emits a natural end-of-recognition and closes the event channel.
func (s *MockSession) End() {
	s.Emit(Event{Type: EventEnd})
	s.CloseEvents()
}

// CloseEvents closes the event channel; safe to call more than once.
func (s *MockSession) CloseEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}
