package capture

import (
	"context"
	"io"
	"sync"
	"time"
)

// MockMicrophone serves canned frames at a fixed cadence. It doubles as the
// default microphone when no capture hardware is wired up, and records
// whether every opened stream was closed again.
type MockMicrophone struct {
	mu         sync.Mutex
	frames     [][]byte
	frameEvery time.Duration
	sampleRate int
	openErr    error
	opened     int
	closed     int
}

func NewMockMicrophone(frames [][]byte) *MockMicrophone {
	return &MockMicrophone{
		frames:     frames,
		frameEvery: 20 * time.Millisecond,
		sampleRate: 16000,
	}
}

// FailOpen makes every Open call fail with err.
func (m *MockMicrophone) FailOpen(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

func (m *MockMicrophone) SampleRate() int { return m.sampleRate }

func (m *MockMicrophone) Open(_ context.Context) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opened++
	return &mockStream{mic: m, frames: m.frames, every: m.frameEvery}, nil
}

// OpenCount and CloseCount expose acquisition bookkeeping for tests.
func (m *MockMicrophone) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

func (m *MockMicrophone) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type mockStream struct {
	mic    *MockMicrophone
	frames [][]byte
	every  time.Duration
	next   int
}

func (s *mockStream) ReadFrame(ctx context.Context) ([]byte, error) {
	if s.next >= len(s.frames) {
		return nil, io.EOF
	}
	select {
	case <-time.After(s.every):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	frame := s.frames[s.next]
	s.next++
	return frame, nil
}

func (s *mockStream) Close() error {
	s.mic.mu.Lock()
	defer s.mic.mu.Unlock()
	s.mic.closed++
	return nil
}

// MockTranscriber returns a scripted transcript for every utterance. It
// stands in when no transcription backend is configured.
type MockTranscriber struct {
	mu    sync.Mutex
	Text  string
	calls int
}

func (t *MockTranscriber) Transcribe(_ context.Context, u Utterance) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if len(u.PCM) == 0 {
		return "", ErrTranscription
	}
	return t.Text, nil
}

func (t *MockTranscriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}
