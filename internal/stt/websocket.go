package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anvesh29/mitra/internal/reliability"
	"github.com/anvesh29/mitra/pkg/log"
)

// WSConfig configures the realtime recognizer client.
type WSConfig struct {
	URL          string
	APIKey       string
	SampleRate   int
	DialAttempts int
	DialBackoff  time.Duration
}

// WSRecognizer streams audio frames to a realtime speech service over a
// websocket and turns its JSON messages into recognizer events.
type WSRecognizer struct {
	cfg    WSConfig
	source AudioSource
}

func NewWSRecognizer(cfg WSConfig, source AudioSource) (*WSRecognizer, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("recognizer websocket URL is required")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.DialAttempts <= 0 {
		cfg.DialAttempts = 3
	}
	if cfg.DialBackoff <= 0 {
		cfg.DialBackoff = 250 * time.Millisecond
	}
	return &WSRecognizer{cfg: cfg, source: source}, nil
}

func (r *WSRecognizer) Start(ctx context.Context) (Session, <-chan Event, error) {
	headers := http.Header{}
	if r.cfg.APIKey != "" {
		headers.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	var conn *websocket.Conn
	var err error
	for attempt := 0; attempt < r.cfg.DialAttempts; attempt++ {
		conn, _, err = websocket.DefaultDialer.DialContext(ctx, r.cfg.URL, headers)
		if err == nil {
			break
		}
		delay := reliability.ExponentialBackoff(attempt, r.cfg.DialBackoff, 2*time.Second)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial recognizer websocket: %w", err)
	}

	if err := conn.WriteJSON(map[string]any{
		"type":            "start",
		"sample_rate":     r.cfg.SampleRate,
		"interim_results": true,
	}); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("start recognizer stream: %w", err)
	}

	events := make(chan Event, 64)
	s := &wsSession{conn: conn, events: events}
	sessionCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.readLoop()
	if r.source != nil {
		go s.writeLoop(sessionCtx, r.source)
	}
	return s, events, nil
}

type wsSession struct {
	conn   *websocket.Conn
	events chan Event
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	aborted bool
	closed  bool
}

type wsMessage struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Final  bool   `json:"final,omitempty"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func (s *wsSession) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	_ = s.conn.WriteJSON(map[string]any{"type": "stop"})
	// Give the service a moment to flush the final segment, then force close.
	time.AfterFunc(2*time.Second, func() { s.conn.Close() })
}

func (s *wsSession) Abort() {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	s.mu.Unlock()

	s.cancel()
	s.conn.Close()
}

func (s *wsSession) writeLoop(ctx context.Context, source AudioSource) {
	for {
		frame, err := source.ReadFrame(ctx)
		if err != nil {
			return
		}
		if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return
		}
	}
}

func (s *wsSession) readLoop() {
	defer s.close()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			aborted := s.aborted
			stopped := s.stopped
			s.mu.Unlock()
			switch {
			case aborted:
				s.emit(Event{Type: EventError, Code: CodeAborted})
			case stopped:
				s.emit(Event{Type: EventEnd})
			default:
				s.emit(Event{Type: EventError, Code: CodeNetwork, Detail: err.Error()})
			}
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn(log.Fields{"error": err.Error()}, "recognizer sent malformed message")
			continue
		}
		switch msg.Type {
		case "partial":
			s.emit(Event{Type: EventPartial, Text: msg.Text})
		case "final":
			s.emit(Event{Type: EventFinal, Text: msg.Text})
		case "error":
			s.emit(Event{Type: EventError, Code: msg.Code, Detail: msg.Detail})
		case "end":
			s.emit(Event{Type: EventEnd})
			return
		}
	}
}

func (s *wsSession) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		// Never block the read loop on a slow consumer.
	}
}

func (s *wsSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.conn.Close()
	close(s.events)
}
