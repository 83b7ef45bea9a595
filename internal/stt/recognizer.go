// Package stt abstracts continuous streaming speech recognition behind a
// small interface so the wake-word detector can run against a realtime
// websocket backend in production and a scripted double in tests.
package stt

import "context"

type EventType string

const (
	// EventPartial carries an interim hypothesis; ignored for wake matching.
	EventPartial EventType = "partial"
	// EventFinal carries a finalized recognition segment.
	EventFinal EventType = "final"
	// EventError carries an engine error code.
	EventError EventType = "error"
	// EventEnd signals natural end of recognition; the event channel closes
	// shortly after.
	EventEnd EventType = "end"
)

// Recognizer error codes. "aborted" is the expected side effect of an
// intentional stop; "no-speech" is a silence timeout.
const (
	CodeAborted           = "aborted"
	CodeNoSpeech          = "no-speech"
	CodeNotAllowed        = "not-allowed"
	CodeAudioCapture      = "audio-capture"
	CodeNetwork           = "network"
	CodeServiceNotAllowed = "service-not-allowed"
)

type Event struct {
	Type   EventType
	Text   string
	Code   string
	Detail string
}

// Session is one continuous recognition run. The event channel returned by
// Start is closed when the session ends, whatever the cause.
type Session interface {
	// Stop requests a graceful end of recognition.
	Stop()
	// Abort tears the session down immediately; the engine reports an
	// "aborted" error, which callers are expected to ignore.
	Abort()
}

// Recognizer starts continuous, interim-enabled recognition sessions.
type Recognizer interface {
	Start(ctx context.Context) (Session, <-chan Event, error)
}

// AudioSource supplies raw audio frames to a streaming recognizer.
type AudioSource interface {
	// ReadFrame blocks for the next frame of captured audio.
	ReadFrame(ctx context.Context) ([]byte, error)
}
