// Package capture owns the bounded microphone recording window and the
// speech-to-text gateway that turns a captured utterance into a transcript.
// The microphone is exclusively owned: the wake-word listener is stopped
// before Record acquires it, and the stream is released on every exit path.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	// ErrMicrophone reports a failed microphone acquisition. This is one of
	// the two error classes that reach the top-level caller.
	ErrMicrophone = errors.New("microphone acquisition failed")
	// ErrTranscription reports a transport failure or empty result from the
	// speech-to-text service.
	ErrTranscription = errors.New("transcription failed")
)

// Stream is an open microphone capture stream.
type Stream interface {
	// ReadFrame blocks for the next frame of PCM16LE mono audio.
	ReadFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// Microphone acquires capture streams.
type Microphone interface {
	Open(ctx context.Context) (Stream, error)
	SampleRate() int
}

// Utterance is one captured audio window. It is transcribed at most once
// and discarded when the pipeline cycle completes.
type Utterance struct {
	PCM        []byte
	SampleRate int
	Duration   time.Duration
}

// Transcriber converts an utterance to text.
type Transcriber interface {
	Transcribe(ctx context.Context, u Utterance) (string, error)
}

// Recorder records fixed-duration windows from a microphone.
type Recorder struct {
	mic Microphone
}

func NewRecorder(mic Microphone) *Recorder {
	return &Recorder{mic: mic}
}

// Record acquires the microphone, records for exactly d, and releases the
// stream whether recording succeeds, errors, or returns early.
func (r *Recorder) Record(ctx context.Context, d time.Duration) (Utterance, error) {
	if d <= 0 {
		return Utterance{}, fmt.Errorf("%w: non-positive window", ErrMicrophone)
	}
	stream, err := r.mic.Open(ctx)
	if err != nil {
		return Utterance{}, fmt.Errorf("%w: %v", ErrMicrophone, err)
	}
	defer stream.Close()

	windowCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	var pcm []byte
	for {
		frame, err := stream.ReadFrame(windowCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, context.Canceled) {
				return Utterance{}, ctx.Err()
			}
			return Utterance{}, fmt.Errorf("read capture frame: %w", err)
		}
		pcm = append(pcm, frame...)
	}

	return Utterance{
		PCM:        pcm,
		SampleRate: r.mic.SampleRate(),
		Duration:   d,
	}, nil
}
