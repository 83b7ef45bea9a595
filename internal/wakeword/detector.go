// Package wakeword runs the continuous-listening loop that arms the voice
// pipeline. A Detector owns exactly one listening session at a time and is
// driven by finalized segments from a streaming recognizer; restart
// decisions are serialized through guard fields on the session state, never
// through ad-hoc globals.
package wakeword

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/anvesh29/mitra/internal/reliability"
	"github.com/anvesh29/mitra/internal/stt"
	"github.com/anvesh29/mitra/pkg/log"
)

type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateTriggered State = "triggered"
	StateStopped   State = "stopped"
)

// DefaultVariants are the phonetic spellings accepted for the wake phrase.
// Recognition engines routinely mishear "mitra", so close variants count.
var DefaultVariants = []string{
	"hey mitra",
	"hey mithra",
	"hey meetra",
	"hey mitara",
	"a mitra",
	"hello mitra",
	"he mitra",
}

type Config struct {
	// Phrase is the canonical wake phrase. When Variants is empty the
	// detector listens for Phrase; the default phrase also matches the
	// phonetic spellings in DefaultVariants.
	Phrase        string
	Variants      []string
	RestartSettle time.Duration
}

// Detector is the wake-word listening state machine. OnTriggered fires
// exactly once per detection; OnError fires for terminal engine failures
// that require user action.
type Detector struct {
	recognizer stt.Recognizer
	variants   []string
	settle     time.Duration

	OnTriggered func()
	OnError     func(code, detail string)

	mu              sync.Mutex
	ctx             context.Context
	state           State
	generation      int
	session         stt.Session
	running         bool
	manuallyStopped bool
	restartPending  bool
	triggered       bool
}

func NewDetector(recognizer stt.Recognizer, cfg Config) *Detector {
	variants := cfg.Variants
	if len(variants) == 0 {
		phrase := normalizeSegment(cfg.Phrase)
		if phrase == "" || phrase == DefaultVariants[0] {
			variants = DefaultVariants
		} else {
			variants = []string{phrase}
		}
	}
	normalized := make([]string, 0, len(variants))
	for _, v := range variants {
		if n := normalizeSegment(v); n != "" {
			normalized = append(normalized, n)
		}
	}
	settle := cfg.RestartSettle
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	return &Detector{
		recognizer: recognizer,
		variants:   normalized,
		settle:     settle,
		state:      StateIdle,
	}
}

// Start begins continuous recognition. Calling Start while already
// listening is a no-op.
func (d *Detector) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ctx = ctx
	d.manuallyStopped = false
	return d.startLocked()
}

func (d *Detector) startLocked() error {
	if d.running {
		return nil
	}
	session, events, err := d.recognizer.Start(d.ctx)
	if err != nil {
		return err
	}
	d.generation++
	d.session = session
	d.running = true
	d.triggered = false
	d.state = StateListening
	go d.run(d.generation, events)
	return nil
}

// Stop halts listening and marks the session manually stopped, which
// suppresses every automatic restart path until the next Start or Restart.
func (d *Detector) Stop() {
	d.mu.Lock()
	d.manuallyStopped = true
	d.state = StateStopped
	session := d.session
	running := d.running
	d.running = false
	d.mu.Unlock()
	if running && session != nil {
		session.Abort()
	}
}

// Restart force-stops the engine, waits a short settle delay, clears the
// manual-stop flag, and starts listening again.
func (d *Detector) Restart() {
	d.mu.Lock()
	session := d.session
	running := d.running
	d.running = false
	d.manuallyStopped = false
	d.triggered = false
	if d.restartPending {
		d.mu.Unlock()
		if running && session != nil {
			session.Abort()
		}
		return
	}
	d.restartPending = true
	d.mu.Unlock()

	if running && session != nil {
		session.Abort()
	}
	time.AfterFunc(d.settle, func() {
		d.mu.Lock()
		d.restartPending = false
		if d.manuallyStopped {
			d.mu.Unlock()
			return
		}
		err := d.startLocked()
		if err != nil {
			d.state = StateStopped
		}
		d.mu.Unlock()
		if err != nil {
			d.reportError(stt.CodeAudioCapture, err.Error())
		}
	})
}

// State returns the current session state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// run drains one recognition session's events. All transitions happen under
// the detector mutex so guard flags update atomically with the state they
// protect.
func (d *Detector) run(gen int, events <-chan stt.Event) {
	for ev := range events {
		switch ev.Type {
		case stt.EventFinal:
			d.handleFinal(gen, ev.Text)
		case stt.EventError:
			d.handleError(gen, ev)
		case stt.EventEnd:
			// Natural end; the restart decision happens on channel close.
		}
	}
	d.handleClosed(gen)
}

func (d *Detector) handleFinal(gen int, text string) {
	d.mu.Lock()
	if gen != d.generation || d.triggered || d.manuallyStopped {
		d.mu.Unlock()
		return
	}
	if !matchesWakeWord(text, d.variants) {
		d.mu.Unlock()
		return
	}
	// Guard before the async stop so a racing segment can never re-fire.
	d.triggered = true
	d.running = false
	d.state = StateTriggered
	session := d.session
	cb := d.OnTriggered
	d.mu.Unlock()

	if session != nil {
		session.Stop()
	}
	log.Info(log.Fields{"segment": text}, "wake word detected")
	if cb != nil {
		cb()
	}
}

func (d *Detector) handleError(gen int, ev stt.Event) {
	switch {
	case ev.Code == stt.CodeAborted:
		// Expected side effect of an intentional stop.
		return
	case ev.Code == stt.CodeNoSpeech:
		// Silence is not failure; go around again after the settle delay.
		d.mu.Lock()
		if gen != d.generation || d.triggered {
			d.mu.Unlock()
			return
		}
		session := d.session
		d.running = false
		d.scheduleRestartLocked()
		d.mu.Unlock()
		if session != nil {
			session.Abort()
		}
	case reliability.IsTerminalRecognizerCode(ev.Code):
		d.mu.Lock()
		if gen != d.generation {
			d.mu.Unlock()
			return
		}
		session := d.session
		d.running = false
		d.manuallyStopped = true
		d.state = StateStopped
		d.mu.Unlock()
		if session != nil {
			session.Abort()
		}
		log.Error(log.Fields{"code": ev.Code, "detail": ev.Detail}, "wake word listener terminal error")
		d.reportError(ev.Code, ev.Detail)
	default:
		log.Warn(log.Fields{"code": ev.Code, "detail": ev.Detail}, "wake word listener recoverable error")
	}
}

func (d *Detector) handleClosed(gen int) {
	d.mu.Lock()
	if gen != d.generation {
		d.mu.Unlock()
		return
	}
	d.running = false
	if d.triggered || d.manuallyStopped {
		d.mu.Unlock()
		return
	}
	if d.state == StateListening {
		d.state = StateIdle
	}
	d.scheduleRestartLocked()
	d.mu.Unlock()
}

// scheduleRestartLocked arms at most one pending restart. Callers hold d.mu.
func (d *Detector) scheduleRestartLocked() {
	if d.restartPending {
		return
	}
	d.restartPending = true
	time.AfterFunc(d.settle, func() {
		d.mu.Lock()
		d.restartPending = false
		if d.manuallyStopped || d.triggered || d.running {
			d.mu.Unlock()
			return
		}
		err := d.startLocked()
		if err != nil {
			d.state = StateStopped
		}
		d.mu.Unlock()
		if err != nil {
			d.reportError(stt.CodeAudioCapture, err.Error())
		}
	})
}

func (d *Detector) reportError(code, detail string) {
	if d.OnError != nil {
		d.OnError(code, detail)
	}
}

func matchesWakeWord(segment string, variants []string) bool {
	norm := normalizeSegment(segment)
	if norm == "" {
		return false
	}
	for _, v := range variants {
		if strings.Contains(norm, v) {
			return true
		}
	}
	return false
}

// normalizeSegment lower-cases, strips everything but letters, and
// collapses whitespace.
func normalizeSegment(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r >= 'a' && r <= 'z' || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
