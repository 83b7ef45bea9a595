// Package assistant is the orchestrator. It owns the pipeline that runs
// from a wake-word trigger to the spoken result: stop listening, record a
// bounded window, transcribe, classify, route, speak, cool down, restart
// the listener. One pipeline runs at a time.
package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/anvesh29/mitra/internal/capture"
	"github.com/anvesh29/mitra/internal/intent"
	"github.com/anvesh29/mitra/internal/observability"
	"github.com/anvesh29/mitra/internal/router"
	"github.com/anvesh29/mitra/internal/session"
	"github.com/anvesh29/mitra/internal/wakeword"
	"github.com/anvesh29/mitra/pkg/log"
)

// ErrBusy is returned when a command arrives while a pipeline is already
// running. Callers surface it as an explicit busy message, never a silent
// drop.
var ErrBusy = errors.New("assistant is handling another command")

const busyMessage = "I am still working on the last command, one moment."

type Config struct {
	RecordWindow     time.Duration
	TranscribeBudget time.Duration
	TriggerCooldown  time.Duration
}

type Deps struct {
	Detector    *wakeword.Detector
	Recorder    *capture.Recorder
	Transcriber capture.Transcriber
	Classifier  *intent.Classifier
	Router      *router.Router
	Speaker     router.Speaker
	Sessions    *session.Manager
	Metrics     *observability.Metrics
	Window      *observability.StageWindow
}

type Assistant struct {
	cfg         Config
	detector    *wakeword.Detector
	recorder    *capture.Recorder
	transcriber capture.Transcriber
	classifier  *intent.Classifier
	router      *router.Router
	speaker     router.Speaker
	sessions    *session.Manager
	metrics     *observability.Metrics
	window      *observability.StageWindow

	// OnError receives only the failures that need user action: terminal
	// listener errors and microphone acquisition failures.
	OnError func(code, detail string)

	mu        sync.Mutex
	busy      bool
	running   bool
	sessionID string
	userID    string
	baseCtx   context.Context
}

func New(cfg Config, deps Deps) *Assistant {
	if cfg.RecordWindow <= 0 {
		cfg.RecordWindow = 5 * time.Second
	}
	if cfg.TranscribeBudget <= 0 {
		cfg.TranscribeBudget = 15 * time.Second
	}
	if cfg.TriggerCooldown <= 0 {
		cfg.TriggerCooldown = time.Second
	}
	a := &Assistant{
		cfg:         cfg,
		detector:    deps.Detector,
		recorder:    deps.Recorder,
		transcriber: deps.Transcriber,
		classifier:  deps.Classifier,
		router:      deps.Router,
		speaker:     deps.Speaker,
		sessions:    deps.Sessions,
		metrics:     deps.Metrics,
		window:      deps.Window,
		baseCtx:     context.Background(),
	}
	if a.detector != nil {
		a.detector.OnTriggered = a.onTriggered
		a.detector.OnError = a.onListenerError
	}
	return a
}

// BindSession attaches the session whose user id collaborator calls and
// auto-play act for.
func (a *Assistant) BindSession(sessionID, userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessionID = sessionID
	a.userID = userID
}

// Start begins wake-word listening. Idempotent.
func (a *Assistant) Start(ctx context.Context) error {
	a.mu.Lock()
	a.baseCtx = ctx
	a.running = true
	a.mu.Unlock()
	if a.detector == nil {
		return nil
	}
	return a.detector.Start(ctx)
}

func (a *Assistant) Stop() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
	if a.detector != nil {
		a.detector.Stop()
	}
}

func (a *Assistant) Restart() {
	a.mu.Lock()
	a.running = true
	a.mu.Unlock()
	if a.detector != nil {
		a.detector.Restart()
	}
}

func (a *Assistant) onTriggered() {
	if !a.acquire() {
		// The detector should not trigger mid-pipeline, but a guard beats
		// a double microphone claim.
		a.speak(busyMessage)
		return
	}
	if a.metrics != nil {
		a.metrics.WakeTriggers.Inc()
	}
	go a.runPipeline()
}

func (a *Assistant) onListenerError(code, detail string) {
	log.Error(log.Fields{"code": code, "detail": detail}, "wake listener terminal error")
	if a.OnError != nil {
		a.OnError(code, detail)
	}
}

// runPipeline executes one trigger-to-response cycle. It never leaves
// without speaking and always returns the assistant to a listening-ready
// state.
func (a *Assistant) runPipeline() {
	started := time.Now()
	outcome := "ok"
	defer func() {
		a.observeStage(observability.StageTotal, time.Since(started))
		if a.metrics != nil {
			a.metrics.PipelineCycles.WithLabelValues(outcome).Inc()
		}
		a.release()
		time.Sleep(a.cfg.TriggerCooldown)
		a.restartListenerIfRunning()
	}()

	ctx := a.base()

	recordStart := time.Now()
	utt, err := a.recorder.Record(ctx, a.cfg.RecordWindow)
	a.observeStage(observability.StageRecord, time.Since(recordStart))
	if err != nil {
		outcome = "record_error"
		a.speak("I could not access the microphone.")
		if errors.Is(err, capture.ErrMicrophone) && a.OnError != nil {
			a.OnError("audio-capture", err.Error())
		}
		return
	}

	transcribeStart := time.Now()
	text, err := a.transcribe(ctx, utt)
	a.observeStage(observability.StageTranscribe, time.Since(transcribeStart))
	if err != nil || strings.TrimSpace(text) == "" {
		outcome = "no_speech"
		a.speak("I did not catch that. Please try again.")
		return
	}

	res := a.classifyAndRoute(ctx, text)
	if !res.Success {
		outcome = "action_failed"
	}
}

// ProcessVoiceCommand runs the pipeline on caller-supplied audio,
// bypassing the wake word. Push-to-talk surfaces use this.
func (a *Assistant) ProcessVoiceCommand(ctx context.Context, utt capture.Utterance) (router.ActionResult, error) {
	if !a.acquire() {
		return router.ActionResult{}, ErrBusy
	}
	defer a.release()

	text, err := a.transcribe(ctx, utt)
	if err != nil {
		return router.ActionResult{}, err
	}
	if strings.TrimSpace(text) == "" {
		return router.ActionResult{}, capture.ErrTranscription
	}
	return a.classifyAndRoute(ctx, text), nil
}

// transcribe bounds the transcription call so a stalled backend cannot
// hold the pipeline open indefinitely.
func (a *Assistant) transcribe(ctx context.Context, utt capture.Utterance) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.TranscribeBudget)
	defer cancel()
	return a.transcriber.Transcribe(ctx, utt)
}

// ExecuteAction routes an already-classified intent, producing the same
// result contract as the full pipeline.
func (a *Assistant) ExecuteAction(ctx context.Context, in intent.Intent) (router.ActionResult, error) {
	if !a.acquire() {
		return router.ActionResult{}, ErrBusy
	}
	defer a.release()

	routeStart := time.Now()
	res := a.router.Route(ctx, in, a.currentUserID())
	a.observeStage(observability.StageRoute, time.Since(routeStart))
	a.recordCommand(in.Kind)
	return res, nil
}

func (a *Assistant) classifyAndRoute(ctx context.Context, text string) router.ActionResult {
	classifyStart := time.Now()
	out := a.classifier.Classify(ctx, text)
	a.observeStage(observability.StageClassify, time.Since(classifyStart))
	if out.Path == intent.PathFallback && a.window != nil {
		a.window.ObserveIndicator("fallback_classifier")
	}
	if a.metrics != nil {
		a.metrics.IntentsClassified.WithLabelValues(string(out.Intent.Kind), string(out.Path)).Inc()
	}

	routeStart := time.Now()
	res := a.router.Route(ctx, out.Intent, a.currentUserID())
	a.observeStage(observability.StageRoute, time.Since(routeStart))
	a.recordCommand(out.Intent.Kind)
	return res
}

func (a *Assistant) acquire() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.busy {
		if a.window != nil {
			a.window.ObserveIndicator("busy_rejected")
		}
		return false
	}
	a.busy = true
	return true
}

func (a *Assistant) release() {
	a.mu.Lock()
	a.busy = false
	a.mu.Unlock()
}

func (a *Assistant) restartListenerIfRunning() {
	a.mu.Lock()
	running := a.running
	a.mu.Unlock()
	if running && a.detector != nil {
		a.detector.Restart()
	}
}

func (a *Assistant) recordCommand(kind intent.Kind) {
	a.mu.Lock()
	sessions, id := a.sessions, a.sessionID
	a.mu.Unlock()
	if sessions == nil || id == "" {
		return
	}
	if err := sessions.RecordCommand(id, string(kind)); err != nil {
		log.Debug(log.Fields{"session": id, "error": err.Error()}, "command bookkeeping skipped")
	}
}

func (a *Assistant) currentUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userID
}

func (a *Assistant) base() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.baseCtx != nil {
		return a.baseCtx
	}
	return context.Background()
}

func (a *Assistant) speak(message string) {
	if a.speaker != nil {
		a.speaker.Speak(message)
	}
}

func (a *Assistant) observeStage(stage string, d time.Duration) {
	if a.metrics != nil {
		a.metrics.ObserveStage(stage, d)
	}
	if a.window != nil {
		a.window.Observe(stage, d)
	}
}
