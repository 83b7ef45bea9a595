package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anvesh29/mitra/internal/capture"
	"github.com/anvesh29/mitra/internal/intent"
	"github.com/anvesh29/mitra/internal/redirect"
	"github.com/anvesh29/mitra/internal/router"
	"github.com/anvesh29/mitra/internal/session"
	"github.com/anvesh29/mitra/internal/stt"
	"github.com/anvesh29/mitra/internal/wakeword"
)

type scriptTranscriber struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (s *scriptTranscriber) Transcribe(context.Context, capture.Utterance) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if len(s.texts) == 0 {
		return "", nil
	}
	text := s.texts[0]
	s.texts = s.texts[1:]
	return text, nil
}

type recordingCollab struct {
	mu        sync.Mutex
	tasks     []string
	reminders [][2]string
	queries   []string
	spoken    []string
	routes    []string
}

func (c *recordingCollab) CreateTask(_ context.Context, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, title)
	return nil
}

func (c *recordingCollab) CreateReminder(_ context.Context, description, timestamp string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reminders = append(c.reminders, [2]string{description, timestamp})
	return nil
}

func (c *recordingCollab) SearchTrack(_ context.Context, query string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, query)
	return "trk1", true, nil
}

func (c *recordingCollab) Play(context.Context, string, string) error { return nil }

func (c *recordingCollab) Navigate(route string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = append(c.routes, route)
	return nil
}

func (c *recordingCollab) Speak(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spoken = append(c.spoken, message)
}

func (c *recordingCollab) snapshot() recordingCollab {
	c.mu.Lock()
	defer c.mu.Unlock()
	return recordingCollab{
		tasks:     append([]string(nil), c.tasks...),
		reminders: append([][2]string(nil), c.reminders...),
		queries:   append([]string(nil), c.queries...),
		spoken:    append([]string(nil), c.spoken...),
		routes:    append([]string(nil), c.routes...),
	}
}

type instantMedia struct{}

func (instantMedia) OpenTrack(_ context.Context, trackID string, _ func(string)) (redirect.Attempt, error) {
	return redirect.Attempt{TargetURI: redirect.TrackURI(trackID), Outcome: redirect.OutcomeAppOpened}, nil
}

func (instantMedia) OpenSearch(_ context.Context, query string, _ func(string)) (redirect.Attempt, error) {
	return redirect.Attempt{TargetURI: redirect.SearchURI(query), Outcome: redirect.OutcomeAppOpened}, nil
}

func (instantMedia) AttemptTimeout() time.Duration { return time.Millisecond }

type rig struct {
	recognizer  *stt.MockRecognizer
	mic         *capture.MockMicrophone
	transcriber *scriptTranscriber
	collab      *recordingCollab
	assistant   *Assistant
}

func newRig(t *testing.T, texts ...string) *rig {
	t.Helper()
	r := &rig{
		recognizer:  stt.NewMockRecognizer(),
		mic:         capture.NewMockMicrophone([][]byte{{1, 2}, {3, 4}}),
		transcriber: &scriptTranscriber{texts: texts},
		collab:      &recordingCollab{},
	}
	detector := wakeword.NewDetector(r.recognizer, wakeword.Config{
		RestartSettle: 5 * time.Millisecond,
	})
	rt := router.New(router.Deps{
		Tasks:     r.collab,
		Reminders: r.collab,
		Search:    r.collab,
		AutoPlay:  r.collab,
		Media:     instantMedia{},
		Navigator: r.collab,
		Speaker:   r.collab,
		Now: func() time.Time {
			return time.Date(2025, 6, 11, 10, 0, 0, 0, time.FixedZone("IST", 19800))
		},
	})
	r.assistant = New(Config{
		RecordWindow:    30 * time.Millisecond,
		TriggerCooldown: time.Millisecond,
	}, Deps{
		Detector:    detector,
		Recorder:    capture.NewRecorder(r.mic),
		Transcriber: r.transcriber,
		Classifier:  intent.NewClassifier(nil, time.Second),
		Router:      rt,
		Speaker:     r.collab,
		Sessions:    session.NewManager(time.Minute),
	})
	return r
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func trigger(t *testing.T, r *rig) {
	t.Helper()
	waitFor(t, time.Second, func() bool { return r.recognizer.Current() != nil })
	r.recognizer.Current().FeedFinal("hey mitra")
}

func TestPipelineAddReminderEndToEnd(t *testing.T) {
	r := newRig(t, "remind me to call my mom tomorrow at 5:30 PM")
	if err := r.assistant.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.assistant.Stop()

	trigger(t, r)
	waitFor(t, 2*time.Second, func() bool { return len(r.collab.snapshot().reminders) == 1 })

	got := r.collab.snapshot().reminders[0]
	if got[0] != "call my mom" {
		t.Fatalf("description = %q, want %q", got[0], "call my mom")
	}
	if got[1] != "2025-06-12T17:30:00+05:30" {
		t.Fatalf("timestamp = %q, want tomorrow 17:30 +05:30", got[1])
	}
}

func TestPipelineAddTaskEndToEnd(t *testing.T) {
	r := newRig(t, "add task call my mom")
	if err := r.assistant.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.assistant.Stop()

	trigger(t, r)
	waitFor(t, 2*time.Second, func() bool { return len(r.collab.snapshot().tasks) == 1 })

	if got := r.collab.snapshot().tasks[0]; got != "call my mom" {
		t.Fatalf("task title = %q, want %q", got, "call my mom")
	}
}

func TestPipelinePlayMusicSearchesWithQuery(t *testing.T) {
	r := newRig(t, "play telugu songs")
	if err := r.assistant.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.assistant.Stop()

	trigger(t, r)
	waitFor(t, 2*time.Second, func() bool { return len(r.collab.snapshot().queries) == 1 })

	if got := r.collab.snapshot().queries[0]; got != "telugu songs" {
		t.Fatalf("search query = %q, want %q", got, "telugu songs")
	}
}

func TestPipelineRestartsListenerAfterCycle(t *testing.T) {
	r := newRig(t, "hello")
	if err := r.assistant.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.assistant.Stop()

	trigger(t, r)
	// A fresh recognizer session after the cycle means the listener came
	// back without outside help.
	waitFor(t, 2*time.Second, func() bool { return len(r.recognizer.Sessions()) >= 2 })
}

func TestPipelineSpeaksOnEmptyTranscript(t *testing.T) {
	r := newRig(t) // no scripted text: transcription yields ""
	if err := r.assistant.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.assistant.Stop()

	trigger(t, r)
	waitFor(t, 2*time.Second, func() bool { return len(r.collab.snapshot().spoken) >= 1 })
}

func TestPipelineMicrophoneFailureReachesOnError(t *testing.T) {
	r := newRig(t, "anything")
	r.mic.FailOpen(errors.New("device claimed"))

	errs := make(chan string, 1)
	r.assistant.OnError = func(code, _ string) { errs <- code }

	if err := r.assistant.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.assistant.Stop()

	trigger(t, r)
	select {
	case code := <-errs:
		if code != "audio-capture" {
			t.Fatalf("code = %q, want audio-capture", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("microphone failure never reached OnError")
	}
	if spoken := r.collab.snapshot().spoken; len(spoken) == 0 {
		t.Fatal("no spoken message despite failure")
	}
}

func TestProcessVoiceCommandBypassesWakeWord(t *testing.T) {
	r := newRig(t, "add task water the plants")
	res, err := r.assistant.ProcessVoiceCommand(context.Background(), capture.Utterance{
		PCM:        []byte{1, 2, 3},
		SampleRate: 16000,
	})
	if err != nil {
		t.Fatalf("ProcessVoiceCommand: %v", err)
	}
	if res.Kind != intent.KindAddTask {
		t.Fatalf("Kind = %q, want add_task", res.Kind)
	}
	if got := r.collab.snapshot().tasks; len(got) != 1 || got[0] != "water the plants" {
		t.Fatalf("tasks = %v", got)
	}
}

func TestExecuteActionSharesResultContract(t *testing.T) {
	r := newRig(t)
	res, err := r.assistant.ExecuteAction(context.Background(), intent.Intent{
		Kind:     intent.KindGreeting,
		Entities: nil,
	})
	if err != nil {
		t.Fatalf("ExecuteAction: %v", err)
	}
	if res.Message == "" || !res.Success {
		t.Fatalf("result = %+v", res)
	}
}

type stalledTranscriber struct{}

func (stalledTranscriber) Transcribe(ctx context.Context, _ capture.Utterance) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestTranscriptionHonorsBudget(t *testing.T) {
	r := newRig(t)
	r.assistant.cfg.TranscribeBudget = 20 * time.Millisecond
	r.assistant.transcriber = stalledTranscriber{}

	start := time.Now()
	_, err := r.assistant.ProcessVoiceCommand(context.Background(), capture.Utterance{
		PCM:        []byte{1, 2, 3},
		SampleRate: 16000,
	})
	if err == nil {
		t.Fatal("ProcessVoiceCommand error = nil, want deadline error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("ProcessVoiceCommand took %v, want bounded by the transcription budget", elapsed)
	}
}

func TestBusyCommandsAreRejectedExplicitly(t *testing.T) {
	r := newRig(t)
	if !r.assistant.acquire() {
		t.Fatal("acquire failed on idle assistant")
	}
	defer r.assistant.release()

	_, err := r.assistant.ExecuteAction(context.Background(), intent.Intent{Kind: intent.KindGreeting})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
}
