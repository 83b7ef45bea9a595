package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/anvesh29/mitra/internal/assistant"
	"github.com/anvesh29/mitra/internal/capture"
	"github.com/anvesh29/mitra/internal/collab"
	"github.com/anvesh29/mitra/internal/config"
	"github.com/anvesh29/mitra/internal/httpapi"
	"github.com/anvesh29/mitra/internal/intent"
	"github.com/anvesh29/mitra/internal/observability"
	"github.com/anvesh29/mitra/internal/redirect"
	"github.com/anvesh29/mitra/internal/router"
	"github.com/anvesh29/mitra/internal/session"
	"github.com/anvesh29/mitra/internal/stt"
	"github.com/anvesh29/mitra/internal/wakeword"
	"github.com/anvesh29/mitra/pkg/log"
)

func main() {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	window := observability.NewStageWindow(256)

	mic := capture.NewMockMicrophone(nil)

	var recognizer stt.Recognizer
	if cfg.RecognizerWSURL != "" {
		recognizer, err = stt.NewWSRecognizer(stt.WSConfig{
			URL:        cfg.RecognizerWSURL,
			APIKey:     cfg.RecognizerAPIKey,
			SampleRate: cfg.SampleRate,
		}, &micSource{mic: mic})
		if err != nil {
			stdlog.Fatalf("recognizer init failed: %v", err)
		}
		log.Info(log.Fields{"url": cfg.RecognizerWSURL}, "wake recognizer: websocket")
	} else {
		recognizer = stt.NewMockRecognizer()
		log.Info(nil, "wake recognizer: mock (RECOGNIZER_WS_URL not set)")
	}

	var transcriber capture.Transcriber
	if cfg.OpenAIAPIKey != "" {
		transcriber, err = capture.NewWhisperTranscriber(capture.WhisperConfig{
			APIKey:   cfg.OpenAIAPIKey,
			Model:    cfg.WhisperModel,
			Language: cfg.WhisperLanguage,
		})
		if err != nil {
			stdlog.Fatalf("transcriber init failed: %v", err)
		}
		log.Info(log.Fields{"model": cfg.WhisperModel}, "transcriber: whisper")
	} else {
		transcriber = &capture.MockTranscriber{}
		log.Info(nil, "transcriber: mock (OPENAI_API_KEY not set)")
	}

	var nlp intent.NLPClient
	if cfg.GeminiAPIKey != "" {
		client, err := intent.NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			stdlog.Fatalf("gemini client init failed: %v", err)
		}
		defer client.Close()
		nlp = client
		log.Info(log.Fields{"model": cfg.GeminiModel}, "intent classifier: gemini primary with rule fallback")
	} else {
		log.Info(nil, "intent classifier: rule fallback only (GEMINI_API_KEY not set)")
	}

	engine := redirect.NewEngine(redirect.ExecLauncher{}, redirect.StaticWatcher{}, redirect.Config{
		Platform:       redirect.DetectPlatform(cfg.PlatformOverride),
		Timeout:        cfg.RedirectTimeout,
		AndroidTimeout: cfg.RedirectTimeoutAnd,
	})

	collabCfg := func(baseURL string) collab.Config {
		return collab.Config{BaseURL: baseURL, Token: cfg.CollabToken, Timeout: cfg.CollabTimeout}
	}

	speaker := &logSpeaker{}
	rt := router.New(router.Deps{
		Tasks:     collab.NewTaskClient(collabCfg(cfg.TaskServiceURL)),
		Reminders: collab.NewReminderClient(collabCfg(cfg.ReminderServiceURL)),
		Search:    collab.NewSearchClient(collabCfg(cfg.TrackSearchURL)),
		AutoPlay:  collab.NewAutoPlayClient(collabCfg(cfg.AutoPlayURL)),
		Media:     engine,
		Navigator: &logNavigator{},
		Speaker:   speaker,
		Metrics:   metrics,
	})

	detector := wakeword.NewDetector(recognizer, wakeword.Config{
		Phrase:        cfg.WakePhrase,
		Variants:      cfg.WakeVariants,
		RestartSettle: cfg.RestartSettle,
	})

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	core := assistant.New(assistant.Config{
		RecordWindow:     cfg.RecordWindow,
		TranscribeBudget: cfg.TranscribeBudget,
		TriggerCooldown:  cfg.TriggerCooldown,
	}, assistant.Deps{
		Detector:    detector,
		Recorder:    capture.NewRecorder(mic),
		Transcriber: transcriber,
		Classifier:  intent.NewClassifier(nlp, cfg.ClassifyTimeout),
		Router:      rt,
		Speaker:     speaker,
		Sessions:    sessions,
		Metrics:     metrics,
		Window:      window,
	})
	core.OnError = func(code, detail string) {
		log.Error(log.Fields{"code": code, "detail": detail}, "assistant needs attention")
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	if err := core.Start(runCtx); err != nil {
		stdlog.Fatalf("assistant start failed: %v", err)
	}
	defer core.Stop()

	api := httpapi.New(cfg, sessions, core, metrics, window)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Info(log.Fields{"addr": cfg.BindAddr}, "server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			stdlog.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info(nil, "shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "graceful shutdown failed")
		_ = httpServer.Close()
	}

	log.Info(nil, "shutdown complete")
}

// logSpeaker voices responses through the structured log until a TTS
// surface is attached.
type logSpeaker struct{}

func (*logSpeaker) Speak(message string) {
	log.Info(log.Fields{"say": message}, "assistant response")
}

type logNavigator struct{}

func (*logNavigator) Navigate(route string) error {
	log.Info(log.Fields{"route": route}, "navigating")
	return nil
}

// micSource streams microphone frames to the realtime recognizer,
// acquiring the stream lazily and releasing it when the session context
// ends.
type micSource struct {
	mic    capture.Microphone
	mu     sync.Mutex
	stream capture.Stream
}

func (s *micSource) ReadFrame(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if s.stream == nil {
		stream, err := s.mic.Open(ctx)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.stream = stream
	}
	stream := s.stream
	s.mu.Unlock()

	frame, err := stream.ReadFrame(ctx)
	if err != nil {
		s.mu.Lock()
		if s.stream == stream {
			_ = s.stream.Close()
			s.stream = nil
		}
		s.mu.Unlock()
	}
	return frame, err
}
