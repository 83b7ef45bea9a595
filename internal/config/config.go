package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the Mitra voice assistant core.
// Empirically tuned pipeline timeouts live here rather than in package
// constants so deployments can adjust them without a rebuild.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	// Wake word.
	WakePhrase       string
	WakeVariants     []string
	RestartSettle    time.Duration
	TriggerCooldown  time.Duration
	RecognizerWSURL  string
	RecognizerAPIKey string

	// Capture + transcription.
	RecordWindow     time.Duration
	SampleRate       int
	OpenAIAPIKey     string
	WhisperModel     string
	WhisperLanguage  string
	TranscribeBudget time.Duration

	// Intent classification.
	GeminiAPIKey    string
	GeminiModel     string
	ClassifyTimeout time.Duration

	// Media redirect.
	PlatformOverride   string
	RedirectTimeout    time.Duration
	RedirectTimeoutAnd time.Duration

	// Collaborators.
	TaskServiceURL     string
	ReminderServiceURL string
	TrackSearchURL     string
	AutoPlayURL        string
	CollabToken        string
	CollabTimeout      time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "mitra"),

		WakePhrase:       envOrDefault("WAKE_PHRASE", "hey mitra"),
		RecognizerWSURL:  trimmedEnv("RECOGNIZER_WS_URL"),
		RecognizerAPIKey: trimmedEnv("RECOGNIZER_API_KEY"),

		SampleRate:      16000,
		OpenAIAPIKey:    trimmedEnv("OPENAI_API_KEY"),
		WhisperModel:    envOrDefault("WHISPER_MODEL", "whisper-1"),
		WhisperLanguage: envOrDefault("WHISPER_LANGUAGE", "en"),

		GeminiAPIKey: trimmedEnv("GEMINI_API_KEY"),
		GeminiModel:  envOrDefault("GEMINI_MODEL_NAME", "gemini-1.5-flash"),

		PlatformOverride: strings.ToLower(trimmedEnv("PLATFORM_OVERRIDE")),

		TaskServiceURL:     trimmedEnv("TASK_SERVICE_URL"),
		ReminderServiceURL: trimmedEnv("REMINDER_SERVICE_URL"),
		TrackSearchURL:     trimmedEnv("TRACK_SEARCH_URL"),
		AutoPlayURL:        trimmedEnv("AUTOPLAY_URL"),
		CollabToken:        trimmedEnv("COLLAB_TOKEN"),

		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
		RestartSettle:            500 * time.Millisecond,
		TriggerCooldown:          1 * time.Second,
		RecordWindow:             5 * time.Second,
		TranscribeBudget:         15 * time.Second,
		ClassifyTimeout:          3 * time.Second,
		RedirectTimeout:          2000 * time.Millisecond,
		RedirectTimeoutAnd:       2500 * time.Millisecond,
		CollabTimeout:            5 * time.Second,
	}

	if raw := trimmedEnv("WAKE_VARIANTS"); raw != "" {
		for _, v := range strings.Split(raw, ",") {
			v = strings.ToLower(strings.TrimSpace(v))
			if v != "" {
				cfg.WakeVariants = append(cfg.WakeVariants, v)
			}
		}
	}

	var err error
	if cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RestartSettle, err = durationFromEnv("WAKE_RESTART_SETTLE", cfg.RestartSettle); err != nil {
		return Config{}, err
	}
	if cfg.TriggerCooldown, err = durationFromEnv("WAKE_TRIGGER_COOLDOWN", cfg.TriggerCooldown); err != nil {
		return Config{}, err
	}
	if cfg.RecordWindow, err = durationFromEnv("RECORD_WINDOW", cfg.RecordWindow); err != nil {
		return Config{}, err
	}
	if cfg.TranscribeBudget, err = durationFromEnv("TRANSCRIBE_BUDGET", cfg.TranscribeBudget); err != nil {
		return Config{}, err
	}
	if cfg.ClassifyTimeout, err = durationFromEnv("CLASSIFY_TIMEOUT", cfg.ClassifyTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RedirectTimeout, err = durationFromEnv("REDIRECT_TIMEOUT", cfg.RedirectTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RedirectTimeoutAnd, err = durationFromEnv("REDIRECT_TIMEOUT_ANDROID", cfg.RedirectTimeoutAnd); err != nil {
		return Config{}, err
	}
	if cfg.CollabTimeout, err = durationFromEnv("COLLAB_TIMEOUT", cfg.CollabTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SampleRate, err = intFromEnv("CAPTURE_SAMPLE_RATE", cfg.SampleRate); err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.RecordWindow <= 0 {
		return Config{}, fmt.Errorf("RECORD_WINDOW must be positive")
	}
	if cfg.ClassifyTimeout <= 0 {
		return Config{}, fmt.Errorf("CLASSIFY_TIMEOUT must be positive")
	}
	if cfg.SampleRate <= 0 {
		return Config{}, fmt.Errorf("CAPTURE_SAMPLE_RATE must be positive")
	}
	if strings.TrimSpace(cfg.WakePhrase) == "" {
		return Config{}, fmt.Errorf("WAKE_PHRASE must not be empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
