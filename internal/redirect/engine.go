// Package redirect implements the layered media-open chain: try the native
// app URI scheme first, fall back to the web player when the app does not
// take focus in time. The optional auto-play call that follows a failed
// track attempt is one-directional and never re-enters this chain.
package redirect

import (
	"context"
	"net/url"
	"runtime"
	"sync"
	"time"

	"github.com/anvesh29/mitra/pkg/log"
)

type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformWindows Platform = "windows"
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformUnknown Platform = "unknown"
)

// DetectPlatform resolves the runtime platform once. Mobile platforms are
// only reachable through the override since a Go process reports the host
// kernel.
func DetectPlatform(override string) Platform {
	switch override {
	case "android":
		return PlatformAndroid
	case "ios":
		return PlatformIOS
	case "windows":
		return PlatformWindows
	case "macos", "darwin":
		return PlatformMacOS
	case "linux":
		return PlatformLinux
	case "":
	default:
		return PlatformUnknown
	}
	switch runtime.GOOS {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformMacOS
	case "linux":
		return PlatformLinux
	case "android":
		return PlatformAndroid
	case "ios":
		return PlatformIOS
	default:
		return PlatformUnknown
	}
}

type Outcome string

const (
	// OutcomeAppOpened: the native app took focus before the timeout.
	OutcomeAppOpened Outcome = "app_opened"
	// OutcomeWebFallback: the timeout elapsed and the web player was opened.
	OutcomeWebFallback Outcome = "web_fallback"
)

// Attempt is one media-open attempt with its single terminal outcome.
type Attempt struct {
	TargetURI string
	WebURL    string
	Platform  Platform
	Timeout   time.Duration
	Outcome   Outcome
	Fallback  string // reason, set when Outcome is OutcomeWebFallback
}

// Launcher points the platform at a URI. OpenURI aims an invisible
// embedding context at the app scheme; OpenWeb opens a new browsing
// context.
type Launcher interface {
	OpenURI(uri string) error
	OpenWeb(url string) error
}

// VisibilityWatcher reports loss of foreground visibility, the strong
// signal that a native app took focus.
type VisibilityWatcher interface {
	Hidden() <-chan struct{}
}

type Config struct {
	Platform       Platform
	Timeout        time.Duration
	AndroidTimeout time.Duration
}

type Engine struct {
	launcher Launcher
	watcher  VisibilityWatcher
	platform Platform
	timeout  time.Duration
}

func NewEngine(launcher Launcher, watcher VisibilityWatcher, cfg Config) *Engine {
	platform := cfg.Platform
	if platform == "" {
		platform = DetectPlatform("")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2000 * time.Millisecond
	}
	androidTimeout := cfg.AndroidTimeout
	if androidTimeout <= 0 {
		androidTimeout = 2500 * time.Millisecond
	}
	chosen := timeout
	if platform == PlatformAndroid {
		chosen = androidTimeout
	}
	return &Engine{
		launcher: launcher,
		watcher:  watcher,
		platform: platform,
		timeout:  chosen,
	}
}

// AttemptTimeout is the app-level attempt window for the detected platform.
// The auto-play fallback is scheduled after this same delay.
func (e *Engine) AttemptTimeout() time.Duration { return e.timeout }

func (e *Engine) Platform() Platform { return e.platform }

// OpenTrack attempts to open a track in the native app, falling back to the
// web player. It resolves as soon as one terminal outcome is reached.
func (e *Engine) OpenTrack(ctx context.Context, trackID string, onFallback func(reason string)) (Attempt, error) {
	return e.attempt(ctx, TrackURI(trackID), TrackWebURL(trackID), onFallback)
}

// OpenSearch is OpenTrack for an in-app search deep link.
func (e *Engine) OpenSearch(ctx context.Context, query string, onFallback func(reason string)) (Attempt, error) {
	return e.attempt(ctx, SearchURI(query), SearchWebURL(query), onFallback)
}

func (e *Engine) attempt(ctx context.Context, uri, webURL string, onFallback func(reason string)) (Attempt, error) {
	a := Attempt{
		TargetURI: uri,
		WebURL:    webURL,
		Platform:  e.platform,
		Timeout:   e.timeout,
	}

	// The guard makes the terminal outcome exclusive even if visibility
	// changes and the timer race within the same tick.
	var once sync.Once
	finish := func(outcome Outcome, reason string) {
		once.Do(func() {
			a.Outcome = outcome
			a.Fallback = reason
		})
	}

	if err := e.launcher.OpenURI(uri); err != nil {
		// No handler for the scheme; go straight to the web player.
		finish(OutcomeWebFallback, "launch-error")
		return e.finishWeb(a, onFallback)
	}

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case <-e.watcher.Hidden():
		finish(OutcomeAppOpened, "")
	case <-timer.C:
		finish(OutcomeWebFallback, "timeout")
	case <-ctx.Done():
		finish(OutcomeWebFallback, "cancelled")
	}

	if a.Outcome == OutcomeAppOpened {
		log.Debug(log.Fields{"uri": uri}, "native app took focus")
		return a, nil
	}
	return e.finishWeb(a, onFallback)
}

func (e *Engine) finishWeb(a Attempt, onFallback func(reason string)) (Attempt, error) {
	if err := e.launcher.OpenWeb(a.WebURL); err != nil {
		log.Warn(log.Fields{"url": a.WebURL, "error": err.Error()}, "web fallback failed to open")
	}
	if onFallback != nil {
		onFallback(a.Fallback)
	}
	return a, nil
}

// The URI scheme format is identical across platforms; only the timeout
// differs.

func TrackURI(id string) string {
	return "spotify:track:" + id
}

func TrackWebURL(id string) string {
	return "https://open.spotify.com/track/" + url.PathEscape(id)
}

func SearchURI(query string) string {
	return "spotify:search:" + url.PathEscape(query)
}

func SearchWebURL(query string) string {
	return "https://open.spotify.com/search/" + url.PathEscape(query)
}
