package redirect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeLauncher struct {
	mu     sync.Mutex
	uris   []string
	webs   []string
	uriErr error
	webErr error
}

func (f *fakeLauncher) OpenURI(uri string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uris = append(f.uris, uri)
	return f.uriErr
}

func (f *fakeLauncher) OpenWeb(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webs = append(f.webs, url)
	return f.webErr
}

func (f *fakeLauncher) opened() (uris, webs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uris...), append([]string(nil), f.webs...)
}

type fakeWatcher struct {
	ch chan struct{}
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{ch: make(chan struct{}, 1)}
}

func (f *fakeWatcher) Hidden() <-chan struct{} { return f.ch }

func (f *fakeWatcher) hide() { f.ch <- struct{}{} }

func newTestEngine(l Launcher, w VisibilityWatcher, timeout time.Duration) *Engine {
	return NewEngine(l, w, Config{
		Platform:       PlatformLinux,
		Timeout:        timeout,
		AndroidTimeout: timeout,
	})
}

func TestOpenTrackAppTakesFocus(t *testing.T) {
	launcher := &fakeLauncher{}
	watcher := newFakeWatcher()
	engine := newTestEngine(launcher, watcher, time.Second)

	watcher.hide()
	attempt, err := engine.OpenTrack(context.Background(), "4uLU6hMCjMI75M1A2tKUQC", nil)
	if err != nil {
		t.Fatalf("OpenTrack: %v", err)
	}
	if attempt.Outcome != OutcomeAppOpened {
		t.Fatalf("Outcome = %q, want %q", attempt.Outcome, OutcomeAppOpened)
	}
	uris, webs := launcher.opened()
	if len(uris) != 1 || uris[0] != "spotify:track:4uLU6hMCjMI75M1A2tKUQC" {
		t.Fatalf("uris = %v", uris)
	}
	if len(webs) != 0 {
		t.Fatalf("web player opened despite app focus: %v", webs)
	}
}

func TestOpenTrackTimeoutFallsBackToWeb(t *testing.T) {
	launcher := &fakeLauncher{}
	watcher := newFakeWatcher()
	engine := newTestEngine(launcher, watcher, 20*time.Millisecond)

	var reasons []string
	attempt, err := engine.OpenTrack(context.Background(), "abc123", func(reason string) {
		reasons = append(reasons, reason)
	})
	if err != nil {
		t.Fatalf("OpenTrack: %v", err)
	}
	if attempt.Outcome != OutcomeWebFallback {
		t.Fatalf("Outcome = %q, want %q", attempt.Outcome, OutcomeWebFallback)
	}
	_, webs := launcher.opened()
	if len(webs) != 1 || webs[0] != "https://open.spotify.com/track/abc123" {
		t.Fatalf("webs = %v", webs)
	}
	if len(reasons) != 1 || reasons[0] != "timeout" {
		t.Fatalf("fallback reasons = %v, want exactly one %q", reasons, "timeout")
	}
}

func TestOpenTrackExactlyOneOutcome(t *testing.T) {
	// Force the race: visibility fires in the same window as the timer.
	launcher := &fakeLauncher{}
	watcher := newFakeWatcher()
	engine := newTestEngine(launcher, watcher, time.Millisecond)

	var fallbacks int
	watcher.hide()
	attempt, err := engine.OpenTrack(context.Background(), "xyz", func(string) {
		fallbacks++
	})
	if err != nil {
		t.Fatalf("OpenTrack: %v", err)
	}
	appOpened := attempt.Outcome == OutcomeAppOpened
	webOpened := fallbacks > 0
	if appOpened == webOpened {
		t.Fatalf("appOpened = %v, fallbacks = %d, want exactly one outcome", appOpened, fallbacks)
	}
	if fallbacks > 1 {
		t.Fatalf("fallback fired %d times", fallbacks)
	}
}

func TestOpenTrackLaunchErrorGoesStraightToWeb(t *testing.T) {
	launcher := &fakeLauncher{uriErr: errors.New("no handler for scheme")}
	watcher := newFakeWatcher()
	engine := newTestEngine(launcher, watcher, time.Second)

	start := time.Now()
	var reason string
	attempt, err := engine.OpenTrack(context.Background(), "abc", func(r string) { reason = r })
	if err != nil {
		t.Fatalf("OpenTrack: %v", err)
	}
	if attempt.Outcome != OutcomeWebFallback {
		t.Fatalf("Outcome = %q, want %q", attempt.Outcome, OutcomeWebFallback)
	}
	if reason != "launch-error" {
		t.Fatalf("reason = %q, want %q", reason, "launch-error")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("launch error waited for the timeout")
	}
}

func TestOpenSearchEscapesQuery(t *testing.T) {
	launcher := &fakeLauncher{}
	watcher := newFakeWatcher()
	engine := newTestEngine(launcher, watcher, 10*time.Millisecond)

	attempt, err := engine.OpenSearch(context.Background(), "telugu songs", nil)
	if err != nil {
		t.Fatalf("OpenSearch: %v", err)
	}
	if attempt.TargetURI != "spotify:search:telugu%20songs" {
		t.Fatalf("TargetURI = %q", attempt.TargetURI)
	}
	if attempt.WebURL != "https://open.spotify.com/search/telugu%20songs" {
		t.Fatalf("WebURL = %q", attempt.WebURL)
	}
}

func TestNewEngineAndroidUsesLongerTimeout(t *testing.T) {
	engine := NewEngine(&fakeLauncher{}, newFakeWatcher(), Config{
		Platform:       PlatformAndroid,
		Timeout:        2000 * time.Millisecond,
		AndroidTimeout: 2500 * time.Millisecond,
	})
	if engine.AttemptTimeout() != 2500*time.Millisecond {
		t.Fatalf("AttemptTimeout = %v, want 2.5s", engine.AttemptTimeout())
	}
}

func TestDetectPlatformOverride(t *testing.T) {
	cases := map[string]Platform{
		"android": PlatformAndroid,
		"ios":     PlatformIOS,
		"darwin":  PlatformMacOS,
		"macos":   PlatformMacOS,
		"windows": PlatformWindows,
		"linux":   PlatformLinux,
		"beos":    PlatformUnknown,
	}
	for override, want := range cases {
		if got := DetectPlatform(override); got != want {
			t.Errorf("DetectPlatform(%q) = %q, want %q", override, got, want)
		}
	}
}
