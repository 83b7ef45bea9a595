package redirect

import (
	"os/exec"
	"runtime"
)

// ExecLauncher hands URIs to the desktop's default opener. The same
// command serves both the app scheme and the web URL; the OS decides
// which handler answers.
type ExecLauncher struct{}

func (ExecLauncher) OpenURI(uri string) error { return openWithDesktop(uri) }

func (ExecLauncher) OpenWeb(url string) error { return openWithDesktop(url) }

func openWithDesktop(target string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", target).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target).Start()
	default:
		return exec.Command("xdg-open", target).Start()
	}
}

// StaticWatcher never reports a visibility change. Headless deployments
// use it, which makes every app attempt run out its timeout and land on
// the web fallback.
type StaticWatcher struct{}

func (StaticWatcher) Hidden() <-chan struct{} { return nil }

// ChannelWatcher adapts an externally fed channel, for embedding
// frontends that can observe focus loss.
type ChannelWatcher struct {
	C chan struct{}
}

func NewChannelWatcher() *ChannelWatcher {
	return &ChannelWatcher{C: make(chan struct{}, 1)}
}

func (w *ChannelWatcher) Hidden() <-chan struct{} { return w.C }

// NotifyHidden signals one pending attempt, dropping the signal when no
// attempt is waiting.
func (w *ChannelWatcher) NotifyHidden() {
	select {
	case w.C <- struct{}{}:
	default:
	}
}
