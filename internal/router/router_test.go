package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anvesh29/mitra/internal/intent"
	"github.com/anvesh29/mitra/internal/observability"
	"github.com/anvesh29/mitra/internal/redirect"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// One shared instance: promauto registers on the default registry, so a
// second NewMetrics in this binary would panic.
var testMetrics = observability.NewMetrics("routertest")

type fakeTasks struct {
	titles []string
	err    error
}

func (f *fakeTasks) CreateTask(_ context.Context, title string) error {
	f.titles = append(f.titles, title)
	return f.err
}

type fakeReminders struct {
	descriptions []string
	timestamps   []string
	err          error
}

func (f *fakeReminders) CreateReminder(_ context.Context, description, timestamp string) error {
	f.descriptions = append(f.descriptions, description)
	f.timestamps = append(f.timestamps, timestamp)
	return f.err
}

type fakeSearch struct {
	queries []string
	trackID string
	found   bool
	err     error
}

func (f *fakeSearch) SearchTrack(_ context.Context, query string) (string, bool, error) {
	f.queries = append(f.queries, query)
	return f.trackID, f.found, f.err
}

type fakeAutoPlay struct {
	mu     sync.Mutex
	played []string
	done   chan struct{}
}

func (f *fakeAutoPlay) Play(_ context.Context, trackID, userID string) error {
	f.mu.Lock()
	f.played = append(f.played, trackID+"/"+userID)
	f.mu.Unlock()
	if f.done != nil {
		close(f.done)
	}
	return nil
}

func (f *fakeAutoPlay) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.played...)
}

type fakeMedia struct {
	trackOutcome redirect.Outcome
	tracks       []string
	searches     []string
	timeout      time.Duration
}

func (f *fakeMedia) OpenTrack(_ context.Context, trackID string, onFallback func(string)) (redirect.Attempt, error) {
	f.tracks = append(f.tracks, trackID)
	a := redirect.Attempt{
		TargetURI: redirect.TrackURI(trackID),
		WebURL:    redirect.TrackWebURL(trackID),
		Outcome:   f.trackOutcome,
	}
	if a.Outcome == redirect.OutcomeWebFallback && onFallback != nil {
		onFallback("timeout")
	}
	return a, nil
}

func (f *fakeMedia) OpenSearch(_ context.Context, query string, _ func(string)) (redirect.Attempt, error) {
	f.searches = append(f.searches, query)
	return redirect.Attempt{
		TargetURI: redirect.SearchURI(query),
		WebURL:    redirect.SearchWebURL(query),
		Outcome:   redirect.OutcomeWebFallback,
	}, nil
}

func (f *fakeMedia) AttemptTimeout() time.Duration {
	if f.timeout > 0 {
		return f.timeout
	}
	return 10 * time.Millisecond
}

// journal records speak and navigate calls in order, for the ordering
// guarantee on show intents.
type journal struct {
	entries []string
}

func (j *journal) Speak(message string) {
	j.entries = append(j.entries, "speak:"+message)
}

func (j *journal) Navigate(route string) error {
	j.entries = append(j.entries, "nav:"+route)
	return nil
}

type harness struct {
	tasks     *fakeTasks
	reminders *fakeReminders
	search    *fakeSearch
	autoplay  *fakeAutoPlay
	media     *fakeMedia
	journal   *journal
	router    *Router
}

func newHarness() *harness {
	h := &harness{
		tasks:     &fakeTasks{},
		reminders: &fakeReminders{},
		search:    &fakeSearch{trackID: "trk1", found: true},
		autoplay:  &fakeAutoPlay{},
		media:     &fakeMedia{trackOutcome: redirect.OutcomeAppOpened},
		journal:   &journal{},
	}
	h.router = New(Deps{
		Tasks:     h.tasks,
		Reminders: h.reminders,
		Search:    h.search,
		AutoPlay:  h.autoplay,
		Media:     h.media,
		Navigator: h.journal,
		Speaker:   h.journal,
		Metrics:   testMetrics,
		Now: func() time.Time {
			return time.Date(2025, 6, 11, 10, 0, 0, 0, time.FixedZone("IST", 19800))
		},
	})
	return h
}

func run(h *harness, in intent.Intent) ActionResult {
	return h.router.Route(context.Background(), in, "user-1")
}

func TestRouteAddTask(t *testing.T) {
	h := newHarness()
	res := run(h, intent.Intent{
		Kind:       intent.KindAddTask,
		Entities:   map[string]string{intent.EntityTitle: "call my mom"},
		SourceText: "add task call my mom",
	})
	if !res.Success {
		t.Fatalf("Success = false: %s", res.Message)
	}
	if len(h.tasks.titles) != 1 || h.tasks.titles[0] != "call my mom" {
		t.Fatalf("titles = %v", h.tasks.titles)
	}
}

func TestRouteAddTaskFailureBecomesMessage(t *testing.T) {
	h := newHarness()
	h.tasks.err = errors.New("service down")
	res := run(h, intent.Intent{
		Kind:     intent.KindAddTask,
		Entities: map[string]string{intent.EntityTitle: "x"},
	})
	if res.Success {
		t.Fatal("Success = true on collaborator failure")
	}
	if res.Message == "" {
		t.Fatal("Message empty on failure")
	}
}

func TestRouteAddTaskWithoutTitleOpensAddPage(t *testing.T) {
	h := newHarness()
	res := run(h, intent.Intent{Kind: intent.KindAddTask, SourceText: "add task"})
	if res.Route != RouteTaskAdd {
		t.Fatalf("Route = %q, want %q", res.Route, RouteTaskAdd)
	}
	if len(h.tasks.titles) != 0 {
		t.Fatalf("task created without a title: %v", h.tasks.titles)
	}
}

func TestRouteAddReminderResolvesTimestamp(t *testing.T) {
	h := newHarness()
	res := run(h, intent.Intent{
		Kind: intent.KindAddReminder,
		Entities: map[string]string{
			intent.EntityDescription: "call my mom",
			intent.EntityTime:        "5:30 pm",
		},
		SourceText: "remind me to call my mom tomorrow at 5:30 pm",
	})
	if !res.Success {
		t.Fatalf("Success = false: %s", res.Message)
	}
	if len(h.reminders.timestamps) != 1 {
		t.Fatalf("timestamps = %v", h.reminders.timestamps)
	}
	if got, want := h.reminders.timestamps[0], "2025-06-12T17:30:00+05:30"; got != want {
		t.Fatalf("timestamp = %q, want %q", got, want)
	}
	if h.reminders.descriptions[0] != "call my mom" {
		t.Fatalf("description = %q", h.reminders.descriptions[0])
	}
}

func TestRouteShowTasksSpeaksBeforeNavigating(t *testing.T) {
	h := newHarness()
	res := run(h, intent.Intent{Kind: intent.KindShowTasks})
	if res.Route != RouteTasks {
		t.Fatalf("Route = %q, want %q", res.Route, RouteTasks)
	}
	if len(h.journal.entries) != 2 {
		t.Fatalf("journal = %v", h.journal.entries)
	}
	if !strings.HasPrefix(h.journal.entries[0], "speak:") {
		t.Fatalf("first entry = %q, want a speak", h.journal.entries[0])
	}
	if h.journal.entries[1] != "nav:"+RouteTasks {
		t.Fatalf("second entry = %q", h.journal.entries[1])
	}
}

func TestRoutePlayMusicSpecificQuerySearches(t *testing.T) {
	h := newHarness()
	res := run(h, intent.Intent{
		Kind:       intent.KindPlayMusic,
		Entities:   map[string]string{intent.EntityQuery: "telugu songs"},
		SourceText: "play telugu songs",
	})
	if len(h.search.queries) != 1 || h.search.queries[0] != "telugu songs" {
		t.Fatalf("queries = %v", h.search.queries)
	}
	if len(h.media.tracks) != 1 || h.media.tracks[0] != "trk1" {
		t.Fatalf("tracks = %v", h.media.tracks)
	}
	if res.TrackID != "trk1" {
		t.Fatalf("TrackID = %q", res.TrackID)
	}
}

func TestRoutePlayMusicGenericQueryUsesDefaultPhrase(t *testing.T) {
	h := newHarness()
	run(h, intent.Intent{Kind: intent.KindPlayMusic, SourceText: "play a song"})
	if len(h.search.queries) != 0 {
		t.Fatalf("track search ran for a generic query: %v", h.search.queries)
	}
	if len(h.media.searches) != 1 || h.media.searches[0] != defaultSearchPhrase {
		t.Fatalf("searches = %v, want [%q]", h.media.searches, defaultSearchPhrase)
	}
}

func TestRoutePlayMusicSearchMissFallsBackToSearchLink(t *testing.T) {
	h := newHarness()
	h.search.found = false
	h.search.trackID = ""
	res := run(h, intent.Intent{
		Kind:     intent.KindPlayMusic,
		Entities: map[string]string{intent.EntityQuery: "obscure b side"},
	})
	if len(h.media.tracks) != 0 {
		t.Fatalf("track opened on a miss: %v", h.media.tracks)
	}
	if len(h.media.searches) != 1 || h.media.searches[0] != "obscure b side" {
		t.Fatalf("searches = %v", h.media.searches)
	}
	if !res.Success {
		t.Fatalf("search-link fallback should still succeed: %s", res.Message)
	}
}

func TestRoutePlayMusicAutoPlayOnlyAfterWebFallbackWithUser(t *testing.T) {
	h := newHarness()
	h.media.trackOutcome = redirect.OutcomeWebFallback
	h.autoplay.done = make(chan struct{})
	run(h, intent.Intent{
		Kind:     intent.KindPlayMusic,
		Entities: map[string]string{intent.EntityQuery: "telugu songs"},
	})
	select {
	case <-h.autoplay.done:
	case <-time.After(time.Second):
		t.Fatal("auto-play never fired after web fallback")
	}
	if calls := h.autoplay.calls(); len(calls) != 1 || calls[0] != "trk1/user-1" {
		t.Fatalf("auto-play calls = %v", calls)
	}
}

func TestRoutePlayMusicNoAutoPlayWhenAppOpened(t *testing.T) {
	h := newHarness()
	run(h, intent.Intent{
		Kind:     intent.KindPlayMusic,
		Entities: map[string]string{intent.EntityQuery: "telugu songs"},
	})
	time.Sleep(50 * time.Millisecond)
	if calls := h.autoplay.calls(); len(calls) != 0 {
		t.Fatalf("auto-play fired despite app focus: %v", calls)
	}
}

func TestRoutePlayMusicNoAutoPlayWithoutUser(t *testing.T) {
	h := newHarness()
	h.media.trackOutcome = redirect.OutcomeWebFallback
	h.router.Route(context.Background(), intent.Intent{
		Kind:     intent.KindPlayMusic,
		Entities: map[string]string{intent.EntityQuery: "telugu songs"},
	}, "")
	time.Sleep(50 * time.Millisecond)
	if calls := h.autoplay.calls(); len(calls) != 0 {
		t.Fatalf("auto-play fired without a user id: %v", calls)
	}
}

func TestRouteNavigateUnknownPageHasNoSideEffect(t *testing.T) {
	h := newHarness()
	res := run(h, intent.Intent{
		Kind:       intent.KindNavigate,
		SourceText: "go to the moon",
	})
	if res.Success {
		t.Fatal("Success = true for an unresolvable page")
	}
	for _, e := range h.journal.entries {
		if strings.HasPrefix(e, "nav:") {
			t.Fatalf("navigation happened: %v", h.journal.entries)
		}
	}
	if !strings.Contains(res.Message, "could not determine") {
		t.Fatalf("Message = %q", res.Message)
	}
}

func TestRouteUnknownBareDescriptionHints(t *testing.T) {
	h := newHarness()
	res := run(h, intent.Intent{Kind: intent.KindUnknown, SourceText: "call my mom at 5"})
	if !strings.Contains(res.Message, "add task") {
		t.Fatalf("Message = %q, want add task hint", res.Message)
	}
}

func TestRouteEveryKindReturnsMessage(t *testing.T) {
	kinds := []intent.Kind{
		intent.KindAddTask, intent.KindShowTasks, intent.KindAddReminder,
		intent.KindShowReminders, intent.KindPlayMusic, intent.KindNavigate,
		intent.KindGreeting, intent.KindUnknown,
	}
	for _, kind := range kinds {
		h := newHarness()
		h.tasks.err = errors.New("down")
		h.reminders.err = errors.New("down")
		h.search.err = errors.New("down")
		h.search.found = false
		res := run(h, intent.Intent{Kind: kind, SourceText: "whatever you say"})
		if res.Message == "" {
			t.Errorf("Route(%s) returned an empty message", kind)
		}
	}
}

func TestRouteCountsRedirectAndCollaboratorFailures(t *testing.T) {
	fallbackCounter := testMetrics.RedirectOutcomes.WithLabelValues(string(redirect.OutcomeWebFallback))
	taskCounter := testMetrics.CollaboratorErrors.WithLabelValues("task")
	searchCounter := testMetrics.CollaboratorErrors.WithLabelValues("search")
	fallbackBefore := testutil.ToFloat64(fallbackCounter)
	taskBefore := testutil.ToFloat64(taskCounter)
	searchBefore := testutil.ToFloat64(searchCounter)

	h := newHarness()
	h.media.trackOutcome = redirect.OutcomeWebFallback
	run(h, intent.Intent{
		Kind:       intent.KindPlayMusic,
		Entities:   map[string]string{intent.EntityQuery: "telugu songs"},
		SourceText: "play telugu songs",
	})

	h.tasks.err = errors.New("task service down")
	run(h, intent.Intent{
		Kind:       intent.KindAddTask,
		Entities:   map[string]string{intent.EntityTitle: "call my mom"},
		SourceText: "add task call my mom",
	})

	h.search.err = errors.New("search service down")
	run(h, intent.Intent{
		Kind:       intent.KindPlayMusic,
		Entities:   map[string]string{intent.EntityQuery: "telugu songs"},
		SourceText: "play telugu songs",
	})

	// Two web fallbacks: the track attempt, then the search deep link
	// after the search error.
	if got := testutil.ToFloat64(fallbackCounter) - fallbackBefore; got != 2 {
		t.Fatalf("web_fallback delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(taskCounter) - taskBefore; got != 1 {
		t.Fatalf("task error delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(searchCounter) - searchBefore; got != 1 {
		t.Fatalf("search error delta = %v, want 1", got)
	}
}

func TestResolvePageLongestPatternWins(t *testing.T) {
	route, ok := ResolvePage("open my reminders page")
	if !ok || route != RouteReminders {
		t.Fatalf("ResolvePage = (%q, %v)", route, ok)
	}
	route, ok = ResolvePage("show the task screen")
	if !ok || route != RouteTasks {
		t.Fatalf("ResolvePage = (%q, %v)", route, ok)
	}
	if _, ok := ResolvePage("somewhere else"); ok {
		t.Fatal("ResolvePage matched an unlisted page")
	}
}

func TestSanitizeQuery(t *testing.T) {
	cases := map[string]string{
		"telugu songs!!":    "telugu songs",
		"  lo-fi,  beats  ": "lo fi beats",
		"A.R. Rahman hits":  "a r rahman hits",
	}
	for in, want := range cases {
		if got := sanitizeQuery(in); got != want {
			t.Errorf("sanitizeQuery(%q) = %q, want %q", in, got, want)
		}
	}
}
