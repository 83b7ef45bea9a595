// Package router turns a classified intent into exactly one action. Every
// collaborator call is wrapped at this boundary; failures become spoken
// failure messages and never propagate to the pipeline.
package router

import (
	"context"
	"strings"
	"time"

	"github.com/anvesh29/mitra/internal/intent"
	"github.com/anvesh29/mitra/internal/observability"
	"github.com/anvesh29/mitra/internal/redirect"
	"github.com/anvesh29/mitra/internal/temporal"
	"github.com/anvesh29/mitra/pkg/log"
)

type TaskCreator interface {
	CreateTask(ctx context.Context, title string) error
}

type ReminderCreator interface {
	CreateReminder(ctx context.Context, description, timestamp string) error
}

type TrackSearcher interface {
	SearchTrack(ctx context.Context, query string) (trackID string, found bool, err error)
}

type AutoPlayer interface {
	Play(ctx context.Context, trackID, userID string) error
}

// Navigator receives the resolved page route. Exactly one navigation per
// routed intent, and only after any acknowledgment has been spoken.
type Navigator interface {
	Navigate(route string) error
}

type Speaker interface {
	Speak(message string)
}

// MediaOpener is the redirect engine surface the router drives.
type MediaOpener interface {
	OpenTrack(ctx context.Context, trackID string, onFallback func(reason string)) (redirect.Attempt, error)
	OpenSearch(ctx context.Context, query string, onFallback func(reason string)) (redirect.Attempt, error)
	AttemptTimeout() time.Duration
}

// ActionResult is the single outcome contract shared by the voice
// pipeline, push-to-talk and the direct action endpoint.
type ActionResult struct {
	Kind    intent.Kind `json:"kind"`
	Message string      `json:"message"`
	Success bool        `json:"success"`
	Route   string      `json:"route,omitempty"`
	Query   string      `json:"query,omitempty"`
	TrackID string      `json:"track_id,omitempty"`
}

type Router struct {
	tasks     TaskCreator
	reminders ReminderCreator
	search    TrackSearcher
	autoplay  AutoPlayer
	media     MediaOpener
	navigator Navigator
	speaker   Speaker
	metrics   *observability.Metrics
	now       func() time.Time
}

type Deps struct {
	Tasks     TaskCreator
	Reminders ReminderCreator
	Search    TrackSearcher
	AutoPlay  AutoPlayer
	Media     MediaOpener
	Navigator Navigator
	Speaker   Speaker
	Metrics   *observability.Metrics
	Now       func() time.Time
}

func New(deps Deps) *Router {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Router{
		tasks:     deps.Tasks,
		reminders: deps.Reminders,
		search:    deps.Search,
		autoplay:  deps.AutoPlay,
		media:     deps.Media,
		navigator: deps.Navigator,
		speaker:   deps.Speaker,
		metrics:   deps.Metrics,
		now:       now,
	}
}

// Route executes the intent and returns a result with a non-empty message
// on every path. It never panics; collaborator failures are converted
// here.
func (r *Router) Route(ctx context.Context, in intent.Intent, userID string) ActionResult {
	switch in.Kind {
	case intent.KindAddTask:
		return r.addTask(ctx, in)
	case intent.KindShowTasks:
		return r.showList(in, "Here are your tasks.", RouteTasks)
	case intent.KindAddReminder:
		return r.addReminder(ctx, in)
	case intent.KindShowReminders:
		return r.showList(in, "Here are your reminders.", RouteReminders)
	case intent.KindPlayMusic:
		return r.playMusic(ctx, in, userID)
	case intent.KindNavigate:
		return r.navigate(in)
	case intent.KindGreeting:
		return r.speakResult(in, "Hello! How can I help you?", true)
	default:
		return r.unknown(in)
	}
}

func (r *Router) addTask(ctx context.Context, in intent.Intent) ActionResult {
	title := strings.TrimSpace(in.Entity(intent.EntityTitle))
	if title == "" {
		res := r.speakResult(in, "Opening the task page so you can add one.", true)
		res.Route = r.open(RouteTaskAdd)
		return res
	}
	if err := r.tasks.CreateTask(ctx, title); err != nil {
		log.Warn(log.Fields{"title": title, "error": err.Error()}, "task creation failed")
		r.countCollabError("task")
		return r.speakResult(in, "Sorry, I failed to add that task.", false)
	}
	return r.speakResult(in, "Added task: "+title+".", true)
}

func (r *Router) addReminder(ctx context.Context, in intent.Intent) ActionResult {
	description := strings.TrimSpace(in.Entity(intent.EntityDescription))
	if description == "" {
		res := r.speakResult(in, "Opening the reminder page so you can add one.", true)
		res.Route = r.open(RouteReminderAdd)
		return res
	}
	// The raw time entity carries the clock; the source text still has the
	// day words, so both feed the resolver.
	timestamp := temporal.Resolve(in.SourceText, in.Entity(intent.EntityTime), r.now())
	if err := r.reminders.CreateReminder(ctx, description, timestamp); err != nil {
		log.Warn(log.Fields{"description": description, "error": err.Error()}, "reminder creation failed")
		r.countCollabError("reminder")
		return r.speakResult(in, "Sorry, I failed to add that reminder.", false)
	}
	return r.speakResult(in, "Reminder set: "+description+".", true)
}

// showList speaks the acknowledgment before navigating so the page
// transition does not cut it off.
func (r *Router) showList(in intent.Intent, message, route string) ActionResult {
	res := r.speakResult(in, message, true)
	res.Route = r.open(route)
	return res
}

func (r *Router) playMusic(ctx context.Context, in intent.Intent, userID string) ActionResult {
	query := sanitizeQuery(in.Entity(intent.EntityQuery))

	if !isSpecificQuery(query) {
		attempt, _ := r.media.OpenSearch(ctx, defaultSearchPhrase, nil)
		r.countRedirect(attempt)
		res := r.speakResult(in, "Playing some music for you.", true)
		res.Query = defaultSearchPhrase
		res.Route = attempt.WebURL
		return res
	}

	trackID, found, err := r.search.SearchTrack(ctx, query)
	if err != nil || !found {
		if err != nil {
			log.Warn(log.Fields{"query": query, "error": err.Error()}, "track search failed")
			r.countCollabError("search")
		}
		// A miss still deserves music: deep-link the in-app search.
		attempt, _ := r.media.OpenSearch(ctx, query, nil)
		r.countRedirect(attempt)
		res := r.speakResult(in, "Searching for "+query+".", true)
		res.Query = query
		res.Route = attempt.WebURL
		return res
	}

	attempt, _ := r.media.OpenTrack(ctx, trackID, func(reason string) {
		log.Debug(log.Fields{"track": trackID, "reason": reason}, "app attempt fell back to web")
	})
	r.countRedirect(attempt)
	if attempt.Outcome == redirect.OutcomeWebFallback && userID != "" {
		r.scheduleAutoPlay(trackID, userID)
	}

	res := r.speakResult(in, "Playing "+query+".", true)
	res.Query = query
	res.TrackID = trackID
	return res
}

// scheduleAutoPlay arms a one-shot fire-and-forget auto-play after the
// app-attempt window, giving the web player time to come up first.
func (r *Router) scheduleAutoPlay(trackID, userID string) {
	if r.autoplay == nil {
		return
	}
	delay := r.media.AttemptTimeout()
	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.autoplay.Play(ctx, trackID, userID); err != nil {
			log.Debug(log.Fields{"track": trackID, "error": err.Error()}, "auto-play fallback failed")
			r.countCollabError("autoplay")
		}
	})
}

func (r *Router) navigate(in intent.Intent) ActionResult {
	target := in.Entity(intent.EntityPage)
	if target == "" {
		target = in.SourceText
	}
	route, ok := ResolvePage(target)
	if !ok {
		return r.speakResult(in, "Sorry, I could not determine which page you meant.", false)
	}
	res := r.speakResult(in, "Taking you there.", true)
	res.Route = r.open(route)
	return res
}

func (r *Router) unknown(in intent.Intent) ActionResult {
	if looksLikeBareDescription(in.SourceText) {
		return r.speakResult(in, `That sounds like something to save. Say "add task" or "add reminder" followed by the details.`, false)
	}
	return r.speakResult(in, "Sorry, I did not understand that.", false)
}

func (r *Router) speakResult(in intent.Intent, message string, ok bool) ActionResult {
	if r.speaker != nil {
		r.speaker.Speak(message)
	}
	return ActionResult{Kind: in.Kind, Message: message, Success: ok}
}

// countRedirect records the terminal outcome of a media redirect attempt.
func (r *Router) countRedirect(attempt redirect.Attempt) {
	if r.metrics == nil || attempt.Outcome == "" {
		return
	}
	r.metrics.RedirectOutcomes.WithLabelValues(string(attempt.Outcome)).Inc()
}

// countCollabError records a failed collaborator call by service name.
func (r *Router) countCollabError(service string) {
	if r.metrics == nil {
		return
	}
	r.metrics.CollaboratorErrors.WithLabelValues(service).Inc()
}

// open performs the navigation and returns the route for the result. A
// failed transition is logged, not surfaced; the acknowledgment already
// went out.
func (r *Router) open(route string) string {
	if r.navigator == nil {
		return route
	}
	if err := r.navigator.Navigate(route); err != nil {
		log.Warn(log.Fields{"route": route, "error": err.Error()}, "navigation failed")
	}
	return route
}
