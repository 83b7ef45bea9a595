// Package intent classifies transcribed voice commands. A primary NLP call
// is raced against a bounded timeout; on any timeout, transport, or shape
// failure a deterministic rule table takes over, so classification never
// surfaces an error.
package intent

import "strings"

// Kind is the canonical intent label. The NLP service and the fallback
// matcher historically used divergent spellings ("tasks_show" vs
// "show_tasks"); both paths are normalized onto this one enum.
type Kind string

const (
	KindAddTask       Kind = "add_task"
	KindShowTasks     Kind = "show_tasks"
	KindAddReminder   Kind = "add_reminder"
	KindShowReminders Kind = "show_reminders"
	KindPlayMusic     Kind = "play_music"
	KindNavigate      Kind = "navigate"
	KindGreeting      Kind = "greeting"
	KindUnknown       Kind = "unknown"
)

// Entity keys shared by both classification paths.
const (
	EntityTitle       = "title"
	EntityDescription = "description"
	EntityTime        = "time"
	EntityQuery       = "query"
	EntityPage        = "page"
)

var kindAliases = map[string]Kind{
	"add_task":       KindAddTask,
	"task_add":       KindAddTask,
	"create_task":    KindAddTask,
	"show_tasks":     KindShowTasks,
	"tasks_show":     KindShowTasks,
	"list_tasks":     KindShowTasks,
	"add_reminder":   KindAddReminder,
	"reminder_add":   KindAddReminder,
	"set_reminder":   KindAddReminder,
	"show_reminders": KindShowReminders,
	"reminders_show": KindShowReminders,
	"list_reminders": KindShowReminders,
	"play_music":     KindPlayMusic,
	"music_play":     KindPlayMusic,
	"play_song":      KindPlayMusic,
	"navigate":       KindNavigate,
	"open_page":      KindNavigate,
	"go_to_page":     KindNavigate,
	"greeting":       KindGreeting,
	"greet":          KindGreeting,
	"unknown":        KindUnknown,
}

// NormalizeKind maps a raw intent label from either classification path to
// the canonical enum. Unrecognized labels collapse to KindUnknown.
func NormalizeKind(label string) Kind {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return KindUnknown
	}
	return k
}

// Intent is the classified purpose of an utterance. It is immutable once
// produced; routing reads it but never mutates it.
type Intent struct {
	Kind       Kind              `json:"kind"`
	Entities   map[string]string `json:"entities,omitempty"`
	Confidence float64           `json:"confidence"`
	SourceText string            `json:"source_text"`
}

// Entity returns the named entity or "".
func (in Intent) Entity(key string) string {
	if in.Entities == nil {
		return ""
	}
	return in.Entities[key]
}

// Path records which classification path produced an intent.
type Path string

const (
	PathPrimary  Path = "primary"
	PathFallback Path = "fallback"
)

// Outcome is the tagged result of one classification attempt chain.
type Outcome struct {
	Intent Intent
	Path   Path
}
