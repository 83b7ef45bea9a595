package intent

import (
	"strings"
)

// The fallback matcher is a fixed, ordered rule table over normalized text.
// Order is load-bearing: show-list phrases outrank music, generic music
// outranks vocabulary music, and vocabulary music outranks specific-song
// extraction. First match wins.

type fallbackRule struct {
	name     string
	priority int
	match    func(norm string) (Intent, bool)
}

var showTaskPhrases = []string{
	"show my tasks", "show tasks", "show task list", "open tasks",
	"view tasks", "view my tasks", "my tasks", "list my tasks", "list tasks",
}

var showReminderPhrases = []string{
	"show my reminders", "show reminders", "show reminder list",
	"open reminders", "view reminders", "view my reminders", "my reminders",
	"list my reminders", "list reminders",
}

var genericPlayPhrases = []string{
	"play a song", "play song", "play music", "play some music",
	"play something", "play any song",
}

var taskTriggers = []string{
	"add task", "add a task", "add new task", "create task", "create a task", "new task",
}

var reminderTriggers = []string{
	"remind me to", "remind me", "set a reminder to", "set a reminder",
	"set reminder", "add reminder", "add a reminder", "create reminder",
	"create a reminder",
}

var greetingPhrases = []string{
	"hello", "hi", "hey", "hey there", "good morning", "good afternoon",
	"good evening", "namaste", "hello mitra", "hi mitra", "hey mitra",
}

// Fixed vocabulary accepted as a genre/language/mood music qualifier.
var musicVocabulary = map[string]bool{
	// Languages.
	"telugu": true, "hindi": true, "tamil": true, "english": true,
	"kannada": true, "malayalam": true, "punjabi": true, "marathi": true,
	"bengali": true,
	// Genres.
	"pop": true, "rock": true, "jazz": true, "classical": true,
	"melody": true, "folk": true, "rap": true, "hip hop": true,
	"edm": true, "lofi": true, "devotional": true,
	// Moods.
	"sad": true, "happy": true, "romantic": true, "energetic": true,
	"relaxing": true, "motivational": true, "party": true, "chill": true,
}

// Captures too generic to treat as a song or artist name.
var degenerateQueries = map[string]bool{
	"a": true, "song": true, "a song": true, "songs": true,
	"music": true, "some music": true,
}

var fallbackRules = []fallbackRule{
	{name: "show_list", priority: 1, match: matchShowList},
	{name: "generic_music", priority: 2, match: matchGenericMusic},
	{name: "vocabulary_music", priority: 3, match: matchVocabularyMusic},
	{name: "specific_music", priority: 4, match: matchSpecificMusic},
	{name: "add_task", priority: 5, match: matchAddTask},
	{name: "add_reminder", priority: 6, match: matchAddReminder},
	{name: "greeting", priority: 7, match: matchGreeting},
}

// classifyFallback runs the deterministic rule table. It always produces an
// intent; unmatched text becomes KindUnknown with low confidence.
func classifyFallback(text string) Intent {
	norm := normalizeText(text)
	for _, rule := range fallbackRules {
		if in, ok := rule.match(norm); ok {
			in.SourceText = text
			return in
		}
	}
	return Intent{Kind: KindUnknown, Confidence: 0.3, SourceText: text}
}

func matchShowList(norm string) (Intent, bool) {
	for _, p := range showReminderPhrases {
		if strings.Contains(norm, p) {
			return Intent{Kind: KindShowReminders, Confidence: 0.9}, true
		}
	}
	for _, p := range showTaskPhrases {
		if strings.Contains(norm, p) {
			return Intent{Kind: KindShowTasks, Confidence: 0.9}, true
		}
	}
	return Intent{}, false
}

func matchGenericMusic(norm string) (Intent, bool) {
	for _, p := range genericPlayPhrases {
		if norm == p {
			return Intent{Kind: KindPlayMusic, Confidence: 0.85}, true
		}
	}
	return Intent{}, false
}

func matchVocabularyMusic(norm string) (Intent, bool) {
	qualifier, ok := musicQualifier(norm)
	if !ok {
		return Intent{}, false
	}
	return Intent{
		Kind:       KindPlayMusic,
		Confidence: 0.85,
		Entities:   map[string]string{EntityQuery: qualifier + " songs"},
	}, true
}

func matchSpecificMusic(norm string) (Intent, bool) {
	if !strings.HasPrefix(norm, "play ") {
		return Intent{}, false
	}
	query := strings.TrimSpace(strings.TrimPrefix(norm, "play"))
	if query == "" || degenerateQueries[query] {
		// Too generic to search for; treat as a generic play request.
		return Intent{Kind: KindPlayMusic, Confidence: 0.7}, true
	}
	return Intent{
		Kind:       KindPlayMusic,
		Confidence: 0.8,
		Entities:   map[string]string{EntityQuery: query},
	}, true
}

func matchAddTask(norm string) (Intent, bool) {
	rest, ok := splitTrigger(norm, taskTriggers)
	if !ok {
		return Intent{}, false
	}
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "to "))
	in := Intent{Kind: KindAddTask, Confidence: 0.9}
	if rest != "" {
		in.Entities = map[string]string{EntityTitle: rest}
	}
	return in, true
}

func matchAddReminder(norm string) (Intent, bool) {
	rest, ok := splitTrigger(norm, reminderTriggers)
	if !ok {
		return Intent{}, false
	}
	in := Intent{Kind: KindAddReminder, Confidence: 0.9}
	desc, timeText := extractReminderEntities(rest)
	if desc != "" || timeText != "" {
		in.Entities = map[string]string{}
		if desc != "" {
			in.Entities[EntityDescription] = desc
		}
		if timeText != "" {
			in.Entities[EntityTime] = timeText
		}
	}
	return in, true
}

func matchGreeting(norm string) (Intent, bool) {
	for _, p := range greetingPhrases {
		if norm == p || strings.HasPrefix(norm, p+" ") {
			return Intent{Kind: KindGreeting, Confidence: 0.95}, true
		}
	}
	return Intent{}, false
}

// musicQualifier matches "play [some] X songs/music" and accepts X only when
// it belongs to the fixed language/genre/mood vocabulary.
func musicQualifier(norm string) (string, bool) {
	rest, ok := strings.CutPrefix(norm, "play ")
	if !ok {
		return "", false
	}
	rest = strings.TrimPrefix(rest, "some ")
	var tail string
	switch {
	case strings.HasSuffix(rest, " songs"):
		tail = " songs"
	case strings.HasSuffix(rest, " song"):
		tail = " song"
	case strings.HasSuffix(rest, " music"):
		tail = " music"
	default:
		return "", false
	}
	qualifier := strings.TrimSpace(strings.TrimSuffix(rest, tail))
	if !musicVocabulary[qualifier] {
		return "", false
	}
	return qualifier, true
}

// splitTrigger finds the first trigger phrase present in norm and returns
// the text after it. Longer triggers are listed first in each table so the
// most specific phrase wins.
func splitTrigger(norm string, triggers []string) (string, bool) {
	for _, trig := range triggers {
		idx := strings.Index(norm, trig)
		if idx < 0 {
			continue
		}
		return strings.TrimSpace(norm[idx+len(trig):]), true
	}
	return "", false
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(text))), " ")
}
