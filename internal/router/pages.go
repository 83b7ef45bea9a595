package router

import (
	"strings"
	"unicode"
)

// Page routes the navigator understands.
const (
	RouteHome        = "/home"
	RouteTasks       = "/tasks"
	RouteTaskAdd     = "/tasks/new"
	RouteReminders   = "/reminders"
	RouteReminderAdd = "/reminders/new"
	RouteMusic       = "/music"
	RouteSettings    = "/settings"
)

// pageRoutes is matched top to bottom with longest patterns first, so
// "reminders" wins over "reminder" and neither shadows the other.
var pageRoutes = []struct {
	pattern string
	route   string
}{
	{"reminders", RouteReminders},
	{"reminder", RouteReminders},
	{"settings", RouteSettings},
	{"tasks", RouteTasks},
	{"task", RouteTasks},
	{"to do", RouteTasks},
	{"music", RouteMusic},
	{"songs", RouteMusic},
	{"home", RouteHome},
	{"main", RouteHome},
}

// ResolvePage maps a free-text page reference onto the route whitelist.
func ResolvePage(text string) (string, bool) {
	norm := strings.ToLower(text)
	for _, pr := range pageRoutes {
		if strings.Contains(norm, pr.pattern) {
			return pr.route, true
		}
	}
	return "", false
}

const defaultSearchPhrase = "trending songs"

// genericQueries are phrases that name music without naming any music.
var genericQueries = map[string]struct{}{
	"music":      {},
	"song":       {},
	"songs":      {},
	"a song":     {},
	"some music": {},
	"something":  {},
	"anything":   {},
}

// sanitizeQuery strips punctuation and collapses whitespace so the search
// service sees clean words.
func sanitizeQuery(query string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(query) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isSpecificQuery(query string) bool {
	if len(query) <= 1 {
		return false
	}
	_, generic := genericQueries[query]
	return !generic
}

// descriptionVerbs open phrases that read like a task or reminder body
// spoken without its trigger.
var descriptionVerbs = []string{
	"call", "buy", "pay", "send", "email", "text", "meet", "pick",
	"clean", "finish", "submit", "book", "schedule", "water", "walk",
	"take", "return", "renew",
}

func looksLikeBareDescription(text string) bool {
	norm := strings.ToLower(strings.TrimSpace(text))
	if strings.HasPrefix(norm, "to ") {
		return true
	}
	first, _, _ := strings.Cut(norm, " ")
	for _, verb := range descriptionVerbs {
		if first == verb {
			return true
		}
	}
	return false
}
