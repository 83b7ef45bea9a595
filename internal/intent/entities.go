package intent

import (
	"regexp"
	"strings"

	"github.com/anvesh29/mitra/internal/temporal"
)

var relativeDayWords = map[string]bool{
	"tomorrow": true, "today": true, "tonight": true,
	"morning": true, "evening": true, "afternoon": true, "night": true,
}

var dayConnectorWords = map[string]bool{
	"this": true, "in": true, "the": true, "on": true, "at": true, "by": true,
}

var weekdayWords = map[string]bool{
	"sunday": true, "monday": true, "tuesday": true, "wednesday": true,
	"thursday": true, "friday": true, "saturday": true,
}

var weekdayTimeRE = regexp.MustCompile(
	`^(.+?)\s+(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\s+(.+)$`)

var forTimeToRE = regexp.MustCompile(`^for\s+(.+?)\s+to\s+(.+)$`)

// extractReminderEntities splits the text after a reminder trigger into a
// description and a raw time phrase. Patterns are tried in a fixed order;
// the final fallback keeps everything as the description with no time.
func extractReminderEntities(rest string) (string, string) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", ""
	}

	// "<description> at <time>".
	if idx := strings.LastIndex(rest, " at "); idx > 0 {
		timePart := strings.TrimSpace(rest[idx+len(" at "):])
		if temporal.ParseTime(timePart) != "" {
			desc, day := stripTrailingDay(rest[:idx])
			if day != "" {
				timePart = day + " " + timePart
			}
			return cleanDescription(desc), timePart
		}
	}

	// "<description>, <time>".
	if idx := strings.LastIndex(rest, ","); idx > 0 {
		timePart := strings.TrimSpace(rest[idx+1:])
		if looksLikeTime(timePart) {
			return cleanDescription(rest[:idx]), timePart
		}
	}

	// "for <time> to <description>".
	if m := forTimeToRE.FindStringSubmatch(rest); m != nil && looksLikeTime(m[1]) {
		return cleanDescription(m[2]), strings.TrimSpace(m[1])
	}

	// "<description> <weekday> <clock-time>".
	if m := weekdayTimeRE.FindStringSubmatch(rest); m != nil && temporal.ParseTime(m[3]) != "" {
		return cleanDescription(m[1]), m[2] + " " + strings.TrimSpace(m[3])
	}

	// Trailing relative day, weekday, or bare clock time.
	if desc, day := stripTrailingDay(rest); day != "" {
		return cleanDescription(desc), day
	}
	if desc, clock := stripTrailingClock(rest); clock != "" {
		return cleanDescription(desc), clock
	}

	return cleanDescription(rest), ""
}

// looksLikeTime reports whether text is usable as a raw time phrase: a
// parseable clock time, a relative day word, or a weekday name.
func looksLikeTime(text string) bool {
	if temporal.ParseTime(text) != "" {
		return true
	}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if relativeDayWords[w] || weekdayWords[w] {
			return true
		}
	}
	return false
}

// stripTrailingDay removes a trailing day phrase ("tomorrow", "friday",
// "this evening") from desc and returns it separately.
func stripTrailingDay(desc string) (string, string) {
	words := strings.Fields(strings.TrimSpace(desc))
	cut := len(words)
	for cut > 0 {
		w := words[cut-1]
		if relativeDayWords[w] || weekdayWords[w] {
			cut--
			continue
		}
		// Connectors are only stripped when they precede a stripped day word.
		if cut < len(words) && dayConnectorWords[w] {
			cut--
			continue
		}
		break
	}
	if cut == len(words) || cut == 0 {
		return strings.Join(words, " "), ""
	}
	return strings.Join(words[:cut], " "), strings.Join(words[cut:], " ")
}

// stripTrailingClock removes a trailing bare clock time ("5 pm", "17:30").
func stripTrailingClock(desc string) (string, string) {
	words := strings.Fields(strings.TrimSpace(desc))
	for take := 1; take <= 2; take++ {
		if len(words) <= take {
			continue
		}
		tail := strings.Join(words[len(words)-take:], " ")
		if temporal.ParseTime(tail) != "" {
			return strings.Join(words[:len(words)-take], " "), tail
		}
	}
	return strings.Join(words, " "), ""
}

func cleanDescription(desc string) string {
	desc = strings.TrimSpace(desc)
	desc = strings.TrimPrefix(desc, "to ")
	return strings.TrimSpace(strings.Trim(desc, ","))
}
