// Package temporal resolves informal date/time phrases ("tomorrow at 5:30 pm",
// "friday evening", "tonight") to absolute timestamps. Reminder timestamps are
// always emitted with the fixed +05:30 offset, never UTC.
package temporal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// IST is the fixed offset applied to every resolved timestamp.
var IST = time.FixedZone("IST", 5*3600+30*60)

const timestampLayout = "2006-01-02T15:04:05-07:00"

var (
	meridiemClockRE = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*([ap])\.?m\.?\b`)
	bareClockRE     = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Default clock times for bare day phrases.
const (
	defaultMorning   = "09:00"
	defaultTonight   = "20:00"
	defaultEvening   = "19:00"
	defaultAfternoon = "15:00"
)

// ParseTime extracts a clock time from text and normalizes it to "HH:MM".
// It recognizes "H[:MM] am/pm" and bare 24-hour "HH:MM". Returns "" when no
// clock time is present, so bare phrases like "tomorrow" are never misread
// as times.
func ParseTime(text string) string {
	if m := meridiemClockRE.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 || minute > 59 {
			return ""
		}
		if strings.EqualFold(m[3], "p") {
			if hour != 12 {
				hour += 12
			}
		} else if hour == 12 {
			hour = 0
		}
		return fmt.Sprintf("%02d:%02d", hour, minute)
	}
	if m := bareClockRE.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return ""
		}
		return fmt.Sprintf("%02d:%02d", hour, minute)
	}
	return ""
}

// ResolveWeekday returns the next occurrence of the named weekday strictly
// after now; if today already matches, it wraps a full week ahead.
func ResolveWeekday(name string, now time.Time) (time.Time, bool) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return time.Time{}, false
	}
	now = now.In(IST)
	ahead := (int(wd) - int(now.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return now.AddDate(0, 0, ahead), true
}

// ToAbsoluteTimestamp resolves free text plus an optional explicit time hint
// to an ISO-8601 timestamp with the +05:30 offset. Resolution precedence:
// explicit clock time (parameter or in-text) > named weekday > today /
// tomorrow / tonight > bare-phrase default clock > now plus one hour.
func ToAbsoluteTimestamp(freeText, explicitTime string) string {
	return Resolve(freeText, explicitTime, time.Now())
}

// Resolve is ToAbsoluteTimestamp with an injectable reference instant.
func Resolve(freeText, explicitTime string, now time.Time) string {
	now = now.In(IST)

	clock := ""
	if explicitTime != "" {
		clock = ParseTime(explicitTime)
		if clock == "" {
			// A bare phrase was passed as the time; fold it into the text
			// so day resolution still sees it.
			freeText = strings.TrimSpace(freeText + " " + explicitTime)
		}
	}
	lower := strings.ToLower(freeText)
	if clock == "" {
		clock = ParseTime(lower)
	}

	day := time.Time{}
	dayKnown := false
	// First weekday mention wins; later mentions are ignored.
	for _, word := range strings.Fields(strings.Map(letterOrSpace, lower)) {
		if d, ok := ResolveWeekday(word, now); ok {
			day = d
			dayKnown = true
			break
		}
	}
	if !dayKnown {
		switch {
		case strings.Contains(lower, "tomorrow"):
			day = now.AddDate(0, 0, 1)
			dayKnown = true
		case strings.Contains(lower, "tonight"), strings.Contains(lower, "today"):
			day = now
			dayKnown = true
		}
	}

	if clock == "" {
		switch {
		case strings.Contains(lower, "tonight"):
			clock = defaultTonight
		case strings.Contains(lower, "evening"):
			clock = defaultEvening
			if !dayKnown {
				day = now
				dayKnown = true
			}
		case strings.Contains(lower, "afternoon"):
			clock = defaultAfternoon
			if !dayKnown {
				day = now
				dayKnown = true
			}
		case dayKnown:
			clock = defaultMorning
		}
	}

	if !dayKnown && clock == "" {
		// Nothing recognizable: one hour from now.
		fallback := now.Add(time.Hour)
		return time.Date(fallback.Year(), fallback.Month(), fallback.Day(),
			fallback.Hour(), fallback.Minute(), 0, 0, IST).Format(timestampLayout)
	}
	if !dayKnown {
		day = now
	}

	hour, minute := splitClock(clock)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, IST).Format(timestampLayout)
}

func splitClock(clock string) (int, int) {
	parts := strings.SplitN(clock, ":", 2)
	hour, _ := strconv.Atoi(parts[0])
	minute := 0
	if len(parts) == 2 {
		minute, _ = strconv.Atoi(parts[1])
	}
	return hour, minute
}

func letterOrSpace(r rune) rune {
	if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == ' ' {
		return r
	}
	return ' '
}
