package enrichment

import (
	"regexp"
	"strings"
)

// MinEventSignal is the combined structural signal a text needs before it is
// treated as a genuine event rather than a general announcement.
const MinEventSignal = 2

var (
	strongEventWords = []string{"event", "workshop", "conference", "festival", "celebration", "meetup", "gathering"}

	datePattern     = regexp.MustCompile(`(?i)\b(\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}|\d{1,2}(st|nd|rd|th)?\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec))`)
	timePattern     = regexp.MustCompile(`(?i)\b(\d{1,2}:\d{2}|\d{1,2}(am|pm))\b`)
	venuePattern    = regexp.MustCompile(`(?i)\b(venue|location|address|at\s+\w+|in\s+\w+)\b`)
	registerPattern = regexp.MustCompile(`(?i)\b(register|rsvp|tickets|book|sign up|join us)\b`)
)

// Likelihood breaks down the event-likelihood heuristic.
type Likelihood struct {
	StrongWord bool
	Date       bool
	Time       bool
	Venue      bool
	Register   bool
	Signal     int
}

// Likely reports whether the combined signal reaches MinEventSignal.
func (l Likelihood) Likely() bool {
	return l.Signal >= MinEventSignal
}

// EventLikelihood scores structural cues that text describes a scheduled event.
func EventLikelihood(text string) Likelihood {
	lower := strings.ToLower(text)

	var l Likelihood
	for _, w := range strongEventWords {
		if strings.Contains(lower, w) {
			l.StrongWord = true
			break
		}
	}
	l.Date = datePattern.MatchString(lower)
	l.Time = timePattern.MatchString(lower)
	l.Venue = venuePattern.MatchString(lower)
	l.Register = registerPattern.MatchString(lower)

	if l.StrongWord {
		l.Signal += 3
	}
	if l.Date {
		l.Signal += 2
	}
	if l.Time {
		l.Signal += 2
	}
	if l.Venue {
		l.Signal++
	}
	if l.Register {
		l.Signal++
	}
	return l
}
