package nlu

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tripweaver/tripweaver/internal/session"
	"github.com/tripweaver/tripweaver/internal/travel"
)

// RulesExtractor is a heuristic fallback used when no LLM is configured or
// the model call fails. It covers the common phrasings only; anything it
// misses simply stays unfilled and gets asked for in the follow-up.
type RulesExtractor struct {
	now func() time.Time
}

// NewRulesExtractor creates a heuristic extractor.
func NewRulesExtractor() *RulesExtractor {
	return &RulesExtractor{now: time.Now}
}

var (
	budgetRe     = regexp.MustCompile(`(?i)(?:\$|budget\s*(?:of|is|:)?\s*\$?|under\s*\$?)\s*(\d+(?:,\d{3})*(?:\.\d+)?)`)
	tripLenRe    = regexp.MustCompile(`(?i)(\d+)[-\s]day`)
	tripWeekRe   = regexp.MustCompile(`(?i)(\d+|a)[-\s]week`)
	travelersRe  = regexp.MustCompile(`(?i)(\d+)\s*(?:people|persons|adults|travelers|travellers|of us)`)
	destRe       = regexp.MustCompile(`(?i)(?:trip|travel|go|going|fly|flying|flight)(?:\s+\w+)?\s+to\s+([A-Z][A-Za-z .'-]+?)(?:[,.!?]|\s+(?:in|on|from|for|with|next|this)\b|$)`)
	originRe     = regexp.MustCompile(`(?i)from\s+([A-Z][A-Za-z .'-]+?)(?:[,.!?]|\s+(?:to|in|on|for|with)\b|$)`)
	monthDayRe   = regexp.MustCompile(`(?i)(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{1,2})(?:\s*(?:-|to|through)\s*(\d{1,2}))?`)
	isoDateRe    = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	monthOnlyRe  = regexp.MustCompile(`(?i)\b(?:in\s+|mid[-\s]|early\s+|late\s+)(january|february|march|april|may|june|july|august|september|october|november|december)\b`)
	maxRateRe    = regexp.MustCompile(`(?i)(?:under|max|at most|less than)\s*\$?(\d+)\s*(?:a|per|/)\s*night`)
	neighborRe   = regexp.MustCompile(`(?i)(?:in|near|around)\s+(?:the\s+)?([A-Z][A-Za-z .'-]+?)\s+(?:neighborhood|district|area)`)
	experienceRe = regexp.MustCompile(`(?i)(?:things to do|activities|tours?|experiences?)(?:\s+like)?\s*[:]?\s*([a-z][a-z .,'-]*)?`)
)

var monthNumbers = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// Extract applies regex heuristics to the message. History and current
// slots are unused; heuristics only see the latest message.
func (r *RulesExtractor) Extract(_ context.Context, message string, _ []session.Turn, _ travel.Slots) (travel.SlotUpdate, error) {
	update := travel.SlotUpdate{}

	if m := destRe.FindStringSubmatch(message); m != nil {
		update[travel.SlotDestination] = strings.TrimSpace(m[1])
	}
	if m := originRe.FindStringSubmatch(message); m != nil {
		update[travel.SlotOrigin] = strings.TrimSpace(m[1])
	}

	if m := maxRateRe.FindStringSubmatch(message); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			update[travel.SlotMaxRate] = v
		}
	}
	if m := budgetRe.FindStringSubmatch(message); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			// A nightly rate also matches the budget pattern; don't double-book it.
			if rate, ok := update[travel.SlotMaxRate].(float64); !ok || rate != v {
				update[travel.SlotBudget] = v
			}
		}
	}

	if n, ok := travelerCount(message); ok {
		update[travel.SlotTravelers] = n
	}

	if m := neighborRe.FindStringSubmatch(message); m != nil {
		update[travel.SlotNeighborhood] = strings.TrimSpace(m[1])
	}

	lower := strings.ToLower(message)
	if strings.Contains(lower, "things to do") || strings.Contains(lower, "activities") ||
		strings.Contains(lower, "tours") || strings.Contains(lower, "experiences") {
		update[travel.SlotExperienceQuery] = experienceQuery(message)
	}

	r.extractDates(message, update)

	return update, nil
}

func travelerCount(message string) (int, bool) {
	if m := travelersRe.FindStringSubmatch(message); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, true
		}
	}
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "couple"), strings.Contains(lower, "my wife"),
		strings.Contains(lower, "my husband"), strings.Contains(lower, "my partner"),
		strings.Contains(lower, "two of us"):
		return 2, true
	case strings.Contains(lower, "family"):
		return 4, true
	case strings.Contains(lower, "solo"), strings.Contains(lower, "by myself"),
		strings.Contains(lower, "just me"):
		return 1, true
	}
	return 0, false
}

func experienceQuery(message string) string {
	if m := experienceRe.FindStringSubmatch(message); m != nil && strings.TrimSpace(m[1]) != "" {
		return strings.Trim(strings.TrimSpace(m[1]), ".,")
	}
	return "popular activities"
}

// extractDates fills start_date/end_date from explicit dates, month + day
// spans, or a month plus trip length ("3-day trip in mid-June").
func (r *RulesExtractor) extractDates(message string, update travel.SlotUpdate) {
	if dates := isoDateRe.FindAllString(message, 2); len(dates) > 0 {
		update[travel.SlotStartDate] = dates[0]
		if len(dates) > 1 {
			update[travel.SlotEndDate] = dates[1]
		}
		return
	}

	tripDays := 0
	if m := tripLenRe.FindStringSubmatch(message); m != nil {
		tripDays, _ = strconv.Atoi(m[1])
	} else if m := tripWeekRe.FindStringSubmatch(message); m != nil {
		weeks := 1
		if m[1] != "a" && m[1] != "A" {
			weeks, _ = strconv.Atoi(m[1])
		}
		tripDays = weeks * 7
	}

	now := r.now()

	if m := monthDayRe.FindStringSubmatch(message); m != nil {
		month := monthNumbers[strings.ToLower(m[1])]
		day, _ := strconv.Atoi(m[2])
		year := yearFor(now, month)
		start := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		update[travel.SlotStartDate] = start.Format("2006-01-02")
		if m[3] != "" {
			endDay, _ := strconv.Atoi(m[3])
			end := time.Date(year, month, endDay, 0, 0, 0, 0, time.UTC)
			update[travel.SlotEndDate] = end.Format("2006-01-02")
		} else if tripDays > 0 {
			update[travel.SlotEndDate] = start.AddDate(0, 0, tripDays).Format("2006-01-02")
		}
		return
	}

	if m := monthOnlyRe.FindStringSubmatch(message); m != nil && tripDays > 0 {
		month := monthNumbers[strings.ToLower(m[1])]
		year := yearFor(now, month)
		day := 15 // mid-month unless told otherwise
		if strings.Contains(strings.ToLower(message), "early") {
			day = 5
		} else if strings.Contains(strings.ToLower(message), "late") {
			day = 22
		}
		start := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		update[travel.SlotStartDate] = start.Format("2006-01-02")
		update[travel.SlotEndDate] = start.AddDate(0, 0, tripDays).Format("2006-01-02")
	}
}

// yearFor picks the next occurrence of month relative to now.
func yearFor(now time.Time, month time.Month) int {
	if month < now.Month() {
		return now.Year() + 1
	}
	return now.Year()
}
