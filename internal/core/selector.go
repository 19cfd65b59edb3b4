package core

import (
	"strings"
	"time"

	"github.com/capable-sharma/CampusyncCapable/internal/store"
)

// Tag keyword sets for the category context types.
var (
	technicalTags = []string{"technical", "coding", "programming", "hackathon"}
	culturalTags  = []string{"cultural", "dance", "music", "art"}
	sportsTags    = []string{"sports", "game", "tournament", "athletics"}
)

// Accepted layouts for event dates. Anything else is treated as out of
// range rather than an error.
var eventDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseEventDate(date string) (time.Time, bool) {
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SelectContext picks the event subset relevant to a classified query.
// now is evaluated once per request by the caller so every date comparison
// within a request sees the same instant. Input ordering is preserved.
func SelectContext(contextType ContextType, now time.Time, registered, approved []store.Event) []store.Event {
	switch contextType {
	case ContextRegistered:
		return registered
	case ContextUpcomingWeek:
		return filterByDateRange(approved, now, 7)
	case ContextUpcomingMonth:
		return filterByDateRange(approved, now, 30)
	case ContextTodayTomorrow:
		return filterByDateRange(approved, now, 1)
	case ContextAcademic:
		return filterByType(approved, store.EventTypeAcademic)
	case ContextClub:
		return filterByType(approved, store.EventTypeClub)
	case ContextTechnical:
		return filterByTags(approved, technicalTags)
	case ContextCultural:
		return filterByTags(approved, culturalTags)
	case ContextSports:
		return filterByTags(approved, sportsTags)
	default:
		return approved
	}
}

// filterByDateRange keeps events dated within [now, now+days], inclusive
// on both ends. Events with unparseable dates are excluded, never an error.
func filterByDateRange(events []store.Event, now time.Time, days int) []store.Event {
	end := now.Add(time.Duration(days) * 24 * time.Hour)

	filtered := make([]store.Event, 0, len(events))
	for _, event := range events {
		eventDate, ok := parseEventDate(event.Date)
		if !ok {
			continue
		}
		if !eventDate.Before(now) && !eventDate.After(end) {
			filtered = append(filtered, event)
		}
	}
	return filtered
}

func filterByType(events []store.Event, eventType string) []store.Event {
	filtered := make([]store.Event, 0, len(events))
	for _, event := range events {
		if event.Type == eventType {
			filtered = append(filtered, event)
		}
	}
	return filtered
}

// filterByTags keeps events with at least one tag matching any search
// keyword. Matching is case-insensitive and substring-based in both
// directions: "Hackathon2024" matches "hackathon", and "hack" matches
// "hackathon".
func filterByTags(events []store.Event, searchTags []string) []store.Event {
	filtered := make([]store.Event, 0, len(events))
	for _, event := range events {
		if eventMatchesTags(event, searchTags) {
			filtered = append(filtered, event)
		}
	}
	return filtered
}

func eventMatchesTags(event store.Event, searchTags []string) bool {
	for _, tag := range event.Tags {
		loweredTag := strings.ToLower(tag)
		for _, searchTag := range searchTags {
			if strings.Contains(loweredTag, searchTag) || strings.Contains(searchTag, loweredTag) {
				return true
			}
		}
	}
	return false
}
