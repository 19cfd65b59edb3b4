package core

import "strings"

// ContextType labels the intent of a free-text query and controls which
// slice of the event data is handed to the model.
type ContextType string

const (
	ContextRegistered    ContextType = "registered"
	ContextUpcomingWeek  ContextType = "upcoming_week"
	ContextUpcomingMonth ContextType = "upcoming_month"
	ContextTodayTomorrow ContextType = "today_tomorrow"
	ContextAcademic      ContextType = "academic"
	ContextClub          ContextType = "club"
	ContextTechnical     ContextType = "technical"
	ContextCultural      ContextType = "cultural"
	ContextSports        ContextType = "sports"
	ContextAll           ContextType = "all"
)

type classifierRule struct {
	keywords []string
	context  ContextType
}

// Rules are evaluated top to bottom, first match wins. The order is load
// bearing: "my registered events next week" must classify as registered,
// and a query containing "technical" hits the club rule before the
// technical tag-search rule ever sees it.
var classifierRules = []classifierRule{
	{[]string{"my events", "registered", "enrolled"}, ContextRegistered},
	{[]string{"next week", "this week"}, ContextUpcomingWeek},
	{[]string{"next month", "this month"}, ContextUpcomingMonth},
	{[]string{"today", "tomorrow"}, ContextTodayTomorrow},
	{[]string{"academic", "exam", "holiday"}, ContextAcademic},
	{[]string{"club", "cultural", "technical"}, ContextClub},
	{[]string{"technical", "coding", "programming"}, ContextTechnical},
	{[]string{"cultural", "dance", "music"}, ContextCultural},
	{[]string{"sports", "game", "tournament"}, ContextSports},
}

// Classify maps a raw query to a context type. It always returns exactly
// one type; queries matching nothing fall through to ContextAll.
func Classify(query string) ContextType {
	lowered := strings.ToLower(query)
	for _, rule := range classifierRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return rule.context
			}
		}
	}
	return ContextAll
}
