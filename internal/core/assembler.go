package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/capable-sharma/CampusyncCapable/internal/store"
)

// maxPromptEvents caps how many events get embedded in a single prompt.
// Without a cap a broad query against a large catalog can exceed the
// completion API's request size limit; events past the cap are dropped in
// input order.
const maxPromptEvents = 40

const assistantInstructions = `Instructions:
1. Provide a helpful, friendly response to the user's query
2. If the user asks about events, include relevant event details from the provided data
3. Format event information clearly with titles, dates, times, venues, and descriptions
4. If no relevant events are found, politely inform the user
5. Keep responses concise but informative
6. Be encouraging and supportive
7. If the user asks about enrollment or registration, remind them they can enroll through the app
8. Use a conversational, student-friendly tone`

// EventSummary is the reduced event record embedded in prompts and returned
// by the recommender. It deliberately omits ids, approval state, attendee
// lists and internal timestamps so none of that leaks to the external model.
type EventSummary struct {
	Title       string   `json:"title"`
	Date        string   `json:"date"`
	Time        string   `json:"time"`
	Venue       string   `json:"venue"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func ProjectEvent(event store.Event) EventSummary {
	return EventSummary{
		Title:       event.Title,
		Date:        event.Date,
		Time:        event.Time,
		Venue:       event.Venue,
		Description: event.Description,
		Tags:        event.Tags,
	}
}

func ProjectEvents(events []store.Event) []EventSummary {
	summaries := make([]EventSummary, 0, len(events))
	for _, event := range events {
		summaries = append(summaries, ProjectEvent(event))
	}
	return summaries
}

// BuildPrompt assembles the full prompt for a query: the assistant persona,
// the classified context type, the event count, and the projected event
// list as JSON. The event list is truncated to maxPromptEvents.
func BuildPrompt(query string, contextType ContextType, events []EventSummary) (string, error) {
	if len(events) > maxPromptEvents {
		events = events[:maxPromptEvents]
	}

	eventsJSON, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal events for prompt: %w", err)
	}

	prompt := fmt.Sprintf(`You are CampusSync AI, a helpful assistant for college students. You help students with information about college events, academics, and campus life.

Context Information:
- User is asking: %q
- Context type: %s
- Available events: %d events

Events data:
%s

%s

User Query: %s`, query, contextType, len(events), eventsJSON, assistantInstructions, query)

	return prompt, nil
}

// BuildSummaryPrompt assembles the prompt for a single-event summary.
func BuildSummaryPrompt(event EventSummary) string {
	return fmt.Sprintf(`Generate a concise, engaging summary for this college event:

Event Details:
- Title: %s
- Date: %s
- Time: %s
- Venue: %s
- Description: %s
- Tags: %s

Please create a 2-3 sentence summary that would attract students to attend this event. Focus on the key benefits and what makes it interesting.`,
		event.Title, event.Date, event.Time, event.Venue, event.Description, strings.Join(event.Tags, ", "))
}
