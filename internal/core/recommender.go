package core

import (
	"sort"

	"github.com/capable-sharma/CampusyncCapable/internal/store"
)

const maxRecommendations = 5

// ScoredEvent is a recommendation candidate annotated with its tag-overlap
// score, projected to the same reduced shape as prompt events.
type ScoredEvent struct {
	EventSummary
	Score int `json:"score"`
}

// Recommend ranks events the user has not registered for by tag overlap
// with their registration history and returns the top 5.
//
// Tag frequencies count occurrences, not distinct tags: a tag appearing on
// two registered events contributes 2 to a candidate carrying it. Scoring
// uses exact tag equality. Candidates with no overlap score 0 and stay
// eligible; ties keep their original relative order.
func Recommend(registered, approved []store.Event) []ScoredEvent {
	tagFrequency := make(map[string]int)
	for _, event := range registered {
		for _, tag := range event.Tags {
			tagFrequency[tag]++
		}
	}

	registeredIDs := make(map[string]bool, len(registered))
	for _, event := range registered {
		registeredIDs[event.ID] = true
	}

	var candidates []ScoredEvent
	for _, event := range approved {
		if registeredIDs[event.ID] {
			continue
		}
		score := 0
		for _, tag := range event.Tags {
			score += tagFrequency[tag]
		}
		candidates = append(candidates, ScoredEvent{
			EventSummary: ProjectEvent(event),
			Score:        score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > maxRecommendations {
		candidates = candidates[:maxRecommendations]
	}
	return candidates
}
