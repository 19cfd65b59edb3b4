package core

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/capable-sharma/CampusyncCapable/internal/store"
)

// FallbackResponse is what the user sees whenever the AI pipeline fails.
// It is persisted as a regular chat turn so the exchange is still on record.
const FallbackResponse = "I'm sorry, I encountered an error while processing your request. Please try again or contact support if the problem persists."

// EventStore is the slice of the store the AI pipeline reads and writes.
type EventStore interface {
	GetApprovedEvents() ([]store.Event, error)
	GetUserRegisteredEvents(userID string) ([]store.Event, error)
	SaveChatTurn(userID, query, response string) (*store.ChatTurn, error)
	GetChatHistory(userID string) ([]store.ChatTurn, error)
}

// CompletionGateway is the opaque hosted-model call.
type CompletionGateway interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type AIService struct {
	store   EventStore
	gateway CompletionGateway
}

func NewAIService(store EventStore, gateway CompletionGateway) *AIService {
	return &AIService{store: store, gateway: gateway}
}

// QueryResult is the complete outcome of one query. The fallback path fills
// the same shape, so callers never see an error from HandleQuery.
type QueryResult struct {
	Response    string         `json:"response"`
	ContextType ContextType    `json:"contextType"`
	Events      []EventSummary `json:"relevantEvents"`
	Fallback    bool           `json:"-"`
}

// HandleQuery runs the full classify, select, assemble, complete, persist
// sequence for one query. It is total: any store or gateway failure turns
// into the fallback response, which is still persisted when possible.
func (s *AIService) HandleQuery(ctx context.Context, userID, query string) *QueryResult {
	contextType := Classify(query)

	// The two event reads are independent; issue them concurrently.
	type fetchResult struct {
		events []store.Event
		err    error
	}
	registeredCh := make(chan fetchResult, 1)
	go func() {
		events, err := s.store.GetUserRegisteredEvents(userID)
		registeredCh <- fetchResult{events, err}
	}()

	approved, approvedErr := s.store.GetApprovedEvents()
	registered := <-registeredCh

	if approvedErr != nil {
		log.Printf("Failed to load approved events for user %s: %v", userID, approvedErr)
		return s.fallback(userID, query, contextType)
	}
	if registered.err != nil {
		log.Printf("Failed to load registered events for user %s: %v", userID, registered.err)
		return s.fallback(userID, query, contextType)
	}

	relevant := SelectContext(contextType, time.Now(), registered.events, approved)
	summaries := ProjectEvents(relevant)

	prompt, err := BuildPrompt(query, contextType, summaries)
	if err != nil {
		log.Printf("Failed to build prompt for user %s: %v", userID, err)
		return s.fallback(userID, query, contextType)
	}

	response, err := s.gateway.Complete(ctx, prompt)
	if err != nil {
		log.Printf("Completion failed for user %s: %v", userID, err)
		return s.fallback(userID, query, contextType)
	}

	if _, err := s.store.SaveChatTurn(userID, query, response); err != nil {
		// The user still gets the response even if it could not be recorded.
		log.Printf("Failed to save chat turn for user %s: %v", userID, err)
	}

	return &QueryResult{
		Response:    response,
		ContextType: contextType,
		Events:      summaries,
	}
}

func (s *AIService) fallback(userID, query string, contextType ContextType) *QueryResult {
	if _, err := s.store.SaveChatTurn(userID, query, FallbackResponse); err != nil {
		log.Printf("Failed to save fallback chat turn for user %s: %v", userID, err)
	}
	return &QueryResult{
		Response:    FallbackResponse,
		ContextType: contextType,
		Events:      []EventSummary{},
		Fallback:    true,
	}
}

// Recommendations scores unregistered events by tag overlap with the user's
// registration history. Unlike HandleQuery this propagates store errors:
// there is no meaningful default recommendation set for an unknown user.
func (s *AIService) Recommendations(userID string) ([]ScoredEvent, error) {
	registered, err := s.store.GetUserRegisteredEvents(userID)
	if err != nil {
		return nil, err
	}
	approved, err := s.store.GetApprovedEvents()
	if err != nil {
		return nil, err
	}
	return Recommend(registered, approved), nil
}

// SummarizeEvent asks the model for a short promotional summary of a single
// event and returns its text verbatim, trimmed.
func (s *AIService) SummarizeEvent(ctx context.Context, event EventSummary) (string, error) {
	summary, err := s.gateway.Complete(ctx, BuildSummaryPrompt(event))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(summary), nil
}

func (s *AIService) History(userID string) ([]store.ChatTurn, error) {
	return s.store.GetChatHistory(userID)
}
