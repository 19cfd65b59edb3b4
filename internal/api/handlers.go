package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/capable-sharma/CampusyncCapable/internal/auth"
	"github.com/capable-sharma/CampusyncCapable/internal/core"
	"github.com/capable-sharma/CampusyncCapable/internal/store"
	"github.com/go-chi/chi/v5"
)

type contextKey string

const (
	ctxUserID contextKey = "userID"
	ctxRole   contextKey = "role"
)

type APIHandler struct {
	store     *store.SQLiteStore
	aiService *core.AIService
}

func NewAPIHandler(st *store.SQLiteStore, ai *core.AIService) *APIHandler {
	return &APIHandler{store: st, aiService: ai}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Middleware

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Access token required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		userID, role, err := auth.ValidateJWT(tokenString)
		if err != nil {
			writeError(w, http.StatusForbidden, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserID, userID)
		ctx = context.WithValue(ctx, ctxRole, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a route to the listed roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := r.Context().Value(ctxRole).(string)
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Insufficient permissions")
		})
	}
}

func requestUserID(r *http.Request) string {
	userID, _ := r.Context().Value(ctxUserID).(string)
	return userID
}

func requestRole(r *http.Request) string {
	role, _ := r.Context().Value(ctxRole).(string)
	return role
}

// Auth handlers

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Name == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	}
	if req.Role != store.RoleAdmin && req.Role != store.RoleClubLead && req.Role != store.RoleStudent {
		writeError(w, http.StatusBadRequest, "Invalid role")
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password for %s: %v", req.Email, err)
		writeError(w, http.StatusInternalServerError, "Failed to process password")
		return
	}

	user, err := h.store.CreateUser(req.Name, req.Email, hashedPassword, req.Role)
	if err != nil {
		if errors.Is(err, store.ErrUserExists) {
			writeError(w, http.StatusBadRequest, "User already exists")
			return
		}
		log.Printf("Error creating user %s: %v", req.Email, err)
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Role)
	if err != nil {
		log.Printf("Error generating JWT for user %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"token":   token,
		"user":    user,
	})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.store.GetUserByEmail(req.Email)
	if err != nil {
		log.Printf("Error getting user %s: %v", req.Email, err)
		writeError(w, http.StatusInternalServerError, "Failed to look up user")
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Role)
	if err != nil {
		log.Printf("Error generating JWT for user %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetUserByID(requestUserID(r))
	if err != nil {
		log.Printf("Error getting user %s: %v", requestUserID(r), err)
		writeError(w, http.StatusInternalServerError, "Failed to look up user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// Event handlers

func (h *APIHandler) ListEventsHandler(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.GetApprovedEvents()
	if err != nil {
		log.Printf("Error listing approved events: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *APIHandler) MyEventsHandler(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.GetEventsByCreator(requestUserID(r))
	if err != nil {
		log.Printf("Error listing events for creator %s: %v", requestUserID(r), err)
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *APIHandler) PendingEventsHandler(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.GetPendingEvents()
	if err != nil {
		log.Printf("Error listing pending events: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

type EventRequest struct {
	Title       string `json:"title"`
	Venue       string `json:"venue"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Tags        string `json:"tags"` // comma separated
}

func splitTags(tags string) []string {
	var out []string
	for _, tag := range strings.Split(tags, ",") {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func (h *APIHandler) CreateEventHandler(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Title == "" || req.Venue == "" || req.Description == "" || req.Date == "" || req.Time == "" {
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	}

	event, err := h.store.CreateEvent(req.Title, req.Venue, req.Description, req.Date, req.Time, splitTags(req.Tags), requestUserID(r), requestRole(r))
	if err != nil {
		log.Printf("Error creating event for user %s: %v", requestUserID(r), err)
		writeError(w, http.StatusInternalServerError, "Failed to create event")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Event created successfully",
		"event":   event,
	})
}

func (h *APIHandler) UpdateEventHandler(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	err := h.store.UpdateEvent(eventID, req.Title, req.Venue, req.Description, req.Date, req.Time, splitTags(req.Tags))
	if err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "Event not found")
			return
		}
		log.Printf("Error updating event %s: %v", eventID, err)
		writeError(w, http.StatusInternalServerError, "Failed to update event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Event updated successfully"})
}

func (h *APIHandler) DeleteEventHandler(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if err := h.store.DeleteEvent(eventID); err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "Event not found")
			return
		}
		log.Printf("Error deleting event %s: %v", eventID, err)
		writeError(w, http.StatusInternalServerError, "Failed to delete event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Event deleted successfully"})
}

func (h *APIHandler) ApproveEventHandler(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if err := h.store.ApproveEvent(eventID); err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "Event not found")
			return
		}
		log.Printf("Error approving event %s: %v", eventID, err)
		writeError(w, http.StatusInternalServerError, "Failed to approve event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Event approved successfully"})
}

func (h *APIHandler) EnrollHandler(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if err := h.store.EnrollInEvent(eventID, requestUserID(r)); err != nil {
		if errors.Is(err, store.ErrEventNotFound) || errors.Is(err, store.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("Error enrolling user %s in event %s: %v", requestUserID(r), eventID, err)
		writeError(w, http.StatusInternalServerError, "Failed to enroll in event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully enrolled in event"})
}

func (h *APIHandler) RegisteredEventsHandler(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.GetUserRegisteredEvents(requestUserID(r))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("Error listing registered events for user %s: %v", requestUserID(r), err)
		writeError(w, http.StatusInternalServerError, "Failed to list registered events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *APIHandler) EnrollmentStatusHandler(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	events, err := h.store.GetUserRegisteredEvents(requestUserID(r))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("Error checking enrollment for user %s: %v", requestUserID(r), err)
		writeError(w, http.StatusInternalServerError, "Failed to check enrollment")
		return
	}

	isEnrolled := false
	for _, event := range events {
		if event.ID == eventID {
			isEnrolled = true
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isEnrolled": isEnrolled})
}

// UpcomingEventsHandler returns approved events in the next 7 days, sorted
// by date. The sort is a presentation concern and lives here, not in the
// context selector.
func (h *APIHandler) UpcomingEventsHandler(w http.ResponseWriter, r *http.Request) {
	approved, err := h.store.GetApprovedEvents()
	if err != nil {
		log.Printf("Error listing approved events: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	upcoming := core.SelectContext(core.ContextUpcomingWeek, time.Now(), nil, approved)
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].Date < upcoming[j].Date
	})
	writeJSON(w, http.StatusOK, map[string]any{"events": upcoming})
}

func (h *APIHandler) GetEventHandler(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	event, err := h.store.GetEventByID(eventID)
	if err != nil {
		log.Printf("Error getting event %s: %v", eventID, err)
		writeError(w, http.StatusInternalServerError, "Failed to get event")
		return
	}
	if event == nil || !event.Approved {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": event})
}

// FilterEventsHandler filters approved events by type, exact calendar date,
// and/or tag substrings from query parameters.
func (h *APIHandler) FilterEventsHandler(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.GetApprovedEvents()
	if err != nil {
		log.Printf("Error listing approved events: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	if eventType := r.URL.Query().Get("type"); eventType != "" {
		var filtered []store.Event
		for _, event := range events {
			if event.Type == eventType {
				filtered = append(filtered, event)
			}
		}
		events = filtered
	}

	if date := r.URL.Query().Get("date"); date != "" {
		var filtered []store.Event
		for _, event := range events {
			if event.Date == date {
				filtered = append(filtered, event)
			}
		}
		events = filtered
	}

	if tags := r.URL.Query().Get("tags"); tags != "" {
		searchTags := splitTags(strings.ToLower(tags))
		var filtered []store.Event
		for _, event := range events {
			matched := false
			for _, tag := range event.Tags {
				for _, searchTag := range searchTags {
					if strings.Contains(strings.ToLower(tag), searchTag) {
						matched = true
					}
				}
			}
			if matched {
				filtered = append(filtered, event)
			}
		}
		events = filtered
	}

	if events == nil {
		events = []store.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// Stats handlers

func (h *APIHandler) AdminStatsHandler(w http.ResponseWriter, r *http.Request) {
	studentCount, err := h.store.CountUsersByRole(store.RoleStudent)
	if err != nil {
		log.Printf("Error counting students: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	clubLeadCount, err := h.store.CountUsersByRole(store.RoleClubLead)
	if err != nil {
		log.Printf("Error counting club leads: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	totalEvents, err := h.store.CountEvents()
	if err != nil {
		log.Printf("Error counting events: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	pending, err := h.store.GetPendingEvents()
	if err != nil {
		log.Printf("Error listing pending events: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"totalStudents":   studentCount,
		"activeClubs":     clubLeadCount,
		"totalEvents":     totalEvents,
		"pendingApproval": len(pending),
	})
}

func (h *APIHandler) ClubLeadStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetCreatorStats(requestUserID(r))
	if err != nil {
		log.Printf("Error loading stats for creator %s: %v", requestUserID(r), err)
		writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// AI handlers

type ChatRequest struct {
	Message string `json:"message"`
}

func (h *APIHandler) AIChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	result := h.aiService.HandleQuery(r.Context(), requestUserID(r), req.Message)
	if result.Fallback {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "AI processing failed",
			"message": result.Response,
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) RecommendationsHandler(w http.ResponseWriter, r *http.Request) {
	recommendations, err := h.aiService.Recommendations(requestUserID(r))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("Error getting recommendations for user %s: %v", requestUserID(r), err)
		writeError(w, http.StatusInternalServerError, "Failed to get recommendations")
		return
	}
	if recommendations == nil {
		recommendations = []core.ScoredEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recommendations})
}

func (h *APIHandler) EventSummaryHandler(w http.ResponseWriter, r *http.Request) {
	var req core.EventSummary
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	summary, err := h.aiService.SummarizeEvent(r.Context(), req)
	if err != nil {
		log.Printf("Error generating event summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Failed to generate summary",
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (h *APIHandler) ChatHistoryHandler(w http.ResponseWriter, r *http.Request) {
	history, err := h.aiService.History(requestUserID(r))
	if err != nil {
		log.Printf("Error getting chat history for user %s: %v", requestUserID(r), err)
		writeError(w, http.StatusInternalServerError, "Failed to get chat history")
		return
	}
	if history == nil {
		history = []store.ChatTurn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}
