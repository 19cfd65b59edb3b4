package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/capable-sharma/CampusyncCapable/internal/config"
	"github.com/capable-sharma/CampusyncCapable/internal/core"
	"github.com/capable-sharma/CampusyncCapable/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	response string
	err      error
}

func (s *stubGateway) Complete(ctx context.Context, prompt string) (string, error) {
	return s.response, s.err
}

func setupAPI(t *testing.T, gateway core.CompletionGateway) http.Handler {
	t.Helper()
	config.AppConfig.JWTSecret = "test-secret"

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return NewRouter(NewAPIHandler(st, core.NewAIService(st, gateway)))
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func registerUser(t *testing.T, handler http.Handler, name, email, role string) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "secret123",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	token, ok := decodeBody(t, rec)["token"].(string)
	require.True(t, ok)
	return token
}

func TestHealthEndpoint(t *testing.T) {
	handler := setupAPI(t, &stubGateway{})
	rec := doJSON(t, handler, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", decodeBody(t, rec)["status"])
}

func TestAuthRegisterAndLogin(t *testing.T) {
	handler := setupAPI(t, &stubGateway{})

	token := registerUser(t, handler, "Asha", "asha@campus.edu", store.RoleStudent)

	me := doJSON(t, handler, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, me.Code)
	user := decodeBody(t, me)["user"].(map[string]any)
	assert.Equal(t, "asha@campus.edu", user["email"])
	assert.Equal(t, store.RoleStudent, user["role"])
	assert.NotContains(t, me.Body.String(), "password")

	login := doJSON(t, handler, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "asha@campus.edu",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusOK, login.Code)

	badLogin := doJSON(t, handler, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "asha@campus.edu",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, badLogin.Code)

	duplicate := doJSON(t, handler, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Asha Again",
		"email":    "asha@campus.edu",
		"password": "secret123",
		"role":     store.RoleStudent,
	})
	assert.Equal(t, http.StatusBadRequest, duplicate.Code)
}

func TestAuthRejectsBadRole(t *testing.T) {
	handler := setupAPI(t, &stubGateway{})
	rec := doJSON(t, handler, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Eve",
		"email":    "eve@campus.edu",
		"password": "secret123",
		"role":     "Superuser",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	handler := setupAPI(t, &stubGateway{})
	rec := doJSON(t, handler, http.MethodGet, "/api/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStudentCannotCreateEvents(t *testing.T) {
	handler := setupAPI(t, &stubGateway{})
	student := registerUser(t, handler, "Asha", "asha@campus.edu", store.RoleStudent)

	rec := doJSON(t, handler, http.MethodPost, "/api/events", student, map[string]string{
		"title": "Rogue Event", "venue": "Hall", "description": "d", "date": "2026-10-01", "time": "9:00 AM",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEventLifecycle(t *testing.T) {
	handler := setupAPI(t, &stubGateway{})
	admin := registerUser(t, handler, "Dean", "dean@campus.edu", store.RoleAdmin)
	lead := registerUser(t, handler, "Lead", "lead@campus.edu", store.RoleClubLead)
	student := registerUser(t, handler, "Asha", "asha@campus.edu", store.RoleStudent)

	// Club lead submits an event; it starts unapproved.
	created := doJSON(t, handler, http.MethodPost, "/api/events", lead, map[string]string{
		"title": "Hack Night", "venue": "Lab 2", "description": "Bring laptops",
		"date": "2026-10-02", "time": "6:00 PM", "tags": "coding, hackathon",
	})
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	event := decodeBody(t, created)["event"].(map[string]any)
	eventID := event["id"].(string)
	assert.Equal(t, store.EventTypeClub, event["type"])
	assert.Equal(t, false, event["approved"])

	// Students see no events until the admin approves.
	listed := doJSON(t, handler, http.MethodGet, "/api/events", student, nil)
	require.Equal(t, http.StatusOK, listed.Code)
	assert.Nil(t, decodeBody(t, listed)["events"])

	pending := doJSON(t, handler, http.MethodGet, "/api/events/pending", admin, nil)
	require.Equal(t, http.StatusOK, pending.Code)
	require.Len(t, decodeBody(t, pending)["events"].([]any), 1)

	approve := doJSON(t, handler, http.MethodPost, "/api/events/"+eventID+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, approve.Code)

	// Only admins may approve.
	forbidden := doJSON(t, handler, http.MethodPost, "/api/events/"+eventID+"/approve", lead, nil)
	assert.Equal(t, http.StatusForbidden, forbidden.Code)

	// Now visible, and the student can enroll.
	enroll := doJSON(t, handler, http.MethodPost, "/api/events/"+eventID+"/enroll", student, nil)
	require.Equal(t, http.StatusOK, enroll.Code)

	status := doJSON(t, handler, http.MethodGet, "/api/events/"+eventID+"/enrollment-status", student, nil)
	require.Equal(t, http.StatusOK, status.Code)
	assert.Equal(t, true, decodeBody(t, status)["isEnrolled"])

	registered := doJSON(t, handler, http.MethodGet, "/api/events/registered", student, nil)
	require.Equal(t, http.StatusOK, registered.Code)
	require.Len(t, decodeBody(t, registered)["events"].([]any), 1)

	stats := doJSON(t, handler, http.MethodGet, "/api/stats/club-lead", lead, nil)
	require.Equal(t, http.StatusOK, stats.Code)
	assert.Equal(t, float64(1), decodeBody(t, stats)["totalAttendance"])
}

func TestAdminEventsAreAutoApproved(t *testing.T) {
	handler := setupAPI(t, &stubGateway{})
	admin := registerUser(t, handler, "Dean", "dean@campus.edu", store.RoleAdmin)

	created := doJSON(t, handler, http.MethodPost, "/api/events", admin, map[string]string{
		"title": "Exam Week", "venue": "Online", "description": "Midterms",
		"date": "2026-10-01", "time": "9:00 AM", "tags": "exam",
	})
	require.Equal(t, http.StatusCreated, created.Code)
	event := decodeBody(t, created)["event"].(map[string]any)
	assert.Equal(t, store.EventTypeAcademic, event["type"])
	assert.Equal(t, true, event["approved"])
}

func TestAIChat(t *testing.T) {
	gateway := &stubGateway{response: "There is a hack night on Friday."}
	handler := setupAPI(t, gateway)
	student := registerUser(t, handler, "Asha", "asha@campus.edu", store.RoleStudent)

	rec := doJSON(t, handler, http.MethodPost, "/api/ai/chat", student, map[string]string{
		"message": "any coding events this week?",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "There is a hack night on Friday.", body["response"])
	assert.Equal(t, "upcoming_week", body["contextType"])

	history := doJSON(t, handler, http.MethodGet, "/api/ai/chat-history", student, nil)
	require.Equal(t, http.StatusOK, history.Code)
	turns := decodeBody(t, history)["history"].([]any)
	require.Len(t, turns, 1)
	assert.Equal(t, "any coding events this week?", turns[0].(map[string]any)["query"])
}

func TestAIChatFallbackOnGatewayFailure(t *testing.T) {
	gateway := &stubGateway{err: errors.New("model unavailable")}
	handler := setupAPI(t, gateway)
	student := registerUser(t, handler, "Asha", "asha@campus.edu", store.RoleStudent)

	rec := doJSON(t, handler, http.MethodPost, "/api/ai/chat", student, map[string]string{
		"message": "hello",
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "AI processing failed", body["error"])
	assert.Equal(t, core.FallbackResponse, body["message"])

	// The fallback exchange is still recorded.
	history := doJSON(t, handler, http.MethodGet, "/api/ai/chat-history", student, nil)
	require.Equal(t, http.StatusOK, history.Code)
	turns := decodeBody(t, history)["history"].([]any)
	require.Len(t, turns, 1)
	assert.Equal(t, core.FallbackResponse, turns[0].(map[string]any)["response"])
}

func TestAIChatRequiresMessage(t *testing.T) {
	handler := setupAPI(t, &stubGateway{})
	student := registerUser(t, handler, "Asha", "asha@campus.edu", store.RoleStudent)

	rec := doJSON(t, handler, http.MethodPost, "/api/ai/chat", student, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecommendationsEndpoint(t *testing.T) {
	handler := setupAPI(t, &stubGateway{})
	admin := registerUser(t, handler, "Dean", "dean@campus.edu", store.RoleAdmin)
	student := registerUser(t, handler, "Asha", "asha@campus.edu", store.RoleStudent)

	var eventIDs []string
	for i, tags := range []string{"ai", "ai", "music"} {
		created := doJSON(t, handler, http.MethodPost, "/api/events", admin, map[string]string{
			"title": fmt.Sprintf("Event %d", i), "venue": "Hall", "description": "d",
			"date": "2026-10-01", "time": "9:00 AM", "tags": tags,
		})
		require.Equal(t, http.StatusCreated, created.Code)
		eventIDs = append(eventIDs, decodeBody(t, created)["event"].(map[string]any)["id"].(string))
	}

	enroll := doJSON(t, handler, http.MethodPost, "/api/events/"+eventIDs[0]+"/enroll", student, nil)
	require.Equal(t, http.StatusOK, enroll.Code)

	rec := doJSON(t, handler, http.MethodGet, "/api/ai/recommendations", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	recommendations := decodeBody(t, rec)["recommendations"].([]any)
	require.Len(t, recommendations, 2)

	top := recommendations[0].(map[string]any)
	assert.Equal(t, "Event 1", top["title"])
	assert.Equal(t, float64(1), top["score"])
}

func TestEventSummaryEndpoint(t *testing.T) {
	gateway := &stubGateway{response: "Come for the robots, stay for the pizza."}
	handler := setupAPI(t, gateway)
	lead := registerUser(t, handler, "Lead", "lead@campus.edu", store.RoleClubLead)

	rec := doJSON(t, handler, http.MethodPost, "/api/ai/event-summary", lead, map[string]any{
		"title": "Robotics Demo", "date": "2026-09-10", "time": "5:00 PM",
		"venue": "Main Hall", "description": "Live demos", "tags": []string{"robotics"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Come for the robots, stay for the pizza.", decodeBody(t, rec)["summary"])
}
