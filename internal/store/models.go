package store

import "time"

// Roles assigned at registration. The role fixes what a user can create:
// admins create academic events, club leads create club events.
const (
	RoleStudent  = "Student"
	RoleClubLead = "Club Lead"
	RoleAdmin    = "Admin"
)

// Event types. An event's type is fixed at creation and never changes.
const (
	EventTypeAcademic = "academic"
	EventTypeClub     = "club"
)

type User struct {
	ID           string    `json:"id"` // UUID
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type Event struct {
	ID          string     `json:"id"` // UUID
	Title       string     `json:"title"`
	Venue       string     `json:"venue"`
	Description string     `json:"description"`
	Date        string     `json:"date"` // calendar date, e.g. "2026-09-14"
	Time        string     `json:"time"` // presentation-only time-of-day string
	Tags        []string   `json:"tags"`
	Type        string     `json:"type"` // "academic" or "club"
	Approved    bool       `json:"approved"`
	CreatedBy   string     `json:"created_by"`
	Attendees   []string   `json:"attendees"`
	CreatedAt   time.Time  `json:"created_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"` // Nullable
}

// ChatTurn is one query/response exchange. Append-only; a turn is written
// once per query, including the fallback path when the AI pipeline fails.
type ChatTurn struct {
	ID        string    `json:"id"` // UUID
	UserID    string    `json:"user_id"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// CreatorStats summarizes the events owned by one club lead.
type CreatorStats struct {
	TotalEvents     int `json:"totalEvents"`
	PublishedEvents int `json:"publishedEvents"`
	Drafts          int `json:"drafts"`
	TotalAttendance int `json:"totalAttendance"`
}
