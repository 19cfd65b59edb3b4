package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Identity failures are the only store errors callers branch on; everything
// else is wrapped and propagated as-is.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEventNotFound = errors.New("event not found")
	ErrUserExists    = errors.New("user already exists")
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        name TEXT NOT NULL,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('Student', 'Club Lead', 'Admin')),
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS events (
        id TEXT PRIMARY KEY, -- UUID
        title TEXT NOT NULL,
        venue TEXT NOT NULL,
        description TEXT NOT NULL,
        date TEXT NOT NULL,
        time TEXT NOT NULL,
        tags_json TEXT NOT NULL DEFAULT '[]',
        type TEXT NOT NULL CHECK (type IN ('academic', 'club')),
        approved BOOLEAN NOT NULL DEFAULT FALSE,
        created_by TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        approved_at DATETIME,
        FOREIGN KEY (created_by) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS registrations (
        event_id TEXT NOT NULL,
        user_id TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (event_id, user_id),
        FOREIGN KEY (event_id) REFERENCES events (id),
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS chat_history (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        query TEXT NOT NULL,
        response TEXT NOT NULL,
        timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) CreateUser(name, email, passwordHash, role string) (*User, error) {
	existing, err := s.GetUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	user := &User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
	}

	_, err = s.db.Exec(
		"INSERT INTO users (id, name, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	var user User
	err := s.db.QueryRow(
		"SELECT id, name, email, password_hash, role, created_at FROM users WHERE email = ?", email,
	).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) GetUserByID(userID string) (*User, error) {
	var user User
	err := s.db.QueryRow(
		"SELECT id, name, email, password_hash, role, created_at FROM users WHERE id = ?", userID,
	).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) CountUsersByRole(role string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM users WHERE role = ?", role).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// Event methods

// CreateEvent assigns the event type from the creator's role: admins create
// academic events, which are approved immediately; club leads create club
// events, which wait for admin approval.
func (s *SQLiteStore) CreateEvent(title, venue, description, date, timeOfDay string, tags []string, createdBy, creatorRole string) (*Event, error) {
	event := &Event{
		ID:          uuid.NewString(),
		Title:       title,
		Venue:       venue,
		Description: description,
		Date:        date,
		Time:        timeOfDay,
		Tags:        tags,
		Type:        EventTypeClub,
		CreatedBy:   createdBy,
		Attendees:   []string{},
		CreatedAt:   time.Now(),
	}
	if creatorRole == RoleAdmin {
		event.Type = EventTypeAcademic
		event.Approved = true
		now := event.CreatedAt
		event.ApprovedAt = &now
	}

	tagsJSON, err := json.Marshal(event.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}

	_, err = s.db.Exec(
		"INSERT INTO events (id, title, venue, description, date, time, tags_json, type, approved, created_by, created_at, approved_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		event.ID, event.Title, event.Venue, event.Description, event.Date, event.Time,
		string(tagsJSON), event.Type, event.Approved, event.CreatedBy, event.CreatedAt, event.ApprovedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	return event, nil
}

const eventColumns = "id, title, venue, description, date, time, tags_json, type, approved, created_by, created_at, approved_at"

func scanEvent(scanner interface{ Scan(...any) error }) (*Event, error) {
	var event Event
	var tagsJSON string
	var approvedAt sql.NullTime
	err := scanner.Scan(
		&event.ID, &event.Title, &event.Venue, &event.Description, &event.Date, &event.Time,
		&tagsJSON, &event.Type, &event.Approved, &event.CreatedBy, &event.CreatedAt, &approvedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &event.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags for event %s: %w", event.ID, err)
	}
	if event.Tags == nil {
		event.Tags = []string{}
	}
	if approvedAt.Valid {
		event.ApprovedAt = &approvedAt.Time
	}
	event.Attendees = []string{}
	return &event, nil
}

func (s *SQLiteStore) queryEvents(query string, args ...any) ([]Event, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event rows: %w", err)
	}

	if err := s.attachAttendees(events); err != nil {
		return nil, err
	}
	return events, nil
}

// attachAttendees fills the Attendees list for each event from the
// registrations table in one pass.
func (s *SQLiteStore) attachAttendees(events []Event) error {
	if len(events) == 0 {
		return nil
	}

	rows, err := s.db.Query("SELECT event_id, user_id FROM registrations ORDER BY created_at ASC, rowid ASC")
	if err != nil {
		return fmt.Errorf("failed to query registrations: %w", err)
	}
	defer rows.Close()

	attendees := make(map[string][]string)
	for rows.Next() {
		var eventID, userID string
		if err := rows.Scan(&eventID, &userID); err != nil {
			return fmt.Errorf("failed to scan registration row: %w", err)
		}
		attendees[eventID] = append(attendees[eventID], userID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate registration rows: %w", err)
	}

	for i := range events {
		if list, ok := attendees[events[i].ID]; ok {
			events[i].Attendees = list
		}
	}
	return nil
}

func (s *SQLiteStore) GetEventByID(eventID string) (*Event, error) {
	row := s.db.QueryRow("SELECT "+eventColumns+" FROM events WHERE id = ?", eventID)
	event, err := scanEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	rows, err := s.db.Query("SELECT user_id FROM registrations WHERE event_id = ? ORDER BY created_at ASC, rowid ASC", eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query event attendees: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan attendee row: %w", err)
		}
		event.Attendees = append(event.Attendees, userID)
	}
	return event, rows.Err()
}

func (s *SQLiteStore) GetApprovedEvents() ([]Event, error) {
	return s.queryEvents("SELECT " + eventColumns + " FROM events WHERE approved = TRUE ORDER BY created_at ASC")
}

func (s *SQLiteStore) GetPendingEvents() ([]Event, error) {
	return s.queryEvents("SELECT " + eventColumns + " FROM events WHERE approved = FALSE ORDER BY created_at ASC")
}

func (s *SQLiteStore) GetEventsByCreator(creatorID string) ([]Event, error) {
	return s.queryEvents("SELECT "+eventColumns+" FROM events WHERE created_by = ? ORDER BY created_at ASC", creatorID)
}

func (s *SQLiteStore) CountEvents() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// ApproveEvent flips the approved flag false->true. Approving an already
// approved event is a no-op; the flag never reverts.
func (s *SQLiteStore) ApproveEvent(eventID string) error {
	res, err := s.db.Exec(
		"UPDATE events SET approved = TRUE, approved_at = ? WHERE id = ? AND approved = FALSE",
		time.Now(), eventID,
	)
	if err != nil {
		return fmt.Errorf("failed to approve event: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		event, err := s.GetEventByID(eventID)
		if err != nil {
			return err
		}
		if event == nil {
			return ErrEventNotFound
		}
	}
	return nil
}

// UpdateEvent rewrites the editable fields. Type and approval state are
// immutable through this path.
func (s *SQLiteStore) UpdateEvent(eventID, title, venue, description, date, timeOfDay string, tags []string) error {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	res, err := s.db.Exec(
		"UPDATE events SET title = ?, venue = ?, description = ?, date = ?, time = ?, tags_json = ? WHERE id = ?",
		title, venue, description, date, timeOfDay, string(tagsJSON), eventID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteEvent(eventID string) error {
	if _, err := s.db.Exec("DELETE FROM registrations WHERE event_id = ?", eventID); err != nil {
		return fmt.Errorf("failed to delete event registrations: %w", err)
	}
	res, err := s.db.Exec("DELETE FROM events WHERE id = ?", eventID)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (s *SQLiteStore) EnrollInEvent(eventID, userID string) error {
	event, err := s.GetEventByID(eventID)
	if err != nil {
		return err
	}
	if event == nil {
		return ErrEventNotFound
	}

	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	// Enrolling twice is a no-op.
	_, err = s.db.Exec("INSERT OR IGNORE INTO registrations (event_id, user_id) VALUES (?, ?)", eventID, userID)
	if err != nil {
		return fmt.Errorf("failed to insert registration: %w", err)
	}
	return nil
}

// GetUserRegisteredEvents returns the events a user has enrolled in, in
// enrollment order. Unknown users are a hard error, not an empty result.
func (s *SQLiteStore) GetUserRegisteredEvents(userID string) ([]Event, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	// Column names are qualified: created_at exists on both tables.
	return s.queryEvents(
		`SELECT events.id, events.title, events.venue, events.description, events.date, events.time,
            events.tags_json, events.type, events.approved, events.created_by, events.created_at, events.approved_at
        FROM events JOIN registrations ON registrations.event_id = events.id
        WHERE registrations.user_id = ?
        ORDER BY registrations.created_at ASC, registrations.rowid ASC`,
		userID,
	)
}

func (s *SQLiteStore) GetCreatorStats(creatorID string) (*CreatorStats, error) {
	events, err := s.GetEventsByCreator(creatorID)
	if err != nil {
		return nil, err
	}

	stats := &CreatorStats{TotalEvents: len(events)}
	for _, event := range events {
		if event.Approved {
			stats.PublishedEvents++
		} else {
			stats.Drafts++
		}
		stats.TotalAttendance += len(event.Attendees)
	}
	return stats, nil
}

// Chat history methods

func (s *SQLiteStore) SaveChatTurn(userID, query, response string) (*ChatTurn, error) {
	turn := &ChatTurn{
		ID:        uuid.NewString(),
		UserID:    userID,
		Query:     query,
		Response:  response,
		Timestamp: time.Now(),
	}

	_, err := s.db.Exec(
		"INSERT INTO chat_history (id, user_id, query, response, timestamp) VALUES (?, ?, ?, ?, ?)",
		turn.ID, turn.UserID, turn.Query, turn.Response, turn.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chat turn: %w", err)
	}
	return turn, nil
}

// GetChatHistory returns the user's most recent 20 turns, newest first.
func (s *SQLiteStore) GetChatHistory(userID string) ([]ChatTurn, error) {
	rows, err := s.db.Query(
		"SELECT id, user_id, query, response, timestamp FROM chat_history WHERE user_id = ? ORDER BY timestamp DESC LIMIT 20",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer rows.Close()

	var turns []ChatTurn
	for rows.Next() {
		var turn ChatTurn
		if err := rows.Scan(&turn.ID, &turn.UserID, &turn.Query, &turn.Response, &turn.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat turn row: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}
