package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrSessionNotFound is returned when no session matches a key.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned when creating a session twice.
	ErrSessionExists = errors.New("session already exists")
)

// Key identifies a session.
type Key struct {
	AppName   string `json:"app_name"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

func (k Key) String() string {
	return k.AppName + "/" + k.UserID + "/" + k.SessionID
}

// Validate rejects keys with empty or malformed parts.
func (k Key) Validate() error {
	parts := map[string]string{
		"app name":   k.AppName,
		"user id":    k.UserID,
		"session id": k.SessionID,
	}
	for label, value := range parts {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s cannot be empty", label)
		}
		if strings.Contains(value, "/") {
			return fmt.Errorf("%s cannot contain '/'", label)
		}
		if strings.Contains(value, "\x00") {
			return fmt.Errorf("%s cannot contain null bytes", label)
		}
	}
	return nil
}

// Session is an ordered conversation history.
type Session struct {
	Key       Key
	CreatedAt time.Time

	mu        sync.RWMutex
	events    []*Event
	updatedAt time.Time
}

// Events returns a snapshot of the session history.
func (s *Session) Events() []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*Event, len(s.events))
	copy(events, s.events)
	return events
}

// Len returns the number of recorded events.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// UpdatedAt returns the time of the last appended event.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// InMemoryService stores sessions for the lifetime of the process.
type InMemoryService struct {
	mu       sync.RWMutex
	sessions map[Key]*Session
}

// NewInMemoryService creates an empty session store.
func NewInMemoryService() *InMemoryService {
	return &InMemoryService{
		sessions: make(map[Key]*Session),
	}
}

// Create registers a new empty session.
func (s *InMemoryService) Create(ctx context.Context, key Key) (*Session, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[key]; exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, key)
	}

	now := time.Now()
	sess := &Session{
		Key:       key,
		CreatedAt: now,
		updatedAt: now,
	}
	s.sessions[key] = sess

	log.Debug().Str("session_key", key.String()).Msg("Session created")

	return sess, nil
}

// Get looks up a session by key.
func (s *InMemoryService) Get(ctx context.Context, key Key) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, key)
	}
	return sess, nil
}

// AppendEvent records a finished event. Partial events are not recorded.
func (s *InMemoryService) AppendEvent(ctx context.Context, sess *Session, event *Event) error {
	if sess == nil {
		return errors.New("session is required")
	}
	if event == nil {
		return errors.New("event is required")
	}
	if event.Partial {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.events = append(sess.events, event)
	sess.updatedAt = event.Timestamp
	if sess.updatedAt.IsZero() {
		sess.updatedAt = time.Now()
	}

	return nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *InMemoryService) Delete(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, key)
	log.Debug().Str("session_key", key.String()).Msg("Session deleted")
	return nil
}

// List returns the session IDs of one user of an app, sorted.
func (s *InMemoryService) List(ctx context.Context, appName, userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := []string{}
	for key := range s.sessions {
		if key.AppName == appName && key.UserID == userID {
			ids = append(ids, key.SessionID)
		}
	}
	sort.Strings(ids)
	return ids
}
