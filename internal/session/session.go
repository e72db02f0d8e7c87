package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agrivoltaic-dashboard/internal/models"
)

// Session is the playback state of one viewer
type Session struct {
	ID            string    `json:"id"`
	Cursor        int       `json:"cursor"`
	NoticePending bool      `json:"notice_pending"`
	Completions   int       `json:"completions"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// New returns a session with a fresh ID and the cursor at 0
func New(now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Advance moves the cursor one row forward. From the last row it wraps to 0,
// marks the completion notice pending and reports true.
func (s *Session) Advance(rowCount int) bool {
	s.Normalize(rowCount)
	if s.Cursor < rowCount-1 {
		s.Cursor++
		return false
	}
	s.Cursor = 0
	s.NoticePending = true
	s.Completions++
	return true
}

// Reset moves the cursor back to 0 and drops any pending notice
func (s *Session) Reset() {
	s.Cursor = 0
	s.NoticePending = false
}

// Normalize moves a cursor outside [0, rowCount-1] back to 0
func (s *Session) Normalize(rowCount int) {
	if s.Cursor < 0 || s.Cursor >= rowCount {
		s.Cursor = 0
	}
}

// TakeNotice returns the completion notice once and clears it
func (s *Session) TakeNotice() string {
	if !s.NoticePending {
		return ""
	}
	s.NoticePending = false
	return models.PlaybackFinishedNotice
}

// Store persists sessions. Get, Update and Delete return a
// models.NotFoundError for unknown or expired IDs.
type Store interface {
	Create(ctx context.Context) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)

	// Update applies fn to the stored session atomically and returns the
	// result. An error from fn aborts the update.
	Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error)

	Delete(ctx context.Context, id string) error
}

func notFound(id string) error {
	return &models.NotFoundError{
		Resource: models.ResourceSession,
		ID:       id,
	}
}
