package services

import (
	"sync"
	"time"

	"github/itish2003/pdfchat/models"
)

// Session is the active document: its built index plus what was learned while
// ingesting it. A Session is never modified after it is committed.
type Session struct {
	ID        string
	Source    string
	Pages     int
	Index     VectorIndex
	CreatedAt time.Time
}

func (s *Session) Info() models.DocumentInfo {
	return models.DocumentInfo{
		SessionID: s.ID,
		Source:    s.Source,
		Pages:     s.Pages,
		Passages:  s.Index.Len(),
		CreatedAt: s.CreatedAt,
	}
}

// SessionStore holds at most one Session. Commits are serialized and each one
// fully replaces the previous session, so the upload that finishes last wins.
// Readers get whole sessions, never a mix of two.
type SessionStore struct {
	mu      sync.RWMutex
	current *Session
	commits uint64
}

func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

// Commit makes s the active session and returns how many commits have been
// applied so far, including this one.
func (st *SessionStore) Commit(s *Session) uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.current = s
	st.commits++
	return st.commits
}

// Snapshot returns the active session, or nil when nothing has been uploaded.
func (st *SessionStore) Snapshot() *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current
}
