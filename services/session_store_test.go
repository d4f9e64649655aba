package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/itish2003/pdfchat/models"
)

func testSession(t *testing.T, id string) *Session {
	t.Helper()
	idx, err := NewMemoryIndex([]models.Passage{passage(id+"-p", 0, 1, 0)})
	require.NoError(t, err)
	return &Session{ID: id, Source: id + ".pdf", Pages: 1, Index: idx, CreatedAt: time.Now()}
}

func TestSessionStore_EmptySnapshot(t *testing.T) {
	assert.Nil(t, NewSessionStore().Snapshot())
}

func TestSessionStore_CommitReplaces(t *testing.T) {
	st := NewSessionStore()
	first := testSession(t, "first")
	second := testSession(t, "second")

	assert.Equal(t, uint64(1), st.Commit(first))
	held := st.Snapshot()
	assert.Same(t, first, held)

	assert.Equal(t, uint64(2), st.Commit(second))
	assert.Same(t, second, st.Snapshot())
	assert.Equal(t, "first", held.ID, "earlier snapshots are unaffected")
}

func TestSessionStore_Info(t *testing.T) {
	s := testSession(t, "doc")
	info := s.Info()
	assert.Equal(t, "doc", info.SessionID)
	assert.Equal(t, "doc.pdf", info.Source)
	assert.Equal(t, 1, info.Passages)
}

func TestSessionStore_ConcurrentCommitsAndReads(t *testing.T) {
	st := NewSessionStore()
	sessions := make(map[*Session]bool)
	var list []*Session
	for i := 0; i < 20; i++ {
		s := testSession(t, fmt.Sprintf("s%d", i))
		sessions[s] = true
		list = append(list, s)
	}

	var wg sync.WaitGroup
	for _, s := range list {
		wg.Add(2)
		go func(s *Session) {
			defer wg.Done()
			st.Commit(s)
		}(s)
		go func() {
			defer wg.Done()
			if snap := st.Snapshot(); snap != nil {
				assert.True(t, sessions[snap])
			}
		}()
	}
	wg.Wait()

	assert.True(t, sessions[st.Snapshot()])
	assert.Equal(t, uint64(21), st.Commit(list[0]))
}
