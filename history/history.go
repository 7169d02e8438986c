// Package history keeps bounded per-session chat history in memory.
package history

import (
	"strings"
	"sync"
	"time"

	"github.com/LedMarketing/OpenManus/models"
	"github.com/google/uuid"
)

// DefaultCapacity is the number of exchanges kept per session.
const DefaultCapacity = 50

// Ring is a fixed-capacity ring of chat exchanges. Pushing onto a full ring
// evicts the oldest exchange. It is safe for concurrent use.
type Ring struct {
	mu    sync.Mutex
	buf   []models.ChatExchange
	start int
	size  int
}

// NewRing creates a ring holding at most capacity exchanges.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]models.ChatExchange, capacity)}
}

// Push appends an exchange, evicting the oldest when full.
func (r *Ring) Push(e models.ChatExchange) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = e
		r.size++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

// Len returns the number of stored exchanges.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Last returns up to n most recent exchanges, oldest first.
func (r *Ring) Last(n int) []models.ChatExchange {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > r.size || n < 0 {
		n = r.size
	}
	out := make([]models.ChatExchange, 0, n)
	for i := r.size - n; i < r.size; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

// Snapshot returns all stored exchanges, oldest first.
func (r *Ring) Snapshot() []models.ChatExchange {
	return r.Last(-1)
}

type session struct {
	ring     *Ring
	lastSeen time.Time
}

// Store maps session ids to rings. When more than maxSessions sessions
// exist, the least recently used one is dropped.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*session
	maxSessions int
	capacity    int
}

// NewStore creates a Store with the given session cap and per-session capacity.
func NewStore(maxSessions, capacity int) *Store {
	if maxSessions <= 0 {
		maxSessions = 1000
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		sessions:    make(map[string]*session),
		maxSessions: maxSessions,
		capacity:    capacity,
	}
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.NewString()
}

// NormalizeID trims id and rejects ids that are empty or oversized.
func NormalizeID(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > 128 {
		return "", false
	}
	return id, true
}

// Append records an exchange for the session, creating it if needed.
func (s *Store) Append(id string, e models.ChatExchange) {
	if e.TimestampMs == 0 {
		e.TimestampMs = time.Now().UnixMilli()
	}
	s.ring(id, true).Push(e)
}

// Recent returns up to n most recent exchanges for the session.
func (s *Store) Recent(id string, n int) []models.ChatExchange {
	r := s.ring(id, false)
	if r == nil {
		return nil
	}
	return r.Last(n)
}

// Get returns all exchanges for the session and whether it exists.
func (s *Store) Get(id string) ([]models.ChatExchange, bool) {
	r := s.ring(id, false)
	if r == nil {
		return nil, false
	}
	return r.Snapshot(), true
}

// Delete forgets the session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of tracked sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) ring(id string, create bool) *Ring {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		if !create {
			return nil
		}
		if len(s.sessions) >= s.maxSessions {
			s.evictOldestLocked()
		}
		sess = &session{ring: NewRing(s.capacity)}
		s.sessions[id] = sess
	}
	sess.lastSeen = time.Now()
	return sess.ring
}

func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, sess := range s.sessions {
		if oldestID == "" || sess.lastSeen.Before(oldest) {
			oldestID, oldest = id, sess.lastSeen
		}
	}
	delete(s.sessions, oldestID)
}
