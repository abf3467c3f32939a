package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"nutriguide/reconciler"
)

// DefaultSessionTTL is how long an untouched session is kept.
const DefaultSessionTTL = 30 * time.Minute

type session struct {
	id       string
	rec      *reconciler.Reconciler
	lastUsed time.Time
}

// sessionStore owns one reconciler per client session.
type sessionStore struct {
	newReconciler func() *reconciler.Reconciler
	ttl           time.Duration
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionStore(factory func() *reconciler.Reconciler, ttl time.Duration, clock func() time.Time) *sessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &sessionStore{
		newReconciler: factory,
		ttl:           ttl,
		now:           clock,
		sessions:      make(map[string]*session),
	}
}

func (s *sessionStore) create() *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	sess := &session{
		id:       uuid.NewString(),
		rec:      s.newReconciler(),
		lastUsed: s.now(),
	}
	s.sessions[sess.id] = sess
	return sess
}

func (s *sessionStore) get(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.now().Sub(sess.lastUsed) > s.ttl {
		delete(s.sessions, id)
		return nil, false
	}
	sess.lastUsed = s.now()
	return sess, true
}

func (s *sessionStore) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *sessionStore) expireLocked() {
	now := s.now()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastUsed) > s.ttl {
			delete(s.sessions, id)
		}
	}
}
