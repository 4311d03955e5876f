package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"dus-exam-service/internal/app"
	"dus-exam-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions stay in a local map because the countdown and broadcast logic
//     run in-process.
//   - Redis mirrors the latest state snapshot of every live session under
//     exam:session:{id}. Each state change (timer ticks included) rewrites it
//     and renews the TTL, so the key lives as long as the session does.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*trackedSession
}

type trackedSession struct {
	session *app.Session
	cancel  func()
	done    chan struct{}
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*trackedSession),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	id := session.ID()
	s.write(id, session.State())

	updates, cancel := session.Subscribe()
	tracked := &trackedSession{session: session, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	previous := s.sessions[id]
	s.sessions[id] = tracked
	s.mu.Unlock()
	if previous != nil {
		previous.stop()
	}

	go func() {
		defer close(tracked.done)
		for state := range updates {
			s.write(id, state)
		}
	}()
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tracked, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return tracked.session, true
}

// Delete stops mirroring before removing the key so no late write revives it.
func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	tracked := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if tracked != nil {
		tracked.stop()
	}
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

func (t *trackedSession) stop() {
	t.cancel()
	<-t.done
}

// write is best-effort; the session itself never depends on Redis.
func (s *SessionStore) write(sessionID string, state domain.SessionState) {
	if data, err := json.Marshal(state); err == nil {
		_ = s.client.Set(context.Background(), s.key(sessionID), data, s.ttl).Err()
	}
}

func (s *SessionStore) key(sessionID string) string {
	return "exam:session:" + sessionID
}
