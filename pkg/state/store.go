package state

import (
	"context"
	"log"
	"sync"
	"time"
)

// Store is a concurrency-safe map from user id to Session. The store mutex
// guards the map; each Session carries its own mutex that serializes all
// handling for that user.
type Store struct {
	users      map[int64]*Session
	fsmCreator FSMCreator
	mu         sync.Mutex
}

func NewStore(f FSMCreator) *Store {
	return &Store{
		users:      make(map[int64]*Session),
		fsmCreator: f,
	}
}

// Get returns the session for userID, or nil when absent.
func (s *Store) Get(userID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID]
}

// Put stores the session under userID, replacing any previous one.
func (s *Store) Put(userID int64, session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = session
}

// Remove deletes the session for userID.
func (s *Store) Remove(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
}

// GetOrCreate returns the existing session for userID or creates an idle one.
func (s *Store) GetOrCreate(userID, chatID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.users[userID]
	if exists {
		return session
	}

	log.Printf("Creating new session for user %d", userID)

	formFSM := s.fsmCreator.NewFormFSM()
	if formFSM == nil {
		log.Printf("CRITICAL: Failed to initialize form FSM for user %d", userID)
		return nil
	}

	session = &Session{
		UserID:   userID,
		ChatID:   chatID,
		Form:     formFSM,
		LastSeen: time.Now(),
	}
	s.users[userID] = session
	return session
}

// Len reports the number of tracked sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// StartJanitor launches a background sweep that evicts sessions idle longer
// than ttl. A ttl of 0 disables eviction and the call is a no-op.
func (s *Store) StartJanitor(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 {
		log.Println("Session janitor disabled (ttl is 0).")
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		log.Printf("Session janitor started (ttl=%s, interval=%s).", ttl, interval)

		for {
			select {
			case <-ticker.C:
				s.sweep(ttl)
			case <-ctx.Done():
				log.Println("Session janitor stopped.")
				return
			}
		}
	}()
}

func (s *Store) sweep(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, session := range s.users {
		// TryLock: a session being handled right now is not stale.
		if !session.Mu.TryLock() {
			continue
		}
		stale := session.LastSeen.Before(cutoff)
		session.Mu.Unlock()

		if stale {
			log.Printf("Evicting idle session for user %d (last seen %s)", userID, session.LastSeen.Format(time.RFC3339))
			delete(s.users, userID)
		}
	}
}
