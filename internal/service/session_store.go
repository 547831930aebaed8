package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type SessionState string

const (
	StateSelectingTopic       SessionState = "selecting_topic"
	StateRatingTensionBefore  SessionState = "rating_tension_before"
	StateDoingBodyAction      SessionState = "doing_body_action"
	StateDoingTaskMicroAction SessionState = "doing_task_micro_action"
	StateRatingTensionAfter   SessionState = "rating_tension_after"
	StateOfferedDeepen        SessionState = "offered_deepen"
	StateDeepening            SessionState = "deepening"
)

// Session is the explicit state bag of one guided run. Exactly one live
// session exists per user id; every transition overwrites it in place.
type Session struct {
	UserID        uuid.UUID
	State         SessionState
	GoalID        uuid.UUID
	Trial         bool
	TensionBefore *int
	TensionAfter  *int
	BodyStepID    uuid.UUID
	TaskStepID    uuid.UUID
	DeepenStepID  uuid.UUID
	UpdatedAt     time.Time
}

// SessionStore keeps live sessions in memory keyed by user id. The flow
// survives a restart only as the ordinary pending steps it already
// created, which is the intended durability model.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*Session),
	}
}

func (st *SessionStore) Get(userID uuid.UUID) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[userID]
	return s, ok
}

func (st *SessionStore) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s.UpdatedAt = time.Now()
	st.sessions[s.UserID] = s
}

func (st *SessionStore) Delete(userID uuid.UUID) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, userID)
}
