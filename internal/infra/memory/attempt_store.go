package memory

import (
	"context"
	"sync"
	"time"

	"quizbook-service/internal/domain"
)

// AttemptStore keeps the submitted results of every quiz in process.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string][]domain.Result
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{attempts: make(map[string][]domain.Result)}
}

func (s *AttemptStore) Append(_ context.Context, quizID, userID string, at time.Time, result domain.Result) error {
	result.QuizID = quizID
	result.UserID = userID
	result.SubmittedAt = at

	s.mu.Lock()
	s.attempts[quizID] = append(s.attempts[quizID], result)
	s.mu.Unlock()
	return nil
}

func (s *AttemptStore) ListAll(_ context.Context, quizID string) ([]domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]domain.Result, len(s.attempts[quizID]))
	copy(results, s.attempts[quizID])
	return results, nil
}
