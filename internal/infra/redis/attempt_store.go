package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quizbook-service/internal/domain"
)

// AttemptStore appends submitted results to a list per quiz:
// RPUSH attempts:{quizID} {result JSON}
type AttemptStore struct {
	client *redis.Client
}

func NewAttemptStore(client *redis.Client) *AttemptStore {
	return &AttemptStore{client: client}
}

func (s *AttemptStore) Append(ctx context.Context, quizID, userID string, at time.Time, result domain.Result) error {
	result.QuizID = quizID
	result.UserID = userID
	result.SubmittedAt = at
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	if err := s.client.RPush(ctx, s.key(quizID), data).Err(); err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) ListAll(ctx context.Context, quizID string) ([]domain.Result, error) {
	raw, err := s.client.LRange(ctx, s.key(quizID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	results := make([]domain.Result, 0, len(raw))
	for _, item := range raw {
		var result domain.Result
		if err := json.Unmarshal([]byte(item), &result); err != nil {
			return nil, fmt.Errorf("unmarshal attempt: %w", err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *AttemptStore) key(quizID string) string {
	return "attempts:" + quizID
}
