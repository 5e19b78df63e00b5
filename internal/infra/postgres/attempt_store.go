package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"quizbook-service/internal/domain"
)

// AttemptStore appends submitted results to the attempts table.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) Append(ctx context.Context, quizID, userID string, at time.Time, result domain.Result) error {
	result.QuizID = quizID
	result.UserID = userID
	result.SubmittedAt = at
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO attempts (quiz_id, user_id, score, time_taken, submitted_at, data)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
		quizID, userID, result.Score, result.TimeTaken, at, string(data))
	if err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) ListAll(ctx context.Context, quizID string) ([]domain.Result, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM attempts WHERE quiz_id=$1 ORDER BY id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var results []domain.Result
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		var result domain.Result
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal attempt: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
