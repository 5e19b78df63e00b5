package session

import (
	"context"
	"time"

	"quizbook-service/internal/domain"
)

// SnapshotStore is a key-value store for in-progress state and terminal results.
// Writes are last-writer-wins on the whole value.
type SnapshotStore interface {
	Save(ctx context.Context, key string, data []byte) error
	// Load returns ok=false when the key does not exist.
	Load(ctx context.Context, key string) (data []byte, ok bool, err error)
	Delete(ctx context.Context, key string) error
}

// AttemptStore is the append-only history of submitted results.
type AttemptStore interface {
	Append(ctx context.Context, quizID, userID string, at time.Time, result domain.Result) error
	ListAll(ctx context.Context, quizID string) ([]domain.Result, error)
}

// ScoreFunc grades answers against records.
type ScoreFunc func(records []domain.QuestionRecord, answers map[string]int, timeAllotted, timeRemaining int) domain.Result

// StateKey is the snapshot key for the in-progress state of subject on quizID.
func StateKey(quizID, subject string) string {
	return "quiz_state:" + quizID + ":" + subject
}

// ResultKeyPrefix starts every result key. Stores that expire snapshots keep
// these keys without expiry.
const ResultKeyPrefix = "quiz_result:"

// ResultKey is the snapshot key for the terminal result of subject on quizID.
func ResultKey(quizID, subject string) string {
	return ResultKeyPrefix + quizID + ":" + subject
}
