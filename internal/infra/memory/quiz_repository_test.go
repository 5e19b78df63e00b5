package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quizbook-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewQuizCatalog(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader once, got %d", loader.count())
	}

	quiz, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.count())
	}
	if quiz.Questions[0].Correct != 2 {
		t.Fatalf("unexpected cached quiz %+v", quiz)
	}
}

func TestQuizRepositoryExpires(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewQuizCatalog(map[string]domain.Quiz{"quiz-1": sampleQuiz()})}
	repo := NewQuizRepository(loader, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetQuiz(context.Background(), "quiz-1")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetQuiz(context.Background(), "quiz-1")
	if loader.count() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.count())
	}
}

func TestQuizRepositoryMissingQuiz(t *testing.T) {
	repo := NewQuizRepository(NewQuizCatalog(nil), time.Minute)
	if _, err := repo.GetQuiz(context.Background(), "nope"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type countingLoader struct {
	QuizLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:               "quiz-1",
		Title:            "Arithmetic",
		TimeLimitSeconds: 300,
		CorrectScore:     3,
		NegativeScore:    1,
		Questions: []domain.QuestionRecord{
			{
				ID:      "50001",
				Text:    "What is 2 + 2?",
				Options: [5]string{"3", "4", "5"},
				Correct: 2,
			},
		},
	}
}

func TestQuizRepositorySaveQuizPrimesCache(t *testing.T) {
	catalog := NewQuizCatalog(nil)
	loader := &countingLoader{QuizLoader: catalog}
	repo := NewQuizRepository(catalog, time.Minute)

	if err := repo.SaveQuiz(context.Background(), sampleQuiz()); err != nil {
		t.Fatalf("save quiz: %v", err)
	}
	if _, err := catalog.LoadQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("quiz not written through: %v", err)
	}

	repo.loader = loader
	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.count() != 0 {
		t.Fatalf("expected primed cache, loader calls %d", loader.count())
	}

	readOnly := NewQuizRepository(loader, time.Minute)
	if err := readOnly.SaveQuiz(context.Background(), sampleQuiz()); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected read-only error, got %v", err)
	}
}
