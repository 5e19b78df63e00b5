package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizbook-service/internal/app"
	"quizbook-service/internal/domain"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore()

	if _, ok, err := store.Load(ctx, "quiz_state:q:u"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	payload := []byte(`{"current":1}`)
	if err := store.Save(ctx, "quiz_state:q:u", payload); err != nil {
		t.Fatalf("save: %v", err)
	}
	payload[0] = 'x'

	data, ok, err := store.Load(ctx, "quiz_state:q:u")
	if err != nil || !ok || string(data) != `{"current":1}` {
		t.Fatalf("unexpected load %q ok=%v err=%v", data, ok, err)
	}
	_ = store.Delete(ctx, "quiz_state:q:u")
	if _, ok, _ := store.Load(ctx, "quiz_state:q:u"); ok {
		t.Fatalf("expected key deleted")
	}
}

func TestAttemptStoreKeepsEveryAttempt(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_ = store.Append(ctx, "quiz-1", "u1", at, domain.Result{Score: 4})
	_ = store.Append(ctx, "quiz-1", "u1", at.Add(time.Hour), domain.Result{Score: 9})
	_ = store.Append(ctx, "quiz-2", "u2", at, domain.Result{Score: 1})

	results, err := store.ListAll(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(results) != 2 || results[1].Score != 9 || results[0].UserID != "u1" || results[0].QuizID != "quiz-1" {
		t.Fatalf("unexpected attempts %+v", results)
	}
	results[0].Score = 100
	again, _ := store.ListAll(ctx, "quiz-1")
	if again[0].Score != 4 {
		t.Fatalf("list must return a copy")
	}
}

func TestQuizCatalogSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	catalog := NewQuizCatalog(nil)
	first := domain.Quiz{ID: "a", Title: "First", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	_ = catalog.SaveQuiz(ctx, first)
	first.Title = "Edited"
	_ = catalog.SaveQuiz(ctx, first)

	got, err := catalog.LoadQuiz(ctx, "a")
	if err != nil || got.Title != "Edited" {
		t.Fatalf("expected overwritten quiz, got %+v %v", got, err)
	}
	if _, err := catalog.LoadQuiz(ctx, "b"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	created := 0
	create := func() *app.Session {
		created++
		return app.NewSession("quiz-1:u1", nil)
	}

	session := store.GetOrCreate("quiz-1:u1", create)
	again := store.GetOrCreate("quiz-1:u1", create)
	if session != again || created != 1 {
		t.Fatalf("expected one shared session, created %d", created)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one live session, got %d", store.Len())
	}

	session.Release()
	store.DeleteIfIdle("quiz-1:u1")
	if _, ok := store.Get("quiz-1:u1"); !ok {
		t.Fatalf("session still retained once, must stay")
	}

	session.Release()
	store.DeleteIfIdle("quiz-1:u1")
	if _, ok := store.Get("quiz-1:u1"); ok {
		t.Fatalf("expected session removed when idle")
	}
}
