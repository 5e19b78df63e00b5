package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quizbook-service/internal/app"
	"quizbook-service/internal/auth"
	"quizbook-service/internal/domain"
	"quizbook-service/internal/infra/memory"
)

const quizText = `Q.1 What is 2 + 2?
a) 3
b) 4
c) 5
Answer: b
ex: Simple addition.

Q.2 Which is a primary colour?
a) Red
b) Green-ish
Answer: a`

type testEnv struct {
	server   *httptest.Server
	service  *app.QuizService
	auth     *auth.AuthService
	attempts *memory.AttemptStore
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	catalog := memory.NewQuizCatalog(nil)
	attempts := memory.NewAttemptStore()
	service := app.NewQuizService(app.Stores{
		Sessions:  memory.NewSessionStore(),
		Quizzes:   memory.NewQuizRepository(catalog, time.Minute),
		Catalog:   catalog,
		Snapshots: memory.NewSnapshotStore(),
		Attempts:  attempts,
	}, app.Settings{
		DefaultCorrect:  3,
		DefaultNegative: 1,
		TickInterval:    time.Hour,
		NewID:           func() string { return "quiz-1" },
	}, nil)
	authService := auth.NewAuthService("test-secret", "quizbook", time.Hour)
	server := httptest.NewServer(NewRouter(service, authService, RouterOptions{AllowedOrigins: []string{"*"}}))
	t.Cleanup(server.Close)

	if _, _, err := service.Publish(context.Background(), app.PublishRequest{Title: "Basics", Text: quizText, Minutes: 5}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	return testEnv{server: server, service: service, auth: authService, attempts: attempts}
}

func (e testEnv) token(t *testing.T, id domain.Identity, role string) string {
	t.Helper()
	tok, err := e.auth.Issue(id, role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (e testEnv) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type wireMessage struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		var msg wireMessage
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json: %v", err)
		}
		if expect == "" || msg.Type == expect {
			return msg.Payload
		}
	}
	t.Fatalf("no %s message received", expect)
	return nil
}

// readUntil skips messages until one of type expect satisfies ok.
func readUntil(conn *websocket.Conn, t *testing.T, expect string, ok func(map[string]any) bool) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		payload := readNext(conn, t, expect)
		if ok(payload) {
			return payload
		}
	}
	t.Fatalf("no matching %s message received", expect)
	return nil
}

func send(conn *websocket.Conn, t *testing.T, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func TestWebSocketQuizFlow(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, domain.Identity{UserID: "u1", DisplayName: "Alice"}, auth.RoleTaker)
	conn := env.dial(t, "quizId=quiz-1&token="+tok)

	view := readNext(conn, t, "view")
	if view["status"] != "active" || view["clock"] != "05:00" {
		t.Fatalf("unexpected opening view %+v", view)
	}

	send(conn, t, "mode", map[string]any{"mode": "quiz"})
	readNext(conn, t, "view")

	send(conn, t, "select", map[string]any{"questionId": "50001", "option": 1})
	fb := readNext(conn, t, "feedback")
	if fb["revealed"] != true || fb["isCorrect"] == true || fb["explanation"] != "Simple addition." {
		t.Fatalf("unexpected feedback %+v", fb)
	}

	send(conn, t, "next", nil)
	readUntil(conn, t, "view", func(v map[string]any) bool { return v["current"] == float64(1) })
	send(conn, t, "select", map[string]any{"questionId": "50002", "option": 1})
	readNext(conn, t, "feedback")

	send(conn, t, "submit", nil)
	result := readNext(conn, t, "result")
	if result["score"] != float64(2) || result["correct"] != float64(1) || result["wrong"] != float64(1) {
		t.Fatalf("unexpected result %+v", result)
	}

	results, _ := env.attempts.ListAll(context.Background(), "quiz-1")
	if len(results) != 1 || results[0].DisplayName != "Alice" {
		t.Fatalf("expected stored attempt, got %+v", results)
	}
}

func TestWebSocketAnonymousMustIdentify(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "quizId=quiz-1&device=d1")
	readNext(conn, t, "view")

	send(conn, t, "submit", nil)
	errPayload := readNext(conn, t, "error")
	if errPayload["message"] != domain.ErrIdentityUnresolved.Error() {
		t.Fatalf("expected identity error, got %+v", errPayload)
	}

	send(conn, t, "identify", map[string]any{"token": "garbage"})
	readNext(conn, t, "error")

	tok := env.token(t, domain.Identity{UserID: "u2", Email: "u2@example.com"}, auth.RoleTaker)
	send(conn, t, "identify", map[string]any{"token": tok})
	send(conn, t, "submit", nil)
	result := readNext(conn, t, "result")
	if result["userId"] != "u2" {
		t.Fatalf("expected submission as u2, got %+v", result)
	}
}

func TestWebSocketRejectsUnknownMessages(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "quizId=quiz-1")
	readNext(conn, t, "view")

	send(conn, t, "dance", nil)
	if msg := readNext(conn, t, "error"); msg["message"] != "unsupported message type" {
		t.Fatalf("unexpected error %+v", msg)
	}
	send(conn, t, "select", "not-an-object")
	if msg := readNext(conn, t, "error"); msg["message"] != "invalid payload" {
		t.Fatalf("unexpected error %+v", msg)
	}
}

func TestWebSocketUnknownQuiz(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "quizId=missing")
	if msg := readNext(conn, t, "error"); msg["message"] != domain.ErrQuizNotFound.Error() {
		t.Fatalf("unexpected error %+v", msg)
	}
}
