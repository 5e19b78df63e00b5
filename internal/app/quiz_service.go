package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizbook-service/internal/domain"
	"quizbook-service/internal/leaderboard"
	"quizbook-service/internal/parser"
	"quizbook-service/internal/session"
)

// SessionRepository tracks live sessions (in-memory, Redis, etc).
type SessionRepository interface {
	// GetOrCreate returns the session for key, creating it with create when
	// absent, and retains it for the caller.
	GetOrCreate(key string, create func() *Session) *Session
	Get(key string) (*Session, bool)
	DeleteIfIdle(key string)
	Len() int
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizStore persists newly published quizzes.
type QuizStore interface {
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
}

// Stores groups the persistence adapters used by QuizService.
type Stores struct {
	Sessions  SessionRepository
	Quizzes   QuizRepository
	Catalog   QuizStore
	Snapshots session.SnapshotStore
	Attempts  session.AttemptStore
}

// Settings holds the publishing defaults and the session clock.
type Settings struct {
	DefaultMinutes  int
	DefaultCorrect  float64
	DefaultNegative float64
	TickInterval    time.Duration

	Now   func() time.Time
	NewID func() string
	Score session.ScoreFunc
}

// First question ID handed out at publish time; questions are numbered from
// here in document order.
const questionIDBase = 50000

// QuizService contains the core quiz use cases.
type QuizService struct {
	stores   Stores
	settings Settings
	log      *zap.Logger
}

func NewQuizService(stores Stores, settings Settings, log *zap.Logger) *QuizService {
	if settings.DefaultMinutes <= 0 {
		settings.DefaultMinutes = 25
	}
	if settings.DefaultCorrect <= 0 {
		settings.DefaultCorrect = 3
	}
	if settings.DefaultNegative < 0 {
		settings.DefaultNegative = 1
	}
	if settings.TickInterval <= 0 {
		settings.TickInterval = time.Second
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	if settings.NewID == nil {
		settings.NewID = uuid.NewString
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &QuizService{stores: stores, settings: settings, log: log}
}

// PublishRequest is the operator input for a new quiz. Nil marks and zero
// minutes fall back to the service defaults.
type PublishRequest struct {
	Title         string
	Creator       string
	Text          string
	Minutes       int
	CorrectScore  *float64
	NegativeScore *float64
}

// Publish parses quiz text and stores the recovered questions as a new quiz.
// It returns the quiz and the number of questions recovered.
func (s *QuizService) Publish(ctx context.Context, req PublishRequest) (domain.Quiz, int, error) {
	records, n := parser.Parse(req.Text)
	if n == 0 {
		return domain.Quiz{}, 0, domain.ErrNothingRecognized
	}

	minutes := req.Minutes
	if minutes <= 0 {
		minutes = s.settings.DefaultMinutes
	}
	correct := s.settings.DefaultCorrect
	if req.CorrectScore != nil && *req.CorrectScore > 0 {
		correct = *req.CorrectScore
	}
	negative := s.settings.DefaultNegative
	if req.NegativeScore != nil && *req.NegativeScore >= 0 {
		negative = *req.NegativeScore
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Untitled quiz"
	}

	for i := range records {
		records[i].ID = strconv.Itoa(questionIDBase + i + 1)
		records[i].CorrectScore = correct
		records[i].NegativeScore = negative
	}

	quiz := domain.Quiz{
		ID:               s.settings.NewID(),
		Title:            title,
		Creator:          strings.TrimSpace(req.Creator),
		Questions:        records,
		TimeLimitSeconds: minutes * 60,
		CorrectScore:     correct,
		NegativeScore:    negative,
		CreatedAt:        s.settings.Now().UTC(),
	}
	if err := s.stores.Catalog.SaveQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, 0, fmt.Errorf("save quiz: %w", err)
	}
	s.log.Info("quiz published",
		zap.String("quiz_id", quiz.ID),
		zap.String("title", quiz.Title),
		zap.Int("questions", n),
		zap.Int("minutes", minutes))
	return quiz, n, nil
}

// Quiz returns a published quiz.
func (s *QuizService) Quiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.stores.Quizzes.GetQuiz(ctx, quizID)
}

// Handle is one holder's reference to a live session.
type Handle struct {
	session  *Session
	released bool
}

// Key identifies the session behind the handle.
func (h *Handle) Key() string {
	return h.session.Key()
}

// Open joins (or starts) the session of the taker on quizID and leaves the
// Loading state. identity may be nil; device then keys the session.
func (s *QuizService) Open(ctx context.Context, quizID string, identity *domain.Identity, device string) (*Handle, session.View, error) {
	quiz, err := s.stores.Quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, session.View{}, err
	}

	subject := subjectFor(identity, device)
	key := quizID + ":" + subject
	sess := s.stores.Sessions.GetOrCreate(key, func() *Session {
		machine := session.New(quiz, subject, identity, session.Deps{
			Snapshots: s.stores.Snapshots,
			Attempts:  s.stores.Attempts,
			Score:     s.settings.Score,
			Now:       s.settings.Now,
			Logger:    s.log.With(zap.String("session", key)),
		})
		return NewSession(key, machine)
	})
	handle := &Handle{session: sess}

	view, err := sess.do(func(m *session.Machine) error {
		if identity != nil {
			m.ResolveIdentity(*identity)
		}
		return m.Load(ctx)
	})
	if err != nil {
		s.Release(handle)
		return nil, session.View{}, err
	}
	s.startTimer(handle)
	return handle, view, nil
}

func subjectFor(identity *domain.Identity, device string) string {
	if identity != nil && identity.UserID != "" {
		return identity.UserID
	}
	if device == "" {
		device = uuid.NewString()
	}
	return "anon-" + device
}

// Release gives up the handle. The session is dropped from the registry once
// no handle holds it; its snapshot stays in the snapshot store.
func (s *QuizService) Release(h *Handle) {
	if h == nil || h.released {
		return
	}
	h.released = true
	h.session.Release()
	s.stores.Sessions.DeleteIfIdle(h.session.Key())
}

// Subscribe returns a channel that receives every view of the session after a
// change, starting with the current one. The caller must invoke cancel.
func (s *QuizService) Subscribe(h *Handle) (<-chan session.View, func()) {
	return h.session.subscribe()
}

// View returns the current view without changing anything.
func (s *QuizService) View(h *Handle) session.View {
	return h.session.view()
}

func (s *QuizService) Identify(h *Handle, identity domain.Identity) session.View {
	view, _ := h.session.do(func(m *session.Machine) error {
		m.ResolveIdentity(identity)
		return nil
	})
	return view
}

func (s *QuizService) Navigate(ctx context.Context, h *Handle, index int) (session.View, error) {
	return h.session.do(func(m *session.Machine) error { return m.Navigate(ctx, index) })
}

func (s *QuizService) Next(ctx context.Context, h *Handle) (session.View, error) {
	return h.session.do(func(m *session.Machine) error { return m.Next(ctx) })
}

func (s *QuizService) Prev(ctx context.Context, h *Handle) (session.View, error) {
	return h.session.do(func(m *session.Machine) error { return m.Prev(ctx) })
}

// SelectAnswer records a choice. In immediate mode the feedback is revealed.
func (s *QuizService) SelectAnswer(ctx context.Context, h *Handle, questionID string, option int) (session.Feedback, session.View, error) {
	var fb session.Feedback
	view, err := h.session.do(func(m *session.Machine) error {
		var err error
		fb, err = m.SelectAnswer(ctx, questionID, option)
		return err
	})
	return fb, view, err
}

func (s *QuizService) ClearAnswer(ctx context.Context, h *Handle, index int) (session.View, error) {
	return h.session.do(func(m *session.Machine) error { return m.ClearAnswer(ctx, index) })
}

func (s *QuizService) ToggleMark(ctx context.Context, h *Handle, index int) (session.View, error) {
	return h.session.do(func(m *session.Machine) error { return m.ToggleMark(ctx, index) })
}

func (s *QuizService) SetMode(ctx context.Context, h *Handle, mode domain.Mode) (session.View, error) {
	return h.session.do(func(m *session.Machine) error { return m.SetMode(ctx, mode) })
}

// Submit ends the attempt. Repeated submits return the same result.
func (s *QuizService) Submit(ctx context.Context, h *Handle) (domain.Result, session.View, error) {
	var result domain.Result
	view, err := h.session.do(func(m *session.Machine) error {
		var err error
		result, err = m.Submit(ctx)
		return err
	})
	return result, view, err
}

// Reattempt starts the taker over with a full clock.
func (s *QuizService) Reattempt(ctx context.Context, h *Handle) (session.View, error) {
	view, err := h.session.do(func(m *session.Machine) error { return m.Reattempt(ctx) })
	if err != nil {
		return view, err
	}
	s.startTimer(h)
	return view, nil
}

// Tick advances the countdown of the session by one second. The background
// timer calls it once per TickInterval; it is exported for callers that drive
// the clock themselves.
func (s *QuizService) Tick(ctx context.Context, h *Handle) (bool, session.View, error) {
	var submitted bool
	view, err := h.session.do(func(m *session.Machine) error {
		var err error
		submitted, err = m.Tick(ctx)
		return err
	})
	return submitted, view, err
}

func (s *QuizService) startTimer(h *Handle) {
	h.session.startTimer(s.settings.TickInterval, func(ctx context.Context, m *session.Machine) error {
		submitted, err := m.Tick(ctx)
		if err != nil {
			s.log.Warn("timer tick", zap.String("session", h.session.Key()), zap.Error(err))
		}
		if submitted {
			s.log.Info("session auto-submitted", zap.String("session", h.session.Key()))
		}
		return err
	})
}

// Leaderboard ranks every stored attempt on quizID.
func (s *QuizService) Leaderboard(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	if _, err := s.stores.Quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.Leaderboard{}, err
	}
	results, err := s.stores.Attempts.ListAll(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("list attempts: %w", err)
	}
	return domain.Leaderboard{
		QuizID:    quizID,
		Entries:   leaderboard.Rank(results, leaderboard.DefaultLimit),
		UpdatedAt: s.settings.Now().UTC(),
	}, nil
}

// LiveSessions counts sessions currently held by at least one connection.
func (s *QuizService) LiveSessions() int {
	return s.stores.Sessions.Len()
}
