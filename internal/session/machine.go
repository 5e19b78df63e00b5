// Package session drives one taker through one quiz: navigation, answering,
// marking, the countdown and submission, with resumable snapshots.
//
// A Machine is not safe for concurrent use. Callers serialize access to it.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"quizbook-service/internal/domain"
	"quizbook-service/internal/scoring"
)

// Status is the lifecycle state of a Machine.
type Status string

const (
	StatusLoading   Status = "loading"
	StatusActive    Status = "active"
	StatusSubmitted Status = "submitted"
)

// Deps are the collaborators of a Machine. Snapshots and Attempts are required.
type Deps struct {
	Snapshots SnapshotStore
	Attempts  AttemptStore
	// Score defaults to scoring.Score.
	Score  ScoreFunc
	Now    func() time.Time
	Logger *zap.Logger
}

// Machine is the per-taker quiz session state machine.
type Machine struct {
	quiz    domain.Quiz
	records []domain.QuestionRecord
	index   map[string]int
	subject string

	identity *domain.Identity
	status   Status
	state    domain.SessionState
	marked   map[int]struct{}
	result   *domain.Result

	autoSubmitted bool

	snapshots SnapshotStore
	attempts  AttemptStore
	score     ScoreFunc
	now       func() time.Time
	log       *zap.Logger
}

// New builds a Machine in the Loading state. subject keys the snapshots; it is
// the user ID when the taker is known up front, otherwise an opaque device or
// connection key. identity may be nil and resolved later.
func New(quiz domain.Quiz, subject string, identity *domain.Identity, deps Deps) *Machine {
	m := &Machine{
		quiz:      quiz,
		records:   applyDefaultScores(quiz),
		index:     make(map[string]int, len(quiz.Questions)),
		subject:   subject,
		status:    StatusLoading,
		marked:    make(map[int]struct{}),
		snapshots: deps.Snapshots,
		attempts:  deps.Attempts,
		score:     deps.Score,
		now:       deps.Now,
		log:       deps.Logger,
	}
	if m.score == nil {
		m.score = scoring.Score
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	for i, q := range m.records {
		m.index[q.ID] = i
	}
	if identity != nil && identity.UserID != "" {
		id := *identity
		m.identity = &id
	}
	return m
}

// applyDefaultScores copies the questions, filling in the quiz-wide marking
// scheme for records that carry no marks of their own.
func applyDefaultScores(quiz domain.Quiz) []domain.QuestionRecord {
	records := make([]domain.QuestionRecord, len(quiz.Questions))
	copy(records, quiz.Questions)
	for i := range records {
		if records[i].CorrectScore == 0 && records[i].NegativeScore == 0 {
			records[i].CorrectScore = quiz.CorrectScore
			records[i].NegativeScore = quiz.NegativeScore
		}
	}
	return records
}

// Load leaves the Loading state. A stored result for this subject moves the
// machine straight to Submitted without re-scoring; otherwise a valid snapshot
// is resumed. Without either, the taker's latest recorded attempt is shown,
// and only a taker with no history starts fresh. Load is a no-op outside Loading.
func (m *Machine) Load(ctx context.Context) error {
	if m.status != StatusLoading {
		return nil
	}

	if result, ok := m.loadResult(ctx); ok {
		m.result = &result
		m.status = StatusSubmitted
		m.log.Debug("resumed submitted attempt", zap.String("quiz_id", m.quiz.ID), zap.String("subject", m.subject))
		return nil
	}

	if state, ok := m.loadState(ctx); ok {
		m.restore(state)
		m.log.Debug("resumed attempt",
			zap.String("quiz_id", m.quiz.ID),
			zap.String("subject", m.subject),
			zap.Int("remaining", state.RemainingSeconds))
		m.status = StatusActive
		m.persist(ctx)
		return nil
	}

	if result, ok := m.latestAttempt(ctx); ok {
		m.result = &result
		m.status = StatusSubmitted
		m.saveResult(ctx, result)
		m.log.Info("restored result from attempt history", zap.String("quiz_id", m.quiz.ID), zap.String("subject", m.subject))
		return nil
	}

	m.reset()
	m.status = StatusActive
	m.persist(ctx)
	return nil
}

// latestAttempt finds the newest recorded attempt of the known taker. It covers
// result snapshots that expired or lived in a store that did not survive.
func (m *Machine) latestAttempt(ctx context.Context) (domain.Result, bool) {
	if m.identity == nil {
		return domain.Result{}, false
	}
	results, err := m.attempts.ListAll(ctx, m.quiz.ID)
	if err != nil {
		m.log.Warn("list attempts", zap.String("quiz_id", m.quiz.ID), zap.Error(err))
		return domain.Result{}, false
	}
	var latest *domain.Result
	for i := range results {
		r := results[i]
		if r.UserID != m.identity.UserID {
			continue
		}
		if latest == nil || !r.SubmittedAt.Before(latest.SubmittedAt) {
			latest = &r
		}
	}
	if latest == nil {
		return domain.Result{}, false
	}
	return *latest, true
}

func (m *Machine) saveResult(ctx context.Context, result domain.Result) {
	data, err := json.Marshal(result)
	if err != nil {
		m.log.Error("encode result snapshot", zap.Error(err))
		return
	}
	if err := m.snapshots.Save(ctx, ResultKey(m.quiz.ID, m.subject), data); err != nil {
		m.log.Warn("save result snapshot", zap.Error(err))
	}
}

func (m *Machine) loadResult(ctx context.Context) (domain.Result, bool) {
	key := ResultKey(m.quiz.ID, m.subject)
	data, ok, err := m.snapshots.Load(ctx, key)
	if err != nil {
		m.log.Warn("load result snapshot", zap.String("key", key), zap.Error(err))
		return domain.Result{}, false
	}
	if !ok {
		return domain.Result{}, false
	}
	var result domain.Result
	if err := json.Unmarshal(data, &result); err != nil || result.QuizID != m.quiz.ID {
		m.discard(ctx, key)
		return domain.Result{}, false
	}
	return result, true
}

func (m *Machine) loadState(ctx context.Context) (domain.SessionState, bool) {
	key := StateKey(m.quiz.ID, m.subject)
	data, ok, err := m.snapshots.Load(ctx, key)
	if err != nil {
		m.log.Warn("load state snapshot", zap.String("key", key), zap.Error(err))
		return domain.SessionState{}, false
	}
	if !ok {
		return domain.SessionState{}, false
	}
	var state domain.SessionState
	if err := json.Unmarshal(data, &state); err != nil || !m.validState(state) {
		m.discard(ctx, key)
		return domain.SessionState{}, false
	}
	return state, true
}

// validState rejects snapshots that do not fit this quiz. Any mismatch
// discards the whole snapshot.
func (m *Machine) validState(state domain.SessionState) bool {
	n := len(m.records)
	if n > 0 && (state.Current < 0 || state.Current >= n) {
		return false
	}
	if state.RemainingSeconds < 0 || state.RemainingSeconds > m.quiz.TimeLimitSeconds {
		return false
	}
	switch state.Mode {
	case "", domain.ModeDeferred, domain.ModeImmediate:
	default:
		return false
	}
	for id, option := range state.Answers {
		i, ok := m.index[id]
		if !ok || !m.records[i].HasOption(option) {
			return false
		}
	}
	for _, i := range state.Marked {
		if i < 0 || i >= n {
			return false
		}
	}
	return true
}

func (m *Machine) discard(ctx context.Context, key string) {
	m.log.Warn("discarding unreadable snapshot", zap.String("key", key))
	if err := m.snapshots.Delete(ctx, key); err != nil {
		m.log.Warn("delete snapshot", zap.String("key", key), zap.Error(err))
	}
}

func (m *Machine) restore(state domain.SessionState) {
	m.state = state
	if m.state.Answers == nil {
		m.state.Answers = make(map[string]int)
	}
	if m.state.Mode == "" {
		m.state.Mode = domain.ModeDeferred
	}
	m.marked = make(map[int]struct{}, len(state.Marked))
	for _, i := range state.Marked {
		m.marked[i] = struct{}{}
	}
}

func (m *Machine) reset() {
	m.state = domain.SessionState{
		Answers:          make(map[string]int),
		RemainingSeconds: m.quiz.TimeLimitSeconds,
		Mode:             domain.ModeDeferred,
	}
	m.marked = make(map[int]struct{})
	m.result = nil
	m.autoSubmitted = false
}

// persist writes the in-progress snapshot. Failures are logged; the in-memory
// state stays authoritative.
func (m *Machine) persist(ctx context.Context) {
	snapshot := m.snapshot()
	data, err := json.Marshal(snapshot)
	if err != nil {
		m.log.Error("encode state snapshot", zap.Error(err))
		return
	}
	key := StateKey(m.quiz.ID, m.subject)
	if err := m.snapshots.Save(ctx, key, data); err != nil {
		m.log.Warn("save state snapshot", zap.String("key", key), zap.Error(err))
	}
}

func (m *Machine) snapshot() domain.SessionState {
	answers := make(map[string]int, len(m.state.Answers))
	for id, option := range m.state.Answers {
		answers[id] = option
	}
	marked := make([]int, 0, len(m.marked))
	for i := range m.marked {
		marked = append(marked, i)
	}
	sort.Ints(marked)
	return domain.SessionState{
		Current:          m.state.Current,
		Answers:          answers,
		Marked:           marked,
		RemainingSeconds: m.state.RemainingSeconds,
		Mode:             m.state.Mode,
	}
}

// ResolveIdentity records the taker. Empty user IDs are ignored.
func (m *Machine) ResolveIdentity(identity domain.Identity) {
	if identity.UserID == "" {
		return
	}
	m.identity = &identity
}

// Identity returns the resolved taker, if any.
func (m *Machine) Identity() (domain.Identity, bool) {
	if m.identity == nil {
		return domain.Identity{}, false
	}
	return *m.identity, true
}

// Navigate moves to question i, clamped to the quiz bounds.
func (m *Machine) Navigate(ctx context.Context, i int) error {
	if m.status != StatusActive {
		return domain.ErrNotActive
	}
	m.state.Current = m.clamp(i)
	m.persist(ctx)
	return nil
}

// Next moves forward one question; at the last question it stays put.
func (m *Machine) Next(ctx context.Context) error {
	return m.Navigate(ctx, m.state.Current+1)
}

// Prev moves back one question; at the first question it stays put.
func (m *Machine) Prev(ctx context.Context) error {
	return m.Navigate(ctx, m.state.Current-1)
}

func (m *Machine) clamp(i int) int {
	if i < 0 || len(m.records) == 0 {
		return 0
	}
	if i >= len(m.records) {
		return len(m.records) - 1
	}
	return i
}

// SelectAnswer records option (1-based) for questionID, replacing any earlier
// choice. In immediate mode the returned Feedback is revealed.
func (m *Machine) SelectAnswer(ctx context.Context, questionID string, option int) (Feedback, error) {
	if m.status != StatusActive {
		return Feedback{}, domain.ErrNotActive
	}
	i, ok := m.index[questionID]
	if !ok {
		return Feedback{}, domain.ErrQuestionNotFound
	}
	if !m.records[i].HasOption(option) {
		return Feedback{}, domain.ErrOptionNotFound
	}
	m.state.Answers[questionID] = option
	m.persist(ctx)

	if m.state.Mode != domain.ModeImmediate {
		return Feedback{QuestionID: questionID, Chosen: option}, nil
	}
	return m.feedback(i), nil
}

// ClearAnswer removes the recorded answer for question i.
func (m *Machine) ClearAnswer(ctx context.Context, i int) error {
	if m.status != StatusActive {
		return domain.ErrNotActive
	}
	if i < 0 || i >= len(m.records) {
		return domain.ErrQuestionNotFound
	}
	delete(m.state.Answers, m.records[i].ID)
	m.persist(ctx)
	return nil
}

// ToggleMark flips the review flag on question i.
func (m *Machine) ToggleMark(ctx context.Context, i int) error {
	if m.status != StatusActive {
		return domain.ErrNotActive
	}
	if i < 0 || i >= len(m.records) {
		return domain.ErrQuestionNotFound
	}
	if _, ok := m.marked[i]; ok {
		delete(m.marked, i)
	} else {
		m.marked[i] = struct{}{}
	}
	m.persist(ctx)
	return nil
}

// SetMode switches between deferred and immediate feedback.
func (m *Machine) SetMode(ctx context.Context, mode domain.Mode) error {
	if m.status != StatusActive {
		return domain.ErrNotActive
	}
	switch mode {
	case domain.ModeDeferred, domain.ModeImmediate:
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	m.state.Mode = mode
	m.persist(ctx)
	return nil
}

// Tick advances the countdown by one second. When the clock reaches zero the
// attempt is submitted automatically, at most once per active lifetime.
// submitted reports whether this tick moved the machine to Submitted.
func (m *Machine) Tick(ctx context.Context) (submitted bool, err error) {
	if m.status != StatusActive {
		return false, nil
	}
	if m.state.RemainingSeconds > 0 {
		m.state.RemainingSeconds--
	}
	if m.state.RemainingSeconds > 0 {
		m.persist(ctx)
		return false, nil
	}
	if m.autoSubmitted {
		return false, nil
	}
	m.autoSubmitted = true
	m.persist(ctx)
	if _, err := m.Submit(ctx); err != nil {
		return m.status == StatusSubmitted, err
	}
	m.log.Info("time expired, attempt submitted", zap.String("quiz_id", m.quiz.ID), zap.String("subject", m.subject))
	return true, nil
}

// Submit scores the attempt and appends it to the attempt history. Submitting
// an already submitted machine returns the stored result without re-scoring.
//
// When the history write fails the machine is still Submitted; the result is
// returned together with the error.
func (m *Machine) Submit(ctx context.Context) (domain.Result, error) {
	switch m.status {
	case StatusSubmitted:
		return *m.result, nil
	case StatusActive:
	default:
		return domain.Result{}, domain.ErrNotActive
	}
	if m.identity == nil {
		return domain.Result{}, domain.ErrIdentityUnresolved
	}

	m.status = StatusSubmitted
	answers := make(map[string]int, len(m.state.Answers))
	for id, option := range m.state.Answers {
		answers[id] = option
	}
	result := m.score(m.records, answers, m.quiz.TimeLimitSeconds, m.state.RemainingSeconds)
	result.QuizID = m.quiz.ID
	result.UserID = m.identity.UserID
	result.DisplayName = m.identity.DisplayName
	result.Email = m.identity.Email
	result.SubmittedAt = m.now().UTC()
	m.result = &result

	m.saveResult(ctx, result)
	if err := m.snapshots.Delete(ctx, StateKey(m.quiz.ID, m.subject)); err != nil {
		m.log.Warn("delete state snapshot", zap.Error(err))
	}

	if err := m.attempts.Append(ctx, m.quiz.ID, result.UserID, result.SubmittedAt, result); err != nil {
		m.log.Error("append attempt",
			zap.String("quiz_id", m.quiz.ID),
			zap.String("user_id", result.UserID),
			zap.Error(err))
		return result, fmt.Errorf("append attempt: %w", err)
	}
	m.log.Info("attempt submitted",
		zap.String("quiz_id", m.quiz.ID),
		zap.String("user_id", result.UserID),
		zap.Float64("score", result.Score),
		zap.Int("time_taken", result.TimeTaken))
	return result, nil
}

// Reattempt discards the stored result and any snapshot and starts over with
// a full clock.
func (m *Machine) Reattempt(ctx context.Context) error {
	if m.status != StatusSubmitted {
		return domain.ErrNotSubmitted
	}
	for _, key := range []string{ResultKey(m.quiz.ID, m.subject), StateKey(m.quiz.ID, m.subject)} {
		if err := m.snapshots.Delete(ctx, key); err != nil {
			m.log.Warn("delete snapshot", zap.String("key", key), zap.Error(err))
		}
	}
	m.reset()
	m.status = StatusActive
	m.persist(ctx)
	return nil
}

// Status returns the lifecycle state.
func (m *Machine) Status() Status {
	return m.status
}

// Result returns the terminal result once submitted.
func (m *Machine) Result() (domain.Result, bool) {
	if m.result == nil {
		return domain.Result{}, false
	}
	return *m.result, true
}

// State returns a copy of the in-progress state.
func (m *Machine) State() domain.SessionState {
	return m.snapshot()
}

// Quiz returns the quiz being taken.
func (m *Machine) Quiz() domain.Quiz {
	return m.quiz
}
