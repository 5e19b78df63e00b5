package acceptance

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"quizbook-service/internal/app"
	"quizbook-service/internal/domain"
	"quizbook-service/internal/infra/memory"
	"quizbook-service/internal/parser"
	"quizbook-service/internal/session"
)

// TestFeatures runs every scenario under features/.
func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "quizbook",
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:    "progress",
			Paths:     []string{filepath.Join("features")},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

// InitializeScenario wires the parsing, session and leaderboard steps.
func InitializeScenario(ctx *godog.ScenarioContext) {
	state := &scenarioState{}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		state.reset()
		return ctx, nil
	})
	ctx.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
		state.releaseAll()
		return ctx, nil
	})

	ctx.Step(`^the quiz text:$`, state.givenQuizText)
	ctx.Step(`^I parse the text$`, state.whenIParse)
	ctx.Step(`^(\d+) questions? (?:is|are) recovered$`, state.thenRecovered)
	ctx.Step(`^question (\d+) reads "([^"]*)"$`, state.thenQuestionReads)
	ctx.Step(`^question (\d+) has options "([^"]*)"$`, state.thenQuestionOptions)
	ctx.Step(`^question (\d+) has answer (\d+)$`, state.thenQuestionAnswer)
	ctx.Step(`^question (\d+) has explanation "([^"]*)"$`, state.thenQuestionExplanation)

	ctx.Step(`^a published quiz of (\d+) minutes? with marks ([\d.]+) and negative ([\d.]+):$`, state.givenPublishedQuiz)
	ctx.Step(`^"([^"]+)" opens the quiz$`, state.opens)
	ctx.Step(`^"([^"]+)" answers question (\d+) with option (\d+)$`, state.answers)
	ctx.Step(`^"([^"]+)" goes to question (\d+)$`, state.goesTo)
	ctx.Step(`^(\d+) seconds pass for "([^"]+)"$`, state.secondsPass)
	ctx.Step(`^"([^"]+)" submits$`, state.submits)
	ctx.Step(`^"([^"]+)" leaves$`, state.leaves)
	ctx.Step(`^"([^"]+)" reattempts$`, state.reattempts)
	ctx.Step(`^"([^"]+)" switches to (quiz|test) mode$`, state.switchesMode)
	ctx.Step(`^the session of "([^"]+)" is (loading|active|submitted)$`, state.thenStatus)
	ctx.Step(`^the score of "([^"]+)" is (-?[\d.]+)$`, state.thenScore)
	ctx.Step(`^"([^"]+)" has (\d+) correct, (\d+) wrong and (\d+) unattempted$`, state.thenCounts)
	ctx.Step(`^the accuracy of "([^"]+)" is ([\d.]+)$`, state.thenAccuracy)
	ctx.Step(`^the time taken by "([^"]+)" is (\d+) seconds$`, state.thenTimeTaken)
	ctx.Step(`^"([^"]+)" is on question (\d+) with (\d+) seconds left$`, state.thenPosition)
	ctx.Step(`^"([^"]+)" sees option (\d+) marked (correct|wrong)$`, state.thenFeedback)
	ctx.Step(`^the leaderboard reads:$`, state.thenLeaderboard)
}

type scenarioState struct {
	text    string
	records []domain.QuestionRecord
	count   int

	service  *app.QuizService
	quiz     domain.Quiz
	handles  map[string]*app.Handle
	feedback map[string]session.Feedback
}

func (s *scenarioState) reset() {
	s.releaseAll()
	*s = scenarioState{
		handles:  make(map[string]*app.Handle),
		feedback: make(map[string]session.Feedback),
	}
	catalog := memory.NewQuizCatalog(nil)
	s.service = app.NewQuizService(app.Stores{
		Sessions:  memory.NewSessionStore(),
		Quizzes:   memory.NewQuizRepository(catalog, time.Minute),
		Catalog:   catalog,
		Snapshots: memory.NewSnapshotStore(),
		Attempts:  memory.NewAttemptStore(),
	}, app.Settings{
		// the clock is driven by the steps
		TickInterval: time.Hour,
	}, nil)
}

func (s *scenarioState) releaseAll() {
	for name, h := range s.handles {
		s.service.Release(h)
		delete(s.handles, name)
	}
}

func (s *scenarioState) givenQuizText(doc *godog.DocString) error {
	s.text = doc.Content
	return nil
}

func (s *scenarioState) whenIParse() error {
	s.records, s.count = parser.Parse(s.text)
	return nil
}

func (s *scenarioState) thenRecovered(n int) error {
	if s.count != n || len(s.records) != n {
		return fmt.Errorf("expected %d questions, got %d", n, s.count)
	}
	return nil
}

func (s *scenarioState) record(n int) (domain.QuestionRecord, error) {
	if n < 1 || n > len(s.records) {
		return domain.QuestionRecord{}, fmt.Errorf("question %d not recovered", n)
	}
	return s.records[n-1], nil
}

func (s *scenarioState) thenQuestionReads(n int, text string) error {
	r, err := s.record(n)
	if err != nil {
		return err
	}
	if r.Text != text {
		return fmt.Errorf("question %d reads %q, expected %q", n, r.Text, text)
	}
	return nil
}

func (s *scenarioState) thenQuestionOptions(n int, options string) error {
	r, err := s.record(n)
	if err != nil {
		return err
	}
	var got []string
	for _, opt := range r.Options {
		if opt != "" {
			got = append(got, opt)
		}
	}
	if strings.Join(got, "|") != options {
		return fmt.Errorf("question %d has options %q, expected %q", n, strings.Join(got, "|"), options)
	}
	return nil
}

func (s *scenarioState) thenQuestionAnswer(n, answer int) error {
	r, err := s.record(n)
	if err != nil {
		return err
	}
	if r.Correct != answer {
		return fmt.Errorf("question %d has answer %d, expected %d", n, r.Correct, answer)
	}
	return nil
}

func (s *scenarioState) thenQuestionExplanation(n int, explanation string) error {
	r, err := s.record(n)
	if err != nil {
		return err
	}
	if r.Explanation != explanation {
		return fmt.Errorf("question %d has explanation %q, expected %q", n, r.Explanation, explanation)
	}
	return nil
}

func (s *scenarioState) givenPublishedQuiz(minutes int, marks, negative string, doc *godog.DocString) error {
	correct, err := strconv.ParseFloat(marks, 64)
	if err != nil {
		return err
	}
	neg, err := strconv.ParseFloat(negative, 64)
	if err != nil {
		return err
	}
	quiz, _, err := s.service.Publish(context.Background(), app.PublishRequest{
		Title:         "Acceptance quiz",
		Text:          doc.Content,
		Minutes:       minutes,
		CorrectScore:  &correct,
		NegativeScore: &neg,
	})
	if err != nil {
		return err
	}
	s.quiz = quiz
	return nil
}

func (s *scenarioState) handle(name string) (*app.Handle, error) {
	h, ok := s.handles[name]
	if !ok {
		return nil, fmt.Errorf("%s has not opened the quiz", name)
	}
	return h, nil
}

func (s *scenarioState) opens(name string) error {
	identity := &domain.Identity{UserID: strings.ToLower(name), DisplayName: name}
	h, _, err := s.service.Open(context.Background(), s.quiz.ID, identity, "")
	if err != nil {
		return err
	}
	s.handles[name] = h
	return nil
}

func (s *scenarioState) questionID(n int) (string, error) {
	if n < 1 || n > len(s.quiz.Questions) {
		return "", fmt.Errorf("quiz has no question %d", n)
	}
	return s.quiz.Questions[n-1].ID, nil
}

func (s *scenarioState) answers(name string, question, option int) error {
	h, err := s.handle(name)
	if err != nil {
		return err
	}
	qid, err := s.questionID(question)
	if err != nil {
		return err
	}
	fb, _, err := s.service.SelectAnswer(context.Background(), h, qid, option)
	if err != nil {
		return err
	}
	s.feedback[name] = fb
	return nil
}

func (s *scenarioState) goesTo(name string, question int) error {
	h, err := s.handle(name)
	if err != nil {
		return err
	}
	_, err = s.service.Navigate(context.Background(), h, question-1)
	return err
}

func (s *scenarioState) secondsPass(seconds int, name string) error {
	h, err := s.handle(name)
	if err != nil {
		return err
	}
	for i := 0; i < seconds; i++ {
		if _, _, err := s.service.Tick(context.Background(), h); err != nil {
			return err
		}
	}
	return nil
}

func (s *scenarioState) submits(name string) error {
	h, err := s.handle(name)
	if err != nil {
		return err
	}
	_, _, err = s.service.Submit(context.Background(), h)
	return err
}

func (s *scenarioState) leaves(name string) error {
	h, err := s.handle(name)
	if err != nil {
		return err
	}
	s.service.Release(h)
	delete(s.handles, name)
	return nil
}

func (s *scenarioState) reattempts(name string) error {
	h, err := s.handle(name)
	if err != nil {
		return err
	}
	_, err = s.service.Reattempt(context.Background(), h)
	return err
}

func (s *scenarioState) switchesMode(name, mode string) error {
	h, err := s.handle(name)
	if err != nil {
		return err
	}
	_, err = s.service.SetMode(context.Background(), h, domain.Mode(mode))
	return err
}

func (s *scenarioState) view(name string) (session.View, error) {
	h, err := s.handle(name)
	if err != nil {
		return session.View{}, err
	}
	return s.service.View(h), nil
}

func (s *scenarioState) result(name string) (*domain.Result, error) {
	v, err := s.view(name)
	if err != nil {
		return nil, err
	}
	if v.Result == nil {
		return nil, fmt.Errorf("%s has no result yet (status %s)", name, v.Status)
	}
	return v.Result, nil
}

func (s *scenarioState) thenStatus(name, status string) error {
	v, err := s.view(name)
	if err != nil {
		return err
	}
	if string(v.Status) != status {
		return fmt.Errorf("%s is %s, expected %s", name, v.Status, status)
	}
	return nil
}

func (s *scenarioState) thenScore(name, score string) error {
	want, err := strconv.ParseFloat(score, 64)
	if err != nil {
		return err
	}
	r, err := s.result(name)
	if err != nil {
		return err
	}
	if r.Score != want {
		return fmt.Errorf("%s scored %v, expected %v", name, r.Score, want)
	}
	return nil
}

func (s *scenarioState) thenCounts(name string, correct, wrong, unanswered int) error {
	r, err := s.result(name)
	if err != nil {
		return err
	}
	if r.CorrectCount != correct || r.WrongCount != wrong || r.UnansweredCount != unanswered {
		return fmt.Errorf("%s has %d/%d/%d, expected %d/%d/%d", name,
			r.CorrectCount, r.WrongCount, r.UnansweredCount, correct, wrong, unanswered)
	}
	return nil
}

func (s *scenarioState) thenAccuracy(name, accuracy string) error {
	want, err := strconv.ParseFloat(accuracy, 64)
	if err != nil {
		return err
	}
	r, err := s.result(name)
	if err != nil {
		return err
	}
	if r.Accuracy != want {
		return fmt.Errorf("%s accuracy %v, expected %v", name, r.Accuracy, want)
	}
	return nil
}

func (s *scenarioState) thenTimeTaken(name string, seconds int) error {
	r, err := s.result(name)
	if err != nil {
		return err
	}
	if r.TimeTaken != seconds {
		return fmt.Errorf("%s took %d seconds, expected %d", name, r.TimeTaken, seconds)
	}
	return nil
}

func (s *scenarioState) thenPosition(name string, question, remaining int) error {
	v, err := s.view(name)
	if err != nil {
		return err
	}
	if v.Current != question-1 || v.RemainingSeconds != remaining {
		return fmt.Errorf("%s is on question %d with %d seconds left", name, v.Current+1, v.RemainingSeconds)
	}
	return nil
}

func (s *scenarioState) thenFeedback(name string, option int, verdict string) error {
	fb, ok := s.feedback[name]
	if !ok || !fb.Revealed {
		return fmt.Errorf("%s has no revealed feedback", name)
	}
	for _, o := range fb.Options {
		if o.Index != option {
			continue
		}
		if verdict == "correct" && o.Correct || verdict == "wrong" && o.Wrong {
			return nil
		}
		return fmt.Errorf("option %d is not marked %s: %+v", option, verdict, o)
	}
	return fmt.Errorf("option %d missing from feedback", option)
}

func (s *scenarioState) thenLeaderboard(table *godog.Table) error {
	lb, err := s.service.Leaderboard(context.Background(), s.quiz.ID)
	if err != nil {
		return err
	}
	rows := table.Rows[1:]
	if len(lb.Entries) != len(rows) {
		return fmt.Errorf("leaderboard has %d entries, expected %d", len(lb.Entries), len(rows))
	}
	for i, row := range rows {
		e := lb.Entries[i]
		got := []string{
			strconv.Itoa(e.Position),
			e.DisplayName,
			strconv.FormatFloat(e.Score, 'f', -1, 64),
			strconv.Itoa(e.TimeTaken),
		}
		for j, cell := range row.Cells {
			if got[j] != cell.Value {
				return fmt.Errorf("row %d column %d is %q, expected %q", i+1, j+1, got[j], cell.Value)
			}
		}
	}
	return nil
}
