package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"quizbook-service/internal/app"
	"quizbook-service/internal/auth"
	"quizbook-service/internal/domain"
	"quizbook-service/internal/parser"
)

type QuizHandler struct {
	service *app.QuizService
	log     *zap.Logger
}

func NewQuizHandler(service *app.QuizService, log *zap.Logger) *QuizHandler {
	return &QuizHandler{service: service, log: log}
}

type publishResponse struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Questions        int    `json:"questions"`
	TimeLimitSeconds int    `json:"timeLimitSeconds"`
}

// quizSummary is the public description of a quiz; it never carries answers.
type quizSummary struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Creator          string    `json:"creator,omitempty"`
	Questions        int       `json:"questions"`
	TimeLimitSeconds int       `json:"timeLimitSeconds"`
	CorrectScore     float64   `json:"correctScore"`
	NegativeScore    float64   `json:"negativeScore"`
	CreatedAt        time.Time `json:"createdAt"`
}

type statusResponse struct {
	Status       string `json:"status"`
	LiveSessions int    `json:"liveSessions"`
}

// Publish accepts quiz text as the raw body or as a multipart "file" field.
// POST /quizzes?title=&minutes=&marks=&negative=&creator=
func (h *QuizHandler) Publish(w http.ResponseWriter, r *http.Request) {
	text, err := readQuizText(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, parser.ErrInputTooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "quiz text too large")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	req := app.PublishRequest{
		Title:   q.Get("title"),
		Creator: q.Get("creator"),
		Text:    text,
	}
	if req.Creator == "" {
		if id, ok := auth.IdentityFromContext(r.Context()); ok {
			req.Creator = id.DisplayName
		}
	}
	if v := q.Get("minutes"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes <= 0 {
			respondError(w, http.StatusBadRequest, "minutes must be a positive integer")
			return
		}
		req.Minutes = minutes
	}
	if req.CorrectScore, err = optionalFloat(q.Get("marks")); err != nil {
		respondError(w, http.StatusBadRequest, "marks must be a number")
		return
	}
	if req.NegativeScore, err = optionalFloat(q.Get("negative")); err != nil {
		respondError(w, http.StatusBadRequest, "negative must be a number")
		return
	}

	quiz, n, err := h.service.Publish(r.Context(), req)
	if errors.Is(err, domain.ErrNothingRecognized) {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		h.log.Error("publish quiz", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not publish quiz")
		return
	}
	respondJSON(w, http.StatusCreated, publishResponse{
		ID:               quiz.ID,
		Title:            quiz.Title,
		Questions:        n,
		TimeLimitSeconds: quiz.TimeLimitSeconds,
	})
}

// multipartSlack covers form framing and small fields around the file part.
const multipartSlack = 64 << 10

func readQuizText(w http.ResponseWriter, r *http.Request) (string, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, parser.MaxInputBytes)
		data, err := io.ReadAll(r.Body)
		return string(data), err
	}

	r.Body = http.MaxBytesReader(w, r.Body, parser.MaxInputBytes+multipartSlack)
	mr, err := r.MultipartReader()
	if err != nil {
		return "", err
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", errors.New("missing file field")
		}
		if err != nil {
			return "", err
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}
		data, err := io.ReadAll(io.LimitReader(part, parser.MaxInputBytes+1))
		_ = part.Close()
		if err != nil {
			return "", err
		}
		if len(data) > parser.MaxInputBytes {
			return "", parser.ErrInputTooLarge
		}
		return string(data), nil
	}
}

func optionalFloat(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Get returns quiz metadata. GET /quizzes/{quizID}
func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.Quiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, quizSummary{
		ID:               quiz.ID,
		Title:            quiz.Title,
		Creator:          quiz.Creator,
		Questions:        len(quiz.Questions),
		TimeLimitSeconds: quiz.TimeLimitSeconds,
		CorrectScore:     quiz.CorrectScore,
		NegativeScore:    quiz.NegativeScore,
		CreatedAt:        quiz.CreatedAt,
	})
}

// Leaderboard ranks stored attempts. GET /quizzes/{quizID}/leaderboard
func (h *QuizHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Leaderboard(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, lb)
}

func (h *QuizHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, statusResponse{Status: "ok", LiveSessions: h.service.LiveSessions()})
}

func (h *QuizHandler) respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrQuizNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	h.log.Error("quiz lookup", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal error")
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorPayload{Message: msg})
}
