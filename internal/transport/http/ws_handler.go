package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizbook-service/internal/app"
	"quizbook-service/internal/auth"
	"quizbook-service/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	auth     *auth.AuthService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, authService *auth.AuthService, log *zap.Logger, checkOrigin func(r *http.Request) bool) *WSHandler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		auth:    authService,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type indexPayload struct {
	Index int `json:"index"`
}

type selectPayload struct {
	QuestionID string `json:"questionId"`
	Option     int    `json:"option"`
}

type modePayload struct {
	Mode domain.Mode `json:"mode"`
}

type identifyPayload struct {
	Token string `json:"token"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and drives one quiz session.
// Views are pushed after every change, from this or any other connection of
// the same taker, and on every clock tick.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}
	var identity *domain.Identity
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		identity = &id
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()

	handle, _, err := h.service.Open(ctx, quizID, identity, r.URL.Query().Get("device"))
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer h.service.Release(handle)
	log := h.log.With(zap.String("session", handle.Key()))
	log.Debug("ws session opened")

	updates, cancel := h.service.Subscribe(handle)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case view, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "view", Payload: view}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}
	fail := func(err error) {
		reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(ctx, handle, inbound, reply); err != nil {
			fail(err)
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	log.Debug("ws session closed")
}

var errBadPayload = errors.New("invalid payload")

func (h *WSHandler) dispatch(ctx context.Context, handle *app.Handle, in inboundMessage, reply func(outboundMessage[any])) error {
	var err error
	switch in.Type {
	case "navigate":
		var p indexPayload
		if json.Unmarshal(in.Payload, &p) != nil {
			return errBadPayload
		}
		_, err = h.service.Navigate(ctx, handle, p.Index)
	case "next":
		_, err = h.service.Next(ctx, handle)
	case "prev":
		_, err = h.service.Prev(ctx, handle)
	case "select":
		var p selectPayload
		if json.Unmarshal(in.Payload, &p) != nil {
			return errBadPayload
		}
		fb, _, selErr := h.service.SelectAnswer(ctx, handle, p.QuestionID, p.Option)
		if selErr != nil {
			return selErr
		}
		if fb.Revealed {
			reply(outboundMessage[any]{Type: "feedback", Payload: fb})
		}
	case "clear":
		var p indexPayload
		if json.Unmarshal(in.Payload, &p) != nil {
			return errBadPayload
		}
		_, err = h.service.ClearAnswer(ctx, handle, p.Index)
	case "mark":
		var p indexPayload
		if json.Unmarshal(in.Payload, &p) != nil {
			return errBadPayload
		}
		_, err = h.service.ToggleMark(ctx, handle, p.Index)
	case "mode":
		var p modePayload
		if json.Unmarshal(in.Payload, &p) != nil {
			return errBadPayload
		}
		_, err = h.service.SetMode(ctx, handle, p.Mode)
	case "submit":
		result, _, subErr := h.service.Submit(ctx, handle)
		if subErr != nil && result.QuizID == "" {
			return subErr
		}
		reply(outboundMessage[any]{Type: "result", Payload: result})
		if subErr != nil {
			h.log.Error("submitted attempt not stored", zap.String("session", handle.Key()), zap.Error(subErr))
		}
	case "reattempt":
		_, err = h.service.Reattempt(ctx, handle)
	case "identify":
		var p identifyPayload
		if json.Unmarshal(in.Payload, &p) != nil || h.auth == nil {
			return errBadPayload
		}
		principal, parseErr := h.auth.Parse(p.Token)
		if parseErr != nil {
			return domain.ErrUnauthenticated
		}
		h.service.Identify(handle, principal.Identity)
	default:
		return errors.New("unsupported message type")
	}
	return err
}
