package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-session-engine/internal/app"
	"quiz-session-engine/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// startPayload configures a session. A nil TimerEnabled enables the countdown
// for quizzes and disables it for placement assessments.
type startPayload struct {
	Topic              string            `json:"topic"`
	QuestionCount      int               `json:"questionCount"`
	PerQuestionSeconds *int              `json:"perQuestionSeconds"`
	TimerEnabled       *bool             `json:"timerEnabled"`
	Difficulty         domain.Difficulty `json:"difficulty"`
	Mode               domain.Mode       `json:"mode"`
}

// timerRequested reports whether the countdown should run. An explicit
// TimerEnabled wins, then an explicit duration, then the mode default.
func (p startPayload) timerRequested() bool {
	if p.TimerEnabled != nil {
		return *p.TimerEnabled
	}
	if p.PerQuestionSeconds != nil {
		return true
	}
	return p.Mode != domain.ModePlacement
}

type selectPayload struct {
	Choice *int `json:"choice"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServeWS upgrades the request and binds the connection to a fresh session.
// The session is closed when the connection goes away.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// the request context ends with the handler, not with the session
	ctx := context.WithoutCancel(r.Context())

	session, err := h.service.Open(ctx)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Code: "unavailable", Message: err.Error()}})
		return
	}
	defer h.service.Leave(ctx, session.ID())
	log := h.log.With(zap.String("session_id", session.ID()))

	updates, cancel := session.Subscribe()
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
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "snapshot", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(session, inbound); err != nil {
			log.Debug("command refused", zap.String("type", inbound.Type), zap.Error(err))
			select {
			case send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: errorCode(err), Message: err.Error()}}:
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

var errBadPayload = errors.New("invalid payload")
var errUnsupported = errors.New("unsupported message type")

func (h *WSHandler) dispatch(session *app.Session, msg inboundMessage) error {
	switch msg.Type {
	case "start":
		var p startPayload
		if err := decode(msg.Payload, &p); err != nil {
			return err
		}
		timer := p.timerRequested()
		if !timer {
			p.PerQuestionSeconds = nil
		}
		cfg := h.service.ApplyDefaults(domain.SessionConfig{
			QuestionCount:      p.QuestionCount,
			PerQuestionSeconds: p.PerQuestionSeconds,
			Topic:              p.Topic,
			Difficulty:         p.Difficulty,
			Mode:               p.Mode,
		}, timer)
		return session.Start(cfg)
	case "select":
		var p selectPayload
		if err := decode(msg.Payload, &p); err != nil {
			return err
		}
		if p.Choice == nil {
			return errBadPayload
		}
		return session.Select(*p.Choice)
	case "advance":
		return session.Advance()
	case "retreat":
		return session.Retreat()
	case "submit":
		return session.Submit()
	case "retry":
		return session.Retry()
	case "abandon":
		return session.Abandon()
	case "acceptEstimate":
		return session.AcceptEstimate()
	case "restart":
		return session.Restart()
	default:
		return errUnsupported
	}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errBadPayload
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errBadPayload
	}
	return nil
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrRequestPending):
		return "request_pending"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrNoSelection):
		return "no_selection"
	case errors.Is(err, domain.ErrIncomplete):
		return "incomplete"
	case errors.Is(err, domain.ErrChoiceOutOfRange):
		return "choice_out_of_range"
	case errors.Is(err, domain.ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, errBadPayload), errors.Is(err, errUnsupported):
		return "bad_request"
	default:
		return "internal"
	}
}
