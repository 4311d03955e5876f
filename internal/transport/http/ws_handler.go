package http

import (
	"context"
	"encoding/json"
	"net/http"

	"dus-exam-service/internal/app"
	"dus-exam-service/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type WSHandler struct {
	service  *app.ExamService
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWSHandler(service *app.ExamService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With().Str("component", "ws_handler").Logger(),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	QuestionID string `json:"questionId"`
	Option     int    `json:"option"`
}

type navigatePayload struct {
	Delta int `json:"delta"`
}

type jumpPayload struct {
	Index int `json:"index"`
}

type finishPayload struct {
	Confirmed bool `json:"confirmed"`
}

type finishedPayload struct {
	Result domain.Result `json:"result"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Kind    domain.Kind `json:"kind"`
	Message string      `json:"message"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Kind: domain.KindOf(err), Message: err.Error()}}
}

// ServeWS upgrades the request and runs one exam attempt over the connection.
// The session starts on connect; closing the socket abandons an unfinished attempt.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	examID := r.URL.Query().Get("examId")
	name := r.URL.Query().Get("name")
	if examID == "" {
		http.Error(w, "missing examId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	session, err := h.service.StartSession(ctx, examID, name)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	sessionID := session.ID()
	defer h.release(sessionID)

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Str("session_id", sessionID).Msg("ws write error")
				return
			}
		}
	}()

	// Every state change, timer ticks included, arrives here. The finished
	// message is emitted once, when the stored result id first shows up. A
	// failed save, including one after timer expiry, is reported once per failure.
	go func() {
		defer close(updatesDone)
		finishedSent := false
		failureReported := false
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				msgs := []outboundMessage[any]{{Type: "state", Payload: update}}
				if update.SaveFailed && !failureReported {
					msgs = append(msgs, errorMessage(domain.PersistenceError("save result", domain.ErrResultNotSaved)))
				}
				failureReported = update.SaveFailed
				if !finishedSent && update.ResultID != "" {
					if result, ok := session.Result(); ok {
						finishedSent = true
						msgs = append(msgs, outboundMessage[any]{Type: "finished", Payload: finishedPayload{Result: result}})
					}
				}
				for _, msg := range msgs {
					select {
					case send <- msg:
					case <-closeSignals:
						return
					}
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
		if err := h.dispatch(ctx, sessionID, inbound); err != nil {
			select {
			case send <- errorMessage(err):
			case <-updatesDone:
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// dispatch applies one client message. State changes are reported through the subscription.
func (h *WSHandler) dispatch(ctx context.Context, sessionID string, inbound inboundMessage) error {
	switch inbound.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return domain.NewError(domain.KindValidation, "select", err)
		}
		_, err := h.service.SelectOption(ctx, sessionID, payload.QuestionID, payload.Option)
		return err
	case "navigate":
		var payload navigatePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return domain.NewError(domain.KindValidation, "navigate", err)
		}
		_, err := h.service.Navigate(ctx, sessionID, payload.Delta)
		return err
	case "jump":
		var payload jumpPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return domain.NewError(domain.KindValidation, "jump", err)
		}
		_, err := h.service.Jump(ctx, sessionID, payload.Index)
		return err
	case "finish":
		var payload finishPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				return domain.NewError(domain.KindValidation, "finish", err)
			}
		}
		if !payload.Confirmed {
			return domain.ErrFinishNotConfirmed
		}
		_, err := h.service.Finish(ctx, sessionID, false)
		if domain.KindOf(err) == domain.KindPersistence {
			// reported through the subscription
			return nil
		}
		return err
	default:
		return domain.ErrUnsupportedMessage
	}
}

// release retries a pending save once before dropping the session.
func (h *WSHandler) release(sessionID string) {
	ctx := context.Background()
	if state, err := h.service.State(ctx, sessionID); err == nil &&
		state.Phase == domain.PhaseFinished && state.ResultID == "" {
		if _, err := h.service.Finish(ctx, sessionID, false); err != nil {
			h.log.Error().Err(err).Str("session_id", sessionID).Msg("result lost on disconnect")
		}
	}
	h.service.Release(ctx, sessionID)
}
