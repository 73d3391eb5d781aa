package http

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

type WSHandler struct {
	service  *app.RoomService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.RoomService) *WSHandler {
	return &WSHandler{
		service: service,
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

type identityPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type joinPayload struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

type questionPayload struct {
	RoomCode           string   `json:"roomCode"`
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	TimeLimit          int      `json:"timeLimit"`
}

type answerPayload struct {
	RoomCode   string `json:"roomCode"`
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

type roomScopedPayload struct {
	RoomCode string `json:"roomCode"`
	Text     string `json:"text"`
}

// ServeWS upgrades the request and runs the connection's event loop. A
// writer goroutine drains the hub channel so the websocket has a single
// writer; the read loop dispatches inbound events into the room service.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	hub := h.service.Hub()
	events := hub.Register(connID)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for event := range events {
			if err := conn.WriteJSON(event); err != nil {
				log.Debug().Err(err).Str("conn", connID).Msg("ws write error")
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r, connID, inbound)
	}

	h.service.Disconnect(connID)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, connID string, inbound inboundMessage) {
	hub := h.service.Hub()
	fail := func(message string) {
		hub.ToConnection(connID, domain.Event{Type: domain.EventRoomError, Payload: domain.ErrorPayload{Message: message}})
	}

	switch inbound.Type {
	case "declare-identity":
		var payload identityPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail("invalid identity payload")
			return
		}
		if err := h.service.Declare(connID, payload.Name, payload.Email); err != nil {
			fail(err.Error())
		}
	case "join-room":
		var payload joinPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail("invalid join payload")
			return
		}
		if err := h.service.Join(r.Context(), connID, payload.RoomCode, payload.Name, payload.Email); err != nil {
			fail(err.Error())
		}
	case "send-question":
		var payload questionPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail("invalid question payload")
			return
		}
		if err := h.service.SendQuestion(connID, payload.RoomCode, payload.Text, payload.Options, payload.CorrectAnswerIndex, payload.TimeLimit); err != nil {
			fail(err.Error())
		}
	case "submit-answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail("invalid answer payload")
			return
		}
		h.service.SubmitAnswer(connID, payload.RoomCode, payload.QuestionID, payload.Answer)
	case "reveal-answer":
		var payload roomScopedPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail("invalid reveal payload")
			return
		}
		if err := h.service.Reveal(connID, payload.RoomCode); err != nil {
			fail(err.Error())
		}
	case "send-chat":
		var payload roomScopedPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail("invalid chat payload")
			return
		}
		h.service.Chat(connID, payload.RoomCode, payload.Text)
	case "leave-room":
		h.service.Leave(connID)
	default:
		fail("unsupported message type")
	}
}
