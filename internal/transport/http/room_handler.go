package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

// RoomHandler exposes the durable room registry over HTTP: rooms are
// created here once, then joined live over the websocket.
type RoomHandler struct {
	registry app.RoomRegistry
}

func NewRoomHandler(registry app.RoomRegistry) *RoomHandler {
	return &RoomHandler{registry: registry}
}

type createRoomRequest struct {
	Name       string `json:"name"`
	OwnerName  string `json:"ownerName"`
	OwnerEmail string `json:"ownerEmail"`
}

func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	if req.Name == "" || req.OwnerEmail == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "room name and owner email are required"})
		return
	}

	record, err := h.registry.CreateRoom(r.Context(), req.Name, domain.Identity{Name: req.OwnerName, Email: req.OwnerEmail})
	if err != nil {
		log.Error().Err(err).Msg("create room failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to create room"})
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	record, err := h.registry.FindRoom(r.Context(), code)
	if errors.Is(err, domain.ErrRoomNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "room not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("code", code).Msg("find room failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to load room"})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
