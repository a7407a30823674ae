package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/collabcode/hub-service/internal/domain"
	"github.com/collabcode/hub-service/internal/hub"
	"github.com/collabcode/hub-service/internal/postgres"

	"github.com/go-chi/chi/v5"
)

const defaultMaxEditors = 10

// Handler serves the room directory. Live session state (participants,
// presence) is read from the in-memory registry, everything else from
// Postgres.
type Handler struct {
	rooms    *postgres.RoomRepository
	registry *hub.Registry
}

func NewHandler(rooms *postgres.RoomRepository, registry *hub.Registry) *Handler {
	return &Handler{rooms: rooms, registry: registry}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// POST /rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	if req.MaxEditors <= 0 || req.MaxEditors > 50 {
		req.MaxEditors = defaultMaxEditors
	}

	room := &domain.Room{Name: req.Name, MaxEditors: req.MaxEditors}
	if err := h.rooms.Create(r.Context(), room); err != nil {
		slog.Error("handler.CreateRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, roomItem(room))
}

// GET /rooms?limit=&cursor=
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	rooms, next, err := h.rooms.List(r.Context(), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
			return
		}
		slog.Error("handler.ListRooms:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := RoomsListResponse{Items: make([]RoomItem, 0, len(rooms)), NextCursor: next}
	for i := range rooms {
		resp.Items = append(resp.Items, roomItem(&rooms[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /rooms/{id}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.rooms.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		slog.Error("handler.GetRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, roomItem(room))
}

// DELETE /rooms/{id}
func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := h.rooms.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		slog.Error("handler.DeleteRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /rooms/{id}/participants — живой снапшот из registry, не из БД
func (h *Handler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	members, lastSeq := h.registry.Snapshot(roomID)
	if members == nil {
		members = []domain.MemberSnapshot{}
	}

	writeJSON(w, http.StatusOK, ParticipantsResponse{
		RoomID:       roomID,
		Items:        members,
		LastSequence: lastSeq,
	})
}

func roomItem(r *domain.Room) RoomItem {
	return RoomItem{
		ID:         r.ID,
		Name:       r.Name,
		MaxEditors: r.MaxEditors,
		CreatedAt:  r.CreatedAt,
	}
}
