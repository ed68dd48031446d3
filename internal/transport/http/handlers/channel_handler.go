package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/dkezele/ripple/internal/service"
	"github.com/dkezele/ripple/internal/transport/http/middleware"
)

type ChannelHandler struct {
	channelService *service.ChannelService
}

func NewChannelHandler(channelService *service.ChannelService) *ChannelHandler {
	return &ChannelHandler{channelService: channelService}
}

func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateChannelInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	ch, err := h.channelService.Create(r.Context(), userID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChannelNameTaken):
			writeError(w, http.StatusConflict, "NAME_TAKEN", "A channel with that name already exists")
		case errors.Is(err, service.ErrInvalidChannel):
			writeError(w, http.StatusBadRequest, "INVALID_CHANNEL", err.Error())
		default:
			log.Printf("ERROR creating channel: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, ch)
}

func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channelService.List(r.Context())
	if err != nil {
		log.Printf("ERROR listing channels: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

func (h *ChannelHandler) Get(w http.ResponseWriter, r *http.Request) {
	ch, err := h.channelService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrChannelNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Channel not found")
		} else {
			log.Printf("ERROR loading channel: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (h *ChannelHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := h.channelService.Join(r.Context(), r.PathValue("id"), userID); err != nil {
		if errors.Is(err, service.ErrChannelNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Channel not found")
		} else {
			log.Printf("ERROR joining channel: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ChannelHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := h.channelService.Leave(r.Context(), r.PathValue("id"), userID); err != nil {
		if errors.Is(err, service.ErrChannelNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Channel not found")
		} else {
			log.Printf("ERROR leaving channel: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ChannelHandler) UpdateDescription(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if err := h.channelService.UpdateDescription(r.Context(), r.PathValue("id"), input.Description); err != nil {
		if errors.Is(err, service.ErrChannelNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Channel not found")
		} else {
			log.Printf("ERROR updating channel: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
