package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/dkezele/ripple/internal/domain"
	"github.com/dkezele/ripple/internal/service"
	"github.com/dkezele/ripple/internal/transport/http/middleware"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// List returns the user directory.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		log.Printf("ERROR listing users: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// Heartbeat refreshes the caller's last-active timestamp.
func (h *UserHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := h.userService.Touch(r.Context(), userID); err != nil {
		log.Printf("ERROR heartbeat for %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type updateProfileInput struct {
	DisplayName *string        `json:"display_name"`
	Avatar      *domain.Avatar `json:"avatar"`
}

// UpdateProfile changes the caller's display name and/or avatar.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input updateProfileInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if input.DisplayName != nil {
		if err := h.userService.SetDisplayName(r.Context(), userID, *input.DisplayName); err != nil {
			if errors.Is(err, service.ErrInvalidDisplayName) {
				writeError(w, http.StatusBadRequest, "INVALID_DISPLAY_NAME", err.Error())
			} else {
				log.Printf("ERROR updating display name: %v", err)
				writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
			}
			return
		}
	}
	if input.Avatar != nil {
		if err := h.userService.SetAvatar(r.Context(), userID, *input.Avatar); err != nil {
			if errors.Is(err, service.ErrUnknownAvatar) {
				writeError(w, http.StatusBadRequest, "UNKNOWN_AVATAR", "Avatar is not part of the catalog")
			} else {
				log.Printf("ERROR updating avatar: %v", err)
				writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
			}
			return
		}
	}

	user, err := h.userService.Get(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR loading user: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
