package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/dkezele/ripple/internal/service"
	"github.com/dkezele/ripple/internal/transport/http/middleware"
)

type DMHandler struct {
	dmService *service.DMService
}

func NewDMHandler(dmService *service.DMService) *DMHandler {
	return &DMHandler{dmService: dmService}
}

// Open finds or creates the caller's conversation with another user.
func (h *DMHandler) Open(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	conv, err := h.dmService.GetOrCreateConversation(r.Context(), userID, input.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCannotDMSelf):
			writeError(w, http.StatusBadRequest, "CANNOT_DM_SELF", "You cannot message yourself")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		default:
			log.Printf("ERROR opening conversation: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *DMHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convs, err := h.dmService.ListConversations(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR listing conversations: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}
