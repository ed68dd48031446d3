package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/dkezele/ripple/internal/docstore"
	"github.com/dkezele/ripple/internal/domain"
	"github.com/dkezele/ripple/internal/service"
	"github.com/dkezele/ripple/internal/transport/http/middleware"
)

// MessageHandler serves the message and thread operations of one resolved
// context. Routes carry the context in the path ("c/{id}" or "dm/{id}"),
// mirroring the client's navigation scheme, and a fresh message service is
// bound per request.
type MessageHandler struct {
	store    docstore.Store
	channels *service.ChannelService
	dms      *service.DMService
}

func NewMessageHandler(store docstore.Store, channels *service.ChannelService, dms *service.DMService) *MessageHandler {
	return &MessageHandler{store: store, channels: channels, dms: dms}
}

// resolve maps the path segments to a context and enforces access: DM
// participation always, channel membership only for writes.
func (h *MessageHandler) resolve(w http.ResponseWriter, r *http.Request, write bool) (domain.Context, bool) {
	parent := service.ResolveContext(r.PathValue("kind") + "/" + r.PathValue("id"))
	if parent.Kind == domain.ContextNewMessage {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "No such context")
		return parent, false
	}

	userID := middleware.GetUserID(r.Context())
	switch parent.Kind {
	case domain.ContextChannel:
		if !write {
			return parent, true
		}
		err := h.channels.RequireMember(r.Context(), parent.ID, userID)
		switch {
		case err == nil:
			return parent, true
		case errors.Is(err, service.ErrChannelNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Channel not found")
		case errors.Is(err, service.ErrNotChannelMember):
			writeError(w, http.StatusForbidden, "NOT_A_MEMBER", "Join the channel first")
		default:
			log.Printf("ERROR checking membership: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return parent, false

	case domain.ContextConversation:
		conv, err := h.dms.Get(r.Context(), parent.ID)
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Conversation not found")
			return parent, false
		}
		if err != nil {
			log.Printf("ERROR loading conversation: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
			return parent, false
		}
		if !conv.HasParticipant(userID) {
			writeError(w, http.StatusForbidden, "NOT_A_PARTICIPANT", "Not your conversation")
			return parent, false
		}
		return parent, true
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "No such context")
	return parent, false
}

func (h *MessageHandler) messages(parent domain.Context) *service.MessageService {
	return service.NewMessageService(h.store, parent)
}

func (h *MessageHandler) thread(r *http.Request, parent domain.Context) *service.ThreadService {
	return service.NewThreadService(h.store, parent, r.PathValue("messageID"))
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	parent, ok := h.resolve(w, r, false)
	if !ok {
		return
	}
	msgs, err := h.messages(parent).List(r.Context())
	if err != nil {
		log.Printf("ERROR listing messages: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type sendMessageInput struct {
	Text string `json:"text"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	parent, ok := h.resolve(w, r, true)
	if !ok {
		return
	}

	var input sendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	userID := middleware.GetUserID(r.Context())
	msg, err := h.messages(parent).Send(r.Context(), input.Text, userID)
	if err != nil {
		if errors.Is(err, service.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, "EMPTY_MESSAGE", "Message text is empty")
		} else {
			log.Printf("ERROR sending message: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	parent, ok := h.resolve(w, r, true)
	if !ok {
		return
	}

	var input sendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	err := h.messages(parent).Edit(r.Context(), r.PathValue("messageID"), input.Text)
	if err != nil {
		h.writeMessageError(w, "editing message", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	parent, ok := h.resolve(w, r, true)
	if !ok {
		return
	}
	if err := h.messages(parent).Delete(r.Context(), r.PathValue("messageID")); err != nil {
		log.Printf("ERROR deleting message: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type reactionInput struct {
	Kind string `json:"kind"`
}

func (h *MessageHandler) ToggleReaction(w http.ResponseWriter, r *http.Request) {
	parent, ok := h.resolve(w, r, true)
	if !ok {
		return
	}

	var input reactionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	userID := middleware.GetUserID(r.Context())
	err := h.messages(parent).ToggleReaction(r.Context(), r.PathValue("messageID"), input.Kind, userID)
	if err != nil {
		h.writeMessageError(w, "toggling reaction", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *MessageHandler) ListReplies(w http.ResponseWriter, r *http.Request) {
	parent, ok := h.resolve(w, r, false)
	if !ok {
		return
	}
	replies, err := h.thread(r, parent).ListReplies(r.Context())
	if err != nil {
		log.Printf("ERROR listing thread: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": replies})
}

func (h *MessageHandler) SendReply(w http.ResponseWriter, r *http.Request) {
	parent, ok := h.resolve(w, r, true)
	if !ok {
		return
	}

	var input sendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	userID := middleware.GetUserID(r.Context())
	reply, err := h.thread(r, parent).SendReply(r.Context(), input.Text, userID)
	if err != nil {
		if errors.Is(err, service.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, "EMPTY_MESSAGE", "Message text is empty")
		} else {
			log.Printf("ERROR sending reply: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

func (h *MessageHandler) EditReply(w http.ResponseWriter, r *http.Request) {
	parent, ok := h.resolve(w, r, true)
	if !ok {
		return
	}

	var input sendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	err := h.thread(r, parent).EditReply(r.Context(), r.PathValue("replyID"), input.Text)
	if err != nil {
		h.writeMessageError(w, "editing reply", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *MessageHandler) DeleteReply(w http.ResponseWriter, r *http.Request) {
	parent, ok := h.resolve(w, r, true)
	if !ok {
		return
	}
	if err := h.thread(r, parent).DeleteReply(r.Context(), r.PathValue("replyID")); err != nil {
		log.Printf("ERROR deleting reply: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *MessageHandler) ToggleReplyReaction(w http.ResponseWriter, r *http.Request) {
	parent, ok := h.resolve(w, r, true)
	if !ok {
		return
	}

	var input reactionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	userID := middleware.GetUserID(r.Context())
	err := h.thread(r, parent).ToggleReaction(r.Context(), r.PathValue("replyID"), input.Kind, userID)
	if err != nil {
		h.writeMessageError(w, "toggling reply reaction", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *MessageHandler) writeMessageError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "EMPTY_MESSAGE", "Message text is empty")
	case errors.Is(err, service.ErrInvalidReaction):
		writeError(w, http.StatusBadRequest, "INVALID_REACTION", "Reaction kind is required")
	case errors.Is(err, service.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Message not found")
	default:
		log.Printf("ERROR %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}
