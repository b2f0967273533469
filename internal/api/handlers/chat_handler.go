package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"lpg-service/internal/service"
)

type ChatHandler struct {
	chat   *service.ChatRelay
	logger *zap.Logger
}

func NewChatHandler(chat *service.ChatRelay, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

type MessageRequest struct {
	Message string `json:"message"`
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	key, ok := uuidParam(w, r, "conversation")
	if !ok {
		return
	}

	msgs, err := h.chat.ListMessages(r.Context(), actor(r), key)
	if err != nil {
		writeServiceError(w, h.logger, err, "load messages")
		return
	}

	writeJSON(w, http.StatusOK, msgs)
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	key, ok := uuidParam(w, r, "conversation")
	if !ok {
		return
	}

	var req MessageRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	msg, err := h.chat.SendMessage(r.Context(), actor(r), key, req.Message)
	if err != nil {
		writeServiceError(w, h.logger, err, "send message")
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	key, ok := uuidParam(w, r, "conversation")
	if !ok {
		return
	}

	n, err := h.chat.MarkRead(r.Context(), actor(r), key)
	if err != nil {
		writeServiceError(w, h.logger, err, "mark messages read")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"marked": n})
}

func (h *ChatHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.chat.ListConversations(r.Context(), actor(r))
	if err != nil {
		writeServiceError(w, h.logger, err, "load conversations")
		return
	}

	writeJSON(w, http.StatusOK, convs)
}

func (h *ChatHandler) Edit(w http.ResponseWriter, r *http.Request) {
	seq, ok := seqParam(w, r)
	if !ok {
		return
	}

	var req MessageRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	msg, err := h.chat.EditMessage(r.Context(), actor(r), seq, req.Message)
	if err != nil {
		writeServiceError(w, h.logger, err, "edit message")
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	seq, ok := seqParam(w, r)
	if !ok {
		return
	}

	if err := h.chat.DeleteMessage(r.Context(), actor(r), seq); err != nil {
		writeServiceError(w, h.logger, err, "delete message")
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

func (h *ChatHandler) Revisions(w http.ResponseWriter, r *http.Request) {
	seq, ok := seqParam(w, r)
	if !ok {
		return
	}

	revs, err := h.chat.Revisions(r.Context(), actor(r), seq)
	if err != nil {
		writeServiceError(w, h.logger, err, "load message history")
		return
	}

	writeJSON(w, http.StatusOK, revs)
}
