package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisamaya/therapy-bro/internal/api"
	"github.com/abhisamaya/therapy-bro/internal/auth"
	"github.com/abhisamaya/therapy-bro/internal/llm"
	"github.com/abhisamaya/therapy-bro/internal/logger"
	"github.com/abhisamaya/therapy-bro/internal/wallet"
)

type Handler struct {
	service  Service
	streamer llm.Streamer
}

func NewHandler(service Service, streamer llm.Streamer) *Handler {
	return &Handler{service: service, streamer: streamer}
}

// StartSession godoc
// @Summary Start a chat session
// @Description Creates a session in the given category. A user's first session comes with a free timed window; later sessions start without time and must be extended.
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body StartSessionRequest true "Session category"
// @Success 201 {object} StartSessionResponse
// @Failure 400 {object} api.ErrorResponse
// @Security BearerAuth
// @Router /api/sessions [post]
func (h *Handler) StartSession(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
		return
	}

	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		return
	}

	resp, err := h.service.Create(c.Request.Context(), userID, req.Category, SystemPromptFor(req.Category))
	if err != nil {
		logger.WithError(err).Error("failed to create session")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to create session"})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ExtendSession godoc
// @Summary Buy more session time
// @Description Charges the wallet for the requested duration and pushes the session end time out. Fails without side effects when the balance is too low.
// @Tags sessions
// @Accept json
// @Produce json
// @Param sessionID path string true "Session ID"
// @Param request body ExtendSessionRequest true "Duration in seconds (whole minutes)"
// @Success 200 {object} ExtendSessionResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 402 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Security BearerAuth
// @Router /api/sessions/{sessionID}/extend [post]
func (h *Handler) ExtendSession(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
		return
	}

	var req ExtendSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		return
	}
	if errs := api.ValidateStruct(req); len(errs) > 0 {
		api.RespondWithValidationErrors(c, errs)
		return
	}

	resp, err := h.service.Extend(c.Request.Context(), c.Param("sessionID"), userID, req.DurationSeconds, req.RequestID)
	if err != nil {
		h.respondExtendError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) respondExtendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidDuration):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrSessionNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "session not found"})
	case errors.Is(err, ErrNotToday):
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, wallet.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, api.ErrorResponse{Error: "insufficient wallet balance"})
	default:
		logger.WithError(err).Error("failed to extend session")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to extend session"})
	}
}

// ListConversations godoc
// @Summary List the user's conversations
// @Produce json
// @Success 200 {array} ConversationItem
// @Security BearerAuth
// @Router /api/chats [get]
func (h *Handler) ListConversations(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
		return
	}

	items, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		logger.WithError(err).Error("failed to list conversations")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to list conversations"})
		return
	}

	c.JSON(http.StatusOK, items)
}

// GetHistory godoc
// @Summary Fetch a session with its full message history
// @Produce json
// @Param sessionID path string true "Session ID"
// @Success 200 {object} HistoryResponse
// @Failure 404 {object} api.ErrorResponse
// @Security BearerAuth
// @Router /api/sessions/{sessionID} [get]
func (h *Handler) GetHistory(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
		return
	}

	resp, err := h.service.History(c.Request.Context(), c.Param("sessionID"), userID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "session not found"})
			return
		}
		logger.WithError(err).Error("failed to load history")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load history"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateNotes godoc
// @Summary Attach or replace the user's notes on a session
// @Accept json
// @Produce json
// @Param sessionID path string true "Session ID"
// @Param request body NotesRequest true "Notes text"
// @Success 200 {object} api.MessageResponse
// @Failure 404 {object} api.ErrorResponse
// @Security BearerAuth
// @Router /api/sessions/{sessionID}/notes [put]
func (h *Handler) UpdateNotes(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
		return
	}

	var req NotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.service.UpdateNotes(c.Request.Context(), c.Param("sessionID"), userID, req.Notes); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "session not found"})
			return
		}
		logger.WithError(err).Error("failed to update notes")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to update notes"})
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "notes updated"})
}

// DeleteSession godoc
// @Summary Delete a session and its messages
// @Produce json
// @Param sessionID path string true "Session ID"
// @Success 200 {object} api.MessageResponse
// @Failure 404 {object} api.ErrorResponse
// @Security BearerAuth
// @Router /api/sessions/{sessionID} [delete]
func (h *Handler) DeleteSession(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("sessionID"), userID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "session not found"})
			return
		}
		logger.WithError(err).Error("failed to delete session")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to delete session"})
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "session deleted"})
}

type streamEvent struct {
	Type    string `json:"type"` // delta | done | error
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SendMessage godoc
// @Summary Send a message and stream the assistant reply
// @Description The reply is streamed as newline-delimited JSON events. Sending to a session whose timer has run out is rejected and closes the session out.
// @Tags sessions
// @Accept json
// @Produce application/x-ndjson
// @Param sessionID path string true "Session ID"
// @Param request body SendMessageRequest true "Message content"
// @Success 200 {string} string "NDJSON stream of delta/done events"
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Security BearerAuth
// @Router /api/sessions/{sessionID}/messages [post]
func (h *Handler) SendMessage(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		return
	}

	sessionID := c.Param("sessionID")
	history, err := h.service.AcceptUserMessage(c.Request.Context(), sessionID, userID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "session not found"})
		case errors.Is(err, ErrSessionExpired):
			c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "session has ended, extend it to continue"})
		default:
			logger.WithError(err).Error("failed to accept message")
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to send message"})
		}
		return
	}

	chat := make([]llm.ChatMessage, 0, len(history))
	for _, m := range history {
		chat = append(chat, llm.ChatMessage{Role: m.Role, Content: m.Content})
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	enc := json.NewEncoder(c.Writer)
	flusher, _ := c.Writer.(http.Flusher)

	var reply []byte
	streamErr := h.streamer.StreamChat(c.Request.Context(), chat, func(token string) error {
		reply = append(reply, token...)
		if err := enc.Encode(streamEvent{Type: "delta", Content: token}); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if streamErr != nil {
		logger.WithError(streamErr).Error("llm stream failed", "session_id", sessionID)
		_ = enc.Encode(streamEvent{Type: "error", Error: "stream interrupted"})
		return
	}

	// persist the full reply only after the stream completed
	if err := h.service.AppendAssistantMessage(c.Request.Context(), sessionID, string(reply)); err != nil {
		logger.WithError(err).Error("failed to persist assistant reply", "session_id", sessionID)
	}

	_ = enc.Encode(streamEvent{Type: "done"})
	if flusher != nil {
		flusher.Flush()
	}
}
