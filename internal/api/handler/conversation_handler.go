package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/jobmatch-be/internal/api/dto"
	"github.com/cuongbtq/jobmatch-be/internal/auth"
	"github.com/cuongbtq/jobmatch-be/internal/messaging"
	"github.com/cuongbtq/jobmatch-be/internal/metrics"
	"github.com/cuongbtq/jobmatch-be/internal/pagination"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// loadConversation fetches :conversation_id and checks the caller takes part
// in it. It writes the error response itself and returns false on failure.
func (h *Handler) loadConversation(c *gin.Context) (*messaging.Conversation, string, bool) {
	claims, _ := auth.ClaimsFromContext(c.Request.Context())
	conversationID := c.Param("conversation_id")
	if _, err := uuid.Parse(conversationID); err != nil {
		h.respondError(c, http.StatusNotFound, "errors.not_found")
		return nil, "", false
	}

	conv, err := h.messages.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		if errors.Is(err, messaging.ErrConversationNotFound) {
			h.respondError(c, http.StatusNotFound, "errors.not_found")
			return nil, "", false
		}
		h.logger.Error("Failed to get conversation",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
		h.respondError(c, http.StatusInternalServerError, "errors.generic")
		return nil, "", false
	}

	if !conv.HasParticipant(claims.Subject) {
		h.respondError(c, http.StatusForbidden, "errors.forbidden")
		return nil, "", false
	}

	return conv, claims.Subject, true
}

// ListConversations handles GET /api/conversations
func (h *Handler) ListConversations(c *gin.Context) {
	claims, _ := auth.ClaimsFromContext(c.Request.Context())

	convs, err := h.messages.ListConversations(c.Request.Context(), claims.Subject)
	if err != nil {
		h.logger.Error("Failed to list conversations", slog.String("error", err.Error()))
		h.respondError(c, http.StatusInternalServerError, "errors.generic")
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// CreateConversation handles POST /api/conversations
// The caller is one side; the body names the other.
func (h *Handler) CreateConversation(c *gin.Context) {
	claims, _ := auth.ClaimsFromContext(c.Request.Context())
	role, _ := auth.RoleFromContext(c)

	var req dto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "errors.invalid_input")
		return
	}

	workerID, factoryID := req.WorkerID, req.FactoryID
	switch role {
	case auth.RoleWorker:
		workerID = claims.Subject
	case auth.RoleFactory:
		factoryID = claims.Subject
	default:
		h.respondError(c, http.StatusForbidden, "errors.forbidden")
		return
	}
	if workerID == "" || factoryID == "" || workerID == factoryID {
		h.respondError(c, http.StatusBadRequest, "errors.invalid_input")
		return
	}

	conv, created, err := h.messages.GetOrCreateConversation(c.Request.Context(), workerID, factoryID, req.JobID)
	if err != nil {
		h.logger.Error("Failed to create conversation", slog.String("error", err.Error()))
		h.respondError(c, http.StatusInternalServerError, "errors.generic")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.logger.Info("Conversation created",
			slog.String("conversation_id", conv.ID),
			slog.String("worker_id", workerID),
			slog.String("factory_id", factoryID),
		)
	}
	c.JSON(status, conv)
}

// ListMessages handles GET /api/conversations/:conversation_id/messages
// Pages backwards from ?cursor=, newest page first.
func (h *Handler) ListMessages(c *gin.Context) {
	conv, _, ok := h.loadConversation(c)
	if !ok {
		return
	}

	var req dto.ListMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "errors.invalid_input")
		return
	}

	cursor, err := pagination.Decode(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		h.respondError(c, http.StatusBadRequest, "errors.invalid_input")
		return
	}

	page, err := h.messages.ListMessages(c.Request.Context(), conv.ID, cursor, messaging.Desc, messaging.PageSize)
	if err != nil {
		h.logger.Error("Failed to list messages", slog.String("error", err.Error()))
		h.respondError(c, http.StatusInternalServerError, "errors.generic")
		return
	}

	resp := dto.ListMessagesResponse{
		Messages: page.Messages,
		HasMore:  page.HasMore,
	}
	if resp.Messages == nil {
		resp.Messages = []messaging.Message{}
	}
	if page.HasMore && len(page.Messages) > 0 {
		resp.NextCursor = messaging.CursorOf(page.Messages[0]).Encode()
	}

	c.JSON(http.StatusOK, resp)
}

// SendMessage handles POST /api/conversations/:conversation_id/messages
func (h *Handler) SendMessage(c *gin.Context) {
	conv, senderID, ok := h.loadConversation(c)
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "errors.message_empty")
		return
	}

	msg, err := h.messages.CreateMessage(c.Request.Context(), conv.ID, senderID, req.Body)
	if err != nil {
		if errors.Is(err, messaging.ErrEmptyBody) {
			h.respondError(c, http.StatusBadRequest, "errors.message_empty")
			return
		}
		h.logger.Error("Failed to create message", slog.String("error", err.Error()))
		h.respondError(c, http.StatusInternalServerError, "errors.generic")
		return
	}

	// The message is stored; live delivery is best effort and viewers
	// catch up from history.
	if h.publisher != nil {
		if err := messaging.PublishCreated(c.Request.Context(), h.publisher, *msg, conv.Counterpart(senderID)); err != nil {
			h.logger.Error("Failed to publish message event",
				slog.String("message_id", msg.ID),
				slog.String("error", err.Error()),
			)
		}
	} else if h.hub != nil {
		h.hub.Publish(*msg)
	}

	c.JSON(http.StatusCreated, msg)
}

// MarkRead handles POST /api/conversations/:conversation_id/read
func (h *Handler) MarkRead(c *gin.Context) {
	conv, readerID, ok := h.loadConversation(c)
	if !ok {
		return
	}

	n, err := h.messages.MarkRead(c.Request.Context(), conv.ID, readerID)
	if err != nil {
		h.logger.Error("Failed to mark messages read", slog.String("error", err.Error()))
		h.respondError(c, http.StatusInternalServerError, "errors.generic")
		return
	}

	c.JSON(http.StatusOK, dto.MarkReadResponse{Updated: n})
}

// StreamMessages handles GET /api/conversations/:conversation_id/stream
// Server-sent events: one "snapshot" with the latest page, then a
// "message" event per new message and a "heartbeat" every interval.
// Messages replayed after the reader fell behind may arrive out of
// created_at order, each still exactly once.
func (h *Handler) StreamMessages(c *gin.Context) {
	conv, userID, ok := h.loadConversation(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	view := messaging.NewView(conv.ID, h.messages, messaging.PageSize)
	defer view.Close()

	// subscribe first so nothing sent during the initial load is lost
	live := view.Attach(h.hub)

	if err := view.LoadInitial(ctx); err != nil {
		h.logger.Error("Failed to load conversation", slog.String("error", err.Error()))
		h.respondError(c, http.StatusInternalServerError, "errors.generic")
		return
	}

	metrics.LiveStreams.Inc()
	defer metrics.LiveStreams.Dec()

	h.logger.Debug("Stream opened",
		slog.String("conversation_id", conv.ID),
		slog.String("user_id", userID),
	)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	snapshot := view.Messages()
	inSnapshot := make(map[string]struct{}, len(snapshot))
	for _, m := range snapshot {
		inSnapshot[m.ID] = struct{}{}
	}

	c.SSEvent("snapshot", gin.H{"messages": snapshot, "has_more": view.HasMore()})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("Stream closed", slog.String("conversation_id", conv.ID))
			return
		case m, ok := <-live:
			if !ok {
				return
			}
			if _, dup := inSnapshot[m.ID]; dup {
				continue
			}
			c.SSEvent("message", m)
			c.Writer.Flush()
		case <-view.Lagged():
			recovered, err := view.Recover(ctx)
			for _, m := range recovered {
				if _, dup := inSnapshot[m.ID]; dup {
					continue
				}
				c.SSEvent("message", m)
			}
			c.Writer.Flush()
			if err != nil {
				// the client reconnects and gets a fresh snapshot
				h.logger.Error("Failed to recover dropped messages",
					slog.String("conversation_id", conv.ID),
					slog.String("error", err.Error()),
				)
				return
			}
		case t := <-ticker.C:
			c.SSEvent("heartbeat", t.Unix())
			c.Writer.Flush()
		}
	}
}
