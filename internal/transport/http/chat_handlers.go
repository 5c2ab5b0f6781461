package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/potchat/internal/proto"
	"github.com/vovakirdan/potchat/internal/store"
)

const defaultHistoryLimit = 200

// ChatHandlers provides the REST endpoints the chat client depends on.
type ChatHandlers struct {
	store store.MessageStore
	limit int
	log   *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance. st may be nil, in which case history is always empty.
func NewChatHandlers(st store.MessageStore, historyLimit int, logger *zerolog.Logger) *ChatHandlers {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &ChatHandlers{
		store: st,
		limit: historyLimit,
		log:   logger,
	}
}

// CurrentUser returns the profile carried by the caller's token.
// GET /api/users/me
func (h *ChatHandlers) CurrentUser(c *gin.Context) {
	nickname := c.GetString(ContextKeyNickname)
	if nickname == "" {
		h.log.Error().Msg("nickname not found in context")
		c.JSON(http.StatusUnauthorized, proto.ErrorResponse{Error: "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, proto.UserProfile{Nickname: nickname, Email: c.GetString(ContextKeyEmail)})
}

// History returns the persisted chat of a pot in chronological order.
// GET /api/pots/:potId/chat/messages?limit=N
func (h *ChatHandlers) History(c *gin.Context) {
	potID := strings.TrimSpace(c.Param("potId"))
	if potID == "" {
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "pot id is required"})
		return
	}

	limit := h.limit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(n, h.limit)
	}

	records := []proto.HistoryRecord{}
	if h.store != nil {
		msgs, err := h.store.ListMessages(c.Request.Context(), potID, limit, nil)
		if err != nil {
			h.log.Error().Err(err).Str("pot_id", potID).Msg("failed to list messages")
			c.JSON(http.StatusInternalServerError, proto.ErrorResponse{Error: "internal server error"})
			return
		}
		records = historyRecords(msgs)
	}

	h.log.Debug().Str("pot_id", potID).Int("count", len(records)).Msg("history served")
	c.JSON(http.StatusOK, records)
}
