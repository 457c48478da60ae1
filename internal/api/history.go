package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/areachat/internal/middleware"
	"github.com/lalith-99/areachat/internal/models"
	"github.com/lalith-99/areachat/internal/repository"
)

// HistoryHandler serves the chat backlog endpoints that seed client
// timelines. Both return chronological ascending JSON arrays.
type HistoryHandler struct {
	repo   repository.ChatRepository
	logger *zap.Logger
}

func NewHistoryHandler(repo repository.ChatRepository, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{repo: repo, logger: logger}
}

// Global handles GET /api/chat/grupal.
func (h *HistoryHandler) Global(c *gin.Context) {
	sctx := middleware.GetSession(c)

	msgs, err := h.repo.GroupHistory(c.Request.Context(), sctx.CompanyScope)
	if err != nil {
		h.logger.Error("failed to list group history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// Private handles GET /api/chat/privado/:otherId. The pair is always
// (caller, otherId); a caller can only ever read conversations it is a
// side of.
func (h *HistoryHandler) Private(c *gin.Context) {
	sctx := middleware.GetSession(c)

	otherID := models.ID(c.Param("otherId"))
	if otherID.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing counterpart id"})
		return
	}

	msgs, err := h.repo.PrivateHistory(c.Request.Context(), sctx.CompanyScope, sctx.ParticipantID, otherID)
	if err != nil {
		h.logger.Error("failed to list private history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, msgs)
}
