package server

import (
	"io"
	"net/http"
	"strings"

	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// HandleWebhook is the per-channel ingress. Providers retry aggressively on
// non-2xx, so every outcome short of an unreadable body acknowledges with 200;
// failures are visible through logs and metrics only.
func (s *Server) HandleWebhook(c *gin.Context) {
	channelName := assistantdomain.Channel(strings.TrimSpace(c.Param("channel")))

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "unreadable"})
		return
	}

	accountHint := strings.TrimSpace(c.Query("account"))
	if err := s.pipeline.Handle(c.Request.Context(), channelName, body, accountHint); err != nil {
		s.log.Warn("webhook processing failed",
			zap.String("channel", string(channelName)),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
