package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gitlab.com/servio/api/station-feedback-service/internal/model"
	"gitlab.com/servio/api/station-feedback-service/internal/observer"
	"gitlab.com/servio/api/station-feedback-service/internal/usecase"
	"gitlab.com/servio/api/station-feedback-service/pkg/logger"
	"gitlab.com/servio/api/station-feedback-service/pkg/utils"
)

// webhookPayload mirrors the Graph API change notification envelope. Only the
// fields the conversation flow consumes are declared.
type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Messages []webhookMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookMessage struct {
	From string `json:"from"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		ButtonReply struct {
			ID string `json:"id"`
		} `json:"button_reply"`
	} `json:"interactive"`
	Image *struct {
		ID string `json:"id"`
	} `json:"image"`
}

// handleWebhookVerify answers the Graph API subscription handshake. With no
// query parameters it doubles as a liveness probe for the webhook path.
func (s *Server) handleWebhookVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "" && token == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	if mode == "subscribe" && token == s.cfg.WhatsApp.VerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}

	logger.FromContext(c.Request.Context()).Warn("webhook verification rejected",
		zap.String("mode", mode))
	c.JSON(http.StatusForbidden, gin.H{"detail": "verification failed"})
}

// handleWebhookEvent ingests inbound messages. The provider retries on
// non-2xx responses, so every outcome acknowledges with 200; failures are
// logged and dropped rather than bounced back.
func (s *Server) handleWebhookEvent(c *gin.Context) {
	ctx := c.Request.Context()
	loggerCtx := logger.FromContext(ctx)

	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		loggerCtx.Warn("failed to decode webhook payload", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	// Processing outlives the request; detach cancellation but keep the
	// request ID for log correlation.
	taskCtx := context.WithoutCancel(ctx)

	for _, event := range parseWebhookEvents(payload) {
		observer.IncEventsReceived("whatsapp")
		if err := s.eventWorker.SubmitEvent(usecase.EventTaskData{Ctx: taskCtx, Event: event}); err != nil {
			loggerCtx.Error("failed to submit inbound event",
				zap.String("phone", utils.MaskPhone(event.Phone)),
				zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// parseWebhookEvents flattens the change notification into inbound events.
// Unknown message types are skipped; statuses-only notifications yield none.
func parseWebhookEvents(payload webhookPayload) []model.InboundEvent {
	if payload.Object != "whatsapp_business_account" {
		return nil
	}

	var events []model.InboundEvent
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				event := model.InboundEvent{Phone: msg.From}
				switch msg.Type {
				case "text":
					if msg.Text == nil {
						continue
					}
					event.Input = msg.Text.Body
				case "interactive":
					if msg.Interactive == nil {
						continue
					}
					event.Input = msg.Interactive.ButtonReply.ID
				case "image":
					if msg.Image == nil {
						continue
					}
					event.MediaID = msg.Image.ID
				default:
					continue
				}
				events = append(events, event)
			}
		}
	}
	return events
}
