package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"cicd-notifier/internal/logx"
	"cicd-notifier/internal/model"
)

// Submitter schedules a delivery without waiting for it.
type Submitter interface {
	Submit(ctx context.Context, destination string, msg model.OutboundMessage) (string, error)
}

// notifyRequest mirrors model.NotifyPayload with pointer fields so that an
// absent field can be told apart from a zero value during binding.
type notifyRequest struct {
	Settings []settingRequest `json:"settings" binding:"required,dive"`
	Message  *string          `json:"message" binding:"required"`
}

type settingRequest struct {
	Label    *string `json:"label" binding:"required"`
	Type     *string `json:"type" binding:"required"`
	Required *bool   `json:"required" binding:"required"`
	Default  *string `json:"default" binding:"required"`
}

func (r notifyRequest) payload() model.NotifyPayload {
	p := model.NotifyPayload{
		Settings: make([]model.Setting, 0, len(r.Settings)),
		Message:  *r.Message,
	}
	for _, s := range r.Settings {
		p.Settings = append(p.Settings, model.Setting{
			Label:    *s.Label,
			Type:     *s.Type,
			Required: *s.Required,
			Default:  *s.Default,
		})
	}
	return p
}

// missingWebhookDetail is the 400 body text callers match on.
const missingWebhookDetail = "Slack webhook URL not found in settings"

type NotifyHandler struct {
	// ctx bounds how long an accepted event may wait for room in the
	// dispatch queue. It ends at server shutdown, not with the request.
	ctx       context.Context
	submitter Submitter
	log       logx.Logger
}

func NewNotifyHandler(ctx context.Context, s Submitter, log logx.Logger) *NotifyHandler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &NotifyHandler{
		ctx:       ctx,
		submitter: s,
		log:       log,
	}
}

// Handle acknowledges the event with 202 and only then hands it to the
// dispatcher, so nothing that happens to the delivery can reach the caller.
func (h *NotifyHandler) Handle(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": validationDetails(err)})
		return
	}

	payload := req.payload()
	destination, err := payload.Destination()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": missingWebhookDetail})
		return
	}
	msg := model.NewOutboundMessage(payload.Message)

	c.JSON(http.StatusAccepted, gin.H{"status": "Accepted"})
	c.Writer.Flush()

	// The caller already has its 202; waiting here for queue room only
	// holds this goroutine.
	taskID, err := h.submitter.Submit(h.ctx, destination, msg)
	if err != nil {
		h.log.Error("notification dropped before dispatch", logx.String("task_id", taskID), logx.Err(err))
		return
	}
	h.log.Debug("notification scheduled", logx.String("task_id", taskID))
}
