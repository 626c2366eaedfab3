package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cicd-notifier/internal/model"
)

// IntegrationHandler serves the discovery descriptor. It holds no mutable state.
type IntegrationHandler struct {
	info model.IntegrationInfo
	// publicBaseURL overrides the base URL derived from the request.
	publicBaseURL string
}

func NewIntegrationHandler(info model.IntegrationInfo, publicBaseURL string) *IntegrationHandler {
	return &IntegrationHandler{info: info, publicBaseURL: publicBaseURL}
}

func (h *IntegrationHandler) Handle(c *gin.Context) {
	base := h.publicBaseURL
	if base == "" {
		base = requestBaseURL(c.Request)
	}
	c.JSON(http.StatusOK, model.NewIntegration(h.info, base))
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
