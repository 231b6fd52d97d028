package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"catalog-migration-service/internal/clients"
)

// ConnectionHandler handles source connection endpoints
type ConnectionHandler struct {
	source clients.ProductSource
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(source clients.ProductSource) *ConnectionHandler {
	return &ConnectionHandler{source: source}
}

// Test verifies the configured product source is reachable
func (h *ConnectionHandler) Test(c *gin.Context) {
	if err := h.source.TestConnection(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"source": h.source.Kind(),
			"ok":     false,
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source": h.source.Kind(),
		"ok":     true,
	})
}
