package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"catalog-migration-service/internal/clients"
)

// ProductHandler exposes source product listing
type ProductHandler struct {
	source clients.ProductSource
}

// NewProductHandler creates a new product handler
func NewProductHandler(source clients.ProductSource) *ProductHandler {
	return &ProductHandler{source: source}
}

// List returns one page of source product summaries. The caller drives
// pagination by increasing offset until hasMore is false.
func (h *ProductHandler) List(c *gin.Context) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	result, err := h.source.ListPage(c.Request.Context(), offset, limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":   result.Items,
		"hasMore": result.HasMore,
		"offset":  offset,
		"limit":   limit,
	})
}
