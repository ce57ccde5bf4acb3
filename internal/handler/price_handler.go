package handler

import (
	"net/http"

	"earnx/pkg/pricefeed"

	"github.com/gin-gonic/gin"
)

// PriceSource is the cached quote read by the price endpoint.
type PriceSource interface {
	Latest() (pricefeed.Quote, bool)
}

type PriceHandler struct {
	source PriceSource
}

func NewPriceHandler(source PriceSource) *PriceHandler {
	return &PriceHandler{source: source}
}

// Get handles GET /price.
func (h *PriceHandler) Get(c *gin.Context) {
	if h.source == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "price feed disabled", "code": "PRICE_UNAVAILABLE"})
		return
	}
	q, ok := h.source.Latest()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "price not available yet", "code": "PRICE_UNAVAILABLE"})
		return
	}
	c.JSON(http.StatusOK, q)
}
