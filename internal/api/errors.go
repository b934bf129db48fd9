package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rao30/bake-house/internal/catalog"
	"github.com/rao30/bake-house/internal/database"
	"github.com/rao30/bake-house/internal/identity"
	"github.com/rao30/bake-house/internal/orders"
	"github.com/rao30/bake-house/internal/store"
	"github.com/rao30/bake-house/internal/validation"
	"go.uber.org/zap"
)

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// handleError maps domain errors onto HTTP responses. Anything unmapped is a
// 500 and gets logged.
func (h *Handler) handleError(c *gin.Context, err error) {
	var verr *validation.ValidationError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":  "order validation failed",
			"detail": verr.Errors,
		})
	case errors.Is(err, validation.ErrInvalidQuantity):
		respondError(c, http.StatusBadRequest, "Item quantity must be positive")
	case errors.Is(err, database.ErrOrderNotFound):
		respondError(c, http.StatusNotFound, "Order not found")
	case errors.Is(err, store.ErrInvalidCursor):
		respondError(c, http.StatusBadRequest, "Invalid cursor")
	case errors.Is(err, identity.ErrInvalidAssertion):
		respondError(c, http.StatusUnauthorized, "Invalid identity token")
	case errors.Is(err, identity.ErrUnauthorized):
		respondError(c, http.StatusUnauthorized, "Invalid or expired token")
	case errors.Is(err, orders.ErrForbidden):
		respondError(c, http.StatusForbidden, "Not allowed to modify this order")
	case errors.Is(err, database.ErrDuplicateEmail):
		respondError(c, http.StatusConflict, "Email already registered to another account")
	case errors.Is(err, identity.ErrProviderUnavailable):
		h.logger.Warn("Identity provider unavailable", zap.Error(err))
		respondError(c, http.StatusServiceUnavailable, "Identity provider unavailable")
	case errors.Is(err, identity.ErrMisconfigured):
		h.logger.Error("Identity provider is not configured", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Google client ID not configured")
	case errors.Is(err, catalog.ErrProductNotFound):
		h.logger.Error("Catalog is missing a product accepted by the request layer", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Product configuration error")
	default:
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}
