// Package api exposes the bakery order service over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rao30/bake-house/internal/catalog"
	"github.com/rao30/bake-house/internal/models"
	"github.com/rao30/bake-house/internal/store"
	"github.com/rao30/bake-house/internal/validation"
	"go.uber.org/zap"
)

type OrderService interface {
	Preview(ctx context.Context, req models.OrderRequest) (validation.Result, error)
	Create(ctx context.Context, req models.OrderRequest, owner *models.User) (*models.Order, error)
	Checkout(ctx context.Context, req models.OrderRequest, owner *models.User) (*models.Order, *models.PaymentSession, error)
	Get(ctx context.Context, id string) (*models.Order, error)
	ListForUser(ctx context.Context, userID string) ([]models.Order, error)
	ListForUserPage(ctx context.Context, userID, cursor string, limit int) (*store.CursorPage, error)
	ConfirmPayment(ctx context.Context, id string, requester *models.User) (*models.Order, error)
}

type IdentityService interface {
	Authenticate(ctx context.Context, assertion string) (*models.User, *models.AuthToken, error)
	Resolve(ctx context.Context, token string) (*models.User, error)
}

type ProductCatalog interface {
	Summaries() []catalog.Summary
	Keys() []catalog.ProductKey
}

type Handler struct {
	catalog  ProductCatalog
	orders   OrderService
	identity IdentityService
	logger   *zap.Logger
}

func NewHandler(products ProductCatalog, orders OrderService, identity IdentityService, logger *zap.Logger) *Handler {
	return &Handler{
		catalog:  products,
		orders:   orders,
		identity: identity,
		logger:   logger,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ListProducts(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Summaries())
}

// bindOrder answers 400 itself and returns false when the body is unusable.
func (h *Handler) bindOrder(c *gin.Context) (models.OrderRequest, bool) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid request body",
			"detail": bindingDetails(err),
		})
		return models.OrderRequest{}, false
	}

	order, err := req.toModel()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid request body",
			"detail": []string{err.Error()},
		})
		return models.OrderRequest{}, false
	}
	return order, true
}

func (h *Handler) PreviewOrder(c *gin.Context) {
	req, ok := h.bindOrder(c)
	if !ok {
		return
	}

	result, err := h.orders.Preview(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) CreateOrder(c *gin.Context) {
	req, ok := h.bindOrder(c)
	if !ok {
		return
	}

	order, err := h.orders.Create(c.Request.Context(), req, currentUser(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) Checkout(c *gin.Context) {
	req, ok := h.bindOrder(c)
	if !ok {
		return
	}

	order, session, err := h.orders.Checkout(c.Request.Context(), req, currentUser(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, checkoutResponse{Order: order, Payment: session})
}

func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// ListMyOrders returns the full history, or one cursor page when limit or
// cursor is given.
func (h *Handler) ListMyOrders(c *gin.Context) {
	user := currentUser(c)

	limitParam, cursor := c.Query("limit"), c.Query("cursor")
	if limitParam == "" && cursor == "" {
		list, err := h.orders.ListForUser(c.Request.Context(), user.ID)
		if err != nil {
			h.handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
		return
	}

	limit := 0
	if limitParam != "" {
		var err error
		limit, err = strconv.Atoi(limitParam)
		if err != nil || limit < 1 {
			respondError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
	}

	page, err := h.orders.ListForUserPage(c.Request.Context(), user.ID, cursor, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *Handler) ConfirmPayment(c *gin.Context) {
	order, err := h.orders.ConfirmPayment(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) GoogleAuth(c *gin.Context) {
	var req googleAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IDToken == "" {
		respondError(c, http.StatusBadRequest, "Missing id_token")
		return
	}

	user, token, err := h.identity.Authenticate(c.Request.Context(), req.IDToken)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse{
		AccessToken: token.Token,
		TokenType:   "bearer",
		User:        user,
	})
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}
