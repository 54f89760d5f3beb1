package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"order-lifecycle/internal/models"
	"order-lifecycle/internal/service"
	"order-lifecycle/internal/util"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	actorHeader = "X-User-ID"
	actorKey    = "actor_id"
)

// Pinger is a dependency probed by the readiness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orders        *service.OrderService
	notifications *service.NotificationService
	deps          map[string]Pinger
	logger        *zap.Logger
}

// NewHandler creates a new HTTP handler. deps are reported by /ready.
func NewHandler(orders *service.OrderService, notifications *service.NotificationService, deps map[string]Pinger) *Handler {
	return &Handler{
		orders:        orders,
		notifications: notifications,
		deps:          deps,
		logger:        util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(h.requestLogger())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1", requireActor())
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PATCH("/orders/:id/status", h.changeStatus)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.POST("/orders/:id/confirm", h.confirmOrder)
		v1.POST("/orders/:id/review", h.markReviewed)

		v1.GET("/notifications", h.listNotifications)
		v1.POST("/notifications/read", h.markNotificationsRead)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	req.BuyerID = c.GetInt64(actorKey)
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// listOrders handles GET /orders?role=buyer|seller&status=
func (h *Handler) listOrders(c *gin.Context) {
	role := service.Role(c.DefaultQuery("role", string(service.RoleBuyer)))

	orders, err := h.orders.ListOrders(c.Request.Context(), c.GetInt64(actorKey), role, c.Query("status"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	details, err := h.orders.GetOrderDetails(c.Request.Context(), c.GetInt64(actorKey), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, details)
}

type changeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) changeStatus(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.ChangeStatus(c.Request.Context(), c.GetInt64(actorKey), orderID, status)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	h.orderAction(c, h.orders.CancelOrder)
}

func (h *Handler) confirmOrder(c *gin.Context) {
	h.orderAction(c, h.orders.ConfirmOrder)
}

func (h *Handler) markReviewed(c *gin.Context) {
	h.orderAction(c, h.orders.MarkReviewed)
}

func (h *Handler) orderAction(c *gin.Context, action func(ctx context.Context, actorID, orderID int64) (*models.Order, error)) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := action(c.Request.Context(), c.GetInt64(actorKey), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) listNotifications(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"

	list, err := h.notifications.List(c.Request.Context(), c.GetInt64(actorKey), unreadOnly)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *Handler) markNotificationsRead(c *gin.Context) {
	if err := h.notifications.MarkRead(c.Request.Context(), c.GetInt64(actorKey)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func orderIDParam(c *gin.Context) (int64, bool) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID",
		})
		return 0, false
	}
	return orderID, true
}

// writeError maps the service error taxonomy onto HTTP statuses.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

// requireActor reads the authenticated user id set by the gateway.
func requireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, err := strconv.ParseInt(c.GetHeader(actorHeader), 10, 64)
		if err != nil || actorID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or invalid " + actorHeader + " header",
			})
			return
		}
		c.Set(actorKey, actorID)
		c.Next()
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		h.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
