package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/pkg/errors"

	"example.com/backstage/services/ordermonitor/internal/models"
	"example.com/backstage/services/ordermonitor/internal/repositories"
	"example.com/backstage/services/ordermonitor/internal/services"
)

// OrderService is what the handlers need from the order service
type OrderService interface {
	GetPage(ctx context.Context, page int) (*models.PageResult, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	Search(ctx context.Context, query string, size int) ([]models.Order, error)
}

// OrdersHandler handles order HTTP requests
type OrdersHandler struct {
	orderService OrderService
}

// NewOrdersHandler creates a new orders handler
func NewOrdersHandler(orderService OrderService) *OrdersHandler {
	return &OrdersHandler{orderService: orderService}
}

// HandleGetPage serves GET /orders?page=n
func (h *OrdersHandler) HandleGetPage(c *gin.Context) {
	page, err := services.ParsePage(c.Query("page"))
	if err != nil {
		WriteError(c, NewValidationError(err.Error()))
		return
	}
	if txn := nrgin.Transaction(c); txn != nil {
		txn.AddAttribute("page", page)
	}

	result, err := h.orderService.GetPage(c.Request.Context(), page)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleSearch serves GET /orders/search?q=&size=
func (h *OrdersHandler) HandleSearch(c *gin.Context) {
	size := 0
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			WriteError(c, NewValidationError("size must be a number"))
			return
		}
		size = n
	}

	orders, err := h.orderService.Search(c.Request.Context(), c.Query("q"), size)
	switch {
	case errors.Is(err, services.ErrEmptyQuery):
		WriteError(c, NewValidationError("q is required"))
		return
	case errors.Is(err, services.ErrSearchUnavailable):
		WriteError(c, ErrServiceUnavailable)
		return
	case err != nil:
		WriteError(c, err)
		return
	}

	result := models.NewPageResult(orders, false)
	result.Message = models.MessageOK
	c.JSON(http.StatusOK, result)
}

// HandleGetOrder serves GET /orders/:id
func (h *OrdersHandler) HandleGetOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(c, NewValidationError("id must be a positive number"))
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), id)
	if errors.Is(err, repositories.ErrOrderNotFound) {
		WriteError(c, &Error{Message: err.Error(), StatusCode: http.StatusNotFound, Code: models.CodeNotFound})
		return
	}
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"error":   models.CodeOK,
		"message": models.MessageOK,
		"result":  order,
	})
}

// HandleSchema serves GET /orders/schema, the ordered column descriptors
func (h *OrdersHandler) HandleSchema(c *gin.Context) {
	c.JSON(http.StatusOK, models.OrderSchema())
}

// RegisterRoutes registers the order routes
func (h *OrdersHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "")
	})
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	orders := router.Group("/orders")
	orders.GET("", h.HandleGetPage)
	orders.GET("/search", h.HandleSearch)
	orders.GET("/schema", h.HandleSchema)
	orders.GET("/:id", h.HandleGetOrder)
}
