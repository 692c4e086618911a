package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"merch_shop/internal/models"
	"merch_shop/internal/money"
	"merch_shop/internal/services"

	"github.com/gin-gonic/gin"
)

// APIHandler exposes the admin-facing REST surface over the lifecycle.
type APIHandler struct {
	orderService  services.OrderService
	clientService services.ClientService
}

func NewAPIHandler(orderService services.OrderService, clientService services.ClientService) *APIHandler {
	return &APIHandler{orderService: orderService, clientService: clientService}
}

func (h *APIHandler) ListOrders(c *gin.Context) {
	orders, err := h.orderService.GetAllOrders()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *APIHandler) GetOrder(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	order, err := h.orderService.GetOrder(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *APIHandler) ListClientOrders(c *gin.Context) {
	clientID, err := strconv.ParseInt(c.Param("client_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client id"})
		return
	}
	orders, err := h.orderService.GetOrdersByClient(clientID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

type adminActionRequest struct {
	AdminID int64 `json:"admin_id" binding:"required"`
}

func (h *APIHandler) ApproveOrder(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	var req adminActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	order, err := h.orderService.Approve(id, req.AdminID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *APIHandler) RejectOrder(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	var req adminActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	order, err := h.orderService.Reject(id, req.AdminID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type setPriceRequest struct {
	UnitPriceSum int64 `json:"unit_price_sum" binding:"required"`
}

func (h *APIHandler) SetPrice(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	var req setPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	order, err := h.orderService.SetPrice(id, money.FromSum(req.UnitPriceSum))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *APIHandler) ConfirmOrder(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	order, err := h.orderService.ClientConfirm(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *APIHandler) CancelOrder(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	order, err := h.orderService.ClientCancel(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *APIHandler) DeleteClient(c *gin.Context) {
	clientID, err := strconv.ParseInt(c.Param("client_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client id"})
		return
	}
	if err := h.clientService.Unregister(clientID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func orderIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return 0, false
	}
	return uint(id), true
}

// respondError maps lifecycle errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrOrderNotFound), errors.Is(err, models.ErrClientNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrAlreadyPaid):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrUnknownProduct):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrGateway):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
