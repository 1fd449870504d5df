package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"device-intake-backend/internal/model"
	"device-intake-backend/internal/store"
)

type createOrderRequest struct {
	CustomerName  string `json:"customerName" binding:"required"`
	LabelNumber   string `json:"labelNumber"`
	InspectorID   string `json:"inspectorId"`
	InspectorName string `json:"inspectorName"`
	SavedAsDraft  bool   `json:"savedAsDraft"`
}

// CreateOrder handles POST /api/orders.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := model.StatusPending
	if req.SavedAsDraft {
		status = model.StatusDraft
	}
	order := model.Order{
		CustomerName:  req.CustomerName,
		LabelNumber:   req.LabelNumber,
		InspectorID:   req.InspectorID,
		InspectorName: req.InspectorName,
		Status:        status,
	}

	if err := h.store.CreateOrder(c.Request.Context(), &order); err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "label number already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}

	c.JSON(http.StatusCreated, order)
}

// ListOrders handles GET /api/orders.
func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.store.ListOrders(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve orders"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GetOrder handles GET /api/orders/:id, accepting an id or ORD-#### number.
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.store.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve order"})
		return
	}
	c.JSON(http.StatusOK, order)
}

// DeleteOrder handles DELETE /api/orders/:id.
func (h *Handler) DeleteOrder(c *gin.Context) {
	if err := h.store.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete order"})
		return
	}
	c.Status(http.StatusNoContent)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateOrderStatus handles PATCH /api/orders/:id/status.
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.store.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		case errors.Is(err, store.ErrInvalidState):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order status"})
		}
		return
	}
	c.JSON(http.StatusOK, order)
}

// MarkOrderDraft handles PATCH /api/orders/:id/draft.
func (h *Handler) MarkOrderDraft(c *gin.Context) {
	order, err := h.store.MarkOrderDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save order as draft"})
		return
	}
	c.JSON(http.StatusOK, order)
}

// CheckLabelNumber handles GET /api/orders/check-label/:label.
func (h *Handler) CheckLabelNumber(c *gin.Context) {
	exists, err := h.store.LabelNumberExists(c.Request.Context(), c.Param("label"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check label number"})
		return
	}
	c.JSON(http.StatusOK, exists)
}

// ExportReport handles GET /api/orders/:id/export.
func (h *Handler) ExportReport(c *gin.Context) {
	generatedAt := time.Now().UTC().Format(time.RFC3339)
	reportURL, err := h.reports.Export(c.Request.Context(), c.Param("id"), generatedAt)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		case errors.Is(err, store.ErrInvalidState):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export report"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"reportUrl": reportURL})
}

// ListOrderDevices handles GET /api/orders/:id/devices.
func (h *Handler) ListOrderDevices(c *gin.Context) {
	devices, err := h.store.ListDevicesByOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve devices"})
		return
	}
	c.JSON(http.StatusOK, devices)
}
