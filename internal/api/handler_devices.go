package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"device-intake-backend/internal/model"
	"device-intake-backend/internal/store"
)

type createDeviceRequest struct {
	OrderID       string   `json:"orderId" binding:"required"`
	IMEI          string   `json:"imei" binding:"required"`
	SerialNumber  string   `json:"serialNumber" binding:"required"`
	Brand         string   `json:"brand"`
	Model         string   `json:"model"`
	Conditions    []string `json:"conditions"`
	InspectorName string   `json:"inspectorName"`
}

// deviceResponse flattens a device with its condition tag ids.
type deviceResponse struct {
	model.Device
	Conditions []string `json:"conditions"`
}

func toDeviceResponse(d model.Device) deviceResponse {
	return deviceResponse{Device: d, Conditions: d.ConditionIDs()}
}

func toDeviceResponses(devices []model.Device) []deviceResponse {
	out := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, toDeviceResponse(d))
	}
	return out
}

// CreateDevice handles POST /api/devices.
func (h *Handler) CreateDevice(c *gin.Context) {
	var req createDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, id := range req.Conditions {
		if !model.ValidConditionID(id) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown condition tag %q", id)})
			return
		}
	}

	device := model.Device{
		OrderID:       req.OrderID,
		IMEI:          req.IMEI,
		SerialNumber:  req.SerialNumber,
		Brand:         req.Brand,
		Model:         req.Model,
		InspectorName: req.InspectorName,
	}
	device.SetConditionIDs(req.Conditions)

	if err := h.store.CreateDevice(c.Request.Context(), &device); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create device"})
		return
	}
	c.JSON(http.StatusCreated, toDeviceResponse(device))
}

// GetDevice handles GET /api/devices/:id.
func (h *Handler) GetDevice(c *gin.Context) {
	device, err := h.store.GetDevice(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve device"})
		return
	}
	c.JSON(http.StatusOK, toDeviceResponse(*device))
}

// SearchDevices handles GET /api/devices/search?q=.
func (h *Handler) SearchDevices(c *gin.Context) {
	devices, err := h.store.SearchDevices(c.Request.Context(), c.Query("q"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search devices"})
		return
	}
	c.JSON(http.StatusOK, toDeviceResponses(devices))
}

// UploadDevicePhoto handles POST /api/devices/:id/photos/:side. The photo
// arrives as a multipart form with a single "photo" field; re-uploading a
// side replaces the stored file and the device's image reference.
func (h *Handler) UploadDevicePhoto(c *gin.Context) {
	deviceID := c.Param("id")
	side := c.Param("side")
	if side != model.SideFront && side != model.SideBack {
		c.JSON(http.StatusBadRequest, gin.H{"error": "side must be front or back"})
		return
	}

	file, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo field is required"})
		return
	}

	if err := os.MkdirAll(h.photoDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store photo"})
		return
	}
	filename := fmt.Sprintf("%s_%s.jpg", deviceID, side)
	if err := c.SaveUploadedFile(file, filepath.Join(h.photoDir, filename)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store photo"})
		return
	}

	completedOrderID, err := h.store.SetDeviceImage(c.Request.Context(), deviceID, side, "/media/"+filename)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update device"})
		return
	}

	// The last missing photo completes the order; notify subscribers.
	if completedOrderID != "" && h.pool != nil {
		h.pool.Dispatch(completedOrderID)
	}

	device, err := h.store.GetDevice(c.Request.Context(), deviceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve device"})
		return
	}
	c.JSON(http.StatusOK, toDeviceResponse(*device))
}

// GetConditions handles GET /api/conditions.
func (h *Handler) GetConditions(c *gin.Context) {
	c.JSON(http.StatusOK, model.ConditionCatalog)
}
