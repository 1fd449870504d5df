package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"device-intake-backend/internal/imei"
)

// LookupIMEI handles GET /api/lookup-imei/:imei.
func (h *Handler) LookupIMEI(c *gin.Context) {
	receipt, err := h.imei.Lookup(c.Param("imei"))
	if err != nil {
		if errors.Is(err, imei.ErrMalformed) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up IMEI"})
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// IMEIResult handles GET /api/get-imei-result/:historyId.
func (h *Handler) IMEIResult(c *gin.Context) {
	historyID, err := strconv.ParseInt(c.Param("historyId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid history id"})
		return
	}

	result, err := h.imei.Result(historyID)
	if err != nil {
		if errors.Is(err, imei.ErrResultNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "lookup result not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch lookup result"})
		return
	}
	c.JSON(http.StatusOK, result)
}
