package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ticket-gate/internal/models"
	"ticket-gate/internal/services"
	"ticket-gate/internal/utils"
)

const checkInSuccessMessage = "Check-in successful. This QR is now locked and cannot be scanned again."

type CheckInHandler struct {
	checkInService *services.CheckInService
}

func NewCheckInHandler(checkInService *services.CheckInService) *CheckInHandler {
	return &CheckInHandler{checkInService: checkInService}
}

func (h *CheckInHandler) CheckIn(c *gin.Context) {
	var req models.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Ticket code and organizer PIN are required."))
		return
	}
	req.ClientKey = c.ClientIP()

	result, err := h.checkInService.CheckIn(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, &models.CheckInResponse{
		Success:    true,
		TicketCode: result.TicketCode,
		GuestName:  result.GuestName,
		Message:    checkInSuccessMessage,
	})
}

func (h *CheckInHandler) writeError(c *gin.Context, err error) {
	var conflict *services.AlreadyCheckedInError
	switch {
	case errors.As(err, &conflict):
		var scannedAt interface{}
		if conflict.ScannedAt != nil {
			scannedAt = conflict.ScannedAt.UTC().Format(time.RFC3339Nano)
		}
		c.JSON(http.StatusConflict, gin.H{
			"error":          "This QR ticket was already scanned and cannot be used again.",
			"alreadyScanned": true,
			"scannedAt":      scannedAt,
		})
	case errors.Is(err, services.ErrCheckInFieldsRequired):
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Ticket code and organizer PIN are required."))
	case errors.Is(err, services.ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, utils.ErrorResponse("Too many failed scan attempts. Try again later."))
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusForbidden, utils.ErrorResponse("Unauthorized scan attempt. Organizer access only."))
	case errors.Is(err, services.ErrTicketNotFound):
		c.JSON(http.StatusNotFound, utils.ErrorResponse("Invalid ticket. Reservation not found."))
	case errors.Is(err, services.ErrDependencyUnavailable):
		_ = c.Error(err)
		var dep *services.DependencyError
		if errors.As(err, &dep) && dep.Op == services.OpMarkCheckedIn {
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Could not mark ticket as scanned."))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Could not verify ticket right now."))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Unexpected check-in error."))
	}
}
