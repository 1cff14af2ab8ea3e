package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ticket-gate/internal/models"
	"ticket-gate/internal/services"
	"ticket-gate/internal/utils"
)

const reservationCreatedMessage = "Reservation created. Ticket QR is being sent to email."

type ReservationHandler struct {
	reservationService *services.ReservationService
}

func NewReservationHandler(reservationService *services.ReservationService) *ReservationHandler {
	return &ReservationHandler{
		reservationService: reservationService,
	}
}

func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	var req models.ReservationRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Please fill all required fields."))
		return
	}

	reservation, err := h.reservationService.CreateReservation(c.Request.Context(), &req)
	if err != nil {
		var ve *services.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse(ve.Message))
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Something went wrong while creating reservation."))
		return
	}

	c.JSON(http.StatusOK, &models.ReservationResponse{
		Success:       true,
		Message:       reservationCreatedMessage,
		TicketCode:    reservation.TicketCode,
		CheckInURL:    reservation.CheckInURL,
		TicketType:    reservation.TicketType,
		PaymentAmount: reservation.PaymentAmount,
		QRCodeDataURL: reservation.QRCodeDataURL,
	})
}
