package bookings

import (
	"errors"
	"net/http"

	"bookingtms/internal/availability"
	"bookingtms/internal/payments"
	"bookingtms/internal/shared/utils/response"
	"bookingtms/internal/widgetconfig"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// SubmitBooking godoc
// @Summary      Book a slot
// @Tags         widgets
// @Accept       json
// @Produce      json
// @Param        widgetKey path string true "Embed key"
// @Param        request body SubmitRequest true "Slot, tickets and customer"
// @Success      201 {object} response.StandardApiResponse
// @Failure      400 {object} response.StandardApiResponse
// @Failure      409 {object} response.StandardApiResponse
// @Failure      422 {object} response.StandardApiResponse
// @Failure      503 {object} response.StandardApiResponse
// @Router       /widgets/{widgetKey}/bookings [post]
func (c *Controller) SubmitBooking(ctx *gin.Context) {
	widget, ok := widgetconfig.WidgetFromContext(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusNotFound, "Widget not found", nil, "widget not resolved")
		return
	}

	var req SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	booking, err := c.service.Submit(ctx.Request.Context(), widget, req)
	if err != nil {
		c.respondError(ctx, err, "Failed to create booking")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Booking created successfully", NewBookingResponse(booking), nil)
}

// GetBookingByCode godoc
// @Summary      Look up a booking by confirmation code
// @Tags         widgets
// @Produce      json
// @Param        widgetKey path string true "Embed key"
// @Param        code path string true "Confirmation code"
// @Success      200 {object} response.StandardApiResponse
// @Failure      404 {object} response.StandardApiResponse
// @Router       /widgets/{widgetKey}/bookings/{code} [get]
func (c *Controller) GetBookingByCode(ctx *gin.Context) {
	widget, ok := widgetconfig.WidgetFromContext(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusNotFound, "Widget not found", nil, "widget not resolved")
		return
	}

	booking, err := c.service.GetByConfirmationCode(ctx.Request.Context(), widget, ctx.Param("code"))
	if err != nil {
		c.respondError(ctx, err, "Failed to get booking")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking retrieved successfully", NewBookingResponse(booking), nil)
}

// ListBookings godoc
// @Summary      List bookings
// @Tags         admin-bookings
// @Produce      json
// @Param        page query int false "Page"
// @Param        limit query int false "Page size"
// @Param        status query string false "Status filter"
// @Param        widget_id query string false "Widget filter"
// @Param        date_from query string false "Start date (YYYY-MM-DD)"
// @Param        date_to query string false "End date (YYYY-MM-DD)"
// @Success      200 {object} response.StandardApiResponse
// @Router       /admin/bookings [get]
func (c *Controller) ListBookings(ctx *gin.Context) {
	var query BookingListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	list, err := c.service.ListBookings(ctx.Request.Context(), query)
	if err != nil {
		c.respondError(ctx, err, "Failed to list bookings")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Bookings retrieved successfully", list, nil)
}

// GetBooking godoc
// @Summary      Get a booking
// @Tags         admin-bookings
// @Produce      json
// @Param        id path string true "Booking ID"
// @Success      200 {object} response.StandardApiResponse
// @Failure      404 {object} response.StandardApiResponse
// @Router       /admin/bookings/{id} [get]
func (c *Controller) GetBooking(ctx *gin.Context) {
	id, ok := c.bookingID(ctx)
	if !ok {
		return
	}

	booking, err := c.service.GetBooking(ctx.Request.Context(), id)
	if err != nil {
		c.respondError(ctx, err, "Failed to get booking")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking retrieved successfully", booking, nil)
}

// ConfirmBooking godoc
// @Summary      Confirm a pending booking after payment
// @Tags         admin-bookings
// @Accept       json
// @Produce      json
// @Param        id path string true "Booking ID"
// @Param        request body ConfirmRequest true "Payment reference"
// @Success      200 {object} response.StandardApiResponse
// @Failure      409 {object} response.StandardApiResponse
// @Router       /admin/bookings/{id}/confirm [post]
func (c *Controller) ConfirmBooking(ctx *gin.Context) {
	id, ok := c.bookingID(ctx)
	if !ok {
		return
	}

	var req ConfirmRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	booking, err := c.service.Confirm(ctx.Request.Context(), id, req)
	if err != nil {
		c.respondError(ctx, err, "Failed to confirm booking")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking confirmed successfully", booking, nil)
}

// CancelBooking godoc
// @Summary      Cancel a booking
// @Description  The cancellation stands even when the refund fails; the refund outcome is reported separately.
// @Tags         admin-bookings
// @Accept       json
// @Produce      json
// @Param        id path string true "Booking ID"
// @Param        request body CancelRequest true "Reason and refund flag"
// @Success      200 {object} response.StandardApiResponse
// @Success      207 {object} response.StandardApiResponse
// @Failure      409 {object} response.StandardApiResponse
// @Router       /admin/bookings/{id}/cancel [post]
func (c *Controller) CancelBooking(ctx *gin.Context) {
	id, ok := c.bookingID(ctx)
	if !ok {
		return
	}

	var req CancelRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	result, err := c.service.Cancel(ctx.Request.Context(), id, req.Reason, req.IssueRefund)
	if err != nil {
		c.respondError(ctx, err, "Failed to cancel booking")
		return
	}

	body := CancelResponse{Booking: result.Booking, Refund: result.Refund}
	if result.RefundError != nil {
		body.RefundError = result.RefundError.Error()
		response.RespondJSON(ctx, "success", http.StatusMultiStatus, "Booking cancelled; refund failed", body, body.RefundError)
		return
	}

	message := "Booking cancelled successfully"
	if result.Refund != nil && result.Refund.State != payments.RefundSucceeded {
		message = "Booking cancelled; refund pending"
	}
	response.RespondJSON(ctx, "success", http.StatusOK, message, body, nil)
}

// CompleteBooking godoc
// @Summary      Complete a booking whose slot has ended
// @Tags         admin-bookings
// @Produce      json
// @Param        id path string true "Booking ID"
// @Success      200 {object} response.StandardApiResponse
// @Failure      409 {object} response.StandardApiResponse
// @Router       /admin/bookings/{id}/complete [post]
func (c *Controller) CompleteBooking(ctx *gin.Context) {
	id, ok := c.bookingID(ctx)
	if !ok {
		return
	}

	booking, err := c.service.Complete(ctx.Request.Context(), id)
	if err != nil {
		c.respondError(ctx, err, "Failed to complete booking")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking completed successfully", booking, nil)
}

// MarkNoShow godoc
// @Summary      Mark a confirmed booking as no-show
// @Tags         admin-bookings
// @Produce      json
// @Param        id path string true "Booking ID"
// @Success      200 {object} response.StandardApiResponse
// @Failure      409 {object} response.StandardApiResponse
// @Router       /admin/bookings/{id}/no-show [post]
func (c *Controller) MarkNoShow(ctx *gin.Context) {
	id, ok := c.bookingID(ctx)
	if !ok {
		return
	}

	booking, err := c.service.MarkNoShow(ctx.Request.Context(), id)
	if err != nil {
		c.respondError(ctx, err, "Failed to mark booking as no-show")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking marked as no-show", booking, nil)
}

// GetRefundStatus godoc
// @Summary      Re-check the refund of a cancelled booking
// @Description  Queries the payment provider; never issues a new refund.
// @Tags         admin-bookings
// @Produce      json
// @Param        id path string true "Booking ID"
// @Success      200 {object} response.StandardApiResponse
// @Failure      404 {object} response.StandardApiResponse
// @Failure      502 {object} response.StandardApiResponse
// @Router       /admin/bookings/{id}/refund-status [get]
func (c *Controller) GetRefundStatus(ctx *gin.Context) {
	id, ok := c.bookingID(ctx)
	if !ok {
		return
	}

	refund, err := c.service.RefundStatus(ctx.Request.Context(), id)
	if err != nil {
		c.respondError(ctx, err, "Failed to get refund status")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Refund status retrieved successfully", refund, nil)
}

func (c *Controller) bookingID(ctx *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid booking ID", nil, ErrInvalidBookingID.Error())
		return uuid.Nil, false
	}
	return id, true
}

func (c *Controller) respondError(ctx *gin.Context, err error, message string) {
	if widgetconfig.RespondConfigError(ctx, err) {
		return
	}

	statusCode := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrBookingNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, ErrSlotFull), errors.Is(err, ErrInvalidTransition):
		statusCode = http.StatusConflict
	case errors.Is(err, ErrTooEarly):
		statusCode = http.StatusConflict
	case errors.Is(err, ErrInvalidSlotTime):
		statusCode = http.StatusBadRequest
	case errors.Is(err, ErrSlotUnavailable),
		errors.Is(err, ErrPlayerCountOutOfRange),
		errors.Is(err, ErrUnknownTicketType),
		errors.Is(err, ErrInvalidAnswer):
		statusCode = http.StatusUnprocessableEntity
	case errors.Is(err, ErrNoRefund):
		statusCode = http.StatusNotFound
	case errors.Is(err, availability.ErrAvailabilityUnknown):
		response.RespondJSON(ctx, "error", http.StatusServiceUnavailable, "Availability is temporarily unknown", nil, "please retry shortly")
		return
	case errors.Is(err, payments.ErrPaymentsDisabled):
		statusCode = http.StatusServiceUnavailable
	case errors.Is(err, ErrRefundLookupFailed):
		statusCode = http.StatusBadGateway
	}

	response.RespondJSON(ctx, "error", statusCode, message, nil, err.Error())
}
