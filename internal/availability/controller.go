package availability

import (
	"errors"
	"net/http"

	"bookingtms/internal/shared/utils/response"
	"bookingtms/internal/widgetconfig"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// GetAvailability godoc
// @Summary      Slots of one date
// @Tags         widgets
// @Produce      json
// @Param        widgetKey path string true "Embed key"
// @Param        date query string true "Date (YYYY-MM-DD)"
// @Success      200 {object} response.StandardApiResponse
// @Failure      400 {object} response.StandardApiResponse
// @Failure      503 {object} response.StandardApiResponse
// @Router       /widgets/{widgetKey}/availability [get]
func (c *Controller) GetAvailability(ctx *gin.Context) {
	widget, ok := widgetconfig.WidgetFromContext(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusNotFound, "Widget not found", nil, "widget not resolved")
		return
	}

	date, err := widgetconfig.ParseDate(ctx.Query("date"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid date", nil, err.Error())
		return
	}

	day, err := c.service.GetSlots(ctx.Request.Context(), widget, date)
	if err != nil {
		if widgetconfig.RespondConfigError(ctx, err) {
			return
		}
		if errors.Is(err, ErrAvailabilityUnknown) {
			response.RespondJSON(ctx, "error", http.StatusServiceUnavailable, "Availability is temporarily unknown", nil, "please retry shortly")
			return
		}
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to compute availability", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Availability retrieved successfully", day, nil)
}
