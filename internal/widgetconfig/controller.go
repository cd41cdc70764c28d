package widgetconfig

import (
	"errors"
	"net/http"

	"bookingtms/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// ValidationResponse reports the outcome of a dry-run validation
type ValidationResponse struct {
	Valid  bool          `json:"valid"`
	Errors []FieldError  `json:"errors,omitempty"`
	Config *PublicConfig `json:"config,omitempty"`
}

// RespondConfigError writes the response for a configuration that failed normalization
// on a public route. Venue misconfiguration is shown as temporary unavailability.
func RespondConfigError(ctx *gin.Context, err error) bool {
	if !errors.Is(err, ErrInvalidConfig) {
		return false
	}
	response.RespondJSON(ctx, "error", http.StatusServiceUnavailable, "Booking is temporarily unavailable", nil, "widget configuration is invalid")
	return true
}

// GetPublicConfig godoc
// @Summary      Public widget configuration
// @Tags         widgets
// @Produce      json
// @Param        widgetKey path string true "Embed key"
// @Success      200 {object} response.StandardApiResponse
// @Failure      400 {object} response.StandardApiResponse
// @Failure      404 {object} response.StandardApiResponse
// @Failure      503 {object} response.StandardApiResponse
// @Router       /widgets/{widgetKey}/config [get]
func (c *Controller) GetPublicConfig(ctx *gin.Context) {
	widget, ok := WidgetFromContext(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusNotFound, "Widget not found", nil, "widget not resolved")
		return
	}

	public, err := c.service.GetPublicConfig(ctx.Request.Context(), widget)
	if err != nil {
		if RespondConfigError(ctx, err) {
			return
		}
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to load widget configuration", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Widget configuration retrieved successfully", public, nil)
}

func (c *Controller) GetWidget(ctx *gin.Context) {
	widget, err := c.service.GetWidget(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.respondLookupError(ctx, err, "Failed to get widget")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Widget retrieved successfully", widget, nil)
}

func (c *Controller) ListWidgets(ctx *gin.Context) {
	widgets, err := c.service.ListWidgets(ctx.Request.Context(), ctx.Query("venue_id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Failed to list widgets", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Widgets retrieved successfully", widgets, nil)
}

// ValidateConfig godoc
// @Summary      Validate a raw widget configuration without saving it
// @Tags         admin-widgets
// @Accept       json
// @Produce      json
// @Param        config body RawConfig true "Raw configuration"
// @Success      200 {object} response.StandardApiResponse
// @Failure      422 {object} response.StandardApiResponse
// @Router       /admin/widgets/config/validate [post]
func (c *Controller) ValidateConfig(ctx *gin.Context) {
	var raw RawConfig
	if err := ctx.ShouldBindJSON(&raw); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	cfg, err := c.service.Validate(raw)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			response.RespondJSON(ctx, "error", http.StatusUnprocessableEntity, "Widget configuration is invalid", ValidationResponse{Valid: false, Errors: verr.Errors}, verr.Errors)
			return
		}
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to validate configuration", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Widget configuration is valid", ValidationResponse{Valid: true, Config: cfg.Public("")}, nil)
}

// UpdateConfig godoc
// @Summary      Replace the configuration of a widget
// @Tags         admin-widgets
// @Accept       json
// @Produce      json
// @Param        id path string true "Widget ID"
// @Param        config body RawConfig true "Raw configuration"
// @Success      200 {object} response.StandardApiResponse
// @Failure      404 {object} response.StandardApiResponse
// @Failure      422 {object} response.StandardApiResponse
// @Router       /admin/widgets/{id}/config [put]
func (c *Controller) UpdateConfig(ctx *gin.Context) {
	var raw RawConfig
	if err := ctx.ShouldBindJSON(&raw); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	widget, err := c.service.UpdateConfig(ctx.Request.Context(), ctx.Param("id"), raw)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			response.RespondJSON(ctx, "error", http.StatusUnprocessableEntity, "Widget configuration is invalid", nil, verr.Errors)
			return
		}
		c.respondLookupError(ctx, err, "Failed to update widget configuration")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Widget configuration updated successfully", widget, nil)
}

func (c *Controller) respondLookupError(ctx *gin.Context, err error, message string) {
	statusCode := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidWidgetID):
		statusCode = http.StatusBadRequest
	case errors.Is(err, ErrWidgetNotFound):
		statusCode = http.StatusNotFound
	}
	response.RespondJSON(ctx, "error", statusCode, message, nil, err.Error())
}
