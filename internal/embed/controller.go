package embed

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	"bookingtms/internal/embedkey"
	"bookingtms/internal/shared/utils/response"
	"bookingtms/internal/widgetconfig"
	"bookingtms/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
)

// WidgetLookup finds widgets by id for the admin endpoints
type WidgetLookup interface {
	GetWidget(ctx context.Context, id string) (*widgetconfig.Widget, error)
}

type Controller struct {
	cfg      Config
	widgets  WidgetLookup
	resolver embedkey.Resolver
}

func NewController(cfg Config, widgets WidgetLookup, resolver embedkey.Resolver) *Controller {
	return &Controller{cfg: cfg, widgets: widgets, resolver: resolver}
}

// EmbedCodeResponse is returned by the single-widget embed code endpoint
type EmbedCodeResponse struct {
	WidgetID   string     `json:"widget_id"`
	WidgetType WidgetType `json:"widget_type"`
	Format     Format     `json:"format"`
	Code       string     `json:"code"`
}

// BulkEmbedCodeRequest asks for artifacts for many widgets at once
type BulkEmbedCodeRequest struct {
	Format    Format   `json:"format" binding:"required"`
	WidgetIDs []string `json:"widget_ids" binding:"required,min=1,max=500"`
	Color     string   `json:"primary_color"`
}

// Page serves the document loaded inside the iframe.
// The key format is checked before any lookup; a broken venue config renders as temporarily unavailable.
func (c *Controller) Page(ctx *gin.Context) {
	widgetType := WidgetType(ctx.Query("widgetId"))
	key := ctx.Query("widgetKey")

	ctx.Header("Content-Security-Policy", c.cfg.frameAncestors())

	if err := embedkey.AssertValid(key); err != nil {
		logger.GetDefault().LogEmbedKeyRejected(ctx.Request.Context(), "malformed", ctx.ClientIP())
		c.renderUnavailable(ctx, http.StatusBadRequest, "This booking widget is not configured correctly.")
		return
	}
	if !widgetType.IsValid() {
		c.renderUnavailable(ctx, http.StatusBadRequest, "This booking widget is not configured correctly.")
		return
	}

	widget, err := c.resolver.Resolve(ctx.Request.Context(), key)
	if err != nil {
		if errors.Is(err, embedkey.ErrEmbedKeyNotFound) {
			logger.GetDefault().LogEmbedKeyRejected(ctx.Request.Context(), "unknown", ctx.ClientIP())
			c.renderUnavailable(ctx, http.StatusNotFound, "This booking widget could not be found.")
			return
		}
		logger.GetDefault().LogHTTPError(ctx, err, http.StatusServiceUnavailable)
		c.renderUnavailable(ctx, http.StatusServiceUnavailable, "Booking is temporarily unavailable. Please try again shortly.")
		return
	}

	if _, err := widgetconfig.Normalize(widget.Config); err != nil {
		logger.GetDefault().WithError(err).Warn("widget has invalid configuration", "widget_id", widget.ID)
		c.renderUnavailable(ctx, http.StatusServiceUnavailable, "Booking is temporarily unavailable. Please try again shortly.")
		return
	}

	ctx.Render(http.StatusOK, render.HTML{
		Template: pageTemplate,
		Name:     "page",
		Data: pageData{
			Title:     widget.Name,
			Key:       key,
			Type:      string(widgetType),
			APIBase:   c.cfg.APIBasePath,
			BundleURL: c.cfg.BundleURL,
			Poster:    template.JS(ResizePosterScript()),
		},
	})
}

func (c *Controller) renderUnavailable(ctx *gin.Context, status int, message string) {
	ctx.Render(status, render.HTML{
		Template: pageTemplate,
		Name:     "page",
		Data: pageData{
			Title:       "Booking unavailable",
			Unavailable: true,
			Message:     message,
			Poster:      template.JS(ResizePosterScript()),
		},
	})
}

// Loader serves the script referenced by the script embed
func (c *Controller) Loader(ctx *gin.Context) {
	ctx.Header("Cache-Control", "public, max-age=300")
	ctx.Data(http.StatusOK, "application/javascript; charset=utf-8", []byte(LoaderScript(c.cfg)))
}

// GetEmbedCode godoc
// @Summary      Embed artifact for one widget
// @Tags         admin-widgets
// @Produce      json
// @Param        id path string true "Widget ID"
// @Param        format query string false "url, script, iframe or react" default(iframe)
// @Success      200 {object} response.StandardApiResponse
// @Failure      404 {object} response.StandardApiResponse
// @Failure      422 {object} response.StandardApiResponse
// @Router       /admin/widgets/{id}/embed-code [get]
func (c *Controller) GetEmbedCode(ctx *gin.Context) {
	format := Format(ctx.DefaultQuery("format", string(FormatIframe)))
	if !format.IsValid() {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid format", nil, ErrUnknownFormat.Error())
		return
	}

	widget, err := c.widgets.GetWidget(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		statusCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, widgetconfig.ErrInvalidWidgetID):
			statusCode = http.StatusBadRequest
		case errors.Is(err, widgetconfig.ErrWidgetNotFound):
			statusCode = http.StatusNotFound
		}
		response.RespondJSON(ctx, "error", statusCode, "Failed to get widget", nil, err.Error())
		return
	}

	widgetType := WidgetType(widget.WidgetType)
	code, err := Generate(format, c.cfg.Options(widgetType, widget.EmbedKey, ctx.Query("primary_color")))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusUnprocessableEntity, "Failed to generate embed code", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Embed code generated successfully", EmbedCodeResponse{
		WidgetID:   widget.ID.String(),
		WidgetType: widgetType,
		Format:     format,
		Code:       code,
	}, nil)
}

// BulkEmbedCodes generates artifacts for many widgets. Failures are reported per widget.
func (c *Controller) BulkEmbedCodes(ctx *gin.Context) {
	var req BulkEmbedCodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}
	if !req.Format.IsValid() {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid format", nil, ErrUnknownFormat.Error())
		return
	}

	targets := make([]Target, 0, len(req.WidgetIDs))
	var missing []Result
	for _, id := range req.WidgetIDs {
		widget, err := c.widgets.GetWidget(ctx.Request.Context(), id)
		if err != nil {
			missing = append(missing, Result{WidgetID: id, Format: req.Format, Error: err.Error()})
			continue
		}
		targets = append(targets, Target{
			WidgetID:     id,
			WidgetType:   WidgetType(widget.WidgetType),
			EmbedKey:     widget.EmbedKey,
			PrimaryColor: req.Color,
		})
	}

	results := GenerateAll(c.cfg.Options("", "", ""), req.Format, targets)
	results = append(results, missing...)

	response.RespondJSON(ctx, "success", http.StatusOK, "Embed codes generated", results, nil)
}
