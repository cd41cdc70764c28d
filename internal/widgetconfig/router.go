package widgetconfig

import (
	"github.com/gin-gonic/gin"
)

// SetupWidgetRoutes registers the public config route behind embedAuth and the admin routes behind adminAuth
func SetupWidgetRoutes(rg *gin.RouterGroup, controller *Controller, embedAuth gin.HandlerFunc, adminAuth ...gin.HandlerFunc) {
	public := rg.Group("/widgets/:widgetKey")
	public.Use(embedAuth)
	{
		public.GET("/config", controller.GetPublicConfig) // GET /api/v1/widgets/:widgetKey/config
	}

	admin := rg.Group("/admin/widgets")
	admin.Use(adminAuth...)
	{
		admin.GET("", controller.ListWidgets)                     // GET /api/v1/admin/widgets
		admin.GET("/:id", controller.GetWidget)                   // GET /api/v1/admin/widgets/:id
		admin.PUT("/:id/config", controller.UpdateConfig)         // PUT /api/v1/admin/widgets/:id/config
		admin.POST("/config/validate", controller.ValidateConfig) // POST /api/v1/admin/widgets/config/validate
	}
}
