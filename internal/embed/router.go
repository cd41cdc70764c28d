package embed

import (
	"github.com/gin-gonic/gin"
)

// SetupEmbedRoutes registers the iframe page and loader on the root engine and the admin endpoints on rg
func SetupEmbedRoutes(root gin.IRoutes, rg *gin.RouterGroup, controller *Controller, loaderPath string, adminAuth ...gin.HandlerFunc) {
	root.GET("/embed", controller.Page)     // GET /embed?widgetId=..&widgetKey=..
	root.GET(loaderPath, controller.Loader) // GET /embed/loader.js

	admin := rg.Group("/admin/widgets")
	admin.Use(adminAuth...)
	{
		admin.GET("/:id/embed-code", controller.GetEmbedCode)  // GET /api/v1/admin/widgets/:id/embed-code?format=
		admin.POST("/embed-codes", controller.BulkEmbedCodes) // POST /api/v1/admin/widgets/embed-codes
	}
}
