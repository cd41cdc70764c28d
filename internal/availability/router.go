package availability

import (
	"github.com/gin-gonic/gin"
)

func SetupAvailabilityRoutes(rg *gin.RouterGroup, controller *Controller, embedAuth gin.HandlerFunc) {
	public := rg.Group("/widgets/:widgetKey")
	public.Use(embedAuth)
	{
		public.GET("/availability", controller.GetAvailability) // GET /api/v1/widgets/:widgetKey/availability?date=YYYY-MM-DD
	}
}
