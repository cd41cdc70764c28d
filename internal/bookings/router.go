package bookings

import (
	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes configures all booking-related routes
func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller, embedAuth gin.HandlerFunc, adminAuth ...gin.HandlerFunc) {
	// Widget routes, authorized by embed key
	public := rg.Group("/widgets/:widgetKey/bookings")
	public.Use(embedAuth)
	{
		public.POST("", controller.SubmitBooking)         // POST /api/v1/widgets/:widgetKey/bookings
		public.GET("/:code", controller.GetBookingByCode) // GET /api/v1/widgets/:widgetKey/bookings/:code
	}

	// Admin routes
	admin := rg.Group("/admin/bookings")
	admin.Use(adminAuth...)
	{
		admin.GET("", controller.ListBookings)                      // GET /api/v1/admin/bookings
		admin.GET("/:id", controller.GetBooking)                    // GET /api/v1/admin/bookings/:id
		admin.POST("/:id/confirm", controller.ConfirmBooking)       // POST /api/v1/admin/bookings/:id/confirm
		admin.POST("/:id/cancel", controller.CancelBooking)         // POST /api/v1/admin/bookings/:id/cancel
		admin.POST("/:id/complete", controller.CompleteBooking)     // POST /api/v1/admin/bookings/:id/complete
		admin.POST("/:id/no-show", controller.MarkNoShow)           // POST /api/v1/admin/bookings/:id/no-show
		admin.GET("/:id/refund-status", controller.GetRefundStatus) // GET /api/v1/admin/bookings/:id/refund-status
	}
}

// Route definitions for reference:
//
// Booking flow from a widget:
// 1. Widget reads availability with GET /widgets/:widgetKey/availability?date=
// 2. Customer submits POST /widgets/:widgetKey/bookings -> pending booking + confirmation code
// 3. Payment is recorded with POST /admin/bookings/:id/confirm -> confirmed/paid
// 4. The slot ends -> booking:complete task moves it to completed
// 5. Cancellation with POST /admin/bookings/:id/cancel {reason, issue_refund}
// 6. Pending refunds are re-checked with GET /admin/bookings/:id/refund-status (never re-issued)
