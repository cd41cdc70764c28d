package bookings

// SubmitRequest is posted by the widget when the customer books a slot
type SubmitRequest struct {
	Date      string            `json:"date" binding:"required"`
	StartTime string            `json:"start_time" binding:"required"`
	Tickets   []TicketSelection `json:"tickets" binding:"required,min=1,dive"`
	Customer  CustomerInfo      `json:"customer"`
	Answers   map[string]string `json:"answers"`
}

// ConfirmRequest records a successful payment
type ConfirmRequest struct {
	PaymentRef string `json:"payment_ref" binding:"required,max=255"`
	Partial    bool   `json:"partial"`
}

// CancelRequest cancels a booking, optionally refunding it
type CancelRequest struct {
	Reason      string `json:"reason" binding:"required,min=3,max=500"`
	IssueRefund bool   `json:"issue_refund"`
}

// BookingListQuery filters the admin booking list
type BookingListQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Status   string `form:"status" binding:"omitempty,oneof=pending confirmed completed cancelled no-show"`
	WidgetID string `form:"widget_id" binding:"omitempty,uuid"`
	DateFrom string `form:"date_from" binding:"omitempty,datetime=2006-01-02"`
	DateTo   string `form:"date_to" binding:"omitempty,datetime=2006-01-02"`
}
