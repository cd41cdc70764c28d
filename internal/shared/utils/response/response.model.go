package response

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// StandardApiResponse is the envelope every JSON endpoint returns
type StandardApiResponse struct {
	Status     string      `json:"status"`
	StatusCode int         `json:"status_code"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Errors     interface{} `json:"errors,omitempty"`
}
