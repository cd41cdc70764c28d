package response

import (
	"fmt"
	"net/http"

	"bookingtms/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RespondJSON writes the standard envelope. An error passed as errors is
// rendered as its message. 500 responses log the detail and never expose it.
func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	if err, ok := errors.(error); ok {
		errors = err.Error()
	}
	if code == http.StatusInternalServerError && errors != nil {
		logger.GetDefault().LogHTTPError(c, fmt.Errorf("%s: %v", message, errors), code)
		errors = "internal error"
	}
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}
