package errs

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the JSON body written for failed requests.
type Response struct {
	Error     string `json:"error"`
	Code      Kind   `json:"code,omitempty"`
	Retryable bool   `json:"retryable"`
}

// Abort writes err as a JSON error response. Untyped errors are logged and
// reported as internal errors without leaking their text.
func Abort(c *gin.Context, logger *zap.Logger, err error) {
	status := HTTPStatus(err)
	resp := Response{
		Error:     err.Error(),
		Code:      KindOf(err),
		Retryable: Retryable(err),
	}
	if status == http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		resp.Error = "internal server error"
	}
	c.AbortWithStatusJSON(status, resp)
}

// BadRequest aborts with a validation error built from msg.
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{Error: msg, Code: KindValidation})
}
