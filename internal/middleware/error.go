package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/triage-api/pkg/httputil"
	"github.com/jwalitptl/triage-api/pkg/validator"
)

// ErrorResponse has the same shape as handler.Response for failures.
type ErrorResponse struct {
	Status    string           `json:"status"`
	Message   string           `json:"message"`
	Errors    validator.Errors `json:"errors,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
}

func newErrorResponse(c *gin.Context, message string) ErrorResponse {
	return ErrorResponse{
		Status:    "error",
		Message:   message,
		RequestID: c.GetString(ContextRequestID),
	}
}

// ErrorHandler renders the last error handlers attached with c.Error. The
// status comes from the AppError code; causes of server errors stay in the log.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("request_id", c.GetString(ContextRequestID)).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last().Err
		resp := newErrorResponse(c, httputil.Message(lastErr))
		resp.Errors = httputil.FieldErrors(lastErr)
		c.AbortWithStatusJSON(httputil.StatusCode(lastErr), resp)
	}
}
