package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/labtwin-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Envelope is the shape of every JSON response.
type Envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Message string    `json:"message,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, Envelope{
		Success: false,
		Message: msg,
		Error: &APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAPIError renders a service error. Anything that is not an
// *apierr.Error is a 500 with the fallback message; internal detail never
// reaches the client for 5xx responses.
func RespondAPIError(c *gin.Context, err error, fallback string) {
	e, ok := apierr.As(err)
	if !ok {
		_ = c.Error(err)
		RespondError(c, http.StatusInternalServerError, apierr.CodeInternal, errorString(fallback))
		return
	}
	msg := e.Message
	if msg == "" || (e.Status >= 500 && e.Code == apierr.CodePersistenceFailed) {
		msg = fallback
	}
	if e.Status >= 500 {
		_ = c.Error(err)
	}
	status := e.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	RespondError(c, status, e.Code, errorString(msg))
}

type errorString string

func (e errorString) Error() string { return string(e) }

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: payload})
}

func RespondMessage(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: msg})
}
