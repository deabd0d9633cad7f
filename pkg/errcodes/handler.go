package errcodes

import (
	"net/http"

	"github.com/iancoleman/strcase"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/errutils"

	"github.com/kerbaras/onepiece-offline/pkg/data"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Handle is an Echo error handler. Chapters that are not available or not
// downloaded become 404s; any other error is an internal server error.
func (h *Handler) Handle(err error, c echo.Context) {
	if errutils.IsIgnorableErr(err) {
		logger.FromEchoContext(c).Err(err).Warn("broken pipe")
		return
	}

	httpCode, payload := h.generatePayload(err)

	if httpCode == http.StatusInternalServerError {
		logger.FromEchoContext(c).Err(err).Error("server error")
	}

	if err := c.JSON(httpCode, payload); err != nil {
		logger.FromEchoContext(c).Err(errors.WithStack(err)).Error("error handler json error")
	}
}

func (h *Handler) generatePayload(err error) (int, map[string]interface{}) {
	code := ""
	msg := ""
	httpCode := http.StatusInternalServerError

	var he *echo.HTTPError
	var e *Error
	switch {
	case errors.As(err, &e):
		httpCode = e.HTTPCode
		code = e.Code
		msg = e.Message
	case errors.As(err, &he):
		httpCode = he.Code
		msg, _ = he.Message.(string)
		if msg == "" {
			msg = http.StatusText(he.Code)
		}
		code = strcase.ToSnake(msg)
	case errors.Is(err, data.ErrNotAvailable):
		httpCode = http.StatusNotFound
		code = "not_available"
		msg = err.Error()
	case errors.Is(err, data.ErrNotFound):
		httpCode = http.StatusNotFound
		code = "not_found"
		msg = err.Error()
	case errors.Is(err, data.ErrConfiguration):
		code = "configuration_error"
		msg = err.Error()
	}

	if httpCode == http.StatusInternalServerError && msg == "" {
		code = "internal_server_error"
		msg = "Internal Server Error"
	}

	return httpCode, map[string]interface{}{
		"error": map[string]interface{}{
			"code":        code,
			"message":     msg,
			"status_code": httpCode,
		},
	}
}
