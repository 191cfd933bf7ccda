package response

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/physio/physio/internal/platform/i18n"
	"github.com/physio/physio/internal/platform/validation"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Empty renders as {} in the data slot.
var Empty = struct{}{}

// Success writes a successful envelope with a localized message.
func Success(c echo.Context, code int, key i18n.Key, data interface{}) error {
	if data == nil {
		data = Empty
	}
	return c.JSON(code, Envelope{
		Success: true,
		Message: i18n.T(i18n.FromContext(c.Request().Context()), key),
		Data:    data,
	})
}

// Fail writes a failed envelope with a localized message.
func Fail(c echo.Context, code int, key i18n.Key, data interface{}) error {
	if data == nil {
		data = Empty
	}
	return c.JSON(code, Envelope{
		Success: false,
		Message: i18n.T(i18n.FromContext(c.Request().Context()), key),
		Data:    data,
	})
}

// messageKeys maps HTTP statuses raised through echo.HTTPError to the
// envelope message.
var messageKeys = map[int]i18n.Key{
	http.StatusBadRequest:            i18n.ErrBadRequest,
	http.StatusUnauthorized:          i18n.ErrUnauthenticated,
	http.StatusForbidden:             i18n.ErrForbidden,
	http.StatusNotFound:              i18n.ErrNotFound,
	http.StatusMethodNotAllowed:      i18n.ErrMethodNotAllow,
	http.StatusRequestEntityTooLarge: i18n.ErrPayloadTooLarge,
	http.StatusUnsupportedMediaType:  i18n.ErrBadRequest,
	http.StatusUnprocessableEntity:   i18n.ErrValidation,
	http.StatusTooManyRequests:       i18n.ErrTooManyRequests,
	http.StatusServiceUnavailable:    i18n.ErrUnavailable,
	http.StatusGatewayTimeout:        i18n.ErrTimeout,
}

// ErrorHandler renders every error returned by a handler or middleware as an
// envelope:
//   - validation.Errors → 422 with the field map as data
//   - *echo.HTTPError   → its status code
//   - anything else     → 500, logged
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			code = http.StatusInternalServerError
			key  = i18n.ErrInternal
			data interface{}
		)

		var httpErr *echo.HTTPError
		if ve, ok := validation.AsErrors(err); ok {
			code, key, data = http.StatusUnprocessableEntity, i18n.ErrValidation, ve
		} else if errors.As(err, &httpErr) {
			code = httpErr.Code
			if k, ok := messageKeys[code]; ok {
				key = k
			}
			if httpErr.Internal != nil {
				logger.Debug().Err(httpErr.Internal).Int("status", code).Msg("request rejected")
			}
		} else {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("unhandled error")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = Fail(c, code, key, data)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("failed to write error response")
		}
	}
}
