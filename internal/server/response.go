package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"project_report_srv/internal/report"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// FunctionKeyHeader carries the function key; the "code" query parameter is
// accepted as well.
const FunctionKeyHeader = "x-functions-key"

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	StatusCode int    `json:"StatusCode"`
	StatusName string `json:"StatusName"`
	Message    string `json:"Message"`
}

// StatusName is the status text without spaces, e.g. "BadRequest".
func StatusName(status int) string {
	return strings.ReplaceAll(http.StatusText(status), " ", "")
}

// WriteError writes the error payload. A nil error yields the bare status.
func WriteError(c echo.Context, status int, err error) error {
	if err == nil {
		return c.NoContent(status)
	}

	message := http.StatusText(status)
	var rerr *report.Error
	if errors.As(err, &rerr) && rerr.Message != "" {
		message = rerr.Message
	}

	return c.JSON(status, ErrorResponse{
		StatusCode: status,
		StatusName: StatusName(status),
		Message:    message,
	})
}

// FunctionKeyAuth rejects requests without the configured key. An empty key
// disables the check.
func FunctionKeyAuth(key string) echo.MiddlewareFunc {
	if key == "" {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:" + FunctionKeyHeader + ",query:code",
		Validator: func(auth string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(auth), []byte(key)) == 1, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return WriteError(c, http.StatusUnauthorized,
				report.NewError(report.KindUnauthorized, "Missing or invalid function key", err))
		},
	})
}
