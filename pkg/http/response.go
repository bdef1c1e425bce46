package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

func write(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, APIResponse{Status: status, Message: http.StatusText(status), Data: data})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return write(c, http.StatusOK, data)
}

// ListResponse writes rows, which must be a slice, with its length.
func ListResponse[T any](c echo.Context, rows []T) error {
	if rows == nil {
		rows = []T{}
	}
	return write(c, http.StatusOK, Page{Rows: rows, Total: len(rows)})
}

// ValidationResponse writes the []ValidationError from ReadAndValidateRequest as a 400.
func ValidationResponse(c echo.Context, errs interface{}) error {
	return write(c, http.StatusBadRequest, errs)
}

// ErrorResponse writes an *AppError in err's chain with its own status. Any
// other error is hidden behind a generic 500.
func ErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = InternalError("Something went wrong")
	}
	return write(c, appErr.Status, []*AppError{appErr})
}
