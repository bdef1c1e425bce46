package http

import "github.com/labstack/echo/v4"

// Handler mounts a group of routes on the shared echo instance.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
