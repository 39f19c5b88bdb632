package handlers

import (
	"net/http"

	"law_timeline_app_go/services"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/labstack/echo/v4"
)

var logger = loggo.GetLogger("lawtimeline.handlers")

// httpError maps the service error taxonomy onto HTTP status codes.
// Unknown errors are logged and reported as 500 without details.
func httpError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errors.NotValid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, errors.Forbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, errors.NotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, errors.NotSupported):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	logger.Errorf("request failed: %s", errors.ErrorStack(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
}
