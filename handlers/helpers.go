package handlers

import (
	"net/http"
	"strconv"

	"law_timeline_app_go/middleware"
	"law_timeline_app_go/services"

	"github.com/labstack/echo/v4"
)

// timeline returns the engine wired in main
func timeline() *services.TimelineService {
	return services.Timeline
}

func currentActor(c echo.Context) (services.Actor, error) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return services.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
	}
	return actor, nil
}

func bindJSON(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	return nil
}

// expectedVersion reads an optional expected_version from the query string or form
func expectedVersion(c echo.Context) (*int, error) {
	raw := c.QueryParam("expected_version")
	if raw == "" {
		raw = c.FormValue("expected_version")
	}
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid expected_version")
	}
	return &v, nil
}

type warningsResponse struct {
	Warnings []services.Warning `json:"warnings"`
}

// nonNilWarnings keeps the JSON field an array
func nonNilWarnings(w []services.Warning) []services.Warning {
	if w == nil {
		return []services.Warning{}
	}
	return w
}
