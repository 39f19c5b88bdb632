package handlers

import (
	"net/http"

	"law_timeline_app_go/models"
	"law_timeline_app_go/services"

	"github.com/labstack/echo/v4"
)

type keyDateView struct {
	models.KeyDate
	Reminder *models.Reminder `json:"reminder"`
}

// ListKeyDatesHandler lists the key dates of a case in chronological order
func ListKeyDatesHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	keyDates, err := timeline().ListKeyDates(actor, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	views := make([]keyDateView, 0, len(keyDates))
	for _, kd := range keyDates {
		views = append(views, keyDateView{KeyDate: kd, Reminder: kd.Reminder})
	}
	return c.JSON(http.StatusOK, views)
}

// GetKeyDateHandler returns one key date with its reminder
func GetKeyDateHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	kd, err := timeline().GetKeyDate(actor, c.Param("id"), c.Param("kid"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, keyDateView{KeyDate: *kd, Reminder: kd.Reminder})
}

// CreateKeyDateHandler registers a key date and reconciles its reminder
func CreateKeyDateHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var input services.KeyDateInput
	if err := bindJSON(c, &input); err != nil {
		return err
	}
	result, err := timeline().CreateKeyDate(c.Request().Context(), actor, c.Param("id"), input)
	if err != nil {
		return httpError(err)
	}
	result.Warnings = nonNilWarnings(result.Warnings)
	return c.JSON(http.StatusCreated, result)
}

// UpdateKeyDateHandler replaces a key date and reconciles its reminder
func UpdateKeyDateHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var input services.KeyDateInput
	if err := bindJSON(c, &input); err != nil {
		return err
	}
	if input.ExpectedVersion == nil {
		if input.ExpectedVersion, err = expectedVersion(c); err != nil {
			return err
		}
	}
	result, err := timeline().UpdateKeyDate(c.Request().Context(), actor, c.Param("id"), c.Param("kid"), input)
	if err != nil {
		return httpError(err)
	}
	result.Warnings = nonNilWarnings(result.Warnings)
	return c.JSON(http.StatusOK, result)
}

// DeleteKeyDateHandler removes a key date, its reminder and its calendar event
func DeleteKeyDateHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	version, err := expectedVersion(c)
	if err != nil {
		return err
	}
	warnings, err := timeline().DeleteKeyDate(c.Request().Context(), actor, c.Param("id"), c.Param("kid"), version)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, warningsResponse{Warnings: nonNilWarnings(warnings)})
}
