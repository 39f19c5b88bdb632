package handlers

import (
	"net/http"

	"law_timeline_app_go/services"

	"github.com/labstack/echo/v4"
)

// CreateCaseHandler opens a case, optionally from a template
func CreateCaseHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var input services.CaseInput
	if err := bindJSON(c, &input); err != nil {
		return err
	}

	result, err := timeline().CreateCase(actor, input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

// GetCaseHandler returns one case visible to the actor
func GetCaseHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	caseRecord, err := timeline().GetCase(actor, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, caseRecord)
}

// UpdateCaseHandler applies a partial case update
func UpdateCaseHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var input services.CaseUpdate
	if err := bindJSON(c, &input); err != nil {
		return err
	}

	caseRecord, err := timeline().UpdateCase(actor, c.Param("id"), input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, caseRecord)
}

// GetCaseAuditHandler lists the audit trail of a case
func GetCaseAuditHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	logs, err := timeline().GetCaseAuditHistory(actor, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, logs)
}

// TeardownClientHandler purges a client and every case they own (admin only)
func TeardownClientHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	result, err := timeline().TeardownClient(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	result.Warnings = nonNilWarnings(result.Warnings)
	return c.JSON(http.StatusOK, result)
}
