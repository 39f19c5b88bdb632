package handlers

import (
	"net/http"

	"law_timeline_app_go/services"

	"github.com/labstack/echo/v4"
)

type seedMilestonesRequest struct {
	Steps []string `json:"steps"`
}

type reorderMilestonesRequest struct {
	MilestoneIDs []string `json:"milestone_ids"`
}

// GetCaseProgressHandler returns the derived milestone view of a case
func GetCaseProgressHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	progress, err := timeline().GetCaseProgress(actor, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, progress)
}

// SeedMilestonesHandler creates milestones from an ordered list of steps
func SeedMilestonesHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req seedMilestonesRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	milestones, err := timeline().SeedMilestones(actor, c.Param("id"), req.Steps)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, milestones)
}

// CreateCaseMilestoneHandler appends a milestone to a case
func CreateCaseMilestoneHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var input services.MilestoneInput
	if err := bindJSON(c, &input); err != nil {
		return err
	}
	milestone, err := timeline().AddMilestone(actor, c.Param("id"), input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, milestone)
}

// CompleteCaseMilestoneHandler marks a milestone as completed
func CompleteCaseMilestoneHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	progress, err := timeline().CompleteMilestone(actor, c.Param("id"), c.Param("mid"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, progress)
}

// ResetCaseMilestoneHandler moves a milestone back to pending
func ResetCaseMilestoneHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	progress, err := timeline().ResetMilestone(actor, c.Param("id"), c.Param("mid"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, progress)
}

// ReorderCaseMilestonesHandler rewrites the milestone order of a case
func ReorderCaseMilestonesHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req reorderMilestonesRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	progress, err := timeline().ReorderMilestones(actor, c.Param("id"), req.MilestoneIDs)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, progress)
}

// DeleteCaseMilestoneHandler removes a milestone
func DeleteCaseMilestoneHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	if err := timeline().DeleteMilestone(actor, c.Param("id"), c.Param("mid")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
