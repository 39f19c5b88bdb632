package handlers

import (
	"net/http"
	"testing"

	"law_timeline_app_go/models"
	"law_timeline_app_go/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMilestoneRoutes(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.doJSON(t, http.MethodPost, f.casePath("/milestones/seed"), f.lawyer.ID, map[string]interface{}{
		"steps": []string{"Intake", "Filing", "Hearing"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var seeded []models.CaseMilestone
	decode(t, rec, &seeded)
	require.Len(t, seeded, 3)

	rec = f.doJSON(t, http.MethodPost, f.casePath("/milestones"), f.lawyer.ID, map[string]interface{}{"title": "Judgment"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var added models.CaseMilestone
	decode(t, rec, &added)
	assert.Equal(t, 4, added.SortOrder)

	rec = f.do(http.MethodPost, f.casePath("/milestones/"+seeded[0].ID+"/complete"), f.lawyer.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var progress services.CaseProgress
	decode(t, rec, &progress)
	assert.Equal(t, 1, progress.CompletedCount)
	assert.Equal(t, 25, progress.Percent)
	require.NotNil(t, progress.Current)
	assert.Equal(t, seeded[1].ID, progress.Current.ID)

	t.Run("client reads progress but cannot change it", func(t *testing.T) {
		rec := f.do(http.MethodGet, f.casePath("/progress"), f.client.ID, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var p services.CaseProgress
		decode(t, rec, &p)
		assert.Equal(t, 4, p.Total)

		rec = f.do(http.MethodPost, f.casePath("/milestones/"+seeded[1].ID+"/complete"), f.client.ID, nil, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("reset", func(t *testing.T) {
		rec := f.do(http.MethodPost, f.casePath("/milestones/"+seeded[0].ID+"/reset"), f.lawyer.ID, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var p services.CaseProgress
		decode(t, rec, &p)
		assert.Equal(t, 0, p.CompletedCount)
	})

	t.Run("reorder", func(t *testing.T) {
		order := []string{added.ID, seeded[2].ID, seeded[1].ID, seeded[0].ID}
		rec := f.doJSON(t, http.MethodPut, f.casePath("/milestones/order"), f.lawyer.ID, map[string]interface{}{"milestone_ids": order})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var p services.CaseProgress
		decode(t, rec, &p)
		require.Len(t, p.Milestones, 4)
		assert.Equal(t, added.ID, p.Milestones[0].ID)

		rec = f.doJSON(t, http.MethodPut, f.casePath("/milestones/order"), f.lawyer.ID, map[string]interface{}{"milestone_ids": order[:2]})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "every milestone must be named")
	})

	t.Run("delete", func(t *testing.T) {
		rec := f.do(http.MethodDelete, f.casePath("/milestones/"+added.ID), f.lawyer.ID, nil, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = f.do(http.MethodDelete, f.casePath("/milestones/"+added.ID), f.lawyer.ID, nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
