package service

import (
	"context"
	"testing"

	"github.com/officesync/timeline/internal/domain/apperr"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateService_CreateAppliesDefaults(t *testing.T) {
	h := newHarness(t)
	admin := h.seedStaff(t, "root", entity.RoleAdmin)

	tpl, err := h.templateSvc.Create(context.Background(), actorOf(admin), TemplateInput{
		Department:        " Sales ",
		Title:             "Daily Report",
		RoutineDays:       []int{1, 2, 3, 4, 5},
		ChecklistTemplate: []string{"numbers", "  ", "send"},
	})
	require.NoError(t, err)
	assert.NotZero(t, tpl.ID)
	assert.Equal(t, "Sales", tpl.Department)
	assert.Equal(t, "09:00:00", tpl.DefaultStartTime.String())
	assert.Equal(t, 1.0, tpl.DurationHours)
	assert.Equal(t, []string{"numbers", "send"}, tpl.ChecklistTemplate)
	assert.True(t, tpl.IsActive)
	assert.Nil(t, tpl.StartDate)
	require.NotNil(t, tpl.CreatedBy)
	assert.Equal(t, admin.ID, *tpl.CreatedBy)

	stored, err := h.templateStore.GetByID(context.Background(), tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.MustWeekdays(1, 2, 3, 4, 5), stored.RoutineDays)
}

func TestTemplateService_Validation(t *testing.T) {
	h := newHarness(t)
	valid := TemplateInput{Department: "Sales", Title: "T", RoutineDays: []int{1}}

	tests := []struct {
		name   string
		mutate func(in *TemplateInput)
	}{
		{"no department", func(in *TemplateInput) { in.Department = "" }},
		{"no title", func(in *TemplateInput) { in.Title = "  " }},
		{"no weekdays", func(in *TemplateInput) { in.RoutineDays = nil }},
		{"weekday out of range", func(in *TemplateInput) { in.RoutineDays = []int{9} }},
		{"bad start", func(in *TemplateInput) { in.DefaultStartTime = "9am" }},
		{"negative duration", func(in *TemplateInput) { in.DurationHours = -1 }},
		{"too long", func(in *TemplateInput) { in.DurationHours = 25 }},
		{"bad start date", func(in *TemplateInput) { in.StartDate = "tomorrow" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := h.templateSvc.Create(context.Background(), nil, in)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestTemplateService_UpdateAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := actorOf(h.seedStaff(t, "root", entity.RoleAdmin))

	tpl, err := h.templateSvc.Create(ctx, admin, TemplateInput{Department: "Sales", Title: "Report", RoutineDays: []int{1}})
	require.NoError(t, err)

	inactive := false
	updated, err := h.templateSvc.Update(ctx, admin, tpl.ID, TemplateInput{
		Department:       "Sales",
		Title:            "Weekly Report",
		RoutineDays:      []int{5},
		DefaultStartTime: "16:00",
		DurationHours:    0.5,
		StartDate:        "2024-07-01",
		IsActive:         &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, tpl.ID, updated.ID)
	assert.Equal(t, tpl.CreatedBy, updated.CreatedBy)

	stored, err := h.templateStore.GetByID(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Weekly Report", stored.Title)
	assert.False(t, stored.IsActive)
	assert.Equal(t, "16:00:00", stored.DefaultStartTime.String())
	require.NotNil(t, stored.StartDate)
	assert.Equal(t, "2024-07-01", entity.FormatDate(*stored.StartDate))

	active, err := h.templateStore.ListActiveTemplates(ctx, "Sales")
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = h.templateSvc.Update(ctx, admin, 404, TemplateInput{Department: "Sales", Title: "x", RoutineDays: []int{1}})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	require.NoError(t, h.templateSvc.Delete(ctx, admin, tpl.ID))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(h.templateSvc.Delete(ctx, admin, tpl.ID)))
}

func TestTemplateService_DeleteKeepsMaterializedTasks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.seedStaff(t, "alice", "Sales")
	tpl := h.seedTemplate(t, &entity.RoutineTemplate{Department: "Sales", Title: "Daily Report", RoutineDays: entity.AllWeekdays})

	_, err := h.materializer.MaterializeRoutines(ctx, nil, AllStaff(), window(t, "2024-06-03", 1))
	require.NoError(t, err)
	require.NoError(t, h.templateSvc.Delete(ctx, nil, tpl.ID))

	assert.Len(t, h.dayTasks(t, alice.ID, "2024-06-03"), 1)
}

func TestTemplateService_AdminOnlyMutations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := actorOf(h.seedStaff(t, "alice", "Sales"))
	tpl := h.seedTemplate(t, &entity.RoutineTemplate{Department: "Sales", Title: "Daily Report", RoutineDays: entity.AllWeekdays})
	in := TemplateInput{Department: "Sales", Title: "Mine", RoutineDays: []int{1}}

	_, err := h.templateSvc.Create(ctx, alice, in)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = h.templateSvc.Update(ctx, alice, tpl.ID, in)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(h.templateSvc.Delete(ctx, alice, tpl.ID)))

	listed, err := h.templateSvc.List(ctx, "Sales")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Daily Report", listed[0].Title)

	none, err := h.templateSvc.List(ctx, "Finance")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
