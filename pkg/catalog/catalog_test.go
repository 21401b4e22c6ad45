package catalog

import (
	"log/slog"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloomcare/careflow/pkg/models"
	"github.com/bloomcare/careflow/pkg/registry"
)

func newTestDeps() (*validator.Validate, *registry.Registry) {
	return validator.New(validator.WithRequiredStructEnabled()), registry.NewRegistry(slog.New(slog.DiscardHandler))
}

func twoPhaseTemplate(id string) *models.WorkflowTemplate {
	return &models.WorkflowTemplate{
		ID:   id,
		Name: "Two Phase",
		Phases: []models.PhaseTemplate{
			{ID: 1, Name: "Start", AutoAdvance: true},
			{ID: 2, Name: "Done", FinalPhase: true},
		},
	}
}

func TestNewCatalog(t *testing.T) {
	validate, reg := newTestDeps()

	cat, err := New(validate, reg, twoPhaseTemplate("a"), twoPhaseTemplate("b"))
	require.NoError(t, err)

	_, ok := cat.Template("a")
	assert.True(t, ok)

	_, ok = cat.Template("missing")
	assert.False(t, ok)

	templates := cat.Templates()
	require.Len(t, templates, 2)
	assert.Equal(t, "a", templates[0].ID)
	assert.Equal(t, "b", templates[1].ID)
}

func TestNewCatalogRejectsDuplicateIDs(t *testing.T) {
	validate, reg := newTestDeps()

	_, err := New(validate, reg, twoPhaseTemplate("a"), twoPhaseTemplate("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate template id")
}

func TestNewCatalogRejectsInvalidStructure(t *testing.T) {
	validate, reg := newTestDeps()

	template := twoPhaseTemplate("gated-auto")
	template.Phases[0].RequiresAction = "confirmed"

	_, err := New(validate, reg, template)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrGateWithAutoAdvance)
}

func TestNewCatalogRejectsMissingRequiredFields(t *testing.T) {
	validate, reg := newTestDeps()

	template := twoPhaseTemplate("")

	_, err := New(validate, reg, template)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed validation")
}

func TestClientIntakeTemplateIsValid(t *testing.T) {
	validate, reg := newTestDeps()

	cat, err := New(validate, reg, ClientIntake())
	require.NoError(t, err)

	template, ok := cat.Template(ClientIntakeTemplateID)
	require.True(t, ok)
	assert.Equal(t, 7, template.TotalPhases())

	first, ok := template.Phase(1)
	require.True(t, ok)
	assert.True(t, first.AutoAdvance)
	assert.False(t, first.Gated())

	consultation, ok := template.Phase(3)
	require.True(t, ok)
	assert.Equal(t, GateConsultationCompleted, consultation.RequiresAction)
	assert.False(t, consultation.AutoAdvance)
	assert.Positive(t, consultation.TimeoutHours)

	onboarding, ok := template.Phase(6)
	require.True(t, ok)
	assert.True(t, onboarding.AutoAdvance)
	assert.False(t, onboarding.FinalPhase)

	last, ok := template.Phase(7)
	require.True(t, ok)
	assert.Equal(t, "Active Service", last.Name)
	assert.True(t, last.FinalPhase)
}
