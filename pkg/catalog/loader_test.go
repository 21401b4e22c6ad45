package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()

	template := `{
		"id": "postpartum-support",
		"name": "Postpartum Support",
		"phases": [
			{"id": 1, "name": "Kickoff", "auto_advance": true,
			 "actions": [{"type": "send_message", "params": {"template": "kickoff"}}]},
			{"id": 2, "name": "Wrap Up", "final_phase": true}
		]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "postpartum.json"), []byte(template), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	templates, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, templates, 1)

	assert.Equal(t, "postpartum-support", templates[0].ID)
	require.Len(t, templates[0].Phases, 2)
	assert.True(t, templates[0].Phases[0].AutoAdvance)
	assert.True(t, templates[0].Phases[1].FinalPhase)
}

func TestLoadDirRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o600))

	_, err := LoadDir(dir)
	assert.Error(t, err)
}
