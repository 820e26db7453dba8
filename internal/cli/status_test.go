package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicta-tech/bitsmith/internal/application/tagging"
	"github.com/relicta-tech/bitsmith/internal/domain/component"
)

func TestOutputStatusText(t *testing.T) {
	status := &tagging.StatusOutput{Components: []tagging.ComponentStatus{
		{ID: component.MustParseID("acme/new"), State: tagging.ChangeNew},
		{ID: component.MustParseID("acme/foo"), State: tagging.ChangeModified, LastVersion: "1.0.0", SoftTag: "1.0.1"},
		{ID: component.MustParseID("acme/bar"), State: tagging.ChangeUnmodified, LastVersion: "0.2.0"},
		{
			ID:     component.MustParseID("acme/broken"),
			State:  tagging.ChangeNew,
			Issues: []component.Issue{{Kind: component.IssueMissingFiles}},
		},
	}}

	var buf bytes.Buffer
	outputStatusText(&buf, status)
	out := buf.String()

	assert.Contains(t, out, "new components\n     > acme/new\n     > acme/broken\n")
	assert.Contains(t, out, "modified components\n     > acme/foo (1.0.0)\n")
	assert.Contains(t, out, "soft-tagged components\n")
	assert.Contains(t, out, "     > acme/foo@1.0.1\n")
	assert.Contains(t, out, "components with issues\n")
	assert.Contains(t, out, "     > acme/broken\n         MissingFiles\n")
	assert.NotContains(t, out, "acme/bar")
	assert.NotContains(t, out, "nothing to tag")
}

func TestOutputStatusText_UpToDate(t *testing.T) {
	status := &tagging.StatusOutput{Components: []tagging.ComponentStatus{
		{ID: component.MustParseID("acme/bar"), State: tagging.ChangeUnmodified, LastVersion: "0.2.0"},
	}}

	var buf bytes.Buffer
	outputStatusText(&buf, status)
	assert.Equal(t, "✓ nothing to tag, every component is up to date\n", buf.String())
}

func TestRunStatus_JSON(t *testing.T) {
	withTestConfig(t, "json")
	withTestApp(t, &commandTestApp{status: &fakeStatus{out: &tagging.StatusOutput{
		Components: []tagging.ComponentStatus{
			{ID: component.MustParseID("acme/foo"), State: tagging.ChangeModified, LastVersion: "1.0.0"},
		},
	}}})

	out, err := runCommand(t, newStatusCmd())
	require.NoError(t, err)

	var got struct {
		Components []struct {
			ID          string `json:"id"`
			State       string `json:"state"`
			LastVersion string `json:"lastVersion"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Components, 1)
	assert.Equal(t, "acme/foo", got.Components[0].ID)
	assert.Equal(t, "modified", got.Components[0].State)
	assert.Equal(t, "1.0.0", got.Components[0].LastVersion)
}
