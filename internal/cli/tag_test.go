package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicta-tech/bitsmith/internal/application/tagging"
	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
	"github.com/relicta-tech/bitsmith/internal/domain/version"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
)

func fooBarResults() *tag.Results {
	return &tag.Results{
		TaggedComponents: []tag.TaggedComponent{
			{ID: component.MustParseID("acme/foo@1.0.0"), PreviousVersion: "0.0.1"},
		},
		AutoTaggedResults: []tag.AutoTagResult{{
			TriggeredBy: component.MustParseID("acme/foo"),
			Component: tag.TaggedComponent{
				ID:              component.MustParseID("acme/bar@0.0.2"),
				PreviousVersion: "0.0.1",
				AutoTagged:      true,
			},
		}},
	}
}

func TestRunTag_NothingToTag(t *testing.T) {
	withTestConfig(t, "text")
	withTestApp(t, &commandTestApp{engine: &fakeEngine{}})

	out, err := runCommand(t, newTagCmd(), "-m", "fix")
	require.NoError(t, err)
	assert.Equal(t, "nothing to tag\n", out)
}

func TestRunTag_NothingToTagKeepsWarnings(t *testing.T) {
	withTestConfig(t, "text")
	withTestApp(t, &commandTestApp{engine: &fakeEngine{}})

	out, err := runCommand(t, newTagCmd(), "-f", "-m", "fix", "foo")
	require.NoError(t, err)
	assert.Equal(t, tagging.WarnForceDeprecated+"\n\nnothing to tag\n", out)
}

func TestRunTag_Report(t *testing.T) {
	withTestConfig(t, "text")
	engine := &fakeEngine{results: fooBarResults()}
	withTestApp(t, &commandTestApp{engine: engine})

	out, err := runCommand(t, newTagCmd(), "foo@1.0.0", "-m", "release foo")
	require.NoError(t, err)

	assert.Contains(t, out, "2 component(s) tagged\n")
	assert.Contains(t, out, "\nchanged components\n(components that got a version bump)\n")
	assert.Contains(t, out, "     > acme/foo@1.0.0\n       auto-tagged dependents:\n            acme/bar@0.0.2\n")
	assert.NotContains(t, out, "new components")

	require.NotNil(t, engine.got)
	assert.Equal(t, []string{"foo@1.0.0"}, engine.got.IDs)
	assert.Equal(t, "release foo", engine.got.Message)
}

func TestRunTag_ReportFailures(t *testing.T) {
	withTestConfig(t, "text")
	results := fooBarResults()
	results.Failures = []tag.Failure{{
		Component: component.MustParseID("acme/baz"),
		Kind:      tag.FailureIssues,
		Reason:    "blocking issues found",
		Issues:    []component.Issue{{Kind: component.IssueMissingFiles}},
	}}
	withTestApp(t, &commandTestApp{engine: &fakeEngine{results: results}})

	out, err := runCommand(t, newTagCmd(), "-m", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "1 component(s) were not tagged\n")
	assert.Contains(t, out, "     ✗ acme/baz (issues): blocking issues found\n")
}

func TestRunTag_SoftReport(t *testing.T) {
	withTestConfig(t, "text")
	results := fooBarResults()
	results.IsSoftTag = true
	withTestApp(t, &commandTestApp{engine: &fakeEngine{results: results}})

	out, err := runCommand(t, newTagCmd(), "--soft", "-m", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "2 component(s) soft-tagged\n")
	assert.Contains(t, out, "soft-tagged changed components\n")
	assert.Contains(t, out, tagging.SoftTagClarification)
}

func TestRunTag_JSON(t *testing.T) {
	withTestConfig(t, "json")
	withTestApp(t, &commandTestApp{engine: &fakeEngine{results: fooBarResults()}})

	out, err := runCommand(t, newTagCmd(), "-m", "x")
	require.NoError(t, err)

	var report tagging.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "2 component(s) tagged", report.Headline)
	assert.Equal(t, map[string]string{"acme/foo": "1.0.0", "acme/bar": "0.0.2"}, report.Versions)
	require.Len(t, report.Sections, 1)
	assert.Equal(t, []string{"acme/bar@0.0.2"}, report.Sections[0].Components[0].AutoTagged)
}

func TestRunTag_FlagErrorsStopBeforeTheWorkspace(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"soft and persist", []string{"--soft", "--persist", "-m", "x"}},
		{"two release types", []string{"--minor", "--major", "-m", "x"}},
		{"ignore issues without a value", []string{"--ignore-issues", "-m", "x"}},
		{"zero increment", []string{"--increment-by", "0", "-m", "x"}},
		{"removed flag", []string{"--ignore-unresolved-dependencies"}},
		{"invalid version", []string{"--ver", "one", "-m", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withTestConfig(t, "text")
			calls := withTestApp(t, &commandTestApp{engine: &fakeEngine{}})

			_, err := runCommand(t, newTagCmd(), tt.args...)
			require.Error(t, err)
			assert.True(t, bserrors.IsKind(err, bserrors.KindFlags), "got %v", err)
			assert.Zero(t, *calls)
		})
	}
}

func TestRunTag_OptionalValueFlags(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantType  version.BumpType
		wantPreID string
		check     func(t *testing.T, req *tag.Request)
	}{
		{
			name:     "bare pre-release",
			args:     []string{"--pre-release", "-m", "x"},
			wantType: version.BumpPrerelease,
		},
		{
			name:      "pre-release with id",
			args:      []string{"--pre-release=dev", "-m", "x"},
			wantType:  version.BumpPrerelease,
			wantPreID: "dev",
		},
		{
			name:     "default release type",
			args:     []string{"-m", "x"},
			wantType: version.BumpPatch,
		},
		{
			name:     "ignore every issue",
			args:     []string{"-i=*", "-m", "x"},
			wantType: version.BumpPatch,
			check: func(t *testing.T, req *tag.Request) {
				assert.True(t, req.IgnoreIssues.IsWildcard())
			},
		},
		{
			name:     "editor command",
			args:     []string{"--editor=nano", "-m", "x"},
			wantType: version.BumpPatch,
			check: func(t *testing.T, req *tag.Request) {
				assert.True(t, req.Editor)
				assert.Equal(t, "nano", req.EditorCommand)
			},
		},
		{
			name:     "deprecated scope with version",
			args:     []string{"--scope=2.0.0", "-m", "x"},
			wantType: "",
			check: func(t *testing.T, req *tag.Request) {
				assert.True(t, req.Unmodified)
				assert.Equal(t, "2.0.0", req.Version)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withTestConfig(t, "text")
			engine := &fakeEngine{}
			withTestApp(t, &commandTestApp{engine: engine})

			_, err := runCommand(t, newTagCmd(), tt.args...)
			require.NoError(t, err)
			require.NotNil(t, engine.got)
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, engine.got.ReleaseType)
			}
			assert.Equal(t, tt.wantPreID, engine.got.PreReleaseID)
			if tt.check != nil {
				tt.check(t, engine.got)
			}
		})
	}
}

func TestTagCmd_OptionalValueFlagsDocumentAttachedValues(t *testing.T) {
	cmd := newTagCmd()
	for _, name := range []string{"editor", "pre-release", "ignore-issues", "all", "scope"} {
		f := cmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, optionalNoValue, f.NoOptDefVal, name)
		assert.Contains(t, f.Usage, `attach`, name)
		assert.Contains(t, f.Usage, `"="`, name)
	}
}

func TestRunTag_IncrementBy(t *testing.T) {
	withTestConfig(t, "text")
	engine := &fakeEngine{}
	withTestApp(t, &commandTestApp{engine: engine})

	_, err := runCommand(t, newTagCmd(), "--minor", "--increment-by", "3", "-m", "x")
	require.NoError(t, err)
	assert.Equal(t, version.BumpMinor, engine.got.ReleaseType)
	assert.Equal(t, uint64(3), engine.got.IncrementBy)
}
