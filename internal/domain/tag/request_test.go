package tag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/version"
)

func TestRequest_Directive(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want version.Directive
	}{
		{"default patch", Request{}, version.DefaultDirective()},
		{"explicit wins", Request{Version: "1.0.0", ReleaseType: version.BumpMajor}, version.NewExplicitDirective("1.0.0")},
		{"minor by two", Request{ReleaseType: version.BumpMinor, IncrementBy: 2}, version.NewBumpDirective(version.BumpMinor, 2)},
		{"prerelease", Request{ReleaseType: version.BumpPrerelease, PreReleaseID: "dev"}, version.NewPrereleaseDirective("dev")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.Directive())
		})
	}
}

func TestRequest_Pipelines(t *testing.T) {
	tests := []struct {
		name      string
		req       Request
		pipelines bool
		tests     bool
	}{
		{"default", Request{}, true, true},
		{"skip tests", Request{SkipTests: true}, false, false},
		{"skip tests with build", Request{SkipTests: true, Build: true}, true, false},
		{"soft", Request{Soft: true}, false, false},
		{"disabled", Request{DisableTagAndSnapPipelines: true, Build: true}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.pipelines, tt.req.RunsPipelines())
			assert.Equal(t, tt.tests, tt.req.RunsTests())
		})
	}
}

func TestResults_Versions(t *testing.T) {
	foo := component.MustParseID("acme/foo")
	bar := component.MustParseID("acme/bar")
	r := Results{
		TaggedComponents: []TaggedComponent{{ID: foo.WithVersion("1.0.0")}},
		AutoTaggedResults: []AutoTagResult{
			{TriggeredBy: foo, Component: TaggedComponent{ID: bar.WithVersion("0.0.2"), AutoTagged: true}},
		},
	}

	assert.Equal(t, 2, r.Count())
	assert.Equal(t, map[string]string{"acme/foo": "1.0.0", "acme/bar": "0.0.2"}, r.Versions())
}

func TestSoftTagRecord_Tagged(t *testing.T) {
	rec := SoftTagRecord{
		Component:       component.MustParseID("acme/bar"),
		Version:         "0.0.2",
		PreviousVersion: "0.0.1",
		AutoTaggedBy:    []component.ID{component.MustParseID("acme/foo")},
	}

	got := rec.Tagged()
	assert.Equal(t, "acme/bar@0.0.2", got.ID.String())
	assert.True(t, got.AutoTagged)
	assert.False(t, got.IsNew)
}
