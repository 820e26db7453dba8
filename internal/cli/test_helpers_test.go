package cli

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/relicta-tech/bitsmith/internal/application/tagging"
	"github.com/relicta-tech/bitsmith/internal/config"
	"github.com/relicta-tech/bitsmith/internal/domain/artifact"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

// commandTestApp provides a minimal cliApp implementation for testing.
type commandTestApp struct {
	engine    *fakeEngine
	status    *fakeStatus
	untag     *fakeUntag
	extractor *fakeExtractor
}

func (a *commandTestApp) Close() error                 { return nil }
func (a *commandTestApp) TagEngine() tagEngine         { return a.engine }
func (a *commandTestApp) Status() statusUseCase        { return a.status }
func (a *commandTestApp) UntagSoft() untagSoftUseCase  { return a.untag }
func (a *commandTestApp) Artifacts() artifactExtractor { return a.extractor }

type fakeEngine struct {
	results *tag.Results
	err     error
	got     *tag.Request
}

func (f *fakeEngine) Tag(_ context.Context, req tag.Request) (*tag.Results, error) {
	f.got = &req
	return f.results, f.err
}

type fakeStatus struct {
	out *tagging.StatusOutput
}

func (f *fakeStatus) Execute(context.Context) (*tagging.StatusOutput, error) {
	return f.out, nil
}

type fakeUntag struct {
	out *tagging.UntagSoftOutput
	got tagging.UntagSoftInput
}

func (f *fakeUntag) Execute(_ context.Context, in tagging.UntagSoftInput) (*tagging.UntagSoftOutput, error) {
	f.got = in
	return f.out, nil
}

type fakeExtractor struct {
	grouped    []artifact.Grouped
	warnings   []string
	query      artifact.Query
	exportedTo string
}

func (f *fakeExtractor) List(_ context.Context, q artifact.Query) ([]artifact.Grouped, []string, error) {
	f.query = q
	return f.grouped, f.warnings, nil
}

func (f *fakeExtractor) Export(_ context.Context, _ []artifact.Grouped, outDir string) error {
	f.exportedTo = outDir
	return nil
}

// withTestApp replaces the container with app and returns how many times
// it was created.
func withTestApp(t *testing.T, app cliApp) *int {
	t.Helper()
	calls := 0
	orig := newContainerApp
	newContainerApp = func(context.Context, *config.Config) (cliApp, error) {
		calls++
		return app, nil
	}
	t.Cleanup(func() { newContainerApp = orig })
	return &calls
}

// withTestConfig installs a default configuration with the given output
// format.
func withTestConfig(t *testing.T, format string) {
	t.Helper()
	orig := cfg
	cfg = config.DefaultConfig()
	cfg.Output.Color = false
	cfg.Output.Format = format
	t.Cleanup(func() { cfg = orig })
}

// runCommand executes cmd with args and returns its stdout.
func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}
