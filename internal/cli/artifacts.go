package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relicta-tech/bitsmith/internal/domain/artifact"
	"github.com/relicta-tech/bitsmith/internal/ui"
)

const (
	indentTitle    = "  "
	indentSubTitle = "    "
	indentFiles    = "      "

	artifactsSavedMsg = "The above files were saved successfully to the file system"
)

var artifactsFlags struct {
	aspect string
	task   string
	files  string
	outDir string
}

var artifactsCmd = newArtifactsCmd()

// newArtifactsCmd builds the artifacts command. Building it resets
// artifactsFlags.
func newArtifactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts <pattern...>",
		Short: "List and download component artifacts",
		Long: `List the artifacts recorded with component versions, optionally
copying them to a directory.

Patterns match component ids and accept globs ("acme/*"); the latest tagged
version is used unless the pattern ends with "@<version>".

Examples:
  # List every artifact of the compiler aspect
  bitsmith artifacts "**" --aspect compiler

  # Download the declaration files of one component
  bitsmith artifacts acme/ui --files "**/*.d.ts" --out-dir ./out`,
		Args: cobra.MinimumNArgs(1),
		RunE: runArtifacts,
	}

	f := cmd.Flags()
	f.StringVar(&artifactsFlags.aspect, "aspect", "", "show/download only artifacts generated by this aspect-id")
	f.StringVar(&artifactsFlags.task, "task", "", "show/download only artifacts generated by this task-id")
	f.StringVar(&artifactsFlags.files, "files", "", "show/download only artifacts matching the given files or the glob pattern (wrap glob patterns in quotes)")
	f.StringVar(&artifactsFlags.outDir, "out-dir", "", "download the files to the specified dir")
	return cmd
}

// artifactsOutput is the JSON form of the artifacts command.
type artifactsOutput struct {
	Components []artifact.Grouped `json:"components"`
	Warnings   []string           `json:"warnings,omitempty"`
	OutDir     string             `json:"outDir,omitempty"`
}

func runArtifacts(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	app, err := newContainerApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer closeApp(cmd.ErrOrStderr(), app)

	extractor := app.Artifacts()
	grouped, warnings, err := extractor.List(ctx, artifact.Query{
		Patterns: args,
		Aspect:   artifactsFlags.aspect,
		Task:     artifactsFlags.task,
		Files:    artifactsFlags.files,
		OutDir:   artifactsFlags.outDir,
	})
	if err != nil {
		return err
	}

	if artifactsFlags.outDir != "" && len(grouped) > 0 {
		err := ui.RunWithSpinner(ctx, spinnerOptions(cmd, "exporting artifacts"), func(ctx context.Context) error {
			return extractor.Export(ctx, grouped, artifactsFlags.outDir)
		})
		if err != nil {
			return err
		}
	}

	if isJSONOutput() {
		return writeJSON(out, artifactsOutput{Components: grouped, Warnings: warnings, OutDir: artifactsFlags.outDir})
	}
	renderArtifacts(out, grouped, warnings, artifactsFlags.outDir != "")
	return nil
}

// renderArtifacts writes the listing: the component id, then each aspect,
// its tasks and their files, indented.
func renderArtifacts(w io.Writer, grouped []artifact.Grouped, warnings []string, saved bool) {
	for _, warning := range warnings {
		fmt.Fprintln(w, styles.Warning.Render(warning))
	}
	if len(grouped) == 0 {
		return
	}

	components := make([]string, 0, len(grouped))
	for _, g := range grouped {
		aspects := make([]string, 0, len(g.Aspects))
		for _, a := range g.Aspects {
			var b strings.Builder
			b.WriteString(indentTitle + styles.Success.Render(a.AspectID))
			for _, t := range a.Tasks {
				b.WriteString("\n" + indentSubTitle + t.TaskName)
				for _, f := range t.Files {
					b.WriteString("\n" + indentFiles + styles.Subtle.Render(f))
				}
			}
			aspects = append(aspects, b.String())
		}
		components = append(components, styles.ID.Render(g.Component.String())+"\n"+strings.Join(aspects, "\n\n"))
	}

	fmt.Fprint(w, strings.Join(components, "\n\n"))
	if saved {
		fmt.Fprint(w, "\n\n"+styles.Success.Render(artifactsSavedMsg))
	}
	fmt.Fprintln(w)
}
