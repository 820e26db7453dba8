package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/relicta-tech/bitsmith/internal/application/tagging"
)

var statusCmd = newStatusCmd()

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the workspace components",
		Long: `Display the components of the workspace against their latest tag.

This command shows:
  - New components, never tagged
  - Modified components, changed since their latest tag
  - Pending soft tags
  - Issues that would block a tag

Examples:
  # Check the workspace
  bitsmith status

  # Output as JSON
  bitsmith status --json`,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	app, err := newContainerApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer closeApp(cmd.ErrOrStderr(), app)

	status, err := app.Status().Execute(ctx)
	if err != nil {
		return err
	}

	if isJSONOutput() {
		return writeJSON(out, status)
	}
	outputStatusText(out, status)
	return nil
}

func outputStatusText(w io.Writer, status *tagging.StatusOutput) {
	printed := false
	section := func(title string, state tagging.ChangeState) {
		if status.Count(state) == 0 {
			return
		}
		printed = true
		fmt.Fprintln(w, styles.Section.Render(title))
		for _, c := range status.Components {
			if c.State != state {
				continue
			}
			line := "     > " + c.ID.String()
			if c.LastVersion != "" {
				line += styles.Subtle.Render(" (" + c.LastVersion + ")")
			}
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w)
	}
	section("new components", tagging.ChangeNew)
	section("modified components", tagging.ChangeModified)

	var soft, issues []tagging.ComponentStatus
	for _, c := range status.Components {
		if c.SoftTag != "" {
			soft = append(soft, c)
		}
		if len(c.Issues) > 0 {
			issues = append(issues, c)
		}
	}

	if len(soft) > 0 {
		printed = true
		fmt.Fprintln(w, styles.Section.Render("soft-tagged components"))
		fmt.Fprintln(w, `(use "bitsmith tag --persist" to persist the soft-tagged changes)`)
		for _, c := range soft {
			fmt.Fprintf(w, "     > %s\n", c.ID.WithVersion(c.SoftTag))
		}
		fmt.Fprintln(w)
	}

	if len(issues) > 0 {
		printed = true
		fmt.Fprintln(w, styles.Warning.Render("components with issues"))
		fmt.Fprintln(w, `(use "bitsmith tag --ignore-issues" to tag them anyway)`)
		for _, c := range issues {
			fmt.Fprintf(w, "     > %s\n", c.ID)
			for _, issue := range c.Issues {
				fmt.Fprintf(w, "         %s\n", issue)
			}
		}
		fmt.Fprintln(w)
	}

	if !printed {
		printSuccess(w, "nothing to tag, every component is up to date")
	}
}
