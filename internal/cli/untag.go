package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relicta-tech/bitsmith/internal/application/tagging"
)

var untagSoft bool

var untagCmd = newUntagCmd()

func newUntagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "untag [id...]",
		Short: "Remove soft tags",
		Long: `Remove the soft tags recorded by "bitsmith tag --soft".

Without ids every pending soft tag is removed. Ids accept glob patterns.`,
		RunE: runUntag,
	}
	cmd.Flags().BoolVar(&untagSoft, "soft", false, "remove soft tags (required)")
	return cmd
}

func runUntag(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if !untagSoft {
		return fmt.Errorf("only soft tags can be removed, use --soft")
	}

	app, err := newContainerApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer closeApp(cmd.ErrOrStderr(), app)

	result, err := app.UntagSoft().Execute(ctx, tagging.UntagSoftInput{IDs: args})
	if err != nil {
		return err
	}

	if isJSONOutput() {
		return writeJSON(out, result)
	}
	if len(result.Removed) == 0 {
		printInfo(out, "no soft tags to remove")
		return nil
	}
	printSuccess(out, fmt.Sprintf("%d soft tag(s) removed", len(result.Removed)))
	for _, r := range result.Removed {
		fmt.Fprintf(out, "     > %s\n", r.Component.WithVersion(r.Version))
	}
	return nil
}
