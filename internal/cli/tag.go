package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/relicta-tech/bitsmith/internal/application/tagging"
	"github.com/relicta-tech/bitsmith/internal/container"
	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
	"github.com/relicta-tech/bitsmith/internal/ui"
)

// optionalNoValue is what cobra stores for an optional-value flag given
// without a value.
const optionalNoValue = "true"

var tagFlags struct {
	message     string
	unmodified  bool
	editor      string
	ver         string
	patch       bool
	minor       bool
	major       bool
	snapped     bool
	preRelease  string
	skipTests   bool
	skipAutoTag bool
	soft        bool
	persist     bool

	disableTagPipeline  bool
	forceDeploy         bool
	incrementBy         int
	ignoreIssues        string
	ignoreNewestVersion bool
	build               bool

	ignoreUnresolvedDependencies bool

	all                   string
	scope                 string
	force                 bool
	disableDeployPipeline bool
}

var tagCmd = newTagCmd()

// newTagCmd builds the tag command. Building it resets tagFlags.
func newTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tag [id...]",
		Aliases: []string{"t"},
		Short:   "Record component changes and lock versions",
		Long: `Record component changes and lock versions.

If no ids are provided, every new and modified component is tagged.
A version can be set per id with "@": bitsmith tag foo@1.0.0 bar@minor baz@major.
Ids accept glob patterns ("acme/*"); wrap them in quotes.

Dependents of the tagged components are auto-tagged with a patch bump
unless --skip-auto-tag is given.

Optional values must be attached with "=", e.g. --pre-release=dev.`,
		RunE: runTag,
	}

	f := cmd.Flags()
	f.StringVarP(&tagFlags.message, "message", "m", "", "log message describing the user changes")
	f.BoolVar(&tagFlags.unmodified, "unmodified", false, "include unmodified components (by default, only new and modified components are tagged)")
	f.StringVar(&tagFlags.editor, "editor", "", "open an editor to edit the tag messages per component, optionally specify the editor command (attach it with \"=\", e.g. --editor=vim)")
	f.StringVarP(&tagFlags.ver, "ver", "v", "", "tag with the given version")
	f.BoolVarP(&tagFlags.patch, "patch", "p", false, "increment the patch version number")
	f.BoolVar(&tagFlags.minor, "minor", false, "increment the minor version number")
	f.BoolVar(&tagFlags.major, "major", false, "increment the major version number")
	f.BoolVar(&tagFlags.snapped, "snapped", false, "tag components whose latest record is a pending soft tag")
	f.StringVar(&tagFlags.preRelease, "pre-release", "", "increment a pre-release version (e.g. 1.0.0-dev.1), optionally specify the identifier (attach it with \"=\", e.g. --pre-release=dev)")
	f.BoolVar(&tagFlags.skipTests, "skip-tests", false, "skip running component tests during tag process")
	f.BoolVar(&tagFlags.skipAutoTag, "skip-auto-tag", false, "skip auto tagging dependents")
	f.BoolVar(&tagFlags.soft, "soft", false, "do not persist. only keep note of the changes to be made")
	f.BoolVar(&tagFlags.persist, "persist", false, "persist the changes generated by --soft tag")
	f.BoolVar(&tagFlags.disableTagPipeline, "disable-tag-pipeline", false, "skip the tag pipeline to avoid publishing the components")
	f.BoolVar(&tagFlags.forceDeploy, "force-deploy", false, "run the tag pipeline although the build failed")
	f.IntVar(&tagFlags.incrementBy, "increment-by", 1, "increment semver flag (patch/minor/major) by. e.g. incrementing patch by 2: 0.0.1 -> 0.0.3")
	f.StringVarP(&tagFlags.ignoreIssues, "ignore-issues", "i", "", fmt.Sprintf(
		"ignore component issues (shown in \"bitsmith status\"), issues to ignore:\n[%s]\n"+
			"to ignore multiple issues, separate them by a comma and wrap with quotes. to ignore all issues, specify \"*\". attach the value with \"=\", e.g. -i=\"*\" or --ignore-issues=\"MissingFiles\"",
		component.IssueKindNames()))
	f.BoolVarP(&tagFlags.ignoreNewestVersion, "ignore-newest-version", "I", false, "ignore existing of newer versions")
	f.BoolVarP(&tagFlags.build, "build", "b", false, "run the pipeline build and complete the tag")

	f.BoolVar(&tagFlags.ignoreUnresolvedDependencies, "ignore-unresolved-dependencies", false, "removed, use --ignore-issues")
	_ = f.MarkHidden("ignore-unresolved-dependencies")

	f.StringVarP(&tagFlags.all, "all", "a", "", "DEPRECATED (not needed anymore, it is the default now). tag all new and modified components. an optional version must be attached with \"=\", e.g. --all=1.0.0")
	f.StringVarP(&tagFlags.scope, "scope", "s", "", "DEPRECATED (use \"--unmodified\" instead). tag all components of the workspace. an optional version must be attached with \"=\", e.g. --scope=1.0.0")
	f.BoolVarP(&tagFlags.force, "force", "f", false, "DEPRECATED (use \"--skip-tests\" or \"--unmodified\" instead). force-tag even if tests are failing and even when component has not changed")
	f.BoolVar(&tagFlags.disableDeployPipeline, "disable-deploy-pipeline", false, "DEPRECATED. use --disable-tag-pipeline instead")

	for _, name := range []string{"editor", "pre-release", "ignore-issues", "all", "scope"} {
		f.Lookup(name).NoOptDefVal = optionalNoValue
	}
	return cmd
}

// optionalFlag reads an optional-value flag.
func optionalFlag(cmd *cobra.Command, name, value string) tagging.OptionalValue {
	if !cmd.Flags().Changed(name) {
		return tagging.OptionalValue{}
	}
	if value == optionalNoValue {
		return tagging.Given("")
	}
	return tagging.Given(value)
}

// rawTagFlags collects the tag command line.
func rawTagFlags(cmd *cobra.Command, args []string) tagging.RawTagFlags {
	raw := tagging.RawTagFlags{
		IDs:        args,
		Message:    tagFlags.message,
		Unmodified: tagFlags.unmodified,
		Editor:     optionalFlag(cmd, "editor", tagFlags.editor),
		Ver:        tagFlags.ver,
		Patch:      tagFlags.patch,
		Minor:      tagFlags.minor,
		Major:      tagFlags.major,
		Snapped:    tagFlags.snapped,
		PreRelease: optionalFlag(cmd, "pre-release", tagFlags.preRelease),

		SkipTests:           tagFlags.skipTests,
		SkipAutoTag:         tagFlags.skipAutoTag,
		Soft:                tagFlags.soft,
		Persist:             tagFlags.persist,
		DisableTagPipeline:  tagFlags.disableTagPipeline,
		ForceDeploy:         tagFlags.forceDeploy,
		IgnoreIssues:        optionalFlag(cmd, "ignore-issues", tagFlags.ignoreIssues),
		IgnoreNewestVersion: tagFlags.ignoreNewestVersion,
		Build:               tagFlags.build,

		IgnoreUnresolvedDependencies: tagFlags.ignoreUnresolvedDependencies,

		All:                   optionalFlag(cmd, "all", tagFlags.all),
		Scope:                 optionalFlag(cmd, "scope", tagFlags.scope),
		Force:                 tagFlags.force,
		DisableDeployPipeline: tagFlags.disableDeployPipeline,
	}
	if cmd.Flags().Changed("increment-by") {
		n := tagFlags.incrementBy
		raw.IncrementBy = &n
	}
	return raw
}

func runTag(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	// Flags are checked before the workspace is loaded.
	defaults, err := container.TagDefaults(cfg)
	if err != nil {
		return err
	}
	req, warnings, err := tagging.NormalizeFlags(rawTagFlags(cmd, args), defaults)
	if err != nil {
		return err
	}

	app, err := newContainerApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer closeApp(cmd.ErrOrStderr(), app)

	var results *tag.Results
	err = ui.RunWithSpinner(ctx, spinnerOptions(cmd, "tagging components"), func(ctx context.Context) error {
		var tagErr error
		results, tagErr = app.TagEngine().Tag(ctx, req)
		return tagErr
	})
	if err != nil {
		return err
	}

	if results == nil {
		return outputNothingToTag(out, warnings)
	}
	results.Warnings = append(warnings, results.Warnings...)
	report := tagging.Aggregate(results)

	if isJSONOutput() {
		return writeJSON(out, report)
	}
	renderTagReport(out, report)
	return nil
}

func outputNothingToTag(w io.Writer, warnings []string) error {
	if isJSONOutput() {
		return writeJSON(w, tagging.Report{Warnings: warnings, Headline: tagging.NothingToTagMsg})
	}
	if len(warnings) > 0 {
		fmt.Fprintf(w, "%s\n\n", styles.Warning.Render(strings.Join(warnings, "\n")))
	}
	fmt.Fprintln(w, styles.Warning.Render(tagging.NothingToTagMsg))
	return nil
}

// renderTagReport writes the text form of a tag report.
func renderTagReport(w io.Writer, r tagging.Report) {
	var b strings.Builder

	if len(r.Warnings) > 0 {
		b.WriteString(styles.Warning.Render(strings.Join(r.Warnings, "\n")))
		b.WriteString("\n\n")
	}
	b.WriteString(styles.Success.Render(r.Headline))
	b.WriteString("\n")
	for _, line := range r.Explanation {
		b.WriteString(line)
		b.WriteString("\n")
	}

	for _, s := range r.Sections {
		b.WriteString("\n")
		b.WriteString(styles.Section.Render(s.Title))
		b.WriteString("\n(" + s.Explanation + ")\n")
		for _, c := range s.Components {
			b.WriteString("     > " + c.ID + "\n")
			if len(c.AutoTagged) > 0 {
				b.WriteString("       " + tagging.AutoTaggedMsg + ":\n")
				for _, id := range c.AutoTagged {
					b.WriteString("            " + id + "\n")
				}
			}
		}
	}

	if len(r.Published) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.Success.Render(r.PublishedTitle()))
		b.WriteString("\n")
		b.WriteString(strings.Join(r.Published, "\n"))
		b.WriteString("\n")
	}

	if len(r.Failures) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.Error.Render(fmt.Sprintf("%d component(s) were not tagged", len(r.Failures))))
		b.WriteString("\n")
		for _, f := range r.Failures {
			b.WriteString(fmt.Sprintf("     ✗ %s (%s): %s\n", f.Component, f.Kind, f.Reason))
			for _, issue := range f.Issues {
				b.WriteString("         " + issue.String() + "\n")
			}
		}
	}

	if r.Clarification != "" {
		b.WriteString("\n")
		b.WriteString(styles.Bold.Render(r.Clarification))
		b.WriteString("\n")
	}

	fmt.Fprint(w, b.String())
}

// spinnerOptions enables the spinner only when the command writes to a
// terminal and no log lines are expected to interleave with it.
func spinnerOptions(cmd *cobra.Command, title string) ui.SpinnerOptions {
	out := cmd.ErrOrStderr()
	f, ok := out.(*os.File)
	interactive := ok && isatty.IsTerminal(f.Fd()) && !isJSONOutput() &&
		(cfg == nil || (!cfg.Output.Verbose && cfg.Output.LogLevel != "debug"))
	return ui.SpinnerOptions{
		Title:       title,
		Interactive: interactive,
		Output:      out,
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
