package tagging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/relicta-tech/bitsmith/internal/domain/artifact"
	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
	"github.com/relicta-tech/bitsmith/internal/domain/version"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
	"github.com/relicta-tech/bitsmith/internal/graph"
	"github.com/relicta-tech/bitsmith/internal/observability"
)

// AutoTagMessage is the message recorded with auto-tags.
const AutoTagMessage = "bump dependencies versions"

// DefaultConcurrency bounds parallel pipeline runs when none is configured.
const DefaultConcurrency = 4

// EngineDeps holds the collaborators of the tag engine.
type EngineDeps struct {
	Workspace     tag.Workspace
	Versions      tag.VersionStore
	SoftTags      tag.SoftTagStore
	Artifacts     artifact.Store
	Detector      tag.ModificationDetector
	Fingerprinter tag.Fingerprinter
	Issues        tag.IssueDetector
	Runner        tag.PipelineRunner
	// Editor edits messages for --editor. When nil, an ExecEditor for the
	// request's editor command is used.
	Editor  MessageEditor
	Metrics *observability.Metrics
	Logger  *slog.Logger
	// Concurrency bounds parallel pipeline runs.
	Concurrency int
	// Now returns the record timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Engine is the tag policy engine.
type Engine struct {
	deps   EngineDeps
	logger *slog.Logger
}

// NewEngine creates a new Engine.
func NewEngine(deps EngineDeps) *Engine {
	if deps.Concurrency < 1 {
		deps.Concurrency = DefaultConcurrency
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{deps: deps, logger: logger.With("usecase", "tag")}
}

// candidate is one component moving through a tag run.
type candidate struct {
	comp      component.Component
	lifecycle *tag.Lifecycle
	isNew     bool
	previous  string
	version   string
	message   string
	// depth is 0 for direct tags and the propagation tier for auto-tags.
	depth       int
	triggeredBy component.IDList
	artifacts   []artifact.Artifact
}

func (c *candidate) alive() bool {
	return !c.lifecycle.Is(tag.StateFailed)
}

func (c *candidate) id() component.ID {
	return c.comp.ID.WithVersion(c.version)
}

func (c *candidate) tagged() tag.TaggedComponent {
	return tag.TaggedComponent{
		ID:              c.id(),
		PreviousVersion: c.previous,
		IsNew:           c.isNew,
		Message:         c.message,
		AutoTagged:      c.depth > 0,
	}
}

// tagRun holds the state of one invocation. The graph is a snapshot taken
// when the run starts and is never mutated.
type tagRun struct {
	e     *Engine
	req   tag.Request
	acc   *Accumulator
	runID string
	graph *graph.Graph
	comps map[string]component.Component
	cands []*candidate
}

// Tag runs a tag invocation. It returns nil results, and no error, when there
// is nothing to tag. Per-component failures are reported in the results;
// only invocation-level problems are returned as errors.
func (e *Engine) Tag(ctx context.Context, req tag.Request) (*tag.Results, error) {
	const op = "tagging.Engine.Tag"

	comps, err := e.deps.Workspace.Components(ctx)
	if err != nil {
		return nil, bserrors.Wrap(err, bserrors.GetKind(err), op, "failed to load workspace components")
	}

	run := &tagRun{
		e:     e,
		req:   req,
		acc:   NewAccumulator(),
		runID: uuid.NewString(),
		graph: graph.New(comps),
		comps: make(map[string]component.Component, len(comps)),
	}
	for _, c := range comps {
		run.comps[c.ID.FullName()] = c
	}
	logger := e.logger.With("run_id", run.runID)

	if req.Persist {
		err = run.fromSoftTags(ctx)
	} else {
		err = run.fromRequest(ctx, comps)
	}
	if err != nil {
		return nil, err
	}
	if len(run.cands) == 0 {
		logger.Debug("nothing to tag")
		return nil, nil
	}

	if req.Editor {
		if err := run.editMessages(ctx); err != nil {
			return nil, err
		}
	}

	run.runPipelines(ctx)
	run.dropOrphans()

	if err := run.commit(ctx); err != nil {
		return nil, err
	}

	results := run.results()
	logger.Info("tag run finished",
		"tagged", len(results.TaggedComponents),
		"auto_tagged", len(results.AutoTaggedResults),
		"failures", len(results.Failures),
		"soft", results.IsSoftTag)
	return results, nil
}

// fromRequest resolves, gates and versions the direct tags, then propagates
// auto-tags.
func (r *tagRun) fromRequest(ctx context.Context, comps []component.Component) error {
	resolver := NewResolver(r.e.deps.Versions, r.e.deps.SoftTags, r.e.deps.Detector)
	resolutions, err := resolver.Resolve(ctx, r.req, comps, r.acc)
	if err != nil {
		return err
	}
	if len(resolutions) == 0 {
		return nil
	}

	for _, res := range resolutions {
		c, err := r.newCandidate(res.Component)
		if err != nil {
			return err
		}
		c.isNew = res.IsNew
		c.previous = res.LastVersion()
		c.message = r.req.Message
		r.cands = append(r.cands, c)

		if err := r.gate(ctx, c); err != nil {
			return err
		}
		if !c.alive() {
			continue
		}
		if err := r.computeVersion(ctx, c, res.Directive); err != nil {
			return err
		}
	}

	if r.req.SkipAutoTag {
		return nil
	}
	return r.propagate(ctx)
}

// fromSoftTags loads pending soft tags as the candidates of a persist run.
// Their versions were computed by the soft run and are not recomputed.
func (r *tagRun) fromSoftTags(ctx context.Context) error {
	pending, err := r.e.deps.SoftTags.ListSoftTags(ctx)
	if err != nil {
		return err
	}

	var direct component.IDList
	for _, p := range pending {
		if !p.IsAutoTag() {
			direct = append(direct, p.Component)
		}
	}
	depths := make(map[string]int)
	for _, tier := range r.graph.PropagateDependents(direct) {
		for _, d := range tier.Delta {
			depths[d.ID.FullName()] = tier.Depth
		}
	}

	for _, p := range pending {
		if len(r.req.IDs) > 0 && !matchesAnyPattern(r.req.IDs, p.Component) {
			continue
		}
		comp, ok := r.comps[p.Component.FullName()]
		if !ok {
			r.acc.Warn("%s has a soft tag but is no longer part of the workspace", p.Component)
			continue
		}

		c, err := r.newCandidate(comp)
		if err != nil {
			return err
		}
		c.isNew = p.IsNew
		c.previous = p.PreviousVersion
		c.version = p.Version
		c.message = p.Message
		if c.message == "" && !p.IsAutoTag() {
			c.message = r.req.Message
		}
		if p.IsAutoTag() {
			c.triggeredBy = component.IDList(p.AutoTaggedBy)
			c.depth = depths[comp.ID.FullName()]
			if c.depth == 0 {
				c.depth = 1
			}
		}
		r.cands = append(r.cands, c)

		if err := c.lifecycle.Fire(tag.EventGate); err != nil {
			return err
		}
		existing, err := r.e.deps.Versions.Versions(ctx, comp.ID)
		if err != nil {
			return err
		}
		if containsVersion(existing, p.Version) {
			r.fail(c, tag.FailureVersion, fmt.Sprintf("version %s already exists", p.Version), nil)
			continue
		}
		if err := c.lifecycle.Fire(tag.EventVersion); err != nil {
			return err
		}
	}
	return nil
}

func (r *tagRun) newCandidate(comp component.Component) (*candidate, error) {
	l, err := tag.NewLifecycle(comp.ID)
	if err != nil {
		return nil, bserrors.InternalWrap(err, "tagging.newCandidate", "failed to start component lifecycle")
	}
	return &candidate{comp: comp, lifecycle: l}, nil
}

func (r *tagRun) fail(c *candidate, kind tag.FailureKind, reason string, issues []component.Issue) {
	c.lifecycle.Fail(reason)
	r.acc.Fail(tag.Failure{Component: c.comp.ID, Kind: kind, Reason: reason, Issues: issues})
	r.e.deps.Metrics.RecordTagFailure(string(kind))
	r.e.logger.Debug("component dropped", "component", c.comp.ID.String(), "kind", kind, "reason", reason)
}

// gate checks a direct tag for issues not covered by the ignore set.
func (r *tagRun) gate(ctx context.Context, c *candidate) error {
	issues, err := r.e.deps.Issues.Issues(ctx, c.comp)
	if err != nil {
		return err
	}
	if blocking := r.req.IgnoreIssues.Blocking(issues); len(blocking) > 0 {
		r.fail(c, tag.FailureIssues, fmt.Sprintf("%d issue(s) found", len(blocking)), blocking)
		return nil
	}
	return c.lifecycle.Fire(tag.EventGate)
}

// computeVersion applies the directive to the latest recorded version.
func (r *tagRun) computeVersion(ctx context.Context, c *candidate, d version.Directive) error {
	var last *version.SemanticVersion
	if c.previous != "" {
		v, err := version.Parse(c.previous)
		if err != nil {
			r.fail(c, tag.FailureVersion, fmt.Sprintf("recorded version %q is invalid", c.previous), nil)
			return nil
		}
		last = &v
	}

	next, err := d.Apply(last, r.req.IgnoreNewestVersion)
	if err != nil {
		r.fail(c, tag.FailureVersion, err.Error(), nil)
		return nil
	}

	existing, err := r.e.deps.Versions.Versions(ctx, c.comp.ID)
	if err != nil {
		return err
	}
	if containsVersion(existing, next.String()) {
		r.fail(c, tag.FailureVersion, fmt.Sprintf("version %s already exists", next), nil)
		return nil
	}
	if !r.req.IgnoreNewestVersion {
		if newest, ok := version.Newest(existing); ok && newest.GreaterThan(next) {
			r.fail(c, tag.FailureVersion, fmt.Sprintf(
				"version %s is older than the existing %s, use --ignore-newest-version to tag it anyway", next, newest), nil)
			return nil
		}
	}

	c.version = next.String()
	return c.lifecycle.Fire(tag.EventVersion)
}

// propagate adds auto-tags for the dependents of the direct tags, one tier
// at a time over the graph snapshot.
func (r *tagRun) propagate(ctx context.Context) error {
	inRun := make(map[string]*candidate, len(r.cands))
	var roots component.IDList
	for _, c := range r.cands {
		inRun[c.comp.ID.FullName()] = c
		if c.alive() {
			roots = append(roots, c.comp.ID)
		}
	}

	for _, tier := range r.graph.PropagateDependents(roots) {
		r.e.logger.Debug("auto-tag tier", "tier", tier.Depth, "delta", len(tier.Delta))
		for _, dep := range tier.Delta {
			if prev, ok := inRun[dep.ID.FullName()]; ok {
				if prev.alive() {
					continue
				}
				r.acc.Warn("%s depends on %s but was not auto-tagged: %s",
					dep.ID, strings.Join(dep.TriggeredBy.Strings(), ", "), prev.lifecycle.Reason())
				continue
			}
			comp := r.comps[dep.ID.FullName()]
			last, err := r.e.deps.Versions.LatestRecord(ctx, comp.ID)
			if err != nil {
				return err
			}

			c, err := r.newCandidate(comp)
			if err != nil {
				return err
			}
			c.isNew = last == nil
			if last != nil {
				c.previous = last.Version
			}
			c.message = AutoTagMessage
			c.depth = tier.Depth
			c.triggeredBy = dep.TriggeredBy
			r.cands = append(r.cands, c)
			inRun[dep.ID.FullName()] = c

			if err := c.lifecycle.Fire(tag.EventGate); err != nil {
				return err
			}
			if err := r.computeVersion(ctx, c, version.DefaultDirective()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *tagRun) editMessages(ctx context.Context) error {
	var direct []*candidate
	var messages []ComponentMessage
	for _, c := range r.cands {
		if c.alive() && c.depth == 0 {
			direct = append(direct, c)
			messages = append(messages, ComponentMessage{ID: c.comp.ID, Message: c.message})
		}
	}
	if len(messages) == 0 {
		return nil
	}

	editor := r.e.deps.Editor
	if editor == nil {
		editor = NewExecEditor(r.req.EditorCommand)
	}
	edited, err := editor.EditMessages(ctx, messages)
	if err != nil {
		return err
	}
	for i, m := range edited {
		direct[i].message = m.Message
	}
	return nil
}

type pipelineOutcome struct {
	ran       bool
	artifacts []artifact.Artifact
	err       error
	duration  time.Duration
}

// runPipelines runs the build and test tasks of every live candidate
// concurrently. The graph and the candidate set are not touched until every
// run has finished.
func (r *tagRun) runPipelines(ctx context.Context) {
	var live []*candidate
	for _, c := range r.cands {
		if c.alive() {
			live = append(live, c)
		}
	}

	outcomes := make([]pipelineOutcome, len(live))
	if r.req.RunsPipelines() && r.e.deps.Runner != nil {
		sem := semaphore.NewWeighted(int64(r.e.deps.Concurrency))
		g, gCtx := errgroup.WithContext(ctx)

		for i, c := range live {
			tasks := c.comp.TasksOfKind(component.TaskBuild)
			if r.req.RunsTests() {
				tasks = append(tasks, c.comp.TasksOfKind(component.TaskTest)...)
			}
			if len(tasks) == 0 {
				continue
			}
			g.Go(func() error {
				if err := sem.Acquire(gCtx, 1); err != nil {
					outcomes[i] = pipelineOutcome{ran: true, err: err}
					return nil
				}
				defer sem.Release(1)

				start := time.Now()
				arts, err := r.e.deps.Runner.Run(gCtx, tag.PipelineRun{Component: c.comp, Version: c.version, Tasks: tasks})
				outcomes[i] = pipelineOutcome{ran: true, artifacts: arts, err: err, duration: time.Since(start)}
				// A failed component does not stop the others.
				return nil
			})
		}
		_ = g.Wait()
	}

	for i, c := range live {
		o := outcomes[i]
		if o.ran {
			r.e.deps.Metrics.RecordPipeline(o.err == nil, o.duration)
		}
		c.artifacts = o.artifacts
		if o.err != nil {
			attrs := []any{"component", c.id().String(), "error", o.err}
			var be *bserrors.Error
			if errors.As(o.err, &be) && len(be.Details) > 0 {
				attrs = append(attrs, "details", be.DetailString())
			}
			r.e.logger.Warn("pipeline failed", attrs...)
			if !r.req.ForceDeploy {
				r.fail(c, tag.FailurePipeline, o.err.Error(), nil)
				continue
			}
			r.acc.Warn("pipeline of %s failed, tagging anyway because of --force-deploy: %v", c.id(), o.err)
		}
		if err := c.lifecycle.Fire(tag.EventBuild); err != nil {
			r.fail(c, tag.FailurePipeline, err.Error(), nil)
		}
	}
}

// dropOrphans removes auto-tags whose triggering components all failed, and
// forgets failed triggers of the others.
func (r *tagRun) dropOrphans() {
	alive := make(map[string]bool)
	for _, c := range r.cands {
		if c.depth == 0 && c.alive() {
			alive[c.comp.ID.FullName()] = true
		}
	}
	for _, c := range r.cands {
		if c.depth == 0 || !c.alive() {
			continue
		}
		var kept component.IDList
		for _, root := range c.triggeredBy {
			if alive[root.FullName()] {
				kept = append(kept, root)
			}
		}
		if len(kept) == 0 {
			reason := fmt.Sprintf("not auto-tagged because %s failed", strings.Join(c.triggeredBy.Strings(), ", "))
			c.lifecycle.Fail(reason)
			r.acc.Warn("%s was %s", c.comp.ID, reason)
			continue
		}
		c.triggeredBy = kept
	}
}

// commit records the run. Soft runs save pending soft tags; otherwise tag
// records are written tier by tier, each write completing before the next.
func (r *tagRun) commit(ctx context.Context) error {
	const op = "tagging.commit"
	now := r.e.deps.Now()

	var live []*candidate
	for _, c := range r.cands {
		if c.alive() {
			live = append(live, c)
		}
	}
	if len(live) == 0 {
		return nil
	}

	if r.req.Soft {
		records := make([]tag.SoftTagRecord, 0, len(live))
		for _, c := range live {
			records = append(records, tag.SoftTagRecord{
				Component:       c.comp.ID,
				Version:         c.version,
				PreviousVersion: c.previous,
				Message:         c.message,
				IsNew:           c.isNew,
				AutoTaggedBy:    c.triggeredBy,
				RunID:           r.runID,
				CreatedAt:       now,
			})
		}
		if err := r.e.deps.SoftTags.SaveSoftTags(ctx, records); err != nil {
			return bserrors.Wrap(err, bserrors.GetKind(err), op, "failed to record soft tags")
		}
		for _, c := range live {
			if err := c.lifecycle.Fire(tag.EventSoftTag); err != nil {
				return err
			}
		}
		return nil
	}

	tiers := make(map[int][]*candidate)
	var depths []int
	for _, c := range live {
		if _, ok := tiers[c.depth]; !ok {
			depths = append(depths, c.depth)
		}
		tiers[c.depth] = append(tiers[c.depth], c)
	}
	sort.Ints(depths)

	for _, depth := range depths {
		tier := tiers[depth]
		records := make([]tag.Record, 0, len(tier))
		ids := make([]component.ID, 0, len(tier))
		for _, c := range tier {
			hash, commit, err := r.e.deps.Fingerprinter.Fingerprint(ctx, c.comp)
			if err != nil {
				return bserrors.Wrap(err, bserrors.GetKind(err), op, fmt.Sprintf("failed to fingerprint %s", c.comp.ID))
			}
			records = append(records, tag.Record{
				Component:   c.comp.ID,
				Version:     c.version,
				Message:     c.message,
				ContentHash: hash,
				Commit:      commit,
				RunID:       r.runID,
				AutoTagged:  c.depth > 0,
				CreatedAt:   now,
			})
			ids = append(ids, c.comp.ID)
		}

		if err := r.e.deps.Versions.SaveRecords(ctx, records); err != nil {
			return bserrors.Wrap(err, bserrors.GetKind(err), op, fmt.Sprintf("failed to write tier %d", depth))
		}
		r.e.logger.Debug("tier committed", "tier", depth, "components", len(records))

		for _, c := range tier {
			if err := c.lifecycle.Fire(tag.EventCommit); err != nil {
				return err
			}
			if len(c.artifacts) > 0 && r.e.deps.Artifacts != nil {
				if err := r.e.deps.Artifacts.SaveArtifacts(ctx, c.id(), c.artifacts); err != nil {
					r.acc.Warn("failed to record the artifacts of %s: %v", c.id(), err)
				}
			}
		}
		if err := r.e.deps.SoftTags.DeleteSoftTags(ctx, ids); err != nil {
			return bserrors.Wrap(err, bserrors.GetKind(err), op, "failed to clear soft tags")
		}
	}
	return nil
}

// results converts the finished candidates into the run's results.
func (r *tagRun) results() *tag.Results {
	res := &tag.Results{
		RunID:             r.runID,
		IsSoftTag:         r.req.Soft,
		TaggedComponents:  []tag.TaggedComponent{},
		AutoTaggedResults: []tag.AutoTagResult{},
	}
	autoCount := 0
	for _, c := range r.cands {
		if !c.alive() {
			continue
		}
		tagged := c.tagged()
		if c.isNew {
			res.NewComponents = res.NewComponents.Add(c.comp.ID.WithoutVersion())
		}
		if c.depth == 0 {
			res.TaggedComponents = append(res.TaggedComponents, tagged)
			continue
		}
		autoCount++
		for _, root := range c.triggeredBy {
			res.AutoTaggedResults = append(res.AutoTaggedResults, tag.AutoTagResult{
				TriggeredBy: root.WithoutVersion(),
				Component:   tagged,
			})
		}
	}
	r.acc.apply(res)
	r.e.deps.Metrics.RecordTags(len(res.TaggedComponents), autoCount, res.IsSoftTag)
	return res
}

func containsVersion(existing []string, v string) bool {
	want, err := version.Parse(v)
	if err != nil {
		return false
	}
	for _, s := range existing {
		got, err := version.Parse(s)
		if err == nil && got.Equal(want) {
			return true
		}
	}
	return false
}

func matchesAnyPattern(rawIDs []string, id component.ID) bool {
	for _, raw := range rawIDs {
		pattern, _ := SplitIDPattern(raw)
		if ok, _ := doublestar.Match(pattern, id.FullName()); ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, _ := doublestar.Match(pattern, id.Name); ok {
				return true
			}
		}
	}
	return false
}
