package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/config"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/events"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/logging"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/observability"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/service"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/tools"
)

// Config holds the orchestrator settings.
type Config struct {
	MinWorkflowLength    int
	MaxWorkflowLength    int
	AutomatableThreshold float64
	StageTimeout         time.Duration
	RunTimeout           time.Duration
	MaxRetries           int
	RetryBaseDelay       time.Duration
	SummarizerEnabled    bool
	Domain               string
	Temperature          float64
	MaxOutputTokens      int
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		MinWorkflowLength:    10,
		MaxWorkflowLength:    10000,
		AutomatableThreshold: 0.6,
		StageTimeout:         30 * time.Second,
		RunTimeout:           2 * time.Minute,
		MaxRetries:           3,
		RetryBaseDelay:       500 * time.Millisecond,
		SummarizerEnabled:    true,
		Temperature:          0.1,
		MaxOutputTokens:      8192,
	}
}

// ConfigFrom maps the application configuration onto orchestrator settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		MinWorkflowLength:    cfg.Analysis.MinWorkflowLength,
		MaxWorkflowLength:    cfg.Analysis.MaxWorkflowLength,
		AutomatableThreshold: cfg.Analysis.AutomatableThreshold,
		StageTimeout:         cfg.Analysis.StageTimeoutDuration(),
		RunTimeout:           cfg.Analysis.RunTimeoutDuration(),
		MaxRetries:           cfg.Analysis.MaxRetries,
		RetryBaseDelay:       cfg.Analysis.RetryBaseDelayDuration(),
		SummarizerEnabled:    cfg.Analysis.SummarizerEnabled,
		Domain:               cfg.Analysis.Domain,
		Temperature:          cfg.Model.Temperature,
		MaxOutputTokens:      cfg.Model.MaxOutputTokens,
	}
}

// Orchestrator runs the analysis pipeline: the parser barrier, the
// concurrent risk and automation stages, the merge and the optional
// summarizer. One orchestrator serves any number of concurrent runs.
type Orchestrator struct {
	config   Config
	model    core.Model
	tools    *tools.Registry
	tracer   *observability.Tracer
	metrics  *observability.Metrics
	exporter observability.TraceExporter
	bus      *events.EventBus
	logger   *logging.Logger

	parser     Stage[[]core.ParsedStep]
	risk       Stage[map[string]core.RiskView]
	automation Stage[map[string]core.AutomationView]
	summarizer Stage[*core.Narrative]
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the base logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithTracer sets the span tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithExporter sets the trace exporter.
func WithExporter(e observability.TraceExporter) Option {
	return func(o *Orchestrator) { o.exporter = e }
}

// WithEventBus sets the bus run lifecycle events are published on.
func WithEventBus(bus *events.EventBus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithTools sets the capability tool registry.
func WithTools(r *tools.Registry) Option {
	return func(o *Orchestrator) { o.tools = r }
}

// WithParser replaces the parser stage.
func WithParser(s Stage[[]core.ParsedStep]) Option {
	return func(o *Orchestrator) { o.parser = s }
}

// WithRiskStage replaces the risk assessment stage.
func WithRiskStage(s Stage[map[string]core.RiskView]) Option {
	return func(o *Orchestrator) { o.risk = s }
}

// WithAutomationStage replaces the automation analysis stage.
func WithAutomationStage(s Stage[map[string]core.AutomationView]) Option {
	return func(o *Orchestrator) { o.automation = s }
}

// WithSummarizer replaces the summarizer stage.
func WithSummarizer(s Stage[*core.Narrative]) Option {
	return func(o *Orchestrator) { o.summarizer = s }
}

// New creates an orchestrator whose default stages call model.
func New(cfg Config, model core.Model, opts ...Option) *Orchestrator {
	o := &Orchestrator{config: cfg, model: model}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.tracer == nil {
		o.tracer = observability.NewTracer()
	}
	if o.metrics == nil {
		o.metrics = observability.NewMetrics()
	}
	if o.exporter == nil {
		o.exporter = observability.NewTraceExporter(observability.ExportConfig{}, o.logger)
	}
	if o.tools == nil {
		o.tools = tools.NewDefaultRegistry(tools.WithLogger(o.logger), tools.WithMetrics(o.metrics))
	}

	caller := &modelCaller{
		model: model,
		retry: service.NewRetryPolicy(
			service.WithMaxAttempts(cfg.MaxRetries),
			service.WithBaseDelay(cfg.RetryBaseDelay),
		),
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
	}
	if o.parser == nil {
		o.parser = NewParser(caller)
	}
	if o.risk == nil {
		o.risk = NewRiskStage(caller, o.tools, cfg.Domain)
	}
	if o.automation == nil {
		o.automation = NewAutomationStage(caller, o.tools)
	}
	if o.summarizer == nil {
		o.summarizer = NewSummarizer(caller)
	}
	return o
}

// Tracer returns the span tracer shared by all runs.
func (o *Orchestrator) Tracer() *observability.Tracer { return o.tracer }

// Metrics returns the metrics collector shared by all runs.
func (o *Orchestrator) Metrics() *observability.Metrics { return o.metrics }

// Request is one analysis invocation.
type Request struct {
	// WorkflowID names the analyzed workflow. Empty derives one from the run id.
	WorkflowID   string
	WorkflowText string
}

// Result is the outcome of a run. Run is set whenever a run context was
// created, including failed runs.
type Result struct {
	Analysis *core.WorkflowAnalysis
	Run      *RunContext
}

// Analyze runs the full pipeline over req.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) (*Result, error) {
	if err := o.validateText(req.WorkflowText); err != nil {
		o.metrics.RecordAnalysisFailed(ctx)
		o.metrics.RecordError(ctx, core.KindOf(err))
		o.logger.Warn("workflow rejected", "error", err)
		return nil, err
	}

	start := time.Now()
	run := NewRunContext(req.WorkflowID, req.WorkflowText, o.logger)
	logger := run.Logger()
	ref := events.RunRef{WorkflowID: run.WorkflowID(), RunID: run.RunID(), TraceID: run.TraceID()}

	runCtx, cancel := context.WithTimeout(ctx, o.config.RunTimeout)
	defer cancel()
	runCtx, root := o.tracer.Start(runCtx, run.TraceID(), "analyze_workflow", map[string]interface{}{
		"run_id":      run.RunID(),
		"workflow_id": run.WorkflowID(),
		"text_length": len(req.WorkflowText),
	})

	o.metrics.RecordAnalysis(ctx)
	logger.Info("analysis started", "text_length", len(req.WorkflowText))
	o.publish(events.NewRunStartedEvent(ref, len(req.WorkflowText)))

	f := &finisher{o: o, run: run, root: root, ref: ref, start: start}

	// Parse. This is the barrier: nothing else runs without a step set.
	if err := run.Transition(core.RunParsing); err != nil {
		return f.fail(ctx, core.RunFailed, StageParser, err, false)
	}
	parsed := runStage(runCtx, o, run, ref, o.parser)
	if !parsed.OK() {
		state := core.RunParseFailed
		if errors.Is(ctx.Err(), context.Canceled) {
			state = core.RunCancelled
		}
		return f.fail(ctx, state, StageParser, parsed.Err, true)
	}
	if err := run.Transition(core.RunParsed); err != nil {
		return f.fail(ctx, core.RunFailed, StageParser, err, false)
	}

	// Fan out. The goroutines never return errors so a failing stage does
	// not cancel its sibling.
	if err := run.Transition(core.RunAnalyzing); err != nil {
		return f.fail(ctx, core.RunFailed, StageRisk, err, false)
	}
	var (
		g          errgroup.Group
		riskOut    Outcome[map[string]core.RiskView]
		automation Outcome[map[string]core.AutomationView]
	)
	g.Go(func() error {
		riskOut = runStage(runCtx, o, run, ref, o.risk)
		return nil
	})
	g.Go(func() error {
		automation = runStage(runCtx, o, run, ref, o.automation)
		return nil
	})
	_ = g.Wait()

	if err := f.checkRun(ctx, runCtx); err != nil {
		return f.fail(ctx, stateFor(ctx, err), StageRisk, err, false)
	}

	riskViews := usableViews(riskOut)
	automationViews := usableViews(automation)
	if err := run.SetRiskResults(riskViews); err != nil {
		return f.fail(ctx, core.RunFailed, StageRisk, err, false)
	}
	if err := run.SetAutomationResults(automationViews); err != nil {
		return f.fail(ctx, core.RunFailed, StageAutomation, err, false)
	}
	next := core.RunAnalysisComplete
	if !riskOut.OK() || !automation.OK() {
		next = core.RunAnalysisPartial
	}
	if err := run.Transition(next); err != nil {
		return f.fail(ctx, core.RunFailed, StageMerge, err, false)
	}

	// Merge.
	analysis, err := o.merge(runCtx, run, ref, riskViews, automationViews)
	if err != nil {
		return f.fail(ctx, core.RunFailed, StageMerge, err, true)
	}
	if err := run.Transition(core.RunMerged); err != nil {
		return f.fail(ctx, core.RunFailed, StageMerge, err, false)
	}

	// Summarize. A failure only leaves the narrative out.
	final := core.RunDone
	if o.config.SummarizerEnabled && o.summarizer != nil {
		if out := runStage(runCtx, o, run, ref, o.summarizer); out.OK() {
			analysis.Narrative = out.Value
			final = core.RunSummarized
		}
	}
	if err := f.checkRun(ctx, runCtx); err != nil {
		return f.fail(ctx, stateFor(ctx, err), StageSummarizer, err, false)
	}

	if err := run.Transition(final); err != nil {
		return f.fail(ctx, core.RunFailed, StageSummarizer, err, false)
	}
	return f.complete(ctx, analysis)
}

func (o *Orchestrator) validateText(text string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	switch {
	case n < o.config.MinWorkflowLength:
		return core.ErrValidation(core.CodeWorkflowTooShort,
			fmt.Sprintf("workflow description must be at least %d characters", o.config.MinWorkflowLength)).
			WithDetail("length", n).
			WithDetail("min", o.config.MinWorkflowLength)
	case n > o.config.MaxWorkflowLength:
		return core.ErrValidation(core.CodeWorkflowTooLong,
			fmt.Sprintf("workflow description must be at most %d characters", o.config.MaxWorkflowLength)).
			WithDetail("length", n).
			WithDetail("max", o.config.MaxWorkflowLength)
	}
	return nil
}

func (o *Orchestrator) merge(ctx context.Context, run *RunContext, ref events.RunRef,
	risk map[string]core.RiskView, automation map[string]core.AutomationView) (*core.WorkflowAnalysis, error) {
	logger := run.Logger().WithStage(StageMerge)
	_, span := o.tracer.Start(ctx, run.TraceID(), StageMerge, map[string]interface{}{"run_id": run.RunID()})
	o.publish(events.NewStageStartedEvent(ref, StageMerge))
	start := time.Now()

	record := func(err error) error {
		elapsed := time.Since(start)
		run.RecordLatency(StageMerge, elapsed)
		o.metrics.RecordStageLatency(ctx, StageMerge, elapsed)
		o.tracer.End(span, err)
		if err != nil {
			o.recordError(ctx, run, StageMerge, err)
			o.publish(events.NewStageFailedEvent(ref, StageMerge, elapsed, err, nil))
			return err
		}
		o.publish(events.NewStageCompletedEvent(ref, StageMerge, elapsed))
		return nil
	}

	steps, err := MergeSteps(run.ParsedSteps(), risk, automation)
	if err != nil {
		return nil, record(err)
	}
	summary := Summarize(steps, o.config.AutomatableThreshold)
	analysis := &core.WorkflowAnalysis{
		WorkflowID:      run.WorkflowID(),
		RunID:           run.RunID(),
		TraceID:         run.TraceID(),
		Steps:           steps,
		Summary:         summary,
		Insights:        ExtractInsights(steps, summary, o.config.AutomatableThreshold),
		Recommendations: Recommendations(summary),
		State:           core.RunMerged,
		CreatedAt:       run.CreatedAt(),
	}
	if err := run.SetAnalysis(analysis); err != nil {
		return nil, record(err)
	}
	o.tracer.SetAttribute(span, "total_steps", summary.TotalSteps)
	o.tracer.SetAttribute(span, "automation_potential", summary.AutomationPotential)
	if err := record(nil); err != nil {
		return nil, err
	}

	logger.Info("merge completed",
		"total_steps", summary.TotalSteps,
		"automatable", summary.AutomatableCount,
		"automation_potential", summary.AutomationPotential,
		"insights", len(analysis.Insights))
	return analysis, nil
}

func (o *Orchestrator) publish(ev events.Event) {
	if o.bus != nil {
		o.bus.Publish(ev)
	}
}

func (o *Orchestrator) publishPriority(ev events.Event) {
	if o.bus != nil {
		o.bus.PublishPriority(ev)
	}
}

func (o *Orchestrator) recordError(ctx context.Context, run *RunContext, stage string, err error, stepIDs ...string) {
	entry := run.RecordError(stage, err, stepIDs...)
	o.metrics.RecordError(ctx, entry.Kind)
}

// runStage runs one stage under its own stage timeout and records its
// latency, span, events and errors.
func runStage[T any](ctx context.Context, o *Orchestrator, run *RunContext, ref events.RunRef, stage Stage[T]) Outcome[T] {
	name := stage.Name()
	logger := run.Logger().WithStage(name)

	stageCtx, cancel := context.WithTimeout(ctx, o.config.StageTimeout)
	defer cancel()
	stageCtx, span := o.tracer.Start(stageCtx, run.TraceID(), name, map[string]interface{}{"run_id": run.RunID()})

	logger.Info("stage started")
	o.publish(events.NewStageStartedEvent(ref, name))
	start := time.Now()

	out := stage.Run(stageCtx, run)
	if out.Err != nil && stageCtx.Err() != nil && !core.IsCategory(out.Err, core.ErrCatTimeout) &&
		!core.IsCategory(out.Err, core.ErrCatCancelled) {
		out = Failure[T](core.FromContext(stageCtx.Err(), name+" stage").
			WithDetail("stage", name).
			WithCause(out.Err))
	}

	elapsed := time.Since(start)
	run.RecordLatency(name, elapsed)
	o.metrics.RecordStageLatency(ctx, name, elapsed)
	o.tracer.End(span, out.Err)

	if out.Err != nil {
		o.recordError(ctx, run, name, out.Err, out.FailedSteps...)
		logger.Warn("stage failed",
			"duration_ms", elapsed.Milliseconds(),
			"failed_steps", out.FailedSteps,
			"error", out.Err)
		o.publish(events.NewStageFailedEvent(ref, name, elapsed, out.Err, out.FailedSteps))
		return out
	}

	logger.Info("stage completed", "duration_ms", elapsed.Milliseconds())
	o.publish(events.NewStageCompletedEvent(ref, name, elapsed))
	return out
}

// usableViews returns the views a stage outcome contributes to the merge.
// A whole-stage failure contributes nothing, so every step falls back. A
// step-scoped failure contributes every view but the failed ones.
func usableViews[V any](out Outcome[map[string]V]) map[string]V {
	if out.OK() {
		if out.Value == nil {
			return map[string]V{}
		}
		return out.Value
	}
	if !out.Scoped() {
		return map[string]V{}
	}
	usable := make(map[string]V, len(out.Value))
	for id, v := range out.Value {
		usable[id] = v
	}
	for _, id := range out.FailedSteps {
		delete(usable, id)
	}
	return usable
}

func stateFor(parent context.Context, err error) core.RunState {
	if errors.Is(parent.Err(), context.Canceled) || core.IsCategory(err, core.ErrCatCancelled) {
		return core.RunCancelled
	}
	return core.RunFailed
}

// finisher closes a run: it settles the state, the root span, the export,
// the metrics and the terminal event.
type finisher struct {
	o     *Orchestrator
	run   *RunContext
	root  *observability.Span
	ref   events.RunRef
	start time.Time
}

// checkRun reports a cancelled caller or an exceeded run deadline.
func (f *finisher) checkRun(parent, runCtx context.Context) error {
	if err := parent.Err(); err != nil {
		return core.FromContext(err, "analysis run")
	}
	if err := runCtx.Err(); err != nil {
		return core.ErrTimeout(fmt.Sprintf("analysis run exceeded its %s deadline", f.o.config.RunTimeout)).WithCause(err)
	}
	return nil
}

// fail ends the run in state. recorded is set when the error is already in
// the run error log.
func (f *finisher) fail(ctx context.Context, state core.RunState, stage string, err error, recorded bool) (*Result, error) {
	o, run := f.o, f.run
	err = withTrace(err, run.TraceID())

	logger := run.Logger()
	if terr := run.Transition(state); terr != nil {
		logger.Error("illegal run transition", "to", state, "error", terr)
		if run.State() != core.RunFailed && core.CanTransition(run.State(), core.RunFailed) {
			_ = run.Transition(core.RunFailed)
		}
	}

	if !recorded {
		o.recordError(ctx, run, stage, err)
	}
	o.metrics.RecordAnalysisFailed(ctx)
	duration := time.Since(f.start)
	logger.Error("analysis failed",
		"state", run.State(),
		"stage", stage,
		"duration_ms", duration.Milliseconds(),
		"error", err)

	o.tracer.End(f.root, err)
	f.export(ctx)
	o.publishPriority(events.NewRunFailedEvent(f.ref, string(run.State()), stage, err))
	return &Result{Analysis: run.Analysis(), Run: run}, err
}

func (f *finisher) complete(ctx context.Context, analysis *core.WorkflowAnalysis) (*Result, error) {
	o, run := f.o, f.run
	duration := time.Since(f.start)
	analysis.State = run.State()
	analysis.DurationMS = duration.Milliseconds()

	o.tracer.SetAttribute(f.root, "state", string(analysis.State))
	o.tracer.End(f.root, nil)
	f.export(ctx)

	run.Logger().Info("analysis completed",
		"state", analysis.State,
		"total_steps", analysis.Summary.TotalSteps,
		"automation_potential", analysis.Summary.AutomationPotential,
		"errors", len(run.Errors()),
		"duration_ms", analysis.DurationMS)
	o.publishPriority(events.NewRunCompletedEvent(f.ref, string(analysis.State), duration,
		analysis.Summary.TotalSteps, analysis.Summary.AutomationPotential))
	return &Result{Analysis: analysis, Run: run}, nil
}

func (f *finisher) export(ctx context.Context) {
	if !f.o.exporter.Enabled() {
		return
	}
	traceID := f.run.TraceID()
	if err := f.o.exporter.Export(ctx, f.o.tracer.Summary(traceID), f.o.tracer.Spans(traceID)); err != nil {
		f.run.Logger().Warn("trace export failed", "error", err)
	}
}

// withTrace returns a copy of err carrying the trace id. err itself may be
// shared by other runs and is left untouched.
func withTrace(err error, traceID string) error {
	var de *core.DomainError
	if errors.As(err, &de) {
		return de.Clone().WithDetail("trace_id", traceID)
	}
	return core.ErrExecution(core.CodeStageFailed, "analysis failed").
		WithCause(err).
		WithDetail("trace_id", traceID)
}
