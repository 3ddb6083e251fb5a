package pipeline

import (
	"context"
	"log/slog"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each one working on the shared Session.
type Step interface {
	// Do executes the pipeline step.
	// Per-URL failures are recorded in the graph and are not errors; an
	// error means the step could not do its job at all.
	Do(ctx context.Context, sess *Session) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// CancelSafe is implemented by steps that still run once the context was
// cancelled, so an interrupted crawl is still persisted and reported.
// They run with a context that is no longer cancelled.
type CancelSafe interface {
	RunAfterCancel() bool
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. Failed steps are logged and their errors are
// recorded in the session, but subsequent steps still execute.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
//
// Cancellation is checked before each step. Once ctx is done only
// CancelSafe steps run; the others are skipped and the session is marked
// cancelled. Cancellation itself is not returned as an error.
//
// Returns the first step error if continueOnError is false, otherwise nil
// (errors are recorded in the session).
func (p *Pipeline) Execute(ctx context.Context, sess *Session) error {
	for _, step := range p.steps {
		stepCtx := ctx
		if ctx.Err() != nil {
			if !runsAfterCancel(step) {
				p.logger.Warn("skipping step after cancellation",
					"step", step.Name(),
					"reason", ctx.Err(),
				)
				sess.Stats.Cancelled = true
				continue
			}
			stepCtx = context.WithoutCancel(ctx)
		}

		p.logger.Info("executing step", "step", step.Name())

		if err := step.Do(stepCtx, sess); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"error", err,
			)
			sess.Errors = append(sess.Errors, err)

			if !p.continueOnError {
				return err
			}
		} else {
			p.logger.Debug("step completed", "step", step.Name())
		}

		sess.PerformedSteps = append(sess.PerformedSteps, step.Name())
	}

	return nil
}

func runsAfterCancel(step Step) bool {
	cs, ok := step.(CancelSafe)
	return ok && cs.RunAfterCancel()
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
