package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/loopmill/loopmill/internal/logging"
	"github.com/loopmill/loopmill/internal/models"
)

// DefaultMetricsTimeout bounds one adapter metrics+convergence pass.
const DefaultMetricsTimeout = 15 * time.Second

// Registry resolves adapters in deterministic registration order. It is an
// explicit constructor list rather than directory scanning, so detection
// order is a tested, fixed property.
type Registry struct {
	adapters []Adapter
	disabled map[string]bool
	timeout  time.Duration
	logger   zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithTimeout overrides the per-adapter call timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Registry) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithDisabled skips the named adapters during resolution.
func WithDisabled(names ...string) Option {
	return func(r *Registry) {
		for _, name := range names {
			r.disabled[name] = true
		}
	}
}

// NewRegistry creates a registry over the given adapters, in order.
func NewRegistry(list []Adapter, opts ...Option) *Registry {
	r := &Registry{
		adapters: append([]Adapter(nil), list...),
		disabled: make(map[string]bool),
		timeout:  DefaultMetricsTimeout,
		logger:   logging.Component("adapters"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultAdapters is the build-time registration table. Order matters: the
// first adapter whose Detect matches wins.
func DefaultAdapters() []Adapter {
	return []Adapter{
		NewTaskboardAdapter(),
		NewBenchJSONAdapter(),
	}
}

// Names returns registered adapter names in resolution order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for _, adapter := range r.adapters {
		names = append(names, adapter.Name())
	}
	return names
}

// Resolve returns the first adapter that detects the project, or the
// universal adapter when none match.
func (r *Registry) Resolve(projectPath string) Adapter {
	for _, adapter := range r.adapters {
		if r.disabled[adapter.Name()] {
			continue
		}
		if adapter.Detect(projectPath) {
			return adapter
		}
	}
	return UniversalAdapter{}
}

// Converge runs the resolved adapter's metrics and convergence pass under a
// timeout and panic guard. Any failure degrades the adapter to confidence 0
// for this invocation; the controller never fails because an adapter did.
func (r *Registry) Converge(ctx context.Context, adapter Adapter, projectPath string, since time.Time) Verdict {
	verdict := Verdict{
		Adapter: adapter.Name(),
		Mode:    adapter.SessionMode(),
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		result models.ConvergenceResult
		err    error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				resultCh <- outcome{err: fmt.Errorf("adapter panic: %v", recovered)}
			}
		}()
		entries, err := adapter.MetricsHistory(callCtx, projectPath, since)
		if err != nil {
			resultCh <- outcome{err: fmt.Errorf("metrics history: %w", err)}
			return
		}
		result, err := adapter.CheckConvergence(callCtx, entries)
		if err != nil {
			resultCh <- outcome{err: fmt.Errorf("check convergence: %w", err)}
			return
		}
		resultCh <- outcome{result: result}
	}()

	select {
	case <-callCtx.Done():
		verdict.Degraded = true
		verdict.DegradedReason = fmt.Sprintf("timed out after %s", r.timeout)
	case out := <-resultCh:
		if out.err != nil {
			verdict.Degraded = true
			verdict.DegradedReason = out.err.Error()
			break
		}
		verdict.Result = clampResult(out.result)
		return verdict
	}

	r.logger.Warn().
		Str("adapter", adapter.Name()).
		Str("reason", verdict.DegradedReason).
		Msg("adapter signal dropped for this invocation")

	verdict.Result = models.ConvergenceResult{
		ShouldContinue: true,
		Reason:         "adapter signal dropped: " + verdict.DegradedReason,
		Confidence:     models.ConfidenceNone,
	}
	return verdict
}

func clampResult(result models.ConvergenceResult) models.ConvergenceResult {
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	return result
}
