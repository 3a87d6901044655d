// Package arbiter merges adapter verdicts, generic completion signals, and
// hard limits into a single continue/stop decision.
package arbiter

import (
	"fmt"

	"github.com/loopmill/loopmill/internal/detect"
	"github.com/loopmill/loopmill/internal/models"
)

// Inputs is everything one decision depends on.
type Inputs struct {
	IterationCount int
	RuntimeSeconds float64
	Limits         models.Limits

	// KillSwitch is true when the one-shot kill marker was present.
	KillSwitch bool

	// Adapter is the resolved adapter's convergence result.
	Adapter     models.ConvergenceResult
	AdapterName string

	// Generic is the completion detector's output.
	Generic detect.Result
}

// Decide evaluates the decision table in fixed order. Every branch is
// explicit; the reason always cites the rule that fired.
func Decide(in Inputs) models.Decision {
	maxRuntimeSeconds := in.Limits.MaxHours * 3600
	minRuntimeSeconds := in.Limits.MinHours * 3600

	// Rule 0: the kill switch beats everything, including minimums.
	if in.KillSwitch {
		return models.Decision{
			Kind:   models.DecisionStop,
			Rule:   models.RuleKillSwitch,
			Reason: "kill switch marker present",
		}
	}

	// Rule 1: hard maximums force a stop regardless of confidence.
	if in.Limits.MaxIterations > 0 && in.IterationCount >= in.Limits.MaxIterations {
		return models.Decision{
			Kind:   models.DecisionStop,
			Rule:   models.RuleHardLimit,
			Reason: fmt.Sprintf("max iterations reached (%d/%d)", in.IterationCount, in.Limits.MaxIterations),
		}
	}
	if maxRuntimeSeconds > 0 && in.RuntimeSeconds >= maxRuntimeSeconds {
		return models.Decision{
			Kind:   models.DecisionStop,
			Rule:   models.RuleHardLimit,
			Reason: fmt.Sprintf("max runtime reached (%.0fs/%.0fs)", in.RuntimeSeconds, maxRuntimeSeconds),
		}
	}

	// Rule 2: the minimum-work guarantee forces a continue, even against
	// an authoritative adapter stop.
	if in.IterationCount < in.Limits.MinIterations {
		return models.Decision{
			Kind:   models.DecisionContinue,
			Rule:   models.RuleMinimumWork,
			Reason: fmt.Sprintf("below minimum iterations (%d/%d)", in.IterationCount, in.Limits.MinIterations),
		}
	}
	if minRuntimeSeconds > 0 && in.RuntimeSeconds < minRuntimeSeconds {
		return models.Decision{
			Kind:   models.DecisionContinue,
			Rule:   models.RuleMinimumWork,
			Reason: fmt.Sprintf("below minimum runtime (%.0fs/%.0fs)", in.RuntimeSeconds, minRuntimeSeconds),
		}
	}

	// Rule 3: an authoritative adapter verdict is adopted verbatim.
	if in.Adapter.Confidence >= models.ConfidenceAuthoritative {
		return models.Decision{
			Kind:   kindFor(in.Adapter.ShouldContinue),
			Rule:   models.RuleAdapterAuthority,
			Reason: fmt.Sprintf("adapter %s authoritative: %s", in.AdapterName, in.Adapter.Reason),
		}
	}

	genericStop := in.Generic.AnyDetected

	// Rule 4: an advisory adapter verdict only acts when the generic
	// detector agrees; disagreement biases toward more work.
	if in.Adapter.Confidence >= models.ConfidenceAdvisory {
		adapterStop := !in.Adapter.ShouldContinue
		if adapterStop == genericStop {
			return models.Decision{
				Kind: kindFor(in.Adapter.ShouldContinue),
				Rule: models.RuleAdapterAgreement,
				Reason: fmt.Sprintf("adapter %s and generic signals agree: %s",
					in.AdapterName, in.Adapter.Reason),
			}
		}
		return models.Decision{
			Kind:   models.DecisionContinue,
			Rule:   models.RuleAdapterAgreement,
			Reason: fmt.Sprintf("adapter %s and generic signals disagree, continuing", in.AdapterName),
		}
	}

	// Rule 5: no adapter opinion; the generic detector decides alone.
	if genericStop {
		return models.Decision{
			Kind:   models.DecisionStop,
			Rule:   models.RuleGenericSignal,
			Reason: fmt.Sprintf("completion signal: %s", in.Generic.FirstKind),
		}
	}

	// Rule 6: nothing fired; keep working.
	return models.Decision{
		Kind:   models.DecisionContinue,
		Rule:   models.RuleDefaultContinue,
		Reason: "no completion signal and limits not reached",
	}
}

func kindFor(shouldContinue bool) models.DecisionKind {
	if shouldContinue {
		return models.DecisionContinue
	}
	return models.DecisionStop
}
