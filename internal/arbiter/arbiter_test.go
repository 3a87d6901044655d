package arbiter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loopmill/loopmill/internal/detect"
	"github.com/loopmill/loopmill/internal/models"
)

func limits(minIter, maxIter int, minHours, maxHours float64) models.Limits {
	return models.Limits{
		MinHours:      minHours,
		MaxHours:      maxHours,
		MinIterations: minIter,
		MaxIterations: maxIter,
	}
}

func genericStop(kind detect.Kind) detect.Result {
	return detect.Result{AnyDetected: true, FirstKind: kind}
}

func adapterResult(shouldContinue bool, confidence float64) models.ConvergenceResult {
	return models.ConvergenceResult{ShouldContinue: shouldContinue, Confidence: confidence, Reason: "adapter says so"}
}

func TestKillSwitchBeatsEverything(t *testing.T) {
	decision := Decide(Inputs{
		IterationCount: 3,
		Limits:         limits(10, 20, 0, 0),
		KillSwitch:     true,
		Adapter:        adapterResult(true, models.ConfidenceAuthoritative),
	})
	assert.Equal(t, models.DecisionStop, decision.Kind)
	assert.Equal(t, models.RuleKillSwitch, decision.Rule)
}

func TestHardLimitPrecedence(t *testing.T) {
	// Adapter demands continue with full authority; the limit still wins.
	decision := Decide(Inputs{
		IterationCount: 20,
		Limits:         limits(0, 20, 0, 0),
		Adapter:        adapterResult(true, models.ConfidenceAuthoritative),
	})
	assert.Equal(t, models.DecisionStop, decision.Kind)
	assert.Equal(t, models.RuleHardLimit, decision.Rule)
	assert.Contains(t, decision.Reason, "max iterations")

	decision = Decide(Inputs{
		RuntimeSeconds: 4 * 3600,
		Limits:         limits(0, 0, 0, 4),
		Adapter:        adapterResult(true, models.ConfidenceAuthoritative),
	})
	assert.Equal(t, models.DecisionStop, decision.Kind)
	assert.Contains(t, decision.Reason, "max runtime")
}

func TestMinimumWorkGuarantee(t *testing.T) {
	// Spec scenario: authoritative stop at iteration 8 with min 10 still
	// continues; the hard minimum beats adapter confidence.
	decision := Decide(Inputs{
		IterationCount: 8,
		Limits:         limits(10, 20, 0, 0),
		Adapter:        adapterResult(false, models.ConfidenceAuthoritative),
	})
	assert.Equal(t, models.DecisionContinue, decision.Kind)
	assert.Equal(t, models.RuleMinimumWork, decision.Rule)

	decision = Decide(Inputs{
		IterationCount: 15,
		RuntimeSeconds: 1800,
		Limits:         limits(10, 20, 1, 8),
		Generic:        genericStop(detect.KindExplicitMarker),
	})
	assert.Equal(t, models.DecisionContinue, decision.Kind)
	assert.Contains(t, decision.Reason, "minimum runtime")
}

func TestAuthoritativeAdapterVerdictAdoptedVerbatim(t *testing.T) {
	stop := Decide(Inputs{
		IterationCount: 12,
		Limits:         limits(10, 20, 0, 0),
		AdapterName:    "taskboard",
		Adapter:        adapterResult(false, models.ConfidenceAuthoritative),
	})
	assert.Equal(t, models.DecisionStop, stop.Kind)
	assert.Equal(t, models.RuleAdapterAuthority, stop.Rule)

	// Even against a generic stop signal, an authoritative continue wins.
	cont := Decide(Inputs{
		IterationCount: 12,
		Limits:         limits(10, 20, 0, 0),
		Adapter:        adapterResult(true, models.ConfidenceAuthoritative),
		Generic:        genericStop(detect.KindChecklist),
	})
	assert.Equal(t, models.DecisionContinue, cont.Kind)
}

func TestAdvisoryAdapterNeedsAgreement(t *testing.T) {
	// Both say stop: stop.
	decision := Decide(Inputs{
		IterationCount: 12,
		Limits:         limits(10, 20, 0, 0),
		Adapter:        adapterResult(false, models.ConfidenceAdvisory),
		Generic:        genericStop(detect.KindFrontmatter),
	})
	assert.Equal(t, models.DecisionStop, decision.Kind)
	assert.Equal(t, models.RuleAdapterAgreement, decision.Rule)

	// Adapter says stop, generic silent: disagreement biases to continue.
	decision = Decide(Inputs{
		IterationCount: 12,
		Limits:         limits(10, 20, 0, 0),
		Adapter:        adapterResult(false, models.ConfidenceAdvisory),
	})
	assert.Equal(t, models.DecisionContinue, decision.Kind)
	assert.Contains(t, decision.Reason, "disagree")

	// Both say continue: continue via agreement.
	decision = Decide(Inputs{
		IterationCount: 12,
		Limits:         limits(10, 20, 0, 0),
		Adapter:        adapterResult(true, models.ConfidenceAdvisory),
	})
	assert.Equal(t, models.DecisionContinue, decision.Kind)
	assert.Equal(t, models.RuleAdapterAgreement, decision.Rule)

	// Adapter says continue, generic says stop: continue (bias to work).
	decision = Decide(Inputs{
		IterationCount: 12,
		Limits:         limits(10, 20, 0, 0),
		Adapter:        adapterResult(true, models.ConfidenceAdvisory),
		Generic:        genericStop(detect.KindIdleLoop),
	})
	assert.Equal(t, models.DecisionContinue, decision.Kind)
}

func TestNoOpinionDefersToGenericDetector(t *testing.T) {
	// Spec scenario: marker at iteration 12 under the universal adapter.
	decision := Decide(Inputs{
		IterationCount: 12,
		Limits:         limits(10, 20, 0, 0),
		AdapterName:    "universal",
		Adapter:        adapterResult(true, models.ConfidenceNone),
		Generic:        genericStop(detect.KindExplicitMarker),
	})
	assert.Equal(t, models.DecisionStop, decision.Kind)
	assert.Equal(t, models.RuleGenericSignal, decision.Rule)
	assert.Contains(t, decision.Reason, "explicit_marker")
}

func TestDefaultContinue(t *testing.T) {
	decision := Decide(Inputs{
		IterationCount: 12,
		Limits:         limits(10, 20, 0, 0),
		Adapter:        adapterResult(true, models.ConfidenceNone),
	})
	assert.Equal(t, models.DecisionContinue, decision.Kind)
	assert.Equal(t, models.RuleDefaultContinue, decision.Rule)
}

func TestBelowMinimumWithNoSignals(t *testing.T) {
	// Spec scenario 1: five invocations below min 10 all continue.
	for i := 0; i < 5; i++ {
		decision := Decide(Inputs{
			IterationCount: i,
			Limits:         limits(10, 20, 0, 0),
		})
		assert.Equal(t, models.DecisionContinue, decision.Kind, "iteration %d", i)
		assert.Equal(t, models.RuleMinimumWork, decision.Rule)
	}
}

func TestHardLimitForAnyConfidenceAndSignal(t *testing.T) {
	confidences := []float64{0, 0.5, 1.0}
	generics := []detect.Result{{}, genericStop(detect.KindExplicitMarker)}
	continues := []bool{true, false}

	for _, confidence := range confidences {
		for _, generic := range generics {
			for _, shouldContinue := range continues {
				decision := Decide(Inputs{
					IterationCount: 20,
					Limits:         limits(0, 20, 0, 0),
					Adapter:        adapterResult(shouldContinue, confidence),
					Generic:        generic,
				})
				assert.Equal(t, models.DecisionStop, decision.Kind)
				assert.Equal(t, models.RuleHardLimit, decision.Rule)
			}
		}
	}
}
