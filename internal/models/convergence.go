package models

import "time"

// Confidence tiers for adapter convergence results. The float scale is kept
// open so adapters can express intermediate values, but these three anchors
// carry defined arbitration semantics.
const (
	// ConfidenceNone means the adapter has no opinion; generic signals decide.
	ConfidenceNone = 0.0
	// ConfidenceAdvisory means the adapter's verdict counts only when the
	// generic detector agrees.
	ConfidenceAdvisory = 0.5
	// ConfidenceAuthoritative means the adapter's verdict overrides
	// everything except hard limits and the kill switch.
	ConfidenceAuthoritative = 1.0
)

// ConvergenceResult is an adapter's judgment of whether the loop should keep
// iterating.
type ConvergenceResult struct {
	ShouldContinue bool    `json:"should_continue"`
	Reason         string  `json:"reason"`
	Confidence     float64 `json:"confidence"`
}

// MetricsEntry is one externally observed measurement of project progress.
// Adapters produce these from artifacts; the controller only reads them.
type MetricsEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Values    map[string]string `json:"values"`
}

// DecisionKind is the controller's verdict for one invocation.
type DecisionKind string

const (
	DecisionStop     DecisionKind = "stop"
	DecisionContinue DecisionKind = "continue"
)

// DecisionRule identifies which arbitration rule produced a decision.
type DecisionRule string

const (
	RuleKillSwitch        DecisionRule = "kill_switch"
	RuleHardLimit         DecisionRule = "hard_limit"
	RuleMinimumWork       DecisionRule = "minimum_work"
	RuleAdapterAuthority  DecisionRule = "adapter_authoritative"
	RuleAdapterAgreement  DecisionRule = "adapter_agreement"
	RuleGenericSignal     DecisionRule = "generic_signal"
	RuleDefaultContinue   DecisionRule = "default_continue"
	RuleDrainComplete     DecisionRule = "drain_complete"
	RuleSessionNotRunning DecisionRule = "session_not_running"
)

// Decision is the arbiter's output for one invocation.
type Decision struct {
	Kind   DecisionKind `json:"decision"`
	Rule   DecisionRule `json:"rule"`
	Reason string       `json:"reason"`
}

// Stop reports whether the decision halts the loop.
func (d Decision) Stop() bool {
	return d.Kind == DecisionStop
}
