// Package detect scans session artifacts and transcripts for independent
// completion signals.
package detect

import (
	"fmt"
	"strings"
)

// Kind identifies one completion signal.
type Kind string

const (
	// KindExplicitMarker fires when the agent emitted the done sentinel.
	KindExplicitMarker Kind = "explicit_marker"
	// KindChecklist fires when every checklist item in the focus artifact
	// is checked.
	KindChecklist Kind = "checklist_complete"
	// KindFrontmatter fires when the artifact's status field is terminal.
	KindFrontmatter Kind = "status_frontmatter"
	// KindIdleLoop fires when recent prompts are near-duplicates with no
	// file changes; nothing is "complete" but continuing wastes budget.
	KindIdleLoop Kind = "idle_loop"
)

// kindOrder is the fixed precedence order signals are evaluated in.
// First match wins for FirstKind; all are recorded for observability.
var kindOrder = []Kind{KindExplicitMarker, KindChecklist, KindFrontmatter, KindIdleLoop}

// Signal is one evaluated completion signal.
type Signal struct {
	Kind     Kind   `json:"kind"`
	Detected bool   `json:"detected"`
	Evidence string `json:"evidence,omitempty"`
}

// Result is the detector's output for one invocation.
type Result struct {
	AnyDetected bool     `json:"any_detected"`
	FirstKind   Kind     `json:"first_kind,omitempty"`
	Signals     []Signal `json:"signals"`

	// IdleStreak is the updated consecutive near-duplicate count; the
	// controller persists it back into the session.
	IdleStreak int `json:"idle_streak"`
}

// Input carries everything the detector inspects. Evaluation is a pure
// function of this input: running it twice yields identical results.
type Input struct {
	// FocusArtifact is the contents of the session's focus file, if any.
	FocusArtifact string

	// Transcript is the recent transcript excerpt supplied by the host.
	Transcript string

	// Prompt is the newest continuation prompt.
	Prompt string

	// RecentPrompts is the rolling window of prior prompts (oldest first).
	RecentPrompts []string

	// FilesChanged is the number of files the last turn modified.
	FilesChanged int

	// IdleStreak is the streak carried over from the previous invocation.
	IdleStreak int
}

// Config tunes the detector.
type Config struct {
	// DoneMarker is the explicit completion sentinel.
	DoneMarker string

	// TerminalStatuses are frontmatter values meaning finished.
	TerminalStatuses []string

	// SimilarityThreshold is the idle-loop cutoff in [0,1].
	SimilarityThreshold float64

	// IdleStreakLimit is how many consecutive near-duplicate turns fire
	// the idle-loop signal.
	IdleStreakLimit int
}

// Detector evaluates completion signals in fixed precedence order.
type Detector struct {
	cfg        Config
	similarity Similarity
}

// New creates a detector. A nil similarity falls back to token overlap.
func New(cfg Config, similarity Similarity) *Detector {
	if similarity == nil {
		similarity = TokenSimilarity{}
	}
	if cfg.DoneMarker == "" {
		cfg.DoneMarker = "LOOPMILL:DONE"
	}
	if len(cfg.TerminalStatuses) == 0 {
		cfg.TerminalStatuses = []string{"done", "complete", "completed"}
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.9
	}
	if cfg.IdleStreakLimit <= 0 {
		cfg.IdleStreakLimit = 2
	}
	return &Detector{cfg: cfg, similarity: similarity}
}

// Evaluate runs every signal and reports the first match.
func (d *Detector) Evaluate(in Input) Result {
	signals := map[Kind]Signal{
		KindExplicitMarker: d.checkMarker(in),
		KindChecklist:      d.checkChecklist(in),
		KindFrontmatter:    d.checkFrontmatter(in),
	}
	idle, streak := d.checkIdleLoop(in)
	signals[KindIdleLoop] = idle

	result := Result{IdleStreak: streak}
	for _, kind := range kindOrder {
		signal := signals[kind]
		result.Signals = append(result.Signals, signal)
		if signal.Detected && !result.AnyDetected {
			result.AnyDetected = true
			result.FirstKind = kind
		}
	}
	return result
}

func (d *Detector) checkMarker(in Input) Signal {
	signal := Signal{Kind: KindExplicitMarker}
	for _, text := range []string{in.FocusArtifact, in.Transcript} {
		if text == "" {
			continue
		}
		if idx := strings.Index(text, d.cfg.DoneMarker); idx >= 0 {
			signal.Detected = true
			signal.Evidence = fmt.Sprintf("marker %q present", d.cfg.DoneMarker)
			return signal
		}
	}
	return signal
}

func (d *Detector) checkChecklist(in Input) Signal {
	signal := Signal{Kind: KindChecklist}
	if in.FocusArtifact == "" {
		return signal
	}
	total, done := checklistProgress(in.FocusArtifact)
	if total == 0 {
		return signal
	}
	signal.Evidence = fmt.Sprintf("%d/%d checklist items complete", done, total)
	signal.Detected = done == total
	return signal
}

func (d *Detector) checkFrontmatter(in Input) Signal {
	signal := Signal{Kind: KindFrontmatter}
	status := parseFrontmatterStatus(in.FocusArtifact)
	if status == "" {
		return signal
	}
	signal.Evidence = fmt.Sprintf("status: %s", status)
	for _, terminal := range d.cfg.TerminalStatuses {
		if status == strings.ToLower(terminal) {
			signal.Detected = true
			return signal
		}
	}
	return signal
}

func (d *Detector) checkIdleLoop(in Input) (Signal, int) {
	signal := Signal{Kind: KindIdleLoop}

	if strings.TrimSpace(in.Prompt) == "" || len(in.RecentPrompts) == 0 {
		return signal, 0
	}
	if in.FilesChanged > 0 {
		// Real progress resets the streak even if the prompt repeats.
		return signal, 0
	}

	maxScore := 0.0
	for _, prior := range in.RecentPrompts {
		if score := d.similarity.Score(in.Prompt, prior); score > maxScore {
			maxScore = score
		}
	}

	if maxScore < d.cfg.SimilarityThreshold {
		return signal, 0
	}

	streak := in.IdleStreak + 1
	signal.Evidence = fmt.Sprintf("max similarity %.2f over %d prompts, streak %d", maxScore, len(in.RecentPrompts), streak)
	signal.Detected = streak >= d.cfg.IdleStreakLimit
	return signal, streak
}

// PushPrompt appends a prompt to a rolling window, keeping at most size
// entries (oldest dropped first).
func PushPrompt(window []string, prompt string, size int) []string {
	if size < 1 {
		size = 1
	}
	window = append(window, prompt)
	if len(window) > size {
		window = window[len(window)-size:]
	}
	return append([]string(nil), window...)
}
