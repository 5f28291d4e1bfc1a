package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/atomic"

	"github.com/talgya/deus-ex/internal/llm"
	"github.com/talgya/deus-ex/internal/world"
)

// Years advanced per trigger: 1 for a direct divine command, 5 for
// decision resolutions, timeouts, and the scheduler's automatic rhythm.
// DefaultYears is the fallback for a request that left the span unset.
const (
	DefaultYears  = 10
	CommandYears  = 1
	DecisionYears = 5
	AutoYears     = 5
)

// TurnRequest is one "advance the simulation" call. PlayerCommand and
// DecisionAnswer are optional; DecisionAnswer may be llm.SilenceAnswer
// to record an explicit non-answer.
type TurnRequest struct {
	Snapshot       *world.Snapshot
	PlayerCommand  string
	DecisionAnswer string
	YearsToAdvance int
}

// TurnResult is what the caller applies to persistent state. Model
// failures never surface as errors: an exhausted retry loop produces a
// fallback snapshot with Failed set and an explanatory SYSTEM log.
type TurnResult struct {
	// Dropped means another turn was already in flight; state is
	// untouched and no outbound request was made.
	Dropped bool
	// Snapshot is the fully merged next state.
	Snapshot *world.Snapshot
	// NewLogs are the entries generated this turn, including the
	// synthesized CHAT entry for a player command.
	NewLogs []world.LogEntry
	// Failed marks the exhausted-fallback path: year held, no progress.
	Failed bool
}

// Turner composes the pipeline: prompt → invoke (with retry) → normalize
// → merge, plus best-effort illustration enrichment. It is safe for
// concurrent use; overlapping turns are dropped, not queued.
type Turner struct {
	invoker    llm.Invoker
	images     llm.ImageGenerator // nil disables illustration
	normalizer *llm.Normalizer
	policy     RetryPolicy
	sleep      SleepFunc

	// Policy knob for the exhausted-fallback path. Default false: a lost
	// turn does not silently skip history.
	advanceYearOnFailure bool

	inFlight atomic.Bool
}

// TurnerConfig wires a Turner. Only Invoker is required.
type TurnerConfig struct {
	Invoker              llm.Invoker
	Images               llm.ImageGenerator
	Policy               RetryPolicy
	Sleep                SleepFunc
	AdvanceYearOnFailure bool
}

// NewTurner creates the turn controller.
func NewTurner(cfg TurnerConfig) *Turner {
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = DefaultRetryPolicy()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = defaultSleep
	}
	return &Turner{
		invoker:              cfg.Invoker,
		images:               cfg.Images,
		normalizer:           llm.NewNormalizer(),
		policy:               cfg.Policy,
		sleep:                cfg.Sleep,
		advanceYearOnFailure: cfg.AdvanceYearOnFailure,
	}
}

// Advance runs one turn. The input snapshot is not mutated; the result
// carries the next snapshot. A call arriving while a turn is in flight
// returns Dropped with no side effects.
func (t *Turner) Advance(ctx context.Context, req TurnRequest) *TurnResult {
	if !t.inFlight.CompareAndSwap(false, true) {
		slog.Debug("turn dropped: another turn in flight")
		return &TurnResult{Dropped: true}
	}
	defer t.inFlight.Store(false)

	years := req.YearsToAdvance
	if years <= 0 {
		years = DefaultYears
	}

	working := req.Snapshot.Clone()

	// A spoken command enters the chronicle before the model is called,
	// so it survives even if every attempt fails.
	var chatLogs []world.LogEntry
	if req.PlayerCommand != "" {
		cmd := world.LogEntry{
			ID:      fmt.Sprintf("cmd-%d", time.Now().UnixMilli()),
			Year:    working.Stats.Year,
			Type:    world.LogChat,
			Content: fmt.Sprintf("Divine command: %q", req.PlayerCommand),
		}
		working.Logs = append(working.Logs, cmd)
		chatLogs = append(chatLogs, cmd)
	}

	prompt := llm.BuildSimulationPrompt(llm.PromptInput{
		Stats:          working.Stats,
		Factions:       working.Factions,
		ActiveFigures:  world.AliveFigures(working.Figures),
		RecentLogs:     working.Logs,
		PlayerCommand:  req.PlayerCommand,
		DecisionAnswer: req.DecisionAnswer,
		YearsToAdvance: years,
	})

	outcome := runWithRetry(ctx, t.invoker, t.normalizer, t.policy, t.sleep, prompt)

	var delta *world.Delta
	failed := outcome.failed
	if failed {
		delta = fallbackDelta(working.Stats, outcome.kind, years, t.advanceYearOnFailure)
	} else {
		delta = outcome.delta
		// Illustration is attempted only when the first attempt
		// succeeded; a retried turn already spent its latency budget.
		if outcome.attempt == 1 {
			t.attachIllustration(ctx, delta)
		}
	}

	next := Merge(working, delta)

	slog.Info("turn complete",
		"year", next.Stats.Year,
		"population", next.Stats.Population,
		"new_logs", len(delta.Logs),
		"failed", failed,
	)

	return &TurnResult{
		Snapshot: next,
		NewLogs:  append(chatLogs, delta.Logs...),
		Failed:   failed,
	}
}

// attachIllustration best-effort generates an image for the delta's
// visual prompt and attaches it to the first log entry, the sole carrier.
// Failure or absence never affects the turn result.
func (t *Turner) attachIllustration(ctx context.Context, delta *world.Delta) {
	if t.images == nil || delta.VisualPrompt == "" || len(delta.Logs) == 0 {
		return
	}
	url, err := t.images.GenerateImage(ctx, llm.IllustrationPrompt(delta.VisualPrompt))
	if err != nil {
		slog.Warn("illustration generation failed", "error", err)
		return
	}
	if url != "" {
		delta.Logs[0].ImageURL = url
	}
}
