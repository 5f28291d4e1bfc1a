package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/talgya/deus-ex/internal/llm"
	"github.com/talgya/deus-ex/internal/world"
)

// RetryPolicy is the backoff decision table. Rate-limited failures wait
// substantially longer than the rest: quota windows reset on the scale of
// tens of seconds, transport blips on the scale of a couple.
type RetryPolicy struct {
	MaxAttempts   int
	RateLimitBase time.Duration // grows linearly per attempt
	GenericBase   time.Duration // doubles per attempt
}

// DefaultRetryPolicy matches the observed provider behavior: three
// attempts, ~12s baseline for 429s, ~2s exponential for everything else.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		RateLimitBase: 12 * time.Second,
		GenericBase:   2 * time.Second,
	}
}

// Plan is the pure decision function driving the retry state machine:
// given the failure class and the attempt that just failed (1-based), it
// returns how long to wait and whether to try again. ConfigurationMissing
// never retries; a credential does not appear mid-loop.
func (p RetryPolicy) Plan(kind llm.FailureKind, attempt int) (time.Duration, bool) {
	if kind == llm.ConfigurationMissing || attempt >= p.MaxAttempts {
		return 0, false
	}
	if kind == llm.RateLimited {
		return p.RateLimitBase * time.Duration(attempt), true
	}
	return p.GenericBase << (attempt - 1), true
}

// SleepFunc suspends between attempts. Injectable so the policy is
// testable without real delays.
type SleepFunc func(ctx context.Context, d time.Duration)

func defaultSleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// attemptOutcome is one invoke+normalize cycle's result.
type attemptOutcome struct {
	delta   *world.Delta
	attempt int // 1-based attempt that produced the delta
	kind    llm.FailureKind
	failed  bool
}

// runWithRetry loops invoke+normalize under the policy. On exhaustion the
// returned outcome has failed=true and carries no delta; the caller
// fabricates the fallback.
func runWithRetry(ctx context.Context, invoker llm.Invoker, normalizer *llm.Normalizer,
	policy RetryPolicy, sleep SleepFunc, prompt llm.Prompt) attemptOutcome {

	var lastKind llm.FailureKind
	for attempt := 1; ; attempt++ {
		raw, err := invoker.Invoke(ctx, prompt)
		if err == nil {
			return attemptOutcome{delta: normalizer.Normalize(raw), attempt: attempt}
		}

		lastKind = llm.KindOf(err)
		wait, retry := policy.Plan(lastKind, attempt)
		slog.Warn("model attempt failed",
			"attempt", attempt,
			"kind", lastKind.String(),
			"retry", retry,
			"wait", wait,
			"error", err,
		)
		if !retry {
			return attemptOutcome{kind: lastKind, failed: true}
		}
		sleep(ctx, wait)
		if ctx.Err() != nil {
			return attemptOutcome{kind: lastKind, failed: true}
		}
	}
}

// Fallback SYSTEM log messages, one per failure class, written for the
// chronicle reader. Auto-pause detection keys on these markers: the log
// is the only channel back to the UI layer.
const (
	msgRateLimited   = "System overload: the heavens are congested. Wait, and speak again."
	msgUnauthorized  = "The covenant is broken: the divine credentials were refused."
	msgUnreachable   = "The heavens are unreachable. The thread of history is held, not cut."
	msgMalformed     = "The oracle spoke in tongues no scribe could record."
	msgNotConfigured = "No conduit to the divine engine is configured."
)

func fallbackMessage(kind llm.FailureKind) string {
	switch kind {
	case llm.RateLimited:
		return msgRateLimited
	case llm.Unauthorized:
		return msgUnauthorized
	case llm.MalformedResponse:
		return msgMalformed
	case llm.ConfigurationMissing:
		return msgNotConfigured
	default:
		return msgUnreachable
	}
}

// failureMarkers are the substrings auto-pause detection scans SYSTEM
// logs for.
var failureMarkers = []string{
	"System overload",
	"covenant is broken",
	"heavens are unreachable",
	"spoke in tongues",
	"divine engine is configured",
}

// IsFailureLog reports whether a log entry is a turn-failure SYSTEM
// entry. Detection is marker-based on the content, not a structured
// code: the chronicle is the only channel to the caller.
func IsFailureLog(l world.LogEntry) bool {
	if l.Type != world.LogSystem {
		return false
	}
	for _, marker := range failureMarkers {
		if strings.Contains(l.Content, marker) {
			return true
		}
	}
	return false
}

// HasFailureLog reports whether any of the entries is a failure log.
func HasFailureLog(logs []world.LogEntry) bool {
	for _, l := range logs {
		if IsFailureLog(l) {
			return true
		}
	}
	return false
}

// fallbackDelta fabricates the degraded no-progress result after retries
// are exhausted: no population change, a single explanatory SYSTEM entry,
// collections empty so the merge retains all previous state. Year holds
// at the previous value unless advanceYear is set.
func fallbackDelta(prev world.WorldStats, kind llm.FailureKind, years int, advanceYear bool) *world.Delta {
	year := prev.Year
	if advanceYear {
		year += years
	}
	return &world.Delta{
		NewYear:          year,
		PopulationChange: 0,
		Logs: []world.LogEntry{{
			ID:      fmt.Sprintf("err-%d", time.Now().UnixMilli()),
			Year:    prev.Year,
			Type:    world.LogSystem,
			Content: fallbackMessage(kind),
		}},
		Factions:       []world.Faction{},
		UpdatedFigures: []world.Person{},
	}
}
