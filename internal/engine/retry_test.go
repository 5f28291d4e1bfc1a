package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/talgya/deus-ex/internal/llm"
	"github.com/talgya/deus-ex/internal/world"
)

func TestRetryPolicyPlan(t *testing.T) {
	p := DefaultRetryPolicy()

	tests := []struct {
		name    string
		kind    llm.FailureKind
		attempt int
		want    time.Duration
		retry   bool
	}{
		{"rate limited first", llm.RateLimited, 1, 12 * time.Second, true},
		{"rate limited second", llm.RateLimited, 2, 24 * time.Second, true},
		{"rate limited exhausted", llm.RateLimited, 3, 0, false},
		{"generic first", llm.Unreachable, 1, 2 * time.Second, true},
		{"generic second", llm.Unreachable, 2, 4 * time.Second, true},
		{"generic exhausted", llm.Unreachable, 3, 0, false},
		{"malformed second", llm.MalformedResponse, 2, 4 * time.Second, true},
		{"unauthorized retried", llm.Unauthorized, 1, 2 * time.Second, true},
		{"config missing never retries", llm.ConfigurationMissing, 1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wait, retry := p.Plan(tt.kind, tt.attempt)
			if retry != tt.retry {
				t.Fatalf("retry = %v, want %v", retry, tt.retry)
			}
			if retry && wait != tt.want {
				t.Errorf("wait = %v, want %v", wait, tt.want)
			}
		})
	}
}

// scriptedInvoker replays a fixed sequence of replies.
type scriptedInvoker struct {
	mu      sync.Mutex
	calls   int
	prompts []llm.Prompt
	script  []func() (json.RawMessage, error)
}

func (s *scriptedInvoker) Invoke(ctx context.Context, prompt llm.Prompt) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	i := s.calls
	s.calls++
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	return s.script[i]()
}

func failWith(kind llm.FailureKind) func() (json.RawMessage, error) {
	return func() (json.RawMessage, error) {
		return nil, &llm.CallError{Kind: kind}
	}
}

func succeedWith(raw string) func() (json.RawMessage, error) {
	return func() (json.RawMessage, error) {
		return json.RawMessage(raw), nil
	}
}

func noSleep(ctx context.Context, d time.Duration) {}

func TestRunWithRetryEventualSuccess(t *testing.T) {
	inv := &scriptedInvoker{script: []func() (json.RawMessage, error){
		failWith(llm.RateLimited),
		failWith(llm.RateLimited),
		succeedWith(`{"newYear": 21, "populationChange": 10, "logs": []}`),
	}}

	var waits []time.Duration
	sleep := func(ctx context.Context, d time.Duration) { waits = append(waits, d) }

	out := runWithRetry(context.Background(), inv, llm.NewNormalizer(), DefaultRetryPolicy(), sleep, llm.Prompt{})
	if out.failed {
		t.Fatal("expected success on third attempt")
	}
	if out.attempt != 3 {
		t.Errorf("attempt = %d, want 3", out.attempt)
	}
	if out.delta.NewYear != 21 {
		t.Errorf("newYear = %d, want 21", out.delta.NewYear)
	}
	if len(waits) != 2 || waits[0] != 12*time.Second || waits[1] != 24*time.Second {
		t.Errorf("waits = %v, want [12s 24s]", waits)
	}
}

func TestRunWithRetryExhausted(t *testing.T) {
	inv := &scriptedInvoker{script: []func() (json.RawMessage, error){
		failWith(llm.Unreachable),
	}}

	out := runWithRetry(context.Background(), inv, llm.NewNormalizer(), DefaultRetryPolicy(), noSleep, llm.Prompt{})
	if !out.failed {
		t.Fatal("expected exhaustion")
	}
	if inv.calls != 3 {
		t.Errorf("calls = %d, want 3", inv.calls)
	}
	if out.kind != llm.Unreachable {
		t.Errorf("kind = %v, want Unreachable", out.kind)
	}
}

func TestRunWithRetryConfigMissingShortCircuits(t *testing.T) {
	inv := &scriptedInvoker{script: []func() (json.RawMessage, error){
		failWith(llm.ConfigurationMissing),
	}}

	out := runWithRetry(context.Background(), inv, llm.NewNormalizer(), DefaultRetryPolicy(), noSleep, llm.Prompt{})
	if !out.failed {
		t.Fatal("expected failure")
	}
	if inv.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries for missing configuration)", inv.calls)
	}
}

func TestFallbackDeltaHoldsYear(t *testing.T) {
	prev := world.WorldStats{Year: 42, Population: 1000}

	delta := fallbackDelta(prev, llm.Unreachable, 10, false)
	if delta.NewYear != 42 {
		t.Errorf("newYear = %d, want held at 42", delta.NewYear)
	}
	if delta.PopulationChange != 0 {
		t.Errorf("populationChange = %d, want 0", delta.PopulationChange)
	}
	if len(delta.Logs) != 1 || delta.Logs[0].Type != world.LogSystem {
		t.Fatalf("logs = %+v, want exactly one SYSTEM entry", delta.Logs)
	}
	if !IsFailureLog(delta.Logs[0]) {
		t.Error("fallback log not detected as failure log")
	}
	if len(delta.Factions) != 0 || len(delta.UpdatedFigures) != 0 {
		t.Error("fallback delta must leave collections empty so the merge retains state")
	}
}

func TestFallbackDeltaAdvanceYearKnob(t *testing.T) {
	prev := world.WorldStats{Year: 42}

	delta := fallbackDelta(prev, llm.RateLimited, 10, true)
	if delta.NewYear != 52 {
		t.Errorf("newYear = %d, want 52 with advance knob set", delta.NewYear)
	}
}

func TestIsFailureLog(t *testing.T) {
	tests := []struct {
		name string
		log  world.LogEntry
		want bool
	}{
		{"rate limit marker", world.LogEntry{Type: world.LogSystem, Content: msgRateLimited}, true},
		{"auth marker", world.LogEntry{Type: world.LogSystem, Content: msgUnauthorized}, true},
		{"ordinary system log", world.LogEntry{Type: world.LogSystem, Content: "Year 100 dawns."}, false},
		{"marker text outside SYSTEM", world.LogEntry{Type: world.LogHistorical, Content: msgUnreachable}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFailureLog(tt.log); got != tt.want {
				t.Errorf("IsFailureLog = %v, want %v", got, tt.want)
			}
		})
	}
}
