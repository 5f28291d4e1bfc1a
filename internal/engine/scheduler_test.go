package engine

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/talgya/deus-ex/internal/llm"
	"github.com/talgya/deus-ex/internal/world"
)

type memStore struct {
	mu    sync.Mutex
	saves int
	last  *world.Snapshot
}

func (m *memStore) Load(ctx context.Context) (*world.Snapshot, error) { return nil, nil }

func (m *memStore) Save(ctx context.Context, snap *world.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.last = snap
	return nil
}

func (m *memStore) Clear(ctx context.Context) error { return nil }
func (m *memStore) Close() error                    { return nil }

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type recordingCues struct {
	mu        sync.Mutex
	alerts    int
	decisions int
}

func (r *recordingCues) TurnStart()       {}
func (r *recordingCues) CommandAccepted() {}

func (r *recordingCues) DecisionArrived() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions++
}

func (r *recordingCues) Alert() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts++
}

func fastConfig() SchedulerConfig {
	return SchedulerConfig{
		SecondsPerYear:  1,
		DecisionTimeout: 20 * time.Millisecond,
		TickInterval:    10 * time.Millisecond,
	}
}

func newScheduler(inv llm.Invoker, snap *world.Snapshot, db *memStore, cues Cues) *Scheduler {
	if db == nil {
		db = &memStore{}
	}
	return NewScheduler(newTurner(inv, nil), NewPortraits(nil), db, cues, fastConfig(), snap)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSchedulerSubmitCommand(t *testing.T) {
	inv := &scriptedInvoker{script: []func() (json.RawMessage, error){succeedWith(successReply)}}
	db := &memStore{}
	s := newScheduler(inv, basePrev(), db, nil)

	result := s.SubmitCommand(context.Background(), "Bless the harvest")
	if result.Dropped || result.Failed {
		t.Fatalf("result = %+v, want clean success", result)
	}
	if got := s.Snapshot().Stats.Year; got != 11 {
		t.Errorf("live year = %d, want 11", got)
	}
	if !s.Playing() {
		t.Error("time should keep flowing after an uneventful turn")
	}
	if db.saveCount() != 1 {
		t.Errorf("saves = %d, want 1", db.saveCount())
	}
	if !strings.Contains(inv.prompts[0].System, "Bless the harvest") {
		t.Error("prompt does not carry the command")
	}
}

func TestSchedulerPausesOnFailure(t *testing.T) {
	inv := &scriptedInvoker{script: []func() (json.RawMessage, error){failWith(llm.Unreachable)}}
	cues := &recordingCues{}
	s := newScheduler(inv, basePrev(), nil, cues)

	result := s.SubmitCommand(context.Background(), "test")
	if !result.Failed {
		t.Fatal("expected fallback result")
	}
	if s.Playing() {
		t.Error("scheduler should auto-pause on failure")
	}
	if cues.alerts != 1 {
		t.Errorf("alerts = %d, want 1", cues.alerts)
	}
}

const decisionReply = `{
	"newYear": 6,
	"populationChange": 0,
	"logs": [{"type": "HISTORICAL", "content": "A petition reaches the heavens."}],
	"factions": [],
	"updatedFigures": [],
	"pendingDecision": {
		"senderName": "Archon Severin",
		"senderRole": "High Pontifex",
		"message": "Shall we burn the heretics?",
		"options": [
			{"id": "opt-mercy", "text": "Show mercy"},
			{"id": "opt-fire", "text": "Let them burn"}
		]
	},
	"visualPrompt": ""
}`

func TestSchedulerPausesOnDecision(t *testing.T) {
	inv := &scriptedInvoker{script: []func() (json.RawMessage, error){succeedWith(decisionReply)}}
	cues := &recordingCues{}
	s := newScheduler(inv, basePrev(), nil, cues)

	s.SubmitCommand(context.Background(), "test")
	if s.Playing() {
		t.Error("a pending decision should pause time")
	}
	if cues.decisions != 1 {
		t.Errorf("decision cues = %d, want 1", cues.decisions)
	}
	if s.Snapshot().PendingDecision == nil {
		t.Fatal("decision not installed on live snapshot")
	}
}

func TestSchedulerAnswerDecision(t *testing.T) {
	inv := &scriptedInvoker{script: []func() (json.RawMessage, error){
		succeedWith(decisionReply),
		succeedWith(successReply),
	}}
	s := newScheduler(inv, basePrev(), nil, nil)
	s.SubmitCommand(context.Background(), "test")

	pending := s.Snapshot().PendingDecision
	if pending == nil || len(pending.Options) != 2 {
		t.Fatalf("pending = %+v, want two options", pending)
	}

	result, err := s.AnswerDecision(context.Background(), pending.Options[0].ID)
	if err != nil {
		t.Fatalf("AnswerDecision: %v", err)
	}
	if result.Failed {
		t.Fatal("answer turn failed")
	}
	if !strings.Contains(inv.prompts[1].System, "Show mercy") {
		t.Error("prompt does not carry the chosen option text")
	}
	if s.Snapshot().PendingDecision != nil {
		t.Error("decision should be cleared after the answer turn")
	}
	if !s.Playing() {
		t.Error("time should resume after the decision resolves")
	}
}

func TestSchedulerAnswerDecisionErrors(t *testing.T) {
	inv := &scriptedInvoker{script: []func() (json.RawMessage, error){succeedWith(decisionReply)}}
	s := newScheduler(inv, basePrev(), nil, nil)

	if _, err := s.AnswerDecision(context.Background(), "opt-mercy"); err == nil {
		t.Error("expected error with no pending decision")
	}

	s.SubmitCommand(context.Background(), "test")
	if _, err := s.AnswerDecision(context.Background(), "no-such-option"); err == nil {
		t.Error("expected error for unknown option id")
	}
}

func TestSchedulerDecisionTimeoutFiresSilenceOnce(t *testing.T) {
	inv := &scriptedInvoker{script: []func() (json.RawMessage, error){succeedWith(successReply)}}
	snap := basePrev()
	snap.PendingDecision = &world.PendingDecision{
		ID:         "d1",
		SenderName: "Archon Severin",
		Message:    "Answer us",
		Options:    []world.DecisionOption{{ID: "o1", Text: "Yes"}},
	}
	s := newScheduler(inv, snap, nil, nil)

	if s.Playing() {
		t.Fatal("scheduler should start paused with a decision outstanding")
	}

	time.Sleep(30 * time.Millisecond)
	ctx := context.Background()
	s.tick(ctx)
	waitFor(t, func() bool { return s.Snapshot().PendingDecision == nil },
		"decision never timed out to silence")

	// Extra ticks after resolution must not fire a second silence turn.
	s.tick(ctx)
	s.tick(ctx)
	waitFor(t, func() bool { return !s.Loading() }, "turn never settled")

	inv.mu.Lock()
	prompts := len(inv.prompts)
	inv.mu.Unlock()
	if prompts != 1 {
		t.Fatalf("invocations = %d, want exactly 1 silence turn", prompts)
	}
	if !strings.Contains(inv.prompts[0].System, "silence") {
		t.Error("timeout turn does not frame silence")
	}
}

func TestSchedulerCommandResolvesPendingDecisionAsSilence(t *testing.T) {
	inv := &scriptedInvoker{script: []func() (json.RawMessage, error){succeedWith(successReply)}}
	snap := basePrev()
	snap.PendingDecision = &world.PendingDecision{
		ID:         "d1",
		SenderName: "Archon Severin",
		Message:    "Answer us",
		Options:    []world.DecisionOption{{ID: "o1", Text: "Yes"}},
	}
	s := newScheduler(inv, snap, nil, nil)

	result := s.SubmitCommand(context.Background(), "Build a lighthouse")
	if result.Dropped || result.Failed {
		t.Fatalf("result = %+v, want clean success", result)
	}

	sys := inv.prompts[0].System
	if !strings.Contains(sys, "God answered with silence.") {
		t.Error("outstanding decision not resolved as silence when a command fires")
	}
	if !strings.Contains(sys, "Build a lighthouse") {
		t.Error("prompt does not carry the command")
	}
	if s.Snapshot().PendingDecision != nil {
		t.Error("decision should be resolved, not left pending")
	}
}

func TestSchedulerAnswerDecisionEmptyOptionText(t *testing.T) {
	inv := &scriptedInvoker{script: []func() (json.RawMessage, error){succeedWith(successReply)}}
	snap := basePrev()
	snap.PendingDecision = &world.PendingDecision{
		ID:      "d1",
		Message: "Answer us",
		Options: []world.DecisionOption{{ID: "o1", Text: ""}},
	}
	s := newScheduler(inv, snap, nil, nil)

	if _, err := s.AnswerDecision(context.Background(), "o1"); err != nil {
		t.Fatalf("a known option with empty text must not be rejected: %v", err)
	}
	if s.Snapshot().PendingDecision != nil {
		t.Error("decision should be resolved")
	}
}

func TestNewSchedulerPartialConfigKeepsFields(t *testing.T) {
	inv := &scriptedInvoker{script: []func() (json.RawMessage, error){succeedWith(successReply)}}
	cfg := SchedulerConfig{SecondsPerYear: 7, DecisionTimeout: 9 * time.Second}
	s := NewScheduler(newTurner(inv, nil), NewPortraits(nil), nil, nil, cfg, basePrev())

	if s.cfg.SecondsPerYear != 7 {
		t.Errorf("seconds per year = %d, want caller's 7", s.cfg.SecondsPerYear)
	}
	if s.cfg.DecisionTimeout != 9*time.Second {
		t.Errorf("decision timeout = %v, want caller's 9s", s.cfg.DecisionTimeout)
	}
	if s.cfg.TickInterval != DefaultSchedulerConfig().TickInterval {
		t.Errorf("tick interval = %v, want defaulted", s.cfg.TickInterval)
	}
}

func TestSchedulerCountdownFiresAutoTurn(t *testing.T) {
	inv := &scriptedInvoker{script: []func() (json.RawMessage, error){succeedWith(successReply)}}
	s := newScheduler(inv, basePrev(), nil, nil)

	ctx := context.Background()
	// SecondsPerYear=1 at 10ms ticks: 100 ticks to fire.
	for i := 0; i < 100; i++ {
		s.tick(ctx)
	}
	waitFor(t, func() bool { return s.Snapshot().Stats.Year == 11 },
		"automatic turn never fired")

	if p := s.Progress(); p >= 100 {
		t.Errorf("progress = %v, want reset below 100", p)
	}
	if !strings.Contains(inv.prompts[0].System, "Advance the world by 5 years") {
		t.Error("automatic turn should advance 5 years")
	}
}

func TestSchedulerPauseStopsCountdown(t *testing.T) {
	inv := &scriptedInvoker{script: []func() (json.RawMessage, error){succeedWith(successReply)}}
	s := newScheduler(inv, basePrev(), nil, nil)
	s.SetPlaying(false)

	ctx := context.Background()
	for i := 0; i < 150; i++ {
		s.tick(ctx)
	}
	if s.Progress() != 0 {
		t.Errorf("progress = %v, want 0 while paused", s.Progress())
	}
	if len(inv.prompts) != 0 {
		t.Errorf("invocations = %d, want 0 while paused", len(inv.prompts))
	}
}
