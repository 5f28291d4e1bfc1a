package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/talgya/deus-ex/internal/llm"
	"github.com/talgya/deus-ex/internal/store"
	"github.com/talgya/deus-ex/internal/world"
)

// SchedulerConfig tunes the autonomous rhythm of the world.
type SchedulerConfig struct {
	SecondsPerYear  int           // countdown length driving automatic turns
	DecisionTimeout time.Duration // how long a pending decision waits before silence
	TickInterval    time.Duration // countdown granularity
}

// DefaultSchedulerConfig mirrors the application defaults: a 30s year
// countdown ticked every 100ms, decisions timing out after 30s.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		SecondsPerYear:  30,
		DecisionTimeout: 30 * time.Second,
		TickInterval:    100 * time.Millisecond,
	}
}

// Scheduler owns the live snapshot and is the single writer of world
// state. It drives automatic turns from a countdown, times pending
// decisions out to silence, persists after every turn, and auto-pauses
// when a turn reports failure or a decision arrives. All turn triggers —
// automatic, command, decision answer, timeout — funnel through the same
// in-flight guard, so no two turns ever overlap.
type Scheduler struct {
	turner    *Turner
	portraits *Portraits
	db        store.Store
	cues      Cues
	cfg       SchedulerConfig

	playing atomic.Bool
	loading atomic.Bool

	mu               sync.Mutex
	snapshot         *world.Snapshot
	progress         float64 // 0..100 countdown toward the next automatic turn
	decisionDeadline time.Time
}

// NewScheduler wires the scheduler around an initial snapshot.
func NewScheduler(turner *Turner, portraits *Portraits, db store.Store, cues Cues, cfg SchedulerConfig, initial *world.Snapshot) *Scheduler {
	if cues == nil {
		cues = NoCues{}
	}
	def := DefaultSchedulerConfig()
	if cfg.SecondsPerYear <= 0 {
		cfg.SecondsPerYear = def.SecondsPerYear
	}
	if cfg.DecisionTimeout <= 0 {
		cfg.DecisionTimeout = def.DecisionTimeout
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	s := &Scheduler{
		turner:    turner,
		portraits: portraits,
		db:        db,
		cues:      cues,
		cfg:       cfg,
		snapshot:  initial,
	}
	s.playing.Store(true)
	if initial.PendingDecision != nil {
		s.decisionDeadline = time.Now().Add(cfg.DecisionTimeout)
		s.playing.Store(false)
	}
	return s
}

// Run drives the countdown until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	slog.Info("scheduler started",
		"seconds_per_year", s.cfg.SecondsPerYear,
		"decision_timeout", s.cfg.DecisionTimeout,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick advances the countdown and fires at most one turn trigger.
func (s *Scheduler) tick(ctx context.Context) {
	if s.loading.Load() {
		return
	}

	s.mu.Lock()
	pending := s.snapshot.PendingDecision
	deadline := s.decisionDeadline
	s.mu.Unlock()

	// A pending decision freezes the main countdown; its own timeout is
	// the only trigger, and it resolves to explicit silence exactly once.
	if pending != nil {
		if !deadline.IsZero() && time.Now().After(deadline) {
			s.mu.Lock()
			s.decisionDeadline = time.Time{}
			s.mu.Unlock()
			go s.runTurn(ctx, TurnRequest{
				DecisionAnswer: llm.SilenceAnswer,
				YearsToAdvance: DecisionYears,
			})
		}
		return
	}

	if !s.playing.Load() {
		return
	}

	s.mu.Lock()
	s.progress += 100.0 / (float64(s.cfg.SecondsPerYear) * float64(time.Second/s.cfg.TickInterval))
	fire := s.progress >= 100
	if fire {
		s.progress = 0
	}
	s.mu.Unlock()

	if fire {
		go s.runTurn(ctx, TurnRequest{YearsToAdvance: AutoYears})
	}
}

// SubmitCommand runs a 1-year turn for a divine command. Returns the
// turn result; a Dropped result means another turn was in flight.
func (s *Scheduler) SubmitCommand(ctx context.Context, command string) *TurnResult {
	s.cues.CommandAccepted()
	return s.runTurn(ctx, TurnRequest{
		PlayerCommand:  command,
		YearsToAdvance: CommandYears,
	})
}

// AnswerDecision resolves the outstanding decision by option id and runs
// a 5-year turn. Returns an error only when no decision is pending or
// the option id is unknown.
func (s *Scheduler) AnswerDecision(ctx context.Context, optionID string) (*TurnResult, error) {
	s.mu.Lock()
	pending := s.snapshot.PendingDecision
	s.mu.Unlock()

	if pending == nil {
		return nil, fmt.Errorf("no decision pending")
	}
	var answer string
	found := false
	for _, opt := range pending.Options {
		if opt.ID == optionID {
			answer = opt.Text
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("unknown option %q", optionID)
	}

	s.mu.Lock()
	s.decisionDeadline = time.Time{}
	s.mu.Unlock()

	return s.runTurn(ctx, TurnRequest{
		DecisionAnswer: answer,
		YearsToAdvance: DecisionYears,
	}), nil
}

// runTurn executes one turn against the current snapshot and applies the
// result. The loading flag keeps the countdown from racing a second
// trigger in; the turner's own guard is the final arbiter.
func (s *Scheduler) runTurn(ctx context.Context, req TurnRequest) *TurnResult {
	if !s.loading.CompareAndSwap(false, true) {
		return &TurnResult{Dropped: true}
	}
	defer s.loading.Store(false)

	s.cues.TurnStart()

	s.mu.Lock()
	req.Snapshot = s.snapshot
	// Any turn that fires without an explicit choice resolves an
	// outstanding decision as silence; a petition is never dropped
	// unanswered.
	if s.snapshot.PendingDecision != nil && req.DecisionAnswer == "" {
		req.DecisionAnswer = llm.SilenceAnswer
		s.decisionDeadline = time.Time{}
	}
	s.mu.Unlock()

	result := s.turner.Advance(ctx, req)
	if result.Dropped {
		return result
	}

	s.apply(result, req.YearsToAdvance)
	return result
}

// apply installs the merged snapshot, persists it, and decides whether
// time keeps flowing.
func (s *Scheduler) apply(result *TurnResult, years int) {
	s.mu.Lock()
	s.snapshot = result.Snapshot
	if years <= DecisionYears {
		s.progress = 0
	}
	if result.Snapshot.PendingDecision != nil {
		s.decisionDeadline = time.Now().Add(s.cfg.DecisionTimeout)
	} else {
		s.decisionDeadline = time.Time{}
	}
	s.mu.Unlock()

	switch {
	case result.Failed || HasFailureLog(result.NewLogs):
		// Auto-pause so a broken boundary cannot burn retries in a loop.
		s.playing.Store(false)
		s.cues.Alert()
	case result.Snapshot.PendingDecision != nil:
		s.playing.Store(false)
		s.cues.DecisionArrived()
	default:
		s.playing.Store(true)
	}

	s.save()
}

// save persists the live snapshot best-effort.
func (s *Scheduler) save() {
	if s.db == nil {
		return
	}
	s.mu.Lock()
	snap := s.snapshot.Clone()
	s.mu.Unlock()
	snap.SavedAt = time.Now().UnixMilli()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.db.Save(ctx, snap); err != nil {
		slog.Error("autosave failed", "error", err)
	}
}

// GeneratePortrait enriches one figure with a portrait, writing the
// result back onto the live snapshot. Additive-only: nothing else about
// the person changes, and an existing portrait is never replaced.
func (s *Scheduler) GeneratePortrait(ctx context.Context, personID string) (string, error) {
	s.mu.Lock()
	var person *world.Person
	for i := range s.snapshot.Figures {
		if s.snapshot.Figures[i].ID == personID {
			p := s.snapshot.Figures[i]
			person = &p
			break
		}
	}
	s.mu.Unlock()

	if person == nil {
		return "", fmt.Errorf("unknown figure %q", personID)
	}
	if person.PortraitURL != "" {
		return person.PortraitURL, nil
	}

	url := s.portraits.Generate(ctx, *person)
	if url == "" {
		return "", nil
	}

	s.mu.Lock()
	for i := range s.snapshot.Figures {
		if s.snapshot.Figures[i].ID == personID && s.snapshot.Figures[i].PortraitURL == "" {
			s.snapshot.Figures[i].PortraitURL = url
		}
	}
	s.mu.Unlock()

	s.save()
	return url, nil
}

// Snapshot returns a deep copy of the live state for read endpoints.
func (s *Scheduler) Snapshot() *world.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

// Progress reports the 0-100 countdown toward the next automatic turn.
func (s *Scheduler) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Playing reports whether time is flowing.
func (s *Scheduler) Playing() bool { return s.playing.Load() }

// Loading reports whether a turn is in flight.
func (s *Scheduler) Loading() bool { return s.loading.Load() }

// SetPlaying pauses or resumes automatic advancement.
func (s *Scheduler) SetPlaying(playing bool) { s.playing.Store(playing) }
