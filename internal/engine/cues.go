package engine

// Cues is the audio side-channel: fire-and-forget notifications on turn
// lifecycle events. Implementations must not block and cannot fail a
// turn; the engine ships only the no-op.
type Cues interface {
	TurnStart()
	CommandAccepted()
	DecisionArrived()
	Alert()
}

// NoCues is the silent default.
type NoCues struct{}

func (NoCues) TurnStart()       {}
func (NoCues) CommandAccepted() {}
func (NoCues) DecisionArrived() {}
func (NoCues) Alert()           {}
