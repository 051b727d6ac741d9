package domain

import "time"

// RugPullPhase is the scheduler's current state.
type RugPullPhase string

// Rug-pull phase constants. Exactly one sequence is in flight at a time:
// Idle -> Armed -> Countdown -> Sequence (stages 0-6) -> Complete -> Idle.
const (
	RugPullIdle      RugPullPhase = "idle"
	RugPullArmed     RugPullPhase = "armed"
	RugPullCountdown RugPullPhase = "countdown"
	RugPullSequence  RugPullPhase = "sequence"
	RugPullComplete  RugPullPhase = "complete"
)

// Armed reports whether manipulative agents should treat the market as
// primed for a pull. True from the moment a pull is scheduled until the
// post-sequence reset.
func (p RugPullPhase) Armed() bool {
	switch p {
	case RugPullArmed, RugPullCountdown, RugPullSequence:
		return true
	}
	return false
}

// SequenceStages is the number of scripted stages in a rug-pull sequence.
const SequenceStages = 7

// RugPullConfig holds scheduler timings and collapse intensity.
type RugPullConfig struct {
	InitialDelayMin time.Duration // idle wait before first arming
	InitialDelayMax time.Duration
	ArmDelayMin     time.Duration // total wait from armed to trigger
	ArmDelayMax     time.Duration
	CountdownSec    int           // live countdown before trigger
	Cooldown        time.Duration // complete -> idle
	Intensity       float64       // scales stage 3-5 collapse magnitude
}

// DefaultRugPullConfig is the live-dashboard cycle: 1-3 min initial
// delay, 1-12 min arm window, 15 s countdown, 20 s cooldown.
func DefaultRugPullConfig() RugPullConfig {
	return RugPullConfig{
		InitialDelayMin: 60 * time.Second,
		InitialDelayMax: 180 * time.Second,
		ArmDelayMin:     60 * time.Second,
		ArmDelayMax:     720 * time.Second,
		CountdownSec:    15,
		Cooldown:        20 * time.Second,
		Intensity:       4,
	}
}
