package market

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/root-daemon/saveme/internal/domain"
)

// StageEnvelope is the scripted price/volatility/volume override for one
// stage of a rug-pull sequence.
type StageEnvelope struct {
	Stage       int
	PriceChange float64
	Volatility  float64
	Volume      float64
	Complete    bool // true on the final aftermath stage
}

// Scheduler drives the rug-pull state machine:
//
//	Idle -> Armed -> Countdown -> Sequence (stages 0-6) -> Complete -> Idle
//
// Arming and the live countdown run on their own timers (Run); stage
// advancement is tick-driven (NextStage), so stage transitions happen
// strictly between ticks. At most one sequence is in flight: Trigger is
// a guarded no-op while one is armed past countdown or running.
type Scheduler struct {
	mu        sync.Mutex
	cfg       domain.RugPullConfig
	rng       *rand.Rand // owned by the Run goroutine, delays only
	phase     domain.RugPullPhase
	countdown int
	stage     int
	seqDone   chan struct{} // closed when stage 6 has been applied

	// onTrigger fires when the automatic countdown reaches zero,
	// before the sequence starts. Invoked without holding mu.
	onTrigger func()
}

// NewScheduler creates an idle scheduler. onTrigger may be nil.
func NewScheduler(cfg domain.RugPullConfig, rng *rand.Rand, onTrigger func()) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		rng:       rng,
		phase:     domain.RugPullIdle,
		onTrigger: onTrigger,
	}
}

// Status returns the current phase, the live countdown (nil unless
// counting down), and the current sequence stage.
func (s *Scheduler) Status() (domain.RugPullPhase, *int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var countdown *int
	if s.phase == domain.RugPullCountdown {
		c := s.countdown
		countdown = &c
	}
	return s.phase, countdown, s.stage
}

// generatorStatus adapts scheduler state for the trade generator.
func (s *Scheduler) generatorStatus() RugPullStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := RugPullStatus{Armed: s.phase.Armed()}
	if s.phase == domain.RugPullCountdown {
		st.Countdown = s.countdown
		st.HasCountdown = true
	}
	return st
}

// Trigger force-starts the scripted sequence, skipping any pending
// countdown. Used by the manual cash-out path. Returns false (no-op)
// if a sequence is already running or just completed.
func (s *Scheduler) Trigger() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case domain.RugPullSequence, domain.RugPullComplete:
		return false
	}
	s.beginSequenceLocked()
	return true
}

// NextStage returns the scripted envelope for the current stage and
// advances the sequence. ok is false when no sequence is running.
// Applying stage 6 marks the sequence Complete and releases the Run
// loop into its cooldown.
func (s *Scheduler) NextStage(rng *rand.Rand) (StageEnvelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.RugPullSequence {
		return StageEnvelope{}, false
	}

	env := stageEnvelope(s.stage, s.cfg.Intensity, rng)

	if s.stage >= domain.SequenceStages-1 {
		s.phase = domain.RugPullComplete
		if s.seqDone != nil {
			close(s.seqDone)
			s.seqDone = nil
		}
	} else {
		s.stage++
	}
	return env, true
}

// Run owns all arming and countdown timers. Cancelling ctx clears every
// pending timer, so no callback can fire after shutdown.
func (s *Scheduler) Run(ctx context.Context) {
	delay := s.randDelay(s.cfg.InitialDelayMin, s.cfg.InitialDelayMax)

	for {
		if !sleepCtx(ctx, delay) {
			return
		}

		s.mu.Lock()
		if s.phase == domain.RugPullIdle {
			s.phase = domain.RugPullArmed
		}
		s.mu.Unlock()

		// Total wait W is drawn up front; the countdown occupies its tail.
		wait := s.randDelay(s.cfg.ArmDelayMin, s.cfg.ArmDelayMax) -
			time.Duration(s.cfg.CountdownSec)*time.Second
		if wait > 0 && !sleepCtx(ctx, wait) {
			return
		}

		if !s.runCountdown(ctx) {
			return
		}

		// Wait for the tick driver to walk the scripted stages.
		s.mu.Lock()
		done := s.seqDone
		s.mu.Unlock()
		if done != nil {
			select {
			case <-ctx.Done():
				return
			case <-done:
			}
		}

		if !sleepCtx(ctx, s.cfg.Cooldown) {
			return
		}

		s.mu.Lock()
		s.phase = domain.RugPullIdle
		s.stage = 0
		s.countdown = 0
		s.mu.Unlock()

		delay = s.randDelay(s.cfg.InitialDelayMin, s.cfg.InitialDelayMax)
	}
}

// runCountdown ticks the live countdown once per second. Returns false
// only on ctx cancellation. A manual trigger mid-countdown aborts it.
func (s *Scheduler) runCountdown(ctx context.Context) bool {
	s.mu.Lock()
	if s.phase != domain.RugPullArmed {
		// Manual trigger already started the sequence.
		s.mu.Unlock()
		return true
	}
	s.phase = domain.RugPullCountdown
	s.countdown = s.cfg.CountdownSec
	s.mu.Unlock()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			s.mu.Lock()
			if s.phase != domain.RugPullCountdown {
				s.mu.Unlock()
				return true
			}
			s.countdown--
			if s.countdown > 0 {
				s.mu.Unlock()
				continue
			}
			s.beginSequenceLocked()
			s.mu.Unlock()

			if s.onTrigger != nil {
				s.onTrigger()
			}
			return true
		}
	}
}

// beginSequenceLocked enters the scripted sequence. Caller holds mu.
func (s *Scheduler) beginSequenceLocked() {
	s.phase = domain.RugPullSequence
	s.stage = 0
	s.countdown = 0
	s.seqDone = make(chan struct{})
}

func (s *Scheduler) randDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	s.mu.Lock()
	d := time.Duration(s.rng.Int63n(int64(max - min)))
	s.mu.Unlock()
	return min + d
}

// stageEnvelope is the hardcoded pump-peak-collapse-aftermath script.
// Pumps move the price by fractions of a cent; the collapse is scaled
// by intensity. priceChange is strictly negative for stages 3-5
// regardless of random draws.
func stageEnvelope(stage int, intensity float64, rng *rand.Rand) StageEnvelope {
	env := StageEnvelope{Stage: stage}

	switch stage {
	case 0: // initial pump
		env.PriceChange = 0.0005 + rng.Float64()*0.0003
		env.Volatility = 0.0003
		env.Volume = 150 + rng.Float64()*100
	case 1: // continued pump
		env.PriceChange = 0.0006 + rng.Float64()*0.0005
		env.Volatility = 0.0005
		env.Volume = 200 + rng.Float64()*150
	case 2: // peak
		env.PriceChange = 0.0002 + rng.Float64()*0.0003
		env.Volatility = 0.0008
		env.Volume = 300 + rng.Float64()*200
	case 3: // initial sell-off
		env.PriceChange = -intensity - rng.Float64()*(intensity*0.5)
		env.Volatility = intensity * 0.5
		env.Volume = 100 + rng.Float64()*500
	case 4: // the cash out
		env.PriceChange = -1.5*intensity - rng.Float64()*(intensity*0.8)
		env.Volatility = intensity * 0.8
		env.Volume = 200 + rng.Float64()*1000
	case 5: // continued collapse
		env.PriceChange = -1.2*intensity - rng.Float64()*(intensity*0.6)
		env.Volatility = intensity * 0.6
		env.Volume = 150 + rng.Float64()*800
	default: // aftermath
		env.PriceChange = (rng.Float64() - 0.6) * 0.0005
		env.Volatility = 0.0006
		env.Volume = 100 + rng.Float64()*50
		env.Complete = true
	}
	return env
}

// sleepCtx waits for d or until ctx is cancelled, cleaning up its timer
// either way. Returns false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
