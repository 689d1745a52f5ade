package engine

import (
	"fmt"

	"github.com/engramdev/engram/pkg/types"
)

// DecayStrategy computes a memory's new retention score from its current
// state and the invocation context. Implementations are pure: no I/O, no
// shared mutable state, safe to invoke concurrently for different memories.
// CalculateDecay must return a value clamped to the config's
// [MinDecay, MaxDecay].
type DecayStrategy interface {
	// CalculateDecay returns the new decay score for mem under dctx.
	CalculateDecay(mem *types.Memory, dctx types.DecayContext) int

	// ShouldAutoDelete reports whether mem is eligible for batch deletion.
	ShouldAutoDelete(mem *types.Memory, dctx types.DecayContext) bool
}

// strategyFor dispatches over the closed set of decay strategies. An unknown
// kind is a fatal configuration error; validated DecayConfigs cannot carry
// one, so hitting it means the config bypassed its constructor.
func strategyFor(kind types.DecayStrategyKind) (DecayStrategy, error) {
	switch kind {
	case types.DecayUsageBased:
		return usageBasedStrategy{}, nil
	case types.DecayTimeBased:
		return timeBasedStrategy{}, nil
	case types.DecayHybrid:
		return hybridStrategy{}, nil
	case types.DecayPermanent:
		return permanentStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown decay strategy %q", types.ErrInvalidConfig, kind)
	}
}

// defaultShouldAutoDelete is the shared expiry rule: auto-delete is enabled
// for the type and the score has bottomed out.
func defaultShouldAutoDelete(mem *types.Memory, dctx types.DecayContext) bool {
	return dctx.Config.AutoDelete && mem.Decay <= dctx.Config.MinDecay
}

// usageBasedStrategy reinforces memories used this session, erodes unused
// ones while a session is active, and freezes everything while no session is
// running. Inactivity never erodes retention.
type usageBasedStrategy struct{}

func (usageBasedStrategy) CalculateDecay(mem *types.Memory, dctx types.DecayContext) int {
	cfg := dctx.Config
	switch {
	case dctx.WasUsedInSession:
		return cfg.Clamp(mem.Decay + cfg.DecayReinforcement)
	case dctx.IsActiveSession:
		return cfg.Clamp(mem.Decay - cfg.DecayReduction)
	default:
		return mem.Decay
	}
}

func (usageBasedStrategy) ShouldAutoDelete(mem *types.Memory, dctx types.DecayContext) bool {
	return defaultShouldAutoDelete(mem, dctx)
}

// timeBasedStrategy decays monotonically with wall-clock time since creation,
// ignoring usage entirely. The score is recomputed from InitialDecay each
// time, so repeated sweeps are idempotent for a fixed instant.
type timeBasedStrategy struct{}

func (timeBasedStrategy) CalculateDecay(mem *types.Memory, dctx types.DecayContext) int {
	cfg := dctx.Config
	if cfg.DecayInterval <= 0 {
		return cfg.Clamp(mem.Decay)
	}

	intervals := int(dctx.TimeSinceCreated / cfg.DecayInterval)
	if intervals < 0 {
		intervals = 0
	}
	return cfg.Clamp(cfg.InitialDecay - intervals*cfg.DecayReduction)
}

func (timeBasedStrategy) ShouldAutoDelete(mem *types.Memory, dctx types.DecayContext) bool {
	return defaultShouldAutoDelete(mem, dctx)
}

// hybridStrategy treats usage as primary and layers a long-inactivity time
// penalty and an importance bonus on top. Order of operations matters: usage
// term, then time term, then importance bonus, then clamp.
type hybridStrategy struct{}

func (hybridStrategy) CalculateDecay(mem *types.Memory, dctx types.DecayContext) int {
	cfg := dctx.Config
	decay := mem.Decay

	// Usage term.
	switch {
	case dctx.WasUsedInSession:
		decay += cfg.DecayReinforcement
	case dctx.IsActiveSession:
		decay -= cfg.DecayReduction / 2
	}

	// Time term: long disuse costs extra.
	if dctx.TimeSinceLastUse > cfg.InactivityThreshold() {
		decay -= cfg.TimeDecay()
	}

	// Importance bonus.
	if mem.Importance > 0.8 {
		decay++
	}

	return cfg.Clamp(decay)
}

func (hybridStrategy) ShouldAutoDelete(mem *types.Memory, dctx types.DecayContext) bool {
	return defaultShouldAutoDelete(mem, dctx)
}

// permanentStrategy never changes the score and never expires, regardless of
// the type's AutoDelete flag.
type permanentStrategy struct{}

func (permanentStrategy) CalculateDecay(mem *types.Memory, _ types.DecayContext) int {
	return mem.Decay
}

func (permanentStrategy) ShouldAutoDelete(*types.Memory, types.DecayContext) bool {
	return false
}
