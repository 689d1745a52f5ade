package types

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidConfig indicates a lifecycle configuration value failed its
// construction-time bound checks. Configuration errors are fatal at setup and
// never retried.
var ErrInvalidConfig = errors.New("invalid configuration")

// DecayStrategyKind selects one of the four closed decay strategies.
type DecayStrategyKind string

const (
	// DecayUsageBased reinforces used memories, decays unused ones while the
	// session is active, and freezes them while it is not.
	DecayUsageBased DecayStrategyKind = "usage_based"

	// DecayTimeBased decays monotonically with wall-clock time since
	// creation, ignoring usage entirely.
	DecayTimeBased DecayStrategyKind = "time_based"

	// DecayHybrid combines usage-driven reinforcement with long-inactivity
	// time decay and an importance bonus.
	DecayHybrid DecayStrategyKind = "hybrid"

	// DecayPermanent never changes the decay score and never auto-deletes.
	DecayPermanent DecayStrategyKind = "permanent"
)

// IsValid reports whether k names a known decay strategy.
func (k DecayStrategyKind) IsValid() bool {
	switch k {
	case DecayUsageBased, DecayTimeBased, DecayHybrid, DecayPermanent:
		return true
	}
	return false
}

// Hybrid strategy parameter keys and defaults. Values live in the open
// DecayConfig.Params map so deployments can tune them per type.
const (
	// ParamInactivityThreshold is the duration of disuse after which the
	// hybrid strategy applies its time decay term. Parsed with
	// time.ParseDuration. Default: 90 days.
	ParamInactivityThreshold = "inactivity_threshold"

	// ParamTimeDecay is the amount subtracted once the inactivity threshold
	// is exceeded. Default: 2.
	ParamTimeDecay = "time_decay"

	DefaultInactivityThreshold = 90 * 24 * time.Hour
	DefaultTimeDecay           = 2
)

// DecayConfig describes how memories of one type are retained over time and
// usage. Instances are immutable after construction; build them with
// NewDecayConfig so the bound invariants hold.
type DecayConfig struct {
	// Strategy selects the decay calculation.
	Strategy DecayStrategyKind `yaml:"strategy" json:"strategy"`

	// InitialDecay is the score assigned to newly saved memories.
	InitialDecay int `yaml:"initial" json:"initial"`

	// MinDecay and MaxDecay bound the score. MinDecay <= InitialDecay <= MaxDecay.
	MinDecay int `yaml:"min" json:"min"`
	MaxDecay int `yaml:"max" json:"max"`

	// DecayReduction is subtracted when a memory decays.
	DecayReduction int `yaml:"reduction" json:"reduction"`

	// DecayReinforcement is added when a memory is used (or merged into).
	DecayReinforcement int `yaml:"reinforcement" json:"reinforcement"`

	// AutoDelete enables batch deletion of memories whose score has fallen
	// to MinDecay.
	AutoDelete bool `yaml:"auto_delete" json:"auto_delete"`

	// AffectsSearchRanking indicates the decay score should weight
	// retrieval ranking for this type.
	AffectsSearchRanking bool `yaml:"affects_search_ranking" json:"affects_search_ranking"`

	// DecayInterval is the wall-clock interval for the time-based strategy.
	DecayInterval time.Duration `yaml:"interval" json:"interval"`

	// Params is an open parameter map for strategy-specific tuning
	// (see ParamInactivityThreshold, ParamTimeDecay).
	Params map[string]string `yaml:"params" json:"params,omitempty"`
}

// NewDecayConfig builds a validated DecayConfig. It rejects unknown
// strategies, negative numeric fields, inverted bounds, and a missing interval
// for the time-based strategy.
func NewDecayConfig(cfg DecayConfig) (DecayConfig, error) {
	if !cfg.Strategy.IsValid() {
		return DecayConfig{}, fmt.Errorf("%w: unknown decay strategy %q", ErrInvalidConfig, cfg.Strategy)
	}
	if cfg.MinDecay < 0 || cfg.InitialDecay < 0 || cfg.MaxDecay < 0 ||
		cfg.DecayReduction < 0 || cfg.DecayReinforcement < 0 {
		return DecayConfig{}, fmt.Errorf("%w: decay fields must be non-negative", ErrInvalidConfig)
	}
	if cfg.MinDecay > cfg.InitialDecay || cfg.InitialDecay > cfg.MaxDecay {
		return DecayConfig{}, fmt.Errorf("%w: decay bounds must satisfy min (%d) <= initial (%d) <= max (%d)",
			ErrInvalidConfig, cfg.MinDecay, cfg.InitialDecay, cfg.MaxDecay)
	}
	if cfg.DecayInterval < 0 {
		return DecayConfig{}, fmt.Errorf("%w: decay interval must be non-negative", ErrInvalidConfig)
	}
	if cfg.Strategy == DecayTimeBased && cfg.DecayInterval == 0 {
		return DecayConfig{}, fmt.Errorf("%w: time-based decay requires a positive interval", ErrInvalidConfig)
	}
	return cfg, nil
}

// Clamp bounds a decay score to [MinDecay, MaxDecay].
func (c DecayConfig) Clamp(decay int) int {
	if decay < c.MinDecay {
		return c.MinDecay
	}
	if decay > c.MaxDecay {
		return c.MaxDecay
	}
	return decay
}

// InactivityThreshold returns the hybrid strategy's inactivity threshold,
// falling back to the 90-day default when unset or unparsable.
func (c DecayConfig) InactivityThreshold() time.Duration {
	if raw, ok := c.Params[ParamInactivityThreshold]; ok {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return DefaultInactivityThreshold
}

// TimeDecay returns the hybrid strategy's inactivity penalty, falling back to
// the default of 2 when unset or unparsable.
func (c DecayConfig) TimeDecay() int {
	if raw, ok := c.Params[ParamTimeDecay]; ok {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			return n
		}
	}
	return DefaultTimeDecay
}

// DecayContext carries the per-invocation state a decay strategy needs.
// It is ephemeral: constructed for one sweep or one application, never
// persisted. A batch sweep reuses one context across memories, varying only
// WasUsedInSession per memory.
type DecayContext struct {
	// Now is the instant the decay is being evaluated at.
	Now time.Time

	// WasUsedInSession is true when the memory was used in the current
	// session.
	WasUsedInSession bool

	// IsActiveSession is true when a session is currently active. Usage-based
	// decay only erodes retention during active sessions; inactivity freezes it.
	IsActiveSession bool

	// TimeSinceCreated is the memory's age at Now.
	TimeSinceCreated time.Duration

	// TimeSinceLastUse is the elapsed time since the memory was last
	// accessed (creation time when never accessed).
	TimeSinceLastUse time.Duration

	// Config is the owning type's decay configuration.
	Config DecayConfig

	// Params carries optional per-invocation overrides.
	Params map[string]string
}

// NewDecayContext builds a DecayContext for one memory at the given instant.
func NewDecayContext(mem *Memory, cfg DecayConfig, now time.Time, used, active bool) DecayContext {
	return DecayContext{
		Now:              now,
		WasUsedInSession: used,
		IsActiveSession:  active,
		TimeSinceCreated: mem.Age(now),
		TimeSinceLastUse: mem.TimeSinceLastUse(now),
		Config:           cfg,
	}
}
