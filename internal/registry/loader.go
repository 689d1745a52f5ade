package registry

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/engramdev/engram/pkg/types"
)

// definitionFile is the YAML shape of a type definition file:
//
//	types:
//	  user_preference:
//	    decay:
//	      strategy: usage_based
//	      initial: 100
//	      min: 0
//	      max: 200
//	      reduction: 5
//	      reinforcement: 8
//	      auto_delete: true
//	    dedup:
//	      enabled: true
//	      strategy: merge
//	      normalize_content: true
//	      semantic_enabled: true
//	      semantic_threshold: 0.85
//	      reinforce_on_merge: true
//	    query_limit:
//	      max_count: 10
//	      max_tokens: 2000
//	      min_similarity: 0.3
//	      strategy: greedy
type definitionFile struct {
	Types map[string]typeDefinition `yaml:"types"`
}

type typeDefinition struct {
	Decay      decayDefinition           `yaml:"decay"`
	Dedup      types.DeduplicationConfig `yaml:"dedup"`
	QueryLimit types.QueryLimit          `yaml:"query_limit"`
}

// decayDefinition mirrors types.DecayConfig with a string interval so YAML
// authors can write "24h" instead of nanoseconds.
type decayDefinition struct {
	Strategy             types.DecayStrategyKind `yaml:"strategy"`
	Initial              int                     `yaml:"initial"`
	Min                  int                     `yaml:"min"`
	Max                  int                     `yaml:"max"`
	Reduction            int                     `yaml:"reduction"`
	Reinforcement        int                     `yaml:"reinforcement"`
	AutoDelete           bool                    `yaml:"auto_delete"`
	AffectsSearchRanking bool                    `yaml:"affects_search_ranking"`
	Interval             string                  `yaml:"interval"`
	Params               map[string]string       `yaml:"params"`
}

// LoadFile reads a YAML definition file and registers every type it declares.
// Any invalid definition aborts the load before registration begins.
func (r *Registry) LoadFile(path string) error {
	entries, err := parseFile(path)
	if err != nil {
		return err
	}
	for name, cfg := range entries {
		if err := r.Register(name, cfg); err != nil {
			return err
		}
	}
	return nil
}

// ReloadFile replaces the whole table with the file's contents. Used by the
// hot-reload watcher: a broken file leaves the current table untouched.
func (r *Registry) ReloadFile(path string) error {
	entries, err := parseFile(path)
	if err != nil {
		return err
	}
	return r.Replace(entries)
}

func parseFile(path string) (map[string]TypeConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to read %s: %w", path, err)
	}

	var file definitionFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("registry: failed to parse %s: %w", path, err)
	}
	if len(file.Types) == 0 {
		return nil, fmt.Errorf("registry: %s defines no types", path)
	}

	entries := make(map[string]TypeConfig, len(file.Types))
	for name, def := range file.Types {
		cfg, err := def.toTypeConfig()
		if err != nil {
			return nil, fmt.Errorf("registry: type %q in %s: %w", name, path, err)
		}
		entries[name] = cfg
	}
	return entries, nil
}

func (d typeDefinition) toTypeConfig() (TypeConfig, error) {
	var interval time.Duration
	if d.Decay.Interval != "" {
		parsed, err := time.ParseDuration(d.Decay.Interval)
		if err != nil {
			return TypeConfig{}, fmt.Errorf("invalid decay interval %q: %w", d.Decay.Interval, err)
		}
		interval = parsed
	}

	return TypeConfig{
		Decay: types.DecayConfig{
			Strategy:             d.Decay.Strategy,
			InitialDecay:         d.Decay.Initial,
			MinDecay:             d.Decay.Min,
			MaxDecay:             d.Decay.Max,
			DecayReduction:       d.Decay.Reduction,
			DecayReinforcement:   d.Decay.Reinforcement,
			AutoDelete:           d.Decay.AutoDelete,
			AffectsSearchRanking: d.Decay.AffectsSearchRanking,
			DecayInterval:        interval,
			Params:               d.Decay.Params,
		},
		Dedup:      d.Dedup,
		QueryLimit: d.QueryLimit,
	}, nil
}
