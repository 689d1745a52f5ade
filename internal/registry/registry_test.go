package registry

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engramdev/engram/pkg/types"
)

func noteConfig() TypeConfig {
	return TypeConfig{
		Decay: types.DecayConfig{
			Strategy:           types.DecayUsageBased,
			InitialDecay:       100,
			MinDecay:           0,
			MaxDecay:           200,
			DecayReduction:     5,
			DecayReinforcement: 10,
			AutoDelete:         true,
		},
		Dedup: types.DeduplicationConfig{
			Enabled:  true,
			Strategy: types.DedupMerge,
		},
		QueryLimit: types.QueryLimit{
			MaxCount: types.CountPtr(10),
			Strategy: types.LimitGreedy,
		},
	}
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("note", noteConfig()))

	decay, err := r.DecayConfig("note")
	require.NoError(t, err)
	assert.Equal(t, 100, decay.InitialDecay)

	dedup, err := r.DeduplicationConfig("note")
	require.NoError(t, err)
	assert.Equal(t, types.DedupMerge, dedup.Strategy)
	assert.Equal(t, types.DefaultSemanticThreshold, dedup.SemanticThreshold,
		"validation should fill the threshold default")

	limit, err := r.DefaultQueryLimit("note")
	require.NoError(t, err)
	require.NotNil(t, limit.MaxCount)
	assert.Equal(t, 10, *limit.MaxCount)
}

func TestRegisterDuplicateIsFatal(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("note", noteConfig()))

	err := r.Register("note", noteConfig())
	assert.ErrorIs(t, err, ErrDuplicateType)
}

func TestRegisterRejectsInvalidConfig(t *testing.T) {
	r := New()
	cfg := noteConfig()
	cfg.Decay.MinDecay = 500 // min > initial

	err := r.Register("broken", cfg)
	assert.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = r.Lookup("broken")
	assert.ErrorIs(t, err, ErrTypeNotRegistered, "invalid config must not enter the table")
}

func TestLookupUnknownType(t *testing.T) {
	r := New()
	_, err := r.DecayConfig("ghost")
	assert.ErrorIs(t, err, ErrTypeNotRegistered)
}

func TestConcurrentReads(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("note", noteConfig()))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := r.Lookup("note"); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

const sampleYAML = `
types:
  user_preference:
    decay:
      strategy: usage_based
      initial: 100
      min: 0
      max: 200
      reduction: 5
      reinforcement: 8
      auto_delete: true
    dedup:
      enabled: true
      strategy: merge
      normalize_content: true
      semantic_enabled: true
      reinforce_on_merge: true
    query_limit:
      max_count: 10
      max_tokens: 2000
      strategy: greedy
  audit_event:
    decay:
      strategy: time_based
      initial: 50
      min: 0
      max: 50
      reduction: 1
      interval: 24h
    dedup:
      enabled: false
    query_limit:
      max_count: 100
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	r := New()
	require.NoError(t, r.LoadFile(path))

	assert.ElementsMatch(t, []string{"user_preference", "audit_event"}, r.Types())

	decay, err := r.DecayConfig("audit_event")
	require.NoError(t, err)
	assert.Equal(t, types.DecayTimeBased, decay.Strategy)
	assert.Equal(t, 24*time.Hour, decay.DecayInterval)
}

func TestLoadFileInvalidDefinition(t *testing.T) {
	const badYAML = `
types:
  broken:
    decay:
      strategy: usage_based
      initial: 500
      min: 0
      max: 100
`
	path := filepath.Join(t.TempDir(), "types.yaml")
	require.NoError(t, os.WriteFile(path, []byte(badYAML), 0o600))

	r := New()
	err := r.LoadFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestReloadFileKeepsOldTableOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	r := New()
	require.NoError(t, r.LoadFile(path))

	require.NoError(t, os.WriteFile(path, []byte("types: {}"), 0o600))
	require.Error(t, r.ReloadFile(path))

	// Previous definitions still served.
	_, err := r.Lookup("user_preference")
	assert.NoError(t, err)
}
