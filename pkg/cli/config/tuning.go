package config

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/service/decision"
	"github.com/secmon-lab/mnemosyne/pkg/service/search"
	"github.com/urfave/cli/v3"
)

// Tuning holds engine parameters loaded from an optional TOML file. Every
// field is optional; zero values keep the engine defaults.
type Tuning struct {
	path string

	Decision TuningDecision `toml:"decision"`
	Search   TuningSearch   `toml:"search"`
	Think    TuningThink    `toml:"think"`

	SweepIntervalSec int `toml:"sweep_interval_sec"`
}

// TuningDecision tunes the write-path classifier.
type TuningDecision struct {
	DuplicateThreshold float64 `toml:"duplicate_threshold"`
	TopK               int     `toml:"top_k"`
}

// TuningSearch tunes recall scoring and caching.
type TuningSearch struct {
	Decay             float64 `toml:"decay"`
	MinSeedSimilarity float64 `toml:"min_seed_similarity"`
	CacheTTLSec       int     `toml:"cache_ttl_sec"`
}

// TuningThink sets the default think session limits.
type TuningThink struct {
	MaxThoughts        int `toml:"max_thoughts"`
	MaxDepth           int `toml:"max_depth"`
	ThinkingTimeoutSec int `toml:"thinking_timeout_sec"`
	SessionTTLSec      int `toml:"session_ttl_sec"`
}

// Flags returns CLI flags for tuning configuration
func (t *Tuning) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "tuning-config",
			Usage:       "Path to TOML file with engine tuning parameters",
			Sources:     cli.EnvVars("MNEMOSYNE_TUNING_CONFIG"),
			Destination: &t.path,
		},
	}
}

// Configure loads and validates the tuning file. A no-op when no path is
// configured.
func (t *Tuning) Configure() error {
	if t.path == "" {
		return nil
	}

	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(t.path)
	if err != nil {
		return goerr.Wrap(err, "failed to read tuning file", goerr.V("path", t.path))
	}
	if err := toml.Unmarshal(data, t); err != nil {
		return goerr.Wrap(err, "failed to parse TOML tuning file", goerr.V("path", t.path))
	}
	if err := t.Validate(); err != nil {
		return goerr.Wrap(err, "tuning validation failed", goerr.V("path", t.path))
	}
	return nil
}

// Validate checks that every set parameter is inside its usable range.
func (t *Tuning) Validate() error {
	if th := t.Decision.DuplicateThreshold; th < 0 || th > 1 {
		return goerr.New("duplicate_threshold must be within [0, 1]", goerr.V("value", th))
	}
	if t.Decision.TopK < 0 {
		return goerr.New("top_k must not be negative", goerr.V("value", t.Decision.TopK))
	}
	if d := t.Search.Decay; d < 0 || d > 1 {
		return goerr.New("decay must be within [0, 1]", goerr.V("value", d))
	}
	if s := t.Search.MinSeedSimilarity; s < 0 || s > 1 {
		return goerr.New("min_seed_similarity must be within [0, 1]", goerr.V("value", s))
	}
	if t.Search.CacheTTLSec < 0 {
		return goerr.New("cache_ttl_sec must not be negative", goerr.V("value", t.Search.CacheTTLSec))
	}
	if t.Think.MaxThoughts < 0 || t.Think.MaxDepth < 0 ||
		t.Think.ThinkingTimeoutSec < 0 || t.Think.SessionTTLSec < 0 {
		return goerr.New("think limits must not be negative")
	}
	if t.SweepIntervalSec < 0 {
		return goerr.New("sweep_interval_sec must not be negative", goerr.V("value", t.SweepIntervalSec))
	}
	return nil
}

// DecisionOptions returns engine options for the configured values.
func (t *Tuning) DecisionOptions() []decision.Option {
	var opts []decision.Option
	if t.Decision.DuplicateThreshold > 0 {
		opts = append(opts, decision.WithDuplicateThreshold(t.Decision.DuplicateThreshold))
	}
	if t.Decision.TopK > 0 {
		opts = append(opts, decision.WithTopK(t.Decision.TopK))
	}
	return opts
}

// SearchOptions returns engine options for the configured values.
func (t *Tuning) SearchOptions() []search.Option {
	var opts []search.Option
	if t.Search.Decay > 0 {
		opts = append(opts, search.WithDecay(t.Search.Decay))
	}
	if t.Search.MinSeedSimilarity > 0 {
		opts = append(opts, search.WithMinSeedSimilarity(t.Search.MinSeedSimilarity))
	}
	if t.Search.CacheTTLSec > 0 {
		opts = append(opts, search.WithCacheTTL(time.Duration(t.Search.CacheTTLSec)*time.Second))
	}
	return opts
}

// SessionLimits returns the default think session limits, with unset fields
// falling back to the built-in defaults.
func (t *Tuning) SessionLimits() model.SessionLimits {
	limits := model.DefaultSessionLimits()
	if t.Think.MaxThoughts > 0 {
		limits.MaxThoughts = t.Think.MaxThoughts
	}
	if t.Think.MaxDepth > 0 {
		limits.MaxDepth = t.Think.MaxDepth
	}
	if t.Think.ThinkingTimeoutSec > 0 {
		limits.ThinkingTimeout = time.Duration(t.Think.ThinkingTimeoutSec) * time.Second
	}
	if t.Think.SessionTTLSec > 0 {
		limits.SessionTTL = time.Duration(t.Think.SessionTTLSec) * time.Second
	}
	return limits
}

// SweepInterval returns the configured sweep interval, zero when unset.
func (t *Tuning) SweepInterval() time.Duration {
	return time.Duration(t.SweepIntervalSec) * time.Second
}
