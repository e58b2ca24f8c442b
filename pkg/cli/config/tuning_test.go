package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	"github.com/urfave/cli/v3"
)

func loadTuning(t *testing.T, body string) (*config.Tuning, error) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tuning.toml")
	gt.NoError(t, os.WriteFile(path, []byte(body), 0600)).Required()

	var tuning config.Tuning
	var cfgErr error
	cmd := &cli.Command{
		Name:  "test",
		Flags: tuning.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfgErr = tuning.Configure()
			return nil
		},
	}
	gt.NoError(t, cmd.Run(context.Background(), []string{"test", "--tuning-config", path})).Required()
	return &tuning, cfgErr
}

func TestTuningLoadsTOML(t *testing.T) {
	tuning, err := loadTuning(t, `
sweep_interval_sec = 45

[decision]
duplicate_threshold = 0.95
top_k = 7

[search]
decay = 0.6
min_seed_similarity = 0.3
cache_ttl_sec = 120

[think]
max_thoughts = 32
max_depth = 8
thinking_timeout_sec = 90
session_ttl_sec = 600
`)
	gt.NoError(t, err).Required()

	gt.Value(t, tuning.Decision.DuplicateThreshold).Equal(0.95)
	gt.Value(t, tuning.Decision.TopK).Equal(7)
	gt.Array(t, tuning.DecisionOptions()).Length(2)
	gt.Array(t, tuning.SearchOptions()).Length(3)

	limits := tuning.SessionLimits()
	gt.Value(t, limits.MaxThoughts).Equal(32)
	gt.Value(t, limits.MaxDepth).Equal(8)
	gt.Value(t, limits.ThinkingTimeout).Equal(90 * time.Second)
	gt.Value(t, limits.SessionTTL).Equal(600 * time.Second)

	gt.Value(t, tuning.SweepInterval()).Equal(45 * time.Second)
}

func TestTuningDefaultsWhenUnset(t *testing.T) {
	tuning, err := loadTuning(t, "")
	gt.NoError(t, err).Required()

	gt.Array(t, tuning.DecisionOptions()).Length(0)
	gt.Array(t, tuning.SearchOptions()).Length(0)

	limits := tuning.SessionLimits()
	gt.Value(t, limits.MaxThoughts).Equal(64)
	gt.Value(t, limits.MaxDepth).Equal(16)
	gt.Value(t, limits.ThinkingTimeout).Equal(5 * time.Minute)
	gt.Value(t, limits.SessionTTL).Equal(30 * time.Minute)

	gt.Value(t, tuning.SweepInterval()).Equal(time.Duration(0))
}

func TestTuningNoFileIsNoop(t *testing.T) {
	var tuning config.Tuning
	gt.NoError(t, tuning.Configure())
}

func TestTuningValidation(t *testing.T) {
	_, err := loadTuning(t, `
[decision]
duplicate_threshold = 1.5
`)
	gt.Value(t, err).NotNil()

	_, err = loadTuning(t, `
[search]
decay = -0.1
`)
	gt.Value(t, err).NotNil()

	_, err = loadTuning(t, `
[think]
max_thoughts = -1
`)
	gt.Value(t, err).NotNil()

	_, err = loadTuning(t, `sweep_interval_sec = -5`)
	gt.Value(t, err).NotNil()
}
