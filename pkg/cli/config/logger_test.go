package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func configureLogger(t *testing.T, args ...string) error {
	t.Helper()

	var logger config.Logger
	var cfgErr error
	cmd := &cli.Command{
		Name:  "test",
		Flags: logger.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			closer, err := logger.Configure()
			if err != nil {
				cfgErr = err
				return nil
			}
			defer closer()
			return nil
		},
	}
	gt.NoError(t, cmd.Run(context.Background(), append([]string{"test"}, args...))).Required()
	return cfgErr
}

func TestLoggerJSONFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	var logger config.Logger
	cmd := &cli.Command{
		Name:  "test",
		Flags: logger.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			closer, err := logger.Configure()
			gt.NoError(t, err).Required()
			defer closer()

			type creds struct {
				Token string `masq:"secret"`
			}
			logging.Default().Info("hello from test", "credential", creds{Token: "tok-12345"})
			return nil
		},
	}
	gt.NoError(t, cmd.Run(context.Background(),
		[]string{"test", "--log-format", "json", "--log-output", path})).Required()

	data, err := os.ReadFile(path)
	gt.NoError(t, err).Required()
	out := string(data)
	gt.Bool(t, strings.Contains(out, "hello from test")).True()
	// Fields tagged as secrets never reach the sink.
	gt.Bool(t, strings.Contains(out, "tok-12345")).False()
}

func TestLoggerRejectsInvalidConfig(t *testing.T) {
	gt.Value(t, configureLogger(t, "--log-level", "verbose")).NotNil()
	gt.Value(t, configureLogger(t, "--log-format", "xml")).NotNil()
}
