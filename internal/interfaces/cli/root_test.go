package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molfilter/pkg/errors"
)

// execute runs cmd with args and returns the exit status and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	code := Execute(context.Background(), cmd, args)
	return code, stdout.String(), stderr.String()
}

// isolatedConfig writes a config file so that no host configuration leaks
// into a test.
func isolatedConfig(t *testing.T, body string) string {
	t.Helper()
	if body == "" {
		body = "log:\n  level: info\n  no_color: true\n"
	}
	p := filepath.Join(t.TempDir(), "molfilter.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

var toolConstructors = map[string]func() *cobra.Command{
	"pattern-filter":     NewPatternFilterCommand,
	"interaction-filter": NewInteractionFilterCommand,
	"rmsd-filter":        NewRMSDFilterCommand,
}

func TestToolCommands_SharedFlags(t *testing.T) {
	for name, newCmd := range toolConstructors {
		cmd := newCmd()
		assert.Equal(t, name, cmd.Use)
		assert.NotEmpty(t, cmd.Short)
		assert.NotEmpty(t, cmd.Long)
		for _, flag := range []string{"config", "log-level", "log-format", "verbose", "no-color", "metrics-file"} {
			assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "%s --%s", name, flag)
		}
		assert.NotNil(t, cmd.Flags().Lookup("output"), name)
		assert.NotNil(t, cmd.Flags().Lookup("workers"), name)
	}
}

func TestExecute_Version(t *testing.T) {
	for name, newCmd := range toolConstructors {
		code, stdout, _ := execute(t, newCmd(), "--version")
		assert.Equal(t, errors.ExitOK, code)
		assert.Contains(t, stdout, name+" version "+Version)
	}
}

func TestExecute_UsageErrors(t *testing.T) {
	cfg := isolatedConfig(t, "")
	cases := map[string][]string{
		"unknown flag":        {"--config", cfg, "--frobnicate"},
		"positional argument": {"--config", cfg, "extra"},
		"missing config file": {"--config", filepath.Join(t.TempDir(), "absent.yaml")},
		"bad log level":       {"--config", cfg, "--log-level", "loud"},
	}
	for name, args := range cases {
		code, _, stderr := execute(t, NewPatternFilterCommand(), args...)
		assert.Equal(t, errors.ExitUsage, code, name)
		assert.Contains(t, stderr, "Error:", name)
	}
}

func TestExecute_ConfigFromFile(t *testing.T) {
	cfg := isolatedConfig(t, "log:\n  level: debug\n  format: json\nfilter:\n  workers: 3\n")
	cmd := NewPatternFilterCommand()
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cc, err := GetCLIContext(cmd)
		require.NoError(t, err)
		assert.Equal(t, "debug", cc.Config.Log.Level)
		assert.Equal(t, "json", cc.Config.Log.Format)
		assert.Equal(t, 3, cc.Config.Filter.Workers)
		assert.Equal(t, "pattern-filter", cc.Tool)
		assert.Len(t, cc.RunID, 36)
		assert.Nil(t, cc.Store, "no object storage without an endpoint")
		return nil
	}
	code, _, _ := execute(t, cmd, "--config", cfg)
	assert.Equal(t, errors.ExitOK, code)
}

func TestExecute_FlagsOverrideConfig(t *testing.T) {
	cfg := isolatedConfig(t, "log:\n  level: error\n  format: json\n")
	metrics := filepath.Join(t.TempDir(), "run.prom")
	cmd := NewPatternFilterCommand()
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cc, err := GetCLIContext(cmd)
		require.NoError(t, err)
		assert.Equal(t, "debug", cc.Config.Log.Level, "--verbose wins over the file")
		assert.Equal(t, "json", cc.Config.Log.Format, "unset flags keep the file value")
		assert.Equal(t, metrics, cc.Config.Metrics.Textfile)
		assert.True(t, cc.NoColor)
		return nil
	}
	code, _, _ := execute(t, cmd, "--config", cfg, "-v", "--no-color", "--metrics-file", metrics)
	assert.Equal(t, errors.ExitOK, code)
}

func TestGetCLIContext_Missing(t *testing.T) {
	cmd := &cobra.Command{}
	_, err := GetCLIContext(cmd)
	assert.True(t, errors.IsCode(err, errors.CodeInternal))

	cmd.SetContext(context.Background())
	_, err = GetCLIContext(cmd)
	assert.True(t, errors.IsCode(err, errors.CodeInternal))
}
