package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwood-games/houserules/internal/rule"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "houserules", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"simulate", "validate", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "command %s should exist", name)
			require.NotNil(t, sub)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormatRejected(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--format", "xml", "version"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "houserules")

	out, err = runCommand(t, "--format", "json", "version")
	require.NoError(t, err)
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deck.cue", `
card: "rhyme-time": {
	rule_text: "All answers must rhyme"
}
`)

	out, err := runCommand(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "deck valid")
	assert.Contains(t, out, "1 card(s)")
}

func TestValidateCommandReportsAllErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deck.cue", `
card: "bad-kind": {
	rule_text: "Broken"
	kind:      "sorcery"
}
card: "bad-scope": {
	rule_text: "Broken"
	scope:     "universe"
}
`)

	out, err := runCommand(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "deck invalid: 2 error(s)")
}

func TestValidateCommandMissingDir(t *testing.T) {
	_, err := runCommand(t, "validate", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

const passingScenario = `
name: smoke
cards:
  rhyme:
    rule_text: Rhyme everything
steps:
  - draw: {player: alice, card: rhyme}
  - expect: {active: 1}
`

func TestSimulateCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scenario.yaml", passingScenario)

	out, err := runCommand(t, "simulate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "scenario: smoke")
	assert.Contains(t, out, "expect active=1 ok")
}

func TestSimulateCommandJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scenario.yaml", passingScenario)

	out, err := runCommand(t, "--format", "json", "simulate", path)
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestSimulateCommandFailedExpectation(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scenario.yaml", `
name: failing
cards:
  rhyme:
    rule_text: Rhyme everything
steps:
  - draw: {player: alice, card: rhyme}
  - expect: {active: 5}
`)

	out, err := runCommand(t, "simulate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL")
}

func TestSimulateCommandBadScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scenario.yaml", `name: broken`)
	_, err := runCommand(t, "simulate", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, rule.MaxRulesPerSession, cfg.MaxRulesPerSession)
	assert.Equal(t, rule.MaxRulesPerPlayer, cfg.MaxRulesPerPlayer)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 100*time.Millisecond, cfg.ActivationDelay)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
engine:
  max_rules_per_session: 10
  cache_ttl: 5s
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxRulesPerSession)
	assert.Equal(t, 5*time.Second, cfg.CacheTTL)
	// Untouched keys keep defaults.
	assert.Equal(t, rule.MaxRulesPerPlayer, cfg.MaxRulesPerPlayer)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HOUSERULES_ENGINE_MAX_CACHE_SIZE", "7")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxCacheSize)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
engine:
  max_rules_per_session: -1
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_rules_per_session")
}
