package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "pacsbridge dev"))
}

func TestValidateValidConfig(t *testing.T) {
	path := writeConfig(t, `
provider: fixture
urls:
  pacs_server: https://pacs.example.com
requests:
  events:
    polling_interval: 30s
`)
	out, err := execute(t, "validate", "-c", path)
	require.NoError(t, err)
	for _, phrase := range []string{"Config is valid!", "fixture", "30s", "2h0m0s", "2s x2.0, 3 attempts", "memory"} {
		assert.Contains(t, out, phrase)
	}
}

func TestValidateStreamingConfig(t *testing.T) {
	path := writeConfig(t, `
provider: stream
urls:
  pacs_server: https://pacs.example.com
  events: https://vendor.example.com/events/stream
requests:
  events:
    streaming: true
`)
	out, err := execute(t, "validate", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "streaming")
}

func TestValidateRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, "provider: abc_fitness\n")
	_, err := execute(t, "validate", "-c", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pacs_server")
	assert.Contains(t, err.Error(), "app_id")
}

func TestValidateRequiresConfigFlag(t *testing.T) {
	_, err := execute(t, "validate")
	assert.Error(t, err)
}

func TestRunFailsFastOnInvalidConfig(t *testing.T) {
	path := writeConfig(t, "provider: stream\nurls:\n  pacs_server: http://pacs\n")
	_, err := execute(t, "run", "-c", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
