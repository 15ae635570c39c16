package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubebuddy/cubebuddy/internal/domain"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, domain.Red, cfg.Capture.ManualFill())
	assert.Equal(t, 1500*time.Millisecond, cfg.Solver.Delay)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  addr: ":9000"
solver:
  kind: remote
  url: http://localhost:5000
  timeout: 10s
handoff:
  backend: sqlite
  path: /tmp/handoff.db
  ttl: 1h
capture:
  manual_color: "#00ff00"
`))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "remote", cfg.Solver.Kind)
	assert.Equal(t, 10*time.Second, cfg.Solver.Timeout)
	assert.Equal(t, time.Hour, cfg.Handoff.TTL)
	assert.Equal(t, domain.Green, cfg.Capture.ManualFill())
	assert.Equal(t, "info", cfg.Log.Level, "unset fields keep defaults")
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown field":    "server:\n  port: 80\n",
		"bad level":        "log:\n  level: loud\n",
		"remote no url":    "solver:\n  kind: remote\n",
		"sqlite no path":   "handoff:\n  backend: sqlite\n",
		"redis no url":     "handoff:\n  backend: redis\n",
		"bad manual color": "capture:\n  manual_color: red\n",
		"bad backend":      "handoff:\n  backend: s3\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cubebuddy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))

	t.Setenv("CUBEBUDDY_ADDR", ":7000")
	t.Setenv("CUBEBUDDY_HANDOFF", "badger")
	t.Setenv("CUBEBUDDY_SOLVER_TIMEOUT", "2s")
	t.Setenv("CUBEBUDDY_EXTRACT_WORKERS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "badger", cfg.Handoff.Backend)
	assert.Equal(t, 2*time.Second, cfg.Solver.Timeout)
	assert.Equal(t, 3, cfg.Capture.ExtractWorkers)
}

func TestLoadBadEnvDuration(t *testing.T) {
	t.Setenv("CUBEBUDDY_HANDOFF_TTL", "forever")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
