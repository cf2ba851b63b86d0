// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/overlaycast/internal/config"
	"github.com/ManuGH/overlaycast/internal/player"
	"github.com/ManuGH/overlaycast/internal/preview"
	"github.com/ManuGH/overlaycast/internal/version"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(envConfigPath, "")
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.String()+"\n", out)
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(envConfigPath, " /etc/overlaycast.yaml ")
	assert.Equal(t, "/etc/overlaycast.yaml", (&rootOptions{}).resolveConfigPath())
	assert.Equal(t, "/tmp/a.yaml", (&rootOptions{configPath: "/tmp/a.yaml"}).resolveConfigPath())
}

func TestConfigInitValidateDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := runCmd(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	_, err = runCmd(t, "config", "init", "--config", path)
	require.ErrorIs(t, err, config.ErrConfigExists)

	_, err = runCmd(t, "config", "init", "--config", path, "--force")
	require.NoError(t, err)

	out, err = runCmd(t, "config", "validate", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	out, err = runCmd(t, "config", "dump", "-c", path)
	require.NoError(t, err)
	var fromYAML config.FileConfig
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))

	out, err = runCmd(t, "config", "dump", "-c", path, "--format", "json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)), out)

	_, err = runCmd(t, "config", "dump", "-c", path, "--format", "toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestConfigInitRequiresPath(t *testing.T) {
	_, err := runCmd(t, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--config is required")
}

func TestConfigValidateRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bogus: true\n"), 0o600))

	_, err := runCmd(t, "config", "validate", "-c", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration error in "+path)
}

func TestHealthcheckCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz":
			w.WriteHeader(http.StatusOK)
		case "/readyz":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	addr := strings.TrimPrefix(srv.URL, "http://")

	out, err := runCmd(t, "healthcheck", "--mode", "live", "--addr", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "healthcheck successful (live)")

	_, err = runCmd(t, "healthcheck", "--addr", addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	_, err = runCmd(t, "healthcheck", "--mode", "startup", "--addr", addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestProbeCommand(t *testing.T) {
	orig := probeFunc
	t.Cleanup(func() { probeFunc = orig })

	t.Run("ready", func(t *testing.T) {
		probeFunc = func(_ context.Context, _ config.AppConfig, url string, _ preview.ProbeDeps) (player.Snapshot, error) {
			return player.Snapshot{Source: url, Kind: player.KindAdaptive, State: player.StateReady}, nil
		}
		out, err := runCmd(t, "probe", "http://cam.local/live.m3u8")
		require.NoError(t, err)
		assert.Contains(t, out, "source:   http://cam.local/live.m3u8")
		assert.Contains(t, out, "strategy: adaptive-segmented")
		assert.Contains(t, out, "state:    ready")
	})

	t.Run("json", func(t *testing.T) {
		probeFunc = func(_ context.Context, _ config.AppConfig, url string, _ preview.ProbeDeps) (player.Snapshot, error) {
			return player.Snapshot{Source: url, State: player.StateReady}, nil
		}
		out, err := runCmd(t, "probe", "--json", "http://cam.local/live.m3u8")
		require.NoError(t, err)
		var snap map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &snap))
		assert.Equal(t, "http://cam.local/live.m3u8", snap["source"])
		assert.Equal(t, "ready", snap["state"])
	})

	t.Run("playback error", func(t *testing.T) {
		probeFunc = func(_ context.Context, _ config.AppConfig, url string, _ preview.ProbeDeps) (player.Snapshot, error) {
			perr := &player.PlaybackError{Kind: player.ErrorNetwork, Detail: "loading timeout"}
			return player.Snapshot{Source: url, State: player.StateError, Error: perr, Message: perr.Message()}, nil
		}
		out, err := runCmd(t, "probe", "http://cam.local/live.m3u8")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "playback failed")
		assert.Contains(t, out, "error:")
	})
}
