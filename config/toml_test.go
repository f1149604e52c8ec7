package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "valkeycluster.toml")
	contents := `
max_redirections = 3
connect_timeout = "2s"
username = "app"
password = "secret"
route_prefer_replicas = true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	opts, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, opts.MaxRedirections)
	require.Equal(t, 2*time.Second, opts.ConnectTimeout)
	require.True(t, opts.RoutePreferReplicas)
	require.Equal(t, "app", opts.Username)
	require.Equal(t, "secret", opts.Password)
	require.Equal(t, Default().MaxRetry, opts.MaxRetry, "expected MaxRetry to keep its default when unset in the file")
}

func TestFromEnv(t *testing.T) {
	t.Setenv("VALKEYCLUSTER_MAX_REDIRECTIONS", "9")
	t.Setenv("VALKEYCLUSTER_ROUTE_PREFER_REPLICAS", "true")

	opts := FromEnv()
	require.Equal(t, 9, opts.MaxRedirections)
	require.True(t, opts.RoutePreferReplicas)
}
