package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MSSkowron/MicroURL/internal/repository"
	"github.com/MSSkowron/MicroURL/internal/server/rest"
	"github.com/MSSkowron/MicroURL/internal/service"
	"github.com/MSSkowron/MicroURL/internal/vocabulary"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func startRegistry(t *testing.T) string {
	t.Helper()

	generator, err := service.NewCodeGenerator(vocabulary.Default(), 3)
	require.NoError(t, err)
	registry, err := service.NewRegistryService(repository.NewMemoryMicroRepository(), generator, time.Hour)
	require.NoError(t, err)

	server := httptest.NewServer(rest.NewServer(registry).Handler)
	t.Cleanup(server.Close)

	return server.URL
}

func TestClientCommands(t *testing.T) {
	serverURL := startRegistry(t)

	out, err := execute(t, "--server", serverURL, "shorten", "--public", "https://example.com/page")
	require.NoError(t, err)
	code := strings.TrimSpace(out)
	require.Regexp(t, `^[a-z]+$`, code)

	out, err = execute(t, "--server", serverURL, "resolve", code)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/page\n", out)

	out, err = execute(t, "--server", serverURL, "top", "--limit", "5")
	require.NoError(t, err)
	require.JSONEq(t, fmt.Sprintf(`{%q: "https://example.com/page"}`, code), out)

	out, err = execute(t, "--server", serverURL, "recent")
	require.NoError(t, err)
	require.Contains(t, out, code)

	_, err = execute(t, "--server", serverURL, "resolve", "nosuchmicro")
	require.Error(t, err)
}

func TestShortenRequiresDestination(t *testing.T) {
	_, err := execute(t, "shorten")
	require.Error(t, err)
}

func TestSweepCommand(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "microurl.env")
	content := fmt.Sprintf("DATABASE_DRIVER=sqlite\nDATABASE_URL=%s\nLOG_LEVEL=error\n", filepath.Join(dir, "micros.db"))
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o600))

	out, err := execute(t, "--config", configFile, "sweep")
	require.NoError(t, err)
	require.Equal(t, "deleted 0 expired micros\n", out)
}

func TestSweepCommandInvalidConfig(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "microurl.env")
	require.NoError(t, os.WriteFile(configFile, []byte("DATABASE_DRIVER=mysql\n"), 0o600))

	_, err := execute(t, "--config", configFile, "sweep")
	require.ErrorContains(t, err, "DATABASE_DRIVER")
}
