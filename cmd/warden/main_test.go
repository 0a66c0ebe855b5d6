package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, secret string) (cfgPath, base string) {
	t.Helper()
	base = t.TempDir()
	cfgPath = filepath.Join(base, "warden.yaml")
	content := "paths:\n  base: " + base + "\ncsrf:\n  secret: \"" + secret + "\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	return cfgPath, base
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRouteCommand(t *testing.T) {
	t.Parallel()

	cfg, base := writeConfig(t, "")

	out, err := run(t, "--config", cfg, "--env-file", "", "route", "_shop/public/style.css", "public")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "plugins", "shop", "public", "style.css")+"\n", out)

	out, err = run(t, "--config", cfg, "--env-file", "", "route", "~/etc/hosts")
	require.NoError(t, err)
	require.Equal(t, "/etc/hosts\n", out)

	out, err = run(t, "--config", cfg, "--env-file", "", "--json", "route", "css/site.css", "public")
	require.NoError(t, err)
	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, filepath.Join(base, "public", "css", "site.css"), resp["target"])
	require.Equal(t, false, resp["exists"])
}

func TestCSRFCommands(t *testing.T) {
	t.Parallel()

	cfg, _ := writeConfig(t, "cli-secret")

	out, err := run(t, "--config", cfg, "--env-file", "", "csrf", "issue", "--ip", "10.1.1.1", "--ua", "cli")
	require.NoError(t, err)
	tok := strings.TrimSpace(out)
	require.Greater(t, len(tok), 10)

	out, err = run(t, "--config", cfg, "--env-file", "", "csrf", "verify", "--ip", "10.1.1.1", "--ua", "cli", tok)
	require.NoError(t, err)
	require.Equal(t, "valid\n", out)

	out, err = run(t, "--config", cfg, "--env-file", "", "csrf", "verify", "--ip", "10.1.1.2", "--ua", "cli", tok)
	require.ErrorIs(t, err, errTokenRejected)
	require.Equal(t, "invalid\n", out)
}

func TestCSRFDisabled(t *testing.T) {
	t.Parallel()

	cfg, _ := writeConfig(t, "")

	_, err := run(t, "--config", cfg, "--env-file", "", "csrf", "issue")
	require.Error(t, err)

	out, err := run(t, "--config", cfg, "--env-file", "", "csrf", "verify", "anything-goes-here")
	require.NoError(t, err)
	require.Equal(t, "disabled\n", out)
}

func TestAuditCommands(t *testing.T) {
	t.Parallel()

	cfg, base := writeConfig(t, "")

	for _, user := range []string{"a", "b", "c"} {
		_, err := run(t, "--config", cfg, "--env-file", "", "audit", "write", "logins", `{"user":"`+user+`","pin":"0000"}`)
		require.NoError(t, err)
	}
	_, err := os.Stat(filepath.Join(base, "logs", "logins.log"))
	require.NoError(t, err)

	out, err := run(t, "--config", cfg, "--env-file", "", "audit", "tail", "logins", "-n", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"user":"b"`)
	require.Contains(t, lines[1], `"user":"c"`)
	require.NotContains(t, out, "pin")

	_, err = run(t, "--config", cfg, "--env-file", "", "audit", "write", "logins", `not json`)
	require.Error(t, err)
}
