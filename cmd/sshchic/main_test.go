package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"
	"golang.org/x/crypto/ssh"

	"github.com/dreamware/sshchic/internal/keygen"
	"github.com/dreamware/sshchic/internal/report"
	"github.com/dreamware/sshchic/internal/search"
	"github.com/dreamware/sshchic/internal/storage"
)

// runCmd executes the command with a timeout and captures its output.
func runCmd(t *testing.T, timeout time.Duration, args ...string) (int, string, string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	var stdout, stderr bytes.Buffer
	code := execute(ctx, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// TestGetenv tests the getenv utility function
func TestGetenv(t *testing.T) {
	t.Setenv("SSHCHIC_TEST_VAR", "value")
	assert.Equal(t, "value", getenv("SSHCHIC_TEST_VAR", "default"))
	assert.Equal(t, "default", getenv("SSHCHIC_UNSET_VAR", "default"))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: exitOK},
		{name: "config", err: &configError{errors.New("bad")}, want: exitConfig},
		{name: "unknown error", err: errors.New("flag"), want: exitConfig},
		{name: "persist", err: &search.PersistError{Err: errors.New("disk")}, want: exitPersist},
		{name: "fault", err: &search.WorkerFault{Worker: 1, Cause: errors.New("x")}, want: exitFault},
		{name: "joined persist", err: errors.Join(nil, &search.PersistError{Err: errors.New("disk")}), want: exitPersist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestConfigurationErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{name: "invalid regex", args: []string{"--regex", "([", "--dir", dir}, msg: "invalid regex pattern"},
		{name: "missing regex", args: []string{"--dir", dir}, msg: `required flag "regex"`},
		{name: "bad fingerprint format", args: []string{"--regex", "a", "--fingerprint-format", "md5", "--dir", dir}, msg: "unknown fingerprint format"},
		{name: "negative workers", args: []string{"--regex", "a", "--workers", "-2", "--dir", dir}, msg: "workers must not be negative"},
		{name: "unknown flag", args: []string{"--bogus"}, msg: "unknown flag"},
		{name: "missing config", args: []string{"--config", filepath.Join(dir, "none.yaml")}, msg: "read config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCmd(t, 5*time.Second, tt.args...)
			assert.Equal(t, exitConfig, code)
			assert.Contains(t, stderr, tt.msg)
			assert.NotContains(t, stdout, "Press Ctrl+C", "nothing starts on a configuration error")
		})
	}
	assert.Empty(t, dirEntries(t, dir))
}

// TestSingleShotEndToEnd searches for a key ending in AAA (any case) and
// checks that both files hold the same, matching key pair.
func TestSingleShotEndToEnd(t *testing.T) {
	dir := t.TempDir()
	code, stdout, stderr := runCmd(t, 2*time.Minute, "--regex", "AAA$", "--insensitive", "--dir", dir)
	require.Equal(t, exitOK, code, "stderr: %s", stderr)

	assert.Contains(t, stdout, "Using regex pattern: (?i)AAA$")
	assert.Contains(t, stdout, "Match found!")
	assert.Contains(t, stdout, "Saved "+filepath.Join(dir, "id_ed25519"))
	assert.Contains(t, stdout, "Done!")
	assert.ElementsMatch(t, []string{"id_ed25519", "id_ed25519.pub"}, dirEntries(t, dir))

	pubData, err := os.ReadFile(filepath.Join(dir, "id_ed25519.pub"))
	require.NoError(t, err)
	fields := strings.Fields(string(pubData))
	require.GreaterOrEqual(t, len(fields), 2)
	assert.Equal(t, "ssh-ed25519", fields[0])
	assert.True(t, strings.HasSuffix(strings.ToLower(fields[1]), "aaa"), "public key %s", fields[1])
	assert.True(t, strings.HasSuffix(string(pubData), keygen.DefaultComment+"\n"))

	privData, err := os.ReadFile(filepath.Join(dir, "id_ed25519"))
	require.NoError(t, err)
	signer, err := ssh.ParsePrivateKey(privData)
	require.NoError(t, err)
	pub, _, _, _, err := ssh.ParseAuthorizedKey(pubData)
	require.NoError(t, err)
	assert.Equal(t, pub.Marshal(), signer.PublicKey().Marshal())
}

// TestStreamingInterrupted runs a pattern that matches every key until the
// context is canceled: matches are reported and no files are written.
func TestStreamingInterrupted(t *testing.T) {
	dir := t.TempDir()
	code, stdout, stderr := runCmd(t, 200*time.Millisecond,
		"--regex", "", "--streaming", "--workers", "1", "--dir", dir)

	assert.Equal(t, exitOK, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Match found!")
	assert.Empty(t, dirEntries(t, dir), "streaming mode writes no key files")
}

func TestJSONOutput(t *testing.T) {
	dir := t.TempDir()
	code, stdout, stderr := runCmd(t, 30*time.Second,
		"--regex", "", "--json", "--fingerprint", "--fingerprint-format", "hex", "--dir", dir, "--output", "vanity")
	require.Equal(t, exitOK, code, "stderr: %s", stderr)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 1, "single-shot reports exactly one match")
	var rec report.MatchRecord
	require.NoError(t, sonnet.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "hex", rec.Format)
	assert.Len(t, rec.Fingerprint, 64)
	assert.True(t, strings.HasPrefix(rec.PublicKey, "ssh-ed25519 "))

	assert.ElementsMatch(t, []string{"vanity", "vanity.pub"}, dirEntries(t, dir))
}

func TestBudgetWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sshchic.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("regex: \"^$\"\nworkers: 2\nmax_keys: 500\n"), 0o644))

	code, stdout, stderr := runCmd(t, 30*time.Second, "--config", cfgPath, "--dir", dir)
	assert.Equal(t, exitOK, code, "stderr: %s", stderr)
	assert.NotContains(t, stdout, "Match found!")
	assert.Contains(t, stderr, "examined 500 keys")
	assert.ElementsMatch(t, []string{"sshchic.yaml"}, dirEntries(t, dir))
}

func TestJournalFlag(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "matches.db")
	code, _, stderr := runCmd(t, 30*time.Second,
		"--regex", "", "--streaming", "--max-keys", "5", "--workers", "1", "--journal", dbPath, "--dir", dir)
	require.Equal(t, exitOK, code, "stderr: %s", stderr)

	j, err := storage.OpenJournal(dbPath, keygen.Encoder{})
	require.NoError(t, err)
	defer j.Close()
	n, err := j.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestPersistenceError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does", "not", "exist")
	code, _, stderr := runCmd(t, 30*time.Second, "--regex", "", "--dir", missing)
	assert.Equal(t, exitPersist, code)
	assert.Contains(t, stderr, "persist match")
}

func TestWebhookFlag(t *testing.T) {
	var mu sync.Mutex
	var bodies [][]byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	dir := t.TempDir()
	code, _, stderr := runCmd(t, 30*time.Second,
		"--regex", "", "--streaming", "--max-keys", "3", "--workers", "1", "--webhook", srv.URL, "--dir", dir)
	require.Equal(t, exitOK, code, "stderr: %s", stderr)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 3, "every match is delivered before the command returns")
	for _, b := range bodies {
		var rec report.MatchRecord
		require.NoError(t, sonnet.Unmarshal(b, &rec))
		assert.Empty(t, rec.PrivateKey)
		assert.True(t, strings.HasPrefix(rec.PublicKey, "ssh-ed25519 "))
	}
}
