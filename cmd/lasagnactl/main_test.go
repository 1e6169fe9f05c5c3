package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"lasagna/internal/config"
	"lasagna/tokenfile"
)

func isolateSettings(t *testing.T) {
	t.Helper()
	root := t.TempDir()
	if runtime.GOOS == "windows" {
		t.Setenv("AppData", root)
	} else {
		t.Setenv("XDG_CONFIG_HOME", root)
		t.Setenv("HOME", root)
	}
	for _, key := range []string{"LASAGNA_SOCKET_URL", "LASAGNA_ISSUER_URL", "LASAGNA_ISSUER_TOKEN", "LASAGNA_TOKEN_FILE", "LASAGNA_DEBUG", "LASAGNA_PERSIST_LOGS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "cli-test",
		"iss": "unit",
		"exp": exp.Unix(),
	}).SignedString([]byte("cli-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

func TestRun_Topic(t *testing.T) {
	isolateSettings(t)
	code, out, _ := runCLI(t, "topic", "push-no_auth:room")
	if code != 0 || !strings.Contains(out, "exempt") {
		t.Fatalf("topic = %d %q", code, out)
	}
	if !strings.Contains(out, "socket: "+config.DefaultSocketURL) {
		t.Fatalf("topic output = %q, want default socket URL", out)
	}
	code, out, _ = runCLI(t, "--socket-url", "wss://ws.example.com/socket/", "topic", "push:room")
	if code != 0 || !strings.Contains(out, "credential required") {
		t.Fatalf("topic = %d %q", code, out)
	}
	if !strings.Contains(out, "socket: wss://ws.example.com/socket\n") {
		t.Fatalf("topic output = %q, want normalized socket URL", out)
	}
}

func TestRun_Inspect(t *testing.T) {
	isolateSettings(t)
	code, out, _ := runCLI(t, "inspect", signed(t, time.Now().Add(time.Hour)))
	if code != 0 {
		t.Fatalf("inspect exit = %d", code)
	}
	if !strings.Contains(out, "subject:  cli-test") || !strings.Contains(out, "status:   valid") {
		t.Fatalf("inspect output = %q", out)
	}

	_, out, _ = runCLI(t, "inspect", signed(t, time.Now().Add(-time.Hour)))
	if !strings.Contains(out, "status:   stale") {
		t.Fatalf("inspect output = %q", out)
	}

	if code, _, _ := runCLI(t, "inspect", "not-a-token"); code != 1 {
		t.Fatalf("inspect garbage exit = %d, want 1", code)
	}
}

func TestRun_FetchFromTokenFileToOut(t *testing.T) {
	isolateSettings(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	token := signed(t, time.Now().Add(time.Hour))
	if err := tokenfile.Write(src, token); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	code, _, stderr := runCLI(t, "--token-file", src, "fetch", "--topic", "push:room", "--out", dst)
	if code != 0 {
		t.Fatalf("fetch exit = %d, stderr = %q", code, stderr)
	}
	got, err := tokenfile.New(dst, nil).Token()
	if err != nil || got != token {
		t.Fatalf("written token = %q, %v", got, err)
	}
}

func TestRun_FetchStdout(t *testing.T) {
	isolateSettings(t)
	src := filepath.Join(t.TempDir(), "src")
	token := signed(t, time.Now().Add(time.Hour))
	if err := tokenfile.Write(src, token); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	code, out, _ := runCLI(t, "--token-file", src, "fetch")
	if code != 0 || strings.TrimSpace(out) != token {
		t.Fatalf("fetch = %d %q", code, out)
	}
}

func TestRun_FetchRejectsStaleOrMissingSource(t *testing.T) {
	isolateSettings(t)
	if code, _, _ := runCLI(t, "fetch"); code != 1 {
		t.Fatalf("fetch without source exit = %d, want 1", code)
	}
	src := filepath.Join(t.TempDir(), "src")
	if err := tokenfile.Write(src, signed(t, time.Now().Add(-time.Minute))); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if code, _, _ := runCLI(t, "--token-file", src, "fetch"); code != 1 {
		t.Fatalf("fetch stale exit = %d, want 1", code)
	}
	if code, _, _ := runCLI(t, "--token-file", src, "fetch", "--param", "novalue"); code != 1 {
		t.Fatalf("fetch bad param exit = %d, want 1", code)
	}
}

func TestRun_Save(t *testing.T) {
	isolateSettings(t)
	code, _, stderr := runCLI(t, "--socket-url", "wss://ws.example.com/socket/", "--issuer-url", "https://auth.example.com/t", "--issuer-token", "secret", "save")
	if code != 0 {
		t.Fatalf("save exit = %d, stderr = %q", code, stderr)
	}
	saved, err := config.LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if saved.SocketURL != "wss://ws.example.com/socket" || saved.IssuerURL != "https://auth.example.com/t" {
		t.Fatalf("saved = %#v", saved)
	}
}

func TestRun_HelpAndUsageErrors(t *testing.T) {
	isolateSettings(t)
	if code, out, _ := runCLI(t, "--help"); code != 0 || !strings.Contains(out, "lasagnactl") {
		t.Fatalf("--help = %d %q", code, out)
	}
	if code, _, _ := runCLI(t, "bogus"); code != 2 {
		t.Fatalf("unknown command exit = %d, want 2", code)
	}
	if code, _, _ := runCLI(t); code != 2 {
		t.Fatalf("missing command exit = %d, want 2", code)
	}
}
