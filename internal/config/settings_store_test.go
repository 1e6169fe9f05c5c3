package config

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestSettingsSaveLoadAndPath(t *testing.T) {
	root := t.TempDir()
	if runtime.GOOS == "windows" {
		t.Setenv("AppData", root)
	} else {
		t.Setenv("XDG_CONFIG_HOME", root)
	}
	if runtime.GOOS == "darwin" {
		t.Setenv("HOME", root)
		root = filepath.Join(root, "Library", "Application Support")
	}

	path, err := SettingsPath()
	if err != nil {
		t.Fatalf("SettingsPath() error = %v", err)
	}
	wantPath := filepath.Join(root, "lasagna", "settings.json")
	if path != wantPath {
		t.Fatalf("SettingsPath() = %q, want %q", path, wantPath)
	}

	in := Settings{
		SocketURL: "wss://ws.example.com/socket",
		IssuerURL: "https://auth.example.com/token",
		LogDir:    "/tmp/lasagna-logs",
		Debug:     true,
	}
	if err := SaveSettings(in); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	out, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if out != in {
		t.Fatalf("loaded settings = %#v, want %#v", out, in)
	}
}

func TestMergeOptionsWithSettings_PrefersCLI(t *testing.T) {
	merged := MergeOptionsWithSettings(
		Options{SocketURL: "wss://cli.example.com/socket"},
		Settings{
			SocketURL: "wss://saved.example.com/socket",
			IssuerURL: "https://saved.example.com/token",
			LogDir:    "/tmp/saved-dir",
			Debug:     true,
		},
	)
	if merged.SocketURL != "wss://cli.example.com/socket" {
		t.Fatalf("SocketURL = %q", merged.SocketURL)
	}
	if merged.IssuerURL != "https://saved.example.com/token" {
		t.Fatalf("IssuerURL = %q", merged.IssuerURL)
	}
	if merged.LogDir != "/tmp/saved-dir" || !merged.Debug {
		t.Fatalf("merged = %#v", merged)
	}
}

func TestMergeOptionsWithSettings_CLICredentialSourceWins(t *testing.T) {
	merged := MergeOptionsWithSettings(
		Options{TokenFile: "/run/token"},
		Settings{IssuerURL: "https://saved.example.com/token"},
	)
	if merged.IssuerURL != "" || merged.TokenFile != "/run/token" {
		t.Fatalf("merged = %#v, want only the CLI token file", merged)
	}
}

func TestSettingsFromOptions_DropsSecrets(t *testing.T) {
	s := SettingsFromOptions(Options{IssuerURL: " https://a.example.com ", IssuerToken: "secret"})
	if s.IssuerURL != "https://a.example.com" {
		t.Fatalf("IssuerURL = %q", s.IssuerURL)
	}
}
