package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeSocketURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty uses default", raw: "", want: DefaultSocketURL},
		{name: "trailing slash", raw: "wss://ws.example.com/socket/", want: "wss://ws.example.com/socket"},
		{name: "fragment dropped", raw: "ws://127.0.0.1:4000/socket#x", want: "ws://127.0.0.1:4000/socket"},
		{name: "query kept", raw: "wss://ws.example.com/socket?vsn=2.0.0", want: "wss://ws.example.com/socket?vsn=2.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSocketURL(tt.raw)
			if err != nil {
				t.Fatalf("NormalizeSocketURL() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("NormalizeSocketURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeURL_InvalidScheme(t *testing.T) {
	for _, raw := range []string{"ftp://example.com", "file:///tmp/socket", "example.com/socket"} {
		t.Run(raw, func(t *testing.T) {
			if _, err := NormalizeSocketURL(raw); err == nil {
				t.Fatalf("NormalizeSocketURL(%q) error = nil", raw)
			}
		})
	}
	if _, err := NormalizeIssuerURL("wss://auth.example.com"); err == nil {
		t.Fatalf("NormalizeIssuerURL(wss) error = nil")
	}
}

func TestNewParser_EnvAndFlags(t *testing.T) {
	t.Setenv("LASAGNA_ISSUER_URL", "https://env.example.com/token")
	t.Setenv("LASAGNA_DEBUG", "true")

	opts := Options{}
	rest, err := NewParser(&opts).ParseArgs([]string{"--socket-url", "wss://flag.example.com/socket", "extra"})
	if err != nil {
		t.Fatalf("ParseArgs() error = %v", err)
	}
	if opts.SocketURL != "wss://flag.example.com/socket" || opts.IssuerURL != "https://env.example.com/token" || !opts.Debug {
		t.Fatalf("opts = %#v", opts)
	}
	if len(rest) != 1 || rest[0] != "extra" {
		t.Fatalf("rest = %v", rest)
	}
}

func TestResolve(t *testing.T) {
	opts, err := Resolve(Options{IssuerURL: "https://auth.example.com/token?x=1", TokenFile: " /run/tok "})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if opts.SocketURL != DefaultSocketURL || opts.IssuerURL != "https://auth.example.com/token" || opts.TokenFile != "/run/tok" {
		t.Fatalf("Resolve() = %#v", opts)
	}
	if _, err := Resolve(Options{SocketURL: "ftp://x.example.com"}); err == nil {
		t.Fatalf("Resolve() with bad socket URL error = nil")
	}
}

func TestValidateCredentialSource(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "none", opts: Options{}, wantErr: true},
		{name: "both", opts: Options{IssuerURL: "https://a", IssuerToken: "t", TokenFile: "/f"}, wantErr: true},
		{name: "issuer without token", opts: Options{IssuerURL: "https://a"}, wantErr: true},
		{name: "issuer", opts: Options{IssuerURL: "https://a", IssuerToken: "t"}},
		{name: "file", opts: Options{TokenFile: "/f"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCredentialSource(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateCredentialSource() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("LASAGNA_TEST_ONLY_KEY=from-file\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("LASAGNA_TEST_ONLY_KEY", "")
	os.Unsetenv("LASAGNA_TEST_ONLY_KEY")

	if err := LoadEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if got := os.Getenv("LASAGNA_TEST_ONLY_KEY"); got != "from-file" {
		t.Fatalf("LASAGNA_TEST_ONLY_KEY = %q", got)
	}
}
