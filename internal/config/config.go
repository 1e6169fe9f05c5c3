package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

const DefaultSocketURL = "wss://lasagna.pub/socket"

type Options struct {
	SocketURL   string `long:"socket-url" env:"LASAGNA_SOCKET_URL" description:"Pub/sub socket URL (default wss://lasagna.pub/socket)"`
	IssuerURL   string `long:"issuer-url" env:"LASAGNA_ISSUER_URL" description:"Credential issuer endpoint"`
	IssuerToken string `long:"issuer-token" env:"LASAGNA_ISSUER_TOKEN" description:"Bearer token presented to the issuer"`
	TokenFile   string `long:"token-file" env:"LASAGNA_TOKEN_FILE" description:"File holding a credential kept fresh by another process"`
	LogDir      string `long:"log-dir" env:"LASAGNA_LOG_DIR" description:"Directory for persisted JSONL logs"`
	PersistLogs bool   `long:"persist-logs" env:"LASAGNA_PERSIST_LOGS" description:"Write session logs to the log directory"`
	Debug       bool   `long:"debug" env:"LASAGNA_DEBUG" description:"Enable verbose debug output"`
}

// LoadEnv loads .env style files into the process environment. Missing files
// are skipped; with no arguments ./.env is tried.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// NewParser returns a parser for opts as global options. Callers add their
// subcommands before parsing.
func NewParser(opts *Options) *flags.Parser {
	return flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
}

// Resolve normalizes URLs and fills defaults.
func Resolve(opts Options) (Options, error) {
	socketURL, err := NormalizeSocketURL(opts.SocketURL)
	if err != nil {
		return Options{}, fmt.Errorf("socket url: %w", err)
	}
	opts.SocketURL = socketURL
	if strings.TrimSpace(opts.IssuerURL) != "" {
		issuerURL, err := NormalizeIssuerURL(opts.IssuerURL)
		if err != nil {
			return Options{}, fmt.Errorf("issuer url: %w", err)
		}
		opts.IssuerURL = issuerURL
	}
	opts.TokenFile = strings.TrimSpace(opts.TokenFile)
	opts.LogDir = strings.TrimSpace(opts.LogDir)
	return opts, nil
}

// ValidateCredentialSource requires exactly one way of obtaining credentials.
func ValidateCredentialSource(opts Options) error {
	hasIssuer := strings.TrimSpace(opts.IssuerURL) != ""
	hasFile := strings.TrimSpace(opts.TokenFile) != ""
	switch {
	case hasIssuer && hasFile:
		return errors.New("set either issuer URL or token file, not both")
	case !hasIssuer && !hasFile:
		return errors.New("set either issuer URL or token file")
	case hasIssuer && strings.TrimSpace(opts.IssuerToken) == "":
		return errors.New("issuer token is required with issuer URL")
	}
	return nil
}

func NormalizeSocketURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return DefaultSocketURL, nil
	}
	parsed, err := parseAbsolute(value)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(parsed.Scheme) {
	case "ws", "wss", "http", "https":
	default:
		return "", errors.New("socket URL scheme must be ws, wss, http or https")
	}
	parsed.Fragment = ""
	return strings.TrimRight(parsed.String(), "/"), nil
}

func NormalizeIssuerURL(raw string) (string, error) {
	parsed, err := parseAbsolute(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(parsed.Scheme, "http") && !strings.EqualFold(parsed.Scheme, "https") {
		return "", errors.New("issuer URL scheme must be http or https")
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String(), nil
}

func parseAbsolute(value string) (*url.URL, error) {
	parsed, err := url.Parse(value)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("expected absolute URL like https://example.com")
	}
	return parsed, nil
}
