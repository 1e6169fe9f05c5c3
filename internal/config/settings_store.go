package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// Settings are the defaults saved by `lasagnactl save`. Secrets are never
// persisted.
type Settings struct {
	SocketURL string `json:"socket_url"`
	IssuerURL string `json:"issuer_url"`
	TokenFile string `json:"token_file"`
	LogDir    string `json:"log_dir"`
	Debug     bool   `json:"debug"`
}

func SettingsPath() (string, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "lasagna", "settings.json"), nil
}

func LoadSettings() (Settings, error) {
	path, err := SettingsPath()
	if err != nil {
		return Settings{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func SaveSettings(settings Settings) error {
	path, err := SettingsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// MergeOptionsWithSettings fills options left empty on the command line from
// saved settings.
func MergeOptionsWithSettings(cli Options, saved Settings) Options {
	if strings.TrimSpace(cli.SocketURL) == "" {
		cli.SocketURL = saved.SocketURL
	}
	if strings.TrimSpace(cli.IssuerURL) == "" && strings.TrimSpace(cli.TokenFile) == "" {
		cli.IssuerURL = saved.IssuerURL
		cli.TokenFile = saved.TokenFile
	}
	if strings.TrimSpace(cli.LogDir) == "" {
		cli.LogDir = saved.LogDir
	}
	if !cli.Debug {
		cli.Debug = saved.Debug
	}
	return cli
}

func SettingsFromOptions(opts Options) Settings {
	return Settings{
		SocketURL: strings.TrimSpace(opts.SocketURL),
		IssuerURL: strings.TrimSpace(opts.IssuerURL),
		TokenFile: strings.TrimSpace(opts.TokenFile),
		LogDir:    strings.TrimSpace(opts.LogDir),
		Debug:     opts.Debug,
	}
}
