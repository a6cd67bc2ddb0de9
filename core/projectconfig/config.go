package projectconfig

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

const (
	DefaultPath       = ".modelgate/config.yaml"
	DefaultReportPath = "modelgate_report.json"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "console"
)

type Config struct {
	Policy          string       `yaml:"policy"`
	ReportPath      string       `yaml:"report_path"`
	HistoryDB       string       `yaml:"history_db"`
	MetricsTextfile string       `yaml:"metrics_textfile"`
	Log             LogDefaults  `yaml:"log"`
	Sign            SignDefaults `yaml:"sign"`
}

type LogDefaults struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SignDefaults struct {
	PrivateKey    string `yaml:"private_key"` // #nosec G117 -- config key name documents expected secret input.
	PrivateKeyEnv string `yaml:"private_key_env"`
	PublicKey     string `yaml:"public_key"`
}

// Defaults is the configuration used when no file is present.
func Defaults() Config {
	return Config{
		ReportPath: DefaultReportPath,
		Log:        LogDefaults{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

func Load(path string, allowMissing bool) (Config, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return Config{}, fmt.Errorf("project config path is required")
	}

	// #nosec G304 -- project config path is explicit local user input.
	content, err := os.ReadFile(trimmedPath)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return Defaults(), nil
		}
		return Config{}, fmt.Errorf("read project config: %w", err)
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return Defaults(), nil
	}

	var configuration Config
	if err := yaml.Unmarshal(content, &configuration); err != nil {
		return Config{}, fmt.Errorf("parse project config: %w", err)
	}
	configuration.normalize()
	if err := configuration.validate(); err != nil {
		return Config{}, err
	}
	return configuration, nil
}

func (configuration *Config) normalize() {
	configuration.Policy = strings.TrimSpace(configuration.Policy)
	configuration.ReportPath = strings.TrimSpace(configuration.ReportPath)
	configuration.HistoryDB = strings.TrimSpace(configuration.HistoryDB)
	configuration.MetricsTextfile = strings.TrimSpace(configuration.MetricsTextfile)
	configuration.Log.Level = strings.ToLower(strings.TrimSpace(configuration.Log.Level))
	configuration.Log.Format = strings.ToLower(strings.TrimSpace(configuration.Log.Format))
	configuration.Sign.PrivateKey = strings.TrimSpace(configuration.Sign.PrivateKey)
	configuration.Sign.PrivateKeyEnv = strings.TrimSpace(configuration.Sign.PrivateKeyEnv)
	configuration.Sign.PublicKey = strings.TrimSpace(configuration.Sign.PublicKey)

	if configuration.ReportPath == "" {
		configuration.ReportPath = DefaultReportPath
	}
	if configuration.Log.Level == "" {
		configuration.Log.Level = DefaultLogLevel
	}
	if configuration.Log.Format == "" {
		configuration.Log.Format = DefaultLogFormat
	}
}

func (configuration Config) validate() error {
	switch configuration.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("project config log.format must be console or json, got %q", configuration.Log.Format)
	}
	if configuration.Sign.PrivateKey != "" && configuration.Sign.PrivateKeyEnv != "" {
		return fmt.Errorf("project config sign: set either private_key or private_key_env")
	}
	return nil
}
