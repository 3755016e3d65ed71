package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"delaycalc/internal/delay"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. DELAYCALC_VARIANT.
const EnvPrefix = "DELAYCALC"

// Load initializes the configuration from file and environment variables.
// A missing default config file is fine; a missing explicit one is not.
func Load(cfgFile string) error {
	// .env is optional
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("delaycalc")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("variant", "A")
	viper.SetDefault("profiles", delay.DefaultProfiles())
	viper.SetDefault("verbose", false)
	viper.SetDefault("log_file", "")
	viper.SetDefault("metrics_file", "")
	viper.SetDefault("store.type", "json")
	viper.SetDefault("store.dsn", "")
	viper.SetDefault("sweep.threshold", 10.0)
	viper.SetDefault("notify.slack.webhook_url", "")
	viper.SetDefault("notify.slack.channel", "")
}

// StoreSettings selects the sweep history backend.
type StoreSettings struct {
	Type string
	DSN  string
}

// NotifySettings configures where sweep regressions are reported.
// The bot token is read from SLACK_BOT_USER_TOKEN only.
type NotifySettings struct {
	SlackWebhookURL string
	SlackToken      string
	SlackChannel    string
}

// Settings is a typed snapshot of the loaded configuration.
type Settings struct {
	Variant     string
	Profiles    []delay.Profile
	Verbose     bool
	LogFile     string
	MetricsFile string
	Store       StoreSettings
	Threshold   float64
	Notify      NotifySettings
}

// Current decodes the configuration viper holds right now.
func Current() (*Settings, error) {
	profiles, err := Profiles()
	if err != nil {
		return nil, err
	}
	return &Settings{
		Variant:     viper.GetString("variant"),
		Profiles:    profiles,
		Verbose:     viper.GetBool("verbose"),
		LogFile:     viper.GetString("log_file"),
		MetricsFile: viper.GetString("metrics_file"),
		Store: StoreSettings{
			Type: viper.GetString("store.type"),
			DSN:  viper.GetString("store.dsn"),
		},
		Threshold: viper.GetFloat64("sweep.threshold"),
		Notify: NotifySettings{
			SlackWebhookURL: viper.GetString("notify.slack.webhook_url"),
			SlackToken:      os.Getenv("SLACK_BOT_USER_TOKEN"),
			SlackChannel:    viper.GetString("notify.slack.channel"),
		},
	}, nil
}

// Profiles decodes the "profiles" key.
func Profiles() ([]delay.Profile, error) {
	var profiles []delay.Profile
	if err := viper.UnmarshalKey("profiles", &profiles); err != nil {
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}
	return profiles, nil
}

// ActiveProfile returns the profile named by Variant.
func (s *Settings) ActiveProfile() (delay.Profile, error) {
	p, ok := delay.FindProfile(s.Profiles, s.Variant)
	if !ok {
		return delay.Profile{}, fmt.Errorf("unknown variant %q (available: %s)",
			s.Variant, strings.Join(delay.ProfileNames(s.Profiles), ", "))
	}
	return p, nil
}
