package config

import (
	"fmt"
	"os"
	"strings"

	"delaycalc/internal/delay"

	"github.com/spf13/viper"
)

var storeTypes = []string{"json", "sqlite", "sqlite3", "postgres", "postgresql"}

// ValidateConfig validates configuration values and returns an error if any are invalid.
// This function should be called after viper has loaded the configuration.
func ValidateConfig() error {
	var errors []string

	profiles, err := Profiles()
	if err != nil {
		return fmt.Errorf("configuration validation failed:\n  %v", err)
	}
	errors = append(errors, validateProfiles(profiles)...)

	// Validate the active variant
	variant := viper.GetString("variant")
	if variant == "" {
		errors = append(errors, "variant must not be empty")
	} else if _, ok := delay.FindProfile(profiles, variant); !ok && len(profiles) > 0 {
		errors = append(errors, fmt.Sprintf("variant %q is not a configured profile (available: %s)",
			variant, strings.Join(delay.ProfileNames(profiles), ", ")))
	}

	// Validate store type
	storeType := strings.ToLower(viper.GetString("store.type"))
	if storeType != "" && !contains(storeTypes, storeType) {
		errors = append(errors, fmt.Sprintf("store.type must be one of json, sqlite, postgres, got: %s", storeType))
	}

	// Validate regression threshold
	if viper.IsSet("sweep.threshold") {
		threshold := viper.GetFloat64("sweep.threshold")
		if threshold < 0 {
			errors = append(errors, fmt.Sprintf("sweep.threshold must not be negative, got: %v", threshold))
		}
	}

	// A bot token needs somewhere to post
	if os.Getenv("SLACK_BOT_USER_TOKEN") != "" && viper.GetString("notify.slack.webhook_url") == "" &&
		viper.GetString("notify.slack.channel") == "" {
		errors = append(errors, "notify.slack.channel is required when SLACK_BOT_USER_TOKEN is set")
	}

	if len(errors) > 0 {
		errorMsg := errors[0]
		for i := 1; i < len(errors); i++ {
			errorMsg += "\n  " + errors[i]
		}
		return fmt.Errorf("configuration validation failed:\n  %s", errorMsg)
	}

	return nil
}

func validateProfiles(profiles []delay.Profile) []string {
	var errors []string
	if len(profiles) == 0 {
		return []string{"at least one profile must be configured"}
	}

	names := make(map[string]bool)
	for i, p := range profiles {
		if p.Name == "" {
			errors = append(errors, fmt.Sprintf("profiles[%d].name must not be empty", i))
			continue
		}
		key := strings.ToUpper(p.Name)
		if names[key] {
			errors = append(errors, fmt.Sprintf("profile %q is defined more than once", p.Name))
		}
		names[key] = true

		if len(p.Datasets) == 0 {
			errors = append(errors, fmt.Sprintf("profile %q has no datasets", p.Name))
		}
		labels := make(map[string]bool)
		for j, d := range p.Datasets {
			if d.Label == "" {
				errors = append(errors, fmt.Sprintf("profile %q datasets[%d].label must not be empty", p.Name, j))
				continue
			}
			if labels[d.Label] {
				errors = append(errors, fmt.Sprintf("profile %q dataset %q is defined more than once", p.Name, d.Label))
			}
			labels[d.Label] = true
			if d.Micros <= 0 {
				errors = append(errors, fmt.Sprintf("profile %q dataset %q micros must be positive, got: %d", p.Name, d.Label, d.Micros))
			}
		}
	}
	return errors
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
