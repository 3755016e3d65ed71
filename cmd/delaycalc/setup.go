package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"delaycalc/internal/benchmark"
	"delaycalc/internal/delay"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Wrapper for survey functions to allow mocking in tests
var (
	askOneFunc = survey.AskOne
)

// setupCmd represents the setup command
var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactively write a delaycalc.yaml",
	Long: `Runs a short wizard that picks the default profile, the sweep history
backend, the regression threshold and Slack notifications, and writes them to
the config file (--config, or ./delaycalc.yaml). Profiles are not written, so
the built-in dataset tables keep applying unless you add your own.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	path := cfgFile
	if path == "" {
		path = "delaycalc.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		overwrite := false
		err := askOneFunc(&survey.Confirm{
			Message: fmt.Sprintf("%s already exists. Overwrite it?", path),
			Default: false,
		}, &overwrite)
		if err != nil {
			return err
		}
		if !overwrite {
			fmt.Fprintln(out, "Setup cancelled, nothing written.")
			return nil
		}
	}

	answers := struct {
		Variant     string
		StoreType   string
		DSN         string
		Threshold   string
		EnableSlack bool
		WebhookURL  string
	}{}

	err := askOneFunc(&survey.Select{
		Message: "Default profile:",
		Options: delay.ProfileNames(settings.Profiles),
		Default: strings.ToUpper(settings.Variant),
	}, &answers.Variant)
	if err != nil {
		return err
	}

	err = askOneFunc(&survey.Select{
		Message: "Sweep history backend:",
		Options: []string{"json", "sqlite", "postgres"},
		Default: "json",
	}, &answers.StoreType)
	if err != nil {
		return err
	}

	switch answers.StoreType {
	case "postgres":
		err = askOneFunc(&survey.Input{
			Message: "Postgres DSN:",
			Default: "postgres://localhost:5432/delaycalc?sslmode=disable",
		}, &answers.DSN, survey.WithValidator(survey.Required))
	case "sqlite":
		err = askOneFunc(&survey.Input{
			Message: "History database file:",
			Default: benchmark.DefaultSQLitePath,
		}, &answers.DSN)
	default:
		err = askOneFunc(&survey.Input{
			Message: "History file:",
			Default: benchmark.DefaultJSONPath,
		}, &answers.DSN)
	}
	if err != nil {
		return err
	}

	err = askOneFunc(&survey.Input{
		Message: "Regression threshold in percent:",
		Default: strconv.FormatFloat(settings.Threshold, 'f', -1, 64),
	}, &answers.Threshold, survey.WithValidator(validateThreshold))
	if err != nil {
		return err
	}
	threshold, err := parseThreshold(answers.Threshold)
	if err != nil {
		return err
	}

	err = askOneFunc(&survey.Confirm{
		Message: "Post sweep regressions to Slack?",
		Default: settings.Notify.SlackWebhookURL != "",
	}, &answers.EnableSlack)
	if err != nil {
		return err
	}
	if answers.EnableSlack {
		err = askOneFunc(&survey.Input{
			Message: "Slack webhook URL:",
			Default: settings.Notify.SlackWebhookURL,
		}, &answers.WebhookURL, survey.WithValidator(survey.Required))
		if err != nil {
			return err
		}
	}

	v := viper.New()
	v.Set("variant", answers.Variant)
	v.Set("store.type", answers.StoreType)
	v.Set("store.dsn", answers.DSN)
	v.Set("sweep.threshold", threshold)
	if answers.EnableSlack {
		v.Set("notify.slack.webhook_url", answers.WebhookURL)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(out, "Configuration saved to %s\n", path)
	return nil
}

func validateThreshold(ans interface{}) error {
	s, ok := ans.(string)
	if !ok {
		return errors.New("threshold must be a number")
	}
	_, err := parseThreshold(s)
	return err
}

func parseThreshold(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("threshold must be a non-negative number, got %q", s)
	}
	return v, nil
}
