package notify

import (
	"context"
	"errors"
	"log/slog"

	"delaycalc/internal/config"
)

// Manager fans a message out to every configured notifier.
type Manager struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewManager creates a manager from the notification settings. Providers
// without credentials are skipped.
func NewManager(s config.NotifySettings, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{logger: logger}

	if s.SlackWebhookURL != "" {
		m.notifiers = append(m.notifiers, NewSlackNotifier(s.SlackWebhookURL))
	}
	if s.SlackToken != "" && s.SlackChannel != "" {
		m.notifiers = append(m.notifiers, NewSlackBotNotifier(s.SlackToken, s.SlackChannel))
	}
	return m
}

// Add registers an extra notifier.
func (m *Manager) Add(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Enabled reports whether any notifier is configured.
func (m *Manager) Enabled() bool {
	return len(m.notifiers) > 0
}

// Notify sends message to every notifier and joins their errors.
func (m *Manager) Notify(ctx context.Context, message string) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, message); err != nil {
			m.logger.Warn("notification failed", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
