package discord

import (
	"errors"

	"github.com/Strob0t/TestForge/internal/port/notifier"
)

func init() {
	notifier.Register(providerName, func(config map[string]string) (notifier.Notifier, error) {
		url := config["webhook_url"]
		if url == "" {
			// Fail at startup rather than on the first verdict.
			return nil, errors.New("discord notifier: webhook_url is required")
		}
		return NewNotifier(url), nil
	})
}
