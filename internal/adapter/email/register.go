package email

import (
	"errors"

	"github.com/Strob0t/TestForge/internal/port/notifier"
)

func init() {
	notifier.Register(providerName, func(config map[string]string) (notifier.Notifier, error) {
		cfg := Config{
			Host:     config["smtp_host"],
			Port:     config["smtp_port"],
			From:     config["smtp_from"],
			Password: config["smtp_password"],
			To:       splitRecipients(config["smtp_to"]),
		}
		if cfg.Host == "" || cfg.From == "" || len(cfg.To) == 0 {
			// Fail at startup rather than on the first verdict.
			return nil, errors.New("email notifier: smtp_host, smtp_from and smtp_to are required")
		}
		return NewNotifier(cfg), nil
	})
}
