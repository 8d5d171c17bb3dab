package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/circa10a/countdown/api"
	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
)

const defaultNotifyMessage = "Timer '%s' finished!"

// Notifier delivers the one-shot alert for an expired timer.
type Notifier interface {
	Notify(e api.Expiry) error
}

// ShoutrrrNotifier sends expiry alerts to every configured shoutrrr URL.
type ShoutrrrNotifier struct {
	URLs []string
	// Message is a format string receiving the timer name.
	Message string
}

// Notify sends the alert and returns an error if any delivery fails.
func (n *ShoutrrrNotifier) Notify(e api.Expiry) error {
	msg := n.message(e.Name)

	var errs []error
	for _, url := range n.URLs {
		sender, err := shoutrrr.CreateSender(url)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to create notifier for timer %q: %w", e.Name, err))
			continue
		}

		for _, sendErr := range sender.Send(msg, nil) {
			if sendErr != nil {
				errs = append(errs, fmt.Errorf("notification delivery failed for timer %q: %w", e.Name, sendErr))
			}
		}
	}

	return errors.Join(errs...)
}

func (n *ShoutrrrNotifier) message(name string) string {
	format := n.Message
	if format == "" {
		format = defaultNotifyMessage
	}
	if !strings.Contains(format, "%s") {
		return format
	}
	return fmt.Sprintf(format, name)
}

// validateNotifierURLs checks that every URL maps to a known shoutrrr service.
func validateNotifierURLs(urls []string) error {
	serviceRouter := router.ServiceRouter{}
	for _, url := range urls {
		_, err := serviceRouter.Locate(url)
		if err != nil {
			return fmt.Errorf("invalid notifier URL %q: %w", url, err)
		}
	}
	return nil
}
