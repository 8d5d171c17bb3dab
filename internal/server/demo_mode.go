package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/circa10a/countdown/internal/timer"
)

const demoHealthCheckInterval = 5 * time.Minute

var demoTimers = []timer.AddOp{
	{Name: "Tea", TotalSeconds: 3 * 60},
	{Name: "Pomodoro", TotalSeconds: 25 * 60, Loop: true},
	{Name: "Stretch", TotalSeconds: 30, Loop: true},
}

// initDemoMode replaces the stored timers with sample ones and recreates
// them at the configured interval.
func (s *Server) initDemoMode() error {
	log := s.logger.With("component", "demo-mode")

	err := resetDemoTimers(s.ctx, s.Worker)
	if err != nil {
		return fmt.Errorf("failed to create demo timers: %w", err)
	}

	log.Info("demo mode initialized with sample timers")

	// Start periodic reset goroutine
	if s.DemoResetInterval > 0 {
		go periodicDemoReset(s.ctx, s.logger, s.Worker, s.DemoResetInterval)
	}

	// Start periodic health check pinger for each domain
	if len(s.Domains) > 0 {
		go periodicHealthPing(s.ctx, s.logger, s.Domains)
	}

	return nil
}

// resetDemoTimers removes every timer and creates the sample ones.
func resetDemoTimers(ctx context.Context, w *Worker) error {
	timers, err := w.Timers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list timers: %w", err)
	}

	for _, name := range timers.Names() {
		_, err = w.Submit(ctx, timer.RemoveOp{Name: name})
		if err != nil {
			return fmt.Errorf("failed to remove timer %q: %w", name, err)
		}
	}

	for _, op := range demoTimers {
		_, err = w.Submit(ctx, op)
		if err != nil {
			return fmt.Errorf("failed to add timer %q: %w", op.Name, err)
		}
	}

	return nil
}

// periodicDemoReset periodically clears and recreates demo timers
func periodicDemoReset(ctx context.Context, logger *slog.Logger, w *Worker, resetInterval time.Duration) {
	log := logger.With("component", "demo-reset")
	ticker := time.NewTicker(resetInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("demo reset goroutine stopped")
			return
		case <-ticker.C:
			err := resetDemoTimers(ctx, w)
			if err != nil {
				log.Error("failed to reset demo timers", "error", err)
				continue
			}

			log.Debug("periodic demo reset completed")
		}
	}
}

// periodicHealthPing sends GET requests to https://<domain>/health every
// 5 minutes for each configured domain to keep the demo instance alive.
func periodicHealthPing(ctx context.Context, logger *slog.Logger, domains []string) {
	log := logger.With("component", "demo-ping")
	ticker := time.NewTicker(demoHealthCheckInterval)
	defer ticker.Stop()

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("health ping goroutine stopped")
			return
		case <-ticker.C:
			for _, domain := range domains {
				pingDomain(ctx, log, client, domain)
			}
		}
	}
}

func pingDomain(ctx context.Context, log *slog.Logger, client *http.Client, domain string) {
	url := fmt.Sprintf("https://%s/health", domain)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Error("failed to create health ping request", "domain", domain, "error", err)
		return
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Error("health ping failed", "domain", domain, "error", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	log.Debug("health ping completed", "domain", domain, "status", resp.StatusCode)
}
