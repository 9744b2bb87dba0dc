package monitoring

import (
	"context"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/BusBom/rpi-server/config"
	coremon "github.com/BusBom/rpi-server/core/monitoring"
)

// NewSentryMonitor returns a Monitor reporting to Sentry, or a no-op
// monitor when no DSN is configured.
func NewSentryMonitor(cfg config.SentryConfig, stationID string) (coremon.Monitor, error) {
	if !cfg.Enabled() {
		return coremon.NopMonitor{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       cfg.SampleRate,
		TracesSampleRate: cfg.TracesSampleRate,
		ServerName:       stationID,
		BeforeSend:       dropShutdownNoise,
	})
	if err != nil {
		return nil, err
	}
	hub := sentry.CurrentHub()
	if stationID != "" {
		hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetTag("station_id", stationID)
		})
	}
	return &sentryMonitor{hub: hub}, nil
}

// dropShutdownNoise discards events caused by cancellation, which only
// happen while the process stops.
func dropShutdownNoise(ev *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if hint != nil && isShutdown(hint.OriginalException) {
		return nil
	}
	return ev
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled)
}

type sentryMonitor struct {
	hub *sentry.Hub
}

func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil || isShutdown(err) {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		s.hub.CaptureException(err)
	})
}

// Recover reports a panic and re-raises it. It must be deferred directly.
func (s *sentryMonitor) Recover() {
	if r := recover(); r != nil {
		s.hub.Recover(r)
		s.hub.Flush(2 * time.Second)
		panic(r)
	}
}

func (s *sentryMonitor) Flush(timeout time.Duration) { s.hub.Flush(timeout) }
