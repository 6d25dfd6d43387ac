package scanning

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerSettings tunes when a remote transcriber is taken out of service
type BreakerSettings struct {
	Name string
	// MinRequests is the number of calls in a window before the breaker may trip.
	MinRequests uint32
	// FailureRatio trips the breaker once reached.
	FailureRatio float64
	// OpenTimeout is how long the breaker stays open.
	OpenTimeout time.Duration
	// HalfOpenMaxCalls is how many trial calls are let through when half open.
	HalfOpenMaxCalls uint32
}

// DefaultBreakerSettings returns settings suited to a remote OCR service
func DefaultBreakerSettings(name string) BreakerSettings {
	return BreakerSettings{
		Name:             name,
		MinRequests:      3,
		FailureRatio:     0.6,
		OpenTimeout:      30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// Breaker stops calling an extractor that keeps failing
type Breaker struct {
	next    TextExtractor
	breaker *gobreaker.CircuitBreaker[string]
}

// NewBreaker wraps next in a circuit breaker
func NewBreaker(next TextExtractor, settings BreakerSettings) *Breaker {
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.HalfOpenMaxCalls,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// Documents the service could not read say nothing about its health
			return err == nil ||
				errors.Is(err, ErrNoText) ||
				errors.Is(err, ErrUnsupportedContent) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "extractor", name, "from", from.String(), "to", to.String())
		},
	})
	return &Breaker{next: next, breaker: cb}
}

// ExtractText calls the wrapped extractor unless the breaker is open
func (b *Breaker) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	return b.breaker.Execute(func() (string, error) {
		return b.next.ExtractText(ctx, data, contentType)
	})
}

// Close closes the wrapped extractor
func (b *Breaker) Close() error {
	return b.next.Close()
}

// IsCircuitOpen reports whether err came from an open breaker
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
