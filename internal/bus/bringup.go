package bus

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryConfig defines the delay between bring-up attempts.
type RetryConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryConfig retries on a fixed 100ms cadence.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   1.0,
	}
}

// OpenFunc installs and starts a controller, returning its transport.
type OpenFunc func() (Transport, error)

// NextRetryDelay returns the retry delay for attempt N (1-based).
func NextRetryDelay(cfg RetryConfig, attempt int) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier <= 1.0 {
		return cfg.InitialDelay
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(delay)
}

// BringUp calls open until it succeeds or ctx is done. There is no attempt
// limit; a controller that never comes up keeps the node in bring-up.
func BringUp(ctx context.Context, open OpenFunc, cfg RetryConfig) (Transport, error) {
	for attempt := 1; ; attempt++ {
		t, err := open()
		if err == nil {
			log.Info().Int("attempt", attempt).Msg("bus: controller started")
			return t, nil
		}
		delay := NextRetryDelay(cfg, attempt)
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("bus: bring-up failed")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
