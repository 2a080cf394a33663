package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrPollExhausted is returned by Poller.Poll when the attempt ceiling is
// reached without the operation reporting done. Callers translate it into
// their own error types (TimeoutError, UnhealthyError).
var ErrPollExhausted = errors.New("poll attempts exhausted")

// PollConfig bounds a polling loop: at most MaxAttempts attempts with
// Interval of sleep between them. The loop never sleeps after the final
// attempt, so worst-case sleep is Interval * (MaxAttempts - 1).
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// MaxElapsed returns the worst-case wall-clock time the loop spends sleeping.
func (c PollConfig) MaxElapsed() time.Duration {
	if c.MaxAttempts < 1 {
		return 0
	}
	return c.Interval * time.Duration(c.MaxAttempts-1)
}

// sleepFunc pauses for d or until ctx is done. Tests substitute a recording
// fake so ceiling behavior can be exercised without real waiting.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Poller runs bounded polling loops. One Poller is shared by deployment
// status polling and health verification.
type Poller struct {
	sleep sleepFunc
}

func NewPoller() *Poller {
	return &Poller{sleep: sleepContext}
}

// Poll runs op until it reports done, the attempt ceiling is reached, or ctx
// is cancelled. op outcomes:
//   - done=true, err=nil: success, Poll returns nil
//   - done=true, err!=nil: terminal failure, Poll returns err immediately
//   - done=false: not ready yet, retried; a non-nil err is retryable and the
//     last one is wrapped into the exhaustion error
func (p *Poller) Poll(ctx context.Context, cfg PollConfig, op func(ctx context.Context) (bool, error)) error {
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("poll config: max attempts must be positive, got %d", cfg.MaxAttempts)
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := op(ctx)
		if done {
			return err
		}
		if err != nil {
			lastErr = err
			slog.Debug("Poll attempt not ready", "attempt", attempt, "max_attempts", cfg.MaxAttempts, "error", err)
		} else {
			slog.Debug("Poll attempt not ready", "attempt", attempt, "max_attempts", cfg.MaxAttempts)
		}

		if attempt == cfg.MaxAttempts {
			break
		}
		if err := p.sleep(ctx, cfg.Interval); err != nil {
			return err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("%w after %d attempts: %w", ErrPollExhausted, cfg.MaxAttempts, lastErr)
	}
	return fmt.Errorf("%w after %d attempts", ErrPollExhausted, cfg.MaxAttempts)
}
