package bandit

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/logger"
	"github.com/julianstephens/platewise/internal/models"
)

// ErrBreakerOpen is returned while the classifier circuit is open.
var ErrBreakerOpen = fmt.Errorf("%w: classifier circuit open", apperrors.ErrExternalProcess)

// Breaker wraps an Oracle so that repeated subprocess failures make further
// trials fail fast until the cool-down elapses. Only external process errors
// count as failures; cancellation, timeouts and a missing java binary do not
// trip it.
type Breaker struct {
	next Oracle
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func NewBreaker(next Oracle, failures uint32, cooldown time.Duration) *Breaker {
	settings := gobreaker.Settings{
		Name:        "classifier",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool { return !countsAsFailure(err) },
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

func countsAsFailure(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, exec.ErrNotFound):
		return false
	}
	return errors.Is(err, apperrors.ErrExternalProcess)
}

// State reports the breaker state, e.g. "closed" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) Train(ctx context.Context, trial *Trial) error {
	return b.execute(func() error { return b.next.Train(ctx, trial) })
}

func (b *Breaker) Test(ctx context.Context, trial *Trial) error {
	return b.execute(func() error { return b.next.Test(ctx, trial) })
}

func (b *Breaker) Parse(trial *Trial) ([]models.Prediction, []apperrors.ParseWarning, error) {
	return b.next.Parse(trial)
}

func (b *Breaker) execute(fn func() error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrBreakerOpen, err)
	}
	return err
}
