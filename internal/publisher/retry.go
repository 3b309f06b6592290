package publisher

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Attempt is one call to the external publish collaborator. It returns the external post id.
type Attempt func(ctx context.Context) (string, error)

// RetryPolicy decides how many times an Attempt runs.
type RetryPolicy interface {
	Run(ctx context.Context, attempt Attempt) (string, error)
}

// NoRetry runs the attempt exactly once.
type NoRetry struct{}

func (NoRetry) Run(ctx context.Context, attempt Attempt) (string, error) {
	return attempt(ctx)
}

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// BackoffRetry retries transient failures with exponential backoff and jitter.
type BackoffRetry struct {
	executor failsafe.Executor[string]
}

func NewBackoffRetry(cfg RetryConfig) *BackoffRetry {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}

	policy := retrypolicy.NewBuilder[string]().
		HandleIf(func(_ string, err error) bool {
			return IsTransient(err)
		}).
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithJitterFactor(0.1).
		WithMaxRetries(cfg.MaxRetries).
		Build()

	return &BackoffRetry{executor: failsafe.With[string](policy)}
}

func (b *BackoffRetry) Run(ctx context.Context, attempt Attempt) (string, error) {
	var lastErr error
	id, err := b.executor.WithContext(ctx).Get(func() (string, error) {
		id, err := attempt(ctx)
		lastErr = err
		return id, err
	})
	if err != nil {
		// report the collaborator's own error rather than the policy wrapper
		if lastErr != nil {
			return "", lastErr
		}
		return "", err
	}
	return id, nil
}

// NewRetryPolicy returns NoRetry unless retries are configured.
func NewRetryPolicy(cfg RetryConfig) RetryPolicy {
	if cfg.MaxRetries <= 0 {
		return NoRetry{}
	}
	return NewBackoffRetry(cfg)
}

// IsTransient reports whether a failed attempt is known not to have reached the
// network in a way that could have published, and may be retried. Timeouts are
// not transient: the post may already be live.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var remote RemoteError
	if errors.As(err, &remote) {
		return remote.Transient()
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
