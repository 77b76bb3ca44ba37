package process

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/giantswarm/pglitenv/internal/sentinel"
)

const (
	// ErrIntervalNotPositive indicates a non-positive poll interval.
	ErrIntervalNotPositive = sentinel.Error("interval must be positive")

	// ErrTimeoutNotPositive indicates a non-positive timeout.
	ErrTimeoutNotPositive = sentinel.Error("timeout must be positive")

	// ErrNoProbeAddress indicates a probe without a target address.
	ErrNoProbeAddress = sentinel.Error("probe address must not be empty")

	// ErrProcessExited indicates the child exited while it was probed.
	ErrProcessExited = sentinel.Error("process exited while probing")
)

// ReadinessCheck reports whether the target is ready. attempt is 1-based.
// A non-nil error aborts polling. ctx is cancelled when polling stops.
type ReadinessCheck func(ctx context.Context, attempt int) (ready bool, err error)

// ProbeConfig configures WaitReady.
type ProbeConfig struct {
	Addr     string        // host:port being probed, for checks and logs
	Interval time.Duration // delay between attempts
	Timeout  time.Duration // bound on the whole wait
	Logger   *slog.Logger  // defaults to slog.Default()

	// Exited, when non-nil, aborts the wait once it is closed.
	Exited <-chan struct{}
}

// WaitReady polls check until it reports ready, fails, or the timeout or
// ctx ends the wait. The first attempt runs immediately.
func WaitReady(ctx context.Context, cfg ProbeConfig, check ReadinessCheck) error {
	switch {
	case cfg.Addr == "":
		return ErrNoProbeAddress
	case cfg.Interval <= 0:
		return fmt.Errorf("probe %s: %w", cfg.Addr, ErrIntervalNotPositive)
	case cfg.Timeout <= 0:
		return fmt.Errorf("probe %s: %w", cfg.Addr, ErrTimeoutNotPositive)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	// PollUntilContextTimeout calls the condition sequentially.
	attempt := 0
	err := wait.PollUntilContextTimeout(ctx, cfg.Interval, cfg.Timeout, true, func(pollCtx context.Context) (bool, error) {
		if cfg.Exited != nil {
			select {
			case <-cfg.Exited:
				return false, ErrProcessExited
			default:
			}
		}

		attempt++
		ready, err := check(pollCtx, attempt)
		if err != nil {
			return false, err
		}
		if ready {
			log.Debug("endpoint accepts connections", "addr", cfg.Addr, "attempts", attempt)
		}
		return ready, nil
	})
	if err != nil {
		return fmt.Errorf("probe %s after %d attempts: %w", cfg.Addr, attempt, err)
	}
	return nil
}

// dialTimeout bounds a single TCP dial that gets no answer. A closed port
// fails immediately with connection refused.
const dialTimeout = time.Second

// TCPCheck returns a ReadinessCheck that succeeds once addr accepts a TCP
// connection.
func TCPCheck(addr string, logger *slog.Logger) ReadinessCheck {
	if logger == nil {
		logger = slog.Default()
	}
	dialer := &net.Dialer{Timeout: dialTimeout}
	return func(ctx context.Context, attempt int) (bool, error) {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			logger.Debug("endpoint probe attempt", "addr", addr, "attempt", attempt, "error", err)
			return false, nil
		}
		_ = conn.Close()
		return true, nil
	}
}
