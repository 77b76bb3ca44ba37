package process

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestWaitReady_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cfg  ProbeConfig
		want error
	}{
		"no address":        {cfg: ProbeConfig{Interval: time.Millisecond, Timeout: time.Second}, want: ErrNoProbeAddress},
		"zero interval":     {cfg: ProbeConfig{Addr: "127.0.0.1:1", Timeout: time.Second}, want: ErrIntervalNotPositive},
		"negative interval": {cfg: ProbeConfig{Addr: "127.0.0.1:1", Interval: -time.Second, Timeout: time.Second}, want: ErrIntervalNotPositive},
		"zero timeout":      {cfg: ProbeConfig{Addr: "127.0.0.1:1", Interval: time.Millisecond}, want: ErrTimeoutNotPositive},
		"negative timeout":  {cfg: ProbeConfig{Addr: "127.0.0.1:1", Interval: time.Millisecond, Timeout: -time.Second}, want: ErrTimeoutNotPositive},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := WaitReady(context.Background(), tc.cfg, func(_ context.Context, _ int) (bool, error) {
				t.Error("check must not be called with invalid config")
				return false, nil
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("WaitReady() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestWaitReady_ProcessExited(t *testing.T) {
	t.Parallel()

	exited := make(chan struct{})
	close(exited)

	start := time.Now()
	err := WaitReady(context.Background(), ProbeConfig{
		Addr:     "127.0.0.1:1",
		Interval: 100 * time.Millisecond,
		Timeout:  10 * time.Second,
		Exited:   exited,
	}, func(_ context.Context, _ int) (bool, error) {
		t.Error("check must not run after the process exited")
		return false, nil
	})

	if !errors.Is(err, ErrProcessExited) {
		t.Fatalf("WaitReady() error = %v, want %v", err, ErrProcessExited)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected fast abort, took %v", elapsed)
	}
}

func TestWaitReady_CountsAttempts(t *testing.T) {
	t.Parallel()

	var seen []int
	err := WaitReady(context.Background(), ProbeConfig{
		Addr:     "127.0.0.1:1",
		Interval: 5 * time.Millisecond,
		Timeout:  5 * time.Second,
	}, func(_ context.Context, attempt int) (bool, error) {
		seen = append(seen, attempt)
		return attempt == 3, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("attempts = %v, want [1 2 3]", seen)
	}
}

func TestWaitReady_Timeout(t *testing.T) {
	t.Parallel()

	err := WaitReady(context.Background(), ProbeConfig{
		Addr:     "127.0.0.1:1",
		Interval: 5 * time.Millisecond,
		Timeout:  50 * time.Millisecond,
	}, func(_ context.Context, _ int) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("WaitReady() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestWaitReady_CheckErrorAborts(t *testing.T) {
	t.Parallel()

	fatal := errors.New("bad handshake")
	err := WaitReady(context.Background(), ProbeConfig{
		Addr:     "127.0.0.1:1",
		Interval: 5 * time.Millisecond,
		Timeout:  5 * time.Second,
	}, func(_ context.Context, _ int) (bool, error) {
		return false, fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("WaitReady() error = %v, want %v", err, fatal)
	}
}

func TestTCPCheck(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, acceptErr := ln.Accept()
			if acceptErr != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	check := TCPCheck(ln.Addr().String(), nil)
	ready, err := check(context.Background(), 1)
	if err != nil || !ready {
		t.Fatalf("check on listening port = %v, %v; want ready", ready, err)
	}

	_ = ln.Close()
	ready, err = check(context.Background(), 2)
	if err != nil {
		t.Fatalf("check on closed port returned fatal error: %v", err)
	}
	if ready {
		t.Error("check on closed port reported ready")
	}
}
