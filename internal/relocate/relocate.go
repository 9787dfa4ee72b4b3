// Package relocate moves files between the inbox and its sibling roots with
// bounded, backed-off retries.
//
// Every attempt first creates the destination's parent directories and then
// calls the move primitive. Any failure is retried until the attempt budget,
// the overall timeout, or the caller's context runs out. A move already in
// flight is never interrupted, and success is only reported after the move
// primitive returned nil.
package relocate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"tracksync/internal/logging"
)

// ErrExhausted marks a relocation that used its full attempt budget.
var ErrExhausted = errors.New("relocation attempts exhausted")

// Policy bounds a single Relocate call.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Timeout caps the whole call, retries and backoff included. Zero disables it.
	Timeout time.Duration
}

// DefaultPolicy mirrors the configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    5,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Timeout:        2 * time.Minute,
	}
}

// MoveFunc moves src to dst. It must not overwrite an existing dst.
type MoveFunc func(src, dst string) error

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// AttemptHook observes every attempt; err is nil for the successful one.
type AttemptHook func(attempt int, err error)

// Result describes a successful relocation.
type Result struct {
	Destination string
	Attempts    int
	Elapsed     time.Duration
}

// Error reports a relocation that gave up. Reason is ErrExhausted or the
// context error that stopped the loop; Last is the most recent attempt error.
type Error struct {
	Source      string
	Destination string
	Attempts    int
	Reason      error
	Last        error
}

func (e *Error) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("relocate %s -> %s: %v after %d attempt(s)", e.Source, e.Destination, e.Reason, e.Attempts)
	}
	return fmt.Sprintf("relocate %s -> %s: %v after %d attempt(s): %v", e.Source, e.Destination, e.Reason, e.Attempts, e.Last)
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Reason != nil {
		errs = append(errs, e.Reason)
	}
	if e.Last != nil {
		errs = append(errs, e.Last)
	}
	return errs
}

// Relocator runs the retry loop around a move primitive.
type Relocator struct {
	policy Policy
	move   MoveFunc
	sleep  SleepFunc
	jitter func(time.Duration) time.Duration
	hook   AttemptHook
	logger *slog.Logger
}

// Option customizes a Relocator.
type Option func(*Relocator)

// WithMove replaces the move primitive.
func WithMove(move MoveFunc) Option {
	return func(r *Relocator) {
		if move != nil {
			r.move = move
		}
	}
}

// WithSleep replaces the backoff sleep, typically to make tests instant.
func WithSleep(sleep SleepFunc) Option {
	return func(r *Relocator) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithoutJitter disables backoff jitter.
func WithoutJitter() Option {
	return func(r *Relocator) {
		r.jitter = func(d time.Duration) time.Duration { return d }
	}
}

// WithAttemptHook registers an observer for each attempt.
func WithAttemptHook(hook AttemptHook) Option {
	return func(r *Relocator) { r.hook = hook }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relocator) { r.logger = logger }
}

// New constructs a Relocator. Non-positive attempt counts are raised to one.
func New(policy Policy, opts ...Option) *Relocator {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = policy.InitialBackoff
	}
	r := &Relocator{
		policy: policy,
		move:   Move,
		sleep:  sleepContext,
		jitter: equalJitter,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "relocate")
	return r
}

// Policy returns the effective policy.
func (r *Relocator) Policy() Policy {
	return r.policy
}

// Relocate moves src to dst, retrying on any failure.
func (r *Relocator) Relocate(ctx context.Context, src, dst string) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()
	}
	logger := logging.WithContext(ctx, r.logger)
	started := time.Now()

	// Once a cross-device copy has been placed, later attempts only retry
	// removing the source.
	placed := false
	var last error
	attempts := 0
	for attempts < r.policy.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return Result{Attempts: attempts}, r.fail(src, dst, attempts, err, last)
		}
		attempts++

		var err error
		if placed {
			err = removeSource(src)
		} else {
			err = r.attempt(src, dst)
			if errors.Is(err, ErrSourceRetained) {
				placed = true
			}
		}
		if r.hook != nil {
			r.hook(attempts, err)
		}
		if err == nil {
			if attempts > 1 {
				logger.Info("relocation succeeded after retry",
					logging.String("source", src),
					logging.String("destination", dst),
					logging.Int("attempts", attempts),
					logging.String(logging.FieldEventType, "relocation_recovered"),
				)
			}
			return Result{Destination: dst, Attempts: attempts, Elapsed: time.Since(started)}, nil
		}
		last = err
		if attempts >= r.policy.MaxAttempts {
			break
		}

		delay := r.backoff(attempts)
		logging.WarnWithContext(logger, "relocation attempt failed; retrying", "relocation_retry",
			logging.String("source", src),
			logging.String("destination", dst),
			logging.Int("attempt", attempts),
			logging.Int("max_attempts", r.policy.MaxAttempts),
			logging.Duration("backoff", delay),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions and free space on the destination filesystem"),
			logging.String(logging.FieldImpact, "file stays at its current location until a retry succeeds"),
		)
		if err := r.sleep(ctx, delay); err != nil {
			return Result{Attempts: attempts}, r.fail(src, dst, attempts, err, last)
		}
	}
	return Result{Attempts: attempts}, r.fail(src, dst, attempts, ErrExhausted, last)
}

func (r *Relocator) attempt(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}
	return r.move(src, dst)
}

func (r *Relocator) fail(src, dst string, attempts int, reason, last error) error {
	return &Error{Source: src, Destination: dst, Attempts: attempts, Reason: reason, Last: last}
}

// backoff returns the delay after the given 1-based attempt: InitialBackoff
// doubled per attempt, capped at MaxBackoff, then jittered.
func (r *Relocator) backoff(attempt int) time.Duration {
	delay := r.policy.InitialBackoff
	for i := 1; i < attempt && delay < r.policy.MaxBackoff; i++ {
		delay *= 2
	}
	delay = min(delay, r.policy.MaxBackoff)
	return r.jitter(delay)
}

// equalJitter keeps half of d and randomizes the other half.
func equalJitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + rand.N(half+1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
