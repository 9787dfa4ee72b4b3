package relocate_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"tracksync/internal/relocate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRelocateMovesAndCreatesParents(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "Inbox", "song.mp3")
	dst := filepath.Join(dir, "Library", "aa", "bb", "cc", "dd", "eeff", "song.mp3")
	writeFile(t, src, "audio")

	r := relocate.New(relocate.DefaultPolicy(), relocate.WithSleep(noSleep))
	res, err := r.Relocate(context.Background(), src, dst)
	if err != nil {
		t.Fatalf("Relocate: %v", err)
	}
	if res.Attempts != 1 || res.Destination != dst {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected source removed, stat err = %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "audio" {
		t.Fatalf("destination content %q, err %v", got, err)
	}
}

func TestRelocateRetriesUntilSuccess(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "song.mp3")
	dst := filepath.Join(dir, "out", "song.mp3")
	writeFile(t, src, "audio")

	const failures = 3
	var calls atomic.Int32
	flaky := func(s, d string) error {
		if calls.Add(1) <= failures {
			return errors.New("device busy")
		}
		return relocate.Move(s, d)
	}
	var hooked []error
	r := relocate.New(relocate.Policy{MaxAttempts: failures + 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		relocate.WithMove(flaky),
		relocate.WithSleep(noSleep),
		relocate.WithAttemptHook(func(_ int, err error) { hooked = append(hooked, err) }),
	)

	res, err := r.Relocate(context.Background(), src, dst)
	if err != nil {
		t.Fatalf("Relocate: %v", err)
	}
	if res.Attempts != failures+1 {
		t.Fatalf("expected %d attempts, got %d", failures+1, res.Attempts)
	}
	if len(hooked) != failures+1 || hooked[failures] != nil {
		t.Fatalf("unexpected hook calls: %v", hooked)
	}
	entries, err := os.ReadDir(filepath.Dir(dst))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "song.mp3" {
		t.Fatalf("expected exactly one file at destination, got %v", entries)
	}
}

func TestRelocateExhaustsAttempts(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "song.mp3")
	writeFile(t, src, "audio")
	cause := errors.New("read-only filesystem")

	var calls int
	r := relocate.New(relocate.Policy{MaxAttempts: 4},
		relocate.WithMove(func(string, string) error { calls++; return cause }),
		relocate.WithSleep(noSleep),
	)
	_, err := r.Relocate(context.Background(), src, filepath.Join(dir, "out", "song.mp3"))
	if err == nil {
		t.Fatal("expected error")
	}
	var relErr *relocate.Error
	if !errors.As(err, &relErr) {
		t.Fatalf("expected *relocate.Error, got %T", err)
	}
	if relErr.Attempts != 4 || calls != 4 {
		t.Fatalf("expected 4 attempts, got %d (calls %d)", relErr.Attempts, calls)
	}
	if !errors.Is(err, relocate.ErrExhausted) || !errors.Is(err, cause) {
		t.Fatalf("expected exhausted wrapping cause, got %v", err)
	}
	if _, statErr := os.Stat(src); statErr != nil {
		t.Fatalf("source must stay in place: %v", statErr)
	}
}

func TestRelocateNeverOverwritesDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "song.mp3")
	dst := filepath.Join(dir, "out", "song.mp3")
	writeFile(t, src, "new")
	writeFile(t, dst, "existing")

	r := relocate.New(relocate.Policy{MaxAttempts: 2}, relocate.WithSleep(noSleep))
	_, err := r.Relocate(context.Background(), src, dst)
	if !errors.Is(err, relocate.ErrDestinationExists) {
		t.Fatalf("expected ErrDestinationExists, got %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "existing" {
		t.Fatalf("destination clobbered: %q", got)
	}
	if _, statErr := os.Stat(src); statErr != nil {
		t.Fatalf("source must stay in place: %v", statErr)
	}
}

func TestRelocateStopsWhenCancelledBetweenAttempts(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int
	r := relocate.New(relocate.Policy{MaxAttempts: 10, InitialBackoff: time.Hour, MaxBackoff: time.Hour},
		relocate.WithMove(func(string, string) error { calls++; return errors.New("busy") }),
		relocate.WithSleep(func(ctx context.Context, _ time.Duration) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		}),
	)
	res, err := r.Relocate(ctx, filepath.Join(dir, "a"), filepath.Join(dir, "b"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 || res.Attempts != 1 {
		t.Fatalf("expected a single attempt before cancellation, got calls=%d attempts=%d", calls, res.Attempts)
	}
}

func TestRelocateReportsMoveThatFinishedAfterCancel(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "song.mp3")
	dst := filepath.Join(dir, "out", "song.mp3")
	writeFile(t, src, "audio")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := relocate.New(relocate.DefaultPolicy(),
		relocate.WithMove(func(s, d string) error {
			cancel()
			return relocate.Move(s, d)
		}),
		relocate.WithSleep(noSleep),
	)
	res, err := r.Relocate(ctx, src, dst)
	if err != nil {
		t.Fatalf("completed move must be reported as success, got %v", err)
	}
	if res.Attempts != 1 {
		t.Fatalf("unexpected attempts: %d", res.Attempts)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("destination missing: %v", err)
	}
}

func TestRelocateHonoursTimeout(t *testing.T) {
	dir := t.TempDir()
	r := relocate.New(relocate.Policy{
		MaxAttempts:    1000,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Timeout:        30 * time.Millisecond,
	}, relocate.WithMove(func(string, string) error { return errors.New("busy") }))

	_, err := r.Relocate(context.Background(), filepath.Join(dir, "a"), filepath.Join(dir, "b"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestRelocateBackoffDoublesUpToCap(t *testing.T) {
	dir := t.TempDir()
	var delays []time.Duration
	r := relocate.New(relocate.Policy{MaxAttempts: 5, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 40 * time.Millisecond},
		relocate.WithMove(func(string, string) error { return errors.New("busy") }),
		relocate.WithoutJitter(),
		relocate.WithSleep(func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}),
	)
	_, _ = r.Relocate(context.Background(), filepath.Join(dir, "a"), filepath.Join(dir, "b"))

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 40 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestRelocateOnlyRemovesSourceAfterPlacedCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "song.mp3")
	dst := filepath.Join(dir, "out", "song.mp3")
	writeFile(t, src, "audio")

	var moves int
	r := relocate.New(relocate.Policy{MaxAttempts: 3},
		relocate.WithMove(func(s, d string) error {
			moves++
			data, err := os.ReadFile(s)
			if err != nil {
				return err
			}
			if err := os.WriteFile(d, data, 0o644); err != nil {
				return err
			}
			return relocate.ErrSourceRetained
		}),
		relocate.WithSleep(noSleep),
	)
	res, err := r.Relocate(context.Background(), src, dst)
	if err != nil {
		t.Fatalf("Relocate: %v", err)
	}
	if moves != 1 || res.Attempts != 2 {
		t.Fatalf("expected one copy and a cleanup attempt, got moves=%d attempts=%d", moves, res.Attempts)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected source removed, stat err = %v", err)
	}
}
