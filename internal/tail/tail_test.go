package tail

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func TestFollowYieldsLinesInWriteOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.out")
	if err := os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var got []string
	for line := range Follow(context.Background(), path, Options{Done: closedChan()}) {
		got = append(got, line)
	}

	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("got %d lines %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFollowFlushesUnterminatedTrailingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.out")
	if err := os.WriteFile(path, []byte("done\npartial"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var got []string
	for line := range Follow(context.Background(), path, Options{Done: closedChan()}) {
		got = append(got, line)
	}

	if len(got) != 2 || got[0] != "done" || got[1] != "partial" {
		t.Fatalf("got %v, want [done partial]", got)
	}
}

func TestFollowWaitsForFileToAppear(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "late.out")
	done := make(chan struct{})

	lines := make(chan string, 8)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for line := range Follow(context.Background(), path, Options{Interval: 5 * time.Millisecond, Done: done}) {
			lines <- line
		}
	}()

	// Create the file only after the follower has started polling.
	time.Sleep(20 * time.Millisecond)
	if err := os.WriteFile(path, []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case line := <-lines:
		if line != "hello" {
			t.Fatalf("line = %q, want %q", line, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for line from late-created file")
	}

	close(done)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("follower did not stop after done was closed")
	}
}

func TestFollowSeesContentAppendedWhileFollowing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grow.out")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	if _, err := f.WriteString("first\n"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}

	done := make(chan struct{})
	lines := make(chan string, 8)
	go func() {
		for line := range Follow(context.Background(), path, Options{Interval: 5 * time.Millisecond, Done: done}) {
			lines <- line
		}
		close(lines)
	}()

	waitLine := func(want string) {
		t.Helper()
		select {
		case line := <-lines:
			if line != want {
				t.Fatalf("line = %q, want %q", line, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	waitLine("first")
	if _, err := f.WriteString("second\n"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	waitLine("second")
	close(done)
}

func TestFollowDurationBound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bounded.out")
	if err := os.WriteFile(path, []byte("a\nb\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	fc := clockwork.NewFakeClock()
	var got []string
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for line := range Follow(context.Background(), path, Options{Duration: time.Second, Clock: fc}) {
			got = append(got, line)
		}
	}()

	// The follower reads the existing lines, then sleeps on the poll timer.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("BlockUntilContext: %v", err)
	}
	fc.Advance(2 * time.Second)

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("follower did not stop after the duration elapsed")
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got %v, want [a b]", got)
	}
}

func TestFollowStopsCleanlyOnContextCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cancel.out")
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for range Follow(ctx, path, Options{Interval: 5 * time.Millisecond}) {
		}
	}()

	cancel()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("follower did not stop after context cancellation")
	}
}
