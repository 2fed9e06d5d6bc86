// Package tail follows a growing plain-text file line by line.
//
// The file is treated as an opaque append-only stream written by someone
// else (typically a child process with its stdout/stderr redirected into
// it). Follow never re-reads content it has already yielded and holds
// partial trailing lines until their newline arrives.
package tail

import (
	"bytes"
	"context"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultInterval is the poll interval used when Options.Interval is unset.
const DefaultInterval = 100 * time.Millisecond

// Options configure a Follow loop.
type Options struct {
	// Interval between polls of the file for growth.
	Interval time.Duration

	// Duration bounds how long to follow. Zero means no bound: follow
	// until ctx is cancelled or Done is signalled.
	Duration time.Duration

	// Done, when closed, marks the writer as finished. The follower makes
	// one more read pass to drain whatever was already flushed, then stops.
	Done <-chan struct{}

	// Clock drives poll sleeps and the duration bound. Defaults to the
	// real clock; tests inject a fake one.
	Clock clockwork.Clock
}

// Follow returns an iterator over lines appended to the file at path.
//
// A missing file is not an error: the follower waits for it to appear.
// The sequence ends cleanly when the duration bound elapses, ctx is
// cancelled, or Done is closed and the file is drained. Any unterminated
// trailing line is flushed as the final element.
func Follow(ctx context.Context, path string, opts Options) iter.Seq[string] {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	clk := opts.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}

	return func(yield func(string) bool) {
		var deadline time.Time
		if opts.Duration > 0 {
			deadline = clk.Now().Add(opts.Duration)
		}

		var f *os.File
		defer func() {
			if f != nil {
				f.Close()
			}
		}()

		var partial bytes.Buffer
		chunk := make([]byte, 4096)
		draining := false

		flush := func() {
			if partial.Len() > 0 {
				yield(partial.String())
			}
		}

		for {
			if f == nil {
				// Not created yet: "no lines yet", keep polling.
				f, _ = os.Open(path)
			}

			progressed := false
			if f != nil {
				for {
					n, err := f.Read(chunk)
					if n > 0 {
						progressed = true
						partial.Write(chunk[:n])
						for {
							line, rerr := partial.ReadString('\n')
							if rerr != nil {
								// Incomplete line, keep it for the next read.
								partial.Reset()
								partial.WriteString(line)
								break
							}
							if !yield(strings.TrimSuffix(line, "\n")) {
								return
							}
						}
					}
					if err != nil {
						break
					}
				}
			}

			if draining && !progressed {
				flush()
				return
			}

			if !deadline.IsZero() && !clk.Now().Before(deadline) {
				flush()
				return
			}

			select {
			case <-ctx.Done():
				flush()
				return
			case <-opts.Done:
				draining = true
			case <-clk.After(interval):
			}
		}
	}
}
