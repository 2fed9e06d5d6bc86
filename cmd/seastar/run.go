package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/seastar-sci/seastar/internal/blueprint"
	"github.com/seastar-sci/seastar/internal/dirs"
	"github.com/seastar-sci/seastar/internal/run"
	"github.com/seastar-sci/seastar/internal/status"
	"github.com/seastar-sci/seastar/internal/tail"
)

// cmdRun launches a run and follows its output for --duration, then
// reports the final (or current) status. Ctrl-C stops following cleanly;
// with --cancel-on-interrupt it also cancels the run.
func cmdRun(args []string) {
	spec, err := buildSpec(args)
	if err != nil {
		fatal("%v", err)
	}

	r, err := run.Start(spec)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("started %s (pid %d)\n", strings.Join(spec.Command, " "), r.PID())
	fmt.Printf("output: %s\n", r.OutputFile())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for line := range r.Updates(ctx, durationFlag) {
		fmt.Println(line)
	}

	if ctx.Err() != nil {
		// Interrupted while following. The run itself keeps going unless
		// the caller asked otherwise.
		fmt.Println()
		if cancelOnIntFlag {
			if err := cancelRun(r); err != nil {
				fatal("cancelling: %v", err)
			}
			waitCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := r.Wait(waitCtx); err != nil {
				fmt.Fprintf(os.Stderr, "warning: run did not exit after cancel: %v\n", err)
			}
		}
	}

	final := r.Status()
	printStatus(final)
	if final == status.Failed {
		fmt.Fprintf(os.Stderr, "see %s\n", r.OutputFile())
		os.Exit(1)
	}
}

func cancelRun(r *run.Run) error {
	if killFlag {
		return r.CancelKill()
	}
	return r.Cancel()
}

// buildSpec assembles a run spec from a blueprint or from the argv left
// after flag parsing.
func buildSpec(args []string) (run.Spec, error) {
	if blueprintFlag != "" {
		bp, err := blueprint.Load(blueprintFlag)
		if err != nil {
			return run.Spec{}, err
		}
		spec, err := bp.Spec()
		if err != nil {
			return run.Spec{}, err
		}
		// Flags override blueprint settings where given.
		if workdirFlag != "" {
			spec.Dir = workdirFlag
		}
		if prefixFlag != "" {
			spec.OutputPrefix = prefixFlag
		}
		if ttyFlag {
			spec.TTY = true
		}
		if spec.Dir == "" {
			spec.Dir = dirs.OutputRoot()
		}
		return spec, nil
	}

	if len(args) == 0 {
		return run.Spec{}, fmt.Errorf("usage: seastar run [flags] -- <command>")
	}
	dir := workdirFlag
	if dir == "" {
		dir = dirs.OutputRoot()
	}
	return run.Spec{
		Command:      args,
		Dir:          dir,
		OutputPrefix: prefixFlag,
		TTY:          ttyFlag,
	}, nil
}

// cmdTail follows an existing output file without owning a run.
func cmdTail(path string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for line := range tail.Follow(ctx, path, tail.Options{Duration: durationFlag}) {
		fmt.Println(line)
	}
}

// cmdCheck validates a blueprint without running anything.
func cmdCheck(path string) {
	bp, err := blueprint.Load(path)
	if err != nil {
		fatal("%v", err)
	}
	spec, err := bp.Spec()
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("ok: %s (%s)\n", bp.Name, strings.Join(spec.Command, " "))
}
