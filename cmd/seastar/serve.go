package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/seastar-sci/seastar/internal/dirs"
	"github.com/seastar-sci/seastar/internal/server"
)

// cmdServe runs the HTTP API until interrupted. Live runs are killed on
// shutdown; they have no owner once the registry is gone.
func cmdServe() {
	socket := socketFlag
	if socket == "" && listenFlag == "" {
		socket = filepath.Join(dirs.RuntimeDir(), "api.sock")
	}
	if socket != "" {
		if err := os.MkdirAll(filepath.Dir(socket), 0o755); err != nil {
			fatal("creating socket dir: %v", err)
		}
	}

	ln, err := server.GetListener(socket, listenFlag)
	if err != nil {
		fatal("listening: %v", err)
	}

	reg := server.NewRegistry()
	srv := server.New(reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	slog.Info("api server listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("serving: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown", "err", err)
	}
	if err := reg.Close(); err != nil {
		slog.Warn("closing registry", "err", err)
	}
	slog.Info("api server stopped")
}
