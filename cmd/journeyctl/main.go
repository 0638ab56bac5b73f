package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/journeys-backend/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(openApp)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp builds the service graph without the HTTP server. The bus is
// connected so that delete/reset invalidations reach running servers.
func openApp(ctx context.Context) (backend, func(), error) {
	a, err := app.New(ctx)
	if err != nil {
		return backend{}, nil, err
	}
	if err := a.ConnectBus(ctx); err != nil {
		a.Log.Warn("invalidation bus unavailable; running servers keep their cache", "error", err)
	}
	return backend{
		reconciler: a.Services.Reconciler,
		lifecycle:  a.Services.Lifecycle,
	}, a.Close, nil
}
