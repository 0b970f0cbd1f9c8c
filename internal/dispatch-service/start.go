package dispatchservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"haul-dispatch/internal/config"
	"haul-dispatch/internal/dispatch-service/adapters/driven/db"
	"haul-dispatch/internal/dispatch-service/adapters/driver/myhttp"
	"haul-dispatch/internal/mylogger"
)

func Execute(ctx context.Context, mylog mylogger.Logger, cfg *config.Config) error {
	newCtx, close := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer close()

	server := myhttp.NewServer(newCtx, ctx, mylog, cfg)

	// Run server in goroutine
	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- server.Run()
	}()

	// Wait for signal or server crash
	select {
	case <-newCtx.Done():
		mylog.Info("Shutdown signal received")
		return server.Stop(context.Background())
	case err := <-runErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			mylog.Error("Server failed unexpectedly", err)
			close()
			_ = server.Stop(context.Background())
			return err
		}
		mylog.Info("Server exited normally")
		close()
		return server.Stop(context.Background())
	}
}

// Migrate applies the embedded schema. It is safe to run repeatedly.
func Migrate(ctx context.Context, mylog mylogger.Logger, cfg *config.Config) error {
	mylog = mylog.Action("migrate")

	d, err := db.New(ctx, cfg.DB, mylog)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer d.Close()

	if err := d.Migrate(ctx); err != nil {
		mylog.Error("migration failed", err)
		return err
	}
	mylog.Info("schema applied")
	return nil
}

// PruneEvents deletes events older than olderThan. Channel sequences are kept,
// so cursors held by clients stay valid.
func PruneEvents(ctx context.Context, mylog mylogger.Logger, cfg *config.Config, olderThan time.Duration) error {
	mylog = mylog.Action("prune_events").With("older_than", olderThan.String())
	if olderThan <= 0 {
		return fmt.Errorf("older-than must be positive, got %v", olderThan)
	}

	d, err := db.New(ctx, cfg.DB, mylog)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer d.Close()

	n, err := db.NewEventsRepo(d).Prune(ctx, time.Now().Add(-olderThan))
	if err != nil {
		mylog.Error("prune failed", err)
		return err
	}
	mylog.Info("events pruned", "deleted", n)
	return nil
}
