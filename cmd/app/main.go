package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"haul-dispatch/internal/config"
	dispatchservice "haul-dispatch/internal/dispatch-service"
	"haul-dispatch/internal/mylogger"
)

const usage = "usage: app <dispatch-service|migrate|prune-events> [flags]"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		os.Exit(1)
	}

	mylog, err := mylogger.New(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cannot create logger:", err)
		os.Exit(1)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "dispatch-service":
		err = dispatchservice.Execute(ctx, mylog.With("service", "dispatch-service"), cfg)
	case "migrate":
		err = dispatchservice.Migrate(ctx, mylog, cfg)
	case "prune-events":
		pruneCmd := flag.NewFlagSet("prune-events", flag.ExitOnError)
		olderThan := pruneCmd.Duration("older-than", cfg.Feed.Retention, "delete events older than this")
		_ = pruneCmd.Parse(os.Args[2:])
		err = dispatchservice.PruneEvents(ctx, mylog, cfg, *olderThan)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	if err != nil {
		os.Exit(1)
	}
}
