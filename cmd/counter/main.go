package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/tailored-agentic-units/flux/observability"
	"github.com/tailored-agentic-units/flux/operation"
	"github.com/tailored-agentic-units/flux/store"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to counter config JSON file")
		persistPath = flag.String("persist", "", "Directory for persisted state (overrides config)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging to stderr")
		fail        = flag.Bool("fail", false, "Make the load command fail")
	)
	flag.Parse()

	cfg := defaultConfig()
	if *configFile != "" {
		loaded, err := loadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *persistPath != "" {
		cfg.Store.Persist.Path = *persistPath
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	observer := observability.NewMultiObserver(
		observability.NewSlogObserver(logger),
		observability.NewTraceObserver(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := newApp(ctx, cfg, observer, *fail)
	if err != nil {
		log.Fatalf("Failed to build store: %v", err)
	}

	counter := must(store.Select[Counter](app.store))
	counter.Subscribe(func(c Counter) error {
		fmt.Printf("count=%d status=%s\n", c.Count, c.Status)
		return nil
	})

	fmt.Println("commands: inc, dec, load, reset, show, failures, quit")
	if err := app.repl(ctx, bufio.NewScanner(os.Stdin)); err != nil {
		log.Fatalf("Counter failed: %v", err)
	}

	if err := app.store.Flush(context.WithoutCancel(ctx)); err != nil {
		log.Fatalf("Failed to save state: %v", err)
	}
}

func (a *app) repl(ctx context.Context, in *bufio.Scanner) error {
	for {
		fmt.Print("> ")
		if !in.Scan() {
			return in.Err()
		}

		cmd := strings.TrimSpace(in.Text())
		if cmd == "quit" || cmd == "exit" {
			return nil
		}

		err := a.run(ctx, cmd)
		switch {
		case errors.Is(err, store.ErrOperationCancelled):
			fmt.Println("rejected")
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			fmt.Printf("error: %v\n", err)
		}
	}
}

func (a *app) run(ctx context.Context, cmd string) error {
	switch cmd {
	case "":
		return nil
	case "inc":
		return a.store.Dispatch(ctx, Increment{})
	case "dec":
		return a.store.Dispatch(ctx, Decrement{})
	case "load":
		return a.store.Dispatch(ctx, Load{})
	case "reset":
		return a.store.Dispatch(ctx, operation.Reset[Counter]{})
	case "show":
		c := store.Current[Counter](a.store)
		fmt.Printf("count=%d status=%s loads=%d\n", c.Count, c.Status, a.load.Loads())
		return nil
	case "failures":
		for _, f := range store.Current[operation.FailureLog](a.store).Entries {
			fmt.Printf("%s %s: %v\n", f.At.Format("15:04:05"), f.Operation, f.Err)
		}
		return nil
	default:
		fmt.Printf("unknown command %q\n", cmd)
		return nil
	}
}

func must[T any](v T, ok bool) T {
	if !ok {
		panic("counter state not registered")
	}
	return v
}
