package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/tdnguyen/outcall/internal/control"
	"github.com/tdnguyen/outcall/internal/core/config"
)

// One-shot probe of every configured backend. Exits non-zero when any
// component reports unhealthy, for use from cron or deploy checks.
func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	timeout := flag.Duration("timeout", 15*time.Second, "Probe timeout")
	flag.Parse()

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelWarn,
		TimeFormat: time.RFC3339,
	})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	app, err := control.NewApp(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize:", err)
		os.Exit(1)
	}
	defer app.Stop(context.Background())

	report := app.CheckHealth(ctx)
	if len(report) == 0 {
		fmt.Println("no backends configured")
		return
	}

	exitCode := 0
	for name, c := range report {
		status := "ok"
		if !c.Healthy {
			status = "UNHEALTHY"
			exitCode = 1
		}
		fmt.Printf("%-12s %s\n", name, status)
	}
	os.Exit(exitCode)
}
