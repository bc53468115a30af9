package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/vango-dev/reactor/pkg/devtools"
	"github.com/vango-dev/reactor/pkg/middleware"
	"github.com/vango-dev/reactor/pkg/portal"
	"github.com/vango-dev/reactor/pkg/reactor"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		interval   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the login form under the scheduler loop",
		Long: `Mount the debounced login form and keep the scheduler running
while a simulated user types into it.

Every step passes through the Prometheus, OpenTelemetry and devtools
middleware. With devtools enabled the inspection server exposes
/healthz, /instances, /portals, /metrics and the /events websocket.

Examples:
  reactor serve
  reactor serve --config reactor.yaml --addr localhost:9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Devtools.Addr = addr
			}
			rc, err := cfg.Reactor()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := cfg.NewLogger(os.Stderr)
			registry := prometheus.NewRegistry()
			metrics := middleware.NewMetrics(append(cfg.MetricsOptions(), middleware.WithRegistry(registry))...)
			feed := devtools.NewFeed()

			rt := reactor.New(
				reactor.WithConfig(rc),
				reactor.WithLogger(logger),
				reactor.WithMiddleware(metrics, middleware.OpenTelemetry(cfg.OTelOptions()...), feed),
				reactor.WithErrorHandler(metrics.Report),
			)
			defer shutdownRuntime(cmd.OutOrStdout(), rt)

			for _, k := range []portal.Key{keyBackdrop, keyOverlay} {
				if err := rt.BindPortalTarget(k, "#"+string(k)); err != nil {
					return err
				}
			}

			form := &loginForm{delay: interval / 2, out: os.Stdout}
			login, err := rt.Mount(ctx, reactor.Named("login", form))
			if err != nil {
				return err
			}
			dialog, err := rt.Mount(ctx, reactor.Named("modal", reactor.EvaluableFunc(modal)))
			if err != nil {
				return err
			}

			if cfg.Devtools.Enabled {
				srv := devtools.New(rt,
					devtools.WithFeed(feed),
					devtools.WithGatherer(registry),
					devtools.WithLogger(logger),
				)
				go func() {
					if err := srv.ListenAndServe(ctx, cfg.Devtools.Addr); err != nil {
						warn("devtools: %v", err)
					}
				}()
				success("Devtools on http://%s", cfg.Devtools.Addr)
			}

			go typeInto(ctx, rt, login, dialog, interval)

			info("Press Ctrl+C to stop")
			err = rt.Run(ctx)
			if errors.Is(err, context.Canceled) {
				fmt.Println("\n  Shutting down...")
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file (default: reactor.json or reactor.yaml in the working directory)")
	cmd.Flags().StringVar(&addr, "addr", "", "Devtools listen address (default from config)")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Delay between simulated keystrokes")

	return cmd
}

// shutdownRuntime unmounts everything and warns on w when a cleanup fails.
func shutdownRuntime(w io.Writer, rt *reactor.Runtime) {
	if err := rt.Shutdown(context.Background()); err != nil {
		warnTo(w, "shutdown: %v", err)
	}
}

// typeInto simulates a user typing into the login form until ctx is done.
// The modal toggles after each pass over the inputs.
func typeInto(ctx context.Context, rt *reactor.Runtime, login, dialog reactor.InstanceID, interval time.Duration) {
	inputs := []struct {
		slot  int
		value string
	}{
		{slotEmail, "a"},
		{slotEmail, "ada"},
		{slotEmail, "ada@example.com"},
		{slotPassword, "secret"},
		{slotPassword, "correct horse"},
		{slotEmail, ""},
		{slotPassword, ""},
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; ; i = (i + 1) % len(inputs) {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		in := inputs[i]
		if err := rt.Update(login, in.slot, reactor.Set(in.value)); err != nil {
			return
		}
		if i == len(inputs)-1 {
			toggle := reactor.Apply(func(prev any) any { return !prev.(bool) })
			if err := rt.Update(dialog, 0, toggle); err != nil {
				return
			}
		}
	}
}
