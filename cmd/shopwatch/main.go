// Command shopwatch monitors the shop stock feed and emails an alert when a
// watched item shows up in a new session.
//
// Usage:
//
//	shopwatch                 # same as "shopwatch run"
//	shopwatch run
//	shopwatch check
//	shopwatch test-alert seed_stock
//	STATUS_ADDR=:8080 shopwatch run
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "github.com/albapepper/shopwatch/docs" // swagger docs
	"github.com/albapepper/shopwatch/internal/api"
	"github.com/albapepper/shopwatch/internal/config"
	"github.com/albapepper/shopwatch/internal/monitor"
	"github.com/albapepper/shopwatch/internal/notifications"
	"github.com/albapepper/shopwatch/internal/session"
	"github.com/albapepper/shopwatch/internal/status"
	"github.com/albapepper/shopwatch/internal/stock"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	var envFile string

	root := &cobra.Command{
		Use:          "shopwatch",
		Short:        "Shop stock session monitor",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env if present
			_ = godotenv.Load(envFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor()
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")

	root.AddCommand(runCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(testAlertCmd())

	if err := root.Execute(); err != nil {
		logger.Error("shopwatch failed", "error", err)
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Monitor the shop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor()
		},
	}
}

func runMonitor() error {
	return withConfig(func(ctx context.Context, cfg *config.Config) error {
		client := stock.NewClient(cfg.ShopURL, cfg.FetchTimeout, cfg.FetchMinInterval, logger)
		tracker := session.NewTracker(cfg.Categories, stock.NewTargetSet(cfg.Watchlist...))
		dispatcher := buildDispatcher(cfg)
		board := status.New()

		logger.Info("Alerts configured", "sender", dispatcher.Sender(), "watchlist", len(cfg.Watchlist))

		if cfg.StatusAddr != "" {
			srv := &http.Server{
				Addr:         cfg.StatusAddr,
				Handler:      api.NewRouter(board, cfg),
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  60 * time.Second,
			}
			go func() {
				logger.Info("Starting status API", "addr", cfg.StatusAddr, "environment", cfg.Environment)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("Status API failed", "error", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("Shutdown error", "error", err)
				}
				logger.Info("Status API stopped")
			}()
		}

		m := monitor.New(client, tracker, dispatcher, monitor.Config{
			Fallback:        cfg.PollFallback,
			MaxRetries:      cfg.FetchMaxRetries,
			RetryBackoff:    cfg.FetchBackoff,
			MaxRetryBackoff: cfg.FetchMaxBackoff,
		}, logger, monitor.WithBoard(board))

		return m.Run(ctx)
	})
}

// --------------------------------------------------------------------------
// check command
// --------------------------------------------------------------------------

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Fetch the shop once and print stock and watchlist matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(func(ctx context.Context, cfg *config.Config) error {
				client := stock.NewClient(cfg.ShopURL, cfg.FetchTimeout, 0, logger)
				snap, err := client.Fetch(ctx)
				if err != nil {
					return fmt.Errorf("fetch stock: %w", err)
				}

				tracker := session.NewTracker(cfg.Categories, stock.NewTargetSet(cfg.Watchlist...))
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "server time: %s\n", snap.ServerTime.Format(time.RFC3339))
				for _, o := range tracker.Observe(snap) {
					switch {
					case o.Err != nil:
						fmt.Fprintf(out, "\n[%s] error: %v\n", o.Category, o.Err)
						continue
					case o.Empty:
						fmt.Fprintf(out, "\n[%s] no items\n", o.Category)
						continue
					}
					fmt.Fprintf(out, "\n[%s] session %s, ends %s\n", o.Category, o.Marker, o.End.Format(time.RFC3339))
					for _, it := range o.Items {
						fmt.Fprintf(out, "  %s: %d\n", it.DisplayName, it.Quantity)
					}
					if len(o.Matches) == 0 {
						fmt.Fprintln(out, "  no target items")
						continue
					}
					for _, it := range o.Matches {
						fmt.Fprintf(out, "  * target: %s: %d\n", it.DisplayName, it.Quantity)
					}
				}
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// test-alert command
// --------------------------------------------------------------------------

func testAlertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-alert <category>",
		Short: "Send a sample alert through the configured sender",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(func(ctx context.Context, cfg *config.Config) error {
				name := "Beanstalk"
				if len(cfg.Watchlist) > 0 {
					name = cfg.Watchlist[0]
				}
				del := buildDispatcher(cfg).Dispatch(ctx, notifications.Alert{
					Category: args[0],
					Session:  "test",
					Items:    []stock.Item{{ItemID: "test", DisplayName: name, Quantity: 1}},
				})
				if !del.OK() {
					return del.Err
				}
				logger.Info("Test alert sent", "category", args[0], "sender", del.Sender, "duration", del.Duration.Round(time.Millisecond))
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// withConfig handles config loading, log level and signal cancellation.
func withConfig(fn func(ctx context.Context, cfg *config.Config) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	return fn(ctx, cfg)
}

// buildDispatcher picks SMTP when the relay is configured, else the log sender.
func buildDispatcher(cfg *config.Config) *notifications.Dispatcher {
	var sender notifications.Sender
	if cfg.MailEnabled() {
		if ms := notifications.NewMailSender(notifications.MailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.MailFrom,
			To:       cfg.MailTo,
		}); ms != nil {
			sender = ms
		}
	} else {
		logger.Warn("SMTP not configured, alerts will only be logged")
	}
	return notifications.NewDispatcher(sender, logger)
}
