package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/catalog-scraper/internal/api"
	"github.com/maltedev/catalog-scraper/internal/config"
	"github.com/maltedev/catalog-scraper/internal/export"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "catalog-scraper",
		Short:         "Fetch product pages and extract catalog import records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(runCmd(), serveCmd())
	return cmd
}

func runCmd() *cobra.Command {
	var (
		urlsFile string
		out      string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "run [urls...]",
		Short: "Scrape a batch of product pages and write the records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if out != "" {
				cfg.Output.Path = out
			}
			if format != "" {
				cfg.Output.Format = format
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			urls, err := readURLs(args, urlsFile)
			if err != nil {
				return err
			}
			if len(urls) == 0 {
				return errors.New("no urls given")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runBatch(ctx, cfg, urls, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&urlsFile, "urls-file", "", "File with one URL per line")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, - for stdout (default from OUTPUT_PATH)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: csv or json (default from OUTPUT_FORMAT)")
	return cmd
}

func runBatch(ctx context.Context, cfg *config.Config, urls []string, stdout io.Writer) error {
	logger := newLogger(cfg.Logging, os.Stderr)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	report, err := a.runner.Run(ctx, urls)
	if err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}

	w := stdout
	if cfg.Output.Path != "-" {
		f, err := os.Create(cfg.Output.Path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	sink, err := a.sinks(format, w)
	if err != nil {
		return err
	}
	if err := sink.Write(ctx, report); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}

	for _, failure := range report.Failures {
		logger.Warn("page skipped", "url", failure.URL, "error", failure.Err)
	}
	logger.Info("batch finished",
		"run_id", report.RunID,
		"summary", report.Summary(),
		"output", cfg.Output.Path)
	return nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API and metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Logging, os.Stdout)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	var publish export.Sink
	if a.publisher != nil {
		publish = a.publisher
	}
	handlers := api.NewHandlers(a.runner, a.template.Fields(), publish, logger)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handlers, a.registry, cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigChan:
		case <-ctx.Done():
		}

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr, "raw_store", cfg.Storage.Backend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
