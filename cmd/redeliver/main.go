// Command redeliver resends final reports that were written to the fallback
// directory after delivery failed.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/decoy/internal/delivery"
	"github.com/ashureev/decoy/internal/retry"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Options are the command line flags. Unset flags fall back to the same
// environment variables the server reads.
type Options struct {
	Dir         string        `short:"d" long:"dir" env:"FALLBACK_DIR" default:"./data/failed_reports" description:"fallback report directory"`
	URL         string        `short:"u" long:"url" env:"CALLBACK_URL" description:"report endpoint"`
	APIKey      string        `short:"k" long:"api-key" env:"CALLBACK_API_KEY" description:"bearer token sent with each report"`
	Timeout     time.Duration `long:"timeout" env:"CALLBACK_TIMEOUT" default:"10s" description:"per-attempt timeout"`
	MaxAttempts int           `long:"max-attempts" env:"CALLBACK_MAX_ATTEMPTS" default:"3" description:"attempts per report"`
	DryRun      bool          `short:"n" long:"dry-run" description:"list reports without sending"`
	Keep        bool          `long:"keep" description:"keep files after successful delivery"`
}

// summary counts the outcome of one run.
type summary struct {
	Found     int
	Delivered int
	Failed    int
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	opts := &Options{}
	parser := flags.NewParser(opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := run(ctx, opts, os.Stdout, logger)
	if err != nil {
		slog.Error("Redelivery failed", "error", err)
		os.Exit(1)
	}
	if s.Failed > 0 {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *Options, out io.Writer, logger *slog.Logger) (summary, error) {
	var s summary
	if !opts.DryRun && opts.URL == "" {
		return s, fmt.Errorf("--url or CALLBACK_URL is required: %w", delivery.ErrNoEndpoint)
	}

	spool := delivery.NewSpool(opts.Dir)
	paths, err := spool.List()
	if err != nil {
		return s, err
	}
	s.Found = len(paths)
	if s.Found == 0 {
		_, _ = fmt.Fprintf(out, "no reports in %s\n", opts.Dir)
		return s, nil
	}

	policy := retry.DefaultConfig()
	if opts.MaxAttempts > 0 {
		policy.MaxAttempts = opts.MaxAttempts
	}
	svc := delivery.NewService(delivery.NewClient(opts.URL, opts.APIKey, opts.Timeout), policy, nil, logger, nil)

	for _, path := range paths {
		if ctx.Err() != nil {
			return s, ctx.Err()
		}
		payload, err := spool.Read(path)
		if err != nil {
			logger.Warn("Skipping unreadable report", "path", path, "error", err)
			s.Failed++
			continue
		}
		if opts.DryRun {
			_, _ = fmt.Fprintf(out, "%s\t%s\tturns=%d\n", path, payload.SessionID, payload.TotalMessagesExchanged)
			continue
		}

		ok, attempts, err := svc.Send(ctx, payload)
		if !ok {
			_, _ = fmt.Fprintf(out, "FAIL\t%s\tattempts=%d\t%v\n", payload.SessionID, attempts, err)
			s.Failed++
			continue
		}
		_, _ = fmt.Fprintf(out, "OK\t%s\tattempts=%d\n", payload.SessionID, attempts)
		s.Delivered++
		if !opts.Keep {
			if err := spool.Remove(path); err != nil {
				logger.Warn("Delivered report could not be removed", "path", path, "error", err)
			}
		}
	}
	return s, nil
}
