// Command cedearscan is the scanner entry point. It loads configuration,
// validates it, wires dependencies, sets up signal handling, and starts the
// application in the configured mode.
//
// The `credentials encrypt` subcommand seals broker credentials into the
// encrypted file referenced by iol.encrypted_credentials_path.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/agustinrios/cedearscan/internal/app"
	"github.com/agustinrios/cedearscan/internal/config"
	"github.com/agustinrios/cedearscan/internal/crypto"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "credentials" {
		if err := runCredentials(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	// Bootstrap logger; replaced once the configured level is known.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("cedearscan starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if errors.Is(err, context.Canceled) {
			logger.Info("shut down gracefully")
		} else {
			logger.Error("exited with error", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("cedearscan stopped")
}

// runCredentials handles `cedearscan credentials encrypt`.
func runCredentials(args []string) error {
	if len(args) == 0 || args[0] != "encrypt" {
		return errors.New("usage: cedearscan credentials encrypt -out <path>")
	}

	fs := flag.NewFlagSet("credentials encrypt", flag.ExitOnError)
	out := fs.String("out", "iol_credentials.enc", "output path for the encrypted file")
	username := fs.String("username", os.Getenv("CEDEARSCAN_IOL_USERNAME"), "broker username")
	password := fs.String("password", os.Getenv("CEDEARSCAN_IOL_PASSWORD"), "broker password")
	passphrase := fs.String("passphrase", os.Getenv("CEDEARSCAN_IOL_CREDENTIALS_PASSWORD"), "encryption passphrase")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	payload, err := crypto.EncryptCredentials(crypto.Credentials{
		Username: *username,
		Password: *password,
	}, *passphrase)
	if err != nil {
		return err
	}

	if err := os.WriteFile(*out, payload, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Printf("encrypted credentials written to %s\n", *out)
	return nil
}
