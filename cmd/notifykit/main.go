// Command notifykit is the operational sidekick for the kit: it checks a
// configuration file the way Init would and generates web push VAPID key
// pairs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/tinywideclouds/go-notification-kit/internal/capability"
	"github.com/tinywideclouds/go-notification-kit/internal/platform"
	"github.com/tinywideclouds/go-notification-kit/notifykit/config"
)

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "notifykit")
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "doctor":
		runDoctor(os.Args[2:], logger)
	case "vapid-keygen":
		runVapidKeygen()
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: notifykit <command>

commands:
  doctor        validate a config file and report platform capabilities
  vapid-keygen  generate a web push VAPID key pair`)
}

// runDoctor loads and validates a config file the same way Init would,
// then reports the detected surface and its capability table.
func runDoctor(args []string, logger *slog.Logger) {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	path := fs.String("config", "notifykit.yaml", "path to the config file")
	_ = fs.Parse(args)
	if fs.NArg() > 0 {
		*path = fs.Arg(0)
	}

	cfg, err := config.LoadFile(*path, logger)
	if err != nil {
		logger.Error("failed to load config", "path", *path, "err", err)
		os.Exit(1)
	}

	if err := config.ValidateProviderConfig(cfg.Provider); err != nil {
		logger.Error("provider config invalid", "err", err)
		os.Exit(1)
	}
	logger.Info("provider config valid", "provider", cfg.Provider.Kind)

	// The audit warns about literal secrets; it never fails the check.
	config.SecurityAudit(cfg.Provider, true, logger)

	ctx := context.Background()
	registry := capability.NewRegistry(logger)
	detector := platform.NewDetector(registry, logger)
	info := detector.Detect(ctx)

	report := struct {
		Platform platform.Info `json:"platform"`
		Config   struct {
			Provider   string `json:"provider"`
			Debug      bool   `json:"debug"`
			Production bool   `json:"production"`
		} `json:"config"`
	}{Platform: info}
	report.Config.Provider = string(cfg.Provider.Kind)
	report.Config.Debug = cfg.Debug
	report.Config.Production = cfg.Production

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Error("failed to encode report", "err", err)
		os.Exit(1)
	}
	fmt.Println(string(encoded))
}

// runVapidKeygen prints a fresh VAPID key pair. The private key belongs
// on the push server, never in client config.
func runVapidKeygen() {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate VAPID keys: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("VAPID public key:  %s\n", publicKey)
	fmt.Printf("VAPID private key: %s\n", privateKey)
	fmt.Println("\nKeep the private key server-side; only the public key goes into fcm.vapid_key.")
}
