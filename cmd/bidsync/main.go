package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/alejandrodnm/bidsync/config"
	"github.com/alejandrodnm/bidsync/internal/adapters/stream"
	"github.com/alejandrodnm/bidsync/internal/application/livesync"
	"github.com/alejandrodnm/bidsync/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	closeLog := setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	cmd, args := flag.Arg(0), flag.Args()[1:]
	slog.Info("bidsync starting", "cmd", cmd, "base_url", cfg.API.BaseURL, "transport", cfg.API.Transport)

	var code int
	switch cmd {
	case "watch":
		code = runWatch(ctx, cfg, args)
	case "bid":
		code = runBid(ctx, cfg, args)
	case "register":
		code = runRegister(ctx, cfg, args)
	case "pending":
		code = runPending(ctx, cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		code = 2
	}

	cancel()
	closeLog()
	os.Exit(code)
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: bidsync [flags] <command> [args]

commands:
  watch     follow an auction, the active auctions list and notifications live
  bid       register with a deposit and bid automatically once it is paid
  register  register with a deposit only
  pending   list bids waiting for a deposit

flags:
`)
	flag.PrintDefaults()
}

// newDialer elige el transporte de las suscripciones en vivo.
func newDialer(cfg *config.Config) ports.Dialer {
	if cfg.API.Transport == "ws" {
		return stream.NewWSDialer(cfg.API.BaseURL, cfg.API.Token)
	}
	return stream.NewSSEDialer(cfg.API.BaseURL, cfg.API.Token)
}

func liveConfig(cfg *config.Config) livesync.Config {
	return livesync.Config{
		HeartbeatTimeout: cfg.HeartbeatTimeout(),
		BaseDelay:        cfg.BaseDelay(),
		MaxDelay:         cfg.MaxDelay(),
		MaxRetries:       cfg.Live.MaxRetries,
		DialTimeout:      cfg.DialTimeout(),
	}
}

// setupLogger configura slog; con log.file escribe a un archivo rotado.
// Devuelve la función que cierra el archivo.
func setupLogger(cfg config.LogConfig) func() {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		out = lj
		closeFn = func() { _ = lj.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))
	return closeFn
}
