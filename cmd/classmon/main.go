// Command classmon is the classroom environment monitor.
//
//	classmon [monitor]        live dashboard (default)
//	classmon history [file]   browse the persisted log
//	classmon simulate [every] publish synthetic readings to the broker
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/luki/classmon/internal/classifier"
	"github.com/luki/classmon/internal/config"
	"github.com/luki/classmon/internal/dashboard"
	"github.com/luki/classmon/internal/feed"
	"github.com/luki/classmon/internal/ingest"
	"github.com/luki/classmon/internal/monitor"
	"github.com/luki/classmon/internal/queue"
	"github.com/luki/classmon/internal/store"
	"github.com/luki/classmon/internal/viewer"
	"github.com/luki/classmon/internal/weather"
	"github.com/luki/classmon/internal/web"
)

const (
	connectBudget   = 15 * time.Second
	shutdownTimeout = 5 * time.Second
	defaultSimEvery = 2 * time.Second
)

func main() {
	cmd, args := "monitor", os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "monitor":
		err = runMonitor()
	case "history":
		err = runHistory(args)
	case "simulate":
		err = runSimulate(args)
	case "help", "-h", "--help":
		printHelp()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		printHelp()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("Usage: classmon [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  monitor            live classroom dashboard (default)")
	fmt.Println("  history [file]     browse the persisted CSV log")
	fmt.Println("  simulate [every]   publish synthetic readings, e.g. '2s' or '5'")
	fmt.Println()
	fmt.Println("Settings come from classmon.yaml (or CLASSMON_CONFIG), .env and the environment:")
	fmt.Println("  MQTT_BROKER MQTT_PORT MQTT_TOPIC MODEL_FILE OWM_API_KEY CITY_NAME")
	fmt.Println("  CSV_LOG_FILE HTTP_ADDR LOG_FILE LOG_LEVEL REFRESH_INTERVAL")
	fmt.Println("  WEATHER_TTL FALLBACK_TEMP_OUT ORIGIN_PATTERNS")
}

// setupLogging points the default slog logger at w.
func setupLogging(w io.Writer, level slog.Level) {
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// openLogFile sends logs to the configured file so they do not draw over
// the TUI.
func openLogFile(cfg config.Config) (*os.File, error) {
	f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	setupLogging(f, cfg.LogLevel)
	return f, nil
}

func downloadURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/download"
}

func runMonitor() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logFile, err := openLogFile(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()

	slog.Info("starting classmon",
		"broker", cfg.MQTTBroker, "port", cfg.MQTTPort, "topic", cfg.MQTTTopic,
		"model", cfg.ModelFile, "log", cfg.CSVLog)

	model := classifier.Load(cfg.ModelFile)
	if model.State() != classifier.StateLoaded {
		slog.Warn("running without a classifier", "state", model.State(), "error", model.Err())
	}
	q := queue.New()
	csvLog := store.NewLog(cfg.CSVLog)
	if csvLog.Exists() {
		slog.Info("appending to existing log", "path", csvLog.Path())
	}
	cache := weather.NewCache(weather.NewClient(cfg.OWMAPIKey, cfg.City), cfg.WeatherTTL)
	publisher := dashboard.NewPublisher()
	processor := ingest.New(q, model, csvLog, ingest.WithFallbackTempOut(cfg.FallbackTempOut))

	feedCfg := feed.Config{Broker: cfg.MQTTBroker, Port: cfg.MQTTPort, Topic: cfg.MQTTTopic}
	sub := feed.NewSubscriber(feedCfg, q)

	ctx, cancel := context.WithTimeout(context.Background(), connectBudget)
	err = sub.Connect(ctx)
	cancel()

	var feedStatus monitor.FeedStatus
	if err != nil {
		slog.Error("mqtt unavailable, dashboard will wait for data", "error", err)
		sub.Close()
	} else {
		feedStatus = sub
		defer sub.Close()
	}

	opts := monitor.Options{
		Processor:   processor,
		Weather:     cache,
		Feed:        feedStatus,
		Publisher:   publisher,
		Model:       model.State(),
		Wake:        q.Wake(),
		Topic:       cfg.MQTTTopic,
		Broker:      feedCfg.URL(),
		LogPath:     csvLog.Path(),
		Refresh:     cfg.RefreshInterval,
		FallbackOut: cfg.FallbackTempOut,
	}

	if cfg.HTTPEnabled() {
		srv := web.NewServer(cfg.HTTPAddr, web.NewHandler(csvLog, publisher, cfg.OriginPatterns), logFile)
		srv.Start()
		opts.DownloadURL = downloadURL(cfg.HTTPAddr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				slog.Error("dashboard http shutdown failed", "error", err)
			}
		}()
	}

	p := tea.NewProgram(monitor.New(opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}

	processed, failed, _ := processor.Stats()
	slog.Info("classmon stopped", "records", processed, "persist_failed", failed)
	return nil
}

func runHistory(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logFile, err := openLogFile(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()

	path := cfg.CSVLog
	if len(args) > 0 {
		path = args[0]
	}
	return viewer.Run(path)
}

func parseInterval(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	return time.Duration(secs) * time.Second, nil
}

func runSimulate(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	setupLogging(os.Stderr, cfg.LogLevel)

	every := defaultSimEvery
	if len(args) > 0 {
		if every, err = parseInterval(args[0]); err != nil {
			return err
		}
		if every <= 0 {
			return fmt.Errorf("interval must be positive, got %s", every)
		}
	}

	sim, err := feed.NewSimulator(feed.Config{
		Broker: cfg.MQTTBroker,
		Port:   cfg.MQTTPort,
		Topic:  cfg.MQTTTopic,
	}, every)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Publishing to %s every %s\n", cfg.MQTTTopic, every)
	fmt.Println("Press Ctrl+C to stop")
	return sim.Run(ctx)
}
