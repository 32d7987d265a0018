package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/glabrego/laconic-cli/internal/app"
	"github.com/glabrego/laconic-cli/internal/config"
	"github.com/glabrego/laconic-cli/internal/logging"
	"github.com/glabrego/laconic-cli/internal/popup"
	"github.com/glabrego/laconic-cli/internal/storage"
	"github.com/glabrego/laconic-cli/internal/tui"
	"github.com/glabrego/laconic-cli/internal/wiki"
)

func main() {
	var logLevel string
	var nested string

	flagSet := pflag.NewFlagSet("laconic", pflag.ContinueOnError)
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides LACONIC_LOG_LEVEL)")
	flagSet.StringVar(&nested, "nested", "", "nested summary mode: inplace or flat (overrides LACONIC_NESTED_MODE)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return
		}
		log.Fatalf("flag error: %v", err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return
	}
	if flagSet.NArg() > 1 {
		log.Fatalf("unexpected argument: %s", flagSet.Arg(1))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	cfg = cfg.WithOverrides(config.Overrides{LogLevel: logLevel, NestedMode: nested})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config error: %v", err)
	}
	mode, err := popup.ParseNestedMode(cfg.NestedMode)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, closeLog, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = closeLog() }()

	repo, err := storage.NewRepository(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init error: %v", err)
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := repo.Init(ctx); err != nil {
		log.Fatalf("storage schema error: %v", err)
	}

	pattern, err := wiki.NewPattern(cfg.BaseURL)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	client := wiki.NewClient(&http.Client{Timeout: 20 * time.Second})
	service := app.NewService(client, repo, logger)

	startURL := flagSet.Arg(0)
	if startURL == "" {
		last, ok, err := service.LastVisited(ctx)
		switch {
		case err != nil:
			logger.Warn("Could not read history", zap.Error(err))
		case ok:
			startURL = last
		}
	}
	if startURL == "" {
		startURL = wiki.HomeURL(cfg.BaseURL)
	}

	controller := popup.NewController(client, pattern, popup.NewTracker(), popup.Options{
		Width:    cfg.PopupWidth,
		Delay:    cfg.PopupDelay,
		Distance: cfg.PopupDistance,
		Nested:   mode,
	}, logger)

	logger.Info("Starting laconic",
		zap.String("url", startURL),
		zap.String("nested", mode.String()),
		zap.Int("popup_width", cfg.PopupWidth),
		zap.Duration("popup_delay", cfg.PopupDelay))

	model := tui.NewModel(service, controller, startURL, logger)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseAllMotion())
	if _, err := program.Run(); err != nil {
		log.Fatalf("tui error: %v", err)
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `laconic: read TV Tropes in the terminal with hover summaries.

Hovering a trope link shows its Laconic one-liner in a floating panel.
Clicking a link opens it. Settings are read from the environment and an
optional .env file (LACONIC_BASE_URL, LACONIC_DB_PATH, LACONIC_LOG_FILE,
LACONIC_LOG_LEVEL, LACONIC_POPUP_WIDTH, LACONIC_POPUP_DELAY,
LACONIC_POPUP_DISTANCE, LACONIC_NESTED_MODE).

Usage:
  laconic [flags] [url]

Without a URL the last visited page is opened, or the wiki home page.

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
