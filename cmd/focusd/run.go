package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/norm/focusd/internal/config"
	"github.com/norm/focusd/internal/control"
	"github.com/norm/focusd/internal/controlfile"
	"github.com/norm/focusd/internal/escalation"
	"github.com/norm/focusd/internal/history"
	"github.com/norm/focusd/internal/judge"
	"github.com/norm/focusd/internal/ledger"
	eventlog "github.com/norm/focusd/internal/log"
	"github.com/norm/focusd/internal/logging"
	"github.com/norm/focusd/internal/metrics"
	"github.com/norm/focusd/internal/monitor"
	"github.com/norm/focusd/internal/notify"
	"github.com/norm/focusd/internal/sampler"
	"github.com/norm/focusd/internal/sanitize"
	"github.com/norm/focusd/internal/shell"
	"github.com/norm/focusd/internal/sinks"
	"github.com/norm/focusd/internal/window"
)

func runCmd() *cobra.Command {
	var (
		maxCycles int
		interval  time.Duration
		surface   string
		debug     bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the monitor in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-cycles") {
				cfg.MaxCycles = maxCycles
			}
			if cmd.Flags().Changed("interval") {
				cfg.Interval = interval
			}
			if surface != "" {
				cfg.Surface = surface
			}
			if debug {
				logging.SetDebug(true)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runMonitor(cfg)
		},
	}
	cmd.Flags().IntVar(&maxCycles, "max-cycles", 0, "stop after this many checks (0 = run until disabled)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between checks")
	cmd.Flags().StringVar(&surface, "surface", "", "notification surface: auto, osascript, zenity or log")
	cmd.Flags().BoolVar(&debug, "debug", false, "verbose logging")
	return cmd
}

func runMonitor(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	runID := history.NewRunID()
	events := eventlog.NewEventLog(cfg.LogDir)
	stats := metrics.New(cfg.StateDir, runID)
	runner := shell.New()

	screen := sampler.NewScreen(runner, cfg.CaptureCommand, cfg.OCRCommand, sampler.TempDir(cfg.StateDir))
	var smp sampler.Sampler = screen
	if cfg.IncludeProcesses {
		smp = sampler.NewCombined(screen, sampler.NewProcesses(sampler.DefaultProcessLimit))
	}

	prompt, err := judge.LoadPrompt(cfg.Judge.PromptPath)
	if err != nil {
		return err
	}
	claude, err := judge.NewAnthropic(&judge.Config{
		Model:          cfg.Judge.Model,
		MaxTokens:      cfg.Judge.MaxTokens,
		MaxRetries:     cfg.Judge.MaxRetries,
		RetryBaseDelay: cfg.Judge.RetryBaseDelay,
		APIKey:         cfg.Judge.APIKey,
		Prompt:         prompt,
	})
	if err != nil {
		return err
	}

	win, err := window.New(cfg.WindowSize)
	if err != nil {
		return err
	}
	thresholds, err := cfg.Thresholds()
	if err != nil {
		return err
	}

	state := control.NewState()
	inbox := control.NewInbox(0)

	surf := notify.NewSurface(cfg.Surface, runner, int(cfg.PromptTimeout/time.Second))
	dispatcher := notify.NewDispatcher(ctx, surf, inbox, events, stats, notify.Options{
		MinDisplayMinutes: cfg.MinDisplayMinutes,
		NukeWindows:       cfg.NukeWindows,
		ScreenWidth:       cfg.ScreenWidth,
		ScreenHeight:      cfg.ScreenHeight,
	})

	deps := monitor.Deps{
		Sampler:    smp,
		Sanitizer:  sanitize.New(cfg.SanitizePhrases),
		Judge:      judge.WithTimeout(claude, cfg.Judge.Timeout),
		Window:     win,
		Ledger:     ledger.New(),
		Policy:     escalation.NewPolicy(thresholds),
		State:      state,
		Inbox:      inbox,
		Dispatcher: dispatcher,
		Sinks:      sinks.New(cfg.StateDir, cfg.LogDir),
		Metrics:    stats,
		Events:     events,
	}

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		log.Printf("warning: history disabled: %v", err)
	} else {
		defer store.Close()
		deps.History = store
	}

	watcher, err := controlfile.NewWatcher(cfg.ControlDir(), inbox)
	if err != nil {
		return fmt.Errorf("control watcher: %w", err)
	}
	defer watcher.Close()
	go func() {
		if err := watcher.Start(ctx); err != nil {
			log.Printf("control watcher: %v", err)
		}
	}()

	loop, err := monitor.New(monitor.Options{
		Interval:      cfg.Interval,
		BreakDuration: cfg.BreakDuration,
		MaxCycles:     cfg.MaxCycles,
		Distractions:  cfg.DistractionKeywords,
		RunID:         runID,
	}, deps)
	if err != nil {
		return err
	}

	logging.Info("focusd", "run %s, state in %s", runID, cfg.StateDir)
	err = loop.Run(ctx)

	// Close any open dialogs before waiting on their goroutines.
	cancel()
	dispatcher.Wait()
	return err
}
