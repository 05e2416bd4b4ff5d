package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/segue/internal/audio"
	"github.com/llehouerou/segue/internal/config"
	"github.com/llehouerou/segue/internal/fade"
	"github.com/llehouerou/segue/internal/library"
	"github.com/llehouerou/segue/internal/logging"
	"github.com/llehouerou/segue/internal/remote"
	"github.com/llehouerou/segue/internal/scan"
	"github.com/llehouerou/segue/internal/sequencer"
)

const shutdownTimeout = 5 * time.Second

func main() {
	source := flag.String("source", "", "library directory (overrides config)")
	playNow := flag.Bool("play", false, "start playback immediately")
	flag.Parse()

	if err := run(*source, *playNow); err != nil {
		fmt.Fprintf(os.Stderr, "segue: %v\n", err)
		os.Exit(1)
	}
}

func run(source string, playNow bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if source != "" {
		cfg.Library.Source = source
	}
	if cfg.Library.Source == "" {
		return errors.New("no library source configured (set library.source or pass -source)")
	}

	log, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer log.Sync() //nolint:errcheck // stderr sync is best-effort

	if err := audio.InitSpeaker(); err != nil {
		return fmt.Errorf("initializing speaker: %w", err)
	}

	seq := sequencer.New(&fade.Ticker{}, log)
	defer seq.Close()

	opts := cfg.Playback.Options()
	entries, err := populate(seq, cfg.Library.Source, &opts, nil, log)
	if err != nil {
		return err
	}

	srv := remote.NewServer(seq, log)
	if err := seq.BindRemote(srv.Commands()); err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Remote.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpErr := make(chan error, 1)
	go func() {
		log.Info("remote control listening", zap.String("addr", cfg.Remote.Listen))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	var changes <-chan struct{}
	if cfg.Library.Watch {
		watcher, err := scan.Watch(cfg.Library.Source, log)
		if err != nil {
			log.Warn("library watching disabled", zap.Error(err))
		} else {
			defer watcher.Close()
			changes = watcher.Changes()
		}
	}

	if playNow {
		if err := seq.Play(""); err != nil {
			log.Warn("initial playback failed", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			err := httpSrv.Shutdown(shutdownCtx)
			cancel()
			closeEntries(entries, log)
			return err

		case err := <-httpErr:
			closeEntries(entries, log)
			return fmt.Errorf("remote server: %w", err)

		case <-changes:
			log.Info("library changed, rescanning")
			// nil options keep the previous playback configuration.
			rescanned, err := populate(seq, cfg.Library.Source, nil, entries, log)
			if err != nil {
				log.Error("rescan failed", zap.Error(err))
				continue
			}
			entries = rescanned
		}
	}
}

// populate scans dir, loads the sequencer with the result, and releases
// the decoders behind the previous generation of entries.
func populate(seq *sequencer.Sequencer, dir string, opts *library.Options, prev []library.Entry, log *zap.Logger) ([]library.Entry, error) {
	entries, err := scan.Entries(dir, log)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	seq.Populate(entries, opts)
	log.Info("library populated",
		zap.String("dir", dir),
		zap.Int("tracks", len(entries)))

	closeEntries(prev, log)
	return entries, nil
}

func closeEntries(entries []library.Entry, log *zap.Logger) {
	for _, e := range entries {
		if c, ok := e.Audio.(*audio.File); ok {
			if err := c.Close(); err != nil {
				log.Debug("closing track", zap.String("name", e.Name), zap.Error(err))
			}
		}
	}
}
