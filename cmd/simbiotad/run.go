package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/simbiota/simbiotad/internal/alert"
	"github.com/simbiota/simbiotad/internal/bookkeeping"
	"github.com/simbiota/simbiotad/internal/classify"
	"github.com/simbiota/simbiotad/internal/config"
	"github.com/simbiota/simbiotad/internal/daemonctl"
	"github.com/simbiota/simbiotad/internal/dbwatch"
	"github.com/simbiota/simbiotad/internal/fanotify"
	"github.com/simbiota/simbiotad/internal/logging"
	"github.com/simbiota/simbiotad/internal/quarantine"
	"github.com/simbiota/simbiotad/internal/resultcache"
	"github.com/simbiota/simbiotad/internal/scanpipeline"
	"github.com/simbiota/simbiotad/internal/signature"
	"github.com/spf13/cobra"
)

func runRoot(_ *cobra.Command, _ []string) error {
	if background {
		return daemonizeInBackground()
	}
	return runForeground()
}

func runForeground() error {
	paths := daemonctl.DefaultPaths()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "simbiota: configuration error:", err)
		reportBackgroundFailure(paths, err)
		return exitError(ExitConfigError)
	}

	if err := logging.Init(buildLoggingConfig(cfg, verbose)); err != nil {
		fmt.Fprintln(os.Stderr, "simbiota: configuration error:", err)
		reportBackgroundFailure(paths, err)
		return exitError(ExitConfigError)
	}
	defer logging.Close()

	log := logging.Get("simbiotad")

	if err := daemonctl.RecoverFromStaleDaemon(paths.PIDFile, paths.BookkeepingDir); err != nil {
		if errors.Is(err, daemonctl.ErrDaemonAlreadyRunning) {
			log.Error("daemon already running")
			reportBackgroundFailure(paths, err)
			return exitError(ExitPermissionError)
		}
		log.Error("stale daemon recovery failed", "error", err)
	}

	if err := os.MkdirAll(paths.BookkeepingDir, 0o700); err != nil {
		log.Error("creating bookkeeping dir failed", "error", err)
		reportBackgroundFailure(paths, err)
		return exitError(ExitConfigError)
	}

	bk, err := bookkeeping.Open(paths.BookkeepingDir)
	if err != nil {
		log.Error("opening bookkeeping store failed", "error", err)
		reportBackgroundFailure(paths, err)
		return exitError(ExitConfigError)
	}
	defer bk.Close()

	sigStore := signature.New(bk)
	if err := sigStore.Load(cfg.Database.DatabaseFile, cfg.Detector.Config.Threshold); err != nil {
		log.Error("loading signature database failed", "path", cfg.Database.DatabaseFile, "error", err)
		reportBackgroundFailure(paths, err)
		return exitError(ExitDatabaseError)
	}

	cache, err := resultcache.New(cfg.Cache.Disable)
	if err != nil {
		log.Error("creating result cache failed", "error", err)
		reportBackgroundFailure(paths, err)
		return exitError(ExitConfigError)
	}

	var quarantineMgr *quarantine.Manager
	if cfg.Quarantine.Enabled {
		idx := quarantine.NewIndex(bk)
		quarantineMgr, err = quarantine.Open(cfg.Quarantine.Path, idx)
		if err != nil {
			log.Error("opening quarantine directory failed", "error", err)
			reportBackgroundFailure(paths, err)
			return exitError(ExitConfigError)
		}
	}

	sinks := []alert.Sink{alert.NewLogSink()}
	if cfg.Email.Enabled {
		sinks = append(sinks, alert.NewEmailSink(cfg.Email))
	}
	dispatcher := alert.NewDispatcher(sinks...)
	dispatcher.Start()

	monitor, err := fanotify.New()
	if err != nil {
		if errors.Is(err, syscall.EPERM) {
			log.Error("insufficient privilege to initialize fanotify (need CAP_SYS_ADMIN)", "error", err)
			reportBackgroundFailure(paths, err)
			return exitError(ExitPermissionError)
		}
		log.Error("fanotify initialization failed", "error", err)
		reportBackgroundFailure(paths, err)
		return exitError(ExitFanotifyError)
	}
	defer monitor.Close()

	installMarks(monitor, cfg, log)

	pipeline := scanpipeline.New(scanpipeline.Config{}, monitor, cache, sigStore, quarantineMgr, dispatcher, classify.TLSHFingerprinter{})
	pipeline.Start()

	baselineCtx, cancelBaseline := context.WithCancel(context.Background())
	defer cancelBaseline()
	runBaselines(baselineCtx, pipeline, cfg, log)

	watcher, err := dbwatch.New(cfg.Database.DatabaseFile, cfg.Detector.Config.Threshold, dbwatch.DefaultDebounce, sigStore, cache, dispatcher)
	if err != nil {
		log.Error("starting database watcher failed", "error", err)
	} else {
		go watcher.Run()
		defer watcher.Stop()
	}

	stop := make(chan struct{})
	runDone := runEventLoop(stop, monitor, pipeline, cfg, log)

	if err := daemonctl.WritePIDFile(paths.PIDFile); err != nil {
		log.Error("writing PID file failed", "error", err)
	}
	defer daemonctl.RemovePIDFile(paths.PIDFile)

	reportBackgroundSuccess(paths)
	log.Info("simbiotad started", "paths", len(cfg.Monitor.Paths), "quarantine_enabled", cfg.Quarantine.Enabled)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var fatalErr error
	var readLoopExited bool
	select {
	case sig := <-sigCh:
		log.Info("received signal, shutting down", "signal", sig.String())
	case fatalErr = <-runDone:
		log.Error("fanotify read loop failed repeatedly, shutting down", "error", fatalErr)
		readLoopExited = true
	}

	// pipeline.Shutdown must run while the read loop is still alive: it
	// drains in-flight scans' responses onto the fanotify fd (spec §5's
	// reply-Allow-to-all-outstanding-permission-events shutdown step),
	// and Run is the only thing that ever writes to that fd. Only once
	// every outstanding event has been answered do we stop the read
	// loop and release the fanotify fd.
	pipeline.Shutdown(daemonctl.DefaultShutdownGrace)
	dispatcher.Stop(daemonctl.DefaultShutdownGrace)

	close(stop)
	if !readLoopExited {
		<-runDone
	}

	if fatalErr != nil {
		return exitError(ExitFanotifyError)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath
		if _, err := os.Stat(path); err != nil {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

func buildLoggingConfig(cfg *config.Config, verbose bool) logging.Config {
	sinks := make([]logging.SinkConfig, 0, len(cfg.Logger))
	for _, le := range cfg.Logger {
		level := le.Level
		if verbose && le.Output == "console" {
			level = "debug"
		}
		sinks = append(sinks, logging.SinkConfig{
			Output: le.Output,
			Level:  level,
			Target: le.Target,
			Path:   le.Path,
			Format: le.Format,
		})
	}
	return logging.Config{Sinks: sinks, SyslogTag: "simbiota"}
}

func installMarks(monitor *fanotify.Monitor, cfg *config.Config, log *logging.Logger) {
	for _, mp := range cfg.Monitor.Paths {
		mask, err := fanotify.ParseEventMask(mp.Mask)
		if err != nil {
			log.Error("invalid mask in monitored path, skipping", "path", mp.Path, "error", err)
			continue
		}
		if err := monitor.Mark(mp.Path, mask, mp.Dir, mp.Mount, mp.Filesystem, mp.EventOnChildren); err != nil {
			log.Error("installing fanotify mark failed", "path", mp.Path, "error", err)
		}
	}
}

func runBaselines(ctx context.Context, pipeline *scanpipeline.Pipeline, cfg *config.Config, log *logging.Logger) {
	for _, mp := range cfg.Monitor.Paths {
		if !mp.Dir {
			continue
		}
		root := mp.Path
		go func() {
			result, err := pipeline.RunBaseline(ctx, root)
			if err != nil {
				log.Warn("baseline scan failed", "path", root, "error", err)
				return
			}
			log.Info("baseline scan complete", "path", root,
				"dirs", result.DirsScanned, "files", result.FilesScanned,
				"detected", len(result.Detected), "errored", len(result.Errored),
				"duration", result.Duration.String())
		}()
	}
}

// runEventLoop runs Monitor.Run until stop is closed, restarting it on a
// read-loop failure per spec §7's propagation policy: a descriptor error
// triggers a mark re-install attempt; more than 3 failures within 60s is
// fatal. The returned channel receives nil on a clean shutdown (stop
// closed) or the last error once the failure budget is exhausted.
func runEventLoop(stop chan struct{}, monitor *fanotify.Monitor, pipeline *scanpipeline.Pipeline, cfg *config.Config, log *logging.Logger) <-chan error {
	done := make(chan error, 1)
	go func() {
		var failures []time.Time
		for {
			err := monitor.Run(stop, pipeline.Dispatch, nil, pipeline.Responses())
			if err == nil {
				done <- nil
				return
			}

			select {
			case <-stop:
				done <- nil
				return
			default:
			}

			now := time.Now()
			failures = append(failures, now)
			cutoff := now.Add(-60 * time.Second)
			kept := failures[:0]
			for _, t := range failures {
				if t.After(cutoff) {
					kept = append(kept, t)
				}
			}
			failures = kept

			log.Error("fanotify read loop error, re-installing marks", "error", err, "failures_in_window", len(failures))
			if len(failures) > 3 {
				done <- err
				return
			}
			installMarks(monitor, cfg, log)
		}
	}()
	return done
}

// bgChildEnvVar marks a process as the re-exec'd child of --bg, the only
// process expected to write a status file for the waiting parent.
const bgChildEnvVar = "SIMBIOTAD_BG_CHILD"

func isBackgroundChild() bool {
	return os.Getenv(bgChildEnvVar) == "1"
}

func reportBackgroundSuccess(paths daemonctl.Paths) {
	if !isBackgroundChild() {
		return
	}
	_ = daemonctl.WriteStatusReady(paths.StatusFile)
}

func reportBackgroundFailure(paths daemonctl.Paths, err error) {
	if !isBackgroundChild() {
		return
	}
	_ = daemonctl.WriteStatusError(paths.StatusFile, err)
}
