package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cronhub/internal/config"
	"cronhub/internal/runner"
	"cronhub/internal/services/scheduler"
	"cronhub/internal/storage"
	logx "cronhub/pkg/logx"
)

// app carries state shared by every subcommand.
type app struct {
	cfgPath   string
	storePath string
	logLevel  string

	cfg    *config.Config
	logSvc *logx.Service
	log    logx.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "cronhub",
		Short: "Persistent cron and interval job scheduler",
		Long: `cronhub keeps cron and interval jobs in a local store and dispatches
due jobs while "cronhub run" is active. Every other command edits the same
store and is safe to use while a scheduler is running.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logSvc != nil {
				_ = a.logSvc.Close()
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "path to config file (json or yaml)")
	pf.StringVar(&a.storePath, "store", "", "job store path (overrides store.path)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (overrides logging.level)")

	root.AddCommand(
		newRunCmd(a),
		newAddCmd(a),
		newListCmd(a),
		newEnableCmd(a, true),
		newEnableCmd(a, false),
		newRemoveCmd(a),
		newTriggerCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if p := strings.TrimSpace(a.storePath); p != "" {
		cfg.Store.Path = p
	}
	level := cfg.Logging.Level
	if a.logLevel != "" {
		level = a.logLevel
	} else if cmd.Name() != "run" && !verbose(level) {
		// One-shot commands print their result; keep stderr for problems.
		level = "warn"
	}
	a.cfg = cfg
	a.logSvc, a.log = logx.New(logx.Config{
		Level:   level,
		Console: cfg.Logging.Console,
		JSON:    cfg.Logging.JSON,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	return nil
}

func verbose(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return true
	}
	return false
}

func (a *app) openStore() (storage.Store, error) {
	busy, err := config.ParseDurationField("store.busy_timeout", a.cfg.Store.BusyTimeout)
	if err != nil {
		return nil, err
	}
	return storage.Open(storage.Config{
		Driver:      a.cfg.Store.Driver,
		Path:        a.cfg.Store.Path,
		BusyTimeout: busy,
	}, a.log)
}

// openService returns a Service over the configured store. The returned close
// releases the store.
func (a *app) openService(metrics *scheduler.Metrics) (*scheduler.Service, func(), error) {
	st, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}
	tick, err := a.cfg.TickInterval()
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	handler, err := a.handler()
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	svc, err := scheduler.New(scheduler.Config{
		Store:   st,
		Handler: handler,
		Tick:    tick,
		Watch:   a.cfg.WatchEnabled(),
		Log:     a.log.With(logx.String("comp", "scheduler")),
		Metrics: metrics,
	})
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return svc, func() { _ = st.Close() }, nil
}

func (a *app) handler() (scheduler.Handler, error) {
	if len(a.cfg.Handler.Command) == 0 {
		return runner.Log(a.log.With(logx.String("comp", "runner"))), nil
	}
	timeout, err := config.ParseDurationField("handler.timeout", a.cfg.Handler.Timeout)
	if err != nil {
		return nil, err
	}
	return &runner.Command{
		Argv:    a.cfg.Handler.Command,
		Timeout: timeout,
		Log:     a.log.With(logx.String("comp", "runner")),
	}, nil
}

// withService runs fn against a CRUD-only service (no loop, no metrics).
func (a *app) withService(ctx context.Context, fn func(context.Context, *scheduler.Service) error) error {
	svc, closeFn, err := a.openService(nil)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, svc)
}

func fmtMs(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return time.UnixMilli(*ms).Local().Format(time.RFC3339)
}

func notFound(id string) error {
	return fmt.Errorf("job %s not found", id)
}
