package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cronhub/internal/admin"
	"cronhub/internal/services/scheduler"
	logx "cronhub/pkg/logx"
	"cronhub/pkg/systemd"
)

// shutdownGrace bounds how long run waits for in-flight handlers and admin
// requests after a stop signal.
const shutdownGrace = 30 * time.Second

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.run(ctx)
		},
	}
}

func (a *app) run(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := scheduler.NewMetrics(reg)
	if err != nil {
		return err
	}
	svc, closeStore, err := a.openService(metrics)
	if err != nil {
		return err
	}
	defer closeStore()

	var srv *admin.Server
	if a.cfg.Admin.Enabled {
		srv = admin.New(admin.Config{
			Addr:          a.cfg.AdminAddr(),
			Token:         a.cfg.Admin.Token,
			AllowInsecure: a.cfg.Admin.AllowInsecure,
			Pprof:         a.cfg.Admin.Pprof,
		}, svc, reg, a.log.With(logx.String("comp", "admin")))
		if err := srv.Start(); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := svc.Start(gctx); err != nil {
		if srv != nil {
			_ = srv.Stop(context.Background())
		}
		return err
	}
	notify := systemd.NewNotifier(a.log)
	notify.Ready()
	if st, err := svc.Status(gctx); err == nil {
		notify.Status(fmt.Sprintf("%d jobs, %d enabled", st.Jobs, st.EnabledJobs))
	}

	g.Go(func() error { return notify.Watchdog(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		notify.Stopping()
		svc.Stop()

		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if srv != nil {
			if err := srv.Stop(sctx); err != nil {
				a.log.Warn("admin shutdown incomplete", logx.Err(err))
			}
		}
		if err := svc.Wait(sctx); err != nil {
			a.log.Warn("handlers still running at exit", logx.Err(err))
			return err
		}
		return nil
	})
	return g.Wait()
}
