package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cronhub/internal/cron"
	"cronhub/internal/services/scheduler"
)

func newAddCmd(a *app) *cobra.Command {
	var (
		expr, tz, every, message string
		disabled                 bool
	)
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a job",
		Example: `  cronhub add backup --cron "30 2 * * *" --tz Europe/Berlin --message "nightly"
  cronhub add heartbeat --every 5m`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := scheduleFromFlags(expr, tz, every, a.cfg.Scheduler.Timezone)
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(ctx context.Context, svc *scheduler.Service) error {
				job, err := svc.AddJob(ctx, args[0], sched, message, !disabled)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tnext %s\n", job.ID, job.Name, fmtMs(job.State.NextRunAtMs))
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&expr, "cron", "", "5-field cron expression")
	f.StringVar(&tz, "tz", "", "IANA timezone for --cron (default scheduler.timezone)")
	f.StringVar(&every, "every", "", "fixed interval, e.g. 30s or 5m")
	f.StringVar(&message, "message", "", "payload handed to the handler")
	f.BoolVar(&disabled, "disabled", false, "add the job disabled")
	cmd.MarkFlagsMutuallyExclusive("cron", "every")
	cmd.MarkFlagsOneRequired("cron", "every")
	return cmd
}

func scheduleFromFlags(expr, tz, every, defaultTZ string) (cron.Schedule, error) {
	if every != "" {
		d, err := time.ParseDuration(every)
		if err != nil {
			return cron.Schedule{}, fmt.Errorf("--every: %w", err)
		}
		if d < time.Millisecond {
			return cron.Schedule{}, fmt.Errorf("--every: %s is below 1ms", d)
		}
		return cron.Every(d.Milliseconds()), nil
	}
	if tz == "" {
		tz = strings.TrimSpace(defaultTZ)
	}
	if tz == "" {
		return cron.Schedule{}, errors.New("--tz is required when scheduler.timezone is not configured")
	}
	return cron.Cron(expr, tz), nil
}

func newListCmd(a *app) *cobra.Command {
	var all, asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List jobs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(cmd.Context(), func(ctx context.Context, svc *scheduler.Service) error {
				jobs, err := svc.ListJobs(ctx, all)
				if err != nil {
					return err
				}
				if asJSON {
					if jobs == nil {
						jobs = []cron.Job{}
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(jobs)
				}
				return writeTable(cmd.OutOrStdout(), jobs)
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include disabled jobs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func writeTable(w io.Writer, jobs []cron.Job) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tENABLED\tSCHEDULE\tNEXT\tLAST\tSTATUS")
	for _, j := range jobs {
		status := j.State.LastStatus
		if status == "" {
			status = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\t%s\t%s\n",
			j.ID, j.Name, j.Enabled, j.Schedule.String(),
			fmtMs(j.State.NextRunAtMs), fmtMs(j.State.LastRunAtMs), status)
	}
	return tw.Flush()
}

func newEnableCmd(a *app, enabled bool) *cobra.Command {
	use, short := "enable ID", "Enable a job and schedule its next run"
	if !enabled {
		use, short = "disable ID", "Disable a job"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(ctx context.Context, svc *scheduler.Service) error {
				job, err := svc.EnableJob(ctx, args[0], enabled)
				if err != nil {
					return err
				}
				if job == nil {
					return notFound(args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tenabled=%t\tnext %s\n", job.ID, job.Enabled, fmtMs(job.State.NextRunAtMs))
				return nil
			})
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove ID",
		Aliases: []string{"rm"},
		Short:   "Remove a job",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(ctx context.Context, svc *scheduler.Service) error {
				removed, err := svc.RemoveJob(ctx, args[0])
				if err != nil {
					return err
				}
				if !removed {
					return notFound(args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	}
}

func newTriggerCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "trigger ID",
		Short: "Run a job now with the configured handler",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(ctx context.Context, svc *scheduler.Service) error {
				ran, err := svc.RunJob(ctx, args[0], force)
				if err != nil {
					return err
				}
				if !ran {
					job, err := svc.GetJob(ctx, args[0])
					if err != nil {
						return err
					}
					if job == nil {
						return notFound(args[0])
					}
					return fmt.Errorf("job %s is disabled; use --force", args[0])
				}
				job, err := svc.GetJob(ctx, args[0])
				if err != nil {
					return err
				}
				if job == nil {
					// Removed by another process while running.
					return notFound(args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tstatus=%s", job.ID, job.State.LastStatus)
				if job.State.LastError != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "\terror=%s", job.State.LastError)
				}
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "run even if the job is disabled")
	return cmd
}
