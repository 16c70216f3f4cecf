package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/ledgerbook/ledgerbook/internal/platform/cache"
	"github.com/ledgerbook/ledgerbook/internal/reports"
	"github.com/ledgerbook/ledgerbook/jobs"
)

func newJobsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Enqueue and inspect background jobs",
	}
	cmd.AddCommand(
		newWarmupJobCommand(opts),
		newDeliverJobCommand(opts),
		newJobStatsCommand(opts),
	)
	return cmd
}

func (o *options) jobClient() (*jobs.Client, error) {
	redisOpts, err := cache.AsynqOptions(o.redisAddr)
	if err != nil {
		return nil, err
	}
	return jobs.NewClient(redisOpts), nil
}

func newWarmupJobCommand(opts *options) *cobra.Command {
	var companies []int64
	cmd := &cobra.Command{
		Use:   "warmup",
		Short: "Regenerate cached reports for every company or the given ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.jobClient()
			if err != nil {
				return err
			}
			defer client.Close()
			info, err := client.EnqueueWarmup(cmd.Context(), companies...)
			if err != nil {
				return err
			}
			opts.log().Info("job enqueued", slog.String("type", info.Type), slog.String("id", info.ID))
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s %s\n", info.Type, info.ID)
			return nil
		},
	}
	cmd.Flags().Int64SliceVar(&companies, "company", nil, "company ids to warm (default all)")
	return cmd
}

func newDeliverJobCommand(opts *options) *cobra.Command {
	var (
		payload jobs.DeliverPayload
		to      string
	)
	cmd := &cobra.Command{
		Use:   "deliver",
		Short: "Mail one report as a CSV attachment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, addr := range strings.Split(to, ",") {
				if addr = strings.TrimSpace(addr); addr != "" {
					payload.Recipients = append(payload.Recipients, addr)
				}
			}
			client, err := opts.jobClient()
			if err != nil {
				return err
			}
			defer client.Close()
			info, err := client.EnqueueDeliver(cmd.Context(), payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s %s\n", info.Type, info.ID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&payload.CompanyID, "company", 1, "company id")
	cmd.Flags().StringVar(&payload.Report, "report", reports.ReportBalanceSheet,
		fmt.Sprintf("report to send: %s, %s or %s", reports.ReportBalanceSheet, reports.ReportProfitLoss, reports.ReportAging))
	cmd.Flags().StringVar(&payload.AsOf, "as-of", "", "as-of date (default end of previous month)")
	cmd.Flags().StringVar(&to, "to", "", "comma separated recipients")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newJobStatsCommand(opts *options) *cobra.Command {
	var scheduled int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue counters and upcoming scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			redisOpts, err := cache.AsynqOptions(opts.redisAddr)
			if err != nil {
				return err
			}
			inspector := asynq.NewInspector(redisOpts)
			defer inspector.Close()

			info, err := inspector.GetQueueInfo(jobs.QueueDefault)
			if err != nil {
				return fmt.Errorf("inspect queue: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "queue\t%s\n", info.Queue)
			fmt.Fprintf(tw, "pending\t%d\n", info.Pending)
			fmt.Fprintf(tw, "active\t%d\n", info.Active)
			fmt.Fprintf(tw, "scheduled\t%d\n", info.Scheduled)
			fmt.Fprintf(tw, "retry\t%d\n", info.Retry)
			fmt.Fprintf(tw, "archived\t%d\n", info.Archived)
			fmt.Fprintf(tw, "processed today\t%d\n", info.Processed)
			fmt.Fprintf(tw, "failed today\t%d\n", info.Failed)
			if scheduled > 0 {
				tasks, err := inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(scheduled), asynq.Page(1))
				if err != nil {
					return err
				}
				for _, t := range tasks {
					fmt.Fprintf(tw, "next %s\t%s\n", t.Type, t.NextProcessAt.Format(time.RFC3339))
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&scheduled, "scheduled", 10, "number of scheduled tasks to list")
	return cmd
}
