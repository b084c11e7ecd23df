package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/essim/config"
	"github.com/kilianp07/essim/core/demand"
	"github.com/kilianp07/essim/infra/mqtt"
)

var publishOpts struct {
	csvPath  string
	interval time.Duration
}

var demandCmd = &cobra.Command{
	Use:   "demand",
	Short: "Demand related commands",
}

var demandPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a CSV demand schedule on the MQTT demand topics",
	RunE:  publishDemand,
}

func init() {
	demandPublishCmd.Flags().StringVar(&publishOpts.csvPath, "csv", "", "schedule file with tick,site_id,power_kw rows")
	demandPublishCmd.Flags().DurationVar(&publishOpts.interval, "interval", 0, "pause between ticks")
	_ = demandPublishCmd.MarkFlagRequired("csv")
	demandCmd.AddCommand(demandPublishCmd)
	rootCmd.AddCommand(demandCmd)
}

func publishDemand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	sched, err := demand.LoadCSV(publishOpts.csvPath, false)
	if err != nil {
		return err
	}
	pub, err := mqtt.NewDemandPublisher(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	defer pub.Close()
	n, err := pub.PublishSchedule(ctx, sched, publishOpts.interval)
	if _, ferr := fmt.Fprintf(cmd.OutOrStdout(), "published %d ticks for %d sites\n", n, len(sched.Sites())); ferr != nil {
		return ferr
	}
	return err
}
