package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/essim/app"
	"github.com/kilianp07/essim/config"
	"github.com/kilianp07/essim/infra/logger"
)

var runTicks int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation and print its summary",
	RunE:  run,
}

func init() {
	runCmd.Flags().IntVar(&runTicks, "ticks", -1, "number of ticks (default from config)")
	rootCmd.AddCommand(runCmd)
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	sum, runErr := svc.Run(ctx, runTicks)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		return err
	}
	return runErr
}
