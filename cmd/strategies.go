package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/essim/app/plugins"
)

var listAll bool

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the available charging strategies",
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds := []plugins.Kind{plugins.KindStrategy}
		if listAll {
			kinds = plugins.Kinds()
		}
		for _, k := range kinds {
			for _, name := range plugins.Names(k) {
				if listAll {
					if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", k, name); err != nil {
						return err
					}
					continue
				}
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

func init() {
	strategiesCmd.Flags().BoolVar(&listAll, "all", false, "also list demand sources and telemetry sinks")
	rootCmd.AddCommand(strategiesCmd)
}
