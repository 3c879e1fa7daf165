package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"digital.vasic.netprobe/pkg/httpclient"
)

func newStatusCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the scenario table of a running daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := httpclient.NewStatusClient(v.GetString("addr"))
			status, err := client.GetStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("query %s: %w", client.BaseURL(), err)
			}
			printStatus(cmd.OutOrStdout(), status, time.Now())
			return nil
		},
	}
	cmd.Flags().String("addr", httpclient.DefaultBaseURL, "daemon status address")
	return cmd
}

func newStopCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask a running daemon to drain and shut down",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := httpclient.NewStatusClient(v.GetString("addr"))
			if err := client.Stop(cmd.Context()); err != nil {
				return fmt.Errorf("stop %s: %w", client.BaseURL(), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("stop requested"))
			return nil
		},
	}
	cmd.Flags().String("addr", httpclient.DefaultBaseURL, "daemon status address")
	return cmd
}
