package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"digital.vasic.netprobe/pkg/config"
)

func newValidateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a scenario configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			cfg, err := config.Load(v.GetString("config"))
			if err != nil {
				return err
			}
			specs, errs := cfg.Validate(time.Now())
			for _, e := range errs {
				fmt.Fprintf(out, "%s %s\n", color.RedString("error:"), e)
			}
			fmt.Fprintf(out, "%d of %d enabled scenarios valid\n",
				len(specs), len(cfg.Enabled()))
			if len(errs) > 0 {
				return fmt.Errorf("%d configuration errors", len(errs))
			}
			return nil
		},
	}
	cmd.Flags().String("config", "main.json", "scenario configuration file")
	return cmd
}

func newNextCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "List the upcoming due times of every valid scenario",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v.GetString("config"))
			if err != nil {
				return err
			}
			now := time.Now()
			specs, errs := cfg.Validate(now)
			for _, e := range errs {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.YellowString("skipped:"), e)
			}
			return printUpcoming(cmd.OutOrStdout(), specs, now, v.GetInt("count"))
		},
	}
	cmd.Flags().String("config", "main.json", "scenario configuration file")
	cmd.Flags().Int("count", 3, "due times to list per scenario")
	return cmd
}
