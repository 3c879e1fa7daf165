package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g. NETPROBE_ADDR.
const envPrefix = "NETPROBE"

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "netprobe",
		Short: "Scheduled network throughput probes with pass/fail evaluation",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return v.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceUsage: true, // don't print help when subcommands return an error
	}

	root.AddCommand(
		newRunCmd(v),
		newStatusCmd(v),
		newStopCmd(v),
		newValidateCmd(v),
		newNextCmd(v),
		newResultsCmd(v),
	)
	return root
}
