package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"digital.vasic.netprobe/pkg/env"
	"digital.vasic.netprobe/pkg/store"
)

func newResultsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results <scenario-id>",
		Short: "Show the stored verdicts and result counts of a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := env.NewLoader()
			err := loader.Load(v.GetString("env-file"))
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load env file: %w", err)
			}
			dbCfg, err := env.LoadDatabase(loader)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			db, err := store.Open(ctx, dbCfg)
			if err != nil {
				return err
			}
			defer db.Close()

			id := args[0]
			results, err := db.Results(ctx, id)
			if err != nil {
				return err
			}
			evaluations, err := db.CountEvaluations(ctx, id)
			if err != nil {
				return err
			}
			summary, err := db.Summary(ctx, id)
			if err != nil {
				return err
			}
			printResults(cmd.OutOrStdout(), id, results, evaluations, summary)
			return nil
		},
	}
	cmd.Flags().String("env-file", ".env", "file with DB_* settings")
	return cmd
}
