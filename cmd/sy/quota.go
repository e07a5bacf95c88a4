package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/sprintyard/internal/quota"
)

func newQuotaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect AI request quotas",
	}

	cmd.AddCommand(newQuotaShowCmd())
	return cmd
}

func newQuotaShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project's AI quota",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project id", args[0])
			if err != nil {
				return err
			}
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			st, err := quota.New(gormDB, cfg.AI.QuotaLimit, cfg.AI.QuotaResetDays).Check(context.Background(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Project %d AI quota\n", id)
			fmt.Fprintf(out, "  Used:      %d/%d\n", st.Used, st.Limit)
			fmt.Fprintf(out, "  Remaining: %d\n", st.Remaining)
			fmt.Fprintf(out, "  Resets:    %s\n", st.ResetDate.Format("2006-01-02"))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Sprintyard config file")
	return cmd
}
