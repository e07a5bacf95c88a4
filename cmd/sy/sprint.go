package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zulandar/sprintyard/internal/logging"
	"github.com/zulandar/sprintyard/internal/notify"
	"github.com/zulandar/sprintyard/internal/report"
	"github.com/zulandar/sprintyard/internal/scope"
	"github.com/zulandar/sprintyard/internal/sprint"
)

func newSprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sprint",
		Short: "Inspect and maintain sprints",
	}

	cmd.AddCommand(newSprintListCmd())
	cmd.AddCommand(newSprintScopeCmd())
	cmd.AddCommand(newSprintBaselineCmd())
	cmd.AddCommand(newSprintResetAlertCmd())
	cmd.AddCommand(newSprintReportCmd())
	return cmd
}

func newSprintListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active sprints with progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSprintList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Sprintyard config file")
	return cmd
}

func runSprintList(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	sprints, err := sprint.ListActive(gormDB)
	if err != nil {
		return err
	}
	if len(sprints) == 0 {
		fmt.Fprintln(out, "No active sprints.")
		return nil
	}
	fmt.Fprintf(out, "%-6s %-6s %-28s %-12s %s\n", "ID", "BOARD", "NAME", "POINTS", "SCOPE")
	for _, s := range sprints {
		p, err := sprint.ProgressOf(gormDB, s.ID)
		if err != nil {
			return err
		}
		flag := "ok"
		if s.ScopeAlerted {
			flag = "ALERT"
		}
		fmt.Fprintf(out, "%-6d %-6d %-28s %-12s %s\n", s.ID, s.BoardID, truncate(s.Name, 28),
			fmt.Sprintf("%g/%g", p.DonePoints, p.Points), flag)
	}
	return nil
}

func newSprintScopeCmd() *cobra.Command {
	var (
		configPath string
		recompute  bool
	)

	cmd := &cobra.Command{
		Use:   "scope <sprint-id>",
		Short: "Show a sprint's scope-creep position",
		Long: `Shows baseline, current points and creep ratio for a sprint. With
--recompute the alert state is re-evaluated and persisted, and a newly
latched alert is posted to the configured notifiers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSprintScope(cmd, configPath, args[0], recompute)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Sprintyard config file")
	cmd.Flags().BoolVar(&recompute, "recompute", false, "re-evaluate and persist the alert state")
	return cmd
}

func runSprintScope(cmd *cobra.Command, configPath, rawID string, recompute bool) error {
	id, err := parseID("sprint id", rawID)
	if err != nil {
		return err
	}
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	var r scope.Result
	if recompute {
		r, err = scope.Recompute(gormDB, id)
	} else {
		r, err = scope.Status(gormDB, id)
	}
	if err != nil {
		return err
	}
	printScope(cmd, r)

	if r.Triggered {
		fmt.Fprintln(cmd.OutOrStdout(), "Alert latched by this recompute.")
		log := logging.NewWithWriter(cfg.Env, cmd.ErrOrStderr())
		n, err := buildNotifier(cfg.Notify, log)
		if err != nil {
			return err
		}
		if n != nil {
			notify.ScopeAlertHook(n, log)(context.Background(), r)
		}
	}
	return nil
}

func printScope(cmd *cobra.Command, r scope.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sprint %d (%s) on board %d\n", r.SprintID, r.SprintName, r.BoardID)
	fmt.Fprintf(out, "  Baseline:  %g pts\n", r.Baseline)
	fmt.Fprintf(out, "  Current:   %g pts\n", r.Current)
	if r.Skipped {
		fmt.Fprintln(out, "  Creep:     n/a (no baseline)")
	} else {
		fmt.Fprintf(out, "  Creep:     %.1f%% (threshold %.0f%%)\n", r.Ratio*100, r.Threshold*100)
	}
	fmt.Fprintf(out, "  Alerted:   %v\n", r.Alerted)
}

func newSprintBaselineCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "baseline <sprint-id>",
		Short: "Re-snapshot a sprint's baseline from its current points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("sprint id", args[0])
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			baseline, err := sprint.SetBaseline(gormDB, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sprint %d baseline set to %g pts\n", id, baseline)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Sprintyard config file")
	return cmd
}

func newSprintResetAlertCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "reset-alert <sprint-id>",
		Short: "Clear a sprint's latched scope alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("sprint id", args[0])
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := scope.ResetAlert(gormDB, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sprint %d scope alert cleared\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Sprintyard config file")
	return cmd
}

func newSprintReportCmd() *cobra.Command {
	var (
		configPath string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "report <sprint-id>",
		Short: "Write a PDF sprint report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSprintReport(cmd, configPath, args[0], output)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Sprintyard config file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default sprint-<id>.pdf)")
	return cmd
}

func runSprintReport(cmd *cobra.Command, configPath, rawID, output string) error {
	id, err := parseID("sprint id", rawID)
	if err != nil {
		return err
	}
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if output == "" {
		output = fmt.Sprintf("sprint-%d.pdf", id)
	}

	d, err := report.Load(gormDB, id)
	if err != nil {
		return err
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	if err := report.Write(f, d); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", output, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
