package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/sprintyard/internal/logging"
	"github.com/zulandar/sprintyard/internal/notify"
)

func newDigestCmd() *cobra.Command {
	var (
		configPath string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Send the active-sprint digest now",
		Long: `Builds the digest of active sprints that "sy serve" posts on notify.digest_cron
and sends it immediately. With --dry-run the digest is printed instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd, configPath, dryRun)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Sprintyard config file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the digest without sending it")
	return cmd
}

func runDigest(cmd *cobra.Command, configPath string, dryRun bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	now := time.Now().UTC()

	digests, err := notify.BuildDigest(gormDB, now)
	if err != nil {
		return err
	}
	ev := notify.FormatDigest(digests, now)
	if ev == nil {
		fmt.Fprintln(out, "No active sprints; nothing to send.")
		return nil
	}

	if dryRun {
		fmt.Fprintln(out, ev.Title)
		fmt.Fprintln(out, ev.Body)
		for _, f := range ev.Fields {
			fmt.Fprintf(out, "  %s: %s\n", f.Name, f.Value)
		}
		return nil
	}

	log := logging.NewWithWriter(cfg.Env, cmd.ErrOrStderr())
	n, err := buildNotifier(cfg.Notify, log)
	if err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("no notifiers configured; set notify.slack or notify.discord")
	}
	if err := n.Send(context.Background(), *ev); err != nil {
		return err
	}
	fmt.Fprintf(out, "Digest of %d sprints sent via %s\n", len(digests), n.Name())
	return nil
}
