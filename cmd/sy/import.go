package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/sprintyard/internal/ghimport"
	"github.com/zulandar/sprintyard/internal/logging"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import issues from external trackers",
	}

	cmd.AddCommand(newImportGitHubCmd())
	return cmd
}

func newImportGitHubCmd() *cobra.Command {
	var (
		configPath string
		boardID    uint
		reporterID uint
		labels     []string
	)

	cmd := &cobra.Command{
		Use:   "github <owner/repo>",
		Short: "Import open GitHub issues into a board's backlog",
		Long: `Imports open issues (not pull requests) from a GitHub repository into the
backlog of a board. Issues imported earlier are skipped. Uses github.token
from the config when set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportGitHub(cmd, configPath, args[0], boardID, reporterID, labels)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Sprintyard config file")
	cmd.Flags().UintVar(&boardID, "board", 0, "target board id (required)")
	cmd.Flags().UintVar(&reporterID, "reporter", 0, "user id recorded as reporter (required)")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "only import issues with these labels")
	cmd.MarkFlagRequired("board")
	cmd.MarkFlagRequired("reporter")
	return cmd
}

func runImportGitHub(cmd *cobra.Command, configPath, repo string, boardID, reporterID uint, labels []string) error {
	owner, name, ok := splitRepo(repo)
	if !ok {
		return fmt.Errorf("repository must be owner/repo, got %q", repo)
	}
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	log := logging.NewWithWriter(cfg.Env, cmd.ErrOrStderr())

	res, err := ghimport.New(gormDB, log, cfg.GitHub.Token).Import(context.Background(), boardID, reporterID, ghimport.Opts{
		Owner:  owner,
		Repo:   name,
		Labels: labels,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d issues from %s (%d already present)\n", res.Imported, repo, res.Skipped)
	return nil
}

func splitRepo(s string) (owner, repo string, ok bool) {
	owner, repo, ok = strings.Cut(s, "/")
	return owner, repo, ok && owner != "" && repo != "" && !strings.Contains(repo, "/")
}
