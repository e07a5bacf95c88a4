package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/sprintyard/internal/activity"
	"github.com/zulandar/sprintyard/internal/api"
	"github.com/zulandar/sprintyard/internal/assist"
	"github.com/zulandar/sprintyard/internal/completion"
	"github.com/zulandar/sprintyard/internal/ghimport"
	"github.com/zulandar/sprintyard/internal/issue"
	"github.com/zulandar/sprintyard/internal/logging"
	"github.com/zulandar/sprintyard/internal/notify"
	"github.com/zulandar/sprintyard/internal/quota"
	"github.com/zulandar/sprintyard/internal/scope"
	"github.com/zulandar/sprintyard/internal/sprint"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Starts the Sprintyard HTTP API. When notifiers are configured, scope
alerts are posted to chat and the sprint digest runs on notify.digest_cron.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Sprintyard config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	log := logging.NewWithWriter(cfg.Env, cmd.ErrOrStderr())
	if port == 0 {
		port = cfg.Server.Port
	}

	var client completion.Client
	if c, err := completion.NewAnthropic(cfg.AI); err == nil {
		client = c
	} else {
		log.Warn("AI features disabled", "error", err)
	}

	recorder := activity.NewRecorder(gormDB, log)
	recomputer := scope.NewRecomputer(gormDB, log)

	notifier, err := buildNotifier(cfg.Notify, log)
	if err != nil {
		return err
	}
	var sched *notify.Scheduler
	if notifier != nil {
		recomputer.OnAlert(notify.ScopeAlertHook(notifier, log))
		if cfg.Notify.DigestCron != "" {
			sched, err = notify.NewScheduler(gormDB, notifier, log, cfg.Notify.DigestCron)
			if err != nil {
				return err
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if sched != nil {
		sched.Start()
		defer func() {
			stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			sched.Stop(stopCtx)
		}()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Sprintyard API listening on :%d\n", port)
	return api.Start(ctx, api.StartOpts{
		Deps: api.Deps{
			DB:           gormDB,
			Log:          log,
			Assistant:    assist.New(gormDB, log, client, quota.New(gormDB, cfg.AI.QuotaLimit, cfg.AI.QuotaResetDays), recorder, cfg.AI),
			Materializer: sprint.NewMaterializer(gormDB, log, cfg.Scope.DefaultThresholdPct, recorder, recomputer),
			Issues:       issue.NewService(gormDB, log, recorder, recomputer),
			Recomputer:   recomputer,
			Recorder:     recorder,
			Importer:     ghimport.New(gormDB, log, cfg.GitHub.Token),
			Threshold:    cfg.Scope.DefaultThresholdPct,
		},
		Port: port,
	})
}
