// Package api serves the Sprintyard JSON HTTP API.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/sprintyard/internal/activity"
	"github.com/zulandar/sprintyard/internal/assist"
	"github.com/zulandar/sprintyard/internal/ghimport"
	"github.com/zulandar/sprintyard/internal/issue"
	"github.com/zulandar/sprintyard/internal/scope"
	"github.com/zulandar/sprintyard/internal/sprint"
	"gorm.io/gorm"
)

// githubImporter is satisfied by *ghimport.Importer.
type githubImporter interface {
	Import(ctx context.Context, boardID, reporterID uint, opts ghimport.Opts) (ghimport.Result, error)
}

// Deps holds the services the handlers call.
type Deps struct {
	DB           *gorm.DB
	Log          *slog.Logger
	Assistant    *assist.Assistant
	Materializer *sprint.Materializer
	Issues       *issue.Service
	Recomputer   *scope.Recomputer
	Recorder     *activity.Recorder
	Importer     githubImporter // nil disables GitHub import

	// Threshold is the scope threshold for sprints created without one.
	Threshold float64
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Deps
	Port int
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(d.Log))
	registerRoutes(router, d)
	return router
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully and waits for pending activity writes.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("api: db is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           NewRouter(opts.Deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			opts.Log.Warn("api shutdown", "error", err)
		}
	}()

	opts.Log.Info("api listening", "port", opts.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	if opts.Recorder != nil {
		opts.Recorder.Wait()
	}
	return nil
}
