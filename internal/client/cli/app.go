// Package cli implements the interactive admin console. It mirrors the
// server's collections in an optimistic cache and pushes edits in the
// background.
package cli

import (
	"bufio"
	"context"
	"os"

	"github.com/dmitrijs2005/sitekeeper/internal/client/api"
	"github.com/dmitrijs2005/sitekeeper/internal/client/cache"
	"github.com/dmitrijs2005/sitekeeper/internal/client/config"
	"github.com/dmitrijs2005/sitekeeper/internal/client/snapshot"
	"github.com/dmitrijs2005/sitekeeper/internal/logging"
)

// App wires the HTTP client, the optimistic cache and the snapshot store
// behind the REPL commands.
type App struct {
	config *config.Config
	api    *api.Client
	cache  *cache.Cache
	snap   *snapshot.Store
	logger logging.Logger
	reader *bufio.Reader
}

// NewApp builds the client stack from config.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	snap, err := snapshot.Open(ctx, c.SnapshotPath)
	if err != nil {
		return nil, err
	}

	apiClient := api.NewClient(c.ServerURL)
	docCache := cache.New(apiClient, snap, logger, c.PushQueueSize)

	return &App{
		config: c,
		api:    apiClient,
		cache:  docCache,
		snap:   snap,
		logger: logger,
		reader: bufio.NewReader(os.Stdin),
	}, nil
}

// Run hydrates the cache, starts the background workers and enters the REPL.
// It returns when the user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer a.snap.Close()

	if err := a.cache.Hydrate(ctx, cache.DefaultCollections); err != nil {
		return err
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.cache.StartPusher(workerCtx)
	a.cache.StartReconciler(workerCtx, a.config.ReconcileInterval, cache.DefaultCollections)

	runREPL(ctx, a, a.status, bufio.NewScanner(os.Stdin))

	cancel()
	a.cache.Wait()
	return nil
}

func (a *App) isLoggedIn() bool {
	return a.api.IsLoggedIn()
}

func (a *App) status() string {
	if a.isLoggedIn() {
		return "admin"
	}
	return "guest"
}
