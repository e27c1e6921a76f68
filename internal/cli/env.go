package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/marcin-skalski/repo-manager/internal/app"
	"github.com/marcin-skalski/repo-manager/internal/clone"
	"github.com/marcin-skalski/repo-manager/internal/config"
	"github.com/marcin-skalski/repo-manager/internal/git"
	"github.com/marcin-skalski/repo-manager/internal/github"
	"github.com/marcin-skalski/repo-manager/internal/hidden"
	"github.com/marcin-skalski/repo-manager/internal/loader"
	"github.com/marcin-skalski/repo-manager/internal/logging"
	"github.com/marcin-skalski/repo-manager/internal/sortorder"
	"github.com/marcin-skalski/repo-manager/internal/storage"
)

// env is everything a command works with, built from the config.
type env struct {
	cfg     *config.Config
	log     *logging.Logger
	logger  *slog.Logger
	storage *storage.Storage
	stores  []*hidden.Store
	loader  *loader.Loader
	app     *app.App
}

func newEnv(configPath string, quiet bool) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logging.Setup(logging.Options{File: cfg.LogFile, Level: cfg.Log.Level, Quiet: quiet})
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	logger := log.Logger

	st := storage.New(logger)
	notCloned := hidden.NewStore(hidden.NotCloned, st, logger)
	cloned := hidden.NewStore(hidden.Cloned, st, logger)
	if err := st.Activate(cfg.StateFile); err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("open state: %w", err)
	}

	fallback, _ := sortorder.Parse(cfg.SortOrder)
	order := sortorder.NewSetting(st, fallback, logger)
	st.OnActivate(order.Reload)

	gh := github.NewClient(logger)
	g := git.NewClient(logger)
	l := loader.New(loader.Options{
		SearchPaths: cfg.SearchPaths,
		Interval:    cfg.RefreshInterval,
		Concurrency: cfg.Concurrency,
		UserLogin:   cfg.GitHub.User,
	}, gh, g, logger)

	a := app.New(notCloned, cloned, order, l, clone.NewCloner(g, gh, logger), app.Options{
		CloneDir:      cfg.CloneDir,
		SearchPaths:   cfg.SearchPaths,
		NoSearchPaths: len(cfg.SearchPaths) == 0,
	}, logger)

	return &env{
		cfg:     cfg,
		log:     log,
		logger:  logger,
		storage: st,
		stores:  []*hidden.Store{notCloned, cloned},
		loader:  l,
		app:     a,
	}, nil
}

// runBackground starts the state file watcher and the periodic loader.
func (e *env) runBackground(ctx context.Context) {
	go func() {
		if err := e.storage.Watch(ctx); err != nil && ctx.Err() == nil {
			e.logger.Warn("state watcher stopped", "err", err)
		}
	}()
	go func() {
		if err := e.loader.Run(ctx); err != nil && ctx.Err() == nil {
			e.logger.Error("loader stopped", "err", err)
		}
	}()
}

func (e *env) Close() error {
	for _, s := range e.stores {
		s.Close()
	}
	return e.log.Close()
}
