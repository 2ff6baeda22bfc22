package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/dshills/tasktrack/internal/config"
	"github.com/dshills/tasktrack/internal/config/notify"
	"github.com/dshills/tasktrack/internal/project/vfs"
	"github.com/dshills/tasktrack/internal/project/workspace"
)

// environment is what every command runs against.
type environment struct {
	flags  *globalFlags
	fsys   vfs.VFS
	store  *config.Store
	level  *slog.LevelVar
	logger *slog.Logger
	ws     *workspace.Workspace
	sub    *notify.Subscription
}

func setup(ctx context.Context, g *globalFlags, folders []string) (*environment, error) {
	if g.envFile != "" {
		if err := godotenv.Load(g.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", g.envFile, err)
		}
	}

	e := &environment{flags: g, fsys: vfs.NewOSFS(), level: new(slog.LevelVar)}

	opts, err := e.loadOptions()
	if err != nil {
		return nil, err
	}
	e.store, err = config.NewStore(opts)
	if err != nil {
		return nil, err
	}

	e.level.Set(e.store.Current().LogLevel())
	e.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: e.level}))
	e.sub = e.store.Subscribe(func(cfg *config.Config) {
		e.level.Set(cfg.LogLevel())
	})

	if g.workspaceFile != "" {
		e.ws, err = workspace.Open(ctx, e.fsys, g.workspaceFile)
	} else {
		if len(folders) == 0 {
			folders = []string{"."}
		}
		e.ws, err = workspace.NewFromPaths(folders...)
	}
	if err != nil {
		e.close()
		return nil, fmt.Errorf("workspace: %w", err)
	}
	return e, nil
}

// loadOptions reads defaults, then the config file, then the environment,
// then the command line.
func (e *environment) loadOptions() (config.Options, error) {
	opts := config.Defaults()
	if e.flags.configPath != "" {
		var err error
		if opts, err = config.LoadFile(e.fsys, e.flags.configPath); err != nil {
			return config.Options{}, err
		}
	}
	if err := config.ApplyEnv(&opts); err != nil {
		return config.Options{}, err
	}
	if e.flags.logLevel != "" {
		opts.LogLevel = e.flags.logLevel
	}
	return opts, nil
}

// reload re-reads the configuration. A rejected configuration leaves the
// current one in effect.
func (e *environment) reload() {
	opts, err := e.loadOptions()
	if err == nil {
		err = e.store.Apply(opts)
	}
	if err != nil {
		e.logger.Warn("configuration reload rejected", "path", e.flags.configPath, "error", err)
		return
	}
	e.logger.Info("configuration reloaded", "path", e.flags.configPath)
}

func (e *environment) close() {
	if e.sub != nil {
		e.sub.Unsubscribe()
	}
	if e.store != nil {
		e.store.Close()
	}
	if e.ws != nil {
		_ = e.ws.Close(context.Background())
	}
}
