package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	cfgwatcher "github.com/dshills/tasktrack/internal/config/watcher"
	"github.com/dshills/tasktrack/internal/orchestrator"
	"github.com/dshills/tasktrack/internal/project/filestore"
	"github.com/dshills/tasktrack/internal/project/watcher"
	"github.com/dshills/tasktrack/internal/uiloop"
)

func newWatchCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [folders...]",
		Short: "Print annotation changes as files are edited",
		Long: `watch prints the current annotations and then one +/- line for every
annotation that appears or disappears. A configuration file given with
--config is reloaded when it changes. SIGHUP rescans every file. Stop with
Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := setup(ctx, g, args)
			if err != nil {
				return err
			}
			defer e.close()

			loop := uiloop.New(uiloop.WithLogger(e.logger))
			defer loop.Close()

			o, err := orchestrator.New(orchestrator.Options{
				Workspace: e.ws,
				Documents: filestore.NewFileStore(e.fsys),
				Config:    e.store,
				Loop:      loop,
				FS:        e.fsys,
				Logger:    e.logger,
				FileWatcher: func() (watcher.Watcher, error) {
					return watcher.NewFSNotifyWatcher()
				},
				TreeWatcher: func() (watcher.Watcher, error) {
					return watcher.NewFSNotifyWatcher(watcher.WithIgnore(watcher.DefaultIgnore()))
				},
			})
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout(), g.noColor)
			sub := o.Subscribe(p.change)
			defer sub.Unsubscribe()

			if err := o.Start(ctx); err != nil {
				return err
			}
			defer o.Stop()

			if g.configPath != "" {
				closeReload, err := watchConfig(ctx, e)
				if err != nil {
					e.logger.Warn("configuration reload disabled", "path", g.configPath, "error", err)
				} else {
					defer closeReload()
				}
			}

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hup:
					if err := o.Rescan(); err != nil {
						e.logger.Warn("rescan skipped", "error", err)
					}
				}
			}
		},
	}
}

// watchConfig reloads the configuration file whenever a change to it settles.
func watchConfig(ctx context.Context, e *environment) (func(), error) {
	w := cfgwatcher.New(e.fsys, cfgwatcher.WithLogger(e.logger))
	if err := w.Watch(e.flags.configPath); err != nil {
		return nil, err
	}
	w.OnChange(func(ev cfgwatcher.Event) {
		if ev.Op == cfgwatcher.OpRemove {
			e.logger.Warn("configuration file removed, keeping current settings", "path", ev.Path)
			return
		}
		e.reload()
	})
	w.Start(ctx)
	return w.Stop, nil
}
