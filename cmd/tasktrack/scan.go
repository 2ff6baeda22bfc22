package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dshills/tasktrack/internal/monitor"
	"github.com/dshills/tasktrack/internal/scan"
	"github.com/dshills/tasktrack/internal/tasklist"
	"github.com/dshills/tasktrack/internal/uiloop"
)

func newScanCmd(g *globalFlags) *cobra.Command {
	var minPriority string

	cmd := &cobra.Command{
		Use:   "scan [folders...]",
		Short: "List the annotations of the workspace once",
		RunE: func(cmd *cobra.Command, args []string) error {
			floor, err := scan.ParsePriority(minPriority)
			if err != nil {
				return err
			}

			e, err := setup(cmd.Context(), g, args)
			if err != nil {
				return err
			}
			defer e.close()

			tasks, err := scanOnce(cmd.Context(), e)
			if err != nil {
				return err
			}

			var shown []*tasklist.Task
			for _, t := range tasks {
				if t.Priority >= floor {
					shown = append(shown, t)
				}
			}
			p := newPrinter(cmd.OutOrStdout(), g.noColor)
			p.list(shown)
			p.summary(shown)
			return nil
		},
	}

	cmd.Flags().StringVarP(&minPriority, "min-priority", "p", "low", "Hide tasks below this priority (low, normal, high)")
	return cmd
}

// scanOnce walks the workspace and scans every file without debouncing.
func scanOnce(ctx context.Context, e *environment) ([]*tasklist.Task, error) {
	loop := uiloop.New(uiloop.WithLogger(e.logger))
	defer loop.Close()

	tree := monitor.NewTreeMonitor(e.ws, e.fsys, monitor.WithLogger(e.logger))
	defer tree.Close()

	var snap *monitor.TreeSnapshot
	err := loop.Invoke(ctx, func(ictx context.Context) error {
		var err error
		snap, err = tree.Drain(ictx)
		return err
	})
	if err != nil {
		return nil, err
	}
	items, err := tree.Walk(ctx, snap)
	if err != nil {
		return nil, err
	}

	m := tasklist.NewManager(e.fsys, e.store, tasklist.WithLogger(e.logger))
	defer m.Dispose()
	m.ApplyTreeChanges(items)
	if err := m.RunScans(ctx, true); err != nil {
		return nil, err
	}
	return m.Tasks(), nil
}
