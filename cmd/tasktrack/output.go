package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/dshills/tasktrack/internal/orchestrator"
	"github.com/dshills/tasktrack/internal/scan"
	"github.com/dshills/tasktrack/internal/tasklist"
)

// printer writes tasks one per line, colouring the marker by priority.
type printer struct {
	mu       sync.Mutex
	w        io.Writer
	priority map[scan.Priority]*color.Color
	added    *color.Color
	removed  *color.Color
	dim      *color.Color
}

func newPrinter(w io.Writer, noColor bool) *printer {
	p := &printer{
		w: w,
		priority: map[scan.Priority]*color.Color{
			scan.PriorityHigh:   color.New(color.FgRed, color.Bold),
			scan.PriorityNormal: color.New(color.FgYellow),
			scan.PriorityLow:    color.New(color.FgCyan),
		},
		added:   color.New(color.FgGreen),
		removed: color.New(color.FgRed),
		dim:     color.New(color.Faint),
	}
	if noColor {
		for _, c := range p.priority {
			c.DisableColor()
		}
		p.added.DisableColor()
		p.removed.DisableColor()
		p.dim.DisableColor()
	}
	return p
}

func (p *printer) line(prefix string, t *tasklist.Task) {
	marker := p.priority[t.Priority].Sprint(t.Token)
	fmt.Fprintf(p.w, "%s%s:%d: %s %s", prefix, t.Path, t.Line, marker, t.Body)
	if t.Projects != "" {
		fmt.Fprint(p.w, p.dim.Sprintf(" [%s]", t.Projects))
	}
	fmt.Fprintln(p.w)
}

// list prints tasks.
func (p *printer) list(tasks []*tasklist.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range tasks {
		p.line("", t)
	}
}

// summary prints the per-priority totals.
func (p *printer) summary(tasks []*tasklist.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	counts := make(map[scan.Priority]int)
	for _, t := range tasks {
		counts[t.Priority]++
	}
	fmt.Fprintf(p.w, "\n%d tasks (%s %d, %s %d, %s %d)\n", len(tasks),
		p.priority[scan.PriorityHigh].Sprint("high"), counts[scan.PriorityHigh],
		p.priority[scan.PriorityNormal].Sprint("normal"), counts[scan.PriorityNormal],
		p.priority[scan.PriorityLow].Sprint("low"), counts[scan.PriorityLow])
}

// change prints a diff as +/- lines.
func (p *printer) change(ev orchestrator.TasksChanged) {
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := append([]*tasklist.Task(nil), ev.Removed...)
	added := append([]*tasklist.Task(nil), ev.Added...)
	tasklist.SortTasks(removed)
	tasklist.SortTasks(added)
	for _, t := range removed {
		p.line(p.removed.Sprint("- "), t)
	}
	for _, t := range added {
		p.line(p.added.Sprint("+ "), t)
	}
}
