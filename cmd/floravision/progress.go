package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"floravision/internal/logging"
	"floravision/internal/scheduler"
)

// progressPrinter renders batch and geocode progress. On a terminal it
// rewrites one status line; otherwise it prints sampled lines so redirected
// output stays short.
type progressPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	live    bool
	sampler *logging.ProgressSampler
	dirty   bool
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{
		out:     out,
		live:    isTerminal(out),
		sampler: logging.NewProgressSampler(10),
	}
}

// follow consumes events until the channel closes.
func (p *progressPrinter) follow(events <-chan scheduler.Event) {
	for ev := range events {
		p.handle(ev)
	}
}

func (p *progressPrinter) handle(ev scheduler.Event) {
	if ev.Kind != scheduler.EventProgress || ev.Total <= 0 {
		return
	}
	if ev.Category != scheduler.CategoryBatch && ev.Category != scheduler.CategoryGeocode {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	percent := float64(ev.Current) / float64(ev.Total) * 100
	line := fmt.Sprintf("[%s] %s (%.0f%%)", ev.Category, ev.Message, percent)
	if p.live {
		fmt.Fprint(p.out, ansiClearLine+line)
		p.dirty = true
		return
	}
	phase, _, _ := strings.Cut(ev.Message, " ")
	if p.sampler.ShouldLog(percent, string(ev.Category)+":"+phase) {
		fmt.Fprintln(p.out, line)
	}
}

// finish terminates a live line so later output starts cleanly.
func (p *progressPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.live && p.dirty {
		fmt.Fprint(p.out, ansiClearLine)
	}
	p.dirty = false
	p.sampler.Reset()
}
