package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter shows the current connection phase with the elapsed time
// on a single, continuously rewritten line.
//
//	p := NewProgressPrinter(os.Stderr, "Connecting to AA:BB", "Connecting")
//	p.Start()
//	defer p.Stop()
//	p.SetPhase("Discovering AMS")
//
// A ProgressPrinter is single-use; Stop must be called to release the
// goroutine started by Start.
type ProgressPrinter struct {
	w      io.Writer
	prefix string

	mu      sync.Mutex
	phase   string
	started time.Time
	stop    chan struct{}
	done    chan struct{}
}

// NewProgressPrinter creates a printer writing to w.
func NewProgressPrinter(w io.Writer, prefix, phase string) *ProgressPrinter {
	return &ProgressPrinter{w: w, prefix: prefix, phase: phase}
}

// progressEnabled reports whether w is an interactive terminal.
func progressEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Start begins redrawing the progress line. Panics if called twice.
func (p *ProgressPrinter) Start() {
	p.mu.Lock()
	if p.stop != nil {
		p.mu.Unlock()
		panic("ProgressPrinter.Start called more than once")
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.started = time.Now()
	p.print(p.phase, 0)
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(progressUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.mu.Lock()
				p.print(p.phase, int(time.Since(p.started).Seconds()))
				p.mu.Unlock()
			}
		}
	}()
}

// SetPhase changes the phase shown on the next redraw.
func (p *ProgressPrinter) SetPhase(phase string) {
	p.mu.Lock()
	p.phase = phase
	p.mu.Unlock()
}

// Stop ends the redraw loop and clears the line. Safe to call more than once.
func (p *ProgressPrinter) Stop() {
	p.mu.Lock()
	stop := p.stop
	if stop == nil || p.done == nil {
		p.mu.Unlock()
		return
	}
	done := p.done
	p.done = nil
	p.mu.Unlock()

	close(stop)
	<-done
	fmt.Fprint(p.w, clearLineSequence)
}

func (p *ProgressPrinter) print(phase string, seconds int) {
	if seconds > 0 {
		fmt.Fprintf(p.w, "\r%s (%s %ds)   ", p.prefix, phase, seconds)
	} else {
		fmt.Fprintf(p.w, "\r%s (%s...)   ", p.prefix, phase)
	}
}
