package main

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/term"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter displays a countdown line during a timed scan. It is
// single-use: Start at most once, then Stop exactly once. When stdout is
// not a terminal the printer stays silent, so piped output only carries
// results.
type ProgressPrinter struct {
	prefix    string
	duration  time.Duration
	startTime time.Time

	enabled  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewCountdownProgressPrinter creates a progress printer counting down from
// duration.
func NewCountdownProgressPrinter(prefix string, duration time.Duration) *ProgressPrinter {
	return &ProgressPrinter{
		prefix:   prefix,
		duration: duration,
		enabled:  term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressPrinter) Start() {
	if !p.enabled {
		return
	}
	p.stopChan = make(chan struct{})
	p.done = make(chan struct{})
	p.startTime = time.Now()

	fmt.Printf("\r%s...   ", p.prefix)

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(progressUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
				remaining := p.duration - time.Since(p.startTime)
				if remaining < 0 {
					remaining = 0
				}
				// Round to the nearest second.
				seconds := int(remaining.Seconds() + 0.5)
				fmt.Printf("\r%s (%ds)   ", p.prefix, seconds)
			}
		}
	}()
}

// Stop stops the progress display and clears the line. Safe to call when
// Start never ran.
func (p *ProgressPrinter) Stop() {
	if p.stopChan == nil {
		return
	}
	close(p.stopChan)
	<-p.done
	p.stopChan = nil

	fmt.Print(clearLineSequence)
}
