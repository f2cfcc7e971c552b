package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const barWidth = 30

// Bar is a single-line terminal progress bar for batch tagging runs.
type Bar struct {
	total     int
	current   int
	mu        sync.Mutex
	startTime time.Time
	lastDraw  time.Time
	done      bool
}

// New creates a bar for the given number of files.
func New(total int) *Bar {
	now := time.Now()
	return &Bar{
		total:     total,
		startTime: now,
		lastDraw:  now,
	}
}

// Increment records one finished file and redraws at most every 250ms.
func (b *Bar) Increment() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current++

	now := time.Now()
	if now.Sub(b.lastDraw) > 250*time.Millisecond || b.current >= b.total {
		b.draw()
		b.lastDraw = now
	}
}

// Finish completes the bar and moves to a fresh line.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}
	b.current = b.total
	b.draw()
	fmt.Println()
	b.done = true
}

func (b *Bar) draw() {
	if b.done || b.total == 0 {
		return
	}

	frac := float64(b.current) / float64(b.total)
	filled := int(frac * barWidth)
	if filled > barWidth {
		filled = barWidth
	}

	elapsed := time.Since(b.startTime)
	eta := "--"
	if b.current > 0 && b.current < b.total {
		perFile := elapsed / time.Duration(b.current)
		eta = formatDuration(perFile * time.Duration(b.total-b.current))
	}

	fmt.Printf("\r[%s%s] %d/%d tracks (%.0f%%)  elapsed %s  eta %s   ",
		strings.Repeat("#", filled),
		strings.Repeat("-", barWidth-filled),
		b.current,
		b.total,
		frac*100,
		formatDuration(elapsed),
		eta,
	)
}

func formatDuration(d time.Duration) string {
	s := int(d.Seconds())
	switch {
	case s < 60:
		return fmt.Sprintf("%ds", s)
	case s < 3600:
		return fmt.Sprintf("%dm%02ds", s/60, s%60)
	default:
		return fmt.Sprintf("%dh%02dm", s/3600, (s%3600)/60)
	}
}
