package progress

import (
	"sync"

	"github.com/pterm/pterm"
)

// Bar tracks completed/total messages for one folder and renders a progress
// bar. It is purely observational and never affects control flow.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	label   string
	total   int
	done    int
	mu      sync.Mutex
	enabled bool
}

// New creates a progress bar for a folder. The bar is only rendered when
// logLevel is "info"; at other levels logging carries the information
// instead. A total of zero is valid (empty folder).
func New(label string, total int, logLevel string) *Bar {
	bar := &Bar{
		label:   label,
		total:   total,
		enabled: logLevel == "info",
	}

	if bar.enabled && total > 0 {
		pb, _ := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle("Exporting " + label).
			Start()
		bar.pb = pb
	}

	return bar
}

// Increment records one processed message, success or failure.
func (b *Bar) Increment() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.done++
	if b.pb != nil {
		b.pb.Increment()
	}
}

// FinishWithMessage stops the bar and prints the folder summary.
func (b *Bar) FinishWithMessage(summary string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pb != nil {
		if b.pb.Current < b.total {
			b.pb.Current = b.total
		}
		_, _ = b.pb.Stop()
	}
	if b.enabled {
		pterm.Success.Printf("%s: %s\n", b.label, summary)
	}
}

// Done reports how many messages have been counted so far.
func (b *Bar) Done() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}
