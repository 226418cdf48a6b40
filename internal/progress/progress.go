package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Progress tracks how many units of a batch (files, connections) are done
type Progress interface {
	// Add increments the progress by n
	Add(n int) error
	// Describe replaces the label shown next to the bar
	Describe(description string)
	// Close cleans up any resources used by the progress tracker
	Close()
}

// Noop is a progress tracker that does nothing
type Noop struct{}

func (p *Noop) Add(int) error {
	return nil
}

func (p *Noop) Describe(string) {}

func (p *Noop) Close() {}

// NewNoop creates a new no-op progress tracker
func NewNoop() *Noop {
	return &Noop{}
}

// Bar wraps a progressbar.ProgressBar to implement Progress
type Bar struct {
	bar *progressbar.ProgressBar
	out io.Writer
}

func (p *Bar) Add(n int) error {
	return p.bar.Add(n)
}

func (p *Bar) Describe(description string) {
	p.bar.Describe(description)
}

func (p *Bar) Close() {
	_ = p.bar.Finish()
	fmt.Fprint(p.out, "\r\033[K")
}

// NewBar creates a progress bar on stderr
func NewBar(total int, description string) *Bar {
	return newBar(os.Stderr, total, description)
}

func newBar(out io.Writer, total int, description string) *Bar {
	return &Bar{
		out: out,
		bar: progressbar.NewOptions(total,
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWriter(out),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			})),
	}
}

// New returns a bar when enabled is true and there is more than one unit of
// work, otherwise a no-op tracker
func New(enabled bool, total int, description string) Progress {
	if !enabled || total < 2 {
		return NewNoop()
	}
	return NewBar(total, description)
}
