// Package progress renders a progress bar for long-running CLI operations.
// A nil *Bar is valid and does nothing.
package progress

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

type Bar struct {
	bar *progressbar.ProgressBar
}

// New returns a bar with an initially unknown maximum, drawn on w only when w
// is a terminal.
func New(w io.Writer, description string) *Bar {
	visible := false
	if f, ok := w.(*os.File); ok {
		visible = isatty.IsTerminal(f.Fd())
	}

	return &Bar{bar: progressbar.NewOptions(0,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)}
}

// AddMax grows the expected number of steps.
func (b *Bar) AddMax(n int) {
	if b == nil {
		return
	}
	b.bar.ChangeMax64(b.bar.GetMax64() + int64(n))
}

func (b *Bar) Add(n int) {
	if b == nil {
		return
	}
	_ = b.bar.Add(n)
}

func (b *Bar) Describe(description string) {
	if b == nil {
		return
	}
	b.bar.Describe(description)
}

func (b *Bar) Finish() {
	if b == nil {
		return
	}
	_ = b.bar.Finish()
}
