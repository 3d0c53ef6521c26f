package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a spinner that follows module visits.
type Tracker struct {
	bar   *progressbar.ProgressBar
	out   io.Writer
	label string
	count int
}

// NewSpinner creates a spinner on stderr for an analysis of unknown size.
func NewSpinner(label string) *Tracker {
	return newSpinner(os.Stderr, label)
}

func newSpinner(w io.Writer, label string) *Tracker {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	return &Tracker{bar: bar, out: w, label: label}
}

// Visit records one finished module and shows its name.
func (t *Tracker) Visit(module string) {
	t.count++
	t.bar.Describe(fmt.Sprintf("%s %s", t.label, module))
	_ = t.bar.Add(1)
}

// Count returns the number of modules recorded.
func (t *Tracker) Count() int {
	return t.count
}

// FinishSuccess clears the spinner completely (no output).
func (t *Tracker) FinishSuccess() {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
}

// FinishError clears the spinner and prints an error message.
func (t *Tracker) FinishError(err error) {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
	fmt.Fprintf(t.out, "  %s error: %v\n", t.label, err)
}
