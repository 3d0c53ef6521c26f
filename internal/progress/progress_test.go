package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestTrackerVisit(t *testing.T) {
	var buf bytes.Buffer
	tr := newSpinner(&buf, "analyzing")

	tr.Visit("app.cli")
	tr.Visit("app.util")
	if tr.Count() != 2 {
		t.Errorf("Count() = %d, want 2", tr.Count())
	}
	tr.FinishSuccess()
}

func TestTrackerFinishError(t *testing.T) {
	var buf bytes.Buffer
	tr := newSpinner(&buf, "analyzing")
	tr.FinishError(errors.New("entry point unresolvable"))

	if !strings.Contains(buf.String(), "analyzing error: entry point unresolvable") {
		t.Errorf("output = %q", buf.String())
	}
}
