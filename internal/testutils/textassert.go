package testutils

import (
	"fmt"
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
)

// TestingT is the subset of testing.T the asserters need.
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
}

// AssertRenderedText compares a rendered report against the expected text
// and fails with a unified diff. Trailing whitespace is ignored per line,
// since renders pad columns.
func AssertRenderedText(t TestingT, expected, actual string) {
	t.Helper()

	want := normalizeRender(expected)
	got := normalizeRender(actual)
	if want == got {
		return
	}

	edits := myers.ComputeEdits("", want, got)
	unified := gotextdiff.ToUnified("expected", "actual", want, edits)
	t.Errorf("rendered text mismatch:\n%s", fmt.Sprint(unified))
}

func normalizeRender(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n") + "\n"
}
