package testutils

import (
	"context"
	"strings"
	"sync"
)

// RecordingRunner is a hostcmd.Runner that records every argv it receives
// and replies from a script keyed by argv prefix.
type RecordingRunner struct {
	mu sync.Mutex

	// Outputs maps a space-joined argv prefix to canned output.
	Outputs map[string][]byte
	// Errs maps a space-joined argv prefix to an error.
	Errs map[string]error

	Commands [][]string
}

func NewRecordingRunner() *RecordingRunner {
	return &RecordingRunner{
		Outputs: make(map[string][]byte),
		Errs:    make(map[string]error),
	}
}

func (r *RecordingRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	argv := append([]string{name}, args...)

	r.mu.Lock()
	r.Commands = append(r.Commands, argv)
	r.mu.Unlock()

	joined := strings.Join(argv, " ")
	for prefix, err := range r.Errs {
		if strings.HasPrefix(joined, prefix) {
			return r.Outputs[prefix], err
		}
	}
	for prefix, out := range r.Outputs {
		if strings.HasPrefix(joined, prefix) {
			return out, nil
		}
	}
	return nil, nil
}

// Ran reports whether a command with the given space-joined prefix was run.
func (r *RecordingRunner) Ran(prefix string) bool {
	return r.CountRan(prefix) > 0
}

// CountRan returns how many recorded commands match the given prefix.
func (r *RecordingRunner) CountRan(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, argv := range r.Commands {
		if strings.HasPrefix(strings.Join(argv, " "), prefix) {
			n++
		}
	}
	return n
}

// CommandLines returns every recorded argv, space-joined, in order.
func (r *RecordingRunner) CommandLines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make([]string, 0, len(r.Commands))
	for _, argv := range r.Commands {
		lines = append(lines, strings.Join(argv, " "))
	}
	return lines
}
