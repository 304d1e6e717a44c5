package testutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// recordingT captures assertion failures instead of failing the real test.
type recordingT struct {
	failures []string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Errorf(format string, _ ...interface{}) {
	r.failures = append(r.failures, format)
}

func TestAssertRenderedText(t *testing.T) {
	t.Run("equal modulo trailing whitespace", func(t *testing.T) {
		r := &recordingT{}
		AssertRenderedText(r, "Addr  RSSI\nAA    -40\n", "Addr  RSSI  \nAA    -40")
		assert.Empty(t, r.failures)
	})

	t.Run("mismatch fails with a diff", func(t *testing.T) {
		r := &recordingT{}
		AssertRenderedText(r, "Addr\nAA\n", "Addr\nBB\n")
		assert.Len(t, r.failures, 1)
	})
}

func TestAssertJSONEqual(t *testing.T) {
	t.Run("key order does not matter", func(t *testing.T) {
		r := &recordingT{}
		AssertJSONEqual(r,
			[]byte(`{"addr":"AA","rssi":-40}`),
			[]byte(`{"rssi":-40,"addr":"AA"}`))
		assert.Empty(t, r.failures)
	})

	t.Run("value mismatch fails", func(t *testing.T) {
		r := &recordingT{}
		AssertJSONEqual(r,
			[]byte(`{"addr":"AA"}`),
			[]byte(`{"addr":"BB"}`))
		assert.Len(t, r.failures, 1)
	})
}
