package testutils

import (
	"encoding/json"

	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// MustJSON marshals v or panics; for building expected documents inline.
func MustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// AssertJSONEqual compares two JSON documents structurally and fails with
// the rendered delta. Key order and whitespace do not matter; array order
// does.
func AssertJSONEqual(t TestingT, expected, actual []byte) {
	t.Helper()

	diff, err := gojsondiff.New().Compare(expected, actual)
	if err != nil {
		t.Errorf("failed to compare JSON documents: %v", err)
		return
	}
	if !diff.Modified() {
		return
	}

	var left map[string]interface{}
	if err := json.Unmarshal(expected, &left); err != nil {
		t.Errorf("expected document is not a JSON object: %v", err)
		return
	}
	rendered, err := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
	}).Format(diff)
	if err != nil {
		t.Errorf("failed to render JSON diff: %v", err)
		return
	}
	t.Errorf("JSON mismatch (-expected +actual):\n%s", rendered)
}
