// Package engine implements the per-mode scan engines: BR/EDR inquiry and
// LMP probing, LE discovery with LL/SMP probing and passive sniffing, SDP
// browsing and GATT enumeration. Engines that discover devices produce a
// Result; feature probes and browses print their findings and produce none.
package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Result is a typed scan result. It is created by exactly one engine,
// rendered once and stored once by the caller, then discarded.
type Result interface {
	// Kind tags the result for display framing: "BR", "LE" or "GATT".
	Kind() string
	// Render writes the engine-specific human-readable body.
	Render(w io.Writer) error
	// Store persists the result under dir and returns the written path.
	Store(dir string) (string, error)
}

// storeJSON writes v as indented JSON to <dir>/<kind>/<timestamp>-<suffix>.json.
func storeJSON(dir, kind, suffix string, v any) (string, error) {
	sub := filepath.Join(dir, strings.ToLower(kind))
	if err := os.MkdirAll(sub, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s.json", time.Now().Format("20060102-150405"), suffix)
	path := filepath.Join(sub, name)

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store %s result: %w", kind, err)
	}
	return path, nil
}

// renderFeatureBits prints one line per set feature bit, using names where
// the table has them.
func renderFeatureBits(w io.Writer, features [8]byte, names []string) {
	for bit := 0; bit < 64; bit++ {
		if features[bit/8]&(1<<(bit%8)) == 0 {
			continue
		}
		name := "Reserved"
		if bit < len(names) && names[bit] != "" {
			name = names[bit]
		}
		fmt.Fprintf(w, "    [bit %2d] %s\n", bit, name)
	}
}
