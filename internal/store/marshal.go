package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/tlcomm/internal/ir"
)

// marshalKernel converts a kernel to JSON TEXT for storage.
// HTML escaping is disabled so op names and string literals are stored as
// written.
func marshalKernel(k *ir.Kernel) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(k); err != nil {
		return "", fmt.Errorf("marshal kernel: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalKernel parses JSON TEXT produced by marshalKernel.
func unmarshalKernel(data string) (*ir.Kernel, error) {
	var k ir.Kernel
	if err := json.Unmarshal([]byte(data), &k); err != nil {
		return nil, fmt.Errorf("unmarshal kernel: %w", err)
	}
	return &k, nil
}
