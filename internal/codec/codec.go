// Package codec implements the wire encoding of DPS and NFS-e documents:
// gzip compression followed by standard base64.
package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// EncodingError reports malformed input on the decode path
type EncodingError struct {
	Op    string
	Cause error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("codec %s: %v", e.Op, e.Cause)
}

func (e *EncodingError) Unwrap() error {
	return e.Cause
}

// Encode compresses data and returns it as base64 text
func Encode(data []byte) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return "", fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode is the inverse of Encode. Surrounding whitespace is ignored.
func Decode(s string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, &EncodingError{Op: "base64", Cause: err}
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &EncodingError{Op: "gzip", Cause: err}
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, &EncodingError{Op: "gzip", Cause: err}
	}
	return out, nil
}
