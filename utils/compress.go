package utils

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
)

// CompressString gzips the input at BestCompression and returns it
// base64 encoded so it can sit safely inside JSON and BoltDB values.
// Grid documents are repetitive JSON and compress very well.
func CompressString(input string) (string, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := w.Write([]byte(input)); err != nil {
		return "", fmt.Errorf("failed to compress value: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to flush compressed value: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecompressString reverses CompressString.
func DecompressString(input string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		return "", fmt.Errorf("failed to decode value: %w", err)
	}
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to open compressed value: %w", err)
	}
	defer r.Close()

	result, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to decompress value: %w", err)
	}
	return string(result), nil
}
