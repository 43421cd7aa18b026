package utils

import (
	"strings"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty string", ""},
		{"short value", "C G Am F"},
		{"grid-like JSON", `{"chords":["N.C.","N.C.","C","G"],"beats":[0,0.5,1.0,1.5]}`},
		{"repetitive payload", strings.Repeat(`{"chord":"C","beatIndex":0},`, 500)},
		{"unicode", "♩ = 120, ¾ time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressed, err := CompressString(tt.input)
			if err != nil {
				t.Fatalf("CompressString failed: %v", err)
			}

			got, err := DecompressString(compressed)
			if err != nil {
				t.Fatalf("DecompressString failed: %v", err)
			}
			if got != tt.input {
				t.Errorf("round trip mismatch: got %q, want %q", got, tt.input)
			}
		})
	}
}

func TestCompressShrinksRepetitiveData(t *testing.T) {
	input := strings.Repeat(`{"chord":"Am","beatIndex":7},`, 1000)

	compressed, err := CompressString(input)
	if err != nil {
		t.Fatalf("CompressString failed: %v", err)
	}
	if len(compressed) >= len(input) {
		t.Errorf("compressed size %d not smaller than input %d", len(compressed), len(input))
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	if _, err := DecompressString("not base64 at all!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := DecompressString("aGVsbG8gd29ybGQ="); err == nil {
		t.Error("expected error for non-gzip payload")
	}
}
