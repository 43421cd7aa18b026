package chordgrid

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestBeatListUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected BeatList
		wantErr  bool
	}{
		{
			name:     "bare timestamps",
			input:    `[0.5, 1.0, 1.5]`,
			expected: BeatList{{Time: 0.5}, {Time: 1.0}, {Time: 1.5}},
		},
		{
			name:     "beat objects",
			input:    `[{"time":0.5,"beatNum":1},{"time":1.0,"beatNum":2}]`,
			expected: BeatList{{Time: 0.5, BeatNum: 1}, {Time: 1.0, BeatNum: 2}},
		},
		{
			name:     "mixed shapes",
			input:    `[0.5, {"time":1.0,"beatNum":2}]`,
			expected: BeatList{{Time: 0.5}, {Time: 1.0, BeatNum: 2}},
		},
		{
			name:     "empty array",
			input:    `[]`,
			expected: BeatList{},
		},
		{
			name:    "not an array",
			input:   `{"time":0.5}`,
			wantErr: true,
		},
		{
			name:    "unusable element",
			input:   `["half past nine"]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var bl BeatList
			err := json.Unmarshal([]byte(tt.input), &bl)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %s", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(bl, tt.expected) {
				t.Errorf("got %+v, want %+v", bl, tt.expected)
			}
		})
	}
}

func TestAnalysisResultUnmarshal(t *testing.T) {
	input := `{
		"synchronizedChords": [{"chord":"C","beatIndex":0},{"chord":"G","beatIndex":1,"beatNum":2}],
		"beats": [1.0, {"time":1.5,"beatNum":2}],
		"beatDetectionResult": {"time_signature": 3, "bpm": 90},
		"chordModel": "chord-cnn-lstm"
	}`

	var result AnalysisResult
	if err := json.Unmarshal([]byte(input), &result); err != nil {
		t.Fatalf("failed to unmarshal analysis result: %v", err)
	}

	if result.ChordModel != "chord-cnn-lstm" {
		t.Errorf("chordModel = %q", result.ChordModel)
	}
	if result.BeatDetection.TimeSignature != 3 || result.BeatDetection.BPM != 90 {
		t.Errorf("beat detection = %+v", result.BeatDetection)
	}
	if len(result.Beats) != 2 || result.Beats[1].BeatNum != 2 {
		t.Errorf("beats = %+v", result.Beats)
	}
	if len(result.SynchronizedChords) != 2 || result.SynchronizedChords[1].Chord != "G" {
		t.Errorf("synchronizedChords = %+v", result.SynchronizedChords)
	}
}

func TestIsNoChord(t *testing.T) {
	for _, label := range []string{"", "N.C.", "N/C", "N", " N.C. "} {
		if !IsNoChord(label) {
			t.Errorf("IsNoChord(%q) = false, want true", label)
		}
	}
	for _, label := range []string{"C", "G7", "Am", "N.C.7", "Nb"} {
		if IsNoChord(label) {
			t.Errorf("IsNoChord(%q) = true, want false", label)
		}
	}
}
