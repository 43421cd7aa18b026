package chordgrid

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func comprehensiveAnalysis() AnalysisResult {
	return AnalysisResult{
		ChordModel: "chord-cnn-lstm",
		Beats:      BeatList{{Time: 1.0}, {Time: 1.5}, {Time: 2.0}, {Time: 2.5}},
		SynchronizedChords: []SynchronizedChord{
			{Chord: "C", BeatIndex: 0},
			{Chord: "G", BeatIndex: 1},
		},
		BeatDetection: BeatDetection{BPM: 120, TimeSignature: 4},
	}
}

func TestBuildGridEmptyInput(t *testing.T) {
	tests := []struct {
		name   string
		result AnalysisResult
	}{
		{"zero value", AnalysisResult{}},
		{"beats without chords", AnalysisResult{Beats: BeatList{{Time: 0.5}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid := BuildGrid(tt.result)
			if len(grid.Chords) != 0 || len(grid.Beats) != 0 {
				t.Errorf("expected empty grid, got %d chords / %d beats", len(grid.Chords), len(grid.Beats))
			}
			if grid.HasPadding || grid.PaddingCount != 0 || grid.ShiftCount != 0 {
				t.Errorf("expected zero padding, got %+v", grid)
			}
			if grid.Chords == nil || grid.Beats == nil || grid.OriginalAudioMapping == nil {
				t.Error("empty grid must marshal to [] not null")
			}
		})
	}
}

func TestBuildGridComprehensive(t *testing.T) {
	grid := BuildGrid(comprehensiveAnalysis())

	// 1.0s lead-in at 120bpm is two padding beats; ["C","G"] with two
	// padding cells rotates best at shift 1.
	if grid.PaddingCount != 2 || grid.ShiftCount != 1 || grid.TotalPaddingCount != 3 {
		t.Fatalf("unexpected padding composition: %+v", grid)
	}
	if !grid.HasPadding {
		t.Error("expected HasPadding")
	}

	wantChords := []string{"N.C.", "N.C.", "", "C", "G"}
	if !reflect.DeepEqual(grid.Chords, wantChords) {
		t.Errorf("chords = %v, want %v", grid.Chords, wantChords)
	}
	if len(grid.Beats) != len(grid.Chords) {
		t.Fatalf("beats length %d != chords length %d", len(grid.Beats), len(grid.Chords))
	}

	// Padding timestamps evenly span [0, firstBeatTime).
	wantBeats := []float64{0, 0.5}
	for i, want := range wantBeats {
		if grid.Beats[i] == nil || *grid.Beats[i] != want {
			t.Errorf("padding beat %d = %v, want %v", i, grid.Beats[i], want)
		}
	}
	if grid.Beats[2] != nil {
		t.Errorf("shift cell should carry no timestamp, got %v", *grid.Beats[2])
	}
	if grid.Beats[3] == nil || *grid.Beats[3] != 1.0 {
		t.Errorf("first real beat = %v, want 1.0", grid.Beats[3])
	}
	if grid.Beats[4] == nil || *grid.Beats[4] != 1.5 {
		t.Errorf("second real beat = %v, want 1.5", grid.Beats[4])
	}

	wantMapping := []AudioMapping{
		{Chord: "C", Timestamp: 1.0, VisualIndex: 3, AudioIndex: 0},
		{Chord: "G", Timestamp: 1.5, VisualIndex: 4, AudioIndex: 1},
	}
	if !reflect.DeepEqual(grid.OriginalAudioMapping, wantMapping) {
		t.Errorf("mapping = %+v, want %+v", grid.OriginalAudioMapping, wantMapping)
	}
}

func TestBuildGridBTCNoLeadIn(t *testing.T) {
	result := AnalysisResult{
		ChordModel: "btc-sl",
		Beats:      BeatList{{Time: 0.02}, {Time: 0.52}, {Time: 1.02}},
		SynchronizedChords: []SynchronizedChord{
			{Chord: "Am", BeatIndex: 0},
			{Chord: "Am", BeatIndex: 1},
			{Chord: "F", BeatIndex: 2},
		},
		BeatDetection: BeatDetection{BPM: 120, TimeSignature: 4},
	}

	grid := BuildGrid(result)

	if grid.HasPadding || grid.PaddingCount != 0 || grid.ShiftCount != 0 {
		t.Fatalf("expected no padding for near-zero lead-in, got %+v", grid)
	}
	if len(grid.Chords) != 3 || len(grid.Beats) != 3 {
		t.Fatalf("expected 3 cells, got %d/%d", len(grid.Chords), len(grid.Beats))
	}
	for k, m := range grid.OriginalAudioMapping {
		if m.VisualIndex != m.AudioIndex || m.AudioIndex != k {
			t.Errorf("mapping %d: visual %d audio %d, want identity", k, m.VisualIndex, m.AudioIndex)
		}
	}
}

func TestBuildGridOutOfRangeBeatIndex(t *testing.T) {
	result := AnalysisResult{
		ChordModel: "chord-cnn-lstm",
		Beats:      BeatList{{Time: 0.0}},
		SynchronizedChords: []SynchronizedChord{
			{Chord: "C", BeatIndex: 0},
			{Chord: "G", BeatIndex: 7},
			{Chord: "F", BeatIndex: -1},
		},
		BeatDetection: BeatDetection{BPM: 120, TimeSignature: 4},
	}

	grid := BuildGrid(result)

	if len(grid.Chords) != len(grid.Beats) {
		t.Fatalf("beats length %d != chords length %d", len(grid.Beats), len(grid.Chords))
	}
	// Chords with dangling beat indices keep their cell but get no
	// timestamp and no audio mapping entry.
	if got := len(grid.OriginalAudioMapping); got != 1 {
		t.Fatalf("expected 1 mapping entry, got %d", got)
	}
	last := grid.Beats[len(grid.Beats)-1]
	if last != nil {
		t.Errorf("dangling beat index should yield a null cell, got %v", *last)
	}
}

func TestBuildGridMalformedNumbers(t *testing.T) {
	result := AnalysisResult{
		ChordModel: "chord-cnn-lstm",
		Beats:      BeatList{{Time: math.NaN()}, {Time: -2}, {Time: math.Inf(1)}},
		SynchronizedChords: []SynchronizedChord{
			{Chord: "C", BeatIndex: 0},
			{Chord: "G", BeatIndex: 1},
			{Chord: "F", BeatIndex: 2},
		},
		BeatDetection: BeatDetection{BPM: math.Inf(1), TimeSignature: -3},
	}

	grid := BuildGrid(result)

	if grid.PaddingCount != 0 || grid.ShiftCount != 0 {
		t.Errorf("malformed numbers must degrade to zero padding, got %+v", grid)
	}
	if len(grid.Chords) != len(grid.Beats) {
		t.Fatalf("beats length %d != chords length %d", len(grid.Beats), len(grid.Chords))
	}
	for i, b := range grid.Beats {
		if b != nil && (math.IsNaN(*b) || math.IsInf(*b, 0) || *b < 0) {
			t.Errorf("cell %d: non-finite or negative timestamp %v leaked through", i, *b)
		}
	}
}

func TestBuildGridIdempotent(t *testing.T) {
	result := comprehensiveAnalysis()

	first := BuildGrid(result)
	second := BuildGrid(result)

	if !reflect.DeepEqual(first, second) {
		t.Error("BuildGrid is not deterministic for identical input")
	}
}

func TestGridDataJSONShape(t *testing.T) {
	grid := BuildGrid(comprehensiveAnalysis())

	data, err := json.Marshal(grid)
	if err != nil {
		t.Fatalf("failed to marshal grid: %v", err)
	}

	var decoded struct {
		Chords []string          `json:"chords"`
		Beats  []json.RawMessage `json:"beats"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to decode grid JSON: %v", err)
	}
	if len(decoded.Chords) != len(decoded.Beats) {
		t.Fatalf("JSON chords/beats length mismatch: %d vs %d", len(decoded.Chords), len(decoded.Beats))
	}
	// The shift cell sits between padding and real data and must be null.
	if string(decoded.Beats[2]) != "null" {
		t.Errorf("shift cell = %s, want null", decoded.Beats[2])
	}
}
