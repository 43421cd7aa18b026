package chordgrid

import "strings"

// comprehensiveModelFamily identifies chord models whose grids always
// use the full padding strategy with N.C. lead-in cells.
const comprehensiveModelFamily = "chord-cnn-lstm"

// BuildGrid assembles the final visual sequence of (chord, timestamp)
// pairs from an analysis result. It is pure and deterministic: the
// same input always yields the same grid, malformed input degrades to
// a smaller (but still well-formed) grid, and no error is ever
// returned by design.
func BuildGrid(result AnalysisResult) GridData {
	if len(result.SynchronizedChords) == 0 {
		return emptyGrid()
	}

	bpm := result.BeatDetection.BPM
	if !isFinitePositive(bpm) {
		bpm = defaultBPM
	}
	timeSignature := result.BeatDetection.TimeSignature
	if timeSignature <= 0 {
		timeSignature = defaultTimeSignature
	}

	var firstBeatTime float64
	if len(result.Beats) > 0 {
		firstBeatTime = clampSeconds(result.Beats[0].Time)
	}

	labels := make([]string, len(result.SynchronizedChords))
	for i, sc := range result.SynchronizedChords {
		labels[i] = sc.Chord
	}

	ps := CalculatePaddingAndShift(firstBeatTime, bpm, timeSignature, labels)

	total := ps.TotalPaddingCount + len(result.SynchronizedChords)
	chords := make([]string, 0, total)
	beats := make([]*float64, 0, total)

	comprehensive := strings.Contains(result.ChordModel, comprehensiveModelFamily) ||
		ps.PaddingCount > 0 || ps.ShiftCount > 0

	if comprehensive {
		// Synthetic N.C. beats with timestamps evenly spanning the
		// silent lead-in [0, firstBeatTime).
		for i := 0; i < ps.PaddingCount; i++ {
			ts := firstBeatTime * float64(i) / float64(ps.PaddingCount)
			chords = append(chords, NoChordLabel)
			beats = append(beats, ptr(ts))
		}
	} else {
		// BTC-family grids space the lead-in cells by the BPM-derived
		// beat duration, counting back from the first detected beat.
		beatDuration := 60.0 / bpm
		for i := 0; i < ps.PaddingCount; i++ {
			ts := firstBeatTime - float64(ps.PaddingCount-i)*beatDuration
			if ts < 0 {
				ts = 0
			}
			chords = append(chords, "")
			beats = append(beats, ptr(ts))
		}
	}

	// Shift cells are pure rotation: no chord, no timestamp.
	for i := 0; i < ps.ShiftCount; i++ {
		chords = append(chords, "")
		beats = append(beats, nil)
	}

	mapping := make([]AudioMapping, 0, len(result.SynchronizedChords))
	for k, sc := range result.SynchronizedChords {
		var cell *float64
		if sc.BeatIndex >= 0 && sc.BeatIndex < len(result.Beats) {
			ts := clampSeconds(result.Beats[sc.BeatIndex].Time)
			cell = ptr(ts)
			mapping = append(mapping, AudioMapping{
				Chord:       sc.Chord,
				Timestamp:   ts,
				VisualIndex: ps.TotalPaddingCount + k,
				AudioIndex:  k,
			})
		}
		chords = append(chords, sc.Chord)
		beats = append(beats, cell)
	}

	return GridData{
		Chords:               chords,
		Beats:                beats,
		HasPadding:           ps.PaddingCount > 0,
		PaddingCount:         ps.PaddingCount,
		ShiftCount:           ps.ShiftCount,
		TotalPaddingCount:    ps.TotalPaddingCount,
		OriginalAudioMapping: mapping,
	}
}

func emptyGrid() GridData {
	return GridData{
		Chords:               []string{},
		Beats:                []*float64{},
		OriginalAudioMapping: []AudioMapping{},
	}
}

func ptr(f float64) *float64 {
	return &f
}
