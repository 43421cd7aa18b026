package chordgrid

import (
	"encoding/json"
	"strings"
)

// NoChordLabel is the sentinel used for synthetic lead-in cells.
const NoChordLabel = "N.C."

// Beat is a detected time position in the audio.
type Beat struct {
	Time    float64 `json:"time"`
	BeatNum int     `json:"beatNum,omitempty"`
}

// BeatList accepts both historical wire shapes for the beats array:
// a bare array of timestamps ([0.5, 1.0, ...]) or an array of beat
// objects ([{"time":0.5,"beatNum":1}, ...]). The shape is resolved
// once here, at the JSON boundary, so downstream code only ever sees
// []Beat.
type BeatList []Beat

// UnmarshalJSON decodes either wire shape, element by element, so
// mixed arrays produced by older upstream versions still parse.
func (bl *BeatList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	beats := make([]Beat, 0, len(raw))
	for _, elem := range raw {
		var ts float64
		if err := json.Unmarshal(elem, &ts); err == nil {
			beats = append(beats, Beat{Time: ts})
			continue
		}

		var beat Beat
		if err := json.Unmarshal(elem, &beat); err != nil {
			return err
		}
		beats = append(beats, beat)
	}

	*bl = beats
	return nil
}

// SynchronizedChord is a chord label aligned to the index of the beat
// it starts on, as produced by the upstream chord recognition model.
type SynchronizedChord struct {
	Chord     string `json:"chord"`
	BeatIndex int    `json:"beatIndex"`
	BeatNum   int    `json:"beatNum,omitempty"`
}

// BeatDetection carries the beat tracker's global estimates.
type BeatDetection struct {
	TimeSignature int     `json:"time_signature,omitempty"`
	BPM           float64 `json:"bpm,omitempty"`
}

// AnalysisResult is the combined output of the upstream beat and chord
// detection services.
type AnalysisResult struct {
	SynchronizedChords []SynchronizedChord `json:"synchronizedChords"`
	Beats              BeatList            `json:"beats"`
	BeatDetection      BeatDetection       `json:"beatDetectionResult"`
	ChordModel         string              `json:"chordModel,omitempty"`
}

// PaddingShift is the lead-in composition computed for a grid:
// PaddingCount synthetic no-chord beats followed by ShiftCount empty
// rotation cells, all preceding the first real beat.
type PaddingShift struct {
	PaddingCount      int `json:"paddingCount"`
	ShiftCount        int `json:"shiftCount"`
	TotalPaddingCount int `json:"totalPaddingCount"`
}

// AudioMapping records where a real chord landed in the final visual
// sequence so playback highlighting can map a visual cell back to its
// un-padded audio timestamp.
type AudioMapping struct {
	Chord       string  `json:"chord"`
	Timestamp   float64 `json:"timestamp"`
	VisualIndex int     `json:"visualIndex"`
	AudioIndex  int     `json:"audioIndex"`
}

// GridData is the UI-ready grid. Chords and Beats always have equal
// length; beat cells inserted by the shift rotation carry no timestamp
// and marshal to JSON null.
type GridData struct {
	Chords               []string       `json:"chords"`
	Beats                []*float64     `json:"beats"`
	HasPadding           bool           `json:"hasPadding"`
	PaddingCount         int            `json:"paddingCount"`
	ShiftCount           int            `json:"shiftCount"`
	TotalPaddingCount    int            `json:"totalPaddingCount"`
	OriginalAudioMapping []AudioMapping `json:"originalAudioMapping"`
}

// IsNoChord reports whether a label is one of the "no chord" sentinels
// emitted by the recognition models.
func IsNoChord(chord string) bool {
	switch strings.TrimSpace(chord) {
	case "", "N.C.", "N/C", "N":
		return true
	}
	return false
}
