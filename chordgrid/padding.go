package chordgrid

import "math"

const (
	defaultBPM           = 120.0
	defaultTimeSignature = 4

	// Lead-ins shorter than this are treated as the track starting on
	// the first detected beat.
	minLeadInSeconds = 0.05

	// A sub-beat gap longer than this fraction of a beat still earns
	// one padding cell, so a barely-visible lead-in is not rounded away.
	minLeadInBeatRatio = 0.2
)

// CalculatePaddingAndShift computes how many synthetic no-chord beats
// to prepend for the silent lead-in before the first detected beat,
// and the rotation that best aligns the padded sequence to downbeats.
//
// When chords are supplied the shift comes from CalculateOptimalShift;
// otherwise a purely position-based fallback is used. Whole measures
// of padding are discarded since they add no informative lead-in.
func CalculatePaddingAndShift(firstBeatTime, bpm float64, timeSignature int, chords []string) PaddingShift {
	firstBeatTime = clampSeconds(firstBeatTime)
	if !isFinitePositive(bpm) {
		bpm = defaultBPM
	}
	if timeSignature <= 0 {
		timeSignature = defaultTimeSignature
	}

	if firstBeatTime <= minLeadInSeconds {
		return PaddingShift{}
	}

	beatDuration := 60.0 / bpm
	padding := int(math.Floor(firstBeatTime / 60.0 * bpm))
	if padding == 0 {
		if firstBeatTime/beatDuration <= minLeadInBeatRatio {
			return PaddingShift{}
		}
		padding = 1
	}

	if padding >= timeSignature {
		padding = padding % timeSignature
		if padding == 0 {
			// The raw lead-in was a whole number of measures; keep a
			// visible remainder rather than collapsing it to nothing.
			padding = timeSignature - 1
		}
	}

	var shift int
	if len(chords) > 0 {
		shift = CalculateOptimalShift(chords, timeSignature, padding)
	} else {
		position := padding % timeSignature
		if position != 0 {
			shift = (timeSignature - position + 1) % timeSignature
		}
	}

	return PaddingShift{
		PaddingCount:      padding,
		ShiftCount:        shift,
		TotalPaddingCount: padding + shift,
	}
}

// clampSeconds forces a timestamp to a finite, non-negative value so
// malformed upstream data degrades to zero padding instead of NaN math.
func clampSeconds(t float64) float64 {
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return 0
	}
	return t
}

func isFinitePositive(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0) && x > 0
}
