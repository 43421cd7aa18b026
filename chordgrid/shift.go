package chordgrid

// CalculateOptimalShift picks the rotation in [0, timeSignature) that
// lands the most chord changes on metrical downbeats.
//
// A chord change is counted for a candidate shift only when all of the
// following hold at index i:
//   - (paddingCount+shift+i) % timeSignature == 0, i.e. the cell is a
//     downbeat under that rotation;
//   - the label is a real chord, not a no-chord sentinel;
//   - i is the start of the chord's occurrence (i == 0 or the previous
//     label differs);
//   - the label differs from the last real chord seen on any earlier
//     downbeat.
//
// Sentinels never update the last-seen downbeat chord. Ties between
// shifts are broken toward the smallest shift value.
func CalculateOptimalShift(chords []string, timeSignature, paddingCount int) int {
	if len(chords) == 0 {
		return 0
	}
	if timeSignature <= 0 {
		timeSignature = defaultTimeSignature
	}
	if paddingCount < 0 {
		paddingCount = 0
	}

	bestShift := 0
	bestCount := -1

	for shift := 0; shift < timeSignature; shift++ {
		count := 0
		lastDownbeatChord := ""

		for i, chord := range chords {
			if (paddingCount+shift+i)%timeSignature != 0 {
				continue
			}
			if IsNoChord(chord) {
				continue
			}

			isChordStart := i == 0 || chords[i-1] != chord
			if isChordStart && chord != lastDownbeatChord {
				count++
			}
			lastDownbeatChord = chord
		}

		// Strict > keeps the smallest shift on ties.
		if count > bestCount {
			bestCount = count
			bestShift = shift
		}
	}

	return bestShift
}
