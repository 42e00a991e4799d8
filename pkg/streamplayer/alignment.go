package streamplayer

import "github.com/drgolem/musictools/pkg/timebase"

const dualSinkThresholdFloor = 50 * timebase.Base / 1000 // 50ms

// dualSinkAligner tracks whether the secondary sink needs to be skipped
// until it catches back up to the primary, grounded on HandleSyncAudio2.
type dualSinkAligner struct {
	skip bool
}

// alignmentAction tells the output stage what to do with the secondary
// frame this iteration.
type alignmentAction int

const (
	secondaryWriteAsIs alignmentAction = iota
	secondaryWriteSilence
	secondarySkip
)

// decide computes ddiff = primaryDelay - secondaryDelay and returns the
// action to take for the secondary frame, given its duration. dumb
// suppresses the whole logic (secondary sink can't report delay).
func (a *dualSinkAligner) decide(primaryDelay, secondaryDelay, frameDuration int64, dumb bool) alignmentAction {
	if dumb {
		a.skip = false
		return secondaryWriteAsIs
	}

	threshold := max64(dualSinkThresholdFloor, frameDuration)
	ddiff := primaryDelay - secondaryDelay

	if ddiff > threshold {
		return secondaryWriteSilence
	}
	if ddiff < -threshold {
		a.skip = true
	} else if a.skip && ddiff >= 0 {
		a.skip = false
	}

	if a.skip {
		return secondarySkip
	}
	return secondaryWriteAsIs
}
