package streamplayer

import (
	"testing"

	"github.com/drgolem/musictools/pkg/timebase"
)

func TestAlignmentDumbSuppressesLogic(t *testing.T) {
	a := &dualSinkAligner{skip: true}
	got := a.decide(0, 1_000_000, int64(20*timebase.Base/1000), true)
	if got != secondaryWriteAsIs {
		t.Fatalf("decide(dumb=true) = %v, want secondaryWriteAsIs", got)
	}
	if a.skip {
		t.Fatalf("skip latch should clear when dumb")
	}
}

func TestAlignmentWritesSilenceWhenSecondaryAhead(t *testing.T) {
	a := &dualSinkAligner{}
	frameDur := int64(20 * timebase.Base / 1000)
	// primaryDelay much larger than secondaryDelay: secondary is playing
	// ahead of primary by more than the threshold.
	got := a.decide(200*timebase.Base/1000, 0, frameDur, false)
	if got != secondaryWriteSilence {
		t.Fatalf("decide() = %v, want secondaryWriteSilence", got)
	}
}

func TestAlignmentSkipsWhenSecondaryBehindThenRecovers(t *testing.T) {
	a := &dualSinkAligner{}
	frameDur := int64(20 * timebase.Base / 1000)

	got := a.decide(0, 200*timebase.Base/1000, frameDur, false)
	if got != secondarySkip {
		t.Fatalf("decide() = %v, want secondarySkip while behind", got)
	}
	if !a.skip {
		t.Fatalf("skip latch should be set")
	}

	// ddiff recovers to >= 0: latch should clear.
	got = a.decide(10*timebase.Base/1000, 0, frameDur, false)
	if got != secondaryWriteAsIs {
		t.Fatalf("decide() after recovery = %v, want secondaryWriteAsIs", got)
	}
	if a.skip {
		t.Fatalf("skip latch should have cleared on recovery")
	}
}

func TestAlignmentWithinThresholdWritesAsIs(t *testing.T) {
	a := &dualSinkAligner{}
	frameDur := int64(20 * timebase.Base / 1000)
	got := a.decide(5*timebase.Base/1000, 0, frameDur, false)
	if got != secondaryWriteAsIs {
		t.Fatalf("decide() within threshold = %v, want secondaryWriteAsIs", got)
	}
}
