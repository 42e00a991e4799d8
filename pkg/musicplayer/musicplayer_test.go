package musicplayer

import (
	"testing"
	"time"

	"github.com/drgolem/musictools/pkg/aeengine"
	"github.com/drgolem/musictools/pkg/decoders/pulldecoder"
	"github.com/drgolem/musictools/pkg/settings"
)

func TestUpdateCrossfadeTimeUsesConfiguredSeconds(t *testing.T) {
	cfg := &settings.MusicPlayerSettings{CrossfadeSeconds: 3, CrossfadeAlbumTrack: true}
	p := New(nil, cfg, nil)

	p.updateCrossfadeTime("album-1", false)
	if p.upcomingCrossfade != 3*time.Second {
		t.Fatalf("upcomingCrossfade = %v, want 3s", p.upcomingCrossfade)
	}
}

func TestUpdateCrossfadeTimeSuppressedForConsecutiveAlbumTrack(t *testing.T) {
	cfg := &settings.MusicPlayerSettings{CrossfadeSeconds: 3, CrossfadeAlbumTrack: false}
	p := New(nil, cfg, nil)

	p.updateCrossfadeTime("album-1", true)
	if p.upcomingCrossfade != 0 {
		t.Fatalf("upcomingCrossfade = %v, want 0 (album-gapless suppression)", p.upcomingCrossfade)
	}
}

func TestUpdateCrossfadeTimeKeptWhenAlbumTrackCrossfadeAllowed(t *testing.T) {
	cfg := &settings.MusicPlayerSettings{CrossfadeSeconds: 2, CrossfadeAlbumTrack: true}
	p := New(nil, cfg, nil)

	p.updateCrossfadeTime("album-1", true)
	if p.upcomingCrossfade != 2*time.Second {
		t.Fatalf("upcomingCrossfade = %v, want 2s (album crossfade allowed by config)", p.upcomingCrossfade)
	}
}

func TestLogicalPositionSubtractsDelay(t *testing.T) {
	got := logicalPosition(44100, 44100, 200*time.Millisecond)
	want := time.Second - 200*time.Millisecond
	if got != want {
		t.Fatalf("logicalPosition = %v, want %v", got, want)
	}
}

func TestLogicalPositionZeroSampleRate(t *testing.T) {
	if got := logicalPosition(1000, 0, 0); got != 0 {
		t.Fatalf("logicalPosition with 0 rate = %v, want 0", got)
	}
}

func newTestStream(name string, finishing bool) *streamInfo {
	return &streamInfo{
		file:      name,
		finishing: finishing,
		decoder:   &pulldecoder.Decoder{},
		renderer:  aeengine.NewRenderer(nil, aeengine.Primary, 1024, 4096),
	}
}

func TestNextAfterSkipsFinishingStreams(t *testing.T) {
	a := newTestStream("a", false)
	b := newTestStream("b", true)
	c := newTestStream("c", false)

	p := &Player{streams: []*streamInfo{a, b, c}}
	got := p.nextAfter(a)
	if got != c {
		t.Fatalf("nextAfter(a) = %v, want c (b is finishing)", got.file)
	}
}

func TestNextAfterReturnsNilAtEnd(t *testing.T) {
	a := newTestStream("a", false)
	p := &Player{streams: []*streamInfo{a}}
	if got := p.nextAfter(a); got != nil {
		t.Fatalf("nextAfter(last) = %v, want nil", got)
	}
}

func TestRemoveStreamDropsOnlyTarget(t *testing.T) {
	a := newTestStream("a", false)
	b := newTestStream("b", false)
	c := newTestStream("c", false)

	got := removeStream([]*streamInfo{a, b, c}, b)
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("removeStream = %v, want [a, c]", namesOf(got))
	}
}

func namesOf(streams []*streamInfo) []string {
	out := make([]string, len(streams))
	for i, s := range streams {
		out[i] = s.file
	}
	return out
}

func TestFirstUnstartedSkipsStartedAndFinishing(t *testing.T) {
	a := newTestStream("a", false)
	a.started = true
	b := newTestStream("b", true)
	c := newTestStream("c", false)

	p := &Player{streams: []*streamInfo{a, b, c}}
	got := p.firstUnstarted()
	if got != c {
		t.Fatalf("firstUnstarted() = %v, want c", got.file)
	}
}

func TestReapFinishingRemovesDrainedStreams(t *testing.T) {
	a := newTestStream("a", false) // renderer has no sink -> IsDrained() true
	p := &Player{streams: []*streamInfo{a}, finishing: []*streamInfo{a}}

	p.reapFinishing()

	if len(p.finishing) != 0 {
		t.Fatalf("finishing after reap = %d, want 0", len(p.finishing))
	}
	if len(p.streams) != 0 {
		t.Fatalf("streams after reap = %d, want 0 (drained stream removed)", len(p.streams))
	}
}
