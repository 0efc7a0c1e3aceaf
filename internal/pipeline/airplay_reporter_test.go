package pipeline

import (
	"testing"

	msdk "github.com/livekit/media-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceUpstream replays a fixed sequence of messages, panicking if
// pulled past the end (a test bug, not a pipeline condition).
type sliceUpstream struct {
	msgs []Msg
	i    int
}

func (s *sliceUpstream) Pull() Msg {
	if s.i >= len(s.msgs) {
		panic("sliceUpstream exhausted")
	}
	m := s.msgs[s.i]
	s.i++
	return m
}

func decodedStreamInfo(sr, bd, ch uint32, start uint64) DecodedStreamInfo {
	return DecodedStreamInfo{SampleRate: sr, BitDepth: bd, Channels: ch, StartSample: start, Format: FormatPcm}
}

func pcm(jiffies uint64, sr uint32) *MsgAudioPcm {
	return NewMsgAudioPcm(jiffies, sr, 16, 2, make(msdk.PCM16Sample, 4))
}

func newReporter(upstream Upstream, cfg AirplayReporterConfig) *AirplayReporter {
	return NewAirplayReporter(upstream, NewMsgFactory(), NewTrackFactory(), cfg, nil)
}

// S1: outside intercept mode, every message passes through unchanged
// and samples() stays zero.
func TestAirplayReporterS1PassThrough(t *testing.T) {
	const J = uint64(10) * JiffiesPerSecond
	mode := NewMsgMode("Other", ModeInfo{})
	track := NewMsgTrack(&Track{URI: "u"}, true)
	ds := NewMsgDecodedStream(decodedStreamInfo(44100, 16, 2, 0))
	audio := pcm(J, 44100)

	up := &sliceUpstream{msgs: []Msg{mode, track, ds, audio}}
	r := newReporter(up, DefaultAirplayReporterConfig())

	assert.Same(t, Msg(mode), r.Pull())
	assert.Same(t, Msg(track), r.Pull())
	assert.Same(t, Msg(ds), r.Pull())
	assert.Same(t, Msg(audio), r.Pull())
	assert.Zero(t, r.Samples())
}

// S2: entering intercept mode with cached metadata and a known offset
// synthesizes (Track, DecodedStream) in that order, between the in-band
// Track/DecodedStream and the first audio.
func TestAirplayReporterS2InterceptStartup(t *testing.T) {
	const J = uint64(10) * JiffiesPerSecond
	cfg := DefaultAirplayReporterConfig()
	mode := NewMsgMode(cfg.InterceptModeName, ModeInfo{})
	track := NewMsgTrack(&Track{URI: "u1"}, true)
	ds := NewMsgDecodedStream(decodedStreamInfo(44100, 16, 2, 0))
	audio := pcm(J, 44100)

	up := &sliceUpstream{msgs: []Msg{mode, track, ds, audio}}
	r := newReporter(up, cfg)
	r.MetadataChanged(&Metadata{Track: "t", DurationMs: 5000})
	r.TrackOffsetChanged(2000)

	assert.Same(t, Msg(mode), r.Pull())
	assert.Same(t, Msg(track), r.Pull())

	synthTrack, ok := r.Pull().(*MsgTrack)
	require.True(t, ok)
	assert.Equal(t, "u1", synthTrack.Track.URI)
	assert.Contains(t, string(synthTrack.Track.Metadata), `duration="00:00:05"`)

	synthDS, ok := r.Pull().(*MsgDecodedStream)
	require.True(t, ok)
	assert.Equal(t, uint64(88200), synthDS.Info.StartSample)

	assert.Same(t, Msg(audio), r.Pull())
	assert.Equal(t, J/jiffiesPerSample(44100), r.Samples())
}

// S3: while a flush is pending, PCM audio does not advance samples();
// once the matching (or later) flush id is consumed, accumulation
// resumes.
func TestAirplayReporterS3FlushSuppression(t *testing.T) {
	const J = uint64(5) * JiffiesPerSecond
	cfg := DefaultAirplayReporterConfig()
	mode := NewMsgMode(cfg.InterceptModeName, ModeInfo{})
	track := NewMsgTrack(&Track{URI: "u1"}, true)
	ds := NewMsgDecodedStream(decodedStreamInfo(44100, 16, 2, 0))
	flush6 := NewMsgFlush(6)
	audioDuringFlush := pcm(J, 44100)
	flush7 := NewMsgFlush(7)
	audioAfterFlush := pcm(J, 44100)

	up := &sliceUpstream{msgs: []Msg{mode, track, ds, flush6, audioDuringFlush, flush7, audioAfterFlush}}
	r := newReporter(up, cfg)
	r.Flush(7)

	r.Pull()                  // Mode
	r.Pull()                  // Track
	r.Pull()                  // synthesized Track
	r.Pull()                  // synthesized DecodedStream
	assert.Same(t, Msg(flush6), r.Pull())
	assert.Zero(t, r.Samples())
	assert.Same(t, Msg(audioDuringFlush), r.Pull())
	assert.Zero(t, r.Samples(), "pending flush id 7 must suppress sample accumulation")
	assert.Same(t, Msg(flush7), r.Pull())
	assert.Same(t, Msg(audioAfterFlush), r.Pull())
	assert.Equal(t, J/jiffiesPerSample(44100), r.Samples())
}

// PCM audio arriving before any DecodedStream is a programmer error
// and is fatal, the same as in AirplayReporter.cpp.
func TestAirplayReporterAudioBeforeDecodedStreamPanics(t *testing.T) {
	cfg := DefaultAirplayReporterConfig()
	mode := NewMsgMode(cfg.InterceptModeName, ModeInfo{})
	audio := pcm(JiffiesPerSecond, 44100)

	up := &sliceUpstream{msgs: []Msg{mode, audio}}
	r := newReporter(up, cfg)

	assert.Same(t, Msg(mode), r.Pull())
	assert.Panics(t, func() { r.Pull() })
}

// Invariant 1: synthesized messages only appear once intercept mode,
// an in-band track, and a decoded stream have all been observed.
func TestAirplayReporterInvariant1NoSynthesisBeforeTrackAndStream(t *testing.T) {
	cfg := DefaultAirplayReporterConfig()
	mode := NewMsgMode(cfg.InterceptModeName, ModeInfo{})
	track := NewMsgTrack(&Track{URI: "u"}, true)
	ds := NewMsgDecodedStream(decodedStreamInfo(44100, 16, 2, 0))

	up := &sliceUpstream{msgs: []Msg{mode, track, ds}}
	r := newReporter(up, cfg)
	r.MetadataChanged(&Metadata{Track: "t"})

	assert.Same(t, Msg(mode), r.Pull())
	assert.Same(t, Msg(track), r.Pull())
	// DecodedStream is cached (suppressed) before anything can synthesize.
	synthTrack, ok := r.Pull().(*MsgTrack)
	require.True(t, ok)
	assert.NotSame(t, track, synthTrack)
}

func TestAirplayReporterRejectsZeroSampleRateDecodedStream(t *testing.T) {
	cfg := DefaultAirplayReporterConfig()
	mode := NewMsgMode(cfg.InterceptModeName, ModeInfo{})
	track := NewMsgTrack(&Track{URI: "u"}, true)
	badDS := NewMsgDecodedStream(decodedStreamInfo(0, 16, 2, 0))

	up := &sliceUpstream{msgs: []Msg{mode, track, badDS}}
	r := newReporter(up, cfg)

	r.Pull()
	r.Pull()
	assert.Panics(t, func() { r.Pull() })
}

func TestAirplayReporterSampleCounterOverflowPanics(t *testing.T) {
	r := newReporter(&sliceUpstream{}, DefaultAirplayReporterConfig())
	r.ReportSamples(^uint64(0))
	assert.Panics(t, func() { r.ReportSamples(1) })
}
