package pipeline

import msdk "github.com/livekit/media-sdk"

// Upstream is the single blocking pull operation every pipeline element
// exposes. Pull may block arbitrarily.
type Upstream interface {
	Pull() Msg
}

// UpstreamFunc adapts a plain function to Upstream, convenient for
// feeding a synthetic sequence of messages in tests and the demo
// command.
type UpstreamFunc func() Msg

func (f UpstreamFunc) Pull() Msg { return f() }

// MsgFactory constructs reference-counted messages. It is a
// collaborator contract; this in-memory implementation is the
// reference version used by tests and the demo command.
type MsgFactory interface {
	CreateMsgTrack(track *Track, startOfStream bool) *MsgTrack
	CreateMsgDecodedStream(info DecodedStreamInfo) *MsgDecodedStream
	CreateMsgSilence(jiffies uint64, sampleRate, bitDepth, channels uint32) *MsgSilence
	CreateMsgAudioPcm(jiffies uint64, sampleRate, bitDepth, channels uint32, samples msdk.PCM16Sample) *MsgAudioPcm
}

type defaultMsgFactory struct{}

// NewMsgFactory returns the reference MsgFactory implementation.
func NewMsgFactory() MsgFactory { return defaultMsgFactory{} }

func (defaultMsgFactory) CreateMsgTrack(track *Track, startOfStream bool) *MsgTrack {
	return NewMsgTrack(track, startOfStream)
}

func (defaultMsgFactory) CreateMsgDecodedStream(info DecodedStreamInfo) *MsgDecodedStream {
	return NewMsgDecodedStream(info)
}

func (defaultMsgFactory) CreateMsgSilence(jiffies uint64, sampleRate, bitDepth, channels uint32) *MsgSilence {
	return NewMsgSilence(jiffies, sampleRate, bitDepth, channels)
}

func (defaultMsgFactory) CreateMsgAudioPcm(jiffies uint64, sampleRate, bitDepth, channels uint32, samples msdk.PCM16Sample) *MsgAudioPcm {
	return NewMsgAudioPcm(jiffies, sampleRate, bitDepth, channels, samples)
}

// TrackFactory constructs track identity objects. The
// returned Track carries one reference owned by the caller; since Track
// itself is a plain value here (not message-shaped), that ownership is
// nominal — it exists to document the contract the original C++ API
// exposes, not because Go needs manual lifetime management for it.
type TrackFactory interface {
	CreateTrack(uri string, metadata []byte) *Track
}

type defaultTrackFactory struct{}

// NewTrackFactory returns the reference TrackFactory implementation.
func NewTrackFactory() TrackFactory { return defaultTrackFactory{} }

func (defaultTrackFactory) CreateTrack(uri string, metadata []byte) *Track {
	return &Track{URI: uri, Metadata: append([]byte(nil), metadata...)}
}

// StarvationRamper is the downstream element that PhaseAdjuster asks to
// wait for a given buffer occupancy after it drops audio.
type StarvationRamper interface {
	WaitForOccupancy(jiffies uint32)
}

// Animator is the device-facing downstream element that reports fixed
// hardware delay and buffer size.
type Animator interface {
	DelayJiffies(format StreamFormat, sampleRate, bitDepth, channels uint32) uint32
	BufferJiffies() uint32
}

// FixedAnimator is a simple Animator whose delay/buffer are constant,
// suitable for tests and the demo command.
type FixedAnimator struct {
	Delay  uint32
	Buffer uint32
}

func (a FixedAnimator) DelayJiffies(StreamFormat, uint32, uint32, uint32) uint32 { return a.Delay }
func (a FixedAnimator) BufferJiffies() uint32                                   { return a.Buffer }

// NopStarvationRamper never blocks; useful wherever occupancy tracking
// isn't under test.
type NopStarvationRamper struct{}

func (NopStarvationRamper) WaitForOccupancy(uint32) {}
