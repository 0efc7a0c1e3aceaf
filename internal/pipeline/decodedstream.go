package pipeline

// StreamFormat distinguishes the two audio encodings the pipeline
// carries end to end.
type StreamFormat int

const (
	FormatPcm StreamFormat = iota
	FormatDsd
)

// DecodedStreamInfo is the full set of fields a DecodedStream message
// carries. StreamHandler is an opaque reference to the
// stream's owning handler; its concrete type is a collaborator
// contract out of scope here.
type DecodedStreamInfo struct {
	StreamID           uint32
	BitRate            uint32
	BitDepth           uint32
	SampleRate         uint32
	Channels           uint32
	CodecName          string
	TrackLengthJiffies uint64
	StartSample        uint64
	Lossless           bool
	Seekable           bool
	Live               bool
	AnalogBypass       bool
	Multiroom          bool
	Profile            string
	Format             StreamFormat
	StreamHandler      any
	Ramp               RampValue
}

// MsgDecodedStream describes the decoded audio that follows it, until
// replaced by another MsgDecodedStream.
type MsgDecodedStream struct {
	refBase
	Info DecodedStreamInfo
}

func NewMsgDecodedStream(info DecodedStreamInfo) *MsgDecodedStream {
	return &MsgDecodedStream{refBase: newRefBase(), Info: info}
}

func (m *MsgDecodedStream) Kind() Kind { return KindDecodedStream }

// MsgSilence represents a run of silent audio. It carries no sample
// buffer: it must never be split, dropped, or ramped, so there is
// nothing for PhaseAdjuster to act on beyond forwarding it.
type MsgSilence struct {
	refBase
	Jiffies    uint64
	SampleRate uint32
	BitDepth   uint32
	Channels   uint32
}

func NewMsgSilence(jiffies uint64, sampleRate, bitDepth, channels uint32) *MsgSilence {
	return &MsgSilence{
		refBase:    newRefBase(),
		Jiffies:    jiffies,
		SampleRate: sampleRate,
		BitDepth:   bitDepth,
		Channels:   channels,
	}
}

func (m *MsgSilence) Kind() Kind { return KindSilence }
