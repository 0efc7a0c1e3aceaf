package pipeline

import "sync/atomic"

// Msg is the tagged-union message carried between pipeline elements.
// Every concrete message is reference-counted: a transformer that
// retains a message beyond the call that delivered it must AddRef, and
// consuming a reference must RemoveRef. Calling RemoveRef without a
// matching prior AddRef is a fatal bug.
type Msg interface {
	Kind() Kind
	AddRef()
	RemoveRef()
}

// refBase implements the reference-counting half of Msg. Messages are
// constructed with a single reference already outstanding, owned by
// whoever the factory handed the message to.
type refBase struct {
	refs int32
}

func newRefBase() refBase {
	return refBase{refs: 1}
}

func (r *refBase) AddRef() {
	n := atomic.AddInt32(&r.refs, 1)
	assertf(n > 1, "AddRef on a message with no outstanding reference")
}

func (r *refBase) RemoveRef() {
	n := atomic.AddInt32(&r.refs, -1)
	assertf(n >= 0, "RemoveRef without a matching AddRef")
}

// Track is an identity object: a URI plus an opaque metadata blob.
// Codec/track lookup lives outside this package; this is the
// collaborator contract's data shape only.
type Track struct {
	URI      string
	Metadata []byte
}

// Metadata is out-of-band track metadata, delivered asynchronously from
// a control channel (e.g. AirPlay's remote control protocol).
type Metadata struct {
	Track      string
	Artist     string
	Album      string
	Genre      string
	DurationMs uint32
}

// ModeInfo carries the capability flags a Mode message announces.
type ModeInfo struct {
	SupportsLatency     bool
	RampPauseResumeLong bool
}

// MsgMode announces the active streaming mode.
type MsgMode struct {
	refBase
	Name string
	Info ModeInfo
}

func NewMsgMode(name string, info ModeInfo) *MsgMode {
	return &MsgMode{refBase: newRefBase(), Name: name, Info: info}
}

func (m *MsgMode) Kind() Kind { return KindMode }

// MsgTrack announces a track change.
type MsgTrack struct {
	refBase
	Track         *Track
	StartOfStream bool
}

func NewMsgTrack(track *Track, startOfStream bool) *MsgTrack {
	return &MsgTrack{refBase: newRefBase(), Track: track, StartOfStream: startOfStream}
}

func (m *MsgTrack) Kind() Kind { return KindTrack }

// MsgDrain signals that an upstream halt has fully drained.
type MsgDrain struct{ refBase }

func NewMsgDrain() *MsgDrain           { return &MsgDrain{refBase: newRefBase()} }
func (m *MsgDrain) Kind() Kind         { return KindDrain }

// MsgDelay reports total requested pipeline delay, in jiffies.
type MsgDelay struct {
	refBase
	TotalJiffies uint32
}

func NewMsgDelay(totalJiffies uint32) *MsgDelay {
	return &MsgDelay{refBase: newRefBase(), TotalJiffies: totalJiffies}
}

func (m *MsgDelay) Kind() Kind { return KindDelay }

// MsgEncodedStream carries compressed audio; decoding lives outside
// this package, so this is an opaque marker the pipeline forwards.
type MsgEncodedStream struct{ refBase }

func NewMsgEncodedStream() *MsgEncodedStream { return &MsgEncodedStream{refBase: newRefBase()} }
func (m *MsgEncodedStream) Kind() Kind        { return KindEncodedStream }

// MsgMetatext carries inline (in-band) text metadata.
type MsgMetatext struct {
	refBase
	Text string
}

func NewMsgMetatext(text string) *MsgMetatext {
	return &MsgMetatext{refBase: newRefBase(), Text: text}
}

func (m *MsgMetatext) Kind() Kind { return KindMetatext }

// MsgStreamInterrupted signals an upstream interruption (e.g. a dropped
// network connection).
type MsgStreamInterrupted struct{ refBase }

func NewMsgStreamInterrupted() *MsgStreamInterrupted {
	return &MsgStreamInterrupted{refBase: newRefBase()}
}
func (m *MsgStreamInterrupted) Kind() Kind { return KindStreamInterrupted }

// MsgHalt requests that downstream elements stop producing audio.
type MsgHalt struct{ refBase }

func NewMsgHalt() *MsgHalt     { return &MsgHalt{refBase: newRefBase()} }
func (m *MsgHalt) Kind() Kind  { return KindHalt }

// MsgFlush requests discarding buffered audio up to a given id.
type MsgFlush struct {
	refBase
	ID uint32
}

func NewMsgFlush(id uint32) *MsgFlush {
	return &MsgFlush{refBase: newRefBase(), ID: id}
}

func (m *MsgFlush) Kind() Kind { return KindFlush }

// MsgWait signals that the upstream has momentarily run dry.
type MsgWait struct{ refBase }

func NewMsgWait() *MsgWait    { return &MsgWait{refBase: newRefBase()} }
func (m *MsgWait) Kind() Kind { return KindWait }

// MsgBitRate reports the instantaneous bit rate of the stream.
type MsgBitRate struct {
	refBase
	BitRate uint32
}

func NewMsgBitRate(bitRate uint32) *MsgBitRate {
	return &MsgBitRate{refBase: newRefBase(), BitRate: bitRate}
}

func (m *MsgBitRate) Kind() Kind { return KindBitRate }

// MsgQuit terminates the pipeline. It flows like any other message and
// permits teardown; there is no cooperative cancellation otherwise.
type MsgQuit struct{ refBase }

func NewMsgQuit() *MsgQuit    { return &MsgQuit{refBase: newRefBase()} }
func (m *MsgQuit) Kind() Kind { return KindQuit }
