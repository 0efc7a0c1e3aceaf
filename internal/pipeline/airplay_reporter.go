package pipeline

import (
	"sync"

	"github.com/livekit/protocol/logger"

	"airphase/internal/pipelog"
)

const airplayReporterKinds = KindMode | KindTrack | KindDrain | KindDelay |
	KindMetatext | KindStreamInterrupted | KindHalt |
	KindFlush | KindWait | KindDecodedStream | KindBitRate |
	KindAudioPcm | KindAudioDsd | KindSilence | KindQuit

// kTrackOffsetChangeThresholdMs is the minimum change in reported track
// position, in milliseconds, that forces a DecodedStream refresh. Small
// position updates (sub-threshold) do not warrant re-synthesizing a
// descriptor.
const kTrackOffsetChangeThresholdMs = 250

// AirplayReporterConfig is the construction-time configuration named in
// the external interfaces: mode names this element recognizes.
type AirplayReporterConfig struct {
	InterceptModeName string
	SongcastModeName  string
}

// DefaultAirplayReporterConfig matches the documented defaults.
func DefaultAirplayReporterConfig() AirplayReporterConfig {
	return AirplayReporterConfig{InterceptModeName: "AirPlay2", SongcastModeName: "Receiver"}
}

// AirplayReporter intercepts a stream while a particular mode is
// active, fabricating out-of-band Track and DecodedStream messages from
// metadata received on a side channel, and accumulates a sample counter
// visible to external observers.
type AirplayReporter struct {
	upstream     Upstream
	msgFactory   MsgFactory
	trackFactory TrackFactory
	cfg          AirplayReporterConfig
	log          logger.Logger

	mu sync.Mutex

	interceptMode     bool
	pipelineTrackSeen bool
	trackURI          string
	metadata          *Metadata
	trackDurationMs   uint32
	offset            startOffset
	decodedStream     *MsgDecodedStream
	trackPending      bool
	decodedPending    bool
	samples           uint64
	pendingFlushID    uint32
}

// NewAirplayReporter constructs an AirplayReporter. log may be nil, in
// which case the process-wide logger is used.
func NewAirplayReporter(upstream Upstream, msgFactory MsgFactory, trackFactory TrackFactory, cfg AirplayReporterConfig, log logger.Logger) *AirplayReporter {
	return &AirplayReporter{
		upstream:       upstream,
		msgFactory:     msgFactory,
		trackFactory:   trackFactory,
		cfg:            cfg,
		log:            pipelog.Default(log),
		pendingFlushID: FlushIDInvalid,
	}
}

// --- Side-door operations (called from a non-pull thread) ---

// MetadataChanged caches new out-of-band metadata. A nil md clears the
// cache but still marks both synthesized descriptors pending.
func (r *AirplayReporter) MetadataChanged(md *Metadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata = md
	if md != nil {
		r.trackDurationMs = md.DurationMs
	}
	r.trackPending = true
	r.decodedPending = true
}

// TrackOffsetChanged records a new known playback position and forces a
// DecodedStream refresh.
func (r *AirplayReporter) TrackOffsetChanged(ms uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offset.SetMs(ms)
	r.decodedPending = true
}

// TrackPosition records a playback position update, refreshing the
// DecodedStream only when the change exceeds kTrackOffsetChangeThresholdMs.
func (r *AirplayReporter) TrackPosition(ms uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	diff := r.offset.AbsoluteDifference(ms)
	r.offset.SetMs(ms)
	if diff > kTrackOffsetChangeThresholdMs {
		r.decodedPending = true
	}
}

// ReportSamples adds n to the accumulated sample count.
func (r *AirplayReporter) ReportSamples(n uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addSamplesLocked(n)
}

// ResetSampleCount zeroes the accumulated sample count.
func (r *AirplayReporter) ResetSampleCount() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = 0
}

// Flush records a flush id above which PCM accumulation is suppressed
// until a Flush of at least that id is observed on the pull thread.
func (r *AirplayReporter) Flush(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingFlushID = id
}

// Samples returns a snapshot of the accumulated sample count.
func (r *AirplayReporter) Samples() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples
}

func (r *AirplayReporter) addSamplesLocked(n uint64) {
	next := r.samples + n
	assertf(next >= r.samples, "AirplayReporter: sample counter overflow")
	r.samples = next
}

// --- Pull ---

// Pull returns the next message, dispatching through the interception
// logic described by the element's handler contracts. The lock is
// never held across the upstream pull: it is acquired once to check for
// an owed synthesized descriptor, released for the (possibly blocking)
// pull, then re-acquired to dispatch the pulled message.
func (r *AirplayReporter) Pull() Msg {
	for {
		r.mu.Lock()
		if out := r.pendingSynthesized(); out != nil {
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()

		msg := r.upstream.Pull()

		r.mu.Lock()
		out := r.dispatch(msg)
		r.mu.Unlock()
		if out != nil {
			return out
		}
	}
}

// pendingSynthesized must be called with the lock held. It returns a
// synthesized Track or DecodedStream if one is owed, or nil.
func (r *AirplayReporter) pendingSynthesized() Msg {
	if !(r.interceptMode && r.pipelineTrackSeen && r.decodedStream != nil) {
		return nil
	}
	if r.trackPending {
		r.trackPending = false
		return r.synthesizeTrack()
	}
	if r.decodedPending {
		r.decodedPending = false
		return r.synthesizeDecodedStream()
	}
	return nil
}

func (r *AirplayReporter) synthesizeTrack() Msg {
	info := r.decodedStream.Info
	var md Metadata
	if r.metadata != nil {
		md = *r.metadata
	}
	didl := writeDidlLite(r.trackURI, md, info.BitDepth, info.Channels, info.SampleRate)
	track := r.trackFactory.CreateTrack(r.trackURI, didl)
	return r.msgFactory.CreateMsgTrack(track, false)
}

func (r *AirplayReporter) synthesizeDecodedStream() Msg {
	info := r.decodedStream.Info
	sampleRate := info.SampleRate
	info.TrackLengthJiffies = msToJiffies(uint64(r.trackDurationMs), sampleRate)
	info.StartSample = r.offset.OffsetSample(sampleRate)
	next := NewMsgDecodedStream(info)
	r.decodedStream.RemoveRef()
	r.decodedStream = next
	r.decodedStream.AddRef()
	return next
}

// dispatch must be called with the lock held; it mutates state per the
// handler contracts and returns the message to emit (nil to suppress).
func (r *AirplayReporter) dispatch(msg Msg) Msg {
	requireSupported(airplayReporterKinds, msg)

	// Mode is dispatched regardless of phase: it is what flips
	// interceptMode itself. Every other kind passes straight through
	// while outside intercept mode.
	if mode, ok := msg.(*MsgMode); ok {
		return r.handleMode(mode)
	}
	if !r.interceptMode {
		return msg
	}

	switch m := msg.(type) {
	case *MsgTrack:
		return r.handleTrack(m)
	case *MsgDecodedStream:
		return r.handleDecodedStream(m)
	case *MsgAudioPcm:
		return r.handleAudioPcm(m)
	case *MsgFlush:
		return r.handleFlush(m)
	default:
		return msg
	}
}

// handleMode implements the Mode row of the handler contract table: a
// matching name (re)enters intercept mode, clearing the cached stream
// and forcing a fresh synthesized descriptor pair; any other name
// leaves intercept mode.
func (r *AirplayReporter) handleMode(mode *MsgMode) Msg {
	if mode.Name == r.cfg.InterceptModeName {
		r.decodedPending = true
		r.samples = 0
		r.interceptMode = true
		if r.decodedStream != nil {
			r.decodedStream.RemoveRef()
			r.decodedStream = nil
		}
		r.pipelineTrackSeen = false
	} else {
		r.interceptMode = false
	}
	return mode
}

func (r *AirplayReporter) handleTrack(track *MsgTrack) Msg {
	r.trackURI = track.Track.URI
	r.pipelineTrackSeen = true
	r.trackPending = true
	return track
}

func (r *AirplayReporter) handleDecodedStream(ds *MsgDecodedStream) Msg {
	assertf(ds.Info.SampleRate != 0, "AirplayReporter: DecodedStream with zero sample rate")
	assertf(ds.Info.Channels != 0, "AirplayReporter: DecodedStream with zero channels")
	if r.decodedStream != nil {
		r.decodedStream.RemoveRef()
	}
	r.decodedStream = ds
	r.decodedPending = true
	return nil
}

func (r *AirplayReporter) handleAudioPcm(msg *MsgAudioPcm) Msg {
	assertf(r.decodedStream != nil, "AirplayReporter: PCM audio with no DecodedStream")
	if r.pendingFlushID == FlushIDInvalid {
		samplesInMsg := msg.Jiffies() / jiffiesPerSample(r.decodedStream.Info.SampleRate)
		r.addSamplesLocked(samplesInMsg)
	}
	return msg
}

func (r *AirplayReporter) handleFlush(flush *MsgFlush) Msg {
	if r.pendingFlushID != FlushIDInvalid && flush.ID >= r.pendingFlushID {
		r.pendingFlushID = FlushIDInvalid
	}
	return flush
}
