package pipeline

import (
	msdk "github.com/livekit/media-sdk"
)

// audioPayload is the shared shape of MsgAudioPcm and MsgAudioDsd: a
// jiffies length plus split/set-ramp/create-playable operations. The
// sample buffer reuses livekit/media-sdk's PCM16 frame type rather than
// a bespoke byte slice.
type audioPayload struct {
	refBase
	jiffies    uint64
	sampleRate uint32
	bitDepth   uint32
	channels   uint32
	samples    msdk.PCM16Sample
}

func newAudioPayload(jiffies uint64, sampleRate, bitDepth, channels uint32, samples msdk.PCM16Sample) audioPayload {
	return audioPayload{
		refBase:    newRefBase(),
		jiffies:    jiffies,
		sampleRate: sampleRate,
		bitDepth:   bitDepth,
		channels:   channels,
		samples:    samples,
	}
}

func (a *audioPayload) Jiffies() uint64      { return a.jiffies }
func (a *audioPayload) SampleRate() uint32   { return a.sampleRate }
func (a *audioPayload) Channels() uint32     { return a.channels }
func (a *audioPayload) Samples() msdk.PCM16Sample { return a.samples }

// split cuts the payload at `at` jiffies, shrinking the receiver to the
// head and returning a new payload holding the tail. The sample buffer
// is cut at the last whole frame at or before `at`; the head's jiffies
// length is set to `at` exactly and the tail's to the rest, without
// snapping.
func (a *audioPayload) split(at uint64) audioPayload {
	assertf(at <= a.jiffies, "split point %d beyond message length %d", at, a.jiffies)
	headFrames := at / jiffiesPerSample(a.sampleRate)
	headLen := headFrames * uint64(a.channels)
	if headLen > uint64(len(a.samples)) {
		headLen = uint64(len(a.samples))
	}
	tailSamples := append(msdk.PCM16Sample(nil), a.samples[headLen:]...)
	tail := newAudioPayload(a.jiffies-at, a.sampleRate, a.bitDepth, a.channels, tailSamples)
	a.samples = a.samples[:headLen]
	a.jiffies = at
	return tail
}

// setRamp applies a linear gain ramp across the payload's own span,
// advancing from `current` toward RampMax (or RampMin, for a
// hypothetical ramp-down) in proportion to the jiffies consumed out of
// *remaining. If the payload is longer than *remaining, the excess is
// split off first and handed back via outSplit so the caller can queue
// it for a later pull. When *remaining is already zero the payload is
// left untouched and current is returned unchanged. Telescopes correctly
// across repeated partial calls: see DESIGN.md's "Ramp gain law" note.
func (a *audioPayload) setRamp(current RampValue, remaining *uint32, dir RampDirection) (RampValue, *audioPayload) {
	if *remaining == 0 {
		return current, nil
	}
	var split *audioPayload
	if uint64(*remaining) < a.jiffies && *remaining > 0 {
		s := a.split(uint64(*remaining))
		split = &s
	}

	remainingBefore := *remaining
	consume := a.jiffies
	var next RampValue
	if remainingBefore == 0 {
		next = current
	} else {
		target := RampMax
		if dir == RampDirectionDown {
			target = RampMin
		}
		delta := (int64(target) - int64(current)) * int64(consume) / int64(remainingBefore)
		next = RampValue(int64(current) + delta)
	}
	applyGain(a.samples, a.channels, current, next)
	*remaining -= uint32(consume)
	return next, split
}

func applyGain(samples msdk.PCM16Sample, channels uint32, from, to RampValue) {
	if channels == 0 {
		channels = 1
	}
	frames := len(samples) / int(channels)
	if frames == 0 {
		return
	}
	fromI, toI := int64(from), int64(to)
	for f := 0; f < frames; f++ {
		gainPos := fromI + (toI-fromI)*int64(f)/int64(frames)
		gain := float64(gainPos) / float64(RampMax)
		for c := uint32(0); c < channels; c++ {
			idx := f*int(channels) + int(c)
			samples[idx] = int16(float64(samples[idx]) * gain)
		}
	}
}

// MsgAudioPcm carries a span of linear PCM audio.
type MsgAudioPcm struct{ audioPayload }

func NewMsgAudioPcm(jiffies uint64, sampleRate, bitDepth, channels uint32, samples msdk.PCM16Sample) *MsgAudioPcm {
	return &MsgAudioPcm{audioPayload: newAudioPayload(jiffies, sampleRate, bitDepth, channels, samples)}
}

func (m *MsgAudioPcm) Kind() Kind { return KindAudioPcm }

// Split splits off and returns the tail of the message, at jiffies into
// the span. The receiver shrinks to the head.
func (m *MsgAudioPcm) Split(jiffies uint64) *MsgAudioPcm {
	tail := m.audioPayload.split(jiffies)
	return &MsgAudioPcm{audioPayload: tail}
}

// SetRamp applies a gain ramp as described on audioPayload.setRamp.
func (m *MsgAudioPcm) SetRamp(current RampValue, remaining *uint32, dir RampDirection) (RampValue, *MsgAudioPcm) {
	next, split := m.audioPayload.setRamp(current, remaining, dir)
	if split == nil {
		return next, nil
	}
	return next, &MsgAudioPcm{audioPayload: *split}
}

// CreatePlayable exposes the underlying PCM16 frame for a downstream
// renderer. Neither AirplayReporter nor PhaseAdjuster calls this
// themselves; it exists to satisfy the message's full collaborator
// contract.
func (m *MsgAudioPcm) CreatePlayable() msdk.PCM16Sample { return m.Samples() }

// MsgAudioDsd carries a span of DSD (1-bit) audio. It shares
// AudioPcm's payload shape but is never phase-adjusted by
// PhaseAdjuster, which only ramps AudioPcm; DSD always passes straight
// through both elements.
type MsgAudioDsd struct{ audioPayload }

func NewMsgAudioDsd(jiffies uint64, sampleRate, bitDepth, channels uint32, samples msdk.PCM16Sample) *MsgAudioDsd {
	return &MsgAudioDsd{audioPayload: newAudioPayload(jiffies, sampleRate, bitDepth, channels, samples)}
}

func (m *MsgAudioDsd) Kind() Kind { return KindAudioDsd }

func (m *MsgAudioDsd) Split(jiffies uint64) *MsgAudioDsd {
	tail := m.audioPayload.split(jiffies)
	return &MsgAudioDsd{audioPayload: tail}
}

func (m *MsgAudioDsd) CreatePlayable() msdk.PCM16Sample { return m.Samples() }
