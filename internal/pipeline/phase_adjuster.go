package pipeline

import (
	"sync/atomic"

	"github.com/livekit/protocol/logger"

	"airphase/internal/pipelog"
)

const phaseAdjusterKinds = KindMode | KindTrack | KindDrain | KindDelay |
	KindEncodedStream | KindMetatext | KindStreamInterrupted | KindHalt |
	KindFlush | KindWait | KindDecodedStream | KindBitRate |
	KindAudioPcm | KindAudioDsd | KindSilence | KindQuit

type phaseState int

const (
	phaseRunning phaseState = iota
	phaseStarting
	phaseAdjusting
	phaseRampingUp
)

// PhaseAdjusterConfig is the construction-time configuration named in
// the external interfaces.
type PhaseAdjusterConfig struct {
	RampJiffiesLong  uint32
	RampJiffiesShort uint32
	MinDelayJiffies  uint32
}

// PhaseAdjuster aligns a receiver's playback phase with a sender's by
// dropping a prefix of PCM audio and then ramping the remainder back up
// to full volume, using delay information reported by downstream
// hardware and a starvation-aware occupancy signal.
type PhaseAdjuster struct {
	upstream         Upstream
	starvationRamper StarvationRamper
	animator         Animator
	cfg              PhaseAdjusterConfig
	log              logger.Logger

	trackedJiffies atomic.Int64
	audioIn        atomic.Uint64
	audioOut       atomic.Uint64

	enabled           bool
	state             phaseState
	decodedStream     *MsgDecodedStream
	delayTotalJiffies uint32
	delayJiffies      uint32
	droppedJiffies    uint32
	injectedJiffies   uint32
	rampJiffies       uint32
	remainingRampSize uint32
	currentRampValue  RampValue
	queue             msgQueue
	confirmOccupancy  bool
}

// NewPhaseAdjuster constructs a PhaseAdjuster. log may be nil, in which
// case the process-wide logger is used.
func NewPhaseAdjuster(upstream Upstream, starvationRamper StarvationRamper, animator Animator, cfg PhaseAdjusterConfig, log logger.Logger) *PhaseAdjuster {
	return &PhaseAdjuster{
		upstream:         upstream,
		starvationRamper: starvationRamper,
		animator:         animator,
		cfg:              cfg,
		log:              pipelog.Default(log),
	}
}

// Update is the animator callback, invoked on every buffer advance. It
// is the only method called from a thread other than the puller.
func (p *PhaseAdjuster) Update(delta int64) {
	p.trackedJiffies.Add(delta)
	if delta >= 0 {
		p.audioIn.Add(uint64(delta))
	} else {
		p.audioOut.Add(uint64(-delta))
	}
}

// Start and Stop exist to satisfy the element lifecycle contract; this
// element has no resources to acquire or release at those points.
func (p *PhaseAdjuster) Start() {}
func (p *PhaseAdjuster) Stop()  {}

// Pull returns the next message. A non-empty internal queue is drained
// before pulling upstream again; a drop performed during dispatch
// forces one starvation-ramper wait before the result is returned.
func (p *PhaseAdjuster) Pull() Msg {
	for {
		if !p.queue.Empty() {
			return p.queue.Dequeue()
		}

		msg := p.upstream.Pull()
		out := p.dispatch(msg)

		if p.confirmOccupancy {
			p.confirmOccupancy = false
			p.starvationRamper.WaitForOccupancy(p.animator.BufferJiffies())
		}
		if out != nil {
			return out
		}
	}
}

func (p *PhaseAdjuster) dispatch(msg Msg) Msg {
	requireSupported(phaseAdjusterKinds, msg)

	switch m := msg.(type) {
	case *MsgMode:
		return p.handleMode(m)
	case *MsgDrain:
		return p.handleDrain(m)
	case *MsgDelay:
		return p.handleDelay(m)
	case *MsgDecodedStream:
		return p.handleDecodedStream(m)
	case *MsgAudioPcm:
		return p.handleAudioPcm(m)
	default:
		return msg
	}
}

func (p *PhaseAdjuster) handleMode(mode *MsgMode) Msg {
	p.enabled = mode.Info.SupportsLatency
	if p.enabled {
		if mode.Info.RampPauseResumeLong {
			p.rampJiffies = p.cfg.RampJiffiesLong
		} else {
			p.rampJiffies = p.cfg.RampJiffiesShort
		}
		p.delayTotalJiffies = 0
		p.delayJiffies = 0
		p.resetPhaseDelay()
	} else {
		p.state = phaseRunning
	}
	return mode
}

func (p *PhaseAdjuster) handleDrain(drain *MsgDrain) Msg {
	if p.enabled {
		p.resetPhaseDelay()
	}
	return drain
}

func (p *PhaseAdjuster) handleDelay(delay *MsgDelay) Msg {
	if p.enabled {
		p.delayTotalJiffies = delay.TotalJiffies
		p.recomputeDelay()
	}
	delay.RemoveRef()
	return nil
}

func (p *PhaseAdjuster) handleDecodedStream(ds *MsgDecodedStream) Msg {
	if p.decodedStream != nil {
		p.decodedStream.RemoveRef()
		p.decodedStream = nil
	}
	if p.enabled {
		ds.AddRef()
		p.decodedStream = ds
		p.recomputeDelay()
	}
	return ds
}

func (p *PhaseAdjuster) handleAudioPcm(msg *MsgAudioPcm) Msg {
	if !p.enabled {
		return msg
	}
	return p.adjustAudio(msg)
}

// resetPhaseDelay re-arms the drop/ramp state machine; called on Mode
// entry and on Drain while enabled.
func (p *PhaseAdjuster) resetPhaseDelay() {
	p.state = phaseStarting
	p.droppedJiffies = 0
	p.injectedJiffies = 0
	p.remainingRampSize = p.rampJiffies
	p.currentRampValue = RampMin
}

// recomputeDelay derives the slice of requested delay this element must
// absorb, after subtracting the animator's own fixed delay and clamping
// to the configured minimum. Only meaningful once both a DecodedStream
// and a nonzero Delay have been observed; otherwise left untouched.
func (p *PhaseAdjuster) recomputeDelay() {
	if p.decodedStream == nil || p.delayTotalJiffies == 0 {
		return
	}
	info := p.decodedStream.Info
	d := p.animator.DelayJiffies(info.Format, info.SampleRate, info.BitDepth, info.Channels)
	if p.delayTotalJiffies > d {
		dj := p.delayTotalJiffies - d
		if dj < p.cfg.MinDelayJiffies {
			dj = p.cfg.MinDelayJiffies
		}
		p.delayJiffies = dj
	} else {
		p.delayJiffies = 0
	}
	p.log.Infow("phase adjuster recomputed delay",
		"delay_total_jiffies", p.delayTotalJiffies, "delay_jiffies", p.delayJiffies)
}

// adjustAudio is the state machine core: Starting transitions once to
// Adjusting (logging the transition), Running passes through, RampingUp
// continues an active ramp, and Adjusting performs the drop decision.
func (p *PhaseAdjuster) adjustAudio(msg *MsgAudioPcm) Msg {
	if p.state == phaseStarting {
		p.log.Infow("phase adjuster starting adjustment")
		p.state = phaseAdjusting
	}

	switch p.state {
	case phaseRunning:
		return msg
	case phaseRampingUp:
		return p.rampUp(msg)
	case phaseAdjusting:
		return p.adjusting(msg)
	default:
		return msg
	}
}

func (p *PhaseAdjuster) adjusting(msg *MsgAudioPcm) Msg {
	if p.delayJiffies == 0 {
		p.state = phaseRunning
		return msg
	}

	errorJiffies := p.trackedJiffies.Load() - int64(p.delayJiffies)
	switch {
	case errorJiffies > 0:
		drop := errorJiffies
		if drop > int64(msg.Jiffies()) {
			drop = int64(msg.Jiffies())
		}
		remainder := msg.Split(uint64(drop))
		msg.RemoveRef()
		p.droppedJiffies += uint32(drop)
		p.confirmOccupancy = true
		p.log.Infow("phase adjuster dropping audio",
			"dropped_jiffies", p.droppedJiffies, "error_jiffies", errorJiffies)
		if remainder.Jiffies() == 0 {
			remainder.RemoveRef()
			return nil
		}
		return p.startRampUp(remainder)
	case errorJiffies < 0:
		p.log.Infow("phase adjuster latency already satisfied", "error_jiffies", errorJiffies)
		p.state = phaseRunning
		return msg
	default:
		if p.droppedJiffies > 0 {
			return p.startRampUp(msg)
		}
		p.log.Infow("phase adjuster found no adjustment needed")
		p.state = phaseRunning
		return msg
	}
}

// applyRamp advances the ramp across msg's own span, splitting off any
// excess beyond the remaining ramp window. It never enqueues; callers
// decide how the head/tail pair is delivered.
func (p *PhaseAdjuster) applyRamp(msg *MsgAudioPcm) (*MsgAudioPcm, *MsgAudioPcm) {
	next, tail := msg.SetRamp(p.currentRampValue, &p.remainingRampSize, RampDirectionUp)
	p.currentRampValue = next
	if p.remainingRampSize == 0 {
		p.log.Infow("phase adjuster completed adjustment", "dropped_jiffies", p.droppedJiffies)
		p.state = phaseRunning
	}
	return msg, tail
}

// rampUp continues an already-active ramp (state already RampingUp on
// entry to adjustAudio); any excess beyond the ramp window is queued
// for a later pull and the ramped head is returned directly.
func (p *PhaseAdjuster) rampUp(msg *MsgAudioPcm) Msg {
	head, tail := p.applyRamp(msg)
	if tail != nil {
		p.queue.Enqueue(tail)
	}
	return head
}

// startRampUp begins a new ramp after a drop. It synthesizes a
// replacement DecodedStream reflecting the dropped samples, enqueues it
// ahead of the ramped audio (and any further excess beyond the ramp
// window), and returns nil so the queue drains in order on subsequent
// pulls.
func (p *PhaseAdjuster) startRampUp(msg *MsgAudioPcm) Msg {
	p.state = phaseRampingUp
	p.remainingRampSize = p.rampJiffies
	p.confirmOccupancy = true
	p.log.Infow("phase adjuster starting ramp up", "dropped_jiffies", p.droppedJiffies)

	assertf(p.decodedStream != nil, "PhaseAdjuster: ramp-up with no cached DecodedStream")
	info := p.decodedStream.Info
	droppedSamples := uint64(p.droppedJiffies) / jiffiesPerSample(info.SampleRate)
	info.StartSample += droppedSamples
	next := NewMsgDecodedStream(info)
	next.AddRef()
	p.decodedStream.RemoveRef()
	p.decodedStream = next
	p.queue.Enqueue(next)

	head, tail := p.applyRamp(msg)
	p.queue.Enqueue(head)
	if tail != nil {
		p.queue.Enqueue(tail)
	}
	return nil
}
