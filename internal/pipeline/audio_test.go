package pipeline

import (
	"testing"

	msdk "github.com/livekit/media-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func makePcm(frames int, sampleRate uint32) *MsgAudioPcm {
	samples := make(msdk.PCM16Sample, frames*2)
	for i := range samples {
		samples[i] = 1000
	}
	return NewMsgAudioPcm(uint64(frames)*jiffiesPerSample(sampleRate), sampleRate, 16, 2, samples)
}

func TestAudioSplitShrinksHeadReturnsTail(t *testing.T) {
	const sr = 44100
	msg := makePcm(100, sr)
	total := msg.Jiffies()
	at := 40 * jiffiesPerSample(sr)

	tail := msg.Split(at)

	assert.Equal(t, at, msg.Jiffies())
	assert.Equal(t, total-at, tail.Jiffies())
	assert.Len(t, msg.Samples(), 40*2)
	assert.Len(t, tail.Samples(), 60*2)
}

func TestAudioSplitAtZeroLeavesEmptyHead(t *testing.T) {
	msg := makePcm(10, 44100)
	tail := msg.Split(0)
	assert.Zero(t, msg.Jiffies())
	assert.Equal(t, 10*jiffiesPerSample(44100), tail.Jiffies())
}

func TestAudioSplitBeyondLengthPanics(t *testing.T) {
	msg := makePcm(10, 44100)
	assert.Panics(t, func() {
		msg.Split(msg.Jiffies() + 1)
	})
}

// Invariant 6: a ramp completed in a single call reaches RampMax and
// leaves remaining_ramp_size at zero.
func TestSetRampSingleCallReachesMax(t *testing.T) {
	const sr = 44100
	msg := makePcm(100, sr)
	remaining := uint32(msg.Jiffies())

	next, split := msg.SetRamp(RampMin, &remaining, RampDirectionUp)

	assert.Equal(t, RampMax, next)
	assert.Zero(t, remaining)
	assert.Nil(t, split)
}

func TestSetRampSplitsExcessBeyondWindow(t *testing.T) {
	const sr = 44100
	msg := makePcm(100, sr)
	window := uint32(40 * jiffiesPerSample(sr))
	remaining := window

	next, split := msg.SetRamp(RampMin, &remaining, RampDirectionUp)

	require.NotNil(t, split)
	assert.Equal(t, RampMax, next)
	assert.Zero(t, remaining)
	assert.Equal(t, uint64(60)*jiffiesPerSample(sr), split.Jiffies())
}

// Chaining two partial ramp calls across the same window reaches the
// same endpoint (RampMax) as a single call over the combined span: the
// ramp telescopes across repeated partial application.
func TestSetRampTelescopesAcrossPartialCalls(t *testing.T) {
	const sr = 44100
	rapid.Check(t, func(t *rapid.T) {
		totalFrames := rapid.IntRange(2, 400).Draw(t, "totalFrames")
		splitFrames := rapid.IntRange(1, totalFrames-1).Draw(t, "splitFrames")

		msg := makePcm(totalFrames, sr)
		window := uint32(msg.Jiffies())

		first := msg.Split(uint64(splitFrames) * jiffiesPerSample(sr))

		remaining := window
		current, split1 := msg.SetRamp(RampMin, &remaining, RampDirectionUp)
		if split1 != nil {
			t.Fatalf("first partial call should not have produced a split: the head is shorter than the window")
		}
		final, split2 := first.SetRamp(current, &remaining, RampDirectionUp)

		assert.Equal(t, RampMax, final)
		assert.Zero(t, remaining)
		assert.Nil(t, split2)
	})
}
