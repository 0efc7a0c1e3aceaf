package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestJiffiesPerSample(t *testing.T) {
	assert.Equal(t, uint64(1280), jiffiesPerSample(44100))
	assert.Equal(t, uint64(1176), jiffiesPerSample(48000))
	assert.Equal(t, uint64(640), jiffiesPerSample(88200))
}

func TestJiffiesPerSampleZeroRate(t *testing.T) {
	assert.Panics(t, func() { jiffiesPerSample(0) })
}

func TestJiffiesPerSampleIndivisibleRate(t *testing.T) {
	assert.Panics(t, func() { jiffiesPerSample(22050 + 1) })
}

func TestMsToJiffiesAndSample(t *testing.T) {
	// 2000ms at 44100Hz: start_sample = 2000*44100/1000 = 88200 (S2).
	assert.Equal(t, uint64(88200), msToSample(2000, 44100))
	// 5000ms of track length at 44100Hz, in jiffies.
	assert.Equal(t, uint64(5)*JiffiesPerSecond, msToJiffies(5000, 44100))
}

// Every supported sample rate divides JiffiesPerSecond exactly.
func TestJiffiesPerSampleDividesEvenly(t *testing.T) {
	rates := []uint32{44100, 48000, 88200, 96000, 176400, 192000}
	rapid.Check(t, func(t *rapid.T) {
		sr := rates[rapid.IntRange(0, len(rates)-1).Draw(t, "rateIdx")]
		assert.Zero(t, JiffiesPerSecond%uint64(sr))
	})
}
