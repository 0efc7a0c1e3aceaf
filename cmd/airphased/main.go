// Command airphased wires a synthetic upstream message generator
// through an AirplayReporter and a PhaseAdjuster, driving their
// side-door calls on a timer and logging the resulting stream. It
// exists to exercise the two elements end to end; it is not a real
// pipeline host.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	msdk "github.com/livekit/media-sdk"

	"airphase/internal/pipeline"
	"airphase/internal/pipelineconfig"
)

const demoSampleRate = 44100

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := pipelineconfig.Load(configPath)
	if err != nil {
		log.Warn("config error, using documented defaults", "error", err)
		cfg = pipelineconfig.Config{
			InterceptModeName: "AirPlay2",
			SongcastModeName:  "Receiver",
			RampJiffiesLong:   940 * 56448,
			RampJiffiesShort:  450 * 56448,
		}
	}

	source := newDemoSource(cfg.InterceptModeName)
	reporter := pipeline.NewAirplayReporter(
		source,
		pipeline.NewMsgFactory(),
		pipeline.NewTrackFactory(),
		pipeline.AirplayReporterConfig{InterceptModeName: cfg.InterceptModeName, SongcastModeName: cfg.SongcastModeName},
		nil,
	)

	animator := pipeline.FixedAnimator{Delay: 0, Buffer: uint32(20 * (56448000 / 1000))}
	adjuster := pipeline.NewPhaseAdjuster(
		reporter,
		pipeline.NopStarvationRamper{},
		animator,
		pipeline.PhaseAdjusterConfig{RampJiffiesLong: cfg.RampJiffiesLong, RampJiffiesShort: cfg.RampJiffiesShort, MinDelayJiffies: cfg.MinDelayJiffies},
		nil,
	)

	go func() {
		time.Sleep(50 * time.Millisecond)
		reporter.MetadataChanged(&pipeline.Metadata{Track: "Demo Track", Artist: "Demo Artist", DurationMs: 5000})
		reporter.TrackOffsetChanged(2000)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		default:
		}
		msg := adjuster.Pull()
		log.Info("pulled message", "kind", msgKind(msg))
		if _, ok := msg.(*pipeline.MsgQuit); ok {
			msg.RemoveRef()
			return
		}
		msg.RemoveRef()
	}
}

func msgKind(msg pipeline.Msg) string {
	return msg.Kind().String()
}

// newDemoSource returns an Upstream that emits a small fixed sequence:
// a matching Mode, an in-band Track, a DecodedStream, one chunk of
// silent PCM audio, and a Quit.
func newDemoSource(interceptMode string) pipeline.Upstream {
	factory := pipeline.NewMsgFactory()
	trackFactory := pipeline.NewTrackFactory()

	const frames = 100 * demoSampleRate / 1000 // 100ms of audio
	const jiffiesPerSample = 56448000 / demoSampleRate
	audio := factory.CreateMsgAudioPcm(
		uint64(frames*jiffiesPerSample),
		demoSampleRate, 16, 2,
		make(msdk.PCM16Sample, frames*2),
	)

	seq := []pipeline.Msg{
		pipeline.NewMsgMode(interceptMode, pipeline.ModeInfo{}),
		factory.CreateMsgTrack(trackFactory.CreateTrack("demo://track", nil), true),
		pipeline.NewMsgDecodedStream(pipeline.DecodedStreamInfo{
			SampleRate: demoSampleRate,
			BitDepth:   16,
			Channels:   2,
			Format:     pipeline.FormatPcm,
		}),
		audio,
		pipeline.NewMsgQuit(),
	}

	i := 0
	return pipeline.UpstreamFunc(func() pipeline.Msg {
		if i >= len(seq) {
			return pipeline.NewMsgQuit()
		}
		m := seq[i]
		i++
		return m
	})
}
