package receiver

import (
	"fmt"
	"time"

	"github.com/streaminsync/streaminsync/pkg/appsink"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/pcm"
)

type Speakers byte

const (
	SpeakersUnknown Speakers = iota
	SpeakersMono
	SpeakersStereo
	Speakers2Point1
	Speakers4Point0
	Speakers4Point1
	Speakers5Point1
	Speakers7Point1
)

// SpeakersFor - layout of the channel count, 7 channels have none
func SpeakersFor(channels int) Speakers {
	switch channels {
	case 1:
		return SpeakersMono
	case 2:
		return SpeakersStereo
	case 3:
		return Speakers2Point1
	case 4:
		return Speakers4Point0
	case 5:
		return Speakers4Point1
	case 6:
		return Speakers5Point1
	case 8:
		return Speakers7Point1
	}
	return SpeakersUnknown
}

func (s Speakers) String() string {
	switch s {
	case SpeakersMono:
		return "mono"
	case SpeakersStereo:
		return "stereo"
	case Speakers2Point1:
		return "2.1"
	case Speakers4Point0:
		return "4.0"
	case Speakers4Point1:
		return "4.1"
	case Speakers5Point1:
		return "5.1"
	case Speakers7Point1:
		return "7.1"
	}
	return "unknown"
}

type VideoFrame struct {
	Data     []byte
	Width    int
	Height   int
	Format   string
	Keyframe bool
	// nanoseconds of running time or frame number
	Timestamp uint64
}

type AudioFrame struct {
	Data     []byte
	Frames   int
	Rate     int
	Channels int
	Format   string
	Speakers Speakers
	// nanoseconds of running time or of counted audio
	Timestamp uint64
}

type OutputConfig struct {
	// frame timestamps from buffer PTS, otherwise from counters
	UseTimestampsVideo bool `json:"use_timestamps_video" yaml:"use_timestamps_video"`
	UseTimestampsAudio bool `json:"use_timestamps_audio" yaml:"use_timestamps_audio"`
	// the streaming goroutine waits for the host callback,
	// otherwise frames queue up for it on a goroutine of the sink
	BlockVideo bool `json:"block_video" yaml:"block_video"`
	BlockAudio bool `json:"block_audio" yaml:"block_audio"`
}

type (
	VideoFunc func(frame *VideoFrame)
	AudioFunc func(frame *AudioFrame)
)

type sampleSink interface {
	graph.Element
	SetCallback(f appsink.SampleFunc)
}

type output struct {
	cfg     OutputConfig
	onVideo VideoFunc
	onAudio AudioFunc
}

// attach finds sinks by name and installs callbacks, counters start from zero
func (o *output) attach(s *Session) error {
	if s.pipeline == nil {
		return ErrNotReady
	}

	if o.onVideo != nil {
		sink, err := findSink(s.pipeline, KindVideo, s.Config.VideoID)
		if err != nil {
			return err
		}
		block(sink, o.cfg.BlockVideo)
		sink.SetCallback(videoCallback(o.cfg.UseTimestampsVideo, o.onVideo))
	}

	if o.onAudio != nil {
		sink, err := findSink(s.pipeline, KindAudio, s.Config.AudioID)
		if err != nil {
			return err
		}
		block(sink, o.cfg.BlockAudio)
		sink.SetCallback(audioCallback(o.cfg.UseTimestampsAudio, o.onAudio))
	}

	return nil
}

func block(sink sampleSink, on bool) {
	if on {
		_ = sink.Set("max-buffers", 1)
	} else {
		_ = sink.Set("max-buffers", 0)
	}
	_ = sink.Set("drop", false)
}

func findSink(bin graph.Bin, kind Kind, id uint32) (sampleSink, error) {
	name := SinkName(kind, id)
	el := bin.ByName(name)
	if el == nil {
		return nil, fmt.Errorf("%w: no %s", ErrNotReady, name)
	}
	sink, ok := el.(sampleSink)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s", ErrConfiguration, name, el.Factory())
	}
	if pad := sink.Pad("sink"); pad == nil || !pad.IsLinked() {
		return nil, fmt.Errorf("%w: %s not linked", ErrNotReady, name)
	}
	return sink, nil
}

func videoCallback(useTimestamps bool, f VideoFunc) appsink.SampleFunc {
	var count uint64

	return func(sample *graph.Sample) {
		buf := sample.Buffer
		frame := &VideoFrame{
			Data:     buf.Data,
			Format:   "H264",
			Keyframe: buf.IsKeyframe(),
		}
		frame.Width, _ = sample.Caps.Int("width")
		frame.Height, _ = sample.Caps.Int("height")
		if format, ok := sample.Caps.String("format"); ok {
			frame.Format = format
		}

		if useTimestamps {
			frame.Timestamp = timestamp(buf.PTS)
		} else {
			frame.Timestamp = count
			count++
		}

		f(frame)
	}
}

func audioCallback(useTimestamps bool, f AudioFunc) appsink.SampleFunc {
	var count uint64

	return func(sample *graph.Sample) {
		buf := sample.Buffer
		format := pcm.FormatFromCaps(sample.Caps)

		frame := &AudioFrame{
			Data:     buf.Data,
			Frames:   len(buf.Data) / (format.Channels * format.SampleSize()),
			Rate:     format.Rate,
			Channels: format.Channels,
			Format:   format.Name,
			Speakers: SpeakersFor(format.Channels),
		}

		if useTimestamps {
			frame.Timestamp = timestamp(buf.PTS)
		} else if frame.Rate > 0 {
			frame.Timestamp = count * uint64(time.Second) * uint64(frame.Frames) / uint64(frame.Rate)
			count++
		}

		f(frame)
	}
}

func timestamp(pts time.Duration) uint64 {
	if pts < 0 {
		return 0
	}
	return uint64(pts)
}
