package sender

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/h264"
	"github.com/streaminsync/streaminsync/pkg/opus"
	"github.com/streaminsync/streaminsync/pkg/receiver"
	"github.com/streaminsync/streaminsync/pkg/shell"
)

// Feeder pushes units of one kind in a loop: access units of an Annex-B
// stream at a fixed framerate or Opus packets at their own duration
type Feeder struct {
	kind     receiver.Kind
	units    [][]byte
	interval time.Duration
	sent     atomic.Int64
}

// Sent - units pushed without error
func (f *Feeder) Sent() int64 {
	return f.sent.Load()
}

func (f *Feeder) Kind() receiver.Kind {
	return f.kind
}

func OpenFeeder(path string, framerate int) (*Feeder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	units, err := h264.ReadAccessUnits(f)
	if err != nil {
		return nil, err
	}
	return NewFeeder(units, framerate)
}

// ExecFeeder runs the command to the end, its stdout must be raw Annex-B H.264:
//
//	ffmpeg -f lavfi -i testsrc=duration=10:size=1920x1080:rate=30 -c:v libx264 -bsf:v h264_mp4toannexb -f h264 -
func ExecFeeder(ctx context.Context, command string, framerate int) (*Feeder, error) {
	b, err := execOutput(ctx, command)
	if err != nil {
		return nil, err
	}
	return NewFeeder(h264.SplitAccessUnits(b), framerate)
}

func NewFeeder(units [][]byte, framerate int) (*Feeder, error) {
	if len(units) == 0 {
		return nil, errors.New("sender: no access units")
	}
	if framerate <= 0 {
		return nil, errors.New("sender: wrong framerate")
	}
	return &Feeder{kind: receiver.KindVideo, units: units, interval: time.Second / time.Duration(framerate)}, nil
}

func execOutput(ctx context.Context, command string) ([]byte, error) {
	cmd, err := shell.NewCommandContext(ctx, command)
	if err != nil {
		return nil, err
	}
	return cmd.Output()
}

// Run blocks until ctx is done, pushes are skipped while the pipeline restarts
func (f *Feeder) Run(ctx context.Context, s *Sender) error {
	timer := time.NewTimer(f.interval)
	defer timer.Stop()

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		unit := f.units[i%len(f.units)]
		timer.Reset(f.duration(unit))

		var err error
		if f.kind == receiver.KindAudio {
			err = s.PushAudio(unit, graph.ClockTimeNone)
		} else {
			err = s.PushVideo(unit, graph.ClockTimeNone)
		}

		switch {
		case err == nil:
			f.sent.Add(1)
		case errors.Is(err, graph.ErrFlushing), errors.Is(err, ErrNotReady):
		default:
			return err
		}
	}
}

func (f *Feeder) duration(unit []byte) time.Duration {
	if f.kind == receiver.KindAudio {
		if header := opus.UnmarshalHeader(unit); header != nil && header.Duration() > 0 {
			return header.Duration()
		}
	}
	return f.interval
}
