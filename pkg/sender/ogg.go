package sender

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v3/pkg/media/oggreader"
	"github.com/streaminsync/streaminsync/pkg/receiver"
)

// frame size when a packet has no valid TOC
const audioInterval = 20 * time.Millisecond

// ReadOpusPackets - one Opus packet per Ogg page, header pages are skipped.
// ffmpeg puts a packet per page with `-page_duration 20000`.
func ReadOpusPackets(r io.Reader) ([][]byte, error) {
	ogg, header, err := oggreader.NewWith(r)
	if err != nil {
		return nil, err
	}
	if header.Channels == 0 {
		return nil, errors.New("sender: ogg without channels")
	}

	var packets [][]byte
	for {
		payload, _, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			return packets, nil
		}
		if err != nil {
			return nil, err
		}
		if len(payload) == 0 || bytes.HasPrefix(payload, []byte("OpusTags")) {
			continue
		}
		packets = append(packets, payload)
	}
}

func OpenAudioFeeder(path string) (*Feeder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	packets, err := ReadOpusPackets(f)
	if err != nil {
		return nil, err
	}
	return NewAudioFeeder(packets)
}

// ExecAudioFeeder runs the command to the end, its stdout must be Ogg/Opus:
//
//	ffmpeg -f lavfi -i sine=frequency=440:duration=10 -c:a libopus -page_duration 20000 -f ogg -
func ExecAudioFeeder(ctx context.Context, command string) (*Feeder, error) {
	b, err := execOutput(ctx, command)
	if err != nil {
		return nil, err
	}
	packets, err := ReadOpusPackets(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	return NewAudioFeeder(packets)
}

func NewAudioFeeder(packets [][]byte) (*Feeder, error) {
	if len(packets) == 0 {
		return nil, errors.New("sender: no audio packets")
	}
	return &Feeder{kind: receiver.KindAudio, units: packets, interval: audioInterval}, nil
}
