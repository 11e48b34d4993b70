package sender

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/streaminsync/streaminsync/internal/api"
	"github.com/streaminsync/streaminsync/internal/api/ws"
	"github.com/streaminsync/streaminsync/internal/app"
	"github.com/streaminsync/streaminsync/internal/clock"
	"github.com/streaminsync/streaminsync/pkg/elements"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/sender"
)

func Init() {
	var cfg struct {
		Mod struct {
			sender.Config `yaml:",inline"`

			Enabled        bool   `yaml:"enabled"`
			RestartTimeout int    `yaml:"restart_timeout"`
			RestartOnEOS   bool   `yaml:"restart_on_eos"`
			RestartOnError bool   `yaml:"restart_on_error"`
			VideoFile      string `yaml:"video_file"`
			VideoExec      string `yaml:"video_exec"`
			AudioFile      string `yaml:"audio_file"`
			AudioExec      string `yaml:"audio_exec"`
		} `yaml:"sender"`
	}

	opts := sender.DefaultOptions()

	cfg.Mod.Config = sender.DefaultConfig()
	cfg.Mod.RestartTimeout = int(opts.RestartTimeout / time.Millisecond)
	cfg.Mod.RestartOnEOS = opts.RestartOnEOS
	cfg.Mod.RestartOnError = opts.RestartOnError

	app.LoadConfig(&cfg)

	if !cfg.Mod.Enabled {
		return
	}

	log = app.GetLogger("sender")

	opts.RestartTimeout = time.Duration(cfg.Mod.RestartTimeout) * time.Millisecond
	opts.RestartOnEOS = cfg.Mod.RestartOnEOS
	opts.RestartOnError = cfg.Mod.RestartOnError
	opts.Clock = clock.Config

	snd = newSender(cfg.Mod.Config, opts)

	api.HandleFunc("api/sender", apiSender)
	api.HandleFunc("api/sender/sdp", apiSenderSDP)
	api.HandleFunc("api/sender/restart", apiSenderRestart)

	ctx := start()

	go func() {
		if err := snd.Start(); err != nil {
			log.Error().Err(err).Msg("[sender] start")
			return
		}
		log.Info().Str("receiver", snd.Config().ReceiverIP).Msg("[sender] playing")

		video, err := openFeeder(ctx, cfg.Mod.VideoFile, cfg.Mod.VideoExec, cfg.Mod.Framerate)
		if err != nil {
			log.Error().Err(err).Msg("[sender] video source")
		}
		audio, err := openAudioFeeder(ctx, cfg.Mod.AudioFile, cfg.Mod.AudioExec)
		if err != nil {
			log.Error().Err(err).Msg("[sender] audio source")
		}

		for _, feeder := range []*sender.Feeder{video, audio} {
			if feeder != nil {
				go run(ctx, feeder)
			}
		}
	}()
}

var (
	log = zerolog.Nop()
	snd *sender.Sender

	// feeders and exec sources live until Stop
	mu      sync.Mutex
	feeders []*sender.Feeder
	cancel  context.CancelFunc
)

func start() context.Context {
	ctx, stop := context.WithCancel(context.Background())
	mu.Lock()
	cancel = stop
	feeders = nil
	mu.Unlock()
	return ctx
}

func run(ctx context.Context, feeder *sender.Feeder) {
	mu.Lock()
	feeders = append(feeders, feeder)
	mu.Unlock()

	if err := feeder.Run(ctx, snd); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msgf("[sender] %s feeder", feeder.Kind())
	}
}

func newSender(cfg sender.Config, opts sender.Options) *sender.Sender {
	s := sender.NewSender(cfg, opts, elements.New(), log)

	s.Engine().OnMessage(func(msg *graph.Message) {
		switch msg.Type {
		case graph.MessageError, graph.MessageEOS, graph.MessageWarning:
			event := &ws.Event{Source: "sender", Type: msg.Type.String(), Message: msg.SourceName()}
			if msg.Err != nil {
				event.Message += ": " + msg.Err.Error()
			}
			ws.Broadcast(event)
		}
	})
	s.Engine().OnRestart(func(graph.Pipeline) {
		ws.Broadcast(&ws.Event{Source: "sender", Type: "restart"})
	})

	return s
}

// openFeeder - file wins over command, nil without both
func openFeeder(ctx context.Context, file, command string, framerate int) (*sender.Feeder, error) {
	switch {
	case file != "":
		return sender.OpenFeeder(file, framerate)
	case command != "":
		return sender.ExecFeeder(ctx, command, framerate)
	}
	return nil, nil
}

func openAudioFeeder(ctx context.Context, file, command string) (*sender.Feeder, error) {
	switch {
	case file != "":
		return sender.OpenAudioFeeder(file)
	case command != "":
		return sender.ExecAudioFeeder(ctx, command)
	}
	return nil, nil
}

func withStatus(err error) error {
	if errors.Is(err, sender.ErrNotReady) {
		return api.WithStatus(http.StatusServiceUnavailable, err)
	}
	return err
}

// Stop kills exec sources and stops feeders before the pipeline
func Stop() {
	mu.Lock()
	if cancel != nil {
		cancel()
		cancel = nil
	}
	mu.Unlock()

	if snd != nil {
		snd.Stop()
	}
}
