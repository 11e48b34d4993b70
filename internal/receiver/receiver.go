package receiver

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/streaminsync/streaminsync/internal/api"
	"github.com/streaminsync/streaminsync/internal/api/ws"
	"github.com/streaminsync/streaminsync/internal/app"
	"github.com/streaminsync/streaminsync/internal/clock"
	"github.com/streaminsync/streaminsync/pkg/elements"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/receiver"
)

func Init() {
	var cfg struct {
		Mod struct {
			Latency        int                   `yaml:"latency"`
			RestartTimeout int                   `yaml:"restart_timeout"`
			RestartOnEOS   bool                  `yaml:"restart_on_eos"`
			RestartOnError bool                  `yaml:"restart_on_error"`
			Output         receiver.OutputConfig `yaml:"output"`
			Sessions       []SessionConfig       `yaml:"sessions"`
		} `yaml:"receiver"`
	}

	opts := receiver.DefaultOptions()

	cfg.Mod.Latency = int(opts.Latency / time.Millisecond)
	cfg.Mod.RestartTimeout = int(opts.RestartTimeout / time.Millisecond)
	cfg.Mod.RestartOnEOS = opts.RestartOnEOS
	cfg.Mod.RestartOnError = opts.RestartOnError

	app.LoadConfig(&cfg)

	log = app.GetLogger("receiver")

	opts.Latency = time.Duration(cfg.Mod.Latency) * time.Millisecond
	opts.RestartTimeout = time.Duration(cfg.Mod.RestartTimeout) * time.Millisecond
	opts.RestartOnEOS = cfg.Mod.RestartOnEOS
	opts.RestartOnError = cfg.Mod.RestartOnError
	opts.Clock = clock.Config

	output = cfg.Mod.Output

	rcv = newReceiver(opts)

	api.HandleFunc("api/receiver", apiReceiver)
	api.HandleFunc("api/sessions", apiSessions)
	api.HandleFunc("api/sessions/sdp", apiSessionSDP)

	ws.HandleFunc("sessions", wsSessions)

	go func() {
		if err := rcv.Start(); err != nil {
			log.Error().Err(err).Msg("[receiver] start")
			return
		}
		log.Info().Dur("latency", opts.Latency).Msg("[receiver] playing")

		for _, conf := range cfg.Mod.Sessions {
			if _, err := addSession(conf.Session()); err != nil {
				log.Error().Err(err).Msg("[receiver] add session from config")
			}
		}
	}()
}

var (
	log    = zerolog.Nop()
	rcv    *receiver.Receiver
	output receiver.OutputConfig
	stats  = newStatsMap()
)

func newReceiver(opts receiver.Options) *receiver.Receiver {
	r := receiver.NewReceiver(opts, elements.New(), log)

	r.Engine().OnMessage(func(msg *graph.Message) {
		if msg.Type == graph.MessageElement {
			return
		}
		event := &ws.Event{Source: "receiver", Type: msg.Type.String(), Message: msg.SourceName()}
		if msg.Err != nil {
			event.Message += ": " + msg.Err.Error()
		}
		ws.Broadcast(event)
	})
	r.Engine().OnRestart(func(graph.Pipeline) {
		ws.Broadcast(&ws.Event{Source: "receiver", Type: "restart"})
	})

	return r
}

// SessionConfig - session from YAML or JSON, source_id and port_base
// are shortcuts for the id pair and the six ports
type SessionConfig struct {
	receiver.Config `yaml:",inline"`

	SourceID *uint32 `json:"source_id,omitempty" yaml:"source_id"`
	PortBase int     `json:"port_base,omitempty" yaml:"port_base"`
}

func (c *SessionConfig) Session() receiver.Config {
	cfg := c.Config
	if c.SourceID != nil {
		cfg.VideoID, cfg.AudioID = receiver.IDsFrom(*c.SourceID)
	}
	if c.PortBase != 0 {
		cfg.Ports = receiver.PortsFrom(c.PortBase)
	}
	return cfg
}

func addSession(cfg receiver.Config) (*receiver.Session, error) {
	s, err := rcv.AddSession(cfg)
	if err != nil {
		return nil, err
	}

	st := stats.add(s.ID)
	if err = rcv.Attach(s, output, st.onVideo, st.onAudio); err != nil {
		_ = rcv.RemoveSession(s)
		stats.remove(s.ID)
		return nil, err
	}

	log.Info().Msgf("[receiver] add %s", s)
	ws.Broadcast(&ws.Event{Source: "receiver", Type: "session-added", Session: s.ID})
	return s, nil
}

func removeSession(s *receiver.Session) error {
	if err := rcv.RemoveSession(s); err != nil {
		return err
	}
	stats.remove(s.ID)

	log.Info().Msgf("[receiver] remove %s", s)
	ws.Broadcast(&ws.Event{Source: "receiver", Type: "session-removed", Session: s.ID})
	return nil
}

// withStatus maps receiver errors to HTTP codes
func withStatus(err error) error {
	switch {
	case errors.Is(err, receiver.ErrNotReady):
		return api.WithStatus(http.StatusServiceUnavailable, err)
	case errors.Is(err, receiver.ErrConfiguration):
		return api.WithStatus(http.StatusBadRequest, err)
	}
	return err
}

// Stop tears down every session and the pipeline
func Stop() {
	if rcv != nil {
		rcv.Stop()
	}
}
