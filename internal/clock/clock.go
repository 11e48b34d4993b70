package clock

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/streaminsync/streaminsync/internal/api"
	"github.com/streaminsync/streaminsync/internal/app"
	"github.com/streaminsync/streaminsync/pkg/engine"
	"github.com/streaminsync/streaminsync/pkg/ntp"
)

// Config - shared clock of the receiver and the sender, empty host is the system clock
var Config = engine.ClockConfig{
	Host:     ntp.DefaultHost,
	Port:     ntp.DefaultPort,
	Timeout:  10 * time.Second,
	Interval: ntp.DefaultInterval,
}

func Init() {
	var cfg struct {
		Mod struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Timeout  int    `yaml:"timeout"`
			Interval int    `yaml:"interval"`
		} `yaml:"clock"`
	}

	cfg.Mod.Host = Config.Host
	cfg.Mod.Port = Config.Port
	cfg.Mod.Timeout = int(Config.Timeout / time.Millisecond)
	cfg.Mod.Interval = int(Config.Interval / time.Millisecond)

	app.LoadConfig(&cfg)

	log = app.GetLogger("clock")

	Config = engine.ClockConfig{
		Host:     cfg.Mod.Host,
		Port:     cfg.Mod.Port,
		Timeout:  time.Duration(cfg.Mod.Timeout) * time.Millisecond,
		Interval: time.Duration(cfg.Mod.Interval) * time.Millisecond,
	}

	if Config.Host == "" {
		log.Info().Msg("[clock] system clock")
	} else {
		log.Info().Str("host", Config.Host).Int("port", Config.Port).Msg("[clock] ntp")
	}

	api.HandleFunc("api/clock", apiClock)
}

var log = zerolog.Nop()

// Query - one NTP request to the configured server, nil for the system clock
func Query() (*ntp.Result, error) {
	if Config.Host == "" {
		return nil, nil
	}
	return ntp.Query(Config.Host, Config.Port)
}

func apiClock(w http.ResponseWriter, r *http.Request) {
	res, err := Query()
	if err != nil {
		api.Error(w, api.WithStatus(http.StatusBadGateway, err))
		return
	}

	api.ResponseJSON(w, map[string]any{
		"host":   Config.Host,
		"port":   Config.Port,
		"result": res,
	})
}
