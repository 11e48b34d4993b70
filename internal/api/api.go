// Package api - HTTP control surface: sessions, sender, config and logs
package api

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/streaminsync/streaminsync/internal/app"
)

type Config struct {
	Listen     string `yaml:"listen"`
	UnixListen string `yaml:"unix_listen"`
	TLSListen  string `yaml:"tls_listen"`
	TLSCert    string `yaml:"tls_cert"`
	TLSKey     string `yaml:"tls_key"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`
	BasePath string `yaml:"base_path"`
	Origin   string `yaml:"origin"`
}

func Init() {
	var cfg struct {
		Mod Config `yaml:"api"`
	}

	cfg.Mod.Listen = ":1985"

	app.LoadConfig(&cfg)

	if cfg.Mod.Listen == "" && cfg.Mod.UnixListen == "" && cfg.Mod.TLSListen == "" {
		return
	}

	basePath = cfg.Mod.BasePath
	log = app.GetLogger("api")

	HandleFunc("api", apiHandler)
	HandleFunc("api/config", configHandler)
	HandleFunc("api/exit", exitHandler)
	HandleFunc("api/restart", restartHandler)
	HandleFunc("api/log", logHandler)

	Handler = newHandler(&cfg.Mod, http.DefaultServeMux)

	serve(&cfg.Mod)
}

// Handler - the root handler with all middlewares, nil until Init
var Handler http.Handler

var basePath string
var log = zerolog.Nop()

// HandleFunc registers a path relative to base_path unless it starts with slash:
//   - "api/sessions" => "{base_path}/api/sessions"
//   - "/sessions" => "/sessions"
func HandleFunc(pattern string, handler http.HandlerFunc) {
	if pattern == "" || pattern[0] != '/' {
		pattern = basePath + "/" + pattern
	}
	log.Trace().Str("path", pattern).Msg("[api] register path")
	http.HandleFunc(pattern, handler)
}
