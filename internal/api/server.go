package api

import (
	"crypto/tls"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

// Port - the TCP port the API really listens, useful with ":0"
var Port int

func serve(cfg *Config) {
	if cfg.Listen != "" {
		if ln := listen("tcp", cfg.Listen); ln != nil {
			Port = ln.Addr().(*net.TCPAddr).Port
			go run(ln, nil)
		}
	}

	if cfg.UnixListen != "" {
		_ = os.Remove(cfg.UnixListen)
		if ln := listen("unix", cfg.UnixListen); ln != nil {
			go run(ln, nil)
		}
	}

	if cfg.TLSListen != "" && cfg.TLSCert != "" && cfg.TLSKey != "" {
		cert, err := loadCert(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			log.Error().Err(err).Msg("[api] tls cert")
			return
		}
		if ln := listen("tcp", cfg.TLSListen); ln != nil {
			go run(ln, &tls.Config{Certificates: []tls.Certificate{cert}})
		}
	}
}

func listen(network, address string) net.Listener {
	ln, err := net.Listen(network, address)
	if err != nil {
		log.Error().Err(err).Str("addr", address).Msg("[api] listen")
		return nil
	}
	log.Info().Str("addr", address).Msg("[api] listen")
	return ln
}

func run(ln net.Listener, tlsConfig *tls.Config) {
	server := &http.Server{
		Handler:           Handler,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var err error
	if tlsConfig != nil {
		err = server.ServeTLS(ln, "", "")
	} else {
		err = server.Serve(ln)
	}
	log.Fatal().Err(err).Msg("[api] serve")
}

// loadCert - paths to PEM files or PEM content right in the config
func loadCert(cert, key string) (tls.Certificate, error) {
	if strings.Contains(cert, "\n") || strings.Contains(key, "\n") {
		return tls.X509KeyPair([]byte(cert), []byte(key))
	}
	return tls.LoadX509KeyPair(cert, key)
}
