package receiver

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/streaminsync/streaminsync/internal/api"
	"github.com/streaminsync/streaminsync/internal/api/ws"
	"github.com/streaminsync/streaminsync/internal/clock"
	"github.com/streaminsync/streaminsync/pkg/receiver"
)

type sessionItem struct {
	receiver.SessionInfo
	Frames *frameStats `json:"frames,omitempty"`
}

func sessionItems() ([]sessionItem, error) {
	infos, err := rcv.Info()
	if err != nil {
		return nil, err
	}
	items := make([]sessionItem, 0, len(infos))
	for _, info := range infos {
		items = append(items, sessionItem{SessionInfo: info, Frames: stats.get(info.ID)})
	}
	return items, nil
}

func apiSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET", "":
		items, err := sessionItems()
		if err != nil {
			api.Error(w, withStatus(err))
			return
		}
		api.ResponseJSON(w, items)

	case "POST":
		cfg, err := readSessionConfig(r)
		if err != nil {
			api.Error(w, api.WithStatus(http.StatusBadRequest, err))
			return
		}

		s, err := addSession(cfg)
		if err != nil {
			api.Error(w, withStatus(err))
			return
		}

		api.ResponseJSON(w, s)

	case "DELETE":
		s := rcv.Session(r.URL.Query().Get("id"))
		if s == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		if err := removeSession(s); err != nil {
			api.Error(w, withStatus(err))
			return
		}

	default:
		http.Error(w, "", http.StatusMethodNotAllowed)
	}
}

// readSessionConfig - JSON session or the sender SDP,
// empty dest means the host of the request
func readSessionConfig(r *http.Request) (cfg receiver.Config, err error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), api.MimeSDP) {
		if cfg, err = receiver.ConfigFromSDP(body); err != nil {
			return
		}
	} else {
		var conf SessionConfig
		if err = json.Unmarshal(body, &conf); err != nil {
			return
		}
		cfg = conf.Session()
	}

	if cfg.Dest == "" || cfg.Dest == "0.0.0.0" {
		cfg.Dest, _, _ = net.SplitHostPort(r.RemoteAddr)
	}
	return
}

func apiSessionSDP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	s := rcv.Session(query.Get("id"))
	if s == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	address := query.Get("address")
	if address == "" {
		address = localAddress(r)
	}

	data, err := rcv.SDP(s, address)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.Response(w, data, api.MimeSDP)
}

// localAddress - our address as the client sees it
func localAddress(r *http.Request) string {
	if addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		if host, _, err := net.SplitHostPort(addr.String()); err == nil {
			return host
		}
	}
	if host, _, err := net.SplitHostPort(r.Host); err == nil {
		return host
	}
	return r.Host
}

func apiReceiver(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"engine":   rcv.Engine().Info(),
		"sessions": len(rcv.Sessions()),
	}

	if r.URL.Query().Has("ntp") {
		if res, err := clock.Query(); err != nil {
			info["ntp_error"] = err.Error()
		} else if res != nil {
			info["ntp"] = res
		}
	}

	api.ResponseJSON(w, info)
}

func wsSessions(tr *ws.Transport, _ *ws.Message) error {
	items, err := sessionItems()
	if err != nil {
		return fmt.Errorf("sessions: %w", err)
	}
	tr.Write(&ws.Message{Type: "sessions", Value: items})
	return nil
}
