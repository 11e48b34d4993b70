package api

import (
	"net/http"
	"os"
	"strconv"
	"sync"
	"syscall"

	"github.com/streaminsync/streaminsync/internal/app"
)

var infoMu sync.Mutex

// apiHandler - version, config path and the host the client used
func apiHandler(w http.ResponseWriter, r *http.Request) {
	infoMu.Lock()
	info := make(map[string]any, len(app.Info)+1)
	for k, v := range app.Info {
		info[k] = v
	}
	infoMu.Unlock()

	info["host"] = r.Host
	ResponseJSON(w, info)
}

// exitHandler - POST /api/exit?code=N, N in the POSIX range [0, 125]
func exitHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	code, err := strconv.Atoi(r.URL.Query().Get("code"))
	if err != nil || code < 0 || code > 125 {
		http.Error(w, "Code must be in the range [0, 125]", http.StatusBadRequest)
		return
	}

	log.Info().Int("code", code).Msg("[api] exit")
	os.Exit(code)
}

// restartHandler replaces the process with a fresh copy of itself
func restartHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	path, err := os.Executable()
	if err != nil {
		Error(w, err)
		return
	}

	log.Debug().Msgf("[api] restart %s", path)

	go func() {
		if err := syscall.Exec(path, os.Args, os.Environ()); err != nil {
			log.Error().Err(err).Msg("[api] restart")
		}
	}()
}

// logHandler - GET the in-memory log as JSON lines, DELETE clears it
func logHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		w.Header().Set("Content-Type", "application/jsonlines")
		_, _ = app.MemoryLog.WriteTo(w)
	case "DELETE":
		app.MemoryLog.Reset()
		Response(w, "OK", MimeText)
	default:
		http.Error(w, "", http.StatusMethodNotAllowed)
	}
}
