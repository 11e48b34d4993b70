package sender

import (
	"net/http"

	"github.com/streaminsync/streaminsync/internal/api"
	"github.com/streaminsync/streaminsync/pkg/sender"
)

func apiSender(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"engine": snd.Engine().Info(),
		"config": snd.Config(),
	}

	mu.Lock()
	for _, feeder := range feeders {
		info[feeder.Kind().String()+"_sent"] = feeder.Sent()
	}
	mu.Unlock()

	cfg := snd.Config()
	if stats, ok := snd.Stats(cfg.VideoID); ok {
		info["video_stats"] = stats
	}
	if stats, ok := snd.Stats(cfg.AudioID); ok {
		info["audio_stats"] = stats
	}

	api.ResponseJSON(w, info)
}

func apiSenderSDP(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		address = "0.0.0.0"
	}

	data, err := snd.SDP(address)
	if err != nil {
		api.Error(w, err)
		return
	}

	api.Response(w, data, api.MimeSDP)
}

func apiSenderRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	if snd.Engine().Pipeline() == nil && !snd.Engine().Info().RestartPending {
		api.Error(w, withStatus(sender.ErrNotReady))
		return
	}

	snd.Engine().Restart()
}
