package api

import (
	"io"
	"net/http"
	"os"

	"github.com/streaminsync/streaminsync/internal/app"
	"github.com/streaminsync/streaminsync/pkg/yaml"
)

// configHandler - GET returns the config file, POST replaces it, PATCH
// merges the body into it. Changes apply on the next start.
func configHandler(w http.ResponseWriter, r *http.Request) {
	if app.ConfigPath == "" {
		http.Error(w, "", http.StatusGone)
		return
	}

	if r.Method == "GET" {
		data, err := os.ReadFile(app.ConfigPath)
		if err != nil {
			http.Error(w, "", http.StatusNotFound)
			return
		}
		Response(w, data, MimeYAML)
		return
	}

	if r.Method != "POST" && r.Method != "PATCH" {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		Error(w, WithStatus(http.StatusBadRequest, err))
		return
	}

	if r.Method == "PATCH" {
		data, err = mergeYAML(app.ConfigPath, data)
	} else {
		err = yaml.Unmarshal(data, &map[string]any{})
	}
	if err != nil {
		Error(w, WithStatus(http.StatusBadRequest, err))
		return
	}

	if err = os.WriteFile(app.ConfigPath, data, 0644); err != nil {
		Error(w, err)
	}
}

// mergeYAML - patch values override file values, nested maps merge by key
func mergeYAML(path string, patch []byte) ([]byte, error) {
	// missing file is the same as empty one
	data, _ := os.ReadFile(path)

	cfg := map[string]any{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	var override map[string]any
	if err := yaml.Unmarshal(patch, &override); err != nil {
		return nil, err
	}

	return yaml.Marshal(merge(cfg, override))
}

func merge(dst, src map[string]any) map[string]any {
	for k, v := range src {
		if into, ok := dst[k].(map[string]any); ok {
			if from, ok := v.(map[string]any); ok {
				dst[k] = merge(into, from)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}
