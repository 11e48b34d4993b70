package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/streaminsync/streaminsync/pkg/shell"
	"github.com/streaminsync/streaminsync/pkg/yaml"
)

var ErrConfigDisabled = errors.New("app: config file disabled")

// configs - every -config source in command line order
var configs [][]byte

// LoadConfig applies every config source in order, so later sources win.
// Set defaults in v before the call.
func LoadConfig(v any) {
	for _, data := range configs {
		if err := yaml.Unmarshal(data, v); err != nil {
			Logger.Warn().Err(err).Msg("[app] read config")
		}
	}
}

// PatchConfig changes one key in the config file and keeps its comments
func PatchConfig(key string, value any, path ...string) error {
	if ConfigPath == "" {
		return ErrConfigDisabled
	}

	// missing file is the same as empty one
	b, _ := os.ReadFile(ConfigPath)

	b, err := yaml.Patch(b, key, value, path...)
	if err != nil {
		return err
	}
	return os.WriteFile(ConfigPath, b, 0644)
}

type flagConfig []string

func (c *flagConfig) String() string {
	return strings.Join(*c, " ")
}

func (c *flagConfig) Set(value string) error {
	*c = append(*c, value)
	return nil
}

// initConfig - each source is inline YAML/JSON, a key.path=value pair or a file,
// the first file becomes ConfigPath even when it doesn't exist yet
func initConfig(sources flagConfig) {
	if len(sources) == 0 {
		sources = flagConfig{"streaminsync.yaml"}
	}

	for _, src := range sources {
		switch {
		case src == "":
		case src[0] == '{':
			configs = append(configs, []byte(src))
		case parseConfString(src) != nil:
			configs = append(configs, parseConfString(src))
		default:
			if ConfigPath == "" {
				ConfigPath = src
			}
			if data, err := os.ReadFile(src); err == nil {
				configs = append(configs, []byte(shell.ExpandEnv(string(data))))
			}
		}
	}

	if ConfigPath == "" {
		return
	}
	if abs, err := filepath.Abs(ConfigPath); err == nil {
		ConfigPath = abs
	}
	Info["config_path"] = ConfigPath
}

// parseConfString - `receiver.latency=500` => `{receiver: {latency: 500}}`
func parseConfString(s string) []byte {
	keys, value, ok := strings.Cut(s, "=")
	if !ok {
		return nil
	}

	items := strings.Split(keys, ".")
	if len(items) < 2 {
		return nil
	}

	var b strings.Builder
	for _, item := range items {
		b.WriteString("{" + item + ": ")
	}
	b.WriteString(value)
	b.WriteString(strings.Repeat("}", len(items)))
	return []byte(b.String())
}
