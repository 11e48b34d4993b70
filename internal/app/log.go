package app

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var Logger zerolog.Logger

// MemoryLog keeps the last log lines for /api/log
var MemoryLog = newMemoryLog(1000)

// modules - logger options and per module levels
var modules = map[string]string{
	"format": "",
	"level":  "info",
	"output": "stdout",
	"time":   zerolog.TimeFormatUnixMs,
}

// GetLogger - logger with the level from the `log` section, key is the module name:
//
//	log:
//	  level: info
//	  receiver: debug
func GetLogger(module string) zerolog.Logger {
	s, ok := modules[module]
	if !ok {
		return Logger
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		Logger.Warn().Err(err).Msgf("[app] log level for %s", module)
		return Logger
	}
	return Logger.Level(lvl)
}

func initLogger() {
	var cfg struct {
		Mod map[string]string `yaml:"log"`
	}

	cfg.Mod = modules

	LoadConfig(&cfg)

	Logger = NewLogger(cfg.Mod, MemoryLog)
}

// NewLogger options:
//   - output: stdout, stderr or empty for memory only
//   - format: json, text, color or empty to detect a terminal
//   - time: UNIXMS, UNIXMICRO, UNIXNANO or empty without timestamps
//   - level: trace, debug, info, warn, error, disabled
func NewLogger(opts map[string]string, memory io.Writer) zerolog.Logger {
	var writers []io.Writer

	var out *os.File
	switch opts["output"] {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	}

	if out != nil {
		if opts["format"] == "json" {
			writers = append(writers, out)
		} else {
			writers = append(writers, newConsole(out, opts["format"], opts["time"] != ""))
		}
	}
	if memory != nil {
		writers = append(writers, memory)
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = zerolog.MultiLevelWriter(writers...)
	}

	lvl, err := zerolog.ParseLevel(opts["level"])
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(w).Level(lvl)
	if format := opts["time"]; format != "" {
		zerolog.TimeFieldFormat = format
		logger = logger.With().Timestamp().Logger()
	}
	return logger
}

func newConsole(out *os.File, format string, withTime bool) *zerolog.ConsoleWriter {
	console := &zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}

	switch format {
	case "text":
		console.NoColor = true
	case "color":
	default:
		console.NoColor = !isatty.IsTerminal(out.Fd()) && !isatty.IsCygwinTerminal(out.Fd())
	}

	if !withTime {
		console.PartsOrder = []string{
			zerolog.LevelFieldName,
			zerolog.CallerFieldName,
			zerolog.MessageFieldName,
		}
	}
	return console
}

// memoryLog - ring of the last log events, zerolog writes one event per call
type memoryLog struct {
	mu    sync.Mutex
	lines [][]byte
	next  int
	full  bool
}

func newMemoryLog(size int) *memoryLog {
	return &memoryLog{lines: make([][]byte, size)}
}

func (m *memoryLog) Write(p []byte) (int, error) {
	line := make([]byte, len(p))
	copy(line, p)

	m.mu.Lock()
	m.lines[m.next] = line
	if m.next++; m.next == len(m.lines) {
		m.next = 0
		m.full = true
	}
	m.mu.Unlock()

	return len(p), nil
}

// WriteTo writes lines from the oldest to the newest
func (m *memoryLog) WriteTo(w io.Writer) (n int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var lines [][]byte
	if m.full {
		lines = append(lines, m.lines[m.next:]...)
	}
	lines = append(lines, m.lines[:m.next]...)

	for _, line := range lines {
		nn, err := w.Write(line)
		n += int64(nn)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (m *memoryLog) Bytes() []byte {
	var buf bytes.Buffer
	_, _ = m.WriteTo(&buf)
	return buf.Bytes()
}

func (m *memoryLog) Reset() {
	m.mu.Lock()
	clear(m.lines)
	m.next = 0
	m.full = false
	m.mu.Unlock()
}
