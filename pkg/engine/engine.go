// Package engine owns one shared pipeline: its clock, its event loop
// and the restart policy. Everything that changes the graph goes through
// Mutate, everything that reacts to the graph runs on the loop.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
	"github.com/streaminsync/streaminsync/pkg/ntp"
)

var (
	ErrNotReady = errors.New("engine: pipeline not ready")
	ErrStarted  = errors.New("engine: already started")
)

type ClockConfig struct {
	Host     string
	Port     int
	Timeout  time.Duration
	Interval time.Duration
}

type Config struct {
	Name    string
	Latency time.Duration
	Clock   ClockConfig

	RestartTimeout time.Duration
	RestartOnEOS   bool
	RestartOnError bool
}

// BuildFunc makes a new pipeline in NULL state, called on start and on each restart
type BuildFunc func() (graph.Pipeline, error)

type Engine struct {
	cfg   Config
	build BuildFunc
	log   zerolog.Logger

	// mutation lock, guards pipeline and the graph inside it
	mu         sync.Mutex
	pipeline   graph.Pipeline
	generation int

	clock   graph.Clock
	ntp     *ntp.Clock
	started bool

	queueMu sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup

	// owned by the loop
	timer *time.Timer

	hookMu    sync.Mutex
	onMessage []func(msg *graph.Message)
	onRestart []func(p graph.Pipeline)

	statsMu  sync.Mutex
	restarts int
	pending  bool
	lastErr  string
}

func New(cfg Config, build BuildFunc, log zerolog.Logger) *Engine {
	if cfg.Name == "" {
		cfg.Name = "pipeline"
	}
	return &Engine{cfg: cfg, build: build, log: log}
}

// Start runs the loop and returns when the first pipeline is playing
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrStarted
	}
	e.started = true
	e.wake = make(chan struct{}, 1)
	e.done = make(chan struct{})
	e.mu.Unlock()

	ready := make(chan error, 1)

	e.wg.Add(1)
	go e.run(ready)

	if err := <-ready; err != nil {
		e.Stop()
		return err
	}
	return nil
}

// Stop ends the loop, waits for it and drops the pipeline with every node
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	close(e.done)
	e.mu.Unlock()

	e.wg.Wait()

	e.mu.Lock()
	if p := e.pipeline; p != nil {
		e.pipeline = nil
		e.generation++
		p.Bus().RemoveWatch()
		if err := p.SetState(graph.StateNull); err != nil {
			e.log.Warn().Err(err).Msgf("[engine] stop %s", e.cfg.Name)
		}
	}
	if e.ntp != nil {
		e.ntp.Close()
		e.ntp = nil
	}
	e.clock = nil
	e.mu.Unlock()

	e.log.Debug().Msgf("[engine] stopped %s", e.cfg.Name)
}

// Mutate runs f under the mutation lock with the current pipeline
func (e *Engine) Mutate(f func(p graph.Pipeline) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pipeline == nil {
		return ErrNotReady
	}
	return f(e.pipeline)
}

// Pipeline - current pipeline or nil, for reading only
func (e *Engine) Pipeline() graph.Pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipeline
}

// Post queues f on the loop, never blocks
func (e *Engine) Post(f func()) {
	e.queueMu.Lock()
	e.queue = append(e.queue, f)
	e.queueMu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// OnMessage - f is called on the loop for every forwarded bus message
func (e *Engine) OnMessage(f func(msg *graph.Message)) {
	e.hookMu.Lock()
	e.onMessage = append(e.onMessage, f)
	e.hookMu.Unlock()
}

// OnRestart - f is called on the loop after a new pipeline is playing
func (e *Engine) OnRestart(f func(p graph.Pipeline)) {
	e.hookMu.Lock()
	e.onRestart = append(e.onRestart, f)
	e.hookMu.Unlock()
}

// Restart schedules a rebuild now, unless one is already pending
func (e *Engine) Restart() {
	e.Post(func() {
		e.scheduleRestart(0)
	})
}

func (e *Engine) run(ready chan<- error) {
	defer e.wg.Done()

	if err := e.init(); err != nil {
		ready <- err
		return
	}
	close(ready)

	for {
		select {
		case <-e.done:
			if e.timer != nil {
				e.timer.Stop()
				e.timer = nil
			}
			return
		case <-e.wake:
		}

		for {
			e.queueMu.Lock()
			if len(e.queue) == 0 {
				e.queueMu.Unlock()
				break
			}
			f := e.queue[0]
			e.queue = e.queue[1:]
			e.queueMu.Unlock()

			f()
		}
	}
}

func (e *Engine) init() error {
	clock := e.acquireClock()

	e.mu.Lock()
	e.clock = clock
	err := e.startPipeline()
	e.mu.Unlock()

	return err
}

func (e *Engine) acquireClock() graph.Clock {
	cfg := e.cfg.Clock
	if cfg.Host == "" {
		return base.SystemClock{}
	}

	clock := ntp.NewClock(cfg.Host, cfg.Port, cfg.Interval, e.log)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := clock.WaitForSync(ctx); err != nil {
		e.log.Warn().Err(err).Msgf("[engine] clock %s not synced, continue unsynced", cfg.Host)
	}

	e.mu.Lock()
	e.ntp = clock
	e.mu.Unlock()

	return clock
}

// startPipeline runs under the mutation lock
func (e *Engine) startPipeline() error {
	p, err := e.build()
	if err != nil {
		return err
	}

	p.UseClock(e.clock)
	p.SetLatency(e.cfg.Latency)

	e.generation++
	generation := e.generation

	if err = p.Bus().AddWatch(func(msg *graph.Message) {
		e.Post(func() {
			e.handleMessage(p, generation, msg)
		})
	}); err != nil {
		return err
	}

	if err = p.SetState(graph.StatePlaying); err != nil {
		p.Bus().RemoveWatch()
		_ = p.SetState(graph.StateNull)
		return err
	}

	e.pipeline = p

	e.log.Debug().Msgf("[engine] %s playing latency=%s", e.cfg.Name, e.cfg.Latency)
	return nil
}

func (e *Engine) handleMessage(p graph.Pipeline, generation int, msg *graph.Message) {
	e.mu.Lock()
	stale := e.pipeline != p || e.generation != generation
	e.mu.Unlock()

	if stale {
		e.log.Trace().Msgf("[engine] skip stale %s", msg)
		return
	}

	switch msg.Type {
	case graph.MessageError:
		e.log.Error().Err(msg.Err).Str("debug", msg.Debug).Msgf("[engine] error from %s", msg.SourceName())
		e.setError(msg.Err)
		e.stopPipeline(p)
		if e.cfg.RestartOnError {
			e.scheduleRestart(e.cfg.RestartTimeout)
		}

	case graph.MessageEOS:
		e.log.Info().Msgf("[engine] end of stream from %s", msg.SourceName())
		e.stopPipeline(p)
		if e.cfg.RestartOnEOS {
			e.scheduleRestart(e.cfg.RestartTimeout)
		}

	case graph.MessageWarning:
		e.log.Warn().Err(msg.Err).Str("debug", msg.Debug).Msgf("[engine] warning from %s", msg.SourceName())

	case graph.MessageStateChanged:
		if msg.Source != graph.Element(p) {
			return
		}
		e.log.Debug().Msgf("[engine] %s state %s => %s", e.cfg.Name, msg.OldState, msg.NewState)

	case graph.MessageElement:
		e.log.Trace().Msgf("[engine] %s %s", msg, msg.Structure.Format())
	}

	e.hookMu.Lock()
	hooks := append([]func(*graph.Message){}, e.onMessage...)
	e.hookMu.Unlock()

	for _, f := range hooks {
		f(msg)
	}
}

func (e *Engine) stopPipeline(p graph.Pipeline) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := p.SetState(graph.StateNull); err != nil {
		e.log.Warn().Err(err).Msgf("[engine] stop %s", e.cfg.Name)
	}
}

// scheduleRestart keeps at most one pending timer, runs on the loop
func (e *Engine) scheduleRestart(timeout time.Duration) {
	if e.timer != nil {
		e.log.Trace().Msgf("[engine] restart already pending")
		return
	}

	e.log.Info().Msgf("[engine] restart %s in %s", e.cfg.Name, timeout)

	e.setPending(true)
	e.timer = time.AfterFunc(timeout, func() {
		e.Post(e.restart)
	})
}

func (e *Engine) restart() {
	e.timer = nil
	e.setPending(false)

	select {
	case <-e.done:
		return
	default:
	}

	e.mu.Lock()
	if old := e.pipeline; old != nil {
		old.Bus().RemoveWatch()
		_ = old.SetState(graph.StateNull)
		e.pipeline = nil
	}
	err := e.startPipeline()
	p := e.pipeline
	e.mu.Unlock()

	if err != nil {
		e.log.Error().Err(err).Msgf("[engine] restart %s", e.cfg.Name)
		e.setError(err)
		e.scheduleRestart(e.cfg.RestartTimeout)
		return
	}

	e.statsMu.Lock()
	e.restarts++
	e.statsMu.Unlock()

	e.hookMu.Lock()
	hooks := append([]func(graph.Pipeline){}, e.onRestart...)
	e.hookMu.Unlock()

	for _, f := range hooks {
		f(p)
	}
}

func (e *Engine) setPending(pending bool) {
	e.statsMu.Lock()
	e.pending = pending
	e.statsMu.Unlock()
}

func (e *Engine) setError(err error) {
	e.statsMu.Lock()
	if err != nil {
		e.lastErr = err.Error()
	}
	e.statsMu.Unlock()
}

type Info struct {
	Name           string        `json:"name"`
	State          string        `json:"state"`
	Restarts       int           `json:"restarts"`
	RestartPending bool          `json:"restart_pending"`
	LastError      string        `json:"last_error,omitempty"`
	RunningTime    time.Duration `json:"running_time,omitempty"`
	Latency        time.Duration `json:"latency"`
	ClockSynced    bool          `json:"clock_synced"`
	ClockOffset    time.Duration `json:"clock_offset,omitempty"`
}

func (e *Engine) Info() Info {
	info := Info{Name: e.cfg.Name, State: graph.StateNull.String(), Latency: e.cfg.Latency}

	e.mu.Lock()
	if p := e.pipeline; p != nil {
		info.State = p.State().String()
		if t := p.RunningTime(); t != graph.ClockTimeNone {
			info.RunningTime = t
		}
	}
	if e.ntp != nil {
		info.ClockSynced = e.ntp.Synced()
		info.ClockOffset = e.ntp.Offset()
	} else if e.clock != nil {
		// system clock is the reference itself
		info.ClockSynced = true
	}
	e.mu.Unlock()

	e.statsMu.Lock()
	info.Restarts = e.restarts
	info.RestartPending = e.pending
	info.LastError = e.lastErr
	e.statsMu.Unlock()

	return info
}
