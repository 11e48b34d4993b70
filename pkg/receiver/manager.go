package receiver

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/streaminsync/streaminsync/pkg/core"
	"github.com/streaminsync/streaminsync/pkg/engine"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/h264"
	"github.com/streaminsync/streaminsync/pkg/opus"
	"github.com/streaminsync/streaminsync/pkg/rtpbin"
)

// Loop - mutation lock and event loop of the pipeline owner
type Loop interface {
	Mutate(f func(p graph.Pipeline) error) error
	Post(f func())
}

type Session struct {
	ID      string    `json:"id"`
	Config  Config    `json:"config"`
	Created time.Time `json:"created"`

	// guarded by the mutation lock
	pipeline graph.Pipeline
	mux      *Mux
	streams  [2]*stream
	bindings [2]*binding
	output   *output
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s video=%d audio=%d", s.ID, s.Config.VideoID, s.Config.AudioID)
}

// Manager adds and removes sessions on the running pipeline.
// A remove racing an add of the same ids must be prevented by the caller.
type Manager struct {
	loop    Loop
	factory graph.Factory
	chain   Chain
	log     zerolog.Logger

	mu       sync.RWMutex
	sessions []*Session
}

func NewManager(loop Loop, factory graph.Factory, log zerolog.Logger) *Manager {
	return &Manager{loop: loop, factory: factory, chain: DefaultChain(), log: log}
}

func (m *Manager) SetChain(chain Chain) {
	m.chain = chain
}

func (m *Manager) AddSession(cfg Config) (*Session, error) {
	s := &Session{ID: uuid.NewString(), Config: cfg, Created: time.Now()}
	if err := m.add(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) add(s *Session) error {
	if err := s.Config.Validate(); err != nil {
		return err
	}

	err := m.loop.Mutate(func(p graph.Pipeline) error {
		return m.insert(p, s)
	})

	if errors.Is(err, engine.ErrNotReady) {
		return ErrNotReady
	}
	return err
}

// insert builds the session nodes on p, called under the mutation lock
func (m *Manager) insert(p graph.Pipeline, s *Session) error {
	mux, err := FindMux(p)
	if err != nil {
		return err
	}

	cfg := &s.Config
	for _, id := range []uint32{cfg.VideoID, cfg.AudioID} {
		if other := m.byRTPID(id); other != nil {
			return fmt.Errorf("%w: session id %d used by %s", ErrConfiguration, id, other.ID)
		}
		if mux.Bound(id) {
			return fmt.Errorf("%w: session id %d already bound", ErrConfiguration, id)
		}
	}

	b := &builder{factory: m.factory, chain: m.chain, mux: mux}
	video, audio, err := b.build(cfg)
	if err != nil {
		return err
	}

	s.pipeline = p
	s.mux = mux
	s.streams = [2]*stream{video, audio}

	if err = p.Add(s.elements()...); err != nil {
		_ = video.release(mux)
		_ = audio.release(mux)
		s.clear()
		return fmt.Errorf("%w: %w", ErrConstructionFailed, err)
	}

	for i, st := range s.streams {
		bd := newBinding(st.kind, st.id, st.head(), m.log)
		bd.subscribe(mux, m.notify(bd))
		s.bindings[i] = bd
	}

	// sinks first, sources start last
	elements := s.elements()
	slices.Reverse(elements)
	if err = graph.SetStateMany(p.State(), elements...); err != nil {
		_ = m.teardown(p, s)
		return fmt.Errorf("%w: %w", ErrConstructionFailed, err)
	}

	if s.output != nil {
		if err = s.output.attach(s); err != nil {
			m.log.Warn().Err(err).Msgf("[receiver] attach %s", s)
		}
	}

	m.mu.Lock()
	m.sessions = append(m.sessions, s)
	m.mu.Unlock()

	m.log.Debug().Msgf("[receiver] add %s ports=%v", s, cfg.Ports)
	return nil
}

// notify - announcements come on streaming goroutines and are handled
// on the loop under the mutation lock
func (m *Manager) notify(bd *binding) NewStreamPortFunc {
	return func(id, ssrc uint32, pt uint8, pad graph.Pad) {
		m.loop.Post(func() {
			_ = m.loop.Mutate(func(graph.Pipeline) error {
				bd.announce(id, ssrc, pt, pad)
				return nil
			})
		})
	}
}

func (m *Manager) RemoveSession(s *Session) error {
	err := m.loop.Mutate(func(p graph.Pipeline) error {
		if !m.has(s) {
			return fmt.Errorf("%w: unknown %s", ErrConfiguration, s)
		}
		if s.pipeline != p {
			// nodes died with the previous pipeline
			m.drop(s)
			return nil
		}
		return m.teardown(p, s)
	})

	if errors.Is(err, engine.ErrNotReady) {
		return ErrNotReady
	}
	return err
}

// teardown: unsubscribe => stop nodes => unlink and release pads => remove nodes
func (m *Manager) teardown(p graph.Pipeline, s *Session) error {
	var errs []error

	for _, bd := range s.bindings {
		if bd != nil {
			bd.unsubscribe(s.mux)
		}
	}

	// stopped sinks wake pushes waiting on them
	elements := s.elements()
	slices.Reverse(elements)
	for _, el := range elements {
		if err := el.SetState(graph.StateNull); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", el.Name(), err))
		}
	}

	for _, bd := range s.bindings {
		if bd != nil {
			if err := bd.release(s.mux); err != nil {
				errs = append(errs, err)
			}
		}
	}

	for _, st := range s.streams {
		if st != nil {
			if err := st.release(s.mux); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if err := p.Remove(s.elements()...); err != nil {
		errs = append(errs, err)
	}

	m.drop(s)
	s.clear()

	m.log.Debug().Msgf("[receiver] remove %s", s)
	return errors.Join(errs...)
}

func (m *Manager) drop(s *Session) {
	m.mu.Lock()
	if i := slices.Index(m.sessions, s); i >= 0 {
		m.sessions = slices.Delete(m.sessions, i, i+1)
	}
	m.mu.Unlock()
}

// Reset forgets all sessions after the pipeline was stopped,
// the old graph is not touched. Returns the forgotten sessions.
func (m *Manager) Reset() []*Session {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = nil
	m.mu.Unlock()

	for _, s := range sessions {
		s.forget()
	}
	return sessions
}

// Restore moves sessions left on a replaced pipeline to the current one
// with the same handles and outputs. Sessions added to the current
// pipeline meanwhile stay as they are. One mutation for all, so no add
// takes the ids of a session in between.
func (m *Manager) Restore() error {
	err := m.loop.Mutate(func(p graph.Pipeline) error {
		var errs []error
		for _, s := range m.Sessions() {
			if s.pipeline == p {
				continue
			}
			m.drop(s)
			s.forget()
			if err := m.insert(p, s); err != nil {
				errs = append(errs, fmt.Errorf("restore %s: %w", s, err))
			}
		}
		return errors.Join(errs...)
	})

	if errors.Is(err, engine.ErrNotReady) {
		return ErrNotReady
	}
	return err
}

func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.sessions)
}

// Session by handle or nil
func (m *Manager) Session(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (m *Manager) has(s *Session) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(m.sessions, s)
}

func (m *Manager) byRTPID(id uint32) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.Config.VideoID == id || s.Config.AudioID == id {
			return s
		}
	}
	return nil
}

type SessionInfo struct {
	*Session
	Video BindingInfo           `json:"video"`
	Audio BindingInfo           `json:"audio"`
	Stats []rtpbin.SessionStats `json:"stats,omitempty"`
}

// Info - sessions with their binding states
func (m *Manager) Info() ([]SessionInfo, error) {
	var infos []SessionInfo
	err := m.loop.Mutate(func(graph.Pipeline) error {
		for _, s := range m.Sessions() {
			info := SessionInfo{Session: s}
			if bd := s.bindings[KindVideo]; bd != nil {
				info.Video = bd.info()
			}
			if bd := s.bindings[KindAudio]; bd != nil {
				info.Audio = bd.info()
			}
			if s.mux != nil {
				for _, id := range []uint32{s.Config.VideoID, s.Config.AudioID} {
					if stats, ok := s.mux.Stats(id); ok {
						info.Stats = append(info.Stats, stats)
					}
				}
			}
			infos = append(infos, info)
		}
		return nil
	})
	if errors.Is(err, engine.ErrNotReady) {
		return nil, ErrNotReady
	}
	return infos, err
}

// SDP - what a sender has to send to the session, address is the receiver host
func (m *Manager) SDP(s *Session, address string) ([]byte, error) {
	cfg := &s.Config
	medias := []*core.Media{
		{
			Kind: core.KindVideo, Direction: core.DirectionRecvonly,
			ID: strconv.Itoa(int(cfg.VideoID)), Key: cfg.Key,
			Port: cfg.RTPPort(KindVideo), RTCPPort: cfg.RTCPPort(KindVideo),
			Codecs: []*core.Codec{{
				Name: core.CodecH264, ClockRate: h264.ClockRate, PayloadType: h264.PayloadType,
				FmtpLine: "packetization-mode=1",
			}},
		},
		{
			Kind: core.KindAudio, Direction: core.DirectionRecvonly,
			ID: strconv.Itoa(int(cfg.AudioID)), Key: cfg.Key,
			Port: cfg.RTPPort(KindAudio), RTCPPort: cfg.RTCPPort(KindAudio),
			Codecs: []*core.Codec{{
				Name: core.CodecOpus, ClockRate: opus.ClockRate, Channels: 2, PayloadType: opus.PayloadType,
			}},
		},
	}
	return core.MarshalSDP("streaminsync", address, medias)
}

// elements - video then audio, each sources first
func (s *Session) elements() []graph.Element {
	var items []graph.Element
	for _, st := range s.streams {
		if st != nil {
			items = append(items, st.elements()...)
		}
	}
	return items
}

// forget - nodes died with their pipeline, only the handle is left
func (s *Session) forget() {
	for _, bd := range s.bindings {
		if bd != nil {
			bd.forget()
		}
	}
	s.clear()
}

func (s *Session) clear() {
	s.pipeline = nil
	s.mux = nil
	s.streams = [2]*stream{}
	s.bindings = [2]*binding{}
}

// Sink - output node of the media kind, nil when not in a pipeline
func (s *Session) Sink(kind Kind) graph.Element {
	if st := s.streams[kind]; st != nil {
		return st.sink()
	}
	return nil
}
