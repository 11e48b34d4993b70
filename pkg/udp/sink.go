package udp

import (
	"net"
	"strconv"
	"sync"

	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
)

// Sink - "udpsink" element, sends each buffer from "sink" pad as a datagram
type Sink struct {
	*base.Element

	mu   sync.Mutex
	conn *net.UDPConn
	addr *net.UDPAddr

	Sent int
}

func NewSink(name string) *Sink {
	s := &Sink{Element: base.NewElement(FactorySink, name)}
	s.Init(s)

	s.Install("host", "127.0.0.1")
	s.Install("port", 0)
	s.Install("bind-port", 0)
	// sync and async are kept for compatibility, buffers are never delayed
	s.Install("sync", true)
	s.Install("async", true)

	_ = s.AddPad(base.NewSinkPad("sink", s.chain))

	s.OnStateChange(func(from, to graph.State) error {
		if to.Active() && !from.Active() {
			return s.open()
		}
		if !to.Active() && from.Active() {
			s.close()
		}
		return nil
	})
	return s
}

func (s *Sink) open() error {
	address := net.JoinHostPort(s.Str("host"), strconv.Itoa(s.Int("port")))
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return err
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: s.Int("bind-port")})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.addr = addr
	s.mu.Unlock()
	return nil
}

func (s *Sink) close() {
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()
}

func (s *Sink) chain(_ *base.Pad, buf *graph.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return graph.ErrFlushing
	}
	if _, err := s.conn.WriteToUDP(buf.Data, s.addr); err != nil {
		return err
	}
	s.Sent++
	return nil
}

// GetFreePort returns a free UDP port that can be used for listening
func GetFreePort() (int, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	return conn.LocalAddr().(*net.UDPAddr).Port, nil
}
