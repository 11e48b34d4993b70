package udp

import (
	"errors"
	"net"
	"strconv"
	"sync"

	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
)

const (
	FactorySrc  = "udpsrc"
	FactorySink = "udpsink"
)

// enough for any RTP packet, jumbo frames included
const readBufferSize = 0x10000

// Src - "udpsrc" element, pushes each datagram as a buffer from "src" pad
type Src struct {
	*base.Element
	src *base.Pad

	mu   sync.Mutex
	conn *net.UDPConn
	done chan struct{}
}

func NewSrc(name string) *Src {
	s := &Src{Element: base.NewElement(FactorySrc, name), src: base.NewSrcPad("src")}
	s.Init(s)

	s.Install("address", "0.0.0.0")
	s.Install("port", 0)
	s.Install("caps", (*graph.Caps)(nil))
	s.Install("buffer-size", 0)

	_ = s.AddPad(s.src)

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

// Port - actual listening port, useful with "port" = 0
func (s *Src) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return 0
	}
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

func (s *Src) open() error {
	address := net.JoinHostPort(s.Str("address"), strconv.Itoa(s.Int("port")))
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return err
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}

	if size := s.Int("buffer-size"); size > 0 {
		_ = conn.SetReadBuffer(size)
	}

	s.mu.Lock()
	s.conn = conn
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.read(conn, s.done)
	return nil
}

func (s *Src) close() {
	s.mu.Lock()
	conn, done := s.conn, s.done
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return
	}
	_ = conn.Close()
	<-done
}

func (s *Src) read(conn *net.UDPConn, done chan struct{}) {
	defer close(done)

	b := make([]byte, readBufferSize)
	caps := s.Caps("caps")

	for {
		n, _, err := conn.ReadFromUDP(b)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.PostError(err, "udpsrc read")
			}
			return
		}

		buf := graph.NewBuffer(append([]byte(nil), b[:n]...))
		buf.Caps = caps
		buf.PTS = s.RunningTime()

		// not linked and flushing are normal during session changes
		_ = s.src.Push(buf)
	}
}
