// Package ntp - graph.Clock synchronized with an NTP server.
// All hosts using the same server share one time base,
// so RTP timestamps from sender reports line up between them.
package ntp

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/beevik/ntp"
	"github.com/rs/zerolog"
)

const (
	DefaultHost = "45.159.204.28"
	DefaultPort = 123

	DefaultInterval = time.Minute
	queryTimeout    = 5 * time.Second
)

var ErrClosed = errors.New("ntp: clock closed")

// query can be replaced in tests
var query = ntp.QueryWithOptions

type Result struct {
	Offset  time.Duration `json:"offset"`
	RTT     time.Duration `json:"rtt"`
	Stratum uint8         `json:"stratum"`
	Time    time.Time     `json:"time"`
}

// Query asks the server once, used for status reports
func Query(host string, port int) (*Result, error) {
	res, err := query(address(host, port), ntp.QueryOptions{Timeout: queryTimeout})
	if err != nil {
		return nil, err
	}
	if err = res.Validate(); err != nil {
		return nil, err
	}
	return &Result{Offset: res.ClockOffset, RTT: res.RTT, Stratum: res.Stratum, Time: res.Time}, nil
}

func address(host string, port int) string {
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

type Clock struct {
	host     string
	port     int
	interval time.Duration
	log      zerolog.Logger

	mu     sync.RWMutex
	offset time.Duration
	last   *Result

	synced chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewClock starts polling the server in the background,
// Now returns local time until the first answer
func NewClock(host string, port int, interval time.Duration, log zerolog.Logger) *Clock {
	if interval <= 0 {
		interval = DefaultInterval
	}

	c := &Clock{
		host:     host,
		port:     port,
		interval: interval,
		log:      log,
		synced:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	c.wg.Add(1)
	go c.run()

	return c
}

func (c *Clock) Now() time.Time {
	c.mu.RLock()
	offset := c.offset
	c.mu.RUnlock()
	return time.Now().Add(offset)
}

func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// Last - last successful answer or nil
func (c *Clock) Last() *Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *Clock) Synced() bool {
	select {
	case <-c.synced:
		return true
	default:
		return false
	}
}

// WaitForSync blocks until the first successful answer
func (c *Clock) WaitForSync(ctx context.Context) error {
	select {
	case <-c.synced:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Clock) Close() {
	c.once.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
}

func (c *Clock) run() {
	defer c.wg.Done()

	// retry faster until first sync
	retry := time.Second

	for {
		delay := c.interval

		if err := c.update(); err != nil {
			c.log.Debug().Err(err).Msgf("[ntp] query %s", c.host)
			if !c.Synced() {
				delay = min(retry, c.interval)
				retry *= 2
			}
		}

		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}
	}
}

func (c *Clock) update() error {
	res, err := Query(c.host, c.port)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.offset = res.Offset
	c.last = res
	c.mu.Unlock()

	if !c.Synced() {
		c.log.Info().Msgf("[ntp] synced with %s offset=%s rtt=%s", c.host, res.Offset, res.RTT)
		close(c.synced)
	} else {
		c.log.Trace().Msgf("[ntp] offset=%s", res.Offset)
	}
	return nil
}
