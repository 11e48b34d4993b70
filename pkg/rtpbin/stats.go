package rtpbin

import (
	"sort"
)

type SourceStats struct {
	SSRC        uint32  `json:"ssrc"`
	PayloadType uint8   `json:"payload_type"`
	Pad         string  `json:"pad"`
	Received    uint32  `json:"received"`
	Lost        uint32  `json:"lost"`
	Jitter      float64 `json:"jitter"`
	Synced      bool    `json:"synced"`
}

type SessionStats struct {
	ID          uint32        `json:"id"`
	SSRC        uint32        `json:"ssrc"`
	Sources     []SourceStats `json:"sources,omitempty"`
	SentPackets uint32        `json:"sent_packets,omitempty"`
	SentOctets  uint32        `json:"sent_octets,omitempty"`
	// reported by the remote side about our stream
	RemoteLost   uint32 `json:"remote_lost,omitempty"`
	RemoteJitter uint32 `json:"remote_jitter,omitempty"`
}

func (b *RTPBin) Stats(id uint32) (SessionStats, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.sessions[id]
	if s == nil {
		return SessionStats{}, false
	}

	stats := SessionStats{
		ID:           id,
		SSRC:         s.ssrc,
		SentPackets:  s.sent.packets,
		SentOctets:   s.sent.octets,
		RemoteLost:   s.remote.TotalLost,
		RemoteJitter: s.remote.Jitter,
	}
	for _, src := range s.sources {
		expected := src.extendedMax() - src.baseSeq + 1
		var lost uint32
		if expected > src.received {
			lost = expected - src.received
		}
		stats.Sources = append(stats.Sources, SourceStats{
			SSRC:        src.ssrc,
			PayloadType: src.pt,
			Pad:         src.pad.Name(),
			Received:    src.received,
			Lost:        lost,
			Jitter:      src.jitter,
			Synced:      src.haveSR,
		})
	}
	sort.Slice(stats.Sources, func(i, j int) bool {
		return stats.Sources[i].SSRC < stats.Sources[j].SSRC
	})
	return stats, true
}
