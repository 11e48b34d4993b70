package receiver

import (
	"sync"
	"time"

	"github.com/streaminsync/streaminsync/pkg/receiver"
)

// frameStats - what the host side got from one session
type frameStats struct {
	VideoFrames uint64    `json:"video_frames"`
	Keyframes   uint64    `json:"keyframes"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	AudioFrames uint64    `json:"audio_frames"`
	AudioRate   int       `json:"audio_rate,omitempty"`
	Speakers    string    `json:"speakers,omitempty"`
	LastFrame   time.Time `json:"last_frame"`

	mu sync.Mutex
}

func (s *frameStats) onVideo(frame *receiver.VideoFrame) {
	s.mu.Lock()
	s.VideoFrames++
	if frame.Keyframe {
		s.Keyframes++
	}
	s.Width, s.Height = frame.Width, frame.Height
	s.LastFrame = time.Now()
	s.mu.Unlock()
}

func (s *frameStats) onAudio(frame *receiver.AudioFrame) {
	s.mu.Lock()
	s.AudioFrames++
	s.AudioRate = frame.Rate
	s.Speakers = frame.Speakers.String()
	s.LastFrame = time.Now()
	s.mu.Unlock()
}

func (s *frameStats) snapshot() *frameStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &frameStats{
		VideoFrames: s.VideoFrames, Keyframes: s.Keyframes, Width: s.Width, Height: s.Height,
		AudioFrames: s.AudioFrames, AudioRate: s.AudioRate, Speakers: s.Speakers, LastFrame: s.LastFrame,
	}
}

type statsMap struct {
	items map[string]*frameStats
	mu    sync.Mutex
}

func newStatsMap() *statsMap {
	return &statsMap{items: map[string]*frameStats{}}
}

func (m *statsMap) add(id string) *frameStats {
	st := &frameStats{}
	m.mu.Lock()
	m.items[id] = st
	m.mu.Unlock()
	return st
}

func (m *statsMap) remove(id string) {
	m.mu.Lock()
	delete(m.items, id)
	m.mu.Unlock()
}

func (m *statsMap) get(id string) *frameStats {
	m.mu.Lock()
	st := m.items[id]
	m.mu.Unlock()
	if st == nil {
		return nil
	}
	return st.snapshot()
}
