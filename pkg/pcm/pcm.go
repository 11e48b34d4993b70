// Package pcm - raw audio helpers and the "audioconvert" and "audioresample" elements
package pcm

import (
	"math"

	"github.com/streaminsync/streaminsync/pkg/graph"
)

// sample formats, caps "format" field
const (
	FormatS16LE = "S16LE"
	FormatS16BE = "S16BE"
)

type Format struct {
	Name     string
	Rate     int
	Channels int
}

// FormatFromCaps - "audio/x-raw, format=S16LE, rate=48000, channels=1"
func FormatFromCaps(caps *graph.Caps) Format {
	f := Format{Name: FormatS16LE, Channels: 1}
	if caps == nil {
		return f
	}
	if s, ok := caps.String("format"); ok {
		f.Name = s
	}
	f.Rate, _ = caps.Int("rate")
	if n, ok := caps.Int("channels"); ok && n > 0 {
		f.Channels = n
	}
	return f
}

func (f Format) Caps() *graph.Caps {
	return graph.NewCaps(
		"audio/x-raw", "format", f.Name, "rate", f.Rate, "channels", f.Channels, "layout", "interleaved",
	)
}

// SampleSize - bytes per sample of one channel, both formats are 16 bit
func (f Format) SampleSize() int {
	return 2
}

// Downsample - averages every k samples, k may be fractional
func Downsample(k float32) func([]int16) []int16 {
	var sampleN, sampleSum float32

	return func(src []int16) (dst []int16) {
		dst = make([]int16, 0, ceil((float32(len(src))+sampleN)/k))
		for _, sample := range src {
			sampleSum += float32(sample)
			sampleN++
			if sampleN >= k {
				dst = append(dst, int16(sampleSum/sampleN))

				sampleSum = 0
				sampleN -= k
			}
		}
		return
	}
}

// Upsample - repeats every sample k times, k may be fractional
func Upsample(k float32) func([]int16) []int16 {
	var sampleN float32

	return func(src []int16) (dst []int16) {
		dst = make([]int16, 0, ceil(k*float32(len(src)))+1)
		for _, sample := range src {
			sampleN += k
			for sampleN > 0 {
				dst = append(dst, sample)
				sampleN -= 1
			}
		}
		return
	}
}

func ceil(x float32) int {
	d, fract := math.Modf(float64(x))
	if fract == 0.0 {
		return int(d)
	}
	return int(d) + 1
}

// Transcode - converter between formats, keeps state between calls
// so fractional resampling ratios work on a stream
func Transcode(dst, src Format) func([]byte) []byte {
	reader := newReader(src.Name)
	writer := newWriter(dst.Name)

	var filters []func([]int16) []int16

	if src.Channels > 1 && src.Channels != dst.Channels {
		filters = append(filters, Downsample(float32(src.Channels)))
	}

	channels := src.Channels
	if channels > 1 && src.Channels != dst.Channels {
		channels = 1
	}

	if src.Rate > dst.Rate && dst.Rate > 0 {
		k := float32(src.Rate) / float32(dst.Rate)
		filters = append(filters, perChannel(channels, func() func([]int16) []int16 { return Downsample(k) }))
	} else if src.Rate < dst.Rate && src.Rate > 0 {
		k := float32(dst.Rate) / float32(src.Rate)
		filters = append(filters, perChannel(channels, func() func([]int16) []int16 { return Upsample(k) }))
	}

	if dst.Channels > 1 && src.Channels != dst.Channels {
		filters = append(filters, Upsample(float32(dst.Channels)))
	}

	return func(b []byte) []byte {
		samples := reader(b)
		for _, filter := range filters {
			samples = filter(samples)
		}
		return writer(samples)
	}
}

// perChannel applies separate filter to every channel of interleaved samples
func perChannel(channels int, newFilter func() func([]int16) []int16) func([]int16) []int16 {
	if channels <= 1 {
		return newFilter()
	}

	filters := make([]func([]int16) []int16, channels)
	for i := range filters {
		filters[i] = newFilter()
	}

	return func(src []int16) []int16 {
		var outs [][]int16
		var size int
		for ch, filter := range filters {
			plane := make([]int16, 0, len(src)/channels+1)
			for i := ch; i < len(src); i += channels {
				plane = append(plane, src[i])
			}
			out := filter(plane)
			outs = append(outs, out)
			if ch == 0 || len(out) < size {
				size = len(out)
			}
		}

		dst := make([]int16, 0, size*channels)
		for i := 0; i < size; i++ {
			for ch := range outs {
				dst = append(dst, outs[ch][i])
			}
		}
		return dst
	}
}

func newReader(format string) func([]byte) []int16 {
	switch format {
	case FormatS16BE:
		return func(src []byte) (dst []int16) {
			var i, j int
			n := len(src) &^ 1
			dst = make([]int16, n/2)
			for i < n {
				hi := src[i]
				i++
				lo := src[i]
				i++
				dst[j] = int16(hi)<<8 | int16(lo)
				j++
			}
			return
		}
	}

	return func(src []byte) (dst []int16) {
		var i, j int
		n := len(src) &^ 1
		dst = make([]int16, n/2)
		for i < n {
			lo := src[i]
			i++
			hi := src[i]
			i++
			dst[j] = int16(hi)<<8 | int16(lo)
			j++
		}
		return
	}
}

func newWriter(format string) func([]int16) []byte {
	switch format {
	case FormatS16BE:
		return func(src []int16) (dst []byte) {
			var i int
			dst = make([]byte, len(src)*2)
			for _, sample := range src {
				dst[i] = byte(sample >> 8)
				i++
				dst[i] = byte(sample)
				i++
			}
			return
		}
	}

	return func(src []int16) (dst []byte) {
		var i int
		dst = make([]byte, len(src)*2)
		for _, sample := range src {
			dst[i] = byte(sample)
			i++
			dst[i] = byte(sample >> 8)
			i++
		}
		return
	}
}
