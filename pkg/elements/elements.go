// Package elements registers every element factory of the repository
package elements

import (
	"github.com/streaminsync/streaminsync/pkg/appsink"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
	"github.com/streaminsync/streaminsync/pkg/h264"
	"github.com/streaminsync/streaminsync/pkg/opus"
	"github.com/streaminsync/streaminsync/pkg/pcm"
	"github.com/streaminsync/streaminsync/pkg/rtpbin"
	"github.com/streaminsync/streaminsync/pkg/srtp"
	"github.com/streaminsync/streaminsync/pkg/udp"
)

func Register(r *base.Registry) {
	r.Register(udp.FactorySrc, wrap(udp.NewSrc))
	r.Register(udp.FactorySink, wrap(udp.NewSink))
	r.Register(rtpbin.Factory, wrap(rtpbin.New))

	r.Register(h264.FactoryDepay, wrap(h264.NewDepay))
	r.Register(h264.FactoryParse, wrap(h264.NewParse))
	r.Register(h264.FactoryDec, wrap(h264.NewDec))
	r.Register(h264.FactoryPay, wrap(h264.NewPay))

	r.Register(opus.FactoryDepay, wrap(opus.NewDepay))
	r.Register(opus.FactoryDec, wrap(opus.NewDec))
	r.Register(opus.FactoryPay, wrap(opus.NewPay))

	r.Register(pcm.FactoryConvert, wrap(pcm.NewConvert))
	r.Register(pcm.FactoryResample, wrap(pcm.NewResample))

	r.Register(srtp.FactoryDec, wrap(srtp.NewDec))
	r.Register(srtp.FactoryEnc, wrap(srtp.NewEnc))

	r.Register(appsink.FactorySink, wrap(appsink.NewSink))
	r.Register(appsink.FactorySrc, wrap(appsink.NewSrc))

	// raw video is never converted, frames are handed over as is
	for _, factory := range []string{"identity", "queue", "videoconvert", "capsfilter"} {
		factory := factory
		r.Register(factory, func(name string) (graph.Element, error) {
			return base.NewIdentity(factory, name), nil
		})
	}
}

// New - registry with all factories
func New() *base.Registry {
	r := base.NewRegistry()
	Register(r)
	return r
}

func wrap[T graph.Element](f func(name string) T) base.FactoryFunc {
	return func(name string) (graph.Element, error) {
		return f(name), nil
	}
}
