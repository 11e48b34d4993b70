package graph

import (
	"errors"
	"fmt"
)

// LinkMany links "src" pad of each element to "sink" pad of the next one
func LinkMany(elements ...Element) error {
	for i := 0; i+1 < len(elements); i++ {
		if err := LinkPads(elements[i], "src", elements[i+1], "sink"); err != nil {
			return err
		}
	}
	return nil
}

// UnlinkMany reverts LinkMany, errors for not linked pads are ignored
func UnlinkMany(elements ...Element) {
	for i := 0; i+1 < len(elements); i++ {
		src := elements[i].Pad("src")
		sink := elements[i+1].Pad("sink")
		if src != nil && sink != nil && src.Peer() == sink {
			_ = src.Unlink(sink)
		}
	}
}

func LinkPads(src Element, srcPad string, sink Element, sinkPad string) error {
	sp := src.Pad(srcPad)
	if sp == nil {
		return fmt.Errorf("%w: %s.%s", ErrNoSuchPad, src.Name(), srcPad)
	}
	dp := sink.Pad(sinkPad)
	if dp == nil {
		return fmt.Errorf("%w: %s.%s", ErrNoSuchPad, sink.Name(), sinkPad)
	}
	if err := sp.Link(dp); err != nil {
		return fmt.Errorf("link %s.%s => %s.%s: %w", src.Name(), srcPad, sink.Name(), sinkPad, err)
	}
	return nil
}

// SetStateMany stops on first error
func SetStateMany(state State, elements ...Element) error {
	for _, el := range elements {
		if err := el.SetState(state); err != nil {
			return fmt.Errorf("%s to %s: %w", el.Name(), state, err)
		}
	}
	return nil
}

// SetProperties - Set for many properties, returns all errors joined
func SetProperties(el Element, props map[string]any) error {
	var errs []error
	for name, value := range props {
		if err := el.Set(name, value); err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", el.Name(), name, err))
		}
	}
	return errors.Join(errs...)
}

// PipelineOf walks parents up to the top level pipeline
func PipelineOf(el Element) Pipeline {
	for el != nil {
		if p, ok := el.(Pipeline); ok && el.Parent() == nil {
			return p
		}
		parent := el.Parent()
		if parent == nil {
			return nil
		}
		el = parent
	}
	return nil
}
