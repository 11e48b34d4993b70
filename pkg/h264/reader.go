package h264

import (
	"io"
)

// SplitAccessUnits - raw Annex-B stream to access units.
// New AU starts with AUD, SEI, SPS, PPS or the first slice of a picture
// when the current AU already has a slice.
func SplitAccessUnits(stream []byte) [][]byte {
	var units [][]byte
	var nalus [][]byte
	var hasSlice bool

	flush := func() {
		if len(nalus) > 0 {
			units = append(units, JoinNALU(nalus...))
		}
		nalus = nil
		hasSlice = false
	}

	for _, nalu := range SplitNALU(stream) {
		switch NALUType(nalu) {
		case NALUTypeAUD, NALUTypeSEI, NALUTypeSPS, NALUTypePPS:
			if hasSlice {
				flush()
			}
		case NALUTypePFrame, NALUTypeIFrame:
			// first_mb_in_slice = 0 is coded as single bit "1"
			if hasSlice && len(nalu) > 1 && nalu[1]&0x80 != 0 {
				flush()
			}
			hasSlice = true
		}
		nalus = append(nalus, nalu)
	}
	flush()

	return units
}

// ReadAccessUnits - whole Annex-B file to access units
func ReadAccessUnits(r io.Reader) ([][]byte, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return SplitAccessUnits(b), nil
}
