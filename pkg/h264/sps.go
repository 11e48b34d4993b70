package h264

import (
	"fmt"

	"github.com/streaminsync/streaminsync/pkg/bits"
)

// SPS - the part of a sequence parameter set that caps need,
// syntax from ITU-T H.264 7.3.2.1.1
type SPS struct {
	ProfileIDC uint8
	LevelIDC   uint8

	ChromaFormatIDC uint32
	BitDepthLuma    uint32
	FullRange       bool

	widthMBs  uint32
	heightMUs uint32
	frameMBs  bool // frame_mbs_only_flag
	crop      [4]uint32

	unitsInTick uint32
	timeScale   uint32
}

func (s *SPS) Width() uint16 {
	return uint16(16*s.widthMBs - 2*(s.crop[0]+s.crop[1]))
}

func (s *SPS) Height() uint16 {
	h := 16 * s.heightMUs
	if !s.frameMBs {
		h *= 2
	}
	return uint16(h - 2*(s.crop[2]+s.crop[3]))
}

// DecodeSPS returns nil for anything that is not a complete SPS NAL unit
func DecodeSPS(nalu []byte) *SPS {
	r := bits.NewReader(unescapeRBSP(nalu))
	if r.ReadByte()&0x1F != NALUTypeSPS {
		return nil
	}

	s := &SPS{ChromaFormatIDC: 1, BitDepthLuma: 8}
	s.ProfileIDC = r.ReadByte()
	_ = r.ReadByte() // constraint flags
	s.LevelIDC = r.ReadByte()
	_ = r.ReadUEGolomb() // seq_parameter_set_id

	if hasChromaInfo(s.ProfileIDC) {
		lists := 8
		if s.ChromaFormatIDC = r.ReadUEGolomb(); s.ChromaFormatIDC == 3 {
			_ = r.ReadBit() // separate_colour_plane_flag
			lists = 12
		}
		s.BitDepthLuma = 8 + r.ReadUEGolomb()
		_ = r.ReadUEGolomb() // bit_depth_chroma_minus8
		_ = r.ReadBit()      // qpprime_y_zero_transform_bypass_flag
		if r.ReadBit() == 1 {
			for i := 0; i < lists; i++ {
				if r.ReadBit() == 0 {
					continue
				}
				if i < 6 {
					skipScalingList(r, 16)
				} else {
					skipScalingList(r, 64)
				}
			}
		}
	}

	_ = r.ReadUEGolomb() // log2_max_frame_num_minus4

	switch r.ReadUEGolomb() { // pic_order_cnt_type
	case 0:
		_ = r.ReadUEGolomb()
	case 1:
		_ = r.ReadBit()
		_ = r.ReadSEGolomb()
		_ = r.ReadSEGolomb()
		for n := r.ReadUEGolomb(); n > 0 && !r.EOF; n-- {
			_ = r.ReadSEGolomb()
		}
	}

	_ = r.ReadUEGolomb() // max_num_ref_frames
	_ = r.ReadBit()      // gaps_in_frame_num_value_allowed_flag

	s.widthMBs = r.ReadUEGolomb() + 1
	s.heightMUs = r.ReadUEGolomb() + 1

	if s.frameMBs = r.ReadBit() == 1; !s.frameMBs {
		_ = r.ReadBit() // mb_adaptive_frame_field_flag
	}
	_ = r.ReadBit() // direct_8x8_inference_flag

	if r.ReadBit() == 1 {
		for i := range s.crop {
			s.crop[i] = r.ReadUEGolomb()
		}
	}

	if r.ReadBit() == 1 {
		s.readVUI(r)
	}

	if r.EOF {
		return nil
	}
	return s
}

func hasChromaInfo(profile uint8) bool {
	switch profile {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		return true
	}
	return false
}

// readVUI stops after timing info, the rest is not needed
func (s *SPS) readVUI(r *bits.Reader) {
	if r.ReadBit() == 1 { // aspect_ratio_info_present_flag
		if r.ReadByte() == 255 { // Extended_SAR
			_ = r.ReadBits(32)
		}
	}
	if r.ReadBit() == 1 { // overscan_info_present_flag
		_ = r.ReadBit()
	}
	if r.ReadBit() == 1 { // video_signal_type_present_flag
		_ = r.ReadBits(3)
		s.FullRange = r.ReadBit() == 1
		if r.ReadBit() == 1 {
			_ = r.ReadBits(24) // colour primaries, transfer, matrix
		}
	}
	if r.ReadBit() == 1 { // chroma_loc_info_present_flag
		_ = r.ReadUEGolomb()
		_ = r.ReadUEGolomb()
	}
	if r.ReadBit() == 1 { // timing_info_present_flag
		s.unitsInTick = r.ReadBits(32)
		s.timeScale = r.ReadBits(32)
		_ = r.ReadBit()
	}
}

func skipScalingList(r *bits.Reader, size int) {
	last, next := int32(8), int32(8)
	for j := 0; j < size && !r.EOF; j++ {
		if next != 0 {
			next = (last + r.ReadSEGolomb() + 256) % 256
		}
		if next != 0 {
			last = next
		}
	}
}

func (s *SPS) Profile() string {
	switch s.ProfileIDC {
	case 66:
		return "Baseline"
	case 77:
		return "Main"
	case 88:
		return "Extended"
	case 100:
		return "High"
	}
	return fmt.Sprintf("0x%02X", s.ProfileIDC)
}

func (s *SPS) PixFmt() string {
	if s.BitDepthLuma != 8 {
		return ""
	}
	switch s.ChromaFormatIDC {
	case 1:
		if s.FullRange {
			return "yuvj420p"
		}
		return "yuv420p"
	case 2:
		return "yuv422p"
	case 3:
		return "yuv444p"
	}
	return ""
}

func (s *SPS) String() string {
	return fmt.Sprintf("%s %d.%d, %s, %dx%d",
		s.Profile(), s.LevelIDC/10, s.LevelIDC%10, s.PixFmt(), s.Width(), s.Height())
}

// FrameRate - from VUI timing info, zero when not present
func (s *SPS) FrameRate() (num, den int) {
	if s.unitsInTick == 0 {
		return 0, 0
	}
	// two fields per frame
	return int(s.timeScale), int(2 * s.unitsInTick)
}

// unescapeRBSP removes emulation prevention bytes: 00 00 03 => 00 00
func unescapeRBSP(b []byte) []byte {
	var out []byte
	var zeros int
	for i, c := range b {
		if zeros >= 2 && c == 3 {
			if out == nil {
				out = append(make([]byte, 0, len(b)), b[:i]...)
			}
			zeros = 0
			continue
		}
		if out != nil {
			out = append(out, c)
		}
		if c == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	if out == nil {
		return b
	}
	return out
}
