// Package bits - MSB first bit reader for codec headers
package bits

type Reader struct {
	// EOF - some read went past the end, the result of it is zero
	EOF bool

	buf  []byte
	pos  int
	cur  byte
	left byte // bits left in cur
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

func (r *Reader) ReadBit() byte {
	if r.left == 0 {
		if r.pos >= len(r.buf) {
			r.EOF = true
			return 0
		}
		r.cur = r.buf[r.pos]
		r.pos++
		r.left = 8
	}
	r.left--
	return (r.cur >> r.left) & 1
}

// ReadBits - up to 32 bits
func (r *Reader) ReadBits(n byte) (res uint32) {
	for ; n > 0; n-- {
		res = res<<1 | uint32(r.ReadBit())
	}
	return
}

//goland:noinspection GoStandardMethods
func (r *Reader) ReadByte() byte {
	if r.left == 0 {
		if r.pos >= len(r.buf) {
			r.EOF = true
			return 0
		}
		b := r.buf[r.pos]
		r.pos++
		return b
	}
	return byte(r.ReadBits(8))
}

func (r *Reader) ReadUint16() uint16 {
	return uint16(r.ReadBits(16))
}

// ReadUEGolomb - unsigned exp-Golomb, ue(v)
func (r *Reader) ReadUEGolomb() uint32 {
	var zeros byte
	for zeros < 32 && r.ReadBit() == 0 {
		if r.EOF {
			return 0
		}
		zeros++
	}
	return (1<<zeros - 1) + r.ReadBits(zeros)
}

// ReadSEGolomb - signed exp-Golomb, se(v): 1, -1, 2, -2...
func (r *Reader) ReadSEGolomb() int32 {
	k := r.ReadUEGolomb()
	if k&1 == 0 {
		return -int32(k >> 1)
	}
	return int32(k>>1) + 1
}
