package decomp

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/sdvl"
)

// reader walks a compressed header octet by octet.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) short(n int, what string) error {
	return fmt.Errorf("%w: %s needs %d bytes at offset %d, %d left",
		core.ErrPacketTooShort, what, n, r.pos, len(r.data)-r.pos)
}

func (r *reader) u8(what string) (uint8, error) {
	if r.pos+1 > len(r.data) {
		return 0, r.short(1, what)
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16(what string) (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, r.short(2, what)
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32(what string) (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, r.short(4, what)
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) bytes(n int, what string) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, r.short(n, what)
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// sdvlValue reads one SDVL value and returns it with its bit width.
func (r *reader) sdvlValue(what string) (uint32, int, error) {
	v, n, err := sdvl.Decode(r.data[r.pos:])
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", what, err)
	}
	r.pos += n
	return v, sdvl.Bits(n), nil
}

func (r *reader) rest() []byte {
	return r.data[r.pos:]
}

// skip advances past n bytes consumed by a sub-parser.
func (r *reader) skip(n int) {
	r.pos += n
}
